package treereader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// WorktreeReader walks a checked-out directory on disk (spec.md §4.5
// worktree mode).
type WorktreeReader struct {
	// Root is the absolute filesystem path to the start path being read.
	Root string
	Log  *slog.Logger
}

// Walk enumerates every file under r.Root. Broken symlinks are logged and
// dropped rather than failing the whole read (spec.md §4.5).
func (r WorktreeReader) Walk() ([]File, error) {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	var out []File
	err := r.walk(r.Root, "", &out, make(map[hopKey]string), log)
	return out, err
}

func (r WorktreeReader) walk(absDir, relDir string, out *[]File, hops map[hopKey]string, log *slog.Logger) error {
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return fmt.Errorf("unable to read directory %s: %w", absDir, err)
	}

	for _, e := range entries {
		name := e.Name()
		if isExcluded(name) {
			continue
		}
		relPath, err := joinRel(relDir, name)
		if err != nil {
			return err
		}
		absPath := filepath.Join(absDir, name)

		info, err := e.Info()
		if err != nil {
			return fmt.Errorf("unable to stat %s: %w", absPath, err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			linkHops := cloneHops(hops)
			resolvedAbs, resolvedInfo, err := resolveSymlinkChain(absDir, name, linkHops)
			if err != nil {
				if isBrokenLink(err) {
					log.Warn("dropping file with broken symbolic link", "path", relPath, "err", err)
					continue
				}
				return err
			}
			if resolvedInfo.IsDir() {
				if err := r.walk(resolvedAbs, relPath, out, linkHops, log); err != nil {
					return err
				}
				continue
			}
			contents, err := os.ReadFile(resolvedAbs)
			if err != nil {
				return fmt.Errorf("unable to read %s: %w", resolvedAbs, err)
			}
			*out = append(*out, File{Path: relPath, Mode: resolvedInfo.Mode(), ModTime: resolvedInfo.ModTime(), Contents: contents, Symlink: resolvedAbs})
			continue
		}

		if info.IsDir() {
			var sub []File
			if err := r.walk(absPath, relPath, &sub, hops, log); err != nil {
				return err
			}
			if len(sub) > 0 {
				*out = append(*out, sub...)
			}
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}

		contents, err := os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("unable to read %s: %w", absPath, err)
		}
		*out = append(*out, File{Path: relPath, Mode: info.Mode(), ModTime: info.ModTime(), Contents: contents})
	}

	return nil
}

// resolveSymlinkChain follows dir/name through any number of symlink hops
// to a non-link target, detecting cycles along the way (spec.md §4.5).
// Link targets may escape the worktree entirely; they are resolved against
// the real filesystem in that case.
func resolveSymlinkChain(dir, name string, hops map[hopKey]string) (string, os.FileInfo, error) {
	full := filepath.Join(dir, name)
	key := hopKey{dir: dir, name: name}
	if prevTarget, seen := hops[key]; seen {
		return "", nil, eloopError(full, prevTarget)
	}

	target, err := os.Readlink(full)
	if err != nil {
		return "", nil, brokenLinkError(full, target)
	}
	hops[key] = target

	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(dir, resolved)
	}

	info, err := os.Lstat(resolved)
	if err != nil {
		return "", nil, brokenLinkError(full, target)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return resolveSymlinkChain(filepath.Dir(resolved), filepath.Base(resolved), hops)
	}

	return resolved, info, nil
}

func isBrokenLink(err error) bool {
	return err != nil && len(err.Error()) > 6 && err.Error()[:6] == "ENOENT"
}
