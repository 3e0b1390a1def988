// Package gitexec runs the git CLI for the mutating operations the
// Repository Manager owns (clone, fetch, worktree, gc). Read-heavy tree
// and blob access is handled by the treereader package via go-git instead,
// so that repeated reads reuse a warm pack cache (spec.md §5); gitexec is
// only used where the teacher's mirror lifecycle itself shells to git.
package gitexec

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var gitExecutablePath = exec.Command("git").String()

// Run runs the git binary with the given arguments, capturing stdout and
// stderr, logging at trace level (-8) in the teacher's style.
func Run(ctx context.Context, log *slog.Logger, envs []string, cwd string, args ...string) (string, error) {
	if log == nil {
		log = slog.Default()
	}

	cmdStr := gitExecutablePath + " " + strings.Join(args, " ")
	log.Log(ctx, -8, "running command", "cwd", cwd, "cmd", cmdStr)

	cmd := exec.CommandContext(ctx, gitExecutablePath, args...)
	cmd.WaitDelay = 5 * time.Second
	if cwd != "" {
		cmd.Dir = cwd
	}

	outbuf := bytes.NewBuffer(nil)
	errbuf := bytes.NewBuffer(nil)
	cmd.Stdout = outbuf
	cmd.Stderr = errbuf

	cmd.Env = []string{}
	if len(envs) > 0 {
		cmd.Env = append(cmd.Env, envs...)
	}

	start := time.Now()
	err := cmd.Run()
	runTime := time.Since(start)

	stdout := strings.TrimSpace(outbuf.String())
	stderr := strings.TrimSpace(errbuf.String())
	if ctx.Err() == context.DeadlineExceeded {
		err = ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("run(%s): err:%w { stdout: %q, stderr: %q }", cmdStr, err, stdout, stderr)
	}
	log.Log(ctx, -8, "command result", "stdout", stdout, "stderr", stderr, "time", runTime)

	return stdout, nil
}

// DirIsEmpty reports whether the directory at path has no entries.
func DirIsEmpty(path string) (bool, error) {
	dirents, err := os.ReadDir(path)
	if err != nil {
		return false, err
	}
	return len(dirents) == 0, nil
}

// ReCreate removes dir and any children, then recreates it empty.
func ReCreate(path string, mode os.FileMode) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("can't delete unusable dir: %w", err)
	}
	if err := os.MkdirAll(path, mode); err != nil {
		return fmt.Errorf("unable to create dir: %w", err)
	}
	return nil
}

// RemoveDirContentsIf removes entries of dir for which fn returns true.
func RemoveDirContentsIf(dir string, log *slog.Logger, fn func(fi os.FileInfo) (bool, error)) error {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var errs []error
	for _, fi := range dirents {
		p := filepath.Join(dir, fi.Name())
		stat, err := os.Lstat(p)
		if err != nil {
			log.Error("failed to stat path, skipping", "path", p, "err", err)
			continue
		}
		shouldDelete, err := fn(stat)
		if err != nil {
			log.Error("predicate function failed for path, skipping", "path", p, "err", err)
			continue
		}
		if !shouldDelete {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("%s", errs)
	}
	return nil
}

// PublishSymlink atomically sets link to point at target (both absolute).
func PublishSymlink(linkPath, targetPath string, mode os.FileMode) error {
	linkDir, linkFile := filepath.Split(strings.TrimRight(linkPath, string(os.PathSeparator)))
	linkDir = strings.TrimRight(linkDir, string(os.PathSeparator))
	if linkDir == "" {
		linkDir = string(os.PathSeparator)
	}

	if err := os.MkdirAll(linkDir, mode); err != nil {
		return fmt.Errorf("error making symlink dir: %w", err)
	}

	targetRelative, err := filepath.Rel(linkDir, targetPath)
	if err != nil {
		return fmt.Errorf("error converting to relative path: %w", err)
	}

	tmpLink := linkFile + "-" + nextRandom()
	if err := os.Symlink(targetRelative, filepath.Join(linkDir, tmpLink)); err != nil {
		return fmt.Errorf("error creating symlink: %w", err)
	}

	if err := os.Rename(filepath.Join(linkDir, tmpLink), linkPath); err != nil {
		return fmt.Errorf("error replacing symlink: %w", err)
	}

	return nil
}

func nextRandom() string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return fmt.Sprintf("%d", r.Uint32())
}

// Jitter returns a duration between d and d + maxFactor*d.
func Jitter(d time.Duration, maxFactor float64) time.Duration {
	return d + time.Duration(rand.Float64()*maxFactor*float64(d))
}
