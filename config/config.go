// Package config decodes and validates the playbook.content section that
// drives the aggregator (spec.md §6): content sources, git defaults,
// runtime flags and proxy settings. Decoding follows the teacher's
// reflect-based "allowed keys" pattern so an unrecognized playbook key is
// rejected instead of silently ignored.
package config

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Playbook is the root of the content-relevant playbook configuration.
type Playbook struct {
	Content Content `yaml:"content"`
}

// Content holds the sources plus the defaults and runtime knobs that apply
// to every source unless overridden.
type Content struct {
	Sources  []Source `yaml:"sources"`
	Branches RawList  `yaml:"branches"`
	Tags     RawList  `yaml:"tags"`
	Git      Git      `yaml:"git"`
	Runtime  Runtime  `yaml:"runtime"`
	Network  Network  `yaml:"network"`
}

// Source is one playbook content-source entry, decoded in its raw (not yet
// normalized) shape. See source.Resolve for the §4.1 normalization rules.
type Source struct {
	URL        string    `yaml:"url"`
	Remote     string    `yaml:"remote"`
	Branches   RawList   `yaml:"branches"`
	Tags       RawList   `yaml:"tags"`
	StartPath  string    `yaml:"start_path"`
	StartPaths RawList   `yaml:"start_paths"`
	Worktrees  yaml.Node `yaml:"worktrees"`
	Version    yaml.Node `yaml:"version"`
	EditURL    yaml.Node `yaml:"edit_url"`
}

// Git holds the git-related defaults shared by every content source.
type Git struct {
	FetchConcurrency int         `yaml:"fetch_concurrency"`
	ReadConcurrency  int         `yaml:"read_concurrency"`
	EnsureGitSuffix  *bool       `yaml:"ensure_git_suffix"`
	Credentials      Credentials `yaml:"credentials"`
	Plugins          Plugins     `yaml:"plugins"`
}

// Credentials points at a file (or inline contents) holding git-credential
// formatted lines, consulted third in the auth resolution order (spec.md §4.2).
type Credentials struct {
	Path     string `yaml:"path"`
	Contents string `yaml:"contents"`
}

// Plugins names the replaceable plugin slots the Repository Manager exposes
// (spec.md §4.2, §9): http transport, fs adapter, credential manager.
type Plugins struct {
	HTTP              string `yaml:"http"`
	FS                string `yaml:"fs"`
	CredentialManager string `yaml:"credential_manager"`
}

// Runtime controls whether a fetch is attempted this run and where the
// content cache lives on disk.
type Runtime struct {
	CacheDir string `yaml:"cache_dir"`
	Fetch    bool   `yaml:"fetch"`
	Quiet    bool   `yaml:"quiet"`
}

// Network carries proxy settings that override HOME-environment defaults.
type Network struct {
	HTTPProxy  string `yaml:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy"`
	NoProxy    string `yaml:"no_proxy"`
}

// RawList decodes a YAML value that may be a single scalar, a CSV string, or
// a list of scalars (numbers/booleans coerced to strings per spec.md §4.1),
// preserving each item verbatim for source.NormalizeList to split and trim.
type RawList []string

func (r *RawList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*r = RawList{value.Value}
		return nil
	case yaml.SequenceNode:
		items := make(RawList, 0, len(value.Content))
		for _, n := range value.Content {
			items = append(items, n.Value)
		}
		*r = items
		return nil
	case 0:
		*r = nil
		return nil
	default:
		return fmt.Errorf("expected a scalar or list, got %v", value.Kind)
	}
}

// OrderedPair is one key/value entry from a YAML mapping, preserving
// declaration order. A plain Go map would lose that order, and the
// version pattern map's "first matching entry wins" rule depends on it.
type OrderedPair struct {
	Key   string
	Value string
}

// ParseNode decodes a flexible (string | bool | ordered pattern map)
// playbook value used by "worktrees", "version" and "edit_url".
func ParseNode(n yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		var b bool
		if err := n.Decode(&b); err == nil {
			return b, nil
		}
		var i int
		if err := n.Decode(&i); err == nil {
			return strconv.Itoa(i), nil
		}
		var s string
		if err := n.Decode(&s); err != nil {
			return nil, err
		}
		return s, nil
	case yaml.MappingNode:
		pairs := make([]OrderedPair, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			var key, value string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, err
			}
			if err := n.Content[i+1].Decode(&value); err != nil {
				return nil, err
			}
			pairs = append(pairs, OrderedPair{Key: key, Value: value})
		}
		return pairs, nil
	case yaml.SequenceNode:
		var list []string
		if err := n.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported node kind %v", n.Kind)
	}
}

// Parse decodes and validates raw playbook YAML into a Playbook.
func Parse(yamlData []byte) (*Playbook, error) {
	if err := validateYAML(yamlData); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	pb := &Playbook{}
	if err := yaml.Unmarshal(yamlData, pb); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return pb, nil
}

var (
	allowedPlaybookKeys = getAllowedKeys(Playbook{})
	allowedContentKeys  = getAllowedKeys(Content{})
	allowedSourceKeys   = getAllowedKeys(Source{})
	allowedGitKeys      = getAllowedKeys(Git{})
	allowedRuntimeKeys  = getAllowedKeys(Runtime{})
	allowedNetworkKeys  = getAllowedKeys(Network{})
)

func validateYAML(yamlData []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(yamlData, &raw); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}

	if key := findUnexpectedKey(raw, allowedPlaybookKeys); key != "" {
		return fmt.Errorf("unexpected key: .%v", key)
	}

	contentMap, ok := raw["content"].(map[string]any)
	if !ok {
		if raw["content"] != nil {
			return fmt.Errorf(".content config is not valid")
		}
		return nil
	}

	if key := findUnexpectedKey(contentMap, allowedContentKeys); key != "" {
		return fmt.Errorf("unexpected key: .content.%v", key)
	}

	if gitMap, ok := contentMap["git"].(map[string]any); ok {
		if key := findUnexpectedKey(gitMap, allowedGitKeys); key != "" {
			return fmt.Errorf("unexpected key: .content.git.%v", key)
		}
	}
	if runtimeMap, ok := contentMap["runtime"].(map[string]any); ok {
		if key := findUnexpectedKey(runtimeMap, allowedRuntimeKeys); key != "" {
			return fmt.Errorf("unexpected key: .content.runtime.%v", key)
		}
	}
	if networkMap, ok := contentMap["network"].(map[string]any); ok {
		if key := findUnexpectedKey(networkMap, allowedNetworkKeys); key != "" {
			return fmt.Errorf("unexpected key: .content.network.%v", key)
		}
	}

	sourcesIface, ok := contentMap["sources"]
	if !ok || sourcesIface == nil {
		return nil
	}
	sourcesList, ok := sourcesIface.([]any)
	if !ok {
		return fmt.Errorf(".content.sources must be an array")
	}
	for i, s := range sourcesList {
		sourceMap, ok := s.(map[string]any)
		if !ok {
			return fmt.Errorf(".content.sources[%d] is not valid", i)
		}
		if key := findUnexpectedKey(sourceMap, allowedSourceKeys); key != "" {
			return fmt.Errorf("unexpected key: .content.sources[%v].%v", sourceMap["url"], key)
		}
	}

	return nil
}

// getAllowedKeys mirrors the teacher's reflect-driven key allowlist: every
// yaml-tagged field of config is a permitted key.
func getAllowedKeys(config any) []string {
	var allowedKeys []string
	val := reflect.TypeOf(config)
	for i := 0; i < val.NumField(); i++ {
		if tag := val.Field(i).Tag.Get("yaml"); tag != "" {
			allowedKeys = append(allowedKeys, tag)
		}
	}
	return allowedKeys
}

func findUnexpectedKey(raw map[string]any, allowedKeys []string) string {
	for key := range raw {
		if !slices.Contains(allowedKeys, key) {
			return key
		}
	}
	return ""
}
