package aggregate

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tina25311/docaggr/config"
)

// Descriptor is a parsed antora.yml (spec.md §3 ComponentDescriptor).
// Snake_case keys are camel-cased on decode; unrecognized keys land in
// Extra rather than being dropped.
type Descriptor struct {
	Name           string
	Version        any // string | bool | nil
	VersionSet     bool
	Title          string
	DisplayVersion string
	StartPage      string
	Nav            []string
	NavSet         bool // true when the descriptor has a nav key, even a null one
	Prerelease     any
	AsciiDoc       map[string]any
	Extra          map[string]any
}

// ParseDescriptor decodes an antora.yml document.
func ParseDescriptor(data []byte) (Descriptor, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Descriptor{}, fmt.Errorf("invalid antora.yml: %w", err)
	}
	if len(doc.Content) == 0 {
		return Descriptor{}, fmt.Errorf("antora.yml is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Descriptor{}, fmt.Errorf("antora.yml must be a mapping")
	}

	d := Descriptor{Extra: map[string]any{}}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := camelCase(root.Content[i].Value)
		val := root.Content[i+1]

		switch key {
		case "name":
			if err := val.Decode(&d.Name); err != nil {
				return Descriptor{}, fmt.Errorf("antora.yml: invalid name: %w", err)
			}
		case "version":
			v, err := config.ParseNode(*val)
			if err != nil {
				return Descriptor{}, fmt.Errorf("antora.yml: invalid version: %w", err)
			}
			d.Version = v
			d.VersionSet = true
		case "title":
			_ = val.Decode(&d.Title)
		case "displayVersion":
			_ = val.Decode(&d.DisplayVersion)
		case "startPage":
			_ = val.Decode(&d.StartPage)
		case "nav":
			d.NavSet = true
			if val.Kind == yaml.SequenceNode {
				var nav []string
				if err := val.Decode(&nav); err != nil {
					return Descriptor{}, fmt.Errorf("antora.yml: invalid nav: %w", err)
				}
				d.Nav = nav
			}
		case "prerelease":
			v, err := config.ParseNode(*val)
			if err != nil {
				return Descriptor{}, fmt.Errorf("antora.yml: invalid prerelease: %w", err)
			}
			d.Prerelease = v
		case "asciidoc":
			m := map[string]any{}
			if err := val.Decode(&m); err != nil {
				return Descriptor{}, fmt.Errorf("antora.yml: invalid asciidoc: %w", err)
			}
			d.AsciiDoc = m
		default:
			var v any
			if err := val.Decode(&v); err != nil {
				return Descriptor{}, fmt.Errorf("antora.yml: invalid %s: %w", key, err)
			}
			d.Extra[key] = v
		}
	}

	if d.Name == "" {
		return Descriptor{}, fmt.Errorf("antora.yml: missing required 'name' key")
	}
	return d, nil
}

// camelCase converts a snake_case playbook/descriptor key to camelCase
// (e.g. "start_page" -> "startPage").
func camelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}
