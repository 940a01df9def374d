// Package manifest loads and validates the grammar catalog consumed by
// the build pipeline.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Grammar is one catalog entry: a named grammar repository pinned to a
// revision. Name is the join key for every later stage (cache directory,
// per-platform archive naming, metadata rows) and must be unique.
type Grammar struct {
	Name string `json:"name"`
	Repo string `json:"repo"`
	Rev  string `json:"rev"`
	// Branch is used instead of the default branch when Rev is empty.
	Branch string `json:"branch,omitempty"`
	// Path points into the checkout for monorepos carrying several grammars.
	Path string `json:"path,omitempty"`
	// SymbolName overrides the exported language function suffix when it
	// does not derive from Name (e.g. csharp exports tree_sitter_c_sharp).
	SymbolName string `json:"symbol_name,omitempty"`
}

// Identifier returns the grammar name as a C identifier fragment.
func (g Grammar) Identifier() string {
	return strings.ReplaceAll(g.Name, "-", "_")
}

// Symbol returns the exported language function name, e.g. tree_sitter_go.
func (g Grammar) Symbol() string {
	suffix := g.SymbolName
	if suffix == "" {
		suffix = g.Identifier()
	}
	return "tree_sitter_" + suffix
}

// Manifest is the parsed grammar catalog, in file order.
type Manifest struct {
	Grammars []Grammar `json:"grammars"`
}

// Load reads and validates the manifest at path. Any schema violation
// fails the whole load; there is no partial-manifest mode.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- manifest path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates manifest JSON.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("malformed manifest JSON: %w", err)
	}
	if len(m.Grammars) == 0 {
		return nil, fmt.Errorf("manifest has no grammars")
	}
	seen := make(map[string]int, len(m.Grammars))
	for i, g := range m.Grammars {
		if g.Name == "" {
			return nil, fmt.Errorf("grammars[%d]: missing name", i)
		}
		if !validName(g.Name) {
			return nil, fmt.Errorf("grammars[%d]: invalid name %q (lowercase letters, digits, - and _ only)", i, g.Name)
		}
		if prev, dup := seen[g.Name]; dup {
			return nil, fmt.Errorf("grammars[%d]: duplicate name %q (first at grammars[%d])", i, g.Name, prev)
		}
		seen[g.Name] = i
		if g.Repo == "" {
			return nil, fmt.Errorf("grammars[%d] (%s): missing repo", i, g.Name)
		}
		if g.Path != "" && (strings.HasPrefix(g.Path, "/") || strings.Contains(g.Path, "..")) {
			return nil, fmt.Errorf("grammars[%d] (%s): path must be relative and inside the checkout", i, g.Name)
		}
	}
	return &m, nil
}

// Names returns every grammar name in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Grammars))
	for _, g := range m.Grammars {
		names = append(names, g.Name)
	}
	return names
}

// Lookup returns the grammar with the given name, if present.
func (m *Manifest) Lookup(name string) (Grammar, bool) {
	for _, g := range m.Grammars {
		if g.Name == name {
			return g, true
		}
	}
	return Grammar{}, false
}

func validName(name string) bool {
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
