package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const goodManifest = `{
  "grammars": [
    {"name": "go", "repo": "https://github.com/tree-sitter/tree-sitter-go", "rev": "0fa917a"},
    {"name": "csharp", "repo": "https://github.com/tree-sitter/tree-sitter-c-sharp", "rev": "1648e21", "symbol_name": "c_sharp"},
    {"name": "typescript", "repo": "https://github.com/tree-sitter/tree-sitter-typescript", "rev": "d847898", "path": "typescript"},
    {"name": "nightly-thing", "repo": "https://example.com/nightly", "rev": "", "branch": "next"}
  ]
}`

func TestParse_Good(t *testing.T) {
	m, err := Parse([]byte(goodManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Grammars) != 4 {
		t.Fatalf("got %d grammars, want 4", len(m.Grammars))
	}
	if m.Grammars[0].Name != "go" || m.Grammars[0].Rev != "0fa917a" {
		t.Errorf("first entry = %+v", m.Grammars[0])
	}
	if g, ok := m.Lookup("typescript"); !ok || g.Path != "typescript" {
		t.Errorf("Lookup(typescript) = %+v, %v", g, ok)
	}
	if g, ok := m.Lookup("nightly-thing"); !ok || g.Branch != "next" || g.Rev != "" {
		t.Errorf("Lookup(nightly-thing) = %+v, %v", g, ok)
	}
}

func TestGrammar_Symbol(t *testing.T) {
	cases := []struct {
		g    Grammar
		want string
	}{
		{Grammar{Name: "go"}, "tree_sitter_go"},
		{Grammar{Name: "nightly-thing"}, "tree_sitter_nightly_thing"},
		{Grammar{Name: "csharp", SymbolName: "c_sharp"}, "tree_sitter_c_sharp"},
	}
	for _, c := range cases {
		if got := c.g.Symbol(); got != c.want {
			t.Errorf("Symbol(%s) = %q, want %q", c.g.Name, got, c.want)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name    string
		json    string
		wantErr string
	}{
		{"not json", `{"grammars": [`, "malformed manifest JSON"},
		{"empty", `{"grammars": []}`, "no grammars"},
		{"missing name", `{"grammars": [{"repo": "x", "rev": "y"}]}`, "grammars[0]: missing name"},
		{"uppercase name", `{"grammars": [{"name": "Go", "repo": "x", "rev": "y"}]}`, "invalid name"},
		{"leading dash", `{"grammars": [{"name": "-go", "repo": "x", "rev": "y"}]}`, "invalid name"},
		{"missing repo", `{"grammars": [{"name": "go", "rev": "y"}]}`, "(go): missing repo"},
		{"duplicate", `{"grammars": [{"name": "go", "repo": "a", "rev": "1"}, {"name": "go", "repo": "b", "rev": "2"}]}`, `duplicate name "go"`},
		{"absolute path", `{"grammars": [{"name": "go", "repo": "a", "rev": "1", "path": "/etc"}]}`, "path must be relative"},
		{"dotdot path", `{"grammars": [{"name": "go", "repo": "a", "rev": "1", "path": "../up"}]}`, "path must be relative"},
		{"unknown field", `{"grammars": [{"name": "go", "repo": "a", "rev": "1", "bogus": true}]}`, "malformed manifest JSON"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.json))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), c.wantErr) {
				t.Errorf("error = %v, want substring %q", err, c.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grammars.json")
	if err := os.WriteFile(path, []byte(goodManifest), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Grammars) != 4 {
		t.Errorf("got %d grammars, want 4", len(m.Grammars))
	}
}
