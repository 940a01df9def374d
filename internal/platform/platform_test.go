package platform

import (
	"strings"
	"testing"
)

func TestAll_EightTargets(t *testing.T) {
	targets := All()
	if len(targets) != 8 {
		t.Fatalf("All() returned %d targets, want 8", len(targets))
	}
	seen := make(map[string]bool, len(targets))
	for _, target := range targets {
		id := target.ID()
		if seen[id] {
			t.Errorf("duplicate target id %q", id)
		}
		seen[id] = true
	}
}

func TestTarget_ID(t *testing.T) {
	cases := []struct {
		target Target
		want   string
	}{
		{Target{Linux, Amd64, LibcGlibc}, "linux-x86_64-glibc"},
		{Target{Linux, Arm64, LibcMusl}, "linux-aarch64-musl"},
		{Target{MacOS, Arm64, LibcNone}, "macos-aarch64"},
		{Target{Windows, Amd64, LibcNone}, "windows-x86_64"},
	}
	for _, c := range cases {
		if got := c.target.ID(); got != c.want {
			t.Errorf("ID() = %q, want %q", got, c.want)
		}
	}
}

func TestTarget_Triple(t *testing.T) {
	cases := []struct {
		target Target
		want   string
	}{
		{Target{Linux, Amd64, LibcGlibc}, "x86_64-linux-gnu"},
		{Target{Linux, Arm64, LibcMusl}, "aarch64-linux-musl"},
		{Target{MacOS, Amd64, LibcNone}, "x86_64-macos"},
		{Target{Windows, Arm64, LibcNone}, "aarch64-windows-gnu"},
	}
	for _, c := range cases {
		if got := c.target.Triple(); got != c.want {
			t.Errorf("Triple(%s) = %q, want %q", c.target.ID(), got, c.want)
		}
	}
}

func TestTarget_Filenames(t *testing.T) {
	target := Target{Linux, Amd64, LibcGlibc}
	if got, want := target.ArchiveName(), "libtree-sitter-parsers-all-linux-x86_64-glibc.a"; got != want {
		t.Errorf("ArchiveName() = %q, want %q", got, want)
	}
	if got, want := target.MetadataName(), "grammars-linux-x86_64-glibc.json"; got != want {
		t.Errorf("MetadataName() = %q, want %q", got, want)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, target := range All() {
		parsed, err := Parse(target.ID())
		if err != nil {
			t.Fatalf("Parse(%q): %v", target.ID(), err)
		}
		if parsed != target {
			t.Errorf("Parse(%q) = %+v, want %+v", target.ID(), parsed, target)
		}
	}
}

func TestParse_Unknown(t *testing.T) {
	_, err := Parse("freebsd-x86_64")
	if err == nil {
		t.Fatal("Parse should fail on unknown platform")
	}
	if !strings.Contains(err.Error(), "freebsd-x86_64") {
		t.Errorf("error should name the bad platform, got: %v", err)
	}
}

func TestHost_MatchesSupportedMatrix(t *testing.T) {
	host, err := Host()
	if err != nil {
		t.Skipf("host platform unsupported: %v", err)
	}
	if _, err := Parse(host.ID()); err != nil {
		t.Errorf("host target %q is not in the supported matrix", host.ID())
	}
}
