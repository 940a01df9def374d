package main

import (
	"errors"
	"testing"

	"tsforge/internal/buildpipeline"
	"tsforge/internal/platform"
)

func TestResolveTargetsDefaultsToEmpty(t *testing.T) {
	targets, err := resolveTargets(nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 0 {
		t.Fatalf("expected no targets (host default), got %d", len(targets))
	}
}

func TestResolveTargetsAll(t *testing.T) {
	targets, err := resolveTargets(nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != len(platform.All()) {
		t.Fatalf("expected the full matrix, got %d targets", len(targets))
	}
}

func TestResolveTargetsDeduplicates(t *testing.T) {
	targets, err := resolveTargets([]string{"linux-x86_64-glibc", "linux-x86_64-glibc", "macos-aarch64"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 unique targets, got %d", len(targets))
	}
}

func TestResolveTargetsRejectsUnknownID(t *testing.T) {
	if _, err := resolveTargets([]string{"freebsd-x86_64"}, false); err == nil {
		t.Fatal("expected an error for an unknown platform id")
	}
}

func TestFailureCountSpansStages(t *testing.T) {
	result := buildpipeline.Result{
		FetchFailures: []buildpipeline.GrammarFailure{{Name: "go"}},
		Platforms: []buildpipeline.PlatformSummary{
			{Failed: []buildpipeline.GrammarFailure{{Name: "rust"}, {Name: "cpp"}}},
			{MergeErr: errors.New("ar exploded")},
		},
	}
	if got := failureCount(result); got != 3 {
		t.Fatalf("failureCount = %d, want 3", got)
	}
}
