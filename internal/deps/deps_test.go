package deps

import (
	"os"
	"path/filepath"
	"testing"

	"spacesaver/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestRequiredBinariesReflectsConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.EncoderBinary = "my-encoder"
	cfg.Tools.FFProbeBinary = "my-ffprobe"

	reqs := RequiredBinaries(&cfg)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "my-encoder" {
		t.Fatalf("expected encoder command override, got %q", reqs[0].Command)
	}
	if reqs[1].Command != "my-ffprobe" {
		t.Fatalf("expected ffprobe command override, got %q", reqs[1].Command)
	}

	results := CheckBinaries(reqs)
	for _, res := range results {
		if res.Available {
			t.Fatalf("expected fabricated binary %q to be unavailable", res.Command)
		}
	}
}
