package preflight_test

import (
	"context"
	"path/filepath"
	"testing"

	"fieldtag/internal/objectstore"
	"fieldtag/internal/preflight"
	"fieldtag/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("Staging directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got %#v", result)
	}

	missing := preflight.CheckDirectoryAccess("Staging directory", filepath.Join(dir, "absent"))
	if missing.Passed {
		t.Fatalf("expected failure for missing dir, got %#v", missing)
	}
}

func TestCheckFreeSpaceZeroMinimumPasses(t *testing.T) {
	result := preflight.CheckFreeSpace("Staging free space", t.TempDir(), 0)
	if !result.Passed {
		t.Fatalf("expected pass with no minimum, got %#v", result)
	}
}

func TestRunAllReportsObjectStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	objects, err := objectstore.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}

	results := preflight.RunAll(context.Background(), cfg, objects)
	if len(results) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(results))
	}
	for _, result := range results {
		if !result.Passed {
			t.Fatalf("expected all checks to pass, got %#v", result)
		}
	}
}
