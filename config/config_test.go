package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/simkernel/kernel/config"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.toml")
	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("expected a missing config file to not be an error, got %v", err)
	}
	if c != config.Default() {
		t.Fatalf("expected defaults for a missing file, got %+v", c)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.toml")
	c := config.Default()
	c.Host.TickRate = 30
	c.Module.FailureThreshold = 5

	if err := config.Save(path, c); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Host.TickRate != 30 {
		t.Fatalf("expected TickRate 30 after round trip, got %d", got.Host.TickRate)
	}
	if got.Module.FailureThreshold != 5 {
		t.Fatalf("expected FailureThreshold 5 after round trip, got %d", got.Module.FailureThreshold)
	}
	if got.Lifecycle.TimeoutFrames != c.Lifecycle.TimeoutFrames {
		t.Fatalf("expected untouched fields to round trip unchanged, got %+v", got)
	}
}

func TestLoadOverlaysPartialTOMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.toml")
	partial := []byte("[Host]\nTickRate = 20\n")
	if err := os.WriteFile(path, partial, 0o644); err != nil {
		t.Fatalf("write partial config: %v", err)
	}

	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Host.TickRate != 20 {
		t.Fatalf("expected overridden TickRate 20, got %d", c.Host.TickRate)
	}
	if c.Module.SoDMaxConcurrent != config.Default().Module.SoDMaxConcurrent {
		t.Fatalf("expected unreferenced fields to keep their default, got %+v", c)
	}
}
