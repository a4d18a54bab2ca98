// Package config loads and saves the TOML-backed tunables a kernel host is
// configured from, layered over code defaults.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// UserConfig is the on-disk configuration for a kernel host.
type UserConfig struct {
	Host struct {
		// TickRate is the number of ticks per second the host aims for.
		TickRate int
		// ChunkCapacity is the row capacity of every entity store chunk.
		ChunkCapacity int
	}
	Module struct {
		// FailureThreshold is the number of consecutive tick failures
		// that opens a module's circuit breaker.
		FailureThreshold int
		// CooldownTicks is how long an open breaker waits before its
		// next half-open probe.
		CooldownTicks uint64
		// SoDMaxConcurrent is loaded and saved with the file but applied
		// nowhere: kernel.FromUserConfig does not read it, and
		// module.Scheduler bounds every on-demand pool at 4 checkouts.
		SoDMaxConcurrent int64
	}
	Lifecycle struct {
		// TimeoutFrames bounds how long a construction/destruction round
		// waits for every participant's acknowledgement.
		TimeoutFrames uint64
	}
}

// Default returns a UserConfig with every field set to its default value.
func Default() UserConfig {
	var c UserConfig
	c.Host.TickRate = 60
	c.Host.ChunkCapacity = 1024
	c.Module.FailureThreshold = 3
	c.Module.CooldownTicks = 60
	c.Module.SoDMaxConcurrent = 4
	c.Lifecycle.TimeoutFrames = 300
	return c
}

// Load reads and parses path as TOML over Default's values. A missing file
// is not an error: Load returns the defaults unchanged.
func Load(path string) (UserConfig, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

// Save writes c to path as TOML, creating or truncating the file.
func Save(path string, c UserConfig) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
