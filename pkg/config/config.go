// Package config holds the construction-time configuration for the
// protection subsystem: lockout thresholds, the expected flash digest,
// wipe behavior and the initial protected-path list.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Real-Fruit-Snacks/Breakwater/internal/shared"
)

// ErrInvalidConfig is wrapped by every validation failure. Construction of
// the protection subsystem aborts when Validate returns a non-nil error.
var ErrInvalidConfig = errors.New("invalid protection config")

// Supported integrity digest algorithms.
const (
	AlgoSHA256 = "sha256"
	AlgoBLAKE3 = "blake3"
)

// Protection configures a single protection instance. Instances are
// caller-owned; there is no package-level singleton.
type Protection struct {
	// Lockout: failed attempts per principal before destruct triggers,
	// counted over a trailing window.
	MaxAttempts   int `yaml:"max_attempts"`
	WindowSeconds int `yaml:"window_seconds"`

	// When true, a successful attempt clears the principal's failure
	// history. The default keeps prior failures counting.
	ResetOnSuccess bool `yaml:"reset_on_success"`

	// Expected hex digest of the authorized flash image. Empty disables
	// flash verification.
	FlashHash string `yaml:"flash_hash"`

	// Digest algorithm for flash verification: "sha256" (default) or
	// "blake3". Both produce 256-bit digests.
	HashAlgorithm string `yaml:"hash_algorithm"`

	// Number of random overwrite passes before a protected file is
	// deleted. One synced pass is the documented default; this is an
	// anti-undelete mitigation, not forensic-grade erasure.
	WipePasses int `yaml:"wipe_passes"`

	// Paths registered for destruction at construction time. More can be
	// registered later through the protection instance.
	ProtectedPaths []string `yaml:"protected_paths"`
}

// DefaultConfig returns a configuration with sane defaults: five failed
// attempts in five minutes, SHA-256 verification, a single overwrite pass.
func DefaultConfig() *Protection {
	return &Protection{
		MaxAttempts:   5,
		WindowSeconds: 300,
		HashAlgorithm: AlgoSHA256,
		WipePasses:    1,
	}
}

// Window returns the sliding window as a duration.
func (c *Protection) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Validate checks the configuration. Every failure wraps ErrInvalidConfig.
func (c *Protection) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("config: %w: max_attempts must be >= 1, got %d", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.WindowSeconds < 1 {
		return fmt.Errorf("config: %w: window_seconds must be >= 1, got %d", ErrInvalidConfig, c.WindowSeconds)
	}
	if c.WipePasses < 1 {
		return fmt.Errorf("config: %w: wipe_passes must be >= 1, got %d", ErrInvalidConfig, c.WipePasses)
	}
	switch c.HashAlgorithm {
	case "", AlgoSHA256, AlgoBLAKE3:
	default:
		return fmt.Errorf("config: %w: unknown hash_algorithm %q", ErrInvalidConfig, c.HashAlgorithm)
	}
	if c.FlashHash != "" && !shared.IsDigest(c.FlashHash) {
		return fmt.Errorf("config: %w: flash_hash must be %d hex characters", ErrInvalidConfig, shared.HexDigestLen)
	}
	return nil
}

// Load reads a YAML config file, applies it over DefaultConfig and
// validates the result. Unknown keys are rejected.
func Load(path string) (*Protection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
