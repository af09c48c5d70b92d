package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const goodHash = "a665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("validates cleanly", func(t *testing.T) {
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("max attempts default is 5", func(t *testing.T) {
		if cfg.MaxAttempts != 5 {
			t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
		}
	})

	t.Run("window default is 300s", func(t *testing.T) {
		if cfg.WindowSeconds != 300 {
			t.Errorf("WindowSeconds = %d, want 300", cfg.WindowSeconds)
		}
		if cfg.Window() != 300*time.Second {
			t.Errorf("Window() = %v, want 5m", cfg.Window())
		}
	})

	t.Run("algorithm default is sha256", func(t *testing.T) {
		if cfg.HashAlgorithm != AlgoSHA256 {
			t.Errorf("HashAlgorithm = %q, want %q", cfg.HashAlgorithm, AlgoSHA256)
		}
	})

	t.Run("single overwrite pass by default", func(t *testing.T) {
		if cfg.WipePasses != 1 {
			t.Errorf("WipePasses = %d, want 1", cfg.WipePasses)
		}
	})

	t.Run("success does not reset failures by default", func(t *testing.T) {
		if cfg.ResetOnSuccess {
			t.Error("ResetOnSuccess = true, want false")
		}
	})

	t.Run("flash verification disabled by default", func(t *testing.T) {
		if cfg.FlashHash != "" {
			t.Errorf("FlashHash = %q, want empty", cfg.FlashHash)
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Protection {
		cfg := DefaultConfig()
		cfg.FlashHash = goodHash
		return cfg
	}

	t.Run("max_attempts must be positive", func(t *testing.T) {
		cfg := valid()
		cfg.MaxAttempts = 0
		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
		}
		if err == nil || !strings.Contains(err.Error(), "max_attempts") {
			t.Errorf("error %v does not name max_attempts", err)
		}
	})

	t.Run("window_seconds must be positive", func(t *testing.T) {
		cfg := valid()
		cfg.WindowSeconds = 0
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("wipe_passes must be positive", func(t *testing.T) {
		cfg := valid()
		cfg.WipePasses = 0
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("unknown algorithm rejected", func(t *testing.T) {
		cfg := valid()
		cfg.HashAlgorithm = "md5"
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("malformed flash hash rejected", func(t *testing.T) {
		cfg := valid()
		cfg.FlashHash = "deadbeef"
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("uppercase flash hash accepted", func(t *testing.T) {
		cfg := valid()
		cfg.FlashHash = strings.ToUpper(goodHash)
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("empty flash hash accepted", func(t *testing.T) {
		cfg := valid()
		cfg.FlashHash = ""
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})
}

func TestLoad(t *testing.T) {
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "protection.yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		return path
	}

	t.Run("full config", func(t *testing.T) {
		cfg, err := Load(write(t, `
max_attempts: 3
window_seconds: 60
reset_on_success: true
flash_hash: `+goodHash+`
hash_algorithm: blake3
wipe_passes: 3
protected_paths:
  - /data/wallet.dat
  - /data/keys
`))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.MaxAttempts != 3 {
			t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
		}
		if cfg.WindowSeconds != 60 {
			t.Errorf("WindowSeconds = %d, want 60", cfg.WindowSeconds)
		}
		if !cfg.ResetOnSuccess {
			t.Error("ResetOnSuccess = false, want true")
		}
		if cfg.HashAlgorithm != AlgoBLAKE3 {
			t.Errorf("HashAlgorithm = %q, want blake3", cfg.HashAlgorithm)
		}
		if cfg.WipePasses != 3 {
			t.Errorf("WipePasses = %d, want 3", cfg.WipePasses)
		}
		if len(cfg.ProtectedPaths) != 2 {
			t.Errorf("len(ProtectedPaths) = %d, want 2", len(cfg.ProtectedPaths))
		}
	})

	t.Run("absent fields keep defaults", func(t *testing.T) {
		cfg, err := Load(write(t, "max_attempts: 2\n"))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.MaxAttempts != 2 {
			t.Errorf("MaxAttempts = %d, want 2", cfg.MaxAttempts)
		}
		if cfg.WindowSeconds != 300 {
			t.Errorf("WindowSeconds = %d, want default 300", cfg.WindowSeconds)
		}
		if cfg.HashAlgorithm != AlgoSHA256 {
			t.Errorf("HashAlgorithm = %q, want default sha256", cfg.HashAlgorithm)
		}
	})

	t.Run("empty file yields defaults", func(t *testing.T) {
		cfg, err := Load(write(t, ""))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.MaxAttempts != 5 {
			t.Errorf("MaxAttempts = %d, want default 5", cfg.MaxAttempts)
		}
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		if _, err := Load(write(t, "bogus_knob: 1\n")); err == nil {
			t.Error("Load() error = nil, want error for unknown key")
		}
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		_, err := Load(write(t, "max_attempts: 0\n"))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("Load() error = nil, want error")
		}
	})
}
