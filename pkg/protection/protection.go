// Package protection composes brute-force lockout detection, flash image
// integrity verification and secure destruction of protected paths. A
// detected violation from either mechanism, or an explicit manual
// trigger, wipes every registered path and hands the complete outcome to
// the caller-supplied callback exactly once per destruct, synchronously,
// before the triggering call returns.
package protection

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Real-Fruit-Snacks/Breakwater/pkg/config"
	"github.com/Real-Fruit-Snacks/Breakwater/pkg/integrity"
	"github.com/Real-Fruit-Snacks/Breakwater/pkg/lockout"
	"github.com/Real-Fruit-Snacks/Breakwater/pkg/version"
	"github.com/Real-Fruit-Snacks/Breakwater/pkg/wipe"
)

// ErrNoFlashHash is returned by VerifyFlash when no expected digest was
// configured. An unconfigured check is a caller error, not a violation,
// so it never triggers destruction.
var ErrNoFlashHash = errors.New("protection: no flash hash configured")

// OutcomeFunc receives the complete outcome of one destruct invocation.
type OutcomeFunc func(wipe.Outcome)

// Protection is the coordinator. Instances are caller-owned and safe for
// concurrent use; construct one and inject it wherever attempts are
// recorded or images verified.
//
// The instance moves from Normal to Destroyed on the first trigger.
// Destroyed is terminal for the paths that were wiped, but the instance
// itself remains callable: later destructs report those paths as skipped.
type Protection struct {
	cfg      *config.Protection
	tracker  *lockout.Tracker
	verifier *integrity.Verifier // nil when verification is disabled
	wiper    *wipe.Manager

	onDestruct OutcomeFunc
	log        zerolog.Logger

	mu        sync.Mutex
	destroyed bool
	lastLog   string // in-memory only log of trigger reason
}

// New builds a protection instance. The configuration is validated first;
// an invalid threshold, window or digest aborts construction. onDestruct
// may be nil. Paths listed in cfg.ProtectedPaths are registered before
// New returns.
func New(cfg *config.Protection, onDestruct OutcomeFunc, log zerolog.Logger) (*Protection, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var verifier *integrity.Verifier
	if cfg.FlashHash != "" {
		algo, err := integrity.ParseAlgorithm(cfg.HashAlgorithm)
		if err != nil {
			return nil, err
		}
		verifier, err = integrity.New(cfg.FlashHash, algo)
		if err != nil {
			return nil, err
		}
	}

	p := &Protection{
		cfg:        cfg,
		tracker:    lockout.New(cfg.MaxAttempts, cfg.Window(), cfg.ResetOnSuccess),
		verifier:   verifier,
		wiper:      wipe.NewManager(cfg.WipePasses, log),
		onDestruct: onDestruct,
		log:        log,
	}
	for _, path := range cfg.ProtectedPaths {
		p.wiper.Register(path)
	}

	log.Debug().
		Str("version", version.String()).
		Int("max_attempts", cfg.MaxAttempts).
		Int("window_seconds", cfg.WindowSeconds).
		Bool("flash_verification", verifier != nil).
		Msg("protection initialized")
	return p, nil
}

// RegisterProtectedPath adds path to the set wiped on destruct.
// Registration is idempotent.
func (p *Protection) RegisterProtectedPath(path string) {
	p.wiper.Register(path)
}

// RecordAttempt records an access attempt for the principal and reports
// whether destruct fired. A failed attempt that brings the principal's
// in-window failure count to the threshold triggers destruction
// synchronously before RecordAttempt returns.
func (p *Protection) RecordAttempt(principal string, succeeded bool) bool {
	if !p.tracker.Record(principal, succeeded) {
		return false
	}

	p.log.Error().
		Str("principal", principal).
		Int("max_attempts", p.cfg.MaxAttempts).
		Int("window_seconds", p.cfg.WindowSeconds).
		Msg("brute-force threshold exceeded, triggering destruct")
	p.trigger(fmt.Sprintf("brute-force lockout for principal %q", principal))
	return true
}

// VerifyFlash checks the flash image at path against the configured
// digest. It returns (true, nil) on a match, (false, nil) on a digest
// mismatch and (false, err) when the image cannot be read; mismatch and
// read failure both trigger destruction but remain distinguishable.
func (p *Protection) VerifyFlash(path string) (bool, error) {
	if p.verifier == nil {
		return false, ErrNoFlashHash
	}

	match, err := p.verifier.Verify(path)
	if err != nil {
		p.log.Error().Err(err).Str("path", path).Msg("flash image unreadable, triggering destruct")
		p.trigger(fmt.Sprintf("flash image unreadable: %v", err))
		return false, err
	}
	if !match {
		p.log.Error().
			Str("path", path).
			Str("algorithm", p.verifier.Algorithm().String()).
			Msg("flash verification failed, triggering destruct")
		p.trigger(fmt.Sprintf("flash image digest mismatch for %s", path))
		return false, nil
	}

	p.log.Info().Str("path", path).Msg("flash verification passed")
	return true, nil
}

// MemoryDestruct wipes all registered protected paths immediately,
// bypassing the attempt and integrity checks.
func (p *Protection) MemoryDestruct() wipe.Outcome {
	return p.trigger("manual destruct")
}

// Destroyed reports whether destruction has been triggered at least once.
func (p *Protection) Destroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

// TriggerReason returns the reason destruction was last triggered, or an
// empty string before the first trigger. Stored in memory only.
func (p *Protection) TriggerReason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastLog
}

// trigger runs the wipe and invokes the callback exactly once with the
// full outcome before returning.
func (p *Protection) trigger(reason string) wipe.Outcome {
	p.mu.Lock()
	p.destroyed = true
	p.lastLog = fmt.Sprintf("[%s] destruct triggered: %s",
		time.Now().UTC().Format(time.RFC3339), reason)
	p.mu.Unlock()

	outcome := p.wiper.Destruct()
	p.log.Error().
		Str("event_id", outcome.EventID).
		Str("reason", reason).
		Int("paths", len(outcome.Results)).
		Msg("destruct completed")

	if p.onDestruct != nil {
		p.onDestruct(outcome)
	}
	return outcome
}
