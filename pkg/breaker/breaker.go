// Package breaker tracks per-backend health as a circuit breaker so a
// provider that keeps failing is skipped for a cooldown period instead of
// burning attempts on every request. State is persisted per backend
// through the transactional audit store, so concurrent requests and
// separate processes observe the same circuit.
package breaker

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/zen-systems/reviewroute/pkg/audit"
)

// State is a circuit's position in the closed -> open -> half-open cycle.
type State string

const (
	// StateClosed admits every attempt.
	StateClosed State = "closed"
	// StateOpen rejects attempts until the reset timeout elapses.
	StateOpen State = "open"
	// StateHalfOpen admits a bounded number of probe attempts.
	StateHalfOpen State = "half_open"
)

// Settings control when a circuit trips and recovers.
type Settings struct {
	// FailureThreshold is the failure count within CountWindow that
	// trips the circuit open.
	FailureThreshold int
	// ResetTimeout is how long an open circuit waits before admitting
	// probes.
	ResetTimeout time.Duration
	// CountWindow bounds how long failures accumulate toward the
	// threshold; a failure after a quiet window restarts the count.
	CountWindow time.Duration
	// HalfOpenMaxProbes caps concurrent probes while half-open.
	HalfOpenMaxProbes int
}

// DefaultSettings returns the standard trip/recovery thresholds.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold:  5,
		ResetTimeout:      60 * time.Second,
		CountWindow:       300 * time.Second,
		HalfOpenMaxProbes: 1,
	}
}

// circuit is the persisted per-backend state.
type circuit struct {
	Backend        string    `json:"backend"`
	State          State     `json:"state"`
	FailureCount   int       `json:"failure_count"`
	LastFailure    time.Time `json:"last_failure,omitempty"`
	OpenedAt       time.Time `json:"opened_at,omitempty"`
	HalfOpenProbes int       `json:"half_open_probes"`
}

// Breaker manages one circuit per backend, each in its own state file
// under dir.
type Breaker struct {
	dir      string
	settings Settings
	logger   func(format string, args ...any)
	now      func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithSettings overrides the trip/recovery thresholds.
func WithSettings(s Settings) Option {
	return func(b *Breaker) {
		b.settings = s
	}
}

// WithLogger sets the log sink.
func WithLogger(logger func(format string, args ...any)) Option {
	return func(b *Breaker) {
		b.logger = logger
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// New creates a breaker persisting circuit state under dir.
func New(dir string, opts ...Option) *Breaker {
	b := &Breaker{
		dir:      dir,
		settings: DefaultSettings(),
		logger:   log.Printf,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		b.logger("[breaker] cannot create state dir %s: %v", dir, err)
	}
	return b
}

// Allow reports whether an attempt against backend may proceed, applying
// the open -> half-open transition when the reset timeout has elapsed. A
// storage error fails open with a log line: the breaker is advisory and
// must never be the reason a healthy cascade stops routing.
func (b *Breaker) Allow(backend string) bool {
	allowed := true
	err := b.transact(backend, func(c *circuit) bool {
		switch c.State {
		case StateOpen:
			if b.now().Sub(c.OpenedAt) < b.settings.ResetTimeout {
				allowed = false
				return false
			}
			c.State = StateHalfOpen
			c.HalfOpenProbes = 1
			b.logger("[breaker] %s: open -> half_open (reset timeout elapsed)", backend)
			return true
		case StateHalfOpen:
			if c.HalfOpenProbes >= b.settings.HalfOpenMaxProbes {
				allowed = false
				return false
			}
			c.HalfOpenProbes++
			return true
		}
		return false
	})
	if err != nil {
		b.logger("[breaker] %s: state unavailable (%v); allowing attempt", backend, err)
		return true
	}
	return allowed
}

// RecordFailure counts a failed attempt, tripping the circuit open at the
// threshold and re-opening it on a failed probe.
func (b *Breaker) RecordFailure(backend string) {
	err := b.transact(backend, func(c *circuit) bool {
		now := b.now()
		switch c.State {
		case StateHalfOpen:
			c.State = StateOpen
			c.OpenedAt = now
			c.HalfOpenProbes = 0
			b.logger("[breaker] %s: half_open -> open (probe failed)", backend)
		case StateClosed:
			if !c.LastFailure.IsZero() && now.Sub(c.LastFailure) > b.settings.CountWindow {
				c.FailureCount = 0
			}
			c.FailureCount++
			c.LastFailure = now
			if c.FailureCount >= b.settings.FailureThreshold {
				c.State = StateOpen
				c.OpenedAt = now
				b.logger("[breaker] %s: closed -> open (%d failures)", backend, c.FailureCount)
			}
		default:
			c.LastFailure = now
		}
		return true
	})
	if err != nil {
		b.logger("[breaker] %s: failed to record failure: %v", backend, err)
	}
}

// RecordSuccess resets the circuit: a successful probe closes it, a
// success while closed clears the failure count.
func (b *Breaker) RecordSuccess(backend string) {
	err := b.transact(backend, func(c *circuit) bool {
		switch c.State {
		case StateHalfOpen:
			*c = circuit{Backend: backend, State: StateClosed}
			b.logger("[breaker] %s: half_open -> closed (probe succeeded)", backend)
			return true
		case StateClosed:
			if c.FailureCount == 0 {
				return false
			}
			c.FailureCount = 0
			c.LastFailure = time.Time{}
			return true
		}
		return false
	})
	if err != nil {
		b.logger("[breaker] %s: failed to record success: %v", backend, err)
	}
}

// CurrentState returns the persisted state for a backend, for inspection.
func (b *Breaker) CurrentState(backend string) (State, error) {
	store := b.store(backend)
	data, err := store.Load()
	if err != nil {
		return "", err
	}
	defer store.Release()

	c, err := decode(backend, data)
	if err != nil {
		return "", err
	}
	return c.State, nil
}

// transact runs one read-modify-write cycle under the store's lock. The
// mutation reports whether the state changed and must be persisted.
func (b *Breaker) transact(backend string, mutate func(*circuit) bool) error {
	store := b.store(backend)
	old, err := store.Load()
	if err != nil {
		return err
	}
	defer store.Release()

	c, err := decode(backend, old)
	if err != nil {
		return err
	}
	if !mutate(c) {
		return nil
	}

	updated, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return store.CompareAndSwap(old, updated)
}

func (b *Breaker) store(backend string) audit.Store {
	return audit.NewFileStore(filepath.Join(b.dir, "breaker-"+backend+".json"))
}

// decode parses persisted state, treating a missing or corrupt file as a
// fresh closed circuit.
func decode(backend string, data []byte) (*circuit, error) {
	c := &circuit{Backend: backend, State: StateClosed}
	if len(data) == 0 {
		return c, nil
	}
	var stored circuit
	if err := json.Unmarshal(data, &stored); err != nil || stored.Backend != backend || stored.State == "" {
		return &circuit{Backend: backend, State: StateClosed}, nil
	}
	if err := validState(stored.State); err != nil {
		return &circuit{Backend: backend, State: StateClosed}, nil
	}
	return &stored, nil
}

func validState(s State) error {
	switch s {
	case StateClosed, StateOpen, StateHalfOpen:
		return nil
	}
	return fmt.Errorf("unknown circuit state %q", s)
}
