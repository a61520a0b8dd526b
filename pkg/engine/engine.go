// Package engine walks a route table in order, invoking backends under
// deadlines with bounded retries, and validating every output against the
// review contract before accepting it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zen-systems/reviewroute/pkg/registry"
	"github.com/zen-systems/reviewroute/pkg/review"
	"github.com/zen-systems/reviewroute/pkg/route"
)

// DefaultMaxTotalAttempts caps total backend invocations across the whole
// table, independent of per-route retry counts.
const DefaultMaxTotalAttempts = 12

// ErrExhausted reports that every route was attempted and failed. Callers
// treat this and a hard-fail route failure identically: both are terminal.
var ErrExhausted = errors.New("all routes exhausted")

// RouteFailedError reports a hard-fail route aborting the request.
type RouteFailedError struct {
	Route   int
	Backend string
	Err     error
}

func (e *RouteFailedError) Error() string {
	return fmt.Sprintf("route %d (%s) failed with hard_fail policy: %v", e.Route, e.Backend, e.Err)
}

func (e *RouteFailedError) Unwrap() error { return e.Err }

// Outcome is the engine's final state for one request.
type Outcome struct {
	Result   *review.Result
	Attempts []Attempt
	Phase    Phase
}

// HealthGate admits or rejects attempts per backend based on its recent
// failure history, and is told how each attempt turned out.
type HealthGate interface {
	Allow(backend string) bool
	RecordFailure(backend string)
	RecordSuccess(backend string)
}

// Engine executes review requests against a route table. An Engine is
// stateless across requests; all per-request state lives in the Outcome.
type Engine struct {
	registry    *registry.Registry
	logger      func(format string, args ...any)
	maxAttempts int
	health      HealthGate
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's log sink.
func WithLogger(logger func(format string, args ...any)) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxTotalAttempts overrides the global attempt cap.
func WithMaxTotalAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithHealthGate installs a per-backend circuit breaker. Routes whose
// backend the gate rejects are skipped like a missing capability.
func WithHealthGate(gate HealthGate) Option {
	return func(e *Engine) {
		e.health = gate
	}
}

// New creates an engine bound to a registry.
func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:    reg,
		logger:      log.Printf,
		maxAttempts: DefaultMaxTotalAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute walks the table in declared order and returns the first result
// that passes the review contract. On failure the returned Outcome still
// carries the full attempt trail.
func (e *Engine) Execute(ctx context.Context, table *route.Table, req review.Request, budget review.PassBudget) (*Outcome, error) {
	outcome := &Outcome{Phase: Pending}
	totalAttempts := 0

	for i, rt := range table.Routes() {
		matched, err := e.evalConditions(i, rt, table, req)
		if err != nil {
			return outcome, err
		}
		if !matched {
			continue
		}

		backend, err := e.registry.Backend(rt.Backend())
		if err != nil {
			if table.IsCustom() {
				// Validation catches this for custom tables; reaching it
				// here means the table was never validated.
				return outcome, err
			}
			e.logger("[engine] route %d: %v; skipping (default table)", i, err)
			continue
		}

		if capability := rt.RequiredCapability(); capability != "" && !e.registry.BackendSupports(rt.Backend(), capability) {
			e.logger("[engine] route %d: backend %s lacks capability %q; skipping", i, rt.Backend(), capability)
			continue
		}

		if e.health != nil && !e.health.Allow(rt.Backend()) {
			e.logger("[engine] route %d: backend %s circuit open; skipping", i, rt.Backend())
			continue
		}

		routeErr := error(nil)
		attempts := rt.Retries() + 1
		for attempt := 1; attempt <= attempts; attempt++ {
			if totalAttempts >= e.maxAttempts {
				e.logger("[engine] global attempt cap (%d) reached", e.maxAttempts)
				outcome.Phase = Exhausted
				return outcome, fmt.Errorf("%w: attempt cap %d reached", ErrExhausted, e.maxAttempts)
			}
			totalAttempts++

			result, record := e.attemptRoute(ctx, i, rt, backend, req, budget)
			record.Attempt = attempt
			outcome.Attempts = append(outcome.Attempts, record)
			outcome.Phase = RouteAttempted

			if result != nil {
				if e.health != nil {
					e.health.RecordSuccess(rt.Backend())
				}
				outcome.Result = result
				outcome.Phase = Resolved
				return outcome, nil
			}
			if ctx.Err() != nil {
				// Parent context gone; retrying cannot help.
				return outcome, ctx.Err()
			}
			if e.health != nil {
				e.health.RecordFailure(rt.Backend())
			}
			routeErr = errors.New(record.Error)
			e.logger("[engine] route %d (%s) attempt %d/%d failed (%s): %s",
				i, rt.Backend(), attempt, attempts, record.Outcome, record.Error)
		}

		if rt.FailMode() == route.FailModeHardFail {
			outcome.Phase = Exhausted
			return outcome, &RouteFailedError{Route: i, Backend: rt.Backend(), Err: routeErr}
		}
		e.logger("[engine] route %d (%s) exhausted retries; falling through: %v", i, rt.Backend(), routeErr)
	}

	outcome.Phase = Exhausted
	return outcome, ErrExhausted
}

// attemptRoute runs one backend invocation under the route's deadline and
// validates its output. A timeout and a contract rejection are both just
// failed attempts.
func (e *Engine) attemptRoute(ctx context.Context, index int, rt route.Route, backend registry.Backend, req review.Request, budget review.PassBudget) (result *review.Result, record Attempt) {
	record = Attempt{
		Route:      index,
		Backend:    rt.Backend(),
		Conditions: rt.Conditions(),
	}
	start := time.Now()
	defer func() {
		record.Duration = time.Since(start)
		record.DurationMillis = record.Duration.Milliseconds()
	}()

	attemptCtx, cancel := context.WithTimeout(ctx, rt.Timeout())
	defer cancel()

	raw, err := backend.Invoke(attemptCtx, req, budget)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			record.Outcome = OutcomeTimeout
			record.Error = fmt.Sprintf("deadline %s exceeded", rt.Timeout())
		} else {
			record.Outcome = OutcomeBackendError
			record.Error = err.Error()
		}
		return nil, record
	}

	validated, err := review.ValidateOutput(raw)
	if err != nil {
		record.Outcome = OutcomeContractRejected
		record.Error = err.Error()
		return nil, record
	}

	validated.Backend = rt.Backend()
	validated.Route = index
	record.Outcome = OutcomeSuccess
	e.logger("[engine] route %d (%s) succeeded: verdict=%s", index, rt.Backend(), validated.Verdict)
	return validated, record
}

// evalConditions AND-evaluates a route's conditions. Names are trimmed;
// an empty token is a configuration error. Unknown names evaluate false
// with a warning for the default table and are an error for custom tables.
func (e *Engine) evalConditions(index int, rt route.Route, table *route.Table, req review.Request) (bool, error) {
	conditions := rt.Conditions()
	for _, name := range conditions {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return false, fmt.Errorf("route %d: empty condition token", index)
		}
		cond, err := e.registry.Condition(trimmed)
		if err != nil {
			if table.IsCustom() {
				return false, fmt.Errorf("route %d: %w", index, err)
			}
			e.logger("[engine] route %d: unknown condition %q evaluates false (default table)", index, trimmed)
			return false, nil
		}
		if !cond.Evaluate(req) {
			e.logger("[engine] route %d (%s): condition %q not met", index, rt.Backend(), trimmed)
			return false, nil
		}
	}
	return true, nil
}
