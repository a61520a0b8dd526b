// Package multipass decides how many analysis passes a request gets and
// with what token budgets, based on the deterministic classification
// reconciled against the signal reported by the first pass.
package multipass

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zen-systems/reviewroute/pkg/audit"
	"github.com/zen-systems/reviewroute/pkg/complexity"
	"github.com/zen-systems/reviewroute/pkg/engine"
	"github.com/zen-systems/reviewroute/pkg/review"
	"github.com/zen-systems/reviewroute/pkg/route"
	"github.com/zen-systems/reviewroute/pkg/tokens"
)

// DefaultPassCount is the fixed pass sequence length.
const DefaultPassCount = 3

// passFocus names each pass's emphasis, in order.
var passFocus = []string{"overview", "correctness", "risk"}

// RunResult is the orchestrator's outcome for one request.
type RunResult struct {
	Final         *review.Result
	Deterministic complexity.Level
	Reported      complexity.Level
	Level         complexity.Level
	Passes        []PassOutcome
}

// PassOutcome records one executed pass.
type PassOutcome struct {
	Pass     int
	Focus    string
	Budget   review.PassBudget
	Result   *review.Result
	Attempts []engine.Attempt
	Usage    tokens.Usage
	Duration time.Duration
}

// Orchestrator wraps the execution engine with pass planning. It is safe
// to reuse across requests: the route table is rebuilt fresh per run.
type Orchestrator struct {
	loader   *route.Loader
	engine   *engine.Engine
	loadOpts route.LoadOptions
	budgets  Budgets
	passes   int
	adaptive bool
	logger   func(format string, args ...any)
	writer   *audit.Writer
	counters audit.Store

	estimator *tokens.Estimator
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAdaptive toggles adaptive pass planning. When disabled, every
// request runs the full fixed pass sequence with no classification.
func WithAdaptive(adaptive bool) Option {
	return func(o *Orchestrator) {
		o.adaptive = adaptive
	}
}

// WithPassCount sets the fixed pass sequence length.
func WithPassCount(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.passes = n
		}
	}
}

// WithBudgets overrides the pass budgets.
func WithBudgets(b Budgets) Option {
	return func(o *Orchestrator) {
		o.budgets = b
	}
}

// WithLogger sets the log sink.
func WithLogger(logger func(format string, args ...any)) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithAuditWriter persists the decision trail for each run.
func WithAuditWriter(w *audit.Writer) Option {
	return func(o *Orchestrator) {
		o.writer = w
	}
}

// WithCounterStore accumulates cross-process counters after each run.
func WithCounterStore(s audit.Store) Option {
	return func(o *Orchestrator) {
		o.counters = s
	}
}

// New creates an orchestrator. loadOpts are applied to every run's table
// build.
func New(loader *route.Loader, eng *engine.Engine, loadOpts route.LoadOptions, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		loader:   loader,
		engine:   eng,
		loadOpts: loadOpts,
		budgets:  DefaultBudgets(),
		passes:   DefaultPassCount,
		adaptive: true,
		logger:   log.Printf,

		estimator: tokens.NewEstimator(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the request end to end: build a fresh table, run the first
// pass, reconcile complexity, and stop or continue per the final level.
func (o *Orchestrator) Run(ctx context.Context, req review.Request) (*RunResult, error) {
	table, err := o.loader.Load(o.loadOpts)
	if err != nil {
		return nil, err
	}
	o.writeRunRecord(req, table)

	result := &RunResult{}
	if o.adaptive {
		result.Deterministic = complexity.Classify(req.Stats)
	}

	firstBudget := o.budgets.For(complexity.Low, 1)
	first, err := o.runPass(ctx, table, req, 1, firstBudget, result)
	if err != nil {
		o.bumpCounters(result, true)
		return result, err
	}
	result.Final = first

	if !o.adaptive {
		if err := o.runRemaining(ctx, table, req, complexity.Medium, result); err != nil {
			o.bumpCounters(result, true)
			return result, err
		}
		o.bumpCounters(result, false)
		return result, nil
	}

	result.Reported = complexity.SignalLevel(first.Signal)
	result.Level = complexity.Reconcile(result.Deterministic, result.Reported)
	o.logger("[multipass] complexity: deterministic=%s reported=%s final=%s",
		result.Deterministic, result.Reported, result.Level)

	if result.Level == complexity.Low {
		o.logger("[multipass] both signals low; accepting single-pass result")
		o.bumpCounters(result, false)
		return result, nil
	}

	if err := o.runRemaining(ctx, table, req, result.Level, result); err != nil {
		o.bumpCounters(result, true)
		return result, err
	}
	o.bumpCounters(result, false)
	return result, nil
}

func (o *Orchestrator) runRemaining(ctx context.Context, table *route.Table, req review.Request, level complexity.Level, result *RunResult) error {
	for pass := 2; pass <= o.passes; pass++ {
		budget := o.budgets.For(level, pass)
		res, err := o.runPass(ctx, table, req, pass, budget, result)
		if err != nil {
			return err
		}
		result.Final = res
	}
	return nil
}

// runPass executes one pass sequentially; passes never overlap for the
// same request.
func (o *Orchestrator) runPass(ctx context.Context, table *route.Table, req review.Request, pass int, budget review.PassBudget, result *RunResult) (*review.Result, error) {
	passReq := req
	passReq.Pass = pass
	passReq.Focus = focusFor(pass)

	start := time.Now()
	outcome, err := o.engine.Execute(ctx, table, passReq, budget)

	po := PassOutcome{
		Pass:     pass,
		Focus:    passReq.Focus,
		Budget:   budget,
		Duration: time.Since(start),
	}
	if outcome != nil {
		po.Result = outcome.Result
		po.Attempts = outcome.Attempts
		if outcome.Result != nil {
			po.Usage = o.estimator.Measure(passReq.Diff, outcome.Result.Raw)
			if po.Usage.Exceeds(budget) {
				o.logger("[multipass] pass %d usage %d/%d tokens exceeded budget %d/%d",
					pass, po.Usage.InputTokens, po.Usage.OutputTokens,
					budget.InputTokenLimit, budget.OutputTokenLimit)
			}
		}
	}
	result.Passes = append(result.Passes, po)
	o.writePassRecord(po)

	if err != nil {
		return nil, fmt.Errorf("pass %d: %w", pass, err)
	}
	o.logger("[multipass] pass %d (%s) done: verdict=%s backend=%s",
		pass, passReq.Focus, outcome.Result.Verdict, outcome.Result.Backend)
	return outcome.Result, nil
}

func focusFor(pass int) string {
	if pass-1 < len(passFocus) {
		return passFocus[pass-1]
	}
	return passFocus[len(passFocus)-1]
}

func (o *Orchestrator) writeRunRecord(req review.Request, table *route.Table) {
	if o.writer == nil {
		return
	}
	record := audit.RunRecord{
		ID:          audit.NewRunID(),
		Timestamp:   time.Now().UTC(),
		RequestID:   req.ID,
		DiffHash:    audit.HashString(req.Diff),
		TableHash:   table.Hash(),
		TableSource: table.Source(),
	}
	if err := o.writer.WriteRun(record); err != nil {
		o.logger("[multipass] failed to write run record: %v", err)
	}
}

func (o *Orchestrator) writePassRecord(po PassOutcome) {
	if o.writer == nil {
		return
	}
	record := audit.PassRecord{
		Pass:             po.Pass,
		Focus:            po.Focus,
		InputTokenLimit:  po.Budget.InputTokenLimit,
		OutputTokenLimit: po.Budget.OutputTokenLimit,
		InputTokensUsed:  po.Usage.InputTokens,
		OutputTokensUsed: po.Usage.OutputTokens,
		DurationMillis:   po.Duration.Milliseconds(),
	}
	if po.Result != nil {
		record.Verdict = string(po.Result.Verdict)
		record.Backend = po.Result.Backend
	}
	for _, a := range po.Attempts {
		record.Attempts = append(record.Attempts, audit.AttemptRecord{
			Route:          a.Route,
			Backend:        a.Backend,
			Attempt:        a.Attempt,
			Conditions:     a.Conditions,
			Outcome:        a.Outcome,
			Error:          a.Error,
			DurationMillis: a.DurationMillis,
		})
	}
	if err := o.writer.WritePass(record); err != nil {
		o.logger("[multipass] failed to write pass record: %v", err)
	}
}

func (o *Orchestrator) bumpCounters(result *RunResult, exhausted bool) {
	if o.counters == nil {
		return
	}
	delta := audit.Counters{Runs: 1, Passes: int64(len(result.Passes))}
	for _, po := range result.Passes {
		delta.Attempts += int64(len(po.Attempts))
	}
	if exhausted {
		delta.Exhaustions = 1
	}
	if err := audit.BumpCounters(o.counters, delta); err != nil {
		o.logger("[multipass] failed to update counters: %v", err)
	}
}
