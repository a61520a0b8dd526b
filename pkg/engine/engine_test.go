package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/zen-systems/reviewroute/pkg/backend"
	"github.com/zen-systems/reviewroute/pkg/registry"
	"github.com/zen-systems/reviewroute/pkg/review"
	"github.com/zen-systems/reviewroute/pkg/route"
)

var testBudget = review.PassBudget{InputTokenLimit: 12000, OutputTokenLimit: 4000}

func discard(string, ...any) {}

func newEngine(t *testing.T, backends ...registry.Backend) *Engine {
	t.Helper()
	reg := registry.NewWithBuiltins()
	for _, b := range backends {
		reg.RegisterBackend(b)
	}
	return New(reg, WithLogger(discard))
}

func simpleRoute(backendName string, failMode route.FailMode, retries int) route.Route {
	return route.NewRoute(backendName, nil, "", failMode, 60, retries)
}

func defaultStyleTable(routes ...route.Route) *route.Table {
	return route.NewTable(routes, route.MaxSchemaVersion, "default")
}

func customTable(routes ...route.Route) *route.Table {
	return route.NewTable(routes, route.MaxSchemaVersion, "custom")
}

func TestExecuteFirstSuccessWins(t *testing.T) {
	first := backend.NewMock("first", backend.ValidMockOutput(review.VerdictApproved, ""))
	second := backend.NewMock("second", backend.ValidMockOutput(review.VerdictApproved, ""))
	e := newEngine(t, first, second)

	table := defaultStyleTable(
		simpleRoute("first", route.FailModeFallthrough, 0),
		simpleRoute("second", route.FailModeFallthrough, 0),
	)
	outcome, err := e.Execute(context.Background(), table, review.Request{ID: "r1"}, testBudget)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Phase != Resolved {
		t.Errorf("phase = %v, want Resolved", outcome.Phase)
	}
	if outcome.Result == nil || outcome.Result.Backend != "first" || outcome.Result.Route != 0 {
		t.Errorf("result = %+v", outcome.Result)
	}
	if second.Invocations != 0 {
		t.Errorf("later route invoked %d times after success", second.Invocations)
	}
	if len(outcome.Attempts) != 1 || outcome.Attempts[0].Outcome != OutcomeSuccess {
		t.Errorf("attempts = %+v", outcome.Attempts)
	}
}

func TestExecuteFallsThroughOnBackendError(t *testing.T) {
	failing := &backend.Mock{
		BackendName: "flaky",
		Caps:        []string{"review"},
		Script:      []backend.MockStep{{Err: errors.New("upstream 503")}},
	}
	healthy := backend.NewMock("healthy", backend.ValidMockOutput(review.VerdictChangesRequired, ""))
	e := newEngine(t, failing, healthy)

	table := defaultStyleTable(
		simpleRoute("flaky", route.FailModeFallthrough, 0),
		simpleRoute("healthy", route.FailModeFallthrough, 0),
	)
	outcome, err := e.Execute(context.Background(), table, review.Request{ID: "r2"}, testBudget)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Result.Backend != "healthy" {
		t.Errorf("resolved via %s, want healthy", outcome.Result.Backend)
	}
	if len(outcome.Attempts) != 2 {
		t.Fatalf("attempt count = %d", len(outcome.Attempts))
	}
	if outcome.Attempts[0].Outcome != OutcomeBackendError {
		t.Errorf("first attempt outcome = %s", outcome.Attempts[0].Outcome)
	}
}

func TestExecuteContractRejectionIsFailedAttempt(t *testing.T) {
	garbled := backend.NewMock("garbled", "this is not the contract")
	healthy := backend.NewMock("healthy", backend.ValidMockOutput(review.VerdictApproved, ""))
	e := newEngine(t, garbled, healthy)

	table := defaultStyleTable(
		simpleRoute("garbled", route.FailModeFallthrough, 0),
		simpleRoute("healthy", route.FailModeFallthrough, 0),
	)
	outcome, err := e.Execute(context.Background(), table, review.Request{ID: "r3"}, testBudget)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Attempts[0].Outcome != OutcomeContractRejected {
		t.Errorf("first attempt outcome = %s, want %s", outcome.Attempts[0].Outcome, OutcomeContractRejected)
	}
	if outcome.Result.Backend != "healthy" {
		t.Errorf("resolved via %s", outcome.Result.Backend)
	}
}

func TestExecuteRetriesBeforeFallingThrough(t *testing.T) {
	flaky := &backend.Mock{
		BackendName: "flaky",
		Caps:        []string{"review"},
		Script: []backend.MockStep{
			{Err: errors.New("transient")},
			{Err: errors.New("transient")},
			{Output: backend.ValidMockOutput(review.VerdictApproved, "")},
		},
	}
	e := newEngine(t, flaky)

	table := defaultStyleTable(simpleRoute("flaky", route.FailModeFallthrough, 2))
	outcome, err := e.Execute(context.Background(), table, review.Request{ID: "r4"}, testBudget)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if flaky.Invocations != 3 {
		t.Errorf("invocations = %d, want 3", flaky.Invocations)
	}
	if got := outcome.Attempts[2].Attempt; got != 3 {
		t.Errorf("final attempt number = %d, want 3", got)
	}
	if outcome.Phase != Resolved {
		t.Errorf("phase = %v", outcome.Phase)
	}
}

func TestExecuteHardFailAborts(t *testing.T) {
	failing := &backend.Mock{
		BackendName: "critical",
		Caps:        []string{"review"},
		Script:      []backend.MockStep{{Err: errors.New("backend down")}},
	}
	never := backend.NewMock("never", backend.ValidMockOutput(review.VerdictApproved, ""))
	e := newEngine(t, failing, never)

	table := defaultStyleTable(
		simpleRoute("critical", route.FailModeHardFail, 1),
		simpleRoute("never", route.FailModeFallthrough, 0),
	)
	outcome, err := e.Execute(context.Background(), table, review.Request{ID: "r5"}, testBudget)

	var rfe *RouteFailedError
	if !errors.As(err, &rfe) {
		t.Fatalf("err = %v, want RouteFailedError", err)
	}
	if rfe.Backend != "critical" {
		t.Errorf("failed backend = %s", rfe.Backend)
	}
	if never.Invocations != 0 {
		t.Error("hard_fail did not abort the cascade")
	}
	if failing.Invocations != 2 {
		t.Errorf("invocations = %d, want retries honored before abort", failing.Invocations)
	}
	if outcome.Phase != Exhausted {
		t.Errorf("phase = %v, want Exhausted", outcome.Phase)
	}
}

func TestExecuteExhaustion(t *testing.T) {
	failing := &backend.Mock{
		BackendName: "down",
		Caps:        []string{"review"},
		Script:      []backend.MockStep{{Err: errors.New("unreachable")}},
	}
	e := newEngine(t, failing)

	table := defaultStyleTable(simpleRoute("down", route.FailModeFallthrough, 0))
	outcome, err := e.Execute(context.Background(), table, review.Request{ID: "r6"}, testBudget)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if outcome.Phase != Exhausted {
		t.Errorf("phase = %v", outcome.Phase)
	}
	if outcome.Result != nil {
		t.Error("exhausted outcome carries a result")
	}
}

func TestExecuteGlobalAttemptCap(t *testing.T) {
	failing := &backend.Mock{
		BackendName: "down",
		Caps:        []string{"review"},
		Script:      []backend.MockStep{{Err: errors.New("unreachable")}},
	}
	e := New(registryWith(failing), WithLogger(discard), WithMaxTotalAttempts(2))

	table := defaultStyleTable(simpleRoute("down", route.FailModeFallthrough, 5))
	_, err := e.Execute(context.Background(), table, review.Request{ID: "r7"}, testBudget)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if failing.Invocations != 2 {
		t.Errorf("invocations = %d, want capped at 2", failing.Invocations)
	}
}

func TestExecuteTimeoutIsFailedAttempt(t *testing.T) {
	slow := &backend.Mock{
		BackendName: "slow",
		Caps:        []string{"review"},
		Script:      []backend.MockStep{{Block: true}},
	}
	healthy := backend.NewMock("healthy", backend.ValidMockOutput(review.VerdictApproved, ""))
	e := newEngine(t, slow, healthy)

	table := defaultStyleTable(
		route.NewRoute("slow", nil, "", route.FailModeFallthrough, 1, 0),
		simpleRoute("healthy", route.FailModeFallthrough, 0),
	)
	outcome, err := e.Execute(context.Background(), table, review.Request{ID: "r8"}, testBudget)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Attempts[0].Outcome != OutcomeTimeout {
		t.Errorf("first attempt outcome = %s, want %s", outcome.Attempts[0].Outcome, OutcomeTimeout)
	}
	if outcome.Result.Backend != "healthy" {
		t.Errorf("resolved via %s", outcome.Result.Backend)
	}
}

func TestExecuteSkipsUnmetConditions(t *testing.T) {
	ciOnly := backend.NewMock("ci_only", backend.ValidMockOutput(review.VerdictApproved, ""))
	anywhere := backend.NewMock("anywhere", backend.ValidMockOutput(review.VerdictApproved, ""))
	e := newEngine(t, ciOnly, anywhere)

	table := defaultStyleTable(
		route.NewRoute("ci_only", []string{"ci"}, "", route.FailModeFallthrough, 60, 0),
		simpleRoute("anywhere", route.FailModeFallthrough, 0),
	)
	outcome, err := e.Execute(context.Background(), table, review.Request{ID: "r9", CI: false}, testBudget)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Result.Backend != "anywhere" {
		t.Errorf("resolved via %s, want anywhere", outcome.Result.Backend)
	}
	if ciOnly.Invocations != 0 {
		t.Error("route with unmet condition was invoked")
	}
}

func TestExecuteUnknownConditionAsymmetry(t *testing.T) {
	b := backend.NewMock("only", backend.ValidMockOutput(review.VerdictApproved, ""))
	fallback := backend.NewMock("fallback", backend.ValidMockOutput(review.VerdictApproved, ""))
	e := newEngine(t, b, fallback)

	routes := []route.Route{
		route.NewRoute("only", []string{"no_such_condition"}, "", route.FailModeFallthrough, 60, 0),
		simpleRoute("fallback", route.FailModeFallthrough, 0),
	}

	// Default table: unknown condition evaluates false with a warning.
	outcome, err := e.Execute(context.Background(), defaultStyleTable(routes...), review.Request{ID: "r10"}, testBudget)
	if err != nil {
		t.Fatalf("default table: %v", err)
	}
	if outcome.Result.Backend != "fallback" {
		t.Errorf("resolved via %s, want fallback", outcome.Result.Backend)
	}

	// Custom table: the same unknown condition is fatal.
	if _, err := e.Execute(context.Background(), customTable(routes...), review.Request{ID: "r11"}, testBudget); err == nil {
		t.Fatal("custom table with unknown condition did not fail")
	}
}

func TestExecuteUnknownBackendSkippedOnDefaultTable(t *testing.T) {
	healthy := backend.NewMock("healthy", backend.ValidMockOutput(review.VerdictApproved, ""))
	e := newEngine(t, healthy)

	table := defaultStyleTable(
		simpleRoute("unregistered", route.FailModeFallthrough, 0),
		simpleRoute("healthy", route.FailModeFallthrough, 0),
	)
	outcome, err := e.Execute(context.Background(), table, review.Request{ID: "r12"}, testBudget)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Result.Backend != "healthy" {
		t.Errorf("resolved via %s", outcome.Result.Backend)
	}
}

func TestExecuteCapabilitySkip(t *testing.T) {
	limited := backend.NewMock("limited", backend.ValidMockOutput(review.VerdictApproved, ""))
	capable := &backend.Mock{
		BackendName: "capable",
		Caps:        []string{"review", "long_context"},
		Script:      []backend.MockStep{{Output: backend.ValidMockOutput(review.VerdictApproved, "")}},
	}
	e := newEngine(t, limited, capable)

	table := defaultStyleTable(
		route.NewRoute("limited", nil, "long_context", route.FailModeFallthrough, 60, 0),
		route.NewRoute("capable", nil, "long_context", route.FailModeFallthrough, 60, 0),
	)
	outcome, err := e.Execute(context.Background(), table, review.Request{ID: "r13"}, testBudget)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if limited.Invocations != 0 {
		t.Error("backend lacking required capability was invoked")
	}
	if outcome.Result.Backend != "capable" {
		t.Errorf("resolved via %s", outcome.Result.Backend)
	}
}

func TestExecuteRecordsAttemptTrail(t *testing.T) {
	flaky := &backend.Mock{
		BackendName: "flaky",
		Caps:        []string{"review"},
		Script: []backend.MockStep{
			{Err: errors.New("first failure")},
			{Output: backend.ValidMockOutput(review.VerdictApproved, "")},
		},
	}
	e := newEngine(t, flaky)

	table := defaultStyleTable(simpleRoute("flaky", route.FailModeFallthrough, 1))
	outcome, err := e.Execute(context.Background(), table, review.Request{ID: "r14"}, testBudget)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(outcome.Attempts) != 2 {
		t.Fatalf("attempt count = %d", len(outcome.Attempts))
	}
	for i, a := range outcome.Attempts {
		if a.Route != 0 || a.Backend != "flaky" || a.Attempt != i+1 {
			t.Errorf("attempt %d = %+v", i, a)
		}
		if a.DurationMillis < 0 {
			t.Errorf("attempt %d has negative duration", i)
		}
	}
}

func registryWith(backends ...registry.Backend) *registry.Registry {
	reg := registry.NewWithBuiltins()
	for _, b := range backends {
		reg.RegisterBackend(b)
	}
	return reg
}

// stubGate denies a fixed set of backends and records every call.
type stubGate struct {
	denied    map[string]bool
	failures  []string
	successes []string
}

func (g *stubGate) Allow(backend string) bool { return !g.denied[backend] }

func (g *stubGate) RecordFailure(backend string) { g.failures = append(g.failures, backend) }

func (g *stubGate) RecordSuccess(backend string) { g.successes = append(g.successes, backend) }

func TestExecuteSkipsGateRejectedBackend(t *testing.T) {
	down := backend.NewMock("down", backend.ValidMockOutput(review.VerdictApproved, ""))
	up := backend.NewMock("up", backend.ValidMockOutput(review.VerdictApproved, ""))
	gate := &stubGate{denied: map[string]bool{"down": true}}
	e := New(registryWith(down, up), WithLogger(discard), WithHealthGate(gate))

	table := defaultStyleTable(
		simpleRoute("down", route.FailModeFallthrough, 0),
		simpleRoute("up", route.FailModeFallthrough, 0),
	)
	outcome, err := e.Execute(context.Background(), table, review.Request{ID: "r15"}, testBudget)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if down.Invocations != 0 {
		t.Errorf("rejected backend invoked %d times", down.Invocations)
	}
	if outcome.Result == nil || outcome.Result.Backend != "up" {
		t.Errorf("result = %+v, want resolution via up", outcome.Result)
	}
}

func TestExecuteReportsAttemptOutcomesToGate(t *testing.T) {
	flaky := &backend.Mock{
		BackendName: "flaky",
		Caps:        []string{"review"},
		Script: []backend.MockStep{
			{Err: errors.New("upstream 503")},
			{Err: errors.New("upstream 503")},
		},
	}
	healthy := backend.NewMock("healthy", backend.ValidMockOutput(review.VerdictApproved, ""))
	gate := &stubGate{}
	e := New(registryWith(flaky, healthy), WithLogger(discard), WithHealthGate(gate))

	table := defaultStyleTable(
		simpleRoute("flaky", route.FailModeFallthrough, 1),
		simpleRoute("healthy", route.FailModeFallthrough, 0),
	)
	if _, err := e.Execute(context.Background(), table, review.Request{ID: "r16"}, testBudget); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(gate.failures) != 2 || gate.failures[0] != "flaky" || gate.failures[1] != "flaky" {
		t.Errorf("recorded failures = %v, want two for flaky", gate.failures)
	}
	if len(gate.successes) != 1 || gate.successes[0] != "healthy" {
		t.Errorf("recorded successes = %v, want one for healthy", gate.successes)
	}
}
