package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webconcolic/internal/expr"
	"webconcolic/internal/frontier"
	"webconcolic/internal/solver"
	"webconcolic/internal/trace"
	"webconcolic/internal/tracebuild"
)

// scriptedBrowser replays one Event slice per call to Run, in order. It
// satisfies the Browser interface without touching a real page.
type scriptedBrowser struct {
	scripts [][]tracebuild.Event
	calls   [][]InjectAction
}

func (b *scriptedBrowser) Run(ctx context.Context, url string, actions []InjectAction) (<-chan tracebuild.Event, error) {
	b.calls = append(b.calls, actions)
	i := len(b.calls) - 1
	var script []tracebuild.Event
	if i < len(b.scripts) {
		script = b.scripts[i]
	} else {
		script = []tracebuild.Event{{Kind: tracebuild.EventEndOfExecution}}
	}
	ch := make(chan tracebuild.Event, len(script))
	for _, ev := range script {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

// scriptedSolver returns one fixed Solution per call to Solve, in order,
// falling back to UNSAT once the script runs out (so the driver always
// terminates by exhausting the frontier).
type scriptedSolver struct {
	solutions []solver.Solution
	calls     int
	queries   []solver.Query
}

func (s *scriptedSolver) Solve(ctx context.Context, q solver.Query) (solver.Solution, error) {
	s.queries = append(s.queries, q)
	if s.calls < len(s.solutions) {
		sol := s.solutions[s.calls]
		s.calls++
		return sol, nil
	}
	s.calls++
	return solver.Solution{Outcome: solver.UNSAT}, nil
}

func xVar() expr.Expr { return expr.NewVar("x") }

func condXEq(v int64) expr.Expr {
	return expr.NewIntCmp(expr.IntEq, xVar(), expr.ConstInt(v))
}

// TestSingleSymbolicBranch exercises this simplest scenario: one
// symbolic branch taken false on iteration one, the driver solves for the
// true side, re-runs, and the frontier is exhausted after two iterations.
func TestSingleSymbolicBranch(t *testing.T) {
	browser := &scriptedBrowser{
		scripts: [][]tracebuild.Event{
			{
				{Kind: tracebuild.EventSymbolicBranch, Condition: condXEq(0), Taken: false},
				{Kind: tracebuild.EventEndOfExecution},
			},
			{
				{Kind: tracebuild.EventSymbolicBranch, Condition: condXEq(0), Taken: true},
				{Kind: tracebuild.EventEndOfExecution},
			},
		},
	}
	solv := &scriptedSolver{
		solutions: []solver.Solution{
			{Outcome: solver.SAT, Assignment: map[string]solver.Value{
				"x": {Kind: solver.KindInt, Int: 0},
			}},
		},
	}

	d := New(Config{URL: "http://example.test", IterationLimit: 10}, browser, solv, nil)
	reason, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopFrontierExhausted, reason)
	assert.Equal(t, 2, d.iterNum)
	assert.Len(t, browser.calls, 2)
	assert.Equal(t, "x", browser.calls[1][0].Variable)
	assert.Equal(t, int64(0), browser.calls[1][0].Value.Int)
}

// TestAlertEndsInFailure exercises the alert->EndFailure classification
// scenario: the single iteration has no branch, so the frontier is already
// empty after the first merge and the driver terminates immediately.
func TestAlertEndsInFailure(t *testing.T) {
	browser := &scriptedBrowser{
		scripts: [][]tracebuild.Event{
			{
				{Kind: tracebuild.EventAlert, Message: "boom"},
				{Kind: tracebuild.EventEndOfExecution},
			},
		},
	}
	solv := &scriptedSolver{}

	d := New(Config{URL: "http://example.test"}, browser, solv, nil)
	reason, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopFrontierExhausted, reason)
	assert.Equal(t, 1, d.iterNum)

	alert, ok := d.Tree().(*trace.Alert)
	require.True(t, ok, "expected root to be the Alert annotation, got %T", d.Tree())
	_, ok = alert.Next.(*trace.EndFailure)
	assert.True(t, ok, "expected alert's continuation to be classified EndFailure, got %T", alert.Next)
}

// TestUnsatLeavesEntryExhausted exercises an UNSAT outcome: the targeted
// entry is marked exhausted(unsat) and the driver terminates without a
// second browser call.
func TestUnsatLeavesEntryExhausted(t *testing.T) {
	browser := &scriptedBrowser{
		scripts: [][]tracebuild.Event{
			{
				{Kind: tracebuild.EventSymbolicBranch, Condition: condXEq(0), Taken: false},
				{Kind: tracebuild.EventEndOfExecution},
			},
		},
	}
	solv := &scriptedSolver{
		solutions: []solver.Solution{{Outcome: solver.UNSAT}},
	}

	d := New(Config{URL: "http://example.test"}, browser, solv, nil)
	reason, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopFrontierExhausted, reason)
	assert.Len(t, browser.calls, 1)
	require.Len(t, d.Frontier().Entries, 1)
	entry := d.Frontier().Entries[0]
	assert.Equal(t, frontier.StatusExhausted, entry.Status)
	assert.Equal(t, frontier.ExhaustUnsat, entry.Reason)
}

// TestSolveRequestsUnexploredSide exercises the solver query built for the
// frontier's target entry directly: the first iteration takes the branch's
// false side, leaving the true side Unexplored, so the path condition
// handed to the solver must assert the branch condition (Taken: true), not
// its negation — solving for the already-explored false side would never
// make progress.
func TestSolveRequestsUnexploredSide(t *testing.T) {
	browser := &scriptedBrowser{
		scripts: [][]tracebuild.Event{
			{
				{Kind: tracebuild.EventSymbolicBranch, Condition: condXEq(0), Taken: false},
				{Kind: tracebuild.EventEndOfExecution},
			},
		},
	}
	solv := &scriptedSolver{
		solutions: []solver.Solution{{Outcome: solver.UNSAT}},
	}

	d := New(Config{URL: "http://example.test"}, browser, solv, nil)
	reason, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopFrontierExhausted, reason)

	require.Len(t, solv.queries, 1)
	pc := solv.queries[0].PathCondition
	require.Len(t, pc.Conjuncts, 1)
	assert.True(t, pc.Conjuncts[0].Taken, "solver should be asked for the unexplored (true) side, not the already-explored false side")
}

// TestBrowserStartFailureMarksMissed exercises the browser-crash failure
// path on the very first iteration: Run errors immediately, there is no
// current entry yet (nothing to mark), and the driver has nothing to merge.
// The tree stays a lone Unexplored root, whose single frontier entry the
// scripted solver answers UNSAT, so the frontier is exhausted and it stops.
func TestBrowserStartFailureMarksMissed(t *testing.T) {
	failing := failingBrowser{}
	solv := &scriptedSolver{}

	d := New(Config{URL: "http://example.test"}, failing, solv, nil)
	reason, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopFrontierExhausted, reason)
}

type failingBrowser struct{}

func (failingBrowser) Run(ctx context.Context, url string, actions []InjectAction) (<-chan tracebuild.Event, error) {
	return nil, assertError{"simulated browser crash"}
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

// TestStopRequestedTakesEffectAtSelecting verifies Stop() halts the driver
// at the next Selecting transition rather than mid-iteration.
func TestStopRequestedTakesEffectAtSelecting(t *testing.T) {
	browser := &scriptedBrowser{
		scripts: [][]tracebuild.Event{
			{
				{Kind: tracebuild.EventSymbolicBranch, Condition: condXEq(0), Taken: false},
				{Kind: tracebuild.EventEndOfExecution},
			},
		},
	}
	solv := &scriptedSolver{}

	d := New(Config{URL: "http://example.test"}, browser, solv, nil)
	d.Stop()
	reason, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopRequested, reason)
}
