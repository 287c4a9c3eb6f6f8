// Package driver implements the iteration driver: the top-level state
// machine that sequences one concolic iteration (load -> execute -> record
// -> classify -> merge -> select -> solve -> next-input). It does not check
// whether a run followed the path it was solved for, and it has no
// stop-on-condition rule beyond the iteration budget and Stop.
package driver

import (
	"context"
	"fmt"
	"sync/atomic"

	"webconcolic/internal/classify"
	"webconcolic/internal/forms"
	"webconcolic/internal/frontier"
	"webconcolic/internal/logging"
	"webconcolic/internal/merge"
	"webconcolic/internal/solver"
	"webconcolic/internal/trace"
	"webconcolic/internal/tracebuild"
)

// State is one of the driver's eight state-machine positions.
type State int

const (
	StateInitial State = iota
	StateLoading
	StateExecuting
	StateMerging
	StateSelecting
	StateSolving
	StateInjecting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateLoading:
		return "Loading"
	case StateExecuting:
		return "Executing"
	case StateMerging:
		return "Merging"
	case StateSelecting:
		return "Selecting"
	case StateSolving:
		return "Solving"
	case StateInjecting:
		return "Injecting"
	case StateTerminated:
		return "Terminated"
	default:
		return "State(?)"
	}
}

// StopReason records why a Run call reached StateTerminated.
type StopReason int

const (
	StopNone StopReason = iota
	StopFrontierExhausted
	StopBudgetExhausted
	StopRequested
)

func (r StopReason) String() string {
	switch r {
	case StopFrontierExhausted:
		return "frontier-exhausted"
	case StopBudgetExhausted:
		return "budget-exhausted"
	case StopRequested:
		return "stop-requested"
	default:
		return "none"
	}
}

// InjectAction is one outbound form-field write: set Variable to Value.
// Driving as a slice (rather than a map) gives the browser bridge a
// deterministic write order, which matters for reordering mode.
type InjectAction struct {
	Variable string
	Value    solver.Value
}

// Browser is the external collaborator boundary: it drives the
// instrumented page and reports a strictly ordered stream of trace events
// for one top-level iteration. Run injects actions (empty on the very first
// call) before the page handles them, then returns a channel the driver
// drains until it closes. The channel must close exactly once EventEndOf-
// Execution has been sent, or earlier (with no further sends) if the
// browser session crashes or is cancelled via ctx.
type Browser interface {
	Run(ctx context.Context, url string, actions []InjectAction) (<-chan tracebuild.Event, error)
}

// Config bundles the driver's collaborator-owned settings.
type Config struct {
	URL              string
	IterationLimit   int // 0 = unlimited
	FormRestrictions forms.Restrictions
	DomSnapshot      solver.DomSnapshot
	Reordering       *ReorderingConfig // nil unless reordering mode is enabled
}

// Driver sequences one concolic run: it owns the shared symbolic tree, the
// frontier derived from it, and the state machine that advances both.
type Driver struct {
	cfg     Config
	browser Browser
	solve   solver.Solver
	policy  frontier.Policy

	tree      trace.Node
	builtRoot trace.Node // trace built by the current Executing step, pending merge
	front     *frontier.Frontier
	state     State
	current   *frontier.Entry
	stop      StopReason
	iterNum   int
	stopFlag  atomic.Bool

	// reorderOrder is the action variable order used for the next Injecting
	// step, in reordering mode only.
	reorderOrder []string

	audit *logging.AuditLogger
}

// New returns a Driver ready to Run. policy defaults to frontier.DFSPolicy
// if nil.
func New(cfg Config, browser Browser, solve solver.Solver, policy frontier.Policy) *Driver {
	if policy == nil {
		policy = frontier.DFSPolicy{}
	}
	d := &Driver{
		cfg:     cfg,
		browser: browser,
		solve:   solve,
		policy:  policy,
		tree:    trace.NewUnexplored(),
		state:   StateInitial,
		audit:   logging.Audit(),
	}
	if cfg.Reordering != nil {
		d.reorderOrder = append([]string(nil), cfg.Reordering.Actions...)
	}
	return d
}

// Stop requests termination at the next Selecting transition. Safe to call
// from another goroutine (e.g. a signal handler); takes effect
// cooperatively, never interrupts a step already in flight.
func (d *Driver) Stop() { d.stopFlag.Store(true) }

// Tree returns the shared symbolic execution tree built so far.
func (d *Driver) Tree() trace.Node { return d.tree }

// Frontier returns the most recently derived frontier, or nil before the
// first Merging step completes.
func (d *Driver) Frontier() *frontier.Frontier { return d.front }

// Run drives iterations until the frontier is exhausted, the iteration
// budget is hit, Stop is called, or ctx is cancelled. It never returns an
// error for ordinary solver outcomes (UNSAT/UNKNOWN/SOLVER-FAILURE) or
// browser crashes — those are recoverable and surface only as frontier
// entry status. A non-nil error means ctx was cancelled. Invariant
// violations never end the run: handleInvariant always marks the current
// entry missed and continues, in every build.
func (d *Driver) Run(ctx context.Context) (StopReason, error) {
	d.state = StateInitial
	var pendingEvents <-chan tracebuild.Event
	var pendingID string
	actions := initialActions(d.cfg.Reordering)

	for {
		if err := ctx.Err(); err != nil {
			d.stop = StopRequested
			return d.stop, err
		}

		switch d.state {
		case StateInitial:
			d.state = StateLoading

		case StateLoading:
			d.iterNum++
			pendingID = fmt.Sprintf("iter-%d", d.iterNum)
			d.audit.IterationStart(pendingID)
			logging.Driver("%s: loading %s", pendingID, d.cfg.URL)

			events, err := d.browser.Run(ctx, d.cfg.URL, actions)
			if err != nil {
				logging.DriverWarn("%s: browser failed to start: %v", pendingID, err)
				d.markCurrentMissed(pendingID, "browser start failed: "+err.Error())
				d.state = StateSelecting
				continue
			}
			pendingEvents = events
			d.state = StateExecuting

		case StateExecuting:
			root, corrupt, err := d.drainToTrace(pendingEvents)
			if corrupt {
				logging.DriverWarn("%s: corrupt event stream: %v", pendingID, err)
				d.audit.IterationMissed(pendingID, "corrupt event stream: "+err.Error())
				d.markCurrentMissed(pendingID, "corrupt event stream")
				d.state = StateSelecting
				continue
			}
			d.builtRoot = root
			d.state = StateMerging

		case StateMerging:
			if _, err := classify.Classify(d.builtRoot); err != nil {
				d.handleInvariant(pendingID, fmt.Errorf("classify: %w", err))
				d.state = StateSelecting
				continue
			}
			d.audit.Classified(pendingID, "classified")

			merged, err := merge.Merge(d.tree, d.builtRoot, d.iterNum)
			if err != nil {
				d.handleInvariant(pendingID, fmt.Errorf("merge: %w", err))
				d.state = StateSelecting
				continue
			}
			d.tree = merged
			d.audit.TraceMerged(pendingID, true, "")
			d.audit.IterationComplete(pendingID, 0)
			d.state = StateSelecting

		case StateSelecting:
			d.front = frontier.Rederive(d.tree, d.front)

			if d.stopFlag.Load() {
				d.stop = StopRequested
				d.state = StateTerminated
				continue
			}
			if d.cfg.IterationLimit > 0 && d.iterNum >= d.cfg.IterationLimit {
				d.stop = StopBudgetExhausted
				d.state = StateTerminated
				continue
			}
			if d.front.Empty() {
				d.audit.FrontierExhausted(pendingID)
				d.stop = StopFrontierExhausted
				d.state = StateTerminated
				continue
			}

			entry, ok := d.policy.Next(d.front.Unexhausted())
			if !ok {
				d.stop = StopFrontierExhausted
				d.state = StateTerminated
				continue
			}
			entry.Attempt()
			d.current = entry
			d.audit.TargetSelected(pendingID, describeTarget(entry))
			d.state = StateSolving

		case StateSolving:
			// Entry.Path's final step already points at the Unexplored
			// target side (see frontier.Rederive), so PathCondition's
			// last conjunct needs no further negation here.
			pc := d.current.PathCondition()
			q := solver.Query{
				PathCondition:    pc,
				FormRestrictions: d.cfg.FormRestrictions,
				DomSnapshot:      d.cfg.DomSnapshot,
			}
			if d.cfg.Reordering != nil {
				pc, q.Reordering = d.renameForReordering(pc)
				q.PathCondition = pc
			}

			sol, err := d.solve.Solve(ctx, q)
			if err != nil {
				logging.SolverWarn("%s: solve call errored: %v", pendingID, err)
				d.audit.SolveAttempted(pendingID, "SOLVER-FAILURE", 0)
				d.current.Exhaust(frontier.ExhaustSolverFailure)
				d.state = StateSelecting
				continue
			}
			d.audit.SolveAttempted(pendingID, sol.Outcome.String(), 0)

			switch sol.Outcome {
			case solver.SAT:
				if d.cfg.Reordering != nil {
					actions = d.reorderingActions(sol.Assignment)
				} else {
					actions = assignmentToActions(sol.Assignment)
				}
				d.state = StateInjecting
			case solver.UNSAT:
				d.current.Exhaust(frontier.ExhaustUnsat)
				d.state = StateSelecting
			case solver.Unknown:
				d.current.Exhaust(frontier.ExhaustUnknown)
				d.state = StateSelecting
			default: // solver.SolverFailure
				d.current.Exhaust(frontier.ExhaustSolverFailure)
				d.state = StateSelecting
			}

		case StateInjecting:
			for _, a := range actions {
				d.audit.InputInjected(pendingID, describeAction(a))
			}
			d.state = StateLoading

		case StateTerminated:
			logging.Driver("terminated: %s after %d iteration(s)", d.stop, d.iterNum)
			return d.stop, nil
		}
	}
}

// drainToTrace feeds every event off events into a fresh Builder until the
// channel closes, returning the built root. corrupt is true (with a non-nil
// err) if Feed ever errors, or if the channel closed before
// EventEndOfExecution arrived (browser crash/cancellation).
func (d *Driver) drainToTrace(events <-chan tracebuild.Event) (trace.Node, bool, error) {
	b := tracebuild.NewBuilder()
	for ev := range events {
		if err := b.Feed(ev); err != nil {
			return nil, true, err
		}
	}
	if !b.Done() {
		return nil, true, tracebuild.ErrCorruption
	}
	return b.Root(), false, nil
}

// markCurrentMissed marks the in-flight target entry missed, the standard
// response to a browser crash or timeout. The very first iteration has no
// current entry yet; there is nothing to mark.
func (d *Driver) markCurrentMissed(iterationID, reason string) {
	d.audit.IterationMissed(iterationID, reason)
	if d.current != nil {
		d.current.Exhaust(frontier.ExhaustMissed)
	}
}

// handleInvariant logs an invariant violation at fatal severity and marks
// the attempted entry missed (release-build behavior; a stricter build may
// instead choose to panic by wrapping Solver/Browser with a stricter
// adapter — the driver itself always takes the recoverable path).
func (d *Driver) handleInvariant(iterationID string, err error) {
	logging.DriverError("%s: invariant violation: %v", iterationID, err)
	d.audit.Error("driver", err, true)
	d.markCurrentMissed(iterationID, "invariant: "+err.Error())
}

func describeTarget(e *frontier.Entry) string {
	return fmt.Sprintf("depth=%d", len(e.Path))
}

func describeAction(a InjectAction) string {
	switch a.Value.Kind {
	case solver.KindBool:
		return fmt.Sprintf("%s=%t", a.Variable, a.Value.Bool)
	case solver.KindString:
		return fmt.Sprintf("%s=%q", a.Variable, a.Value.Str)
	default:
		return fmt.Sprintf("%s=%d", a.Variable, a.Value.Int)
	}
}

// assignmentToActions converts a solver assignment into a deterministic
// action list (sorted by variable name) for non-reordering iterations,
// where write order carries no semantic meaning.
func assignmentToActions(assignment map[string]solver.Value) []InjectAction {
	names := make([]string, 0, len(assignment))
	for name := range assignment {
		names = append(names, name)
	}
	sortStrings(names)
	out := make([]InjectAction, 0, len(names))
	for _, name := range names {
		out = append(out, InjectAction{Variable: name, Value: assignment[name]})
	}
	return out
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j-1] > ss[j]; j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}

// initialActions returns the default (empty-string/zero) first input: no
// injection happens before the first iteration. Reordering mode still has
// no values on iteration one, only the canonical action order.
func initialActions(r *ReorderingConfig) []InjectAction {
	return nil
}
