// Package tracebuild consumes a strictly ordered stream of browser events for
// a single iteration and produces a linear trace. It never merges: the
// output always has exactly one populated side at every Branch.
package tracebuild

import (
	"errors"
	"fmt"

	"webconcolic/internal/expr"
	"webconcolic/internal/trace"
)

// ErrCorruption flags an out-of-order event stream or a branch tagged
// symbolic whose condition is not actually symbolic.
var ErrCorruption = errors.New("tracebuild: corrupt event stream")

// EventKind enumerates the browser's inbound event vocabulary.
type EventKind int

const (
	EventPageLoad EventKind = iota
	EventSymbolicBranch
	EventConcreteBranch
	EventFunctionCall
	EventAlert
	EventConsoleMessage
	EventDomModification
	EventMarker
	EventEndOfExecution
)

// Event is one entry in the inbound browser event stream. Only the fields
// relevant to Kind are populated; see the field comments below.
type Event struct {
	Kind EventKind

	URL string // EventPageLoad

	Condition expr.Expr // EventSymbolicBranch
	Taken     bool      // EventSymbolicBranch, EventConcreteBranch

	Name string // EventFunctionCall

	Message string // EventAlert, EventConsoleMessage

	Amount float64     // EventDomModification
	Words  map[int]int // EventDomModification

	Label             string                   // EventMarker
	Index             string                   // EventMarker
	SelectRestriction *trace.SelectRestriction // EventMarker, optional
}

// Builder accumulates a single linear trace from a sequence of events. It is
// not safe for concurrent use; one Builder serves exactly one iteration.
type Builder struct {
	root trace.Node

	// setAtTail installs a node at the current open position: nil means
	// "the root itself", otherwise it is the setter captured from the
	// most recently appended node's own child/continuation slot.
	setAtTail func(trace.Node)

	// openSummary is the ConcreteSummary currently accepting events, or
	// nil if the tail is not inside one. Tracked separately from setAtTail
	// because pushing an event onto an open summary mutates it in place
	// rather than appending a new node.
	openSummary *trace.ConcreteSummary

	done bool
}

// NewBuilder returns a Builder ready to consume the first event of a fresh
// iteration.
func NewBuilder() *Builder {
	return &Builder{root: trace.NewUnexplored()}
}

// Root returns the trace built so far (or the final trace, once Feed has
// consumed EventEndOfExecution).
func (b *Builder) Root() trace.Node { return b.root }

func (b *Builder) install(n trace.Node) {
	if b.setAtTail == nil {
		b.root = n
	} else {
		b.setAtTail(n)
	}
}

// appendAnnotation installs a single-child annotation node at the tail and
// advances the tail to its Next slot.
func (b *Builder) appendAnnotation(n trace.Node, setNext func(trace.Node)) {
	b.install(n)
	b.setAtTail = setNext
	b.openSummary = nil
}

// openOrGetSummary returns the currently open ConcreteSummary, opening a
// fresh one (and installing it at the tail) if the head of the current tail
// is not already a ConcreteSummary.
func (b *Builder) openOrGetSummary() *trace.ConcreteSummary {
	if b.openSummary != nil {
		return b.openSummary
	}
	cs := trace.NewConcreteSummary()
	b.install(cs)
	b.openSummary = cs
	b.setAtTail = func(n trace.Node) {
		_ = cs.SetChild(0, n)
	}
	return cs
}

// Feed consumes one event, returning ErrCorruption if the event arrives
// after EventEndOfExecution was already processed or if a branch tagged
// symbolic carries a nil condition or one with no free variable.
func (b *Builder) Feed(ev Event) error {
	if b.done {
		return fmt.Errorf("%w: event received after endOfExecution", ErrCorruption)
	}

	switch ev.Kind {
	case EventPageLoad:
		n := trace.NewPageLoad(ev.URL)
		b.appendAnnotation(n, func(c trace.Node) { n.Next = c })

	case EventSymbolicBranch:
		if ev.Condition == nil {
			return fmt.Errorf("%w: symbolicBranch event with nil condition", ErrCorruption)
		}
		if len(expr.CollectFreeVars(ev.Condition)) == 0 {
			return fmt.Errorf("%w: symbolicBranch event whose condition has no symbolic variable", ErrCorruption)
		}
		n := trace.NewBranch(ev.Condition)
		b.install(n)
		b.openSummary = nil
		b.setAtTail = func(c trace.Node) { n.SetChildFor(ev.Taken, c) }

	case EventConcreteBranch:
		cs := b.openOrGetSummary()
		ex := cs.Executions[0]
		tok := trace.BranchFalse
		if ev.Taken {
			tok = trace.BranchTrue
		}
		ex.Events = append(ex.Events, tok)

	case EventFunctionCall:
		cs := b.openOrGetSummary()
		ex := cs.Executions[0]
		ex.Events = append(ex.Events, trace.FunctionCallEvent)

	case EventAlert:
		n := trace.NewAlert(ev.Message)
		b.appendAnnotation(n, func(c trace.Node) { n.Next = c })

	case EventConsoleMessage:
		n := trace.NewConsoleMessage(ev.Message)
		b.appendAnnotation(n, func(c trace.Node) { n.Next = c })

	case EventDomModification:
		n := trace.NewDomModification(ev.Amount, ev.Words)
		b.appendAnnotation(n, func(c trace.Node) { n.Next = c })

	case EventMarker:
		n := trace.NewMarker(ev.Label, ev.Index, ev.SelectRestriction)
		b.appendAnnotation(n, func(c trace.Node) { n.Next = c })

	case EventEndOfExecution:
		b.install(trace.NewEndUnknown())
		b.done = true

	default:
		return fmt.Errorf("%w: unknown event kind %d", ErrCorruption, ev.Kind)
	}
	return nil
}

// FeedAll consumes events in order, stopping at the first error.
func (b *Builder) FeedAll(events []Event) error {
	for _, ev := range events {
		if err := b.Feed(ev); err != nil {
			return err
		}
	}
	return nil
}

// Done reports whether EventEndOfExecution has been consumed.
func (b *Builder) Done() bool { return b.done }
