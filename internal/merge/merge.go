// Package merge implements the trace merger: it grafts a freshly built and
// classified linear trace into the shared tree, node by node. It diverges
// where the shared tree was still Unexplored, and also at a ConcreteSummary
// whose event sequence differs from every recorded execution, which it
// appends as a new execution.
package merge

import (
	"errors"
	"fmt"

	"webconcolic/internal/trace"
)

// ErrCorruption flags an isEqualShallow mismatch encountered away from an
// Unexplored position — a tree-corruption error.
var ErrCorruption = errors.New("merge: tree corruption")

// Merge grafts t (a linear trace built by tracebuild and classified by
// classify) into s (the shared tree), recording traceIndex on every
// terminal t reaches. It returns the node that should replace s at the
// caller's slot (s itself, unless s was Unexplored).
func Merge(s trace.Node, t trace.Node, traceIndex int) (trace.Node, error) {
	if _, ok := s.(*trace.Unexplored); ok {
		if err := attachTraceIndex(t, traceIndex); err != nil {
			return nil, err
		}
		return t, nil
	}

	if !s.IsEqualShallow(t) {
		return nil, fmt.Errorf("%w: node kind/value mismatch (%T vs %T)", ErrCorruption, s, t)
	}

	switch sn := s.(type) {
	case *trace.Branch:
		tn := t.(*trace.Branch)
		taken := takenSide(tn)
		sChild := sn.ChildFor(taken)
		tChild := tn.ChildFor(taken)
		merged, err := Merge(sChild, tChild, traceIndex)
		if err != nil {
			return nil, err
		}
		sn.SetChildFor(taken, merged)
		return sn, nil

	case *trace.ConcreteSummary:
		tn := t.(*trace.ConcreteSummary)
		if len(tn.Executions) != 1 {
			return nil, fmt.Errorf("%w: incoming ConcreteSummary must have exactly one execution, got %d", ErrCorruption, len(tn.Executions))
		}
		tExec := tn.Executions[0]
		for _, sExec := range sn.Executions {
			if eventsEqual(sExec.Events, tExec.Events) {
				merged, err := Merge(sExec.Continuation, tExec.Continuation, traceIndex)
				if err != nil {
					return nil, err
				}
				sExec.Continuation = merged
				return sn, nil
			}
		}
		if err := attachTraceIndex(tExec.Continuation, traceIndex); err != nil {
			return nil, err
		}
		sn.Executions = append(sn.Executions, &trace.Execution{
			Events:       append([]trace.EventType(nil), tExec.Events...),
			Continuation: tExec.Continuation,
		})
		return sn, nil

	case *trace.Alert:
		tn := t.(*trace.Alert)
		merged, err := Merge(sn.Next, tn.Next, traceIndex)
		if err != nil {
			return nil, err
		}
		sn.Next = merged
		return sn, nil

	case *trace.ConsoleMessage:
		tn := t.(*trace.ConsoleMessage)
		merged, err := Merge(sn.Next, tn.Next, traceIndex)
		if err != nil {
			return nil, err
		}
		sn.Next = merged
		return sn, nil

	case *trace.DomModification:
		tn := t.(*trace.DomModification)
		merged, err := Merge(sn.Next, tn.Next, traceIndex)
		if err != nil {
			return nil, err
		}
		sn.Next = merged
		return sn, nil

	case *trace.PageLoad:
		tn := t.(*trace.PageLoad)
		merged, err := Merge(sn.Next, tn.Next, traceIndex)
		if err != nil {
			return nil, err
		}
		sn.Next = merged
		return sn, nil

	case *trace.Marker:
		tn := t.(*trace.Marker)
		merged, err := Merge(sn.Next, tn.Next, traceIndex)
		if err != nil {
			return nil, err
		}
		sn.Next = merged
		return sn, nil

	case *trace.FunctionCall:
		tn := t.(*trace.FunctionCall)
		merged, err := Merge(sn.Next, tn.Next, traceIndex)
		if err != nil {
			return nil, err
		}
		sn.Next = merged
		return sn, nil

	case *trace.EndSuccess:
		sn.AddTraceIndex(traceIndex)
		return sn, nil

	case *trace.EndFailure:
		sn.AddTraceIndex(traceIndex)
		return sn, nil

	case *trace.EndUnknown:
		sn.AddTraceIndex(traceIndex)
		return sn, nil

	default:
		return nil, fmt.Errorf("%w: unhandled node type %T", ErrCorruption, s)
	}
}

// takenSide reports which side of a just-built Branch is populated (not
// Unexplored) — the direction T actually took.
func takenSide(b *trace.Branch) bool {
	if _, ok := b.TrueChild.(*trace.Unexplored); !ok {
		return true
	}
	return false
}

func eventsEqual(a, b []trace.EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// attachTraceIndex walks a freshly attached linear subtree to the terminal
// it reaches and records traceIndex there. Since the subtree came from a
// single linear trace, it has exactly one reachable terminal.
func attachTraceIndex(n trace.Node, traceIndex int) error {
	for {
		switch x := n.(type) {
		case *trace.Alert:
			n = x.Next
		case *trace.ConsoleMessage:
			n = x.Next
		case *trace.DomModification:
			n = x.Next
		case *trace.PageLoad:
			n = x.Next
		case *trace.Marker:
			n = x.Next
		case *trace.FunctionCall:
			n = x.Next
		case *trace.Branch:
			n = x.ChildFor(takenSide(x))
		case *trace.ConcreteSummary:
			if len(x.Executions) != 1 {
				return fmt.Errorf("%w: freshly attached ConcreteSummary must have exactly one execution", ErrCorruption)
			}
			n = x.Executions[0].Continuation
		case *trace.EndSuccess:
			x.AddTraceIndex(traceIndex)
			return nil
		case *trace.EndFailure:
			x.AddTraceIndex(traceIndex)
			return nil
		case *trace.EndUnknown:
			x.AddTraceIndex(traceIndex)
			return nil
		case *trace.Unexplored:
			return nil
		default:
			return fmt.Errorf("%w: unhandled node type %T while attaching trace index", ErrCorruption, n)
		}
	}
}
