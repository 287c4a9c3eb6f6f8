// Package frontier implements the exploration frontier: a catalog of
// Unexplored leaves re-derived from the shared tree each iteration, with a
// per-entry status machine and a pluggable selection policy.
package frontier

import (
	"webconcolic/internal/pathcond"
	"webconcolic/internal/trace"
)

// Status is a frontier entry's exploration status. It only ever advances:
// New -> Attempted -> Exhausted(reason); it is never downgraded.
type Status int

const (
	StatusNew Status = iota
	StatusAttempted
	StatusExhausted
)

// ExhaustReason records why an Exhausted entry will never be retried.
type ExhaustReason int

const (
	ExhaustNone ExhaustReason = iota
	ExhaustUnsat
	ExhaustUnknown
	ExhaustUnsolvable
	ExhaustSolverFailure
	ExhaustMissed
)

func (r ExhaustReason) String() string {
	switch r {
	case ExhaustUnsat:
		return "unsat"
	case ExhaustUnknown:
		return "unknown"
	case ExhaustUnsolvable:
		return "unsolvable"
	case ExhaustSolverFailure:
		return "solver-failure"
	case ExhaustMissed:
		return "missed"
	default:
		return "none"
	}
}

// Entry is one Unexplored leaf of the shared tree, described by the path of
// Branch ancestors (with taken directions) needed to reach its parent, plus
// the target leaf itself.
type Entry struct {
	Target trace.Node
	Path   []pathcond.Step // root -> parent branch; the last step's direction leads to Target
	Status Status
	Reason ExhaustReason
}

// PathCondition extracts this entry's path condition, the direction on the
// final conjunct being the side still unexplored (the entry's Target side).
func (e *Entry) PathCondition() pathcond.PathCondition {
	return pathcond.ExtractFromPath(e.Path)
}

// Attempt advances a New entry to Attempted. It is a no-op (never a
// downgrade) if the entry is already past New.
func (e *Entry) Attempt() {
	if e.Status == StatusNew {
		e.Status = StatusAttempted
	}
}

// Exhaust advances an entry to Exhausted with reason. It is a no-op if the
// entry is already Exhausted: statuses are never downgraded or overwritten.
func (e *Entry) Exhaust(reason ExhaustReason) {
	if e.Status != StatusExhausted {
		e.Status = StatusExhausted
		e.Reason = reason
	}
}

// Frontier is the catalog of Unexplored leaves derived from a shared tree.
type Frontier struct {
	Entries []*Entry
}

// Rederive walks root and rebuilds the frontier from scratch: every
// Unexplored leaf becomes a candidate entry. Previously known entries are
// matched by target node identity so their Status/Reason survive a rebuild;
// genuinely new Unexplored leaves start at StatusNew.
func Rederive(root trace.Node, previous *Frontier) *Frontier {
	prevByTarget := map[trace.Node]*Entry{}
	if previous != nil {
		for _, e := range previous.Entries {
			prevByTarget[e.Target] = e
		}
	}

	f := &Frontier{}
	var walk func(n trace.Node, path []pathcond.Step)
	walk = func(n trace.Node, path []pathcond.Step) {
		switch x := n.(type) {
		case *trace.Unexplored:
			entry := &Entry{Target: n, Path: append([]pathcond.Step(nil), path...)}
			if prior, ok := prevByTarget[n]; ok {
				entry.Status = prior.Status
				entry.Reason = prior.Reason
			}
			f.Entries = append(f.Entries, entry)
		case *trace.Branch:
			walk(x.FalseChild, append(path, pathcond.Step{Branch: x, Taken: false}))
			walk(x.TrueChild, append(path, pathcond.Step{Branch: x, Taken: true}))
		case *trace.ConcreteSummary:
			for _, ex := range x.Executions {
				walk(ex.Continuation, path)
			}
		case *trace.Alert:
			walk(x.Next, path)
		case *trace.ConsoleMessage:
			walk(x.Next, path)
		case *trace.DomModification:
			walk(x.Next, path)
		case *trace.PageLoad:
			walk(x.Next, path)
		case *trace.Marker:
			walk(x.Next, path)
		case *trace.FunctionCall:
			walk(x.Next, path)
		default:
			// EndSuccess/EndFailure/EndUnknown: no Unexplored reachable here.
		}
	}
	walk(root, nil)
	return f
}

// Unexhausted returns the entries the selection policy is allowed to see.
func (f *Frontier) Unexhausted() []*Entry {
	var out []*Entry
	for _, e := range f.Entries {
		if e.Status != StatusExhausted {
			out = append(out, e)
		}
	}
	return out
}

// Empty reports whether the frontier has no unexhausted entries left — the
// driver's single source of termination.
func (f *Frontier) Empty() bool {
	return len(f.Unexhausted()) == 0
}

// Policy selects the next target from the unexhausted entries the frontier
// exposes. Implementations must not look at Exhausted entries.
type Policy interface {
	Next(unexhausted []*Entry) (*Entry, bool)
}

// DFSPolicy returns entries[0] under the frontier's stable tree-order
// traversal — the literal default, reproducing DFSSelector::nextTarget's
// "return possibleTargets.at(0)".
type DFSPolicy struct{}

func (DFSPolicy) Next(unexhausted []*Entry) (*Entry, bool) {
	if len(unexhausted) == 0 {
		return nil, false
	}
	return unexhausted[0], true
}
