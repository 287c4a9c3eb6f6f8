// Package classify implements the trace classifier: it walks a linear
// trace from its head, uses annotations to decide a classification, and
// rewrites the reached EndUnknown terminal in place. Grounded on
// FormSubmissionClassifier's visitor.
package classify

import (
	"errors"
	"fmt"

	"webconcolic/internal/trace"
)

// Result mirrors FormSubmissionClassifier's TraceClassificationResult.
type Result int

const (
	Unknown Result = iota
	Success
	Failure
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// ErrAlreadyClassified flags a reclassification attempt on a trace whose
// terminal is no longer EndUnknown — a fatal invariant breach.
var ErrAlreadyClassified = errors.New("classify: trace already classified")

// DomIndicatorThreshold is the minimum total indicator-word count that marks
// a DomModification as a failure signal. Classic behavior is "any nonzero
// match count" (threshold 1); exposed here so a caller wanting a stricter
// bar can raise it without touching the classifier's code path.
var DomIndicatorThreshold = 1

// Classify walks root and rewrites the first decisive terminal it reaches.
// It returns the decided Result, or an error if the trace structure is
// already terminated or otherwise malformed.
func Classify(root trace.Node) (Result, error) {
	c := &classifier{result: Unknown}
	if err := c.run(root); err != nil {
		return Unknown, err
	}
	return c.result, nil
}

type classifier struct {
	result Result
	err    error
}

func (c *classifier) run(n trace.Node) error {
	n.Accept(c)
	return c.err
}

func (c *classifier) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *classifier) VisitAlert(n *trace.Alert) {
	c.result = Failure
	if err := insertEndFailure(&n.Next); err != nil {
		c.fail(err)
	}
}

func (c *classifier) VisitDomModification(n *trace.DomModification) {
	total := 0
	for _, count := range n.Words {
		total += count
	}
	if total >= DomIndicatorThreshold {
		c.result = Failure
		if err := insertEndFailure(&n.Next); err != nil {
			c.fail(err)
		}
		return
	}
	if n.Next == nil {
		c.fail(fmt.Errorf("classify: DomModification with nil continuation"))
		return
	}
	n.Next.Accept(c)
}

func (c *classifier) VisitPageLoad(n *trace.PageLoad) {
	c.result = Success
	if err := insertEndSuccess(&n.Next); err != nil {
		c.fail(err)
	}
}

func (c *classifier) VisitMarker(n *trace.Marker) {
	if n.Next == nil {
		c.fail(fmt.Errorf("classify: Marker with nil continuation"))
		return
	}
	n.Next.Accept(c)
}

func (c *classifier) VisitFunctionCall(n *trace.FunctionCall) {
	if n.Next == nil {
		c.fail(fmt.Errorf("classify: FunctionCall with nil continuation"))
		return
	}
	n.Next.Accept(c)
}

func (c *classifier) VisitConsoleMessage(n *trace.ConsoleMessage) {
	if n.Next == nil {
		c.fail(fmt.Errorf("classify: ConsoleMessage with nil continuation"))
		return
	}
	n.Next.Accept(c)
}

// VisitBranch descends into both children: trees normally have just one
// side populated, but both sides are visited defensively.
func (c *classifier) VisitBranch(n *trace.Branch) {
	if n.FalseChild != nil {
		n.FalseChild.Accept(c)
	}
	if n.TrueChild != nil {
		n.TrueChild.Accept(c)
	}
}

func (c *classifier) VisitConcreteSummary(n *trace.ConcreteSummary) {
	for _, ex := range n.Executions {
		if ex.Continuation != nil {
			ex.Continuation.Accept(c)
		}
	}
}

func (c *classifier) VisitUnexplored(n *trace.Unexplored) {}

func (c *classifier) VisitEndUnknown(n *trace.EndUnknown) {
	c.result = Unknown
}

func (c *classifier) VisitEndSuccess(n *trace.EndSuccess) {
	c.fail(fmt.Errorf("%w: reached EndSuccess while classifying", ErrAlreadyClassified))
}

func (c *classifier) VisitEndFailure(n *trace.EndFailure) {
	c.fail(fmt.Errorf("%w: reached EndFailure while classifying", ErrAlreadyClassified))
}

// insertEndFailure replaces slot's current occupant with a fresh EndFailure;
// whatever the slot held before is dropped.
func insertEndFailure(slot *trace.Node) error {
	prevNext := *slot
	end := trace.NewEndFailure()
	// EndFailure is a pure terminal: the former continuation, if any, is
	// discarded — classification stops here by definition.
	_ = prevNext
	*slot = end
	return nil
}

func insertEndSuccess(slot *trace.Node) error {
	end := trace.NewEndSuccess()
	*slot = end
	return nil
}
