// Package trace implements the shared trace tree: node variants, the
// merger's setChild mutator, and per-variant shallow structural equality.
package trace

import (
	"fmt"

	"webconcolic/internal/expr"
)

// Node is the interface every trace tree variant satisfies. Accept performs
// double-dispatch to a Visitor; SetChild is used only by the merger to graft
// a subtree in place; IsEqualShallow compares a node's own fields against
// another node, ignoring children, and is the merger's node-identity check.
type Node interface {
	Accept(v Visitor)
	SetChild(position int, child Node) error
	IsEqualShallow(other Node) bool
}

// EventType is a token recorded in a ConcreteSummary execution's event
// stream, matching the three concrete event kinds the trace builder emits
// between interesting nodes.
type EventType int

const (
	BranchFalse EventType = iota
	BranchTrue
	FunctionCallEvent
)

func (e EventType) String() string {
	switch e {
	case BranchFalse:
		return "BranchFalse"
	case BranchTrue:
		return "BranchTrue"
	case FunctionCallEvent:
		return "FunctionCall"
	default:
		return "EventType(?)"
	}
}

// --- Annotations -----------------------------------------------------------

// Alert is a single-child annotation recording a JavaScript alert() call.
type Alert struct {
	Message string
	Next    Node
}

func NewAlert(message string) *Alert { return &Alert{Message: message} }

func (n *Alert) Accept(v Visitor) { v.VisitAlert(n) }

func (n *Alert) SetChild(position int, child Node) error {
	if position != 0 {
		return fmt.Errorf("trace: Alert.SetChild: position %d out of range [0,1)", position)
	}
	n.Next = child
	return nil
}

func (n *Alert) IsEqualShallow(other Node) bool {
	_, ok := other.(*Alert)
	return ok
}

// ConsoleMessage is a single-child annotation recording a console.log-style call.
type ConsoleMessage struct {
	Message string
	Next    Node
}

func NewConsoleMessage(message string) *ConsoleMessage { return &ConsoleMessage{Message: message} }

func (n *ConsoleMessage) Accept(v Visitor) { v.VisitConsoleMessage(n) }

func (n *ConsoleMessage) SetChild(position int, child Node) error {
	if position != 0 {
		return fmt.Errorf("trace: ConsoleMessage.SetChild: position %d out of range [0,1)", position)
	}
	n.Next = child
	return nil
}

func (n *ConsoleMessage) IsEqualShallow(other Node) bool {
	_, ok := other.(*ConsoleMessage)
	return ok
}

// DomModification is a single-child annotation recording an observed DOM
// mutation, with a magnitude and a per-indicator-word occurrence count.
type DomModification struct {
	Amount float64
	Words  map[int]int // indicator-word index -> count
	Next   Node
}

func NewDomModification(amount float64, words map[int]int) *DomModification {
	if words == nil {
		words = map[int]int{}
	}
	return &DomModification{Amount: amount, Words: words}
}

func (n *DomModification) Accept(v Visitor) { v.VisitDomModification(n) }

func (n *DomModification) SetChild(position int, child Node) error {
	if position != 0 {
		return fmt.Errorf("trace: DomModification.SetChild: position %d out of range [0,1)", position)
	}
	n.Next = child
	return nil
}

func (n *DomModification) IsEqualShallow(other Node) bool {
	_, ok := other.(*DomModification)
	return ok
}

// PageLoad is a single-child annotation recording navigation to a new URL.
type PageLoad struct {
	URL  string
	Next Node
}

func NewPageLoad(url string) *PageLoad { return &PageLoad{URL: url} }

func (n *PageLoad) Accept(v Visitor) { v.VisitPageLoad(n) }

func (n *PageLoad) SetChild(position int, child Node) error {
	if position != 0 {
		return fmt.Errorf("trace: PageLoad.SetChild: position %d out of range [0,1)", position)
	}
	n.Next = child
	return nil
}

func (n *PageLoad) IsEqualShallow(other Node) bool {
	_, ok := other.(*PageLoad)
	return ok
}

// SelectRestriction carries the admissible-value set of a select/radio-group
// form field, recorded on a Marker that guards entry to a restricted field.
type SelectRestriction struct {
	VariableName string
	LegalValues  []string
}

// Marker is a single-child annotation instrumenting a named point in the
// page's control flow, optionally tied to a select/radio-group restriction.
// Markers compare equal only when label AND index match: a divergent index
// is an intentional divergence point, never silently unified.
type Marker struct {
	Label             string
	Index             string
	SelectRestriction *SelectRestriction
	Next              Node
}

func NewMarker(label, index string, sel *SelectRestriction) *Marker {
	return &Marker{Label: label, Index: index, SelectRestriction: sel}
}

func (n *Marker) Accept(v Visitor) { v.VisitMarker(n) }

func (n *Marker) SetChild(position int, child Node) error {
	if position != 0 {
		return fmt.Errorf("trace: Marker.SetChild: position %d out of range [0,1)", position)
	}
	n.Next = child
	return nil
}

func (n *Marker) IsEqualShallow(other Node) bool {
	o, ok := other.(*Marker)
	return ok && o.Label == n.Label && o.Index == n.Index
}

// FunctionCall is a single-child annotation recording entry to a named
// function, used outside of a ConcreteSummary run (e.g. adjoining a branch).
type FunctionCall struct {
	Name string
	Next Node
}

func NewFunctionCall(name string) *FunctionCall { return &FunctionCall{Name: name} }

func (n *FunctionCall) Accept(v Visitor) { v.VisitFunctionCall(n) }

func (n *FunctionCall) SetChild(position int, child Node) error {
	if position != 0 {
		return fmt.Errorf("trace: FunctionCall.SetChild: position %d out of range [0,1)", position)
	}
	n.Next = child
	return nil
}

func (n *FunctionCall) IsEqualShallow(other Node) bool {
	o, ok := other.(*FunctionCall)
	return ok && o.Name == n.Name
}

// --- Branch ------------------------------------------------------------

// Branch is a symbolic two-way node: Condition is the expression evaluated,
// TrueChild/FalseChild are its successors (one may be Unexplored).
type Branch struct {
	Condition  expr.Expr
	TrueChild  Node
	FalseChild Node
}

func NewBranch(condition expr.Expr) *Branch {
	return &Branch{Condition: condition, TrueChild: NewUnexplored(), FalseChild: NewUnexplored()}
}

func (n *Branch) Accept(v Visitor) { v.VisitBranch(n) }

func (n *Branch) SetChild(position int, child Node) error {
	switch position {
	case 0:
		n.FalseChild = child
	case 1:
		n.TrueChild = child
	default:
		return fmt.Errorf("trace: Branch.SetChild: position %d out of range [0,2)", position)
	}
	return nil
}

// IsEqualShallow requires structurally equal conditions: two Branch nodes on
// distinct traces at the "same" tree position must agree on C (invariant 2).
func (n *Branch) IsEqualShallow(other Node) bool {
	o, ok := other.(*Branch)
	return ok && expr.Equal(n.Condition, o.Condition)
}

// ChildFor returns the child on the side matching direction taken.
func (n *Branch) ChildFor(taken bool) Node {
	if taken {
		return n.TrueChild
	}
	return n.FalseChild
}

// SetChildFor sets the child on the side matching direction taken.
func (n *Branch) SetChildFor(taken bool, child Node) {
	if taken {
		n.TrueChild = child
	} else {
		n.FalseChild = child
	}
}

// --- ConcreteSummary -----------------------------------------------------

// Execution is one possible concrete run recorded by a ConcreteSummary: the
// sequence of concrete events taken, and the continuation they lead to.
type Execution struct {
	Events       []EventType
	Continuation Node
}

// ConcreteSummary lumps together a run of concrete branches/function calls
// between two interesting nodes. It is never empty; when multiple traces
// disagree only on concrete branch direction they share a common event
// prefix and diverge into distinct Executions (invariant 4).
type ConcreteSummary struct {
	Executions []*Execution
}

// NewConcreteSummary returns a summary with one empty-prefix execution whose
// continuation is Unexplored, ready to have events pushed onto it.
func NewConcreteSummary() *ConcreteSummary {
	return &ConcreteSummary{Executions: []*Execution{{Continuation: NewUnexplored()}}}
}

func (n *ConcreteSummary) Accept(v Visitor) { v.VisitConcreteSummary(n) }

func (n *ConcreteSummary) SetChild(position int, child Node) error {
	if position < 0 || position >= len(n.Executions) {
		return fmt.Errorf("trace: ConcreteSummary.SetChild: position %d out of range [0,%d)", position, len(n.Executions))
	}
	n.Executions[position].Continuation = child
	return nil
}

func (n *ConcreteSummary) IsEqualShallow(other Node) bool {
	_, ok := other.(*ConcreteSummary)
	return ok
}

// NumBranches reports, per execution, the count of BranchFalse/BranchTrue
// events in that execution's prefix.
func (n *ConcreteSummary) NumBranches() []int {
	result := make([]int, len(n.Executions))
	for i, ex := range n.Executions {
		count := 0
		for _, e := range ex.Events {
			if e == BranchFalse || e == BranchTrue {
				count++
			}
		}
		result[i] = count
	}
	return result
}

// NumFunctions reports, per execution, the count of FunctionCall events in
// that execution's prefix.
func (n *ConcreteSummary) NumFunctions() []int {
	result := make([]int, len(n.Executions))
	for i, ex := range n.Executions {
		count := 0
		for _, e := range ex.Events {
			if e == FunctionCallEvent {
				count++
			}
		}
		result[i] = count
	}
	return result
}

// --- Terminals -----------------------------------------------------------

// terminal carries the set of trace indices (iteration numbers) that reached
// this leaf. Embedded by every concrete terminal variant.
type terminal struct {
	TraceIndices map[int]struct{}
}

func newTerminal() terminal { return terminal{TraceIndices: map[int]struct{}{}} }

// AddTraceIndex records that trace index idx reached this terminal.
func (t *terminal) AddTraceIndex(idx int) { t.TraceIndices[idx] = struct{}{} }

// SetChild on any terminal is always an error: terminals have no children.
func (t *terminal) SetChild(position int, child Node) error {
	return fmt.Errorf("trace: terminal nodes reject SetChild (position %d)", position)
}

// EndSuccess is a terminal reached via a PageLoad with no failure signal.
type EndSuccess struct{ terminal }

func NewEndSuccess() *EndSuccess { return &EndSuccess{terminal: newTerminal()} }

func (n *EndSuccess) Accept(v Visitor) { v.VisitEndSuccess(n) }

func (n *EndSuccess) IsEqualShallow(other Node) bool {
	_, ok := other.(*EndSuccess)
	return ok
}

// EndFailure is a terminal reached via an Alert or a significant DomModification.
type EndFailure struct{ terminal }

func NewEndFailure() *EndFailure { return &EndFailure{terminal: newTerminal()} }

func (n *EndFailure) Accept(v Visitor) { v.VisitEndFailure(n) }

func (n *EndFailure) IsEqualShallow(other Node) bool {
	_, ok := other.(*EndFailure)
	return ok
}

// EndUnknown is a terminal the classifier could not decide.
type EndUnknown struct{ terminal }

func NewEndUnknown() *EndUnknown { return &EndUnknown{terminal: newTerminal()} }

func (n *EndUnknown) Accept(v Visitor) { v.VisitEndUnknown(n) }

func (n *EndUnknown) IsEqualShallow(other Node) bool {
	_, ok := other.(*EndUnknown)
	return ok
}

// Unexplored is the sentinel placed at every not-yet-taken Branch side and
// at the frontier of a fresh trace. It is the only legal child of an
// otherwise-populated tree position.
type Unexplored struct{ terminal }

func NewUnexplored() *Unexplored { return &Unexplored{terminal: newTerminal()} }

func (n *Unexplored) Accept(v Visitor) { v.VisitUnexplored(n) }

func (n *Unexplored) IsEqualShallow(other Node) bool {
	_, ok := other.(*Unexplored)
	return ok
}
