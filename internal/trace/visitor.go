package trace

// Visitor double-dispatches over every trace node variant.
type Visitor interface {
	VisitAlert(n *Alert)
	VisitConsoleMessage(n *ConsoleMessage)
	VisitDomModification(n *DomModification)
	VisitPageLoad(n *PageLoad)
	VisitMarker(n *Marker)
	VisitFunctionCall(n *FunctionCall)
	VisitBranch(n *Branch)
	VisitConcreteSummary(n *ConcreteSummary)
	VisitEndSuccess(n *EndSuccess)
	VisitEndFailure(n *EndFailure)
	VisitEndUnknown(n *EndUnknown)
	VisitUnexplored(n *Unexplored)
}

// BaseVisitor recurses into every child without doing anything else; a
// concrete visitor embeds it and overrides the hooks it needs. Recursion
// re-dispatches through Self so overrides in the embedding visitor still
// fire on descendants.
type BaseVisitor struct {
	Self Visitor
}

func (b *BaseVisitor) self() Visitor {
	if b.Self != nil {
		return b.Self
	}
	return b
}

func (b *BaseVisitor) VisitAlert(n *Alert) {
	if n.Next != nil {
		n.Next.Accept(b.self())
	}
}

func (b *BaseVisitor) VisitConsoleMessage(n *ConsoleMessage) {
	if n.Next != nil {
		n.Next.Accept(b.self())
	}
}

func (b *BaseVisitor) VisitDomModification(n *DomModification) {
	if n.Next != nil {
		n.Next.Accept(b.self())
	}
}

func (b *BaseVisitor) VisitPageLoad(n *PageLoad) {
	if n.Next != nil {
		n.Next.Accept(b.self())
	}
}

func (b *BaseVisitor) VisitMarker(n *Marker) {
	if n.Next != nil {
		n.Next.Accept(b.self())
	}
}

func (b *BaseVisitor) VisitFunctionCall(n *FunctionCall) {
	if n.Next != nil {
		n.Next.Accept(b.self())
	}
}

func (b *BaseVisitor) VisitBranch(n *Branch) {
	if n.FalseChild != nil {
		n.FalseChild.Accept(b.self())
	}
	if n.TrueChild != nil {
		n.TrueChild.Accept(b.self())
	}
}

func (b *BaseVisitor) VisitConcreteSummary(n *ConcreteSummary) {
	for _, ex := range n.Executions {
		if ex.Continuation != nil {
			ex.Continuation.Accept(b.self())
		}
	}
}

func (b *BaseVisitor) VisitEndSuccess(n *EndSuccess) {}
func (b *BaseVisitor) VisitEndFailure(n *EndFailure) {}
func (b *BaseVisitor) VisitEndUnknown(n *EndUnknown) {}
func (b *BaseVisitor) VisitUnexplored(n *Unexplored) {}
