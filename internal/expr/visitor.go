package expr

// Visitor dispatches on expression variant. BaseVisitor supplies default
// hooks that recurse into children so a concrete visitor only needs to
// override the variants it cares about.
type Visitor interface {
	VisitConst(e *Const)
	VisitVar(e *Var)
	VisitIntBin(e *IntBin)
	VisitIntCmp(e *IntCmp)
	VisitBoolBin(e *BoolBin)
	VisitBoolNot(e *BoolNot)
	VisitStrBin(e *StrBin)
	VisitStrCmp(e *StrCmp)
	VisitStrCharAt(e *StrCharAt)
	VisitStrReplace(e *StrReplace)
	VisitStrRegexReplace(e *StrRegexReplace)
	VisitStrRegexSubmatchArray(e *StrRegexSubmatchArray)
	VisitStrLength(e *StrLength)
	VisitCoercion(e *Coercion)
}

// BaseVisitor recurses into every child without doing anything else.
// Embed it and override only the hooks a concrete visitor needs.
type BaseVisitor struct {
	Self Visitor // set to the embedding visitor so recursion re-dispatches through overrides
}

func (b *BaseVisitor) self() Visitor {
	if b.Self != nil {
		return b.Self
	}
	return b
}

func (b *BaseVisitor) VisitConst(e *Const) {}
func (b *BaseVisitor) VisitVar(e *Var)     {}

func (b *BaseVisitor) VisitIntBin(e *IntBin) {
	e.Lhs.Accept(b.self())
	e.Rhs.Accept(b.self())
}

func (b *BaseVisitor) VisitIntCmp(e *IntCmp) {
	e.Lhs.Accept(b.self())
	e.Rhs.Accept(b.self())
}

func (b *BaseVisitor) VisitBoolBin(e *BoolBin) {
	e.Lhs.Accept(b.self())
	e.Rhs.Accept(b.self())
}

func (b *BaseVisitor) VisitBoolNot(e *BoolNot) {
	e.Operand.Accept(b.self())
}

func (b *BaseVisitor) VisitStrBin(e *StrBin) {
	e.Lhs.Accept(b.self())
	e.Rhs.Accept(b.self())
}

func (b *BaseVisitor) VisitStrCmp(e *StrCmp) {
	e.Lhs.Accept(b.self())
	e.Rhs.Accept(b.self())
}

func (b *BaseVisitor) VisitStrCharAt(e *StrCharAt) {
	e.Str.Accept(b.self())
	e.Index.Accept(b.self())
}

func (b *BaseVisitor) VisitStrReplace(e *StrReplace) {
	e.Str.Accept(b.self())
	e.Old.Accept(b.self())
	e.New.Accept(b.self())
}

func (b *BaseVisitor) VisitStrRegexReplace(e *StrRegexReplace) {
	e.Str.Accept(b.self())
	e.New.Accept(b.self())
}

func (b *BaseVisitor) VisitStrRegexSubmatchArray(e *StrRegexSubmatchArray) {
	e.Str.Accept(b.self())
}

func (b *BaseVisitor) VisitStrLength(e *StrLength) {
	e.Str.Accept(b.self())
}

func (b *BaseVisitor) VisitCoercion(e *Coercion) {
	e.Operand.Accept(b.self())
}

// FreeVars collects the set of distinct Var names reachable from an
// expression, in first-seen order.
type FreeVars struct {
	BaseVisitor
	seen  map[string]struct{}
	order []string
}

// CollectFreeVars returns the free variable names in e, first-seen order.
func CollectFreeVars(e Expr) []string {
	fv := &FreeVars{seen: make(map[string]struct{})}
	fv.Self = fv
	e.Accept(fv)
	return fv.order
}

func (fv *FreeVars) VisitVar(e *Var) {
	if _, ok := fv.seen[e.Name]; ok {
		return
	}
	fv.seen[e.Name] = struct{}{}
	fv.order = append(fv.order, e.Name)
}

// RenameVars returns a new expression tree with every free variable renamed
// according to table; variables absent from table are left unchanged.
func RenameVars(e Expr, table map[string]string) Expr {
	return renameRec(e, table)
}

func renameRec(e Expr, table map[string]string) Expr {
	switch x := e.(type) {
	case *Const:
		return x
	case *Var:
		if newName, ok := table[x.Name]; ok {
			return NewVar(newName)
		}
		return x
	case *IntBin:
		return NewIntBin(x.Op, renameRec(x.Lhs, table), renameRec(x.Rhs, table))
	case *IntCmp:
		return NewIntCmp(x.Op, renameRec(x.Lhs, table), renameRec(x.Rhs, table))
	case *BoolBin:
		return NewBoolBin(x.Op, renameRec(x.Lhs, table), renameRec(x.Rhs, table))
	case *BoolNot:
		return NewBoolNot(renameRec(x.Operand, table))
	case *StrBin:
		return NewStrBin(x.Op, renameRec(x.Lhs, table), renameRec(x.Rhs, table))
	case *StrCmp:
		return NewStrCmp(x.Op, renameRec(x.Lhs, table), renameRec(x.Rhs, table))
	case *StrCharAt:
		return NewStrCharAt(renameRec(x.Str, table), renameRec(x.Index, table))
	case *StrReplace:
		return NewStrReplace(renameRec(x.Str, table), renameRec(x.Old, table), renameRec(x.New, table))
	case *StrRegexReplace:
		return NewStrRegexReplace(renameRec(x.Str, table), x.Regex, renameRec(x.New, table))
	case *StrRegexSubmatchArray:
		return NewStrRegexSubmatchArray(renameRec(x.Str, table), x.Regex)
	case *StrLength:
		return NewStrLength(renameRec(x.Str, table))
	case *Coercion:
		return NewCoercion(x.SrcKind, x.DstKind, renameRec(x.Operand, table))
	default:
		return e
	}
}
