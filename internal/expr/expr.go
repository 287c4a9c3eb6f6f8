// Package expr implements the symbolic expression model: a typed,
// immutable expression tree over integers, booleans, and strings, with
// structural equality and double-dispatch visitors. Expressions never
// constant-fold; evaluation and simplification belong to later stages
// (the solver encoder, or a caller).
package expr

import "fmt"

// Kind tags the concrete variant of an Expr.
type Kind int

const (
	KindConst Kind = iota
	KindVar
	KindIntBin
	KindIntCmp
	KindBoolBin
	KindBoolNot
	KindStrBin
	KindStrCmp
	KindStrCharAt
	KindStrReplace
	KindStrRegexReplace
	KindStrRegexSubmatchArray
	KindStrLength
	KindCoercion
)

// ValueKind tags the Go-level type a Const or Coercion carries.
type ValueKind int

const (
	ValueInt ValueKind = iota
	ValueBool
	ValueString
)

// Expr is the sum type over all expression variants. Every concrete type
// in this package implements it. Expr values are immutable and intended
// to be shared by reference; two Exprs are equal iff Equal reports true.
type Expr interface {
	Kind() Kind
	// Accept dispatches to the matching Visitor hook.
	Accept(v Visitor)
	// String renders the expression in a stable, parseable form.
	String() string
}

// Equal reports whether two expressions are structurally identical:
// same variant, same operator, and recursively equal children. Equal
// never panics on mismatched types; it simply returns false.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Const:
		y := b.(*Const)
		return x.ValueKind == y.ValueKind && x.Int == y.Int && x.Bool == y.Bool && x.Str == y.Str
	case *Var:
		y := b.(*Var)
		return x.Name == y.Name
	case *IntBin:
		y := b.(*IntBin)
		return x.Op == y.Op && Equal(x.Lhs, y.Lhs) && Equal(x.Rhs, y.Rhs)
	case *IntCmp:
		y := b.(*IntCmp)
		return x.Op == y.Op && Equal(x.Lhs, y.Lhs) && Equal(x.Rhs, y.Rhs)
	case *BoolBin:
		y := b.(*BoolBin)
		return x.Op == y.Op && Equal(x.Lhs, y.Lhs) && Equal(x.Rhs, y.Rhs)
	case *BoolNot:
		y := b.(*BoolNot)
		return Equal(x.Operand, y.Operand)
	case *StrBin:
		y := b.(*StrBin)
		return x.Op == y.Op && Equal(x.Lhs, y.Lhs) && Equal(x.Rhs, y.Rhs)
	case *StrCmp:
		y := b.(*StrCmp)
		return x.Op == y.Op && Equal(x.Lhs, y.Lhs) && Equal(x.Rhs, y.Rhs)
	case *StrCharAt:
		y := b.(*StrCharAt)
		return Equal(x.Str, y.Str) && Equal(x.Index, y.Index)
	case *StrReplace:
		y := b.(*StrReplace)
		return Equal(x.Str, y.Str) && Equal(x.Old, y.Old) && Equal(x.New, y.New)
	case *StrRegexReplace:
		y := b.(*StrRegexReplace)
		return x.Regex == y.Regex && Equal(x.Str, y.Str) && Equal(x.New, y.New)
	case *StrRegexSubmatchArray:
		y := b.(*StrRegexSubmatchArray)
		return x.Regex == y.Regex && Equal(x.Str, y.Str)
	case *StrLength:
		y := b.(*StrLength)
		return Equal(x.Str, y.Str)
	case *Coercion:
		y := b.(*Coercion)
		return x.SrcKind == y.SrcKind && x.DstKind == y.DstKind && Equal(x.Operand, y.Operand)
	default:
		return false
	}
}

// IntBinOp enumerates integer binary operators.
type IntBinOp int

const (
	IntAdd IntBinOp = iota
	IntSub
	IntMul
	IntMod
)

func (op IntBinOp) String() string {
	switch op {
	case IntAdd:
		return "+"
	case IntSub:
		return "-"
	case IntMul:
		return "*"
	case IntMod:
		return "%"
	default:
		return "?"
	}
}

// IntCmpOp enumerates integer comparison operators.
type IntCmpOp int

const (
	IntEq IntCmpOp = iota
	IntNeq
	IntLt
	IntLe
	IntGt
	IntGe
)

func (op IntCmpOp) String() string {
	switch op {
	case IntEq:
		return "=="
	case IntNeq:
		return "!="
	case IntLt:
		return "<"
	case IntLe:
		return "<="
	case IntGt:
		return ">"
	case IntGe:
		return ">="
	default:
		return "?"
	}
}

// BoolBinOp enumerates boolean binary operators.
type BoolBinOp int

const (
	BoolAnd BoolBinOp = iota
	BoolOr
	BoolEq
	BoolNeq
	BoolSeq  // strict/identity equality
	BoolSneq // strict/identity inequality
)

func (op BoolBinOp) String() string {
	switch op {
	case BoolAnd:
		return "&&"
	case BoolOr:
		return "||"
	case BoolEq:
		return "=="
	case BoolNeq:
		return "!="
	case BoolSeq:
		return "==="
	case BoolSneq:
		return "!=="
	default:
		return "?"
	}
}

// StrBinOp enumerates string binary operators.
type StrBinOp int

const (
	StrConcat StrBinOp = iota
)

func (op StrBinOp) String() string { return "++" }

// StrCmpOp enumerates string comparison operators.
type StrCmpOp int

const (
	StrEq StrCmpOp = iota
	StrNeq
	StrIn
	StrNotIn
)

func (op StrCmpOp) String() string {
	switch op {
	case StrEq:
		return "=="
	case StrNeq:
		return "!="
	case StrIn:
		return "in"
	case StrNotIn:
		return "not-in"
	default:
		return "?"
	}
}

// Const is a literal integer, boolean, or string.
type Const struct {
	ValueKind ValueKind
	Int       int64
	Bool      bool
	Str       string
}

func ConstInt(v int64) *Const     { return &Const{ValueKind: ValueInt, Int: v} }
func ConstBool(v bool) *Const     { return &Const{ValueKind: ValueBool, Bool: v} }
func ConstString(v string) *Const { return &Const{ValueKind: ValueString, Str: v} }

func (c *Const) Kind() Kind       { return KindConst }
func (c *Const) Accept(v Visitor) { v.VisitConst(c) }
func (c *Const) String() string {
	switch c.ValueKind {
	case ValueInt:
		return fmt.Sprintf("%d", c.Int)
	case ValueBool:
		return fmt.Sprintf("%t", c.Bool)
	default:
		return fmt.Sprintf("%q", c.Str)
	}
}

// Var is a symbolic input variable, globally unique by name.
type Var struct {
	Name string
}

func NewVar(name string) *Var { return &Var{Name: name} }

func (x *Var) Kind() Kind       { return KindVar }
func (x *Var) Accept(v Visitor) { v.VisitVar(x) }
func (x *Var) String() string   { return x.Name }

// IntBin is a binary integer operation.
type IntBin struct {
	Op       IntBinOp
	Lhs, Rhs Expr
}

func NewIntBin(op IntBinOp, lhs, rhs Expr) *IntBin { return &IntBin{Op: op, Lhs: lhs, Rhs: rhs} }

func (e *IntBin) Kind() Kind       { return KindIntBin }
func (e *IntBin) Accept(v Visitor) { v.VisitIntBin(e) }
func (e *IntBin) String() string   { return fmt.Sprintf("(%s %s %s)", e.Lhs, e.Op, e.Rhs) }

// IntCmp is an integer comparison, yielding a boolean.
type IntCmp struct {
	Op       IntCmpOp
	Lhs, Rhs Expr
}

func NewIntCmp(op IntCmpOp, lhs, rhs Expr) *IntCmp { return &IntCmp{Op: op, Lhs: lhs, Rhs: rhs} }

func (e *IntCmp) Kind() Kind       { return KindIntCmp }
func (e *IntCmp) Accept(v Visitor) { v.VisitIntCmp(e) }
func (e *IntCmp) String() string   { return fmt.Sprintf("(%s %s %s)", e.Lhs, e.Op, e.Rhs) }

// BoolBin is a binary boolean operation.
type BoolBin struct {
	Op       BoolBinOp
	Lhs, Rhs Expr
}

func NewBoolBin(op BoolBinOp, lhs, rhs Expr) *BoolBin { return &BoolBin{Op: op, Lhs: lhs, Rhs: rhs} }

func (e *BoolBin) Kind() Kind       { return KindBoolBin }
func (e *BoolBin) Accept(v Visitor) { v.VisitBoolBin(e) }
func (e *BoolBin) String() string   { return fmt.Sprintf("(%s %s %s)", e.Lhs, e.Op, e.Rhs) }

// BoolNot negates a boolean expression.
type BoolNot struct {
	Operand Expr
}

func NewBoolNot(operand Expr) *BoolNot { return &BoolNot{Operand: operand} }

func (e *BoolNot) Kind() Kind       { return KindBoolNot }
func (e *BoolNot) Accept(v Visitor) { v.VisitBoolNot(e) }
func (e *BoolNot) String() string   { return fmt.Sprintf("!(%s)", e.Operand) }

// StrBin is a binary string operation (concat).
type StrBin struct {
	Op       StrBinOp
	Lhs, Rhs Expr
}

func NewStrBin(op StrBinOp, lhs, rhs Expr) *StrBin { return &StrBin{Op: op, Lhs: lhs, Rhs: rhs} }

func (e *StrBin) Kind() Kind       { return KindStrBin }
func (e *StrBin) Accept(v Visitor) { v.VisitStrBin(e) }
func (e *StrBin) String() string   { return fmt.Sprintf("(%s %s %s)", e.Lhs, e.Op, e.Rhs) }

// StrCmp is a string comparison, yielding a boolean.
type StrCmp struct {
	Op       StrCmpOp
	Lhs, Rhs Expr
}

func NewStrCmp(op StrCmpOp, lhs, rhs Expr) *StrCmp { return &StrCmp{Op: op, Lhs: lhs, Rhs: rhs} }

func (e *StrCmp) Kind() Kind       { return KindStrCmp }
func (e *StrCmp) Accept(v Visitor) { v.VisitStrCmp(e) }
func (e *StrCmp) String() string   { return fmt.Sprintf("(%s %s %s)", e.Lhs, e.Op, e.Rhs) }

// StrCharAt indexes a single character out of a string.
type StrCharAt struct {
	Str, Index Expr
}

func NewStrCharAt(str, index Expr) *StrCharAt { return &StrCharAt{Str: str, Index: index} }

func (e *StrCharAt) Kind() Kind       { return KindStrCharAt }
func (e *StrCharAt) Accept(v Visitor) { v.VisitStrCharAt(e) }
func (e *StrCharAt) String() string   { return fmt.Sprintf("%s[%s]", e.Str, e.Index) }

// StrReplace replaces occurrences of Old with New in Str.
type StrReplace struct {
	Str, Old, New Expr
}

func NewStrReplace(str, old, new Expr) *StrReplace {
	return &StrReplace{Str: str, Old: old, New: new}
}

func (e *StrReplace) Kind() Kind       { return KindStrReplace }
func (e *StrReplace) Accept(v Visitor) { v.VisitStrReplace(e) }
func (e *StrReplace) String() string {
	return fmt.Sprintf("replace(%s, %s, %s)", e.Str, e.Old, e.New)
}

// StrRegexReplace replaces matches of Regex in Str with New.
type StrRegexReplace struct {
	Str, New Expr
	Regex    string
}

func NewStrRegexReplace(str Expr, regex string, new Expr) *StrRegexReplace {
	return &StrRegexReplace{Str: str, Regex: regex, New: new}
}

func (e *StrRegexReplace) Kind() Kind       { return KindStrRegexReplace }
func (e *StrRegexReplace) Accept(v Visitor) { v.VisitStrRegexReplace(e) }
func (e *StrRegexReplace) String() string {
	return fmt.Sprintf("regexReplace(%s, /%s/, %s)", e.Str, e.Regex, e.New)
}

// StrRegexSubmatchArray extracts the submatch array of Regex against Str.
type StrRegexSubmatchArray struct {
	Str   Expr
	Regex string
}

func NewStrRegexSubmatchArray(str Expr, regex string) *StrRegexSubmatchArray {
	return &StrRegexSubmatchArray{Str: str, Regex: regex}
}

func (e *StrRegexSubmatchArray) Kind() Kind       { return KindStrRegexSubmatchArray }
func (e *StrRegexSubmatchArray) Accept(v Visitor) { v.VisitStrRegexSubmatchArray(e) }
func (e *StrRegexSubmatchArray) String() string {
	return fmt.Sprintf("regexSubmatch(%s, /%s/)", e.Str, e.Regex)
}

// StrLength is the length of a string expression.
type StrLength struct {
	Str Expr
}

func NewStrLength(str Expr) *StrLength { return &StrLength{Str: str} }

func (e *StrLength) Kind() Kind       { return KindStrLength }
func (e *StrLength) Accept(v Visitor) { v.VisitStrLength(e) }
func (e *StrLength) String() string   { return fmt.Sprintf("len(%s)", e.Str) }

// Coercion is an explicit typed coercion from one value kind to another.
type Coercion struct {
	SrcKind, DstKind ValueKind
	Operand          Expr
}

func NewCoercion(srcKind, dstKind ValueKind, operand Expr) *Coercion {
	return &Coercion{SrcKind: srcKind, DstKind: dstKind, Operand: operand}
}

func (e *Coercion) Kind() Kind       { return KindCoercion }
func (e *Coercion) Accept(v Visitor) { v.VisitCoercion(e) }
func (e *Coercion) String() string   { return fmt.Sprintf("coerce(%s)", e.Operand) }
