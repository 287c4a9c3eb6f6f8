package fd

import (
	"github.com/gitrdm/gokanlogic/pkg/minikanren"

	"webconcolic/internal/expr"
	"webconcolic/internal/forms"
)

// CompoundBound is the offset (and effective magnitude bound) used for every
// int-valued term, atomic or derived: actual value = FDVariable.Value() -
// CompoundBound. It is wider than IntBound so that sums/differences of two
// atomic int variables stay representable without a second rescale.
const CompoundBound = IntBound * 4

// offsetConstVar returns a cached singleton-domain variable valued
// CompoundBound, the additive correction every Add/Sub encoding needs.
func (enc *encoder) offsetConstVar() *minikanren.FDVariable {
	if enc.offsetConst == nil {
		enc.offsetConst = enc.model.NewVariable(minikanren.DomainValues(CompoundBound))
	}
	return enc.offsetConst
}

// constIntVar returns a fresh singleton-domain variable representing the
// literal integer value v as an int term (same CompoundBound offset as
// every other int term).
func (enc *encoder) constIntVar(v int64) *minikanren.FDVariable {
	return enc.model.NewVariable(minikanren.DomainValues(int(v) + CompoundBound))
}

// intTerm compiles e into an FD variable representing its integer value
// under the uniform CompoundBound offset, or an unsupported error.
func (enc *encoder) intTerm(e expr.Expr) (*minikanren.FDVariable, error) {
	switch x := e.(type) {
	case *expr.Const:
		if x.ValueKind != expr.ValueInt {
			return nil, unsupported("int term from non-int constant %s", x.String())
		}
		return enc.constIntVar(x.Int), nil

	case *expr.Var:
		return enc.intVar(x.Name), nil

	case *expr.IntBin:
		return enc.intBinTerm(x)

	case *expr.Coercion:
		if x.DstKind == expr.ValueInt {
			return enc.intTerm(x.Operand)
		}
		return nil, unsupported("int term from coercion to %v", x.DstKind)

	default:
		return nil, unsupported("int term from %T", e)
	}
}

func (enc *encoder) intBinTerm(x *expr.IntBin) (*minikanren.FDVariable, error) {
	lhsConst, lhsIsConst := x.Lhs.(*expr.Const)
	rhsConst, rhsIsConst := x.Rhs.(*expr.Const)

	switch x.Op {
	case expr.IntAdd:
		lv, err := enc.intTerm(x.Lhs)
		if err != nil {
			return nil, err
		}
		rv, err := enc.intTerm(x.Rhs)
		if err != nil {
			return nil, err
		}
		total := enc.model.IntVar(1, 2*CompoundBound+1, "")
		if err := enc.model.LinearSum([]*minikanren.FDVariable{lv, rv, enc.offsetConstVar()}, []int{1, 1, -1}, total); err != nil {
			return nil, err
		}
		return total, nil

	case expr.IntSub:
		lv, err := enc.intTerm(x.Lhs)
		if err != nil {
			return nil, err
		}
		rv, err := enc.intTerm(x.Rhs)
		if err != nil {
			return nil, err
		}
		total := enc.model.IntVar(1, 2*CompoundBound+1, "")
		if err := enc.model.LinearSum([]*minikanren.FDVariable{lv, rv, enc.offsetConstVar()}, []int{1, -1, 1}, total); err != nil {
			return nil, err
		}
		return total, nil

	case expr.IntMul:
		// Only the scalar case (one side a literal constant) is linear.
		switch {
		case rhsIsConst && !lhsIsConst:
			return enc.scalarMul(x.Lhs, rhsConst.Int)
		case lhsIsConst && !rhsIsConst:
			return enc.scalarMul(x.Rhs, lhsConst.Int)
		case lhsIsConst && rhsIsConst:
			return enc.constIntVar(lhsConst.Int * rhsConst.Int), nil
		default:
			return nil, unsupported("IntMul between two non-constant operands")
		}

	case expr.IntMod:
		// Sign semantics of modulo over a shifted, bounded domain are subtle
		// enough (JS-style % can yield negative results) that we decline
		// rather than risk a silent miscompile.
		return nil, unsupported("IntMod")

	default:
		return nil, unsupported("IntBin op %v", x.Op)
	}
}

// scalarMul compiles k*operand as a linear relation: total = k*repr(operand) - (k-1)*OFF.
func (enc *encoder) scalarMul(operand expr.Expr, k int64) (*minikanren.FDVariable, error) {
	v, err := enc.intTerm(operand)
	if err != nil {
		return nil, err
	}
	total := enc.model.IntVar(1, 2*CompoundBound*int(absInt64(k)+1)+1, "")
	if err := enc.model.LinearSum(
		[]*minikanren.FDVariable{v, enc.offsetConstVar()},
		[]int{int(k), -(int(k) - 1)},
		total,
	); err != nil {
		return nil, err
	}
	return total, nil
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// assertIntCmp posts x op y (or its negation) between two int terms. Since
// every int term shares the same CompoundBound offset, comparing the raw FD
// representations is equivalent to comparing actual values.
func (enc *encoder) assertIntCmp(op expr.IntCmpOp, lhs, rhs expr.Expr, negate bool) error {
	x, err := enc.intTerm(lhs)
	if err != nil {
		return err
	}
	y, err := enc.intTerm(rhs)
	if err != nil {
		return err
	}
	effective := op
	if negate {
		effective = negateIntCmp(op)
	}
	return enc.postIntCmp(x, y, effective)
}

func negateIntCmp(op expr.IntCmpOp) expr.IntCmpOp {
	switch op {
	case expr.IntEq:
		return expr.IntNeq
	case expr.IntNeq:
		return expr.IntEq
	case expr.IntLt:
		return expr.IntGe
	case expr.IntLe:
		return expr.IntGt
	case expr.IntGt:
		return expr.IntLe
	case expr.IntGe:
		return expr.IntLt
	default:
		return op
	}
}

func (enc *encoder) postIntCmp(x, y *minikanren.FDVariable, op expr.IntCmpOp) error {
	switch op {
	case expr.IntEq:
		return enc.assertVarEq(x, y)
	case expr.IntNeq:
		c, err := minikanren.NewInequality(x, y, minikanren.NotEqual)
		if err != nil {
			return err
		}
		enc.model.AddConstraint(c)
		return nil
	case expr.IntLt:
		return enc.addInequality(x, y, minikanren.LessThan)
	case expr.IntLe:
		return enc.addInequality(x, y, minikanren.LessEqual)
	case expr.IntGt:
		return enc.addInequality(x, y, minikanren.GreaterThan)
	case expr.IntGe:
		return enc.addInequality(x, y, minikanren.GreaterEqual)
	default:
		return unsupported("IntCmp op %v", op)
	}
}

func (enc *encoder) addInequality(x, y *minikanren.FDVariable, kind minikanren.InequalityKind) error {
	c, err := minikanren.NewInequality(x, y, kind)
	if err != nil {
		return err
	}
	enc.model.AddConstraint(c)
	return nil
}

// assertVarEq posts x == y via two non-strict inequalities, since gokanlogic
// has no direct "Equal" InequalityKind at the Model constraint level.
func (enc *encoder) assertVarEq(x, y *minikanren.FDVariable) error {
	if err := enc.addInequality(x, y, minikanren.LessEqual); err != nil {
		return err
	}
	return enc.addInequality(x, y, minikanren.GreaterEqual)
}

// assertStrCmp handles string equality/inequality between a Var and a Const,
// or between two Consts (resolved at encode time). Var-to-Var comparison and
// substring membership (In/NotIn) are declined: see package doc comment.
func (enc *encoder) assertStrCmp(op expr.StrCmpOp, lhs, rhs expr.Expr, negate bool) error {
	effectiveEq := op == expr.StrEq
	if negate {
		effectiveEq = !effectiveEq
	}
	switch op {
	case expr.StrEq, expr.StrNeq:
		// handled by effectiveEq below
	default:
		return unsupported("StrCmp op %v", op)
	}

	lv, lok := asStringConst(lhs)
	rv, rok := asStringConst(rhs)

	switch {
	case lok && rok:
		actual := lv == rv
		if actual != effectiveEq {
			enc.assertInfeasible()
		}
		return nil

	case lok || rok:
		varExpr, constVal := rhs, lv
		if lok {
			varExpr, constVal = lhs, rv
		}
		name, ok := varName(varExpr)
		if !ok {
			return unsupported("StrCmp with non-variable, non-constant operand")
		}
		v := enc.stringVar(name, []string{constVal})
		idx := enc.indexOfString(name, constVal)
		constVar := enc.model.NewVariable(minikanren.DomainValues(idx))
		if effectiveEq {
			return enc.assertVarEq(v, constVar)
		}
		c, err := minikanren.NewInequality(v, constVar, minikanren.NotEqual)
		if err != nil {
			return err
		}
		enc.model.AddConstraint(c)
		return nil

	default:
		return unsupported("StrCmp between two variables")
	}
}

func asStringConst(e expr.Expr) (string, bool) {
	if c, ok := e.(*expr.Const); ok && c.ValueKind == expr.ValueString {
		return c.Str, true
	}
	return "", false
}

func varName(e expr.Expr) (string, bool) {
	if v, ok := e.(*expr.Var); ok {
		return v.Name, true
	}
	return "", false
}

// assertInfeasible posts a constraint that can never hold, used when a
// comparison between two known constants is false — e.g. StrEq("a","b").
func (enc *encoder) assertInfeasible() {
	v := enc.model.IntVar(1, 2, "")
	c, err := minikanren.NewInequality(v, v, minikanren.NotEqual)
	if err == nil {
		enc.model.AddConstraint(c)
	}
}

// boolTerm compiles a leaf boolean expression (comparisons, bool consts and
// variables, and BoolNot of those) into an FD variable valued {1,2} meaning
// {false,true}. It does not recurse into BoolBin — that is handled
// structurally by assertBool, and OR/negated-AND only fall back to boolTerm
// on their direct children, which is as deep as this encoder reasons about
// disjunction.
func (enc *encoder) boolTerm(e expr.Expr) (*minikanren.FDVariable, error) {
	switch x := e.(type) {
	case *expr.Const:
		if x.ValueKind != expr.ValueBool {
			return nil, unsupported("bool term from non-bool constant")
		}
		val := boolFalse
		if x.Bool {
			val = boolTrue
		}
		return enc.model.NewVariable(minikanren.DomainValues(val)), nil

	case *expr.Var:
		return enc.boolVar(x.Name), nil

	case *expr.BoolNot:
		inner, err := enc.boolTerm(x.Operand)
		if err != nil {
			return nil, err
		}
		return enc.complementBool(inner)

	case *expr.IntCmp:
		return enc.reifyIntCmp(x)

	case *expr.StrCmp:
		return enc.reifyStrCmp(x)

	default:
		return nil, unsupported("bool term from %T", e)
	}
}

// complementBool returns 3-b for a {1,2}-domain bool variable b.
func (enc *encoder) complementBool(b *minikanren.FDVariable) (*minikanren.FDVariable, error) {
	out := enc.model.IntVar(boolFalse, boolTrue, "")
	three := enc.model.NewVariable(minikanren.DomainValues(boolFalse + boolTrue))
	if err := enc.model.LinearSum([]*minikanren.FDVariable{b, three}, []int{-1, 1}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (enc *encoder) reifyIntCmp(x *expr.IntCmp) (*minikanren.FDVariable, error) {
	lv, err := enc.intTerm(x.Lhs)
	if err != nil {
		return nil, err
	}
	rv, err := enc.intTerm(x.Rhs)
	if err != nil {
		return nil, err
	}
	result := enc.model.IntVar(boolFalse, boolTrue, "")
	switch x.Op {
	case expr.IntEq:
		c, err := minikanren.NewEqualityReified(lv, rv, result)
		if err != nil {
			return nil, err
		}
		enc.model.AddConstraint(c)
		return result, nil
	case expr.IntNeq:
		eq, err := enc.reifyIntCmp(&expr.IntCmp{Op: expr.IntEq, Lhs: x.Lhs, Rhs: x.Rhs})
		if err != nil {
			return nil, err
		}
		return enc.complementBool(eq)
	default:
		ineq, err := minikanren.NewInequality(lv, rv, toInequalityKind(x.Op))
		if err != nil {
			return nil, err
		}
		rc, err := minikanren.NewReifiedConstraint(ineq, result)
		if err != nil {
			return nil, err
		}
		enc.model.AddConstraint(rc)
		return result, nil
	}
}

func toInequalityKind(op expr.IntCmpOp) minikanren.InequalityKind {
	switch op {
	case expr.IntLt:
		return minikanren.LessThan
	case expr.IntLe:
		return minikanren.LessEqual
	case expr.IntGt:
		return minikanren.GreaterThan
	case expr.IntGe:
		return minikanren.GreaterEqual
	default:
		return minikanren.NotEqual
	}
}

func (enc *encoder) reifyStrCmp(x *expr.StrCmp) (*minikanren.FDVariable, error) {
	if x.Op != expr.StrEq && x.Op != expr.StrNeq {
		return nil, unsupported("reified StrCmp op %v", x.Op)
	}
	lv, lok := asStringConst(x.Lhs)
	rv, rok := asStringConst(x.Rhs)
	if lok && rok {
		val := boolFalse
		if (lv == rv) == (x.Op == expr.StrEq) {
			val = boolTrue
		}
		return enc.model.NewVariable(minikanren.DomainValues(val)), nil
	}
	varExpr, constVal := x.Rhs, lv
	ok := rok
	if lok {
		varExpr, constVal, ok = x.Lhs, rv, lok
	}
	if !ok {
		return nil, unsupported("reified StrCmp without a constant operand")
	}
	name, isVar := varName(varExpr)
	if !isVar {
		return nil, unsupported("reified StrCmp with non-variable operand")
	}
	v := enc.stringVar(name, []string{constVal})
	idx := enc.indexOfString(name, constVal)
	constVar := enc.model.NewVariable(minikanren.DomainValues(idx))
	result := enc.model.IntVar(boolFalse, boolTrue, "")
	c, err := minikanren.NewEqualityReified(v, constVar, result)
	if err != nil {
		return nil, err
	}
	enc.model.AddConstraint(c)
	if x.Op == expr.StrNeq {
		return enc.complementBool(result)
	}
	return result, nil
}

// assertBool asserts that e evaluates to true (negate=false) or false
// (negate=true), recursing structurally through AND/OR/NOT so the common
// conjunctive case never needs reification.
func (enc *encoder) assertBool(e expr.Expr) error {
	return enc.assertBoolNegatable(e, false)
}

func (enc *encoder) assertBoolNegatable(e expr.Expr, negate bool) error {
	switch x := e.(type) {
	case *expr.Const:
		if x.ValueKind != expr.ValueBool {
			return unsupported("assert non-bool constant")
		}
		if x.Bool == negate {
			enc.assertInfeasible()
		}
		return nil

	case *expr.BoolNot:
		return enc.assertBoolNegatable(x.Operand, !negate)

	case *expr.BoolBin:
		return enc.assertBoolBin(x, negate)

	case *expr.IntCmp:
		return enc.assertIntCmp(x.Op, x.Lhs, x.Rhs, negate)

	case *expr.StrCmp:
		return enc.assertStrCmp(x.Op, x.Lhs, x.Rhs, negate)

	case *expr.Var:
		v := enc.boolVar(x.Name)
		want := boolTrue
		if negate {
			want = boolFalse
		}
		constVar := enc.model.NewVariable(minikanren.DomainValues(want))
		return enc.assertVarEq(v, constVar)

	default:
		return unsupported("assertBool on %T", e)
	}
}

func (enc *encoder) assertBoolBin(x *expr.BoolBin, negate bool) error {
	switch x.Op {
	case expr.BoolAnd:
		if !negate {
			if err := enc.assertBoolNegatable(x.Lhs, false); err != nil {
				return err
			}
			return enc.assertBoolNegatable(x.Rhs, false)
		}
		return enc.assertDisjunction(x.Lhs, true, x.Rhs, true)

	case expr.BoolOr:
		if negate {
			if err := enc.assertBoolNegatable(x.Lhs, true); err != nil {
				return err
			}
			return enc.assertBoolNegatable(x.Rhs, true)
		}
		return enc.assertDisjunction(x.Lhs, false, x.Rhs, false)

	case expr.BoolEq, expr.BoolSeq:
		return enc.assertBoolEquivalence(x.Lhs, x.Rhs, negate)

	case expr.BoolNeq, expr.BoolSneq:
		return enc.assertBoolEquivalence(x.Lhs, x.Rhs, !negate)

	default:
		return unsupported("BoolBin op %v", x.Op)
	}
}

// assertDisjunction asserts that at least one of (lhsNegate?!lhs:lhs),
// (rhsNegate?!rhs:rhs) holds, via the sum>=3 gadget over their {1,2} bool
// terms (reifying a NOT where requested).
func (enc *encoder) assertDisjunction(lhs expr.Expr, lhsNegate bool, rhs expr.Expr, rhsNegate bool) error {
	lv, err := enc.boolTermNegated(lhs, lhsNegate)
	if err != nil {
		return err
	}
	rv, err := enc.boolTermNegated(rhs, rhsNegate)
	if err != nil {
		return err
	}
	sum := enc.model.IntVar(boolFalse+boolFalse, boolTrue+boolTrue, "")
	if err := enc.model.LinearSum([]*minikanren.FDVariable{lv, rv}, []int{1, 1}, sum); err != nil {
		return err
	}
	sum.SetDomain(minikanren.DomainRange(boolFalse+boolTrue, boolTrue+boolTrue))
	return nil
}

func (enc *encoder) boolTermNegated(e expr.Expr, negate bool) (*minikanren.FDVariable, error) {
	v, err := enc.boolTerm(e)
	if err != nil {
		return nil, err
	}
	if negate {
		return enc.complementBool(v)
	}
	return v, nil
}

// assertBoolEquivalence asserts lhs == rhs (negate=false) or lhs != rhs
// (negate=true) between two boolean terms.
func (enc *encoder) assertBoolEquivalence(lhs, rhs expr.Expr, negate bool) error {
	lv, err := enc.boolTerm(lhs)
	if err != nil {
		return err
	}
	rv, err := enc.boolTerm(rhs)
	if err != nil {
		return err
	}
	if !negate {
		return enc.assertVarEq(lv, rv)
	}
	c, err := minikanren.NewInequality(lv, rv, minikanren.NotEqual)
	if err != nil {
		return err
	}
	enc.model.AddConstraint(c)
	return nil
}

// applyFormRestrictions narrows every select/radio-group variable's domain
// to the admissible set the form collaborator reported, after the path
// condition's own constants have already registered their indices.
func (enc *encoder) applyFormRestrictions(r forms.Restrictions) error {
	for _, sel := range r.Selects {
		v := enc.stringVar(sel.Variable, sel.Values)
		indices := make([]int, 0, len(sel.Values))
		for _, val := range sel.Values {
			indices = append(indices, enc.indexOfString(sel.Variable, val))
		}
		if len(indices) > 0 {
			v.SetDomain(minikanren.DomainValues(indices...))
		}
	}

	for _, radio := range r.Radios {
		n := len(radio.Variables)
		if n == 0 {
			continue
		}
		vars := make([]*minikanren.FDVariable, n)
		for i, name := range radio.Variables {
			vars[i] = enc.boolVar(name)
		}
		sum := enc.model.IntVar(n*boolFalse, n*boolTrue, "")
		if err := enc.model.LinearSum(vars, onesCoeffs(n), sum); err != nil {
			return err
		}
		// With k of n bools true, sum = n*boolFalse + k*(boolTrue-boolFalse) = n+k
		// (each true contributes one more than false). So "none true" is n,
		// "exactly one true" is n+1.
		noneTrue := n * boolFalse
		exactlyOneTrue := noneTrue + (boolTrue - boolFalse)
		if radio.AlwaysSet {
			sum.SetDomain(minikanren.DomainValues(exactlyOneTrue))
		} else {
			sum.SetDomain(minikanren.DomainRange(noneTrue, exactlyOneTrue))
		}
	}
	return nil
}

func onesCoeffs(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
