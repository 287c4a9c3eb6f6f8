// Package fd is the default solver back-end: it compiles a path
// condition and form restrictions into a github.com/gitrdm/gokanlogic
// finite-domain model and solves it.
//
// Encoding scheme (documented in DESIGN.md):
//   - Int variables get a domain of [-IntBound, IntBound], shifted into
//     gokanlogic's 1-based BitSet domain by the uniform CompoundBound offset
//     (see assert.go) so every representable value is >= 1 and every
//     derived int term (sums, differences, scalar products) shares the
//     same offset as a bare free variable.
//   - Bool variables use a two-value domain {1, 2}, where 1 means false and
//     2 means true (gokanlogic domains cannot hold 0).
//   - String equality against constants (and select restrictions) is
//     encoded as an enumerated index variable over the strings seen in the
//     query, with a side table mapping index -> string. Radio-group
//     restrictions are a sum over per-option bool indicators. Comparing two
//     string variables, and StrIn/StrNotIn, report Unknown.
//   - StrRegexReplace, StrRegexSubmatchArray, StrCharAt, StrReplace, and
//     StrLength arithmetic over unbounded strings have no FD representation
//     and cause the whole query to report Unknown rather than a silent
//     miscompile.
package fd

import (
	"context"
	"fmt"

	"github.com/gitrdm/gokanlogic/pkg/minikanren"

	"webconcolic/internal/expr"
	"webconcolic/internal/solver"
)

// IntBound is the largest magnitude an Int variable's domain covers.
// Path conditions in this domain (form-field-driven integer comparisons)
// never need values beyond this range; SPEC_FULL treats "bounded integers"
// as in-scope, unbounded integer reasoning as not.
const IntBound = 1 << 20

const (
	boolFalse = 1
	boolTrue  = 2
)

// Backend implements solver.Solver using the gokanlogic FD engine.
type Backend struct{}

// New returns a ready-to-use FD backend.
func New() *Backend { return &Backend{} }

// Solve compiles q into an FD model and solves it. Any operator the FD
// encoding cannot represent causes an Unknown outcome, never an error.
func (b *Backend) Solve(ctx context.Context, q solver.Query) (solver.Solution, error) {
	enc := newEncoder()

	for _, conjunct := range q.PathCondition.Conjuncts {
		cond := conjunct.Condition
		if !conjunct.Taken {
			cond = expr.NewBoolNot(cond)
		}
		if err := enc.assertBool(cond); err != nil {
			return solver.Solution{Outcome: solver.Unknown, Reason: err.Error()}, nil
		}
	}

	for _, extra := range q.ReachableExtra {
		cond := extra.Condition.Condition
		if !extra.Condition.Taken {
			cond = expr.NewBoolNot(cond)
		}
		if err := enc.assertBool(cond); err != nil {
			return solver.Solution{Outcome: solver.Unknown, Reason: err.Error()}, nil
		}
	}

	if err := enc.applyFormRestrictions(q.FormRestrictions); err != nil {
		return solver.Solution{Outcome: solver.Unknown, Reason: err.Error()}, nil
	}

	select {
	case <-ctx.Done():
		return solver.Solution{Outcome: solver.Unknown, Reason: "context cancelled before solve"}, nil
	default:
	}

	solutions, err := minikanren.Solve(enc.model, 1)
	if err != nil {
		return solver.Solution{Outcome: solver.SolverFailure, Reason: err.Error()}, nil
	}
	if len(solutions) == 0 {
		return solver.Solution{Outcome: solver.UNSAT}, nil
	}

	assignment, err := enc.decode(solutions[0])
	if err != nil {
		return solver.Solution{Outcome: solver.SolverFailure, Reason: err.Error()}, nil
	}
	return solver.Solution{Outcome: solver.SAT, Assignment: assignment}, nil
}

// varKind distinguishes how a free variable was encoded, needed at decode
// time to turn a raw FD integer back into a tagged solver.Value.
type varKind int

const (
	varInt varKind = iota
	varBool
	varStringIndex
)

// encoder carries the incrementally-built model plus the bookkeeping needed
// to decode a solution back into named, typed values.
type encoder struct {
	model *minikanren.Model

	// varByName caches one FD variable per free variable name, so repeated
	// references to the same variable across conjuncts share a slot.
	varByName  map[string]*minikanren.FDVariable
	kindByName map[string]varKind

	// stringValues maps a variable's string domain index back to the
	// literal string value, per variable name.
	stringValues map[string][]string

	// offsetConst is the cached CompoundBound singleton-domain variable
	// every Add/Sub encoding reuses; see offsetConstVar in assert.go.
	offsetConst *minikanren.FDVariable
}

func newEncoder() *encoder {
	return &encoder{
		model:        minikanren.NewModel(),
		varByName:    map[string]*minikanren.FDVariable{},
		kindByName:   map[string]varKind{},
		stringValues: map[string][]string{},
	}
}

// errUnsupported marks an expression shape the FD encoding cannot handle.
type errUnsupported struct {
	what string
}

func (e *errUnsupported) Error() string { return "fd: unsupported: " + e.what }

func unsupported(format string, args ...interface{}) error {
	return &errUnsupported{what: fmt.Sprintf(format, args...)}
}

// intVar returns (creating if needed) the FD variable backing an Int
// free variable. Its domain shares the same CompoundBound offset as every
// derived int term (Add/Sub/scalar-Mul results, literal constants), so a
// free variable can appear directly as an IntBin operand without a rescale.
func (enc *encoder) intVar(name string) *minikanren.FDVariable {
	if v, ok := enc.varByName[name]; ok {
		return v
	}
	v := enc.model.IntVar(CompoundBound-IntBound, CompoundBound+IntBound, name)
	enc.varByName[name] = v
	enc.kindByName[name] = varInt
	return v
}

// boolVar returns (creating if needed) the FD variable backing a Bool
// free variable, domain {1,2} meaning {false,true}.
func (enc *encoder) boolVar(name string) *minikanren.FDVariable {
	if v, ok := enc.varByName[name]; ok {
		return v
	}
	v := enc.model.IntVar(boolFalse, boolTrue, name)
	enc.varByName[name] = v
	enc.kindByName[name] = varBool
	return v
}

// stringVar returns (creating if needed) the FD variable backing a String
// free variable, with an index domain over every literal string admissible
// for it seen so far (admissibleValues is merged in, deduplicated).
func (enc *encoder) stringVar(name string, admissibleValues []string) *minikanren.FDVariable {
	existing := enc.stringValues[name]
	merged := mergeUnique(existing, admissibleValues)
	enc.stringValues[name] = merged

	v, ok := enc.varByName[name]
	if !ok {
		v = enc.model.IntVar(1, len(merged), name)
		enc.varByName[name] = v
		enc.kindByName[name] = varStringIndex
		return v
	}
	if len(merged) != len(existing) {
		// Domain grew after the variable already existed (e.g. a select
		// restriction discovered after a StrCmp reference); rebuild it in
		// place. gokanlogic variables support SetDomain for exactly this.
		v.SetDomain(minikanren.DomainRange(1, len(merged)))
	}
	return v
}

func mergeUnique(existing, extra []string) []string {
	seen := map[string]struct{}{}
	out := append([]string(nil), existing...)
	for _, s := range out {
		seen[s] = struct{}{}
	}
	for _, s := range extra {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func (enc *encoder) indexOfString(name, value string) int {
	for i, s := range enc.stringValues[name] {
		if s == value {
			return i + 1 // gokanlogic domains are 1-based
		}
	}
	enc.stringValues[name] = append(enc.stringValues[name], value)
	if v, ok := enc.varByName[name]; ok {
		v.SetDomain(minikanren.DomainRange(1, len(enc.stringValues[name])))
	}
	return len(enc.stringValues[name])
}

func (enc *encoder) decode(row []int) (map[string]solver.Value, error) {
	out := make(map[string]solver.Value, len(enc.varByName))
	for name, v := range enc.varByName {
		raw := row[v.ID()]
		switch enc.kindByName[name] {
		case varInt:
			out[name] = solver.Value{Kind: solver.KindInt, Int: int64(raw - CompoundBound)}
		case varBool:
			out[name] = solver.Value{Kind: solver.KindBool, Bool: raw == boolTrue}
		case varStringIndex:
			values := enc.stringValues[name]
			if raw < 1 || raw > len(values) {
				return nil, fmt.Errorf("fd: string index %d out of range for variable %q", raw, name)
			}
			out[name] = solver.Value{Kind: solver.KindString, Str: values[raw-1]}
		default:
			return nil, fmt.Errorf("fd: variable %q has unrecognized kind", name)
		}
	}
	return out, nil
}
