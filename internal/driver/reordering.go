package driver

import (
	"sort"
	"strings"

	"webconcolic/internal/expr"
	"webconcolic/internal/pathcond"
	"webconcolic/internal/solver"
)

// ReorderingConfig enables reordering mode: instead of solving for field
// values in a fixed form, the driver also searches over the order actions
// are applied in, by tagging each path condition conjunct's free variables
// with the originating action index and letting the solution's index
// assignment pick the next order.
type ReorderingConfig struct {
	// Actions is the canonical action list (e.g. form field identifiers) in
	// their page-declared order; index i+1 is the renaming suffix used the
	// first time action i is injected.
	Actions []string
}

// renameForReordering renames every conjunct whose condition mentions
// exactly one action variable (by matching against d.reorderOrder) to that
// action's current position, and returns the ReorderingInfo the solver
// needs to report its answer keyed by action index.
//
// Conjuncts referencing zero or more-than-one action variable are passed
// through unrenamed: those only arise from page logic unrelated to action
// ordering (zero) or from cross-field comparisons the reordering search
// does not attempt to reason about (more than one) — grounded on the
// literal single-variable-per-branch reordering example, not a general
// product-space search over every possible field pairing.
func (d *Driver) renameForReordering(pc pathcond.PathCondition) (pathcond.PathCondition, *solver.ReorderingInfo) {
	indexByAction := make(map[string]int, len(d.reorderOrder))
	for i, name := range d.reorderOrder {
		indexByAction[name] = i + 1
	}

	out := pathcond.PathCondition{Conjuncts: make([]pathcond.Conjunct, len(pc.Conjuncts))}
	info := &solver.ReorderingInfo{ActionIndexByVariable: map[string]int{}}

	for i, conj := range pc.Conjuncts {
		free := expr.CollectFreeVars(conj.Condition)
		actionIdx, ok := soleActionIndex(free, indexByAction)
		if !ok {
			out.Conjuncts[i] = conj
			continue
		}
		renamed := pathcond.RenameForAction(conj.Condition, actionIdx)
		out.Conjuncts[i] = pathcond.Conjunct{Condition: renamed, Taken: conj.Taken}
		for _, name := range free {
			encoded := pathcond.EncodeWithExplicitIndex(name, actionIdx)
			info.ActionIndexByVariable[encoded] = actionIdx
		}
	}
	return out, info
}

// soleActionIndex returns the single action index referenced by free, if
// exactly one of its names is a known action variable.
func soleActionIndex(free []string, indexByAction map[string]int) (int, bool) {
	found := -1
	for _, name := range free {
		if idx, ok := indexByAction[name]; ok {
			if found != -1 && found != idx {
				return 0, false
			}
			found = idx
		}
	}
	if found == -1 {
		return 0, false
	}
	return found, true
}

// reorderingActions turns a SAT assignment keyed by "v#i" names back into
// an ordered InjectAction list: the assignment's index suffixes pick the
// action's position for the next iteration, and d.reorderOrder is updated
// to that new order so the following Solving step renames against it.
func (d *Driver) reorderingActions(assignment map[string]solver.Value) []InjectAction {
	type decoded struct {
		action string
		index  int
		value  solver.Value
	}
	entries := make([]decoded, 0, len(assignment))
	for name, val := range assignment {
		base, idx, ok := splitIndexSuffix(name)
		if !ok {
			continue
		}
		entries = append(entries, decoded{action: base, index: idx, value: val})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].index < entries[j].index })

	newOrder := make([]string, len(entries))
	actions := make([]InjectAction, len(entries))
	for i, e := range entries {
		newOrder[i] = e.action
		actions[i] = InjectAction{Variable: e.action, Value: e.value}
	}
	if len(newOrder) > 0 {
		d.reorderOrder = newOrder
	}
	return actions
}

// splitIndexSuffix inverts pathcond.EncodeWithExplicitIndex, reporting
// whether name actually carried a "#i" suffix (pathcond.Decode alone cannot
// distinguish "no suffix" from "stripped suffix").
func splitIndexSuffix(name string) (base string, index int, ok bool) {
	i := strings.LastIndexByte(name, '#')
	if i < 0 {
		return "", 0, false
	}
	n := 0
	for _, r := range name[i+1:] {
		if r < '0' || r > '9' {
			return "", 0, false
		}
		n = n*10 + int(r-'0')
	}
	if i+1 == len(name) {
		return "", 0, false
	}
	return name[:i], n, true
}
