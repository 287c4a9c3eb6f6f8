// Package pathcond implements path condition extraction: walking a
// path from the tree root to a target node, collecting one (condition,
// direction) pair per Branch ancestor, plus the reordering mode's variable
// renaming scheme.
package pathcond

import (
	"fmt"

	"webconcolic/internal/expr"
	"webconcolic/internal/trace"
)

// Conjunct is one (condition, direction) pair contributed by a Branch on
// the path to a target node.
type Conjunct struct {
	Condition expr.Expr
	Taken     bool
}

// PathCondition is the ordered list of Conjuncts from root to a target,
// offered to the solver conjunctively.
type PathCondition struct {
	Conjuncts []Conjunct
}

// NegateLastCondition returns a copy of pc with the final conjunct's
// direction flipped. The frontier does not call it: the paths it builds
// already end on the unexplored side of the last branch.
func (pc PathCondition) NegateLastCondition() PathCondition {
	if len(pc.Conjuncts) == 0 {
		return pc
	}
	out := PathCondition{Conjuncts: append([]Conjunct(nil), pc.Conjuncts...)}
	last := len(out.Conjuncts) - 1
	out.Conjuncts[last].Taken = !out.Conjuncts[last].Taken
	return out
}

// Step is one edge on a root-to-target path: the Branch node and the
// direction taken at it.
type Step struct {
	Branch *trace.Branch
	Taken  bool
}

// ExtractFromPath builds a PathCondition from an ordered list of Steps
// (root-to-target ancestry), ignoring annotations and concrete-summary
// tokens entirely.
func ExtractFromPath(path []Step) PathCondition {
	pc := PathCondition{Conjuncts: make([]Conjunct, 0, len(path))}
	for _, step := range path {
		pc.Conjuncts = append(pc.Conjuncts, Conjunct{
			Condition: step.Branch.Condition,
			Taken:     step.Taken,
		})
	}
	return pc
}

// FindPath walks root looking for target by identity, returning the
// sequence of Branch ancestors and directions taken to reach it. Annotation
// and ConcreteSummary nodes are traversed transparently; they never
// contribute a Step.
func FindPath(root trace.Node, target trace.Node) ([]Step, bool) {
	var path []Step
	if findPathRec(root, target, &path) {
		return path, true
	}
	return nil, false
}

func findPathRec(n trace.Node, target trace.Node, path *[]Step) bool {
	if n == target {
		return true
	}
	switch x := n.(type) {
	case *trace.Alert:
		return findPathRec(x.Next, target, path)
	case *trace.ConsoleMessage:
		return findPathRec(x.Next, target, path)
	case *trace.DomModification:
		return findPathRec(x.Next, target, path)
	case *trace.PageLoad:
		return findPathRec(x.Next, target, path)
	case *trace.Marker:
		return findPathRec(x.Next, target, path)
	case *trace.FunctionCall:
		return findPathRec(x.Next, target, path)
	case *trace.ConcreteSummary:
		for _, ex := range x.Executions {
			if findPathRec(ex.Continuation, target, path) {
				return true
			}
		}
		return false
	case *trace.Branch:
		*path = append(*path, Step{Branch: x, Taken: false})
		if findPathRec(x.FalseChild, target, path) {
			return true
		}
		(*path)[len(*path)-1] = Step{Branch: x, Taken: false}
		*path = (*path)[:len(*path)-1]

		*path = append(*path, Step{Branch: x, Taken: true})
		if findPathRec(x.TrueChild, target, path) {
			return true
		}
		*path = (*path)[:len(*path)-1]
		return false
	default:
		return false
	}
}

// RenameForAction renames every free variable in e by appending the action
// index suffix, producing names of the form "v#i" — the reordering mode's
// scheme, taken from ReorderingConstraintInfo::encode/encodeWithExplicitIndex.
func RenameForAction(e expr.Expr, actionIndex int) expr.Expr {
	names := expr.CollectFreeVars(e)
	table := make(map[string]string, len(names))
	for _, name := range names {
		table[name] = EncodeWithExplicitIndex(name, actionIndex)
	}
	return expr.RenameVars(e, table)
}

// EncodeWithExplicitIndex renames a single variable name with the given
// action index, as "name#index".
func EncodeWithExplicitIndex(name string, index int) string {
	return fmt.Sprintf("%s#%d", name, index)
}

// Decode inverts EncodeWithExplicitIndex, stripping the "#i" suffix if
// present; names without a suffix are returned unchanged.
func Decode(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '#' {
			return name[:i]
		}
	}
	return name
}
