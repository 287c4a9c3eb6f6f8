package frontier

import "math/rand"

// RandomPolicy picks a uniformly random unexhausted entry, demonstrating
// the pluggable Policy interface alongside DFSPolicy.
type RandomPolicy struct {
	Rand *rand.Rand // nil uses the package-level default source
}

func (p RandomPolicy) Next(unexhausted []*Entry) (*Entry, bool) {
	if len(unexhausted) == 0 {
		return nil, false
	}
	var idx int
	if p.Rand != nil {
		idx = p.Rand.Intn(len(unexhausted))
	} else {
		idx = rand.Intn(len(unexhausted))
	}
	return unexhausted[idx], true
}
