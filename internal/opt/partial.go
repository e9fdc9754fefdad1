package opt

import "refillplan/internal/model"

// partial is a persistent partial solution: each node adds one assignment
// on top of its parent, so branching a beam state costs one allocation and
// discarded branches never alias retained ones.
type partial struct {
	parent *partial
	name   string
	as     model.Assignment
	size   int
}

func (p *partial) len() int {
	if p == nil {
		return 0
	}
	return p.size
}

func (p *partial) with(name string, as model.Assignment) *partial {
	return &partial{parent: p, name: name, as: as, size: p.len() + 1}
}

// solution materializes p into a fresh map.
func (p *partial) solution() model.Solution {
	out := make(model.Solution, p.len())
	for n := p; n != nil; n = n.parent {
		if _, ok := out[n.name]; !ok {
			out[n.name] = n.as
		}
	}
	return out
}
