package opt

import (
	"container/heap"
	"sort"
)

// searchState is one entry of the beam: a partial component solution and
// the running total and footfall it was admitted with.
type searchState struct {
	sol        *partial
	total      float64
	footfall   float64
	seq        int
	terminated bool
}

// outranks orders states by total, then footfall, then admission order.
func outranks(a, b *searchState) bool {
	if a.total != b.total {
		return a.total > b.total
	}
	if a.footfall != b.footfall {
		return a.footfall > b.footfall
	}
	return a.seq < b.seq
}

// beam is a bounded priority structure keeping the top width states. It
// is a min-heap on outranks so the worst state sits at index 0.
type beam struct {
	width  int
	states []*searchState
}

func newBeam(width int) *beam {
	if width < 1 {
		width = 1
	}
	return &beam{width: width}
}

func (b *beam) Len() int           { return len(b.states) }
func (b *beam) Less(i, j int) bool { return outranks(b.states[j], b.states[i]) }
func (b *beam) Swap(i, j int)      { b.states[i], b.states[j] = b.states[j], b.states[i] }
func (b *beam) Push(x any)         { b.states = append(b.states, x.(*searchState)) }
func (b *beam) Pop() any {
	old := b.states
	n := len(old)
	s := old[n-1]
	b.states = old[:n-1]
	return s
}

// offer admits s if there is room or if s outranks the current worst
// state, which is then evicted. It reports whether s was admitted.
func (b *beam) offer(s *searchState) bool {
	if len(b.states) < b.width {
		heap.Push(b, s)
		return true
	}
	if !outranks(s, b.states[0]) {
		return false
	}
	b.states[0] = s
	heap.Fix(b, 0)
	return true
}

// ranked returns the states best first.
func (b *beam) ranked() []*searchState {
	out := append([]*searchState(nil), b.states...)
	sort.Slice(out, func(i, j int) bool { return outranks(out[i], out[j]) })
	return out
}

func (b *beam) best() *searchState {
	var top *searchState
	for _, s := range b.states {
		if top == nil || outranks(s, top) {
			top = s
		}
	}
	return top
}
