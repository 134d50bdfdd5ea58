package entropy

import "sort"

// Score pairs a filter (or index) with an accumulated score. Lower or
// higher is "better" depending on which regime the caller is using the
// Scorer for (see Scorer's doc comment).
type Score struct {
	Index int
	Value int
}

// Scorer is a fixed-capacity score accumulator indexed by filter id. It is
// used in two regimes by the tile planner: accumulating "goodness" awards
// (higher is better) during filter design, and accumulating per-filter L1
// error (lower is better) while evaluating candidate filters for a single
// tile. This is the C2 FilterScorer component.
type Scorer struct {
	values []int
}

// NewScorer returns a Scorer with capacity n.
func NewScorer(n int) *Scorer {
	return &Scorer{values: make([]int, n)}
}

// Reset zeroes every slot.
func (s *Scorer) Reset() {
	for i := range s.values {
		s.values[i] = 0
	}
}

// Add accumulates value into slot i.
func (s *Scorer) Add(i, value int) {
	s.values[i] += value
}

// Len returns the scorer's capacity.
func (s *Scorer) Len() int {
	return len(s.values)
}

// GetTop returns the k highest-scoring entries. Ties are broken
// deterministically by ascending index. When sorted is true the result is
// ordered by descending value (then ascending index); when false the
// result still contains exactly the top-k set but ordered by ascending
// index, which is what callers that index the result by filter-rank
// position rather than by id expect to be stable across runs.
func (s *Scorer) GetTop(k int, sorted bool) []Score {
	if k > len(s.values) {
		k = len(s.values)
	}
	all := make([]Score, len(s.values))
	for i, v := range s.values {
		all[i] = Score{Index: i, Value: v}
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].Value != all[b].Value {
			return all[a].Value > all[b].Value
		}
		return all[a].Index < all[b].Index
	})
	top := all[:k]
	if !sorted {
		byIndex := make([]Score, k)
		copy(byIndex, top)
		sort.Slice(byIndex, func(a, b int) bool { return byIndex[a].Index < byIndex[b].Index })
		return byIndex
	}
	out := make([]Score, k)
	copy(out, top)
	return out
}

// GetLowest returns the single minimum-scoring entry, ties broken by
// ascending index.
func (s *Scorer) GetLowest() Score {
	best := Score{Index: 0, Value: s.values[0]}
	for i, v := range s.values {
		if v < best.Value {
			best = Score{Index: i, Value: v}
		}
	}
	return best
}
