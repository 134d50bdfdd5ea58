package entropy

import "testing"

func TestEntropyDecreasesAsDistributionSharpens(t *testing.T) {
	e := New(4)
	e.Init(4)

	uniform := e.Entropy([]byte{0, 1, 2, 3})

	e.Add([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	skewed := e.Entropy([]byte{0})
	other := e.Entropy([]byte{1})

	if skewed >= other {
		t.Fatalf("symbol seen often should cost fewer bits than one never seen: %d >= %d", skewed, other)
	}
	if uniform <= 0 {
		t.Fatalf("uniform entropy should be positive, got %d", uniform)
	}
}

func TestSubtractUndoesAdd(t *testing.T) {
	e := New(4)
	e.Init(4)

	block := []byte{0, 1, 1, 2, 2, 2}
	e.Add(block)
	before := e.EntropyOverall()

	e.Add([]byte{3, 3, 3})
	e.Subtract([]byte{3, 3, 3})
	after := e.EntropyOverall()

	if before != after {
		t.Fatalf("add-then-subtract should restore entropy: %d != %d", before, after)
	}
}

func TestEntropyIsPureAndSideEffectFree(t *testing.T) {
	e := New(4)
	e.Init(4)
	e.Add([]byte{0, 1})

	before := e.Total()
	e.Entropy([]byte{2, 3, 0})
	e.Entropy([]byte{2, 3, 0})
	if e.Total() != before {
		t.Fatalf("Entropy must not mutate the histogram, total changed from %d to %d", before, e.Total())
	}
}

func TestScorerTopAndLowest(t *testing.T) {
	s := NewScorer(5)
	s.Add(0, 10)
	s.Add(1, 30)
	s.Add(2, 30)
	s.Add(3, 5)
	s.Add(4, 20)

	top := s.GetTop(2, true)
	if len(top) != 2 || top[0].Index != 1 || top[1].Index != 2 {
		t.Fatalf("GetTop(2, sorted) = %+v, want ties broken by ascending index", top)
	}

	lowest := s.GetLowest()
	if lowest.Index != 3 || lowest.Value != 5 {
		t.Fatalf("GetLowest = %+v, want index 3 value 5", lowest)
	}
}

func TestScorerUnsortedPreservesIndexOrder(t *testing.T) {
	s := NewScorer(4)
	s.Add(0, 1)
	s.Add(1, 100)
	s.Add(2, 50)
	s.Add(3, 2)

	top := s.GetTop(2, false)
	if len(top) != 2 || top[0].Index != 1 || top[1].Index != 2 {
		t.Fatalf("GetTop(2, false) = %+v, want index-ascending order of the top set", top)
	}
}
