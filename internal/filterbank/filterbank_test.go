package filterbank

import "testing"

type fakeSampler map[[2]int]byte

func (f fakeSampler) At(dx, dy int) (byte, bool) {
	v, ok := f[[2]int{dx, dy}]
	return v, ok
}

func TestZeroPredictorAlwaysZero(t *testing.T) {
	p := Catalog[0]
	if p.Name != "zero" {
		t.Fatalf("Catalog[0] = %s, want zero (SFFixed requires it first)", p.Name)
	}
	s := fakeSampler{{-1, 0}: 200, {0, -1}: 100}
	if got := p.Predict(s, 255); got != 0 {
		t.Fatalf("zero predictor returned %d", got)
	}
}

func TestUnavailableNeighborActsAsZero(t *testing.T) {
	left := findByName(t, "left")
	s := fakeSampler{} // no neighbors available: out of bounds or masked
	if got := left.Predict(s, 255); got != 0 {
		t.Fatalf("left predictor with unavailable neighbor = %d, want 0", got)
	}
}

func TestPredictionsStayInRange(t *testing.T) {
	s := fakeSampler{
		{-1, 0}: 250, {0, -1}: 10, {-1, -1}: 255, {1, -1}: 0,
		{-2, 0}: 250, {0, -2}: 10,
	}
	for _, p := range Catalog {
		got := p.Predict(s, 255)
		if int(got) < 0 || int(got) > 255 {
			t.Fatalf("predictor %s produced out-of-range value %d", p.Name, got)
		}
	}
}

func TestCatalogWithinWireLimit(t *testing.T) {
	if Count() > 128 {
		t.Fatalf("catalog size %d exceeds the 7-bit predictor-id wire field", Count())
	}
	if Count() < SFFixed {
		t.Fatalf("catalog size %d smaller than SFFixed %d", Count(), SFFixed)
	}
}

func findByName(t *testing.T, name string) Predictor {
	t.Helper()
	for _, p := range Catalog {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no predictor named %s", name)
	return Predictor{}
}
