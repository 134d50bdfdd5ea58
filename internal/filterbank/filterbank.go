// Package filterbank holds the fixed catalog of spatial predictors (C4)
// MonoCoder's tile planner scores and selects from. Every predictor is a
// pure, stateless function of its causal neighborhood; "safe" behavior —
// substituting zero for neighbors that are out of bounds or masked — is
// built into Sampler rather than duplicated per predictor.
package filterbank

// Sampler exposes a cell's causal neighborhood. dx, dy are relative
// offsets (dy<=0 for anything a predictor may read, and dx<0 when dy==0;
// dx>0 only appears on rows above, as in the up-right neighbor (1, -1)),
// since prediction is always from already-visited, raster-earlier
// cells. ok is false when the offset falls outside the matrix or lands
// on a masked cell; predictors treat that as "value 0" rather than
// reading garbage or panicking.
type Sampler interface {
	At(dx, dy int) (v byte, ok bool)
}

func safe(s Sampler, dx, dy int) int {
	v, ok := s.At(dx, dy)
	if !ok {
		return 0
	}
	return int(v)
}

func clampInt(v, maxVal int) byte {
	if v < 0 {
		return 0
	}
	if v > maxVal {
		return byte(maxVal)
	}
	return byte(v)
}

func median3(a, b, c int) int {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		b = a
	}
	return b
}

// Predictor is one entry of the filter catalog: a name (for debugging)
// and a pure prediction function.
type Predictor struct {
	Name    string
	Predict func(s Sampler, maxVal int) byte
}

// SFFixed is the number of predictors that are always present in the
// filter catalog used by a tile size, regardless of what the design
// passes choose.
const SFFixed = 4

// Catalog is the full fixed predictor catalog, shared by encoder and
// decoder by integer index. Catalog[:SFFixed] are the always-present
// predictors; the rest are candidates the design pass may or may not
// select. len(Catalog) must stay within the wire format's 7-bit
// predictor-id field (total predictor-catalog size must stay at or
// below 128).
var Catalog = []Predictor{
	{Name: "zero", Predict: func(s Sampler, maxVal int) byte {
		return 0
	}},
	{Name: "left", Predict: func(s Sampler, maxVal int) byte {
		return clampInt(safe(s, -1, 0), maxVal)
	}},
	{Name: "up", Predict: func(s Sampler, maxVal int) byte {
		return clampInt(safe(s, 0, -1), maxVal)
	}},
	{Name: "avg_left_up", Predict: func(s Sampler, maxVal int) byte {
		a, b := safe(s, -1, 0), safe(s, 0, -1)
		return clampInt((a+b)/2, maxVal)
	}},
	{Name: "up_left", Predict: func(s Sampler, maxVal int) byte {
		return clampInt(safe(s, -1, -1), maxVal)
	}},
	{Name: "up_right", Predict: func(s Sampler, maxVal int) byte {
		return clampInt(safe(s, 1, -1), maxVal)
	}},
	{Name: "gradient_abc", Predict: func(s Sampler, maxVal int) byte {
		a, b, c := safe(s, -1, 0), safe(s, 0, -1), safe(s, -1, -1)
		return clampInt(a+b-c, maxVal)
	}},
	{Name: "median_abc", Predict: func(s Sampler, maxVal int) byte {
		a, b, c := safe(s, -1, 0), safe(s, 0, -1), safe(s, -1, -1)
		return clampInt(median3(a, b, a+b-c), maxVal)
	}},
	{Name: "avg_left_upleft", Predict: func(s Sampler, maxVal int) byte {
		a, c := safe(s, -1, 0), safe(s, -1, -1)
		return clampInt((a+c)/2, maxVal)
	}},
	{Name: "avg_up_upleft", Predict: func(s Sampler, maxVal int) byte {
		b, c := safe(s, 0, -1), safe(s, -1, -1)
		return clampInt((b+c)/2, maxVal)
	}},
	{Name: "avg_left_upright", Predict: func(s Sampler, maxVal int) byte {
		a, d := safe(s, -1, 0), safe(s, 1, -1)
		return clampInt((a+d)/2, maxVal)
	}},
	{Name: "avg_up_upright", Predict: func(s Sampler, maxVal int) byte {
		b, d := safe(s, 0, -1), safe(s, 1, -1)
		return clampInt((b+d)/2, maxVal)
	}},
	{Name: "avg_abcd", Predict: func(s Sampler, maxVal int) byte {
		a, b, c, d := safe(s, -1, 0), safe(s, 0, -1), safe(s, -1, -1), safe(s, 1, -1)
		return clampInt((a+b+c+d)/4, maxVal)
	}},
	{Name: "avg3_abc", Predict: func(s Sampler, maxVal int) byte {
		a, b, c := safe(s, -1, 0), safe(s, 0, -1), safe(s, -1, -1)
		return clampInt((a+b+c)/3, maxVal)
	}},
	{Name: "gradient_left2", Predict: func(s Sampler, maxVal int) byte {
		a, aa := safe(s, -1, 0), safe(s, -2, 0)
		return clampInt(2*a-aa, maxVal)
	}},
	{Name: "gradient_up2", Predict: func(s Sampler, maxVal int) byte {
		b, bb := safe(s, 0, -1), safe(s, 0, -2)
		return clampInt(2*b-bb, maxVal)
	}},
	{Name: "select_ab", Predict: func(s Sampler, maxVal int) byte {
		a, b, c := safe(s, -1, 0), safe(s, 0, -1), safe(s, -1, -1)
		da, db := abs(c-a), abs(c-b)
		if da <= db {
			return clampInt(b, maxVal)
		}
		return clampInt(a, maxVal)
	}},
	{Name: "favor_left", Predict: func(s Sampler, maxVal int) byte {
		a, b := safe(s, -1, 0), safe(s, 0, -1)
		return clampInt((3*a+b+2)/4, maxVal)
	}},
	{Name: "favor_up", Predict: func(s Sampler, maxVal int) byte {
		a, b := safe(s, -1, 0), safe(s, 0, -1)
		return clampInt((a+3*b+2)/4, maxVal)
	}},
	{Name: "avg3_abd", Predict: func(s Sampler, maxVal int) byte {
		a, b, d := safe(s, -1, 0), safe(s, 0, -1), safe(s, 1, -1)
		return clampInt((a+b+d)/3, maxVal)
	}},
	{Name: "avg3_acd", Predict: func(s Sampler, maxVal int) byte {
		a, c, d := safe(s, -1, 0), safe(s, -1, -1), safe(s, 1, -1)
		return clampInt((a+c+d)/3, maxVal)
	}},
	{Name: "gradient_adc", Predict: func(s Sampler, maxVal int) byte {
		a, c, d := safe(s, -1, 0), safe(s, -1, -1), safe(s, 1, -1)
		return clampInt(a+d-c, maxVal)
	}},
	{Name: "gradient_bdc", Predict: func(s Sampler, maxVal int) byte {
		b, c, d := safe(s, 0, -1), safe(s, -1, -1), safe(s, 1, -1)
		return clampInt(b+d-c, maxVal)
	}},
	{Name: "median_abd", Predict: func(s Sampler, maxVal int) byte {
		a, b, d := safe(s, -1, 0), safe(s, 0, -1), safe(s, 1, -1)
		return clampInt(median3(a, b, a+b-d), maxVal)
	}},
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Count returns the number of predictors in Catalog.
func Count() int {
	return len(Catalog)
}
