package mono

import (
	"bytes"
	"math/rand"
	"testing"

	"monopix/internal/bitio"
	"monopix/internal/filterbank"
)

func defaultTestParams(data []byte, sizeX, sizeY, numSyms, minBits, maxBits int, mask MaskFunc) Parameters {
	return Parameters{
		Data:         data,
		Stride:       sizeX,
		SizeX:        sizeX,
		SizeY:        sizeY,
		NumSyms:      numSyms,
		Mask:         mask,
		MinBits:      minBits,
		MaxBits:      maxBits,
		SympalThresh: 0.95,
		FilterThresh: 0.02,
		AwardCount:   DefaultAwardCount,
		Awards:       DefaultAwards(),
		MaxFilters:   24,
		Knobs:        DefaultKnobs(),
	}
}

// roundTrip runs a full encode, checks the bit-length law against
// Simulate(), decodes into a fresh buffer, and returns the decoded
// matrix for the caller's own assertions.
func roundTrip(t *testing.T, params Parameters) []byte {
	t.Helper()

	w, err := NewWriter(params)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}
	simBits := w.Simulate()

	var buf bytes.Buffer
	bw := bitio.NewWriter(&buf)
	emitted := w.EncodeTo(bw)
	bw.Flush()

	if emitted != simBits {
		t.Fatalf("bit-length law violated: EncodeTo emitted %d bits, Simulate() said %d", emitted, simBits)
	}

	decoded := make([]byte, len(params.Data))
	rd, err := NewReader(DecodeParams{
		Data:         decoded,
		Stride:       params.Stride,
		SizeX:        params.SizeX,
		SizeY:        params.SizeY,
		NumSyms:      params.NumSyms,
		Mask:         params.Mask,
		MinBits:      params.MinBits,
		MaxBits:      params.MaxBits,
		DesyncChecks: params.DesyncChecks,
	})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if err := rd.DecodeFrom(bitio.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("DecodeFrom: %v", err)
	}

	for y := 0; y < params.SizeY; y++ {
		for x := 0; x < params.SizeX; x++ {
			if params.mask(x, y) {
				continue
			}
			idx := y*params.Stride + x
			if decoded[idx] != params.Data[idx] {
				t.Fatalf("round-trip mismatch at (%d,%d): got %d, want %d", x, y, decoded[idx], params.Data[idx])
			}
		}
	}
	return decoded
}

func TestRoundTripAllMasked16x16(t *testing.T) {
	data := make([]byte, 16*16)
	for i := range data {
		data[i] = byte(i)
	}
	params := defaultTestParams(data, 16, 16, 256, 2, 2, func(x, y int) bool { return true })

	w, err := NewWriter(params)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, f := range w.tiles {
		if f != MaskTile {
			t.Fatalf("expected every tile to be MASK_TILE, got %d", f)
		}
	}

	roundTrip(t, params)
}

func TestRoundTripUniform32x32Sympal(t *testing.T) {
	data := make([]byte, 32*32)
	for i := range data {
		data[i] = 7
	}
	params := defaultTestParams(data, 32, 32, 8, 2, 2, nil)

	w, err := NewWriter(params)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if w.sympalFilterCount == 0 {
		t.Fatalf("expected a uniform plane to produce at least one sympal filter")
	}
	for _, f := range w.tiles {
		if int(f) < w.normalFilterCount {
			t.Fatalf("expected every tile to be tagged sympal, got normal filter %d", f)
		}
	}
	if w.chaosBinCount != 1 {
		t.Fatalf("expected an empty residual stream to collapse to 1 chaos bin, got %d", w.chaosBinCount)
	}

	roundTrip(t, params)
}

func TestRoundTripVerticalGradient8x8(t *testing.T) {
	data := make([]byte, 8*8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			data[y*8+x] = byte(y)
		}
	}
	params := defaultTestParams(data, 8, 8, 8, 3, 3, nil)
	roundTrip(t, params)
}

func TestRoundTripRandom64x64(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := make([]byte, 64*64)
	rng.Read(data)
	params := defaultTestParams(data, 64, 64, 256, 2, 4, nil)
	roundTrip(t, params)
}

func TestRoundTripMixed48x48QuarterMasked(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	data := make([]byte, 48*48)
	rng.Read(data)
	mask := func(x, y int) bool { return (x+y)%4 == 0 }
	params := defaultTestParams(data, 48, 48, 256, 2, 3, mask)
	roundTrip(t, params)
}

func TestRecursionCase128x128(t *testing.T) {
	structured := make([]byte, 128*128)
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			structured[y*128+x] = byte((x / 4) % 2 * 40)
		}
	}
	structuredParams := defaultTestParams(structured, 128, 128, 256, 2, 2, nil)
	roundTrip(t, structuredParams)

	rng := rand.New(rand.NewSource(3))
	random := make([]byte, 128*128)
	rng.Read(random)
	randomParams := defaultTestParams(random, 128, 128, 256, 2, 2, nil)
	roundTrip(t, randomParams)
}

func TestResidualRange(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	data := make([]byte, 64*64)
	rng.Read(data)
	for i := range data {
		data[i] %= 200 // input values must lie in [0, NumSyms)
	}
	params := defaultTestParams(data, 64, 64, 200, 2, 3, nil)

	w, err := NewWriter(params)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}

	for y := 0; y < params.SizeY; y++ {
		for x := 0; x < params.SizeX; x++ {
			if params.mask(x, y) {
				continue
			}
			f := w.tileAt(x, y)
			if int(f) >= w.normalFilterCount {
				continue
			}
			r := w.residuals[y*params.SizeX+x]
			if int(r) < 0 || int(r) >= params.NumSyms {
				t.Fatalf("residual %d at (%d,%d) out of range [0,%d)", r, x, y, params.NumSyms)
			}
		}
	}
}

func TestFilterCountBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	data := make([]byte, 48*48)
	rng.Read(data)
	params := defaultTestParams(data, 48, 48, 256, 2, 3, nil)

	w, err := NewWriter(params)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if w.normalFilterCount < sfFixed {
		t.Fatalf("normal_filter_count %d < SF_FIXED %d", w.normalFilterCount, sfFixed)
	}
	if w.sympalFilterCount > MaxPalette {
		t.Fatalf("sympal_filter_count %d > MAX_PALETTE %d", w.sympalFilterCount, MaxPalette)
	}
	if w.normalFilterCount+w.sympalFilterCount > MaxFiltersWire {
		t.Fatalf("filter_count %d > MAX_FILTERS %d", w.filterCount, MaxFiltersWire)
	}
	if w.normalFilterCount > len(filterbank.Catalog) {
		t.Fatalf("normal_filter_count %d exceeds catalog size %d", w.normalFilterCount, len(filterbank.Catalog))
	}
}

func TestDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	data := make([]byte, 48*48)
	rng.Read(data)

	encodeOnce := func() []byte {
		params := defaultTestParams(append([]byte(nil), data...), 48, 48, 256, 2, 3, nil)
		w, err := NewWriter(params)
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}
		if err := w.Process(); err != nil {
			t.Fatalf("Process: %v", err)
		}
		var buf bytes.Buffer
		bw := bitio.NewWriter(&buf)
		w.EncodeTo(bw)
		bw.Flush()
		return buf.Bytes()
	}

	a := encodeOnce()
	b := encodeOnce()
	if !bytes.Equal(a, b) {
		t.Fatalf("two runs over identical input produced different bytes")
	}
}

func TestMonotoneEarlyStopSoundness(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	data := make([]byte, 64*64)
	rng.Read(data)
	params := defaultTestParams(data, 64, 64, 256, 1, 4, nil)

	w, err := NewWriter(params)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}
	chosenBits := w.bits

	for b := params.MinBits; b < chosenBits; b++ {
		probe, err := NewWriter(params)
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}
		cost := probe.runAt(b)
		chosenCost := probe.runAt(chosenBits)
		if cost < chosenCost {
			t.Fatalf("bits=%d simulated %d bits, fewer than chosen bits=%d's %d", b, cost, chosenBits, chosenCost)
		}
	}
}

func TestRecursionDecisionMatchesSimulatedCosts(t *testing.T) {
	structured := make([]byte, 128*128)
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			structured[y*128+x] = byte((x / 4) % 2 * 40)
		}
	}
	params := defaultTestParams(structured, 128, 128, 256, 2, 2, nil)

	w, err := NewWriter(params)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if w.grid.tilesCount < recurseThreshCount {
		t.Skip("tile count below recursion threshold")
	}

	if w.recursive != nil {
		if w.recursive.Simulate() > w.rowFilterEntropyBits {
			t.Fatalf("recurse bit set but recursive cost %d exceeds row-filter estimate %d", w.recursive.Simulate(), w.rowFilterEntropyBits)
		}
	}
}
