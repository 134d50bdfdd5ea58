// Package chaos implements the per-column rolling chaos-bin model (C3):
// it turns the magnitude of the residual just above and just to the left
// of a cell into the index of the entropy coder that should encode that
// cell.
package chaos

import "math/bits"

// ResidualScore returns the wraparound distance of v from zero modulo
// numSyms: min(v, numSyms-v). It doubles as the "goodness" metric used
// while designing filters (lower is better) and as the chaos magnitude
// score (store()'d per column and per row).
func ResidualScore(v byte, numSyms int) byte {
	iv := int(v)
	d := iv
	if numSyms-iv < d {
		d = numSyms - iv
	}
	if d < 0 {
		d = 0
	}
	return byte(d)
}

func ceilLog2(n uint32) int {
	if n <= 1 {
		return 0
	}
	return bits.Len32(n - 1)
}

// buildTable constructs CHAOS_TABLE for binCount bins: table[sum] =
// min(binCount-1, ceil(log2(sum+1))). sum ranges over the sum of two
// ResidualScore values, each at most numSyms/2, so a table of 257 entries
// covers every alphabet size up to 256.
func buildTable(binCount int) [257]byte {
	var t [257]byte
	for sum := 0; sum < len(t); sum++ {
		v := ceilLog2(uint32(sum + 1))
		if v > binCount-1 {
			v = binCount - 1
		}
		t[sum] = byte(v)
	}
	return t
}

// Model is the C3 ChaosModel: a BitstreamWriter-owned field advanced in
// lock-step, one cell at a time, in raster order.
type Model struct {
	table     [257]byte
	binCount  int
	column    []byte
	x         int
	prevScore byte
}

// New returns an empty Model; call Init before use.
func New() *Model {
	return &Model{}
}

// Init (re)configures the model for binCount chaos bins over a row of
// sizeX columns. Safe to call repeatedly (e.g. once per chaos-level sweep
// in ChaosPlanner, and once more for the winning bin count).
func (m *Model) Init(binCount, sizeX int) {
	m.binCount = binCount
	m.table = buildTable(binCount)
	if len(m.column) != sizeX {
		m.column = make([]byte, sizeX)
	}
}

// BinCount returns the configured number of chaos bins.
func (m *Model) BinCount() int {
	return m.binCount
}

// Start resets the per-column state for a fresh top-to-bottom sweep.
func (m *Model) Start() {
	for i := range m.column {
		m.column[i] = 0
	}
	m.x = 0
}

// StartRow resets the per-row "prev" scratch at the start of every output
// row. The column state carries over from the row above.
func (m *Model) StartRow() {
	m.prevScore = 0
	m.x = 0
}

// Get returns the chaos bin for the current column, derived from the
// score stored for this column (the row above) and the score stored for
// the previous column (the same row).
func (m *Model) Get() int {
	sum := int(m.column[m.x]) + int(m.prevScore)
	b := int(m.table[sum])
	if b >= m.binCount {
		b = m.binCount - 1
	}
	return b
}

// Store records residual r (encoded modulo numSyms) for the current
// column and advances to the next column.
func (m *Model) Store(residual byte, numSyms int) {
	s := ResidualScore(residual, numSyms)
	m.column[m.x] = s
	m.prevScore = s
	m.x++
}

// Zero records a zero score for the current column (used for masked,
// sympal, or MASK_TILE cells) and advances to the next column, keeping
// the decoder's bin state in lock-step.
func (m *Model) Zero() {
	m.column[m.x] = 0
	m.prevScore = 0
	m.x++
}
