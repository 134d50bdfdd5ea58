package mono

import (
	"math/bits"

	"monopix/internal/chaos"
	"monopix/internal/huffcode"
)

// Writer is MonoCoder's encoder: it owns one TileSizeSearch's worth of
// live state (the winning tile size's filter map, residuals, chaos
// model, row-filter or recursive encoding of the tile map) and the
// BitstreamWriter state machine that emits it. Construct with NewWriter,
// drive with Process, then EncodeTo.
type Writer struct {
	params Parameters

	grid      tileGrid
	bits      int
	tiles     []byte
	residuals []byte
	ecodes    []byte

	sympal             []byte
	sympalFilterMap    []byte
	filterIndices      []int
	sympalValues       []byte
	normalFilterCount  int
	sympalFilterCount  int
	filterCount        int

	chaosBinCount int
	chaosModel    *chaos.Model
	chaosCoders   []*huffcode.Coder

	rowFilter            []byte
	rowCode              [][]byte
	rowFilterEntropyBits int
	rowCoder             *huffcode.Coder

	recursive *Writer

	state writerState

	// Write-pass bookkeeping for the Fresh->TablesWritten->Rows{i}->Done
	// state machine. seen tracks which tile columns have had their
	// filter id transmitted in the row currently being written.
	seen      []bool
	expectedY int
	expectedX int
}

type writerState int

const (
	stateFresh writerState = iota
	stateProcessed
	stateTablesWritten
	stateInRows
	stateDone
)

// NewWriter validates params and returns a Writer ready for Process.
func NewWriter(params Parameters) (*Writer, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Writer{params: params, state: stateFresh}, nil
}

// Process is C10 TileSizeSearch: it tries each tile-size exponent from
// MinBits upward, keeping a running best by Simulate() cost, and stops
// the first time a larger size regresses cost relative to the previous
// one (observed-unimodal, not guaranteed). The pipeline
// is re-run once more for the winning bits if the search's early stop
// left a later, worse candidate as the live state, so EncodeTo always
// emits the actual best configuration rather than the last one tried.
func (w *Writer) Process() error {
	if w.state != stateFresh {
		panic("mono: Process called twice on the same Writer")
	}

	bestBits := w.params.MinBits
	bestCost := -1
	prevCost := -1

	for b := w.params.MinBits; b <= w.params.MaxBits; b++ {
		cost := w.runAt(b)
		logger.Printf("TileSizeSearch: bits=%d cost=%d", b, cost)
		if bestCost < 0 || cost < bestCost {
			bestCost = cost
			bestBits = b
		}
		if prevCost >= 0 && cost > prevCost {
			break
		}
		prevCost = cost
	}

	if w.bits != bestBits {
		w.runAt(bestBits)
	}

	w.state = stateProcessed
	return nil
}

// runAt builds the full pipeline for one tile-size exponent and returns
// its Simulate() cost.
func (w *Writer) runAt(bitsExp int) int {
	w.bits = bitsExp
	w.grid = newTileGrid(bitsExp, w.params.SizeX, w.params.SizeY)

	if len(w.tiles) != w.grid.tilesCount {
		w.tiles = make([]byte, w.grid.tilesCount)
	}
	matrixCells := w.params.SizeX * w.params.SizeY
	if len(w.residuals) != matrixCells {
		w.residuals = make([]byte, matrixCells)
	}

	w.maskTiles()
	w.designPaletteFilters()
	w.designFilters()
	w.designPaletteTiles()
	w.designTiles()
	w.computeResiduals()

	w.designChaos()
	w.designRowFilters()
	w.recurseCompress()
	if w.recursive == nil {
		w.buildRowCoder()
	} else {
		w.rowCoder = nil
	}

	return w.Simulate()
}

// buildRowCoder trains the concrete Huffman coder the bitstream writer
// and decoder use to transmit tile ids when row filters (rather than
// recursion) carry the tile-filter map.
func (w *Writer) buildRowCoder() {
	modulus := w.filterCount
	if modulus < 1 {
		modulus = 1
	}
	coder := huffcode.New(modulus)
	g := w.grid
	for ty := 0; ty < g.tilesY; ty++ {
		for tx := 0; tx < g.tilesX; tx++ {
			if w.tiles[ty*g.tilesX+tx] == MaskTile {
				continue
			}
			coder.Add(w.rowCode[ty][tx])
		}
	}
	coder.Finalize()
	w.rowCoder = coder
}

// Simulate returns the exact bit count EncodeTo would emit for the
// currently live tile-size configuration, without writing anything —
// a pure function of the current design state. TileSizeSearch, the recursion
// decision's counterpart on the child side, and the bit-length-law test
// all depend on this matching EncodeTo bit-for-bit.
func (w *Writer) Simulate() int {
	total := 0

	if w.params.MaxBits > w.params.MinBits {
		total += tileBitsFieldWidth(w.params.MinBits, w.params.MaxBits)
	}

	total++ // sympal presence flag
	if w.sympalFilterCount > 0 {
		total += 4
		total += 8 * w.sympalFilterCount
	}

	total += 5
	total += 7 * (w.normalFilterCount - sfFixed)

	total += 4
	for _, c := range w.chaosCoders {
		total += c.TableBits()
	}

	total++ // recurse bit
	if w.recursive != nil {
		total += w.recursive.Simulate()
	} else {
		total += w.rowCoder.TableBits()
	}

	if w.params.DesyncChecks {
		total += 32
	}

	total += w.simulateRows()
	return total
}

// simulateRows walks every cell in raster order exactly as EncodeTo will,
// charging the per-row selector bit (row-filter mode only), the tile-id
// transmission cost on each tile's first visited cell in a row
// (row-filter mode only; recursive mode's tile-id cost is already folded
// into w.recursive.Simulate() above), and the residual cost of every
// normally-filtered unmasked cell.
func (w *Writer) simulateRows() int {
	total := 0
	g := w.grid
	sizeX, sizeY := w.params.SizeX, w.params.SizeY
	numSyms := w.params.NumSyms

	seen := make([]bool, g.tilesX)
	w.chaosModel.Init(w.chaosBinCount, sizeX)
	w.chaosModel.Start()

	for y := 0; y < sizeY; y++ {
		ty := y / g.tileSizeY
		if w.params.DesyncChecks {
			total += 32
		}
		if y%g.tileSizeY == 0 {
			for i := range seen {
				seen[i] = false
			}
			if w.recursive == nil {
				total++
			}
		}
		w.chaosModel.StartRow()

		for x := 0; x < sizeX; x++ {
			if w.params.mask(x, y) {
				w.chaosModel.Zero()
				continue
			}

			tx := x / g.tileSizeX
			idx := ty*g.tilesX + tx
			f := w.tiles[idx]

			if !seen[tx] {
				seen[tx] = true
				if w.recursive == nil {
					total += w.rowCoder.Simulate(w.rowCode[ty][tx])
				}
			}

			if int(f) >= w.normalFilterCount {
				w.chaosModel.Zero()
				continue
			}

			r := w.residuals[y*sizeX+x]
			bin := w.chaosModel.Get()
			total += w.chaosCoders[bin].Simulate(r)
			w.chaosModel.Store(r, numSyms)
		}
	}

	return total
}

// tileBitsFieldWidth is ⌈log2(maxBits-minBits+1)⌉, the width of the
// header's tile-size field.
func tileBitsFieldWidth(minBits, maxBits int) int {
	n := maxBits - minBits + 1
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}
