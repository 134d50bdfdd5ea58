package mono

import (
	"fmt"

	"monopix/internal/bitio"
	"monopix/internal/chaos"
	"monopix/internal/filterbank"
	"monopix/internal/huffcode"
)

// DecodeParams is a Reader's constructor input: the output buffer to
// fill, its geometry, and the mask predicate and tile-size search bounds
// that must match whatever Parameters the encoder used. The planning
// knobs in Parameters (SympalThresh, AwardCount, Knobs, ...) have no
// decode-side counterpart — the encoder already resolved them into the
// header this Reader reads back.
type DecodeParams struct {
	Data    []byte
	Stride  int
	SizeX   int
	SizeY   int
	NumSyms int
	Mask    MaskFunc
	MinBits int
	MaxBits int

	// DesyncChecks must match whatever value the encoder's Parameters used;
	// see Parameters.DesyncChecks.
	DesyncChecks bool
}

func (p *DecodeParams) validate() error {
	if p.NumSyms < 2 || p.NumSyms > 256 {
		return &ConfigError{Reason: fmt.Sprintf("num_syms %d out of range [2,256]", p.NumSyms)}
	}
	if p.SizeX <= 0 || p.SizeY <= 0 {
		return &ConfigError{Reason: "empty matrix"}
	}
	if p.MinBits < 1 || p.MaxBits < p.MinBits {
		return &ConfigError{Reason: fmt.Sprintf("min_bits %d / max_bits %d invalid", p.MinBits, p.MaxBits)}
	}
	if p.Stride < p.SizeX {
		return &ConfigError{Reason: fmt.Sprintf("stride %d smaller than size_x %d", p.Stride, p.SizeX)}
	}
	if len(p.Data) < p.Stride*p.SizeY {
		return &ConfigError{Reason: "data shorter than stride*size_y"}
	}
	return nil
}

func (p *DecodeParams) mask(x, y int) bool {
	if p.Mask == nil {
		return false
	}
	return p.Mask(x, y)
}

// Reader is MonoCoder's decoder: the mirror image of Writer, driven
// through the same Fresh->TablesWritten->Rows{i}->Done sequencing.
type Reader struct {
	params DecodeParams

	grid  tileGrid
	bits  int
	tiles []byte

	normalFilterCount int
	sympalFilterCount int
	filterCount       int
	filterIndices     []int
	sympalValues      []byte

	chaosBinCount int
	chaosModel    *chaos.Model
	chaosCoders   []*huffcode.Coder

	rowFilter     []byte
	rowCoder      *huffcode.Coder
	rowPrevFilter byte // RF_PREV's running previous filter id, reset each tile row

	recursive *Reader

	state     writerState
	seen      []bool
	expectedY int
	expectedX int
}

// NewReader validates params and returns a Reader ready for ReadTables.
func NewReader(params DecodeParams) (*Reader, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Reader{params: params, state: stateFresh}, nil
}

// maskTiles mirrors Writer.maskTiles: every tile whose cells are all
// masked is MASK_TILE; this depends only on the mask predicate, so the
// decoder can compute it before reading a single tile id.
func (rd *Reader) maskTiles() {
	g := rd.grid
	g.forEachTile(rd.params.SizeX, rd.params.SizeY, func(tx, ty, x0, y0, tw, th int) {
		idx := ty*g.tilesX + tx
		masked := true
	scan:
		for y := y0; y < y0+th; y++ {
			for x := x0; x < x0+tw; x++ {
				if !rd.params.mask(x, y) {
					masked = false
					break scan
				}
			}
		}
		if masked {
			rd.tiles[idx] = MaskTile
		} else {
			rd.tiles[idx] = todoTile
		}
	})
}

// ReadTables reads MonoCoder's header, the mirror image of
// Writer.WriteTables. It must be called exactly once, before any
// ReadRowHeader/ReadCell call.
func (rd *Reader) ReadTables(r *bitio.Reader) error {
	if rd.state != stateFresh {
		panic("mono: ReadTables called before NewReader, or called twice")
	}

	bitsExp := rd.params.MinBits
	if rd.params.MaxBits > rd.params.MinBits {
		width := tileBitsFieldWidth(rd.params.MinBits, rd.params.MaxBits)
		v, err := r.ReadBits(uint8(width))
		if err != nil {
			return fmt.Errorf("mono: read tile-size field: %w", err)
		}
		bitsExp = rd.params.MinBits + int(v)
	}
	rd.bits = bitsExp
	rd.grid = newTileGrid(bitsExp, rd.params.SizeX, rd.params.SizeY)
	rd.tiles = make([]byte, rd.grid.tilesCount)
	rd.maskTiles()

	hasSympal, err := r.ReadBit()
	if err != nil {
		return fmt.Errorf("mono: read sympal presence flag: %w", err)
	}
	rd.sympalFilterCount = 0
	if hasSympal {
		countMinus1, err := r.ReadBits(4)
		if err != nil {
			return fmt.Errorf("mono: read sympal count: %w", err)
		}
		rd.sympalFilterCount = int(countMinus1) + 1
		rd.sympalValues = make([]byte, rd.sympalFilterCount)
		for i := range rd.sympalValues {
			v, err := r.ReadBits(8)
			if err != nil {
				return fmt.Errorf("mono: read sympal value %d: %w", i, err)
			}
			rd.sympalValues[i] = byte(v)
		}
	}

	extra, err := r.ReadBits(5)
	if err != nil {
		return fmt.Errorf("mono: read normal filter count: %w", err)
	}
	rd.normalFilterCount = sfFixed + int(extra)
	rd.filterIndices = make([]int, rd.normalFilterCount)
	for f := 0; f < sfFixed; f++ {
		rd.filterIndices[f] = f
	}
	for f := sfFixed; f < rd.normalFilterCount; f++ {
		v, err := r.ReadBits(7)
		if err != nil {
			return fmt.Errorf("mono: read filter id %d: %w", f, err)
		}
		rd.filterIndices[f] = int(v)
	}
	rd.filterCount = rd.normalFilterCount + rd.sympalFilterCount

	binsMinus1, err := r.ReadBits(4)
	if err != nil {
		return fmt.Errorf("mono: read chaos bin count: %w", err)
	}
	rd.chaosBinCount = int(binsMinus1) + 1
	rd.chaosCoders = make([]*huffcode.Coder, rd.chaosBinCount)
	for b := range rd.chaosCoders {
		rd.chaosCoders[b] = huffcode.New(rd.params.NumSyms)
		if err := rd.chaosCoders[b].ReadTables(r); err != nil {
			return fmt.Errorf("mono: read chaos table %d: %w", b, err)
		}
	}

	recurseBit, err := r.ReadBit()
	if err != nil {
		return fmt.Errorf("mono: read recurse bit: %w", err)
	}
	if recurseBit {
		tiles := rd.tiles
		tilesX := rd.grid.tilesX
		child, err := NewReader(DecodeParams{
			Data:    tiles,
			Stride:  tilesX,
			SizeX:   tilesX,
			SizeY:   rd.grid.tilesY,
			NumSyms: rd.filterCount,
			Mask:         func(x, y int) bool { return tiles[y*tilesX+x] == MaskTile },
			MinBits:      rd.params.MinBits,
			MaxBits:      rd.params.MaxBits,
			DesyncChecks: rd.params.DesyncChecks,
		})
		if err != nil {
			return fmt.Errorf("mono: construct recursive reader: %w", err)
		}
		if err := child.ReadTables(r); err != nil {
			return fmt.Errorf("mono: read recursive header: %w", err)
		}
		rd.recursive = child
	} else {
		modulus := rd.filterCount
		if modulus < 1 {
			modulus = 1
		}
		rd.rowCoder = huffcode.New(modulus)
		if err := rd.rowCoder.ReadTables(r); err != nil {
			return fmt.Errorf("mono: read row-filter table: %w", err)
		}
		rd.rowFilter = make([]byte, rd.grid.tilesY)
	}

	if rd.params.DesyncChecks {
		word, err := r.ReadWord()
		if err != nil {
			return fmt.Errorf("mono: read header desync word: %w", err)
		}
		if word != desyncWord {
			return fmt.Errorf("mono: header desync check failed: got %#x, want %#x", word, desyncWord)
		}
	}

	rd.chaosModel = chaos.New()
	rd.chaosModel.Init(rd.chaosBinCount, rd.params.SizeX)
	rd.chaosModel.Start()
	rd.seen = make([]bool, rd.grid.tilesX)

	rd.state = stateTablesWritten
	rd.expectedY = -1
	rd.expectedX = rd.params.SizeX
	return nil
}

// ReadRowHeader reads row y's header, the mirror image of
// Writer.WriteRowHeader. At a tile-row boundary it reads either the
// recursive inner row-header plus every tile id in the row (eagerly, in
// lock-step with WriteRowHeader's eager recursive write — see that
// method's doc comment for why masked tiles can't be decoded lazily) or
// the row-filter selector bit, and resets rowPrevFilter for RF_PREV
// reconstruction.
func (rd *Reader) ReadRowHeader(r *bitio.Reader, y int) error {
	switch rd.state {
	case stateTablesWritten:
		if y != 0 {
			panic("mono: ReadRowHeader called with non-zero y before any row was read")
		}
	case stateInRows:
		if rd.expectedX != rd.params.SizeX {
			panic("mono: ReadRowHeader called before the previous row's cells were all read")
		}
		if y != rd.expectedY+1 {
			panic("mono: ReadRowHeader called out of order")
		}
	default:
		panic("mono: ReadTables must precede ReadRowHeader")
	}

	if rd.params.DesyncChecks {
		word, err := r.ReadWord()
		if err != nil {
			return fmt.Errorf("mono: read row desync word at y=%d: %w", y, err)
		}
		if word != desyncWord {
			return fmt.Errorf("mono: row desync check failed at y=%d: got %#x, want %#x", y, word, desyncWord)
		}
	}

	if y%rd.grid.tileSizeY == 0 {
		for i := range rd.seen {
			rd.seen[i] = false
		}
		ty := y / rd.grid.tileSizeY
		if rd.recursive != nil {
			if err := rd.recursive.ReadRowHeader(r, ty); err != nil {
				return fmt.Errorf("mono: read recursive row header %d: %w", ty, err)
			}
			for tx := 0; tx < rd.grid.tilesX; tx++ {
				if _, err := rd.recursive.ReadCell(r, tx, ty); err != nil {
					return fmt.Errorf("mono: read recursive tile id (%d,%d): %w", tx, ty, err)
				}
			}
			if ty == rd.grid.tilesY-1 {
				rd.recursive.Finish()
			}
		} else {
			bit, err := r.ReadBit()
			if err != nil {
				return fmt.Errorf("mono: read row-filter selector for row %d: %w", ty, err)
			}
			if bit {
				rd.rowFilter[ty] = rfPrev
			} else {
				rd.rowFilter[ty] = rfNoop
			}
			rd.rowPrevFilter = 0
		}
	}
	rd.chaosModel.StartRow()

	rd.state = stateInRows
	rd.expectedY = y
	rd.expectedX = 0
	return nil
}

// decodeSampler adapts a Reader's in-progress output buffer into a
// filterbank.Sampler, the decode-side counterpart of matrix.go's
// sampler: it reads from rd.params.Data, which is filled in causally as
// ReadCell proceeds in raster order, so every neighbor a predictor can
// reference has already been written by the time it is read.
type decodeSampler struct {
	rd   *Reader
	x, y int
}

func (s *decodeSampler) At(dx, dy int) (byte, bool) {
	x, y := s.x+dx, s.y+dy
	p := &s.rd.params
	if x < 0 || y < 0 || x >= p.SizeX || y >= p.SizeY {
		return 0, false
	}
	if p.mask(x, y) {
		return 0, false
	}
	return p.Data[y*p.Stride+x], true
}

func (rd *Reader) predictAt(catalogIdx, x, y int) byte {
	s := decodeSampler{rd: rd, x: x, y: y}
	return filterbank.Catalog[catalogIdx].Predict(&s, rd.params.NumSyms-1)
}

// ReadCell reads cell (x, y), in increasing x within the current row,
// the mirror image of Writer.WriteCell, and returns the pixel value it
// reconstructed (0 for masked cells, which ReadCell leaves untouched in
// the output buffer per the round-trip invariant that masked positions
// are unconstrained). Unlike WriteCell, every non-masked branch here
// must actually write the reconstructed value into params.Data, since
// later predictors causally depend on it.
func (rd *Reader) ReadCell(r *bitio.Reader, x, y int) (byte, error) {
	if rd.state != stateInRows || y != rd.expectedY || x != rd.expectedX {
		panic("mono: ReadCell called out of sequence")
	}
	rd.expectedX++

	if rd.params.mask(x, y) {
		rd.chaosModel.Zero()
		return 0, nil
	}

	tx := x / rd.grid.tileSizeX
	ty := y / rd.grid.tileSizeY
	idx := ty*rd.grid.tilesX + tx

	if rd.recursive == nil && !rd.seen[tx] {
		rd.seen[tx] = true
		modulus := rd.filterCount
		if modulus < 1 {
			modulus = 1
		}
		code, err := rd.rowCoder.Decode(r)
		if err != nil {
			return 0, fmt.Errorf("mono: decode tile id at (%d,%d): %w", tx, ty, err)
		}
		var f byte
		if rd.rowFilter[ty] == rfPrev {
			f = byte((int(code) + int(rd.rowPrevFilter)) % modulus)
		} else {
			f = code
		}
		rd.tiles[idx] = f
		rd.rowPrevFilter = f
	}

	f := rd.tiles[idx]
	if int(f) >= rd.normalFilterCount {
		rd.chaosModel.Zero()
		sIdx := int(f) - rd.normalFilterCount
		if sIdx < 0 || sIdx >= rd.sympalFilterCount {
			return 0, fmt.Errorf("mono: decoded filter id %d out of range at (%d,%d)", f, x, y)
		}
		v := rd.sympalValues[sIdx]
		rd.params.Data[y*rd.params.Stride+x] = v
		return v, nil
	}

	pred := rd.predictAt(rd.filterIndices[f], x, y)
	bin := rd.chaosModel.Get()
	res, err := rd.chaosCoders[bin].Decode(r)
	if err != nil {
		return 0, fmt.Errorf("mono: decode residual at (%d,%d): %w", x, y, err)
	}
	rd.chaosModel.Store(res, rd.params.NumSyms)
	v := unresidual(res, pred, rd.params.NumSyms)
	rd.params.Data[y*rd.params.Stride+x] = v
	return v, nil
}

// DecodeFrom reads the complete bitstream written by Writer.EncodeTo:
// tables, then every row header and every cell in raster order.
func (rd *Reader) DecodeFrom(r *bitio.Reader) error {
	if err := rd.ReadTables(r); err != nil {
		return err
	}
	for y := 0; y < rd.params.SizeY; y++ {
		if err := rd.ReadRowHeader(r, y); err != nil {
			return err
		}
		for x := 0; x < rd.params.SizeX; x++ {
			if _, err := rd.ReadCell(r, x, y); err != nil {
				return err
			}
		}
	}
	rd.Finish()
	return nil
}

// Finish transitions a fully-read Reader to its terminal state. See
// Writer.Finish.
func (rd *Reader) Finish() {
	if rd.state != stateInRows || rd.expectedY != rd.params.SizeY-1 || rd.expectedX != rd.params.SizeX {
		panic("mono: Finish called before every row and cell was read")
	}
	rd.state = stateDone
}
