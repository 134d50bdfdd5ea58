package mono

import "monopix/internal/bitio"

// WriteTables emits MonoCoder's header: the tile-size field, the sympal
// table, the chosen normal-filter ids, the chaos tables, and either a
// recursive inner header or the row-filter encoder's table. It is the
// first thing a write pass does and may be called exactly once.
func (w *Writer) WriteTables(bw *bitio.Writer) int {
	if w.state != stateProcessed {
		panic("mono: WriteTables called before Process, or called twice")
	}

	n := 0

	if w.params.MaxBits > w.params.MinBits {
		width := tileBitsFieldWidth(w.params.MinBits, w.params.MaxBits)
		bw.WriteBits(uint64(w.bits-w.params.MinBits), uint8(width))
		n += width
	}

	// The presence flag resolves an ambiguity a bare "sent only if
	// sympal_filter_count > 0" rule leaves open: a reader has no way to
	// know that without an independent signal; see DESIGN.md.
	bw.WriteBit(w.sympalFilterCount > 0)
	n++
	if w.sympalFilterCount > 0 {
		bw.WriteBits(uint64(w.sympalFilterCount-1), 4)
		n += 4
		for _, v := range w.sympalValues {
			bw.WriteBits(uint64(v), 8)
			n += 8
		}
	}

	bw.WriteBits(uint64(w.normalFilterCount-sfFixed), 5)
	n += 5
	for _, catalogIdx := range w.filterIndices[sfFixed:w.normalFilterCount] {
		bw.WriteBits(uint64(catalogIdx), 7)
		n += 7
	}

	bw.WriteBits(uint64(w.chaosBinCount-1), 4)
	n += 4
	for _, c := range w.chaosCoders {
		n += c.WriteTables(bw)
	}

	if w.recursive != nil {
		bw.WriteBit(true)
		n++
		n += w.recursive.WriteTables(bw)
	} else {
		bw.WriteBit(false)
		n++
		n += w.rowCoder.WriteTables(bw)
	}

	if w.params.DesyncChecks {
		bw.WriteWord(desyncWord)
		n += 32
	}

	w.chaosModel.Init(w.chaosBinCount, w.params.SizeX)
	w.chaosModel.Start()
	if w.seen == nil || len(w.seen) != w.grid.tilesX {
		w.seen = make([]bool, w.grid.tilesX)
	}

	w.state = stateTablesWritten
	w.expectedY = -1
	w.expectedX = w.params.SizeX
	return n
}

// WriteRowHeader is called on entering every output row y, in
// increasing order, after WriteTables and after the previous row's
// cells are all written. At a tile-row
// boundary it clears the tile-seen vector and emits either the
// recursive inner row-header or the row-filter selector bit; on every
// row it resets the chaos model's row scratch.
//
// In recursive mode, every tile id in the row (MASK_TILE ones included)
// is transmitted right here, eagerly, rather than lazily on each tile's
// first unmasked parent-pixel visit: the inner Writer has its own
// strictly-monotonic column sequencing contract, and a tile that is
// entirely masked in the parent never has an unmasked parent pixel to
// trigger a lazy visit, which would starve the inner Writer of a cell it
// still expects (as a masked one) to stay in lock-step. This produces an
// identical bitstream to a lazy trigger — bit content doesn't depend on
// which parent pixel occasioned it — just decided up front instead of
// interleaved with residual cells.
func (w *Writer) WriteRowHeader(bw *bitio.Writer, y int) int {
	switch w.state {
	case stateTablesWritten:
		if y != 0 {
			panic("mono: WriteRowHeader called with non-zero y before any row was written")
		}
	case stateInRows:
		if w.expectedX != w.params.SizeX {
			panic("mono: WriteRowHeader called before the previous row's cells were all written")
		}
		if y != w.expectedY+1 {
			panic("mono: WriteRowHeader called out of order")
		}
	default:
		panic("mono: WriteTables must precede WriteRowHeader")
	}

	n := 0
	if w.params.DesyncChecks {
		bw.WriteWord(desyncWord)
		n += 32
	}
	if y%w.grid.tileSizeY == 0 {
		for i := range w.seen {
			w.seen[i] = false
		}
		ty := y / w.grid.tileSizeY
		if w.recursive != nil {
			n += w.recursive.WriteRowHeader(bw, ty)
			for tx := 0; tx < w.grid.tilesX; tx++ {
				n += w.recursive.WriteCell(bw, tx, ty)
			}
			if ty == w.grid.tilesY-1 {
				w.recursive.Finish()
			}
		} else {
			bw.WriteBit(w.rowFilter[ty] == rfPrev)
			n++
		}
	}
	w.chaosModel.StartRow()

	w.state = stateInRows
	w.expectedY = y
	w.expectedX = 0
	return n
}

// WriteCell emits cell (x, y), in increasing x within the current row.
// Masked cells cost nothing but still
// advance the chaos model in lock-step; in row-filter mode, the first
// unmasked visit to a tile column in a row transmits that tile's filter
// id through the row-filter encoder (recursive mode already transmitted
// every tile id for this row from WriteRowHeader); sympal/MASK tiles
// stop there, normal tiles go on to emit the cell's residual.
func (w *Writer) WriteCell(bw *bitio.Writer, x, y int) int {
	if w.state != stateInRows || y != w.expectedY || x != w.expectedX {
		panic("mono: WriteCell called out of sequence")
	}
	w.expectedX++

	if w.params.mask(x, y) {
		w.chaosModel.Zero()
		return 0
	}

	n := 0
	tx := x / w.grid.tileSizeX
	ty := y / w.grid.tileSizeY
	f := w.tiles[ty*w.grid.tilesX+tx]

	if w.recursive == nil && !w.seen[tx] {
		w.seen[tx] = true
		n += w.rowCoder.Write(w.rowCode[ty][tx], bw)
	}

	if int(f) >= w.normalFilterCount {
		w.chaosModel.Zero()
		return n
	}

	r := w.residuals[y*w.params.SizeX+x]
	bin := w.chaosModel.Get()
	n += w.chaosCoders[bin].Write(r, bw)
	w.chaosModel.Store(r, w.params.NumSyms)
	return n
}

// EncodeTo writes the complete bitstream: tables, then every row header
// and every cell in raster order. It is the convenience entry point for
// callers that don't need the granular per-row/per-cell control a
// recursive parent uses on its inner Writer.
func (w *Writer) EncodeTo(bw *bitio.Writer) int {
	n := w.WriteTables(bw)
	for y := 0; y < w.params.SizeY; y++ {
		n += w.WriteRowHeader(bw, y)
		for x := 0; x < w.params.SizeX; x++ {
			n += w.WriteCell(bw, x, y)
		}
	}
	w.Finish()
	return n
}

// Finish transitions a fully-written Writer to its terminal state.
// EncodeTo calls it automatically; a caller driving WriteRowHeader/
// WriteCell directly (as a recursive parent does on its child) must
// call it once the child's last cell has been written.
func (w *Writer) Finish() {
	if w.state != stateInRows || w.expectedY != w.params.SizeY-1 || w.expectedX != w.params.SizeX {
		panic("mono: Finish called before every row and cell was written")
	}
	w.state = stateDone
}
