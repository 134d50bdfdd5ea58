package mono

// recurseCompress is C7: below recurseThreshCount tiles, recursion never
// pays for itself and is skipped outright. Otherwise a fresh MonoCoder
// is pointed at the tile-filter map itself (num_syms = filterCount, mask
// = "this tile is MASK_TILE") and kept only if its own simulated cost
// does not exceed the row-filter estimate designRowFilters already computed.
func (w *Writer) recurseCompress() {
	if w.grid.tilesCount < recurseThreshCount {
		w.recursive = nil
		return
	}

	tiles := w.tiles
	tilesX := w.grid.tilesX
	childParams := Parameters{
		Data:         tiles,
		Stride:       tilesX,
		SizeX:        tilesX,
		SizeY:        w.grid.tilesY,
		NumSyms:      w.filterCount,
		Mask:         func(x, y int) bool { return tiles[y*tilesX+x] == MaskTile },
		MinBits:      w.params.MinBits,
		MaxBits:      w.params.MaxBits,
		SympalThresh: w.params.SympalThresh,
		FilterThresh: w.params.FilterThresh,
		AwardCount:   w.params.AwardCount,
		Awards:       w.params.Awards,
		MaxFilters:   w.params.MaxFilters,
		Knobs:        w.params.Knobs,
		DesyncChecks: w.params.DesyncChecks,
	}

	child, err := NewWriter(childParams)
	if err != nil {
		// The child's Parameters are entirely derived from the parent's
		// own already-validated configuration and its own filter-design
		// output; a failure here means a geometry/filter-count
		// inconsistency in the tile planner, not invalid user input.
		panic(err)
	}
	if err := child.Process(); err != nil {
		panic(err)
	}

	bits := child.Simulate()
	logger.Printf("recurseCompress: tiles=%d recursive=%d row=%d", w.grid.tilesCount, bits, w.rowFilterEntropyBits)
	if bits <= w.rowFilterEntropyBits {
		w.recursive = child
	} else {
		w.recursive = nil
	}
}
