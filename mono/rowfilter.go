package mono

import "monopix/internal/entropy"

// designRowFilters is C6: for every tile row, choose between RF_NOOP
// (tile ids transmitted verbatim) and RF_PREV (each id transmitted as a
// difference mod filterCount from the previous non-MASK_TILE tile's id
// in the row). Each row's code array is kept at full tilesX width so
// later passes over the bitstream can index it by tile column directly;
// MASK_TILE slots hold leftover scratch values and are never read, since a masked tile is
// never "visited" by the per-cell emission loop and so never transmits
// a code through the row-filter encoder. Iterates maxRowPasses times
// against one shared EntropyEstimator, subtracting each row's previous
// winner before rescoring on later passes, mirroring designTiles'
// revisit structure at row granularity.
func (w *Writer) designRowFilters() {
	g := w.grid
	modulus := w.filterCount
	if modulus < 1 {
		modulus = 1
	}

	ee := entropy.New(modulus)

	rowFilter := make([]byte, g.tilesY)
	rowCode := make([][]byte, g.tilesY)
	for ty := range rowCode {
		rowCode[ty] = make([]byte, g.tilesX)
	}
	rowScaledBits := make([]int, g.tilesY)

	compact := make([]byte, g.tilesX) // scratch, mask slots excluded
	noopFull := make([]byte, g.tilesX)
	prevFull := make([]byte, g.tilesX)

	for pass := 0; pass < maxRowPasses; pass++ {
		for ty := 0; ty < g.tilesY; ty++ {
			if pass > 0 {
				n := 0
				for tx := 0; tx < g.tilesX; tx++ {
					if w.tiles[ty*g.tilesX+tx] == MaskTile {
						continue
					}
					compact[n] = rowCode[ty][tx]
					n++
				}
				ee.Subtract(compact[:n])
			}

			n := 0
			prev := byte(0)
			for tx := 0; tx < g.tilesX; tx++ {
				f := w.tiles[ty*g.tilesX+tx]
				if f == MaskTile {
					continue
				}
				noopFull[tx] = f
				prevFull[tx] = byte((int(f) + modulus - int(prev)) % modulus)
				prev = f
				n++
			}

			nc := 0
			for tx := 0; tx < g.tilesX; tx++ {
				if w.tiles[ty*g.tilesX+tx] == MaskTile {
					continue
				}
				compact[nc] = noopFull[tx]
				nc++
			}
			noopEntropy := ee.Entropy(compact[:nc])

			nc = 0
			for tx := 0; tx < g.tilesX; tx++ {
				if w.tiles[ty*g.tilesX+tx] == MaskTile {
					continue
				}
				compact[nc] = prevFull[tx]
				nc++
			}
			prevEntropy := ee.Entropy(compact[:nc])

			var chosenMode byte
			var chosenFull []byte
			var chosenEntropy int
			if prevEntropy < noopEntropy {
				chosenMode, chosenFull, chosenEntropy = rfPrev, prevFull, prevEntropy
			} else {
				chosenMode, chosenFull, chosenEntropy = rfNoop, noopFull, noopEntropy
			}

			rowFilter[ty] = chosenMode
			copy(rowCode[ty], chosenFull)
			rowScaledBits[ty] = entropy.Scale + chosenEntropy

			nc = 0
			for tx := 0; tx < g.tilesX; tx++ {
				if w.tiles[ty*g.tilesX+tx] == MaskTile {
					continue
				}
				compact[nc] = chosenFull[tx]
				nc++
			}
			ee.Add(compact[:nc])
		}
	}

	total := 0
	for _, b := range rowScaledBits {
		total += b
	}

	w.rowFilter = rowFilter
	w.rowCode = rowCode
	w.rowFilterEntropyBits = scaledBitsToBits(total)
}

// scaledBitsToBits converts a Scale-fixed-point bit cost to a whole
// (ceiling) bit count, the unit Simulate and the recursion decision
// compare in.
func scaledBitsToBits(scaled int) int {
	if scaled <= 0 {
		return 0
	}
	return (scaled + entropy.Scale - 1) / entropy.Scale
}
