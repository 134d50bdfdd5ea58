package mono

import (
	"monopix/internal/chaos"
	"monopix/internal/entropy"
	"monopix/internal/huffcode"
)

// chaosTableOverheadBits is the per-bin amortized table-overhead penalty
// ChaosPlanner charges each candidate bin count, in units of num_syms
// bits.
const chaosTableOverheadBits = 5

// designChaos is C8: sweeps chaos_bin_count over [1, MaxChaosLevels),
// picks the count minimizing Σ ee[b].entropy_overall() plus the
// table-overhead penalty, then builds the concrete per-bin Huffman
// coders the bitstream writer and decoder will actually use.
func (w *Writer) designChaos() {
	numSyms := w.params.NumSyms
	sizeX, sizeY := w.params.SizeX, w.params.SizeY

	model := chaos.New()
	ee := make([]*entropy.Estimator, MaxChaosLevels)
	for i := range ee {
		ee[i] = entropy.New(numSyms)
	}

	bestLevels := 1
	bestCost := -1

	for levels := 1; levels < MaxChaosLevels; levels++ {
		for b := 0; b < levels; b++ {
			ee[b].Init(numSyms)
		}
		model.Init(levels, sizeX)
		model.Start()

		for y := 0; y < sizeY; y++ {
			model.StartRow()
			for x := 0; x < sizeX; x++ {
				if w.params.mask(x, y) {
					model.Zero()
					continue
				}
				if int(w.tileAt(x, y)) >= w.normalFilterCount {
					model.Zero()
					continue
				}
				r := w.residuals[y*sizeX+x]
				bin := model.Get()
				ee[bin].AddSingle(r)
				model.Store(r, numSyms)
			}
		}

		cost := 0
		for b := 0; b < levels; b++ {
			cost += ee[b].EntropyOverall()
		}
		cost += levels * chaosTableOverheadBits * numSyms * entropy.Scale

		logger.Printf("designChaos: levels=%d cost=%d", levels, cost)
		if bestCost < 0 || cost < bestCost {
			bestCost = cost
			bestLevels = levels
		}
	}

	w.chaosBinCount = bestLevels
	if w.chaosModel == nil {
		w.chaosModel = chaos.New()
	}
	w.chaosModel.Init(bestLevels, sizeX)
	w.chaosModel.Start()

	coders := make([]*huffcode.Coder, bestLevels)
	for b := range coders {
		coders[b] = huffcode.New(numSyms)
	}

	for y := 0; y < sizeY; y++ {
		w.chaosModel.StartRow()
		for x := 0; x < sizeX; x++ {
			if w.params.mask(x, y) {
				w.chaosModel.Zero()
				continue
			}
			if int(w.tileAt(x, y)) >= w.normalFilterCount {
				w.chaosModel.Zero()
				continue
			}
			r := w.residuals[y*sizeX+x]
			bin := w.chaosModel.Get()
			coders[bin].Add(r)
			w.chaosModel.Store(r, numSyms)
		}
	}
	for _, c := range coders {
		c.Finalize()
	}
	w.chaosCoders = coders

	logger.Printf("designChaos: chose %d bins", bestLevels)
}

// tileAt returns the filter id of the tile covering matrix cell (x, y).
func (w *Writer) tileAt(x, y int) byte {
	tx := x / w.grid.tileSizeX
	ty := y / w.grid.tileSizeY
	return w.tiles[ty*w.grid.tilesX+tx]
}
