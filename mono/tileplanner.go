package mono

import (
	"monopix/internal/chaos"
	"monopix/internal/entropy"
	"monopix/internal/filterbank"
)

// maskTiles is C5.5.1: every tile whose cells are entirely masked is
// marked MaskTile; everything else starts at todoTile (filter 0,
// provisionally).
func (w *Writer) maskTiles() {
	g := w.grid
	g.forEachTile(w.params.SizeX, w.params.SizeY, func(tx, ty, x0, y0, tw, th int) {
		idx := ty*g.tilesX + tx
		masked := true
	scan:
		for y := y0; y < y0+th; y++ {
			for x := x0; x < x0+tw; x++ {
				if !w.params.mask(x, y) {
					masked = false
					break scan
				}
			}
		}
		if masked {
			w.tiles[idx] = MaskTile
		} else {
			w.tiles[idx] = todoTile
		}
	})
}

// designPaletteFilters is C5.5.2: tiles that are uniform over their
// unmasked cells vote for their value; values crossing SympalThresh
// coverage become sympal candidates.
func (w *Writer) designPaletteFilters() {
	g := w.grid
	var hist [256]uint32

	g.forEachTile(w.params.SizeX, w.params.SizeY, func(tx, ty, x0, y0, tw, th int) {
		idx := ty*g.tilesX + tx
		if w.tiles[idx] == MaskTile {
			return
		}
		uniform, seen, uniformValue := w.tileUniformValue(x0, y0, tw, th)
		if uniform && seen {
			hist[uniformValue]++
		}
	})

	thresh := uint32(w.params.SympalThresh * float64(g.tilesCount))
	var sympal []byte
	for sym := 0; sym < w.params.NumSyms; sym++ {
		if hist[sym] > thresh {
			sympal = append(sympal, byte(sym))
			logger.Printf("designPaletteFilters: added sympal value %d", sym)
			if len(sympal) >= MaxPalette {
				break
			}
		}
	}
	w.sympal = sympal
	w.sympalFilterMap = make([]byte, len(sympal))
	for i := range w.sympalFilterMap {
		w.sympalFilterMap[i] = unusedSympal
	}
}

func (w *Writer) tileUniformValue(x0, y0, tw, th int) (uniform, seen bool, value byte) {
	uniform = true
scan:
	for y := y0; y < y0+th; y++ {
		for x := x0; x < x0+tw; x++ {
			if w.params.mask(x, y) {
				continue
			}
			v := w.params.Data[y*w.params.Stride+x]
			if !seen {
				value = v
				seen = true
			} else if v != value {
				uniform = false
				break scan
			}
		}
	}
	return
}

// designFilters is C5.5.3: every non-mask tile scores the fixed catalog
// (and its matching sympal, if uniform), tiles award points to their
// best-scoring filters, and the globally highest-awarded filters become
// this tile size's filter set.
func (w *Writer) designFilters() {
	g := w.grid
	numSyms := w.params.NumSyms
	sfCount := filterbank.Count()
	totalCandidates := sfCount + len(w.sympal)

	// scores only ever indexes the fixed normal-predictor catalog (awards
	// is what also carries sympal candidates); sizing it to totalCandidates
	// would leave the sympal slots at their zero-value default, which
	// would then outrank every real (negative) catalog score in GetTop.
	scores := entropy.NewScorer(sfCount)
	awards := entropy.NewScorer(totalCandidates)

	g.forEachTile(w.params.SizeX, w.params.SizeY, func(tx, ty, x0, y0, tw, th int) {
		idx := ty*g.tilesX + tx
		if w.tiles[idx] == MaskTile {
			return
		}

		scores.Reset()
		uniform := true
		seen := false
		var uniformValue byte

		for y := y0; y < y0+th; y++ {
			for x := x0; x < x0+tw; x++ {
				if w.params.mask(x, y) {
					continue
				}
				v := w.params.Data[y*w.params.Stride+x]
				if !seen {
					uniformValue = v
					seen = true
				} else if v != uniformValue {
					uniform = false
				}

				for f := 0; f < sfCount; f++ {
					pred := predictAt(&w.params, f, x, y)
					r := residual(v, pred, numSyms)
					// Lower magnitude is better; Scorer.GetTop returns
					// the highest values, so accumulate the negated
					// magnitude to keep "best filter" == "top score".
					scores.Add(f, -int(chaos.ResidualScore(r, numSyms)))
				}
			}
		}

		offset := 0
		if uniform && seen {
			for sIdx, sv := range w.sympal {
				if sv == uniformValue {
					awards.Add(sfCount+sIdx, w.params.Awards[0])
					offset = 1
					w.tiles[idx] = byte(sfCount + sIdx)
					break
				}
			}
		}

		top := scores.GetTop(w.params.AwardCount, true)
		for ii := offset; ii < w.params.AwardCount; ii++ {
			awards.Add(top[ii-offset].Index, w.params.Awards[ii])
		}
	})

	filterIndices := make([]int, 0, w.params.MaxFilters+sfFixed)
	for f := 0; f < sfFixed; f++ {
		filterIndices = append(filterIndices, f)
	}

	count := w.params.MaxFilters + sfFixed
	if count > totalCandidates {
		count = totalCandidates
	}

	coverageThresh := int(w.params.FilterThresh * float64(g.tilesCount))
	coverage := 0
	normalF := sfFixed
	filtersSet := sfFixed
	sympalF := 0
	var sympalValues []byte

	top := awards.GetTop(count, true)
	for ii := 0; ii < count; ii++ {
		idx := top[ii].Index
		score := top[ii].Value

		covered := 0
		if len(w.params.Awards) > 0 && w.params.Awards[0] != 0 {
			covered = score / w.params.Awards[0]
		}
		coverage += covered

		if idx >= sfFixed {
			if idx >= sfCount {
				sIdx := idx - sfCount
				w.sympalFilterMap[sIdx] = byte(sympalF)
				sympalValues = append(sympalValues, w.sympal[sIdx])
				sympalF++
				logger.Printf("designFilters: added palette filter %d for sympal index %d", sympalF, sIdx)
			} else {
				filterIndices = append(filterIndices, idx)
				normalF++
				logger.Printf("designFilters: added filter %d for catalog index %d", normalF, idx)
			}

			filtersSet++
			if filtersSet >= MaxFiltersWire {
				break
			}
		}

		if coverage >= coverageThresh {
			break
		}
	}

	w.filterIndices = filterIndices
	w.sympalValues = sympalValues
	w.normalFilterCount = normalF
	w.sympalFilterCount = sympalF
	w.filterCount = filtersSet

	logger.Printf("designFilters: chose %d filters (%d sympal)", w.filterCount, w.sympalFilterCount)
}

// designPaletteTiles is C5.5.4: tiles designFilters tentatively marked as
// preferring a sympal value are rewritten to point at that sympal's final
// filter slot, or released back to todoTile if the sympal didn't survive
// selection.
func (w *Writer) designPaletteTiles() {
	if w.sympalFilterCount == 0 && len(w.sympalFilterMap) == 0 {
		return
	}
	sfCount := filterbank.Count()
	for i, t := range w.tiles {
		if t == MaskTile {
			continue
		}
		if int(t) >= sfCount {
			sIdx := int(t) - sfCount
			if sIdx < 0 || sIdx >= len(w.sympalFilterMap) {
				continue
			}
			mapped := w.sympalFilterMap[sIdx]
			if mapped != unusedSympal {
				w.tiles[i] = byte(w.normalFilterCount) + mapped
			} else {
				w.tiles[i] = todoTile
			}
		}
	}
}

// designTiles is C5.5.5: the multi-pass filter assignment. Every
// still-undecided tile is scored against every candidate filter (normal
// and sympal), nudged by a same-filter-as-neighbor bonus, and assigned
// its lowest-entropy option; later passes revisit tiles, subtracting
// their previous contribution first, until the revisit budget runs out.
func (w *Writer) designTiles() {
	g := w.grid
	numSyms := w.params.NumSyms
	codeStride := g.tileSizeX * g.tileSizeY
	codesSize := codeStride * w.filterCount
	if len(w.ecodes) < codesSize {
		w.ecodes = make([]byte, codesSize)
	}
	codes := w.ecodes[:codesSize]

	ee := entropy.New(numSyms)

	revisitCount := w.params.Knobs.MonoRevisitCount

	for pass := 0; pass < maxPasses; pass++ {
		done := false

		g.forEachTile(w.params.SizeX, w.params.SizeY, func(tx, ty, x0, y0, tw, th int) {
			if done {
				return
			}
			idx := ty*g.tilesX + tx
			cur := w.tiles[idx]
			if int(cur) >= w.normalFilterCount {
				return
			}

			if pass > 0 {
				revisitCount--
				if revisitCount < 0 {
					done = true
					return
				}

				oldCatalogIdx := w.filterIndices[cur]
				n := 0
				for y := y0; y < y0+th; y++ {
					for x := x0; x < x0+tw; x++ {
						if w.params.mask(x, y) {
							continue
						}
						v := w.params.Data[y*w.params.Stride+x]
						pred := predictAt(&w.params, oldCatalogIdx, x, y)
						codes[n] = residual(v, pred, numSyms)
						n++
					}
				}
				ee.Subtract(codes[:n])
			}

			n := 0
			for y := y0; y < y0+th; y++ {
				for x := x0; x < x0+tw; x++ {
					if w.params.mask(x, y) {
						continue
					}
					v := w.params.Data[y*w.params.Stride+x]
					for f := 0; f < w.filterCount; f++ {
						var pred byte
						if f < w.normalFilterCount {
							pred = predictAt(&w.params, w.filterIndices[f], x, y)
						} else {
							pred = w.sympalValues[f-w.normalFilterCount]
						}
						codes[f*codeStride+n] = residual(v, pred, numSyms)
					}
					n++
				}
			}

			a, b, c, d := MaskTile, MaskTile, MaskTile, MaskTile
			if ty > 0 {
				b = int(w.tiles[idx-g.tilesX])
				if tx > 0 {
					c = int(w.tiles[idx-g.tilesX-1])
				}
				if tx < g.tilesX-1 {
					d = int(w.tiles[idx-g.tilesX+1])
				}
			}
			if tx > 0 {
				a = int(w.tiles[idx-1])
			}

			const neighborReward = 1
			lowest := int(^uint(0) >> 1)
			best := 0
			for f := 0; f < w.filterCount; f++ {
				block := codes[f*codeStride : f*codeStride+n]
				e := ee.Entropy(block)
				if e == 0 {
					e -= neighborReward
				}
				if f == a {
					e -= neighborReward
				}
				if f == b {
					e -= neighborReward
				}
				if f == c {
					e -= neighborReward
				}
				if f == d {
					e -= neighborReward
				}
				if e < lowest {
					lowest = e
					best = f
				}
			}

			w.tiles[idx] = byte(best)
			ee.Add(codes[best*codeStride : best*codeStride+n])
		})

		if done {
			return
		}
		logger.Printf("designTiles: pass %d complete, %d revisits left", pass, revisitCount)
	}
}

// computeResiduals is C5.5.6: writes R(x,y) for every unmasked cell in a
// normally-filtered tile.
func (w *Writer) computeResiduals() {
	g := w.grid
	numSyms := w.params.NumSyms
	g.forEachTile(w.params.SizeX, w.params.SizeY, func(tx, ty, x0, y0, tw, th int) {
		idx := ty*g.tilesX + tx
		f := w.tiles[idx]
		if int(f) >= w.normalFilterCount {
			return
		}
		catalogIdx := w.filterIndices[f]
		for y := y0; y < y0+th; y++ {
			for x := x0; x < x0+tw; x++ {
				if w.params.mask(x, y) {
					continue
				}
				v := w.params.Data[y*w.params.Stride+x]
				pred := predictAt(&w.params, catalogIdx, x, y)
				w.residuals[y*w.params.SizeX+x] = residual(v, pred, numSyms)
			}
		}
	})
}
