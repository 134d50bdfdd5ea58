package mono

import "monopix/internal/filterbank"

// residual computes (value + numSyms - prediction) mod numSyms, the
// wraparound distance between a cell's true value and its prediction.
func residual(value, prediction byte, numSyms int) byte {
	r := int(value) + numSyms - int(prediction)
	if r >= numSyms {
		r -= numSyms
	}
	return byte(r)
}

// unresidual inverts residual: (residual + prediction) mod numSyms.
func unresidual(r, prediction byte, numSyms int) byte {
	v := int(r) + int(prediction)
	if v >= numSyms {
		v -= numSyms
	}
	return byte(v)
}

// sampler adapts a Parameters' data/mask into a filterbank.Sampler
// positioned at one (x, y), reused for every predictor evaluated at that
// cell to avoid an allocation per predictor.
type sampler struct {
	p    *Parameters
	x, y int
}

func (s *sampler) At(dx, dy int) (byte, bool) {
	x, y := s.x+dx, s.y+dy
	if x < 0 || y < 0 || x >= s.p.SizeX || y >= s.p.SizeY {
		return 0, false
	}
	if s.p.mask(x, y) {
		return 0, false
	}
	return s.p.Data[y*s.p.Stride+x], true
}

// predictAt evaluates predictor catalogIdx at (x, y) against p.
func predictAt(p *Parameters, catalogIdx, x, y int) byte {
	s := sampler{p: p, x: x, y: y}
	return filterbank.Catalog[catalogIdx].Predict(&s, p.NumSyms-1)
}

// tileGrid holds the square tile-size geometry for one TileSizeSearch
// candidate.
type tileGrid struct {
	bits               int
	tileSizeX, tileSizeY int
	tilesX, tilesY       int
	tilesCount           int
}

func newTileGrid(bits, sizeX, sizeY int) tileGrid {
	size := 1 << bits
	return tileGrid{
		bits:      bits,
		tileSizeX: size,
		tileSizeY: size,
		tilesX:    (sizeX + size - 1) / size,
		tilesY:    (sizeY + size - 1) / size,
		tilesCount: ((sizeX + size - 1) / size) * ((sizeY + size - 1) / size),
	}
}

// forEachTile calls fn once per tile with the tile's index, its top-left
// matrix coordinate, and its (possibly truncated) pixel extent.
func (g tileGrid) forEachTile(sizeX, sizeY int, fn func(tx, ty, x0, y0, w, h int)) {
	for ty := 0; ty < g.tilesY; ty++ {
		y0 := ty * g.tileSizeY
		h := g.tileSizeY
		if y0+h > sizeY {
			h = sizeY - y0
		}
		for tx := 0; tx < g.tilesX; tx++ {
			x0 := tx * g.tileSizeX
			w := g.tileSizeX
			if x0+w > sizeX {
				w = sizeX - x0
			}
			fn(tx, ty, x0, y0, w, h)
		}
	}
}
