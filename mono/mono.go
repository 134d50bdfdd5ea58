// Package mono implements MonoCoder: the monochrome-plane filtered
// residual coder at the arithmetic core of a lossless RGBA image
// compressor. See SPEC_FULL.md for the full design; this file holds the
// wire-format constants shared by the encoder (Writer) and decoder
// (Reader).
package mono

import (
	"io"
	"log"

	"monopix/internal/filterbank"
)

const (
	// MaskTile marks a tile every one of whose cells is masked.
	MaskTile = 0xFF
	// todoTile is the provisional value maskTiles assigns to every
	// unmasked tile: filter 0. It is a valid filter id (never >=
	// normalFilterCount, since SFFixed filters are always present), so
	// designTiles's "skip masked-or-sympal tiles" check never mistakes
	// an undesigned tile for a decided one; designTiles overwrites it
	// with the actually-chosen filter on its first pass.
	todoTile = 0x00
	// unusedSympal marks a sympal candidate that designFilters did not
	// select into the final filter set.
	unusedSympal = 0xFF

	// MaxPalette bounds how many sympal (constant-value) filters a tile
	// size may carry.
	MaxPalette = 16
	// MaxFiltersWire bounds total filter count (normal + sympal); it is
	// also the modulus row filters subtract/add against.
	MaxFiltersWire = 32
	// MaxChaosLevels bounds the number of chaos bins ChaosPlanner may
	// choose.
	MaxChaosLevels = 16

	// sfFixed is the number of always-present normal predictors.
	sfFixed = filterbank.SFFixed

	// recurseThreshCount is the minimum tile count for which
	// RecursiveCompressor will try recursing MonoCoder onto the tile
	// map at all. Below this the tile map is too small for a second
	// filter-design pass to pay for its own overhead; chosen to skip
	// recursion for anything short of a handful of tile rows/columns
	// (DESIGN.md).
	recurseThreshCount = 128

	// maxPasses bounds designTiles' revisit loop; maxRowPasses bounds
	// designRowFilters' revisit loop; see DESIGN.md for how these
	// values were chosen.
	maxPasses    = 4
	maxRowPasses = 4

	// Row filter selector values.
	rfNoop  = 0
	rfPrev  = 1
	rfCount = 2

	// desyncWord is the magic value DesyncChecks inserts after the header
	// and at the start of every row, matching the intent (not the literal constant) of the original's
	// CAT_DESYNCH_CHECKS build flag.
	desyncWord = 0x9E3779B9
)

// logger receives MonoCoder's per-stage trace points. It discards output
// by default; call SetLogger to observe planning decisions. No example in
// the retrieval pack pulls in a structured-logging dependency (see
// SPEC_FULL.md "AMBIENT STACK"), so this stays a plain *log.Logger.
var logger = log.New(io.Discard, "mono: ", 0)

// SetLogger redirects MonoCoder's trace output. Pass nil to silence it
// again.
func SetLogger(l *log.Logger) {
	if l == nil {
		logger = log.New(io.Discard, "mono: ", 0)
		return
	}
	logger = l
}
