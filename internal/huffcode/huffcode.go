// Package huffcode is MonoCoder's concrete entropy-coder primitive: a
// canonical Huffman coder satisfying the init/add/finalize/simulate/
// write_tables/write/reset contract an entropy coder plugged into the
// bitstream writer must expose. One instance backs each chaos bin.
//
// The canonical-code construction (histogram -> code lengths -> assign
// codes in symbol order within each length) is built here from scratch,
// because the klauspost/compress/huff0 package
// this module otherwise depends on only offers whole-block
// Compress1X/Decompress1X, not a per-symbol streaming write the
// bitstream writer's interleaved cell/header loop requires (see
// SPEC_FULL.md "DOMAIN STACK").
package huffcode

import (
	"container/heap"
	"fmt"
	"sort"

	"monopix/internal/bitio"
)

// Coder is one canonical Huffman table plus its live encode/decode state.
// It is MonoCoder's entropy-coder primitive.
type Coder struct {
	numSyms int
	hist    [256]uint32
	length  [256]byte
	code    [256]uint32
	maxLen  byte

	// Decode-side lookup, populated by ReadTables.
	firstCode  [256]uint32
	firstIndex [256]int
	count      [256]int
	symByIndex [256]byte
}

// New returns a Coder over an alphabet of numSyms symbols (numSyms must
// be in [1,256]).
func New(numSyms int) *Coder {
	return &Coder{numSyms: numSyms}
}

// Init clears the histogram and any built table, retargeting the
// alphabet size.
func (c *Coder) Init(numSyms int) {
	*c = Coder{numSyms: numSyms}
}

// Add folds one occurrence of sym into the histogram used by Finalize.
func (c *Coder) Add(sym byte) {
	c.hist[sym]++
}

type heapNode struct {
	weight uint64
	sym    int // -1 for internal nodes
	left   *heapNode
	right  *heapNode
	// order breaks ties deterministically: lower order is "older",
	// preferring it on the left so code assignment is stable.
	order int
}

type nodeHeap []*heapNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	return h[i].order < h[j].order
}
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)        { *h = append(*h, x.(*heapNode)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func assignLengths(node *heapNode, depth int, out *[256]byte) {
	if node.sym >= 0 {
		d := depth
		if d == 0 {
			d = 1 // a single-symbol alphabet still needs a 1-bit code
		}
		out[node.sym] = byte(d)
		return
	}
	assignLengths(node.left, depth+1, out)
	assignLengths(node.right, depth+1, out)
}

// Finalize builds the canonical Huffman table from the histogram
// accumulated via Add.
func (c *Coder) Finalize() {
	h := &nodeHeap{}
	heap.Init(h)
	order := 0
	present := 0
	for sym := 0; sym < c.numSyms; sym++ {
		w := c.hist[sym]
		if w == 0 {
			continue
		}
		heap.Push(h, &heapNode{weight: uint64(w), sym: sym, order: order})
		order++
		present++
	}

	c.length = [256]byte{}

	switch present {
	case 0:
		// Nothing was ever added; leave every length at 0.
	case 1:
		only := (*h)[0]
		c.length[only.sym] = 1
	default:
		for h.Len() > 1 {
			a := heap.Pop(h).(*heapNode)
			b := heap.Pop(h).(*heapNode)
			merged := &heapNode{weight: a.weight + b.weight, sym: -1, left: a, right: b, order: order}
			order++
			heap.Push(h, merged)
		}
		root := heap.Pop(h).(*heapNode)
		assignLengths(root, 0, &c.length)
	}

	c.assignCanonicalCodes()
}

// assignCanonicalCodes derives c.code and c.maxLen from c.length using
// the standard canonical assignment: symbols are ordered by (length,
// symbol id) ascending, and codes increment within a length, shifting
// left when the length grows.
func (c *Coder) assignCanonicalCodes() {
	type entry struct {
		sym int
		len byte
	}
	var entries []entry
	var maxLen byte
	for sym := 0; sym < c.numSyms; sym++ {
		if c.length[sym] == 0 {
			continue
		}
		entries = append(entries, entry{sym, c.length[sym]})
		if c.length[sym] > maxLen {
			maxLen = c.length[sym]
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].len != entries[j].len {
			return entries[i].len < entries[j].len
		}
		return entries[i].sym < entries[j].sym
	})

	c.maxLen = maxLen
	var code uint32
	prevLen := byte(0)
	for _, e := range entries {
		code <<= (e.len - prevLen)
		c.code[e.sym] = code
		code++
		prevLen = e.len
	}
}

// Simulate returns the number of bits Write(sym, ...) would emit, without
// mutating any state — the pure cost-estimation entry point the planning
// passes rely on.
func (c *Coder) Simulate(sym byte) int {
	return int(c.length[sym])
}

// tableLenBits returns how many bits are needed to transmit a length in
// [0, maxLen].
func tableLenBits(maxLen byte) uint8 {
	n := uint8(0)
	for (1 << n) <= int(maxLen) {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}

// TableBits returns the number of bits WriteTables would emit, without
// writing anything — the pure counterpart Simulate-style callers use to
// total a header's cost during planning.
func (c *Coder) TableBits() int {
	return 8 + c.numSyms*int(tableLenBits(c.maxLen))
}

// WriteTables emits the code-length table: 8 bits for maxLen, then a
// tableLenBits(maxLen)-wide field per symbol in [0,numSyms). Returns the
// number of bits written.
func (c *Coder) WriteTables(w *bitio.Writer) int {
	bits := 0
	w.WriteBits(uint64(c.maxLen), 8)
	bits += 8
	lb := tableLenBits(c.maxLen)
	for sym := 0; sym < c.numSyms; sym++ {
		w.WriteBits(uint64(c.length[sym]), lb)
		bits += int(lb)
	}
	return bits
}

// ReadTables mirrors WriteTables on the decode side, rebuilding the
// canonical decode lookup tables.
func (c *Coder) ReadTables(r *bitio.Reader) error {
	maxLenV, err := r.ReadBits(8)
	if err != nil {
		return fmt.Errorf("huffcode: read maxLen: %w", err)
	}
	c.maxLen = byte(maxLenV)
	lb := tableLenBits(c.maxLen)
	c.length = [256]byte{}
	for sym := 0; sym < c.numSyms; sym++ {
		v, err := r.ReadBits(lb)
		if err != nil {
			return fmt.Errorf("huffcode: read length[%d]: %w", sym, err)
		}
		c.length[sym] = byte(v)
	}
	c.assignCanonicalCodes()
	c.buildDecodeTables()
	return nil
}

func (c *Coder) buildDecodeTables() {
	type entry struct {
		sym int
		len byte
	}
	var entries []entry
	for sym := 0; sym < c.numSyms; sym++ {
		if c.length[sym] == 0 {
			continue
		}
		entries = append(entries, entry{sym, c.length[sym]})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].len != entries[j].len {
			return entries[i].len < entries[j].len
		}
		return entries[i].sym < entries[j].sym
	})

	c.firstCode = [256]uint32{}
	c.firstIndex = [256]int{}
	c.count = [256]int{}
	c.symByIndex = [256]byte{}

	idx := 0
	for i, e := range entries {
		c.symByIndex[i] = byte(e.sym)
		c.count[e.len]++
		if i == 0 || entries[i-1].len != e.len {
			c.firstIndex[e.len] = idx
			c.firstCode[e.len] = c.code[e.sym]
		}
		idx++
	}
}

// Write emits sym's canonical code and returns the number of bits
// written.
func (c *Coder) Write(sym byte, w *bitio.Writer) int {
	n := c.length[sym]
	if n == 0 {
		return 0
	}
	w.WriteBits(uint64(c.code[sym]), n)
	return int(n)
}

// Decode reads one symbol using the canonical decode lookup built by
// ReadTables.
func (c *Coder) Decode(r *bitio.Reader) (byte, error) {
	var value uint32
	var length byte
	for {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, fmt.Errorf("huffcode: decode: %w", err)
		}
		value <<= 1
		if bit {
			value |= 1
		}
		length++

		if cnt := c.count[length]; cnt > 0 {
			first := c.firstCode[length]
			if value >= first && value-first < uint32(cnt) {
				idx := c.firstIndex[length] + int(value-first)
				return c.symByIndex[idx], nil
			}
		}

		if length >= c.maxLen {
			return 0, fmt.Errorf("huffcode: decode: no matching code after %d bits", length)
		}
	}
}

// Reset clears no state: the canonical table built by Finalize/ReadTables
// is static for the lifetime of a write pass, so there is nothing to undo
// between cells. It exists to satisfy the entropy-coder primitive
// contract.
func (c *Coder) Reset() {}
