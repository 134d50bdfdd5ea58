package huffcode

import (
	"bytes"
	"testing"

	"monopix/internal/bitio"
)

func TestRoundTrip(t *testing.T) {
	syms := []byte{0, 0, 0, 0, 1, 1, 2, 3, 3, 3, 3, 3, 3}

	enc := New(4)
	for _, s := range syms {
		enc.Add(s)
	}
	enc.Finalize()

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	enc.WriteTables(w)
	for _, s := range syms {
		enc.Write(s, w)
	}
	w.Flush()

	dec := New(4)
	r := bitio.NewReader(buf.Bytes())
	if err := dec.ReadTables(r); err != nil {
		t.Fatalf("ReadTables: %v", err)
	}
	for i, want := range syms {
		got, err := dec.Decode(r)
		if err != nil {
			t.Fatalf("Decode[%d]: %v", i, err)
		}
		if got != want {
			t.Fatalf("Decode[%d] = %d, want %d", i, got, want)
		}
	}
}

func TestSingleSymbolAlphabet(t *testing.T) {
	enc := New(3)
	enc.Add(1)
	enc.Add(1)
	enc.Add(1)
	enc.Finalize()

	if enc.Simulate(1) != 1 {
		t.Fatalf("single-symbol code length = %d, want 1", enc.Simulate(1))
	}

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	enc.WriteTables(w)
	enc.Write(1, w)
	enc.Write(1, w)
	w.Flush()

	dec := New(3)
	r := bitio.NewReader(buf.Bytes())
	if err := dec.ReadTables(r); err != nil {
		t.Fatalf("ReadTables: %v", err)
	}
	for i := 0; i < 2; i++ {
		got, err := dec.Decode(r)
		if err != nil || got != 1 {
			t.Fatalf("Decode[%d] = %d, %v, want 1, nil", i, got, err)
		}
	}
}

func TestSimulateMatchesWrittenBits(t *testing.T) {
	enc := New(5)
	freqs := []int{1, 4, 2, 8, 1}
	for sym, f := range freqs {
		for i := 0; i < f; i++ {
			enc.Add(byte(sym))
		}
	}
	enc.Finalize()

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	simBits := 0
	for sym := range freqs {
		simBits += enc.Simulate(byte(sym))
		enc.Write(byte(sym), w)
	}
	w.Flush()

	if uint64(simBits) != w.BitsWritten() {
		t.Fatalf("simulated %d bits, wrote %d bits", simBits, w.BitsWritten())
	}
}

func TestSimulateIsPure(t *testing.T) {
	enc := New(2)
	enc.Add(0)
	enc.Add(1)
	enc.Finalize()
	before := enc.length
	enc.Simulate(0)
	enc.Simulate(1)
	if before != enc.length {
		t.Fatalf("Simulate mutated the code-length table")
	}
}
