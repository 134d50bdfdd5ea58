package bitio

import (
	"bytes"
	"testing"
)

func TestWriteReadBitsRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	values := []struct {
		v uint64
		n uint8
	}{
		{1, 1}, {0, 1}, {0b1011, 4}, {0xABCD, 16}, {7, 3}, {0xFFFFFFFF, 32},
	}
	for _, tc := range values {
		w.WriteBits(tc.v, tc.n)
	}
	w.Flush()

	r := NewReader(buf.Bytes())
	for _, tc := range values {
		got, err := r.ReadBits(tc.n)
		if err != nil {
			t.Fatalf("ReadBits: %v", err)
		}
		want := uint32(tc.v) & uint32((uint64(1)<<tc.n)-1)
		if tc.n == 32 {
			want = uint32(tc.v)
		}
		if got != want {
			t.Fatalf("ReadBits(%d) = %#x, want %#x", tc.n, got, want)
		}
	}
}

func TestWriteWord(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteWord(0x12345678)
	w.Flush()

	r := NewReader(buf.Bytes())
	got, err := r.ReadWord()
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if got != 0x12345678 {
		t.Fatalf("ReadWord = %#x, want %#x", got, 0x12345678)
	}
}

func TestBitsWritten(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBit(true)
	w.WriteBits(0, 7)
	if w.BitsWritten() != 8 {
		t.Fatalf("BitsWritten = %d, want 8", w.BitsWritten())
	}
}
