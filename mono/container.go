package mono

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"monopix/internal/bitio"
)

// ContainerMethod records which of the two encodings EncodeContainer kept.
type ContainerMethod byte

const (
	// MethodMono means the MonoCoder bitstream won the comparison.
	MethodMono ContainerMethod = iota
	// MethodZstdFallback means a zstd-compressed verbatim encoding of the
	// matrix was smaller than anything MonoCoder's filter/chaos model
	// could produce, and was kept instead.
	MethodZstdFallback
)

// Stats mirrors the original MonoWriter's basic/encoder/filter-overhead
// accounting: how many bits of the emitted container went to MonoCoder's
// header tables versus its per-cell residual data, and which method the
// container ultimately kept.
type Stats struct {
	Method      ContainerMethod
	HeaderBits  int
	DataBits    int
	TotalBits   int
	ZstdBytes   int // size the zstd fallback would have cost, for comparison
}

var zstdEncPool = sync.Pool{
	New: func() any { return mustNewZstdEncoder() },
}

var zstdDecPool = sync.Pool{
	New: func() any { return mustNewZstdDecoder() },
}

func mustNewZstdEncoder() *zstd.Encoder {
	enc, err := zstd.NewWriter(
		nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithLowerEncoderMem(true),
	)
	if err != nil {
		panic(err)
	}
	return enc
}

func mustNewZstdDecoder() *zstd.Decoder {
	dec, err := zstd.NewReader(
		nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		panic(err)
	}
	return dec
}

func compressZstd(data []byte) []byte {
	enc := zstdEncPool.Get().(*zstd.Encoder)
	out := enc.EncodeAll(data, nil)
	zstdEncPool.Put(enc)
	return out
}

func decompressZstd(data []byte) ([]byte, error) {
	dec := zstdDecPool.Get().(*zstd.Decoder)
	out, err := dec.DecodeAll(data, nil)
	zstdDecPool.Put(dec)
	return out, err
}

// containerHeaderBytes is the fixed prefix EncodeContainer writes before
// either payload: one method byte plus the matrix geometry DecodeContainer
// needs to reconstruct DecodeParams (num_syms and mask are the caller's
// responsibility to supply again, same as decoding a bare MonoCoder stream).
const containerHeaderBytes = 1 + 4 + 4

// EncodeContainer runs MonoCoder's full TileSizeSearch over params and
// compares the result against a zstd-compressed verbatim encoding of the
// same matrix, a fallback container mode, keeping whichever is smaller. It
// returns the container bytes and a Stats breakdown.
//
// This comparison happens once, at the top level; a recursive MonoCoder
// invocation (recurseCompress) never falls back to zstd — it always uses
// whichever of MonoCoder-proper or a plain row-filter encoding Simulate()
// preferred.
func EncodeContainer(params Parameters) ([]byte, Stats, error) {
	w, err := NewWriter(params)
	if err != nil {
		return nil, Stats{}, err
	}
	if err := w.Process(); err != nil {
		return nil, Stats{}, err
	}

	var buf bytes.Buffer
	bw := bitio.NewWriter(&buf)
	headerBits := w.WriteTables(bw)
	dataBits := 0
	for y := 0; y < params.SizeY; y++ {
		dataBits += w.WriteRowHeader(bw, y)
		for x := 0; x < params.SizeX; x++ {
			dataBits += w.WriteCell(bw, x, y)
		}
	}
	w.Finish()
	bw.Flush()
	monoBytes := buf.Bytes()

	verbatim := make([]byte, params.SizeY*params.SizeX)
	for y := 0; y < params.SizeY; y++ {
		copy(verbatim[y*params.SizeX:(y+1)*params.SizeX], params.Data[y*params.Stride:y*params.Stride+params.SizeX])
	}
	zstdPayload := compressZstd(verbatim)

	stats := Stats{
		HeaderBits: headerBits,
		DataBits:   dataBits,
		TotalBits:  headerBits + dataBits,
		ZstdBytes:  len(zstdPayload),
	}

	out := make([]byte, containerHeaderBytes)
	putUint32(out[1:5], uint32(params.SizeX))
	putUint32(out[5:9], uint32(params.SizeY))

	if len(zstdPayload) < len(monoBytes) {
		stats.Method = MethodZstdFallback
		out[0] = byte(MethodZstdFallback)
		out = append(out, zstdPayload...)
	} else {
		stats.Method = MethodMono
		out[0] = byte(MethodMono)
		out = append(out, monoBytes...)
	}
	return out, stats, nil
}

// DecodeContainer reverses EncodeContainer. params.Data must already be
// sized for the geometry EncodeContainer wrote; NumSyms and Mask must match
// what the encoder used, exactly as a bare Reader requires.
func DecodeContainer(data []byte, params DecodeParams) error {
	if len(data) < containerHeaderBytes {
		return fmt.Errorf("mono: container too short (%d bytes)", len(data))
	}
	method := ContainerMethod(data[0])
	sizeX := int(getUint32(data[1:5]))
	sizeY := int(getUint32(data[5:9]))
	if sizeX != params.SizeX || sizeY != params.SizeY {
		return fmt.Errorf("mono: container geometry %dx%d does not match params %dx%d", sizeX, sizeY, params.SizeX, params.SizeY)
	}
	payload := data[containerHeaderBytes:]

	switch method {
	case MethodMono:
		rd, err := NewReader(params)
		if err != nil {
			return err
		}
		return rd.DecodeFrom(bitio.NewReader(payload))
	case MethodZstdFallback:
		verbatim, err := decompressZstd(payload)
		if err != nil {
			return fmt.Errorf("mono: zstd decode: %w", err)
		}
		if len(verbatim) != sizeX*sizeY {
			return fmt.Errorf("mono: zstd payload size %d does not match %dx%d", len(verbatim), sizeX, sizeY)
		}
		for y := 0; y < sizeY; y++ {
			copy(params.Data[y*params.Stride:y*params.Stride+sizeX], verbatim[y*sizeX:(y+1)*sizeX])
		}
		return nil
	default:
		return fmt.Errorf("mono: unknown container method %d", method)
	}
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
