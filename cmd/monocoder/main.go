package main

import (
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"monopix/mono"
)

const magic = "MONO"

func main() {
	if len(os.Args) != 2 {
		fmt.Fprint(os.Stderr, "Encode: monocoder <input-image>\nDecode: monocoder <input.mono>\n")
		os.Exit(1)
	}

	inputPath := os.Args[1]
	ext := strings.ToLower(filepath.Ext(inputPath))
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))

	if ext == ".mono" {
		if err := decodeToPNG(inputPath, base+".png"); err != nil {
			fmt.Fprintln(os.Stderr, "decode error:", err)
			os.Exit(1)
		}
		fmt.Printf("Decoded %s -> %s\n", inputPath, base+".png")
		return
	}

	outPath := base + ".mono"
	if err := encodeFromImage(inputPath, outPath); err != nil {
		fmt.Fprintln(os.Stderr, "encode error:", err)
		os.Exit(1)
	}
	fmt.Printf("Encoded %s -> %s\n", inputPath, outPath)
}

// encodeFromImage runs each of the four RGBA planes through
// mono.EncodeContainer independently and concatenates the results behind
// a small fixed header. MonoCoder itself operates on one monochrome plane
// at a time; this CLI is the plane-splitting wrapper a full RGBA codec
// would build on top of it.
func encodeFromImage(inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	img, _, err := image.Decode(in)
	if err != nil {
		return err
	}
	bounds := img.Bounds()
	sizeX, sizeY := bounds.Dx(), bounds.Dy()

	planes := extractPlanes(img)

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.WriteString(magic); err != nil {
		return err
	}
	if err := writeUint32(out, uint32(sizeX)); err != nil {
		return err
	}
	if err := writeUint32(out, uint32(sizeY)); err != nil {
		return err
	}

	var totalStats [4]mono.Stats
	for i, plane := range planes {
		container, stats, err := mono.EncodeContainer(mono.Parameters{
			Data:         plane,
			Stride:       sizeX,
			SizeX:        sizeX,
			SizeY:        sizeY,
			NumSyms:      256,
			MinBits:      2,
			MaxBits:      6,
			SympalThresh: 0.95,
			FilterThresh: 0.02,
			AwardCount:   mono.DefaultAwardCount,
			Awards:       mono.DefaultAwards(),
			MaxFilters:   24,
			Knobs:        mono.DefaultKnobs(),
		})
		if err != nil {
			return fmt.Errorf("plane %d: %w", i, err)
		}
		totalStats[i] = stats
		if err := writeUint32(out, uint32(len(container))); err != nil {
			return err
		}
		if _, err := out.Write(container); err != nil {
			return err
		}
	}

	for i, s := range totalStats {
		fmt.Printf("plane %d: method=%d header_bits=%d data_bits=%d zstd_bytes=%d\n",
			i, s.Method, s.HeaderBits, s.DataBits, s.ZstdBytes)
	}
	return nil
}

func decodeToPNG(inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	hdr := make([]byte, len(magic))
	if _, err := io.ReadFull(in, hdr); err != nil {
		return err
	}
	if string(hdr) != magic {
		return fmt.Errorf("not a monocoder container")
	}
	sizeX, err := readUint32(in)
	if err != nil {
		return err
	}
	sizeY, err := readUint32(in)
	if err != nil {
		return err
	}

	planes := make([][]byte, 4)
	for i := range planes {
		n, err := readUint32(in)
		if err != nil {
			return err
		}
		container := make([]byte, n)
		if _, err := io.ReadFull(in, container); err != nil {
			return err
		}
		plane := make([]byte, int(sizeX)*int(sizeY))
		if err := mono.DecodeContainer(container, mono.DecodeParams{
			Data:    plane,
			Stride:  int(sizeX),
			SizeX:   int(sizeX),
			SizeY:   int(sizeY),
			NumSyms: 256,
			MinBits: 2,
			MaxBits: 6,
		}); err != nil {
			return fmt.Errorf("plane %d: %w", i, err)
		}
		planes[i] = plane
	}

	img := image.NewNRGBA(image.Rect(0, 0, int(sizeX), int(sizeY)))
	for y := 0; y < int(sizeY); y++ {
		for x := 0; x < int(sizeX); x++ {
			idx := y*int(sizeX) + x
			off := img.PixOffset(x, y)
			img.Pix[off+0] = planes[0][idx]
			img.Pix[off+1] = planes[1][idx]
			img.Pix[off+2] = planes[2][idx]
			img.Pix[off+3] = planes[3][idx]
		}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, img)
}

// extractPlanes splits img into four independent R/G/B/A byte planes in
// row-major order, the layout mono.Parameters.Data expects.
func extractPlanes(img image.Image) [4][]byte {
	bounds := img.Bounds()
	sizeX, sizeY := bounds.Dx(), bounds.Dy()
	var planes [4][]byte
	for i := range planes {
		planes[i] = make([]byte, sizeX*sizeY)
	}
	for y := 0; y < sizeY; y++ {
		for x := 0; x < sizeX; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := y*sizeX + x
			planes[0][idx] = byte(r >> 8)
			planes[1][idx] = byte(g >> 8)
			planes[2][idx] = byte(b >> 8)
			planes[3][idx] = byte(a >> 8)
		}
	}
	return planes
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
