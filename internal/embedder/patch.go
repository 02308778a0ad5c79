package embedder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/drishti/internal/detector"
)

// ErrEmptyPatch is returned when the face box does not overlap the frame.
var ErrEmptyPatch = errors.New("face box outside frame")

// Pixel normalisation maps 0..255 onto roughly [-1, 1].
const (
	imageMean = 127.5
	imageStd  = 128.0
)

// Patch is a square RGB face crop with channel values scaled to [-1, 1],
// stored row-major with interleaved R, G, B.
type Patch struct {
	Size int
	Data []float32
}

// PreparePatch crops box out of a packed 0xAARRGGBB frame, resizes it to
// size x size and normalises each channel.
func PreparePatch(pixels []uint32, width, height int, box detector.Box, size int) (Patch, error) {
	if size <= 0 {
		return Patch{}, fmt.Errorf("invalid patch size %d", size)
	}
	if width <= 0 || height <= 0 || len(pixels) != width*height {
		return Patch{}, fmt.Errorf("invalid frame %dx%d with %d pixels", width, height, len(pixels))
	}

	box = box.Clamp(width, height)
	if !box.Valid() {
		return Patch{}, ErrEmptyPatch
	}

	// Packed little-endian ARGB is BGRA in memory, which is what OpenCV
	// expects for a 4-channel Mat.
	bw, bh := box.Width(), box.Height()
	crop := make([]byte, bw*bh*4)
	for y := 0; y < bh; y++ {
		row := pixels[(box.Top+y)*width+box.Left : (box.Top+y)*width+box.Right]
		for x, p := range row {
			binary.LittleEndian.PutUint32(crop[(y*bw+x)*4:], p)
		}
	}

	src, err := gocv.NewMatFromBytes(bh, bw, gocv.MatTypeCV8UC4, crop)
	if err != nil {
		return Patch{}, fmt.Errorf("wrap crop: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)

	bgra := dst.ToBytes()
	if len(bgra) != size*size*4 {
		return Patch{}, fmt.Errorf("resize produced %d bytes, expected %d", len(bgra), size*size*4)
	}

	data := make([]float32, size*size*3)
	for i := 0; i < size*size; i++ {
		b, g, r := bgra[i*4], bgra[i*4+1], bgra[i*4+2]
		data[i*3] = (float32(r) - imageMean) / imageStd
		data[i*3+1] = (float32(g) - imageMean) / imageStd
		data[i*3+2] = (float32(b) - imageMean) / imageStd
	}

	return Patch{Size: size, Data: data}, nil
}
