package capture

import (
	"encoding/binary"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Frame is one captured video frame as packed 0xAARRGGBB pixels in
// row-major order.
type Frame struct {
	Width     int
	Height    int
	Pixels    []uint32
	Timestamp int64
}

// NewFrame allocates an opaque black frame.
func NewFrame(width, height int) *Frame {
	f := &Frame{
		Width:     width,
		Height:    height,
		Pixels:    make([]uint32, width*height),
		Timestamp: time.Now().UnixMilli(),
	}
	for i := range f.Pixels {
		f.Pixels[i] = 0xff000000
	}
	return f
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	c.Pixels = make([]uint32, len(f.Pixels))
	copy(c.Pixels, f.Pixels)
	return &c
}

// Fill paints rect with the packed colour p.
func (f *Frame) Fill(rect image.Rectangle, p uint32) {
	rect = rect.Intersect(image.Rect(0, 0, f.Width, f.Height))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := f.Pixels[y*f.Width : (y+1)*f.Width]
		for x := rect.Min.X; x < rect.Max.X; x++ {
			row[x] = p
		}
	}
}

// FrameFromMat converts a BGR, BGRA or grayscale Mat into a Frame.
func FrameFromMat(mat gocv.Mat) (*Frame, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("convert frame: empty mat")
	}

	bgra := gocv.NewMat()
	defer bgra.Close()

	switch mat.Channels() {
	case 1:
		gocv.CvtColor(mat, &bgra, gocv.ColorGrayToBGRA)
	case 3:
		gocv.CvtColor(mat, &bgra, gocv.ColorBGRToBGRA)
	case 4:
		mat.CopyTo(&bgra)
	default:
		return nil, fmt.Errorf("convert frame: unsupported channel count %d", mat.Channels())
	}

	width, height := bgra.Cols(), bgra.Rows()
	data := bgra.ToBytes()
	if len(data) != width*height*4 {
		return nil, fmt.Errorf("convert frame: got %d bytes for %dx%d", len(data), width, height)
	}

	// BGRA bytes read as a little-endian uint32 give 0xAARRGGBB.
	pixels := make([]uint32, width*height)
	for i := range pixels {
		pixels[i] = binary.LittleEndian.Uint32(data[i*4:])
	}

	return &Frame{
		Width:     width,
		Height:    height,
		Pixels:    pixels,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// ToMat returns the frame as a BGR Mat. The caller must close it.
func (f *Frame) ToMat() (gocv.Mat, error) {
	data := make([]byte, len(f.Pixels)*4)
	for i, p := range f.Pixels {
		binary.LittleEndian.PutUint32(data[i*4:], p)
	}

	bgra, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC4, data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("wrap frame: %w", err)
	}
	defer bgra.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(bgra, &bgr, gocv.ColorBGRAToBGR)
	return bgr, nil
}

// EncodeJPEG encodes the frame as a JPEG image.
func (f *Frame) EncodeJPEG() ([]byte, error) {
	mat, err := f.ToMat()
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// ReadImageFile loads an image file from disk as a Frame.
func ReadImageFile(path string) (*Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("read image %s: unsupported or missing", path)
	}
	defer mat.Close()
	return FrameFromMat(mat)
}
