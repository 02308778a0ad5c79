package yuv

// Luma returns the BT.601 studio-swing Y value for an RGB triple.
func Luma(r, g, b uint8) uint8 {
	R, G, B := int(r), int(g), int(b)
	return clamp(((66*R + 129*G + 25*B + 128) >> 8) + 16)
}

// Chroma returns the BT.601 studio-swing U and V values for an RGB triple.
func Chroma(r, g, b uint8) (u, v uint8) {
	R, G, B := int(r), int(g), int(b)
	u = clamp(((-38*R - 74*G + 112*B + 128) >> 8) + 128)
	v = clamp(((112*R - 94*G - 18*B + 128) >> 8) + 128)
	return u, v
}

func clamp(x int) uint8 {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}

// encodeNV21 writes luma for every pixel, then V,U pairs sampled at even
// rows and columns. dst must hold PlanarSize(width, height) bytes.
func encodeNV21(dst []byte, packed []uint32, width, height int) {
	yIndex := 0
	uvIndex := width * height

	for j := 0; j < height; j++ {
		row := packed[j*width : (j+1)*width]
		for i, p := range row {
			r, g, b := Unpack(p)
			dst[yIndex] = Luma(r, g, b)
			yIndex++

			if j%2 == 0 && i%2 == 0 && uvIndex+1 < len(dst) {
				u, v := Chroma(r, g, b)
				dst[uvIndex] = v
				dst[uvIndex+1] = u
				uvIndex += 2
			}
		}
	}
}
