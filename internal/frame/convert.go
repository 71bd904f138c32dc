package frame

import (
	"encoding/binary"
	"fmt"
)

// Converter turns a camera-native frame into a device-layout frame.
type Converter func(src *Frame) (*Frame, error)

// ConverterFor returns the converter producing the given device layout.
func ConverterFor(dst Layout) (Converter, error) {
	switch dst {
	case LayoutBGR565:
		return ToBGR565, nil
	case LayoutBGRX8888:
		return ToBGRX8888, nil
	case LayoutBGR24:
		return func(src *Frame) (*Frame, error) {
			if err := checkSource(src); err != nil {
				return nil, err
			}
			return src, nil
		}, nil
	default:
		return nil, fmt.Errorf("no converter for %s", dst)
	}
}

// PackBGR565 packs an 8-bit triple into 5-6-5, red in the high bits.
func PackBGR565(b, g, r uint8) uint16 {
	return uint16(b>>3) | uint16(g>>2)<<5 | uint16(r>>3)<<11
}

// UnpackBGR565 expands a 5-6-5 value back to 8 bits per channel. The low
// bits lost by PackBGR565 come back as zero.
func UnpackBGR565(v uint16) (b, g, r uint8) {
	b = uint8(v&0x1f) << 3
	g = uint8(v>>5&0x3f) << 2
	r = uint8(v>>11&0x1f) << 3
	return b, g, r
}

// ToBGR565 converts a BGR24 frame into the packed 16-bit device layout.
// Width and height are preserved.
func ToBGR565(src *Frame) (*Frame, error) {
	if err := checkSource(src); err != nil {
		return nil, err
	}
	dst := New(src.Width, src.Height, LayoutBGR565)
	dst.Seq, dst.Timestamp = src.Seq, src.Timestamp
	for y := 0; y < src.Height; y++ {
		in := src.Row(y)
		out := dst.Row(y)
		for x, i := 0, 0; x < src.Width; x, i = x+1, i+3 {
			binary.LittleEndian.PutUint16(out[x*2:], PackBGR565(in[i], in[i+1], in[i+2]))
		}
	}
	return dst, nil
}

// ToBGRX8888 converts a BGR24 frame into the packed 32-bit device layout.
func ToBGRX8888(src *Frame) (*Frame, error) {
	if err := checkSource(src); err != nil {
		return nil, err
	}
	dst := New(src.Width, src.Height, LayoutBGRX8888)
	dst.Seq, dst.Timestamp = src.Seq, src.Timestamp
	for y := 0; y < src.Height; y++ {
		in := src.Row(y)
		out := dst.Row(y)
		for x := 0; x < src.Width; x++ {
			copy(out[x*4:x*4+3], in[x*3:x*3+3])
			out[x*4+3] = 0xff
		}
	}
	return dst, nil
}

func checkSource(src *Frame) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if src.Layout != LayoutBGR24 {
		return invalid(src.Width, src.Height, "expected bgr24 source, got "+src.Layout.String())
	}
	return nil
}

// encodePixel writes the 8-bit triple in layout l into p.
func encodePixel(l Layout, p []byte, b, g, r uint8) {
	switch l {
	case LayoutBGR24:
		p[0], p[1], p[2] = b, g, r
	case LayoutBGR565:
		binary.LittleEndian.PutUint16(p, PackBGR565(b, g, r))
	case LayoutBGRX8888:
		p[0], p[1], p[2], p[3] = b, g, r, 0xff
	}
}

// decodePixel reads the pixel at p back as an 8-bit triple.
func decodePixel(l Layout, p []byte) (b, g, r uint8) {
	switch l {
	case LayoutBGR24, LayoutBGRX8888:
		return p[0], p[1], p[2]
	case LayoutBGR565:
		return UnpackBGR565(binary.LittleEndian.Uint16(p))
	}
	return 0, 0, 0
}
