package capture

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/bryanchriswhite/fbcam/internal/frame"
)

// DecodeJPEG turns one MJPEG camera buffer into a BGR24 frame.
func DecodeJPEG(data []byte) (*frame.Frame, error) {
	if len(data) == 0 {
		return nil, ErrNoFrame
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	return frame.FromImage(img)
}

// BGRStride is the row pitch of GStreamer video/x-raw BGR buffers, which
// pad every row to a multiple of four bytes.
func BGRStride(width int) int {
	return (width*3 + 3) &^ 3
}

// DecodeBGR copies a padded video/x-raw BGR buffer into a frame.
func DecodeBGR(data []byte, width, height int) (*frame.Frame, error) {
	if len(data) == 0 || width <= 0 || height <= 0 {
		return nil, ErrNoFrame
	}
	stride := BGRStride(width)
	if len(data) < stride*(height-1)+width*3 {
		return nil, fmt.Errorf("buffer of %d bytes too small for %dx%d BGR", len(data), width, height)
	}

	f := frame.New(width, height, frame.LayoutBGR24)
	for y := 0; y < height; y++ {
		copy(f.Row(y), data[y*stride:y*stride+width*3])
	}
	return f, nil
}

// DecodeYUYV converts packed YUV 4:2:2 (Y0 U Y1 V) to BGR24 using the
// BT.601 integer coefficients.
func DecodeYUYV(data []byte, width, height int) (*frame.Frame, error) {
	if len(data) == 0 {
		return nil, ErrNoFrame
	}
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("yuyv: unsupported size %dx%d", width, height)
	}
	if len(data) < width*height*2 {
		return nil, fmt.Errorf("yuyv: buffer of %d bytes too small for %dx%d", len(data), width, height)
	}

	f := frame.New(width, height, frame.LayoutBGR24)
	for y := 0; y < height; y++ {
		src := data[y*width*2:]
		dst := f.Row(y)
		for x := 0; x < width; x += 2 {
			i := x * 2
			u, v := int(src[i+1])-128, int(src[i+3])-128
			yuvToBGR(dst[x*3:], int(src[i]), u, v)
			yuvToBGR(dst[(x+1)*3:], int(src[i+2]), u, v)
		}
	}
	return f, nil
}

func yuvToBGR(dst []byte, y, u, v int) {
	c := 298 * (y - 16)
	dst[0] = clip((c + 516*u + 128) >> 8)
	dst[1] = clip((c - 100*u - 208*v + 128) >> 8)
	dst[2] = clip((c + 409*v + 128) >> 8)
}

func clip(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
