package gstreamer

import (
	"strings"
	"testing"

	"github.com/bryanchriswhite/fbcam/internal/capture"
)

func TestPipeline(t *testing.T) {
	got := Pipeline(capture.Config{Device: "/dev/video2", Width: 640, Height: 480})
	for _, want := range []string{
		"v4l2src device=/dev/video2",
		"video/x-raw,format=BGR,width=640,height=480",
		"appsink name=sink",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("pipeline %q missing %q", got, want)
		}
	}

	custom := "videotestsrc ! videoconvert ! video/x-raw,format=BGR ! appsink name=sink"
	if got := Pipeline(capture.Config{Pipeline: custom}); got != custom {
		t.Errorf("custom pipeline replaced: %q", got)
	}
}

func TestFromBGRSkipsRowPadding(t *testing.T) {
	// 1 pixel wide rows are 3 bytes, padded to 4.
	data := []byte{1, 2, 3, 0, 4, 5, 6, 0}
	f, err := FromBGR(data, 1, 2)
	if err != nil {
		t.Fatalf("FromBGR: %v", err)
	}
	if want := []byte{1, 2, 3, 4, 5, 6}; string(f.Pix) != string(want) {
		t.Errorf("pix = %v, want %v", f.Pix, want)
	}
}
