package x11

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/fbcam/internal/capture"
)

func TestFromBGRXDropsPadByte(t *testing.T) {
	data := []byte{
		1, 2, 3, 0xff, 4, 5, 6, 0xff,
		7, 8, 9, 0xff, 10, 11, 12, 0xff,
	}
	f, err := FromBGRX(data, 2, 2)
	if err != nil {
		t.Fatalf("FromBGRX: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if string(f.Pix) != string(want) {
		t.Errorf("pix = %v, want %v", f.Pix, want)
	}
}

func TestFromBGRXRejectsShortData(t *testing.T) {
	if _, err := FromBGRX(nil, 2, 2); !errors.Is(err, capture.ErrNoFrame) {
		t.Errorf("empty data: got %v", err)
	}
	if _, err := FromBGRX(make([]byte, 4), 2, 2); err == nil {
		t.Error("expected short data to fail")
	}
}

func TestClassifyGrabErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantClosed bool
	}{
		{"protocol error", xproto.MatchError{}, false},
		{"lost connection", io.EOF, true},
		{"reset", errors.New("connection reset by peer"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)
			if got := errors.Is(err, capture.ErrClosed); got != tt.wantClosed {
				t.Errorf("errors.Is(%v, ErrClosed) = %v, want %v", err, got, tt.wantClosed)
			}
		})
	}
}

func TestNextAfterConnectionLost(t *testing.T) {
	dead := make(chan struct{})
	close(dead)
	s := New(capture.Config{FPS: 30})
	s.conn = &xgb.Conn{}
	s.dead = dead

	if _, err := s.Next(context.Background()); !errors.Is(err, capture.ErrClosed) {
		t.Errorf("Next = %v, want ErrClosed", err)
	}
}
