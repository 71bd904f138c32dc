package input

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/logger"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Keyboard reads single key presses from a terminal. Canonical mode and
// echo are switched off while it runs; output processing is left alone
// so log lines still end up on their own rows.
type Keyboard struct {
	fd    int
	keys  chan byte
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
	saved *term.State
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// OpenKeyboard starts reading keys from f, which must be a terminal.
func OpenKeyboard(f *os.File) (*Keyboard, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%s is not a terminal", f.Name())
	}

	saved, err := term.GetState(fd)
	if err != nil {
		return nil, fmt.Errorf("get terminal state: %w", err)
	}

	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("get termios: %w", err)
	}
	tio.Lflag &^= unix.ICANON | unix.ECHO
	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		return nil, fmt.Errorf("set termios: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = term.Restore(fd, saved)
		return nil, fmt.Errorf("set nonblocking: %w", err)
	}

	k := &Keyboard{
		fd:    fd,
		keys:  make(chan byte, 16),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		saved: saved,
	}
	go k.read()

	logger.WithComponent("input").Debug().Str("tty", f.Name()).Msg("Keyboard input enabled")
	return k, nil
}

func (k *Keyboard) read() {
	defer close(k.done)
	buf := make([]byte, 1)

	for {
		select {
		case <-k.stop:
			return
		default:
		}

		n, err := unix.Read(k.fd, buf)
		if n > 0 {
			select {
			case k.keys <- buf[0]:
			default:
			}
			continue
		}
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) || (err == nil && n == 0) {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err != nil {
			logger.WithComponent("input").Warn().Err(err).Msg("Keyboard read failed, input disabled")
			return
		}
	}
}

// Poll implements Poller.
func (k *Keyboard) Poll() (byte, bool) {
	select {
	case b := <-k.keys:
		return b, true
	default:
		return 0, false
	}
}

// Close stops reading and restores the terminal.
func (k *Keyboard) Close() error {
	k.once.Do(func() { close(k.stop) })
	<-k.done
	_ = unix.SetNonblock(k.fd, false)
	return term.Restore(k.fd, k.saved)
}
