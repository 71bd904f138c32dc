// Package input provides the non-blocking key pollers consulted once per
// display loop iteration.
package input

import "fmt"

// Poller returns at most one pending key press without blocking.
type Poller interface {
	Poll() (key byte, ok bool)
}

// None never reports a key.
type None struct{}

// Poll implements Poller.
func (None) Poll() (byte, bool) { return 0, false }

// Queue is a bounded in-memory key source. Pushes beyond its capacity are
// dropped.
type Queue struct {
	keys chan byte
}

// NewQueue returns a queue holding up to size keys.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{keys: make(chan byte, size)}
}

// Push enqueues key and reports whether it fit.
func (q *Queue) Push(key byte) bool {
	select {
	case q.keys <- key:
		return true
	default:
		return false
	}
}

// Poll implements Poller.
func (q *Queue) Poll() (byte, bool) {
	select {
	case k := <-q.keys:
		return k, true
	default:
		return 0, false
	}
}

// Action is what a key press asks the loop to do.
type Action int

const (
	ActionNone Action = iota
	ActionScreenshot
	ActionToggleRecording
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionScreenshot:
		return "screenshot"
	case ActionToggleRecording:
		return "toggle-recording"
	case ActionQuit:
		return "quit"
	default:
		return "none"
	}
}

// Keymap binds keys to actions.
type Keymap struct {
	Screenshot byte
	Record     byte
	Quit       byte
}

// DefaultKeymap is c, r and q.
var DefaultKeymap = Keymap{Screenshot: 'c', Record: 'r', Quit: 'q'}

// ParseKeymap builds a keymap from single-character strings. Empty
// strings keep the default binding.
func ParseKeymap(screenshot, record, quit string) (Keymap, error) {
	km := DefaultKeymap
	for _, b := range []struct {
		name string
		s    string
		dst  *byte
	}{
		{"screenshot", screenshot, &km.Screenshot},
		{"record", record, &km.Record},
		{"quit", quit, &km.Quit},
	} {
		switch len(b.s) {
		case 0:
		case 1:
			*b.dst = b.s[0]
		default:
			return Keymap{}, fmt.Errorf("%s key %q must be a single character", b.name, b.s)
		}
	}
	if km.Screenshot == km.Record || km.Screenshot == km.Quit || km.Record == km.Quit {
		return Keymap{}, fmt.Errorf("keys must be distinct: %q %q %q", km.Screenshot, km.Record, km.Quit)
	}
	return km, nil
}

// Action maps a key to its action.
func (km Keymap) Action(key byte) Action {
	switch key {
	case km.Screenshot:
		return ActionScreenshot
	case km.Record:
		return ActionToggleRecording
	case km.Quit:
		return ActionQuit
	default:
		return ActionNone
	}
}
