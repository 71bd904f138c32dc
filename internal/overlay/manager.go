package overlay

import (
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/logger"
)

// Manager renders widgets in the order they were added.
type Manager struct {
	mu      sync.RWMutex
	widgets []Widget
	enabled bool
}

// NewManager returns an empty, enabled manager.
func NewManager() *Manager {
	return &Manager{enabled: true}
}

// Options selects the stock recording widgets.
type Options struct {
	Timestamp bool
	Badge     bool
	Label     string
	FPS       int
}

// NewRecordingOverlay builds the widgets stamped onto recordings.
func NewRecordingOverlay(opts Options) *Manager {
	m := NewManager()
	if opts.Timestamp {
		m.AddWidget(NewTimestampWidget("timestamp", BottomLeft))
	}
	if opts.Badge {
		m.AddWidget(NewRecBadge("rec", TopRight, opts.FPS))
	}
	if opts.Label != "" {
		m.AddWidget(NewTextWidget(labelID, opts.Label, TopLeft))
	}
	return m
}

// labelID is the widget showing the free-form caption.
const labelID = "label"

// AddWidget appends a widget on top of the existing ones.
func (m *Manager) AddWidget(w Widget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, existing := m.find(w.ID()); existing != nil {
		return fmt.Errorf("widget with ID %s already exists", w.ID())
	}
	m.widgets = append(m.widgets, w)
	logger.WithComponent("overlay").Debug().Str("widget", w.ID()).Msg("Added widget")
	return nil
}

// find returns a widget and its index. The caller holds mu.
func (m *Manager) find(id string) (int, Widget) {
	for i, w := range m.widgets {
		if w.ID() == id {
			return i, w
		}
	}
	return -1, nil
}

// SetEnabled turns the whole overlay on or off.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// SetWidgetEnabled turns one widget on or off.
func (m *Manager) SetWidgetEnabled(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, w := m.find(id)
	if w == nil {
		return fmt.Errorf("widget with ID %s not found", id)
	}
	w.SetEnabled(enabled)
	return nil
}

// SetLabel shows text in the top-left caption, adding the caption widget
// when needed. An empty text removes it.
func (m *Manager) SetLabel(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, w := m.find(labelID)
	switch {
	case text == "" && w != nil:
		m.widgets = append(m.widgets[:i], m.widgets[i+1:]...)
	case text == "":
	case w == nil:
		m.widgets = append(m.widgets, NewTextWidget(labelID, text, TopLeft))
	default:
		if tw, ok := w.(*TextWidget); ok {
			tw.SetText(text)
		}
	}
	logger.WithComponent("overlay").Debug().Str("label", text).Msg("Label changed")
}

// WidgetStatus describes one widget.
type WidgetStatus struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// Status is a snapshot of the overlay settings.
type Status struct {
	Enabled bool           `json:"enabled"`
	Label   string         `json:"label"`
	Widgets []WidgetStatus `json:"widgets"`
}

// Status reports the overlay and widget settings.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{Enabled: m.enabled, Widgets: make([]WidgetStatus, 0, len(m.widgets))}
	for _, w := range m.widgets {
		st.Widgets = append(st.Widgets, WidgetStatus{ID: w.ID(), Enabled: w.Enabled()})
		if tw, ok := w.(*TextWidget); ok && w.ID() == labelID {
			st.Label = tw.text
		}
	}
	return st
}

// Render draws every enabled widget. A failing widget is logged and
// skipped. Widgets are not changed while a render is in progress.
func (m *Manager) Render(img *image.RGBA, f *frame.Frame) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.enabled {
		return
	}

	for _, w := range m.widgets {
		if !w.Enabled() {
			continue
		}
		if err := w.Render(img, f); err != nil {
			logger.WithComponent("overlay").Warn().Err(err).Str("widget", w.ID()).Msg("Failed to render widget")
		}
	}
}
