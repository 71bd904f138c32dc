package capture

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bryanchriswhite/fbcam/internal/logger"
)

// Factory builds an unstarted source for a backend.
type Factory func(cfg Config) (Source, error)

// BackendAuto tries every preferred backend in turn.
const BackendAuto = "auto"

var (
	mu       sync.RWMutex
	backends = map[string]Factory{}

	// autoOrder is the preference list for BackendAuto.
	autoOrder = []string{"v4l2", "gstreamer", "gstlaunch", "x11", "testpattern"}
)

// Register makes a backend available by name. Backends call it from init.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := backends[name]; dup {
		panic("capture: backend registered twice: " + name)
	}
	backends[name] = f
}

// Backends lists the registered backend names.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := backends[name]
	return f, ok
}

// Open builds and starts the configured backend. With BackendAuto the
// first backend that starts wins; failures are logged and skipped.
func Open(ctx context.Context, cfg Config) (Source, error) {
	log := logger.WithComponent("capture-router")

	if cfg.Backend != BackendAuto && cfg.Backend != "" {
		f, ok := lookup(cfg.Backend)
		if !ok {
			return nil, fmt.Errorf("unknown capture backend %q (available: %v)", cfg.Backend, Backends())
		}
		return start(ctx, f, cfg)
	}

	for _, name := range autoOrder {
		f, ok := lookup(name)
		if !ok {
			continue
		}
		src, err := start(ctx, f, cfg)
		if err != nil {
			log.Warn().Err(err).Str("backend", name).Msg("Capture backend not available")
			continue
		}
		log.Info().Str("backend", src.Name()).Msg("Capture backend selected")
		return src, nil
	}
	return nil, fmt.Errorf("no capture backends available")
}

func start(ctx context.Context, f Factory, cfg Config) (Source, error) {
	src, err := f(cfg)
	if err != nil {
		return nil, err
	}
	if err := src.Start(ctx); err != nil {
		src.Stop()
		return nil, fmt.Errorf("start %s: %w", src.Name(), err)
	}
	return src, nil
}
