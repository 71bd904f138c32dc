package pipeline

import (
	"context"
	"fmt"

	"github.com/bryanchriswhite/fbcam/internal/logger"
	"github.com/sourcegraph/conc/pool"
)

// Task is a goroutine that lives as long as the loop, such as the
// screenshot worker or the HTTP server.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Run starts the loop and every task, and waits for all of them. The loop
// ending for any reason stops the tasks; a task failing stops the loop.
// The first error is returned.
func Run(ctx context.Context, loop *Loop, tasks ...Task) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()

	p.Go(func(ctx context.Context) error {
		defer cancel()
		return loop.Run(ctx)
	})

	for _, t := range tasks {
		p.Go(func(ctx context.Context) error {
			log := logger.WithComponent("runner")
			log.Debug().Str("task", t.Name).Msg("Task started")
			if err := t.Run(ctx); err != nil {
				return fmt.Errorf("%s: %w", t.Name, err)
			}
			log.Debug().Str("task", t.Name).Msg("Task finished")
			return nil
		})
	}

	return p.Wait()
}
