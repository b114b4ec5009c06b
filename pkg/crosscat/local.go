// pkg/crosscat/local.go
package crosscat

import (
	"context"

	"go.uber.org/zap"
)

// LocalEngine runs every job in the calling goroutine, one after another.
type LocalEngine struct {
	streams
	logger *zap.Logger
}

// NewLocalEngine creates a single-process engine. A nil seed picks one
// from the clock.
func NewLocalEngine(seed *int64, logger *zap.Logger) *LocalEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &LocalEngine{logger: logger.Named("local-engine")}
	e.seed = ResolveSeed(seed)
	return e
}

// Map runs the jobs in order and stops at the first error.
func (e *LocalEngine) Map(ctx context.Context, n int, fn Job) error {
	batch := e.next()
	e.logger.Debug("map", zap.Uint64("batch", batch), zap.Int("jobs", n))

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i, e.rand(batch, i)); err != nil {
			return err
		}
	}
	return nil
}

// Workers always returns 1.
func (e *LocalEngine) Workers() int { return 1 }

// Seed returns the engine's base seed.
func (e *LocalEngine) Seed() int64 { return e.seed }

// Kind returns KindLocal.
func (e *LocalEngine) Kind() string { return KindLocal }
