// pkg/crosscat/multiprocess.go
package crosscat

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MultiprocessEngine fans jobs out across a pool of worker goroutines.
type MultiprocessEngine struct {
	streams

	// workers is the pool size used for each batch
	workers int

	logger *zap.Logger
}

// NewMultiprocessEngine creates a parallel engine. cpuCount caps the
// number of workers; zero or negative means one worker per CPU.
// A nil seed picks one from the clock.
func NewMultiprocessEngine(seed *int64, cpuCount int, logger *zap.Logger) *MultiprocessEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cpuCount <= 0 {
		cpuCount = runtime.NumCPU()
	}
	e := &MultiprocessEngine{
		workers: cpuCount,
		logger:  logger.Named("multiprocess-engine"),
	}
	e.seed = ResolveSeed(seed)
	return e
}

// Map runs the jobs on min(Workers(), n) goroutines. Every job runs even
// if others fail; the returned error combines all job errors. Once ctx is
// done no further jobs are started.
func (e *MultiprocessEngine) Map(ctx context.Context, n int, fn Job) error {
	if n <= 0 {
		return nil
	}

	batch := e.next()
	workers := e.workers
	if workers > n {
		workers = n
	}
	e.logger.Debug("map", zap.Uint64("batch", batch), zap.Int("jobs", n), zap.Int("workers", workers))

	jobs := make(chan int)
	errs := make(chan error, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := fn(ctx, i, e.rand(batch, i)); err != nil {
					errs <- err
				}
			}
		}()
	}

	var err error
feed:
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	for jobErr := range errs {
		err = multierr.Append(err, jobErr)
	}
	return err
}

// Workers returns the pool size.
func (e *MultiprocessEngine) Workers() int { return e.workers }

// Seed returns the engine's base seed.
func (e *MultiprocessEngine) Seed() int64 { return e.seed }

// Kind returns KindMultiprocess.
func (e *MultiprocessEngine) Kind() string { return KindMultiprocess }
