// pkg/cli/backend.go
package cli

import (
	"go.uber.org/zap"

	"bayeslite/pkg/crosscat"
)

// BackendKind selects the engine implementation.
type BackendKind int

const (
	// BackendMultiprocess runs models on a pool of workers
	BackendMultiprocess BackendKind = iota

	// BackendLocal runs models one at a time
	BackendLocal
)

func (k BackendKind) String() string {
	if k == BackendLocal {
		return crosscat.KindLocal
	}
	return crosscat.KindMultiprocess
}

// Backend is the engine configuration derived from the command line.
type Backend struct {
	Kind BackendKind

	// Seed is passed to the engine unchanged; nil means unset
	Seed *int64

	// CPUCount caps the multiprocess worker pool; 0 means unset and
	// lets the engine use every CPU
	CPUCount int
}

// SelectBackend maps the -j/--njob value to an engine configuration:
// 1 selects the local engine, anything else the multiprocess engine,
// capped at jobs workers when jobs > 1.
func SelectBackend(jobs int, seed *int64) Backend {
	if jobs == 1 {
		return Backend{Kind: BackendLocal, Seed: seed}
	}
	b := Backend{Kind: BackendMultiprocess, Seed: seed}
	if jobs > 0 {
		b.CPUCount = jobs
	}
	return b
}

// NewEngine constructs the configured engine.
func (b Backend) NewEngine(logger *zap.Logger) crosscat.Engine {
	var e crosscat.Engine
	if b.Kind == BackendLocal {
		e = crosscat.NewLocalEngine(b.Seed, logger)
	} else {
		e = crosscat.NewMultiprocessEngine(b.Seed, b.CPUCount, logger)
	}

	if logger != nil {
		logger.Debug("selected engine",
			zap.Stringer("kind", b.Kind),
			zap.Int("workers", e.Workers()),
			zap.Int64("seed", e.Seed()),
			zap.Bool("seeded", b.Seed != nil))
	}
	return e
}
