// pkg/crosscat/engine.go
//
// Package crosscat provides the execution engines that fit and sample
// column models for the crosscat metamodel.
package crosscat

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// Engine kinds reported by Kind.
const (
	KindLocal        = "local"
	KindMultiprocess = "multiprocess"
)

// Job is one unit of model work. i identifies the job within a Map call
// and rng is a generator private to the job.
type Job func(ctx context.Context, i int, rng *rand.Rand) error

// Engine runs batches of model jobs.
type Engine interface {
	// Map runs fn for every i in [0, n) and returns once all jobs finished
	// or the batch was abandoned.
	Map(ctx context.Context, n int, fn Job) error

	// Workers is the maximum number of jobs that run at once.
	Workers() int

	// Seed is the base seed every job generator is derived from.
	Seed() int64

	// Kind names the engine implementation.
	Kind() string
}

// ResolveSeed returns *seed, or a clock-derived seed when seed is nil.
func ResolveSeed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return time.Now().UnixNano()
}

// streams hands out per-job generators. Job i of the k-th batch gets a PCG
// stream keyed on (seed, k<<32|i), so the sequence of numbers a job sees
// depends only on the seed and the order of batches, never on which
// goroutine ran it.
type streams struct {
	seed  int64
	batch atomic.Uint64
}

func (s *streams) next() uint64 {
	return s.batch.Add(1) - 1
}

func (s *streams) rand(batch uint64, i int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(s.seed), batch<<32|uint64(uint32(i))))
}
