package randomize

import (
	"context"
	"time"
)

// StartInfo describes a run once initialization has finished.
type StartInfo struct {
	N1, N2    int
	CRS       string
	PoolSize  int
	Initial   Scores
	Tolerance float64
	MaxTries  int
}

// Progress is a periodic snapshot of a running search.
type Progress struct {
	Tries    int
	Accepted int
	Refills  int
	// PoolRemaining is the number of unused candidates before the next refill.
	PoolRemaining int
	Scores        Scores
	Best          Scores
	Temperature   float64
	Elapsed       time.Duration
}

// Observer receives events from a single run. Calls happen on the goroutine
// running the engine; implementations must not block.
type Observer interface {
	OnStart(ctx context.Context, info StartInfo)
	OnProgress(ctx context.Context, p Progress)
	OnFinish(ctx context.Context, res *Result, err error)
}

// NoopObserver ignores every event.
type NoopObserver struct{}

func (NoopObserver) OnStart(context.Context, StartInfo)       {}
func (NoopObserver) OnProgress(context.Context, Progress)     {}
func (NoopObserver) OnFinish(context.Context, *Result, error) {}

// ProgressFunc adapts a function to an Observer that only sees progress.
type ProgressFunc func(p Progress)

func (ProgressFunc) OnStart(context.Context, StartInfo)         {}
func (f ProgressFunc) OnProgress(_ context.Context, p Progress) { f(p) }
func (ProgressFunc) OnFinish(context.Context, *Result, error)   {}
