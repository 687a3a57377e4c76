package rudder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrRunnerAlreadyRunning indicates Start was called on a running Runner.
var ErrRunnerAlreadyRunning = errors.New("rudder: runner is already running")

// Runner drives periodic discovery passes for every pool of an Engine.
//
// The engine core treats discovery as a one-shot operation; Runner is the
// packaged scheduler for deployments that do not bring their own. Each pool
// runs on its own ticker using the pool's configured discovery interval,
// falling back to the runner default.
type Runner struct {
	engine   *Engine
	interval time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerInterval sets the default discovery period for pools without
// their own interval.
//
// Parameters:
//   - d: The default period
//
// Returns:
//   - RunnerOption: Configuration option
func WithRunnerInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.interval = d
	}
}

// NewRunner creates a Runner for the given engine.
//
// Default interval: 30 seconds.
//
// Parameters:
//   - engine: The engine whose pools are discovered periodically
//   - opts: Optional configuration options
//
// Returns:
//   - *Runner: A new runner, not yet started
func NewRunner(engine *Engine, opts ...RunnerOption) *Runner {
	r := &Runner{
		engine:   engine,
		interval: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start begins periodic discovery in background goroutines.
//
// An immediate pass runs for every pool before the periodic loop begins,
// so routing has a snapshot as soon after startup as the cluster allows.
//
// Returns:
//   - error: ErrRunnerAlreadyRunning if already started
func (r *Runner) Start() error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunnerAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, pool := range r.engine.Pools() {
		interval, err := r.engine.DiscoveryInterval(pool)
		if err != nil || interval <= 0 {
			interval = r.interval
		}

		r.wg.Add(1)
		go r.loop(ctx, pool, interval)
	}

	return nil
}

// Stop gracefully stops the runner and waits for in-flight passes.
//
// This method is safe to call multiple times.
func (r *Runner) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}

	r.cancel()
	r.wg.Wait()
}

// IsRunning returns whether the runner is currently running.
func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// loop runs the per-pool discovery ticker.
func (r *Runner) loop(ctx context.Context, pool string, interval time.Duration) {
	defer r.wg.Done()

	// Initial pass; failures are already applied to the tracker.
	_ = r.engine.DiscoverOnce(ctx, pool)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.engine.DiscoverOnce(ctx, pool)
		}
	}
}
