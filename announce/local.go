package announce

import (
	"context"
	"sync"

	"github.com/arloliu/rudder/types"
)

// Local keeps the latest announcement per pool in memory.
//
// Unlike NATS, this implementation allows programmatic inspection of the
// published state, making it ideal for unit tests and demos.
type Local struct {
	mu     sync.RWMutex
	latest map[string]Announcement
	closed bool

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewLocal creates a new in-memory announcer.
//
// Returns:
//   - *Local: A new local announcer instance
func NewLocal() *Local {
	return &Local{
		latest: make(map[string]Announcement),
		done:   make(chan struct{}),
	}
}

// Announce consumes an event stream in a background goroutine, retaining
// the latest announcement per pool.
//
// Parameters:
//   - ctx: Context bounding the announcement loop
//   - events: A pool's failover-event stream
func (l *Local) Announce(ctx context.Context, events <-chan types.FailoverEvent) {
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.done:
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				l.store(event)
			}
		}
	}()
}

// Latest returns the latest announcement for a pool.
//
// Parameters:
//   - pool: The pool name
//
// Returns:
//   - Announcement: The latest announcement
//   - bool: false if no event for the pool was seen yet
func (l *Local) Latest(pool string) (Announcement, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.latest[pool]

	return a, ok
}

// Close stops all announcement loops and waits for them to finish.
//
// This method is safe to call multiple times.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.closeOnce.Do(func() { close(l.done) })
	l.wg.Wait()

	return nil
}

// store retains the announcement for the event's pool.
func (l *Local) store(event types.FailoverEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.latest[event.Pool] = fromEvent(event)
}
