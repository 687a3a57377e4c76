package announce

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/rudder/types"
)

// NATS publishes pool topology announcements into a NATS JetStream KV
// bucket, one key per pool under the configured prefix.
//
// Operations teams watch the bucket to observe failovers without touching
// the proxy's routing path. Announce may be called once per pool event
// stream; streams from different pools may share one announcer.
type NATS struct {
	kv     jetstream.KeyValue
	config Config

	mu     sync.Mutex
	closed bool

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewNATS creates a new NATS KV announcer.
//
// Parameters:
//   - kv: A NATS JetStream KeyValue store
//   - opts: Optional configuration options
//
// Returns:
//   - *NATS: A new announcer instance
//   - error: Error if kv is nil
//
// Example:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "rudder-topology")
//
//	announcer, _ := announce.NewNATS(kv,
//	    announce.WithKeyPrefix("proxy.pools"),
//	)
//	events, _ := engine.Events("p1")
//	announcer.Announce(ctx, events)
func NewNATS(kv jetstream.KeyValue, opts ...Option) (*NATS, error) {
	if kv == nil {
		return nil, errors.New("rudder/announce: KeyValue store is nil")
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &NATS{
		kv:     kv,
		config: config,
		done:   make(chan struct{}),
	}, nil
}

// Announce consumes an event stream in a background goroutine and publishes
// one announcement per event.
//
// The goroutine exits when the stream closes, the context is cancelled, or
// the announcer is closed. Publish failures are skipped; the next event
// overwrites the key anyway.
//
// Parameters:
//   - ctx: Context bounding the announcement loop
//   - events: A pool's failover-event stream
func (n *NATS) Announce(ctx context.Context, events <-chan types.FailoverEvent) {
	n.wg.Add(1)

	go func() {
		defer n.wg.Done()

		for {
			select {
			case <-ctx.Done():
				return
			case <-n.done:
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				n.publish(ctx, event)
			}
		}
	}()
}

// Config returns the announcer configuration.
//
// This method is primarily useful for testing to verify configuration
// options.
//
// Returns:
//   - Config: The current announcer configuration
func (n *NATS) Config() Config {
	return n.config
}

// Close stops all announcement loops and waits for them to finish.
//
// This method is safe to call multiple times.
func (n *NATS) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	n.closeOnce.Do(func() { close(n.done) })
	n.wg.Wait()

	return nil
}

// publish puts one announcement into the KV bucket.
func (n *NATS) publish(ctx context.Context, event types.FailoverEvent) {
	payload, err := json.Marshal(fromEvent(event))
	if err != nil {
		return
	}

	putCtx, cancel := context.WithTimeout(ctx, n.config.PublishTimeout)
	defer cancel()

	// Best effort: a failed put is superseded by the next event.
	_, _ = n.kv.Put(putCtx, n.config.KeyPrefix+"."+event.Pool, payload)
}
