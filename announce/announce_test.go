package announce

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/rudder/types"
)

func testEvent(pool, oldPrimary, newPrimary string) types.FailoverEvent {
	return types.FailoverEvent{
		Pool:       pool,
		PassID:     "pass-1",
		OldPrimary: oldPrimary,
		NewPrimary: newPrimary,
		OldState:   types.StateHealthy,
		NewState:   types.StateHealthy,
		ObservedAt: time.Now(),
	}
}

func TestLocalRetainsLatestPerPool(t *testing.T) {
	announcer := NewLocal()
	defer announcer.Close()

	events := make(chan types.FailoverEvent, 4)
	announcer.Announce(context.Background(), events)

	events <- testEvent("p1", "ds-0", "ds-1")
	events <- testEvent("p2", "", "pg-0")
	events <- testEvent("p1", "ds-1", "ds-2")

	require.Eventually(t, func() bool {
		a, ok := announcer.Latest("p1")
		return ok && a.NewPrimary == "ds-2"
	}, time.Second, 5*time.Millisecond, "the later event replaces the earlier one")

	a, ok := announcer.Latest("p2")
	require.True(t, ok)
	assert.Equal(t, "pg-0", a.NewPrimary)
	assert.Equal(t, "healthy", a.State)
	assert.Equal(t, "pass-1", a.PassID)

	_, ok = announcer.Latest("p3")
	assert.False(t, ok)
}

func TestLocalStopsOnChannelClose(t *testing.T) {
	announcer := NewLocal()
	defer announcer.Close()

	events := make(chan types.FailoverEvent, 1)
	announcer.Announce(context.Background(), events)

	events <- testEvent("p1", "ds-0", "ds-1")
	close(events)

	require.Eventually(t, func() bool {
		_, ok := announcer.Latest("p1")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestLocalStopsOnContextCancel(t *testing.T) {
	announcer := NewLocal()
	defer announcer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan types.FailoverEvent)
	announcer.Announce(ctx, events)

	cancel()

	// Close waits for the loop; cancellation must have ended it.
	done := make(chan struct{})
	go func() {
		announcer.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("announcement loop did not stop on context cancel")
	}
}

func TestLocalCloseIsIdempotent(t *testing.T) {
	announcer := NewLocal()
	require.NoError(t, announcer.Close())
	require.NoError(t, announcer.Close())
}

func TestFromEvent(t *testing.T) {
	observed := time.Now()
	event := types.FailoverEvent{
		Pool:       "p1",
		PassID:     "pass-9",
		OldPrimary: "ds-0",
		NewPrimary: "ds-1",
		OldState:   types.StateFailed,
		NewState:   types.StateDegraded,
		ObservedAt: observed,
	}

	a := fromEvent(event)
	assert.Equal(t, "p1", a.Pool)
	assert.Equal(t, "pass-9", a.PassID)
	assert.Equal(t, "ds-0", a.OldPrimary)
	assert.Equal(t, "ds-1", a.NewPrimary)
	assert.Equal(t, "degraded", a.State, "the announcement carries the post-event state")
	assert.Equal(t, observed, a.ObservedAt)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, "rudder.topology", config.KeyPrefix)
	assert.Equal(t, 5*time.Second, config.PublishTimeout)
}

func TestNATSOptions(t *testing.T) {
	config := DefaultConfig()
	WithKeyPrefix("proxy.pools")(&config)
	WithPublishTimeout(time.Second)(&config)

	assert.Equal(t, "proxy.pools", config.KeyPrefix)
	assert.Equal(t, time.Second, config.PublishTimeout)
}

func TestNewNATSNilKV(t *testing.T) {
	_, err := NewNATS(nil)
	assert.Error(t, err)
}
