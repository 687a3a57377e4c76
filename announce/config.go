package announce

import (
	"time"

	"github.com/arloliu/rudder/types"
)

// Announcement is the JSON payload published per pool.
//
// Operations tooling reads it to answer "is the pool degraded" and "which
// node is primary" without touching the routing path.
type Announcement struct {
	// Pool is the affected pool.
	Pool string `json:"pool"`

	// PassID is the discovery pass that triggered the announcement.
	PassID string `json:"pass_id,omitempty"`

	// OldPrimary is the previously known primary, empty if none.
	OldPrimary string `json:"old_primary,omitempty"`

	// NewPrimary is the currently known primary, empty if none.
	NewPrimary string `json:"new_primary,omitempty"`

	// State is the pool state after the event.
	State string `json:"state"`

	// ObservedAt is when the triggering discovery pass completed.
	ObservedAt time.Time `json:"observed_at"`
}

// fromEvent converts a failover event into its announcement payload.
func fromEvent(event types.FailoverEvent) Announcement {
	return Announcement{
		Pool:       event.Pool,
		PassID:     event.PassID,
		OldPrimary: event.OldPrimary,
		NewPrimary: event.NewPrimary,
		State:      event.NewState.String(),
		ObservedAt: event.ObservedAt,
	}
}

// Config holds configuration for announcers.
type Config struct {
	// KeyPrefix is the KV key prefix; the pool name is appended.
	// Default: "rudder.topology"
	KeyPrefix string

	// PublishTimeout bounds one KV put.
	// Default: 5 seconds
	PublishTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Default configuration
func DefaultConfig() Config {
	return Config{
		KeyPrefix:      "rudder.topology",
		PublishTimeout: 5 * time.Second,
	}
}

// Option configures an announcer.
type Option func(*Config)

// WithKeyPrefix sets the KV key prefix.
//
// Parameters:
//   - prefix: The key prefix (e.g. "proxy.pools")
//
// Returns:
//   - Option: Configuration option
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// WithPublishTimeout bounds the duration of one publish.
//
// Parameters:
//   - d: Maximum duration of one KV put
//
// Returns:
//   - Option: Configuration option
func WithPublishTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.PublishTimeout = d
	}
}
