// Package typing keeps the ephemeral "user is typing to user" signals.
//
// A signal is reported live for LiveWindow after it was received and is collected once it is
// older than EvictAfter. Signals are best-effort: they are never persisted and an empty state
// after restart is expected.
package typing

import (
	"context"
	"time"
)

const (
	DefaultLiveWindow = 3 * time.Second
	DefaultEvictAfter = 5 * time.Second
)

// Tracker records typing signals and answers liveness queries
type Tracker interface {
	// Signal records that user is typing to target, refreshing any previous signal of user
	Signal(ctx context.Context, user, target int64) error
	// TypingTo returns the target of a live signal sent by subject
	TypingTo(ctx context.Context, subject int64) (target int64, ok bool, err error)
}

// Config defines fields parsed from environment variables
type Config struct {
	Backend    string        `env:"TYPING_BACKEND" envDefault:"memory"`
	LiveWindow time.Duration `env:"TYPING_LIVE_WINDOW" envDefault:"3s"`
	EvictAfter time.Duration `env:"TYPING_EVICT_AFTER" envDefault:"5s"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// windows returns configured windows falling back to defaults, eviction never precedes liveness
func (c Config) windows() (time.Duration, time.Duration) {
	live, evict := c.LiveWindow, c.EvictAfter
	if live <= 0 {
		live = DefaultLiveWindow
	}
	if evict <= 0 {
		evict = DefaultEvictAfter
	}
	if evict < live {
		evict = live
	}
	return live, evict
}

// IsTypingTo reports whether subject has a live signal addressed to viewer
func IsTypingTo(ctx context.Context, t Tracker, subject, viewer int64) (bool, error) {
	target, ok, err := t.TypingTo(ctx, subject)
	if err != nil {
		return false, err
	}
	return ok && target == viewer, nil
}
