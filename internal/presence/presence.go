// Package presence derives online/offline state from the last activity timestamp of a user.
//
// Presence is not stored. A user is online while their last activity is younger than the
// threshold, so clients have to touch activity well within it (every few seconds) to be
// reported as continuously online.
package presence

import "time"

// DefaultThreshold is the staleness window after which a user is reported offline
const DefaultThreshold = 15 * time.Second

// lastSeenLayout is ISO-8601 with an explicit numeric offset, "+00:00" for UTC
const lastSeenLayout = "2006-01-02T15:04:05.999999-07:00"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Evaluator computes presence against a clock
type Evaluator struct {
	threshold time.Duration
	now       func() time.Time
}

// Option configures Evaluator
type Option func(*Evaluator)

// WithThreshold overrides DefaultThreshold, non-positive values are ignored
func WithThreshold(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.threshold = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		threshold: DefaultThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the configured staleness window
func (e *Evaluator) Threshold() time.Duration {
	return e.threshold
}

// IsOnline reports whether lastActivity is set and younger than the threshold.
// Activity exactly threshold old is offline.
func (e *Evaluator) IsOnline(lastActivity *time.Time) bool {
	if lastActivity == nil {
		return false
	}
	return e.now().Sub(*lastActivity) < e.threshold
}

// Status returns StatusOnline or StatusOffline
func (e *Evaluator) Status(lastActivity *time.Time) string {
	if e.IsOnline(lastActivity) {
		return StatusOnline
	}
	return StatusOffline
}

// LastSeen formats lastActivity in UTC for "last seen" labels, nil stays nil
func LastSeen(lastActivity *time.Time) *string {
	if lastActivity == nil {
		return nil
	}
	s := lastActivity.UTC().Format(lastSeenLayout)
	return &s
}
