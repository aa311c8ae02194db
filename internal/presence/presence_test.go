package presence

import (
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func TestIsOnline(t *testing.T) {
	e := NewEvaluator(WithClock(func() time.Time { return now }))

	require.True(t, e.IsOnline(ago(10*time.Second)))
	require.False(t, e.IsOnline(ago(20*time.Second)))
	require.False(t, e.IsOnline(nil))
}

func TestIsOnline_Boundary(t *testing.T) {
	e := NewEvaluator(WithClock(func() time.Time { return now }))

	require.True(t, e.IsOnline(ago(DefaultThreshold-time.Nanosecond)))
	require.False(t, e.IsOnline(ago(DefaultThreshold)))
	require.False(t, e.IsOnline(ago(DefaultThreshold)), "boundary verdict must be stable")
}

func TestIsOnline_FutureActivity(t *testing.T) {
	e := NewEvaluator(WithClock(func() time.Time { return now }))

	require.True(t, e.IsOnline(ago(-2*time.Second)))
}

func TestWithThreshold(t *testing.T) {
	e := NewEvaluator(WithClock(func() time.Time { return now }), WithThreshold(time.Minute))
	require.Equal(t, time.Minute, e.Threshold())
	require.True(t, e.IsOnline(ago(30*time.Second)))

	e = NewEvaluator(WithThreshold(-time.Second))
	require.Equal(t, DefaultThreshold, e.Threshold())
}

func TestStatus(t *testing.T) {
	e := NewEvaluator(WithClock(func() time.Time { return now }))

	require.Equal(t, StatusOnline, e.Status(ago(time.Second)))
	require.Equal(t, StatusOffline, e.Status(ago(time.Hour)))
	require.Equal(t, StatusOffline, e.Status(nil))
}

func TestLastSeen(t *testing.T) {
	require.Nil(t, LastSeen(nil))

	ts := time.Date(2024, 5, 1, 15, 30, 0, 250000000, time.FixedZone("MSK", 3*3600))
	require.Equal(t, "2024-05-01T12:30:00.25+00:00", *LastSeen(&ts))
}
