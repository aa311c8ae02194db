package zapadapter

import (
	"context"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"testing"
)

func TestContextIDs(t *testing.T) {
	ctx := NewContextWithUserID(NewContextWithID(context.Background(), "abc"), 42)

	id, ok := IDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "abc", id)

	uid, ok := UserIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, int64(42), uid)

	_, ok = IDFromContext(context.Background())
	require.False(t, ok)
}

func TestLog_TagsRequest(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLogger(zap.New(core))

	ctx := NewContextWithUserID(NewContextWithID(context.Background(), "req-1"), 7)
	l.Log(ctx, pgx.LogLevelInfo, "Query", map[string]interface{}{"sql": "select 1"})
	l.Log(context.Background(), pgx.LogLevelError, "Query", nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	require.Equal(t, "req-1", fields["request_id"])
	require.Equal(t, int64(7), fields["user_id"])
	require.Equal(t, "select 1", fields["sql"])

	require.Equal(t, zap.ErrorLevel, entries[1].Level)
	require.NotContains(t, entries[1].ContextMap(), "request_id")
}
