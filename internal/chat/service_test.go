package chat

import (
	"auxchat/internal/presence"
	"auxchat/internal/push"
	"auxchat/internal/storage"
	mytesting "auxchat/internal/testing"
	"auxchat/internal/typing"
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"sync"
	"testing"
	"time"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []storage.Message
}

func (n *recordingNotifier) Dispatch(m storage.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type fixture struct {
	svc      *Service
	store    *mytesting.MemStore
	clock    *mytesting.Clock
	notifier *recordingNotifier
}

func newFixture(t *testing.T, users ...int64) fixture {
	t.Helper()

	clock := mytesting.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	store := mytesting.NewMemStore(1000, clock.Now)
	for _, id := range users {
		store.AddUser(storage.User{ID: id, Username: "user" + mytesting.RandString(4)})
	}

	notifier := &recordingNotifier{}
	tracker := typing.NewMemoryTracker(typing.Config{}, typing.WithClock(clock.Now))
	evaluator := presence.NewEvaluator(presence.WithClock(clock.Now))

	svc := NewService(zap.NewNop().Sugar(), store, tracker, notifier, evaluator, Config{})

	return fixture{svc: svc, store: store, clock: clock, notifier: notifier}
}

func TestSendThenFetch(t *testing.T) {
	f := newFixture(t, 1, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.SendMessage(ctx, 1, SendRequest{Receiver: 2, Text: mytesting.RandString()})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	m, err := f.svc.SendMessage(ctx, 2, SendRequest{Receiver: 1, Text: "  reply  "})
	require.NoError(t, err)
	require.Equal(t, "reply", m.Text)
	require.Equal(t, 4, f.notifier.count())

	messages, err := f.svc.Conversation(ctx, 1, 2, 0)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	require.Equal(t, m.ID, messages[len(messages)-1].ID)

	for i := 1; i < len(messages); i++ {
		require.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}
}

func TestBlockBothDirections(t *testing.T) {
	f := newFixture(t, 1, 2)
	ctx := context.Background()

	require.NoError(t, f.svc.Block(ctx, 1, 2))

	_, err := f.svc.SendMessage(ctx, 1, SendRequest{Receiver: 2, Text: "hi"})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.SendMessage(ctx, 2, SendRequest{Receiver: 1, Text: "hi"})
	require.ErrorIs(t, err, ErrForbidden)

	require.Zero(t, f.store.MessageCount())
	require.Zero(t, f.notifier.count())

	require.NoError(t, f.svc.Unblock(ctx, 1, 2))
	_, err = f.svc.SendMessage(ctx, 2, SendRequest{Receiver: 1, Text: "hi"})
	require.NoError(t, err)
}

func TestUnblockKeepsOtherSide(t *testing.T) {
	f := newFixture(t, 1, 2)
	ctx := context.Background()

	require.NoError(t, f.svc.Block(ctx, 1, 2))
	require.NoError(t, f.svc.Block(ctx, 2, 1))
	require.NoError(t, f.svc.Unblock(ctx, 1, 2))

	_, err := f.svc.SendMessage(ctx, 1, SendRequest{Receiver: 2, Text: "hi"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestBlockSelf(t *testing.T) {
	f := newFixture(t, 1)

	err := f.svc.Block(context.Background(), 1, 1)
	require.ErrorIs(t, err, ErrValidation)
}

func TestDeleteMessage(t *testing.T) {
	f := newFixture(t, 1, 2)
	ctx := context.Background()

	first, err := f.svc.SendMessage(ctx, 1, SendRequest{Receiver: 2, Text: "first"})
	require.NoError(t, err)
	second, err := f.svc.SendMessage(ctx, 1, SendRequest{Receiver: 2, Text: "second"})
	require.NoError(t, err)

	err = f.svc.DeleteMessage(ctx, 2, second.ID)
	require.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.DeleteMessage(ctx, 1, first.ID))

	err = f.svc.DeleteMessage(ctx, 1, first.ID)
	require.ErrorIs(t, err, ErrNotFound)

	messages, err := f.svc.Conversation(ctx, 2, 1, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, second.ID, messages[0].ID)
}

func TestReadFlags(t *testing.T) {
	f := newFixture(t, 1, 2)
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, 1, SendRequest{Receiver: 2, Text: "a1"})
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, 2, SendRequest{Receiver: 1, Text: "b1"})
	require.NoError(t, err)

	messages, err := f.svc.Conversation(ctx, 2, 1, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	for _, m := range messages {
		require.Equal(t, m.ReceiverID == 2, m.IsRead, "message %d", m.ID)
	}
}

func TestConversationLimit(t *testing.T) {
	f := newFixture(t, 1, 2)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		m, err := f.svc.SendMessage(ctx, 1, SendRequest{Receiver: 2, Text: mytesting.RandString()})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	messages, err := f.svc.Conversation(ctx, 2, 1, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, ids[3], messages[0].ID)
	require.Equal(t, ids[4], messages[1].ID)

	_, err = f.svc.Conversation(ctx, 2, 1, -1)
	require.ErrorIs(t, err, ErrValidation)
}

func TestEndToEnd(t *testing.T) {
	clock := mytesting.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	store := mytesting.NewMemStore(1000, clock.Now)
	store.AddUser(storage.User{ID: 1, Username: "alice"})
	store.AddUser(storage.User{ID: 2, Username: "bob"})

	dispatcher := push.NewDispatcher(zap.NewNop().Sugar(), store, push.Discard{}, 0)
	svc := NewService(zap.NewNop().Sugar(), store, typing.NewMemoryTracker(typing.Config{}), dispatcher,
		presence.NewEvaluator(presence.WithClock(clock.Now)), Config{})
	ctx := context.Background()

	m, err := svc.SendMessage(ctx, 1, SendRequest{Receiver: 2, Text: "hi"})
	require.NoError(t, err)
	require.Equal(t, int64(1001), m.ID)

	messages, err := svc.Conversation(ctx, 2, 1, 100)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, int64(1001), messages[0].ID)
	require.Equal(t, int64(1), messages[0].SenderID)
	require.Equal(t, "hi", messages[0].Text)
	require.True(t, messages[0].IsRead)

	outcome, err := dispatcher.Deliver(ctx, m)
	require.NoError(t, err)
	require.Equal(t, push.OutcomeSkipped, outcome)
	dispatcher.Wait()
}

func TestTouchActivity(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	first, err := f.svc.TouchActivity(ctx, 1)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	second, err := f.svc.TouchActivity(ctx, 1)
	require.NoError(t, err)
	require.True(t, second.After(first))

	_, err = f.svc.TouchActivity(ctx, 5)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTyping(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	ctx := context.Background()

	require.NoError(t, f.svc.SetTyping(ctx, 1, 2))

	status, err := f.svc.Typing(ctx, 2, 1)
	require.NoError(t, err)
	require.True(t, status.IsTyping)
	require.Equal(t, int64(2), *status.TypingTo)

	status, err = f.svc.Typing(ctx, 3, 1)
	require.NoError(t, err)
	require.False(t, status.IsTyping)
	require.Nil(t, status.TypingTo)

	f.clock.Advance(4 * time.Second)
	status, err = f.svc.Typing(ctx, 2, 1)
	require.NoError(t, err)
	require.False(t, status.IsTyping)
}

func TestProfilePresence(t *testing.T) {
	f := newFixture(t, 1)
	f.store.AddUser(storage.User{ID: 2, Username: "bob\x00", CustomStatus: "busy\x07"})
	ctx := context.Background()

	p, err := f.svc.Profile(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, presence.StatusOffline, p.Status)
	require.Nil(t, p.LastSeen)
	require.Equal(t, "bob", p.Username)
	require.Equal(t, "busy", p.CustomStatus)
	require.False(t, p.IsBlocked)

	_, err = f.svc.TouchActivity(ctx, 2)
	require.NoError(t, err)
	f.clock.Advance(14 * time.Second)

	p, err = f.svc.Profile(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, presence.StatusOnline, p.Status)
	require.NotNil(t, p.LastSeen)

	f.clock.Advance(time.Second)
	p, err = f.svc.Profile(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, presence.StatusOffline, p.Status)

	require.NoError(t, f.svc.Block(ctx, 2, 1))
	p, err = f.svc.Profile(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, p.IsBlocked)

	_, err = f.svc.Profile(ctx, 1, 9)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.UpdateProfile(ctx, 1, ProfileUpdate{})
	require.ErrorIs(t, err, ErrValidation)

	blank := "   "
	_, err = f.svc.UpdateProfile(ctx, 1, ProfileUpdate{Username: &blank})
	require.ErrorIs(t, err, ErrValidation)

	name, status := " carol ", "away"
	p, err := f.svc.UpdateProfile(ctx, 1, ProfileUpdate{Username: &name, CustomStatus: &status})
	require.NoError(t, err)
	require.Equal(t, "carol", p.Username)
	require.Equal(t, "away", p.CustomStatus)
	require.Equal(t, presence.StatusOnline, p.Status)
}

func TestSetPushToken(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	token := "device-token"
	require.NoError(t, f.svc.SetPushToken(ctx, 1, &token))
	u, err := f.store.UserByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, token, *u.PushToken)

	blank := " "
	require.NoError(t, f.svc.SetPushToken(ctx, 1, &blank))
	u, err = f.store.UserByID(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, u.PushToken)
}

func TestValidationAndAuth(t *testing.T) {
	f := newFixture(t, 1, 2)
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, 0, SendRequest{Receiver: 2, Text: "hi"})
	require.ErrorIs(t, err, ErrAuth)
	_, err = f.svc.Conversation(ctx, 0, 2, 0)
	require.ErrorIs(t, err, ErrAuth)
	require.ErrorIs(t, f.svc.SetTyping(ctx, -1, 2), ErrAuth)

	_, err = f.svc.SendMessage(ctx, 1, SendRequest{Receiver: 2, Text: "   "})
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.SendMessage(ctx, 1, SendRequest{Text: "hi"})
	require.ErrorIs(t, err, ErrValidation)

	negative := int32(-1)
	_, err = f.svc.SendMessage(ctx, 1, SendRequest{Receiver: 2, VoiceURL: "v.ogg", VoiceDuration: &negative})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.SendMessage(ctx, 1, SendRequest{Receiver: 9, Text: "hi"})
	require.ErrorIs(t, err, ErrNotFound)

	require.Zero(t, f.store.MessageCount())
}

func TestDependencyFailure(t *testing.T) {
	f := newFixture(t, 1, 2)
	f.store.Fail = errors.New("connection refused")

	_, err := f.svc.SendMessage(context.Background(), 1, SendRequest{Receiver: 2, Text: "hi"})
	require.ErrorIs(t, err, ErrDependency)
	require.ErrorIs(t, err, f.store.Fail)
	require.Zero(t, f.notifier.count())

	f.store.Fail = context.Canceled
	_, err = f.svc.Conversation(context.Background(), 1, 2, 0)
	require.ErrorIs(t, err, ErrDependency)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFromStorageKeepsCause(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgerrcode.SerializationFailure}
	err := fromStorage("send", fmt.Errorf("tx: %w", pgErr))
	require.ErrorIs(t, err, ErrDependency)

	var target *pgconn.PgError
	require.ErrorAs(t, err, &target)
	require.Equal(t, pgerrcode.SerializationFailure, target.Code)

	err = fromStorage("send", storage.ErrBlocked)
	require.ErrorIs(t, err, ErrForbidden)
	require.NotErrorIs(t, err, ErrDependency)
}

func TestHistoryLimit(t *testing.T) {
	cfg := Config{}
	require.Equal(t, DefaultHistoryLimit, cfg.historyLimit(0))
	require.Equal(t, 7, cfg.historyLimit(7))
	require.Equal(t, MaxHistoryLimit, cfg.historyLimit(10_000))

	cfg = Config{DefaultHistoryLimit: 20, MaxHistoryLimit: 50}
	require.Equal(t, 20, cfg.historyLimit(0))
	require.Equal(t, 50, cfg.historyLimit(60))
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "a\tb\nc", sanitize("a\tb\nc\x1b"))
	require.Equal(t, "привет", sanitize("привет\x7f"))
}

func TestConversationIsolation(t *testing.T) {
	f := newFixture(t, 1, 2, 3, 4)
	ctx := context.Background()

	sent := make(map[int64][]int64)
	for _, pair := range mytesting.Pairs([]int64{1, 2, 3, 4}) {
		for i := 0; i < 3; i++ {
			m, err := f.svc.SendMessage(ctx, pair[1], SendRequest{Receiver: pair[0], Text: mytesting.RandString()})
			require.NoError(t, err)
			sent[pair[1]] = append(sent[pair[1]], m.ID)
			f.clock.Advance(time.Millisecond)
		}
	}

	for other, ids := range sent {
		messages, err := f.svc.Conversation(ctx, 1, other, 0)
		require.NoError(t, err)

		newestFirst := make([]int64, 0, len(messages))
		for i := len(messages) - 1; i >= 0; i-- {
			require.Equal(t, other, messages[i].SenderID)
			require.True(t, messages[i].IsRead)
			newestFirst = append(newestFirst, messages[i].ID)
		}
		require.Equal(t, mytesting.ReverseIDs(ids), newestFirst)
	}
}
