package push

import (
	"auxchat/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type directory map[int64]storage.User

func (d directory) UserByID(_ context.Context, id int64) (storage.User, error) {
	u, ok := d[id]
	if !ok {
		return storage.User{}, storage.ErrUserNotExist
	}
	return u, nil
}

type recordingGateway struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (g *recordingGateway) Send(_ context.Context, n Notification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, n)
	return nil
}

func (g *recordingGateway) Close() error { return nil }

func strPtr(s string) *string { return &s }

func TestSummary(t *testing.T) {
	require.Equal(t, "hi", Summary(storage.Message{Text: "hi"}))
	require.Equal(t, imageSummary, Summary(storage.Message{Text: "caption", ImageURL: strPtr("u")}))
	require.Equal(t, voiceSummary, Summary(storage.Message{VoiceURL: strPtr("u")}))

	exact := strings.Repeat("a", 50)
	require.Equal(t, exact, Summary(storage.Message{Text: exact}))

	long := strings.Repeat("я", 51)
	require.Equal(t, strings.Repeat("я", 50)+"...", Summary(storage.Message{Text: long}))
}

func TestBuild(t *testing.T) {
	n := Build("tok", "alice", storage.Message{SenderID: 7, Text: "hello"})
	require.Equal(t, "tok", n.Token)
	require.Equal(t, "💬 alice", n.Title)
	require.Equal(t, "hello", n.Body)
	require.Equal(t, map[string]string{"chatUrl": "/chat/7", "senderId": "7"}, n.Data)

	n = Build("tok", "", storage.Message{SenderID: 7})
	require.Equal(t, "💬 User", n.Title)
}

func TestDeliver_NoToken(t *testing.T) {
	gw := &recordingGateway{}
	d := NewDispatcher(zap.NewNop().Sugar(), directory{2: {ID: 2}}, gw, 0)

	outcome, err := d.Deliver(context.Background(), storage.Message{ID: 1001, SenderID: 1, ReceiverID: 2, Text: "hi"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
	require.Empty(t, gw.sent)
}

func TestDeliver_Sent(t *testing.T) {
	gw := &recordingGateway{}
	users := directory{
		1: {ID: 1, Username: "alice"},
		2: {ID: 2, PushToken: strPtr("device")},
	}
	d := NewDispatcher(zap.NewNop().Sugar(), users, gw, time.Second)

	outcome, err := d.Deliver(context.Background(), storage.Message{ID: 1, SenderID: 1, ReceiverID: 2, Text: "hi"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, outcome)
	require.Len(t, gw.sent, 1)
	require.Equal(t, "device", gw.sent[0].Token)
	require.Equal(t, "💬 alice", gw.sent[0].Title)
}

func TestDeliver_GatewayError(t *testing.T) {
	gw := &recordingGateway{err: errors.New("unavailable")}
	users := directory{2: {ID: 2, PushToken: strPtr("device")}}
	d := NewDispatcher(zap.NewNop().Sugar(), users, gw, time.Second)

	m := storage.Message{ID: 1, SenderID: 1, ReceiverID: 2, Text: "hi", Sender: storage.Sender{Username: "alice"}}
	outcome, err := d.Deliver(context.Background(), m)
	require.Error(t, err)
	require.Equal(t, OutcomeFailed, outcome)
}

func TestDispatch_SwallowsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	gw := &recordingGateway{err: errors.New("unavailable")}
	users := directory{2: {ID: 2, PushToken: strPtr("device")}}
	d := NewDispatcher(zap.New(core).Sugar(), users, gw, time.Second)

	d.Dispatch(storage.Message{ID: 5, SenderID: 1, ReceiverID: 2, Text: "hi", Sender: storage.Sender{Username: "a"}})
	d.Wait()

	require.Equal(t, 1, logs.FilterMessage("Push notification failed").Len())
}

func TestHTTPGateway(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, srv.Client())
	n := Build("tok", "alice", storage.Message{SenderID: 3, Text: "yo"})
	require.NoError(t, gw.Send(context.Background(), n))
	require.Equal(t, n, got)
	require.NoError(t, gw.Close())
}

func TestHTTPGateway_NonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewHTTPGateway(srv.URL, srv.Client()).Send(context.Background(), Notification{Token: "t"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestHTTPGateway_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := NewHTTPGateway(srv.URL, srv.Client()).Send(ctx, Notification{Token: "t"})
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestNewGateway(t *testing.T) {
	gw, err := NewGateway(Config{Transport: "http", GatewayURL: "http://localhost:1", Timeout: time.Second})
	require.NoError(t, err)
	require.IsType(t, &HTTPGateway{}, gw)

	_, err = NewGateway(Config{Transport: "http"})
	require.Error(t, err)

	gw, err = NewGateway(Config{Transport: "kafka", KafkaBrokers: "a:9092,b:9092", Topic: "t"})
	require.NoError(t, err)
	require.IsType(t, &KafkaGateway{}, gw)
	require.NoError(t, gw.Close())

	gw, err = NewGateway(Config{Transport: "none"})
	require.NoError(t, err)
	require.IsType(t, Discard{}, gw)

	_, err = NewGateway(Config{Transport: "pigeon"})
	require.Error(t, err)
}
