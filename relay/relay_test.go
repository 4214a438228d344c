/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDiscriminatesKinds(t *testing.T) {
	m, err := Decode([]byte(`{"kind":"state","state":{"version":1}}`))
	require.NoError(t, err)
	assert.Equal(t, KindState, m.Kind)
	assert.False(t, m.IsControl())
	assert.JSONEq(t, `{"version":1}`, string(m.State))

	m, err = Decode([]byte(`{"kind":"display-opened","state":{"version":1}}`))
	require.NoError(t, err)
	assert.True(t, m.IsControl())
	assert.Nil(t, m.State, "control messages never carry state")

	_, err = Decode([]byte(`{"kind":"state"}`))
	assert.ErrorIs(t, err, ErrNoPayload)

	_, err = Decode([]byte(`{"version":1,"scene":"lobby"}`))
	assert.ErrorIs(t, err, ErrUnknownKind, "bare states are not sniffed")

	_, err = Decode([]byte(`{"kind":"resize"}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

type recorder struct {
	mu   sync.Mutex
	got  []Message
	fail error
}

func (r *recorder) Publish(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, m)
	return r.fail
}

func TestFanoutReachesEveryBroadcaster(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recorder{fail: boom}, &recorder{}

	err := Fanout{a, b}.Publish(context.Background(), StateMessage([]byte(`{}`)))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(r.Context(), conn, RoleDisplay, []byte(`{"kind":"state","state":{"greeting":true}}`),
			func(frame []byte) []byte {
				return append([]byte("echo:"), frame...)
			})
	}))

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func read(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestHubGreetsThenBroadcastsInOrder(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv)

	assert.JSONEq(t, `{"kind":"state","state":{"greeting":true}}`, read(t, conn))

	ctx := context.Background()
	for _, body := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		require.NoError(t, hub.Publish(ctx, StateMessage([]byte(body))))
	}
	for _, n := range []string{"1", "2", "3"} {
		assert.JSONEq(t, `{"kind":"state","state":{"n":`+n+`}}`, read(t, conn))
	}
}

func TestHubRepliesOnlyToSender(t *testing.T) {
	hub, srv, _ := startHub(t)
	sender, other := dial(t, srv), dial(t, srv)
	read(t, sender)
	read(t, other)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte("ping")))
	assert.Equal(t, "echo:ping", read(t, sender))

	require.NoError(t, hub.Publish(context.Background(), Message{Kind: KindDisplayOpened}))
	assert.JSONEq(t, `{"kind":"display-opened"}`, read(t, other), "the reply never reached the other client")
}

func TestHubListeners(t *testing.T) {
	hub, _, _ := startHub(t)

	var got []Kind
	cancel := hub.Subscribe(func(m Message) { got = append(got, m.Kind) })

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, Message{Kind: KindDisplayOpened}))
	cancel()
	require.NoError(t, hub.Publish(ctx, Message{Kind: KindDisplayClosed}))

	assert.Equal(t, []Kind{KindDisplayOpened}, got)
}

func TestHubGreetsWithLatestState(t *testing.T) {
	hub, srv, _ := startHub(t)
	first := dial(t, srv)
	read(t, first)

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, StateMessage([]byte(`{"n":7}`))))
	require.NoError(t, hub.Publish(ctx, Message{Kind: KindDisplayClosed}))
	assert.JSONEq(t, `{"kind":"state","state":{"n":7}}`, read(t, first))
	assert.JSONEq(t, `{"kind":"display-closed"}`, read(t, first))

	late := dial(t, srv)
	assert.JSONEq(t, `{"kind":"state","state":{"n":7}}`, read(t, late),
		"a late client starts from the last state sent, not the stale greeting")
}
