/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/arenafloor/catalog"
	"github.com/Seednode/arenafloor/console"
	"github.com/Seednode/arenafloor/relay"
	"github.com/Seednode/arenafloor/show"
	"github.com/Seednode/arenafloor/store"
)

func testConfig() *Config {
	return &Config{
		port:        8080,
		total:       45 * time.Second,
		penalty:     3 * time.Second,
		correct:     time.Second,
		tick:        50 * time.Millisecond,
		natsSubject: "arenafloor.show",
	}
}

func TestConfigValidate(t *testing.T) {
	for name, tc := range map[string]struct {
		mutate func(c *Config)
		ok     bool
	}{
		"defaults":         {func(c *Config) {}, true},
		"tls pair":         {func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, true},
		"half tls":         {func(c *Config) { c.tlsCert = "cert.pem" }, false},
		"port zero":        {func(c *Config) { c.port = 0 }, false},
		"port too high":    {func(c *Config) { c.port = 70000 }, false},
		"negative total":   {func(c *Config) { c.total = -time.Second }, false},
		"zero tick":        {func(c *Config) { c.tick = 0 }, false},
		"nats no subject":  {func(c *Config) { c.natsURL, c.natsSubject = "nats://localhost:4222", "" }, false},
		"nats and subject": {func(c *Config) { c.natsURL = "nats://localhost:4222" }, true},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(cfg)
			err := cfg.validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.0 kB", humanReadableSize(1000))
	assert.Equal(t, "4.2 MB", humanReadableSize(4_194_304))
}

type server struct {
	url   string
	store *store.Store
	clock *clockwork.FakeClock
}

func newServer(t *testing.T) *server {
	t.Helper()

	cfg := testConfig()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	fs := afero.NewMemMapFs()

	st, err := store.New(fs, "/data")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/media/animals/1.png", []byte("png"), 0o644))

	content := catalog.New(catalog.Category{ID: "animals", Name: "Animals", Items: []catalog.Item{
		{ID: "animals-1", Index: 1, Answer: "Otter", Src: "/media/animals/1.png"},
	}})
	engine := show.NewEngine(show.Fresh(clock.Now().UnixMilli()), clock, show.WithCatalog(content))

	hub := relay.NewHub(zerolog.Nop())
	con := console.New(engine, st, hub, clock, cfg.tick, zerolog.Nop())
	cancelSub := hub.Subscribe(con.Observe)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	done := make(chan error, 1)
	go func() { done <- con.Run(ctx) }()
	_, err = con.Status(ctx)
	require.NoError(t, err, "the startup commit has been stored")

	mux := httprouter.New()
	(&arena{
		cfg:     cfg,
		console: con,
		hub:     hub,
		store:   st,
		content: content,
		media:   afero.NewBasePathFs(fs, "/media"),
	}).register(mux)
	mux.GET("/healthz", serveHealthCheck(cfg))

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancelSub()
		cancel()
		<-done
	})

	return &server{url: srv.URL, store: st, clock: clock}
}

func (s *server) do(t *testing.T, method, path, body string) (int, string) {
	t.Helper()

	req, err := http.NewRequest(method, s.url+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestExportImportReset(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, code)
	exported, err := show.Import([]byte(body))
	require.NoError(t, err)

	code, _ = s.do(t, http.MethodPost, "/api/state", `{"version":0}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/state", body)
	assert.Equal(t, http.StatusOK, code)
	s.clock.Advance(time.Second)

	code, _ = s.do(t, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/reset?confirm="+console.ResetToken, "")
	assert.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodGet, "/api/backups", "")
	require.Equal(t, http.StatusOK, code)
	var backups []string
	require.NoError(t, json.Unmarshal([]byte(body), &backups))
	assert.Len(t, backups, 2, "one for the import, one for the reset")

	stored, ok, err := s.store.LoadState()
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, exported.ShowID, stored.ShowID)
}

func TestContentRoutes(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodGet, "/api/manifest", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"animals"`)

	code, body = s.do(t, http.MethodGet, "/media/animals/1.png", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "png", body)

	code, body = s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ok\n", body)
}

func TestSockets(t *testing.T) {
	s := newServer(t)
	base := "ws" + strings.TrimPrefix(s.url, "http")

	display, _, err := websocket.DefaultDialer.Dial(base+"/display/ws", nil)
	require.NoError(t, err)
	defer display.Close()
	_ = display.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, greeting, err := display.ReadMessage()
	require.NoError(t, err)
	m, err := relay.Decode(greeting)
	require.NoError(t, err)
	assert.Equal(t, relay.KindState, m.Kind)

	operator, _, err := websocket.DefaultDialer.Dial(base+"/operator/ws", nil)
	require.NoError(t, err)
	defer operator.Close()
	_ = operator.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, _, err = operator.ReadMessage()
	require.NoError(t, err, "operator is greeted with the current state")

	require.NoError(t, operator.WriteMessage(websocket.TextMessage, []byte(`{"type":"add_player","name":"Ann"}`)))

	var sawReply bool
	for !sawReply {
		_, data, err := operator.ReadMessage()
		require.NoError(t, err)
		var reply console.Reply
		require.NoError(t, json.Unmarshal(data, &reply))
		sawReply = reply.Type == "ok" && reply.ID != nil
	}

	for {
		_, data, err := display.ReadMessage()
		require.NoError(t, err)
		m, err := relay.Decode(data)
		require.NoError(t, err)
		if m.Kind != relay.KindState {
			continue
		}
		st, err := show.Decode(m.State)
		require.NoError(t, err)
		if len(st.Players) == 1 {
			assert.Equal(t, "Ann", st.Players[0].Name)
			break
		}
	}
}
