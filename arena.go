/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/afero"

	"github.com/Seednode/arenafloor/catalog"
	"github.com/Seednode/arenafloor/console"
	"github.com/Seednode/arenafloor/relay"
	"github.com/Seednode/arenafloor/show"
	"github.com/Seednode/arenafloor/store"
)

const maxImport = 4 << 20

// Operator sockets accept same-origin pages only; displays may be opened
// from anywhere on the network.
var (
	operatorUpgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}

	displayUpgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
)

type arena struct {
	cfg     *Config
	console *console.Console
	hub     *relay.Hub
	store   *store.Store
	content *catalog.Manifest
	media   afero.Fs
}

// register sets up routes so that:
//   - /                → operator page
//   - /display         → audience page
//   - /display/qr      → PNG QR code for the audience page
//   - /operator/ws     → operator commands and state
//   - /display/ws      → state for displays
//   - /api/...         → export, import, reset and content
//   - /media/*filepath → category images
func (a *arena) register(mux *httprouter.Router) {
	p := a.cfg.prefix

	mux.GET(p+"/", servePage(a.cfg, "operator.html"))
	mux.GET(p+"/display", servePage(a.cfg, "display.html"))
	mux.GET(p+"/display/qr", a.serveQR)

	mux.GET(p+"/operator/ws", a.serveOperator)
	mux.GET(p+"/display/ws", a.serveDisplay)

	mux.GET(p+"/api/state", a.exportState)
	mux.POST(p+"/api/state", a.importState)
	mux.POST(p+"/api/reset", a.resetShow)
	mux.GET(p+"/api/manifest", a.serveManifest)
	mux.GET(p+"/api/backups", a.listBackups)

	mux.ServeFiles(p+"/media/*filepath", afero.NewHttpFs(a.media))
}

func writeJSON(cfg *Config, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

func writeError(cfg *Config, w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, show.ErrValidation), errors.Is(err, console.ErrNotConfirmed):
		code = http.StatusBadRequest
	case errors.Is(err, show.ErrPrecondition):
		code = http.StatusConflict
	case errors.Is(err, console.ErrClosed):
		code = http.StatusServiceUnavailable
	}
	writeJSON(cfg, w, code, map[string]string{"type": "error", "message": err.Error()})
}

func (a *arena) serveOperator(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := operatorUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("client", realIP(r)).Msg("operator upgrade failed")
		return
	}

	ctx := r.Context()

	var greeting []byte
	if raw, err := a.console.Snapshot(ctx); err == nil {
		greeting, _ = relay.StateMessage(raw).Encode()
	}

	log.Info().Str("client", realIP(r)).Msg("operator connected")

	a.hub.Serve(ctx, conn, relay.RoleOperator, greeting, func(frame []byte) []byte {
		reply, err := json.Marshal(a.console.Dispatch(ctx, frame))
		if err != nil {
			return nil
		}
		return reply
	})

	log.Info().Str("client", realIP(r)).Msg("operator disconnected")
}

// serveDisplay greets a display with the last broadcast state, or the
// stored one before anything has been broadcast, then streams broadcasts.
// Displays never send anything that changes the show.
func (a *arena) serveDisplay(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := displayUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("client", realIP(r)).Msg("display upgrade failed")
		return
	}

	ctx := r.Context()

	var greeting []byte
	if raw, err := a.store.Get(store.KeyState); err == nil {
		greeting, _ = relay.StateMessage(raw).Encode()
	}

	_ = a.hub.Publish(ctx, relay.Message{Kind: relay.KindDisplayOpened})
	defer func() {
		_ = a.hub.Publish(ctx, relay.Message{Kind: relay.KindDisplayClosed})
	}()

	a.hub.Serve(ctx, conn, relay.RoleDisplay, greeting, nil)
}

func (a *arena) serveQR(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	scheme := a.cfg.scheme()
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	securityHeaders(a.cfg, w)
	_, _ = w.Write(png)
}

func (a *arena) exportState(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw, err := a.console.Export(r.Context())
	if err != nil {
		writeError(a.cfg, w, err)
		return
	}

	name := "arena-" + time.Now().Format("20060102-150405") + ".json"
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	securityHeaders(a.cfg, w)
	_, _ = w.Write(raw)
}

func (a *arena) importState(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImport))
	if err != nil {
		writeError(a.cfg, w, err)
		return
	}

	if err := a.console.Import(r.Context(), raw); err != nil {
		log.Info().Err(err).Str("client", realIP(r)).Msg("import rejected")
		writeError(a.cfg, w, err)
		return
	}

	log.Info().Str("size", humanReadableSize(int64(len(raw)))).Str("client", realIP(r)).Msg("state imported")
	writeJSON(a.cfg, w, http.StatusOK, map[string]string{"type": "ok"})
}

func (a *arena) resetShow(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := a.console.Reset(r.Context(), r.URL.Query().Get("confirm")); err != nil {
		writeError(a.cfg, w, err)
		return
	}
	writeJSON(a.cfg, w, http.StatusOK, map[string]string{"type": "ok"})
}

func (a *arena) serveManifest(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(a.cfg, w, http.StatusOK, a.content)
}

func (a *arena) listBackups(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	keys, err := a.store.Backups()
	if err != nil {
		writeError(a.cfg, w, err)
		return
	}
	writeJSON(a.cfg, w, http.StatusOK, keys)
}
