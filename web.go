/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/Seednode/arenafloor/catalog"
	"github.com/Seednode/arenafloor/console"
	"github.com/Seednode/arenafloor/relay"
	"github.com/Seednode/arenafloor/show"
	"github.com/Seednode/arenafloor/store"
)

const (
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("arenafloor v" + releaseVersion + "\n"))
		if err != nil {
			log.Debug().Err(err).Msg("write version")
			return
		}

		log.Debug().
			Str("size", humanReadableSize(int64(written))).
			Str("client", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("served version")
	}
}

func registerProfileHandlers(cfg *Config, mux *httprouter.Router) {
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handler(http.MethodGet, cfg.prefix+"/pprof/"+name, pprof.Handler(name))
	}
	mux.HandlerFunc(http.MethodGet, cfg.prefix+"/pprof/cmdline", pprof.Cmdline)
	mux.HandlerFunc(http.MethodGet, cfg.prefix+"/pprof/profile", pprof.Profile)
	mux.HandlerFunc(http.MethodGet, cfg.prefix+"/pprof/symbol", pprof.Symbol)
	mux.HandlerFunc(http.MethodGet, cfg.prefix+"/pprof/trace", pprof.Trace)
}

// loadCatalog reads the manifest, falling back to an empty one so the show
// can still run player and grid management without content.
func loadCatalog(fs afero.Fs, path string) *catalog.Manifest {
	m, err := catalog.Load(fs, path)
	if err != nil {
		log.Warn().Err(err).Msg("running without content")
		return catalog.Empty()
	}
	log.Info().Str("manifest", path).Int("categories", len(m.Categories)).Msg("content loaded")
	return m
}

func ServePage(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	log.Info().Str("version", releaseVersion).Msg("starting arenafloor")

	osFs := afero.NewOsFs()
	clock := clockwork.NewRealClock()

	st, err := store.New(osFs, cfg.dataDir)
	if err != nil {
		return err
	}

	content := loadCatalog(osFs, cfg.manifest)

	defaults := show.Settings{
		DefaultTotalMs:  cfg.total.Milliseconds(),
		PenaltySkipMs:   cfg.penalty.Milliseconds(),
		CorrectRevealMs: cfg.correct.Milliseconds(),
	}

	engine := show.NewEngine(
		console.Restore(st, cfg.fresh, clock.Now(), component("store")),
		clock,
		show.WithCatalog(content),
		show.WithSettings(st.LoadSettings(defaults)),
		show.WithLogger(component("engine")),
	)

	hub := relay.NewHub(component("relay"))
	out := relay.Fanout{hub}

	if cfg.natsURL != "" {
		mirror, err := relay.DialNATS(cfg.natsURL, cfg.natsSubject, component("nats"))
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer func() { _ = mirror.Close() }()
		out = append(out, mirror)
		log.Info().Str("subject", cfg.natsSubject).Msg("mirroring broadcasts to nats")
	}

	con := console.New(engine, st, out, clock, cfg.tick, component("console"))
	unsubscribe := hub.Subscribe(con.Observe)
	defer unsubscribe()

	mux := httprouter.New()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
	}

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		log.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("handler panicked")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		_, _ = io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	a := &arena{
		cfg:     cfg,
		console: con,
		hub:     hub,
		store:   st,
		content: content,
		media:   afero.NewBasePathFs(osFs, cfg.mediaDir),
	}
	a.register(mux)

	mux.GET(cfg.prefix+"/assets/*asset", serveAssets(cfg))
	mux.GET(cfg.prefix+"/favicons/*favicon", serveFavicons(cfg))
	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg))
	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg))
	mux.GET(cfg.prefix+"/version", serveVersion(cfg))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return con.Run(gctx)
	})

	g.Go(func() error {
		var err error
		log.Info().Msgf("listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
