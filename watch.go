/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Seednode/arenafloor/display"
	"github.com/Seednode/arenafloor/relay"
)

const (
	redrawInterval = 100 * time.Millisecond
	retryInterval  = time.Second
)

func newWatchCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Follow a running show in the terminal, from a display socket or a NATS server.",
		Long: `Follow a running show in the terminal.

The url is either the display socket of a server (ws://host:8080/display/ws)
or a NATS server the operator mirrors onto (nats://host:4222).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := url.Parse(args[0])
			if err != nil {
				return err
			}
			return watch(cmd.Context(), cfg, u, colorable.NewColorableStdout())
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalize)
	fs.StringVar(&cfg.natsSubject, "nats-subject", "arenafloor.show", "subject to follow when watching a NATS server (env: ARENAFLOOR_NATS_SUBJECT)")
	bindFlags(v, fs)

	return cmd
}

func watch(ctx context.Context, cfg *Config, u *url.URL, out io.Writer) error {
	replica := &display.Replica{}
	frames := make(chan relay.Message, 16)

	switch u.Scheme {
	case "nats", "tls":
		n, err := relay.DialNATS(u.String(), cfg.natsSubject, component("nats"))
		if err != nil {
			return err
		}
		defer func() { _ = n.Close() }()
		go func() {
			_ = n.Follow(ctx, func(m relay.Message) { offer(frames, m) })
		}()
	case "ws", "wss":
		go followSocket(ctx, u.String(), frames)
	default:
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	redraw := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	for {
		changed := false
		select {
		case <-ctx.Done():
			return nil
		case m := <-frames:
			ok, err := replica.ApplyMessage(m)
			if err != nil {
				log.Debug().Err(err).Msg("dropped frame")
			}
			changed = ok
		case <-ticker.C:
		}

		s, ok := replica.View()
		if !ok {
			continue
		}
		// Terminals redraw the running clock; pipes only get new states.
		if !changed && !(redraw && s.Clock.Running()) {
			continue
		}
		if redraw {
			_, _ = io.WriteString(out, "\033[H\033[2J")
		}
		_, _ = io.WriteString(out, strings.Join(display.Render(s, time.Now().UnixMilli()), "\n")+"\n")
	}
}

// offer hands m to the render loop, dropping it if the loop is behind. A
// later state replaces it anyway.
func offer(frames chan<- relay.Message, m relay.Message) {
	select {
	case frames <- m:
	default:
	}
}

// followSocket keeps a display socket open, reconnecting until ctx ends.
// Every connection starts with the stored state, so nothing is replayed.
func followSocket(ctx context.Context, addr string, frames chan<- relay.Message) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	for ctx.Err() == nil {
		conn, _, err := dialer.DialContext(ctx, addr, nil)
		if err != nil {
			log.Warn().Err(err).Str("url", addr).Msg("display socket unavailable")
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryInterval):
			}
			continue
		}

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			m, err := relay.Decode(data)
			if err != nil {
				continue
			}
			offer(frames, m)
		}
		stop()
		_ = conn.Close()
	}
}
