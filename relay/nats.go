/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATS mirrors every message onto a subject, so displays on other hosts can
// follow the show without a websocket to the operator.
type NATS struct {
	nc      *nats.Conn
	subject string
}

func DialNATS(url, subject string, log zerolog.Logger) (*NATS, error) {
	opts := []nats.Option{
		nats.Name("arenafloor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("nats error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATS{nc: nc, subject: subject}, nil
}

func (n *NATS) Publish(_ context.Context, m Message) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	return n.nc.Publish(n.subject, data)
}

// Follow delivers every decodable message on the subject to fn until ctx
// ends. Frames that fail to decode are dropped.
func (n *NATS) Follow(ctx context.Context, fn func(Message)) error {
	sub, err := n.nc.Subscribe(n.subject, func(msg *nats.Msg) {
		m, err := Decode(msg.Data)
		if err != nil {
			return
		}
		fn(m)
	})
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	<-ctx.Done()
	return nil
}

func (n *NATS) Close() error {
	return n.nc.Drain()
}
