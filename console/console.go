/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package console runs the operator side of a show: one loop owns the
// engine, drives the clock tick and commits every change to the store and
// the broadcast channel.
package console

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Seednode/arenafloor/relay"
	"github.com/Seednode/arenafloor/show"
	"github.com/Seednode/arenafloor/store"
)

// ResetToken must accompany a show reset.
const ResetToken = "RESET"

var (
	ErrClosed       = errors.New("console is not running")
	ErrNotConfirmed = errors.New("reset requires the confirmation token " + ResetToken)
)

type request struct {
	fn   func(e *show.Engine) error
	done chan error
}

// Status is what the operator sees about the session itself.
type Status struct {
	Scene       show.Scene `json:"scene"`
	Revision    uint64     `json:"revision"`
	LastSavedAt int64      `json:"lastSavedAt"`
	Displays    int        `json:"displays"`
	LastSeen    *time.Time `json:"lastSeen"`
}

type Console struct {
	engine *show.Engine
	store  *store.Store
	out    relay.Broadcaster
	clock  clockwork.Clock
	tick   time.Duration
	log    zerolog.Logger

	inbox   chan request
	control chan relay.Kind
	stopped chan struct{}

	committed uint64
	displays  int
	lastSeen  time.Time
}

func New(engine *show.Engine, st *store.Store, out relay.Broadcaster, clock clockwork.Clock, tick time.Duration, log zerolog.Logger) *Console {
	return &Console{
		engine:  engine,
		store:   st,
		out:     out,
		clock:   clock,
		tick:    tick,
		log:     log,
		inbox:   make(chan request),
		control: make(chan relay.Kind, 32),
		stopped: make(chan struct{}),
	}
}

// Restore picks the state a new session starts from. With fresh, or when the
// stored state cannot be read, the old document is archived and a new show
// begins.
func Restore(st *store.Store, fresh bool, now time.Time, log zerolog.Logger) show.State {
	if !fresh {
		s, ok, err := st.LoadState()
		switch {
		case err == nil && !ok:
			return show.Fresh(now.UnixMilli())
		case err == nil:
			log.Info().Str("show", s.ShowID.String()).Str("scene", string(s.Scene)).Msg("resuming show")
			return s
		}
		log.Warn().Err(err).Msg("stored show invalid, starting fresh")
	}

	raw, err := st.Get(store.KeyState)
	if errors.Is(err, store.ErrNotFound) {
		return show.Fresh(now.UnixMilli())
	}
	if err != nil {
		log.Warn().Err(err).Msg("stored show unreadable, starting fresh")
		return show.Fresh(now.UnixMilli())
	}

	key, err := st.Backup(raw, now)
	if err != nil {
		log.Error().Err(err).Msg("could not archive previous show")
	} else {
		log.Info().Str("key", key).Msg("archived previous show")
	}
	return show.Fresh(now.UnixMilli())
}

// Observe feeds control messages from the broadcast channel into the loop.
// It never blocks; state messages are ignored.
func (c *Console) Observe(m relay.Message) {
	if !m.IsControl() {
		return
	}
	select {
	case c.control <- m.Kind:
	default:
	}
}

// Run serves requests and ticks until ctx ends.
func (c *Console) Run(ctx context.Context) error {
	defer close(c.stopped)

	ticker := c.clock.NewTicker(c.tick)
	defer ticker.Stop()

	c.commit(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil

		case req := <-c.inbox:
			err := req.fn(c.engine)
			if c.engine.Revision() != c.committed {
				c.commit(ctx)
			}
			req.done <- err

		case kind := <-c.control:
			c.observe(kind)

		case <-ticker.Chan():
			if c.engine.Tick() || c.engine.Revision() != c.committed {
				c.commit(ctx)
			}
		}
	}
}

func (c *Console) observe(kind relay.Kind) {
	switch kind {
	case relay.KindDisplayOpened:
		c.displays++
		c.lastSeen = c.clock.Now()
	case relay.KindDisplayClosed:
		if c.displays > 0 {
			c.displays--
		}
		c.lastSeen = c.clock.Now()
	}
	c.log.Debug().Int("displays", c.displays).Str("event", string(kind)).Msg("display liveness")
}

// commit persists the current revision and broadcasts it. Failures are
// logged; the engine stays authoritative.
func (c *Console) commit(ctx context.Context) {
	s := c.engine.Commit()
	c.committed = c.engine.Revision()

	raw, err := show.Encode(s)
	if err != nil {
		c.log.Error().Err(err).Msg("encode state")
		return
	}
	if err := c.store.SaveState(raw); err != nil {
		c.log.Error().Err(err).Msg("persist state")
	}
	if err := c.out.Publish(ctx, relay.StateMessage(raw)); err != nil {
		c.log.Warn().Err(err).Msg("broadcast state")
	}
}

// Do runs fn on the console loop and waits for its result. Any change fn
// makes is committed before Do returns.
func (c *Console) Do(ctx context.Context, fn func(e *show.Engine) error) error {
	req := request{fn: fn, done: make(chan error, 1)}

	select {
	case c.inbox <- req:
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state, encoded.
func (c *Console) Snapshot(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := c.Do(ctx, func(e *show.Engine) error {
		var err error
		raw, err = show.Encode(e.State())
		return err
	})
	return raw, err
}

// Export returns the current state as indented JSON.
func (c *Console) Export(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := c.Do(ctx, func(e *show.Engine) error {
		var err error
		raw, err = show.EncodeIndent(e.State())
		return err
	})
	return raw, err
}

// Import validates a document and, only if it is acceptable, archives the
// current show and replaces it.
func (c *Console) Import(ctx context.Context, raw []byte) error {
	s, err := show.Import(raw)
	if err != nil {
		return err
	}
	return c.Do(ctx, func(e *show.Engine) error {
		c.archive(e.State())
		e.Replace(s)
		c.log.Info().Str("show", s.ShowID.String()).Msg("imported show")
		return nil
	})
}

// Reset archives the current show and starts a new one.
func (c *Console) Reset(ctx context.Context, token string) error {
	if token != ResetToken {
		return ErrNotConfirmed
	}
	return c.Do(ctx, func(e *show.Engine) error {
		c.archive(e.State())
		e.Reset()
		c.log.Info().Msg("show reset")
		return nil
	})
}

func (c *Console) archive(s show.State) {
	raw, err := show.Encode(s)
	if err != nil {
		c.log.Error().Err(err).Msg("encode backup")
		return
	}
	key, err := c.store.Backup(raw, c.clock.Now())
	if err != nil {
		c.log.Error().Err(err).Msg("write backup")
		return
	}
	c.log.Debug().Str("key", key).Msg("backup written")
}

func (c *Console) SaveSettings(ctx context.Context, settings show.Settings) error {
	return c.Do(ctx, func(e *show.Engine) error {
		if err := e.SetSettings(settings); err != nil {
			return err
		}
		return c.store.SaveSettings(settings)
	})
}

func (c *Console) Settings(ctx context.Context) (show.Settings, error) {
	var s show.Settings
	err := c.Do(ctx, func(e *show.Engine) error {
		s = e.Settings()
		return nil
	})
	return s, err
}

func (c *Console) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.Do(ctx, func(e *show.Engine) error {
		s := e.State()
		st = Status{
			Scene:       s.Scene,
			Revision:    e.Revision(),
			LastSavedAt: s.LastSavedAt,
			Displays:    c.displays,
		}
		if !c.lastSeen.IsZero() {
			seen := c.lastSeen
			st.LastSeen = &seen
		}
		return nil
	})
	return st, err
}
