/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package display follows a show from the broadcast channel. A replica only
// ever replaces its whole view with the latest state; it never mutates it.
package display

import (
	"sync"

	"github.com/Seednode/arenafloor/relay"
	"github.com/Seednode/arenafloor/show"
)

type Replica struct {
	mu    sync.RWMutex
	state *show.State
}

// Apply consumes one frame from the channel. Control messages and frames
// that do not decode leave the view untouched. changed reports whether the
// view was replaced.
func (r *Replica) Apply(frame []byte) (changed bool, err error) {
	m, err := relay.Decode(frame)
	if err != nil {
		return false, err
	}
	return r.ApplyMessage(m)
}

func (r *Replica) ApplyMessage(m relay.Message) (bool, error) {
	if m.Kind != relay.KindState {
		return false, nil
	}
	s, err := show.Decode(m.State)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	r.state = &s
	r.mu.Unlock()
	return true, nil
}

// View returns the latest state, if any has arrived.
func (r *Replica) View() (show.State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.state == nil {
		return show.State{}, false
	}
	return r.state.Clone(), true
}
