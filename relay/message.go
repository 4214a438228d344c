/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package relay carries committed show states from the operator to every
// listener, and display liveness events back.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags every message on the channel. Consumers check it before
// treating a payload as state.
type Kind string

const (
	KindState         Kind = "state"
	KindDisplayOpened Kind = "display-opened"
	KindDisplayClosed Kind = "display-closed"
)

var (
	ErrUnknownKind = errors.New("unknown message kind")
	ErrNoPayload   = errors.New("state message without payload")
)

type Message struct {
	Kind  Kind            `json:"kind"`
	State json.RawMessage `json:"state,omitempty"`
}

// StateMessage wraps an encoded show state.
func StateMessage(state []byte) Message {
	return Message{Kind: KindState, State: json.RawMessage(state)}
}

func (m Message) IsControl() bool {
	return m.Kind == KindDisplayOpened || m.Kind == KindDisplayClosed
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a frame and rejects anything outside the closed set of kinds.
func Decode(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, err
	}
	switch m.Kind {
	case KindState:
		if len(m.State) == 0 || string(m.State) == "null" {
			return Message{}, ErrNoPayload
		}
	case KindDisplayOpened, KindDisplayClosed:
		m.State = nil
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	return m, nil
}

// Broadcaster delivers a message to every listener it knows. Delivery is
// ordered per broadcaster but at most once.
type Broadcaster interface {
	Publish(ctx context.Context, m Message) error
}

// Fanout publishes to several broadcasters in order.
type Fanout []Broadcaster

func (f Fanout) Publish(ctx context.Context, m Message) error {
	var errs []error
	for _, b := range f {
		if err := b.Publish(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
