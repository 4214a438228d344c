/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Seednode/arenafloor/show"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is one operator request as sent over the operator socket. Only
// the fields its type needs are read.
type Command struct {
	Type       string         `json:"type"`
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Eliminated bool           `json:"eliminated"`
	Category   string         `json:"category"`
	Index      int            `json:"index"`
	Left       uuid.NullUUID  `json:"left"`
	Right      uuid.NullUUID  `json:"right"`
	Ms         int64          `json:"ms"`
	Side       show.Side      `json:"side"`
	Eliminate  bool           `json:"eliminate"`
	Settings   *show.Settings `json:"settings"`
}

// Reply answers the client that sent a command. State changes are not
// replies; they reach every client as broadcasts.
type Reply struct {
	Type    string     `json:"type"`
	Message string     `json:"message,omitempty"`
	ID      *uuid.UUID `json:"id,omitempty"`
	Status  *Status    `json:"status,omitempty"`
}

func errorReply(err error) Reply {
	return Reply{Type: "error", Message: err.Error()}
}

type action func(e *show.Engine, cmd Command) error

var actions = map[string]action{
	"rename_player": func(e *show.Engine, cmd Command) error { return e.RenamePlayer(cmd.ID, cmd.Name) },
	"eliminate_player": func(e *show.Engine, cmd Command) error {
		return e.SetEliminated(cmd.ID, cmd.Eliminated)
	},
	"reset_score":     func(e *show.Engine, cmd Command) error { return e.ResetScore(cmd.ID) },
	"remove_player":   func(e *show.Engine, cmd Command) error { return e.RemovePlayer(cmd.ID) },
	"set_category":    func(e *show.Engine, cmd Command) error { return e.SetPlayerCategory(cmd.ID, cmd.Category) },
	"set_seats":       func(e *show.Engine, cmd Command) error { return e.SetSeats(cmd.Left, cmd.Right) },
	"category_select": func(e *show.Engine, _ Command) error { return e.CategorySelect() },
	"select_item":     func(e *show.Engine, cmd Command) error { return e.SelectItem(cmd.Category, cmd.Index) },
	"set_total":       func(e *show.Engine, cmd Command) error { return e.SetTotal(cmd.Ms) },
	"start_duel":      func(e *show.Engine, cmd Command) error { return e.StartDuel(cmd.Ms) },
	"pause":           func(e *show.Engine, _ Command) error { return e.Pause() },
	"resume":          func(e *show.Engine, _ Command) error { return e.Resume() },
	"toggle_pause":    func(e *show.Engine, _ Command) error { return e.TogglePause() },
	"switch":          func(e *show.Engine, cmd Command) error { return e.SwitchSide(cmd.Side) },
	"timeout":         func(e *show.Engine, _ Command) error { return e.Timeout() },
	"declare_winner": func(e *show.Engine, cmd Command) error {
		return e.DeclareWinner(cmd.Side, cmd.Eliminate)
	},
	"eliminate_loser": func(e *show.Engine, _ Command) error { return e.EliminateLoser() },
	"reveal":          func(e *show.Engine, _ Command) error { return e.Reveal() },
	"next_item":       func(e *show.Engine, _ Command) error { return e.NextItem() },
	"reset_duel":      func(e *show.Engine, _ Command) error { return e.ResetDuel() },
	"penalty":         func(e *show.Engine, _ Command) error { return e.PenaltySkip() },
	"correct":         func(e *show.Engine, _ Command) error { return e.Correct() },
	"lobby":           func(e *show.Engine, _ Command) error { return e.Lobby() },
}

// Dispatch decodes and runs one operator frame. Every failure becomes an
// error reply; nothing the operator sends can take the loop down.
func (c *Console) Dispatch(ctx context.Context, frame []byte) Reply {
	var cmd Command
	if err := json.Unmarshal(frame, &cmd); err != nil {
		return errorReply(fmt.Errorf("%w: %v", show.ErrValidation, err))
	}

	switch cmd.Type {
	case "status":
		st, err := c.Status(ctx)
		if err != nil {
			return errorReply(err)
		}
		return Reply{Type: "status", Status: &st}

	case "save_settings":
		if cmd.Settings == nil {
			return errorReply(fmt.Errorf("%w: settings missing", show.ErrValidation))
		}
		if err := c.SaveSettings(ctx, *cmd.Settings); err != nil {
			return errorReply(err)
		}
		return Reply{Type: "ok"}

	case "add_player", "random_player":
		var id uuid.UUID
		err := c.Do(ctx, func(e *show.Engine) error {
			var err error
			if cmd.Type == "add_player" {
				id, err = e.AddPlayer(cmd.Name)
			} else {
				id, err = e.PickRandomPlayer()
			}
			return err
		})
		if err != nil {
			return errorReply(err)
		}
		return Reply{Type: "ok", ID: &id}
	}

	act, ok := actions[cmd.Type]
	if !ok {
		return errorReply(fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type))
	}
	if err := c.Do(ctx, func(e *show.Engine) error { return act(e, cmd) }); err != nil {
		c.log.Debug().Err(err).Str("command", cmd.Type).Msg("command rejected")
		return errorReply(err)
	}
	return Reply{Type: "ok"}
}
