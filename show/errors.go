/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package show

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks documents or input rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrPrecondition marks actions the current scene does not allow.
	ErrPrecondition = errors.New("action not allowed")
)

var (
	ErrMalformed      = fmt.Errorf("%w: document is not valid JSON", ErrValidation)
	ErrUnversioned    = fmt.Errorf("%w: document has no version", ErrValidation)
	ErrUnknownVersion = fmt.Errorf("%w: unsupported document version", ErrValidation)
	ErrEmptyName      = fmt.Errorf("%w: player name is empty", ErrValidation)
	ErrBadTotal       = fmt.Errorf("%w: clock total must be positive", ErrValidation)

	ErrUnknownPlayer   = fmt.Errorf("%w: unknown player", ErrPrecondition)
	ErrPlayerOut       = fmt.Errorf("%w: player is eliminated", ErrPrecondition)
	ErrSameSeat        = fmt.Errorf("%w: a player cannot face themselves", ErrPrecondition)
	ErrNoSeats         = fmt.Errorf("%w: both duel seats must be filled", ErrPrecondition)
	ErrUnknownItem     = fmt.Errorf("%w: no such category item", ErrPrecondition)
	ErrUnknownCategory = fmt.Errorf("%w: no such category", ErrPrecondition)
	ErrNoItem          = fmt.Errorf("%w: no item selected", ErrPrecondition)
	ErrNoPlayers       = fmt.Errorf("%w: no players left to draw", ErrPrecondition)
	ErrWrongScene      = fmt.Errorf("%w: not possible in this scene", ErrPrecondition)
	ErrBadSide         = fmt.Errorf("%w: side must be left or right", ErrPrecondition)
	ErrWindowOpen      = fmt.Errorf("%w: a reveal window is already open", ErrPrecondition)
	ErrShowOver        = fmt.Errorf("%w: the show has a champion", ErrPrecondition)
	ErrNoWinner        = fmt.Errorf("%w: no duel winner to settle", ErrPrecondition)
)
