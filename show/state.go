/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package show holds the show-state engine: the duel clock, the territory
// grid, the scene state machine and the persisted document format.
package show

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// CurrentVersion is the schema version written by this engine.
const CurrentVersion = 1

type Scene string

const (
	SceneLobby          Scene = "lobby"
	SceneRandomPlayer   Scene = "random_player"
	SceneCategorySelect Scene = "category_select"
	SceneDuelReady      Scene = "duel_ready"
	SceneDuelLive       Scene = "duel_live"
	ScenePause          Scene = "pause"
	SceneResult         Scene = "result"
	SceneVictory        Scene = "victory"
)

func (s Scene) valid() bool {
	switch s {
	case SceneLobby, SceneRandomPlayer, SceneCategorySelect, SceneDuelReady,
		SceneDuelLive, ScenePause, SceneResult, SceneVictory:
		return true
	}
	return false
}

// Side is one half of the duel. The zero value means no side and encodes as null.
type Side string

const (
	SideNone  Side = ""
	SideLeft  Side = "left"
	SideRight Side = "right"
)

var errBadSide = errors.New("side must be left, right or null")

func ParseSide(v string) (Side, bool) {
	switch Side(v) {
	case SideLeft, SideRight:
		return Side(v), true
	}
	return SideNone, false
}

// Other returns the opposing side.
func (s Side) Other() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	}
	return SideNone
}

func (s Side) MarshalJSON() ([]byte, error) {
	if s == SideNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *Side) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = SideNone
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == "" {
		*s = SideNone
		return nil
	}
	side, ok := ParseSide(v)
	if !ok {
		return errBadSide
	}
	*s = side
	return nil
}

type Player struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	Eliminated bool      `json:"eliminated"`
	Cells      int       `json:"cells"`
	OrigCatID  string    `json:"origCatId,omitempty"`
	CurrCatID  string    `json:"currCatId,omitempty"`
}

// defaultCells is the cell count a player holds before any grid exists.
func (p Player) defaultCells() int {
	if p.Eliminated {
		return 0
	}
	return 1
}

type DuelItem struct {
	CategoryID string `json:"categoryId"`
	ItemIndex  int    `json:"itemIndex"`
	Src        string `json:"src"`
	Answer     string `json:"answer"`
	Revealed   bool   `json:"revealed"`
}

type Victory struct {
	ChampionID uuid.UUID `json:"championId"`
	CellsOwned int       `json:"cellsOwned"`
}

// State is the single root record shared by the operator and every display.
// Timestamps are unix milliseconds.
type State struct {
	Version        int           `json:"version"`
	ShowID         uuid.UUID     `json:"showId"`
	LastSavedAt    int64         `json:"lastSavedAt"`
	Scene          Scene         `json:"scene"`
	Players        []Player      `json:"players"`
	LeftPlayerID   uuid.NullUUID `json:"leftPlayerId"`
	RightPlayerID  uuid.NullUUID `json:"rightPlayerId"`
	RandomPlayerID uuid.NullUUID `json:"randomPlayerId"`
	WinnerID       uuid.NullUUID `json:"winnerId"`
	Current        *DuelItem     `json:"current"`
	Clock          ClockState    `json:"clock"`
	Grid           Grid          `json:"grid"`
	PenaltyUntil   *int64        `json:"penaltyUntil"`
	CorrectUntil   *int64        `json:"correctUntil"`
	Victory        *Victory      `json:"victory"`
}

// Fresh returns the state of a new show.
func Fresh(now int64) State {
	return State{
		Version:     CurrentVersion,
		ShowID:      uuid.New(),
		LastSavedAt: now,
		Scene:       SceneLobby,
		Players:     []Player{},
		Grid:        Grid{Cells: []uuid.NullUUID{}},
		Clock:       ClockState{Paused: true},
	}
}

// Clone returns a deep copy; revisions never share slices or pointers.
func (s State) Clone() State {
	out := s
	out.Players = append([]Player{}, s.Players...)
	out.Grid.Cells = append([]uuid.NullUUID{}, s.Grid.Cells...)
	if s.Current != nil {
		c := *s.Current
		out.Current = &c
	}
	if s.Victory != nil {
		v := *s.Victory
		out.Victory = &v
	}
	out.Clock.LastSwitchTs = cloneTs(s.Clock.LastSwitchTs)
	out.PenaltyUntil = cloneTs(s.PenaltyUntil)
	out.CorrectUntil = cloneTs(s.CorrectUntil)
	return out
}

func cloneTs(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ts(v int64) *int64 { return &v }

func ref(id uuid.UUID) uuid.NullUUID { return uuid.NullUUID{UUID: id, Valid: true} }

// playerIndex returns the index of the player with id, or -1.
func (s *State) playerIndex(id uuid.UUID) int {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) player(r uuid.NullUUID) *Player {
	if !r.Valid {
		return nil
	}
	if i := s.playerIndex(r.UUID); i >= 0 {
		return &s.Players[i]
	}
	return nil
}

// Seat returns the player seated on side, if any.
func (s *State) Seat(side Side) *Player {
	switch side {
	case SideLeft:
		return s.player(s.LeftPlayerID)
	case SideRight:
		return s.player(s.RightPlayerID)
	}
	return nil
}

// PlayerByID looks up a player without exposing a mutable pointer.
func (s State) PlayerByID(id uuid.UUID) (Player, bool) {
	if i := s.playerIndex(id); i >= 0 {
		return s.Players[i], true
	}
	return Player{}, false
}
