/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package show

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// variants decodes each known schema version into the current State.
var variants = map[int64]func(raw []byte) (State, error){
	1: migrateV1,
}

// Migrate upgrades a persisted document of any known version to the current
// shape. Documents without a usable version are rejected, never guessed.
func Migrate(raw []byte) (State, error) {
	version, err := probeVersion(raw)
	if err != nil {
		return State{}, err
	}
	decode, ok := variants[version]
	if !ok {
		return State{}, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	return decode(raw)
}

// Import accepts only documents written at the current version.
func Import(raw []byte) (State, error) {
	version, err := probeVersion(raw)
	if err != nil {
		return State{}, err
	}
	if version != CurrentVersion {
		return State{}, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	return Migrate(raw)
}

func probeVersion(raw []byte) (int64, error) {
	if !gjson.ValidBytes(raw) {
		return 0, ErrMalformed
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return 0, ErrMalformed
	}
	v := doc.Get("version")
	if !v.Exists() || v.Type != gjson.Number {
		return 0, ErrUnversioned
	}
	if v.Num != math.Trunc(v.Num) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownVersion, v.Raw)
	}
	return v.Int(), nil
}

// playerV1 allows cells to be absent, as written before territory existed.
type playerV1 struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	Eliminated bool      `json:"eliminated"`
	Cells      *int      `json:"cells"`
	OrigCatID  string    `json:"origCatId"`
	CurrCatID  string    `json:"currCatId"`
}

type docV1 struct {
	ShowID         uuid.UUID     `json:"showId"`
	LastSavedAt    int64         `json:"lastSavedAt"`
	Scene          Scene         `json:"scene"`
	Players        []*playerV1   `json:"players"`
	LeftPlayerID   uuid.NullUUID `json:"leftPlayerId"`
	RightPlayerID  uuid.NullUUID `json:"rightPlayerId"`
	RandomPlayerID uuid.NullUUID `json:"randomPlayerId"`
	WinnerID       uuid.NullUUID `json:"winnerId"`
	Current        *DuelItem     `json:"current"`
	Clock          ClockState    `json:"clock"`
	Grid           *Grid         `json:"grid"`
	PenaltyUntil   *int64        `json:"penaltyUntil"`
	CorrectUntil   *int64        `json:"correctUntil"`
	Victory        *Victory      `json:"victory"`
}

func migrateV1(raw []byte) (State, error) {
	var doc docV1
	if err := json.Unmarshal(raw, &doc); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if doc.Scene == "" {
		doc.Scene = SceneLobby
	}
	if !doc.Scene.valid() {
		return State{}, fmt.Errorf("%w: unknown scene %q", ErrValidation, doc.Scene)
	}

	s := State{
		Version:        CurrentVersion,
		ShowID:         doc.ShowID,
		LastSavedAt:    doc.LastSavedAt,
		Scene:          doc.Scene,
		Players:        []Player{},
		LeftPlayerID:   doc.LeftPlayerID,
		RightPlayerID:  doc.RightPlayerID,
		RandomPlayerID: doc.RandomPlayerID,
		WinnerID:       doc.WinnerID,
		Current:        doc.Current,
		Clock:          doc.Clock,
		Grid:           Grid{Cells: []uuid.NullUUID{}},
		PenaltyUntil:   doc.PenaltyUntil,
		CorrectUntil:   doc.CorrectUntil,
		Victory:        doc.Victory,
	}
	if doc.Grid != nil {
		s.Grid.Rows, s.Grid.Cols = max(doc.Grid.Rows, 0), max(doc.Grid.Cols, 0)
		s.Grid.Cells = append(s.Grid.Cells, doc.Grid.Cells...)
	}

	// Cells derive from the grid whenever the grid knows the player.
	owned := s.Grid.Owned()
	for _, p := range doc.Players {
		if p == nil {
			continue
		}
		player := Player{
			ID:         p.ID,
			Name:       p.Name,
			Score:      max(p.Score, 0),
			Eliminated: p.Eliminated,
			OrigCatID:  p.OrigCatID,
			CurrCatID:  p.CurrCatID,
		}
		switch n, ok := owned[p.ID]; {
		case ok:
			player.Cells = n
		case p.Cells != nil:
			player.Cells = max(*p.Cells, 0)
		default:
			player.Cells = player.defaultCells()
		}
		s.Players = append(s.Players, player)
	}

	if s.Scene != SceneVictory {
		s.Victory = nil
	}
	return s, nil
}

// Encode serializes a state for the store and the wire.
func Encode(s State) ([]byte, error) {
	return json.Marshal(s)
}

// EncodeIndent serializes a state for export.
func EncodeIndent(s State) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Decode reads a document already known to be current, as received by a
// replica. It does not migrate.
func Decode(raw []byte) (State, error) {
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if s.Version != CurrentVersion {
		return State{}, fmt.Errorf("%w: %d", ErrUnknownVersion, s.Version)
	}
	return s, nil
}
