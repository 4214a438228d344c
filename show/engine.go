/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package show

import (
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Seednode/arenafloor/catalog"
)

// Catalog is the read-only content the engine walks through.
type Catalog interface {
	Item(categoryID string, index int) (catalog.Item, bool)
	Next(categoryID string, index int) (catalog.Item, bool)
	HasCategory(categoryID string) bool
	OwnedBy(player string) (string, bool)
}

// Settings are the operator-tunable durations, in milliseconds.
type Settings struct {
	DefaultTotalMs  int64 `json:"defaultTotalMs"`
	PenaltySkipMs   int64 `json:"penaltySkipMs"`
	CorrectRevealMs int64 `json:"correctRevealMs"`
}

func DefaultSettings() Settings {
	return Settings{DefaultTotalMs: 45000, PenaltySkipMs: 3000, CorrectRevealMs: 1000}
}

// Engine owns the authoritative State. It is not safe for concurrent use;
// the operator console serializes every call on its own loop.
type Engine struct {
	clock    clockwork.Clock
	catalog  Catalog
	settings Settings
	rng      *rand.Rand
	log      zerolog.Logger

	state   State
	rev     uint64
	windows map[window]deferred
}

type Option func(*Engine)

func WithCatalog(c Catalog) Option { return func(e *Engine) { e.catalog = c } }

func WithSettings(s Settings) Option { return func(e *Engine) { e.settings = s } }

func WithRand(r *rand.Rand) Option { return func(e *Engine) { e.rng = r } }

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

func NewEngine(state State, clock clockwork.Clock, opts ...Option) *Engine {
	e := &Engine{
		clock:    clock,
		catalog:  catalog.Empty(),
		settings: DefaultSettings(),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:      zerolog.Nop(),
		state:    state.Clone(),
		windows:  make(map[window]deferred),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state.EnsureGrid()
	e.restoreWindows()
	return e
}

func (e *Engine) now() int64 { return e.clock.Now().UnixMilli() }

// State returns a copy of the current revision.
func (e *Engine) State() State { return e.state.Clone() }

// Revision counts applied mutations.
func (e *Engine) Revision() uint64 { return e.rev }

func (e *Engine) Settings() Settings { return e.settings }

func (e *Engine) SetSettings(s Settings) error {
	if s.DefaultTotalMs <= 0 || s.PenaltySkipMs <= 0 || s.CorrectRevealMs <= 0 {
		return ErrBadTotal
	}
	e.settings = s
	return nil
}

// apply runs fn against a copy of the state and swaps it in only on success,
// so a rejected action never leaves a partial revision behind.
func (e *Engine) apply(fn func(s *State) error) error {
	next := e.state.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	next.EnsureGrid()
	if next.Scene != SceneVictory {
		next.Victory = nil
	}
	// Reveal windows only live inside a running duel.
	if !inDuel(&next) {
		next.PenaltyUntil, next.CorrectUntil = nil, nil
		e.cancelWindows()
	}
	e.state = next
	e.rev++
	return nil
}

// Commit settles the clock, stamps the save time and returns the revision
// to persist and broadcast.
func (e *Engine) Commit() State {
	now := e.now()
	_ = e.apply(func(s *State) error {
		s.Clock.Settle(now)
		s.LastSavedAt = now
		return nil
	})
	return e.State()
}

// Replace swaps in a whole new state. Pending windows are dropped and
// rearmed from the new state's deadlines.
func (e *Engine) Replace(s State) {
	e.cancelWindows()
	_ = e.apply(func(next *State) error {
		*next = s.Clone()
		return nil
	})
	e.restoreWindows()
}

// Reset starts a brand new show.
func (e *Engine) Reset() {
	e.Replace(Fresh(e.now()))
}

// Tick settles the running clock, fires due windows and detects timeouts.
// It reports whether anything changed.
func (e *Engine) Tick() bool {
	now := e.now()
	changed := e.fireDue(now)

	if !e.state.Clock.Running() {
		return changed
	}
	_ = e.apply(func(s *State) error {
		s.Clock.Settle(now)
		if _, expired := s.Clock.Expired(); expired {
			e.log.Debug().Msg("duel clock expired")
			return e.timeout(s, now)
		}
		return nil
	})
	return true
}

func notOver(s *State) error {
	if s.Scene == SceneVictory {
		return ErrShowOver
	}
	return nil
}

func inDuel(s *State) bool {
	return s.Scene == SceneDuelLive || s.Scene == ScenePause
}

// Player management

func (e *Engine) AddPlayer(name string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, ErrEmptyName
	}
	p := Player{ID: uuid.New(), Name: name, Cells: 1}
	if e.catalog != nil {
		if cat, ok := e.catalog.OwnedBy(name); ok {
			p.OrigCatID, p.CurrCatID = cat, cat
		}
	}
	err := e.apply(func(s *State) error {
		s.Players = append(s.Players, p)
		return nil
	})
	return p.ID, err
}

func (e *Engine) RenamePlayer(id uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	return e.apply(func(s *State) error {
		p := s.player(ref(id))
		if p == nil {
			return ErrUnknownPlayer
		}
		p.Name = name
		return nil
	})
}

func (e *Engine) SetEliminated(id uuid.UUID, eliminated bool) error {
	return e.apply(func(s *State) error {
		p := s.player(ref(id))
		if p == nil {
			return ErrUnknownPlayer
		}
		if p.Eliminated == eliminated {
			return nil
		}
		p.Eliminated = eliminated
		if eliminated {
			p.Cells = 0
		} else if p.Cells <= 0 {
			p.Cells = 1
		}
		return nil
	})
}

func (e *Engine) ResetScore(id uuid.UUID) error {
	return e.apply(func(s *State) error {
		p := s.player(ref(id))
		if p == nil {
			return ErrUnknownPlayer
		}
		p.Score = 0
		return nil
	})
}

// RemovePlayer drops a player and every reference to them.
func (e *Engine) RemovePlayer(id uuid.UUID) error {
	return e.apply(func(s *State) error {
		i := s.playerIndex(id)
		if i < 0 {
			return ErrUnknownPlayer
		}
		if inDuel(s) && (s.LeftPlayerID == ref(id) || s.RightPlayerID == ref(id)) {
			return ErrWrongScene
		}
		s.Players = append(s.Players[:i], s.Players[i+1:]...)
		for _, r := range []*uuid.NullUUID{&s.LeftPlayerID, &s.RightPlayerID, &s.RandomPlayerID, &s.WinnerID} {
			if r.Valid && r.UUID == id {
				*r = uuid.NullUUID{}
			}
		}
		for j, c := range s.Grid.Cells {
			if c.Valid && c.UUID == id {
				s.Grid.Cells[j] = uuid.NullUUID{}
			}
		}
		return nil
	})
}

func (e *Engine) SetPlayerCategory(id uuid.UUID, categoryID string) error {
	if e.catalog == nil || !e.catalog.HasCategory(categoryID) {
		return ErrUnknownCategory
	}
	return e.apply(func(s *State) error {
		p := s.player(ref(id))
		if p == nil {
			return ErrUnknownPlayer
		}
		if p.OrigCatID == "" {
			p.OrigCatID = categoryID
		}
		p.CurrCatID = categoryID
		return nil
	})
}

// Scene transitions

// SetSeats seats two distinct, surviving players. A zero ref empties the seat.
func (e *Engine) SetSeats(left, right uuid.NullUUID) error {
	return e.apply(func(s *State) error {
		if err := notOver(s); err != nil {
			return err
		}
		if inDuel(s) {
			return ErrWrongScene
		}
		for _, r := range []uuid.NullUUID{left, right} {
			if !r.Valid {
				continue
			}
			p := s.player(r)
			if p == nil {
				return ErrUnknownPlayer
			}
			if p.Eliminated {
				return ErrPlayerOut
			}
		}
		if left.Valid && left == right {
			return ErrSameSeat
		}
		s.LeftPlayerID, s.RightPlayerID = left, right
		return nil
	})
}

func (e *Engine) Lobby() error {
	return e.apply(func(s *State) error {
		if err := notOver(s); err != nil {
			return err
		}
		if inDuel(s) {
			return ErrWrongScene
		}
		s.Scene = SceneLobby
		return nil
	})
}

// PickRandomPlayer draws a surviving player uniformly.
func (e *Engine) PickRandomPlayer() (uuid.UUID, error) {
	var picked uuid.UUID
	err := e.apply(func(s *State) error {
		if err := notOver(s); err != nil {
			return err
		}
		if inDuel(s) {
			return ErrWrongScene
		}
		alive := make([]uuid.UUID, 0, len(s.Players))
		for _, p := range s.Players {
			if !p.Eliminated {
				alive = append(alive, p.ID)
			}
		}
		if len(alive) == 0 {
			return ErrNoPlayers
		}
		picked = alive[e.rng.IntN(len(alive))]
		s.RandomPlayerID = ref(picked)
		s.Scene = SceneRandomPlayer
		return nil
	})
	return picked, err
}

func (e *Engine) CategorySelect() error {
	return e.apply(func(s *State) error {
		if err := notOver(s); err != nil {
			return err
		}
		if inDuel(s) {
			return ErrWrongScene
		}
		s.Scene = SceneCategorySelect
		s.Current = nil
		s.WinnerID = uuid.NullUUID{}
		return nil
	})
}

// SelectItem queues a category item and readies the duel. Both seats must
// be filled.
func (e *Engine) SelectItem(categoryID string, index int) error {
	return e.apply(func(s *State) error {
		if err := notOver(s); err != nil {
			return err
		}
		if inDuel(s) {
			return ErrWrongScene
		}
		if s.Seat(SideLeft) == nil || s.Seat(SideRight) == nil {
			return ErrNoSeats
		}
		if e.catalog == nil {
			return ErrUnknownItem
		}
		it, ok := e.catalog.Item(categoryID, index)
		if !ok {
			return ErrUnknownItem
		}
		s.Current = duelItem(categoryID, it)
		s.Scene = SceneDuelReady
		s.WinnerID = uuid.NullUUID{}
		s.Clock.RunningSide = SideNone
		s.PenaltyUntil, s.CorrectUntil = nil, nil
		return nil
	})
}

func duelItem(categoryID string, it catalog.Item) *DuelItem {
	return &DuelItem{CategoryID: categoryID, ItemIndex: it.Index, Src: it.Src, Answer: it.Answer}
}

// SetTotal changes the clock budget used by the next start.
func (e *Engine) SetTotal(totalMs int64) error {
	if totalMs <= 0 {
		return ErrBadTotal
	}
	return e.apply(func(s *State) error {
		if inDuel(s) {
			return ErrWrongScene
		}
		s.Clock.TotalMs = totalMs
		return nil
	})
}

// StartDuel moves a ready duel live. A non-positive total falls back to the
// clock's configured total, then to the default setting.
func (e *Engine) StartDuel(totalMs int64) error {
	now := e.now()
	err := e.apply(func(s *State) error {
		if s.Scene != SceneDuelReady {
			return ErrWrongScene
		}
		if s.Current == nil {
			return ErrNoItem
		}
		if s.Seat(SideLeft) == nil || s.Seat(SideRight) == nil {
			return ErrNoSeats
		}
		e.startClock(s, totalMs, now)
		return nil
	})
	if err == nil {
		e.cancelWindows()
	}
	return err
}

// ResetDuel restarts the clock on the current item.
func (e *Engine) ResetDuel() error {
	now := e.now()
	err := e.apply(func(s *State) error {
		if err := notOver(s); err != nil {
			return err
		}
		if s.Current == nil {
			return ErrNoItem
		}
		if s.Seat(SideLeft) == nil || s.Seat(SideRight) == nil {
			return ErrNoSeats
		}
		s.Current.Revealed = false
		e.startClock(s, 0, now)
		return nil
	})
	if err == nil {
		e.cancelWindows()
	}
	return err
}

func (e *Engine) startClock(s *State, totalMs, now int64) {
	if totalMs <= 0 {
		totalMs = s.Clock.TotalMs
	}
	if totalMs <= 0 {
		totalMs = e.settings.DefaultTotalMs
	}
	s.Clock.Start(totalMs, now)
	s.PenaltyUntil, s.CorrectUntil = nil, nil
	s.WinnerID = uuid.NullUUID{}
	s.Scene = SceneDuelLive
}

// Pause freezes a live duel. Pausing a paused duel is a no-op.
func (e *Engine) Pause() error {
	now := e.now()
	return e.apply(func(s *State) error {
		switch s.Scene {
		case ScenePause:
			return nil
		case SceneDuelLive:
			s.Clock.Pause(now)
			s.Scene = ScenePause
			return nil
		}
		return ErrWrongScene
	})
}

// Resume restarts a paused duel. Resuming a live duel is a no-op.
func (e *Engine) Resume() error {
	now := e.now()
	return e.apply(func(s *State) error {
		switch s.Scene {
		case SceneDuelLive:
			return nil
		case ScenePause:
			s.Clock.Resume(now)
			s.Scene = SceneDuelLive
			return nil
		}
		return ErrWrongScene
	})
}

func (e *Engine) TogglePause() error {
	if e.state.Scene == ScenePause {
		return e.Resume()
	}
	return e.Pause()
}

// SwitchSide ends side's turn and moves on to the next item. It is a no-op
// when side is not the one running.
func (e *Engine) SwitchSide(side Side) error {
	now := e.now()
	return e.apply(func(s *State) error {
		return e.switchSide(s, side, now)
	})
}

func (e *Engine) switchSide(s *State, side Side, now int64) error {
	if side != SideLeft && side != SideRight {
		return ErrBadSide
	}
	if !inDuel(s) {
		return ErrWrongScene
	}
	if !s.Clock.Switch(side, now) {
		return nil
	}
	e.advance(s, now)
	return nil
}

// advance moves to the next item of the active category, or force-ends the
// duel without a winner when the category is exhausted.
func (e *Engine) advance(s *State, now int64) {
	if s.Current != nil && e.catalog != nil {
		if it, ok := e.catalog.Next(s.Current.CategoryID, s.Current.ItemIndex); ok {
			s.Current = duelItem(s.Current.CategoryID, it)
			return
		}
	}
	s.Clock.Stop(now)
	s.Current = nil
	s.Scene = SceneCategorySelect
}

// NextItem skips to the next item. From a result it returns to category
// selection.
func (e *Engine) NextItem() error {
	now := e.now()
	return e.apply(func(s *State) error {
		return e.nextItem(s, now)
	})
}

func (e *Engine) nextItem(s *State, now int64) error {
	switch s.Scene {
	case SceneDuelReady, SceneDuelLive, ScenePause:
		if s.Current == nil {
			return ErrNoItem
		}
		e.advance(s, now)
		return nil
	case SceneResult:
		s.Current = nil
		s.Scene = SceneCategorySelect
		return nil
	}
	return ErrWrongScene
}

func (e *Engine) Reveal() error {
	return e.apply(func(s *State) error {
		if s.Current == nil {
			return ErrNoItem
		}
		s.Current.Revealed = true
		return nil
	})
}

// Timeout ends the duel against the side whose clock is running.
func (e *Engine) Timeout() error {
	now := e.now()
	return e.apply(func(s *State) error {
		return e.timeout(s, now)
	})
}

func (e *Engine) timeout(s *State, now int64) error {
	if !inDuel(s) {
		return ErrWrongScene
	}
	loser, ok := s.Clock.Expire(now)
	if !ok {
		return ErrWrongScene
	}
	e.award(s, loser.Other())
	return nil
}

// DeclareWinner ends the duel in side's favour. With eliminate the loser is
// knocked out and their territory moves to the winner.
func (e *Engine) DeclareWinner(side Side, eliminate bool) error {
	now := e.now()
	return e.apply(func(s *State) error {
		if side != SideLeft && side != SideRight {
			return ErrBadSide
		}
		if !inDuel(s) && s.Scene != SceneDuelReady {
			return ErrWrongScene
		}
		if s.Seat(SideLeft) == nil || s.Seat(SideRight) == nil {
			return ErrNoSeats
		}
		s.Clock.Stop(now)
		e.award(s, side)
		if eliminate {
			return e.eliminateLoser(s, now)
		}
		return nil
	})
}

// EliminateLoser knocks out the loser of the duel just settled, for results
// reached by timeout.
func (e *Engine) EliminateLoser() error {
	now := e.now()
	return e.apply(func(s *State) error {
		if s.Scene != SceneResult {
			return ErrWrongScene
		}
		return e.eliminateLoser(s, now)
	})
}

func (e *Engine) award(s *State, winner Side) {
	s.Scene = SceneResult
	s.PenaltyUntil, s.CorrectUntil = nil, nil
	if p := s.Seat(winner); p != nil {
		p.Score++
		s.WinnerID = ref(p.ID)
	}
}

func (e *Engine) eliminateLoser(s *State, now int64) error {
	w := s.player(s.WinnerID)
	if w == nil {
		return ErrNoWinner
	}
	var l *Player
	switch s.WinnerID {
	case s.LeftPlayerID:
		l = s.Seat(SideRight)
	case s.RightPlayerID:
		l = s.Seat(SideLeft)
	}
	if l == nil {
		return ErrNoWinner
	}
	if l.Eliminated {
		return nil
	}

	s.EnsureGrid()

	// The winner takes over the left seat's active category, whichever side
	// won.
	var leftCat string
	if left := s.Seat(SideLeft); left != nil {
		leftCat = left.CurrCatID
	}

	winnerID, loserID := w.ID, l.ID
	l.Eliminated = true
	moved := s.TransferTerritory(winnerID, loserID)
	if leftCat != "" {
		w.CurrCatID = leftCat
	}
	e.log.Debug().
		Str("winner", winnerID.String()).
		Str("loser", loserID.String()).
		Int("cells", moved).
		Msg("territory transferred")

	if champ, cells, ok := s.Champion(); ok {
		s.Clock.Stop(now)
		s.Victory = &Victory{ChampionID: champ, CellsOwned: cells}
		s.Scene = SceneVictory
	}
	return nil
}

// PenaltySkip reveals the answer and moves to the next item once the
// penalty window closes. The clock keeps running meanwhile.
func (e *Engine) PenaltySkip() error {
	if e.windowOpen(windowPenalty) {
		return ErrWindowOpen
	}
	now := e.now()
	due := now + e.settings.PenaltySkipMs
	err := e.apply(func(s *State) error {
		if s.Scene != SceneDuelLive {
			return ErrWrongScene
		}
		if s.Current == nil {
			return ErrNoItem
		}
		s.Current.Revealed = true
		s.PenaltyUntil = ts(due)
		return nil
	})
	if err != nil {
		return err
	}
	e.schedule(windowPenalty, due, e.nextItem)
	return nil
}

// Correct reveals the answer and, once the correct window closes, ends the
// turn of the side that was running when it was called.
func (e *Engine) Correct() error {
	if e.windowOpen(windowCorrect) {
		return ErrWindowOpen
	}
	now := e.now()
	due := now + e.settings.CorrectRevealMs
	side := e.state.Clock.RunningSide
	err := e.apply(func(s *State) error {
		if s.Scene != SceneDuelLive || side == SideNone {
			return ErrWrongScene
		}
		if s.Current == nil {
			return ErrNoItem
		}
		s.Current.Revealed = true
		s.CorrectUntil = ts(due)
		return nil
	})
	if err != nil {
		return err
	}
	e.schedule(windowCorrect, due, func(s *State, now int64) error {
		return e.switchSide(s, side, now)
	})
	return nil
}
