/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package show

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/arenafloor/catalog"
)

func testCatalog() *catalog.Manifest {
	return catalog.New(
		catalog.Category{ID: "animals", Name: "Animals", Player: "Ann", Items: []catalog.Item{
			{ID: "animals-1", Index: 1, Answer: "Otter", Src: "/media/animals/1.png"},
			{ID: "animals-2", Index: 2, Answer: "Heron", Src: "/media/animals/2.png"},
		}},
		catalog.Category{ID: "rivers", Name: "Rivers", Player: "Bob", Items: []catalog.Item{
			{ID: "rivers-1", Index: 1, Answer: "Danube", Src: "/media/rivers/1.png"},
		}},
	)
}

type fixture struct {
	e     *Engine
	clock *clockwork.FakeClock
	ids   []uuid.UUID
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.UnixMilli(t0))
	e := NewEngine(Fresh(t0), clock,
		WithCatalog(testCatalog()),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	)

	f := &fixture{e: e, clock: clock}
	for _, n := range names {
		id, err := e.AddPlayer(n)
		require.NoError(t, err)
		f.ids = append(f.ids, id)
	}
	return f
}

// live seats the first two players and starts a duel on animals #1.
func (f *fixture) live(t *testing.T, totalMs int64) {
	t.Helper()

	require.NoError(t, f.e.SetSeats(ref(f.ids[0]), ref(f.ids[1])))
	require.NoError(t, f.e.SelectItem("animals", 1))
	require.NoError(t, f.e.StartDuel(totalMs))
}

func (f *fixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.e.Tick()
}

func TestAddPlayerAssignsOwnedCategory(t *testing.T) {
	f := newFixture(t, "ann", "Dee")
	s := f.e.State()

	assert.Equal(t, "animals", s.Players[0].OrigCatID)
	assert.Equal(t, "animals", s.Players[0].CurrCatID)
	assert.Empty(t, s.Players[1].OrigCatID)
	assert.Equal(t, 2, s.Grid.OwnedTotal())

	_, err := f.e.AddPlayer("   ")
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDuelWalksCategoryThenFallsBack(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 60000)

	s := f.e.State()
	assert.Equal(t, SceneDuelLive, s.Scene)
	assert.Equal(t, SideLeft, s.Clock.RunningSide)

	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.e.SwitchSide(SideLeft))

	s = f.e.State()
	assert.Equal(t, int64(50000), s.Clock.LeftRemainingMs)
	assert.Equal(t, int64(60000), s.Clock.RightRemainingMs)
	assert.Equal(t, SideRight, s.Clock.RunningSide)
	require.NotNil(t, s.Current)
	assert.Equal(t, 2, s.Current.ItemIndex)
	assert.Equal(t, "Heron", s.Current.Answer)

	f.clock.Advance(4 * time.Second)
	require.NoError(t, f.e.SwitchSide(SideRight))

	s = f.e.State()
	assert.Equal(t, SceneCategorySelect, s.Scene)
	assert.Nil(t, s.Current)
	assert.Equal(t, SideNone, s.Clock.RunningSide)
	assert.Equal(t, int64(56000), s.Clock.RightRemainingMs)
	assert.False(t, s.WinnerID.Valid)
}

func TestSwitchOfIdleSideChangesNothing(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 60000)
	before := f.e.State()

	require.NoError(t, f.e.SwitchSide(SideRight))
	assert.Equal(t, before.Current, f.e.State().Current)
	assert.Equal(t, SideLeft, f.e.State().Clock.RunningSide)
}

func TestRejectedActionLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	before, rev := f.e.State(), f.e.Revision()

	assert.ErrorIs(t, f.e.StartDuel(0), ErrWrongScene)
	assert.ErrorIs(t, f.e.SelectItem("animals", 1), ErrNoSeats)
	assert.ErrorIs(t, f.e.SetSeats(ref(f.ids[0]), ref(f.ids[0])), ErrSameSeat)
	assert.ErrorIs(t, f.e.SetSeats(ref(uuid.New()), uuid.NullUUID{}), ErrUnknownPlayer)
	assert.ErrorIs(t, f.e.Reveal(), ErrPrecondition)

	assert.Equal(t, before, f.e.State())
	assert.Equal(t, rev, f.e.Revision())
}

func TestStartDuelFallsBackToDefaultTotal(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 0)

	assert.Equal(t, DefaultSettings().DefaultTotalMs, f.e.State().Clock.LeftRemainingMs)
}

func TestTimeoutFromTick(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 1000)

	f.advance(500 * time.Millisecond)
	assert.Equal(t, SceneDuelLive, f.e.State().Scene)

	f.advance(600 * time.Millisecond)
	s := f.e.State()
	assert.Equal(t, SceneResult, s.Scene)
	assert.Equal(t, ref(f.ids[1]), s.WinnerID)
	assert.Zero(t, s.Clock.LeftRemainingMs)
	assert.Equal(t, 1, s.Players[1].Score)
	assert.False(t, s.Players[0].Eliminated, "a timeout never eliminates on its own")
}

func TestPauseStopsTheClock(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 5000)

	f.advance(time.Second)
	require.NoError(t, f.e.TogglePause())
	assert.Equal(t, ScenePause, f.e.State().Scene)

	f.advance(time.Minute)
	assert.Equal(t, ScenePause, f.e.State().Scene)
	assert.Equal(t, int64(4000), f.e.State().Clock.LeftRemainingMs)

	require.NoError(t, f.e.TogglePause())
	f.advance(time.Second)
	assert.Equal(t, SceneDuelLive, f.e.State().Scene)
	assert.Equal(t, int64(3000), f.e.State().Clock.LeftRemainingMs)
}

func TestDeclareWinnerWithEliminationCrownsChampion(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 60000)

	require.NoError(t, f.e.DeclareWinner(SideLeft, true))

	s := f.e.State()
	assert.Equal(t, SceneVictory, s.Scene)
	require.NotNil(t, s.Victory)
	assert.Equal(t, f.ids[0], s.Victory.ChampionID)
	assert.Equal(t, 2, s.Victory.CellsOwned)
	assert.True(t, s.Players[1].Eliminated)
	assert.Zero(t, s.Players[1].Cells)
	assert.Equal(t, 2, s.Players[0].Cells)
	assert.Equal(t, 1, s.Players[0].Score)
}

func TestVictoryIsFinal(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 60000)
	require.NoError(t, f.e.DeclareWinner(SideLeft, true))
	before := f.e.State()

	assert.ErrorIs(t, f.e.CategorySelect(), ErrShowOver)
	assert.ErrorIs(t, f.e.Lobby(), ErrShowOver)
	assert.ErrorIs(t, f.e.SetSeats(uuid.NullUUID{}, uuid.NullUUID{}), ErrShowOver)
	_, err := f.e.PickRandomPlayer()
	assert.ErrorIs(t, err, ErrShowOver)

	assert.Equal(t, before, f.e.State())

	f.e.Reset()
	assert.Equal(t, SceneLobby, f.e.State().Scene)
	assert.Nil(t, f.e.State().Victory)
}

func TestRightWinnerTakesLeftCategory(t *testing.T) {
	f := newFixture(t, "Ann", "Bob", "Cid")
	f.live(t, 60000)

	require.NoError(t, f.e.DeclareWinner(SideRight, true))

	s := f.e.State()
	assert.Equal(t, SceneResult, s.Scene)
	assert.Nil(t, s.Victory)
	bob, _ := s.PlayerByID(f.ids[1])
	assert.Equal(t, "rivers", bob.OrigCatID)
	assert.Equal(t, "animals", bob.CurrCatID)
	assert.Equal(t, 2, bob.Cells)
	assert.Equal(t, 2, s.Grid.Owned()[f.ids[1]])
}

func TestEliminateLoserAfterTimeout(t *testing.T) {
	f := newFixture(t, "Ann", "Bob", "Cid")
	f.live(t, 1000)
	f.advance(2 * time.Second)
	require.Equal(t, SceneResult, f.e.State().Scene)

	require.NoError(t, f.e.EliminateLoser())

	s := f.e.State()
	assert.True(t, s.Players[0].Eliminated)
	assert.Equal(t, 2, s.Players[1].Cells)
	assert.Equal(t, SceneResult, s.Scene)

	require.NoError(t, f.e.NextItem())
	assert.Equal(t, SceneCategorySelect, f.e.State().Scene)
}

func TestPenaltyWindow(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 60000)

	require.NoError(t, f.e.PenaltySkip())
	s := f.e.State()
	require.NotNil(t, s.PenaltyUntil)
	assert.Equal(t, t0+3000, *s.PenaltyUntil)
	assert.True(t, s.Current.Revealed)

	assert.ErrorIs(t, f.e.PenaltySkip(), ErrWindowOpen)

	f.advance(2 * time.Second)
	assert.Equal(t, 1, f.e.State().Current.ItemIndex)

	f.advance(time.Second)
	s = f.e.State()
	assert.Nil(t, s.PenaltyUntil)
	assert.Equal(t, 2, s.Current.ItemIndex)
	assert.False(t, s.Current.Revealed)
	assert.Equal(t, SideLeft, s.Clock.RunningSide, "a pass keeps the same side on the clock")
	assert.Equal(t, int64(57000), s.Clock.LeftRemainingMs)
}

func TestCorrectWindowSwitchesCapturedSide(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 60000)

	require.NoError(t, f.e.Correct())
	require.NotNil(t, f.e.State().CorrectUntil)

	f.advance(time.Second)
	s := f.e.State()
	assert.Nil(t, s.CorrectUntil)
	assert.Equal(t, SideRight, s.Clock.RunningSide)
	assert.Equal(t, 2, s.Current.ItemIndex)
}

func TestCorrectWindowIgnoresManualSwitch(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 60000)

	require.NoError(t, f.e.Correct())
	require.NoError(t, f.e.SwitchSide(SideLeft))
	require.Equal(t, SideRight, f.e.State().Clock.RunningSide)

	f.advance(time.Second)
	s := f.e.State()
	assert.Equal(t, SideRight, s.Clock.RunningSide, "the deferred switch belongs to the left side only")
	assert.Equal(t, 2, s.Current.ItemIndex)
}

func TestWindowsDieWithTheDuel(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 60000)

	require.NoError(t, f.e.PenaltySkip())
	require.NoError(t, f.e.DeclareWinner(SideLeft, false))

	s := f.e.State()
	assert.Nil(t, s.PenaltyUntil)

	f.advance(5 * time.Second)
	assert.Equal(t, SceneResult, f.e.State().Scene)
	assert.Equal(t, ref(f.ids[0]), f.e.State().WinnerID)
}

func TestLoadedWindowsKeepRunning(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 60000)
	require.NoError(t, f.e.PenaltySkip())

	raw, err := Encode(f.e.Commit())
	require.NoError(t, err)
	loaded, err := Migrate(raw)
	require.NoError(t, err)

	e := NewEngine(loaded, f.clock, WithCatalog(testCatalog()))
	assert.ErrorIs(t, e.PenaltySkip(), ErrWindowOpen)

	f.clock.Advance(3 * time.Second)
	e.Tick()
	s := e.State()
	assert.Nil(t, s.PenaltyUntil)
	require.NotNil(t, s.Current)
	assert.Equal(t, 2, s.Current.ItemIndex, "the stored window still moves on to the next item")
}

func TestReplaceRearmsCorrectWindow(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 60000)
	require.NoError(t, f.e.Correct())
	imported := f.e.Commit()

	g := newFixture(t)
	g.e.Replace(imported)
	assert.ErrorIs(t, g.e.Correct(), ErrWindowOpen)

	g.advance(time.Second)
	s := g.e.State()
	assert.Nil(t, s.CorrectUntil)
	assert.Equal(t, SideRight, s.Clock.RunningSide)
	assert.Equal(t, 2, s.Current.ItemIndex)
}

func TestStaleDeadlinesOutsideADuelAreDropped(t *testing.T) {
	s := Fresh(t0)
	s.PenaltyUntil = ts(t0 + 1000)

	e := NewEngine(s, clockwork.NewFakeClockAt(time.UnixMilli(t0)))
	assert.Nil(t, e.State().PenaltyUntil)
	assert.False(t, e.Tick())
}

func TestRemovePlayerClearsReferences(t *testing.T) {
	f := newFixture(t, "Ann", "Bob", "Cid")
	require.NoError(t, f.e.SetSeats(ref(f.ids[0]), ref(f.ids[1])))

	require.NoError(t, f.e.RemovePlayer(f.ids[0]))

	s := f.e.State()
	assert.False(t, s.LeftPlayerID.Valid)
	assert.Equal(t, ref(f.ids[1]), s.RightPlayerID)
	assert.NotContains(t, s.Grid.Owned(), f.ids[0])
	assert.Equal(t, 2, s.Grid.OwnedTotal())
}

func TestPickRandomPlayerSkipsEliminated(t *testing.T) {
	f := newFixture(t, "Ann", "Bob", "Cid")
	require.NoError(t, f.e.SetEliminated(f.ids[0], true))
	require.NoError(t, f.e.SetEliminated(f.ids[2], true))

	for range 10 {
		id, err := f.e.PickRandomPlayer()
		require.NoError(t, err)
		assert.Equal(t, f.ids[1], id)
	}
	assert.Equal(t, SceneRandomPlayer, f.e.State().Scene)
}

func TestCommitStampsAndSettles(t *testing.T) {
	f := newFixture(t, "Ann", "Bob")
	f.live(t, 60000)

	f.clock.Advance(1500 * time.Millisecond)
	s := f.e.Commit()

	assert.Equal(t, t0+1500, s.LastSavedAt)
	assert.Equal(t, int64(58500), s.Clock.LeftRemainingMs)
	assert.Equal(t, t0+1500, *s.Clock.LastSwitchTs)
}
