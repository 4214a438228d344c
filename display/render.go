/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package display

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Seednode/arenafloor/show"
)

const emptyCell = "."

// Render draws a state as plain text lines. It is a pure function of s and
// now, so rendering the same frame twice gives the same output.
func Render(s show.State, now int64) []string {
	lines := []string{fmt.Sprintf("[%s]", strings.ReplaceAll(string(s.Scene), "_", " "))}

	switch s.Scene {
	case show.SceneLobby, show.SceneCategorySelect:
		lines = append(lines, scoreboard(s)...)

	case show.SceneRandomPlayer:
		if p, ok := lookup(s, s.RandomPlayerID); ok {
			lines = append(lines, "next up: "+p.Name)
		}

	case show.SceneDuelReady, show.SceneDuelLive, show.ScenePause:
		lines = append(lines, duel(s, now)...)

	case show.SceneResult:
		lines = append(lines, duel(s, now)...)
		if p, ok := lookup(s, s.WinnerID); ok {
			lines = append(lines, "winner: "+p.Name)
		}

	case show.SceneVictory:
		if s.Victory != nil {
			if p, ok := s.PlayerByID(s.Victory.ChampionID); ok {
				lines = append(lines, fmt.Sprintf("champion: %s (%d cells)", p.Name, s.Victory.CellsOwned))
			}
		}
	}

	return append(lines, grid(s)...)
}

func lookup(s show.State, r uuid.NullUUID) (show.Player, bool) {
	if !r.Valid {
		return show.Player{}, false
	}
	return s.PlayerByID(r.UUID)
}

func scoreboard(s show.State) []string {
	lines := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		mark := ""
		if p.Eliminated {
			mark = " (out)"
		}
		lines = append(lines, fmt.Sprintf("%-20s %3d  %d cells%s", p.Name, p.Score, p.Cells, mark))
	}
	return lines
}

func duel(s show.State, now int64) []string {
	name := func(r uuid.NullUUID) string {
		if p, ok := lookup(s, r); ok {
			return p.Name
		}
		return "-"
	}
	arrow := func(side show.Side) string {
		if s.Clock.RunningSide == side {
			return "*"
		}
		return " "
	}

	lines := []string{
		fmt.Sprintf("%s%s %s  |  %s %s%s",
			arrow(show.SideLeft), name(s.LeftPlayerID), clock(s.Clock.Projected(show.SideLeft, now)),
			clock(s.Clock.Projected(show.SideRight, now)), name(s.RightPlayerID), arrow(show.SideRight)),
	}

	if s.Current != nil {
		answer := "?"
		if s.Current.Revealed {
			answer = s.Current.Answer
		}
		lines = append(lines, fmt.Sprintf("%s #%d: %s", s.Current.CategoryID, s.Current.ItemIndex, answer))
	}
	if s.PenaltyUntil != nil {
		lines = append(lines, "PENALTY")
	}
	if s.CorrectUntil != nil {
		lines = append(lines, "CORRECT")
	}
	return lines
}

// clock formats milliseconds as seconds with one decimal.
func clock(ms int64) string {
	return fmt.Sprintf("%d.%ds", ms/1000, (ms%1000)/100)
}

// grid draws one character per cell, the owner's initial, in row order.
func grid(s show.State) []string {
	g := s.Grid
	if g.Rows == 0 || g.Cols == 0 {
		return nil
	}
	initials := make(map[uuid.UUID]string, len(s.Players))
	for _, p := range s.Players {
		r, _ := utf8.DecodeRuneInString(p.Name)
		if r == utf8.RuneError {
			r = '#'
		}
		initials[p.ID] = string(unicode.ToUpper(r))
	}

	lines := make([]string, 0, g.Rows)
	for row := 0; row < g.Rows; row++ {
		var b strings.Builder
		for col := 0; col < g.Cols; col++ {
			i := row*g.Cols + col
			cell := emptyCell
			if i < len(g.Cells) && g.Cells[i].Valid {
				if v, ok := initials[g.Cells[i].UUID]; ok {
					cell = v
				}
			}
			b.WriteString(cell)
		}
		lines = append(lines, b.String())
	}
	return lines
}
