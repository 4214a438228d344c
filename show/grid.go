/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package show

import (
	"math"

	"github.com/google/uuid"
)

// Grid maps territory cells to their owners. Unowned padding cells are null.
type Grid struct {
	Rows  int             `json:"rows"`
	Cols  int             `json:"cols"`
	Cells []uuid.NullUUID `json:"cells"`
}

// Owned counts the non-null cells per owner.
func (g Grid) Owned() map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int)
	for _, c := range g.Cells {
		if c.Valid {
			counts[c.UUID]++
		}
	}
	return counts
}

// OwnedTotal is the number of non-null cells.
func (g Grid) OwnedTotal() int {
	n := 0
	for _, c := range g.Cells {
		if c.Valid {
			n++
		}
	}
	return n
}

// gridDims returns the smallest square-ish rectangle holding total cells.
func gridDims(total int) (rows, cols int) {
	if total <= 0 {
		return 0, 0
	}
	cols = int(math.Ceil(math.Sqrt(float64(total))))
	rows = (total + cols - 1) / cols
	return rows, cols
}

// requestedCells is the sum of every surviving player's cells.
func requestedCells(players []Player) int {
	total := 0
	for _, p := range players {
		if p.Eliminated {
			continue
		}
		total += max(p.Cells, 0)
	}
	return total
}

// EnsureGrid rebuilds the grid when the requested cell count differs from
// the owned count, and leaves it untouched otherwise so layout survives
// unrelated commits.
func (s *State) EnsureGrid() {
	total := requestedCells(s.Players)
	if total == s.Grid.OwnedTotal() && len(s.Grid.Cells) == s.Grid.Rows*s.Grid.Cols {
		return
	}

	rows, cols := gridDims(total)
	cells := make([]uuid.NullUUID, 0, rows*cols)
	for i := range s.Players {
		p := &s.Players[i]
		if p.Eliminated {
			p.Cells = 0
			continue
		}
		p.Cells = max(p.Cells, 0)
		for range p.Cells {
			cells = append(cells, ref(p.ID))
		}
	}
	for len(cells) < rows*cols {
		cells = append(cells, uuid.NullUUID{})
	}
	s.Grid = Grid{Rows: rows, Cols: cols, Cells: cells}
}

// TransferTerritory hands every cell of loser to winner and returns how many
// moved. The grid keeps its shape.
func (s *State) TransferTerritory(winner, loser uuid.UUID) int {
	moved := 0
	for i, c := range s.Grid.Cells {
		if c.Valid && c.UUID == loser {
			s.Grid.Cells[i] = ref(winner)
			moved++
		}
	}
	if w := s.player(ref(winner)); w != nil {
		w.Cells += moved
	}
	if l := s.player(ref(loser)); l != nil {
		l.Cells = 0
	}
	return moved
}

// Champion reports the sole owner of every non-null cell, provided no other
// surviving player still holds cells.
func (s *State) Champion() (uuid.UUID, int, bool) {
	owned := s.Grid.Owned()
	if len(owned) != 1 {
		return uuid.Nil, 0, false
	}
	var champ uuid.UUID
	var n int
	for id, c := range owned {
		champ, n = id, c
	}
	for _, p := range s.Players {
		if p.ID != champ && !p.Eliminated && p.Cells > 0 {
			return uuid.Nil, 0, false
		}
	}
	return champ, n, true
}
