package territory

import "outpost.gg/internal/sim/world/kernel/model"

var cardinals = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// ContiguousClaimedNeighbors counts the cardinal neighbours of cellID owned by
// factionID.
func (s *Store) ContiguousClaimedNeighbors(cellID, factionID string) int {
	c := s.byID[cellID]
	if c == nil || factionID == "" {
		return 0
	}
	n := 0
	for _, d := range cardinals {
		if nb := s.GetAt(c.Row+d[0], c.Col+d[1]); nb.OwnedBy(factionID) {
			n++
		}
	}
	return n
}

// DepthInsideFriendlyTerritory is the shortest cardinal run of same-faction
// cells starting at cellID, minus one. Border cells and unclaimed cells are 0.
func (s *Store) DepthInsideFriendlyTerritory(cellID string) int {
	c := s.byID[cellID]
	if !c.IsClaimed() {
		return 0
	}
	best := -1
	for _, d := range cardinals {
		run := 0
		for r, col := c.Row, c.Col; ; r, col = r+d[0], col+d[1] {
			nb := s.GetAt(r, col)
			if !nb.OwnedBy(c.FactionID) {
				break
			}
			run++
			if best >= 0 && run >= best {
				break
			}
		}
		if best < 0 || run < best {
			best = run
		}
	}
	if best <= 1 {
		return 0
	}
	return best - 1
}

// MostExposedClaim picks the non-headquarters cell of the faction with the
// lowest defensive depth, falling back to the headquarters. Ties resolve to
// the first cell in row-major order.
func (s *Store) MostExposedClaim(factionID string) *model.Cell {
	var pick *model.Cell
	pickDepth := 0
	for _, c := range s.cells {
		if !c.OwnedBy(factionID) || c.Type == model.CellHeadquarters {
			continue
		}
		d := s.DepthInsideFriendlyTerritory(c.ID)
		if pick == nil || d < pickDepth {
			pick, pickDepth = c, d
		}
	}
	if pick == nil {
		return s.hq[factionID]
	}
	return pick
}

// SafestClaim picks the non-headquarters cell of the faction with the highest
// defensive depth, ties to row-major order. Nil when the faction holds no
// such cell.
func (s *Store) SafestClaim(factionID string) *model.Cell {
	var pick *model.Cell
	pickDepth := 0
	for _, c := range s.cells {
		if !c.OwnedBy(factionID) || c.Type == model.CellHeadquarters {
			continue
		}
		d := s.DepthInsideFriendlyTerritory(c.ID)
		if pick == nil || d > pickDepth {
			pick, pickDepth = c, d
		}
	}
	return pick
}
