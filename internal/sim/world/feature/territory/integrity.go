package territory

import "outpost.gg/internal/sim/world/kernel/model"

// CheckCell repairs one cell against live host state: a vanished claim
// structure unclaims the cell, a vanished armory clears the reference.
// It reports whether the cell was unclaimed.
func (s *Store) CheckCell(cellID string, res Resolver) (unclaimed bool) {
	c := s.byID[cellID]
	if c == nil || res == nil || !c.IsClaimed() {
		return false
	}
	if c.ClaimStructure != 0 && !res.Exists(c.ClaimStructure) {
		s.logf("[territory] %s: claim structure %d of %s gone, unclaiming", c.ID, c.ClaimStructure, c.FactionID)
		_ = s.Unclaim(c.ID)
		return true
	}
	if c.ArmoryStructure != 0 && !res.Exists(c.ArmoryStructure) {
		s.logf("[territory] %s: armory %d gone, clearing", c.ID, c.ArmoryStructure)
		_ = s.SetArmory(c.ID, 0)
	}
	return false
}

// CheckIntegrity runs CheckCell over every claimed cell and returns the ids of
// the cells it unclaimed.
func (s *Store) CheckIntegrity(res Resolver) []string {
	var out []string
	for _, c := range s.cells {
		if !c.IsClaimed() {
			continue
		}
		if s.CheckCell(c.ID, res) {
			out = append(out, c.ID)
		}
	}
	return out
}

// StructureDestroyed invalidates every reference to id without waiting for the
// next integrity pass.
func (s *Store) StructureDestroyed(id model.EntityID) []string {
	if id == 0 {
		return nil
	}
	var out []string
	for _, c := range s.cells {
		switch {
		case c.ClaimStructure == id && c.IsClaimed():
			_ = s.Unclaim(c.ID)
			out = append(out, c.ID)
		case c.ArmoryStructure == id:
			_ = s.SetArmory(c.ID, 0)
		}
	}
	return out
}

// Export copies the mutable part of every non-default cell.
func (s *Store) Export() []model.Cell {
	var out []model.Cell
	for _, c := range s.cells {
		if c.Type == model.CellWilderness && c.Name == "" && c.Level == 0 {
			continue
		}
		out = append(out, *c)
	}
	return out
}

// Load restores exported cells without publishing change events. Records
// naming unknown cells or factions, or claim structures that no longer exist,
// degrade to wilderness; a missing armory degrades to none. A second
// headquarters for the same faction is demoted. It returns the number of
// repaired records.
func (s *Store) Load(recs []model.Cell, res Resolver, factionExists func(string) bool) int {
	repaired := 0
	for _, r := range recs {
		c := s.byID[r.ID]
		if c == nil {
			s.logf("[territory] load: unknown cell %q dropped", r.ID)
			repaired++
			continue
		}
		typ := r.Type
		if !typ.Valid() {
			s.logf("[territory] load: %s has bad type %q", r.ID, r.Type)
			typ = model.CellWilderness
			repaired++
		}
		c.Name = r.Name
		c.Level = r.Level
		switch typ {
		case model.CellClaimed, model.CellHeadquarters:
			ok := r.FactionID != "" && (factionExists == nil || factionExists(r.FactionID))
			if ok && r.ClaimStructure != 0 && res != nil && !res.Exists(r.ClaimStructure) {
				ok = false
			}
			if !ok {
				s.logf("[territory] load: %s claim of %q unresolvable, unclaimed", r.ID, r.FactionID)
				s.clearRecord(c, model.CellWilderness)
				repaired++
				continue
			}
			c.Type = typ
			c.FactionID = r.FactionID
			c.ClaimantID = r.ClaimantID
			c.ClaimStructure = r.ClaimStructure
			c.ArmoryStructure = r.ArmoryStructure
			if c.ArmoryStructure != 0 && res != nil && !res.Exists(c.ArmoryStructure) {
				c.ArmoryStructure = 0
				repaired++
			}
			if typ == model.CellHeadquarters {
				if prev := s.hq[c.FactionID]; prev != nil && prev != c {
					c.Type = model.CellClaimed
					repaired++
				} else {
					s.hq[c.FactionID] = c
				}
			}
		default:
			s.clearRecord(c, typ)
			c.Name = r.Name
			c.Level = r.Level
		}
	}
	return repaired
}

func (s *Store) clearRecord(c *model.Cell, typ model.CellType) {
	s.release(c)
	c.Type = typ
	c.FactionID = ""
	c.ClaimantID = ""
	c.ClaimStructure = 0
	c.ArmoryStructure = 0
	c.Level = 0
	c.Name = ""
}
