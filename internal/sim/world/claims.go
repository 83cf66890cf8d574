package world

import (
	"strings"
	"unicode/utf8"

	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/kernel/model"
)

const maxCellNameLength = 32

// leaderOf resolves userID's faction and requires a leadership role.
func (w *World) leaderOf(userID string) (*model.Faction, error) {
	f := w.factions.GetByMember(userID)
	if f == nil {
		return nil, protocol.Errorf(protocol.ErrNoPermission, "not in a faction")
	}
	if !f.HasLeader(userID) {
		return nil, protocol.Errorf(protocol.ErrNoPermission, "only leaders of %s may do that", f.ID)
	}
	return f, nil
}

// ownedCell resolves cellID and requires it to belong to f.
func (w *World) ownedCell(f *model.Faction, cellID string) (*model.Cell, error) {
	c := w.territory.Get(cellID)
	if c == nil {
		return nil, protocol.Errorf(protocol.ErrInvalidTarget, "unknown cell %q", cellID)
	}
	if !c.OwnedBy(f.ID) {
		return nil, protocol.Errorf(protocol.ErrNoPermission, "%s does not belong to %s", c.ID, f.ID)
	}
	return c, nil
}

func (w *World) anchoredClaim(structure model.EntityID) *model.Cell {
	for _, c := range w.territory.GetAll() {
		if c.IsClaimed() && c.ClaimStructure == structure {
			return c
		}
	}
	return nil
}

// ClaimAt claims the cell under pos for userID's faction, anchored to the
// structure controlling pos. A faction's first claim becomes its
// headquarters. The claim cost is charged only after every check passes.
func (w *World) ClaimAt(userID string, pos model.Vec3) (*model.Cell, error) {
	f, err := w.leaderOf(userID)
	if err != nil {
		return nil, err
	}
	if f.MemberCount() < w.cfg.MinFactionMembers {
		return nil, protocol.Errorf(protocol.ErrBlocked, "%s needs %d members to claim land", f.ID, w.cfg.MinFactionMembers)
	}
	c := w.territory.CellAt(pos)
	if c == nil {
		return nil, protocol.Errorf(protocol.ErrInvalidTarget, "position is outside the claim grid")
	}
	switch {
	case c.Type == model.CellBadlands:
		return nil, protocol.Errorf(protocol.ErrBlocked, "%s is badlands and cannot be claimed", c.ID)
	case c.OwnedBy(f.ID):
		return nil, protocol.Errorf(protocol.ErrConflict, "%s already belongs to %s", c.ID, f.ID)
	case c.IsClaimed():
		return nil, protocol.Errorf(protocol.ErrConflict, "%s is claimed by %s", c.ID, c.FactionID)
	}
	owned := w.territory.CountClaimedBy(f.ID)
	if w.cfg.MaxClaims > 0 && owned >= w.cfg.MaxClaims {
		return nil, protocol.Errorf(protocol.ErrBlocked, "%s holds the maximum of %d claims", f.ID, w.cfg.MaxClaims)
	}
	if owned > 0 && w.cfg.RequireContiguous && w.territory.ContiguousClaimedNeighbors(c.ID, f.ID) == 0 {
		return nil, protocol.Errorf(protocol.ErrBlocked, "%s does not border %s territory", c.ID, f.ID)
	}
	structure, ok := w.host.ControllerAt(pos)
	if !ok {
		return nil, protocol.Errorf(protocol.ErrInvalidTarget, "no claim structure at this position")
	}
	if prev := w.anchoredClaim(structure); prev != nil {
		return nil, protocol.Errorf(protocol.ErrConflict, "structure already anchors %s", prev.ID)
	}
	if !w.host.Take(userID, w.cfg.ScrapItem, w.cfg.ClaimCost) {
		return nil, protocol.Errorf(protocol.ErrNoResource, "claiming costs %d %s", w.cfg.ClaimCost, w.cfg.ScrapItem)
	}
	typ := model.CellClaimed
	if owned == 0 {
		typ = model.CellHeadquarters
	}
	if err := w.territory.Claim(c.ID, typ, f.ID, userID, structure); err != nil {
		return nil, err
	}
	return c, nil
}

// Unclaim releases one of the caller's cells. The headquarters can only go
// last.
func (w *World) Unclaim(userID, cellID string) error {
	f, err := w.leaderOf(userID)
	if err != nil {
		return err
	}
	c, err := w.ownedCell(f, cellID)
	if err != nil {
		return err
	}
	if c.Type == model.CellHeadquarters && w.territory.CountClaimedBy(f.ID) > 1 {
		return protocol.Errorf(protocol.ErrBlocked, "move the headquarters before releasing %s", c.ID)
	}
	return w.territory.Unclaim(c.ID)
}

func (w *World) SetHeadquarters(userID, cellID string) error {
	f, err := w.leaderOf(userID)
	if err != nil {
		return err
	}
	c, err := w.ownedCell(f, cellID)
	if err != nil {
		return err
	}
	return w.territory.SetHeadquarters(c.ID, f.ID)
}

func (w *World) RenameCell(userID, cellID, name string) error {
	f, err := w.leaderOf(userID)
	if err != nil {
		return err
	}
	c, err := w.ownedCell(f, cellID)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n > maxCellNameLength {
		return protocol.Errorf(protocol.ErrBadRequest, "cell names are at most %d characters", maxCellNameLength)
	}
	return w.territory.SetName(c.ID, name)
}

// UpgradeCell raises the cell one level, paying LevelCosts[current level].
func (w *World) UpgradeCell(userID, cellID string) (int, error) {
	f, err := w.leaderOf(userID)
	if err != nil {
		return 0, err
	}
	c, err := w.ownedCell(f, cellID)
	if err != nil {
		return 0, err
	}
	if c.Level >= len(w.cfg.LevelCosts) {
		return c.Level, protocol.Errorf(protocol.ErrBlocked, "%s is at the maximum level", c.ID)
	}
	cost := w.cfg.LevelCosts[c.Level]
	if !w.host.Take(userID, w.cfg.ScrapItem, cost) {
		return c.Level, protocol.Errorf(protocol.ErrNoResource, "upgrading costs %d %s", cost, w.cfg.ScrapItem)
	}
	if err := w.territory.SetLevel(c.ID, c.Level+1); err != nil {
		return c.Level, err
	}
	return c.Level, nil
}

// SetArmory assigns the structure controlling pos as the cell's armory. The
// position must lie inside the cell.
func (w *World) SetArmory(userID, cellID string, pos model.Vec3) error {
	f, err := w.leaderOf(userID)
	if err != nil {
		return err
	}
	c, err := w.ownedCell(f, cellID)
	if err != nil {
		return err
	}
	if at := w.territory.CellAt(pos); at != c {
		return protocol.Errorf(protocol.ErrInvalidTarget, "the armory must stand inside %s", c.ID)
	}
	armory, ok := w.host.ControllerAt(pos)
	if !ok {
		return protocol.Errorf(protocol.ErrInvalidTarget, "no structure at this position")
	}
	return w.territory.SetArmory(c.ID, armory)
}

// MarkBadlands turns cells into permanent PvP land. Existing claims are
// released.
func (w *World) MarkBadlands(cellIDs ...string) error {
	for _, id := range cellIDs {
		if w.territory.Get(id) == nil {
			return protocol.Errorf(protocol.ErrInvalidTarget, "unknown cell %q", id)
		}
	}
	return w.territory.AddBadlands(cellIDs...)
}
