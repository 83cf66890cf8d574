// Package territory owns the cell records of the claim grid.
//
// All legality checks (faction size, contiguity, claim limits) happen in the
// caller; the store only keeps the records consistent: one record per grid
// coordinate, no faction on wilderness or badlands cells, and at most one
// headquarters per faction.
package territory

import (
	"log"

	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/events"
	"outpost.gg/internal/sim/world/grid"
	"outpost.gg/internal/sim/world/kernel/model"
)

// Resolver answers whether a host structure still exists.
type Resolver interface {
	Exists(id model.EntityID) bool
}

type ResolverFunc func(id model.EntityID) bool

func (f ResolverFunc) Exists(id model.EntityID) bool { return f(id) }

// Store is not safe for concurrent use; the world loop owns it.
// Returned cells point at live records and must be treated as read-only.
type Store struct {
	grid   grid.Grid
	cells  []*model.Cell
	byID   map[string]*model.Cell
	hq     map[string]*model.Cell // faction id -> headquarters cell
	sink   events.Sink
	logger *log.Logger
}

func New(g grid.Grid, sink events.Sink, logger *log.Logger) *Store {
	if sink == nil {
		sink = events.Discard
	}
	s := &Store{
		grid:   g,
		cells:  make([]*model.Cell, g.NumCells()),
		byID:   make(map[string]*model.Cell, g.NumCells()),
		hq:     map[string]*model.Cell{},
		sink:   sink,
		logger: logger,
	}
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			center, size := g.Bounds(row, col)
			c := &model.Cell{
				ID:     g.ID(row, col),
				Row:    row,
				Col:    col,
				Center: center,
				Size:   size,
				Type:   model.CellWilderness,
			}
			s.cells[g.Index(row, col)] = c
			s.byID[c.ID] = c
		}
	}
	return s
}

func (s *Store) Grid() grid.Grid { return s.grid }

func (s *Store) Get(id string) *model.Cell { return s.byID[id] }

func (s *Store) GetAt(row, col int) *model.Cell {
	if !s.grid.InBounds(row, col) {
		return nil
	}
	return s.cells[s.grid.Index(row, col)]
}

func (s *Store) CellAt(pos model.Vec3) *model.Cell {
	row, col, ok := s.grid.CellAt(pos)
	if !ok {
		return nil
	}
	return s.cells[s.grid.Index(row, col)]
}

// GetAll returns every cell in row-major order.
func (s *Store) GetAll() []*model.Cell {
	return append([]*model.Cell(nil), s.cells...)
}

func (s *Store) GetAllByType(t model.CellType) []*model.Cell {
	return s.filter(func(c *model.Cell) bool { return c.Type == t })
}

func (s *Store) GetAllClaimedBy(factionID string) []*model.Cell {
	return s.filter(func(c *model.Cell) bool { return c.OwnedBy(factionID) })
}

// GetAllTaxableClaimsBy lists the claimed and headquarters cells of a faction.
func (s *Store) GetAllTaxableClaimsBy(factionID string) []*model.Cell {
	return s.filter(func(c *model.Cell) bool { return c.IsTaxableClaim() && c.FactionID == factionID })
}

func (s *Store) CountClaimedBy(factionID string) int {
	n := 0
	for _, c := range s.cells {
		if c.OwnedBy(factionID) {
			n++
		}
	}
	return n
}

func (s *Store) Headquarters(factionID string) *model.Cell { return s.hq[factionID] }

func (s *Store) filter(keep func(*model.Cell) bool) []*model.Cell {
	var out []*model.Cell
	for _, c := range s.cells {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) lookup(ids []string) ([]*model.Cell, error) {
	out := make([]*model.Cell, 0, len(ids))
	for _, id := range ids {
		c := s.byID[id]
		if c == nil {
			return nil, protocol.Invariantf("territory: unknown cell %q", id)
		}
		out = append(out, c)
	}
	return out, nil
}

// Claim assigns the cell to a faction. typ must be CLAIMED or HEADQUARTERS;
// claiming a headquarters demotes the faction's previous one.
func (s *Store) Claim(cellID string, typ model.CellType, factionID, claimantID string, structure model.EntityID) error {
	c := s.byID[cellID]
	if c == nil {
		return protocol.Invariantf("territory: unknown cell %q", cellID)
	}
	if typ != model.CellClaimed && typ != model.CellHeadquarters {
		return protocol.Invariantf("territory: cannot claim %s as %s", cellID, typ)
	}
	if factionID == "" {
		return protocol.Invariantf("territory: claim of %s without faction", cellID)
	}
	s.release(c)
	if typ == model.CellHeadquarters {
		s.demoteHeadquarters(factionID)
	}
	c.Type = typ
	c.FactionID = factionID
	c.ClaimantID = claimantID
	c.ClaimStructure = structure
	c.ArmoryStructure = 0
	c.Level = 0
	c.Name = ""
	if typ == model.CellHeadquarters {
		s.hq[factionID] = c
	}
	s.changed(c, "claim")
	return nil
}

// SetHeadquarters moves the faction's headquarters to cellID, which the faction
// must already own.
func (s *Store) SetHeadquarters(cellID, factionID string) error {
	c := s.byID[cellID]
	if c == nil {
		return protocol.Invariantf("territory: unknown cell %q", cellID)
	}
	if !c.OwnedBy(factionID) {
		return protocol.Invariantf("territory: %s is not owned by %s", cellID, factionID)
	}
	if c.Type == model.CellHeadquarters {
		return nil
	}
	s.demoteHeadquarters(factionID)
	c.Type = model.CellHeadquarters
	s.hq[factionID] = c
	s.changed(c, "headquarters")
	return nil
}

func (s *Store) demoteHeadquarters(factionID string) {
	old := s.hq[factionID]
	if old == nil {
		return
	}
	delete(s.hq, factionID)
	if old.Type == model.CellHeadquarters && old.FactionID == factionID {
		old.Type = model.CellClaimed
		s.changed(old, "demote")
	}
}

// Unclaim resets the cells to wilderness. Either every id resolves and all
// cells change, or nothing changes.
func (s *Store) Unclaim(cellIDs ...string) error {
	return s.reset(cellIDs, model.CellWilderness, "unclaim")
}

// AddBadlands resets the cells and marks them as always-PvP land.
func (s *Store) AddBadlands(cellIDs ...string) error {
	return s.reset(cellIDs, model.CellBadlands, "badlands")
}

func (s *Store) reset(ids []string, typ model.CellType, reason string) error {
	cells, err := s.lookup(ids)
	if err != nil {
		return err
	}
	for _, c := range cells {
		s.clearRecord(c, typ)
		s.changed(c, reason)
	}
	return nil
}

func (s *Store) release(c *model.Cell) {
	if c.Type == model.CellHeadquarters && s.hq[c.FactionID] == c {
		delete(s.hq, c.FactionID)
	}
}

func (s *Store) SetName(cellID, name string) error {
	c := s.byID[cellID]
	if c == nil {
		return protocol.Invariantf("territory: unknown cell %q", cellID)
	}
	c.Name = name
	s.changed(c, "rename")
	return nil
}

func (s *Store) SetLevel(cellID string, level int) error {
	c := s.byID[cellID]
	if c == nil {
		return protocol.Invariantf("territory: unknown cell %q", cellID)
	}
	if level < 0 {
		return protocol.Invariantf("territory: negative level %d for %s", level, cellID)
	}
	c.Level = level
	s.changed(c, "level")
	return nil
}

func (s *Store) SetArmory(cellID string, armory model.EntityID) error {
	c := s.byID[cellID]
	if c == nil {
		return protocol.Invariantf("territory: unknown cell %q", cellID)
	}
	if armory != 0 && !c.IsClaimed() {
		return protocol.Invariantf("territory: armory on unclaimed cell %s", cellID)
	}
	c.ArmoryStructure = armory
	s.changed(c, "armory")
	return nil
}

func (s *Store) changed(c *model.Cell, reason string) {
	s.sink.Publish(events.Event{
		Kind:      events.CellChanged,
		CellID:    c.ID,
		FactionID: c.FactionID,
		UserID:    c.ClaimantID,
		Details: map[string]any{
			"cell_type": string(c.Type),
			"reason":    reason,
			"level":     c.Level,
		},
	})
}

func (s *Store) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
