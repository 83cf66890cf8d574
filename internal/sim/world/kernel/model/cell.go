package model

type CellType string

const (
	CellWilderness   CellType = "WILDERNESS"
	CellClaimed      CellType = "CLAIMED"
	CellHeadquarters CellType = "HEADQUARTERS"
	CellBadlands     CellType = "BADLANDS"
)

func (t CellType) Valid() bool {
	switch t {
	case CellWilderness, CellClaimed, CellHeadquarters, CellBadlands:
		return true
	}
	return false
}

// Cell is one tile of the fixed world grid.
type Cell struct {
	ID     string
	Row    int
	Col    int
	Center Vec3
	Size   float64

	Type       CellType
	FactionID  string // empty unless Claimed/Headquarters
	ClaimantID string

	ClaimStructure  EntityID
	ArmoryStructure EntityID

	Level int
	Name  string
}

// IsClaimed reports whether the cell is owned by a faction.
func (c *Cell) IsClaimed() bool {
	return c != nil && (c.Type == CellClaimed || c.Type == CellHeadquarters)
}

func (c *Cell) IsTaxableClaim() bool {
	return c.IsClaimed() && c.FactionID != ""
}

func (c *Cell) OwnedBy(factionID string) bool {
	return c.IsClaimed() && factionID != "" && c.FactionID == factionID
}
