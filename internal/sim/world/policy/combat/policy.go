package combat

type PvPRules struct {
	AllowedInBadlands    bool
	AllowedInClaimedLand bool
	AllowedInWilderness  bool
	AllowedInEventZones  bool
	AllowedInMonuments   bool
	AllowedInRaidZones   bool
	AllowedUnderground   bool
	AllowedInDeepWater   bool
}

type RaidRules struct {
	AllowedInBadlands    bool
	AllowedInClaimedLand bool
	AllowedInWilderness  bool
}

type Policy struct {
	RestrictPvP bool
	PvP         PvPRules

	RestrictRaiding bool
	Raiding         RaidRules

	// DefensiveBonuses[d] is the damage reduction for a structure at defensive
	// depth d; depths past the end use the last entry.
	DefensiveBonuses []float64

	// OwnTerritoryDamageScale applies when a non-leader damages structures in
	// their own faction's land.
	OwnTerritoryDamageScale float64

	// Positions with Y below UndergroundY count as underground when
	// UndergroundEnabled is set; below DeepWaterY as deep water when
	// DeepWaterEnabled is set.
	UndergroundEnabled bool
	UndergroundY       float64
	DeepWaterEnabled   bool
	DeepWaterY         float64
}

func DefaultPolicy() Policy {
	return Policy{
		RestrictPvP: true,
		PvP: PvPRules{
			AllowedInBadlands:   true,
			AllowedInEventZones: true,
			AllowedInRaidZones:  true,
		},
		RestrictRaiding: true,
		Raiding: RaidRules{
			AllowedInBadlands: true,
		},
		DefensiveBonuses:        []float64{0, 0.25, 0.5, 0.75},
		OwnTerritoryDamageScale: 0.2,
	}
}

// Category classifies damageable entities.
type Category string

const (
	BuildingBlock Category = "BUILDING_BLOCK"
	Door          Category = "DOOR"
	Deployable    Category = "DEPLOYABLE"
	Container     Category = "CONTAINER"
	Turret        Category = "TURRET"
	Trap          Category = "TRAP"
	Barricade     Category = "BARRICADE"
	Vehicle       Category = "VEHICLE"
	Other         Category = "OTHER"
)

// Protected reports whether the raid rules guard this category.
func (c Category) Protected() bool {
	switch c {
	case BuildingBlock, Door, Deployable, Container, Turret:
		return true
	}
	return false
}
