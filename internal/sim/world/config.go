package world

import (
	"time"

	"outpost.gg/internal/sim/world/feature/economy/tax"
	"outpost.gg/internal/sim/world/feature/governance/diplomacy"
	"outpost.gg/internal/sim/world/feature/governance/factions"
	"outpost.gg/internal/sim/world/feature/governance/upkeep"
	"outpost.gg/internal/sim/world/feature/pins"
	"outpost.gg/internal/sim/world/kernel/model"
	"outpost.gg/internal/sim/world/policy/combat"
)

type WorldConfig struct {
	ID         string
	TickRateHz int

	// Grid.
	MapSize            float64
	CellSize           float64
	GridOffset         float64
	ExcludeUnderground bool
	UndergroundY       float64

	// Claims.
	MinFactionMembers int
	MaxClaims         int // 0: unlimited
	RequireContiguous bool
	ClaimCost         int
	// ScrapItem is the currency for claim, pin and upgrade costs.
	ScrapItem string
	// LevelCosts[i] is the price of upgrading a cell from level i to i+1.
	LevelCosts []int

	PinCost           int
	PvPToggleCooldown time.Duration

	Factions  factions.Config
	Diplomacy diplomacy.Config
	Upkeep    upkeep.Config
	Tax       tax.Config
	Combat    combat.Policy
	Pins      pins.Config

	ZoneRadii     map[model.ZoneType]float64
	ZoneDurations map[model.ZoneType]time.Duration
	Monuments     []MonumentConfig

	// Operational intervals.
	UpkeepCheckInterval time.Duration
	IntegrityInterval   time.Duration
	SweepInterval       time.Duration
	ZoneSweepInterval   time.Duration
	SnapshotEvery       time.Duration // 0 disables periodic snapshots

	EventBacklog int
}

type MonumentConfig struct {
	Name   string
	Center model.Vec3
	Radius float64
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.MapSize <= 0 {
		c.MapSize = 3000
	}
	if c.CellSize <= 0 {
		c.CellSize = 150
	}
	if c.MinFactionMembers <= 0 {
		c.MinFactionMembers = 1
	}
	if c.ScrapItem == "" {
		c.ScrapItem = "scrap"
	}
	if c.ClaimCost < 0 {
		c.ClaimCost = 0
	}
	if c.PinCost < 0 {
		c.PinCost = 0
	}
	if c.Upkeep.Period <= 0 {
		c.Upkeep.Period = 24 * time.Hour
	}
	if c.Upkeep.Item == "" {
		c.Upkeep.Item = c.ScrapItem
	}
	if c.ZoneRadii == nil {
		c.ZoneRadii = map[model.ZoneType]float64{}
	}
	for typ, r := range map[model.ZoneType]float64{
		model.ZoneMonument:   150,
		model.ZoneDebris:     50,
		model.ZoneSupplyDrop: 50,
		model.ZoneRaid:       50,
		model.ZoneCargoShip:  100,
	} {
		if c.ZoneRadii[typ] <= 0 {
			c.ZoneRadii[typ] = r
		}
	}
	if c.ZoneDurations == nil {
		c.ZoneDurations = map[model.ZoneType]time.Duration{}
	}
	for typ, d := range map[model.ZoneType]time.Duration{
		model.ZoneDebris:     5 * time.Minute,
		model.ZoneSupplyDrop: 10 * time.Minute,
		model.ZoneRaid:       10 * time.Minute,
	} {
		if _, ok := c.ZoneDurations[typ]; !ok {
			c.ZoneDurations[typ] = d
		}
	}
	if c.UpkeepCheckInterval <= 0 {
		c.UpkeepCheckInterval = time.Minute
	}
	if c.IntegrityInterval <= 0 {
		c.IntegrityInterval = time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.ZoneSweepInterval <= 0 {
		c.ZoneSweepInterval = 5 * time.Second
	}
	if c.EventBacklog <= 0 {
		c.EventBacklog = 4096
	}
}

// DefaultConfig is the configuration used when no tuning file is present.
func DefaultConfig() WorldConfig {
	cfg := WorldConfig{
		RequireContiguous: true,
		LevelCosts:        []int{100, 250, 500},
		PvPToggleCooldown: 5 * time.Minute,
		Factions: factions.Config{
			MinIDLength:      2,
			MaxIDLength:      6,
			DefaultTaxRate:   0.1,
			MaxTaxRate:       0.5,
			BadlandsCooldown: 24 * time.Hour,
		},
		Diplomacy: diplomacy.Config{
			AdminApprovalRequired:    false,
			DefenderApprovalRequired: true,
			NewFactionProtection:     24 * time.Hour,
			MinReasonLength:          4,
			MaxReasonLength:          256,
		},
		Upkeep: upkeep.Config{
			Period:      24 * time.Hour,
			GracePeriod: 24 * time.Hour,
			Costs:       []int{10, 10, 20, 30},
		},
		Tax:     tax.Config{OwnershipBonus: 0.1, BadlandsBonus: 0.2},
		Combat:  combat.DefaultPolicy(),
		PinCost: 100,
	}
	cfg.applyDefaults()
	return cfg
}
