// Package tuning loads the server's gameplay configuration from YAML with
// environment overrides, and turns it into a world.WorldConfig.
package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"outpost.gg/internal/sim/world"
	"outpost.gg/internal/sim/world/feature/economy/tax"
	"outpost.gg/internal/sim/world/feature/governance/diplomacy"
	"outpost.gg/internal/sim/world/feature/governance/factions"
	"outpost.gg/internal/sim/world/feature/governance/upkeep"
	"outpost.gg/internal/sim/world/feature/pins"
	"outpost.gg/internal/sim/world/kernel/model"
	"outpost.gg/internal/sim/world/policy/combat"
)

// EnvPrefix namespaces environment overrides, e.g. OUTPOST_UPKEEP_PERIOD.
const EnvPrefix = "OUTPOST_"

//go:embed tuning.schema.json
var schemaJSON string

type Tuning struct {
	WorldID      string `yaml:"world_id" env:"WORLD_ID"`
	TickRateHz   int    `yaml:"tick_rate_hz" env:"TICK_RATE_HZ"`
	EventBacklog int    `yaml:"event_backlog" env:"EVENT_BACKLOG"`

	Grid      Grid      `yaml:"grid" envPrefix:"GRID_"`
	Claims    Claims    `yaml:"claims" envPrefix:"CLAIMS_"`
	Players   Players   `yaml:"players" envPrefix:"PLAYERS_"`
	Factions  Factions  `yaml:"factions" envPrefix:"FACTIONS_"`
	Diplomacy Diplomacy `yaml:"diplomacy" envPrefix:"DIPLOMACY_"`
	Upkeep    Upkeep    `yaml:"upkeep" envPrefix:"UPKEEP_"`
	Tax       Tax       `yaml:"tax" envPrefix:"TAX_"`
	Combat    Combat    `yaml:"combat" envPrefix:"COMBAT_"`
	Pins      Pins      `yaml:"pins" envPrefix:"PINS_"`
	Intervals Intervals `yaml:"intervals" envPrefix:"INTERVALS_"`

	// Zones is keyed by zone type. A zero radius or duration keeps the
	// built-in value.
	Zones     map[string]Zone `yaml:"zones"`
	Monuments []Monument      `yaml:"monuments"`
}

type Grid struct {
	MapSize            float64 `yaml:"map_size" env:"MAP_SIZE"`
	CellSize           float64 `yaml:"cell_size" env:"CELL_SIZE"`
	Offset             float64 `yaml:"offset" env:"OFFSET"`
	ExcludeUnderground bool    `yaml:"exclude_underground" env:"EXCLUDE_UNDERGROUND"`
	UndergroundY       float64 `yaml:"underground_y" env:"UNDERGROUND_Y"`
}

type Claims struct {
	MinFactionMembers int    `yaml:"min_faction_members" env:"MIN_FACTION_MEMBERS"`
	MaxClaims         int    `yaml:"max_claims" env:"MAX_CLAIMS"`
	RequireContiguous bool   `yaml:"require_contiguous" env:"REQUIRE_CONTIGUOUS"`
	Cost              int    `yaml:"cost" env:"COST"`
	ScrapItem         string `yaml:"scrap_item" env:"SCRAP_ITEM"`
	LevelCosts        []int  `yaml:"level_costs" env:"LEVEL_COSTS" envSeparator:","`
}

type Players struct {
	PvPToggleCooldown time.Duration `yaml:"pvp_toggle_cooldown" env:"PVP_TOGGLE_COOLDOWN"`
}

type Factions struct {
	MinIDLength      int           `yaml:"min_id_length" env:"MIN_ID_LENGTH"`
	MaxIDLength      int           `yaml:"max_id_length" env:"MAX_ID_LENGTH"`
	DefaultTaxRate   float64       `yaml:"default_tax_rate" env:"DEFAULT_TAX_RATE"`
	MaxTaxRate       float64       `yaml:"max_tax_rate" env:"MAX_TAX_RATE"`
	BadlandsCooldown time.Duration `yaml:"badlands_cooldown" env:"BADLANDS_COOLDOWN"`
}

type Diplomacy struct {
	AdminApprovalRequired    bool          `yaml:"admin_approval_required" env:"ADMIN_APPROVAL_REQUIRED"`
	DefenderApprovalRequired bool          `yaml:"defender_approval_required" env:"DEFENDER_APPROVAL_REQUIRED"`
	NewFactionProtection     time.Duration `yaml:"new_faction_protection" env:"NEW_FACTION_PROTECTION"`
	MinReasonLength          int           `yaml:"min_reason_length" env:"MIN_REASON_LENGTH"`
	MaxReasonLength          int           `yaml:"max_reason_length" env:"MAX_REASON_LENGTH"`
	MinDefendersOnline       int           `yaml:"min_defenders_online" env:"MIN_DEFENDERS_ONLINE"`
	DeclarationCost          int           `yaml:"declaration_cost" env:"DECLARATION_COST"`
}

type Upkeep struct {
	Period        time.Duration `yaml:"period" env:"PERIOD"`
	GracePeriod   time.Duration `yaml:"grace_period" env:"GRACE_PERIOD"`
	Item          string        `yaml:"item" env:"ITEM"`
	Costs         []int         `yaml:"costs" env:"COSTS" envSeparator:","`
	CheckInterval time.Duration `yaml:"check_interval" env:"CHECK_INTERVAL"`
}

type Tax struct {
	OwnershipBonus float64 `yaml:"ownership_bonus" env:"OWNERSHIP_BONUS"`
	BadlandsBonus  float64 `yaml:"badlands_bonus" env:"BADLANDS_BONUS"`
}

type Combat struct {
	RestrictPvP     bool      `yaml:"restrict_pvp" env:"RESTRICT_PVP"`
	RestrictRaiding bool      `yaml:"restrict_raiding" env:"RESTRICT_RAIDING"`
	PvP             PvPRules  `yaml:"pvp" envPrefix:"PVP_"`
	Raiding         RaidRules `yaml:"raiding" envPrefix:"RAIDING_"`
	DefensiveBonus  []float64 `yaml:"defensive_bonuses" env:"DEFENSIVE_BONUSES" envSeparator:","`
	OwnTerritory    float64   `yaml:"own_territory_damage_scale" env:"OWN_TERRITORY_DAMAGE_SCALE"`
	Underground     bool      `yaml:"underground_enabled" env:"UNDERGROUND_ENABLED"`
	UndergroundY    float64   `yaml:"underground_y" env:"UNDERGROUND_Y"`
	DeepWater       bool      `yaml:"deep_water_enabled" env:"DEEP_WATER_ENABLED"`
	DeepWaterY      float64   `yaml:"deep_water_y" env:"DEEP_WATER_Y"`
}

type PvPRules struct {
	Badlands    bool `yaml:"badlands" env:"BADLANDS"`
	ClaimedLand bool `yaml:"claimed_land" env:"CLAIMED_LAND"`
	Wilderness  bool `yaml:"wilderness" env:"WILDERNESS"`
	EventZones  bool `yaml:"event_zones" env:"EVENT_ZONES"`
	Monuments   bool `yaml:"monuments" env:"MONUMENTS"`
	RaidZones   bool `yaml:"raid_zones" env:"RAID_ZONES"`
	Underground bool `yaml:"underground" env:"UNDERGROUND"`
	DeepWater   bool `yaml:"deep_water" env:"DEEP_WATER"`
}

type RaidRules struct {
	Badlands    bool `yaml:"badlands" env:"BADLANDS"`
	ClaimedLand bool `yaml:"claimed_land" env:"CLAIMED_LAND"`
	Wilderness  bool `yaml:"wilderness" env:"WILDERNESS"`
}

type Pins struct {
	MinNameLength int `yaml:"min_name_length" env:"MIN_NAME_LENGTH"`
	MaxNameLength int `yaml:"max_name_length" env:"MAX_NAME_LENGTH"`
	Cost          int `yaml:"cost" env:"COST"`
}

type Intervals struct {
	Integrity time.Duration `yaml:"integrity" env:"INTEGRITY"`
	Sweep     time.Duration `yaml:"sweep" env:"SWEEP"`
	ZoneSweep time.Duration `yaml:"zone_sweep" env:"ZONE_SWEEP"`
	Snapshot  time.Duration `yaml:"snapshot" env:"SNAPSHOT"`
}

type Zone struct {
	Radius   float64       `yaml:"radius"`
	Duration time.Duration `yaml:"duration"`
}

type Monument struct {
	Name   string  `yaml:"name"`
	X      float64 `yaml:"x"`
	Z      float64 `yaml:"z"`
	Radius float64 `yaml:"radius"`
}

// Defaults mirrors world.DefaultConfig.
func Defaults() Tuning {
	d := world.DefaultConfig()
	t := Tuning{
		WorldID:      d.ID,
		TickRateHz:   d.TickRateHz,
		EventBacklog: d.EventBacklog,
		Grid:         Grid{MapSize: d.MapSize, CellSize: d.CellSize},
		Claims: Claims{
			MinFactionMembers: d.MinFactionMembers,
			RequireContiguous: d.RequireContiguous,
			Cost:              d.ClaimCost,
			ScrapItem:         d.ScrapItem,
			LevelCosts:        d.LevelCosts,
		},
		Players: Players{PvPToggleCooldown: d.PvPToggleCooldown},
		Factions: Factions{
			MinIDLength:      d.Factions.MinIDLength,
			MaxIDLength:      d.Factions.MaxIDLength,
			DefaultTaxRate:   d.Factions.DefaultTaxRate,
			MaxTaxRate:       d.Factions.MaxTaxRate,
			BadlandsCooldown: d.Factions.BadlandsCooldown,
		},
		Diplomacy: Diplomacy{
			AdminApprovalRequired:    d.Diplomacy.AdminApprovalRequired,
			DefenderApprovalRequired: d.Diplomacy.DefenderApprovalRequired,
			NewFactionProtection:     d.Diplomacy.NewFactionProtection,
			MinReasonLength:          d.Diplomacy.MinReasonLength,
			MaxReasonLength:          d.Diplomacy.MaxReasonLength,
		},
		Upkeep: Upkeep{
			Period:        d.Upkeep.Period,
			GracePeriod:   d.Upkeep.GracePeriod,
			Item:          d.Upkeep.Item,
			Costs:         d.Upkeep.Costs,
			CheckInterval: d.UpkeepCheckInterval,
		},
		Tax: Tax{OwnershipBonus: d.Tax.OwnershipBonus, BadlandsBonus: d.Tax.BadlandsBonus},
		Combat: Combat{
			RestrictPvP:     d.Combat.RestrictPvP,
			RestrictRaiding: d.Combat.RestrictRaiding,
			PvP: PvPRules{
				Badlands:   d.Combat.PvP.AllowedInBadlands,
				EventZones: d.Combat.PvP.AllowedInEventZones,
				RaidZones:  d.Combat.PvP.AllowedInRaidZones,
			},
			Raiding:        RaidRules{Badlands: d.Combat.Raiding.AllowedInBadlands},
			DefensiveBonus: d.Combat.DefensiveBonuses,
			OwnTerritory:   d.Combat.OwnTerritoryDamageScale,
		},
		Pins: Pins{MinNameLength: 1, MaxNameLength: 20, Cost: d.PinCost},
		Intervals: Intervals{
			Integrity: d.IntegrityInterval,
			Sweep:     d.SweepInterval,
			ZoneSweep: d.ZoneSweepInterval,
		},
	}
	return t
}

// Load reads path (if non-empty) over the defaults, applies OUTPOST_*
// environment overrides and validates the result.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return t, err
		}
		name := filepath.Base(path)
		if err := ValidateDocument(raw); err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := ApplyEnv(&t); err != nil {
		return t, err
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func ApplyEnv(t *Tuning) error {
	if err := env.ParseWithOptions(t, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

var (
	schemaOnce sync.Once
	compiled   *jsonschema.Schema
	schemaErr  error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiled, schemaErr = jsonschema.CompileString("tuning.schema.json", schemaJSON)
	})
	return compiled, schemaErr
}

// ValidateDocument checks a raw YAML document against the embedded schema.
func ValidateDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("tuning is not representable as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return s.Validate(v)
}

// Validate applies the checks the schema cannot express.
func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz <= 0 {
		errs = append(errs, errors.New("tick_rate_hz must be positive"))
	}
	if !(t.Grid.MapSize > 0) || !(t.Grid.CellSize > 0) || t.Grid.CellSize > t.Grid.MapSize {
		errs = append(errs, fmt.Errorf("grid: bad dimensions map=%v cell=%v", t.Grid.MapSize, t.Grid.CellSize))
	}
	if t.Factions.MaxIDLength < t.Factions.MinIDLength {
		errs = append(errs, errors.New("factions: max_id_length below min_id_length"))
	}
	if t.Factions.DefaultTaxRate > t.Factions.MaxTaxRate {
		errs = append(errs, errors.New("factions: default_tax_rate above max_tax_rate"))
	}
	if t.Diplomacy.MaxReasonLength < t.Diplomacy.MinReasonLength {
		errs = append(errs, errors.New("diplomacy: max_reason_length below min_reason_length"))
	}
	if t.Pins.MaxNameLength < t.Pins.MinNameLength {
		errs = append(errs, errors.New("pins: max_name_length below min_name_length"))
	}
	for _, c := range append(append([]int{}, t.Upkeep.Costs...), t.Claims.LevelCosts...) {
		if c < 0 {
			errs = append(errs, fmt.Errorf("negative cost %d", c))
		}
	}
	for _, b := range t.Combat.DefensiveBonus {
		if b < 0 || b > 1 {
			errs = append(errs, fmt.Errorf("combat: defensive bonus %v outside [0,1]", b))
		}
	}
	for typ := range t.Zones {
		if !model.ZoneType(typ).Valid() {
			errs = append(errs, fmt.Errorf("zones: unknown zone type %q", typ))
		}
	}
	half := t.Grid.MapSize / 2
	for _, m := range t.Monuments {
		if m.X < -half || m.X > half || m.Z < -half || m.Z > half {
			errs = append(errs, fmt.Errorf("monument %q lies outside the map", m.Name))
		}
	}
	for name, d := range map[string]time.Duration{
		"upkeep.period":        t.Upkeep.Period,
		"upkeep.grace_period":  t.Upkeep.GracePeriod,
		"intervals.integrity":  t.Intervals.Integrity,
		"intervals.snapshot":   t.Intervals.Snapshot,
		"players.pvp_cooldown": t.Players.PvPToggleCooldown,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	return errors.Join(errs...)
}

func (t Tuning) WorldConfig() world.WorldConfig {
	cfg := world.WorldConfig{
		ID:                 t.WorldID,
		TickRateHz:         t.TickRateHz,
		MapSize:            t.Grid.MapSize,
		CellSize:           t.Grid.CellSize,
		GridOffset:         t.Grid.Offset,
		ExcludeUnderground: t.Grid.ExcludeUnderground,
		UndergroundY:       t.Grid.UndergroundY,
		MinFactionMembers:  t.Claims.MinFactionMembers,
		MaxClaims:          t.Claims.MaxClaims,
		RequireContiguous:  t.Claims.RequireContiguous,
		ClaimCost:          t.Claims.Cost,
		ScrapItem:          t.Claims.ScrapItem,
		LevelCosts:         append([]int(nil), t.Claims.LevelCosts...),
		PinCost:            t.Pins.Cost,
		PvPToggleCooldown:  t.Players.PvPToggleCooldown,
		Factions: factions.Config{
			MinIDLength:      t.Factions.MinIDLength,
			MaxIDLength:      t.Factions.MaxIDLength,
			DefaultTaxRate:   t.Factions.DefaultTaxRate,
			MaxTaxRate:       t.Factions.MaxTaxRate,
			BadlandsCooldown: t.Factions.BadlandsCooldown,
		},
		Diplomacy: diplomacy.Config{
			AdminApprovalRequired:    t.Diplomacy.AdminApprovalRequired,
			DefenderApprovalRequired: t.Diplomacy.DefenderApprovalRequired,
			NewFactionProtection:     t.Diplomacy.NewFactionProtection,
			MinReasonLength:          t.Diplomacy.MinReasonLength,
			MaxReasonLength:          t.Diplomacy.MaxReasonLength,
			MinDefendersOnline:       t.Diplomacy.MinDefendersOnline,
			DeclarationCost:          t.Diplomacy.DeclarationCost,
		},
		Upkeep: upkeep.Config{
			Period:      t.Upkeep.Period,
			GracePeriod: t.Upkeep.GracePeriod,
			Item:        t.Upkeep.Item,
			Costs:       append([]int(nil), t.Upkeep.Costs...),
		},
		Tax: tax.Config{OwnershipBonus: t.Tax.OwnershipBonus, BadlandsBonus: t.Tax.BadlandsBonus},
		Combat: combat.Policy{
			RestrictPvP: t.Combat.RestrictPvP,
			PvP: combat.PvPRules{
				AllowedInBadlands:    t.Combat.PvP.Badlands,
				AllowedInClaimedLand: t.Combat.PvP.ClaimedLand,
				AllowedInWilderness:  t.Combat.PvP.Wilderness,
				AllowedInEventZones:  t.Combat.PvP.EventZones,
				AllowedInMonuments:   t.Combat.PvP.Monuments,
				AllowedInRaidZones:   t.Combat.PvP.RaidZones,
				AllowedUnderground:   t.Combat.PvP.Underground,
				AllowedInDeepWater:   t.Combat.PvP.DeepWater,
			},
			RestrictRaiding: t.Combat.RestrictRaiding,
			Raiding: combat.RaidRules{
				AllowedInBadlands:    t.Combat.Raiding.Badlands,
				AllowedInClaimedLand: t.Combat.Raiding.ClaimedLand,
				AllowedInWilderness:  t.Combat.Raiding.Wilderness,
			},
			DefensiveBonuses:        append([]float64(nil), t.Combat.DefensiveBonus...),
			OwnTerritoryDamageScale: t.Combat.OwnTerritory,
			UndergroundEnabled:      t.Combat.Underground,
			UndergroundY:            t.Combat.UndergroundY,
			DeepWaterEnabled:        t.Combat.DeepWater,
			DeepWaterY:              t.Combat.DeepWaterY,
		},
		Pins:                pins.Config{MinNameLength: t.Pins.MinNameLength, MaxNameLength: t.Pins.MaxNameLength},
		UpkeepCheckInterval: t.Upkeep.CheckInterval,
		IntegrityInterval:   t.Intervals.Integrity,
		SweepInterval:       t.Intervals.Sweep,
		ZoneSweepInterval:   t.Intervals.ZoneSweep,
		SnapshotEvery:       t.Intervals.Snapshot,
		EventBacklog:        t.EventBacklog,
	}
	if len(t.Zones) > 0 {
		cfg.ZoneRadii = map[model.ZoneType]float64{}
		cfg.ZoneDurations = map[model.ZoneType]time.Duration{}
		for typ, z := range t.Zones {
			if z.Radius > 0 {
				cfg.ZoneRadii[model.ZoneType(typ)] = z.Radius
			}
			if z.Duration > 0 {
				cfg.ZoneDurations[model.ZoneType(typ)] = z.Duration
			}
		}
	}
	for _, m := range t.Monuments {
		cfg.Monuments = append(cfg.Monuments, world.MonumentConfig{
			Name:   m.Name,
			Center: model.Vec3{X: m.X, Z: m.Z},
			Radius: m.Radius,
		})
	}
	return cfg
}
