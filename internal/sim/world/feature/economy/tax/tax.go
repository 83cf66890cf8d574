package tax

import (
	"math"

	"outpost.gg/internal/sim/world/kernel/model"
	"outpost.gg/internal/sim/world/logic/mathx"
)

type Config struct {
	// OwnershipBonus is the extra yield fraction for members harvesting their
	// own faction's land.
	OwnershipBonus float64
	// BadlandsBonus is the extra yield fraction for anyone harvesting in a
	// badlands cell.
	BadlandsBonus float64
}

type Harvest struct {
	Amount int
	Cell   *model.Cell
	// Owner is the faction owning Cell, nil when unclaimed.
	Owner *model.Faction
	// HarvesterFactionID is empty for unaffiliated players.
	HarvesterFactionID string
	// ChestFull reports whether Owner's tax chest can take more.
	ChestFull bool
}

type Split struct {
	Harvester int
	Tax       int
	Chest     model.EntityID
}

// EffectiveRate clamps a faction tax rate to [0,1].
func EffectiveRate(rate float64) float64 {
	return mathx.Clamp01(rate)
}

// SplitHarvest divides a harvest between the harvester and the owning
// faction's tax chest. Tax is only taken when there is a chest able to hold it.
// Bonuses are computed on the untaxed amount.
func SplitHarvest(cfg Config, h Harvest) Split {
	if h.Amount <= 0 {
		return Split{}
	}
	out := Split{Harvester: h.Amount}
	if h.Cell.IsTaxableClaim() && h.Owner != nil && h.Owner.ID == h.Cell.FactionID {
		if h.Owner.TaxChest != 0 && !h.ChestFull {
			out.Tax = int(math.Floor(float64(h.Amount) * EffectiveRate(h.Owner.TaxRate)))
			if out.Tax > 0 {
				out.Chest = h.Owner.TaxChest
				out.Harvester -= out.Tax
			}
		}
		if h.HarvesterFactionID != "" && h.HarvesterFactionID == h.Owner.ID {
			out.Harvester += bonus(h.Amount, cfg.OwnershipBonus)
		}
	}
	if h.Cell != nil && h.Cell.Type == model.CellBadlands {
		out.Harvester += bonus(h.Amount, cfg.BadlandsBonus)
	}
	return out
}

func bonus(amount int, frac float64) int {
	if frac <= 0 || math.IsNaN(frac) {
		return 0
	}
	return int(math.Floor(float64(amount) * frac))
}
