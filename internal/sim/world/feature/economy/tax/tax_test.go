package tax

import (
	"testing"

	"outpost.gg/internal/sim/world/kernel/model"
)

func TestSplitHarvest(t *testing.T) {
	cfg := Config{OwnershipBonus: 0.5, BadlandsBonus: 0.2}
	claimed := &model.Cell{ID: "B2", Type: model.CellClaimed, FactionID: "RUST"}
	rust := &model.Faction{ID: "RUST", TaxRate: 0.1, TaxChest: 9}

	got := SplitHarvest(cfg, Harvest{Amount: 100, Cell: claimed, Owner: rust, HarvesterFactionID: "RUST"})
	if got.Tax != 10 || got.Chest != 9 || got.Harvester != 140 {
		t.Fatalf("member harvest: %+v", got)
	}

	got = SplitHarvest(cfg, Harvest{Amount: 100, Cell: claimed, Owner: rust, HarvesterFactionID: "IRON"})
	if got.Tax != 10 || got.Harvester != 90 {
		t.Fatalf("outsider harvest: %+v", got)
	}

	got = SplitHarvest(cfg, Harvest{Amount: 100, Cell: claimed, Owner: rust, ChestFull: true})
	if got.Tax != 0 || got.Chest != 0 || got.Harvester != 100 {
		t.Fatalf("full chest must not tax: %+v", got)
	}

	noChest := &model.Faction{ID: "RUST", TaxRate: 0.1}
	got = SplitHarvest(cfg, Harvest{Amount: 100, Cell: claimed, Owner: noChest})
	if got.Tax != 0 || got.Harvester != 100 {
		t.Fatalf("missing chest must not tax: %+v", got)
	}

	badlands := &model.Cell{ID: "C3", Type: model.CellBadlands}
	got = SplitHarvest(cfg, Harvest{Amount: 100, Cell: badlands, HarvesterFactionID: "RUST"})
	if got.Tax != 0 || got.Harvester != 120 {
		t.Fatalf("badlands bonus: %+v", got)
	}

	if got := SplitHarvest(cfg, Harvest{Amount: 7}); got.Harvester != 7 || got.Tax != 0 {
		t.Fatalf("no cell: %+v", got)
	}
}

func TestEffectiveRate(t *testing.T) {
	if EffectiveRate(1.5) != 1 || EffectiveRate(-1) != 0 || EffectiveRate(0.3) != 0.3 {
		t.Fatalf("rate must clamp to [0,1]")
	}
}
