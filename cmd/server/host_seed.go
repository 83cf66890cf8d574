package main

import (
	"outpost.gg/internal/persistence/snapshot"
	"outpost.gg/internal/sim/world"
	"outpost.gg/internal/sim/world/grid"
	"outpost.gg/internal/sim/world/kernel/model"
)

// seedHost re-creates the structures a snapshot refers to. The standalone
// server has no game host behind it, so claim and armory structures come back
// at their cell centres and tax chests as plain containers.
func seedHost(host *world.MemoryHost, g grid.Grid, snap snapshot.SnapshotV1) int {
	n := 0
	for _, c := range snap.Cells {
		row, col, ok := g.Parse(c.ID)
		if !ok {
			continue
		}
		center, size := g.Bounds(row, col)
		if c.ClaimStructure != 0 {
			host.Restore(model.EntityID(c.ClaimStructure), center, size/2)
			n++
		}
		if c.ArmoryStructure != 0 {
			host.Restore(model.EntityID(c.ArmoryStructure), center, -1)
			n++
		}
	}
	for _, f := range snap.Factions {
		if f.TaxChest != 0 {
			host.Restore(model.EntityID(f.TaxChest), model.Vec3{}, -1)
			n++
		}
	}
	return n
}
