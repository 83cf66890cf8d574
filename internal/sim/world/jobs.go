package world

import (
	"time"

	"outpost.gg/internal/sim/world/feature/territory"
	"outpost.gg/internal/sim/world/kernel/model"
)

const (
	jobIntegrity    = "integrity"
	jobEliminations = "eliminations"
	jobZones        = "zones"
	jobSnapshot     = "snapshot"
	upkeepPrefix    = "upkeep:"
)

func (w *World) registerJobs() {
	w.timers.Every(jobIntegrity, "", w.cfg.IntegrityInterval, w.runIntegrity)
	w.timers.Every(jobEliminations, "", w.cfg.SweepInterval, w.runEliminations)
	w.timers.Every(jobZones, "", w.cfg.ZoneSweepInterval, w.runZoneSweep)
	if w.cfg.SnapshotEvery > 0 {
		w.timers.Every(jobSnapshot, "", w.cfg.SnapshotEvery, w.runSnapshot)
	}
}

// scheduleUpkeep registers the per-faction upkeep job. The job is owned by the
// faction so disbanding cancels it.
func (w *World) scheduleUpkeep(factionID string) {
	w.timers.Every(upkeepPrefix+factionID, factionID, w.cfg.UpkeepCheckInterval, func(now time.Time) {
		f := w.factions.Get(factionID)
		if f == nil {
			return
		}
		if _, err := w.upkeep.Collect(f, now); err != nil {
			w.logger.Printf("[upkeep] %s: %v", factionID, err)
		}
	})
}

func (w *World) resolver() territory.Resolver {
	return territory.ResolverFunc(w.host.Exists)
}

func (w *World) runIntegrity(time.Time) {
	if repaired := w.territory.CheckIntegrity(w.resolver()); len(repaired) > 0 {
		w.logger.Printf("[integrity] repaired cells %v", repaired)
	}
	for _, z := range w.zones.All() {
		if z.Owner != 0 && !w.host.Exists(z.Owner) {
			w.zones.Remove(z.ID, "owner removed")
		}
	}
}

func (w *World) runEliminations(now time.Time) {
	for _, war := range w.diplomacy.SweepEliminations(w.territory.CountClaimedBy, now) {
		w.logger.Printf("[diplomacy] war %s ended: %s", war.ID, war.EndReason)
	}
}

func (w *World) runZoneSweep(now time.Time) {
	w.zones.SweepExpired(now)
}

// StructureDestroyed lets the host report a destroyed entity instead of
// waiting for the integrity job.
func (w *World) StructureDestroyed(id model.EntityID) []string {
	cells := w.territory.StructureDestroyed(id)
	w.zones.RemoveByOwner(id)
	return cells
}
