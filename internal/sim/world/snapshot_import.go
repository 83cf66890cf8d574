package world

import (
	"fmt"

	"outpost.gg/internal/persistence/snapshot"
	"outpost.gg/internal/sim/world/kernel/model"
)

// ImportSnapshot restores a saved world into a freshly constructed World.
// Stale references are repaired rather than rejected; the number of repairs is
// logged.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	if w.factions.Count() > 0 || len(w.territory.Export()) > 0 {
		return fmt.Errorf("import into a world that already has state")
	}
	if s.MapSize != w.cfg.MapSize || s.CellSize != w.cfg.CellSize || s.GridOffset != w.cfg.GridOffset {
		w.logger.Printf("[snapshot] grid changed (map %v/%v cell %v/%v); cell ids may not line up",
			s.MapSize, w.cfg.MapSize, s.CellSize, w.cfg.CellSize)
	}
	now := w.now()

	facs := make([]model.Faction, 0, len(s.Factions))
	for _, f := range s.Factions {
		facs = append(facs, model.Faction{
			ID:                    f.ID,
			OwnerID:               f.OwnerID,
			MemberIDs:             f.MemberIDs,
			ManagerIDs:            f.ManagerIDs,
			InviteIDs:             f.InviteIDs,
			TaxRate:               f.TaxRate,
			TaxChest:              model.EntityID(f.TaxChest),
			NextUpkeepPaymentTime: f.NextUpkeepPaymentTime,
			IsUpkeepPastDue:       f.IsUpkeepPastDue,
			IsBadlands:            f.IsBadlands,
			BadlandsToggleTime:    f.BadlandsToggleTime,
			CreationTime:          f.CreationTime,
		})
	}
	repaired := w.factions.Load(facs)
	for _, f := range w.factions.GetAll() {
		if f.TaxChest != 0 && !w.host.Exists(f.TaxChest) {
			f.TaxChest = 0
			repaired++
		}
	}

	cells := make([]model.Cell, 0, len(s.Cells))
	for _, c := range s.Cells {
		cells = append(cells, model.Cell{
			ID:              c.ID,
			Name:            c.Name,
			Type:            model.CellType(c.Type),
			FactionID:       c.FactionID,
			ClaimantID:      c.ClaimantID,
			ClaimStructure:  model.EntityID(c.ClaimStructure),
			ArmoryStructure: model.EntityID(c.ArmoryStructure),
			Level:           c.Level,
		})
	}
	repaired += w.territory.Load(cells, w.resolver(), w.factions.Exists)

	wars := make([]model.War, 0, len(s.Wars))
	for _, r := range s.Wars {
		war := model.War{
			ID:                     r.ID,
			AttackerID:             r.AttackerID,
			DefenderID:             r.DefenderID,
			DeclarerID:             r.DeclarerID,
			CassusBelli:            r.CassusBelli,
			AdminApproved:          r.AdminApproved,
			DefenderApproved:       r.DefenderApproved,
			AttackerPeaceOfferTime: r.AttackerPeaceOfferTime,
			DefenderPeaceOfferTime: r.DefenderPeaceOfferTime,
			StartTime:              r.StartTime,
			EndTime:                r.EndTime,
			EndReason:              model.WarEndReason(r.EndReason),
		}
		if !war.IsEnded() {
			switch {
			case !w.factions.Exists(war.AttackerID):
				war.EndTime, war.EndReason = now, model.WarEndAttackerEliminated
				repaired++
			case !w.factions.Exists(war.DefenderID):
				war.EndTime, war.EndReason = now, model.WarEndDefenderEliminated
				repaired++
			}
		}
		wars = append(wars, war)
	}
	repaired += w.diplomacy.Load(wars, now)

	pinRecs := make([]model.Pin, 0, len(s.Pins))
	for _, p := range s.Pins {
		pinRecs = append(pinRecs, model.Pin{
			Name:      p.Name,
			Type:      model.PinType(p.Type),
			Position:  model.Vec3{X: p.Position[0], Y: p.Position[1], Z: p.Position[2]},
			CellID:    p.CellID,
			CreatorID: p.CreatorID,
		})
	}
	repaired += w.pins.Load(pinRecs, func(p model.Pin) bool {
		return p.Type.Valid() && w.territory.Get(p.CellID).IsClaimed()
	})

	for _, f := range w.factions.GetAll() {
		w.scheduleUpkeep(f.ID)
	}
	w.tick.Store(s.Header.Tick)
	w.updateMetrics(0)
	w.logger.Printf("[snapshot] imported tick %d: %d cells, %d factions, %d wars, %d pins, %d repairs",
		s.Header.Tick, len(s.Cells), len(s.Factions), len(s.Wars), len(s.Pins), repaired)
	return nil
}

// LoadSnapshotFile imports path if it exists. A missing or unreadable file
// leaves the world empty with a logged warning.
func (w *World) LoadSnapshotFile(path string) bool {
	s, err := snapshot.ReadSnapshot(path)
	if err != nil {
		w.logger.Printf("[snapshot] %s unreadable, starting empty: %v", path, err)
		return false
	}
	if err := w.ImportSnapshot(s); err != nil {
		w.logger.Printf("[snapshot] %s not imported, starting empty: %v", path, err)
		return false
	}
	return true
}
