package world

import (
	"outpost.gg/internal/persistence/snapshot"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
			SavedAt: w.now().UTC(),
		},
		MapSize:    w.cfg.MapSize,
		CellSize:   w.cfg.CellSize,
		GridOffset: w.cfg.GridOffset,
	}
	for _, c := range w.territory.Export() {
		s.Cells = append(s.Cells, snapshot.CellV1{
			ID:              c.ID,
			Name:            c.Name,
			Type:            string(c.Type),
			FactionID:       c.FactionID,
			ClaimantID:      c.ClaimantID,
			ClaimStructure:  uint64(c.ClaimStructure),
			ArmoryStructure: uint64(c.ArmoryStructure),
			Level:           c.Level,
		})
	}
	for _, f := range w.factions.Export() {
		s.Factions = append(s.Factions, snapshot.FactionV1{
			ID:                    f.ID,
			OwnerID:               f.OwnerID,
			MemberIDs:             f.MemberIDs,
			ManagerIDs:            f.ManagerIDs,
			InviteIDs:             f.InviteIDs,
			TaxRate:               f.TaxRate,
			TaxChest:              uint64(f.TaxChest),
			NextUpkeepPaymentTime: f.NextUpkeepPaymentTime,
			IsUpkeepPastDue:       f.IsUpkeepPastDue,
			IsBadlands:            f.IsBadlands,
			BadlandsToggleTime:    f.BadlandsToggleTime,
			CreationTime:          f.CreationTime,
		})
	}
	for _, war := range w.diplomacy.Export() {
		s.Wars = append(s.Wars, snapshot.WarV1{
			ID:                     war.ID,
			AttackerID:             war.AttackerID,
			DefenderID:             war.DefenderID,
			DeclarerID:             war.DeclarerID,
			CassusBelli:            war.CassusBelli,
			AdminApproved:          war.AdminApproved,
			DefenderApproved:       war.DefenderApproved,
			AttackerPeaceOfferTime: war.AttackerPeaceOfferTime,
			DefenderPeaceOfferTime: war.DefenderPeaceOfferTime,
			StartTime:              war.StartTime,
			EndTime:                war.EndTime,
			EndReason:              string(war.EndReason),
		})
	}
	for _, p := range w.pins.Export() {
		s.Pins = append(s.Pins, snapshot.PinV1{
			Name:      p.Name,
			Type:      string(p.Type),
			Position:  [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
			CellID:    p.CellID,
			CreatorID: p.CreatorID,
		})
	}
	return s
}
