package world

import (
	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/kernel/model"
)

// CreateFaction founds a faction and schedules its upkeep.
func (w *World) CreateFaction(userID, id string) (*model.Faction, error) {
	f, err := w.factions.Create(id, userID, w.now())
	if err != nil {
		return nil, err
	}
	w.scheduleUpkeep(f.ID)
	return f, nil
}

func (w *World) DisbandFaction(userID string) error {
	f := w.factions.GetByMember(userID)
	if f == nil {
		return protocol.Errorf(protocol.ErrInvalidTarget, "not in a faction")
	}
	if f.OwnerID != userID {
		return protocol.Errorf(protocol.ErrNoPermission, "only the owner may disband %s", f.ID)
	}
	return w.factions.Disband(f.ID)
}

func (w *World) Invite(userID, targetID string) error {
	f, err := w.leaderOf(userID)
	if err != nil {
		return err
	}
	if other := w.factions.GetByMember(targetID); other != nil && other.ID != f.ID {
		return protocol.Errorf(protocol.ErrConflict, "%s already belongs to %s", targetID, other.ID)
	}
	return w.factions.Invite(f.ID, targetID)
}

func (w *World) Join(userID, factionID string) error {
	return w.factions.Join(factionID, userID)
}

func (w *World) Leave(userID string) error {
	return w.factions.Leave(userID)
}

// Kick removes a member. Managers may only kick plain members.
func (w *World) Kick(userID, targetID string) error {
	f, err := w.leaderOf(userID)
	if err != nil {
		return err
	}
	if f.HasLeader(targetID) && f.OwnerID != userID {
		return protocol.Errorf(protocol.ErrNoPermission, "only the owner may kick a leader")
	}
	return w.factions.Kick(f.ID, targetID)
}

func (w *World) owned(userID string) (*model.Faction, error) {
	f := w.factions.GetByMember(userID)
	if f == nil {
		return nil, protocol.Errorf(protocol.ErrNoPermission, "not in a faction")
	}
	if f.OwnerID != userID {
		return nil, protocol.Errorf(protocol.ErrNoPermission, "only the owner of %s may do that", f.ID)
	}
	return f, nil
}

func (w *World) Promote(userID, targetID string) error {
	f, err := w.owned(userID)
	if err != nil {
		return err
	}
	if !f.HasMember(targetID) {
		return protocol.Errorf(protocol.ErrInvalidTarget, "%s is not a member of %s", targetID, f.ID)
	}
	return w.factions.Promote(f.ID, targetID)
}

func (w *World) Demote(userID, targetID string) error {
	f, err := w.owned(userID)
	if err != nil {
		return err
	}
	if !f.HasMember(targetID) {
		return protocol.Errorf(protocol.ErrInvalidTarget, "%s is not a member of %s", targetID, f.ID)
	}
	return w.factions.Demote(f.ID, targetID)
}

func (w *World) SetTaxRate(userID string, rate float64) error {
	f, err := w.leaderOf(userID)
	if err != nil {
		return err
	}
	return w.factions.SetTaxRate(f.ID, rate)
}

// SetTaxChest designates the container controlling pos as the faction's tax
// chest. It must stand on the faction's own land.
func (w *World) SetTaxChest(userID string, pos model.Vec3) error {
	f, err := w.leaderOf(userID)
	if err != nil {
		return err
	}
	if c := w.territory.CellAt(pos); !c.OwnedBy(f.ID) {
		return protocol.Errorf(protocol.ErrNoPermission, "the tax chest must stand on %s land", f.ID)
	}
	chest, ok := w.host.ControllerAt(pos)
	if !ok {
		return protocol.Errorf(protocol.ErrInvalidTarget, "no container at this position")
	}
	return w.factions.SetTaxChest(f.ID, chest)
}

func (w *World) SetBadlands(userID string, on bool) error {
	f, err := w.owned(userID)
	if err != nil {
		return err
	}
	return w.factions.SetBadlands(f.ID, on, w.now())
}

// DeclareWar declares war from userID's faction on defenderID.
func (w *World) DeclareWar(userID, defenderID, reason string) (*model.War, error) {
	f := w.factions.GetByMember(userID)
	if f == nil {
		return nil, protocol.Errorf(protocol.ErrNoPermission, "not in a faction")
	}
	return w.diplomacy.DeclareWar(f.ID, defenderID, userID, reason, w.now())
}

func (w *World) AcceptWar(userID, warID string) error {
	return w.diplomacy.DefenderApprove(warID, userID)
}

func (w *World) RefuseWar(userID, warID string) error {
	return w.diplomacy.DefenderDeny(warID, userID, w.now())
}

func (w *World) AdminApproveWar(warID string) error {
	return w.diplomacy.AdminApprove(warID)
}

func (w *World) AdminDenyWar(warID string) error {
	return w.diplomacy.AdminDeny(warID, w.now())
}

// OfferPeace records a peace offer from userID's faction. It reports whether
// the war ended.
func (w *World) OfferPeace(userID, warID string) (bool, error) {
	f, err := w.leaderOf(userID)
	if err != nil {
		return false, err
	}
	return w.diplomacy.OfferPeace(warID, f.ID, w.now())
}

// OnTrade is called by the host when two factions complete a trade. Trading
// counts as a treaty for an active war between them.
func (w *World) OnTrade(a, b string) *model.War {
	fa, fb := w.factions.Get(a), w.factions.Get(b)
	if fa == nil || fb == nil {
		return nil
	}
	return w.diplomacy.EndByTrade(fa.ID, fb.ID, w.now())
}
