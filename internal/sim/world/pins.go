package world

import (
	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/kernel/model"
)

// CreatePin places a named map pin at pos. Members may only pin their own
// faction's claimed land, and pay PinCost once validation passes.
func (w *World) CreatePin(userID, name string, typ model.PinType, pos model.Vec3) (*model.Pin, error) {
	f := w.factions.GetByMember(userID)
	if f == nil {
		return nil, protocol.Errorf(protocol.ErrNoPermission, "not in a faction")
	}
	c := w.territory.CellAt(pos)
	if !c.OwnedBy(f.ID) {
		return nil, protocol.Errorf(protocol.ErrNoPermission, "pins must be placed on %s land", f.ID)
	}
	p := model.Pin{Name: name, Type: typ, Position: pos, CellID: c.ID, CreatorID: userID}
	if err := w.pins.Validate(p); err != nil {
		return nil, err
	}
	if !w.host.Take(userID, w.cfg.ScrapItem, w.cfg.PinCost) {
		return nil, protocol.Errorf(protocol.ErrNoResource, "pins cost %d %s", w.cfg.PinCost, w.cfg.ScrapItem)
	}
	return w.pins.Add(p)
}

// RemovePin removes a pin. The creator and the leaders of the faction owning
// the pin's cell may remove it.
func (w *World) RemovePin(userID, name string) error {
	p := w.pins.Get(name)
	if p == nil {
		return protocol.Errorf(protocol.ErrInvalidTarget, "no pin named %q", name)
	}
	if p.CreatorID != userID {
		c := w.territory.Get(p.CellID)
		f := w.factions.GetByMember(userID)
		if f == nil || !c.OwnedBy(f.ID) || !f.HasLeader(userID) {
			return protocol.Errorf(protocol.ErrNoPermission, "only the creator or a leader may remove %s", p.Name)
		}
	}
	return w.pins.Remove(p.Name, userID)
}
