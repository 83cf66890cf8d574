package world

import (
	"fmt"
	"time"

	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/feature/economy/tax"
	"outpost.gg/internal/sim/world/kernel/model"
	"outpost.gg/internal/sim/world/policy/combat"
)

// Evaluate decides a combat event. A structure hit that trips a raid trigger
// opens, or refreshes, a raid zone around the structure controlling the
// target.
func (w *World) Evaluate(ev combat.Event) combat.Decision {
	d := w.combat.Evaluate(ev)
	if d.StartsRaid {
		w.startRaid(ev.Target.Position)
	}
	return d
}

func (w *World) startRaid(pos model.Vec3) {
	controller, ok := w.host.ControllerAt(pos)
	if !ok {
		return
	}
	now := w.now()
	until := now.Add(w.cfg.ZoneDurations[model.ZoneRaid])
	if z := w.zones.FindByOwner(model.ZoneRaid, controller); z != nil {
		w.zones.Extend(z.ID, until)
		return
	}
	center := pos
	if c := w.territory.CellAt(pos); c != nil {
		center = c.Center
	}
	name := fmt.Sprintf("raid %d", controller)
	if _, err := w.zones.Create(model.ZoneRaid, name, controller, center, w.cfg.ZoneRadii[model.ZoneRaid], until); err != nil {
		w.logger.Printf("[zones] raid at %v: %v", pos, err)
	}
}

// StartEventZone opens a transient zone of an event type (debris, supply drop,
// cargo ship) tied to the host entity owner.
func (w *World) StartEventZone(typ model.ZoneType, name string, owner model.EntityID, center model.Vec3) (*model.Zone, error) {
	switch typ {
	case model.ZoneDebris, model.ZoneSupplyDrop, model.ZoneCargoShip:
	default:
		return nil, protocol.Errorf(protocol.ErrBadRequest, "%q is not an event zone type", typ)
	}
	var expires time.Time
	if d := w.cfg.ZoneDurations[typ]; d > 0 {
		expires = w.now().Add(d)
	}
	return w.zones.Create(typ, name, owner, center, w.cfg.ZoneRadii[typ], expires)
}

// EndEventZone removes the zones tied to owner, e.g. a cargo ship leaving.
func (w *World) EndEventZone(owner model.EntityID) []string {
	return w.zones.RemoveByOwner(owner)
}

// Harvest splits amount of item gathered by userID at pos between the player
// and the owning faction's tax chest, pays both and returns the split.
func (w *World) Harvest(userID, item string, amount int, pos model.Vec3) tax.Split {
	cell := w.territory.CellAt(pos)
	h := tax.Harvest{Amount: amount, Cell: cell}
	if cell.IsClaimed() {
		h.Owner = w.factions.Get(cell.FactionID)
	}
	if f := w.factions.GetByMember(userID); f != nil {
		h.HarvesterFactionID = f.ID
	}
	if h.Owner != nil && h.Owner.TaxChest != 0 {
		h.ChestFull = w.host.IsFull(h.Owner.TaxChest)
	}
	split := tax.SplitHarvest(w.cfg.Tax, h)
	if split.Tax > 0 && !w.host.Deposit(split.Chest, item, split.Tax) {
		// The chest filled up between the check and the deposit.
		split.Harvester += split.Tax
		split.Tax = 0
		split.Chest = 0
	}
	w.host.Give(userID, item, split.Harvester)
	return split
}
