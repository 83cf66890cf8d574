// Package combat decides whether a hit lands, and how hard.
//
// Every function here is a pure read of the stores handed to the Engine and
// resolves to Allow, Deny or Scale; none of them can fail.
package combat

import (
	"outpost.gg/internal/sim/world/kernel/model"
	"outpost.gg/internal/sim/world/logic/mathx"
)

type Territory interface {
	CellAt(pos model.Vec3) *model.Cell
	DepthInsideFriendlyTerritory(cellID string) int
}

type Factions interface {
	Get(id string) *model.Faction
	GetByMember(userID string) *model.Faction
}

type Diplomacy interface {
	AreFactionsAtWar(a, b string) bool
}

type Zones interface {
	At(pos model.Vec3) []*model.Zone
}

type Players interface {
	Player(id string) *model.Player
}

type Engine struct {
	Policy    Policy
	Territory Territory
	Factions  Factions
	Diplomacy Diplomacy
	Zones     Zones
	Players   Players
}

type EventKind int

const (
	PlayerHitPlayer EventKind = iota + 1
	PlayerHitStructure
	IncidentalDamage
	TurretTarget
)

// Entity is the damageable target of a structure hit.
type Entity struct {
	ID       model.EntityID
	Category Category
	OwnerID  string
	Position model.Vec3
	Health   float64
	// RaidTrigger entities open a raid zone when a hit leaves them under 1
	// health.
	RaidTrigger bool
}

type Event struct {
	Kind EventKind

	// AttackerID is the attacking player, or the turret owner for
	// TurretTarget.
	AttackerID string
	// VictimID is the player being hit or targeted, if any.
	VictimID string

	Target   Entity
	Damage   float64
	Position model.Vec3 // incidental damage position
}

// Evaluate dispatches ev to the rule for its kind. Unknown kinds are denied.
func (e *Engine) Evaluate(ev Event) Decision {
	switch ev.Kind {
	case PlayerHitPlayer:
		return e.PlayerVsPlayer(ev.AttackerID, ev.VictimID)
	case PlayerHitStructure:
		return e.PlayerVsStructure(ev.AttackerID, ev.Target, ev.Damage)
	case IncidentalDamage:
		return e.Incidental(ev.Position, ev.VictimID)
	case TurretTarget:
		if e.TurretCanTarget(ev.AttackerID, ev.VictimID) {
			return allow("turret target")
		}
		return deny("turret target protected")
	}
	return deny("unknown event")
}

func (e *Engine) PlayerVsPlayer(attackerID, victimID string) Decision {
	switch {
	case !e.Policy.RestrictPvP:
		return allow("pvp unrestricted")
	case attackerID == victimID:
		return allow("self")
	case e.atWar(e.factionOf(attackerID), e.factionOf(victimID)):
		return allow("at war")
	case e.InDanger(attackerID) && e.InDanger(victimID):
		return allow("both in danger")
	}
	return deny("pvp restricted")
}

func (e *Engine) PlayerVsStructure(attackerID string, target Entity, damage float64) Decision {
	d := e.structureDecision(attackerID, target)
	if target.RaidTrigger && d.Verdict != Deny && target.Health-damage*d.Multiplier() < 1 {
		d.StartsRaid = true
	}
	return d
}

func (e *Engine) structureDecision(attackerID string, target Entity) Decision {
	if !target.Category.Protected() {
		return allow("unprotected")
	}
	cell := e.cellAt(target.Position)
	attacker := e.factionOf(attackerID)

	if attacker != nil && cell.OwnedBy(attacker.ID) && !attacker.IsBadlands {
		if attacker.HasLeader(attackerID) {
			return allow("own territory leader")
		}
		return scale(mathx.Clamp01(e.Policy.OwnTerritoryDamageScale), "own territory")
	}
	if target.OwnerID != "" && target.OwnerID == attackerID {
		return allow("own entity")
	}

	var landOwner *model.Faction
	if cell.IsClaimed() && e.Factions != nil {
		landOwner = e.Factions.Get(cell.FactionID)
	}
	if e.atWar(attacker, landOwner) || e.atWar(attacker, e.factionOf(target.OwnerID)) {
		return e.defensive(cell, "at war")
	}
	if e.Raidable(cell) {
		return e.defensive(cell, "raidable")
	}
	return deny("raid restricted")
}

// defensive scales a hit by the reduction for cell's defensive depth.
func (e *Engine) defensive(cell *model.Cell, reason string) Decision {
	r := e.Reduction(cell)
	switch {
	case r >= 1:
		return deny(reason + ", fully fortified")
	case r <= 0:
		return allow(reason)
	}
	return scale(1-r, reason)
}

// Reduction is the damage reduction for structures in cell, in [0,1].
func (e *Engine) Reduction(cell *model.Cell) float64 {
	bonuses := e.Policy.DefensiveBonuses
	if len(bonuses) == 0 || !cell.IsClaimed() || e.Territory == nil {
		return 0
	}
	depth := e.Territory.DepthInsideFriendlyTerritory(cell.ID)
	depth = mathx.ClampInt(depth, 0, len(bonuses)-1)
	return mathx.Clamp01(bonuses[depth])
}

// Raidable reports whether structures in cell may be attacked without a war.
// Land of a hostile faction is always raidable.
func (e *Engine) Raidable(cell *model.Cell) bool {
	if !e.Policy.RestrictRaiding {
		return true
	}
	switch {
	case cell == nil || cell.Type == model.CellWilderness:
		return e.Policy.Raiding.AllowedInWilderness
	case cell.Type == model.CellBadlands:
		return e.Policy.Raiding.AllowedInBadlands
	}
	if e.Policy.Raiding.AllowedInClaimedLand {
		return true
	}
	if e.Factions != nil {
		if f := e.Factions.Get(cell.FactionID); f != nil && f.IsBadlands {
			return true
		}
	}
	return false
}

func (e *Engine) Incidental(pos model.Vec3, victimID string) Decision {
	if victimID != "" && e.InDanger(victimID) {
		return allow("victim in danger")
	}
	if cell := e.cellAt(pos); cell.IsClaimed() && !e.Raidable(cell) {
		return deny("claimed land")
	}
	return allow("incidental")
}

// TurretCanTarget reports whether a turret owned by ownerID may acquire
// targetID. The owner is always a legal target.
func (e *Engine) TurretCanTarget(ownerID, targetID string) bool {
	switch {
	case targetID == "":
		return false
	case targetID == ownerID:
		return true
	case !e.Policy.RestrictPvP:
		return true
	case e.atWar(e.factionOf(ownerID), e.factionOf(targetID)):
		return true
	}
	return e.InDanger(targetID)
}

// InDanger reports whether a player has opted into PvP, belongs to a hostile
// faction, or stands where PvP is allowed.
func (e *Engine) InDanger(playerID string) bool {
	if f := e.factionOf(playerID); f != nil && f.IsBadlands {
		return true
	}
	if e.Players == nil {
		return false
	}
	p := e.Players.Player(playerID)
	if p == nil {
		return false
	}
	return p.PvPEnabled || e.PvPAllowedAt(p.Position)
}

// PvPAllowedAt applies the PvP location rules to pos.
func (e *Engine) PvPAllowedAt(pos model.Vec3) bool {
	pol := e.Policy
	if pol.UndergroundEnabled && pos.Y < pol.UndergroundY && pol.PvP.AllowedUnderground {
		return true
	}
	if pol.DeepWaterEnabled && pos.Y < pol.DeepWaterY && pol.PvP.AllowedInDeepWater {
		return true
	}
	if e.Zones != nil {
		for _, z := range e.Zones.At(pos) {
			switch z.Type {
			case model.ZoneMonument:
				if pol.PvP.AllowedInMonuments {
					return true
				}
			case model.ZoneRaid:
				if pol.PvP.AllowedInRaidZones {
					return true
				}
			case model.ZoneDebris, model.ZoneSupplyDrop, model.ZoneCargoShip:
				if pol.PvP.AllowedInEventZones {
					return true
				}
			}
		}
	}
	cell := e.cellAt(pos)
	switch {
	case cell == nil || cell.Type == model.CellWilderness:
		return pol.PvP.AllowedInWilderness
	case cell.Type == model.CellBadlands:
		return pol.PvP.AllowedInBadlands
	}
	return pol.PvP.AllowedInClaimedLand
}

func (e *Engine) cellAt(pos model.Vec3) *model.Cell {
	if e.Territory == nil {
		return nil
	}
	return e.Territory.CellAt(pos)
}

func (e *Engine) factionOf(userID string) *model.Faction {
	if e.Factions == nil || userID == "" {
		return nil
	}
	return e.Factions.GetByMember(userID)
}

func (e *Engine) atWar(a, b *model.Faction) bool {
	if a == nil || b == nil || a.ID == b.ID || e.Diplomacy == nil {
		return false
	}
	return e.Diplomacy.AreFactionsAtWar(a.ID, b.ID)
}
