package world

import (
	"time"

	"outpost.gg/internal/sim/world/kernel/model"
)

// StateView is a JSON-friendly copy of the governance state for admin
// endpoints. Build it on the world loop.
type StateView struct {
	WorldID  string        `json:"world_id"`
	Tick     uint64        `json:"tick"`
	Factions []FactionView `json:"factions"`
	Cells    []CellView    `json:"cells"`
	Wars     []WarView     `json:"wars"`
	Zones    []ZoneView    `json:"zones"`
}

type FactionView struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Members    []string  `json:"members"`
	Managers   []string  `json:"managers,omitempty"`
	TaxRate    float64   `json:"tax_rate"`
	Badlands   bool      `json:"badlands,omitempty"`
	Claims     int       `json:"claims"`
	UpkeepDue  time.Time `json:"upkeep_due"`
	PastDue    bool      `json:"past_due,omitempty"`
	FoundedAt  time.Time `json:"founded_at"`
	ActiveWars int       `json:"active_wars"`
}

type CellView struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	FactionID string `json:"faction_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Level     int    `json:"level,omitempty"`
	Depth     int    `json:"depth"`
}

type WarView struct {
	ID         string    `json:"id"`
	AttackerID string    `json:"attacker_id"`
	DefenderID string    `json:"defender_id"`
	State      string    `json:"state"`
	Reason     string    `json:"reason"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time,omitempty"`
	EndReason  string    `json:"end_reason,omitempty"`
}

type ZoneView struct {
	ID      string     `json:"id"`
	Type    string     `json:"type"`
	Name    string     `json:"name"`
	Center  model.Vec3 `json:"center"`
	Radius  float64    `json:"radius"`
	Expires time.Time  `json:"expires,omitempty"`
}

func WarState(w *model.War) string {
	switch {
	case w.IsEnded():
		return "ENDED"
	case w.IsActive():
		return "ACTIVE"
	}
	return "PENDING"
}

func (w *World) State() StateView {
	v := StateView{WorldID: w.cfg.ID, Tick: w.tick.Load()}
	for _, f := range w.factions.GetAll() {
		v.Factions = append(v.Factions, FactionView{
			ID:         f.ID,
			OwnerID:    f.OwnerID,
			Members:    append([]string(nil), f.MemberIDs...),
			Managers:   append([]string(nil), f.ManagerIDs...),
			TaxRate:    f.TaxRate,
			Badlands:   f.IsBadlands,
			Claims:     w.territory.CountClaimedBy(f.ID),
			UpkeepDue:  f.NextUpkeepPaymentTime,
			PastDue:    f.IsUpkeepPastDue,
			FoundedAt:  f.CreationTime,
			ActiveWars: len(w.diplomacy.AllActiveBy(f.ID)),
		})
	}
	for _, c := range w.territory.GetAll() {
		if c.Type == model.CellWilderness {
			continue
		}
		v.Cells = append(v.Cells, CellView{
			ID:        c.ID,
			Type:      string(c.Type),
			FactionID: c.FactionID,
			Name:      c.Name,
			Level:     c.Level,
			Depth:     w.territory.DepthInsideFriendlyTerritory(c.ID),
		})
	}
	for _, war := range w.diplomacy.All() {
		v.Wars = append(v.Wars, WarView{
			ID:         war.ID,
			AttackerID: war.AttackerID,
			DefenderID: war.DefenderID,
			State:      WarState(war),
			Reason:     war.CassusBelli,
			StartTime:  war.StartTime,
			EndTime:    war.EndTime,
			EndReason:  string(war.EndReason),
		})
	}
	for _, z := range w.zones.All() {
		v.Zones = append(v.Zones, ZoneView{
			ID:      z.ID,
			Type:    string(z.Type),
			Name:    z.Name,
			Center:  z.Center,
			Radius:  z.Radius,
			Expires: z.Expires,
		})
	}
	return v
}
