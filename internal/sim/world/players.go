package world

import (
	"time"

	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/kernel/model"
	"outpost.gg/internal/sim/world/logic/rates"
)

func (w *World) Connect(userID string, pos model.Vec3) *model.Player {
	p := w.players[userID]
	if p == nil {
		p = &model.Player{ID: userID}
		w.players[userID] = p
	}
	p.Online = true
	p.Position = pos
	return p
}

func (w *World) Disconnect(userID string) {
	if p := w.players[userID]; p != nil {
		p.Online = false
	}
}

func (w *World) Move(userID string, pos model.Vec3) {
	if p := w.players[userID]; p != nil {
		p.Position = pos
	}
}

// SetPvP flips a player's personal PvP flag, at most once per
// PvPToggleCooldown.
func (w *World) SetPvP(userID string, on bool) error {
	p := w.players[userID]
	if p == nil {
		return protocol.Errorf(protocol.ErrInvalidTarget, "unknown player %q", userID)
	}
	if p.PvPEnabled == on {
		return protocol.Errorf(protocol.ErrConflict, "pvp already %t", on)
	}
	now := w.now()
	if ok, left := rates.Cooldown(now, p.PvPToggleTime, w.cfg.PvPToggleCooldown); !ok {
		return protocol.Errorf(protocol.ErrCooldown, "pvp toggle available in %s", left.Round(time.Second))
	}
	p.PvPEnabled = on
	p.PvPToggleTime = now
	return nil
}

// InDanger reports whether other players may attack userID right now.
func (w *World) InDanger(userID string) bool {
	return w.combat.InDanger(userID)
}

func (w *World) OnlineCount() int {
	n := 0
	for _, p := range w.players {
		if p.Online {
			n++
		}
	}
	return n
}
