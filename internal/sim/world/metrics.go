package world

import (
	"time"

	"outpost.gg/internal/sim/world/kernel/model"
)

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Players       int `json:"players"`
	Factions      int `json:"factions"`
	ClaimedCells  int `json:"claimed_cells"`
	BadlandsCells int `json:"badlands_cells"`
	ActiveWars    int `json:"active_wars"`
	PendingWars   int `json:"pending_wars"`
	PastDue       int `json:"factions_past_due"`
	Pins          int `json:"pins"`
	Zones         int `json:"zones"`

	EventCursor uint64 `json:"event_cursor"`
	InboxDepth  int    `json:"inbox_depth"`

	StepMS float64 `json:"step_ms"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) updateMetrics(step time.Duration) {
	m := WorldMetrics{
		Tick:          w.tick.Load(),
		Players:       w.OnlineCount(),
		Factions:      w.factions.Count(),
		ClaimedCells:  len(w.territory.GetAllByType(model.CellClaimed)) + len(w.territory.GetAllByType(model.CellHeadquarters)),
		BadlandsCells: len(w.territory.GetAllByType(model.CellBadlands)),
		ActiveWars:    len(w.diplomacy.AllActive()),
		Pins:          len(w.pins.GetAll()),
		Zones:         w.zones.Count(),
		EventCursor:   w.bus.Cursor(),
		InboxDepth:    len(w.inbox),
		StepMS:        float64(step.Microseconds()) / 1000,
	}
	for _, war := range w.diplomacy.All() {
		if war.IsPending() {
			m.PendingWars++
		}
	}
	for _, f := range w.factions.GetAll() {
		if f.IsUpkeepPastDue {
			m.PastDue++
		}
	}
	w.metrics.Store(m)
}
