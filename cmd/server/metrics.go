package main

import (
	"fmt"
	"io"

	"outpost.gg/internal/persistence/indexdb"
	"outpost.gg/internal/sim/world"
)

// writeMetrics renders the Prometheus text exposition format.
func writeMetrics(out io.Writer, worldID string, m world.WorldMetrics, eventLogDropped uint64, idx *indexdb.SQLiteIndex) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(out, "# HELP outpost_%s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE outpost_%s gauge\n", name)
		fmt.Fprintf(out, "outpost_%s{world=%q} %v\n", name, worldID, v)
	}
	gauge("world_tick", "Current world tick.", m.Tick)
	gauge("players_online", "Connected players.", m.Players)
	gauge("factions", "Existing factions.", m.Factions)
	gauge("claimed_cells", "Cells that are claimed or headquarters.", m.ClaimedCells)
	gauge("badlands_cells", "Cells marked as badlands.", m.BadlandsCells)
	gauge("factions_past_due", "Factions behind on upkeep.", m.PastDue)
	gauge("pins", "Map pins.", m.Pins)
	gauge("zones", "Live zones.", m.Zones)
	gauge("event_cursor", "Cursor of the latest change event.", m.EventCursor)
	gauge("inbox_depth", "Queued requests waiting for the world loop.", m.InboxDepth)
	gauge("step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))

	fmt.Fprintf(out, "# HELP outpost_wars Wars by state.\n")
	fmt.Fprintf(out, "# TYPE outpost_wars gauge\n")
	fmt.Fprintf(out, "outpost_wars{world=%q,state=%q} %d\n", worldID, "active", m.ActiveWars)
	fmt.Fprintf(out, "outpost_wars{world=%q,state=%q} %d\n", worldID, "pending", m.PendingWars)

	fmt.Fprintf(out, "# HELP outpost_dropped_total Records dropped by a full writer queue.\n")
	fmt.Fprintf(out, "# TYPE outpost_dropped_total counter\n")
	fmt.Fprintf(out, "outpost_dropped_total{world=%q,sink=%q} %d\n", worldID, "event_log", eventLogDropped)
	if idx != nil {
		fmt.Fprintf(out, "outpost_dropped_total{world=%q,sink=%q} %d\n", worldID, "index", idx.Dropped())
	}
}
