package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"outpost.gg/internal/persistence/snapshot"
	"outpost.gg/internal/sim/world/events"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func reopen(t *testing.T, idx *SQLiteIndex, path string) *SQLiteIndex {
	t.Helper()
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	idx, err := OpenSQLite(path, "w1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestEventsIndexedFromBus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path, "w1")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	bus := events.NewBus(16)
	idx.Attach(bus)
	bus.Publish(events.Event{Kind: events.FactionCreated, Time: t0, FactionID: "RED"})
	bus.Publish(events.Event{Kind: events.CellChanged, Time: t0, FactionID: "RED", CellID: "C3"})
	bus.Publish(events.Event{Kind: events.FactionCreated, Time: t0, FactionID: "BLUE"})

	idx = reopen(t, idx, path)
	ctx := context.Background()

	all, err := idx.Events(ctx, EventQuery{})
	if err != nil || len(all) != 3 {
		t.Fatalf("all events = %d, %v", len(all), err)
	}
	red, err := idx.Events(ctx, EventQuery{FactionID: "RED"})
	if err != nil || len(red) != 2 || red[1].CellID != "C3" {
		t.Fatalf("RED events = %+v, %v", red, err)
	}
	created, _ := idx.Events(ctx, EventQuery{Kind: string(events.FactionCreated), SinceCursor: 1})
	if len(created) != 1 || created[0].FactionID != "BLUE" {
		t.Fatalf("created since 1 = %+v", created)
	}
}

func TestSnapshotRefreshesWarHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path, "w1")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, WorldID: "w1", Tick: 10, SavedAt: t0},
		Cells:  []snapshot.CellV1{{ID: "A0", Type: "CLAIMED", FactionID: "RED"}, {ID: "A1", Type: "WILDERNESS"}},
		Wars: []snapshot.WarV1{
			{ID: "w-1", AttackerID: "RED", DefenderID: "BLUE", StartTime: t0},
			{ID: "w-2", AttackerID: "GRN", DefenderID: "YEL", StartTime: t0.Add(time.Hour)},
		},
	}
	idx.RecordSnapshot("/data/10.snap.zst", snap)

	snap.Header.Tick = 20
	snap.Wars[0].EndTime = t0.Add(2 * time.Hour)
	snap.Wars[0].EndReason = "TREATY"
	idx.RecordSnapshot("/data/20.snap.zst", snap)

	idx = reopen(t, idx, path)
	ctx := context.Background()

	wars, err := idx.WarHistory(ctx, "BLUE", 0)
	if err != nil || len(wars) != 1 {
		t.Fatalf("BLUE wars = %+v, %v", wars, err)
	}
	if wars[0].EndReason != "TREATY" || wars[0].LastTick != 20 {
		t.Fatalf("war not refreshed: %+v", wars[0])
	}
	all, _ := idx.WarHistory(ctx, "", 0)
	if len(all) != 2 || all[0].ID != "w-2" {
		t.Fatalf("all wars = %+v", all)
	}

	snaps, err := idx.Snapshots(ctx, 0)
	if err != nil || len(snaps) != 2 || snaps[0].Tick != 20 || snaps[0].ClaimedCells != 1 {
		t.Fatalf("snapshots = %+v, %v", snaps, err)
	}
}

func TestRecordConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path, "w1")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.RecordConfig("tuning", map[string]any{"world_id": "w1"}); err != nil {
		t.Fatalf("RecordConfig: %v", err)
	}
	idx = reopen(t, idx, path)

	raw, digest, ok, err := idx.Config(context.Background(), "tuning")
	if err != nil || !ok || raw != `{"world_id":"w1"}` || len(digest) != 64 {
		t.Fatalf("config = %q %q %v %v", raw, digest, ok, err)
	}
	if _, _, ok, _ := idx.Config(context.Background(), "missing"); ok {
		t.Fatalf("missing config reported present")
	}
}
