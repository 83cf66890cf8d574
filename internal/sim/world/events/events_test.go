package events

import (
	"testing"
	"time"
)

func TestBusCursorAndBacklog(t *testing.T) {
	b := NewBus(3)
	var seen []uint64
	cancel := b.Subscribe(func(it CursorItem) { seen = append(seen, it.Cursor) })

	for i := 0; i < 5; i++ {
		b.Publish(Event{Kind: CellChanged, CellID: "A0"})
	}
	if b.Cursor() != 5 {
		t.Fatalf("expected cursor 5, got %d", b.Cursor())
	}
	if len(seen) != 5 || seen[4] != 5 {
		t.Fatalf("subscriber saw %v", seen)
	}

	items, next := b.Since(0, 10)
	if len(items) != 3 || items[0].Cursor != 3 || next != 5 {
		t.Fatalf("expected bounded backlog 3..5, got %d items next=%d", len(items), next)
	}
	items, next = b.Since(3, 1)
	if len(items) != 1 || items[0].Cursor != 4 || next != 4 {
		t.Fatalf("expected single item 4, got %+v next=%d", items, next)
	}

	cancel()
	b.Publish(Event{Kind: PinRemoved})
	if len(seen) != 5 {
		t.Fatalf("cancelled subscriber still notified")
	}
}

func TestWireOmitsEmptyIDs(t *testing.T) {
	ev := Event{
		Kind:      MemberJoined,
		Time:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		FactionID: "RUST",
		UserID:    "u1",
		Details:   map[string]any{"kind": "override", "role": "MEMBER"},
	}.Wire()
	if ev["kind"] != "MEMBER_JOINED" {
		t.Fatalf("details must not override kind, got %v", ev["kind"])
	}
	if _, ok := ev["cell_id"]; ok {
		t.Fatalf("expected empty cell_id omitted")
	}
	if ev["role"] != "MEMBER" || ev["time"] != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected wire event %v", ev)
	}
}

func TestBusBacklogWrapsAround(t *testing.T) {
	b := NewBus(4)
	for i := 0; i < 11; i++ {
		b.Publish(Event{Kind: CellChanged})
	}
	items, next := b.Since(0, 100)
	if len(items) != 4 || next != 11 {
		t.Fatalf("expected 4 items ending at 11, got %d next=%d", len(items), next)
	}
	for i, it := range items {
		if it.Cursor != uint64(8+i) {
			t.Fatalf("item %d has cursor %d, want %d", i, it.Cursor, 8+i)
		}
	}
	items, next = b.Since(9, 1)
	if len(items) != 1 || items[0].Cursor != 10 || next != 10 {
		t.Fatalf("expected cursor 10, got %+v next=%d", items, next)
	}
	if items, next = b.Since(11, 5); len(items) != 0 || next != 11 {
		t.Fatalf("caught-up reader got %d items next=%d", len(items), next)
	}
}
