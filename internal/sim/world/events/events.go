// Package events carries change notifications from the stores to uninvolved
// collaborators (map refresh, UI, event log, index db).
package events

import (
	"sync"
	"time"

	"outpost.gg/internal/protocol"
)

type Kind string

const (
	CellChanged            Kind = "CELL_CHANGED"
	FactionCreated         Kind = "FACTION_CREATED"
	FactionDisbanded       Kind = "FACTION_DISBANDED"
	FactionTaxesChanged    Kind = "FACTION_TAXES_CHANGED"
	FactionBadlandsChanged Kind = "FACTION_BADLANDS_CHANGED"
	MemberJoined           Kind = "MEMBER_JOINED"
	MemberLeft             Kind = "MEMBER_LEFT"
	MemberPromoted         Kind = "MEMBER_PROMOTED"
	MemberDemoted          Kind = "MEMBER_DEMOTED"
	MemberInvited          Kind = "MEMBER_INVITED"
	PinCreated             Kind = "PIN_CREATED"
	PinRemoved             Kind = "PIN_REMOVED"
	DiplomacyChanged       Kind = "DIPLOMACY_CHANGED"
	ZoneCreated            Kind = "ZONE_CREATED"
	ZoneRemoved            Kind = "ZONE_REMOVED"
	UpkeepCollected        Kind = "UPKEEP_COLLECTED"
)

var Kinds = []Kind{
	CellChanged, FactionCreated, FactionDisbanded, FactionTaxesChanged, FactionBadlandsChanged,
	MemberJoined, MemberLeft, MemberPromoted, MemberDemoted, MemberInvited,
	PinCreated, PinRemoved, DiplomacyChanged, ZoneCreated, ZoneRemoved, UpkeepCollected,
}

type Event struct {
	Kind      Kind
	Time      time.Time
	CellID    string
	FactionID string
	UserID    string
	ActorID   string
	WarID     string
	PinName   string
	ZoneID    string
	Details   map[string]any
}

// Wire renders the event for the JSON stream. Empty ids are omitted.
func (e Event) Wire() protocol.Event {
	ev := protocol.Event{
		"kind": string(e.Kind),
		"time": e.Time.UTC().Format(time.RFC3339Nano),
	}
	put := func(k, v string) {
		if v != "" {
			ev[k] = v
		}
	}
	put("cell_id", e.CellID)
	put("faction_id", e.FactionID)
	put("user_id", e.UserID)
	put("actor_id", e.ActorID)
	put("war_id", e.WarID)
	put("pin_name", e.PinName)
	put("zone_id", e.ZoneID)
	for k, v := range e.Details {
		if _, taken := ev[k]; !taken {
			ev[k] = v
		}
	}
	return ev
}

type Sink interface {
	Publish(e Event)
}

type SinkFunc func(e Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

type CursorItem struct {
	Cursor uint64
	Event  Event
}

// Bus assigns cursors, keeps a bounded backlog and fans events out to
// subscribers. Subscribers run on the publishing goroutine and must not block.
type Bus struct {
	mu   sync.Mutex
	next uint64
	// ring is circular once full; head is the slot of the oldest item.
	ring    []CursorItem
	head    int
	cap     int
	subs    map[int]func(CursorItem)
	nextSub int

	now func() time.Time
}

func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Bus{cap: capacity, subs: map[int]func(CursorItem){}, now: time.Now}
}

// Publish stamps events that carry no time with the wall clock.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = b.now().UTC()
	}
	b.mu.Lock()
	b.next++
	it := CursorItem{Cursor: b.next, Event: e}
	if len(b.ring) < b.cap {
		b.ring = append(b.ring, it)
	} else {
		b.ring[b.head] = it
		b.head = (b.head + 1) % b.cap
	}
	subs := make([]func(CursorItem), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(it)
	}
}

func (b *Bus) Subscribe(fn func(CursorItem)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *Bus) Cursor() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// Since returns up to limit backlog items with cursor > since, and the cursor to
// resume from.
func (b *Bus) Since(since uint64, limit int) ([]CursorItem, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 {
		limit = 256
	}
	n := len(b.ring)
	if n == 0 || since >= b.next {
		return nil, since
	}
	// Cursors are contiguous, so the first wanted item sits at a fixed offset
	// from the oldest one.
	oldest := b.next - uint64(n) + 1
	skip := 0
	if since >= oldest {
		skip = int(since - oldest + 1)
	}
	count := min(n-skip, limit)
	out := make([]CursorItem, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, b.ring[(b.head+skip+i)%n])
	}
	return out, out[len(out)-1].Cursor
}

// Recorder keeps every published event; handy in tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(e Event) { r.Events = append(r.Events, e) }

func (r *Recorder) Count(k Kind) int {
	n := 0
	for _, e := range r.Events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() { r.Events = nil }
