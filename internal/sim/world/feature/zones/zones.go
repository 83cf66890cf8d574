// Package zones tracks transient circular regions (monuments, event drops,
// raids) and answers "which zones cover this point" through a per-cell index.
package zones

import (
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/events"
	"outpost.gg/internal/sim/world/grid"
	"outpost.gg/internal/sim/world/kernel/model"
)

type Store struct {
	grid    grid.Grid
	byID    map[string]*model.Zone
	buckets map[int][]*model.Zone
	sink    events.Sink
	logger  *log.Logger
}

func New(g grid.Grid, sink events.Sink, logger *log.Logger) *Store {
	if sink == nil {
		sink = events.Discard
	}
	return &Store{
		grid:    g,
		byID:    map[string]*model.Zone{},
		buckets: map[int][]*model.Zone{},
		sink:    sink,
		logger:  logger,
	}
}

func (s *Store) Create(typ model.ZoneType, name string, owner model.EntityID, center model.Vec3, radius float64, expires time.Time) (*model.Zone, error) {
	if !typ.Valid() {
		return nil, protocol.Errorf(protocol.ErrBadRequest, "unknown zone type %q", typ)
	}
	if !(radius > 0) {
		return nil, protocol.Errorf(protocol.ErrBadRequest, "zone radius must be positive")
	}
	z := &model.Zone{
		ID:      uuid.NewString(),
		Type:    typ,
		Name:    name,
		Owner:   owner,
		Center:  center,
		Radius:  radius,
		Expires: expires,
	}
	s.byID[z.ID] = z
	s.index(z, true)
	s.sink.Publish(events.Event{Kind: events.ZoneCreated, ZoneID: z.ID, Details: map[string]any{
		"zone_type": string(z.Type),
		"name":      z.Name,
		"radius":    z.Radius,
	}})
	return z, nil
}

func (s *Store) index(z *model.Zone, add bool) {
	r0, c0, r1, c1, ok := s.grid.Span(z.Center, z.Radius)
	if !ok {
		return
	}
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			k := s.grid.Index(r, c)
			if add {
				s.buckets[k] = append(s.buckets[k], z)
				continue
			}
			b := s.buckets[k]
			for i, x := range b {
				if x == z {
					b = append(b[:i], b[i+1:]...)
					break
				}
			}
			if len(b) == 0 {
				delete(s.buckets, k)
			} else {
				s.buckets[k] = b
			}
		}
	}
}

// At returns the zones covering pos, ignoring height.
func (s *Store) At(pos model.Vec3) []*model.Zone {
	row, col, ok := s.grid.CellAtXZ(pos.X, pos.Z)
	if !ok {
		return nil
	}
	var out []*model.Zone
	for _, z := range s.buckets[s.grid.Index(row, col)] {
		if z.Contains(pos) {
			out = append(out, z)
		}
	}
	return out
}

func (s *Store) Get(id string) *model.Zone { return s.byID[id] }

// All returns every zone ordered by type then id.
func (s *Store) All() []*model.Zone {
	out := make([]*model.Zone, 0, len(s.byID))
	for _, z := range s.byID {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) Count() int { return len(s.byID) }

func (s *Store) Remove(id, reason string) bool {
	z := s.byID[id]
	if z == nil {
		return false
	}
	delete(s.byID, id)
	s.index(z, false)
	s.sink.Publish(events.Event{Kind: events.ZoneRemoved, ZoneID: id, Details: map[string]any{
		"zone_type": string(z.Type),
		"reason":    reason,
	}})
	return true
}

// RemoveByOwner drops the zones tied to a vanished host entity.
func (s *Store) RemoveByOwner(owner model.EntityID) []string {
	if owner == 0 {
		return nil
	}
	var gone []string
	for _, z := range s.All() {
		if z.Owner == owner && s.Remove(z.ID, "owner removed") {
			gone = append(gone, z.ID)
		}
	}
	return gone
}

// FindByOwner returns the first zone of typ tied to owner.
func (s *Store) FindByOwner(typ model.ZoneType, owner model.EntityID) *model.Zone {
	for _, z := range s.All() {
		if z.Type == typ && z.Owner == owner {
			return z
		}
	}
	return nil
}

// Extend pushes a zone's expiry out to until. Zones without expiry and
// later expiries are left alone.
func (s *Store) Extend(id string, until time.Time) bool {
	z := s.byID[id]
	if z == nil || z.Expires.IsZero() || !until.After(z.Expires) {
		return false
	}
	z.Expires = until
	return true
}

// SweepExpired removes zones whose expiry has passed.
func (s *Store) SweepExpired(now time.Time) []string {
	var gone []string
	for _, z := range s.All() {
		if z.Expired(now) && s.Remove(z.ID, "expired") {
			gone = append(gone, z.ID)
		}
	}
	if len(gone) > 0 && s.logger != nil {
		s.logger.Printf("[zones] expired %d zones", len(gone))
	}
	return gone
}
