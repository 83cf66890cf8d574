// Package pins keeps named map markers placed inside claimed land.
package pins

import (
	"log"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/events"
	"outpost.gg/internal/sim/world/kernel/model"
)

type Config struct {
	MinNameLength int
	MaxNameLength int
}

var fold = cases.Fold()

// Key is the case-insensitive identity of a pin name.
func Key(name string) string {
	return fold.String(strings.TrimSpace(name))
}

type Store struct {
	cfg    Config
	byKey  map[string]*model.Pin
	sink   events.Sink
	logger *log.Logger
}

func New(cfg Config, sink events.Sink, logger *log.Logger) *Store {
	if cfg.MinNameLength <= 0 {
		cfg.MinNameLength = 1
	}
	if cfg.MaxNameLength < cfg.MinNameLength {
		cfg.MaxNameLength = 20
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Store{cfg: cfg, byKey: map[string]*model.Pin{}, sink: sink, logger: logger}
}

func (s *Store) Get(name string) *model.Pin { return s.byKey[Key(name)] }

// GetAll returns pins ordered by name key.
func (s *Store) GetAll() []*model.Pin {
	keys := make([]string, 0, len(s.byKey))
	for k := range s.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*model.Pin, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.byKey[k])
	}
	return out
}

func (s *Store) GetInCell(cellID string) []*model.Pin {
	var out []*model.Pin
	for _, p := range s.GetAll() {
		if p.CellID == cellID {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks a pin before any cost is taken.
func (s *Store) Validate(p model.Pin) error {
	name := strings.TrimSpace(p.Name)
	if n := utf8.RuneCountInString(name); n < s.cfg.MinNameLength || n > s.cfg.MaxNameLength {
		return protocol.Errorf(protocol.ErrBadRequest, "pin name must be %d-%d characters", s.cfg.MinNameLength, s.cfg.MaxNameLength)
	}
	if !p.Type.Valid() {
		return protocol.Errorf(protocol.ErrBadRequest, "unknown pin type %q", p.Type)
	}
	if p.CellID == "" {
		return protocol.Errorf(protocol.ErrBadRequest, "pin outside the grid")
	}
	if s.byKey[Key(name)] != nil {
		return protocol.Errorf(protocol.ErrConflict, "a pin named %q already exists", name)
	}
	return nil
}

func (s *Store) Add(p model.Pin) (*model.Pin, error) {
	if err := s.Validate(p); err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(p.Name)
	rec := &p
	s.byKey[Key(p.Name)] = rec
	s.sink.Publish(events.Event{Kind: events.PinCreated, PinName: p.Name, CellID: p.CellID, UserID: p.CreatorID,
		Details: map[string]any{"pin_type": string(p.Type)}})
	return rec, nil
}

func (s *Store) Remove(name, actorID string) error {
	k := Key(name)
	p := s.byKey[k]
	if p == nil {
		return protocol.Errorf(protocol.ErrInvalidTarget, "no pin named %q", name)
	}
	delete(s.byKey, k)
	s.sink.Publish(events.Event{Kind: events.PinRemoved, PinName: p.Name, CellID: p.CellID, ActorID: actorID})
	return nil
}

// RemoveInCell drops every pin in cellID and returns their names.
func (s *Store) RemoveInCell(cellID string) []string {
	var out []string
	for _, p := range s.GetInCell(cellID) {
		_ = s.Remove(p.Name, "")
		out = append(out, p.Name)
	}
	if len(out) > 0 && s.logger != nil {
		s.logger.Printf("[pins] %s lost its claim, removed %d pins", cellID, len(out))
	}
	return out
}

func (s *Store) Export() []model.Pin {
	all := s.GetAll()
	out := make([]model.Pin, 0, len(all))
	for _, p := range all {
		out = append(out, *p)
	}
	return out
}

// Load replaces all pins without publishing. keep filters out records whose
// cell is no longer claimed; duplicates by name key are dropped.
func (s *Store) Load(recs []model.Pin, keep func(model.Pin) bool) int {
	s.byKey = map[string]*model.Pin{}
	dropped := 0
	for _, r := range recs {
		k := Key(r.Name)
		if k == "" || s.byKey[k] != nil || (keep != nil && !keep(r)) {
			dropped++
			continue
		}
		p := r
		s.byKey[k] = &p
	}
	return dropped
}
