// Package factions owns faction records: membership, roles and tax settings.
package factions

import (
	"log"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/events"
	"outpost.gg/internal/sim/world/kernel/model"
	"outpost.gg/internal/sim/world/logic/rates"
)

type Config struct {
	MinIDLength      int
	MaxIDLength      int
	DefaultTaxRate   float64
	MaxTaxRate       float64
	BadlandsCooldown time.Duration
}

func (c *Config) applyDefaults() {
	if c.MinIDLength <= 0 {
		c.MinIDLength = 2
	}
	if c.MaxIDLength < c.MinIDLength {
		c.MaxIDLength = 6
	}
	if c.MaxTaxRate <= 0 || c.MaxTaxRate > 1 {
		c.MaxTaxRate = 1
	}
	if c.DefaultTaxRate < 0 || c.DefaultTaxRate > c.MaxTaxRate {
		c.DefaultTaxRate = 0
	}
}

// Hooks let the world cascade faction removal into other stores.
type Hooks struct {
	OnDisband func(f *model.Faction)
}

type Store struct {
	cfg    Config
	hooks  Hooks
	byID   map[string]*model.Faction
	byUser map[string]string
	sink   events.Sink
	logger *log.Logger
}

var upper = cases.Upper(language.Und)

// NormalizeID trims and upper-cases a faction id.
func NormalizeID(id string) string {
	return upper.String(strings.TrimSpace(id))
}

func New(cfg Config, hooks Hooks, sink events.Sink, logger *log.Logger) *Store {
	cfg.applyDefaults()
	if sink == nil {
		sink = events.Discard
	}
	return &Store{
		cfg:    cfg,
		hooks:  hooks,
		byID:   map[string]*model.Faction{},
		byUser: map[string]string{},
		sink:   sink,
		logger: logger,
	}
}

func (s *Store) Config() Config { return s.cfg }

func (s *Store) Get(id string) *model.Faction { return s.byID[NormalizeID(id)] }

func (s *Store) Exists(id string) bool { return s.Get(id) != nil }

func (s *Store) GetByMember(userID string) *model.Faction {
	id, ok := s.byUser[userID]
	if !ok {
		return nil
	}
	return s.byID[id]
}

// GetAll returns the factions sorted by id.
func (s *Store) GetAll() []*model.Faction {
	out := make([]*model.Faction, 0, len(s.byID))
	for _, f := range s.byID {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Count() int { return len(s.byID) }

func (s *Store) Create(id, founder string, now time.Time) (*model.Faction, error) {
	id = NormalizeID(id)
	if n := utf8.RuneCountInString(id); n < s.cfg.MinIDLength || n > s.cfg.MaxIDLength {
		return nil, protocol.Errorf(protocol.ErrBadRequest, "faction id must be %d-%d characters", s.cfg.MinIDLength, s.cfg.MaxIDLength)
	}
	if founder == "" {
		return nil, protocol.Errorf(protocol.ErrBadRequest, "missing founder")
	}
	if _, taken := s.byID[id]; taken {
		return nil, protocol.Errorf(protocol.ErrConflict, "faction %s already exists", id)
	}
	if cur := s.byUser[founder]; cur != "" {
		return nil, protocol.Errorf(protocol.ErrConflict, "already a member of %s", cur)
	}
	f := &model.Faction{
		ID:           id,
		OwnerID:      founder,
		MemberIDs:    []string{founder},
		TaxRate:      s.cfg.DefaultTaxRate,
		CreationTime: now,
	}
	s.byID[id] = f
	s.byUser[founder] = id
	s.publish(events.FactionCreated, f, founder, nil)
	return f, nil
}

// Disband removes every member, announcing each departure, then deletes the
// faction.
func (s *Store) Disband(id string) error {
	f := s.Get(id)
	if f == nil {
		return protocol.Invariantf("factions: disband of unknown faction %q", id)
	}
	for _, m := range slices.Clone(f.MemberIDs) {
		delete(s.byUser, m)
		s.publish(events.MemberLeft, f, m, map[string]any{"reason": "disband"})
	}
	f.MemberIDs = nil
	f.ManagerIDs = nil
	f.InviteIDs = nil
	delete(s.byID, f.ID)
	s.publish(events.FactionDisbanded, f, f.OwnerID, nil)
	if s.hooks.OnDisband != nil {
		s.hooks.OnDisband(f)
	}
	return nil
}

func (s *Store) lookup(id string) (*model.Faction, error) {
	f := s.Get(id)
	if f == nil {
		return nil, protocol.Errorf(protocol.ErrInvalidTarget, "unknown faction %q", id)
	}
	return f, nil
}

func (s *Store) Invite(factionID, userID string) error {
	f, err := s.lookup(factionID)
	if err != nil {
		return err
	}
	switch {
	case userID == "":
		return protocol.Errorf(protocol.ErrBadRequest, "missing user")
	case f.HasMember(userID):
		return protocol.Errorf(protocol.ErrConflict, "%s is already a member", userID)
	case f.HasInvite(userID):
		return protocol.Errorf(protocol.ErrConflict, "%s is already invited", userID)
	}
	f.InviteIDs = append(f.InviteIDs, userID)
	s.publish(events.MemberInvited, f, userID, nil)
	return nil
}

func (s *Store) Join(factionID, userID string) error {
	f, err := s.lookup(factionID)
	if err != nil {
		return err
	}
	if cur := s.byUser[userID]; cur != "" {
		return protocol.Errorf(protocol.ErrConflict, "already a member of %s", cur)
	}
	if !f.HasInvite(userID) {
		return protocol.Errorf(protocol.ErrNoPermission, "no invite from %s", f.ID)
	}
	f.InviteIDs = remove(f.InviteIDs, userID)
	f.MemberIDs = append(f.MemberIDs, userID)
	s.byUser[userID] = f.ID
	s.publish(events.MemberJoined, f, userID, nil)
	return nil
}

// Leave removes userID from their faction. The last member leaving disbands
// it; a departing owner hands over to a manager, else to the first member.
func (s *Store) Leave(userID string) error {
	f := s.GetByMember(userID)
	if f == nil {
		return protocol.Errorf(protocol.ErrInvalidTarget, "not in a faction")
	}
	if f.MemberCount() <= 1 {
		return s.Disband(f.ID)
	}
	s.dropMember(f, userID, "leave")
	return nil
}

func (s *Store) Kick(factionID, userID string) error {
	f, err := s.lookup(factionID)
	if err != nil {
		return err
	}
	if !f.HasMember(userID) {
		return protocol.Errorf(protocol.ErrInvalidTarget, "%s is not a member", userID)
	}
	if f.OwnerID == userID {
		return protocol.Errorf(protocol.ErrNoPermission, "the owner cannot be kicked")
	}
	s.dropMember(f, userID, "kick")
	return nil
}

func (s *Store) dropMember(f *model.Faction, userID, reason string) {
	f.MemberIDs = remove(f.MemberIDs, userID)
	f.ManagerIDs = remove(f.ManagerIDs, userID)
	delete(s.byUser, userID)
	if f.OwnerID == userID {
		next := SelectNextOwner(f.ManagerIDs)
		if next == "" {
			next = SelectNextOwner(f.MemberIDs)
		}
		f.OwnerID = next
		f.ManagerIDs = remove(f.ManagerIDs, next)
		s.publish(events.MemberPromoted, f, next, map[string]any{"role": string(model.RoleOwner)})
	}
	s.publish(events.MemberLeft, f, userID, map[string]any{"reason": reason})
}

// SelectNextOwner picks the lexically smallest candidate.
func SelectNextOwner(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return slices.Min(candidates)
}

func (s *Store) Promote(factionID, userID string) error {
	f, err := s.lookup(factionID)
	if err != nil {
		return err
	}
	if !f.HasMember(userID) {
		return protocol.Invariantf("factions: promote of non-member %q in %s", userID, f.ID)
	}
	if f.OwnerID == userID || f.HasManager(userID) {
		return protocol.Errorf(protocol.ErrConflict, "%s is already a leader", userID)
	}
	f.ManagerIDs = append(f.ManagerIDs, userID)
	s.publish(events.MemberPromoted, f, userID, map[string]any{"role": string(model.RoleManager)})
	return nil
}

func (s *Store) Demote(factionID, userID string) error {
	f, err := s.lookup(factionID)
	if err != nil {
		return err
	}
	if !f.HasMember(userID) {
		return protocol.Invariantf("factions: demote of non-member %q in %s", userID, f.ID)
	}
	if f.OwnerID == userID {
		return protocol.Errorf(protocol.ErrNoPermission, "the owner cannot be demoted")
	}
	if !f.HasManager(userID) {
		return protocol.Errorf(protocol.ErrConflict, "%s is not a manager", userID)
	}
	f.ManagerIDs = remove(f.ManagerIDs, userID)
	s.publish(events.MemberDemoted, f, userID, map[string]any{"role": string(model.RoleMember)})
	return nil
}

func (s *Store) SetTaxRate(factionID string, rate float64) error {
	f, err := s.lookup(factionID)
	if err != nil {
		return err
	}
	if !(rate >= 0 && rate <= s.cfg.MaxTaxRate) {
		return protocol.Errorf(protocol.ErrBadRequest, "tax rate must be within 0-%g", s.cfg.MaxTaxRate)
	}
	f.TaxRate = rate
	s.publish(events.FactionTaxesChanged, f, "", map[string]any{"tax_rate": rate})
	return nil
}

func (s *Store) SetTaxChest(factionID string, chest model.EntityID) error {
	f, err := s.lookup(factionID)
	if err != nil {
		return err
	}
	f.TaxChest = chest
	s.publish(events.FactionTaxesChanged, f, "", map[string]any{"tax_chest": uint64(chest)})
	return nil
}

// SetBadlands flips the hostile flag, at most once per BadlandsCooldown.
func (s *Store) SetBadlands(factionID string, on bool, now time.Time) error {
	f, err := s.lookup(factionID)
	if err != nil {
		return err
	}
	if f.IsBadlands == on {
		return protocol.Errorf(protocol.ErrConflict, "badlands already %t", on)
	}
	if ok, left := rates.Cooldown(now, f.BadlandsToggleTime, s.cfg.BadlandsCooldown); !ok {
		return protocol.Errorf(protocol.ErrCooldown, "badlands toggle available in %s", left.Round(time.Second))
	}
	f.IsBadlands = on
	f.BadlandsToggleTime = now
	s.publish(events.FactionBadlandsChanged, f, "", map[string]any{"badlands": on})
	return nil
}

// SetUpkeepState records the outcome of an upkeep collection.
func (s *Store) SetUpkeepState(factionID string, next time.Time, pastDue bool) error {
	f := s.Get(factionID)
	if f == nil {
		return protocol.Invariantf("factions: upkeep for unknown faction %q", factionID)
	}
	f.NextUpkeepPaymentTime = next
	f.IsUpkeepPastDue = pastDue
	return nil
}

func (s *Store) publish(kind events.Kind, f *model.Faction, userID string, details map[string]any) {
	s.sink.Publish(events.Event{Kind: kind, FactionID: f.ID, UserID: userID, Details: details})
}

func remove(list []string, v string) []string {
	return slices.DeleteFunc(list, func(x string) bool { return x == v })
}
