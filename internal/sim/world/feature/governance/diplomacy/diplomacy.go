// Package diplomacy owns war records and their lifecycle.
//
// A war starts Pending, becomes Active once both the admin and the defender
// approvals hold, and ends for good by treaty, elimination or denial. Ended
// wars stay in the store as history.
package diplomacy

import (
	"log"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/events"
	"outpost.gg/internal/sim/world/kernel/model"
	"outpost.gg/internal/sim/world/logic/rates"
)

type Config struct {
	AdminApprovalRequired    bool
	DefenderApprovalRequired bool

	// NewFactionProtection shields young factions from declarations.
	NewFactionProtection time.Duration

	MinReasonLength    int
	MaxReasonLength    int
	MinDefendersOnline int
	DeclarationCost    int
}

func (c *Config) applyDefaults() {
	if c.MinReasonLength < 0 {
		c.MinReasonLength = 0
	}
	if c.MaxReasonLength <= 0 {
		c.MaxReasonLength = 256
	}
}

type Factions interface {
	Get(id string) *model.Faction
}

// Payer collects the declaration cost from the declarer. It must either take
// the whole amount and return true, or take nothing.
type Payer interface {
	Pay(factionID, userID string, amount int) bool
}

type PayerFunc func(factionID, userID string, amount int) bool

func (f PayerFunc) Pay(factionID, userID string, amount int) bool {
	return f(factionID, userID, amount)
}

type Deps struct {
	Factions Factions
	// Online counts the members of a faction currently connected.
	Online func(factionID string) int
	Payer  Payer
}

type Engine struct {
	cfg  Config
	deps Deps
	wars map[string]*model.War
	// open holds the one open war per unordered pair; ended wars leave it.
	open   map[pairKey]*model.War
	sink   events.Sink
	logger *log.Logger
}

type pairKey struct{ lo, hi string }

func pairOf(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

func New(cfg Config, deps Deps, sink events.Sink, logger *log.Logger) *Engine {
	cfg.applyDefaults()
	if sink == nil {
		sink = events.Discard
	}
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		wars:   map[string]*model.War{},
		open:   map[pairKey]*model.War{},
		sink:   sink,
		logger: logger,
	}
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) DeclareWar(attackerID, defenderID, declarerID, reason string, now time.Time) (*model.War, error) {
	att := e.deps.Factions.Get(attackerID)
	def := e.deps.Factions.Get(defenderID)
	if att == nil || def == nil {
		return nil, protocol.Errorf(protocol.ErrInvalidTarget, "unknown faction")
	}
	if att.ID == def.ID {
		return nil, protocol.Errorf(protocol.ErrBadRequest, "cannot declare war on yourself")
	}
	if !att.HasLeader(declarerID) {
		return nil, protocol.Errorf(protocol.ErrNoPermission, "only leaders of %s may declare war", att.ID)
	}
	if w := e.openWarBetween(att.ID, def.ID); w != nil {
		return nil, protocol.Errorf(protocol.ErrConflict, "war %s between %s and %s is still open", w.ID, att.ID, def.ID)
	}
	for _, f := range []*model.Faction{att, def} {
		if rates.WithinWindow(now, f.CreationTime, e.cfg.NewFactionProtection) {
			return nil, protocol.Errorf(protocol.ErrBlocked, "%s is under new faction protection", f.ID)
		}
	}
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n < e.cfg.MinReasonLength || n > e.cfg.MaxReasonLength {
		return nil, protocol.Errorf(protocol.ErrBadRequest, "reason must be %d-%d characters", e.cfg.MinReasonLength, e.cfg.MaxReasonLength)
	}
	if e.cfg.MinDefendersOnline > 0 {
		online := 0
		if e.deps.Online != nil {
			online = e.deps.Online(def.ID)
		}
		if online < e.cfg.MinDefendersOnline {
			return nil, protocol.Errorf(protocol.ErrBlocked, "%d of %d required defenders online", online, e.cfg.MinDefendersOnline)
		}
	}
	if e.cfg.DeclarationCost > 0 {
		if e.deps.Payer == nil || !e.deps.Payer.Pay(att.ID, declarerID, e.cfg.DeclarationCost) {
			return nil, protocol.Errorf(protocol.ErrNoResource, "declaring war costs %d scrap", e.cfg.DeclarationCost)
		}
	}

	w := &model.War{
		ID:               uuid.NewString(),
		AttackerID:       att.ID,
		DefenderID:       def.ID,
		DeclarerID:       declarerID,
		CassusBelli:      reason,
		StartTime:        now,
		AdminApproved:    !e.cfg.AdminApprovalRequired,
		DefenderApproved: !e.cfg.DefenderApprovalRequired,
	}
	e.wars[w.ID] = w
	e.open[pairOf(w.AttackerID, w.DefenderID)] = w
	e.changed(w, "declared", declarerID)
	return w, nil
}

func (e *Engine) pending(warID string) (*model.War, error) {
	w := e.wars[warID]
	switch {
	case w == nil:
		return nil, protocol.Errorf(protocol.ErrInvalidTarget, "unknown war %q", warID)
	case w.IsEnded():
		return nil, protocol.Errorf(protocol.ErrConflict, "war %s has ended", warID)
	case !w.IsPending():
		return nil, protocol.Errorf(protocol.ErrConflict, "war %s is already active", warID)
	}
	return w, nil
}

func (e *Engine) AdminApprove(warID string) error {
	w, err := e.pending(warID)
	if err != nil {
		return err
	}
	if w.AdminApproved {
		return protocol.Errorf(protocol.ErrConflict, "war %s already approved by admin", warID)
	}
	w.AdminApproved = true
	e.changed(w, "admin_approved", "")
	return nil
}

func (e *Engine) AdminDeny(warID string, now time.Time) error {
	w, err := e.pending(warID)
	if err != nil {
		return err
	}
	e.end(w, model.WarEndAdminDenied, now, "")
	return nil
}

func (e *Engine) defenderLeader(w *model.War, userID string) error {
	if !e.deps.Factions.Get(w.DefenderID).HasLeader(userID) {
		return protocol.Errorf(protocol.ErrNoPermission, "only leaders of %s may answer", w.DefenderID)
	}
	return nil
}

func (e *Engine) DefenderApprove(warID, userID string) error {
	w, err := e.pending(warID)
	if err != nil {
		return err
	}
	if err := e.defenderLeader(w, userID); err != nil {
		return err
	}
	if w.DefenderApproved {
		return protocol.Errorf(protocol.ErrConflict, "war %s already accepted", warID)
	}
	w.DefenderApproved = true
	e.changed(w, "defender_approved", userID)
	return nil
}

func (e *Engine) DefenderDeny(warID, userID string, now time.Time) error {
	w, err := e.pending(warID)
	if err != nil {
		return err
	}
	if err := e.defenderLeader(w, userID); err != nil {
		return err
	}
	if w.DefenderApproved {
		return protocol.Errorf(protocol.ErrConflict, "war %s already accepted", warID)
	}
	e.end(w, model.WarEndDefenderDenied, now, userID)
	return nil
}

// OfferPeace records factionID's offer. Once both sides have offered, the war
// ends by treaty and ended reports true.
func (e *Engine) OfferPeace(warID, factionID string, now time.Time) (ended bool, err error) {
	w := e.wars[warID]
	switch {
	case w == nil:
		return false, protocol.Errorf(protocol.ErrInvalidTarget, "unknown war %q", warID)
	case w.IsEnded():
		return false, protocol.Errorf(protocol.ErrConflict, "war %s has ended", warID)
	case !w.Involves(factionID):
		return false, protocol.Errorf(protocol.ErrNoPermission, "%s is not part of war %s", factionID, warID)
	case !w.IsActive():
		return false, protocol.Errorf(protocol.ErrBlocked, "war %s is not active", warID)
	}
	offer := &w.AttackerPeaceOfferTime
	if factionID == w.DefenderID {
		offer = &w.DefenderPeaceOfferTime
	}
	if !offer.IsZero() {
		return false, protocol.Errorf(protocol.ErrConflict, "%s already offered peace", factionID)
	}
	*offer = now
	if w.AttackerPeaceOfferTime.IsZero() || w.DefenderPeaceOfferTime.IsZero() {
		e.changed(w, "peace_offered", factionID)
		return false, nil
	}
	e.end(w, model.WarEndTreaty, now, factionID)
	return true, nil
}

// SweepEliminations ends every active war where a side holds no claims.
func (e *Engine) SweepEliminations(claimCount func(factionID string) int, now time.Time) []*model.War {
	var out []*model.War
	for _, w := range e.AllActive() {
		switch {
		case claimCount(w.AttackerID) == 0:
			e.end(w, model.WarEndAttackerEliminated, now, "")
		case claimCount(w.DefenderID) == 0:
			e.end(w, model.WarEndDefenderEliminated, now, "")
		default:
			continue
		}
		out = append(out, w)
	}
	return out
}

// Forfeit ends every open war involving factionID, pending ones included, as
// an elimination of that side. Used when the faction is disbanded.
func (e *Engine) Forfeit(factionID string, now time.Time) []*model.War {
	var out []*model.War
	for _, w := range e.filter(func(w *model.War) bool { return !w.IsEnded() && w.Involves(factionID) }) {
		reason := model.WarEndDefenderEliminated
		if w.AttackerID == factionID {
			reason = model.WarEndAttackerEliminated
		}
		e.end(w, reason, now, "")
		out = append(out, w)
	}
	return out
}

// EndByTrade closes the active war between a and b by treaty, if any.
func (e *Engine) EndByTrade(a, b string, now time.Time) *model.War {
	w := e.ActiveWarBetween(a, b)
	if w == nil {
		return nil
	}
	e.end(w, model.WarEndTreaty, now, "")
	return w
}

func (e *Engine) end(w *model.War, reason model.WarEndReason, now time.Time, actor string) {
	w.EndTime = now
	w.EndReason = reason
	if k := pairOf(w.AttackerID, w.DefenderID); e.open[k] == w {
		delete(e.open, k)
	}
	e.changed(w, "ended", actor)
}

func (e *Engine) changed(w *model.War, what, actor string) {
	state := "PENDING"
	switch {
	case w.IsEnded():
		state = "ENDED"
	case w.IsActive():
		state = "ACTIVE"
	}
	d := map[string]any{
		"change":      what,
		"state":       state,
		"attacker_id": w.AttackerID,
		"defender_id": w.DefenderID,
	}
	if w.EndReason != "" {
		d["end_reason"] = string(w.EndReason)
	}
	e.sink.Publish(events.Event{Kind: events.DiplomacyChanged, WarID: w.ID, FactionID: w.AttackerID, ActorID: actor, Details: d})
	if e.logger != nil {
		e.logger.Printf("[diplomacy] war %s %s -> %s: %s (%s)", w.ID, w.AttackerID, w.DefenderID, what, state)
	}
}

func (e *Engine) Get(warID string) *model.War { return e.wars[warID] }

// All returns every war, oldest first.
func (e *Engine) All() []*model.War {
	return e.filter(func(*model.War) bool { return true })
}

func (e *Engine) filter(keep func(*model.War) bool) []*model.War {
	var out []*model.War
	for _, w := range e.wars {
		if keep(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (e *Engine) openWarBetween(a, b string) *model.War {
	return e.open[pairOf(a, b)]
}

// ActiveWarBetween is a single map lookup; it runs on every combat hit.
func (e *Engine) ActiveWarBetween(a, b string) *model.War {
	if w := e.openWarBetween(a, b); w != nil && w.IsActive() {
		return w
	}
	return nil
}

// AreFactionsAtWar is symmetric in a and b.
func (e *Engine) AreFactionsAtWar(a, b string) bool {
	return a != b && e.ActiveWarBetween(a, b) != nil
}

func (e *Engine) AllActive() []*model.War {
	return e.filter(func(w *model.War) bool { return w.IsActive() })
}

func (e *Engine) AllActiveBy(factionID string) []*model.War {
	return e.filter(func(w *model.War) bool { return w.IsActive() && w.Involves(factionID) })
}

func (e *Engine) AllAdminPending() []*model.War {
	return e.filter(func(w *model.War) bool { return !w.IsEnded() && !w.AdminApproved })
}

// AllUnapprovedBy lists open wars still waiting on factionID's acceptance as
// defender.
func (e *Engine) AllUnapprovedBy(factionID string) []*model.War {
	return e.filter(func(w *model.War) bool {
		return !w.IsEnded() && w.DefenderID == factionID && !w.DefenderApproved
	})
}
