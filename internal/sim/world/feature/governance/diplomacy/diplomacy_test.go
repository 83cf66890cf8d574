package diplomacy

import (
	"fmt"
	"testing"
	"time"

	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/events"
	"outpost.gg/internal/sim/world/kernel/model"
)

var t0 = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

type factionMap map[string]*model.Faction

func (m factionMap) Get(id string) *model.Faction { return m[id] }

func testFactions() factionMap {
	old := t0.Add(-30 * 24 * time.Hour)
	return factionMap{
		"RUST": {ID: "RUST", OwnerID: "alice", MemberIDs: []string{"alice", "al2"}, CreationTime: old},
		"IRON": {ID: "IRON", OwnerID: "bob", MemberIDs: []string{"bob"}, ManagerIDs: []string{"bob2"}, CreationTime: old},
		"NEW":  {ID: "NEW", OwnerID: "nina", MemberIDs: []string{"nina"}, CreationTime: t0.Add(-time.Hour)},
	}
}

func newEngine(cfg Config, payer Payer) (*Engine, *events.Recorder) {
	rec := &events.Recorder{}
	deps := Deps{Factions: testFactions(), Online: func(string) int { return 1 }, Payer: payer}
	return New(cfg, deps, rec, nil), rec
}

const reason = "they raided our farm"

func TestDeclareWarWithoutGatesIsActive(t *testing.T) {
	e, rec := newEngine(Config{}, nil)
	w, err := e.DeclareWar("RUST", "IRON", "alice", reason, t0)
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if !w.IsActive() || w.ID == "" {
		t.Fatalf("expected active war with id, got %+v", w)
	}
	if !e.AreFactionsAtWar("RUST", "IRON") || !e.AreFactionsAtWar("IRON", "RUST") {
		t.Fatalf("at-war must be symmetric")
	}
	if e.AreFactionsAtWar("RUST", "NEW") || e.AreFactionsAtWar("RUST", "RUST") {
		t.Fatalf("unexpected war")
	}
	if rec.Count(events.DiplomacyChanged) != 1 {
		t.Fatalf("expected diplomacy event")
	}
	if _, err := e.DeclareWar("IRON", "RUST", "bob", reason, t0); protocol.CodeOf(err) != protocol.ErrConflict {
		t.Fatalf("second war for pair: got %v", err)
	}
}

func TestDefenderApprovalGate(t *testing.T) {
	e, _ := newEngine(Config{DefenderApprovalRequired: true}, nil)
	w, err := e.DeclareWar("RUST", "IRON", "alice", reason, t0)
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if w.IsActive() || !w.IsPending() {
		t.Fatalf("expected pending war")
	}
	if got := e.AllUnapprovedBy("IRON"); len(got) != 1 {
		t.Fatalf("expected unapproved war for IRON, got %d", len(got))
	}
	if err := e.DefenderApprove(w.ID, "alice"); protocol.CodeOf(err) != protocol.ErrNoPermission {
		t.Fatalf("attacker approving defence: got %v", err)
	}
	if _, err := e.OfferPeace(w.ID, "RUST", t0); protocol.CodeOf(err) != protocol.ErrBlocked {
		t.Fatalf("peace on pending war: got %v", err)
	}
	if err := e.DefenderApprove(w.ID, "bob2"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !w.IsActive() || !e.AreFactionsAtWar("IRON", "RUST") {
		t.Fatalf("expected active war after approval")
	}
	if err := e.DefenderDeny(w.ID, "bob", t0); protocol.CodeOf(err) != protocol.ErrConflict {
		t.Fatalf("deny of active war: got %v", err)
	}
}

func TestAdminDenyEndsPendingWar(t *testing.T) {
	e, _ := newEngine(Config{AdminApprovalRequired: true}, nil)
	w, _ := e.DeclareWar("RUST", "IRON", "alice", reason, t0)
	if len(e.AllAdminPending()) != 1 {
		t.Fatalf("expected admin pending war")
	}
	if err := e.AdminDeny(w.ID, t0.Add(time.Minute)); err != nil {
		t.Fatalf("deny: %v", err)
	}
	if !w.IsEnded() || w.EndReason != model.WarEndAdminDenied {
		t.Fatalf("unexpected war %+v", w)
	}
	if err := e.AdminApprove(w.ID); protocol.CodeOf(err) != protocol.ErrConflict {
		t.Fatalf("approve after deny: got %v", err)
	}
	// An ended war no longer blocks a new declaration.
	if _, err := e.DeclareWar("RUST", "IRON", "alice", reason, t0); err != nil {
		t.Fatalf("redeclare: %v", err)
	}
	if len(e.All()) != 2 {
		t.Fatalf("history must be kept")
	}
}

func TestMutualPeaceEndsOnce(t *testing.T) {
	e, rec := newEngine(Config{}, nil)
	w, _ := e.DeclareWar("RUST", "IRON", "alice", reason, t0)

	ended, err := e.OfferPeace(w.ID, "RUST", t0.Add(time.Hour))
	if err != nil || ended {
		t.Fatalf("first offer: ended=%v err=%v", ended, err)
	}
	if _, err := e.OfferPeace(w.ID, "RUST", t0.Add(2*time.Hour)); protocol.CodeOf(err) != protocol.ErrConflict {
		t.Fatalf("duplicate offer: got %v", err)
	}
	if _, err := e.OfferPeace(w.ID, "NEW", t0); protocol.CodeOf(err) != protocol.ErrNoPermission {
		t.Fatalf("outsider offer: got %v", err)
	}
	ended, err = e.OfferPeace(w.ID, "IRON", t0.Add(3*time.Hour))
	if err != nil || !ended {
		t.Fatalf("mutual offer: ended=%v err=%v", ended, err)
	}
	if w.EndReason != model.WarEndTreaty || !w.EndTime.Equal(t0.Add(3*time.Hour)) {
		t.Fatalf("unexpected end %+v", w)
	}
	rec.Reset()
	if _, err := e.OfferPeace(w.ID, "IRON", t0.Add(4*time.Hour)); protocol.CodeOf(err) != protocol.ErrConflict {
		t.Fatalf("offer on ended war: got %v", err)
	}
	if w.EndReason != model.WarEndTreaty || len(rec.Events) != 0 || e.AreFactionsAtWar("RUST", "IRON") {
		t.Fatalf("ended war must stay ended")
	}
}

func TestDeclareGuards(t *testing.T) {
	paid := 0
	payer := PayerFunc(func(f, u string, n int) bool {
		if f == "IRON" {
			return false
		}
		paid += n
		return true
	})
	e, _ := newEngine(Config{
		NewFactionProtection: 24 * time.Hour,
		MinReasonLength:      5,
		DeclarationCost:      100,
	}, payer)

	if _, err := e.DeclareWar("RUST", "NEW", "alice", reason, t0); protocol.CodeOf(err) != protocol.ErrBlocked {
		t.Fatalf("protected defender: got %v", err)
	}
	if _, err := e.DeclareWar("RUST", "IRON", "alice", "meh", t0); protocol.CodeOf(err) != protocol.ErrBadRequest {
		t.Fatalf("short reason: got %v", err)
	}
	if _, err := e.DeclareWar("RUST", "IRON", "al2", reason, t0); protocol.CodeOf(err) != protocol.ErrNoPermission {
		t.Fatalf("non-leader declarer: got %v", err)
	}
	if _, err := e.DeclareWar("IRON", "RUST", "bob", reason, t0); protocol.CodeOf(err) != protocol.ErrNoResource {
		t.Fatalf("unpaid declaration: got %v", err)
	}
	if len(e.All()) != 0 || paid != 0 {
		t.Fatalf("failed declarations must not create wars or charge")
	}
	if _, err := e.DeclareWar("RUST", "IRON", "alice", reason, t0); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if paid != 100 {
		t.Fatalf("expected cost charged once, got %d", paid)
	}

	e2, _ := newEngine(Config{MinDefendersOnline: 2}, nil)
	if _, err := e2.DeclareWar("RUST", "IRON", "alice", reason, t0); protocol.CodeOf(err) != protocol.ErrBlocked {
		t.Fatalf("defenders offline: got %v", err)
	}
}

func TestSweepEliminationsAndTrade(t *testing.T) {
	e, _ := newEngine(Config{}, nil)
	w1, _ := e.DeclareWar("RUST", "IRON", "alice", reason, t0)
	w2, _ := e.DeclareWar("NEW", "IRON", "nina", reason, t0)
	claims := map[string]int{"RUST": 3, "IRON": 2}

	ended := e.SweepEliminations(func(id string) int { return claims[id] }, t0.Add(time.Hour))
	if len(ended) != 1 || ended[0] != w2 || w2.EndReason != model.WarEndAttackerEliminated {
		t.Fatalf("expected NEW eliminated, got %+v", ended)
	}
	if got := e.AllActiveBy("IRON"); len(got) != 1 || got[0] != w1 {
		t.Fatalf("expected w1 still active")
	}
	if e.EndByTrade("IRON", "NEW", t0) != nil {
		t.Fatalf("no active war between IRON and NEW")
	}
	if e.EndByTrade("IRON", "RUST", t0.Add(2*time.Hour)) != w1 || w1.EndReason != model.WarEndTreaty {
		t.Fatalf("trade should end w1 by treaty")
	}
	if len(e.AllActive()) != 0 {
		t.Fatalf("expected no active wars")
	}
}

func TestLoadClosesDuplicateOpenWars(t *testing.T) {
	e, _ := newEngine(Config{}, nil)
	n := e.Load([]model.War{
		{ID: "w1", AttackerID: "RUST", DefenderID: "IRON", AdminApproved: true, DefenderApproved: true, StartTime: t0},
		{ID: "w2", AttackerID: "IRON", DefenderID: "RUST", AdminApproved: true, DefenderApproved: true, StartTime: t0.Add(time.Hour)},
		{AttackerID: "RUST", DefenderID: "NEW", StartTime: t0, EndTime: t0, EndReason: model.WarEndTreaty},
	}, t0.Add(2*time.Hour))
	if n != 2 {
		t.Fatalf("expected 2 repairs, got %d", n)
	}
	if !e.Get("w1").IsActive() || !e.Get("w2").IsEnded() || len(e.Export()) != 3 {
		t.Fatalf("unexpected load result %+v", e.Export())
	}
}

func TestForfeitEndsOpenWarsOfDisbandedFaction(t *testing.T) {
	e, _ := newEngine(Config{DefenderApprovalRequired: true}, nil)
	pending, _ := e.DeclareWar("RUST", "IRON", "alice", reason, t0)
	other, _ := e.DeclareWar("NEW", "RUST", "nina", reason, t0)

	ended := e.Forfeit("RUST", t0.Add(time.Minute))
	if len(ended) != 2 {
		t.Fatalf("expected both wars ended, got %d", len(ended))
	}
	if pending.EndReason != model.WarEndAttackerEliminated {
		t.Fatalf("RUST attacked: got %s", pending.EndReason)
	}
	if other.EndReason != model.WarEndDefenderEliminated {
		t.Fatalf("RUST defended: got %s", other.EndReason)
	}
	if len(e.Forfeit("RUST", t0.Add(time.Hour))) != 0 {
		t.Fatalf("ended wars must not end twice")
	}
}

func TestWarLookupIgnoresEndedHistory(t *testing.T) {
	e, _ := newEngine(Config{}, nil)
	var hist []model.War
	for i := 0; i < 500; i++ {
		start := t0.Add(-time.Duration(i+1) * time.Hour)
		hist = append(hist, model.War{
			ID: fmt.Sprintf("old-%d", i), AttackerID: "RUST", DefenderID: "IRON",
			AdminApproved: true, DefenderApproved: true,
			StartTime: start, EndTime: start.Add(time.Minute), EndReason: model.WarEndTreaty,
		})
	}
	if n := e.Load(hist, t0); n != 0 {
		t.Fatalf("history needs no repair, got %d", n)
	}
	if e.AreFactionsAtWar("RUST", "IRON") || e.ActiveWarBetween("IRON", "RUST") != nil {
		t.Fatalf("ended wars must not count")
	}

	w, err := e.DeclareWar("IRON", "RUST", "bob", reason, t0)
	if err != nil {
		t.Fatalf("declare over ended history: %v", err)
	}
	if e.ActiveWarBetween("RUST", "IRON") != w {
		t.Fatalf("lookup should find the new war")
	}
	if _, err := e.OfferPeace(w.ID, "RUST", t0.Add(time.Minute)); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if _, err := e.OfferPeace(w.ID, "IRON", t0.Add(time.Minute)); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if e.AreFactionsAtWar("IRON", "RUST") {
		t.Fatalf("treaty must clear the pair")
	}
	if len(e.All()) != 501 {
		t.Fatalf("history lost: %d", len(e.All()))
	}
	if _, err := e.DeclareWar("RUST", "IRON", "alice", reason, t0.Add(time.Hour)); err != nil {
		t.Fatalf("pair should be free again: %v", err)
	}
}

func TestDefenderCannotDenyAfterAccepting(t *testing.T) {
	e, _ := newEngine(Config{AdminApprovalRequired: true, DefenderApprovalRequired: true}, nil)
	w, err := e.DeclareWar("RUST", "IRON", "alice", reason, t0)
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if err := e.DefenderApprove(w.ID, "bob"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := e.DefenderDeny(w.ID, "bob", t0.Add(time.Minute)); protocol.CodeOf(err) != protocol.ErrConflict {
		t.Fatalf("deny after accept: got %v", err)
	}
	if w.IsEnded() {
		t.Fatalf("war ended by a refused deny: %s", w.EndReason)
	}
	if err := e.AdminApprove(w.ID); err != nil || !w.IsActive() {
		t.Fatalf("admin approve: %v active=%v", err, w.IsActive())
	}
}
