package world

import (
	"context"
	"testing"
	"time"

	"outpost.gg/internal/persistence/snapshot"
	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/events"
	"outpost.gg/internal/sim/world/feature/governance/upkeep"
	"outpost.gg/internal/sim/world/kernel/model"
	"outpost.gg/internal/sim/world/policy/combat"
)

func TestDisbandReleasesEverything(t *testing.T) {
	fx := newFixture(t)
	w := fx.w
	fx.found(t, "alice", "rust")
	fx.found(t, "bob", "iron")
	fx.claim(t, "alice", 2, 2)
	fx.claim(t, "bob", 4, 4)
	if _, err := w.CreatePin("alice", "Shop", model.PinShop, fx.center(2, 2)); err != nil {
		t.Fatalf("pin: %v", err)
	}
	war, err := w.DeclareWar("alice", "iron", "border dispute")
	if err != nil || !war.IsActive() {
		t.Fatalf("declare: %v", err)
	}
	if !w.Timers().Has("upkeep:RUST") {
		t.Fatalf("expected upkeep job for RUST")
	}

	wantCode(t, w.DisbandFaction("nobody"), protocol.ErrInvalidTarget)
	if err := w.DisbandFaction("alice"); err != nil {
		t.Fatalf("disband: %v", err)
	}
	if w.Factions().Exists("RUST") || w.Territory().CountClaimedBy("RUST") != 0 {
		t.Fatalf("faction or claims survived disband")
	}
	if w.Timers().Has("upkeep:RUST") || !w.Timers().Has("upkeep:IRON") {
		t.Fatalf("only RUST's upkeep job should be cancelled: %v", w.Timers().Names())
	}
	if war.EndReason != model.WarEndAttackerEliminated {
		t.Fatalf("expected war forfeited, got %q", war.EndReason)
	}
	if len(w.Pins().GetAll()) != 0 {
		t.Fatalf("pins on released land must go")
	}
}

func TestUnclaimRemovesPins(t *testing.T) {
	fx := newFixture(t)
	w := fx.w
	fx.found(t, "alice", "rust")
	fx.claim(t, "alice", 2, 2)
	c, s := fx.claim(t, "alice", 2, 3)

	if _, err := w.CreatePin("alice", "Mine", model.PinMine, c.Center); err != nil {
		t.Fatalf("pin: %v", err)
	}
	_, err := w.CreatePin("alice", "mine", model.PinShop, c.Center)
	wantCode(t, err, protocol.ErrConflict)
	_, err = w.CreatePin("alice", "Far", model.PinShop, fx.center(0, 0))
	wantCode(t, err, protocol.ErrNoPermission)
	if got := fx.host.Balance("alice", "scrap"); got != 1000-50-50-100 {
		t.Fatalf("only the successful pin is paid for, balance %d", got)
	}

	wantCode(t, w.RemovePin("mallory", "mine"), protocol.ErrNoPermission)

	if cells := w.StructureDestroyed(s); len(cells) != 1 || cells[0] != c.ID {
		t.Fatalf("expected %s unclaimed, got %v", c.ID, cells)
	}
	if w.Pins().Get("mine") != nil {
		t.Fatalf("pin must follow its cell")
	}
}

func TestUpkeepRunsOnTimers(t *testing.T) {
	fx := newFixture(t)
	w := fx.w
	f := fx.found(t, "alice", "rust")
	hq, s := fx.claim(t, "alice", 2, 2)
	rec := &events.Recorder{}
	cancel := w.Events().Subscribe(func(it events.CursorItem) { rec.Publish(it.Event) })
	defer cancel()

	fx.step(0)
	fx.step(time.Minute)
	if !f.NextUpkeepPaymentTime.Equal(t0.Add(61 * time.Minute)) {
		t.Fatalf("first run only schedules, got due %v", f.NextUpkeepPaymentTime)
	}

	fx.host.Deposit(s, "scrap", 10)
	fx.step(time.Hour)
	if fx.host.Stored(s, "scrap") != 0 || f.IsUpkeepPastDue {
		t.Fatalf("upkeep should be paid from the headquarters")
	}

	fx.step(time.Hour)
	if !f.IsUpkeepPastDue || w.Territory().CountClaimedBy("RUST") != 1 {
		t.Fatalf("unpaid upkeep inside grace only flags past due")
	}

	fx.step(61 * time.Minute)
	if hq.IsClaimed() || fx.host.Exists(s) {
		t.Fatalf("expected headquarters forfeited and its structure destroyed")
	}
	var outcomes []string
	for _, e := range rec.Events {
		if e.Kind == events.UpkeepCollected {
			outcomes = append(outcomes, e.Details["outcome"].(string))
		}
	}
	want := []string{string(upkeep.Paid), string(upkeep.PastDue), string(upkeep.Forfeited)}
	if len(outcomes) != len(want) {
		t.Fatalf("outcomes %v, want %v", outcomes, want)
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Fatalf("outcomes %v, want %v", outcomes, want)
		}
	}
}

func TestEliminationSweepEndsWar(t *testing.T) {
	fx := newFixture(t)
	w := fx.w
	fx.found(t, "alice", "rust")
	fx.found(t, "bob", "iron")
	fx.claim(t, "alice", 2, 2)
	_, s := fx.claim(t, "bob", 4, 4)
	war, _ := w.DeclareWar("alice", "IRON", "")

	fx.step(0)
	fx.host.Destroy(s)
	fx.step(time.Minute)
	if w.Territory().CountClaimedBy("IRON") != 0 {
		t.Fatalf("integrity job should unclaim the orphaned cell")
	}
	if !war.IsActive() {
		t.Fatalf("the sweep ran before the integrity job this tick")
	}
	fx.step(30 * time.Second)
	if war.EndReason != model.WarEndDefenderEliminated {
		t.Fatalf("expected defender eliminated, got %q", war.EndReason)
	}
}

func TestRaidOpensAndRefreshesZone(t *testing.T) {
	fx := newFixture(t)
	w := fx.w
	fx.found(t, "alice", "rust")
	fx.found(t, "bob", "iron")
	hq, s := fx.claim(t, "alice", 2, 2)
	fx.claim(t, "bob", 4, 4)
	fx.step(0)

	hit := combat.Event{
		Kind:       combat.PlayerHitStructure,
		AttackerID: "bob",
		Target: combat.Entity{
			ID:          500,
			Category:    combat.Door,
			OwnerID:     "alice",
			Position:    hq.Center,
			Health:      5,
			RaidTrigger: true,
		},
		Damage: 10,
	}
	if d := w.Evaluate(hit); d.Verdict != combat.Deny || w.Zones().Count() != 0 {
		t.Fatalf("no war: expected deny without raid zone, got %v", d)
	}

	if _, err := w.DeclareWar("alice", "iron", ""); err != nil {
		t.Fatalf("declare: %v", err)
	}
	d := w.Evaluate(hit)
	if d.Verdict != combat.Allow || !d.StartsRaid {
		t.Fatalf("expected allowed raid start, got %v", d)
	}
	z := w.Zones().FindByOwner(model.ZoneRaid, s)
	if z == nil || z.Center != hq.Center || !z.Expires.Equal(t0.Add(10*time.Minute)) {
		t.Fatalf("expected raid zone around the headquarters, got %+v", z)
	}
	fx.now = fx.now.Add(5 * time.Minute)
	w.Evaluate(hit)
	if w.Zones().Count() != 1 || !z.Expires.Equal(t0.Add(15*time.Minute)) {
		t.Fatalf("second trigger should extend the zone, expires %v", z.Expires)
	}

	fx.step(11 * time.Minute)
	if w.Zones().Count() != 0 {
		t.Fatalf("expired raid zone must be swept")
	}
}

func TestHarvestTax(t *testing.T) {
	fx := newFixture(t)
	w := fx.w
	fx.found(t, "alice", "rust")
	hq, s := fx.claim(t, "alice", 2, 2)
	if err := w.SetTaxChest("alice", hq.Center); err != nil {
		t.Fatalf("tax chest: %v", err)
	}

	split := w.Harvest("carol", "wood", 100, hq.Center)
	if split.Tax != 10 || split.Harvester != 90 || split.Chest != s {
		t.Fatalf("outsider split %+v", split)
	}
	if fx.host.Stored(s, "wood") != 10 || fx.host.Balance("carol", "wood") != 90 {
		t.Fatalf("tax not delivered")
	}

	split = w.Harvest("alice", "wood", 100, hq.Center)
	if split.Tax != 10 || split.Harvester != 100 {
		t.Fatalf("member split %+v", split)
	}

	_ = w.MarkBadlands(fx.cellID(0, 0))
	split = w.Harvest("carol", "wood", 100, fx.center(0, 0))
	if split.Tax != 0 || split.Harvester != 120 {
		t.Fatalf("badlands split %+v", split)
	}

	fx.host.ContainerCapacity = 20
	split = w.Harvest("carol", "wood", 100, hq.Center)
	if split.Tax != 0 || split.Harvester != 100 {
		t.Fatalf("full chest: expected no tax, got %+v", split)
	}
}

func TestPvPToggleCooldown(t *testing.T) {
	fx := newFixture(t)
	w := fx.w
	w.Connect("alice", fx.center(2, 2))
	if w.InDanger("alice") {
		t.Fatalf("wilderness is safe by default")
	}
	if err := w.SetPvP("alice", true); err != nil || !w.InDanger("alice") {
		t.Fatalf("enable pvp: %v", err)
	}
	wantCode(t, w.SetPvP("alice", false), protocol.ErrCooldown)
	fx.now = fx.now.Add(w.Config().PvPToggleCooldown)
	if err := w.SetPvP("alice", false); err != nil {
		t.Fatalf("disable pvp: %v", err)
	}
	wantCode(t, w.SetPvP("ghost", true), protocol.ErrInvalidTarget)
}

func TestSnapshotRoundTrip(t *testing.T) {
	fx := newFixture(t)
	w := fx.w
	fx.found(t, "alice", "rust")
	fx.found(t, "bob", "iron")
	hq, _ := fx.claim(t, "alice", 2, 2)
	_, lost := fx.claim(t, "alice", 2, 3)
	fx.claim(t, "bob", 4, 4)
	_ = w.RenameCell("alice", hq.ID, "Home")
	_, _ = w.CreatePin("alice", "Arena", model.PinArena, hq.Center)
	war, _ := w.DeclareWar("alice", "iron", "")
	fx.step(0)

	snap := w.ExportSnapshot(w.Tick())
	path := t.TempDir() + "/" + snapshot.FileName(snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	fx.host.Destroy(lost)

	restored := newFixtureWith(t, testConfig(), fx.host)
	if !restored.w.LoadSnapshotFile(path) {
		t.Fatalf("snapshot not loaded")
	}
	r := restored.w
	if r.Tick() != snap.Header.Tick {
		t.Fatalf("tick %d, want %d", r.Tick(), snap.Header.Tick)
	}
	if c := r.Territory().Get(hq.ID); c.Type != model.CellHeadquarters || c.Name != "Home" {
		t.Fatalf("headquarters not restored: %+v", c)
	}
	if r.Territory().Get(fx.cellID(2, 3)).IsClaimed() {
		t.Fatalf("claim with a destroyed structure must degrade to unclaimed")
	}
	if rw := r.Diplomacy().Get(war.ID); rw == nil || !rw.IsActive() {
		t.Fatalf("war not restored")
	}
	if !r.Diplomacy().AreFactionsAtWar("IRON", "RUST") || r.Pins().Get("arena") == nil {
		t.Fatalf("war or pin lost")
	}
	if !r.Timers().Has("upkeep:RUST") || !r.Timers().Has("upkeep:IRON") {
		t.Fatalf("upkeep jobs must be rescheduled on import")
	}
	if err := r.ImportSnapshot(snap); err == nil {
		t.Fatalf("second import into a populated world must fail")
	}

	empty := newFixture(t)
	if empty.w.LoadSnapshotFile(t.TempDir() + "/missing.snap.zst") {
		t.Fatalf("missing file must not load")
	}
	if empty.w.Factions().Count() != 0 {
		t.Fatalf("failed load leaves the world empty")
	}
}

func TestRunServesDoAndSnapshots(t *testing.T) {
	cfg := testConfig()
	cfg.TickRateHz = 50
	w, err := New(cfg, NewMemoryHost(), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	err = w.Do(ctx, func(w *World) error {
		_, err := w.CreateFaction("alice", "rust")
		return err
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	err = w.Do(ctx, func(w *World) error {
		_, err := w.CreateFaction("alice", "iron")
		return err
	})
	wantCode(t, err, protocol.ErrConflict)

	if _, err := w.RequestSnapshot(ctx); err != nil {
		t.Fatalf("request snapshot: %v", err)
	}
	select {
	case snap := <-sink:
		if len(snap.Factions) != 1 || snap.Factions[0].ID != "RUST" {
			t.Fatalf("unexpected snapshot factions %+v", snap.Factions)
		}
	case <-ctx.Done():
		t.Fatalf("no snapshot delivered")
	}
	if m := w.Metrics(); m.Factions != 1 {
		t.Fatalf("metrics not updated: %+v", m)
	}

	w.Stop()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := w.Do(context.Background(), func(*World) error { return nil }); err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}
