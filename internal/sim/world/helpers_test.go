package world

import (
	"testing"
	"time"

	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/kernel/model"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	w    *World
	host *MemoryHost
	now  time.Time
}

func testConfig() WorldConfig {
	cfg := DefaultConfig()
	cfg.MapSize = 600
	cfg.CellSize = 100
	cfg.ClaimCost = 50
	cfg.PinCost = 100
	cfg.Diplomacy.DefenderApprovalRequired = false
	cfg.Diplomacy.NewFactionProtection = 0
	cfg.Diplomacy.MinReasonLength = 0
	cfg.Upkeep.Period = time.Hour
	cfg.Upkeep.GracePeriod = time.Hour
	cfg.Upkeep.Costs = []int{10}
	cfg.UpkeepCheckInterval = time.Minute
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, testConfig(), NewMemoryHost())
}

func newFixtureWith(t *testing.T, cfg WorldConfig, host *MemoryHost) *fixture {
	t.Helper()
	w, err := New(cfg, host, nil)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	fx := &fixture{w: w, host: host, now: t0}
	w.SetClock(func() time.Time { return fx.now })
	return fx
}

func (fx *fixture) center(row, col int) model.Vec3 {
	return fx.w.Territory().GetAt(row, col).Center
}

func (fx *fixture) cellID(row, col int) string {
	return fx.w.Territory().GetAt(row, col).ID
}

// found creates a faction for owner with scrap to spend.
func (fx *fixture) found(t *testing.T, owner, id string) *model.Faction {
	t.Helper()
	fx.host.Give(owner, "scrap", 1000)
	f, err := fx.w.CreateFaction(owner, id)
	if err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
	return f
}

// claim places a structure in the cell and claims it for userID.
func (fx *fixture) claim(t *testing.T, userID string, row, col int) (*model.Cell, model.EntityID) {
	t.Helper()
	pos := fx.center(row, col)
	s := fx.host.AddStructure(pos, 40)
	c, err := fx.w.ClaimAt(userID, pos)
	if err != nil {
		t.Fatalf("claim %d,%d by %s: %v", row, col, userID, err)
	}
	return c, s
}

func (fx *fixture) step(d time.Duration) {
	fx.now = fx.now.Add(d)
	fx.w.Step(fx.now)
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if got := protocol.CodeOf(err); got != code {
		t.Fatalf("expected %s, got %q (%v)", code, got, err)
	}
}
