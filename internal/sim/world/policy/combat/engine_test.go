package combat

import (
	"testing"
	"time"

	"outpost.gg/internal/sim/world/feature/governance/diplomacy"
	"outpost.gg/internal/sim/world/feature/governance/factions"
	"outpost.gg/internal/sim/world/feature/territory"
	"outpost.gg/internal/sim/world/grid"
	"outpost.gg/internal/sim/world/kernel/model"
)

var t0 = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

type playerMap map[string]*model.Player

func (m playerMap) Player(id string) *model.Player { return m[id] }

type zoneList []*model.Zone

func (l zoneList) At(pos model.Vec3) []*model.Zone {
	var out []*model.Zone
	for _, z := range l {
		if z.Contains(pos) {
			out = append(out, z)
		}
	}
	return out
}

type fixture struct {
	eng     *Engine
	terr    *territory.Store
	facts   *factions.Store
	dip     *diplomacy.Engine
	players playerMap
	zones   *zoneList
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g, err := grid.New(1000, 100, grid.Options{})
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	fx := &fixture{
		terr:    territory.New(g, nil, nil),
		facts:   factions.New(factions.Config{}, factions.Hooks{}, nil, nil),
		players: playerMap{},
		zones:   &zoneList{},
	}
	fx.dip = diplomacy.New(diplomacy.Config{}, diplomacy.Deps{Factions: fx.facts}, nil, nil)
	fx.eng = &Engine{
		Policy:    DefaultPolicy(),
		Territory: fx.terr,
		Factions:  fx.facts,
		Diplomacy: fx.dip,
		Zones:     fx.zones,
		Players:   fx.players,
	}

	old := t0.Add(-90 * 24 * time.Hour)
	for _, f := range []struct{ id, owner string }{{"AAA", "alice"}, {"BBB", "bob"}} {
		if _, err := fx.facts.Create(f.id, f.owner, old); err != nil {
			t.Fatalf("create %s: %v", f.id, err)
		}
	}
	_ = fx.facts.Invite("AAA", "amy")
	_ = fx.facts.Join("AAA", "amy")
	_ = fx.facts.Invite("BBB", "ben")
	_ = fx.facts.Join("BBB", "ben")

	// A solid 5x5 block for AAA with its centre at row 2, col 2.
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			_ = fx.terr.Claim(g.ID(r, c), model.CellClaimed, "AAA", "alice", model.EntityID(r*10+c+1))
		}
	}
	_ = fx.terr.AddBadlands(g.ID(8, 8))
	return fx
}

func (fx *fixture) center(row, col int) model.Vec3 {
	c, _ := fx.terr.Grid().Bounds(row, col)
	return c
}

func (fx *fixture) place(id string, pos model.Vec3) {
	fx.players[id] = &model.Player{ID: id, Position: pos, Online: true}
}

func TestPvPDeniedUntilWar(t *testing.T) {
	fx := newFixture(t)
	fx.place("bob", fx.center(6, 6))
	fx.place("alice", fx.center(2, 2))

	if d := fx.eng.PlayerVsPlayer("bob", "alice"); d.Verdict != Deny {
		t.Fatalf("expected deny before war, got %v", d)
	}
	if _, err := fx.dip.DeclareWar("BBB", "AAA", "bob", "border dispute", t0); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if d := fx.eng.PlayerVsPlayer("bob", "alice"); d.Verdict != Allow {
		t.Fatalf("expected allow at war, got %v", d)
	}
	if d := fx.eng.PlayerVsPlayer("alice", "bob"); d.Verdict != Allow {
		t.Fatalf("war must allow both directions, got %v", d)
	}
}

func TestPvPInDangerRules(t *testing.T) {
	fx := newFixture(t)
	fx.place("bob", fx.center(8, 8)) // badlands
	fx.place("ben", fx.center(8, 8))
	fx.place("amy", fx.center(7, 7)) // wilderness
	fx.place("loner", fx.center(7, 7))

	if d := fx.eng.PlayerVsPlayer("bob", "ben"); d.Verdict != Allow {
		t.Fatalf("both in badlands: got %v", d)
	}
	if d := fx.eng.PlayerVsPlayer("bob", "amy"); d.Verdict != Deny {
		t.Fatalf("victim in wilderness: got %v", d)
	}
	fx.players["amy"].PvPEnabled = true
	if d := fx.eng.PlayerVsPlayer("bob", "amy"); d.Verdict != Allow {
		t.Fatalf("victim opted in: got %v", d)
	}
	if d := fx.eng.PlayerVsPlayer("loner", "loner"); d.Verdict != Allow {
		t.Fatalf("self damage: got %v", d)
	}

	*fx.zones = append(*fx.zones, &model.Zone{ID: "z", Type: model.ZoneSupplyDrop, Center: fx.center(7, 7), Radius: 10})
	fx.place("ben", fx.center(7, 7))
	if d := fx.eng.PlayerVsPlayer("ben", "loner"); d.Verdict != Allow {
		t.Fatalf("both inside event zone: got %v", d)
	}

	_ = fx.facts.SetBadlands("AAA", true, t0)
	fx.place("alice", fx.center(2, 2))
	if !fx.eng.InDanger("alice") {
		t.Fatalf("members of a hostile faction are always in danger")
	}

	fx.eng.Policy.RestrictPvP = false
	if d := fx.eng.PlayerVsPlayer("bob", "alice"); d.Verdict != Allow {
		t.Fatalf("unrestricted pvp: got %v", d)
	}
}

func TestStructureDefensiveDepthAtWar(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.dip.DeclareWar("BBB", "AAA", "bob", "border dispute", t0); err != nil {
		t.Fatalf("declare: %v", err)
	}
	wall := Entity{ID: 500, Category: BuildingBlock, OwnerID: "alice", Position: fx.center(2, 2), Health: 100}
	if depth := fx.terr.DepthInsideFriendlyTerritory(fx.terr.Grid().ID(2, 2)); depth != 2 {
		t.Fatalf("expected depth 2, got %d", depth)
	}
	d := fx.eng.PlayerVsStructure("ben", wall, 10)
	if d.Verdict != Scale || d.Factor != 0.5 {
		t.Fatalf("expected scale 0.5, got %v", d)
	}

	border := wall
	border.Position = fx.center(0, 2)
	if d := fx.eng.PlayerVsStructure("ben", border, 10); d.Verdict != Allow {
		t.Fatalf("border structure at war: got %v", d)
	}

	fx.eng.Policy.DefensiveBonuses = []float64{0, 1}
	if d := fx.eng.PlayerVsStructure("ben", wall, 10); d.Verdict != Deny {
		t.Fatalf("full reduction must deny, got %v", d)
	}
}

func TestStructureWithoutWar(t *testing.T) {
	fx := newFixture(t)
	wall := Entity{ID: 500, Category: Door, OwnerID: "alice", Position: fx.center(2, 2), Health: 100}

	if d := fx.eng.PlayerVsStructure("ben", wall, 10); d.Verdict != Deny {
		t.Fatalf("raid outside war: got %v", d)
	}
	trap := Entity{ID: 501, Category: Trap, OwnerID: "alice", Position: fx.center(2, 2)}
	if d := fx.eng.PlayerVsStructure("ben", trap, 10); d.Verdict != Allow {
		t.Fatalf("unprotected category: got %v", d)
	}
	if d := fx.eng.PlayerVsStructure("alice", wall, 10); d.Verdict != Allow {
		t.Fatalf("owner leader in own land: got %v", d)
	}
	d := fx.eng.PlayerVsStructure("amy", wall, 10)
	if d.Verdict != Scale || d.Factor != fx.eng.Policy.OwnTerritoryDamageScale {
		t.Fatalf("non-leader in own land: got %v", d)
	}

	outside := Entity{ID: 502, Category: Container, OwnerID: "ben", Position: fx.center(7, 7), Health: 100}
	if d := fx.eng.PlayerVsStructure("ben", outside, 10); d.Verdict != Allow {
		t.Fatalf("owner on own entity: got %v", d)
	}
	if d := fx.eng.PlayerVsStructure("amy", outside, 10); d.Verdict != Deny {
		t.Fatalf("wilderness raid restricted: got %v", d)
	}

	badlands := outside
	badlands.Position = fx.center(8, 8)
	if d := fx.eng.PlayerVsStructure("amy", badlands, 10); d.Verdict != Allow {
		t.Fatalf("badlands raid: got %v", d)
	}

	_ = fx.facts.SetBadlands("AAA", true, t0)
	if d := fx.eng.PlayerVsStructure("ben", wall, 10); d.Verdict != Scale || d.Factor != 0.5 {
		t.Fatalf("hostile faction land is raidable with depth reduction: got %v", d)
	}
}

func TestRaidTrigger(t *testing.T) {
	fx := newFixture(t)
	_, _ = fx.dip.DeclareWar("BBB", "AAA", "bob", "border dispute", t0)
	tc := Entity{ID: 600, Category: Deployable, OwnerID: "alice", Position: fx.center(2, 2), Health: 10, RaidTrigger: true}

	if d := fx.eng.PlayerVsStructure("ben", tc, 10); d.StartsRaid {
		t.Fatalf("scaled hit leaves 5 health, no raid expected: %v", d)
	}
	if d := fx.eng.PlayerVsStructure("ben", tc, 20); !d.StartsRaid || d.Verdict != Scale {
		t.Fatalf("expected raid start, got %v", d)
	}
	tc.RaidTrigger = false
	if d := fx.eng.PlayerVsStructure("ben", tc, 20); d.StartsRaid {
		t.Fatalf("non-trigger entity started a raid")
	}
}

func TestIncidentalAndTurrets(t *testing.T) {
	fx := newFixture(t)
	fx.place("ben", fx.center(7, 7))
	fx.place("amy", fx.center(2, 2))

	if d := fx.eng.Incidental(fx.center(2, 2), ""); d.Verdict != Deny {
		t.Fatalf("fire in claimed land: got %v", d)
	}
	if d := fx.eng.Incidental(fx.center(7, 7), ""); d.Verdict != Allow {
		t.Fatalf("fire in wilderness: got %v", d)
	}
	fx.players["amy"].PvPEnabled = true
	if d := fx.eng.Incidental(fx.center(2, 2), "amy"); d.Verdict != Allow {
		t.Fatalf("victim in danger: got %v", d)
	}

	if fx.eng.TurretCanTarget("alice", "ben") {
		t.Fatalf("turret must not target safe player")
	}
	if !fx.eng.TurretCanTarget("alice", "alice") {
		t.Fatalf("owner is always a legal target")
	}
	if !fx.eng.TurretCanTarget("ben", "amy") {
		t.Fatalf("player in danger is a legal target")
	}
	_, _ = fx.dip.DeclareWar("AAA", "BBB", "alice", "border dispute", t0)
	if !fx.eng.TurretCanTarget("alice", "ben") {
		t.Fatalf("enemy at war is a legal target")
	}

	d := fx.eng.Evaluate(Event{Kind: TurretTarget, AttackerID: "alice", VictimID: "ben"})
	if d.Verdict != Allow {
		t.Fatalf("dispatch turret: got %v", d)
	}
	if d := fx.eng.Evaluate(Event{Kind: EventKind(99)}); d.Verdict != Deny {
		t.Fatalf("unknown kind must deny, got %v", d)
	}
	if d := fx.eng.Evaluate(Event{Kind: PlayerHitPlayer, AttackerID: "ben", VictimID: "alice"}); d.Verdict != Allow {
		t.Fatalf("dispatch pvp at war: got %v", d)
	}
}
