package world

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"outpost.gg/internal/persistence/snapshot"
	"outpost.gg/internal/sim/world/events"
	"outpost.gg/internal/sim/world/feature/governance/diplomacy"
	"outpost.gg/internal/sim/world/feature/governance/factions"
	"outpost.gg/internal/sim/world/feature/governance/upkeep"
	"outpost.gg/internal/sim/world/feature/pins"
	"outpost.gg/internal/sim/world/feature/territory"
	"outpost.gg/internal/sim/world/feature/zones"
	"outpost.gg/internal/sim/world/grid"
	"outpost.gg/internal/sim/world/kernel/model"
	"outpost.gg/internal/sim/world/logic/timers"
	"outpost.gg/internal/sim/world/policy/combat"
)

// World is a single-threaded authoritative simulation of territory, factions
// and diplomacy. All state must be accessed only from the world loop goroutine;
// other goroutines go through Do.
type World struct {
	cfg    WorldConfig
	logger *log.Logger
	now    func() time.Time

	tick atomic.Uint64

	grid      grid.Grid
	bus       *events.Bus
	territory *territory.Store
	factions  *factions.Store
	diplomacy *diplomacy.Engine
	upkeep    *upkeep.Collector
	combat    *combat.Engine
	pins      *pins.Store
	zones     *zones.Store
	timers    *timers.Scheduler

	host    Host
	players map[string]*model.Player

	inbox chan doReq
	stop  chan struct{}

	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value // WorldMetrics
}

func New(cfg WorldConfig, host Host, logger *log.Logger) (*World, error) {
	cfg.applyDefaults()
	if host == nil {
		return nil, fmt.Errorf("world: nil host")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	g, err := grid.New(cfg.MapSize, cfg.CellSize, grid.Options{
		Offset:             cfg.GridOffset,
		ExcludeUnderground: cfg.ExcludeUnderground,
		UndergroundY:       cfg.UndergroundY,
	})
	if err != nil {
		return nil, err
	}

	w := &World{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		grid:    g,
		bus:     events.NewBus(cfg.EventBacklog),
		timers:  timers.New(),
		host:    host,
		players: map[string]*model.Player{},
		inbox:   make(chan doReq, 256),
		stop:    make(chan struct{}),
	}
	sink := events.SinkFunc(w.publish)

	w.territory = territory.New(g, sink, logger)
	w.factions = factions.New(cfg.Factions, factions.Hooks{OnDisband: w.onDisband}, sink, logger)
	w.diplomacy = diplomacy.New(cfg.Diplomacy, diplomacy.Deps{
		Factions: w.factions,
		Online:   w.onlineMembers,
		Payer:    diplomacy.PayerFunc(w.payDeclaration),
	}, sink, logger)
	w.upkeep = &upkeep.Collector{
		Config:     cfg.Upkeep,
		Territory:  w.territory,
		Factions:   w.factions,
		Containers: host,
		Structures: host,
		Sink:       sink,
		Logger:     logger,
	}
	w.pins = pins.New(cfg.Pins, sink, logger)
	w.zones = zones.New(g, sink, logger)
	w.combat = &combat.Engine{
		Policy:    cfg.Combat,
		Territory: w.territory,
		Factions:  w.factions,
		Diplomacy: w.diplomacy,
		Zones:     w.zones,
		Players:   w,
	}

	for _, m := range cfg.Monuments {
		r := m.Radius
		if r <= 0 {
			r = cfg.ZoneRadii[model.ZoneMonument]
		}
		if _, err := w.zones.Create(model.ZoneMonument, m.Name, 0, m.Center, r, time.Time{}); err != nil {
			return nil, fmt.Errorf("monument %q: %w", m.Name, err)
		}
	}
	w.registerJobs()
	w.updateMetrics(0)
	return w, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) Tick() uint64 { return w.tick.Load() }

// SetClock replaces the wall clock used by Run and by operations that take no
// explicit time. Tests use it for determinism.
func (w *World) SetClock(now func() time.Time) { w.now = now }

func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

// Events exposes the change-notification backlog. The bus is safe for
// concurrent use.
func (w *World) Events() *events.Bus { return w.bus }

func (w *World) Grid() grid.Grid { return w.grid }

func (w *World) Territory() *territory.Store  { return w.territory }
func (w *World) Factions() *factions.Store    { return w.factions }
func (w *World) Diplomacy() *diplomacy.Engine { return w.diplomacy }
func (w *World) Pins() *pins.Store            { return w.pins }
func (w *World) Zones() *zones.Store          { return w.zones }
func (w *World) Combat() *combat.Engine       { return w.combat }
func (w *World) Timers() *timers.Scheduler    { return w.timers }

// publish is the sink every store writes to. It applies cross-store reactions
// before fanning the event out.
func (w *World) publish(e events.Event) {
	if e.Time.IsZero() {
		e.Time = w.now()
	}
	if e.Kind == events.CellChanged {
		if c := w.territory.Get(e.CellID); c != nil && !c.IsClaimed() {
			w.pins.RemoveInCell(c.ID)
		}
	}
	w.bus.Publish(e)
}

func (w *World) onDisband(f *model.Faction) {
	n := w.timers.CancelOwner(f.ID)
	var cells []string
	for _, c := range w.territory.GetAllClaimedBy(f.ID) {
		cells = append(cells, c.ID)
	}
	if len(cells) > 0 {
		if err := w.territory.Unclaim(cells...); err != nil {
			w.logger.Printf("[world] disband %s: unclaim: %v", f.ID, err)
		}
	}
	wars := w.diplomacy.Forfeit(f.ID, w.now())
	w.logger.Printf("[world] faction %s disbanded: %d cells released, %d wars ended, %d jobs cancelled", f.ID, len(cells), len(wars), n)
}

func (w *World) onlineMembers(factionID string) int {
	f := w.factions.Get(factionID)
	if f == nil {
		return 0
	}
	n := 0
	for _, id := range f.MemberIDs {
		if p := w.players[id]; p != nil && p.Online {
			n++
		}
	}
	return n
}

func (w *World) payDeclaration(_, userID string, amount int) bool {
	return w.host.Take(userID, w.cfg.ScrapItem, amount)
}

// Player implements combat.Players.
func (w *World) Player(id string) *model.Player { return w.players[id] }
