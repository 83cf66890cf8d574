package indexdb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"outpost.gg/internal/persistence/snapshot"
	"outpost.gg/internal/sim/world/events"
)

// SQLiteIndex is a queryable read model of the event stream, war history and
// written snapshots. Writes are queued and applied by one goroutine; the
// snapshot files and JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db      *sqlx.DB
	worldID string

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqEvent reqKind = iota + 1
	reqSnapshot
	reqConfig
)

type req struct {
	kind reqKind

	event    EventRow
	snapshot SnapshotRow
	wars     []WarRow
	config   configRow
}

type EventRow struct {
	Cursor    int64  `db:"cursor" json:"cursor"`
	WorldID   string `db:"world_id" json:"world_id"`
	Time      string `db:"time" json:"time"`
	Kind      string `db:"kind" json:"kind"`
	FactionID string `db:"faction_id" json:"faction_id,omitempty"`
	CellID    string `db:"cell_id" json:"cell_id,omitempty"`
	UserID    string `db:"user_id" json:"user_id,omitempty"`
	ActorID   string `db:"actor_id" json:"actor_id,omitempty"`
	WarID     string `db:"war_id" json:"war_id,omitempty"`
	RawJSON   string `db:"raw_json" json:"-"`
}

type WarRow struct {
	ID               string `db:"id" json:"id"`
	AttackerID       string `db:"attacker_id" json:"attacker_id"`
	DefenderID       string `db:"defender_id" json:"defender_id"`
	DeclarerID       string `db:"declarer_id" json:"declarer_id"`
	CassusBelli      string `db:"cassus_belli" json:"cassus_belli"`
	StartTime        string `db:"start_time" json:"start_time"`
	EndTime          string `db:"end_time" json:"end_time,omitempty"`
	EndReason        string `db:"end_reason" json:"end_reason,omitempty"`
	AdminApproved    bool   `db:"admin_approved" json:"admin_approved"`
	DefenderApproved bool   `db:"defender_approved" json:"defender_approved"`
	LastTick         int64  `db:"last_tick" json:"last_tick"`
}

type SnapshotRow struct {
	Tick         int64  `db:"tick" json:"tick"`
	Path         string `db:"path" json:"path"`
	SavedAt      string `db:"saved_at" json:"saved_at"`
	Factions     int    `db:"factions" json:"factions"`
	ClaimedCells int    `db:"claimed_cells" json:"claimed_cells"`
	Wars         int    `db:"wars" json:"wars"`
	Pins         int    `db:"pins" json:"pins"`
}

type configRow struct {
	Name   string
	Digest string
	JSON   string
}

func OpenSQLite(path, worldID string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &SQLiteIndex{
		db:      db,
		worldID: worldID,
		ch:      make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	// WAL suits the append-only workload; NORMAL sync is enough for an index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS configs (
		name TEXT PRIMARY KEY,
		digest TEXT NOT NULL,
		json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		world_id TEXT NOT NULL,
		cursor INTEGER NOT NULL,
		time TEXT NOT NULL,
		kind TEXT NOT NULL,
		faction_id TEXT NOT NULL DEFAULT '',
		cell_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		actor_id TEXT NOT NULL DEFAULT '',
		war_id TEXT NOT NULL DEFAULT '',
		raw_json TEXT NOT NULL,
		PRIMARY KEY (world_id, cursor)
	);

	CREATE TABLE IF NOT EXISTS wars (
		id TEXT PRIMARY KEY,
		attacker_id TEXT NOT NULL,
		defender_id TEXT NOT NULL,
		declarer_id TEXT NOT NULL,
		cassus_belli TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL DEFAULT '',
		end_reason TEXT NOT NULL DEFAULT '',
		admin_approved INTEGER NOT NULL,
		defender_approved INTEGER NOT NULL,
		last_tick INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		tick INTEGER PRIMARY KEY,
		path TEXT NOT NULL,
		saved_at TEXT NOT NULL,
		factions INTEGER NOT NULL,
		claimed_cells INTEGER NOT NULL,
		wars INTEGER NOT NULL,
		pins INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_faction ON events(faction_id, cursor);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind, cursor);
	CREATE INDEX IF NOT EXISTS idx_wars_attacker ON wars(attacker_id);
	CREATE INDEX IF NOT EXISTS idx_wars_defender ON wars(defender_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped reports writes lost because the queue was full.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

// Attach indexes every event published on bus from now on.
func (s *SQLiteIndex) Attach(bus *events.Bus) (cancel func()) {
	return bus.Subscribe(s.RecordEvent)
}

func (s *SQLiteIndex) RecordEvent(it events.CursorItem) {
	e := it.Event
	raw, _ := json.Marshal(e.Wire())
	s.enqueue(req{kind: reqEvent, event: EventRow{
		Cursor:    int64(it.Cursor),
		WorldID:   s.worldID,
		Time:      formatTime(e.Time),
		Kind:      string(e.Kind),
		FactionID: e.FactionID,
		CellID:    e.CellID,
		UserID:    e.UserID,
		ActorID:   e.ActorID,
		WarID:     e.WarID,
		RawJSON:   string(raw),
	}})
}

// RecordSnapshot indexes a written snapshot and refreshes the war history
// from it.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	row := SnapshotRow{
		Tick:     int64(snap.Header.Tick),
		Path:     path,
		SavedAt:  formatTime(snap.Header.SavedAt),
		Factions: len(snap.Factions),
		Wars:     len(snap.Wars),
		Pins:     len(snap.Pins),
	}
	for _, c := range snap.Cells {
		if c.FactionID != "" {
			row.ClaimedCells++
		}
	}
	wars := make([]WarRow, 0, len(snap.Wars))
	for _, w := range snap.Wars {
		wars = append(wars, WarRow{
			ID:               w.ID,
			AttackerID:       w.AttackerID,
			DefenderID:       w.DefenderID,
			DeclarerID:       w.DeclarerID,
			CassusBelli:      w.CassusBelli,
			StartTime:        formatTime(w.StartTime),
			EndTime:          formatTime(w.EndTime),
			EndReason:        w.EndReason,
			AdminApproved:    w.AdminApproved,
			DefenderApproved: w.DefenderApproved,
			LastTick:         int64(snap.Header.Tick),
		})
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: row, wars: wars})
}

// RecordConfig stores the canonical JSON of an applied configuration.
func (s *SQLiteIndex) RecordConfig(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	s.enqueue(req{kind: reqConfig, config: configRow{Name: name, Digest: hex.EncodeToString(sum[:]), JSON: string(b)}})
	return nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			s.dropped.Add(1)
			continue
		}
		if err := apply(tx, r); err != nil {
			rollback()
			continue
		}
		opCount++
		// Commit when idle too, so readers see recent rows promptly.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}

func apply(tx *sqlx.Tx, r req) error {
	switch r.kind {
	case reqEvent:
		_, err := tx.NamedExec(`INSERT OR REPLACE INTO events
			(world_id,cursor,time,kind,faction_id,cell_id,user_id,actor_id,war_id,raw_json)
			VALUES (:world_id,:cursor,:time,:kind,:faction_id,:cell_id,:user_id,:actor_id,:war_id,:raw_json)`, r.event)
		return err
	case reqSnapshot:
		if _, err := tx.NamedExec(`INSERT OR REPLACE INTO snapshots
			(tick,path,saved_at,factions,claimed_cells,wars,pins)
			VALUES (:tick,:path,:saved_at,:factions,:claimed_cells,:wars,:pins)`, r.snapshot); err != nil {
			return err
		}
		for _, w := range r.wars {
			if _, err := tx.NamedExec(`INSERT OR REPLACE INTO wars
				(id,attacker_id,defender_id,declarer_id,cassus_belli,start_time,end_time,end_reason,admin_approved,defender_approved,last_tick)
				VALUES (:id,:attacker_id,:defender_id,:declarer_id,:cassus_belli,:start_time,:end_time,:end_reason,:admin_approved,:defender_approved,:last_tick)`, w); err != nil {
				return err
			}
		}
		return nil
	case reqConfig:
		_, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
			r.config.Name, r.config.Digest, r.config.JSON, time.Now().UTC().Format(time.RFC3339Nano))
		return err
	}
	return fmt.Errorf("unknown request kind %d", r.kind)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
