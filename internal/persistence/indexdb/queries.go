package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

type EventQuery struct {
	FactionID   string
	Kind        string
	SinceCursor int64
	Limit       int
}

// Events returns indexed events for this world in cursor order.
func (s *SQLiteIndex) Events(ctx context.Context, q EventQuery) ([]EventRow, error) {
	where := []string{"world_id = ?", "cursor > ?"}
	args := []any{s.worldID, q.SinceCursor}
	if q.FactionID != "" {
		where = append(where, "faction_id = ?")
		args = append(args, q.FactionID)
	}
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, q.Kind)
	}
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	args = append(args, limit)

	var out []EventRow
	err := s.db.SelectContext(ctx, &out,
		`SELECT world_id,cursor,time,kind,faction_id,cell_id,user_id,actor_id,war_id,raw_json
		FROM events WHERE `+strings.Join(where, " AND ")+` ORDER BY cursor LIMIT ?`, args...)
	return out, err
}

// WarHistory lists wars involving factionID (all wars when empty), newest
// first.
func (s *SQLiteIndex) WarHistory(ctx context.Context, factionID string, limit int) ([]WarRow, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []WarRow
	var err error
	if factionID == "" {
		err = s.db.SelectContext(ctx, &out,
			`SELECT * FROM wars ORDER BY start_time DESC, id LIMIT ?`, limit)
	} else {
		err = s.db.SelectContext(ctx, &out,
			`SELECT * FROM wars WHERE attacker_id = ? OR defender_id = ? ORDER BY start_time DESC, id LIMIT ?`,
			factionID, factionID, limit)
	}
	return out, err
}

// Snapshots lists indexed snapshots, newest first.
func (s *SQLiteIndex) Snapshots(ctx context.Context, limit int) ([]SnapshotRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []SnapshotRow
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	return out, err
}

// Config returns the stored JSON and digest for name, or ok=false.
func (s *SQLiteIndex) Config(ctx context.Context, name string) (raw, digest string, ok bool, err error) {
	var row struct {
		JSON   string `db:"json"`
		Digest string `db:"digest"`
	}
	err = s.db.GetContext(ctx, &row, `SELECT json,digest FROM configs WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return row.JSON, row.Digest, true, nil
}
