package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "outpost.gg/internal/persistence/log"
	"outpost.gg/internal/persistence/snapshot"
)

// inspectCmd prints one section of a snapshot file, one JSON object per line.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	faction := fs.String("faction", "", "only rows for this faction")
	_ = fs.Parse(args)

	what := fs.Arg(0)
	if what == "" {
		what = "summary"
	}
	path := *snapPath
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -snapshot")
			os.Exit(2)
		}
		p, err := snapshot.Latest(filepath.Join(worldDir(*dataDir, *worldID), "snapshots"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "latest snapshot:", err)
			os.Exit(1)
		}
		path = p
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	if err := inspect(os.Stdout, snap, what, *faction); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

type snapshotSummary struct {
	Path         string `json:"path,omitempty"`
	WorldID      string `json:"world_id"`
	Tick         uint64 `json:"tick"`
	SavedAt      string `json:"saved_at"`
	Cells        int    `json:"cells"`
	ClaimedCells int    `json:"claimed_cells"`
	Factions     int    `json:"factions"`
	OpenWars     int    `json:"open_wars"`
	Wars         int    `json:"wars"`
	Pins         int    `json:"pins"`
}

func inspect(w io.Writer, snap snapshot.SnapshotV1, what, faction string) error {
	enc := json.NewEncoder(w)
	switch what {
	case "summary":
		s := snapshotSummary{
			WorldID:  snap.Header.WorldID,
			Tick:     snap.Header.Tick,
			SavedAt:  snap.Header.SavedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Cells:    len(snap.Cells),
			Factions: len(snap.Factions),
			Wars:     len(snap.Wars),
			Pins:     len(snap.Pins),
		}
		for _, c := range snap.Cells {
			if c.FactionID != "" {
				s.ClaimedCells++
			}
		}
		for _, war := range snap.Wars {
			if war.EndTime.IsZero() {
				s.OpenWars++
			}
		}
		return enc.Encode(s)

	case "factions":
		fs := append([]snapshot.FactionV1(nil), snap.Factions...)
		sort.Slice(fs, func(i, j int) bool { return fs[i].ID < fs[j].ID })
		for _, f := range fs {
			if faction != "" && f.ID != faction {
				continue
			}
			if err := enc.Encode(f); err != nil {
				return err
			}
		}
		return nil

	case "wars":
		for _, war := range snap.Wars {
			if faction != "" && war.AttackerID != faction && war.DefenderID != faction {
				continue
			}
			if err := enc.Encode(war); err != nil {
				return err
			}
		}
		return nil

	case "cells":
		for _, c := range snap.Cells {
			if c.FactionID == "" && c.Name == "" {
				continue
			}
			if faction != "" && c.FactionID != faction {
				continue
			}
			if err := enc.Encode(c); err != nil {
				return err
			}
		}
		return nil

	case "pins":
		for _, p := range snap.Pins {
			if err := enc.Encode(p); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown section %q (summary|factions|wars|cells|pins)", what)
}

// auditCmd prints audit log entries, optionally filtered by action.
func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	action := fs.String("action", "", "only entries with this action (e.g. war.approve)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	files, err := persistlog.Files(filepath.Join(worldDir(*dataDir, *worldID), "audit"), "audit")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit:", err)
		os.Exit(1)
	}
	for _, f := range files {
		entries, err := persistlog.ReadAudit(f)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read audit:", err)
			os.Exit(1)
		}
		for _, e := range filterAudit(entries, *action) {
			printJSON(e)
		}
	}
}

func filterAudit(entries []persistlog.AuditEntry, action string) []persistlog.AuditEntry {
	if action == "" {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
