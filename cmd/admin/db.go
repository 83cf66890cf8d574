package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"outpost.gg/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	faction := fs.String("faction", "", "faction id filter (events, wars)")
	kind := fs.String("kind", "", "event kind filter (events)")
	since := fs.Int64("since", 0, "only events after this cursor (events)")
	limit := fs.Int("limit", 0, "row limit")
	name := fs.String("name", "tuning", "config name (config)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	q := fs.Arg(0)
	if q == "" {
		q = "snapshots"
	}

	path := filepath.Join(worldDir(*dataDir, *worldID), "index", "world.sqlite")
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "index:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(path, *worldID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch q {
	case "snapshots":
		rows, err := idx.Snapshots(ctx, *limit)
		exitOn("query", err)
		for _, r := range rows {
			printJSON(r)
		}
	case "events":
		rows, err := idx.Events(ctx, indexdb.EventQuery{
			FactionID:   *faction,
			Kind:        *kind,
			SinceCursor: *since,
			Limit:       *limit,
		})
		exitOn("query", err)
		for _, r := range rows {
			printJSON(r)
		}
	case "wars":
		rows, err := idx.WarHistory(ctx, *faction, *limit)
		exitOn("query", err)
		for _, r := range rows {
			printJSON(r)
		}
	case "config":
		raw, digest, ok, err := idx.Config(ctx, *name)
		exitOn("query", err)
		if !ok {
			fmt.Fprintln(os.Stderr, "no config named", *name)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "sha256:", digest)
		fmt.Println(raw)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(snapshots|events|wars|config)")
		os.Exit(2)
	}
}

func exitOn(what string, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, what+":", err)
		os.Exit(1)
	}
}
