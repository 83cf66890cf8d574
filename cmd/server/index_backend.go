package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"outpost.gg/internal/persistence/indexdb"
)

// openRuntimeIndex returns nil when indexing is off.
func openRuntimeIndex(worldDir, worldID string, disableDB bool, backend string) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "none", "off", "disabled":
		return nil, nil
	case "", "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"), worldID)
	default:
		return nil, fmt.Errorf("unsupported OUTPOST_INDEX_BACKEND: %s", backend)
	}
}
