package world

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoSnapshotSink = errors.New("snapshot sink not configured")
	ErrSnapshotBusy   = errors.New("snapshot sink backpressure")
)

// RequestSnapshot exports the current state on the loop goroutine and hands it
// to the snapshot sink. Safe to call from HTTP handlers while Run is active.
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, err error) {
	err = w.Do(ctx, func(w *World) error {
		tick, err = w.enqueueSnapshot()
		return err
	})
	return tick, err
}

// enqueueSnapshot never blocks the loop; a full sink is reported, not waited on.
func (w *World) enqueueSnapshot() (uint64, error) {
	tick := w.tick.Load()
	if w.snapshotSink == nil {
		return tick, ErrNoSnapshotSink
	}
	select {
	case w.snapshotSink <- w.ExportSnapshot(tick):
		return tick, nil
	default:
		return tick, ErrSnapshotBusy
	}
}

func (w *World) runSnapshot(time.Time) {
	if w.snapshotSink == nil {
		return
	}
	if tick, err := w.enqueueSnapshot(); err != nil {
		w.logger.Printf("[snapshot] skipped tick %d: %v", tick, err)
	}
}
