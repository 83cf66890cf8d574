package world

import (
	"context"
	"errors"
	"time"
)

type doReq struct {
	fn   func(*World) error
	resp chan error
}

var ErrStopped = errors.New("world stopped")

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.inbox:
			req.resp <- req.fn(w)
		case <-ticker.C:
			w.Step(w.now())
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// Do runs fn on the world loop goroutine and returns its error. It is the only
// way for other goroutines to read or mutate world state while Run is active.
func (w *World) Do(ctx context.Context, fn func(*World) error) error {
	select {
	case <-w.stop:
		return ErrStopped
	default:
	}
	req := doReq{fn: fn, resp: make(chan error, 1)}
	select {
	case w.inbox <- req:
	case <-w.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.resp:
		return err
	case <-w.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Step advances the world by one tick at now, running whichever periodic jobs
// are due. Run calls it on every ticker fire; tests call it directly.
func (w *World) Step(now time.Time) uint64 {
	start := time.Now()
	tick := w.tick.Add(1)
	w.timers.Tick(now)
	w.updateMetrics(time.Since(start))
	return tick
}
