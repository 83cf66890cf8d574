// Package timers runs fixed-interval jobs on the world loop.
//
// A job is never re-entered: if it is still running when it comes due again
// (a job that ticks the scheduler itself, or a slow job under a concurrent
// caller), that run is skipped. Jobs tied to an object carry its id as Owner
// so they can be cancelled together when the object goes away.
package timers

import (
	"sort"
	"sync"
	"time"
)

type Job func(now time.Time)

type entry struct {
	name     string
	owner    string
	interval time.Duration
	fn       Job
	next     time.Time
	running  bool
	skipped  int
}

type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*entry
}

func New() *Scheduler {
	return &Scheduler{jobs: map[string]*entry{}}
}

// Every registers fn under name, replacing any job with that name. The first
// run is one interval after the first Tick that sees the job.
func (s *Scheduler) Every(name, owner string, interval time.Duration, fn Job) {
	if interval <= 0 || fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = &entry{name: name, owner: owner, interval: interval, fn: fn}
}

func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	delete(s.jobs, name)
	return ok
}

// CancelOwner removes every job registered for owner and reports how many.
func (s *Scheduler) CancelOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for name, e := range s.jobs {
		if e.owner == owner {
			delete(s.jobs, name)
			n++
		}
	}
	return n
}

func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// Names lists registered jobs in order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Skipped reports how often a job's run was dropped because it was still
// running.
func (s *Scheduler) Skipped(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.jobs[name]; e != nil {
		return e.skipped
	}
	return 0
}

// Tick runs every due job, in name order, and returns how many ran. A job
// cancelled by an earlier job in the same tick does not run.
func (s *Scheduler) Tick(now time.Time) int {
	s.mu.Lock()
	var due []*entry
	for _, e := range s.jobs {
		if e.next.IsZero() {
			e.next = now.Add(e.interval)
			continue
		}
		if now.Before(e.next) {
			continue
		}
		if e.running {
			e.skipped++
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].name < due[j].name })
	s.mu.Unlock()

	ran := 0
	for _, e := range due {
		s.mu.Lock()
		live := s.jobs[e.name] == e && !e.running
		if live {
			e.running = true
			e.next = nextAfter(e.next, e.interval, now)
		}
		s.mu.Unlock()
		if !live {
			continue
		}
		s.run(e, now)
		ran++
	}
	return ran
}

// run clears the running flag even if the job panics, so a recovered panic
// does not park the job forever.
func (s *Scheduler) run(e *entry, now time.Time) {
	defer func() {
		s.mu.Lock()
		e.running = false
		s.mu.Unlock()
	}()
	e.fn(now)
}

// nextAfter steps next forward by whole intervals until it lies after now.
func nextAfter(next time.Time, interval time.Duration, now time.Time) time.Time {
	if !next.After(now) {
		missed := now.Sub(next)/interval + 1
		next = next.Add(missed * interval)
	}
	return next
}
