// Package scheduler fires one tenant's monitoring cycle on its configured
// cadence. One goroutine per tenant; at most one cycle in flight.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

// Spec is one cadence: either a fixed interval or an alignment to wall-clock
// minutes.
type Spec struct {
	Mode     model.CadenceMode
	Interval time.Duration
}

// Next returns the first firing time strictly after now.
func (s Spec) Next(now time.Time) time.Time {
	switch s.Mode {
	case model.CadenceHalfHourly:
		return nextAligned(now, 30)
	case model.CadenceQuarterly:
		return nextAligned(now, 15)
	default:
		interval := s.Interval
		if interval <= 0 {
			interval = 30 * time.Minute
		}
		return now.Add(interval)
	}
}

func nextAligned(now time.Time, step int) time.Time {
	t := now.Truncate(time.Minute)
	for {
		t = t.Add(time.Minute)
		if t.Minute()%step == 0 {
			return t
		}
	}
}

// Scheduler drives one job on a reconfigurable cadence. The job runs on the
// scheduler goroutine, so ticks, reconfigurations and manual runs are all
// serialized: a new fire cannot start while the previous one is running.
type Scheduler struct {
	job  func(context.Context)
	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	mu      sync.Mutex
	spec    Spec
	next    time.Time
	started bool
	halted  bool
	pending bool
}

func New(spec Spec, job func(context.Context)) *Scheduler {
	return &Scheduler{
		job:  job,
		spec: spec,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started || s.halted {
		s.mu.Unlock()
		return
	}
	s.started = true
	// Publish the first firing time before the loop goroutine exists so
	// NextRun is answerable immediately after Start returns.
	s.next = s.spec.Next(time.Now())
	s.mu.Unlock()
	go s.loop()
}

// Stop ends the schedule for good; a stopped scheduler is not restarted,
// the owner builds a new one. A cycle already in flight finishes; no
// further cycles start. Stop blocks until the loop has exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.halted {
		s.mu.Unlock()
		return
	}
	s.halted = true
	s.mu.Unlock()
	close(s.stop)
	<-s.done
}

// Reconcile installs a new cadence and reschedules the pending fire in
// place.
func (s *Scheduler) Reconcile(spec Spec) {
	s.mu.Lock()
	s.spec = spec
	s.mu.Unlock()
	s.signal()
}

// RunNow requests one immediate cycle. It runs on the scheduler goroutine
// like any tick, so it waits out a cycle already in flight rather than
// overlapping it.
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	s.pending = true
	s.mu.Unlock()
	s.signal()
}

// NextRun reports the currently scheduled firing time.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.halted || s.next.IsZero() {
		return time.Time{}, false
	}
	return s.next, true
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		next := s.spec.Next(time.Now())
		s.next = next
		runNow := s.pending
		s.pending = false
		s.mu.Unlock()

		if runNow {
			s.job(context.Background())
			continue
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
			continue
		case <-timer.C:
			s.job(context.Background())
		}
	}
}
