package temporal

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/packetflow/iccr/internal/core/resilience"
	"github.com/packetflow/iccr/internal/ctxmodel"
	"github.com/packetflow/iccr/internal/intent"
)

// ScheduleStrategy selects how Schedule dispatches an intent.
type ScheduleStrategy string

const (
	Immediate ScheduleStrategy = "immediate"
	Delayed   ScheduleStrategy = "delayed"
	Periodic  ScheduleStrategy = "periodic"
)

// ScheduleStatus tracks a scheduled intent's lifecycle.
type ScheduleStatus string

const (
	Scheduled ScheduleStatus = "scheduled"
	Running   ScheduleStatus = "running"
	Completed ScheduleStatus = "completed"
	Cancelled ScheduleStatus = "cancelled"
	Failed    ScheduleStatus = "failed"
)

// Execute runs a scheduled intent against its context. Supplied by the
// caller (typically the reactor/router layer) so the scheduler has no
// dependency on how intents are actually processed.
type Execute func(i intent.Intent, ctx ctxmodel.Context) error

// Schedule is an in-memory record of one scheduled intent. State is
// never persisted across process restarts.
type Schedule struct {
	ID       string
	Intent   intent.Intent
	Context  ctxmodel.Context
	Strategy ScheduleStrategy
	At       time.Time
	Interval time.Duration
	Status   ScheduleStatus

	// FailureClass labels the last execution error for metrics
	// (timeout, network, rate_limit, ...), set only when Status is
	// Failed. It does not affect retry/backoff: failed schedules are
	// not automatically retried.
	FailureClass string

	cancel func()
}

// Scheduler runs scheduled intents under immediate/delayed/periodic
// strategies using Go timers.
type Scheduler struct {
	mu        sync.Mutex
	schedules map[string]*Schedule
	exec      Execute
}

// NewScheduler builds a Scheduler that dispatches via exec.
func NewScheduler(exec Execute) *Scheduler {
	return &Scheduler{schedules: make(map[string]*Schedule), exec: exec}
}

// Schedule enqueues i for execution under strategy. immediate executes
// in-line and returns a Completed/Failed record; delayed and periodic
// return immediately with a Scheduled record and run asynchronously.
func (s *Scheduler) Schedule(i intent.Intent, ctx ctxmodel.Context, strategy ScheduleStrategy, at time.Time, interval time.Duration) *Schedule {
	sched := &Schedule{
		ID:       uuid.NewString(),
		Intent:   i,
		Context:  ctx,
		Strategy: strategy,
		At:       at,
		Interval: interval,
		Status:   Scheduled,
	}

	switch strategy {
	case Immediate:
		s.runOnce(sched)
		return sched
	case Delayed:
		delay := time.Until(at)
		if delay < 0 {
			delay = 0
		}
		timer := time.AfterFunc(delay, func() { s.runOnce(sched) })
		sched.cancel = timer.Stop
	case Periodic:
		ticker := time.NewTicker(interval)
		done := make(chan struct{})
		sched.cancel = func() {
			ticker.Stop()
			close(done)
		}
		go func() {
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					s.runPeriodic(sched)
				}
			}
		}()
	}

	s.mu.Lock()
	s.schedules[sched.ID] = sched
	s.mu.Unlock()
	return sched
}

func (s *Scheduler) runOnce(sched *Schedule) {
	s.mu.Lock()
	if sched.Status == Cancelled {
		s.mu.Unlock()
		return
	}
	sched.Status = Running
	s.mu.Unlock()

	err := s.exec(sched.Intent, sched.Context)

	s.mu.Lock()
	defer s.mu.Unlock()
	if sched.Status == Cancelled {
		return
	}
	if err != nil {
		sched.Status = Failed
		sched.FailureClass = resilience.ClassifyError(err)
	} else {
		sched.Status = Completed
	}
}

func (s *Scheduler) runPeriodic(sched *Schedule) {
	s.mu.Lock()
	if sched.Status == Cancelled {
		s.mu.Unlock()
		return
	}
	sched.Status = Running
	s.mu.Unlock()

	err := s.exec(sched.Intent, sched.Context)

	s.mu.Lock()
	defer s.mu.Unlock()
	if sched.Status == Cancelled {
		return
	}
	if err != nil {
		sched.Status = Failed
		sched.FailureClass = resilience.ClassifyError(err)
	} else {
		sched.Status = Scheduled
	}
}

// Cancel removes a schedule by id, stopping its timer/ticker.
// Cancellation is idempotent: cancelling an already-cancelled or
// unknown id is a no-op.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok || sched.Status == Cancelled {
		return
	}
	sched.Status = Cancelled
	if sched.cancel != nil {
		sched.cancel()
	}
}

// Get returns the current state of a schedule by id.
func (s *Scheduler) Get(id string) (*Schedule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	return sched, ok
}
