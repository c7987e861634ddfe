package runtime

import (
	"conference-bot/contract"
	"conference-bot/domain"
	"conference-bot/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	jobPending int32 = iota
	jobFired
	jobCanceled
)

// ScheduledJob is a one-shot timer for a conversation start. It is consumed
// exactly once, then discarded; nothing survives a process restart.
type ScheduledJob struct {
	ID     uuid.UUID
	ConvID domain.ConversationID
	At     time.Time

	state    atomic.Int32
	cancelCh chan struct{}
}

// Cancel aborts the job if it has not fired yet and reports whether it did.
func (j *ScheduledJob) Cancel() bool {
	if j.state.CompareAndSwap(jobPending, jobCanceled) {
		close(j.cancelCh)
		return true
	}
	return false
}

// Scheduler fires Registry starts at future points in time. Jobs are
// in-memory only.
type Scheduler struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	log      *slog.Logger
	registry contract.IRegistry
	jobs     map[uuid.UUID]*ScheduledJob
	quit     chan struct{}
	stopOnce sync.Once
}

func NewScheduler(log *slog.Logger, registry contract.IRegistry) *Scheduler {
	return &Scheduler{
		log:      log,
		registry: registry,
		jobs:     make(map[uuid.UUID]*ScheduledJob),
		quit:     make(chan struct{}),
	}
}

// Schedule registers a one-shot job that starts a dial-out session for the
// conversation at the trigger time. The returned handle can cancel the job
// while it is still pending.
func (s *Scheduler) Schedule(at time.Time, convID domain.ConversationID) contract.Job {
	job := &ScheduledJob{
		ID:       uuid.New(),
		ConvID:   convID,
		At:       at,
		cancelCh: make(chan struct{}),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.log.Info("Scheduled conference start", "convId", convID, "at", at)

	s.wg.Add(1)
	go s.runJob(job)
	return job
}

func (s *Scheduler) runJob(job *ScheduledJob) {
	defer s.wg.Done()
	defer s.remove(job.ID)

	timer := time.NewTimer(time.Until(job.At))
	defer timer.Stop()

	select {
	case <-s.quit:
		return
	case <-job.cancelCh:
		s.log.Info("Scheduled start canceled", "convId", job.ConvID)
		return
	case <-timer.C:
	}

	if !job.state.CompareAndSwap(jobPending, jobFired) {
		return
	}

	s.log.Info("Trigger time reached, starting session", "convId", job.ConvID)
	if _, err := s.registry.Start(context.Background(), job.ConvID, true); err != nil &&
		!stderrors.Is(err, errors.ErrSessionActive) {
		// A failed start is only observable here; there is no retry.
		s.log.Error("Scheduled session failed", "convId", job.ConvID, "error", err)
	}
}

func (s *Scheduler) remove(id uuid.UUID) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// Pending returns the number of jobs that have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Stop aborts all pending jobs and waits for running ones to settle.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	s.wg.Wait()
}
