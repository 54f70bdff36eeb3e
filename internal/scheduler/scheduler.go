// Package scheduler runs the periodic refresh of remote calendar events.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "memocal/internal/log"
)

// DefaultTimeout bounds one run of the job.
const DefaultTimeout = 2 * time.Minute

// Job is the work run on every tick.
type Job func(ctx context.Context) error

// Scheduler triggers a Job on a cron schedule. A tick that arrives while
// the previous run is still going is skipped.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	spec    string
	job     Job
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler for a standard five-field cron spec evaluated
// in loc (time.Local when nil).
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler: job must not be nil")
	}
	if loc == nil {
		loc = time.Local
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, job: job, timeout: DefaultTimeout, ctx: ctx, cancel: cancel}
	if err := s.schedule(spec); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// Start begins cron execution.
func (s *Scheduler) Start() {
	appLog.Info("scheduler started", "spec", s.Spec())
	s.cron.Start()
}

// Stop cancels a running job and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	appLog.Info("scheduler stopped")
}

// UpdateSpec replaces the schedule. The old one stays active when spec is
// invalid.
func (s *Scheduler) UpdateSpec(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("scheduler: parse %q: %w", spec, err)
	}
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}
	return s.scheduleLocked(spec)
}

// Spec returns the active cron spec.
func (s *Scheduler) Spec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Next returns the next activation time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	return s.cron.Entry(id).Next
}

// RunNow runs the job once on the calling goroutine.
func (s *Scheduler) RunNow() error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	return s.job(ctx)
}

func (s *Scheduler) schedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(spec)
}

func (s *Scheduler) scheduleLocked(spec string) error {
	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return fmt.Errorf("scheduler: add cron %q: %w", spec, err)
	}
	s.entryID = id
	s.spec = spec
	return nil
}

func (s *Scheduler) tick() {
	started := time.Now()
	if err := s.RunNow(); err != nil {
		appLog.Error("scheduled job failed", err, "spec", s.Spec())
		return
	}
	appLog.Debug("scheduled job done", "elapsed", time.Since(started).String())
}
