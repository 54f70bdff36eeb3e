package calsync

import (
	"context"
	"errors"
	"sync"
	"time"

	appLog "memocal/internal/log"
	"memocal/internal/model"
)

const (
	defaultQueueSize  = 64
	defaultJobTimeout = 30 * time.Second
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("calsync: dispatcher closed")

// Job is one side effect to run for an event.
type Job struct {
	Op    Op
	Event model.Event
}

// Result is reported for every finished Job. RemoteID is set by a
// successful create.
type Result struct {
	Job      Job
	RemoteID string
	Err      error
}

// Dispatcher runs sync jobs on one background worker, in order.
type Dispatcher struct {
	google Service
	files  Service
	jobs   chan Job

	mu       sync.Mutex
	closed   bool
	onResult func(Result)
	// remote remembers ids handed out by creates, for jobs queued before
	// the create finished.
	remote map[string]string

	wg sync.WaitGroup
}

// NewDispatcher wires the targets. google may be nil: anonymous mode.
func NewDispatcher(google, files Service) *Dispatcher {
	return &Dispatcher{
		google: google,
		files:  files,
		jobs:   make(chan Job, defaultQueueSize),
		remote: make(map[string]string),
	}
}

// OnResult registers the callback for finished jobs. It runs on the
// worker goroutine.
func (d *Dispatcher) OnResult(fn func(Result)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onResult = fn
}

// HasGoogle reports whether a Google credential is configured.
func (d *Dispatcher) HasGoogle() bool {
	return d.google != nil
}

// Route returns the target an event chosen for target will actually use:
// Google without a credential falls back to the file target.
func (d *Dispatcher) Route(target model.SyncTarget) model.SyncTarget {
	if target == model.TargetGoogle && d.google == nil {
		return model.TargetFile
	}
	return target
}

// Start launches the worker. Jobs keep draining after ctx is done, but
// their calls fail fast.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for job := range d.jobs {
			d.run(ctx, job)
		}
	}()
}

// Enqueue schedules job without blocking.
func (d *Dispatcher) Enqueue(job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

// List collects events in [from, to) from every configured target. A
// failing target does not hide the others; the errors are joined.
func (d *Dispatcher) List(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	var (
		out  []model.Event
		errs []error
	)
	for _, svc := range []Service{d.google, d.files} {
		if svc == nil {
			continue
		}
		evs, err := svc.List(ctx, from, to)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, evs...)
	}
	return out, errors.Join(errs...)
}

func (d *Dispatcher) service(target model.SyncTarget) Service {
	switch target {
	case model.TargetGoogle:
		return d.google
	case model.TargetFile:
		return d.files
	}
	return nil
}

func (d *Dispatcher) run(ctx context.Context, job Job) {
	ctx, cancel := context.WithTimeout(ctx, defaultJobTimeout)
	defer cancel()

	ev := job.Event
	res := Result{Job: job}
	svc := d.service(ev.Target)

	switch {
	case svc == nil && ev.Target == model.TargetGoogle:
		res.Err = syncErr(job.Op, ev.Target, ErrNoCredential)
	case svc == nil:
		res.Err = syncErr(job.Op, ev.Target, errors.New("unknown target"))
	default:
		res.RemoteID, res.Err = d.apply(ctx, svc, job)
	}

	if res.Err != nil {
		appLog.Error("sync job failed", res.Err, "op", job.Op, "target", ev.Target, "event_id", ev.ID())
	} else {
		appLog.Debug("sync job done", "op", job.Op, "target", ev.Target, "event_id", ev.ID(), "remote_id", res.RemoteID)
	}

	d.mu.Lock()
	fn := d.onResult
	d.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}

func (d *Dispatcher) apply(ctx context.Context, svc Service, job Job) (string, error) {
	ev := job.Event
	switch job.Op {
	case OpCreate:
		id, err := svc.Create(ctx, ev)
		if err != nil {
			return "", err
		}
		d.mu.Lock()
		d.remote[ev.ID()] = id
		d.mu.Unlock()
		return id, nil
	case OpUpdate:
		return "", svc.Update(ctx, d.remoteID(ev), ev)
	case OpDelete:
		rid := d.remoteID(ev)
		d.mu.Lock()
		delete(d.remote, ev.ID())
		d.mu.Unlock()
		return "", svc.Delete(ctx, rid)
	}
	return "", syncErr(job.Op, ev.Target, errors.New("unsupported operation"))
}

func (d *Dispatcher) remoteID(ev model.Event) string {
	if ev.RemoteID != "" {
		return ev.RemoteID
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remote[ev.ID()]
}
