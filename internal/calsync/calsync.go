// Package calsync hands booked events to calendars outside the session:
// Google Calendar through its REST API, and a directory of calendar files
// for device calendars. Side effects run on a background Dispatcher so
// that acceptance never waits on the network or the disk.
package calsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memocal/internal/model"
)

// Service is a calendar that accepts created, updated and deleted events.
type Service interface {
	// Create stores ev and returns the calendar's identifier for it.
	Create(ctx context.Context, ev model.Event) (string, error)
	Update(ctx context.Context, remoteID string, ev model.Event) error
	Delete(ctx context.Context, remoteID string) error
	// List returns the events starting inside [from, to).
	List(ctx context.Context, from, to time.Time) ([]model.Event, error)
}

// Op names a sync operation in errors and notices.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpList   Op = "list"
)

var (
	// ErrNoCredential means Google sync was requested without an access
	// token. It is the normal state of anonymous/local-only mode.
	ErrNoCredential = errors.New("calsync: no google credential")
	// ErrQueueFull is returned when the dispatcher cannot take more work.
	ErrQueueFull = errors.New("calsync: dispatch queue full")
)

// SyncError reports a failed operation against one target. Local state is
// never rolled back on a SyncError.
type SyncError struct {
	Op     Op
	Target model.SyncTarget
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("calsync: %s %s failed: %v", e.Target, e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func syncErr(op Op, target model.SyncTarget, err error) error {
	if err == nil {
		return nil
	}
	return &SyncError{Op: op, Target: target, Err: err}
}
