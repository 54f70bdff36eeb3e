package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestNew_Validation(t *testing.T) {
	_, err := New("*/15 * * * *", nil, nil)
	assert.Error(t, err)

	_, err = New("not a spec", time.UTC, noop)
	assert.Error(t, err)

	s, err := New("*/15 * * * *", time.UTC, noop)
	require.NoError(t, err)
	assert.Equal(t, "*/15 * * * *", s.Spec())
}

func TestUpdateSpec(t *testing.T) {
	s, err := New("0 9 * * *", time.UTC, noop)
	require.NoError(t, err)

	assert.Error(t, s.UpdateSpec("61 * * * *"))
	assert.Equal(t, "0 9 * * *", s.Spec())

	require.NoError(t, s.UpdateSpec("30 8 * * *"))
	assert.Equal(t, "30 8 * * *", s.Spec())
}

func TestRunNow(t *testing.T) {
	var calls atomic.Int32
	s, err := New("0 9 * * *", time.UTC, func(ctx context.Context) error {
		calls.Add(1)
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return errors.New("offline")
	})
	require.NoError(t, err)

	assert.Error(t, s.RunNow())
	assert.Equal(t, int32(1), calls.Load())
}

func TestStartStop(t *testing.T) {
	s, err := New("0 9 * * *", time.UTC, noop)
	require.NoError(t, err)

	s.Start()
	next := s.Next()
	assert.False(t, next.IsZero())
	assert.Equal(t, 9, next.In(time.UTC).Hour())
	s.Stop()
}
