package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/evaldash/internal/api"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls.Add(1)
	return r.err
}

func TestTriggerRefreshes(t *testing.T) {
	target := &countingRefresher{}
	p := New(target, 0, nil)
	wait := p.Start()
	require.NotNil(t, wait)
	defer p.Stop()

	assert.Nil(t, p.Start(), "second Start is a no-op")

	p.Trigger()
	msg, ok := wait().(RefreshResultMsg)
	require.True(t, ok)
	assert.NoError(t, msg.Error)
	assert.EqualValues(t, 1, target.calls.Load())

	status := p.Status()
	assert.Equal(t, SyncIdle, status.State)
	assert.False(t, status.LastSync.IsZero())
}

func TestTickerRefreshes(t *testing.T) {
	target := &countingRefresher{}
	p := New(target, 10*time.Millisecond, nil)
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool { return target.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestAuthErrorsAreFlagged(t *testing.T) {
	target := &countingRefresher{err: &api.AuthError{Backend: "rest", Message: "401"}}
	p := New(target, 0, nil)
	wait := p.Start()
	defer p.Stop()

	p.Trigger()
	msg := wait().(RefreshResultMsg)
	require.Error(t, msg.Error)
	require.NotNil(t, msg.AuthError)
	assert.Equal(t, SyncError, p.Status().State)
}

func TestPlainErrorsAreNotAuthErrors(t *testing.T) {
	target := &countingRefresher{err: errors.New("timeout")}
	p := New(target, 0, nil)
	wait := p.Start()
	defer p.Stop()

	p.Trigger()
	msg := wait().(RefreshResultMsg)
	assert.Error(t, msg.Error)
	assert.Nil(t, msg.AuthError)
}

func TestStopReleasesWaiters(t *testing.T) {
	p := New(&countingRefresher{}, 0, nil)
	wait := p.Start()

	p.Stop()
	p.Stop()
	assert.Nil(t, wait())
}
