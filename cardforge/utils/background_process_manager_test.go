package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackgroundProcessManager_Lifecycle(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())

	started := make(chan struct{})
	require.NoError(t, bpm.StartProcess("sweeper", "expires listings", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}))
	<-started
	assert.Equal(t, []string{"sweeper"}, bpm.Running())

	require.NoError(t, bpm.Shutdown(time.Second))
	assert.Empty(t, bpm.Running())
	assert.ErrorIs(t, bpm.StartProcess("late", "", func(context.Context) {}), ErrShutdown)
}

func TestBackgroundProcessManager_RecoversPanics(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())
	done := make(chan struct{})
	require.NoError(t, bpm.StartProcess("boom", "", func(context.Context) {
		defer close(done)
		panic("boom")
	}))
	<-done
	require.NoError(t, bpm.Shutdown(time.Second))
	assert.Empty(t, bpm.Running())
}

func TestBackgroundProcessManager_ShutdownTimeout(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	require.NoError(t, bpm.StartProcess("stuck", "", func(context.Context) {
		<-release
	}))
	assert.ErrorIs(t, bpm.Shutdown(10*time.Millisecond), context.DeadlineExceeded)
}

func TestBackgroundProcessManager_StopProcess(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())
	stopped := make(chan struct{})
	require.NoError(t, bpm.StartProcess("sweeper", "", func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	}))

	bpm.StopProcess("sweeper")
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("process did not observe cancellation")
	}
	assert.Empty(t, bpm.Running())

	bpm.StopProcess("unknown")
	require.NoError(t, bpm.Shutdown(time.Second))
}
