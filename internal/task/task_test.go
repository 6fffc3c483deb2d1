package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/audiokit/go-jq6500/logger"
)

func newTestManager(t *testing.T) (*Manager, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mockLogger := logger.NewMockLogger()
	mockLogger.On("Debug", mock.Anything, mock.Anything).Return()
	mockLogger.On("Error", mock.Anything, mock.Anything).Return()

	return NewManager(ctx, mockLogger), cancel
}

func TestManager_Start(t *testing.T) {
	taskMgr, cancel := newTestManager(t)

	err := taskMgr.Start("testTask", func() bool {
		time.Sleep(time.Millisecond)
		return true
	})
	require.NoError(t, err)

	// Allow some time for the goroutine to start
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, taskMgr.TaskCount())

	// Cancel the context to stop the task
	cancel()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, taskMgr.TaskCount())
}

func TestManager_Start_FalseStopsTask(t *testing.T) {
	taskMgr, _ := newTestManager(t)

	var runs atomic.Int32
	err := taskMgr.Start("oneShot", func() bool {
		runs.Add(1)
		return false
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, taskMgr.TaskCount())
	assert.Equal(t, int32(1), runs.Load())
}

func TestManager_StartWithCancel(t *testing.T) {
	taskMgr, cancel := newTestManager(t)

	var cleanedUp atomic.Bool
	err := taskMgr.StartWithCancel("withCancel",
		func() bool {
			time.Sleep(time.Millisecond)
			return true
		},
		func() {
			cleanedUp.Store(true)
		},
	)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, taskMgr.TaskCount())

	cancel()
	taskMgr.Wait()

	assert.Equal(t, 0, taskMgr.TaskCount())
	assert.True(t, cleanedUp.Load())
}

func TestManager_StartInterval(t *testing.T) {
	taskMgr, cancel := newTestManager(t)

	var runs atomic.Int32
	ticker, err := taskMgr.StartInterval("testInterval", func() bool {
		runs.Add(1)
		return true
	}, 10*time.Millisecond, true)
	require.NoError(t, err)
	require.NotNil(t, ticker)

	// Allow a few interval executions
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, taskMgr.TaskCount())
	assert.GreaterOrEqual(t, runs.Load(), int32(2)) // runNow + at least one tick

	cancel()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, taskMgr.TaskCount())
}

func TestManager_StartInterval_DuplicateName(t *testing.T) {
	taskMgr, _ := newTestManager(t)

	_, err := taskMgr.StartInterval("dup", func() bool { return true }, 10*time.Millisecond, false)
	require.NoError(t, err)

	_, err = taskMgr.StartInterval("dup", func() bool { return true }, 10*time.Millisecond, false)
	require.Error(t, err)

	taskMgr.Stop()
	taskMgr.Wait()
}

func TestManager_StartInterval_InvalidInterval(t *testing.T) {
	taskMgr, _ := newTestManager(t)

	_, err := taskMgr.StartInterval("bad", func() bool { return true }, 0, false)
	require.Error(t, err)
}

func TestManager_StopInterval(t *testing.T) {
	taskMgr, _ := newTestManager(t)

	_, err := taskMgr.StartInterval("poll", func() bool { return true }, 10*time.Millisecond, false)
	require.NoError(t, err)

	require.NoError(t, taskMgr.StopInterval("poll"))
	require.Error(t, taskMgr.StopInterval("poll")) // already removed

	taskMgr.Stop()
	taskMgr.Wait()
}

func TestManager_StopAndWait(t *testing.T) {
	taskMgr, _ := newTestManager(t)

	for _, name := range []string{"a", "b", "c"} {
		err := taskMgr.Start(name, func() bool {
			time.Sleep(time.Millisecond)
			return true
		})
		require.NoError(t, err)
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, taskMgr.TaskCount())

	taskMgr.Stop()
	taskMgr.Wait()
	assert.Equal(t, 0, taskMgr.TaskCount())

	// Manager is reusable after Wait().
	err := taskMgr.Start("restarted", func() bool { return false })
	require.NoError(t, err)
	taskMgr.Wait()
}

func TestManager_PanicRecovery(t *testing.T) {
	taskMgr, _ := newTestManager(t)

	err := taskMgr.Start("panics", func() bool {
		panic("task exploded")
	})
	require.NoError(t, err)

	// The panic terminates the task; the manager itself survives.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, taskMgr.TaskCount())

	err = taskMgr.Start("stillAlive", func() bool { return false })
	require.NoError(t, err)
	taskMgr.Wait()
}

func TestManager_StartAfterStop(t *testing.T) {
	taskMgr, _ := newTestManager(t)

	taskMgr.Stop()

	err := taskMgr.Start("late", func() bool { return true })
	require.Error(t, err)
}
