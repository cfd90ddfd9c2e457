package systems

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystemRejectsBadSizes(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemRunsEveryJob(t *testing.T) {
	js, err := NewJobSystem(4, 2)
	require.NoError(t, err)

	var started, completed, failed atomic.Int32
	var mu sync.Mutex
	var failures []error
	boom := errors.New("boom")
	for i := 0; i < 20; i++ {
		fail := i%5 == 0
		require.NoError(t, js.Submit(JobTask{
			Name: "job",
			OnStart: func() error {
				started.Add(1)
				if fail {
					return boom
				}
				return nil
			},
			OnComplete: func() { completed.Add(1) },
			OnFailure: func(err error) {
				failed.Add(1)
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			},
		}))
	}
	js.Wait()

	assert.Equal(t, int32(20), started.Load())
	assert.Equal(t, int32(16), completed.Load())
	assert.Equal(t, int32(4), failed.Load())
	for _, err := range failures {
		assert.ErrorIs(t, err, boom)
	}
	require.NoError(t, js.Shutdown())
}

func TestJobSystemShutdown(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	require.NoError(t, js.Shutdown())

	assert.ErrorIs(t, js.Submit(JobTask{Name: "late", OnStart: func() error { return nil }}), ErrJobSystemShutdown)
	assert.ErrorIs(t, js.Shutdown(), ErrJobSystemShutdown)
}

func TestSubmitRequiresOnStart(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	require.NoError(t, err)
	defer js.Shutdown()
	assert.Error(t, js.Submit(JobTask{Name: "empty"}))
}
