package workqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAllPreservesOrder(t *testing.T) {
	p := New(context.Background(), 4)
	p.Start()
	defer p.Stop()

	tasks := make([]Task, 20)
	for i := 0; i < 20; i++ {
		i := i
		tasks[i] = func(ctx context.Context) (any, error) { return i, nil }
	}
	futures := p.AddAll(tasks)
	for i, f := range futures {
		v, err := f.Wait()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestOnIdleBlocksUntilDrained(t *testing.T) {
	p := New(context.Background(), 2)
	p.Start()
	defer p.Stop()

	var done int32
	for i := 0; i < 5; i++ {
		p.Add(func(ctx context.Context) (any, error) {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&done, 1)
			return nil, nil
		})
	}
	p.OnIdle()
	assert.Equal(t, int32(5), atomic.LoadInt32(&done))
	stats := p.Stats()
	assert.Equal(t, 5, stats.Completed)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 0, stats.Running)
}

func TestClearDropsPendingNotRunning(t *testing.T) {
	p := New(context.Background(), 1)
	p.Start()
	defer p.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	p.Add(func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "first", nil
	})
	<-started

	f2 := p.Add(func(ctx context.Context) (any, error) { return "second", nil })
	dropped := p.Clear()
	assert.Equal(t, 1, dropped)

	close(release)
	_, err := f2.Wait()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPauseStopsNewWork(t *testing.T) {
	p := New(context.Background(), 1)
	p.Start()
	defer p.Stop()

	p.Pause()
	var ran int32
	p.Add(func(ctx context.Context) (any, error) {
		atomic.AddInt32(&ran, 1)
		return nil, nil
	})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))

	p.Resume()
	p.OnIdle()
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestStopCancelsPendingTasks(t *testing.T) {
	p := New(context.Background(), 1)
	p.Start()

	p.Pause()
	f := p.Add(func(ctx context.Context) (any, error) { return nil, nil })
	p.Stop()

	_, err := f.Wait()
	assert.ErrorIs(t, err, context.Canceled)
}
