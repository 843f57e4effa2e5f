package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taskEcho TaskType = "echo"

func echoPool(t *testing.T, size int) *Pool {
	t.Helper()
	p := New(size, map[TaskType]Handler{
		taskEcho: func(payload any) (any, error) {
			return payload, nil
		},
	})
	t.Cleanup(p.Close)
	return p
}

func TestRunResolvesFuture(t *testing.T) {
	p := echoPool(t, 2)

	got, err := p.Run(taskEcho, "hello").Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestRunManyConcurrentTasks(t *testing.T) {
	p := echoPool(t, 4)

	const n = 200
	futures := make([]*Future, n)
	for i := 0; i < n; i++ {
		futures[i] = p.Run(taskEcho, i)
	}

	for i, f := range futures {
		got, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
}

func TestRunUnknownTaskType(t *testing.T) {
	p := echoPool(t, 2)

	_, err := p.Run("nope", nil).Wait(context.Background())
	assert.ErrorIs(t, err, ErrUnknownTaskType)
}

func TestHandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	p := New(2, map[TaskType]Handler{
		"failing": func(any) (any, error) { return nil, boom },
	})
	t.Cleanup(p.Close)

	_, err := p.Run("failing", nil).Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPanickingHandlerRejectsTaskOnly(t *testing.T) {
	p := New(2, map[TaskType]Handler{
		"panic": func(any) (any, error) { panic("kaboom") },
		taskEcho: func(payload any) (any, error) {
			return payload, nil
		},
	})
	t.Cleanup(p.Close)

	_, err := p.Run("panic", nil).Wait(context.Background())
	assert.ErrorIs(t, err, ErrWorkerPanic)

	// The pool keeps serving after the panic.
	got, err := p.Run(taskEcho, 7).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestPoolSurvivesRepeatedPanics(t *testing.T) {
	p := New(2, map[TaskType]Handler{
		"panic":  func(any) (any, error) { panic("again") },
		taskEcho: func(payload any) (any, error) { return payload, nil },
	})
	t.Cleanup(p.Close)

	for i := 0; i < 10; i++ {
		_, err := p.Run("panic", nil).Wait(context.Background())
		assert.ErrorIs(t, err, ErrWorkerPanic)
	}

	got, err := p.Run(taskEcho, "still alive").Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "still alive", got)
}

func TestRunAfterClose(t *testing.T) {
	p := New(2, map[TaskType]Handler{
		taskEcho: func(payload any) (any, error) { return payload, nil },
	})
	p.Close()

	_, err := p.Run(taskEcho, "late").Wait(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestCloseIdempotent(t *testing.T) {
	p := echoPool(t, 2)
	p.Close()
	p.Close()
}

func TestWaitRespectsContext(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	p := New(2, map[TaskType]Handler{
		"slow": func(any) (any, error) {
			<-release
			return nil, nil
		},
	})
	t.Cleanup(func() {
		once.Do(func() { close(release) })
		p.Close()
	})

	f := p.Run("slow", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	once.Do(func() { close(release) })
}

func TestSizeDefaults(t *testing.T) {
	p := New(0, nil)
	t.Cleanup(p.Close)
	assert.GreaterOrEqual(t, p.Size(), 2)

	p1 := New(1, nil)
	t.Cleanup(p1.Close)
	assert.Equal(t, 2, p1.Size(), "size floor is two")
}

func TestLeastLoaded(t *testing.T) {
	assert.Equal(t, 0, leastLoaded([]int{0, 0, 0}))
	assert.Equal(t, 2, leastLoaded([]int{3, 1, 0}))
	assert.Equal(t, 1, leastLoaded([]int{2, 1, 1}))
}
