package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedRefresh blocks every refresh call until release is closed.
type gatedRefresh struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func newGatedRefresh(err error) *gatedRefresh {
	return &gatedRefresh{started: make(chan struct{}, 16), release: make(chan struct{}), err: err}
}

func (g *gatedRefresh) refresh(ctx context.Context) error {
	g.calls.Add(1)
	g.started <- struct{}{}
	<-g.release
	return g.err
}

func TestNewCoordinatorRequiresRefreshFunc(t *testing.T) {
	_, err := NewCoordinator()
	assert.Error(t, err)
	_, err = NewCoordinator(WithRefreshFunc(func(context.Context) error { return nil }), WithTimeout(-time.Second))
	assert.Error(t, err)
}

func TestSingleFlight(t *testing.T) {
	g := newGatedRefresh(nil)
	c, err := NewCoordinator(WithRefreshFunc(g.refresh))
	require.NoError(t, err)

	const waiters = 20
	var wg sync.WaitGroup
	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Refresh(context.Background())
		}()
	}
	<-g.started
	assert.True(t, c.InFlight())
	// give every goroutine the chance to join before settling
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.queue) == waiters
	}, time.Second, time.Millisecond)
	close(g.release)
	wg.Wait()
	close(errs)

	assert.Equal(t, int32(1), g.calls.Load())
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.False(t, c.InFlight())
}

func TestBeginRefreshReturnsSameFuture(t *testing.T) {
	g := newGatedRefresh(nil)
	c, err := NewCoordinator(WithRefreshFunc(g.refresh))
	require.NoError(t, err)

	first := c.BeginRefresh()
	second := c.BeginRefresh()
	assert.Same(t, first, second)
	close(g.release)
	require.NoError(t, first.Wait(context.Background()))

	// a settled cycle is never reused
	g.release = make(chan struct{})
	third := c.BeginRefresh()
	assert.NotSame(t, first, third)
	close(g.release)
	require.NoError(t, third.Wait(context.Background()))
	assert.Equal(t, int32(2), g.calls.Load())
}

func TestWaitQueueReleasedInOrder(t *testing.T) {
	g := newGatedRefresh(nil)
	c, err := NewCoordinator(WithRefreshFunc(g.refresh))
	require.NoError(t, err)

	var order []int
	var lock sync.Mutex
	var future *Future
	for i := 1; i <= 5; i++ {
		i := i
		future = c.Enqueue(func(err error) {
			lock.Lock()
			defer lock.Unlock()
			order = append(order, i)
		})
	}
	close(g.release)
	<-future.Done()
	require.Eventually(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return len(order) == 5
	}, time.Second, time.Millisecond)

	lock.Lock()
	defer lock.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, order)
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.queue)
}

func TestFailureReachesEveryWaiter(t *testing.T) {
	refreshErr := errors.New("refresh token revoked")
	g := newGatedRefresh(refreshErr)
	c, err := NewCoordinator(WithRefreshFunc(g.refresh))
	require.NoError(t, err)

	var got []error
	var lock sync.Mutex
	future := c.BeginRefresh()
	for i := 0; i < 3; i++ {
		c.Enqueue(func(err error) {
			lock.Lock()
			defer lock.Unlock()
			got = append(got, err)
		})
	}
	close(g.release)
	assert.ErrorIs(t, future.Wait(context.Background()), refreshErr)
	require.Eventually(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return len(got) == 3
	}, time.Second, time.Millisecond)

	lock.Lock()
	defer lock.Unlock()
	require.Len(t, got, 3)
	for _, err := range got {
		assert.ErrorIs(t, err, refreshErr)
	}
	assert.Equal(t, int32(1), g.calls.Load())
	assert.False(t, c.InFlight())
}

func TestPanicSettlesCycle(t *testing.T) {
	c, err := NewCoordinator(WithRefreshFunc(func(context.Context) error {
		panic("boom")
	}))
	require.NoError(t, err)

	err = c.Refresh(context.Background())
	assert.ErrorContains(t, err, "boom")
	assert.False(t, c.InFlight())
}

func TestWaiterCancellationDoesNotCancelRefresh(t *testing.T) {
	g := newGatedRefresh(nil)
	c, err := NewCoordinator(WithRefreshFunc(g.refresh))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	<-g.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, c.InFlight())

	close(g.release)
	require.Eventually(t, func() bool { return !c.InFlight() }, time.Second, time.Millisecond)
	assert.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, int32(2), g.calls.Load())
}

func TestOnBeginCalledOncePerCycle(t *testing.T) {
	g := newGatedRefresh(nil)
	c, err := NewCoordinator(WithRefreshFunc(g.refresh))
	require.NoError(t, err)

	var begins atomic.Int32
	var seen *Future
	c.OnBegin(func(f *Future) {
		begins.Add(1)
		seen = f
	})
	f := c.BeginRefresh()
	c.BeginRefresh()
	close(g.release)
	<-f.Done()
	assert.Equal(t, int32(1), begins.Load())
	assert.Same(t, f, seen)
}

func TestRefreshTimeout(t *testing.T) {
	c, err := NewCoordinator(
		WithTimeout(10*time.Millisecond),
		WithRefreshFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Refresh(context.Background()), context.DeadlineExceeded)
}
