package eventloop

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
)

const waitFor = 2 * time.Second

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()

	loop := New(0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		_ = loop.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	return loop, cancel
}

func TestLoop_TimerFiresHandlerOnLoop(t *testing.T) {
	t.Parallel()

	loop, _ := startLoop(t)

	fired := make(chan pacer.Kind, 1)
	loop.SetTimerHandler(func(kind pacer.Kind) { fired <- kind })

	loop.Schedule(pacer.KindFull, time.Millisecond)

	select {
	case kind := <-fired:
		assert.Equal(t, pacer.KindFull, kind)
	case <-time.After(waitFor):
		t.Fatal("timer did not fire")
	}
}

func TestLoop_CancelPreventsFire(t *testing.T) {
	t.Parallel()

	loop, _ := startLoop(t)

	var fired atomic.Int32

	loop.SetTimerHandler(func(pacer.Kind) { fired.Add(1) })

	loop.Schedule(pacer.KindEden, 20*time.Millisecond)
	loop.Cancel(pacer.KindEden)

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, loop.Do(context.Background(), func() {}))

	assert.Zero(t, fired.Load())
}

func TestLoop_RescheduleReplacesPendingTimer(t *testing.T) {
	t.Parallel()

	loop, _ := startLoop(t)

	var fired atomic.Int32

	done := make(chan struct{}, 2)
	loop.SetTimerHandler(func(pacer.Kind) {
		fired.Add(1)
		done <- struct{}{}
	})

	loop.Schedule(pacer.KindEden, time.Hour)
	loop.Schedule(pacer.KindEden, time.Millisecond)

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("timer did not fire")
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestLoop_DoRunsSerially(t *testing.T) {
	t.Parallel()

	loop, _ := startLoop(t)

	counter := 0

	for range 100 {
		require.NoError(t, loop.Post(func() { counter++ }))
	}

	var observed int

	require.NoError(t, loop.Do(context.Background(), func() { observed = counter }))
	assert.Equal(t, 100, observed)
}

func TestLoop_PendingCountsQueuedTasks(t *testing.T) {
	t.Parallel()

	loop := New(4, nil)

	require.NoError(t, loop.Post(func() {}))
	require.NoError(t, loop.Post(func() {}))

	assert.Equal(t, 2, loop.Pending())
	assert.True(t, loop.HasPending())
}

func TestLoop_RecoversTaskPanic(t *testing.T) {
	t.Parallel()

	loop, _ := startLoop(t)

	require.NoError(t, loop.Post(func() { panic("boom") }))

	ran := false
	require.NoError(t, loop.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_PostAfterStop(t *testing.T) {
	t.Parallel()

	loop := New(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, loop.Post(func() {}), ErrStopped)
	assert.ErrorIs(t, loop.Do(context.Background(), func() {}), ErrStopped)
}
