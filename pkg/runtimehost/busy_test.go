package runtimehost_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/gcpacer/pkg/runtimehost"
)

func TestBusyTracker_BeginEnd(t *testing.T) {
	t.Parallel()

	var tracker runtimehost.BusyTracker

	assert.False(t, tracker.Busy())

	done := tracker.Begin()
	assert.True(t, tracker.Busy())
	assert.Equal(t, int64(1), tracker.InFlight())

	done()
	done()

	assert.False(t, tracker.Busy())
	assert.Equal(t, int64(0), tracker.InFlight())
}

func TestBusyTracker_Concurrent(t *testing.T) {
	t.Parallel()

	var (
		tracker runtimehost.BusyTracker
		wg      sync.WaitGroup
	)

	for range 64 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			tracker.Begin()()
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(0), tracker.InFlight())
}
