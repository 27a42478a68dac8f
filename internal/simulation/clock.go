package simulation

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
)

// ErrRunaway is returned when timers keep firing without virtual time advancing.
var ErrRunaway = errors.New("timer runaway")

// maxFiresPerInstant bounds timer fires at a single virtual instant.
const maxFiresPerInstant = 1024

// Clock is a virtual clock implementing [pacer.Timers]. Time only moves
// when Advance is called; due timers fire in deadline order, ties in kind order.
type Clock struct {
	now     time.Duration
	armed   map[pacer.Kind]time.Duration
	handler func(pacer.Kind)
}

var _ pacer.Timers = (*Clock)(nil)

// NewClock returns a clock at virtual time zero.
func NewClock() *Clock {
	return &Clock{armed: make(map[pacer.Kind]time.Duration)}
}

// SetHandler installs the function called when a timer fires.
func (c *Clock) SetHandler(h func(pacer.Kind)) {
	c.handler = h
}

// Now returns the elapsed virtual time.
func (c *Clock) Now() time.Duration {
	return c.now
}

// Schedule implements [pacer.Timers].
func (c *Clock) Schedule(kind pacer.Kind, delay time.Duration) {
	c.armed[kind] = c.now + max(delay, 0)
}

// Cancel implements [pacer.Timers].
func (c *Clock) Cancel(kind pacer.Kind) {
	delete(c.armed, kind)
}

// Armed reports whether kind has a pending timer and its deadline.
func (c *Clock) Armed(kind pacer.Kind) (time.Duration, bool) {
	deadline, ok := c.armed[kind]

	return deadline, ok
}

// Advance moves time forward by d, firing every timer that falls due.
func (c *Clock) Advance(d time.Duration) error {
	target := c.now + d
	fires := 0
	last := c.now

	for {
		kind, deadline, ok := c.next(target)
		if !ok {
			break
		}

		if deadline != last {
			last = deadline
			fires = 0
		}

		fires++
		if fires > maxFiresPerInstant {
			return fmt.Errorf("%w: %d fires at %s", ErrRunaway, fires, last)
		}

		c.now = deadline
		delete(c.armed, kind)

		if c.handler != nil {
			c.handler(kind)
		}
	}

	c.now = target

	return nil
}

func (c *Clock) next(target time.Duration) (pacer.Kind, time.Duration, bool) {
	var (
		best     pacer.Kind
		earliest time.Duration
		found    bool
	)

	for _, kind := range pacer.Kinds() {
		deadline, ok := c.armed[kind]
		if !ok || deadline > target {
			continue
		}

		if !found || deadline < earliest {
			best, earliest, found = kind, deadline, true
		}
	}

	return best, earliest, found
}
