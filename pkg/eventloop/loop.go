// Package eventloop provides a single-goroutine task loop with per-kind
// timers. It is the embedding runtime the pacing controller runs on: every
// posted task and every timer callback executes on the goroutine calling Run.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
)

// ErrStopped is returned when work is submitted to a loop that has exited.
var ErrStopped = errors.New("event loop stopped")

const defaultQueueSize = 256

// Loop serializes tasks onto one goroutine and implements [pacer.Timers].
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	queued atomic.Int64
	logger *slog.Logger

	mu      sync.Mutex
	timers  map[pacer.Kind]*time.Timer
	gens    map[pacer.Kind]uint64
	handler func(pacer.Kind)
}

// New creates a loop with the given task queue capacity.
// A non-positive size selects the default.
func New(queueSize int, logger *slog.Logger) *Loop {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		tasks:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		logger: logger,
		timers: make(map[pacer.Kind]*time.Timer),
		gens:   make(map[pacer.Kind]uint64),
	}
}

// SetTimerHandler installs the function invoked on the loop when a timer
// fires, typically [pacer.Controller.OnTimer].
func (l *Loop) SetTimerHandler(fn func(pacer.Kind)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.handler = fn
}

// Schedule arms the timer for kind, replacing any pending one.
func (l *Loop) Schedule(kind pacer.Kind, delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t := l.timers[kind]; t != nil {
		t.Stop()
	}

	l.gens[kind]++
	gen := l.gens[kind]

	l.timers[kind] = time.AfterFunc(delay, func() {
		_ = l.Post(func() { l.fire(kind, gen) })
	})
}

// Cancel stops the pending timer for kind, if any.
func (l *Loop) Cancel(kind pacer.Kind) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gens[kind]++

	if t := l.timers[kind]; t != nil {
		t.Stop()
		delete(l.timers, kind)
	}
}

// fire runs on the loop. Timers replaced or cancelled after their callback
// was queued carry a stale generation and are dropped.
func (l *Loop) fire(kind pacer.Kind, gen uint64) {
	l.mu.Lock()

	if l.gens[kind] != gen {
		l.mu.Unlock()

		return
	}

	delete(l.timers, kind)
	handler := l.handler
	l.mu.Unlock()

	if handler != nil {
		handler(kind)
	}
}

// Post queues fn for execution on the loop. It blocks while the queue is
// full and returns ErrStopped once the loop has exited.
func (l *Loop) Post(fn func()) error {
	l.queued.Add(1)

	select {
	case <-l.done:
		l.queued.Add(-1)

		return ErrStopped
	default:
	}

	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		l.queued.Add(-1)

		return ErrStopped
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})

	err := l.Post(func() {
		defer close(finished)

		fn()
	})
	if err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// Pending returns the number of queued tasks not yet started.
func (l *Loop) Pending() int {
	return int(l.queued.Load())
}

// HasPending reports whether tasks are waiting behind the current one.
func (l *Loop) HasPending() bool {
	return l.queued.Load() > 0
}

// Run executes tasks until ctx is cancelled. Pending timers are stopped on exit.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			l.queued.Add(-1)
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", slog.Any("panic", r))
		}
	}()

	fn()
}

func (l *Loop) stop() {
	l.once.Do(func() {
		close(l.done)

		l.mu.Lock()
		defer l.mu.Unlock()

		for kind, t := range l.timers {
			t.Stop()
			delete(l.timers, kind)
		}
	})
}
