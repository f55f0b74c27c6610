// Package poll provides a single-slot recurring poll used to detect state
// transitions the OS does not signal.
package poll

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Status is the lifecycle state of a Watcher.
type Status int32

const (
	StatusIdle Status = iota
	StatusRunning
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	default:
		return "idle"
	}
}

// Predicate reports whether the awaited condition holds.
type Predicate func() (bool, error)

// PredicateError wraps a failure of the polled predicate.
type PredicateError struct {
	Err error
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("poll predicate failed: %v", e.Err)
}

func (e *PredicateError) Unwrap() error { return e.Err }

// Watcher runs at most one poll loop at a time. A Start while a loop is
// running is dropped, not queued.
type Watcher struct {
	status atomic.Int32
	// gen identifies the current loop so a tick from a cancelled loop is inert.
	gen atomic.Uint64

	mu    sync.Mutex
	timer *time.Timer

	onError func(error)
	logger  *zap.Logger
}

// NewWatcher creates a Watcher. onError receives predicate failures and may
// be nil.
func NewWatcher(logger *zap.Logger, onError func(error)) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		onError: onError,
		logger:  logger.Named("poll"),
	}
}

// Status returns the current lifecycle state.
func (w *Watcher) Status() Status {
	return Status(w.status.Load())
}

// Running reports whether a poll loop is active.
func (w *Watcher) Running() bool {
	return w.Status() == StatusRunning
}

// Start calls pred after dueTime and then every period until it returns
// true, then calls onDone once. It returns false if a loop is already
// running.
func (w *Watcher) Start(pred Predicate, onDone func(), dueTime, period time.Duration) bool {
	if !w.status.CompareAndSwap(int32(StatusIdle), int32(StatusRunning)) &&
		!w.status.CompareAndSwap(int32(StatusDone), int32(StatusRunning)) {
		w.logger.Debug("poll already running, start dropped")
		return false
	}

	gen := w.gen.Add(1)
	w.mu.Lock()
	w.timer = time.AfterFunc(dueTime, func() {
		w.tick(gen, pred, onDone, period)
	})
	w.mu.Unlock()
	return true
}

// Cancel stops an active loop without calling onDone.
func (w *Watcher) Cancel() {
	if w.status.CompareAndSwap(int32(StatusRunning), int32(StatusIdle)) {
		w.gen.Add(1)
		w.release()
	}
}

func (w *Watcher) tick(gen uint64, pred Predicate, onDone func(), period time.Duration) {
	if w.gen.Load() != gen {
		return
	}

	done, err := evaluate(pred)
	if w.gen.Load() != gen {
		return
	}

	if err != nil {
		w.finish()
		w.logger.Warn("poll stopped after predicate failure", zap.Error(err))
		if w.onError != nil {
			w.onError(&PredicateError{Err: err})
		}
		return
	}
	if done {
		w.finish()
		if onDone != nil {
			onDone()
		}
		return
	}

	w.mu.Lock()
	if w.timer != nil && w.gen.Load() == gen {
		w.timer.Reset(period)
	}
	w.mu.Unlock()
}

// finish marks the loop done before any callback runs so callbacks may
// start a new loop.
func (w *Watcher) finish() {
	w.release()
	w.status.Store(int32(StatusDone))
}

// release stops and forgets the timer. Safe to call repeatedly.
func (w *Watcher) release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func evaluate(pred Predicate) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return pred()
}
