package automation

import (
	"runtime"
	"sync"
)

// Dispatcher runs work on the thread that owns window state. Work posted
// from one goroutine runs in posting order.
type Dispatcher interface {
	Post(fn func())
}

// Loop is a Dispatcher backed by a single goroutine locked to its OS thread.
type Loop struct {
	work chan func()
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewLoop starts a Loop with room for size pending work items.
func NewLoop(size int) *Loop {
	l := &Loop{
		work: make(chan func(), size),
		done: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case fn := <-l.work:
			fn()
		case <-l.done:
			return
		}
	}
}

// Post queues fn. Work posted after Close is dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.work <- fn:
	case <-l.done:
	}
}

// Close stops the loop and waits for the running item, if any.
func (l *Loop) Close() {
	l.once.Do(func() {
		close(l.done)
	})
	l.wg.Wait()
}
