package keyboard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tabtip/internal/geometry"
	"tabtip/internal/poll"
)

const (
	DefaultPollDueTime  = 700 * time.Millisecond
	DefaultPollPeriod   = 50 * time.Millisecond
	DefaultRequeryDelay = time.Second
)

// Option configures a Controller.
type Option func(*Controller)

// WithPollTiming overrides the close-detection poll timing.
func WithPollTiming(dueTime, period time.Duration) Option {
	return func(c *Controller) {
		c.dueTime = dueTime
		c.period = period
	}
}

// WithRequeryDelay overrides the delay of the one-shot rectangle re-query.
func WithRequeryDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.requeryDelay = d
	}
}

// Status is a point-in-time view of the controller.
type Status struct {
	Closed     bool
	Polling    bool
	LiveRect   geometry.Rect
	CachedRect geometry.Rect
}

// Controller opens and closes the keyboard. The OS raises no event when the
// keyboard closes, so every Open starts a poll that reports the transition.
type Controller struct {
	window  Window
	dock    DockStore
	watcher *poll.Watcher
	logger  *zap.Logger

	dueTime      time.Duration
	period       time.Duration
	requeryDelay time.Duration

	mu       sync.Mutex
	previous geometry.Rect
	requery  *time.Timer
	onClosed map[int]func()
	nextSub  int
}

// NewController creates a Controller. onError receives failures of the
// close-detection poll and may be nil.
func NewController(window Window, dock DockStore, logger *zap.Logger, onError func(error), opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("keyboard")

	c := &Controller{
		window:       window,
		dock:         dock,
		watcher:      poll.NewWatcher(logger, onError),
		logger:       logger,
		dueTime:      DefaultPollDueTime,
		period:       DefaultPollPeriod,
		requeryDelay: DefaultRequeryDelay,
		onClosed:     make(map[int]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnClosed registers fn to run each time a close is confirmed.
func (c *Controller) OnClosed(fn func()) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.onClosed[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.onClosed, id)
	}
}

// Open applies the dock mode, shows the keyboard and starts watching for it
// to close. While a close poll is active, further polls are not started.
func (c *Controller) Open(mode DockMode) error {
	if err := c.applyDockMode(mode); err != nil {
		c.logger.Warn("failed to apply dock mode", zap.Stringer("mode", mode), zap.Error(err))
	}

	closed, err := c.IsClosed()
	if err != nil || closed {
		if err := c.window.Launch(); err != nil {
			return fmt.Errorf("%w: %v", ErrLaunchFailed, err)
		}
		c.logger.Debug("keyboard launched", zap.Stringer("mode", mode))
	}

	if !c.watcher.Start(c.closedPredicate, c.notifyClosed, c.dueTime, c.period) {
		c.logger.Debug("close poll already active")
	}
	return nil
}

// Close asks the keyboard to close. Confirmation arrives via OnClosed.
func (c *Controller) Close() error {
	err := c.window.PostClose()
	if errors.Is(err, ErrWindowNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("post close: %w", err)
	}
	return nil
}

// Toggle closes a showing keyboard and opens it otherwise. An unknown state
// opens it.
func (c *Controller) Toggle(mode DockMode) error {
	closed, err := c.IsClosed()
	if err != nil {
		c.logger.Debug("keyboard state unknown, opening", zap.Error(err))
	}
	if closed || err != nil {
		return c.Open(mode)
	}
	return c.Close()
}

// IsClosed reports whether the keyboard window is absent or hidden.
func (c *Controller) IsClosed() (bool, error) {
	style, err := c.window.Style()
	if errors.Is(err, ErrWindowNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query keyboard style: %w", err)
	}
	return style == ClosedStyle, nil
}

// WouldBeRect returns where the keyboard is, or was last seen. When it has
// never been measured, a delayed re-query is scheduled to fill the cache and
// the zero Rect is returned right away.
func (c *Controller) WouldBeRect() geometry.Rect {
	live, err := c.window.Rect()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil && !live.IsZero() {
		c.previous = live
		return live
	}
	if c.previous.IsZero() && c.requery == nil {
		c.logger.Debug("keyboard not measurable, scheduling re-query", zap.Duration("delay", c.requeryDelay))
		c.requery = time.AfterFunc(c.requeryDelay, c.requeryRect)
	}
	return c.previous
}

// CurrentRect is WouldBeRect, except that a closed keyboard yields the zero
// Rect rather than the cached one.
func (c *Controller) CurrentRect() geometry.Rect {
	if closed, err := c.IsClosed(); err == nil && closed {
		return geometry.Rect{}
	}
	return c.WouldBeRect()
}

// Status returns a snapshot for diagnostics.
func (c *Controller) Status() Status {
	closed, _ := c.IsClosed()
	live, _ := c.window.Rect()

	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Closed:     closed,
		Polling:    c.watcher.Running(),
		LiveRect:   live,
		CachedRect: c.previous,
	}
}

// Shutdown stops the close poll and any pending re-query.
func (c *Controller) Shutdown() {
	c.watcher.Cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.requery != nil {
		c.requery.Stop()
		c.requery = nil
	}
}

func (c *Controller) applyDockMode(mode DockMode) error {
	if mode == DockNoChange || c.dock == nil {
		return nil
	}
	return c.dock.SetDocked(mode == DockDocked)
}

func (c *Controller) closedPredicate() (bool, error) {
	return c.IsClosed()
}

func (c *Controller) notifyClosed() {
	c.mu.Lock()
	subs := make([]func(), 0, len(c.onClosed))
	for _, fn := range c.onClosed {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	c.logger.Debug("keyboard closed")
	for _, fn := range subs {
		fn()
	}
}

func (c *Controller) requeryRect() {
	live, err := c.window.Rect()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requery = nil
	if err == nil && !live.IsZero() {
		c.previous = live
	}
}
