package automation

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tabtip/internal/hwkbd"
	"tabtip/internal/keyboard"
)

const (
	// DefaultQuietWindow is how long a focus loss must stand before the
	// keyboard is closed.
	DefaultQuietWindow = 100 * time.Millisecond

	eventQueueSize = 256
)

// Options wires a Hub. Source, Keyboard and Geometry are required.
type Options struct {
	Source   FocusSource
	Keyboard Keyboard
	Geometry Geometry
	// Presence filters events while a hardware keyboard is attached. When
	// nil every event is automated.
	Presence PresenceChecker
	// Dispatcher defaults to a Loop owned by the hub.
	Dispatcher Dispatcher
	// Animator defaults to an EaseOutAnimator on Dispatcher.
	Animator    Animator
	Logger      *zap.Logger
	QuietWindow time.Duration

	IgnorePolicy     hwkbd.IgnorePolicy
	IgnoredKeyboards []string
	DockMode         keyboard.DockMode
}

type queued struct {
	event FocusEvent
	quiet bool
	seq   uint64
}

// Hub consumes focus events in order, opens the keyboard on focus, closes it
// once focus has been gone for the quiet window and keeps focused elements
// above the keyboard.
type Hub struct {
	source     FocusSource
	keyboard   Keyboard
	geometry   Geometry
	presence   PresenceChecker
	dispatcher Dispatcher
	ownLoop    *Loop
	animator   Animator
	logger     *zap.Logger
	quiet      time.Duration

	events  chan queued
	stopped chan struct{}
	running atomic.Bool
	// seq is touched only by the Run goroutine.
	seq uint64

	timerMu    sync.Mutex
	quietTimer *time.Timer

	mu       sync.RWMutex
	policy   hwkbd.IgnorePolicy
	ignored  []string
	dockMode keyboard.DockMode

	bindMu sync.Mutex
	bound  map[string]bool

	// bindings is touched only on the dispatcher.
	bindings map[Visual]*moveBinding

	excMu   sync.Mutex
	excSubs map[int]func(error)
	nextExc int

	unsubscribeClosed func()
	closeOnce         sync.Once
}

// New creates a Hub. Call Run to start processing events.
func New(opts Options) (*Hub, error) {
	switch {
	case opts.Source == nil:
		return nil, fmt.Errorf("%w: focus source", ErrMissingCollaborator)
	case opts.Keyboard == nil:
		return nil, fmt.Errorf("%w: keyboard", ErrMissingCollaborator)
	case opts.Geometry == nil:
		return nil, fmt.Errorf("%w: geometry", ErrMissingCollaborator)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	quiet := opts.QuietWindow
	if quiet <= 0 {
		quiet = DefaultQuietWindow
	}

	h := &Hub{
		source:   opts.Source,
		keyboard: opts.Keyboard,
		geometry: opts.Geometry,
		presence: opts.Presence,
		logger:   logger.Named("automation"),
		quiet:    quiet,
		events:   make(chan queued, eventQueueSize),
		stopped:  make(chan struct{}),
		policy:   opts.IgnorePolicy,
		ignored:  slices.Clone(opts.IgnoredKeyboards),
		dockMode: opts.DockMode,
		bound:    make(map[string]bool),
		bindings: make(map[Visual]*moveBinding),
		excSubs:  make(map[int]func(error)),
	}

	h.dispatcher = opts.Dispatcher
	if h.dispatcher == nil {
		h.ownLoop = NewLoop(eventQueueSize)
		h.dispatcher = h.ownLoop
	}
	h.animator = opts.Animator
	if h.animator == nil {
		h.animator = NewEaseOutAnimator(h.dispatcher, h.report)
	}

	h.unsubscribeClosed = h.keyboard.OnClosed(func() {
		h.dispatcher.Post(func() {
			h.guard("reposition on close", h.restoreAll)
		})
	})
	return h, nil
}

// BindElementType enrolls every element of elementType. Binding a type again
// has no effect, including a different popupOnTap. With popupOnTap a tap on
// an already focused element reopens the keyboard.
func (h *Hub) BindElementType(elementType string, popupOnTap bool) error {
	h.bindMu.Lock()
	defer h.bindMu.Unlock()

	if h.bound[elementType] {
		return nil
	}

	err := h.source.RegisterFocusHandler(elementType, func(el Element, focused bool) {
		h.Publish(FocusEvent{Element: el, Focused: focused})
	})
	if err != nil {
		return fmt.Errorf("bind %s: %w", elementType, err)
	}
	if popupOnTap {
		err := h.source.RegisterTapHandler(elementType, func(el Element) {
			h.Publish(FocusEvent{Element: el, Focused: true, Tap: true})
		})
		if err != nil {
			h.logger.Warn("tap handler not registered", zap.String("type", elementType), zap.Error(err))
		}
	}

	h.bound[elementType] = true
	h.logger.Debug("element type bound", zap.String("type", elementType), zap.Bool("popupOnTap", popupOnTap))
	return nil
}

// BoundTypes lists the bound element types in no particular order.
func (h *Hub) BoundTypes() []string {
	h.bindMu.Lock()
	defer h.bindMu.Unlock()
	types := make([]string, 0, len(h.bound))
	for t := range h.bound {
		types = append(types, t)
	}
	return types
}

// Publish queues a focus event. It never blocks; when the queue is full the
// event is dropped.
func (h *Hub) Publish(ev FocusEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case h.events <- queued{event: ev}:
	default:
		h.logger.Warn("focus event queue full, dropping event", zap.Bool("focused", ev.Focused))
	}
}

// Run processes events until ctx is done. It may only be called once.
func (h *Hub) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(h.stopped)
	defer h.stopQuietTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-h.events:
			h.handle(ctx, item)
		}
	}
}

func (h *Hub) handle(ctx context.Context, item queued) {
	if item.quiet {
		if item.seq != h.seq {
			return
		}
		h.logger.Debug("focus gone for quiet window, closing keyboard")
		if err := h.keyboard.Close(); err != nil {
			h.report(fmt.Errorf("close keyboard: %w", err))
		}
		return
	}

	ev := item.event
	if !h.automate(ctx) {
		h.logger.Debug("hardware keyboard present, skipping", zap.Bool("focused", ev.Focused))
		return
	}

	h.seq++
	if !ev.Focused {
		h.scheduleQuiet(h.seq)
		return
	}

	if err := h.keyboard.Open(h.DockMode()); err != nil {
		h.report(fmt.Errorf("open keyboard: %w", err))
	}
	el := ev.Element
	if el == nil {
		return
	}
	h.dispatcher.Post(func() {
		h.guard("reposition on open", func() error { return h.bringIntoView(el) })
	})
}

func (h *Hub) automate(ctx context.Context) bool {
	if h.presence == nil {
		return true
	}
	h.mu.RLock()
	policy, ignored := h.policy, h.ignored
	h.mu.RUnlock()
	return !h.presence.Present(ctx, policy, ignored)
}

func (h *Hub) scheduleQuiet(seq uint64) {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()

	if h.quietTimer != nil {
		h.quietTimer.Stop()
	}
	h.quietTimer = time.AfterFunc(h.quiet, func() {
		select {
		case h.events <- queued{quiet: true, seq: seq}:
		case <-h.stopped:
		}
	})
}

func (h *Hub) stopQuietTimer() {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()
	if h.quietTimer != nil {
		h.quietTimer.Stop()
		h.quietTimer = nil
	}
}

// IgnorePolicy returns the hardware keyboard policy.
func (h *Hub) IgnorePolicy() hwkbd.IgnorePolicy {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.policy
}

func (h *Hub) SetIgnorePolicy(p hwkbd.IgnorePolicy) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.policy = p
}

// IgnoredKeyboards returns a copy of the ignored device descriptions.
func (h *Hub) IgnoredKeyboards() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.ignored)
}

func (h *Hub) SetIgnoredKeyboards(descriptions []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ignored = slices.Clone(descriptions)
}

func (h *Hub) DockMode() keyboard.DockMode {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dockMode
}

func (h *Hub) SetDockMode(m keyboard.DockMode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dockMode = m
}

// OnException registers fn for failures inside the automation pipeline.
func (h *Hub) OnException(fn func(error)) (unsubscribe func()) {
	h.excMu.Lock()
	defer h.excMu.Unlock()
	id := h.nextExc
	h.nextExc++
	h.excSubs[id] = fn
	return func() {
		h.excMu.Lock()
		defer h.excMu.Unlock()
		delete(h.excSubs, id)
	}
}

// Report publishes err on the exception channel. It suits as the onError
// callback of the keyboard controller.
func (h *Hub) Report(err error) {
	h.report(err)
}

func (h *Hub) report(err error) {
	if err == nil {
		return
	}
	h.logger.Error("automation failure", zap.Error(err))

	h.excMu.Lock()
	subs := make([]func(error), 0, len(h.excSubs))
	for _, fn := range h.excSubs {
		subs = append(subs, fn)
	}
	h.excMu.Unlock()

	for _, fn := range subs {
		fn(err)
	}
}

// guard runs fn and reports its error or panic as a QueryError.
func (h *Hub) guard(op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			h.report(&QueryError{Op: op, Err: &panicError{value: r}})
		}
	}()
	if err := fn(); err != nil {
		h.report(&QueryError{Op: op, Err: err})
	}
}

// Close detaches from the keyboard and stops the dispatcher the hub owns.
// Call it after Run has returned.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.unsubscribeClosed()
		h.stopQuietTimer()
		if h.ownLoop != nil {
			h.ownLoop.Close()
		}
	})
}
