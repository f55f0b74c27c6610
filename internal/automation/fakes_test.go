package automation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tabtip/internal/geometry"
	"tabtip/internal/hwkbd"
	"tabtip/internal/keyboard"
)

type fakeKeyboard struct {
	mu      sync.Mutex
	opens   int
	closes  int
	modes   []keyboard.DockMode
	closeAt time.Time
	openErr error
	subs    map[int]func()
	next    int
}

func newFakeKeyboard() *fakeKeyboard {
	return &fakeKeyboard{subs: make(map[int]func())}
}

func (k *fakeKeyboard) Open(mode keyboard.DockMode) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.opens++
	k.modes = append(k.modes, mode)
	return k.openErr
}

func (k *fakeKeyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closes++
	k.closeAt = time.Now()
	return nil
}

func (k *fakeKeyboard) OnClosed(fn func()) func() {
	k.mu.Lock()
	defer k.mu.Unlock()
	id := k.next
	k.next++
	k.subs[id] = fn
	return func() {
		k.mu.Lock()
		defer k.mu.Unlock()
		delete(k.subs, id)
	}
}

func (k *fakeKeyboard) fireClosed() {
	k.mu.Lock()
	subs := make([]func(), 0, len(k.subs))
	for _, fn := range k.subs {
		subs = append(subs, fn)
	}
	k.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (k *fakeKeyboard) counts() (opens, closes int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.opens, k.closes
}

type fakeGeometry struct {
	mu     sync.Mutex
	opened geometry.Rect
	closed geometry.Rect
}

func (g *fakeGeometry) WorkAreaClosed(geometry.WindowHandle) (geometry.Rect, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed, nil
}

func (g *fakeGeometry) WorkAreaOpened(geometry.WindowHandle) (geometry.Rect, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opened, nil
}

type fakePresence struct {
	present atomic.Bool
	calls   atomic.Int32
}

func (p *fakePresence) Present(context.Context, hwkbd.IgnorePolicy, []string) bool {
	p.calls.Add(1)
	return p.present.Load()
}

type fakeSource struct {
	mu    sync.Mutex
	focus map[string][]func(Element, bool)
	taps  map[string][]func(Element)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		focus: make(map[string][]func(Element, bool)),
		taps:  make(map[string][]func(Element)),
	}
}

func (s *fakeSource) RegisterFocusHandler(elementType string, handler func(Element, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus[elementType] = append(s.focus[elementType], handler)
	return nil
}

func (s *fakeSource) RegisterTapHandler(elementType string, handler func(Element)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taps[elementType] = append(s.taps[elementType], handler)
	return nil
}

func (s *fakeSource) handlerCounts(elementType string) (focus, taps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.focus[elementType]), len(s.taps[elementType])
}

func (s *fakeSource) fireFocus(elementType string, el Element, focused bool) {
	s.mu.Lock()
	handlers := append([]func(Element, bool){}, s.focus[elementType]...)
	s.mu.Unlock()
	for _, h := range handlers {
		h(el, focused)
	}
}

func (s *fakeSource) fireTap(elementType string, el Element) {
	s.mu.Lock()
	handlers := append([]func(Element){}, s.taps[elementType]...)
	s.mu.Unlock()
	for _, h := range handlers {
		h(el)
	}
}

// fakeVisual moves its bounds along with its position.
type fakeVisual struct {
	mu          sync.Mutex
	kind        VisualKind
	alive       bool
	rect        geometry.Rect
	pos         float64
	boundsCalls int
	onRestored  []func()
}

func newWindow(rect geometry.Rect) *fakeVisual {
	return &fakeVisual{kind: VisualWindow, alive: true, rect: rect, pos: float64(rect.Top)}
}

func newRootElement(rect geometry.Rect) *fakeVisual {
	return &fakeVisual{kind: VisualElement, alive: true, rect: rect}
}

func (v *fakeVisual) Kind() VisualKind              { return v.kind }
func (v *fakeVisual) Window() geometry.WindowHandle { return 1 }

func (v *fakeVisual) Alive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.alive
}

func (v *fakeVisual) Bounds() (geometry.Rect, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.boundsCalls++
	return v.rect, nil
}

func (v *fakeVisual) Position() (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos, nil
}

func (v *fakeVisual) SetPosition(y float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rect = v.rect.OffsetY(int(y - v.pos))
	v.pos = y
	return nil
}

func (v *fakeVisual) position() float64 {
	pos, _ := v.Position()
	return pos
}

func (v *fakeVisual) kill() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alive = false
}

// place simulates the user dragging the window.
func (v *fakeVisual) place(rect geometry.Rect) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rect = rect
	v.pos = float64(rect.Top)
}

func (v *fakeVisual) bounds() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.boundsCalls
}

// restorableWindow also reports restoration from minimized state.
type restorableWindow struct {
	*fakeVisual
}

func (w restorableWindow) OnRestored(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onRestored = append(w.onRestored, fn)
}

func (w restorableWindow) restore() {
	w.mu.Lock()
	fns := append([]func(){}, w.onRestored...)
	w.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type fakeElement struct {
	mu          sync.Mutex
	rect        geometry.Rect
	root        Visual
	err         error
	boundsCalls int
}

func (e *fakeElement) Bounds() (geometry.Rect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.boundsCalls++
	return e.rect, e.err
}

func (e *fakeElement) Root() Visual { return e.root }

func (e *fakeElement) bounds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boundsCalls
}

type panickyElement struct{}

func (panickyElement) Bounds() (geometry.Rect, error) { return geometry.Rect{}, nil }
func (panickyElement) Root() Visual                  { panic("visual tree torn down") }

// instantAnimator jumps straight to the target.
type instantAnimator struct {
	calls atomic.Int32
}

func (a *instantAnimator) Animate(v Visual, _, to float64) func() {
	a.calls.Add(1)
	_ = v.SetPosition(to)
	return func() {}
}

// recordingAnimator notes each move and leaves the visual where it is.
type recordingAnimator struct {
	mu    sync.Mutex
	moves [][2]float64
}

func (a *recordingAnimator) Animate(_ Visual, from, to float64) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.moves = append(a.moves, [2]float64{from, to})
	return func() {}
}

func (a *recordingAnimator) recorded() [][2]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][2]float64(nil), a.moves...)
}

type harness struct {
	hub      *Hub
	keyboard *fakeKeyboard
	geometry *fakeGeometry
	presence *fakePresence
	source   *fakeSource
	animator *instantAnimator
	loop     *Loop
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		keyboard: newFakeKeyboard(),
		geometry: &fakeGeometry{
			opened: geometry.FromLTRB(0, 0, 1920, 700),
			closed: geometry.FromLTRB(0, 0, 1920, 1040),
		},
		presence: &fakePresence{},
		source:   newFakeSource(),
		animator: &instantAnimator{},
		loop:     NewLoop(16),
	}

	hub, err := New(Options{
		Source:     h.source,
		Keyboard:   h.keyboard,
		Geometry:   h.geometry,
		Presence:   h.presence,
		Dispatcher: h.loop,
		Animator:   h.animator,
		Logger:     testLogger(t),
		DockMode:   keyboard.DockDocked,
	})
	require.NoError(t, err)
	h.hub = hub

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	require.Eventually(t, hub.running.Load, waitFor, time.Millisecond, "hub did not start")

	t.Cleanup(func() {
		cancel()
		<-done
		hub.Close()
		h.loop.Close()
	})
	return h
}

// flush waits for the dispatcher to run everything posted so far.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	h.loop.Post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not drain")
	}
}

func (h *harness) exceptions() <-chan error {
	errs := make(chan error, 16)
	h.hub.OnException(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	return errs
}
