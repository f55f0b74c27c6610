package automation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"tabtip/internal/geometry"
	"tabtip/internal/hwkbd"
	"tabtip/internal/keyboard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

const waitFor = time.Second

func field(rect geometry.Rect) *fakeElement {
	return &fakeElement{rect: rect, root: newRootElement(geometry.FromLTRB(0, 0, 1920, 1080))}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{Keyboard: newFakeKeyboard(), Geometry: &fakeGeometry{}})
	assert.ErrorIs(t, err, ErrMissingCollaborator)

	_, err = New(Options{Source: newFakeSource(), Geometry: &fakeGeometry{}})
	assert.ErrorIs(t, err, ErrMissingCollaborator)

	_, err = New(Options{Source: newFakeSource(), Keyboard: newFakeKeyboard()})
	assert.ErrorIs(t, err, ErrMissingCollaborator)
}

func TestHub_RunTwice(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	assert.ErrorIs(t, h.hub.Run(ctx), ErrAlreadyRunning)
}

func TestHub_FocusOpensKeyboardWithDockMode(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.hub.BindElementType("Edit", false))

	h.source.fireFocus("Edit", field(geometry.FromLTRB(10, 10, 100, 40)), true)

	require.Eventually(t, func() bool {
		opens, _ := h.keyboard.counts()
		return opens == 1
	}, waitFor, 5*time.Millisecond)

	h.keyboard.mu.Lock()
	defer h.keyboard.mu.Unlock()
	assert.Equal(t, []keyboard.DockMode{keyboard.DockDocked}, h.keyboard.modes)
}

func TestHub_BindElementTypeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.hub.BindElementType("Edit", true))
	require.NoError(t, h.hub.BindElementType("Edit", true))
	require.NoError(t, h.hub.BindElementType("Edit", false))

	focus, taps := h.source.handlerCounts("Edit")
	assert.Equal(t, 1, focus)
	assert.Equal(t, 1, taps)
	assert.Equal(t, []string{"Edit"}, h.hub.BoundTypes())

	h.source.fireFocus("Edit", field(geometry.FromLTRB(10, 10, 100, 40)), true)
	require.Eventually(t, func() bool {
		opens, _ := h.keyboard.counts()
		return opens >= 1
	}, waitFor, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	opens, _ := h.keyboard.counts()
	assert.Equal(t, 1, opens)
}

func TestHub_FocusMovingToAnotherElementKeepsKeyboardOpen(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.hub.BindElementType("Edit", false))
	a := field(geometry.FromLTRB(10, 10, 100, 40))
	b := field(geometry.FromLTRB(10, 60, 100, 90))

	h.source.fireFocus("Edit", a, true)
	h.source.fireFocus("Edit", a, false)
	time.Sleep(30 * time.Millisecond)
	h.source.fireFocus("Edit", b, true)

	time.Sleep(3 * DefaultQuietWindow)
	opens, closes := h.keyboard.counts()
	assert.Equal(t, 2, opens)
	assert.Zero(t, closes)
}

func TestHub_FocusLossClosesAfterQuietWindow(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.hub.BindElementType("Edit", false))
	a := field(geometry.FromLTRB(10, 10, 100, 40))

	h.source.fireFocus("Edit", a, true)
	lost := time.Now()
	h.source.fireFocus("Edit", a, false)

	require.Eventually(t, func() bool {
		_, closes := h.keyboard.counts()
		return closes == 1
	}, waitFor, 5*time.Millisecond)

	h.keyboard.mu.Lock()
	elapsed := h.keyboard.closeAt.Sub(lost)
	h.keyboard.mu.Unlock()
	assert.GreaterOrEqual(t, elapsed, DefaultQuietWindow)

	time.Sleep(150 * time.Millisecond)
	_, closes := h.keyboard.counts()
	assert.Equal(t, 1, closes)
}

func TestHub_HardwareKeyboardSkipsAutomation(t *testing.T) {
	h := newHarness(t)
	h.presence.present.Store(true)
	require.NoError(t, h.hub.BindElementType("Edit", false))
	a := field(geometry.FromLTRB(10, 10, 100, 40))

	h.source.fireFocus("Edit", a, true)
	h.source.fireFocus("Edit", a, false)

	require.Eventually(t, func() bool {
		return h.presence.calls.Load() == 2
	}, waitFor, 5*time.Millisecond)
	time.Sleep(2 * DefaultQuietWindow)

	opens, closes := h.keyboard.counts()
	assert.Zero(t, opens)
	assert.Zero(t, closes)
}

func TestHub_TapReopensOnlyOptedInTypes(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.hub.BindElementType("Edit", false))
	require.NoError(t, h.hub.BindElementType("ComboBox", true))

	_, editTaps := h.source.handlerCounts("Edit")
	_, comboTaps := h.source.handlerCounts("ComboBox")
	assert.Zero(t, editTaps)
	assert.Equal(t, 1, comboTaps)

	h.source.fireTap("Edit", field(geometry.FromLTRB(10, 10, 100, 40)))
	h.source.fireTap("ComboBox", field(geometry.FromLTRB(10, 10, 100, 40)))

	require.Eventually(t, func() bool {
		opens, _ := h.keyboard.counts()
		return opens == 1
	}, waitFor, 5*time.Millisecond)
}

func TestHub_MovesElementRootAboveKeyboard(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.hub.BindElementType("Edit", false))
	el := field(geometry.FromLTRB(100, 650, 400, 750))
	root := el.root.(*fakeVisual)

	h.source.fireFocus("Edit", el, true)

	require.Eventually(t, func() bool {
		return root.position() == -60
	}, waitFor, 5*time.Millisecond)
}

func TestHub_ElementRootMovesFromLastRequestedOffset(t *testing.T) {
	h := newHarness(t)
	anim := &recordingAnimator{}
	h.hub.animator = anim
	root := newRootElement(geometry.FromLTRB(0, 0, 1920, 1080))

	h.loop.Post(func() {
		assert.NoError(t, h.hub.moveBy(root, -60))
		assert.NoError(t, h.hub.moveBy(root, -40))
		assert.NoError(t, h.hub.moveTo(root, -100))
		assert.NoError(t, h.hub.moveTo(root, 0))
	})
	h.flush(t)

	assert.Equal(t, [][2]float64{{0, -60}, {-60, -100}, {-100, 0}}, anim.recorded())
}

func TestHub_ElementWithoutRootOnlyOpensKeyboard(t *testing.T) {
	h := newHarness(t)
	errs := h.exceptions()
	require.NoError(t, h.hub.BindElementType("Edit", false))

	h.source.fireFocus("Edit", &fakeElement{rect: geometry.FromLTRB(100, 650, 400, 750)}, true)

	require.Eventually(t, func() bool {
		opens, _ := h.keyboard.counts()
		return opens == 1
	}, waitFor, 5*time.Millisecond)
	h.flush(t)
	assert.Zero(t, h.animator.calls.Load())
	assert.Empty(t, errs)
}

func TestHub_MovesWholeWindowWhenItFits(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.hub.BindElementType("Edit", false))
	win := newWindow(geometry.FromLTRB(0, 400, 800, 780))
	el := &fakeElement{rect: geometry.FromLTRB(100, 650, 400, 750), root: win}

	h.source.fireFocus("Edit", el, true)

	// The window bottom (780) is fitted, not the element bottom (750).
	require.Eventually(t, func() bool {
		return win.position() == 310
	}, waitFor, 5*time.Millisecond)
}

func TestHub_TallWindowFitsElementOnly(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.hub.BindElementType("Edit", false))
	win := newWindow(geometry.FromLTRB(0, 0, 800, 1000))
	el := &fakeElement{rect: geometry.FromLTRB(100, 650, 400, 750), root: win}

	h.source.fireFocus("Edit", el, true)

	require.Eventually(t, func() bool {
		return win.position() == -60
	}, waitFor, 5*time.Millisecond)
}

func TestHub_VisibleElementIsNotAnimated(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.hub.BindElementType("Edit", false))
	el := field(geometry.FromLTRB(100, 100, 400, 200))

	h.source.fireFocus("Edit", el, true)

	require.Eventually(t, func() bool { return el.bounds() == 1 }, waitFor, 5*time.Millisecond)
	h.flush(t)
	assert.Zero(t, h.animator.calls.Load())
}

func TestHub_ClosedKeyboardRestoresRoots(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.hub.BindElementType("Edit", false))

	el := field(geometry.FromLTRB(100, 650, 400, 750))
	elementRoot := el.root.(*fakeVisual)
	win := newWindow(geometry.FromLTRB(0, 400, 800, 780))
	inWindow := &fakeElement{rect: geometry.FromLTRB(100, 650, 400, 750), root: win}

	h.source.fireFocus("Edit", el, true)
	h.source.fireFocus("Edit", inWindow, true)
	require.Eventually(t, func() bool {
		return elementRoot.position() == -60 && win.position() == 310
	}, waitFor, 5*time.Millisecond)

	// Dragged partly below the taskbar while the keyboard was up.
	win.place(geometry.FromLTRB(0, 900, 800, 1280))
	h.keyboard.fireClosed()

	require.Eventually(t, func() bool {
		return elementRoot.position() == 0 && win.position() == 650
	}, waitFor, 5*time.Millisecond)
}

func TestHub_DestroyedWindowIsDroppedOnClose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.hub.BindElementType("Edit", false))
	win := newWindow(geometry.FromLTRB(0, 400, 800, 780))
	el := &fakeElement{rect: geometry.FromLTRB(100, 650, 400, 750), root: win}

	h.source.fireFocus("Edit", el, true)
	require.Eventually(t, func() bool { return win.position() == 310 }, waitFor, 5*time.Millisecond)
	h.flush(t)

	win.kill()
	queried := win.bounds()
	moves := h.animator.calls.Load()

	h.keyboard.fireClosed()
	h.flush(t)
	h.keyboard.fireClosed()
	h.flush(t)

	assert.Equal(t, queried, win.bounds(), "dead window must not be queried")
	assert.Equal(t, moves, h.animator.calls.Load())
}

func TestHub_RestoredWindowIsRefitted(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.hub.BindElementType("Edit", false))
	win := restorableWindow{newWindow(geometry.FromLTRB(0, 400, 800, 780))}
	el := &fakeElement{rect: geometry.FromLTRB(100, 650, 400, 750), root: win}

	h.source.fireFocus("Edit", el, true)
	require.Eventually(t, func() bool { return win.position() == 310 }, waitFor, 5*time.Millisecond)
	h.flush(t)

	win.place(geometry.FromLTRB(0, 900, 800, 1280))
	win.restore()

	require.Eventually(t, func() bool { return win.position() == 650 }, waitFor, 5*time.Millisecond)
}

func TestHub_QueryFailureIsReportedAndPipelineContinues(t *testing.T) {
	h := newHarness(t)
	errs := h.exceptions()
	require.NoError(t, h.hub.BindElementType("Edit", false))

	boom := errors.New("element gone")
	broken := field(geometry.Rect{})
	broken.err = boom

	h.source.fireFocus("Edit", broken, true)

	select {
	case err := <-errs:
		var qe *QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, "reposition on open", qe.Op)
		assert.ErrorIs(t, err, boom)
	case <-time.After(waitFor):
		t.Fatal("no exception reported")
	}

	h.source.fireFocus("Edit", field(geometry.FromLTRB(10, 10, 100, 40)), true)
	require.Eventually(t, func() bool {
		opens, _ := h.keyboard.counts()
		return opens == 2
	}, waitFor, 5*time.Millisecond)
}

func TestHub_PanicIsReported(t *testing.T) {
	h := newHarness(t)
	errs := h.exceptions()
	require.NoError(t, h.hub.BindElementType("Edit", false))

	h.source.fireFocus("Edit", panickyElement{}, true)

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "visual tree torn down")
	case <-time.After(waitFor):
		t.Fatal("no exception reported")
	}
}

func TestHub_OpenFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.keyboard.openErr = keyboard.ErrLaunchFailed
	errs := h.exceptions()
	require.NoError(t, h.hub.BindElementType("Edit", false))

	h.source.fireFocus("Edit", field(geometry.FromLTRB(10, 10, 100, 40)), true)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, keyboard.ErrLaunchFailed)
	case <-time.After(waitFor):
		t.Fatal("no exception reported")
	}
}

func TestHub_UnsubscribedExceptionHandlerIsSilent(t *testing.T) {
	h := newHarness(t)
	called := make(chan struct{}, 1)
	unsubscribe := h.hub.OnException(func(error) { called <- struct{}{} })
	unsubscribe()

	h.hub.Report(errors.New("ignored"))
	assert.Empty(t, called)
}

func TestHub_Settings(t *testing.T) {
	h := newHarness(t)

	h.hub.SetIgnorePolicy(hwkbd.IgnoreIfOnList)
	assert.Equal(t, hwkbd.IgnoreIfOnList, h.hub.IgnorePolicy())

	ignored := []string{"HID Keyboard Device"}
	h.hub.SetIgnoredKeyboards(ignored)
	ignored[0] = "changed"
	got := h.hub.IgnoredKeyboards()
	assert.Equal(t, []string{"HID Keyboard Device"}, got)
	got[0] = "changed again"
	assert.Equal(t, []string{"HID Keyboard Device"}, h.hub.IgnoredKeyboards())

	h.hub.SetDockMode(keyboard.DockUndocked)
	assert.Equal(t, keyboard.DockUndocked, h.hub.DockMode())
}

func TestLoop_RunsInOrderAndStops(t *testing.T) {
	l := NewLoop(4)
	var got []int
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Post(func() { close(done) })
	<-done
	l.Close()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)

	l.Post(func() { t.Error("work ran after Close") })
	l.Close()
}

func TestCircleEaseOut(t *testing.T) {
	assert.Equal(t, 0.0, CircleEaseOut(0))
	assert.Equal(t, 1.0, CircleEaseOut(1))
	assert.InDelta(t, math.Sqrt(0.75), CircleEaseOut(0.5), 1e-9)
	assert.Equal(t, 1.0, CircleEaseOut(2))
}

func TestEaseOutAnimator(t *testing.T) {
	loop := NewLoop(16)
	defer loop.Close()

	a := NewEaseOutAnimator(loop, nil)
	a.Duration = 30 * time.Millisecond
	a.Frame = 5 * time.Millisecond

	t.Run("reaches target", func(t *testing.T) {
		v := newRootElement(geometry.FromLTRB(0, 0, 100, 100))
		a.Animate(v, 0, -120)
		require.Eventually(t, func() bool { return v.position() == -120 }, waitFor, 5*time.Millisecond)
	})

	t.Run("cancel stops the move", func(t *testing.T) {
		v := newRootElement(geometry.FromLTRB(0, 0, 100, 100))
		cancel := a.Animate(v, 0, -120)
		cancel()
		cancel()
		time.Sleep(60 * time.Millisecond)
		assert.Zero(t, v.position())
	})
}
