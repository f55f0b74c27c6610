package automation

import (
	"math"
	"sync"
	"time"
)

const (
	// MoveDuration is the length of every window move.
	MoveDuration = 350 * time.Millisecond
	// FrameInterval is the time between animation frames.
	FrameInterval = 15 * time.Millisecond
)

// Animator moves a visual from one position to another. The returned cancel
// stops the move where it is; calling it after completion is harmless.
type Animator interface {
	Animate(v Visual, from, to float64) (cancel func())
}

// CircleEaseOut is the circular ease-out curve for progress t in [0, 1].
func CircleEaseOut(t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	return math.Sqrt(1 - (t-1)*(t-1))
}

// EaseOutAnimator steps positions along CircleEaseOut. Frames are computed
// on a timer and applied through the Dispatcher.
type EaseOutAnimator struct {
	Dispatcher Dispatcher
	Duration   time.Duration
	Frame      time.Duration
	// OnError receives SetPosition failures; the move stops at the first.
	OnError func(error)
}

// NewEaseOutAnimator returns an animator using MoveDuration and FrameInterval.
func NewEaseOutAnimator(d Dispatcher, onError func(error)) *EaseOutAnimator {
	return &EaseOutAnimator{
		Dispatcher: d,
		Duration:   MoveDuration,
		Frame:      FrameInterval,
		OnError:    onError,
	}
}

func (a *EaseOutAnimator) Animate(v Visual, from, to float64) func() {
	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() { close(stop) })
	}

	if a.Duration <= 0 || from == to {
		a.Dispatcher.Post(func() { a.apply(v, to, stop, cancel) })
		return cancel
	}

	go func() {
		ticker := time.NewTicker(a.Frame)
		defer ticker.Stop()
		start := time.Now()

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				progress := float64(now.Sub(start)) / float64(a.Duration)
				y := to
				if progress < 1 {
					y = from + (to-from)*CircleEaseOut(progress)
				}
				a.Dispatcher.Post(func() { a.apply(v, y, stop, cancel) })
				if progress >= 1 {
					return
				}
			}
		}
	}()
	return cancel
}

func (a *EaseOutAnimator) apply(v Visual, y float64, stop <-chan struct{}, cancel func()) {
	select {
	case <-stop:
		return
	default:
	}
	if err := v.SetPosition(math.Round(y)); err != nil {
		cancel()
		if a.OnError != nil {
			a.OnError(&QueryError{Op: "move " + v.Kind().String(), Err: err})
		}
	}
}
