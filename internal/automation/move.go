package automation

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tabtip/internal/geometry"
)

// moveBinding is the move state of one root visual. offset is the
// translation the hub last asked for; element roots animate from it.
type moveBinding struct {
	visual Visual
	offset float64
	cancel func()
}

// binding returns the binding for v, creating it on first use.
func (h *Hub) binding(v Visual) *moveBinding {
	if b, ok := h.bindings[v]; ok {
		return b
	}
	b := &moveBinding{visual: v}
	h.bindings[v] = b
	if n, ok := v.(StateNotifier); ok {
		n.OnRestored(func() {
			h.dispatcher.Post(func() {
				h.guard("reposition on restore", func() error { return h.refit(v) })
			})
		})
	}
	return b
}

// bringIntoView moves the root of el so el sits inside the work area left
// over by the open keyboard. A window that fits above the keyboard is moved
// as a whole.
func (h *Hub) bringIntoView(el Element) error {
	root := el.Root()
	if root == nil {
		return nil
	}

	workArea, err := h.geometry.WorkAreaOpened(root.Window())
	if err != nil {
		return fmt.Errorf("work area: %w", err)
	}
	target, err := el.Bounds()
	if err != nil {
		return fmt.Errorf("element bounds: %w", err)
	}
	if root.Kind() == VisualWindow {
		win, err := root.Bounds()
		if err != nil {
			return fmt.Errorf("window bounds: %w", err)
		}
		if win.Height() <= workArea.Height() {
			target = win
		}
	}

	dy := geometry.VerticalOffsetToFit(target, workArea)
	h.logger.Debug("bring into view",
		zap.Stringer("target", target),
		zap.Stringer("workArea", workArea),
		zap.Float64("offset", dy))
	return h.moveBy(root, dy)
}

// restoreAll returns every moved root to where it belongs with the keyboard
// closed. Dead windows are snapped to zero and forgotten.
func (h *Hub) restoreAll() error {
	var errs []error
	for v, b := range h.bindings {
		if !v.Alive() {
			if b.cancel != nil {
				b.cancel()
			}
			b.offset = 0
			delete(h.bindings, v)
			h.logger.Debug("dropped binding of destroyed root", zap.Stringer("kind", v.Kind()))
			continue
		}
		if err := h.refit(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// refit fits a window into the closed work area, or puts an element root
// back at zero translation.
func (h *Hub) refit(v Visual) error {
	if v.Kind() != VisualWindow {
		return h.moveTo(v, 0)
	}

	workArea, err := h.geometry.WorkAreaClosed(v.Window())
	if err != nil {
		return fmt.Errorf("work area: %w", err)
	}
	bounds, err := v.Bounds()
	if err != nil {
		return fmt.Errorf("window bounds: %w", err)
	}
	return h.moveBy(v, geometry.VerticalOffsetToFit(bounds, workArea))
}

func (h *Hub) moveBy(v Visual, dy float64) error {
	if dy == 0 {
		return nil
	}
	b := h.binding(v)
	from, err := h.origin(b)
	if err != nil {
		return err
	}
	b.offset = from + dy
	h.animate(b, from, b.offset)
	return nil
}

// moveTo animates v to y. An element root already headed for y keeps its
// running animation.
func (h *Hub) moveTo(v Visual, y float64) error {
	b := h.binding(v)
	from, err := h.origin(b)
	if err != nil {
		return err
	}
	if from == y {
		return nil
	}
	b.offset = y
	h.animate(b, from, y)
	return nil
}

// origin is where the next move of b starts. Windows start where they are,
// since the user may have dragged them. Element roots start from the last
// requested translation.
func (h *Hub) origin(b *moveBinding) (float64, error) {
	if b.visual.Kind() != VisualWindow {
		return b.offset, nil
	}
	y, err := b.visual.Position()
	if err != nil {
		return 0, fmt.Errorf("%s position: %w", b.visual.Kind(), err)
	}
	return y, nil
}

func (h *Hub) animate(b *moveBinding, from, to float64) {
	if b.cancel != nil {
		b.cancel()
	}
	b.cancel = h.animator.Animate(b.visual, from, to)
}
