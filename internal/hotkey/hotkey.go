// Package hotkey provides a global key combination that toggles the touch
// keyboard.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrInvalidHotkey is returned for combinations with unknown or empty keys.
	ErrInvalidHotkey = errors.New("invalid hotkey")

	// ErrUnsupportedPlatform is returned by Run off Windows.
	ErrUnsupportedPlatform = errors.New("hotkey: global hooks not supported on this platform")
)

// Manager matches global key state against registered combinations.
type Manager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	hotkeys []*registeredHotkey
	pressed map[string]bool // keys currently held down
}

type registeredHotkey struct {
	parts    []string // e.g. ["CTRL", "ALT", "K"]
	combo    string
	callback func()
}

// NewManager creates a hotkey manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:  logger.Named("hotkey"),
		pressed: make(map[string]bool),
	}
}

// Parse normalizes a combination such as "Ctrl+Alt+K".
func Parse(combo string) ([]string, error) {
	if strings.TrimSpace(combo) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidHotkey)
	}
	parts := strings.Split(strings.ToUpper(combo), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if alias, ok := aliases[p]; ok {
			p = alias
		}
		if !knownKeys[p] {
			return nil, fmt.Errorf("%w: unknown key %q in %q", ErrInvalidHotkey, p, combo)
		}
		parts[i] = p
	}
	return parts, nil
}

// Register adds a combination. An empty combination is ignored.
func (m *Manager) Register(combo string, callback func()) error {
	if combo == "" {
		return nil
	}
	parts, err := Parse(combo)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		combo:    combo,
		callback: callback,
	})
	return nil
}

// Clear removes all registered hotkeys.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// UpdateState records a key transition. A combination fires when the key
// completing it goes down; auto-repeat while held does not fire again.
func (m *Manager) UpdateState(key string, isDown bool) {
	key = strings.ToUpper(key)

	m.mu.Lock()
	if !isDown {
		delete(m.pressed, key)
		m.mu.Unlock()
		return
	}
	if m.pressed[key] {
		m.mu.Unlock()
		return
	}
	m.pressed[key] = true
	m.mu.Unlock()

	m.checkMatches(key)
}

func (m *Manager) checkMatches(key string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, hk := range m.hotkeys {
		if len(hk.parts) != len(m.pressed) {
			continue
		}
		match, completes := true, false
		for _, part := range hk.parts {
			if !m.pressed[part] {
				match = false
				break
			}
			completes = completes || part == key
		}

		if match && completes {
			m.logger.Debug("hotkey triggered", zap.String("hotkey", hk.combo))
			go hk.callback()
		}
	}
}

var aliases = map[string]string{
	"CONTROL": "CTRL",
	"WIN":     "CMD",
	"WINDOWS": "CMD",
	"ESCAPE":  "ESC",
	"RETURN":  "ENTER",
}

var knownKeys = func() map[string]bool {
	keys := map[string]bool{}
	for _, k := range []string{
		"CTRL", "ALT", "SHIFT", "CMD", "SPACE", "ENTER", "ESC", "BACKSPACE",
		"TAB", "CAPSLOCK", "PAGEUP", "PAGEDOWN", "END", "HOME", "LEFT", "UP",
		"RIGHT", "DOWN", "PRINTSCREEN", "INSERT", "DELETE", "PAUSE", "SCROLLLOCK",
	} {
		keys[k] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		keys[string(c)] = true
	}
	for c := '0'; c <= '9'; c++ {
		keys[string(c)] = true
	}
	for i := 1; i <= 12; i++ {
		keys[fmt.Sprintf("F%d", i)] = true
	}
	return keys
}()
