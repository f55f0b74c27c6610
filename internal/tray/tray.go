// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

const noParent = -1

// MenuItem represents a menu item
type MenuItem struct {
	ID        int
	Title     string
	Parent    int
	Group     string
	Checkable bool
	Checked   bool
	Disabled  bool
	Callback  func()
	item      *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	title   string
	tooltip string

	mu      sync.Mutex
	items   []*MenuItem
	onReady func()
	onExit  func()
	readyCh chan struct{}
	quitCh  chan struct{}
}

// New creates a new system tray
func New(title, tooltip string) *Tray {
	t := &Tray{
		title:   title,
		tooltip: tooltip,
		items:   make([]*MenuItem, 0),
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}

	t.onReady = func() {
		t.mu.Lock()
		tooltip := t.tooltip
		t.mu.Unlock()
		systray.SetTitle(t.title)
		systray.SetTooltip(tooltip)
		systray.SetIcon(getIcon())
		close(t.readyCh)
	}

	t.onExit = func() {
		close(t.quitCh)
	}

	return t
}

func (t *Tray) add(mi *MenuItem) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi.ID = len(t.items)
	t.items = append(t.items, mi)
	return mi.ID
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	return t.add(&MenuItem{Title: title, Parent: noParent, Callback: callback})
}

// AddLabel adds a disabled informational item.
func (t *Tray) AddLabel(title string) int {
	return t.add(&MenuItem{Title: title, Parent: noParent, Disabled: true})
}

// AddCheckbox adds a checkable item. The callback decides the new state via
// SetItemChecked.
func (t *Tray) AddCheckbox(title string, checked bool, callback func()) int {
	return t.add(&MenuItem{Title: title, Parent: noParent, Checkable: true, Checked: checked, Callback: callback})
}

// AddSubMenu adds an item that only holds children.
func (t *Tray) AddSubMenu(title string) int {
	return t.add(&MenuItem{Title: title, Parent: noParent})
}

// AddRadioItem adds a checkable child of parent. At most one item of a group
// is checked; see Select.
func (t *Tray) AddRadioItem(parent int, group, title string, checked bool, callback func()) int {
	return t.add(&MenuItem{
		Title:     title,
		Parent:    parent,
		Group:     group,
		Checkable: true,
		Checked:   checked,
		Callback:  callback,
	})
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

// SetItemChecked sets the checked state of a menu item
func (t *Tray) SetItemChecked(id int, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setChecked(id, checked)
}

func (t *Tray) setChecked(id int, checked bool) {
	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return
	}
	mi := t.items[id]
	mi.Checked = checked
	if mi.item == nil {
		return
	}
	if checked {
		mi.item.Check()
	} else {
		mi.item.Uncheck()
	}
}

// Select checks id and unchecks the other members of its group.
func (t *Tray) Select(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return
	}
	group := t.items[id].Group
	for _, mi := range t.items {
		if mi != nil && mi.Group != "" && mi.Group == group {
			t.setChecked(mi.ID, mi.ID == id)
		}
	}
}

// Checked reports the checked state of id.
func (t *Tray) Checked(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return false
	}
	return t.items[id].Checked
}

// SetTooltip replaces the tooltip. It is shown at once if the tray is up.
func (t *Tray) SetTooltip(tooltip string) {
	t.mu.Lock()
	t.tooltip = tooltip
	t.mu.Unlock()

	select {
	case <-t.readyCh:
		systray.SetTooltip(tooltip)
	default:
	}
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.onExit)
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	t.onReady()

	// Wait for ready signal
	<-t.readyCh

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, menuItem := range t.items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}
		menuItem.item = t.create(menuItem)
		if menuItem.Disabled {
			menuItem.item.Disable()
		}

		// Handle clicks in goroutine
		if menuItem.Callback != nil {
			go func(mi *MenuItem) {
				for {
					select {
					case <-mi.item.ClickedCh:
						mi.Callback()
					case <-t.quitCh:
						return
					}
				}
			}(menuItem)
		}
	}
}

func (t *Tray) create(mi *MenuItem) *systray.MenuItem {
	if mi.Parent == noParent {
		if mi.Checkable {
			return systray.AddMenuItemCheckbox(mi.Title, "", mi.Checked)
		}
		return systray.AddMenuItem(mi.Title, "")
	}

	parent := t.items[mi.Parent].item
	if mi.Checkable {
		return parent.AddSubMenuItemCheckbox(mi.Title, "", mi.Checked)
	}
	return parent.AddSubMenuItem(mi.Title, "")
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// getIcon returns a placeholder icon (valid 16x16 ICO)
func getIcon() []byte {
	icon := make([]byte, 1118)
	// ICO Header
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Icon Directory
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x48, 0x04, 0x00, 0x00, // 1024 pixels + 40 header + 32 mask
		0x16, 0x00, 0x00, 0x00, // Offset
	})
	// DIB Header
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00, // Size
		0x10, 0x00, 0x00, 0x00, // Width
		0x20, 0x00, 0x00, 0x00, // Height (16 * 2 for icon)
		0x01, 0x00, // Planes
		0x20, 0x00, // BPP
		0x00, 0x00, 0x00, 0x00, // Compression
		0x00, 0x04, 0x00, 0x00, // Image Size
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	})
	// Pixels: an opaque key-cap outline so the icon is visible on dark and
	// light taskbars. Rows are stored bottom-up in BGRA.
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			edge := y == 3 || y == 12 || x == 1 || x == 14
			inside := y >= 3 && y <= 12 && x >= 1 && x <= 14
			key := y >= 6 && y <= 9 && x%3 == 0 && x > 1 && x < 14
			if !inside || !(edge || key) {
				continue
			}
			off := 62 + (y*16+x)*4
			copy(icon[off:off+4], []byte{0xF0, 0xF0, 0xF0, 0xFF})
		}
	}
	return icon
}
