// Package tray provides a system tray interface for the Drishti face
// recognition service.
package tray

import (
	"strconv"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle  func(enabled bool)
	onOpenUI  func()
	onQuit    func()
	enabled   bool
	lastName  string
	faceCount int
	mu        sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuLast   *systray.MenuItem
	menuFaces  *systray.MenuItem
}

// New creates a new Tray reflecting the given recognition state.
func New(enabled bool) *Tray {
	return &Tray{
		enabled: enabled,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpenUI sets the callback for the "Open Drishti" menu item.
func (t *Tray) OnOpenUI(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpenUI = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Drishti")
	systray.SetTooltip("Drishti Face Recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle face recognition")
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem(lastTitle(t.lastName), "Last recognised person")
	t.menuLast.Disable()
	t.menuFaces = systray.AddMenuItem(facesTitle(t.faceCount), "Registered faces")
	t.menuFaces.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Drishti...", "Open the web interface in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Drishti")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpenUI()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the enabled state and notifies the toggle callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleOpenUI() {
	t.mu.RLock()
	callback := t.onOpenUI
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastRecognised updates the last recognised person in the menu.
func (t *Tray) SetLastRecognised(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if name == t.lastName {
		return
	}
	t.lastName = name
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(name))
	}
}

// SetFaceCount updates the number of registered faces shown in the menu.
func (t *Tray) SetFaceCount(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.faceCount = n
	if t.menuFaces != nil {
		t.menuFaces.SetTitle(facesTitle(n))
	}
}

// LastRecognised returns the name most recently passed to SetLastRecognised.
func (t *Tray) LastRecognised() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastName
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Recognition on"
	}
	return "○ Recognition off"
}

func lastTitle(name string) string {
	if name == "" {
		return "Last seen: nobody"
	}
	return "Last seen: " + name
}

func facesTitle(n int) string {
	if n == 1 {
		return "1 registered face"
	}
	return strconv.Itoa(n) + " registered faces"
}
