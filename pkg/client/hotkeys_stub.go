//go:build !windows

package client

// GlobalHotkeys is a no-op on non-Windows platforms.
// Users can still hold the talk button in the UI.
type GlobalHotkeys struct {
	OnEvent func(Event)
}

// NewGlobalHotkeys creates a new GlobalHotkeys instance (no-op on non-Windows).
func NewGlobalHotkeys() *GlobalHotkeys {
	return &GlobalHotkeys{}
}

// SetKey is a no-op on non-Windows.
func (g *GlobalHotkeys) SetKey(name string) {}

// Start is a no-op on non-Windows.
func (g *GlobalHotkeys) Start() {}

// Stop is a no-op on non-Windows.
func (g *GlobalHotkeys) Stop() {}

// KeyNameToVK is a no-op on non-Windows.
func KeyNameToVK(name string) int { return 0 }
