//go:build windows

package client

import (
	"sync"
	"syscall"
	"time"
)

var (
	user32               = syscall.NewLazyDLL("user32.dll")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
)

var vkCodes = map[string]int{
	"F1": 0x70, "F2": 0x71, "F3": 0x72, "F4": 0x73,
	"F5": 0x74, "F6": 0x75, "F7": 0x76, "F8": 0x77,
	"F9": 0x78, "F10": 0x79, "F11": 0x7A, "F12": 0x7B,
	"Pause": 0x13, "CapsLock": 0x14, "Insert": 0x2D, "ScrollLock": 0x91,
}

// KeyNameToVK converts a key name to a Windows virtual key code.
func KeyNameToVK(name string) int {
	if code, ok := vkCodes[name]; ok {
		return code
	}
	return 0
}

// GlobalHotkeys polls a push-to-talk key on Windows using GetAsyncKeyState
// and reports KeyDown/KeyUp events while the window is unfocused.
type GlobalHotkeys struct {
	OnEvent func(Event)
	key     string
	vk      int
	mu      sync.Mutex
	stopCh  chan struct{}
	running bool
}

// NewGlobalHotkeys creates a new GlobalHotkeys instance.
func NewGlobalHotkeys() *GlobalHotkeys {
	return &GlobalHotkeys{}
}

// SetKey updates the push-to-talk key binding.
func (g *GlobalHotkeys) SetKey(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.key = name
	g.vk = KeyNameToVK(name)
}

func isKeyDown(vk int) bool {
	ret, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return ret&0x8000 != 0
}

// Start begins polling in a background goroutine.
func (g *GlobalHotkeys) Start() {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	g.running = true
	stop := make(chan struct{})
	g.stopCh = stop
	g.mu.Unlock()

	go func() {
		var wasDown bool
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				if wasDown {
					g.emit(KeyUp)
				}
				return
			case <-ticker.C:
				g.mu.Lock()
				vk := g.vk
				g.mu.Unlock()
				if vk == 0 {
					continue
				}

				down := isKeyDown(vk)
				switch {
				case down && !wasDown:
					g.emit(KeyDown)
				case !down && wasDown:
					g.emit(KeyUp)
				}
				wasDown = down
			}
		}
	}()
}

func (g *GlobalHotkeys) emit(t EventType) {
	g.mu.Lock()
	key := g.key
	g.mu.Unlock()
	if g.OnEvent != nil {
		g.OnEvent(Event{Type: t, Key: key})
	}
}

// Stop terminates the polling loop, releasing a held key.
func (g *GlobalHotkeys) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		close(g.stopCh)
		g.running = false
	}
}
