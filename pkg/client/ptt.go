package client

import (
	"log/slog"
	"sync"

	"github.com/NicolasHaas/radiolink/pkg/metrics"
)

// EventType is an input event the push-to-talk control reacts to.
type EventType int

const (
	PointerDown EventType = iota
	PointerUp
	PointerLeave
	TouchStart
	TouchEnd
	TouchCancel
	KeyDown
	KeyUp
	FocusLost
)

// Event is one input event. Key is set for KeyDown and KeyUp and uses
// Fyne key names ("Space", "Return", "KP_Enter").
type Event struct {
	Type EventType
	Key  string
}

// DefaultTalkKeys are the keys that hold the transmitter open when the
// push-to-talk control has focus.
var DefaultTalkKeys = []string{"Space", "Return", "KP_Enter"}

// Gate mutes and unmutes the local microphone publication. It is the only
// writer of the publication's mute state.
type Gate struct {
	mu           sync.Mutex
	pub          LocalPublication
	transmitting bool
	keys         map[string]bool

	metrics  *metrics.Metrics
	onChange func(transmitting bool)
}

// NewGate returns a gate with no publication attached. onChange may be nil.
func NewGate(m *metrics.Metrics, onChange func(transmitting bool)) *Gate {
	g := &Gate{metrics: m, onChange: onChange}
	g.SetKeys(DefaultTalkKeys...)
	return g
}

// SetKeys replaces the set of talk keys.
func (g *Gate) SetKeys(keys ...string) {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = true
		}
	}
	g.mu.Lock()
	g.keys = set
	g.mu.Unlock()
}

// AddKey adds one talk key, such as a configured global hotkey.
func (g *Gate) AddKey(key string) {
	if key == "" {
		return
	}
	g.mu.Lock()
	g.keys[key] = true
	g.mu.Unlock()
}

// Attach mutes a freshly opened session's publication and then binds the
// gate to it. The gate stays disabled until the mute returns, and a nil pub
// leaves it disabled.
func (g *Gate) Attach(pub LocalPublication) {
	if pub != nil {
		if err := pub.SetMuted(true); err != nil {
			slog.Error("mute microphone on open", "err", err)
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pub = pub
	g.transmitting = false
	g.metrics.SetTransmitting(false)
}

// Detach unbinds the gate when the session closes.
func (g *Gate) Detach() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pub = nil
	g.transmitting = false
	g.metrics.SetTransmitting(false)
}

// release detaches the gate only if pub is still the attached publication.
func (g *Gate) release(pub LocalPublication) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pub != pub {
		return
	}
	g.pub = nil
	g.transmitting = false
	g.metrics.SetTransmitting(false)
}

// Enabled reports whether a publication is attached.
func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pub != nil
}

// Transmitting reports whether the microphone is unmuted.
func (g *Gate) Transmitting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.transmitting
}

// Activate unmutes the microphone. It is a no-op without a publication.
func (g *Gate) Activate() {
	g.mu.Lock()
	if g.pub == nil || g.transmitting {
		g.mu.Unlock()
		return
	}
	if err := g.pub.SetMuted(false); err != nil {
		slog.Error("unmute microphone", "err", err)
		if err := g.pub.SetMuted(true); err != nil {
			slog.Debug("re-mute after failed unmute", "err", err)
		}
		g.mu.Unlock()
		return
	}
	g.transmitting = true
	g.metrics.SetTransmitting(true)
	g.mu.Unlock()

	slog.Debug("ptt on")
	g.notify(true)
}

// Deactivate mutes the microphone.
func (g *Gate) Deactivate() {
	g.mu.Lock()
	if !g.transmitting {
		g.mu.Unlock()
		return
	}
	g.transmitting = false
	g.metrics.SetTransmitting(false)
	if g.pub != nil {
		if err := g.pub.SetMuted(true); err != nil {
			slog.Error("mute microphone", "err", err)
		}
	}
	g.mu.Unlock()

	slog.Debug("ptt off")
	g.notify(false)
}

// Handle maps an input event onto Activate or Deactivate. Leaving the
// control, cancelling a touch and losing focus all release.
func (g *Gate) Handle(ev Event) {
	switch ev.Type {
	case PointerDown, TouchStart:
		g.Activate()
	case PointerUp, PointerLeave, TouchEnd, TouchCancel, FocusLost:
		g.Deactivate()
	case KeyDown:
		if g.isTalkKey(ev.Key) {
			g.Activate()
		}
	case KeyUp:
		if g.isTalkKey(ev.Key) {
			g.Deactivate()
		}
	}
}

func (g *Gate) isTalkKey(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.keys[key]
}

func (g *Gate) notify(on bool) {
	if g.onChange != nil {
		g.onChange(on)
	}
}
