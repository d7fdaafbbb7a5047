package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/driver/mobile"
	"fyne.io/fyne/v2/widget"

	"github.com/NicolasHaas/radiolink/pkg/client"
)

// eventSink receives push-to-talk input. *client.Gate satisfies it.
type eventSink interface {
	Handle(client.Event)
}

// TalkButton holds the transmitter open while pressed. Mouse, touch and
// focused-key input are all forwarded to the gate; leaving the button or
// losing focus releases it.
type TalkButton struct {
	widget.Button
	gate eventSink
}

// NewTalkButton creates a hold-to-talk button driving gate.
func NewTalkButton(label string, gate eventSink) *TalkButton {
	btn := &TalkButton{gate: gate}
	btn.Text = label
	btn.Importance = widget.DangerImportance
	btn.ExtendBaseWidget(btn)
	return btn
}

func (b *TalkButton) send(t client.EventType, key string) {
	if b.gate == nil {
		return
	}
	// Releases are forwarded even while disabled.
	if b.Disabled() && isPress(t) {
		return
	}
	b.gate.Handle(client.Event{Type: t, Key: key})
}

func isPress(t client.EventType) bool {
	switch t {
	case client.PointerDown, client.TouchStart, client.KeyDown:
		return true
	}
	return false
}

// MouseDown starts transmitting.
func (b *TalkButton) MouseDown(*desktop.MouseEvent) { b.send(client.PointerDown, "") }

// MouseUp stops transmitting.
func (b *TalkButton) MouseUp(*desktop.MouseEvent) { b.send(client.PointerUp, "") }

// MouseOut stops transmitting when the pointer slides off while held.
func (b *TalkButton) MouseOut() {
	b.send(client.PointerLeave, "")
	b.Button.MouseOut()
}

// TouchDown starts transmitting.
func (b *TalkButton) TouchDown(*mobile.TouchEvent) { b.send(client.TouchStart, "") }

// TouchUp stops transmitting.
func (b *TalkButton) TouchUp(*mobile.TouchEvent) { b.send(client.TouchEnd, "") }

// TouchCancel stops transmitting.
func (b *TalkButton) TouchCancel(*mobile.TouchEvent) { b.send(client.TouchCancel, "") }

// KeyDown forwards focused key presses; the gate decides which keys talk.
func (b *TalkButton) KeyDown(ev *fyne.KeyEvent) { b.send(client.KeyDown, string(ev.Name)) }

// KeyUp forwards focused key releases.
func (b *TalkButton) KeyUp(ev *fyne.KeyEvent) { b.send(client.KeyUp, string(ev.Name)) }

// TypedKey is swallowed so Space and Return do not also tap the button.
func (b *TalkButton) TypedKey(*fyne.KeyEvent) {}

// FocusLost stops transmitting.
func (b *TalkButton) FocusLost() {
	b.send(client.FocusLost, "")
	b.Button.FocusLost()
}

// Tapped focuses the button so held keys reach it.
func (b *TalkButton) Tapped(*fyne.PointEvent) {
	if c := fyne.CurrentApp().Driver().CanvasForObject(b); c != nil {
		c.Focus(b)
	}
}
