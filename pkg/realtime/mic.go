package realtime

import (
	"log/slog"
	"sync/atomic"

	"github.com/NicolasHaas/radiolink/pkg/audio"
	"github.com/NicolasHaas/radiolink/pkg/metrics"
)

// muter is the publication-side mute switch.
type muter interface {
	SetMuted(muted bool)
}

// micPublication is the client.LocalPublication of a room. Muting flips
// the published track state and stops the pump from sending frames.
type micPublication struct {
	pub   muter
	muted atomic.Bool
}

func newMicPublication(pub muter) *micPublication {
	m := &micPublication{pub: pub}
	m.muted.Store(true)
	pub.SetMuted(true)
	return m
}

func (m *micPublication) SetMuted(muted bool) error {
	m.muted.Store(muted)
	m.pub.SetMuted(muted)
	return nil
}

func (m *micPublication) isMuted() bool { return m.muted.Load() }

// micPump reads the microphone, encodes and writes frames while unmuted.
type micPump struct {
	capture audio.Capturer
	encoder audio.AudioEncoder
	write   func(data []byte) error
	muted   func() bool
	metrics *metrics.Metrics
	done    chan struct{}
}

func newMicPump(c audio.Capturer, e audio.AudioEncoder, write func([]byte) error, muted func() bool, m *metrics.Metrics) *micPump {
	return &micPump{capture: c, encoder: e, write: write, muted: muted, metrics: m, done: make(chan struct{})}
}

func (p *micPump) run() {
	defer close(p.done)
	for {
		pcm, err := p.capture.ReadFrame()
		if err != nil {
			slog.Debug("capture stopped", "err", err)
			return
		}
		if p.muted() {
			continue
		}

		data, err := p.encoder.Encode(pcm)
		if err != nil {
			slog.Debug("encode error", "err", err)
			continue
		}
		if err := p.write(data); err != nil {
			slog.Debug("voice send error", "err", err)
			continue
		}
		p.metrics.FrameSent()
	}
}

// stop closes the microphone and waits for the pump to exit.
func (p *micPump) stop() {
	if err := p.capture.Close(); err != nil {
		slog.Debug("close capture", "err", err)
	}
	<-p.done
}
