// Package realtime connects sessions to a LiveKit media server: it joins
// rooms with a join token, publishes the microphone and plays remote
// participants through one mixed speaker.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/NicolasHaas/radiolink/pkg/audio"
	"github.com/NicolasHaas/radiolink/pkg/client"
	"github.com/NicolasHaas/radiolink/pkg/metrics"
	"github.com/NicolasHaas/radiolink/pkg/model"
)

// Transport is the LiveKit client.Transport.
type Transport struct {
	inputDevice string
	metrics     *metrics.Metrics

	// openMic allows platform-specific or headless audio backends.
	openMic func(device string) (audio.Capturer, audio.AudioEncoder, error)
}

// NewTransport publishes the named input device (empty for default).
func NewTransport(inputDevice string, m *metrics.Metrics) *Transport {
	return &Transport{inputDevice: inputDevice, metrics: m, openMic: openPortAudioMic}
}

// WithoutMicrophone returns a transport that joins listen-only.
func WithoutMicrophone(m *metrics.Metrics) *Transport {
	return &Transport{metrics: m}
}

func openPortAudioMic(device string) (audio.Capturer, audio.AudioEncoder, error) {
	capture, err := audio.NewCaptureDevice(device)
	if err != nil {
		return nil, nil, fmt.Errorf("capture device: %w", err)
	}
	if err := capture.Start(); err != nil {
		return nil, nil, fmt.Errorf("start capture: %w", err)
	}
	encoder, err := audio.NewEncoder()
	if err != nil {
		_ = capture.Close()
		return nil, nil, fmt.Errorf("encoder: %w", err)
	}
	return capture, encoder, nil
}

// Join connects to url with token. Remote events are forwarded to h.
func (t *Transport) Join(ctx context.Context, url, token string, h client.RoomHandler) (client.Room, error) {
	cb := &lksdk.RoomCallback{
		OnDisconnected: func() {
			h.OnDisconnected(client.ReasonConnectionLost)
		},
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			h.OnParticipantJoined(participantOf(rp))
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			h.OnParticipantLeft(rp.Identity())
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				if track.Kind() != webrtc.RTPCodecTypeAudio {
					return
				}
				h.OnTrackPublished(rp.Identity(), &remoteTrack{sid: pub.SID(), track: track})
			},
			OnTrackUnsubscribed: func(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				h.OnTrackUnpublished(rp.Identity(), pub.SID())
			},
			OnTrackUnpublished: func(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				h.OnTrackUnpublished(rp.Identity(), pub.SID())
			},
		},
	}

	type result struct {
		room *lksdk.Room
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		room, err := lksdk.ConnectToRoomWithToken(url, token, cb)
		ch <- result{room, err}
	}()

	var room *lksdk.Room
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("realtime: join: %w", r.err)
		}
		room = r.room
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.room != nil {
				r.room.Disconnect()
			}
		}()
		return nil, fmt.Errorf("realtime: join: %w", ctx.Err())
	}

	for _, rp := range room.GetParticipants() {
		h.OnParticipantJoined(participantOf(rp))
	}

	lr := &liveRoom{room: room}
	if t.openMic != nil {
		if err := lr.publishMic(t); err != nil {
			slog.Error("microphone unavailable (continuing without audio)", "err", err)
		}
	}
	slog.Info("joined room", "room", room.Name())
	return lr, nil
}

func participantOf(rp *lksdk.RemoteParticipant) model.Participant {
	return model.Participant{Identity: rp.Identity(), Name: rp.Name()}
}

// liveRoom is an open LiveKit room.
type liveRoom struct {
	room *lksdk.Room

	mu     sync.Mutex
	mic    *micPublication
	pump   *micPump
	closed bool
}

func (r *liveRoom) publishMic(t *Transport) error {
	capture, encoder, err := t.openMic(t.inputDevice)
	if err != nil {
		return err
	}

	track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: audio.SampleRate,
		Channels:  2,
	})
	if err != nil {
		_ = capture.Close()
		return fmt.Errorf("local track: %w", err)
	}
	pub, err := r.room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{Name: "microphone"})
	if err != nil {
		_ = capture.Close()
		return fmt.Errorf("publish microphone: %w", err)
	}

	mic := newMicPublication(pub)
	pump := newMicPump(capture, encoder, func(data []byte) error {
		return track.WriteSample(media.Sample{Data: data, Duration: audio.FrameDuration}, nil)
	}, mic.isMuted, t.metrics)
	go pump.run()

	r.mu.Lock()
	r.mic = mic
	r.pump = pump
	r.mu.Unlock()
	return nil
}

// Microphone returns the published microphone, or nil.
func (r *liveRoom) Microphone() client.LocalPublication {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mic == nil {
		return nil
	}
	return r.mic
}

// Close stops the microphone and leaves the room.
func (r *liveRoom) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pump := r.pump
	r.mu.Unlock()

	if pump != nil {
		pump.stop()
	}
	r.room.Disconnect()
	return nil
}

// remoteTrack adapts a subscribed WebRTC track.
type remoteTrack struct {
	sid   string
	track *webrtc.TrackRemote
}

func (t *remoteTrack) ID() string { return t.sid }

func (t *remoteTrack) ReadPacket() ([]byte, uint16, error) {
	pkt, _, err := t.track.ReadRTP()
	if err != nil {
		return nil, 0, err
	}
	return pkt.Payload, pkt.SequenceNumber, nil
}

// Compile-time checks.
var (
	_ client.Transport        = (*Transport)(nil)
	_ client.Room             = (*liveRoom)(nil)
	_ client.LocalPublication = (*micPublication)(nil)
	_ client.RemoteTrack      = (*remoteTrack)(nil)
)
