package realtime

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/NicolasHaas/radiolink/pkg/audio"
	"github.com/NicolasHaas/radiolink/pkg/client"
	"github.com/NicolasHaas/radiolink/pkg/metrics"
)

// sourceDepth bounds decoded frames queued per remote stream.
const sourceDepth = 10

// Speaker mixes every remote stream into one playback device. Its Sink
// method is the session's client.SinkFactory.
type Speaker struct {
	openPlayer func() (audio.Player, error)
	decoders   audio.DecoderFactory
	metrics    *metrics.Metrics

	mu      sync.Mutex
	player  audio.Player
	sources map[*source]struct{}
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

type source struct {
	identity string
	frames   chan []int16
}

// NewSpeaker plays through the named output device (empty for default).
// The device is opened on the first sink.
func NewSpeaker(outputDevice string, m *metrics.Metrics) *Speaker {
	return newSpeaker(func() (audio.Player, error) {
		p, err := audio.NewPlaybackDevice(outputDevice)
		if err != nil {
			return nil, err
		}
		if err := p.Start(); err != nil {
			return nil, err
		}
		return p, nil
	}, audio.OpusDecoders{}, m)
}

func newSpeaker(open func() (audio.Player, error), decoders audio.DecoderFactory, m *metrics.Metrics) *Speaker {
	return &Speaker{
		openPlayer: open,
		decoders:   decoders,
		metrics:    m,
		sources:    make(map[*source]struct{}),
		wake:       make(chan struct{}, 1),
	}
}

// Sink starts decoding track into the mix.
func (s *Speaker) Sink(identity string, track client.RemoteTrack) (client.Sink, error) {
	if err := s.ensureRunning(); err != nil {
		return nil, err
	}
	dec, err := s.decoders.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("realtime: decoder for %s: %w", identity, err)
	}

	src := &source{identity: identity, frames: make(chan []int16, sourceDepth)}
	s.mu.Lock()
	s.sources[src] = struct{}{}
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}

	rs := &remoteSink{speaker: s, src: src, track: track, dec: dec, jitter: NewJitterBuffer()}
	go rs.run()
	slog.Debug("remote audio attached", "identity", identity, "track", track.ID())
	return rs, nil
}

func (s *Speaker) ensureRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		return nil
	}
	p, err := s.openPlayer()
	if err != nil {
		return fmt.Errorf("realtime: open playback: %w", err)
	}
	s.player = p
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.mixLoop(p, s.stop, s.done)
	return nil
}

func (s *Speaker) remove(src *source) {
	s.mu.Lock()
	delete(s.sources, src)
	s.mu.Unlock()
}

// pull takes at most one frame from every source.
func (s *Speaker) pull() (frames [][]int16, active int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for src := range s.sources {
		select {
		case f := <-src.frames:
			frames = append(frames, f)
		default:
		}
	}
	return frames, len(s.sources)
}

// mixLoop writes one mixed frame per device period while any source is
// attached. The blocking device write paces the loop.
func (s *Speaker) mixLoop(p audio.Player, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		frames, active := s.pull()
		if active == 0 {
			select {
			case <-s.wake:
				continue
			case <-stop:
				return
			}
		}

		if err := p.WriteFrame(audio.MixFrames(frames, audio.FrameSize)); err != nil {
			slog.Debug("playback error", "err", err)
			continue
		}
		if len(frames) > 0 {
			s.metrics.FramePlayed()
		}
	}
}

// Close stops mixing and releases the device. Sinks created later reopen it.
func (s *Speaker) Close() error {
	s.mu.Lock()
	p, stop, done := s.player, s.stop, s.done
	s.player = nil
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	close(stop)
	<-done
	return p.Stop()
}

// remoteSink decodes one remote track into its source queue.
type remoteSink struct {
	speaker *Speaker
	src     *source
	track   client.RemoteTrack
	dec     audio.AudioDecoder
	jitter  *JitterBuffer
	closed  atomic.Bool
}

func (r *remoteSink) run() {
	defer r.speaker.remove(r.src)
	for {
		payload, seq, err := r.track.ReadPacket()
		if err != nil || r.closed.Load() {
			if err != nil {
				slog.Debug("remote track ended", "identity", r.src.identity, "err", err)
			}
			return
		}
		r.jitter.Push(seq, payload)
		r.drain()
	}
}

func (r *remoteSink) drain() {
	for {
		data, _, ok := r.jitter.Pop()
		if !ok {
			return
		}

		var pcm []int16
		var err error
		if data == nil {
			pcm, err = r.dec.DecodePLC()
		} else {
			pcm, err = r.dec.Decode(data)
		}
		if err != nil {
			slog.Debug("decode error", "identity", r.src.identity, "err", err)
			continue
		}

		select {
		case r.src.frames <- pcm:
		default:
			// Mixer is behind; drop rather than grow latency.
		}
	}
}

// Close detaches the stream from the mix. The reader goroutine exits when
// the track delivers its next packet or ends.
func (r *remoteSink) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.speaker.remove(r.src)
	return nil
}
