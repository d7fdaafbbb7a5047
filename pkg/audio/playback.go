package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PlaybackDevice plays PCM audio to an output device.
type PlaybackDevice struct {
	stream     *portaudio.Stream
	sampleRate float64
	frameSize  int
	buffer     []int16
	deviceName string // empty = default
	mu         sync.Mutex
	running    bool
}

// NewPlaybackDevice creates a mono speaker output at the voice format.
// deviceName may be empty to use the system default.
func NewPlaybackDevice(deviceName string) (*PlaybackDevice, error) {
	if err := WaitPreInit(); err != nil {
		return nil, err
	}
	return &PlaybackDevice{
		sampleRate: SampleRate,
		frameSize:  FrameSize,
		buffer:     make([]int16, FrameSize),
		deviceName: deviceName,
	}, nil
}

// Start begins audio playback.
func (p *PlaybackDevice) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	output := FindDevice(p.deviceName)
	if output == nil {
		if p.deviceName != "" {
			slog.Warn("output device not found, using default", "device", p.deviceName)
		}
		var err error
		output, err = portaudio.DefaultOutputDevice()
		if err != nil {
			return fmt.Errorf("audio: no output device: %w", err)
		}
	}

	params := portaudio.LowLatencyParameters(nil, output)
	params.Output.Channels = 1
	params.Input.Device = nil
	params.Input.Channels = 0
	params.SampleRate = p.sampleRate
	params.FramesPerBuffer = p.frameSize

	stream, err := portaudio.OpenStream(params, p.buffer)
	if err != nil {
		return fmt.Errorf("audio: open playback stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("audio: start playback: %w", err)
	}

	p.stream = stream
	p.running = true
	slog.Debug("audio playback started", "device", output.Name, "rate", p.sampleRate)
	return nil
}

// WriteFrame writes one frame to the output, blocking until the device
// accepts it. Short frames are padded with silence.
func (p *PlaybackDevice) WriteFrame(frame []int16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return ErrStopped
	}
	if len(frame) > len(p.buffer) {
		return fmt.Errorf("audio: frame size mismatch: got %d, want %d", len(frame), len(p.buffer))
	}
	n := copy(p.buffer, frame)
	clear(p.buffer[n:])
	if err := p.stream.Write(); err != nil {
		return fmt.Errorf("audio: write frame: %w", err)
	}
	return nil
}

// Stop stops audio playback.
func (p *PlaybackDevice) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false

	if p.stream != nil {
		_ = p.stream.Stop()
		_ = p.stream.Close()
	}
	return nil
}

// MixFrames sums frames sample by sample into one frame of frameSize,
// clamping to the int16 range. Every remote participant plays at full
// volume.
func MixFrames(frames [][]int16, frameSize int) []int16 {
	if len(frames) == 0 {
		return make([]int16, frameSize)
	}
	if len(frames) == 1 && len(frames[0]) == frameSize {
		return frames[0]
	}

	mixed := make([]int16, frameSize)
	for i := 0; i < frameSize; i++ {
		var sum int32
		for _, frame := range frames {
			if i < len(frame) {
				sum += int32(frame[i])
			}
		}
		// Clamp to int16 range
		if sum > 32767 {
			sum = 32767
		} else if sum < -32768 {
			sum = -32768
		}
		mixed[i] = int16(sum) //nolint:gosec // sum is clamped to int16 range above
	}
	return mixed
}
