package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// CaptureDevice captures PCM audio from an input device.
type CaptureDevice struct {
	stream     *portaudio.Stream
	sampleRate float64
	frameSize  int
	buffer     []int16
	deviceName string // empty = default
	mu         sync.Mutex
	running    bool
}

// NewCaptureDevice creates a mono microphone capture at the voice format.
// deviceName may be empty to use the system default.
func NewCaptureDevice(deviceName string) (*CaptureDevice, error) {
	if err := WaitPreInit(); err != nil {
		return nil, err
	}
	return &CaptureDevice{
		sampleRate: SampleRate,
		frameSize:  FrameSize,
		buffer:     make([]int16, FrameSize),
		deviceName: deviceName,
	}, nil
}

// Start opens the input stream. Call ReadFrame to get captured audio.
func (c *CaptureDevice) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	input := FindDevice(c.deviceName)
	if input == nil {
		if c.deviceName != "" {
			slog.Warn("input device not found, using default", "device", c.deviceName)
		}
		var err error
		input, err = portaudio.DefaultInputDevice()
		if err != nil {
			return fmt.Errorf("audio: no input device: %w", err)
		}
	}

	params := portaudio.LowLatencyParameters(input, nil)
	params.Input.Channels = 1
	params.Output.Device = nil
	params.Output.Channels = 0
	params.SampleRate = c.sampleRate
	params.FramesPerBuffer = c.frameSize

	stream, err := portaudio.OpenStream(params, c.buffer)
	if err != nil {
		return fmt.Errorf("audio: open capture stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("audio: start capture: %w", err)
	}

	c.stream = stream
	c.running = true
	slog.Debug("audio capture started", "device", input.Name, "rate", c.sampleRate)
	return nil
}

// ReadFrame blocks for one frame and returns a copy of it.
func (c *CaptureDevice) ReadFrame() ([]int16, error) {
	c.mu.Lock()
	stream := c.stream
	running := c.running
	c.mu.Unlock()
	if !running {
		return nil, ErrStopped
	}
	if err := stream.Read(); err != nil {
		return nil, fmt.Errorf("audio: read frame: %w", err)
	}
	frame := make([]int16, len(c.buffer))
	copy(frame, c.buffer)
	return frame, nil
}

// Stop stops audio capture.
func (c *CaptureDevice) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	if c.stream != nil {
		_ = c.stream.Stop()
		_ = c.stream.Close()
	}
	return nil
}

// Close stops the stream. PortAudio itself stays initialised until Shutdown.
func (c *CaptureDevice) Close() error {
	return c.Stop()
}
