package audio

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// ErrStopped is returned by reads and writes on a stopped device.
var ErrStopped = errors.New("audio: device stopped")

var (
	preInitOnce sync.Once
	preInitDone = make(chan struct{})
	preInitErr  error
)

// PreInitAudio starts PortAudio initialization in the background.
// Call this early (e.g. at app startup) so the slow Windows device
// enumeration happens while the user dials a frequency.
// Device constructors wait for it to finish.
func PreInitAudio() {
	preInitOnce.Do(func() {
		go func() {
			slog.Debug("pre-initializing PortAudio...")
			if err := portaudio.Initialize(); err != nil {
				preInitErr = err
				slog.Error("pre-init portaudio failed", "err", err)
			}
			slog.Debug("PortAudio pre-init complete")
			close(preInitDone)
		}()
	})
}

// WaitPreInit blocks until PreInitAudio completes and reports its result.
// If PreInitAudio was never called, it triggers it now.
func WaitPreInit() error {
	PreInitAudio()
	<-preInitDone
	return preInitErr
}

// Shutdown releases PortAudio. Call once at process exit.
func Shutdown() {
	select {
	case <-preInitDone:
		if preInitErr == nil {
			_ = portaudio.Terminate()
		}
	default:
	}
}

// DeviceEntry holds basic info about an audio device.
type DeviceEntry struct {
	Name       string
	MaxInputs  int
	MaxOutputs int
	IsDefault  bool
}

// ListInputDevices returns all available audio input devices.
func ListInputDevices() ([]DeviceEntry, error) {
	return listDevices(func(d *portaudio.DeviceInfo) bool { return d.MaxInputChannels > 0 }, portaudio.DefaultInputDevice)
}

// ListOutputDevices returns all available audio output devices.
func ListOutputDevices() ([]DeviceEntry, error) {
	return listDevices(func(d *portaudio.DeviceInfo) bool { return d.MaxOutputChannels > 0 }, portaudio.DefaultOutputDevice)
}

func listDevices(keep func(*portaudio.DeviceInfo) bool, defaultFn func() (*portaudio.DeviceInfo, error)) ([]DeviceEntry, error) {
	if err := WaitPreInit(); err != nil {
		return nil, err
	}

	def, _ := defaultFn()
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var result []DeviceEntry
	for _, d := range devices {
		if !keep(d) {
			continue
		}
		result = append(result, DeviceEntry{
			Name:       d.Name,
			MaxInputs:  d.MaxInputChannels,
			MaxOutputs: d.MaxOutputChannels,
			IsDefault:  def != nil && d.Name == def.Name,
		})
	}
	return result, nil
}

// FindDevice returns the device matching name, or nil.
func FindDevice(name string) *portaudio.DeviceInfo {
	if name == "" {
		return nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil
	}
	for _, d := range devices {
		if d.Name == name {
			return d
		}
	}
	return nil
}
