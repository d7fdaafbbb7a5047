// Package audio provides microphone capture, speaker playback, Opus
// encoding/decoding and frame mixing.
package audio

import "time"

// Voice format shared by capture, codec and playback.
const (
	SampleRate    = 48000
	FrameSize     = 960 // samples per 20ms frame at 48kHz
	FrameDuration = 20 * time.Millisecond
)

// Capturer yields PCM frames from a microphone.
type Capturer interface {
	ReadFrame() ([]int16, error)
	Close() error
}

// Player writes PCM frames to a speaker.
type Player interface {
	WriteFrame(frame []int16) error
	Stop() error
}

// AudioEncoder compresses one PCM frame.
type AudioEncoder interface {
	Encode(pcm []int16) ([]byte, error)
}

// AudioDecoder expands one compressed frame, or conceals a lost one.
type AudioDecoder interface {
	Decode(data []byte) ([]int16, error)
	DecodePLC() ([]int16, error)
}

// DecoderFactory creates one decoder per remote stream.
type DecoderFactory interface {
	NewDecoder() (AudioDecoder, error)
}
