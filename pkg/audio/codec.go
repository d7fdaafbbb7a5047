package audio

import (
	"fmt"

	"github.com/hraban/opus"
)

const (
	opusChannels = 1
	opusBitrate  = 32000 // narrow voice channel, radio quality
	maxPacket    = 1275  // largest Opus packet for one frame
)

// Encoder wraps an Opus encoder.
type Encoder struct {
	enc *opus.Encoder
	buf []byte // reusable output buffer
}

// NewEncoder creates an Opus encoder tuned for push-to-talk voice.
func NewEncoder() (*Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, opusChannels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("audio: new encoder: %w", err)
	}

	_ = enc.SetBitrate(opusBitrate)
	_ = enc.SetInBandFEC(true)    // Forward error correction
	_ = enc.SetPacketLossPerc(10) // Optimize FEC for up to 10% packet loss
	_ = enc.SetDTX(true)          // Discontinuous transmission (saves bandwidth on silence)

	return &Encoder{
		enc: enc,
		buf: make([]byte, maxPacket),
	}, nil
}

// Encode encodes a PCM frame to Opus. Returns the encoded bytes.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	n, err := e.enc.Encode(pcm, e.buf)
	if err != nil {
		return nil, fmt.Errorf("audio: encode: %w", err)
	}
	out := make([]byte, n)
	copy(out, e.buf[:n])
	return out, nil
}

// Decoder wraps an Opus decoder.
type Decoder struct {
	dec *opus.Decoder
}

// NewDecoder creates an Opus decoder for one remote stream.
func NewDecoder() (*Decoder, error) {
	dec, err := opus.NewDecoder(SampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("audio: new decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode decodes an Opus frame to PCM.
func (d *Decoder) Decode(opusData []byte) ([]int16, error) {
	pcm := make([]int16, FrameSize)
	n, err := d.dec.Decode(opusData, pcm)
	if err != nil {
		return nil, fmt.Errorf("audio: decode: %w", err)
	}
	return pcm[:n], nil
}

// DecodePLC performs Packet Loss Concealment (generates audio to fill a gap).
func (d *Decoder) DecodePLC() ([]int16, error) {
	pcm := make([]int16, FrameSize)
	n, err := d.dec.Decode(nil, pcm)
	if err != nil {
		return nil, fmt.Errorf("audio: decode plc: %w", err)
	}
	return pcm[:n], nil
}

// OpusDecoders creates Opus decoders. It is the default DecoderFactory.
type OpusDecoders struct{}

func (OpusDecoders) NewDecoder() (AudioDecoder, error) {
	return NewDecoder()
}

// Compile-time checks.
var (
	_ Capturer       = (*CaptureDevice)(nil)
	_ Player         = (*PlaybackDevice)(nil)
	_ AudioEncoder   = (*Encoder)(nil)
	_ AudioDecoder   = (*Decoder)(nil)
	_ DecoderFactory = OpusDecoders{}
)
