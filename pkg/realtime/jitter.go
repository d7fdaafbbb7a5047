package realtime

import (
	"sync"
)

const (
	jitterBufSize  = 5  // frames (~100ms at 20ms/frame)
	maxJitterDelay = 10 // max frames to wait before considering packet lost
)

// JitterBuffer orders incoming RTP payloads by sequence number and reports
// gaps so the decoder can conceal them.
type JitterBuffer struct {
	mu      sync.Mutex
	frames  map[uint16][]byte
	nextSeq uint16
	ready   bool
}

// NewJitterBuffer creates a new jitter buffer.
func NewJitterBuffer() *JitterBuffer {
	return &JitterBuffer{
		frames: make(map[uint16][]byte),
	}
}

// Push adds a packet. Packets older than the playout point are dropped.
func (jb *JitterBuffer) Push(seq uint16, payload []byte) {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	if !jb.ready {
		jb.nextSeq = seq
		jb.ready = true
	}
	if seqBefore(seq, jb.nextSeq) {
		return
	}

	data := make([]byte, len(payload))
	copy(data, payload)
	jb.frames[seq] = data

	if len(jb.frames) > jitterBufSize*3 {
		jb.cleanup()
	}
}

// Pop returns the next payload in sequence order. A nil payload with ok
// set means the packet was lost and should be concealed.
func (jb *JitterBuffer) Pop() (payload []byte, seq uint16, ok bool) {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	if !jb.ready {
		return nil, 0, false
	}

	if frame, found := jb.frames[jb.nextSeq]; found {
		seq := jb.nextSeq
		delete(jb.frames, jb.nextSeq)
		jb.nextSeq++
		return frame, seq, true
	}

	// A later packet exists, so the current one is likely lost.
	for i := uint16(1); i <= maxJitterDelay; i++ {
		if _, found := jb.frames[jb.nextSeq+i]; found {
			seq := jb.nextSeq
			jb.nextSeq++
			return nil, seq, true
		}
	}

	return nil, 0, false
}

// Len returns the number of buffered payloads.
func (jb *JitterBuffer) Len() int {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	return len(jb.frames)
}

// Reset clears the jitter buffer.
func (jb *JitterBuffer) Reset() {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	jb.frames = make(map[uint16][]byte)
	jb.ready = false
}

func (jb *JitterBuffer) cleanup() {
	for seq := range jb.frames {
		if seqDiff(seq, jb.nextSeq) > jitterBufSize*3 {
			delete(jb.frames, seq)
		}
	}
	// Far-ahead packets after a long gap: resynchronise on the oldest one.
	if _, found := jb.frames[jb.nextSeq]; !found && len(jb.frames) > 0 {
		oldest, first := uint16(0), true
		for seq := range jb.frames {
			if first || seqBefore(seq, oldest) {
				oldest, first = seq, false
			}
		}
		jb.nextSeq = oldest
	}
}

// seqBefore reports whether a precedes b, handling uint16 wraparound.
func seqBefore(a, b uint16) bool {
	return int16(a-b) < 0 //nolint:gosec // wraparound is the point
}

// seqDiff computes the distance between two sequence numbers,
// handling uint16 wraparound.
func seqDiff(a, b uint16) uint16 {
	d := int16(a - b) //nolint:gosec // wraparound is the point
	if d < 0 {
		return uint16(-d) //nolint:gosec // d > math.MinInt16 here in practice
	}
	return uint16(d)
}
