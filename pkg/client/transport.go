package client

import (
	"context"

	"github.com/NicolasHaas/radiolink/pkg/model"
)

// DisconnectReason tells the engine why the realtime session ended.
type DisconnectReason int

const (
	ReasonUnknown DisconnectReason = iota
	ReasonClientInitiated
	ReasonServerShutdown
	ReasonConnectionLost
	ReasonAuthFailure // the media server refused the join token
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonClientInitiated:
		return "client initiated"
	case ReasonServerShutdown:
		return "server shutdown"
	case ReasonConnectionLost:
		return "connection lost"
	case ReasonAuthFailure:
		return "auth failure"
	default:
		return "unknown"
	}
}

// Transport opens realtime rooms. The LiveKit implementation lives in
// pkg/realtime; tests use an in-memory fake.
type Transport interface {
	// Join connects to the room the token grants. Events for the room are
	// delivered to h, possibly before Join returns.
	Join(ctx context.Context, url, token string, h RoomHandler) (Room, error)
}

// Room is an open realtime session.
type Room interface {
	// Microphone returns the local audio publication, or nil when no
	// microphone could be published.
	Microphone() LocalPublication
	// Close leaves the room. It is safe to call more than once.
	Close() error
}

// LocalPublication is the local microphone track.
type LocalPublication interface {
	SetMuted(muted bool) error
}

// RemoteTrack is an inbound audio publication of a remote participant.
type RemoteTrack interface {
	ID() string
	// ReadPacket blocks for the next encoded audio packet and its sequence number.
	ReadPacket() (payload []byte, seq uint16, err error)
}

// RoomHandler receives realtime events from a Room.
type RoomHandler interface {
	OnParticipantJoined(p model.Participant)
	OnParticipantLeft(identity string)
	OnTrackPublished(identity string, track RemoteTrack)
	OnTrackUnpublished(identity, trackID string)
	OnDisconnected(reason DisconnectReason)
}
