// Package client implements the radio session: connect and disconnect,
// push-to-talk, and the remote audio fan-out.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/NicolasHaas/radiolink/pkg/api"
	"github.com/NicolasHaas/radiolink/pkg/frequency"
	"github.com/NicolasHaas/radiolink/pkg/metrics"
	"github.com/NicolasHaas/radiolink/pkg/model"
)

// State represents the session state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// ErrAborted is returned by Connect when Disconnect was called while the
// attempt was still in flight.
var ErrAborted = errors.New("client: connect aborted")

// ErrDropped is wrapped by the ConnectError of an attempt whose room
// disconnected before the join completed.
var ErrDropped = errors.New("client: room disconnected while joining")

// TokenSource exchanges a frequency for a realtime join token.
// *api.Client satisfies it.
type TokenSource interface {
	RequestJoinToken(ctx context.Context, bearer string, frequency float64) (*api.JoinGrant, error)
}

// Credentials is the part of the credential guard the engine needs.
// *auth.Guard satisfies it.
type Credentials interface {
	Credential() (string, bool)
	Check() bool
	Invalidate()
}

// Config wires the engine to its collaborators. Dial, Sinks and Metrics
// are optional.
type Config struct {
	API            TokenSource
	Auth           Credentials
	Transport      Transport
	Dial           *frequency.Dial
	Sinks          SinkFactory
	Metrics        *metrics.Metrics
	RealtimeURL    string
	RequestTimeout time.Duration
}

// Status is a consistent snapshot of the session.
type Status struct {
	State        State
	Frequency    float64
	Room         string
	Token        string
	Transmitting bool
	PTTEnabled   bool
	Participants []model.Participant
	Error        string
}

// Engine owns the session lifecycle. It is the only creator and closer of
// realtime rooms.
type Engine struct {
	cfg  Config
	gate *Gate

	mu       sync.Mutex
	state    State
	gen      uint64 // bumped by every connect attempt and teardown
	freq     float64
	roomName string
	token    string
	room     Room
	fanout   *Fanout
	openedAt time.Time
	lastErr  string
	cancel   context.CancelFunc // aborts the in-flight attempt

	pubMu sync.Mutex

	// OnStatus receives every published status snapshot.
	OnStatus func(Status)
}

// NewEngine creates an idle engine.
func NewEngine(cfg Config) *Engine {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	e := &Engine{cfg: cfg, state: StateIdle}
	e.gate = NewGate(cfg.Metrics, func(bool) { e.publish() })
	return e
}

// PTT returns the push-to-talk gate of this engine.
func (e *Engine) PTT() *Gate { return e.gate }

// Connect exchanges display for a join token and opens the session. It
// returns once the session is open or the attempt has failed.
func (e *Engine) Connect(ctx context.Context, display string) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return ErrBusy
	}

	freq, err := frequency.Parse(display)
	if err != nil {
		e.lastErr = msgValidation
		e.mu.Unlock()
		e.cfg.Metrics.ConnectFailed(KindValidation.String())
		e.publish()
		return &ConnectError{Kind: KindValidation, Message: msgValidation, Err: err}
	}

	bearer, ok := e.cfg.Auth.Credential()
	if !ok || !e.cfg.Auth.Check() {
		e.lastErr = msgAuthExpired
		e.mu.Unlock()
		e.cfg.Auth.Invalidate()
		e.cfg.Metrics.ConnectFailed(KindAuthExpired.String())
		e.publish()
		return &ConnectError{Kind: KindAuthExpired, Message: msgAuthExpired}
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	e.gen++
	gen := e.gen
	e.state = StateConnecting
	e.freq = freq
	e.lastErr = ""
	e.cancel = cancel
	e.mu.Unlock()

	e.freeze(true)
	e.cfg.Metrics.ConnectAttempt()
	slog.Info("connecting", "frequency", freq)
	e.publish()

	reqCtx, reqCancel := context.WithTimeout(attemptCtx, e.cfg.RequestTimeout)
	start := time.Now()
	grant, err := e.cfg.API.RequestJoinToken(reqCtx, bearer, freq)
	reqCancel()
	e.cfg.Metrics.ObserveTokenRequest(time.Since(start))
	if err != nil {
		ce := classifyTokenError(err)
		if ce.Kind == KindAuthRejected && e.current(gen) {
			e.cfg.Auth.Invalidate()
		}
		return e.fail(gen, ce)
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		slog.Debug("token arrived after disconnect, dropping", "frequency", freq)
		return ErrAborted
	}
	e.token = grant.Token
	e.roomName = grant.Room
	e.mu.Unlock()

	fan := NewFanout(e.cfg.Sinks, e.cfg.Metrics, e.publish)
	h := &sessionHandler{e: e, gen: gen, fanout: fan}
	room, err := e.cfg.Transport.Join(attemptCtx, e.cfg.RealtimeURL, grant.Token, h)
	if err != nil {
		fan.Close()
		return e.fail(gen, &ConnectError{Kind: KindNetwork, Message: msgNetwork, Err: err})
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		slog.Debug("room joined after disconnect, closing", "frequency", freq)
		closeSession(fan, room)
		return ErrAborted
	}
	if h.dropped {
		reason := h.reason
		e.mu.Unlock()
		slog.Info("room dropped while joining", "frequency", freq, "reason", reason)
		closeSession(fan, room)
		if reason == ReasonAuthFailure {
			e.cfg.Auth.Invalidate()
			return e.fail(gen, &ConnectError{Kind: KindAuthExpired, Message: msgAuthExpired, Err: ErrDropped})
		}
		return e.fail(gen, &ConnectError{Kind: KindNetwork, Message: msgNetwork, Err: ErrDropped})
	}
	e.room = room
	e.fanout = fan
	e.state = StateOpen
	e.openedAt = time.Now()
	e.cancel = nil
	pub := room.Microphone()
	e.mu.Unlock()
	cancel()

	// Attach mutes and may block on the network, so it runs unlocked. A
	// teardown in between leaves the gate detached.
	e.gate.Attach(pub)
	if !e.current(gen) {
		e.gate.release(pub)
	}

	e.cfg.Metrics.SessionOpened()
	slog.Info("session open", "frequency", freq, "room", grant.Room)
	e.publish()
	return nil
}

// fail returns the attempt of generation gen to idle with ce as the
// visible error. A superseded attempt leaves the state alone.
func (e *Engine) fail(gen uint64, ce *ConnectError) error {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ErrAborted
	}
	e.gen++
	e.state = StateIdle
	e.token = ""
	e.roomName = ""
	e.lastErr = ce.Message
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.freeze(false)
	e.cfg.Metrics.ConnectFailed(ce.Kind.String())
	slog.Error("connect failed", "kind", ce.Kind, "err", ce.Message)
	e.publish()
	return ce
}

// current reports whether gen is still the live attempt or session.
func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.gen
}

func closeSession(fan *Fanout, room Room) {
	fan.Close()
	if err := room.Close(); err != nil {
		slog.Debug("close room", "err", err)
	}
}

func classifyTokenError(err error) *ConnectError {
	var se *api.StatusError
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return &ConnectError{Kind: KindAuthRejected, Message: msgAuthRejected, Err: err}
	case api.IsNetwork(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &ConnectError{Kind: KindNetwork, Message: msgNetwork, Err: err}
	case errors.As(err, &se) && se.Message != "":
		return &ConnectError{Kind: KindTokenRequest, Message: se.Message, Err: err}
	default:
		return &ConnectError{Kind: KindTokenRequest, Message: msgTokenFallback, Err: err}
	}
}

// Disconnect ends the session. It is a no-op while idle.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	switch e.state {
	case StateConnecting:
		e.gen++
		e.state = StateIdle
		e.token = ""
		e.roomName = ""
		cancel := e.cancel
		e.cancel = nil
		e.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		e.freeze(false)
		slog.Info("connect cancelled")
		e.publish()
	case StateOpen:
		gen := e.gen
		e.mu.Unlock()
		e.handleDisconnect(gen, ReasonClientInitiated)
	default:
		e.mu.Unlock()
	}
}

// Close disconnects; it exists so the engine can be deferred at shutdown.
func (e *Engine) Close() error {
	e.Disconnect()
	return nil
}

// handleDisconnect tears down the open session of generation gen. Every
// cleared field becomes visible in a single status update.
func (e *Engine) handleDisconnect(gen uint64, reason DisconnectReason) {
	e.mu.Lock()
	if gen != e.gen || e.state != StateOpen {
		e.mu.Unlock()
		return
	}
	authFailed := reason == ReasonAuthFailure
	e.gen++
	e.state = StateClosing
	room := e.room
	fan := e.fanout
	openedAt := e.openedAt
	e.room = nil
	e.fanout = nil
	e.token = ""
	e.roomName = ""
	e.openedAt = time.Time{}
	if authFailed {
		e.lastErr = msgAuthExpired
	}
	e.gate.Detach()
	e.mu.Unlock()

	if fan != nil {
		fan.Close()
	}
	if room != nil {
		if err := room.Close(); err != nil {
			slog.Debug("close room", "err", err)
		}
	}

	e.mu.Lock()
	e.state = StateIdle
	e.mu.Unlock()

	if authFailed {
		e.cfg.Auth.Invalidate()
		e.cfg.Metrics.ConnectFailed(KindAuthExpired.String())
	}
	e.freeze(false)
	e.cfg.Metrics.SessionClosed(openedAt)
	slog.Info("disconnected", "reason", reason)
	e.publish()
}

// State returns the current session state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status returns the current snapshot.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		State:        e.state,
		Room:         e.roomName,
		Token:        e.token,
		Transmitting: e.gate.Transmitting(),
		PTTEnabled:   e.state == StateOpen && e.gate.Enabled(),
		Error:        e.lastErr,
	}
	if e.state != StateIdle {
		st.Frequency = e.freq
	}
	if e.fanout != nil {
		st.Participants = e.fanout.Participants()
	}
	return st
}

func (e *Engine) publish() {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	if e.OnStatus != nil {
		e.OnStatus(e.Status())
	}
}

func (e *Engine) freeze(on bool) {
	if e.cfg.Dial != nil {
		e.cfg.Dial.Freeze(on)
	}
}

// sessionHandler routes realtime events of one attempt. Events for a
// superseded attempt are dropped.
type sessionHandler struct {
	e      *Engine
	gen    uint64
	fanout *Fanout

	// Set under e.mu when the room drops before Join has returned.
	dropped bool
	reason  DisconnectReason
}

func (h *sessionHandler) current() bool {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	return h.gen == h.e.gen
}

func (h *sessionHandler) OnParticipantJoined(p model.Participant) {
	if h.current() {
		h.fanout.Join(p)
	}
}

func (h *sessionHandler) OnParticipantLeft(identity string) {
	if h.current() {
		h.fanout.Leave(identity)
	}
}

func (h *sessionHandler) OnTrackPublished(identity string, track RemoteTrack) {
	if h.current() {
		h.fanout.Publish(identity, track)
	}
}

func (h *sessionHandler) OnTrackUnpublished(identity, trackID string) {
	if h.current() {
		h.fanout.Unpublish(identity, trackID)
	}
}

func (h *sessionHandler) OnDisconnected(reason DisconnectReason) {
	h.e.mu.Lock()
	if h.gen == h.e.gen && h.e.state == StateConnecting {
		h.dropped = true
		h.reason = reason
		h.e.mu.Unlock()
		return
	}
	h.e.mu.Unlock()
	h.e.handleDisconnect(h.gen, reason)
}
