package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/NicolasHaas/radiolink/pkg/api"
	"github.com/NicolasHaas/radiolink/pkg/frequency"
	"github.com/NicolasHaas/radiolink/pkg/model"
)

type harness struct {
	engine    *Engine
	tokens    *fakeTokens
	creds     *fakeCreds
	transport *fakeTransport
	sinks     *sinkRecorder
	dial      *frequency.Dial
	log       *statusLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tokens:    &fakeTokens{grant: &api.JoinGrant{Token: "join-tok", Room: "freq-100.5"}},
		creds:     &fakeCreds{},
		transport: &fakeTransport{mic: func() LocalPublication { return newFakePub() }},
		sinks:     &sinkRecorder{},
		dial:      frequency.NewDial(),
		log:       &statusLog{},
	}
	h.engine = NewEngine(Config{
		API:            h.tokens,
		Auth:           h.creds,
		Transport:      h.transport,
		Dial:           h.dial,
		Sinks:          h.sinks.factory,
		RealtimeURL:    "ws://media.test",
		RequestTimeout: time.Second,
	})
	h.engine.OnStatus = h.log.record
	t.Cleanup(h.engine.Disconnect)
	return h
}

func TestConnectOpensSession(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Connect(context.Background(), "100.5"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	got := h.engine.Status()
	want := Status{
		State:        StateOpen,
		Frequency:    100.5,
		Room:         "freq-100.5",
		Token:        "join-tok",
		PTTEnabled:   true,
		Participants: []model.Participant{},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Status mismatch (-want +got):\n%s", diff)
	}
	if !h.dial.Frozen() {
		t.Error("dial not frozen while open")
	}
	mic := h.transport.lastRoom().mic.(*fakePub)
	if !mic.isMuted() {
		t.Error("microphone not muted on open")
	}
}

func TestConnectValidation(t *testing.T) {
	for _, display := range []string{"", ".", "abc", "1e3"} {
		t.Run(display, func(t *testing.T) {
			h := newHarness(t)
			err := h.engine.Connect(context.Background(), display)
			var ce *ConnectError
			if !errors.As(err, &ce) || ce.Kind != KindValidation {
				t.Fatalf("err = %v, want validation ConnectError", err)
			}
			if !errors.Is(err, ErrValidation) || !errors.Is(err, frequency.ErrInvalid) {
				t.Error("validation error does not match its sentinels")
			}
			if h.tokens.callCount() != 0 {
				t.Error("token requested for invalid frequency")
			}
			if h.engine.State() != StateIdle {
				t.Errorf("state = %v, want idle", h.engine.State())
			}
		})
	}
}

func TestConnectWithExpiredCredential(t *testing.T) {
	h := newHarness(t)
	h.creds.expired = true

	err := h.engine.Connect(context.Background(), "100")
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("err = %v, want ErrAuthExpired", err)
	}
	if h.tokens.callCount() != 0 {
		t.Error("token requested with expired credential")
	}
	if h.creds.invalidations() == 0 {
		t.Error("guard not invalidated")
	}
}

func TestConnectTokenFailures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		grant       *api.JoinGrant
		wantKind    Kind
		wantMsg     string
		wantInvalid bool
	}{
		{
			name:     "server message",
			err:      &api.StatusError{Status: http.StatusBadRequest, Message: "Frequency out of range"},
			wantKind: KindTokenRequest,
			wantMsg:  "Frequency out of range",
		},
		{
			name:     "no message",
			err:      &api.StatusError{Status: http.StatusInternalServerError},
			wantKind: KindTokenRequest,
			wantMsg:  "Failed to get token",
		},
		{
			name:        "unauthorized",
			err:         &api.StatusError{Status: http.StatusUnauthorized},
			wantKind:    KindAuthRejected,
			wantMsg:     msgAuthRejected,
			wantInvalid: true,
		},
		{
			name:     "network",
			err:      &api.NetworkError{Op: "POST /api/radio/token", Err: errors.New("connection refused")},
			wantKind: KindNetwork,
			wantMsg:  "Network error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.tokens.grant, h.tokens.err = nil, tt.err

			err := h.engine.Connect(context.Background(), "100")
			var ce *ConnectError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *ConnectError", err)
			}
			if ce.Kind != tt.wantKind || ce.Message != tt.wantMsg {
				t.Errorf("ConnectError = {%v %q}, want {%v %q}", ce.Kind, ce.Message, tt.wantKind, tt.wantMsg)
			}
			if got := h.creds.invalidations() > 0; got != tt.wantInvalid {
				t.Errorf("guard invalidated = %v, want %v", got, tt.wantInvalid)
			}

			st := h.engine.Status()
			if st.State != StateIdle || st.Token != "" || st.Error != tt.wantMsg {
				t.Errorf("status = %+v", st)
			}
			if h.dial.Frozen() {
				t.Error("dial left frozen after failure")
			}
			if h.transport.joinCount() != 0 {
				t.Error("room joined after token failure")
			}
		})
	}
}

func TestConnectTokenTimeout(t *testing.T) {
	h := newHarness(t)
	h.engine.cfg.RequestTimeout = 20 * time.Millisecond
	h.tokens.block = make(chan struct{})

	err := h.engine.Connect(context.Background(), "100")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
	if h.engine.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.engine.State())
	}
}

func TestConnectJoinFailure(t *testing.T) {
	h := newHarness(t)
	h.transport.err = errors.New("ws dial failed")

	err := h.engine.Connect(context.Background(), "100")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
	if st := h.engine.Status(); st.State != StateIdle || st.Token != "" {
		t.Errorf("status after join failure = %+v", st)
	}
}

func TestConnectWhileBusy(t *testing.T) {
	h := newHarness(t)
	h.tokens.block = make(chan struct{})
	h.tokens.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() { done <- h.engine.Connect(context.Background(), "100") }()
	<-h.tokens.entered

	if err := h.engine.Connect(context.Background(), "101"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Connect = %v, want ErrBusy", err)
	}
	close(h.tokens.block)
	if err := <-done; err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	if err := h.engine.Connect(context.Background(), "101"); !errors.Is(err, ErrBusy) {
		t.Errorf("Connect while open = %v, want ErrBusy", err)
	}
	if n := h.tokens.callCount(); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}
}

func TestDisconnectWhileConnectingDropsLateToken(t *testing.T) {
	h := newHarness(t)
	h.tokens.block = make(chan struct{})
	h.tokens.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() { done <- h.engine.Connect(context.Background(), "100") }()
	<-h.tokens.entered

	h.engine.Disconnect()
	if h.engine.State() != StateIdle {
		t.Fatalf("state after Disconnect = %v, want idle", h.engine.State())
	}
	if h.dial.Frozen() {
		t.Error("dial still frozen after cancel")
	}

	close(h.tokens.block)
	if err := <-done; !errors.Is(err, ErrAborted) {
		t.Errorf("Connect = %v, want ErrAborted", err)
	}
	if h.transport.joinCount() != 0 {
		t.Error("late token was joined")
	}
	if h.engine.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.engine.State())
	}
}

func TestDisconnectWhileJoiningClosesLateRoom(t *testing.T) {
	h := newHarness(t)
	h.transport.block = make(chan struct{})
	h.transport.joined = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() { done <- h.engine.Connect(context.Background(), "100") }()
	<-h.transport.joined

	h.engine.Disconnect()
	close(h.transport.block)
	if err := <-done; !errors.Is(err, ErrAborted) {
		t.Fatalf("Connect = %v, want ErrAborted", err)
	}
	if r := h.transport.lastRoom(); r == nil || r.closeCount() != 1 {
		t.Error("room joined after disconnect was not closed")
	}
	if h.engine.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.engine.State())
	}
}

func TestDisconnectWhileIdle(t *testing.T) {
	h := newHarness(t)
	h.engine.Disconnect()
	h.engine.Disconnect()
	if len(h.log.all()) != 0 {
		t.Errorf("idle Disconnect published %d updates", len(h.log.all()))
	}
	if h.engine.State() != StateIdle {
		t.Errorf("state = %v", h.engine.State())
	}
}

func TestDisconnectTearsDownInOneUpdate(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Connect(context.Background(), "100"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	room := h.transport.lastRoom()
	room.handler.OnParticipantJoined(participant("alice"))
	room.handler.OnTrackPublished("alice", fakeTrack{id: "TR_a"})
	h.engine.PTT().Activate()
	before := len(h.log.all())

	h.engine.Disconnect()

	updates := h.log.all()[before:]
	if len(updates) != 1 {
		t.Fatalf("teardown published %d updates, want 1: %+v", len(updates), updates)
	}
	want := Status{State: StateIdle}
	if diff := cmp.Diff(want, updates[0], cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("final status mismatch (-want +got):\n%s", diff)
	}
	if room.closeCount() != 1 {
		t.Errorf("room closed %d times", room.closeCount())
	}
	if s := h.sinks.all(); len(s) != 1 || !s[0].isClosed() {
		t.Error("remote sink not closed on disconnect")
	}
	if h.dial.Frozen() {
		t.Error("dial still frozen")
	}

	// Late events from the closed room are ignored.
	room.handler.OnParticipantJoined(participant("bob"))
	room.handler.OnDisconnected(ReasonConnectionLost)
	if len(h.log.all()) != before+1 {
		t.Error("events after teardown published updates")
	}
}

func TestRemoteDisconnect(t *testing.T) {
	tests := []struct {
		reason      DisconnectReason
		wantInvalid bool
		wantErr     string
	}{
		{ReasonConnectionLost, false, ""},
		{ReasonServerShutdown, false, ""},
		{ReasonAuthFailure, true, msgAuthExpired},
	}
	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			h := newHarness(t)
			if err := h.engine.Connect(context.Background(), "100"); err != nil {
				t.Fatalf("Connect: %v", err)
			}
			h.transport.lastRoom().handler.OnDisconnected(tt.reason)

			st := h.engine.Status()
			if st.State != StateIdle || st.Token != "" || st.PTTEnabled || len(st.Participants) != 0 {
				t.Errorf("status = %+v", st)
			}
			if st.Error != tt.wantErr {
				t.Errorf("Error = %q, want %q", st.Error, tt.wantErr)
			}
			if got := h.creds.invalidations() > 0; got != tt.wantInvalid {
				t.Errorf("invalidated = %v, want %v", got, tt.wantInvalid)
			}
		})
	}
}

func TestPTTWithoutMicrophone(t *testing.T) {
	h := newHarness(t)
	h.transport.mic = nil
	if err := h.engine.Connect(context.Background(), "100"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	h.engine.PTT().Handle(Event{Type: PointerDown})
	st := h.engine.Status()
	if st.PTTEnabled || st.Transmitting {
		t.Errorf("status without mic = %+v", st)
	}
}

func TestPTTPublishesStatus(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Connect(context.Background(), "100"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	h.engine.PTT().Handle(Event{Type: KeyDown, Key: "Space"})
	if !h.log.last().Transmitting {
		t.Error("transmit not published")
	}
	h.engine.PTT().Handle(Event{Type: KeyUp, Key: "Space"})
	if h.log.last().Transmitting {
		t.Error("release not published")
	}
}

func TestReconnectAfterDisconnect(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		if err := h.engine.Connect(context.Background(), "100"); err != nil {
			t.Fatalf("Connect #%d: %v", i, err)
		}
		h.engine.Disconnect()
	}
	if n := h.transport.joinCount(); n != 3 {
		t.Errorf("joins = %d, want 3", n)
	}
}

func TestRoomDroppedWhileJoining(t *testing.T) {
	tests := []struct {
		reason      DisconnectReason
		wantErr     error
		wantInvalid bool
	}{
		{ReasonConnectionLost, ErrNetwork, false},
		{ReasonServerShutdown, ErrNetwork, false},
		{ReasonAuthFailure, ErrAuthExpired, true},
	}
	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			h := newHarness(t)
			h.transport.beforeReturn = func(rh RoomHandler) { rh.OnDisconnected(tt.reason) }

			err := h.engine.Connect(context.Background(), "100")
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrDropped) {
				t.Fatalf("Connect = %v, want %v wrapping ErrDropped", err, tt.wantErr)
			}
			st := h.engine.Status()
			if st.State != StateIdle || st.Token != "" || st.Room != "" || st.PTTEnabled {
				t.Errorf("status = %+v", st)
			}
			if st.Error == "" {
				t.Error("failure not visible in status")
			}
			if r := h.transport.lastRoom(); r == nil || r.closeCount() != 1 {
				t.Error("dropped room not closed exactly once")
			}
			if h.dial.Frozen() {
				t.Error("dial still frozen")
			}
			if got := h.creds.invalidations() > 0; got != tt.wantInvalid {
				t.Errorf("invalidated = %v, want %v", got, tt.wantInvalid)
			}

			// The engine is usable again.
			h.transport.beforeReturn = nil
			if err := h.engine.Connect(context.Background(), "100"); err != nil && !tt.wantInvalid {
				t.Errorf("Connect after drop: %v", err)
			}
		})
	}
}

func TestDisconnectCancelsTokenRequest(t *testing.T) {
	h := newHarness(t)
	h.tokens.block = make(chan struct{})
	h.tokens.entered = make(chan struct{}, 1)
	defer close(h.tokens.block)

	done := make(chan error, 1)
	go func() { done <- h.engine.Connect(context.Background(), "100") }()
	<-h.tokens.entered
	h.engine.Disconnect()

	select {
	case err := <-done:
		if !errors.Is(err, ErrAborted) {
			t.Errorf("Connect = %v, want ErrAborted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect still waiting on the token request after Disconnect")
	}

	go func() { done <- h.engine.Connect(context.Background(), "101") }()
	<-h.tokens.entered
	if n := h.tokens.peak(); n != 1 {
		t.Errorf("%d token requests in flight at once, want 1", n)
	}
	h.engine.Disconnect()
	<-done
}

func TestDisconnectCancelsJoin(t *testing.T) {
	h := newHarness(t)
	h.transport.block = make(chan struct{})
	h.transport.joined = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() { done <- h.engine.Connect(context.Background(), "100") }()
	<-h.transport.joined

	ctx := h.transport.lastCtx()
	if ctx.Err() != nil {
		t.Fatal("join context cancelled before Disconnect")
	}
	h.engine.Disconnect()
	if ctx.Err() == nil {
		t.Error("join context not cancelled by Disconnect")
	}

	close(h.transport.block)
	if err := <-done; !errors.Is(err, ErrAborted) {
		t.Errorf("Connect = %v, want ErrAborted", err)
	}
}

func TestClosingHidesSession(t *testing.T) {
	h := newHarness(t)
	closing := make(chan struct{}, 1)
	release := make(chan struct{})
	h.transport.configure = func(r *fakeRoom) {
		r.closing = closing
		r.closeBlock = release
	}
	if err := h.engine.Connect(context.Background(), "100"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	h.transport.lastRoom().handler.OnParticipantJoined(participant("alice"))
	before := len(h.log.all())

	done := make(chan struct{})
	go func() {
		h.engine.Disconnect()
		close(done)
	}()
	<-closing

	got := h.engine.Status()
	want := Status{State: StateClosing, Frequency: 100}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("status while closing (-want +got):\n%s", diff)
	}

	close(release)
	<-done
	updates := h.log.all()[before:]
	if len(updates) != 1 || updates[0].State != StateIdle {
		t.Errorf("teardown updates = %+v, want one idle update", updates)
	}
}

func TestStatusReadableWhileMuting(t *testing.T) {
	h := newHarness(t)
	pub := newFakePub()
	pub.muting = make(chan struct{}, 1)
	pub.muteBlock = make(chan struct{})
	h.transport.mic = func() LocalPublication { return pub }

	done := make(chan error, 1)
	go func() { done <- h.engine.Connect(context.Background(), "100") }()
	<-pub.muting

	read := make(chan Status, 1)
	go func() { read <- h.engine.Status() }()
	select {
	case st := <-read:
		if st.State != StateOpen || st.PTTEnabled {
			t.Errorf("status while muting = %+v, want open without push-to-talk", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Status blocked while the microphone was being muted")
	}

	h.engine.PTT().Activate()
	close(pub.muteBlock)
	if err := <-done; err != nil {
		t.Fatalf("Connect: %v", err)
	}
	st := h.engine.Status()
	if !st.PTTEnabled || st.Transmitting {
		t.Errorf("status after open = %+v", st)
	}
	if !pub.isMuted() {
		t.Error("microphone not muted after open")
	}
}

func TestDisconnectWhileMutingLeavesGateDetached(t *testing.T) {
	h := newHarness(t)
	pub := newFakePub()
	pub.muting = make(chan struct{}, 1)
	pub.muteBlock = make(chan struct{})
	h.transport.mic = func() LocalPublication { return pub }

	done := make(chan error, 1)
	go func() { done <- h.engine.Connect(context.Background(), "100") }()
	<-pub.muting

	h.engine.Disconnect()
	close(pub.muteBlock)
	<-done
	if h.engine.PTT().Enabled() {
		t.Error("gate bound to a closed session")
	}
	if st := h.engine.Status(); st.State != StateIdle || st.PTTEnabled {
		t.Errorf("status = %+v", st)
	}
}
