package client

import (
	"context"
	"errors"
	"sync"

	"github.com/NicolasHaas/radiolink/pkg/api"
	"github.com/NicolasHaas/radiolink/pkg/model"
)

// fakePub records mute calls. When muteBlock is set, SetMuted signals
// muting and waits on muteBlock first.
type fakePub struct {
	mu        sync.Mutex
	muted     bool
	calls     []bool
	failOn    *bool // SetMuted(*failOn) fails
	failErr   error
	muting    chan struct{}
	muteBlock chan struct{}
}

func newFakePub() *fakePub { return &fakePub{muted: false} }

func (p *fakePub) SetMuted(m bool) error {
	if p.muteBlock != nil {
		p.muting <- struct{}{}
		<-p.muteBlock
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, m)
	if p.failOn != nil && *p.failOn == m {
		return p.failErr
	}
	p.muted = m
	return nil
}

func (p *fakePub) isMuted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// fakeRoom is an open session handed out by fakeTransport. When
// closeBlock is set, Close signals closing and waits on closeBlock.
type fakeRoom struct {
	mu         sync.Mutex
	mic        LocalPublication
	closed     int
	handler    RoomHandler
	closing    chan struct{}
	closeBlock chan struct{}
}

func (r *fakeRoom) Microphone() LocalPublication { return r.mic }

func (r *fakeRoom) Close() error {
	r.mu.Lock()
	r.closed++
	closing, block := r.closing, r.closeBlock
	r.mu.Unlock()
	if closing != nil {
		closing <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return nil
}

func (r *fakeRoom) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// fakeTransport joins instantly unless block or err is set. beforeReturn
// runs with the handler just before a successful Join returns.
type fakeTransport struct {
	mu           sync.Mutex
	joins        []string // tokens
	ctxs         []context.Context
	rooms        []*fakeRoom
	mic          func() LocalPublication
	err          error
	block        chan struct{}
	joined       chan struct{} // receives once Join is entered
	beforeReturn func(RoomHandler)
	configure    func(*fakeRoom)
}

func (t *fakeTransport) Join(ctx context.Context, url, token string, h RoomHandler) (Room, error) {
	t.mu.Lock()
	t.joins = append(t.joins, token)
	t.ctxs = append(t.ctxs, ctx)
	block, joined, err := t.block, t.joined, t.err
	t.mu.Unlock()

	if joined != nil {
		joined <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	r := &fakeRoom{handler: h}
	if t.mic != nil {
		r.mic = t.mic()
	}
	if t.configure != nil {
		t.configure(r)
	}
	t.mu.Lock()
	t.rooms = append(t.rooms, r)
	t.mu.Unlock()
	if t.beforeReturn != nil {
		t.beforeReturn(h)
	}
	return r, nil
}

func (t *fakeTransport) lastCtx() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.ctxs) == 0 {
		return nil
	}
	return t.ctxs[len(t.ctxs)-1]
}

func (t *fakeTransport) lastRoom() *fakeRoom {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.rooms) == 0 {
		return nil
	}
	return t.rooms[len(t.rooms)-1]
}

func (t *fakeTransport) joinCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.joins)
}

// fakeTokens answers RequestJoinToken and tracks how many requests are
// outstanding at once.
type fakeTokens struct {
	mu        sync.Mutex
	calls     []float64
	grant     *api.JoinGrant
	err       error
	block     chan struct{}
	entered   chan struct{}
	active    int
	maxActive int
}

func (f *fakeTokens) RequestJoinToken(ctx context.Context, bearer string, freq float64) (*api.JoinGrant, error) {
	f.mu.Lock()
	f.calls = append(f.calls, freq)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	grant, err, block, entered := f.grant, f.err, f.block, f.entered
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, &api.NetworkError{Op: "POST /api/radio/token", Err: ctx.Err()}
		}
	}
	return grant, err
}

func (f *fakeTokens) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func (f *fakeTokens) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeCreds is an always-live credential unless expired is set.
type fakeCreds struct {
	mu          sync.Mutex
	expired     bool
	invalidated int
}

func (c *fakeCreds) Credential() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invalidated > 0 {
		return "", false
	}
	return "bearer", true
}

func (c *fakeCreds) Check() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.expired
}

func (c *fakeCreds) Invalidate() {
	c.mu.Lock()
	c.invalidated++
	c.mu.Unlock()
}

func (c *fakeCreds) invalidations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated
}

// fakeTrack is a remote audio track that never yields packets.
type fakeTrack struct{ id string }

func (t fakeTrack) ID() string { return t.id }

func (t fakeTrack) ReadPacket() ([]byte, uint16, error) {
	return nil, 0, errors.New("fake track has no media")
}

// fakeSink records its closing.
type fakeSink struct {
	identity string
	trackID  string
	mu       sync.Mutex
	closed   bool
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// sinkRecorder is a SinkFactory that keeps every sink it created.
type sinkRecorder struct {
	mu    sync.Mutex
	sinks []*fakeSink
}

func (r *sinkRecorder) factory(identity string, track RemoteTrack) (Sink, error) {
	s := &fakeSink{identity: identity, trackID: track.ID()}
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
	return s, nil
}

func (r *sinkRecorder) all() []*fakeSink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeSink(nil), r.sinks...)
}

// statusLog collects published snapshots.
type statusLog struct {
	mu   sync.Mutex
	list []Status
}

func (l *statusLog) record(s Status) {
	l.mu.Lock()
	l.list = append(l.list, s)
	l.mu.Unlock()
}

func (l *statusLog) last() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.list) == 0 {
		return Status{}
	}
	return l.list[len(l.list)-1]
}

func (l *statusLog) all() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Status(nil), l.list...)
}

func participant(id string) model.Participant {
	return model.Participant{Identity: id, Name: id}
}
