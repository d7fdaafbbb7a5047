package client

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/NicolasHaas/radiolink/pkg/metrics"
	"github.com/NicolasHaas/radiolink/pkg/model"
)

// Sink plays one remote participant's audio.
type Sink interface {
	Close() error
}

// SinkFactory creates the sink for a remote participant's audio track.
type SinkFactory func(identity string, track RemoteTrack) (Sink, error)

// Fanout keeps one audio sink per remote participant, attached to the
// participant's first audio publication. Later publications wait and are
// attached only if the first one goes away.
type Fanout struct {
	mu      sync.Mutex
	factory SinkFactory
	remotes map[string]*remote
	closed  bool

	metrics  *metrics.Metrics
	onChange func()
}

type remote struct {
	participant model.Participant
	tracks      []RemoteTrack // publication order; tracks[0] is attached when sink != nil
	sink        Sink
}

// NewFanout creates an empty set. factory may be nil, in which case
// participants are tracked without sinks.
func NewFanout(factory SinkFactory, m *metrics.Metrics, onChange func()) *Fanout {
	return &Fanout{
		factory:  factory,
		remotes:  make(map[string]*remote),
		metrics:  m,
		onChange: onChange,
	}
}

// Join records a participant.
func (f *Fanout) Join(p model.Participant) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if r, ok := f.remotes[p.Identity]; ok {
		r.participant.Name = p.Name
	} else {
		f.remotes[p.Identity] = &remote{participant: model.Participant{Identity: p.Identity, Name: p.Name}}
	}
	f.mu.Unlock()
	slog.Debug("participant joined", "identity", p.Identity)
	f.notify()
}

// Leave removes a participant and closes its sink.
func (f *Fanout) Leave(identity string) {
	f.mu.Lock()
	r, ok := f.remotes[identity]
	if !ok || f.closed {
		f.mu.Unlock()
		return
	}
	delete(f.remotes, identity)
	sink := r.sink
	f.mu.Unlock()

	f.closeSink(identity, sink)
	slog.Debug("participant left", "identity", identity)
	f.notify()
}

// Publish adds an audio track. It is attached when the participant has no
// sink yet.
func (f *Fanout) Publish(identity string, track RemoteTrack) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	r, ok := f.remotes[identity]
	if !ok {
		r = &remote{participant: model.Participant{Identity: identity}}
		f.remotes[identity] = r
	}
	for _, t := range r.tracks {
		if t.ID() == track.ID() {
			f.mu.Unlock()
			return
		}
	}
	r.tracks = append(r.tracks, track)
	if r.sink == nil && len(r.tracks) == 1 {
		f.attachLocked(identity, r)
	} else {
		slog.Debug("ignoring additional audio track", "identity", identity, "track", track.ID())
	}
	f.mu.Unlock()
	f.notify()
}

// Unpublish removes a track. When it was the attached one its sink is
// closed and the next waiting track, if any, is attached.
func (f *Fanout) Unpublish(identity, trackID string) {
	f.mu.Lock()
	r, ok := f.remotes[identity]
	if !ok || f.closed {
		f.mu.Unlock()
		return
	}
	idx := -1
	for i, t := range r.tracks {
		if t.ID() == trackID {
			idx = i
			break
		}
	}
	if idx < 0 {
		f.mu.Unlock()
		return
	}
	r.tracks = append(r.tracks[:idx], r.tracks[idx+1:]...)

	var old Sink
	if idx == 0 {
		old = r.sink
		r.sink = nil
		r.participant.HasAudio = false
		if len(r.tracks) > 0 {
			f.attachLocked(identity, r)
		}
	}
	f.mu.Unlock()

	f.closeSink(identity, old)
	f.notify()
}

func (f *Fanout) attachLocked(identity string, r *remote) {
	if f.factory == nil {
		r.participant.HasAudio = true
		return
	}
	sink, err := f.factory(identity, r.tracks[0])
	if err != nil {
		slog.Error("create audio sink", "identity", identity, "err", err)
		return
	}
	r.sink = sink
	r.participant.HasAudio = true
	f.metrics.SinkOpened()
}

func (f *Fanout) closeSink(identity string, s Sink) {
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		slog.Debug("close audio sink", "identity", identity, "err", err)
	}
	f.metrics.SinkClosed()
}

// Participants returns the set ordered by identity.
func (f *Fanout) Participants() []model.Participant {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Participant, 0, len(f.remotes))
	for _, r := range f.remotes {
		out = append(out, r.participant)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// Sinks returns the number of attached sinks.
func (f *Fanout) Sinks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.remotes {
		if r.sink != nil {
			n++
		}
	}
	return n
}

// Close closes every sink and empties the set. Later events are ignored.
func (f *Fanout) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	remotes := f.remotes
	f.remotes = make(map[string]*remote)
	f.mu.Unlock()

	for id, r := range remotes {
		f.closeSink(id, r.sink)
	}
}

func (f *Fanout) notify() {
	if f.onChange != nil {
		f.onChange()
	}
}
