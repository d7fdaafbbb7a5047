package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/NicolasHaas/radiolink/pkg/api"
	"github.com/NicolasHaas/radiolink/pkg/model"
	"github.com/NicolasHaas/radiolink/pkg/rbac"
	"github.com/NicolasHaas/radiolink/pkg/store"
)

// ProfileFetcher loads the identity behind a bearer credential.
// *api.Client satisfies it.
type ProfileFetcher interface {
	Me(ctx context.Context, bearer string) (*model.Identity, error)
}

// Decision is the outcome of a guard check.
type Decision int

const (
	// Deferred means an identity fetch is in flight; do not redirect or render yet.
	Deferred Decision = iota
	// Allow means the gated content may be shown.
	Allow
	// Redirect means the user must sign in (or lacks the privilege).
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Deferred:
		return "deferred"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent view of the guard state handed to subscribers.
type Snapshot struct {
	Authenticated bool
	Identity      *model.Identity
	Loading       bool
}

// Guard holds the current credential and identity. It is the single source
// of truth for authentication; consumers read it or subscribe to it and
// never read the credential store themselves.
type Guard struct {
	store   store.StateStore
	profile ProfileFetcher
	now     func() time.Time

	mu       sync.Mutex
	cred     Credential
	identity *model.Identity
	loading  bool
	gen      uint64 // bumped on every credential change

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// GuardOption customises a Guard.
type GuardOption func(*Guard)

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates a guard backed by st. It starts in the loading state
// until Init runs.
func NewGuard(st store.StateStore, profile ProfileFetcher, opts ...GuardOption) *Guard {
	g := &Guard{
		store:   st,
		profile: profile,
		now:     time.Now,
		loading: true,
		subs:    make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Init loads the persisted credential. An absent or non-live credential is
// cleared from storage without an identity fetch; a live one is adopted and
// its identity fetched before Init returns.
func (g *Guard) Init(ctx context.Context) {
	raw, ok, err := g.store.Get(store.KeyCredential)
	if err != nil {
		slog.Error("load credential", "err", err)
	}
	cred := ParseCredential(raw)
	if !ok || !cred.LiveAt(g.now()) {
		if ok {
			slog.Info("stored credential expired, signing out")
		}
		g.Invalidate()
		return
	}

	g.mu.Lock()
	g.gen++
	gen := g.gen
	g.cred = cred
	g.identity = nil
	g.loading = true
	g.mu.Unlock()
	g.publish()

	g.fetchIdentity(ctx, gen, cred.Raw)
}

// Credential returns the current raw credential.
func (g *Guard) Credential() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cred.Raw == "" {
		return "", false
	}
	return g.cred.Raw, true
}

// SetCredential adopts raw. A non-live value is treated as Invalidate and
// returns ErrCredentialExpired. A live value is persisted and the identity
// fetched with it; the call returns once that fetch settles.
func (g *Guard) SetCredential(ctx context.Context, raw string) error {
	cred := ParseCredential(raw)
	if !cred.LiveAt(g.now()) {
		g.Invalidate()
		return ErrCredentialExpired
	}

	// The store is written in generation order.
	g.mu.Lock()
	if err := g.store.Set(store.KeyCredential, raw); err != nil {
		slog.Error("persist credential", "err", err)
	}
	g.gen++
	gen := g.gen
	g.cred = cred
	g.identity = nil
	g.loading = true
	g.mu.Unlock()
	g.publish()

	return g.fetchIdentity(ctx, gen, raw)
}

// fetchIdentity loads the identity for the credential of generation gen.
// A response for a superseded generation is discarded.
func (g *Guard) fetchIdentity(ctx context.Context, gen uint64, bearer string) error {
	id, err := g.profile.Me(ctx, bearer)

	g.mu.Lock()
	if g.gen != gen {
		g.mu.Unlock()
		slog.Debug("discarding stale identity response", "gen", gen)
		return nil
	}

	switch {
	case err == nil:
		g.identity = id
		g.loading = false
		g.mu.Unlock()
		slog.Info("signed in", "user", id.Username, "admin", id.IsAdmin)
		g.publish()
		return nil

	case errors.Is(err, api.ErrUnauthorized):
		g.mu.Unlock()
		slog.Info("credential rejected by backend")
		g.invalidateGen(gen)
		return ErrRejected

	case api.IsNetwork(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		g.mu.Unlock()
		slog.Error("identity fetch failed", "err", err)
		g.invalidateGen(gen)
		return err

	default:
		// The backend answered but not with a profile; keep the credential.
		g.identity = nil
		g.loading = false
		g.mu.Unlock()
		slog.Warn("identity unavailable", "err", err)
		g.publish()
		return err
	}
}

// IsLive reports whether the current credential is live right now.
func (g *Guard) IsLive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cred.LiveAt(g.now())
}

// Identity returns the fetched identity, or nil.
func (g *Guard) Identity() *model.Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.identity == nil {
		return nil
	}
	id := *g.identity
	return &id
}

// IsLoading reports whether a decision must be deferred.
func (g *Guard) IsLoading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading
}

// Check revalidates the credential on protected navigation. An expired
// credential is invalidated. It returns the resulting liveness.
func (g *Guard) Check() bool {
	g.mu.Lock()
	present := g.cred.Raw != ""
	live := g.cred.LiveAt(g.now())
	gen := g.gen
	g.mu.Unlock()

	if present && !live {
		slog.Info("credential expired")
		g.invalidateGen(gen)
	}
	return live
}

// Route decides whether protected content may be shown.
func (g *Guard) Route() Decision {
	if g.IsLoading() {
		return Deferred
	}
	if !g.Check() {
		return Redirect
	}
	return Allow
}

// Admin decides whether admin-only content may be shown.
func (g *Guard) Admin() Decision {
	switch d := g.Route(); d {
	case Allow:
		if rbac.Can(g.Identity(), model.PermViewJoinLogs) {
			return Allow
		}
		return Redirect
	default:
		return d
	}
}

// Invalidate clears storage, credential and identity, and ends loading.
func (g *Guard) Invalidate() {
	g.mu.Lock()
	g.gen++
	g.clearLocked()
	g.mu.Unlock()
	g.publish()
}

// Logout signs the user out.
func (g *Guard) Logout() {
	slog.Info("signed out")
	g.Invalidate()
}

// invalidateGen invalidates only if no newer credential was adopted meanwhile.
func (g *Guard) invalidateGen(gen uint64) {
	g.mu.Lock()
	if g.gen != gen {
		g.mu.Unlock()
		return
	}
	g.gen++
	g.clearLocked()
	g.mu.Unlock()
	g.publish()
}

func (g *Guard) clearLocked() {
	if err := g.store.Delete(store.KeyCredential); err != nil {
		slog.Error("clear credential", "err", err)
	}
	g.cred = Credential{}
	g.identity = nil
	g.loading = false
}

// Snapshot returns the current state.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Guard) snapshotLocked() Snapshot {
	s := Snapshot{
		Authenticated: g.cred.Raw != "",
		Loading:       g.loading,
	}
	if g.identity != nil {
		id := *g.identity
		s.Identity = &id
	}
	return s
}

// Subscribe registers fn for every state change and calls it once with the
// current state. The returned func unsubscribes.
func (g *Guard) Subscribe(fn func(Snapshot)) (cancel func()) {
	g.subMu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	g.subMu.Unlock()

	fn(g.Snapshot())
	return func() {
		g.subMu.Lock()
		delete(g.subs, id)
		g.subMu.Unlock()
	}
}

func (g *Guard) publish() {
	snap := g.Snapshot()
	g.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
