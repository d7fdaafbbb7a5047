package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NicolasHaas/radiolink/pkg/api"
	"github.com/NicolasHaas/radiolink/pkg/auth"
	"github.com/NicolasHaas/radiolink/pkg/client"
	"github.com/NicolasHaas/radiolink/pkg/metrics"
	"github.com/NicolasHaas/radiolink/pkg/store"
)

// runtime holds the long-lived components every command shares.
type runtime struct {
	settings *client.Settings
	store    *store.SQLiteStore
	api      *api.Client
	guard    *auth.Guard
	metrics  *metrics.Metrics
}

// openRuntime opens the state store and wires the API client and the
// credential guard. The guard is not initialized.
func openRuntime(o *options) (*runtime, error) {
	s := o.settings
	path := s.StatePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	st, err := store.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	apiClient := api.New(s.APIURL, api.WithTimeout(s.RequestTimeout))
	return &runtime{
		settings: s,
		store:    st,
		api:      apiClient,
		guard:    auth.NewGuard(st, apiClient),
		metrics:  metrics.New(),
	}, nil
}

// signedIn initializes the guard and fails unless a live credential with
// a resolved identity is present.
func (r *runtime) signedIn(ctx context.Context) error {
	r.guard.Init(ctx)
	if r.guard.Route() != auth.Allow {
		return fmt.Errorf("not signed in, run 'radio login'")
	}
	return nil
}

// engine builds a session engine on transport and sinks.
func (r *runtime) engine(transport client.Transport, sinks client.SinkFactory) *client.Engine {
	return client.NewEngine(client.Config{
		API:            r.api,
		Auth:           r.guard,
		Transport:      transport,
		Sinks:          sinks,
		Metrics:        r.metrics,
		RealtimeURL:    r.settings.RealtimeURL,
		RequestTimeout: r.settings.RequestTimeout,
	})
}

func (r *runtime) Close() error {
	return r.store.Close()
}
