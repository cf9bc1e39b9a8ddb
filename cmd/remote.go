package cmd

import (
	"context"
	"fmt"

	"github.com/Another0Noob/peertube-import/internal/catalog"
	"github.com/Another0Noob/peertube-import/internal/peertubeapi"
	"github.com/Another0Noob/peertube-import/internal/pgcatalog"
)

// newAPIClient builds a PeerTube client and logs in when credentials are
// configured. A failed login is logged and the client stays anonymous.
func newAPIClient(ctx context.Context, a *app) (*peertubeapi.Client, error) {
	client, err := peertubeapi.NewClient(peertubeapi.Options{
		BaseURL:     a.settings.BaseURL,
		RateLimit:   a.settings.RateLimit,
		Timeout:     a.settings.RequestTimeout,
		DateFields:  a.settings.DateFields,
		UpdateField: a.settings.UpdateField,
		Log:         a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	if !a.settings.HasCredentials() {
		a.log.Debug("no credentials configured, using the API anonymously")
		return client, nil
	}
	if err := client.Authenticate(ctx, a.settings.Username, a.settings.Password); err != nil {
		a.log.WithError(err).Warn("authentication failed, continuing without a token")
	}
	return client, nil
}

func openDatabase(ctx context.Context, a *app) (*pgcatalog.Store, error) {
	store, err := pgcatalog.Open(ctx, pgcatalog.Options{
		DSN:         a.settings.Postgres.DSN(),
		DateColumns: a.settings.Postgres.DateColumns,
		Timeout:     a.settings.RequestTimeout,
		Log:         a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store, nil
}

// remoteSource picks where the catalog listing comes from. The API path
// goes through the snapshot cache; the database is always read live.
func remoteSource(ctx context.Context, a *app) (catalog.Source, func(), error) {
	if via == viaDB {
		store, err := openDatabase(ctx, a)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}

	src := &catalog.CachingSource{
		Snapshot: catalog.NewSnapshot(a.settings.SnapshotFile, a.settings.DateFields, a.log),
		Refresh:  refresh,
		Log:      a.log,
	}
	if a.settings.BaseURL != "" {
		client, err := newAPIClient(ctx, a)
		if err != nil {
			return nil, nil, err
		}
		src.Live = client
	}
	return src, func() {}, nil
}

// remoteCatalog picks the transport used to read and update single items.
func remoteCatalog(ctx context.Context, a *app) (catalog.Catalog, func(), error) {
	if via == viaDB {
		store, err := openDatabase(ctx, a)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
	client, err := newAPIClient(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	return client, func() {}, nil
}
