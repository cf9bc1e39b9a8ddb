package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Another0Noob/peertube-import/internal/catalog"
	"github.com/Another0Noob/peertube-import/internal/localmeta"
	"github.com/Another0Noob/peertube-import/internal/mapstore"
	"github.com/Another0Noob/peertube-import/internal/match"
	"github.com/Another0Noob/peertube-import/internal/reconcile"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type fakeCatalog struct {
	items    map[string]catalog.Item
	getErr   map[string]error
	setErr   map[string]error
	gets     []string
	writes   map[string]time.Time
	setOrder []string
}

func newFakeCatalog(items ...catalog.Item) *fakeCatalog {
	f := &fakeCatalog{
		items:  make(map[string]catalog.Item),
		getErr: make(map[string]error),
		setErr: make(map[string]error),
		writes: make(map[string]time.Time),
	}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeCatalog) Get(ctx context.Context, id string) (catalog.Item, error) {
	f.gets = append(f.gets, id)
	if err := f.getErr[id]; err != nil {
		return catalog.Item{}, err
	}
	it, ok := f.items[id]
	if !ok {
		return catalog.Item{}, fmt.Errorf("video %s: %w", id, catalog.ErrNotFound)
	}
	return it, nil
}

func (f *fakeCatalog) SetTimestamp(ctx context.Context, id string, ts time.Time) error {
	f.setOrder = append(f.setOrder, id)
	if err := f.setErr[id]; err != nil {
		return err
	}
	f.writes[id] = ts
	it := f.items[id]
	it.Timestamp, it.HasTimestamp = ts, true
	f.items[id] = it
	return nil
}

type stamps map[string]time.Time

func (s stamps) Published(id string) (time.Time, bool) {
	t, ok := s[id]
	return t, ok
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRunOutcomes(t *testing.T) {
	cat := newFakeCatalog(
		catalog.Item{ID: "R1", TimestampField: "originallyPublishedAt"},
		catalog.Item{ID: "R2", Timestamp: day(2021, 5, 2).Add(400 * time.Millisecond), HasTimestamp: true},
	)
	s := &Synchronizer{
		Catalog:    cat,
		Timestamps: stamps{"A1": day(2021, 5, 1), "A2": day(2021, 5, 2), "A3": day(2020, 1, 1)},
		Log:        quietLogger(),
	}

	rep, err := s.Run(context.Background(), []mapstore.Mapping{
		{LocalID: "A1", RemoteID: "R1"},
		{LocalID: "A2", RemoteID: "R2"},
		{LocalID: "A3", RemoteID: "R3"},
		{LocalID: "A4", RemoteID: "R4"},
	})
	require.NoError(t, err)
	require.Len(t, rep.Outcomes, 4)

	kinds := []OutcomeKind{}
	for _, o := range rep.Outcomes {
		kinds = append(kinds, o.Kind)
	}
	assert.Equal(t, []OutcomeKind{Updated, SkippedAlreadyCurrent, SkippedRemoteMissing, SkippedNoSourceTimestamp}, kinds)
	assert.Equal(t, []string{"R1"}, cat.setOrder)
	assert.Equal(t, []string{"R1", "R2", "R3"}, cat.gets, "no remote read without a local timestamp")
}

func TestRunConvergesWithoutWrites(t *testing.T) {
	cat := newFakeCatalog(catalog.Item{ID: "R1"})
	s := &Synchronizer{Catalog: cat, Timestamps: stamps{"A1": day(2021, 5, 1)}, Log: quietLogger()}
	mappings := []mapstore.Mapping{{LocalID: "A1", RemoteID: "R1"}}

	first, err := s.Run(context.Background(), mappings)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Count(Updated))

	second, err := s.Run(context.Background(), mappings)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Count(SkippedAlreadyCurrent))
	assert.Len(t, cat.setOrder, 1, "second run issues no writes")
}

func TestRunIsolatesFailures(t *testing.T) {
	ts := stamps{}
	var items []catalog.Item
	var mappings []mapstore.Mapping
	for i := 1; i <= 5; i++ {
		local, remote := fmt.Sprintf("A%d", i), fmt.Sprintf("R%d", i)
		ts[local] = day(2020, 1, i)
		items = append(items, catalog.Item{ID: remote})
		mappings = append(mappings, mapstore.Mapping{LocalID: local, RemoteID: remote})
	}
	cat := newFakeCatalog(items...)
	cat.setErr["R3"] = errors.New("502 Bad Gateway: upstream closed connection")

	var seen []string
	s := &Synchronizer{
		Catalog:    cat,
		Timestamps: ts,
		Log:        quietLogger(),
		OnOutcome:  func(o Outcome) { seen = append(seen, o.Mapping.RemoteID) },
	}
	rep, err := s.Run(context.Background(), mappings)
	require.NoError(t, err)

	assert.Equal(t, []string{"R1", "R2", "R3", "R4", "R5"}, cat.setOrder)
	assert.Equal(t, []string{"R1", "R2", "R3", "R4", "R5"}, seen)
	assert.Equal(t, Failed, rep.Outcomes[2].Kind)
	assert.Contains(t, rep.Outcomes[2].Reason, "502 Bad Gateway")
	assert.Equal(t, 4, rep.Count(Updated))
}

func TestRunReadFailureIsIsolated(t *testing.T) {
	cat := newFakeCatalog(catalog.Item{ID: "R1"}, catalog.Item{ID: "R2"})
	cat.getErr["R1"] = errors.New("connection reset")
	s := &Synchronizer{Catalog: cat, Timestamps: stamps{"A1": day(2021, 1, 1), "A2": day(2021, 1, 2)}, Log: quietLogger()}

	rep, err := s.Run(context.Background(), []mapstore.Mapping{{LocalID: "A1", RemoteID: "R1"}, {LocalID: "A2", RemoteID: "R2"}})
	require.NoError(t, err)
	assert.Equal(t, Failed, rep.Outcomes[0].Kind)
	assert.Equal(t, Updated, rep.Outcomes[1].Kind)
}

func TestRunAbortsOnSchemaMismatch(t *testing.T) {
	cat := newFakeCatalog(catalog.Item{ID: "R1"}, catalog.Item{ID: "R3"})
	cat.getErr["R2"] = fmt.Errorf("%w: item R2 has none of the fields publishedAt", catalog.ErrSchemaMismatch)
	s := &Synchronizer{
		Catalog:    cat,
		Timestamps: stamps{"A1": day(2021, 1, 1), "A2": day(2021, 1, 2), "A3": day(2021, 1, 3)},
		Log:        quietLogger(),
	}

	rep, err := s.Run(context.Background(), []mapstore.Mapping{{LocalID: "A1", RemoteID: "R1"}, {LocalID: "A2", RemoteID: "R2"}, {LocalID: "A3", RemoteID: "R3"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrSchemaMismatch)
	assert.Len(t, rep.Outcomes, 1)
	assert.Equal(t, []string{"R1"}, cat.setOrder)
}

func TestRunDryRunDoesNotWrite(t *testing.T) {
	cat := newFakeCatalog(catalog.Item{ID: "R1"})
	s := &Synchronizer{Catalog: cat, Timestamps: stamps{"A1": day(2021, 5, 1)}, Log: quietLogger(), DryRun: true}

	rep, err := s.Run(context.Background(), []mapstore.Mapping{{LocalID: "A1", RemoteID: "R1"}})
	require.NoError(t, err)
	assert.Equal(t, WouldUpdate, rep.Outcomes[0].Kind)
	assert.Empty(t, cat.setOrder)
}

type slowCatalog struct{ fakeCatalog }

func (s *slowCatalog) Get(ctx context.Context, id string) (catalog.Item, error) {
	<-ctx.Done()
	return catalog.Item{}, ctx.Err()
}

func TestRunTimeoutIsFailedOutcome(t *testing.T) {
	s := &Synchronizer{
		Catalog:    &slowCatalog{*newFakeCatalog()},
		Timestamps: stamps{"A1": day(2021, 5, 1), "A2": day(2021, 5, 2)},
		Log:        quietLogger(),
		Timeout:    10 * time.Millisecond,
	}
	rep, err := s.Run(context.Background(), []mapstore.Mapping{{LocalID: "A1", RemoteID: "R1"}, {LocalID: "A2", RemoteID: "R2"}})
	require.NoError(t, err)
	require.Len(t, rep.Outcomes, 2)
	assert.Equal(t, Failed, rep.Outcomes[0].Kind)
	assert.Equal(t, Failed, rep.Outcomes[1].Kind)
}

// The archive, matcher, mapping store and synchronizer together.
func TestScenarioEndToEnd(t *testing.T) {
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "yt_downloads")
	require.NoError(t, os.Mkdir(archiveDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(archiveDir, "A1.info.json"),
		[]byte(`{"title":"My Trip 2021","upload_date":"20210501"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(archiveDir, "A2.info.json"),
		[]byte(`{"title":"Cooking Show Ep1","upload_date":"20210502"}`), 0o644))

	archive := localmeta.NewArchive(archiveDir, quietLogger())
	local, err := archive.Items()
	require.NoError(t, err)

	cat := newFakeCatalog(
		catalog.Item{ID: "R1", Title: "my trip 2021"},
		catalog.Item{ID: "R2", Title: "Cooking Show  Ep.1!"},
	)
	remote := []catalog.Item{cat.items["R1"], cat.items["R2"]}

	m, err := match.NewMatcher(match.DefaultConfig())
	require.NoError(t, err)
	store := mapstore.New(filepath.Join(dir, "uploaded-map.txt"), quietLogger())
	rec := &reconcile.Reconciler{Matcher: m, Store: store, Log: quietLogger()}

	res, err := rec.Run(context.Background(), remote, match.BuildIndex(local))
	require.NoError(t, err)
	assert.Equal(t, []mapstore.Mapping{{LocalID: "A1", RemoteID: "R1"}, {LocalID: "A2", RemoteID: "R2"}}, res.Mapped)

	tbl, err := store.Load()
	require.NoError(t, err)
	s := &Synchronizer{Catalog: cat, Timestamps: archive, Log: quietLogger()}
	rep, err := s.Run(context.Background(), tbl.Mappings())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Count(Updated))

	assert.Equal(t, "2021-05-01T00:00:00Z", catalog.FormatTimestamp(cat.writes["R1"]))
	assert.Equal(t, "2021-05-02T00:00:00Z", catalog.FormatTimestamp(cat.writes["R2"]))
}
