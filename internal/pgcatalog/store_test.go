package pgcatalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Another0Noob/peertube-import/internal/catalog"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const (
	uuidA = "9c9de5e8-0a1e-484a-b099-e80766180a6d"
	uuidB = "0b7a3c2e-5d44-4f7a-9d3b-2f1f0c6e8a11"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// openSQLite builds a throwaway video table and opens a Store over it.
func openSQLite(t *testing.T, schema string, rows ...string) (*Store, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peertube.db")

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { raw.Close() })

	_, err = raw.Exec(schema)
	require.NoError(t, err)
	for _, r := range rows {
		_, err = raw.Exec(r)
		require.NoError(t, err)
	}

	s, err := Open(context.Background(), Options{
		Driver:      "sqlite",
		DSN:         path,
		DateColumns: []string{"published_at", "publishedAt", "originallyPublishedAt"},
		Timeout:     5 * time.Second,
		Log:         quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, raw
}

const schemaWithShort = `CREATE TABLE video (
	id INTEGER PRIMARY KEY,
	uuid TEXT NOT NULL,
	short_uuid TEXT,
	name TEXT NOT NULL,
	published_at TEXT
)`

func TestFetchAllAndGet(t *testing.T) {
	s, _ := openSQLite(t, schemaWithShort,
		`INSERT INTO video VALUES (1, '`+uuidA+`', 'shortA', 'First', '2021-05-01T00:00:00Z')`,
		`INSERT INTO video VALUES (2, '`+uuidB+`', NULL, 'Second', NULL)`,
	)
	ctx := context.Background()
	assert.Equal(t, "published_at", s.Column())

	items, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "shortA", items[0].ID)
	assert.Equal(t, "First", items[0].Title)
	assert.True(t, items[0].HasTimestamp)
	assert.Equal(t, "2021-05-01T00:00:00Z", catalog.FormatTimestamp(items[0].Timestamp))
	assert.False(t, items[1].HasTimestamp)
	assert.Equal(t, ShortFromUUID(uuid.MustParse(uuidB)), items[1].ID)

	for _, id := range []string{"shortA", uuidA, "1"} {
		it, err := s.Get(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, "First", it.Title, id)
	}

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSetTimestamp(t *testing.T) {
	s, raw := openSQLite(t, schemaWithShort,
		`INSERT INTO video VALUES (7, '`+uuidA+`', 'shortA', 'Seven', NULL)`,
	)
	ctx := context.Background()
	ts := time.Date(2019, 3, 2, 12, 30, 0, 0, time.FixedZone("X", -5*3600))

	require.NoError(t, s.SetTimestamp(ctx, "shortA", ts))

	var stored string
	require.NoError(t, raw.QueryRow(`SELECT published_at FROM video WHERE id = 7`).Scan(&stored))
	assert.Equal(t, "2019-03-02T17:30:00Z", stored)

	it, err := s.Get(ctx, "7")
	require.NoError(t, err)
	assert.True(t, catalog.SameSecond(ts, it.Timestamp))

	err = s.SetTimestamp(ctx, "nope", ts)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestTableWithoutShortColumnResolvesShortIDs(t *testing.T) {
	s, _ := openSQLite(t, `CREATE TABLE video (
		id INTEGER PRIMARY KEY,
		uuid TEXT NOT NULL,
		name TEXT NOT NULL,
		"originallyPublishedAt" TEXT
	)`,
		`INSERT INTO video VALUES (3, '`+uuidA+`', 'Three', '2020-01-01 00:00:00+00:00')`,
	)
	ctx := context.Background()
	assert.Equal(t, "originallyPublishedAt", s.Column())

	short := ShortFromUUID(uuid.MustParse(uuidA))
	it, err := s.Get(ctx, short)
	require.NoError(t, err)
	assert.Equal(t, short, it.ID)
	assert.Equal(t, "2020-01-01T00:00:00Z", catalog.FormatTimestamp(it.Timestamp))

	require.NoError(t, s.SetTimestamp(ctx, short, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestOpenSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peertube.db")
	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE video (id INTEGER PRIMARY KEY, uuid TEXT, name TEXT, created_at TEXT)`)
	require.NoError(t, err)
	raw.Close()

	_, err = Open(context.Background(), Options{
		Driver:      "sqlite",
		DSN:         path,
		DateColumns: []string{"published_at"},
		Log:         quietLogger(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrSchemaMismatch)
	assert.True(t, strings.Contains(err.Error(), "published_at"))
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	assert.Error(t, err)
}

func TestShortUUIDRoundTrip(t *testing.T) {
	assert.Equal(t, strings.Repeat("1", 22), ShortFromUUID(uuid.UUID{}))

	var one uuid.UUID
	one[15] = 1
	assert.Equal(t, strings.Repeat("1", 21)+"2", ShortFromUUID(one))

	for _, s := range []string{uuidA, uuidB, "ffffffff-ffff-ffff-ffff-ffffffffffff"} {
		u := uuid.MustParse(s)
		short := ShortFromUUID(u)
		assert.Len(t, short, 22)
		back, ok := UUIDFromShort(short)
		require.True(t, ok)
		assert.Equal(t, u, back)
	}

	_, ok := UUIDFromShort("0OIl")
	assert.False(t, ok)
}
