// Package pgcatalog reads and updates the PeerTube catalog directly in its
// database, bypassing the HTTP API.
package pgcatalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Another0Noob/peertube-import/internal/catalog"
	"github.com/Another0Noob/peertube-import/internal/logging"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	videoTable              = "video"
	defaultOperationTimeout = 30 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Options configures Open.
type Options struct {
	// Driver defaults to "postgres".
	Driver string
	DSN    string
	// DateColumns are candidate spellings of the publication column; the
	// first one the table has is used.
	DateColumns []string
	Timeout     time.Duration
	Log         logrus.FieldLogger

	openDB sqlOpenFunc
}

// Store is a catalog backed by the video table.
type Store struct {
	db       *sql.DB
	driver   string
	column   string
	hasShort bool
	timeout  time.Duration
	log      logrus.FieldLogger
}

// Open connects and resolves the timestamp column. A table with none of the
// candidate columns yields catalog.ErrSchemaMismatch.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, errors.New("database DSN is empty")
	}
	if opts.Driver == "" {
		opts.Driver = "postgres"
	}
	if opts.openDB == nil {
		opts.openDB = sql.Open
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultOperationTimeout
	}
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}

	db, err := opts.openDB(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{
		db:      db,
		driver:  opts.Driver,
		timeout: opts.Timeout,
		log:     opts.Log,
	}
	if err := s.resolveColumns(ctx, opts.DateColumns); err != nil {
		db.Close()
		return nil, err
	}
	s.log.WithField("column", s.column).Debug("resolved publication column")
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Column is the resolved publication column.
func (s *Store) Column() string { return s.column }

func (s *Store) resolveColumns(ctx context.Context, candidates []string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", quoteIdentifier(videoTable)))
	if err != nil {
		return fmt.Errorf("inspect %s table: %w", videoTable, err)
	}
	cols, err := rows.Columns()
	rows.Close()
	if err != nil {
		return fmt.Errorf("inspect %s table: %w", videoTable, err)
	}

	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	for _, required := range []string{"id", "uuid", "name"} {
		if !have[required] {
			return fmt.Errorf("%w: table %s has no column %s", catalog.ErrSchemaMismatch, videoTable, required)
		}
	}
	s.hasShort = have["short_uuid"]
	for _, c := range candidates {
		if have[c] {
			s.column = c
			return nil
		}
	}
	return fmt.Errorf("%w: table %s has none of the columns %s", catalog.ErrSchemaMismatch, videoTable, strings.Join(candidates, ", "))
}

func (s *Store) selectList() string {
	short := "NULL"
	if s.hasShort {
		short = "short_uuid"
	}
	return fmt.Sprintf("CAST(id AS TEXT), CAST(uuid AS TEXT), %s, name, %s", short, quoteIdentifier(s.column))
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanItem(row scanner) (catalog.Item, error) {
	var id, uid, short, name, ts sql.NullString
	if err := row.Scan(&id, &uid, &short, &name, &ts); err != nil {
		return catalog.Item{}, err
	}
	it := catalog.Item{
		Title:          name.String,
		ShortUUID:      short.String,
		UUID:           uid.String,
		NumericID:      id.String,
		TimestampField: s.column,
	}
	if it.ShortUUID == "" {
		if u, err := uuid.Parse(it.UUID); err == nil {
			it.ShortUUID = ShortFromUUID(u)
		}
	}
	it.ID = catalog.PickID(it.ShortUUID, it.UUID, it.NumericID)
	if ts.Valid {
		if t, ok := parseDBTime(ts.String); ok {
			it.Timestamp = t
			it.HasTimestamp = true
		}
	}
	return it, nil
}

// FetchAll returns every row of the video table.
func (s *Store) FetchAll(ctx context.Context) ([]catalog.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", s.selectList(), quoteIdentifier(videoTable))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		it, err := s.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list videos: %w", err)
		}
		if it.ID == "" {
			s.log.Warn("skipping video row without a usable id")
			continue
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return items, nil
}

// Get looks a row up by uuid, short uuid or numeric id.
func (s *Store) Get(ctx context.Context, remoteID string) (catalog.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	where, args := s.whereID(remoteID, 1)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT 1", s.selectList(), quoteIdentifier(videoTable), where)
	it, err := s.scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Item{}, fmt.Errorf("video %s: %w", remoteID, catalog.ErrNotFound)
	}
	if err != nil {
		return catalog.Item{}, fmt.Errorf("video %s: %w", remoteID, err)
	}
	return it, nil
}

// SetTimestamp updates the publication column of the addressed row.
func (s *Store) SetTimestamp(ctx context.Context, remoteID string, ts time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	where, args := s.whereID(remoteID, 2)
	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s",
		quoteIdentifier(videoTable), quoteIdentifier(s.column), s.placeholder(1), where)
	res, err := s.db.ExecContext(ctx, query, append([]any{catalog.FormatTimestamp(ts)}, args...)...)
	if err != nil {
		return fmt.Errorf("update video %s: %w", remoteID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("video %s: %w", remoteID, catalog.ErrNotFound)
	}
	return nil
}

// whereID builds the row filter with placeholders numbered from first.
func (s *Store) whereID(remoteID string, first int) (string, []any) {
	uid := remoteID
	if !s.hasShort {
		if u, ok := UUIDFromShort(remoteID); ok {
			if _, err := uuid.Parse(remoteID); err != nil {
				uid = u.String()
			}
		}
	}

	conds := []string{"CAST(uuid AS TEXT) = %s", "CAST(id AS TEXT) = %s"}
	args := []any{uid, remoteID}
	if s.hasShort {
		conds = append(conds, "short_uuid = %s")
		args = append(args, remoteID)
	}
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = fmt.Sprintf(c, s.placeholder(first+i))
	}
	return strings.Join(parts, " OR "), args
}

func (s *Store) placeholder(n int) string {
	if s.driver == "postgres" {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

var dbTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func parseDBTime(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range dbTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(identifier), `"`, `""`) + `"`
}

var (
	_ catalog.Source  = (*Store)(nil)
	_ catalog.Catalog = (*Store)(nil)
)
