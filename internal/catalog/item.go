package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

var (
	ErrNotFound = errors.New("remote item not found")
	// ErrSchemaMismatch means the remote exposes none of the configured
	// timestamp spellings. There is no safe partial behavior for it.
	ErrSchemaMismatch = errors.New("remote schema mismatch")
	ErrMalformed      = errors.New("malformed remote record")
)

// Item is the live or snapshotted state of one remote video.
type Item struct {
	ID        string
	Title     string
	ShortUUID string
	UUID      string
	NumericID string

	// Timestamp is the current publication value, valid when HasTimestamp.
	Timestamp    time.Time
	HasTimestamp bool
	// TimestampField is the spelling the record carried, empty when the
	// record had none of the configured spellings.
	TimestampField string
}

// Source yields the full remote catalog, live or from a snapshot.
type Source interface {
	FetchAll(ctx context.Context) ([]Item, error)
}

// Catalog reads and updates single remote items.
type Catalog interface {
	// Get returns ErrNotFound when the remote has no such item.
	Get(ctx context.Context, remoteID string) (Item, error)
	SetTimestamp(ctx context.Context, remoteID string, ts time.Time) error
}

// PickID chooses the stable remote id: the short public id, then the long
// internal UUID, then the numeric id.
func PickID(shortID, longID, numericID string) string {
	if s := strings.TrimSpace(shortID); s != "" {
		return s
	}
	if u, err := uuid.Parse(strings.TrimSpace(longID)); err == nil {
		return u.String()
	}
	n := strings.TrimSpace(numericID)
	if n == "0" {
		return ""
	}
	return n
}

// DecodeItem resolves one PeerTube video record. The first of fields
// present on the record (even when null) names the timestamp spelling.
func DecodeItem(rec gjson.Result, fields []string) (Item, error) {
	if !rec.IsObject() {
		return Item{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	it := Item{
		Title:     rec.Get("name").String(),
		ShortUUID: rec.Get("shortUUID").String(),
		UUID:      rec.Get("uuid").String(),
		NumericID: rec.Get("id").String(),
	}
	it.ID = PickID(it.ShortUUID, it.UUID, it.NumericID)
	if it.ID == "" {
		return Item{}, fmt.Errorf("%w: no usable id", ErrMalformed)
	}

	for _, f := range fields {
		v := rec.Get(gjsonEscape(f))
		if !v.Exists() {
			continue
		}
		it.TimestampField = f
		if ts, ok := ParseTimestamp(v.String()); ok && v.Type == gjson.String {
			it.Timestamp = ts
			it.HasTimestamp = true
		}
		break
	}
	return it, nil
}

// RequireTimestampField turns a record without any known spelling into a
// schema mismatch.
func RequireTimestampField(it Item, fields []string) error {
	if it.TimestampField == "" {
		return fmt.Errorf("%w: item %s has none of the fields %s", ErrSchemaMismatch, it.ID, strings.Join(fields, ", "))
	}
	return nil
}

// ParseTimestamp accepts RFC 3339 values and returns them in UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// SameSecond compares two instants at whole-second precision in UTC.
func SameSecond(a, b time.Time) bool {
	return a.UTC().Truncate(time.Second).Equal(b.UTC().Truncate(time.Second))
}

// FormatTimestamp renders the value written to the remote: UTC, second
// precision, explicit Z.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func gjsonEscape(path string) string {
	return strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`).Replace(path)
}
