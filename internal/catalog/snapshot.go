package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Another0Noob/peertube-import/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// DecodeList decodes a catalog listing given either as a bare array of
// video records or as a page object with a "data" array. Records that
// cannot be decoded are skipped and logged.
func DecodeList(data []byte, fields []string, log logrus.FieldLogger) ([]Item, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	doc := gjson.ParseBytes(data)
	switch {
	case doc.IsArray():
	case doc.IsObject():
		doc = doc.Get("data")
		if !doc.Exists() || doc.Type == gjson.Null {
			return nil, nil
		}
		if !doc.IsArray() {
			return nil, fmt.Errorf("%w: data is not an array", ErrMalformed)
		}
	default:
		return nil, fmt.Errorf("%w: expected array or object", ErrMalformed)
	}

	recs := doc.Array()
	items := make([]Item, 0, len(recs))
	for i, rec := range recs {
		it, err := DecodeItem(rec, fields)
		if err != nil {
			if log != nil {
				log.WithField("index", i).WithError(err).Warn("skipping remote record")
			}
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// Snapshot is a previously fetched catalog persisted as JSON.
type Snapshot struct {
	path   string
	fields []string
	log    logrus.FieldLogger
}

func NewSnapshot(path string, fields []string, log logrus.FieldLogger) *Snapshot {
	if log == nil {
		log = logging.Discard()
	}
	return &Snapshot{path: path, fields: fields, log: log}
}

func (s *Snapshot) Path() string { return s.path }

// FetchAll returns the snapshot contents; a missing file is an empty catalog.
func (s *Snapshot) FetchAll(ctx context.Context) ([]Item, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	items, err := DecodeList(data, s.fields, s.log)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return items, nil
}

// Save writes items as a bare array of PeerTube-shaped records, replacing
// the file atomically.
func (s *Snapshot) Save(items []Item) error {
	recs := make([]map[string]any, 0, len(items))
	for _, it := range items {
		rec := map[string]any{"name": it.Title}
		if it.ShortUUID != "" {
			rec["shortUUID"] = it.ShortUUID
		}
		if it.UUID != "" {
			rec["uuid"] = it.UUID
		}
		if n, err := strconv.ParseInt(it.NumericID, 10, 64); err == nil {
			rec["id"] = n
		} else if it.NumericID != "" {
			rec["id"] = it.NumericID
		}
		if it.ShortUUID == "" && it.UUID == "" && it.NumericID == "" {
			rec["shortUUID"] = it.ID
		}
		if it.TimestampField != "" {
			if it.HasTimestamp {
				rec[it.TimestampField] = FormatTimestamp(it.Timestamp)
			} else {
				rec[it.TimestampField] = nil
			}
		}
		recs = append(recs, rec)
	}

	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}

// CachingSource serves the snapshot when it has content, and otherwise
// fetches live and refreshes the snapshot.
type CachingSource struct {
	Snapshot *Snapshot
	Live     Source
	// Refresh skips the snapshot read.
	Refresh bool
	Log     logrus.FieldLogger
}

func (c *CachingSource) FetchAll(ctx context.Context) ([]Item, error) {
	log := c.Log
	if log == nil {
		log = logging.Discard()
	}

	if !c.Refresh && c.Snapshot != nil {
		items, err := c.Snapshot.FetchAll(ctx)
		switch {
		case err != nil:
			log.WithError(err).Warn("ignoring unreadable snapshot")
		case len(items) > 0:
			log.WithField("path", c.Snapshot.Path()).Infof("using cached catalog (%d items)", len(items))
			return items, nil
		}
	}

	if c.Live == nil {
		return nil, errors.New("no cached catalog and no remote configured")
	}
	items, err := c.Live.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if c.Snapshot != nil {
		if err := c.Snapshot.Save(items); err != nil {
			log.WithError(err).Warn("could not write snapshot")
		}
	}
	return items, nil
}
