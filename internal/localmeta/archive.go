package localmeta

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Another0Noob/peertube-import/internal/logging"
	"github.com/sirupsen/logrus"
)

// Archive reads item metadata from a yt-dlp download directory.
type Archive struct {
	dir string
	log logrus.FieldLogger
}

func NewArchive(dir string, log logrus.FieldLogger) *Archive {
	if log == nil {
		log = logging.Discard()
	}
	return &Archive{dir: dir, log: log}
}

func (a *Archive) Dir() string { return a.dir }

// Items returns every readable item with a title, in file name order.
// Unreadable or untitled records are skipped and logged; only a failure to
// list the directory itself is returned.
func (a *Archive) Items() ([]Item, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("read download dir %s: %w", a.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), InfoSuffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	items := make([]Item, 0, len(names))
	for _, name := range names {
		id := strings.TrimSuffix(name, InfoSuffix)
		it, err := a.read(id)
		if err != nil {
			entry := a.log.WithField("local_id", id).WithError(err)
			if errors.Is(err, ErrNoTitle) {
				entry.Debug("skipping untitled record")
			} else {
				entry.Warn("skipping unreadable record")
			}
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// Published looks up the authoritative publication time of one item.
func (a *Archive) Published(localID string) (time.Time, bool) {
	it, err := a.read(localID)
	if err != nil && !errors.Is(err, ErrNoTitle) {
		if !errors.Is(err, os.ErrNotExist) {
			a.log.WithField("local_id", localID).WithError(err).Warn("cannot read record")
		}
		return time.Time{}, false
	}
	return it.Published, it.HasPublished
}

func (a *Archive) read(id string) (Item, error) {
	f, err := os.Open(filepath.Join(a.dir, id+InfoSuffix))
	if err != nil {
		return Item{}, err
	}
	defer f.Close()
	return ParseInfoReader(id, f)
}
