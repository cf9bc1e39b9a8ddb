package mapstore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Another0Noob/peertube-import/internal/logging"
	"github.com/sirupsen/logrus"
)

// Mapping pairs one local item with one remote item.
type Mapping struct {
	LocalID  string
	RemoteID string
}

// Table is the in-memory view of the store, in file order.
type Table struct {
	byLocal  map[string]string
	byRemote map[string]string
	order    []Mapping
}

func NewTable() *Table {
	return &Table{
		byLocal:  make(map[string]string),
		byRemote: make(map[string]string),
	}
}

func (t *Table) Contains(localID string) bool {
	_, ok := t.byLocal[localID]
	return ok
}

func (t *Table) HasRemote(remoteID string) bool {
	_, ok := t.byRemote[remoteID]
	return ok
}

// RemoteFor returns the remote id mapped from localID.
func (t *Table) RemoteFor(localID string) (string, bool) {
	r, ok := t.byLocal[localID]
	return r, ok
}

// Mappings returns pairs in the order they were first recorded. A local id
// that appears on several lines (hand edits) keeps its first pair.
func (t *Table) Mappings() []Mapping {
	out := make([]Mapping, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Table) Len() int { return len(t.order) }

func (t *Table) add(localID, remoteID string) {
	if _, dup := t.byLocal[localID]; dup {
		return
	}
	t.byLocal[localID] = remoteID
	if _, ok := t.byRemote[remoteID]; !ok {
		t.byRemote[remoteID] = localID
	}
	t.order = append(t.order, Mapping{LocalID: localID, RemoteID: remoteID})
}

// Store is the append-only "<local_id> <remote_id>" line file. It does not
// reject duplicates; callers check the Table before appending.
type Store struct {
	path string
	lock *Lock
	log  logrus.FieldLogger
}

func New(path string, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	return &Store{path: path, lock: NewLock(path), log: log}
}

func (s *Store) Path() string { return s.path }

// Load parses the store. A missing file is an empty table; lines that do
// not split into exactly two fields are skipped.
func (s *Store) Load() (*Table, error) {
	t := NewTable()
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open map file %s: %w", s.path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		parts := strings.Fields(sc.Text())
		if len(parts) != 2 {
			if len(parts) > 0 {
				s.log.WithField("line", lineNo).Warnf("skipping map line with %d fields", len(parts))
			}
			continue
		}
		if t.Contains(parts[0]) {
			s.log.WithField("line", lineNo).WithField("local_id", parts[0]).Warn("duplicate mapping, keeping the first")
		}
		t.add(parts[0], parts[1])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read map file %s: %w", s.path, err)
	}
	return t, nil
}

// Append durably adds one pair and records it in t when t is not nil.
func (s *Store) Append(t *Table, localID, remoteID string) error {
	if strings.ContainsAny(localID, " \t\r\n") || strings.ContainsAny(remoteID, " \t\r\n") || localID == "" || remoteID == "" {
		return fmt.Errorf("invalid mapping %q -> %q", localID, remoteID)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open map file %s: %w", s.path, err)
	}
	if _, err := fmt.Fprintf(f, "%s %s\n", localID, remoteID); err != nil {
		f.Close()
		return fmt.Errorf("append to %s: %w", s.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	if t != nil {
		t.add(localID, remoteID)
	}
	return nil
}

// Lock takes the advisory lock guarding load-then-append across processes.
func (s *Store) Lock() error { return s.lock.Lock(s.log) }

func (s *Store) Unlock() error { return s.lock.Unlock() }
