// Package reconcile pairs unmapped remote items with local items and
// records the new pairs in the mapping store.
package reconcile

import (
	"context"
	"fmt"

	"github.com/Another0Noob/peertube-import/internal/catalog"
	"github.com/Another0Noob/peertube-import/internal/logging"
	"github.com/Another0Noob/peertube-import/internal/mapstore"
	"github.com/Another0Noob/peertube-import/internal/match"
	"github.com/sirupsen/logrus"
)

// Unmatched is a remote item that found no local partner.
type Unmatched struct {
	Remote catalog.Item
	Match  match.Result
}

// Conflict is a remote item whose best local match already belongs to a
// different remote item. It is left unmapped.
type Conflict struct {
	Remote         catalog.Item
	LocalID        string
	ExistingRemote string
}

type Result struct {
	Mapped        []mapstore.Mapping
	Unmatched     []Unmatched
	Conflicts     []Conflict
	AlreadyMapped int
}

type Reconciler struct {
	Matcher *match.Matcher
	Store   *mapstore.Store
	Log     logrus.FieldLogger
}

// Run matches every remote item not yet in the store against idx. The
// store lock is held for the whole load-match-append sequence.
func (r *Reconciler) Run(ctx context.Context, remote []catalog.Item, idx *match.TitleIndex) (Result, error) {
	log := r.Log
	if log == nil {
		log = logging.Discard()
	}
	var res Result

	if err := r.Store.Lock(); err != nil {
		return res, err
	}
	defer func() {
		if err := r.Store.Unlock(); err != nil {
			log.WithError(err).Warn("could not release map file lock")
		}
	}()

	table, err := r.Store.Load()
	if err != nil {
		return res, fmt.Errorf("load mappings: %w", err)
	}

	for _, it := range remote {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if alreadyMapped(table, it) {
			res.AlreadyMapped++
			continue
		}

		m := r.Matcher.Match(it.Title, idx)
		entry := log.WithField("remote_id", it.ID).WithField("kind", m.Kind)
		if !m.Matched() {
			entry.WithField("title", it.Title).Debug("no local match")
			res.Unmatched = append(res.Unmatched, Unmatched{Remote: it, Match: m})
			continue
		}

		if existing, ok := table.RemoteFor(m.LocalID); ok {
			entry.WithField("local_id", m.LocalID).Warnf("local item already mapped to %s", existing)
			res.Conflicts = append(res.Conflicts, Conflict{Remote: it, LocalID: m.LocalID, ExistingRemote: existing})
			continue
		}

		if err := r.Store.Append(table, m.LocalID, it.ID); err != nil {
			return res, fmt.Errorf("record mapping: %w", err)
		}
		entry.WithField("local_id", m.LocalID).WithField("score", m.Score).Debug("mapped")
		res.Mapped = append(res.Mapped, mapstore.Mapping{LocalID: m.LocalID, RemoteID: it.ID})
	}
	return res, nil
}

// alreadyMapped checks every id the remote item is known by, so map files
// keyed by uuid or numeric id are recognized as well as short ids.
func alreadyMapped(table *mapstore.Table, it catalog.Item) bool {
	for _, id := range []string{it.ID, it.ShortUUID, it.UUID, it.NumericID} {
		if id != "" && table.HasRemote(id) {
			return true
		}
	}
	return false
}
