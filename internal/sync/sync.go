// Package sync pushes local publication timestamps to mapped remote items.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Another0Noob/peertube-import/internal/catalog"
	"github.com/Another0Noob/peertube-import/internal/logging"
	"github.com/Another0Noob/peertube-import/internal/mapstore"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 30 * time.Second

type Synchronizer struct {
	Catalog    catalog.Catalog
	Timestamps Timestamps
	Log        logrus.FieldLogger
	// Timeout bounds the read and write of a single mapping.
	Timeout time.Duration
	DryRun  bool
	// OnOutcome, when set, is called after each mapping is processed.
	OnOutcome func(Outcome)
}

// Run processes mappings one at a time. A failed mapping never stops the
// ones after it; only a schema mismatch aborts the run, returning the
// outcomes gathered so far.
func (s *Synchronizer) Run(ctx context.Context, mappings []mapstore.Mapping) (Report, error) {
	var rep Report
	for _, m := range mappings {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		o, err := s.syncOne(ctx, m)
		if err != nil {
			return rep, err
		}
		rep.Outcomes = append(rep.Outcomes, o)
		if s.OnOutcome != nil {
			s.OnOutcome(o)
		}
	}
	return rep, nil
}

func (s *Synchronizer) syncOne(ctx context.Context, m mapstore.Mapping) (Outcome, error) {
	log := s.logger().WithField("local_id", m.LocalID).WithField("remote_id", m.RemoteID)
	o := Outcome{Mapping: m}

	target, ok := s.Timestamps.Published(m.LocalID)
	if !ok {
		o.Kind = SkippedNoSourceTimestamp
		log.Debug("no local publication date")
		return o, nil
	}
	o.Target = target.UTC().Truncate(time.Second)
	o.HasTarget = true

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	current, err := s.Catalog.Get(ctx, m.RemoteID)
	switch {
	case errors.Is(err, catalog.ErrSchemaMismatch):
		return o, fmt.Errorf("read %s: %w", m.RemoteID, err)
	case errors.Is(err, catalog.ErrNotFound):
		o.Kind = SkippedRemoteMissing
		log.Info("remote item no longer exists")
		return o, nil
	case err != nil:
		o.Kind = Failed
		o.Reason = err.Error()
		log.WithError(err).Warn("could not read remote item")
		return o, nil
	}

	if current.HasTimestamp && catalog.SameSecond(current.Timestamp, o.Target) {
		o.Kind = SkippedAlreadyCurrent
		log.Debug("already current")
		return o, nil
	}

	if s.DryRun {
		o.Kind = WouldUpdate
		return o, nil
	}
	if err := s.Catalog.SetTimestamp(ctx, m.RemoteID, o.Target); err != nil {
		o.Kind = Failed
		o.Reason = err.Error()
		log.WithError(err).Warn("could not update remote item")
		return o, nil
	}
	o.Kind = Updated
	log.WithField("published", catalog.FormatTimestamp(o.Target)).Info("updated")
	return o, nil
}

func (s *Synchronizer) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logging.Discard()
	}
	return s.Log
}
