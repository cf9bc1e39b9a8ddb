package sync

import (
	"time"

	"github.com/Another0Noob/peertube-import/internal/mapstore"
)

type OutcomeKind string

const (
	Updated                  OutcomeKind = "updated"
	WouldUpdate              OutcomeKind = "would-update"
	SkippedAlreadyCurrent    OutcomeKind = "skipped-already-current"
	SkippedNoSourceTimestamp OutcomeKind = "skipped-no-source-timestamp"
	SkippedRemoteMissing     OutcomeKind = "skipped-remote-missing"
	Failed                   OutcomeKind = "failed"
)

// Outcome is the result of synchronizing one mapping.
type Outcome struct {
	Mapping mapstore.Mapping
	Kind    OutcomeKind
	// Target is the local timestamp pushed (or that would be pushed).
	Target    time.Time
	HasTarget bool
	Reason    string
}

// Report collects outcomes in mapping order.
type Report struct {
	Outcomes []Outcome
}

// Count returns how many outcomes have kind k.
func (r Report) Count(k OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == k {
			n++
		}
	}
	return n
}

// Timestamps looks up the local publication instant of an item.
type Timestamps interface {
	Published(localID string) (time.Time, bool)
}
