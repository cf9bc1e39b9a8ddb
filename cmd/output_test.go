package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/Another0Noob/peertube-import/internal/catalog"
	"github.com/Another0Noob/peertube-import/internal/mapstore"
	"github.com/Another0Noob/peertube-import/internal/match"
	"github.com/Another0Noob/peertube-import/internal/reconcile"
	syncer "github.com/Another0Noob/peertube-import/internal/sync"
	"github.com/stretchr/testify/assert"
)

func TestPrintUnmatchedPlain(t *testing.T) {
	var buf bytes.Buffer
	printUnmatched(&buf, []reconcile.Unmatched{
		{Remote: catalog.Item{ID: "abc", ShortUUID: "abc", UUID: "9c9de5e8-0a1e-484a-b099-e80766180a6d", Title: "Lost video"}, Match: match.Result{Kind: match.KindNone}},
		{Remote: catalog.Item{ID: "7", NumericID: "7", Title: "Twin"}, Match: match.Result{Kind: match.KindAmbiguous}},
	})
	assert.Equal(t,
		"2 PeerTube videos could not be matched:\n"+
			"abc\t9c9de5e8-0a1e-484a-b099-e80766180a6d\tLost video\tno_match\n"+
			"\t\tTwin\tambiguous\n",
		buf.String())

	buf.Reset()
	printUnmatched(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestOutcomeLine(t *testing.T) {
	m := mapstore.Mapping{LocalID: "A1", RemoteID: "R1"}
	ts := time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "updated A1 -> R1 2021-05-01T00:00:00Z",
		outcomeLine(syncer.Outcome{Mapping: m, Kind: syncer.Updated, Target: ts, HasTarget: true}))
	assert.Equal(t, "skipped-already-current A1 -> R1",
		outcomeLine(syncer.Outcome{Mapping: m, Kind: syncer.SkippedAlreadyCurrent, Target: ts, HasTarget: true}))
	assert.Equal(t, "failed A1 -> R1: 500 Internal Server Error: boom",
		outcomeLine(syncer.Outcome{Mapping: m, Kind: syncer.Failed, Reason: "500 Internal Server Error: boom"}))
}

func TestPrintSyncSummaryPlain(t *testing.T) {
	var buf bytes.Buffer
	printSyncSummary(&buf, syncer.Report{Outcomes: []syncer.Outcome{
		{Kind: syncer.Updated}, {Kind: syncer.Updated}, {Kind: syncer.Failed},
	}})
	assert.Equal(t, "updated\t2\nfailed\t1\n", buf.String())
}
