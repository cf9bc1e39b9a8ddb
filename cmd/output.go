package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Another0Noob/peertube-import/internal/catalog"
	"github.com/Another0Noob/peertube-import/internal/reconcile"
	syncer "github.com/Another0Noob/peertube-import/internal/sync"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, col := range rightAligned {
		configs = append(configs, table.ColumnConfig{Number: col, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// printUnmatched lists remote items that found no local partner: a table
// on a terminal, one tab separated line per item otherwise.
func printUnmatched(w io.Writer, items []reconcile.Unmatched) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%d PeerTube videos could not be matched:\n", len(items))

	rows := make([][]string, 0, len(items))
	for _, u := range items {
		rows = append(rows, []string{u.Remote.ShortUUID, u.Remote.UUID, u.Remote.Title, string(u.Match.Kind)})
	}
	if isTerminal(w) {
		fmt.Fprintln(w, renderTable([]string{"Short ID", "UUID", "Title", "Reason"}, rows))
		return
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r[0], r[1], r[2], r[3])
	}
}

func printConflicts(w io.Writer, conflicts []reconcile.Conflict) {
	for _, c := range conflicts {
		fmt.Fprintf(w, "Skipped %s (%q): %s is already mapped to %s\n", c.Remote.ID, c.Remote.Title, c.LocalID, c.ExistingRemote)
	}
}

func outcomeLine(o syncer.Outcome) string {
	line := fmt.Sprintf("%s %s -> %s", o.Kind, o.Mapping.LocalID, o.Mapping.RemoteID)
	if o.HasTarget && (o.Kind == syncer.Updated || o.Kind == syncer.WouldUpdate) {
		line += " " + catalog.FormatTimestamp(o.Target)
	}
	if o.Reason != "" {
		line += ": " + o.Reason
	}
	return line
}

var summaryKinds = []syncer.OutcomeKind{
	syncer.Updated,
	syncer.WouldUpdate,
	syncer.SkippedAlreadyCurrent,
	syncer.SkippedNoSourceTimestamp,
	syncer.SkippedRemoteMissing,
	syncer.Failed,
}

func printSyncSummary(w io.Writer, rep syncer.Report) {
	var rows [][]string
	for _, k := range summaryKinds {
		if n := rep.Count(k); n > 0 {
			rows = append(rows, []string{string(k), strconv.Itoa(n)})
		}
	}
	if len(rows) == 0 {
		return
	}
	if isTerminal(w) {
		fmt.Fprintln(w, renderTable([]string{"Outcome", "Count"}, rows, 2))
		return
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\n", r[0], r[1])
	}
}
