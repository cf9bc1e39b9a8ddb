package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/Another0Noob/peertube-import/internal/localmeta"
	"github.com/Another0Noob/peertube-import/internal/mapstore"
	"github.com/Another0Noob/peertube-import/internal/match"
	"github.com/Another0Noob/peertube-import/internal/reconcile"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Pair PeerTube videos with archived videos and record new pairs",
	Long: `match reads the yt-dlp archive, lists the PeerTube catalog (from the snapshot
file when it has content, otherwise live), and appends a line to the mapping
file for every PeerTube video whose title matches an archived video.

Videos that are already in the mapping file are left alone, so running
match again with the same data adds nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		return runMatch(cmd.Context(), a)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	addMatchFlags(matchCmd)
}

func runMatch(ctx context.Context, a *app) error {
	fmt.Println("--- Reading Local Archive ---")

	archive := localmeta.NewArchive(a.settings.DownloadDir, a.log)
	local, err := archive.Items()
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	idx := match.BuildIndex(local)

	fmt.Printf("Got %d local videos.\n", len(local))
	if len(idx.Skipped) > 0 {
		a.log.Debugf("%d local videos have no usable title", len(idx.Skipped))
	}

	fmt.Println("--- Requesting PeerTube Videos ---")

	source, closeSource, err := remoteSource(ctx, a)
	if err != nil {
		return err
	}
	defer closeSource()

	remote, err := source.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}

	fmt.Printf("Got %d PeerTube videos.\n", len(remote))

	fmt.Println("--- Matching Videos ---")

	matcher, err := match.NewMatcher(match.Config{Threshold: a.settings.Threshold, Metric: a.settings.Metric})
	if err != nil {
		return fmt.Errorf("matcher: %w", err)
	}
	rec := &reconcile.Reconciler{
		Matcher: matcher,
		Store:   mapstore.New(a.settings.MapFile, a.log),
		Log:     a.log,
	}
	res, err := rec.Run(ctx, remote, idx)
	for _, m := range res.Mapped {
		fmt.Printf("Mapped %s -> %s\n", m.LocalID, m.RemoteID)
	}
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}

	if len(res.Mapped) == 0 {
		fmt.Println("No new videos were added.")
	}
	if res.AlreadyMapped > 0 {
		fmt.Printf("%d PeerTube videos were already mapped.\n", res.AlreadyMapped)
	}
	printConflicts(os.Stdout, res.Conflicts)
	printUnmatched(os.Stdout, res.Unmatched)

	return nil
}
