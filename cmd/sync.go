package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/Another0Noob/peertube-import/internal/localmeta"
	"github.com/Another0Noob/peertube-import/internal/mapstore"
	syncer "github.com/Another0Noob/peertube-import/internal/sync"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Set PeerTube publication dates from the archive",
	Long: `sync walks the mapping file and, for every pair, sets the PeerTube video's
publication date to the upload date recorded in the archived info.json.

Videos that already carry the right date are not written. A failure on one
video is reported and the remaining videos are still processed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		return runSync(cmd.Context(), a)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	addSyncFlags(syncCmd)
}

func runSync(ctx context.Context, a *app) error {
	fmt.Println("--- Synchronizing Publication Dates ---")

	table, err := mapstore.New(a.settings.MapFile, a.log).Load()
	if err != nil {
		return fmt.Errorf("load mappings: %w", err)
	}
	mappings := table.Mappings()
	fmt.Printf("Got %d mappings.\n", len(mappings))

	cat, closeCatalog, err := remoteCatalog(ctx, a)
	if err != nil {
		return err
	}
	defer closeCatalog()

	s := &syncer.Synchronizer{
		Catalog:    cat,
		Timestamps: localmeta.NewArchive(a.settings.DownloadDir, a.log),
		Log:        a.log,
		Timeout:    a.settings.RequestTimeout,
		DryRun:     dryRun,
		OnOutcome: func(o syncer.Outcome) {
			fmt.Println(outcomeLine(o))
		},
	}
	rep, err := s.Run(ctx, mappings)
	printSyncSummary(os.Stdout, rep)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if dryRun {
		fmt.Println("Dry run, nothing was written.")
		return nil
	}
	fmt.Println("Publication dates updated.")
	return nil
}
