package cmd

import (
	"context"
	"fmt"

	"github.com/Another0Noob/peertube-import/internal/catalog"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Fetch the PeerTube catalog and write the snapshot file",
	Long: `export lists every video on the PeerTube instance (or in its database with
--via db) and writes the result to the snapshot file named by
PEERTUBE_VIDEOS_JSON. match reads that file instead of the API while it has
content.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		return runExport(cmd.Context(), a)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(ctx context.Context, a *app) error {
	var (
		source catalog.Source
		err    error
	)
	if via == viaDB {
		store, err := openDatabase(ctx, a)
		if err != nil {
			return err
		}
		defer store.Close()
		source = store
	} else {
		source, err = newAPIClient(ctx, a)
		if err != nil {
			return err
		}
	}

	fmt.Println("--- Requesting PeerTube Videos ---")

	items, err := source.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}

	fmt.Printf("Got %d PeerTube videos.\n", len(items))

	snap := catalog.NewSnapshot(a.settings.SnapshotFile, a.settings.DateFields, a.log)
	if err := snap.Save(items); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	fmt.Printf("Wrote %s.\n", snap.Path())
	return nil
}
