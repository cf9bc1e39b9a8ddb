package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/Another0Noob/peertube-import/internal/catalog"
	"github.com/Another0Noob/peertube-import/internal/config"
	"github.com/Another0Noob/peertube-import/internal/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	viaAPI = "api"
	viaDB  = "db"
)

var (
	cfgFile  string
	logLevel string
	via      string

	refresh   bool
	threshold float64
	metric    string
	dryRun    bool
)

var rootCmd = &cobra.Command{
	Use:   "peertube-import",
	Short: "Match a yt-dlp archive to a PeerTube instance and fix publication dates",
	Long: `peertube-import pairs videos downloaded with yt-dlp with the copies uploaded
to a PeerTube instance by comparing titles, records every pair in a mapping
file, and then sets each PeerTube video's publication date to the date the
original was published.

Without a subcommand it runs match and then sync.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		if err := runMatch(cmd.Context(), a); err != nil {
			return err
		}
		return runSync(cmd.Context(), a)
	},
}

// Execute runs the root command. A remote schema mismatch exits with 2,
// every other failure with 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	if errors.Is(err, catalog.ErrSchemaMismatch) {
		os.Exit(2)
	}
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", ".env", "path to settings file (.env style or .toml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "loglevel", "l", "info", "Set log level. Available: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&via, "via", viaAPI, "remote transport: api or db")

	addMatchFlags(rootCmd)
	addSyncFlags(rootCmd)
}

func addMatchFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the cached catalog snapshot and fetch live")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum title similarity for a fuzzy match (default from settings)")
	cmd.Flags().StringVar(&metric, "metric", "", "title similarity metric: ratio or levenshtein (default from settings)")
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be updated without writing")
}

// app is the per-run state shared by the subcommands.
type app struct {
	settings config.Settings
	log      *logrus.Entry
}

func setup(cmd *cobra.Command) (*app, error) {
	logger, err := logging.New(logLevel)
	if err != nil {
		return nil, err
	}

	settings, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if f := cmd.Flags().Lookup("threshold"); f != nil && f.Changed {
		settings.Threshold = threshold
	}
	if f := cmd.Flags().Lookup("metric"); f != nil && f.Changed {
		settings.Metric = metric
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if via != viaAPI && via != viaDB {
		return nil, fmt.Errorf("unknown transport %q, expected %s or %s", via, viaAPI, viaDB)
	}

	runID := uuid.NewString()
	return &app{
		settings: settings,
		log:      logger.WithField("run", runID[:8]),
	}, nil
}
