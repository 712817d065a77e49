package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/reliquary/reliquary/internal/app"
	"github.com/reliquary/reliquary/internal/config"
	"github.com/spf13/cobra"
)

var watchChanges bool

// reindexCmd represents the reindex command
var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Sweep the storage tree into the catalog",
	Long: `Sweep the storage tree into the catalog.

Every channel, index and relic on disk is upserted, control metadata is
extracted from Debian packages, catalog entries without a backing file are
removed and the Debian package indices are regenerated. With --watch the
sweep reruns whenever the tree changes.`,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVarP(&watchChanges, "watch", "w", false, "keep watching the storage tree and resweep on changes")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := config.Load(cfgFile)
	if err != nil {
		// A missing config file is an operator mistake, distinguished from
		// runtime failures by exit code for cron and init scripts.
		if errors.Is(err, fs.ErrNotExist) {
			cmd.PrintErrln("config file not found")
			os.Exit(2)
		}
		return err
	}

	// Initialize application
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Shutdown()

	// Execute reindex
	return application.Reindex(ctx, watchChanges)
}
