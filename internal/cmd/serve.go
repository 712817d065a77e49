package cmd

import (
	"fmt"

	"github.com/reliquary/reliquary/internal/app"
	"github.com/reliquary/reliquary/internal/config"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reliquary HTTP API",
	Long: `Serve the reliquary HTTP API.

All protocol surfaces live under /api/v1/: the raw upload/download API,
autoindex pages, the Python simple index, the CommonJS registry and the
Debian repository layout. Uploads require one of the configured
credentials; reads are open.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Initialize application
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Shutdown()

	// Execute serve
	return application.Serve(ctx)
}
