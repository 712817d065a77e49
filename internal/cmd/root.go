package cmd

import (
	"context"
	"os"

	"github.com/reliquary/reliquary/internal/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	verbose    bool
	realStdout *os.File // Real stdout saved before redirection
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reliquary",
	Short: "Multi-protocol artifact repository",
	Long: `reliquary stores artifact files in a channel/index tree and serves them
through several protocol surfaces: a raw upload/download API, nginx style
autoindex pages, a PEP-503 Python simple index, a CommonJS registry and a
Debian repository layout, with optional proxying of upstream registries.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Save the real stdout before redirecting
		realStdout = os.Stdout

		// Redirect os.Stdout to discard to suppress unwanted library output (e.g., aptly's fmt.Printf)
		os.Stdout, _ = os.Open(os.DevNull)

		// Configure logging based on verbose flag
		log.Setup(realStdout, verbose)

		// Set Cobra's output to real stdout (not redirected)
		cmd.SetOut(realStdout)
		cmd.SetErr(realStdout)
	},
}

// ExecuteContext runs the root command with context
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/reliquary/config.yaml or /etc/reliquary/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
