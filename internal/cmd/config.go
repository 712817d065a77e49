package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/reliquary/reliquary/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for viewing and managing configuration.`,
}

// configShowCmd shows the current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration",
	Long: `Display the currently loaded configuration with defaults applied.

Examples:
  reliquary config show              # Show parsed configuration in YAML format`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Redact sensitive fields for display
	for i, entry := range cfg.Auth {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) >= 2 {
			parts[1] = "***REDACTED***"
		}
		cfg.Auth[i] = strings.Join(parts, ":")
	}
	cfg.Database.URL = redactDatabaseURL(cfg.Database.URL)

	// Format output
	output, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	fmt.Fprintln(realStdout, string(output))
	return nil
}

// redactDatabaseURL hides the password of a connection URL.
func redactDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
	}
	return u.String()
}
