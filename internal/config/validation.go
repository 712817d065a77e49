package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Validation errors
var (
	ErrLocationEmpty    = errors.New("storage location is required")
	ErrLocationRelative = errors.New("storage location must be an absolute path")
	ErrDatabaseEmpty    = errors.New("database url is required")
	ErrAuthInvalid      = errors.New("auth entry must be user:password or user:password:groups")
	ErrFrontendInvalid  = errors.New("xsendfile frontend must be either 'apache' or 'nginx'")
	ErrPortInvalid      = errors.New("serve port must be between 1 and 65535")
	ErrUpstreamInvalid  = errors.New("upstream must be an http or https URL")
)

// validate performs validation on the loaded configuration
func validate(cfg *Config) error {
	if cfg.Location == "" {
		return ErrLocationEmpty
	}
	if !filepath.IsAbs(cfg.Location) {
		return fmt.Errorf("%w: %q", ErrLocationRelative, cfg.Location)
	}

	if cfg.Database.URL == "" {
		return ErrDatabaseEmpty
	}

	if cfg.Serve.Port < 1 || cfg.Serve.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrPortInvalid, cfg.Serve.Port)
	}

	for _, entry := range cfg.Auth {
		if err := validateAuthEntry(entry); err != nil {
			return err
		}
	}

	if cfg.XSendfile.Enabled {
		switch cfg.XSendfile.Frontend {
		case "apache", "nginx":
		default:
			return fmt.Errorf("%w: %q", ErrFrontendInvalid, cfg.XSendfile.Frontend)
		}
	}

	for _, upstream := range []string{cfg.Upstream.PyPI, cfg.Upstream.CommonJS} {
		if upstream == "" {
			continue
		}
		u, err := url.Parse(upstream)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrUpstreamInvalid, upstream)
		}
	}

	return nil
}

// validateAuthEntry checks one credential line. Only the first two colons
// separate fields, so group names may contain colons.
func validateAuthEntry(entry string) error {
	parts := strings.SplitN(entry, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%w: %q", ErrAuthInvalid, entry)
	}
	return nil
}
