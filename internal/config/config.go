// Package config loads and validates the reliquary configuration from YAML.
package config

import (
	"runtime"
	"strings"
)

// Config represents the complete application configuration
type Config struct {
	// Location is the storage root. Relics live at
	// <location>/<channel>/<index>/<name>.
	Location string `yaml:"location"`

	// Realm is the name presented in WWW-Authenticate challenges and on the
	// home page.
	Realm string `yaml:"realm,omitempty"`

	// Auth lists credentials as "user:password" or "user:password:group,...".
	Auth []string `yaml:"auth,omitempty"`

	Database  DatabaseConfig  `yaml:"database"`
	Serve     ServeConfig     `yaml:"serve,omitempty"`
	XSendfile XSendfileConfig `yaml:"xsendfile,omitempty"`
	Upstream  UpstreamConfig  `yaml:"upstream,omitempty"`
	Workers   WorkersConfig   `yaml:"workers,omitempty"`

	ConfigDir string `yaml:"-"` // Directory containing config.yaml (set during Load)
}

// DatabaseConfig contains catalog database configuration
type DatabaseConfig struct {
	URL string `yaml:"url"` // PostgreSQL connection string
}

// ServeConfig contains HTTP server configuration
type ServeConfig struct {
	Host string `yaml:"host,omitempty"` // Host to bind to (default: localhost)
	Port int    `yaml:"port,omitempty"` // Port to listen on (default: 8080)
}

// XSendfileConfig controls delegation of file delivery to a frontend proxy
type XSendfileConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Frontend string `yaml:"frontend,omitempty"` // "apache" or "nginx"
}

// UpstreamConfig contains the proxy bases used by fetch-on-miss
type UpstreamConfig struct {
	PyPI     string `yaml:"pypi,omitempty"`     // e.g. https://pypi.org
	CommonJS string `yaml:"commonjs,omitempty"` // e.g. https://registry.npmjs.org
}

// WorkersConfig defines worker pool sizes
type WorkersConfig struct {
	Extract uint `yaml:"extract"` // Parallel .deb control extractions per sweep
}

// Credential is one parsed auth entry.
type Credential struct {
	User     string
	Password string
	Groups   []string
}

// Credentials parses the Auth entries. Load has already validated the
// format, so malformed entries are skipped here.
func (c *Config) Credentials() []Credential {
	out := make([]Credential, 0, len(c.Auth))
	for _, entry := range c.Auth {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 {
			continue
		}
		cred := Credential{User: parts[0], Password: parts[1]}
		if len(parts) == 3 && parts[2] != "" {
			cred.Groups = strings.Split(parts[2], ",")
		}
		out = append(out, cred)
	}
	return out
}

// defaults applies default values to the configuration
func (c *Config) defaults() {
	if c.Realm == "" {
		c.Realm = "reliquary"
	}
	if c.Serve.Host == "" {
		c.Serve.Host = "localhost"
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = 8080
	}
	if c.XSendfile.Enabled && c.XSendfile.Frontend == "" {
		c.XSendfile.Frontend = "nginx"
	}
	if c.Upstream.PyPI == "" {
		c.Upstream.PyPI = "https://pypi.python.org"
	}
	if c.Upstream.CommonJS == "" {
		c.Upstream.CommonJS = "http://registry.npmjs.org"
	}
	if c.Workers.Extract == 0 {
		c.Workers.Extract = uint(runtime.NumCPU())
	}
}
