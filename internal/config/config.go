package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the ManifoldMCP server.
// Precedence: environment variables > config file > defaults.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Server    ServerConfig    `toml:"server"`
	Transport TransportConfig `toml:"transport"`
	Log       LogConfig       `toml:"log"`
	Tenant    TenantConfig    `toml:"tenant"`
}

// StoreConfig holds the manifest store's sqlite location.
type StoreConfig struct {
	Path string `toml:"path"` // Path to the sqlite database file.
}

// ServerConfig holds MCP server metadata.
type ServerConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// TransportConfig holds transport-related settings. Only stdio is supported —
// spec.md §1 lists HTTP transport as an explicit Non-goal (an external
// collaborator's concern), so the field exists solely to be validated and
// rejected rather than silently ignored if a config file sets it.
type TransportConfig struct {
	// Mode must be "stdio".
	Mode string `toml:"mode"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// TenantConfig holds the default org scope applied to requests that carry
// no explicit tenant (stdio mode has no per-request auth layer to derive one
// from).
type TenantConfig struct {
	DefaultOrgID string `toml:"default_org_id"`
}

// Load creates a Config by reading from a TOML config file and environment
// variables. Precedence: environment variables > config file > defaults.
//
// Config file search order (first found wins):
//  1. Path passed via configPath parameter (from --config flag)
//  2. MANIFOLDMCP_CONFIG environment variable
//  3. ./manifoldmcp.toml (current directory)
//  4. ~/.config/manifoldmcp/manifoldmcp.toml (XDG-style)
//
// All fields are optional in the config file. Environment variables always
// override file values.
func Load(configPath string) (*Config, error) {
	// Start with defaults
	cfg := &Config{
		Store: StoreConfig{
			Path: "manifold.db",
		},
		Server: ServerConfig{
			Name:    "manifoldmcp",
			Version: "0.1.0",
		},
		Transport: TransportConfig{
			Mode: "stdio",
		},
		Log: LogConfig{
			Level: "info",
		},
		Tenant: TenantConfig{
			DefaultOrgID: "default",
		},
	}

	// Layer config file values on top of defaults
	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	// Layer environment variables on top (always win)
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile finds and parses the TOML config file. If no file is found,
// this is a no-op (config file is optional).
func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil // no config file found; rely on defaults + env
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	return nil
}

// resolveConfigPath determines which config file to use. Returns empty string
// if no config file is found (config file is optional).
func resolveConfigPath(explicit string) string {
	// 1. Explicit path from --config flag
	if explicit != "" {
		return explicit // caller wants this file; let DecodeFile report if missing
	}

	// 2. MANIFOLDMCP_CONFIG env var
	if p := os.Getenv("MANIFOLDMCP_CONFIG"); p != "" {
		return p
	}

	// 3. ./manifoldmcp.toml in current directory
	if _, err := os.Stat("manifoldmcp.toml"); err == nil {
		return "manifoldmcp.toml"
	}

	// 4. ~/.config/manifoldmcp/manifoldmcp.toml
	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/manifoldmcp/manifoldmcp.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnv overlays environment variables on top of existing config values.
// An env var only takes effect if it is non-empty.
func (c *Config) applyEnv() {
	// Store
	envOverride("MANIFOLDMCP_STORE_PATH", &c.Store.Path)

	// Transport
	envOverride("MANIFOLDMCP_TRANSPORT", &c.Transport.Mode)

	// Logging
	envOverride("MANIFOLDMCP_LOG_LEVEL", &c.Log.Level)

	// Tenant
	envOverride("MANIFOLDMCP_DEFAULT_ORG_ID", &c.Tenant.DefaultOrgID)
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required: set store.path in config file, or MANIFOLDMCP_STORE_PATH env var")
	}
	if c.Tenant.DefaultOrgID == "" {
		return fmt.Errorf("tenant default_org_id must not be empty")
	}
	if c.Transport.Mode != "stdio" {
		return fmt.Errorf("invalid transport mode: %q (only \"stdio\" is supported)", c.Transport.Mode)
	}

	return nil
}

// envOverride sets *dst to the value of the named env var, if it is non-empty.
func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
