package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// getWorkspaceDir returns the workspace directory path.
// Uses MEDIASTORE_DIR env var if set, otherwise defaults to ~/.mediastore.
// This is computed dynamically to support test isolation.
func getWorkspaceDir() string {
	if dir := os.Getenv("MEDIASTORE_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mediastore")
}

// WorkspaceDir returns the workspace directory path
func WorkspaceDir() string {
	return getWorkspaceDir()
}

// CatalogPath returns the catalog database path
func CatalogPath() string {
	return filepath.Join(getWorkspaceDir(), "catalog.db")
}

// MediaRoot returns the blob store root directory
func MediaRoot() string {
	return filepath.Join(getWorkspaceDir(), "media")
}

// ConfigPath returns the workspace settings file path
func ConfigPath() string {
	return filepath.Join(getWorkspaceDir(), "config.yaml")
}

// LockPath returns the advisory lock file path taken by writing commands
func LockPath() string {
	return filepath.Join(getWorkspaceDir(), "workspace.lock")
}

// EnsureWorkspaceDir creates the workspace directory if it doesn't exist
func EnsureWorkspaceDir() error {
	return os.MkdirAll(getWorkspaceDir(), 0700)
}

// Config is the workspace configuration from {workspace}/config.yaml.
type Config struct {
	Logging        string   `yaml:"logging"`          // logging level: none, debug, info, trace (case insensitive)
	PublicBaseURL  string   `yaml:"public-base-url"`  // base for derived public URLs
	FetchTimeout   string   `yaml:"fetch-timeout"`    // Go duration, default "30s"
	AuditTimeout   string   `yaml:"audit-timeout"`    // per-chunk wall-clock budget, default "60s"
	AuditChunk     int      `yaml:"audit-chunk"`      // files hashed per audit chunk, default 200
	ScanExcludes   []string `yaml:"scan-excludes"`    // gitignore-style patterns skipped by audits
	BusyTimeoutMS  int      `yaml:"busy-timeout-ms"`  // SQLite busy_timeout override
	WebPQuality    float32  `yaml:"webp-quality"`     // variant encode quality, default 85
}

// ApplyDefaults fills zero-value fields with their defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.FetchTimeout == "" {
		cfg.FetchTimeout = "30s"
	}
	if cfg.AuditTimeout == "" {
		cfg.AuditTimeout = "60s"
	}
	if cfg.AuditChunk <= 0 {
		cfg.AuditChunk = 200
	}
	if cfg.ScanExcludes == nil {
		cfg.ScanExcludes = []string{".keep.png", "*.tmp"}
	}
	if cfg.WebPQuality <= 0 {
		cfg.WebPQuality = 85
	}
}

// LoggingEnabled returns whether logging is enabled (any level other than "none" or empty).
func (cfg *Config) LoggingEnabled() bool {
	level := strings.ToLower(cfg.Logging)
	return level != "" && level != "none"
}

// LogLevel returns the normalized (lowercase) logging level.
func (cfg *Config) LogLevel() string {
	return strings.ToLower(cfg.Logging)
}

// Load reads the workspace config. A missing file yields defaults.
func Load() (*Config, error) {
	return LoadFromPath(ConfigPath())
}

// LoadFromPath reads a config file from a specific path.
// Returns defaults if the file does not exist.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.ApplyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Save writes the config back to the workspace settings file.
func Save(cfg *Config) error {
	if err := EnsureWorkspaceDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(), data, 0600)
}
