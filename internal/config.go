package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Content  ContentConfig     `yaml:"content"`
	Data     DataConfig        `yaml:"data"`
	Auth     AuthConfig        `yaml:"auth"`
	Indexing IndexingConfig    `yaml:"indexing"`
	Git      GitConfig         `yaml:"git"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return err
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Indexing.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ContentConfig holds the path to the Markdown content tree.
type ContentConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// DataConfig holds the directory for derived state (the SQLite database and
// the dirty flag). Everything under it is disposable and rebuildable from
// the content tree.
type DataConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// DatabasePath returns the SQLite database file location.
func (c *DataConfig) DatabasePath() string {
	return filepath.Join(c.Path, "arbor.db")
}

// DirtyFlagPath returns the deferred-mode dirty flag location.
func (c *DataConfig) DirtyFlagPath() string {
	return filepath.Join(c.Path, "index.dirty")
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// IndexingConfig selects how the derived stores track content changes.
//
// Mode is "immediate" (default: every save updates the index before the
// response) or "deferred" (saves set a persisted dirty flag; a background
// reconcile rebuilds on the configured interval).
type IndexingConfig struct {
	Mode              string        `yaml:"mode"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

// Validate validates the indexing configuration.
func (c *IndexingConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = "immediate"
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = 5 * time.Minute
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In("immediate", "deferred")),
	)
}

// GitConfig controls git integration for the content tree.
type GitConfig struct {
	AutoCommit bool `yaml:"auto_commit"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Path: "./content",
		},
		Data: DataConfig{
			Path: "./data",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Indexing: IndexingConfig{
			Mode:              "immediate",
			ReconcileInterval: 5 * time.Minute,
		},
		Git: GitConfig{
			AutoCommit: true,
		},
	}
}
