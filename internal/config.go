package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/annota/internal/geometry"
	"github.com/starford/annota/internal/history"
	"github.com/starford/annota/internal/layers"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Engine   EngineConfig      `yaml:"engine"`
	Layers   []LayerConfig     `yaml:"layers"`
	Document DocumentConfig    `yaml:"document"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Layers))
	for i := range c.Layers {
		if err := c.Layers[i].Validate(); err != nil {
			return fmt.Errorf("layers[%d]: %w", i, err)
		}
		if _, dup := seen[c.Layers[i].ID]; dup {
			return fmt.Errorf("layers[%d]: duplicate id %q", i, c.Layers[i].ID)
		}
		seen[c.Layers[i].ID] = struct{}{}
	}
	return c.Auth.Validate()
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

// EngineConfig tunes the annotation engine.
type EngineConfig struct {
	MaxHistorySize int     `yaml:"max_history_size"`
	HistoryMerging bool    `yaml:"history_merging"`
	SplitWidth     float64 `yaml:"split_width"`
	HitBuffer      float64 `yaml:"hit_buffer"`
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxHistorySize, validation.Required, validation.Min(1)),
		validation.Field(&c.SplitWidth, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&c.HitBuffer, validation.Min(0.0)),
	)
}

// LayerConfig declares a layer created at startup. Settings for the
// reserved "image" and "default" layers are applied to them.
type LayerConfig struct {
	ID            string `yaml:"id"`
	layers.Config `yaml:",inline"`
}

// Validate validates the layer declaration.
func (c *LayerConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Opacity, validation.Min(0.0), validation.Max(1.0)),
	); err != nil {
		return err
	}
	if c.RuleSpec != nil {
		return c.RuleSpec.Validate()
	}
	return nil
}

// DocumentConfig points at an optional seed document.
//
// When Path is set the document is imported at startup; with Watch the file
// is re-imported, replacing the store, whenever it changes on disk.
type DocumentConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
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
	// Normalise empty mode to "disabled" for backward compatibility.
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Engine: EngineConfig{
			MaxHistorySize: history.DefaultMaxSize,
			HistoryMerging: true,
			SplitWidth:     geometry.DefaultSplitWidth,
			HitBuffer:      2,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
