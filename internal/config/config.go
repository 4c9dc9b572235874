// Package config provides configuration management for geobridge.
//
// The config file holds how the bridge converts and where it keeps
// things. The engine session store and the content store hold what was
// uploaded and retrieved, and can be wiped independently.
//
// Config file locations (priority order):
//  1. $GEOBRIDGE_CONFIG
//  2. ./geobridge.yaml
//  3. $XDG_CONFIG_HOME/geobridge/config.yaml
//  4. ~/.config/geobridge/config.yaml
//  5. /etc/geobridge/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultDatabasePath    = "./geobridge.db"
	DefaultContentDir      = "./content"
	DefaultPositionScale   = 0.01
	DefaultAttributePrefix = "unreal_pcg_attribute_"
	DefaultOperator        = "null"
	DefaultCookFolder      = "/Game/HoudiniEngine/Temp/"
	DefaultAssetPrefix     = "PCGDA"
	DefaultServerAddr      = ":8080"
	DefaultDebounce        = 500 * time.Millisecond
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{Version: 1}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Content.Dir == "" {
		c.Content.Dir = DefaultContentDir
	}
	if c.Conversion.PositionScale == 0 {
		c.Conversion.PositionScale = DefaultPositionScale
	}
	if c.Attributes.Prefix == "" {
		c.Attributes.Prefix = DefaultAttributePrefix
	}
	if c.Input.Operator == "" {
		c.Input.Operator = DefaultOperator
	}
	if c.Output.CookFolder == "" {
		c.Output.CookFolder = DefaultCookFolder
	}
	if !strings.HasSuffix(c.Output.CookFolder, "/") {
		c.Output.CookFolder += "/"
	}
	if c.Output.AssetPrefix == "" {
		c.Output.AssetPrefix = DefaultAssetPrefix
	}
	if c.Output.Meshes == nil {
		meshes := true
		c.Output.Meshes = &meshes
	}
	c.Logging.Level = ParseLogLevel(string(c.Logging.Level))
	c.Logging.Format = ParseLogFormat(string(c.Logging.Format))
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Watch.Debounce == nil {
		d := Duration(DefaultDebounce)
		c.Watch.Debounce = &d
	}
}

// Validate reports settings that cannot work
func (c *Config) Validate() error {
	var errs []error
	if c.Conversion.PositionScale <= 0 {
		errs = append(errs, fmt.Errorf("conversion.position_scale must be > 0, got %v", c.Conversion.PositionScale))
	}
	for _, p := range c.Attributes.Include {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("attributes.include: invalid pattern %q", p))
		}
	}
	for _, p := range c.Attributes.Exclude {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("attributes.exclude: invalid pattern %q", p))
		}
	}
	if c.Watch.Debounce != nil && c.Watch.Debounce.Duration() < 0 {
		errs = append(errs, errors.New("watch.debounce must not be negative"))
	}
	return errors.Join(errs...)
}

// MeshesEnabled reports whether mesh parts are retrieved
func (c *Config) MeshesEnabled() bool {
	return c.Output.Meshes == nil || *c.Output.Meshes
}

// DebounceInterval returns the watch debounce
func (c *Config) DebounceInterval() time.Duration {
	if c.Watch.Debounce == nil {
		return DefaultDebounce
	}
	return c.Watch.Debounce.Duration()
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Database: %s, Content: %s\n", c.Database.Path, c.Content.Dir)
	summary += fmt.Sprintf("Scale: %g, Prefix: %s, Operator: %s\n",
		c.Conversion.PositionScale, c.Attributes.Prefix, c.Input.Operator)
	summary += fmt.Sprintf("Output: %s%s_*, Meshes: %v", c.Output.CookFolder, c.Output.AssetPrefix, c.MeshesEnabled())
	return summary
}
