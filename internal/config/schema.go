package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version    int              `yaml:"version"`
	Database   DatabaseConfig   `yaml:"database"`
	Content    ContentConfig    `yaml:"content"`
	Conversion ConversionConfig `yaml:"conversion"`
	Attributes AttributesConfig `yaml:"attributes"`
	Input      InputConfig      `yaml:"input"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
	Watch      WatchConfig      `yaml:"watch"`
}

// DatabaseConfig holds the engine session store settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ContentConfig holds the content store settings
type ContentConfig struct {
	Dir string `yaml:"dir"`
}

// ConversionConfig holds unit conversion between scene and engine
type ConversionConfig struct {
	// PositionScale multiplies scene positions on the way to the engine
	PositionScale float64 `yaml:"position_scale"`
}

// AttributesConfig selects which generic attributes travel
type AttributesConfig struct {
	Prefix  string   `yaml:"prefix"`
	Include []string `yaml:"include,omitempty"` // doublestar globs, empty = all
	Exclude []string `yaml:"exclude,omitempty"`
}

// InputConfig holds upload settings
type InputConfig struct {
	ImportRotAndScale bool   `yaml:"import_rot_and_scale"`
	Operator          string `yaml:"operator"`
	// MarkOutput flags uploaded parts as retrievable outputs
	MarkOutput bool `yaml:"mark_output"`
}

// OutputConfig holds retrieve settings
type OutputConfig struct {
	CookFolder  string `yaml:"cook_folder"`
	AssetPrefix string `yaml:"asset_prefix"`
	Meshes      *bool  `yaml:"meshes,omitempty"` // nil = true
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// ServerConfig holds inspection API settings
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// WatchConfig holds watch mode settings
type WatchConfig struct {
	Debounce *Duration `yaml:"debounce,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
