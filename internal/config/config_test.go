package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Conversion.PositionScale != DefaultPositionScale {
		t.Errorf("PositionScale = %v, want %v", cfg.Conversion.PositionScale, DefaultPositionScale)
	}
	if cfg.Attributes.Prefix != "unreal_pcg_attribute_" {
		t.Errorf("Prefix = %s, want unreal_pcg_attribute_", cfg.Attributes.Prefix)
	}
	if cfg.Input.Operator != "null" {
		t.Errorf("Operator = %s, want null", cfg.Input.Operator)
	}
	if cfg.Output.AssetPrefix != "PCGDA" {
		t.Errorf("AssetPrefix = %s, want PCGDA", cfg.Output.AssetPrefix)
	}
	if !cfg.MeshesEnabled() {
		t.Error("meshes should be enabled by default")
	}
	if cfg.DebounceInterval() != DefaultDebounce {
		t.Errorf("DebounceInterval() = %s, want %s", cfg.DebounceInterval(), DefaultDebounce)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	meshes := false
	cfg := &Config{
		Conversion: ConversionConfig{PositionScale: 0.1},
		Output:     OutputConfig{CookFolder: "/Game/Out", Meshes: &meshes},
		Logging:    LoggingConfig{Level: "debug", Format: "json"},
	}
	cfg.applyDefaults()

	if cfg.Conversion.PositionScale != 0.1 {
		t.Errorf("PositionScale = %v, want 0.1", cfg.Conversion.PositionScale)
	}
	if cfg.Output.CookFolder != "/Game/Out/" {
		t.Errorf("CookFolder = %s, want trailing slash", cfg.Output.CookFolder)
	}
	if cfg.MeshesEnabled() {
		t.Error("explicit meshes: false should stick")
	}
	if cfg.Logging.Level != LevelDebug || cfg.Logging.Format != FormatJSON {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative scale", func(c *Config) { c.Conversion.PositionScale = -1 }, "position_scale"},
		{"bad include", func(c *Config) { c.Attributes.Include = []string{"[abc"} }, "attributes.include"},
		{"bad exclude", func(c *Config) { c.Attributes.Exclude = []string{"{a,b"} }, "attributes.exclude"},
		{"negative debounce", func(c *Config) { d := Duration(-time.Second); c.Watch.Debounce = &d }, "debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
		slog  slog.Level
	}{
		{"debug", LevelDebug, slog.LevelDebug},
		{"info", LevelInfo, slog.LevelInfo},
		{"warning", LevelWarn, slog.LevelWarn},
		{"error", LevelError, slog.LevelError},
		{"loud", LevelInfo, slog.LevelInfo}, // Default
		{"", LevelInfo, slog.LevelInfo},     // Default
	}

	for _, tt := range tests {
		got := ParseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", tt.input, got, tt.want)
		}
		if got.Slog() != tt.slog {
			t.Errorf("LogLevel(%s).Slog() = %v, want %v", got, got.Slog(), tt.slog)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: LevelWarn, Format: FormatJSON}.NewLogger(&buf)

	logger.Info("dropped")
	logger.Warn("kept", "node", 7)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"kept"`) || !strings.Contains(out, `"node":7`) {
		t.Errorf("unexpected JSON output: %s", out)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Conversion.PositionScale = 0.02
	cfg.Attributes.Exclude = []string{"debug_*"}
	cfg.Input.ImportRotAndScale = true

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}
	if loaded.Conversion.PositionScale != 0.02 {
		t.Errorf("PositionScale = %v, want 0.02", loaded.Conversion.PositionScale)
	}
	if len(loaded.Attributes.Exclude) != 1 || loaded.Attributes.Exclude[0] != "debug_*" {
		t.Errorf("Exclude = %v, want [debug_*]", loaded.Attributes.Exclude)
	}
	if !loaded.Input.ImportRotAndScale {
		t.Error("ImportRotAndScale should survive a round trip")
	}
	if loaded.DebounceInterval() != DefaultDebounce {
		t.Errorf("DebounceInterval() = %s, want %s", loaded.DebounceInterval(), DefaultDebounce)
	}
}

func TestLoadFromPathRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("conversion:\n  position_scale: -2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFromPath(configPath); err == nil {
		t.Error("LoadFromPath() should reject a negative scale")
	}
}

func TestFindConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	found := FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should find config in working directory")
	}

	// Explicit path doesn't exist, should fall back
	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	found = FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should fall back when env path doesn't exist")
	}

	explicit := filepath.Join(t.TempDir(), "explicit.yaml")
	if err := cfg.Save(explicit); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	t.Setenv(EnvConfigPath, explicit)
	if found = FindConfigPath(); found != explicit {
		t.Errorf("FindConfigPath() = %s, want %s", found, explicit)
	}
}

func TestSearchPathsOrder(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/explicit.yaml")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("HOME", "/home/user")

	want := []string{
		"/tmp/explicit.yaml",
		ConfigFileName,
		"/xdg/geobridge/config.yaml",
		"/home/user/.config/geobridge/config.yaml",
		"/etc/geobridge/config.yaml",
	}
	got := SearchPaths()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("SearchPaths() = %v, want %v", got, want)
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}
}
