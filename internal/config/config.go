package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all reviewpanel configuration.
type Config struct {
	// Endpoint is the base URL of the review service.
	Endpoint string `yaml:"endpoint"`

	// Models is the fixed set offered in the model picker.
	Models []string `yaml:"models"`

	// DefaultModel is preselected. Empty means the user must pick one.
	DefaultModel string `yaml:"default_model"`

	// Timeout for one review call, as a Go duration string.
	Timeout string `yaml:"timeout"`

	Animation AnimationConfig `yaml:"animation"`
	Markdown  MarkdownConfig  `yaml:"markdown"`
	Log       LogConfig       `yaml:"log"`
}

// AnimationConfig configures the score count-up.
type AnimationConfig struct {
	Duration string `yaml:"duration"`
	Frame    string `yaml:"frame"`
}

// MarkdownConfig configures review summary rendering.
type MarkdownConfig struct {
	Style    string `yaml:"style"` // glamour style name: auto, dark, light, notty
	WordWrap int    `yaml:"word_wrap"`
}

// LogConfig configures the diagnostic log.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultModels is the model set used when none is configured.
var DefaultModels = []string{"gpt-4.1-mini", "gpt-4.1", "gpt-4o-mini", "o4-mini"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Endpoint: "http://localhost:8000",
		Models:   append([]string(nil), DefaultModels...),
		Timeout:  "60s",
		Animation: AnimationConfig{
			Duration: "600ms",
			Frame:    "16ms",
		},
		Markdown: MarkdownConfig{
			Style:    "auto",
			WordWrap: 80,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg, nil
}

// YAML encodes the configuration.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := env("REVIEWPANEL_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := env("REVIEWPANEL_MODELS"); v != "" {
		c.Models = splitList(v)
	}
	if v, ok := os.LookupEnv("REVIEWPANEL_DEFAULT_MODEL"); ok {
		c.DefaultModel = strings.TrimSpace(v)
	}
	if v := env("REVIEWPANEL_TIMEOUT"); v != "" {
		c.Timeout = v
	}
	if v := env("REVIEWPANEL_MARKDOWN_STYLE"); v != "" {
		c.Markdown.Style = v
	}
	if v := env("REVIEWPANEL_WORD_WRAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Markdown.WordWrap = n
		}
	}
	if v := env("REVIEWPANEL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if EnvBool("REVIEWPANEL_DEBUG") {
		c.Log.Level = "debug"
	}
}

func (c *Config) normalize() {
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	models := c.Models[:0]
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	if len(models) == 0 {
		models = append(models, DefaultModels...)
	}
	c.Models = models
	// The default must be one of the selectable models; otherwise the user
	// picks one.
	c.DefaultModel = strings.TrimSpace(c.DefaultModel)
	if !c.HasModel(c.DefaultModel) {
		c.DefaultModel = ""
	}
}

// HasModel reports whether m is one of the configured models.
func (c *Config) HasModel(m string) bool {
	return slices.Contains(c.Models, m)
}

// GetTimeout returns the review call timeout.
func (c *Config) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

// GetAnimationDuration returns the count-up duration.
func (c *Config) GetAnimationDuration() time.Duration {
	return parseDuration(c.Animation.Duration, 600*time.Millisecond)
}

// GetAnimationFrame returns the count-up frame interval.
func (c *Config) GetAnimationFrame() time.Duration {
	return parseDuration(c.Animation.Frame, 16*time.Millisecond)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// EnvBool reports whether the variable is set to a truthy value.
func EnvBool(name string) bool {
	v := env(name)
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
