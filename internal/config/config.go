// Package config holds slidecap settings loaded from a YAML file and
// overridden by command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultSelector matches the slide container of a published deck.
	DefaultSelector   = ".punch-viewer-svgpage-svgcontainer svg"
	DefaultUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultOutputDir  = "."
	FormatZIP         = "zip"
	FormatPDF         = "pdf"
	defaultMaxBody    = 32 << 20
	defaultCacheTTL   = 10 * time.Minute
	defaultHTTPTime   = 10 * time.Second
	defaultRenderTime = 30 * time.Second
)

type Config struct {
	Source   SourceConfig `yaml:"source"`
	HTTP     HTTPConfig   `yaml:"http"`
	Inline   InlineConfig `yaml:"inline"`
	Render   RenderConfig `yaml:"render"`
	Output   OutputConfig `yaml:"output"`
	Listen   string       `yaml:"listen"`
	LogLevel string       `yaml:"log_level"`
}

// SourceConfig says where the current slide is read from.
type SourceConfig struct {
	URL      string   `yaml:"url"`
	Files    []string `yaml:"files"`
	Selector string   `yaml:"selector"`
	Browser  bool     `yaml:"browser"`
	Headless bool     `yaml:"headless"`
}

type HTTPConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	RetryCount       int           `yaml:"retry_count"`
	RetryWaitTime    time.Duration `yaml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration `yaml:"retry_max_wait_time"`
	UserAgent        string        `yaml:"user_agent"`
	MaxResourceBytes int64         `yaml:"max_resource_bytes"`
}

type InlineConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

type RenderConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

// Default returns a Config with every field set to its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file and fills in defaults for
// anything it leaves unset.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Source.Selector == "" {
		c.Source.Selector = DefaultSelector
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = defaultHTTPTime
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = DefaultUserAgent
	}
	if c.HTTP.MaxResourceBytes <= 0 {
		c.HTTP.MaxResourceBytes = defaultMaxBody
	}
	if c.Inline.Concurrency <= 0 {
		c.Inline.Concurrency = 4
	}
	if c.Inline.CacheTTL == 0 {
		c.Inline.CacheTTL = defaultCacheTTL
	}
	if c.Render.Timeout <= 0 {
		c.Render.Timeout = defaultRenderTime
	}
	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDir
	}
	if c.Output.Format == "" {
		c.Output.Format = FormatZIP
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Source.URL == "" && len(c.Source.Files) == 0 {
		errs = append(errs, errors.New("either a source url or at least one file is required"))
	}
	if c.Source.URL != "" && len(c.Source.Files) > 0 {
		errs = append(errs, errors.New("source url and files are mutually exclusive"))
	}
	if c.Source.Browser && c.Source.URL == "" {
		errs = append(errs, errors.New("browser mode needs a source url"))
	}
	if _, err := cascadia.Compile(c.Source.Selector); err != nil {
		errs = append(errs, fmt.Errorf("invalid selector %q: %w", c.Source.Selector, err))
	}
	if c.HTTP.RetryCount < 0 {
		errs = append(errs, errors.New("http retry_count must be >= 0"))
	}
	if c.Inline.Concurrency < 1 {
		errs = append(errs, errors.New("inline concurrency must be >= 1"))
	}
	if c.Inline.RatePerSecond < 0 {
		errs = append(errs, errors.New("inline rate_per_second must be >= 0 (0 disables pacing)"))
	}
	switch strings.ToLower(c.Output.Format) {
	case FormatZIP, FormatPDF:
	default:
		errs = append(errs, fmt.Errorf("unsupported output format %q", c.Output.Format))
	}

	return errors.Join(errs...)
}
