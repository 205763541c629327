package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Client side
	ServerURL  string `mapstructure:"server_url" yaml:"server_url"`
	DumpFormat string `mapstructure:"dump_format" yaml:"dump_format"`

	// Upload service
	ListenAddr       string  `mapstructure:"listen_addr" yaml:"listen_addr"`
	PreviewRows      int     `mapstructure:"preview_rows" yaml:"preview_rows"`
	MaxUploadMB      int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	NumericThreshold float64 `mapstructure:"numeric_threshold" yaml:"numeric_threshold"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Chart output
	ChartWidth  int    `mapstructure:"chart_width" yaml:"chart_width"`
	ChartHeight int    `mapstructure:"chart_height" yaml:"chart_height"`
	ChartFormat string `mapstructure:"chart_format" yaml:"chart_format"`
	ChartOutput string `mapstructure:"chart_output" yaml:"chart_output"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

var defaults = map[string]any{
	"server_url":          "http://127.0.0.1:8000",
	"dump_format":         "json",
	"listen_addr":         "0.0.0.0:8000",
	"preview_rows":        20,
	"max_upload_mb":       16,
	"numeric_threshold":   0.5,
	"http_timeout_sec":    60,
	"retry_max_attempts":  3,
	"retry_base_delay_ms": 500,
	"retry_max_delay_ms":  4000,
	"chart_width":         1024,
	"chart_height":        512,
	"chart_format":        "png",
	"chart_output":        "chart.png",
	"log_level":           "INFO",
}

// DefaultPath is ~/.csvglance/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".csvglance", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to DefaultPath, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is loaded first and never overrides variables already set.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("CSVGLANCE")
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Keys lists every settable key in display order.
func Keys() []string {
	return []string{
		"server_url", "dump_format", "listen_addr", "preview_rows", "max_upload_mb",
		"numeric_threshold", "http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms",
		"retry_max_delay_ms", "chart_width", "chart_height", "chart_format", "chart_output", "log_level",
	}
}

// Get returns the textual value of key.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "server_url":
		return c.ServerURL, nil
	case "dump_format":
		return c.DumpFormat, nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "preview_rows":
		return strconv.Itoa(c.PreviewRows), nil
	case "max_upload_mb":
		return strconv.Itoa(c.MaxUploadMB), nil
	case "numeric_threshold":
		return strconv.FormatFloat(c.NumericThreshold, 'g', -1, 64), nil
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec), nil
	case "retry_max_attempts":
		return strconv.Itoa(c.RetryMaxAttempts), nil
	case "retry_base_delay_ms":
		return strconv.Itoa(c.RetryBaseDelayMs), nil
	case "retry_max_delay_ms":
		return strconv.Itoa(c.RetryMaxDelayMs), nil
	case "chart_width":
		return strconv.Itoa(c.ChartWidth), nil
	case "chart_height":
		return strconv.Itoa(c.ChartHeight), nil
	case "chart_format":
		return c.ChartFormat, nil
	case "chart_output":
		return c.ChartOutput, nil
	case "log_level":
		return c.LogLevel, nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// Set validates and assigns one key.
func (c *Global) Set(key, val string) error {
	switch key {
	case "server_url":
		if !strings.HasPrefix(val, "http://") && !strings.HasPrefix(val, "https://") {
			return fmt.Errorf("invalid server_url: %s (must start with http:// or https://)", val)
		}
		c.ServerURL = strings.TrimRight(val, "/")
	case "dump_format":
		switch strings.ToLower(val) {
		case "json", "yaml":
			c.DumpFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid dump_format: %s (use json or yaml)", val)
		}
	case "chart_format":
		switch strings.ToLower(val) {
		case "png", "svg":
			c.ChartFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid chart_format: %s (use png or svg)", val)
		}
	case "listen_addr":
		c.ListenAddr = val
	case "chart_output":
		c.ChartOutput = val
	case "log_level":
		switch strings.ToUpper(val) {
		case "ERROR", "WARN", "INFO", "DEBUG", "TRACE":
			c.LogLevel = strings.ToUpper(val)
		default:
			return fmt.Errorf("invalid log_level: %s", val)
		}
	case "numeric_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 || f > 1 {
			return fmt.Errorf("invalid float for numeric_threshold: %v (0 < t <= 1)", val)
		}
		c.NumericThreshold = f
	default:
		dst := c.intField(key)
		if dst == nil {
			return fmt.Errorf("unknown key: %s", key)
		}
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid positive int for %s: %v", key, val)
		}
		*dst = i
	}
	return nil
}

func (c *Global) intField(key string) *int {
	switch key {
	case "preview_rows":
		return &c.PreviewRows
	case "max_upload_mb":
		return &c.MaxUploadMB
	case "http_timeout_sec":
		return &c.HTTPTimeoutSec
	case "retry_max_attempts":
		return &c.RetryMaxAttempts
	case "retry_base_delay_ms":
		return &c.RetryBaseDelayMs
	case "retry_max_delay_ms":
		return &c.RetryMaxDelayMs
	case "chart_width":
		return &c.ChartWidth
	case "chart_height":
		return &c.ChartHeight
	}
	return nil
}
