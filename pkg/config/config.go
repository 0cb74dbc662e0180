package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oarkflow/bcl"
	"github.com/oarkflow/errors"
	"github.com/oarkflow/json"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/sprite"
)

type RuntimeConfig struct {
	TimeoutMs    int  `json:"timeout_ms" yaml:"timeout_ms"`
	MaxCallDepth int  `json:"max_call_depth" yaml:"max_call_depth"`
	LogExecution bool `json:"log_execution" yaml:"log_execution"`
}

type CacheConfig struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	MaxPrograms int  `json:"max_programs" yaml:"max_programs"`
}

type ServerConfig struct {
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	Version string `json:"version" yaml:"version"`
}

type HistoryConfig struct {
	// File is the JSON history file. Empty keeps history in memory.
	File string `json:"file" yaml:"file"`
}

type Config struct {
	Runtime RuntimeConfig  `json:"runtime" yaml:"runtime"`
	Cache   CacheConfig    `json:"cache" yaml:"cache"`
	Server  ServerConfig   `json:"server" yaml:"server"`
	History HistoryConfig  `json:"history" yaml:"history"`
	Globals map[string]any `json:"globals" yaml:"globals"`
}

// Default leaves every runtime limit off.
func Default() *Config {
	return &Config{
		Cache:  CacheConfig{Enabled: true, MaxPrograms: 1024},
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Version: "dev"},
	}
}

func (cfg *Config) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}

func (cfg *Config) RuntimeConfig() sprite.RuntimeConfig {
	return sprite.RuntimeConfig{
		Timeout:      time.Duration(cfg.Runtime.TimeoutMs) * time.Millisecond,
		MaxCallDepth: cfg.Runtime.MaxCallDepth,
		LogExecution: cfg.Runtime.LogExecution,
	}
}

func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Runtime.TimeoutMs < 0 {
		return errors.New("runtime.timeout_ms must not be negative")
	}
	if cfg.Runtime.MaxCallDepth < 0 {
		return errors.New("runtime.max_call_depth must not be negative")
	}
	if cfg.Cache.Enabled && cfg.Cache.MaxPrograms <= 0 {
		return errors.New("cache.max_programs must be positive when the cache is enabled")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	for name := range cfg.Globals {
		if sprite.IsKeyword(name) {
			return fmt.Errorf("global %q is a reserved keyword", name)
		}
	}
	return nil
}

// Load reads a config file, choosing the decoder by extension.
func Load(path string) (*Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json", ".bcl":
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadFromString(string(raw), strings.TrimPrefix(ext, "."))
}

// LoadFromString decodes raw text in the given format over the defaults.
func LoadFromString(content, format string) (*Config, error) {
	fn, err := decoderFor(format)
	if err != nil {
		return nil, err
	}
	return decode([]byte(os.ExpandEnv(content)), fn)
}

// DetectConfigFormat tries JSON, then YAML, then BCL.
func DetectConfigFormat(input string) (*Config, error) {
	trimmed := strings.TrimSpace(input)
	for _, format := range []string{"json", "yaml", "bcl"} {
		fn, _ := decoderFor(format)
		if cfg, err := decode([]byte(os.ExpandEnv(trimmed)), fn); err == nil {
			return cfg, nil
		}
	}
	return nil, errors.New("unable to detect config format, please provide valid JSON, YAML, or BCL")
}

func decoderFor(format string) (func([]byte, any) error, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return yaml.Unmarshal, nil
	case "json":
		return func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		}, nil
	case "bcl":
		return func(data []byte, v any) error {
			_, err := bcl.Unmarshal(data, v)
			return err
		}, nil
	}
	return nil, fmt.Errorf("unsupported format: %s", format)
}

func decode(data []byte, fn func([]byte, any) error) (*Config, error) {
	cfg := Default()
	if err := fn(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
