package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the device settings for invbf.
type Config struct {
	Server             string        `validate:"required"`
	Device             string        `validate:"max=64"`
	DataDir            string        `validate:"required"`
	StorageCapacityMB  int           `validate:"min=1,max=4096"`
	CatalogCodec       string        `validate:"oneof=snappy zstd lz4 none"`
	ControlledHardware bool
	ProbeTimeout       time.Duration `validate:"min=1ms"`
	VersionTimeout     time.Duration `validate:"min=1ms"`
	CatalogTimeout     time.Duration `validate:"min=1ms"`
	RequestTimeout     time.Duration `validate:"min=1ms"`
	RetryDelay         time.Duration `validate:"min=1ms"`
	MonitorInterval    time.Duration `validate:"min=1ms"`
	LivenessInterval   time.Duration `validate:"min=1ms"`
	LogLevel           string        `validate:"oneof=debug info warn error"`
}

const (
	defaultConfigPath = "~/.config/invbf/config.toml"
	defaultDataDir    = "~/.local/share/invbf"
	defaultServer     = "127.0.0.1:8080"
	defaultEnvFile    = ".env"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "INVBF_"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:            defaultServer,
		DataDir:           mustExpand(defaultDataDir),
		StorageCapacityMB: 10,
		CatalogCodec:      "snappy",
		ProbeTimeout:      8 * time.Second,
		VersionTimeout:    10 * time.Second,
		CatalogTimeout:    2 * time.Minute,
		RequestTimeout:    15 * time.Second,
		RetryDelay:        5 * time.Second,
		MonitorInterval:   15 * time.Second,
		LivenessInterval:  30 * time.Second,
		LogLevel:          "info",
	}
}

type rawConfig struct {
	Server             *string `toml:"server"`
	Device             *string `toml:"device"`
	DataDir            *string `toml:"data_dir"`
	StorageCapacityMB  *int    `toml:"storage_capacity_mb"`
	CatalogCodec       *string `toml:"catalog_codec"`
	ControlledHardware *bool   `toml:"controlled_hardware"`
	ProbeTimeout       *string `toml:"probe_timeout"`
	VersionTimeout     *string `toml:"version_timeout"`
	CatalogTimeout     *string `toml:"catalog_timeout"`
	RequestTimeout     *string `toml:"request_timeout"`
	RetryDelay         *string `toml:"retry_delay"`
	MonitorInterval    *string `toml:"monitor_interval"`
	LivenessInterval   *string `toml:"liveness_interval"`
	LogLevel           *string `toml:"log_level"`
}

// Load reads the config file at path (default ~/.config/invbf/config.toml),
// then applies a .env file from the working directory and INVBF_* variables.
// A missing config file is not an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()

	if err := loadEnvFile(defaultEnvFile); err != nil {
		return Config{}, err
	}

	raw, err := readFile(resolved)
	if err != nil {
		return Config{}, err
	}
	if raw != nil {
		if err := cfg.apply(*raw); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	cfg.Server = strings.TrimSpace(cfg.Server)
	if cfg.Server == "" {
		cfg.Server = defaultServer
	}
	cfg.Device = strings.TrimSpace(cfg.Device)
	cfg.CatalogCodec = strings.ToLower(strings.TrimSpace(cfg.CatalogCodec))
	if cfg.CatalogCodec == "" {
		cfg.CatalogCodec = "snappy"
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.DataDir = mustExpand(cfg.DataDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// StorageCapacity returns the storage quota in bytes.
func (c Config) StorageCapacity() int64 {
	return int64(c.StorageCapacityMB) << 20
}

// StorageDir returns the directory backing the local key/value store.
func (c Config) StorageDir() string {
	return filepath.Join(c.DataDir, "store")
}

// LogPath returns the path of the debug log file.
func (c Config) LogPath() string {
	return filepath.Join(c.DataDir, "invbf.log")
}

func readFile(path string) (*rawConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &raw, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func (c *Config) apply(raw rawConfig) error {
	setString(&c.Server, raw.Server)
	setString(&c.Device, raw.Device)
	setString(&c.DataDir, raw.DataDir)
	setString(&c.CatalogCodec, raw.CatalogCodec)
	setString(&c.LogLevel, raw.LogLevel)
	if raw.StorageCapacityMB != nil {
		c.StorageCapacityMB = *raw.StorageCapacityMB
	}
	if raw.ControlledHardware != nil {
		c.ControlledHardware = *raw.ControlledHardware
	}
	for key, target := range c.durations() {
		value := raw.duration(key)
		if value == nil {
			continue
		}
		d, err := parseDuration(key, *value)
		if err != nil {
			return err
		}
		*target = d
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	env := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + strings.ToUpper(key))
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	strs := map[string]*string{
		"server":        &c.Server,
		"device":        &c.Device,
		"data_dir":      &c.DataDir,
		"catalog_codec": &c.CatalogCodec,
		"log_level":     &c.LogLevel,
	}
	for key, target := range strs {
		if v, ok := env(key); ok {
			*target = v
		}
	}
	if v, ok := env("storage_capacity_mb"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sSTORAGE_CAPACITY_MB: %w", EnvPrefix, err)
		}
		c.StorageCapacityMB = n
	}
	if v, ok := env("controlled_hardware"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %sCONTROLLED_HARDWARE: %w", EnvPrefix, err)
		}
		c.ControlledHardware = b
	}
	for key, target := range c.durations() {
		v, ok := env(key)
		if !ok {
			continue
		}
		d, err := parseDuration(EnvPrefix+strings.ToUpper(key), v)
		if err != nil {
			return err
		}
		*target = d
	}
	return nil
}

func (c *Config) durations() map[string]*time.Duration {
	return map[string]*time.Duration{
		"probe_timeout":     &c.ProbeTimeout,
		"version_timeout":   &c.VersionTimeout,
		"catalog_timeout":   &c.CatalogTimeout,
		"request_timeout":   &c.RequestTimeout,
		"retry_delay":       &c.RetryDelay,
		"monitor_interval":  &c.MonitorInterval,
		"liveness_interval": &c.LivenessInterval,
	}
}

func (r rawConfig) duration(key string) *string {
	switch key {
	case "probe_timeout":
		return r.ProbeTimeout
	case "version_timeout":
		return r.VersionTimeout
	case "catalog_timeout":
		return r.CatalogTimeout
	case "request_timeout":
		return r.RequestTimeout
	case "retry_delay":
		return r.RetryDelay
	case "monitor_interval":
		return r.MonitorInterval
	case "liveness_interval":
		return r.LivenessInterval
	}
	return nil
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return d, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
