package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server != defaultServer {
		t.Fatalf("Server = %q, want %q", cfg.Server, defaultServer)
	}
	wantDataDir, err := expandPath(defaultDataDir)
	if err != nil {
		t.Fatalf("expandPath(defaultDataDir) returned error: %v", err)
	}
	if cfg.DataDir != wantDataDir {
		t.Fatalf("DataDir = %q, want %q", cfg.DataDir, wantDataDir)
	}
	if cfg.StorageCapacity() != 10<<20 {
		t.Fatalf("StorageCapacity = %d, want %d", cfg.StorageCapacity(), 10<<20)
	}
	if cfg.CatalogCodec != "snappy" || cfg.LogLevel != "info" {
		t.Fatalf("codec/level = %q/%q, want snappy/info", cfg.CatalogCodec, cfg.LogLevel)
	}
	if cfg.ProbeTimeout != 8*time.Second || cfg.CatalogTimeout != 2*time.Minute || cfg.RetryDelay != 5*time.Second {
		t.Fatalf("timeouts = %v/%v/%v, want 8s/2m/5s", cfg.ProbeTimeout, cfg.CatalogTimeout, cfg.RetryDelay)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
server = "  10.0.0.5:9999  "
device = " counter-2 "
data_dir = "  ~/.invbf  "
storage_capacity_mb = 4
catalog_codec = "ZSTD"
controlled_hardware = true
probe_timeout = "3s"
monitor_interval = "1m"
log_level = "debug"
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server != "10.0.0.5:9999" {
		t.Fatalf("Server = %q, want %q", cfg.Server, "10.0.0.5:9999")
	}
	if cfg.Device != "counter-2" {
		t.Fatalf("Device = %q, want counter-2", cfg.Device)
	}
	if !strings.HasPrefix(cfg.DataDir, home) {
		t.Fatalf("DataDir = %q, want it under HOME %q", cfg.DataDir, home)
	}
	if cfg.StorageCapacity() != 4<<20 || cfg.CatalogCodec != "zstd" || !cfg.ControlledHardware {
		t.Fatalf("cfg = %+v, want 4MB zstd controlled", cfg)
	}
	if cfg.ProbeTimeout != 3*time.Second || cfg.MonitorInterval != time.Minute {
		t.Fatalf("durations = %v/%v, want 3s/1m", cfg.ProbeTimeout, cfg.MonitorInterval)
	}
	if cfg.VersionTimeout != 10*time.Second {
		t.Fatalf("VersionTimeout = %v, want default 10s", cfg.VersionTimeout)
	}
	if cfg.LogPath() != filepath.Join(cfg.DataDir, "invbf.log") {
		t.Fatalf("LogPath = %q", cfg.LogPath())
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("INVBF_SERVER", "authority.local:9000")
	t.Setenv("INVBF_RETRY_DELAY", "250ms")
	t.Setenv("INVBF_CONTROLLED_HARDWARE", "true")
	t.Setenv("INVBF_STORAGE_CAPACITY_MB", "2")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`server = "file:1"`+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server != "authority.local:9000" {
		t.Fatalf("Server = %q, want env override", cfg.Server)
	}
	if cfg.RetryDelay != 250*time.Millisecond || !cfg.ControlledHardware || cfg.StorageCapacityMB != 2 {
		t.Fatalf("cfg = %+v, want env overrides applied", cfg)
	}
}

func TestLoad_BadEnvironmentValueFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("INVBF_PROBE_TIMEOUT", "soon")

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "INVBF_PROBE_TIMEOUT") {
		t.Fatalf("Load error = %v, want it to name INVBF_PROBE_TIMEOUT", err)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
server = "   "
data_dir = ""
catalog_codec = ""
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server != defaultServer {
		t.Fatalf("Server = %q, want %q", cfg.Server, defaultServer)
	}
	wantDataDir, err := expandPath(defaultDataDir)
	if err != nil {
		t.Fatalf("expandPath(defaultDataDir) returned error: %v", err)
	}
	if cfg.DataDir != wantDataDir {
		t.Fatalf("DataDir = %q, want %q", cfg.DataDir, wantDataDir)
	}
	if cfg.CatalogCodec != "snappy" {
		t.Fatalf("CatalogCodec = %q, want snappy", cfg.CatalogCodec)
	}
}

func TestLoad_InvalidValuesFailValidation(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name string
		body string
	}{
		{"unknown codec", `catalog_codec = "gzip"`},
		{"zero capacity", `storage_capacity_mb = 0`},
		{"zero timeout", `request_timeout = "0s"`},
		{"unknown level", `log_level = "loud"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.body+"\n"), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), "invalid config") {
				t.Fatalf("Load error = %v, want invalid config", err)
			}
		})
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`server = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoadEnvFile_SetsUnsetVariables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("INVBF_DEVICE=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("INVBF_DEVICE", "")
	os.Unsetenv("INVBF_DEVICE")

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile returned error: %v", err)
	}
	if got := os.Getenv("INVBF_DEVICE"); got != "from-dotenv" {
		t.Fatalf("INVBF_DEVICE = %q, want from-dotenv", got)
	}
	if err := loadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("loadEnvFile(missing) returned error: %v", err)
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
