package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "x12map.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  api_key: "k"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Server.Listen != ":3310" {
		t.Fatalf("default listen=%q", cfg.Server.Listen)
	}
	if cfg.Server.MaxBodyBytes != 16<<20 {
		t.Fatalf("default max_body_bytes=%d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Mappings.Backend != BackendFS {
		t.Fatalf("default backend=%q", cfg.Mappings.Backend)
	}
	if cfg.Mappings.Dir != "./config" || cfg.Mappings.Container != "x12-mappings" || cfg.Mappings.Root != "mapping" {
		t.Fatalf("unexpected mapping defaults: %+v", cfg.Mappings)
	}
	if cfg.Mappings.Remote.TimeoutMs != 10000 {
		t.Fatalf("mappings.remote.timeout_ms default=%d", cfg.Mappings.Remote.TimeoutMs)
	}
	if cfg.Mappings.AutoReload.Enabled {
		t.Fatalf("mappings.auto_reload.enabled default should be false")
	}
	if cfg.Mappings.AutoReload.DebounceMs != 300 {
		t.Fatalf("mappings.auto_reload.debounce_ms default=%d", cfg.Mappings.AutoReload.DebounceMs)
	}
	if !cfg.Logging.AccessLog {
		t.Fatalf("access_log default should be true")
	}
	if cfg.Logging.AccessLogRotate.MaxSizeMB != 100 || cfg.Logging.AccessLogRotate.MaxBackups != 14 || cfg.Logging.AccessLogRotate.MaxAgeDays != 14 {
		t.Fatalf("unexpected rotate defaults: %+v", cfg.Logging.AccessLogRotate)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Listen != ":3310" || cfg.MappingDir() != "./config" {
		t.Fatalf("unexpected defaults: listen=%q dir=%q", cfg.Server.Listen, cfg.MappingDir())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
mappings:
  dir: ./from-file
  remote:
    headers:
      x-ms-version: "2021-08-06"
`)
	t.Setenv("X12MAP_LISTEN", ":9999")
	t.Setenv("X12MAP_API_KEY", "k2")
	t.Setenv("X12MAP_READ_TIMEOUT_MS", "1234")
	t.Setenv("X12MAP_WRITE_TIMEOUT_MS", "2345")
	t.Setenv("X12MAP_PID_FILE", "/tmp/x12map.pid")
	t.Setenv("X12MAP_MAPPING_BACKEND", "HTTP")
	t.Setenv("X12MAP_MAPPING_DIR", "/srv/mappings")
	t.Setenv("X12MAP_MAPPING_CONTAINER", "edi")
	t.Setenv("X12MAP_MAPPING_ROOT", "maps")
	t.Setenv("X12MAP_MAPPING_REMOTE_BASE_URL", "https://acct.blob.core.windows.net")
	t.Setenv("X12MAP_MAPPING_REMOTE_QUERY", "sv=1&sig=abc")
	t.Setenv("X12MAP_MAPPING_REMOTE_TIMEOUT_MS", "5000")
	t.Setenv("X12MAP_ACCESS_LOG_PATH", "/tmp/access.log")
	t.Setenv("X12MAP_ACCESS_LOG_FORMAT", "$method $path")
	t.Setenv("X12MAP_ACCESS_LOG_FORMAT_PRESET", "x12_minimal")
	t.Setenv("X12MAP_ACCESS_LOG_ROTATE_ENABLED", "true")
	t.Setenv("X12MAP_ACCESS_LOG_ROTATE_MAX_SIZE_MB", "128")
	t.Setenv("X12MAP_ACCESS_LOG_ROTATE_MAX_BACKUPS", "30")
	t.Setenv("X12MAP_ACCESS_LOG_ROTATE_MAX_AGE_DAYS", "7")
	t.Setenv("X12MAP_ACCESS_LOG_ROTATE_COMPRESS", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Server.Listen != ":9999" || cfg.Auth.APIKey != "k2" {
		t.Fatalf("server/auth not overridden: listen=%q", cfg.Server.Listen)
	}
	if cfg.Server.ReadTimeoutMs != 1234 || cfg.Server.WriteTimeoutMs != 2345 {
		t.Fatalf("timeout not overridden: %d,%d", cfg.Server.ReadTimeoutMs, cfg.Server.WriteTimeoutMs)
	}
	if cfg.Server.PidFile != "/tmp/x12map.pid" {
		t.Fatalf("pid file not overridden: %q", cfg.Server.PidFile)
	}
	if cfg.Mappings.Backend != BackendHTTP || cfg.Mappings.Dir != "/srv/mappings" {
		t.Fatalf("mapping backend/dir not overridden: %+v", cfg.Mappings)
	}
	if cfg.Mappings.Container != "edi" || cfg.Mappings.Root != "maps" {
		t.Fatalf("mapping container/root not overridden: %+v", cfg.Mappings)
	}
	if cfg.Mappings.Remote.BaseURL != "https://acct.blob.core.windows.net" || cfg.Mappings.Remote.Query != "sv=1&sig=abc" || cfg.Mappings.Remote.TimeoutMs != 5000 {
		t.Fatalf("remote not overridden: %+v", cfg.Mappings.Remote)
	}
	if cfg.Mappings.Remote.Headers["x-ms-version"] != "2021-08-06" {
		t.Fatalf("remote headers lost: %+v", cfg.Mappings.Remote.Headers)
	}
	if cfg.Logging.AccessLogPath != "/tmp/access.log" || cfg.Logging.AccessLogFormat != "$method $path" || cfg.Logging.AccessLogFormatPreset != "x12_minimal" {
		t.Fatalf("logging not overridden: %+v", cfg.Logging)
	}
	rot := cfg.Logging.AccessLogRotate
	if !rot.Enabled || rot.MaxSizeMB != 128 || rot.MaxBackups != 30 || rot.MaxAgeDays != 7 || !rot.Compress {
		t.Fatalf("rotate not overridden: %+v", rot)
	}
}

func TestLoad_AutoReloadEnv(t *testing.T) {
	path := writeConfigFile(t, "mappings:\n  dir: ./config\n")
	t.Setenv("X12MAP_MAPPINGS_AUTO_RELOAD_ENABLED", "on")
	t.Setenv("X12MAP_MAPPINGS_AUTO_RELOAD_DEBOUNCE_MS", "450")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if !cfg.Mappings.AutoReload.Enabled || cfg.Mappings.AutoReload.DebounceMs != 450 {
		t.Fatalf("auto reload not overridden: %+v", cfg.Mappings.AutoReload)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"unknown backend": `
mappings:
  backend: s3
`,
		"http without base url": `
mappings:
  backend: http
`,
		"nested container": `
mappings:
  container: a/b
`,
		"proxy not url": `
mappings:
  remote:
    proxy_url: 127.0.0.1:7890
`,
		"auto reload on http": `
mappings:
  backend: http
  remote:
    base_url: https://acct.blob.core.windows.net
  auto_reload:
    enabled: true
`,
		"rotate without path": `
logging:
  access_log_rotate:
    enabled: true
`,
		"explicit zero size": `
logging:
  access_log_rotate:
    max_size_mb: 0
`,
		"negative age": `
logging:
  access_log_rotate:
    max_age_days: -1
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfigFile(t, content)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoad_AutoReloadDebounceMustBePositive(t *testing.T) {
	path := writeConfigFile(t, `
mappings:
  auto_reload:
    enabled: true
`)
	t.Setenv("X12MAP_MAPPINGS_AUTO_RELOAD_DEBOUNCE_MS", "0")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "debounce_ms") {
		t.Fatalf("expected debounce error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
