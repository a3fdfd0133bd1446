package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BackendFS   = "fs"
	BackendHTTP = "http"

	defaultAccessLogRotateMaxSizeMB  = 100
	defaultAccessLogRotateMaxBackups = 14
	defaultAccessLogRotateMaxAgeDays = 14
)

type AccessLogRotateConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`

	maxSizeMBSet  bool `yaml:"-"`
	maxBackupsSet bool `yaml:"-"`
	maxAgeDaysSet bool `yaml:"-"`
}

// UnmarshalYAML records which limits were written explicitly so that an
// explicit 0 is validated instead of silently defaulted.
func (c *AccessLogRotateConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawRotate struct {
		Enabled    bool `yaml:"enabled"`
		MaxSizeMB  int  `yaml:"max_size_mb"`
		MaxBackups int  `yaml:"max_backups"`
		MaxAgeDays int  `yaml:"max_age_days"`
		Compress   bool `yaml:"compress"`
	}
	var raw rawRotate
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.Enabled = raw.Enabled
	c.MaxSizeMB = raw.MaxSizeMB
	c.MaxBackups = raw.MaxBackups
	c.MaxAgeDays = raw.MaxAgeDays
	c.Compress = raw.Compress
	c.maxSizeMBSet = false
	c.maxBackupsSet = false
	c.maxAgeDaysSet = false

	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		switch strings.TrimSpace(value.Content[i].Value) {
		case "max_size_mb":
			c.maxSizeMBSet = true
		case "max_backups":
			c.maxBackupsSet = true
		case "max_age_days":
			c.maxAgeDaysSet = true
		}
	}
	return nil
}

type LoggingConfig struct {
	Level                 string                `yaml:"level"`
	AccessLog             bool                  `yaml:"access_log"`
	AccessLogPath         string                `yaml:"access_log_path"`
	AccessLogFormat       string                `yaml:"access_log_format"`
	AccessLogFormatPreset string                `yaml:"access_log_format_preset"`
	AccessLogRotate       AccessLogRotateConfig `yaml:"access_log_rotate"`
}

// RemoteConfig addresses blob-style object storage holding mapping documents.
type RemoteConfig struct {
	// BaseURL is the storage account endpoint, e.g. https://acct.blob.core.windows.net.
	// The container name is appended per request.
	BaseURL   string            `yaml:"base_url"`
	Query     string            `yaml:"query"`
	TimeoutMs int               `yaml:"timeout_ms"`
	Headers   map[string]string `yaml:"headers"`
	ProxyURL  string            `yaml:"proxy_url"`
	NoProxy   string            `yaml:"no_proxy"`
}

type MappingsConfig struct {
	Backend   string       `yaml:"backend"`
	Dir       string       `yaml:"dir"`
	Container string       `yaml:"container"`
	Root      string       `yaml:"root"`
	Remote    RemoteConfig `yaml:"remote"`
	// AutoReload watches dir and revalidates the mapping catalog at runtime.
	AutoReload struct {
		Enabled    bool `yaml:"enabled"`
		DebounceMs int  `yaml:"debounce_ms"`
	} `yaml:"auto_reload"`
}

type Config struct {
	Server struct {
		Listen         string `yaml:"listen"`
		ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
		WriteTimeoutMs int    `yaml:"write_timeout_ms"`
		PidFile        string `yaml:"pid_file"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
	} `yaml:"server"`

	Auth struct {
		// APIKey protects /x12-map and /admin when set.
		APIKey string `yaml:"api_key"`
	} `yaml:"auth"`

	Mappings MappingsConfig `yaml:"mappings"`

	Logging LoggingConfig `yaml:"logging"`
}

func Load(path string) (*Config, error) {
	// #nosec G304 -- path is provided by trusted config/flag.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, for callers
// running without a config file.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// MappingDir returns the directory that holds the mapping root for the fs backend.
func (c *Config) MappingDir() string {
	return strings.TrimSpace(c.Mappings.Dir)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = ":3310"
	}
	if cfg.Server.ReadTimeoutMs <= 0 {
		cfg.Server.ReadTimeoutMs = 30000
	}
	if cfg.Server.WriteTimeoutMs <= 0 {
		cfg.Server.WriteTimeoutMs = 30000
	}
	if strings.TrimSpace(cfg.Server.PidFile) == "" {
		cfg.Server.PidFile = "/var/run/x12map.pid"
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 16 << 20
	}
	if strings.TrimSpace(cfg.Mappings.Backend) == "" {
		cfg.Mappings.Backend = BackendFS
	}
	cfg.Mappings.Backend = strings.ToLower(strings.TrimSpace(cfg.Mappings.Backend))
	if strings.TrimSpace(cfg.Mappings.Dir) == "" {
		cfg.Mappings.Dir = "./config"
	}
	if strings.TrimSpace(cfg.Mappings.Container) == "" {
		cfg.Mappings.Container = "x12-mappings"
	}
	if strings.TrimSpace(cfg.Mappings.Root) == "" {
		cfg.Mappings.Root = "mapping"
	}
	if cfg.Mappings.Remote.TimeoutMs <= 0 {
		cfg.Mappings.Remote.TimeoutMs = 10000
	}
	if cfg.Mappings.Remote.Headers == nil {
		cfg.Mappings.Remote.Headers = map[string]string{}
	}
	if cfg.Mappings.AutoReload.DebounceMs <= 0 {
		cfg.Mappings.AutoReload.DebounceMs = 300
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	// default true for local debugging
	if !cfg.Logging.AccessLog {
		cfg.Logging.AccessLog = true
	}
	if !cfg.Logging.AccessLogRotate.maxSizeMBSet {
		cfg.Logging.AccessLogRotate.MaxSizeMB = defaultAccessLogRotateMaxSizeMB
	}
	if !cfg.Logging.AccessLogRotate.maxBackupsSet {
		cfg.Logging.AccessLogRotate.MaxBackups = defaultAccessLogRotateMaxBackups
	}
	if !cfg.Logging.AccessLogRotate.maxAgeDaysSet {
		cfg.Logging.AccessLogRotate.MaxAgeDays = defaultAccessLogRotateMaxAgeDays
	}
}

func applyEnvOverrides(cfg *Config) {
	applyEnvServerAuthOverrides(cfg)
	applyEnvMappingOverrides(cfg)
	applyEnvLoggingOverrides(cfg)
}

func applyEnvServerAuthOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("X12MAP_LISTEN")); v != "" {
		cfg.Server.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("X12MAP_API_KEY")); v != "" {
		cfg.Auth.APIKey = v
	}
	if n, ok := envInt("X12MAP_READ_TIMEOUT_MS"); ok && n > 0 {
		cfg.Server.ReadTimeoutMs = n
	}
	if n, ok := envInt("X12MAP_WRITE_TIMEOUT_MS"); ok && n > 0 {
		cfg.Server.WriteTimeoutMs = n
	}
	if v := strings.TrimSpace(os.Getenv("X12MAP_PID_FILE")); v != "" {
		cfg.Server.PidFile = v
	}
}

func applyEnvMappingOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("X12MAP_MAPPING_BACKEND")); v != "" {
		cfg.Mappings.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("X12MAP_MAPPING_DIR")); v != "" {
		cfg.Mappings.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("X12MAP_MAPPING_CONTAINER")); v != "" {
		cfg.Mappings.Container = v
	}
	if v := strings.TrimSpace(os.Getenv("X12MAP_MAPPING_ROOT")); v != "" {
		cfg.Mappings.Root = v
	}
	if v := strings.TrimSpace(os.Getenv("X12MAP_MAPPING_REMOTE_BASE_URL")); v != "" {
		cfg.Mappings.Remote.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("X12MAP_MAPPING_REMOTE_QUERY")); v != "" {
		cfg.Mappings.Remote.Query = v
	}
	if v := strings.TrimSpace(os.Getenv("X12MAP_MAPPING_REMOTE_PROXY_URL")); v != "" {
		cfg.Mappings.Remote.ProxyURL = v
	}
	if n, ok := envInt("X12MAP_MAPPING_REMOTE_TIMEOUT_MS"); ok && n > 0 {
		cfg.Mappings.Remote.TimeoutMs = n
	}
	cfg.Mappings.AutoReload.Enabled = envBool("X12MAP_MAPPINGS_AUTO_RELOAD_ENABLED", cfg.Mappings.AutoReload.Enabled)
	if n, ok := envInt("X12MAP_MAPPINGS_AUTO_RELOAD_DEBOUNCE_MS"); ok {
		cfg.Mappings.AutoReload.DebounceMs = n
	}
}

func applyEnvLoggingOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("X12MAP_ACCESS_LOG_PATH")); v != "" {
		cfg.Logging.AccessLogPath = v
	}
	if v := os.Getenv("X12MAP_ACCESS_LOG_FORMAT"); strings.TrimSpace(v) != "" {
		cfg.Logging.AccessLogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("X12MAP_ACCESS_LOG_FORMAT_PRESET")); v != "" {
		cfg.Logging.AccessLogFormatPreset = v
	}
	cfg.Logging.AccessLogRotate.Enabled = envBool("X12MAP_ACCESS_LOG_ROTATE_ENABLED", cfg.Logging.AccessLogRotate.Enabled)
	if n, ok := envInt("X12MAP_ACCESS_LOG_ROTATE_MAX_SIZE_MB"); ok {
		cfg.Logging.AccessLogRotate.MaxSizeMB = n
		cfg.Logging.AccessLogRotate.maxSizeMBSet = true
	}
	if n, ok := envInt("X12MAP_ACCESS_LOG_ROTATE_MAX_BACKUPS"); ok {
		cfg.Logging.AccessLogRotate.MaxBackups = n
		cfg.Logging.AccessLogRotate.maxBackupsSet = true
	}
	if n, ok := envInt("X12MAP_ACCESS_LOG_ROTATE_MAX_AGE_DAYS"); ok {
		cfg.Logging.AccessLogRotate.MaxAgeDays = n
		cfg.Logging.AccessLogRotate.maxAgeDaysSet = true
	}
	cfg.Logging.AccessLogRotate.Compress = envBool("X12MAP_ACCESS_LOG_ROTATE_COMPRESS", cfg.Logging.AccessLogRotate.Compress)
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func validate(cfg *Config) error {
	switch cfg.Mappings.Backend {
	case BackendFS:
	case BackendHTTP:
		u, err := url.Parse(strings.TrimSpace(cfg.Mappings.Remote.BaseURL))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("mappings.remote.base_url must be an absolute URL when mappings.backend=http")
		}
	default:
		return errors.New("mappings.backend must be fs or http")
	}
	if strings.Contains(strings.Trim(cfg.Mappings.Container, "/"), "/") {
		return errors.New("mappings.container must be a single path element")
	}
	if v := strings.TrimSpace(cfg.Mappings.Remote.ProxyURL); v != "" && !strings.Contains(v, "://") {
		return errors.New("mappings.remote.proxy_url must be a URL (e.g. http://127.0.0.1:7890)")
	}
	if cfg.Mappings.AutoReload.Enabled {
		if cfg.Mappings.AutoReload.DebounceMs <= 0 {
			return errors.New("mappings.auto_reload.debounce_ms must be > 0 when mappings.auto_reload.enabled=true")
		}
		if cfg.Mappings.Backend != BackendFS {
			return errors.New("mappings.auto_reload requires mappings.backend=fs")
		}
	}
	if cfg.Logging.AccessLogRotate.Enabled {
		if !cfg.Logging.AccessLog {
			return errors.New("logging.access_log must be true when logging.access_log_rotate.enabled=true")
		}
		if strings.TrimSpace(cfg.Logging.AccessLogPath) == "" {
			return errors.New("logging.access_log_path is required when logging.access_log_rotate.enabled=true")
		}
	}
	if cfg.Logging.AccessLogRotate.MaxSizeMB <= 0 {
		return errors.New("logging.access_log_rotate.max_size_mb must be > 0")
	}
	if cfg.Logging.AccessLogRotate.MaxBackups <= 0 {
		return errors.New("logging.access_log_rotate.max_backups must be > 0")
	}
	if cfg.Logging.AccessLogRotate.MaxAgeDays < 0 {
		return errors.New("logging.access_log_rotate.max_age_days must be >= 0")
	}
	return nil
}
