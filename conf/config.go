// Package conf loads and validates the process-wide configuration (§6.4,
// §9 "Configuration"). Layering: an optional YAML file (CONFIG_FILE) is
// read first, then environment variables overwrite any field they set —
// env vars are authoritative, matching the precedence shown in
// other_examples' config loaders.
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved, validated configuration singleton.
type Config struct {
	MusicRootPath          string `yaml:"music_root_path"`
	CacheDurationDays      int    `yaml:"cache_duration_days"`
	LogLevel               string `yaml:"log_level"`
	MaxScanWorkers         int    `yaml:"max_scan_workers"`
	BatchSize              int    `yaml:"batch_size"`
	LockTimeoutSeconds     int    `yaml:"lock_timeout_seconds"`
	OperationTimeoutSeconds int   `yaml:"operation_timeout_seconds"`
	ExcludeFile            string `yaml:"exclude_file"`
	MonitorAddr            string `yaml:"monitor_addr"`
	MonitorToken           string `yaml:"monitor_token"`
	Watch                  bool   `yaml:"watch"`
	RescanCron             string `yaml:"rescan_cron"`
}

var validLogLevels = map[string]bool{"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true}

func defaults() Config {
	return Config{
		CacheDurationDays:       30,
		LogLevel:                "INFO",
		MaxScanWorkers:          4,
		BatchSize:               100,
		LockTimeoutSeconds:      5,
		OperationTimeoutSeconds: 30,
	}
}

// Load resolves Config from an optional YAML file overlaid with environment
// variables, then validates it. A validation failure here should translate
// to process exit code 2 (§6.6), never a partial/zero Config.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MUSIC_ROOT_PATH"); v != "" {
		cfg.MusicRootPath = v
	}
	if v := os.Getenv("CACHE_DURATION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheDurationDays = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToUpper(v)
	}
	if v := os.Getenv("MAX_SCAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxScanWorkers = n
		}
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchSize = n
		}
	}
	if v := os.Getenv("LOCK_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LockTimeoutSeconds = n
		}
	}
	if v := os.Getenv("OPERATION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OperationTimeoutSeconds = n
		}
	}
	if v := os.Getenv("EXCLUDE_FILE"); v != "" {
		cfg.ExcludeFile = v
	}
	if v := os.Getenv("MONITOR_ADDR"); v != "" {
		cfg.MonitorAddr = v
	}
	if v := os.Getenv("MONITOR_TOKEN"); v != "" {
		cfg.MonitorToken = v
	}
	if v := os.Getenv("WATCH"); v != "" {
		cfg.Watch = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RESCAN_CRON"); v != "" {
		cfg.RescanCron = v
	}
}

// Validate enforces §6.4's constraints. It does not check that
// MusicRootPath exists on disk — that failure is distinct (exit code 3,
// §6.6) and is detected by the CLI right after configuration loads.
func (c Config) Validate() error {
	if c.MusicRootPath == "" {
		return fmt.Errorf("MUSIC_ROOT_PATH is required")
	}
	if !strings.HasPrefix(c.MusicRootPath, "/") && !hasDriveLetter(c.MusicRootPath) {
		return fmt.Errorf("MUSIC_ROOT_PATH must be an absolute path, got %q", c.MusicRootPath)
	}
	if c.CacheDurationDays < 0 {
		return fmt.Errorf("CACHE_DURATION_DAYS must be >= 0")
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of DEBUG, INFO, WARNING, ERROR, got %q", c.LogLevel)
	}
	if c.MaxScanWorkers < 1 {
		return fmt.Errorf("MAX_SCAN_WORKERS must be >= 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be >= 1")
	}
	if c.LockTimeoutSeconds < 1 {
		return fmt.Errorf("LOCK_TIMEOUT_SECONDS must be >= 1")
	}
	if c.OperationTimeoutSeconds < 1 {
		return fmt.Errorf("OPERATION_TIMEOUT_SECONDS must be >= 1")
	}
	if c.MonitorAddr != "" && c.MonitorToken == "" {
		return fmt.Errorf("MONITOR_TOKEN is required when MONITOR_ADDR enables the monitor surface")
	}
	return nil
}

func hasDriveLetter(p string) bool {
	return len(p) >= 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/')
}
