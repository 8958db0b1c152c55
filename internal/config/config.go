package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the server. Env vars always win over the
// optional file overlay, which always wins over the defaults below.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DataDir    string `yaml:"data_dir"`
	LogDir     string `yaml:"log_dir"`

	QuotaBytesTotal int64 `yaml:"quota_bytes_total"`

	LongPollBudget  time.Duration `yaml:"-"`
	PresenceTimeout time.Duration `yaml:"-"`
	SweepIdleWait   time.Duration `yaml:"-"`

	EventRetention         time.Duration `yaml:"-"`
	StatusChangeRetention  time.Duration `yaml:"-"`
	LongPollBudgetSeconds  int           `yaml:"long_poll_budget_seconds"`
	PresenceTimeoutSeconds int           `yaml:"presence_timeout_seconds"`
	SweepIdleWaitSeconds   int           `yaml:"sweep_idle_wait_seconds"`
	RetentionDays          int           `yaml:"retention_days"`

	ReadTimeout     time.Duration `yaml:"-"`
	WriteTimeout    time.Duration `yaml:"-"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	KeepAliveMaxCnt int           `yaml:"keep_alive_max_count"`
}

func Load() *Config {
	cfg := &Config{
		ListenAddr:             "0.0.0.0:3000",
		DataDir:                "v3kn",
		LogDir:                 "logs",
		QuotaBytesTotal:        50 * 1024 * 1024,
		LongPollBudgetSeconds:  30,
		PresenceTimeoutSeconds: 30,
		SweepIdleWaitSeconds:   30,
		RetentionDays:          7,
		MaxBodyBytes:           100 * 1024 * 1024,
		KeepAliveMaxCnt:        10000,
	}

	if path := os.Getenv("V3KN_CONFIG_FILE"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	cfg.ListenAddr = getEnv("V3KN_LISTEN_ADDR", cfg.ListenAddr)
	cfg.DataDir = getEnv("V3KN_DATA_DIR", cfg.DataDir)
	cfg.LogDir = getEnv("V3KN_LOG_DIR", cfg.LogDir)
	cfg.QuotaBytesTotal = getEnvInt64("V3KN_QUOTA_BYTES_TOTAL", cfg.QuotaBytesTotal)
	cfg.LongPollBudgetSeconds = getEnvInt("V3KN_LONG_POLL_BUDGET_SECONDS", cfg.LongPollBudgetSeconds)
	cfg.PresenceTimeoutSeconds = getEnvInt("V3KN_PRESENCE_TIMEOUT_SECONDS", cfg.PresenceTimeoutSeconds)
	cfg.SweepIdleWaitSeconds = getEnvInt("V3KN_SWEEP_IDLE_WAIT_SECONDS", cfg.SweepIdleWaitSeconds)
	cfg.RetentionDays = getEnvInt("V3KN_RETENTION_DAYS", cfg.RetentionDays)
	cfg.MaxBodyBytes = getEnvInt64("V3KN_MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.KeepAliveMaxCnt = getEnvInt("V3KN_KEEP_ALIVE_MAX_COUNT", cfg.KeepAliveMaxCnt)

	cfg.LongPollBudget = time.Duration(cfg.LongPollBudgetSeconds) * time.Second
	cfg.PresenceTimeout = time.Duration(cfg.PresenceTimeoutSeconds) * time.Second
	cfg.SweepIdleWait = time.Duration(cfg.SweepIdleWaitSeconds) * time.Second
	cfg.EventRetention = time.Duration(cfg.RetentionDays) * 24 * time.Hour
	cfg.StatusChangeRetention = cfg.EventRetention
	cfg.ReadTimeout = 120 * time.Second
	cfg.WriteTimeout = 120 * time.Second

	return cfg
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)
	if exists {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
