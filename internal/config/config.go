package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppPort  string `yaml:"app_port"`
	LogLevel string `yaml:"log_level"`

	// BackendURL 后端文章接口地址
	BackendURL     string        `yaml:"backend_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Debounce       time.Duration `yaml:"debounce"`

	PostgresDSN  string        `yaml:"postgres_dsn"`
	RedisAddr    string        `yaml:"redis_addr"`
	PageCacheTTL time.Duration `yaml:"page_cache_ttl"`
	SessionTTL   time.Duration `yaml:"session_ttl"`

	WarmCronSpec  string `yaml:"warm_cron_spec"`
	PruneCronSpec string `yaml:"prune_cron_spec"`

	// NewsSources 下拉框中可选的来源
	NewsSources []string `yaml:"news_sources"`

	BasicAuthUser string `yaml:"basic_auth_user"`
	BasicAuthPass string `yaml:"basic_auth_pass"`

	// MockDataset mock 后端的数据文件，为空时使用内置数据
	MockDataset string `yaml:"mock_dataset"`
	MockPort    string `yaml:"mock_port"`
}

func defaults() *Config {
	return &Config{
		AppPort:        "3000",
		LogLevel:       "info",
		BackendURL:     "http://localhost:8000/api/news/approved",
		RequestTimeout: 10 * time.Second,
		Debounce:       300 * time.Millisecond,
		PageCacheTTL:   30 * time.Second,
		SessionTTL:     2 * time.Hour,
		WarmCronSpec:   "*/5 * * * *",
		PruneCronSpec:  "0 * * * *",
		NewsSources:    []string{"alz.org", "nih.gov", "reuters", "bbc", "medicalnewstoday"},
		MockPort:       "8000",
	}
}

// Load 先读取 CONFIG_FILE 指定的 YAML（可选），再用环境变量覆盖
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(bs, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.AppPort = getEnv("APP_PORT", cfg.AppPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.BackendURL = getEnv("BACKEND_URL", cfg.BackendURL)
	cfg.RequestTimeout = getDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.Debounce = getDuration("KEYWORD_DEBOUNCE", cfg.Debounce)
	cfg.PostgresDSN = getEnv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.PageCacheTTL = getDuration("PAGE_CACHE_TTL", cfg.PageCacheTTL)
	cfg.SessionTTL = getDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.WarmCronSpec = getEnv("WARM_CRON_SPEC", cfg.WarmCronSpec)
	cfg.PruneCronSpec = getEnv("PRUNE_CRON_SPEC", cfg.PruneCronSpec)
	cfg.NewsSources = getList("NEWS_SOURCES", cfg.NewsSources)
	cfg.BasicAuthUser = getEnv("APP_BASIC_USER", cfg.BasicAuthUser)
	cfg.BasicAuthPass = getEnv("APP_BASIC_PASS", cfg.BasicAuthPass)
	cfg.MockDataset = getEnv("MOCK_DATASET", cfg.MockDataset)
	cfg.MockPort = getEnv("MOCK_PORT", cfg.MockPort)

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// 兼容纯数字，按毫秒处理
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	return def
}

// getList 逗号分隔，忽略空项
func getList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
