package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	LLM      LLMConfig      `yaml:"llm"`
	Redis    RedisConfig    `yaml:"redis"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Learning LearningConfig `yaml:"learning"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
	// CORSOrigins lists allowed browser origins; empty allows all.
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json; empty picks by level
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// AuthConfig holds the shared pilot password and token settings.
type AuthConfig struct {
	AppPassword string `yaml:"app_password"`
	JWTSecret   string `yaml:"jwt_secret"`
	ExpireHour  int    `yaml:"expire_hour"`
}

// LLMConfig lists the providers tried in order by the semantic judge.
type LLMConfig struct {
	TimeoutMS int                 `yaml:"timeout_ms"`
	Providers []LLMProviderConfig `yaml:"providers"`
}

type LLMProviderConfig struct {
	Name        string  `yaml:"name"`
	Provider    string  `yaml:"provider"` // openai, azure, anthropic, ollama, gemini
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// RedisConfig for optional async learning refresh queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type FeedbackConfig struct {
	HistoryDays          int     `yaml:"history_days"`
	HistoryMinConfidence float64 `yaml:"history_min_confidence"`
	JudgmentCacheMinutes int     `yaml:"judgment_cache_minutes"`
	LabAgingDays         int     `yaml:"lab_aging_days"`
	LabAgingCron         string  `yaml:"lab_aging_cron"`
	LabQueueLimit        int     `yaml:"lab_queue_limit"`
	SubmitRPS            float64 `yaml:"submit_rps"`
	SubmitBurst          int     `yaml:"submit_burst"`
}

type LearningConfig struct {
	CorpusDir     string  `yaml:"corpus_dir"`
	MinConfidence float64 `yaml:"min_confidence"`
	MaxPatterns   int     `yaml:"max_patterns"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		// Unmarshal over the defaults so omitted keys keep their default value.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.overrideFromEnv()
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "feedback/feedback.db",
		},
		Auth: AuthConfig{
			AppPassword: "dana2025",
			JWTSecret:   "danas-brain-secret-change-in-production",
			ExpireHour:  24,
		},
		LLM: LLMConfig{
			TimeoutMS: 8000,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Feedback: FeedbackConfig{
			HistoryDays:          30,
			HistoryMinConfidence: 0.0,
			JudgmentCacheMinutes: 60,
			LabAgingDays:         7,
			LabAgingCron:         "@every 1h",
			LabQueueLimit:        50,
			SubmitRPS:            5,
			SubmitBurst:          10,
		},
		Learning: LearningConfig{
			CorpusDir:     "Data/learnings",
			MinConfidence: 0.0,
			MaxPatterns:   200,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if password := os.Getenv("APP_PASSWORD"); password != "" {
		c.Auth.AppPassword = password
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if days := os.Getenv("LAB_AGING_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			c.Feedback.LabAgingDays = n
		}
	}
	c.applyOpenAIEnv()
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// applyOpenAIEnv fills or creates the "openai" provider entry from the
// OPENAI_* variables.
func (c *Config) applyOpenAIEnv() {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL_NAME")
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if apiKey == "" && model == "" && baseURL == "" {
		return
	}

	idx := -1
	for i, p := range c.LLM.Providers {
		if p.Provider == "openai" {
			idx = i
			break
		}
	}
	if idx == -1 {
		c.LLM.Providers = append(c.LLM.Providers, LLMProviderConfig{
			Name:        "openai",
			Provider:    "openai",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   150,
			Temperature: 0.1,
		})
		idx = len(c.LLM.Providers) - 1
	}

	p := &c.LLM.Providers[idx]
	if apiKey != "" {
		p.APIKey = apiKey
	}
	if model != "" {
		p.Model = model
	}
	if baseURL != "" {
		p.BaseURL = baseURL
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
