package config

import (
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "MARKETINTEL_CONFIG"
)

// Secrets are credentials read from the environment only, never from YAML.
type Secrets struct {
	DatabaseDSN     string `env:"DATABASE_URL"`
	SerperAPIKey    string `env:"SERPER_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	ResendAPIKey    string `env:"RESEND_API_KEY"`
}

// Config holds high-level settings required across the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Org       OrgConfig       `yaml:"organization"`
	Search    SearchConfig    `yaml:"search"`
	Extract   ExtractConfig   `yaml:"extraction"`
	Cache     CacheConfig     `yaml:"cache"`
	Mail      MailConfig      `yaml:"mail"`
	Logging   LoggingConfig   `yaml:"logging"`
	Secrets   Secrets         `yaml:"-"`
}

// ServerConfig describes the HTTP control surface.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	StatusPath string `yaml:"statusPath"`
}

// SchedulerConfig defines when recurring refresh runs execute.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// OrgConfig provides fallback tenant context when no Organization row exists.
type OrgConfig struct {
	CompanyName         string   `yaml:"companyName"`
	Industry            string   `yaml:"industry"`
	IndustryKeywords    []string `yaml:"industryKeywords"`
	Regions             []string `yaml:"regions"`
	PriorityCompetitors []string `yaml:"priorityCompetitors"`
}

// SearchConfig bounds the provider adapters.
type SearchConfig struct {
	SerperEndpoint   string        `yaml:"serperEndpoint"`
	GeminiEndpoint   string        `yaml:"geminiEndpoint"`
	GeminiModel      string        `yaml:"geminiModel"`
	Concurrency      int           `yaml:"concurrency"`
	ResultsPerQuery  int           `yaml:"resultsPerQuery"`
	EnglishResultCap int           `yaml:"englishResultCap"`
	LivenessTimeout  time.Duration `yaml:"livenessTimeout"`
	LivenessWorkers  int           `yaml:"livenessWorkers"`
	JitterMin        time.Duration `yaml:"jitterMin"`
	JitterMax        time.Duration `yaml:"jitterMax"`
	DeepJitterMin    time.Duration `yaml:"deepJitterMin"`
	DeepJitterMax    time.Duration `yaml:"deepJitterMax"`
}

// ExtractConfig bounds the extraction engine. Retry budgets are policy
// constants, kept configurable on purpose.
type ExtractConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	Model           string        `yaml:"model"`
	MaxTokens       int           `yaml:"maxTokens"`
	BatchSize       int           `yaml:"batchSize"`
	NetworkRetries  int           `yaml:"networkRetries"`
	ParseRetries    int           `yaml:"parseRetries"`
	RetryBackoff    time.Duration `yaml:"retryBackoff"`
	InterBatchDelay time.Duration `yaml:"interBatchDelay"`
	CompetitorBatch int           `yaml:"competitorBatch"`
	CooldownMin     time.Duration `yaml:"cooldownMin"`
	CooldownMax     time.Duration `yaml:"cooldownMax"`
	DedupWindowDays int           `yaml:"dedupWindowDays"`
}

// CacheConfig describes the on-disk provider result caches.
type CacheConfig struct {
	Dir       string        `yaml:"dir"`
	SerperTTL time.Duration `yaml:"serperTtl"`
	GeminiTTL time.Duration `yaml:"geminiTtl"`
}

// MailConfig wires the completion-email sender.
type MailConfig struct {
	Endpoint     string `yaml:"endpoint"`
	From         string `yaml:"from"`
	DashboardURL string `yaml:"dashboardUrl"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads .env files, YAML configuration (if present), and environment
// secrets.
func Load() Config {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	if err := env.Parse(&cfg.Secrets); err != nil {
		log.Printf("config: cannot parse environment: %v", err)
	}

	cfg.bindTimezone()
	return cfg
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.StatusPath != "" {
		base.Server.StatusPath = override.Server.StatusPath
	}

	if override.Scheduler.Interval != 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Org.CompanyName != "" {
		base.Org.CompanyName = override.Org.CompanyName
	}
	if override.Org.Industry != "" {
		base.Org.Industry = override.Org.Industry
	}
	if len(override.Org.IndustryKeywords) > 0 {
		base.Org.IndustryKeywords = override.Org.IndustryKeywords
	}
	if len(override.Org.Regions) > 0 {
		base.Org.Regions = override.Org.Regions
	}
	if len(override.Org.PriorityCompetitors) > 0 {
		base.Org.PriorityCompetitors = override.Org.PriorityCompetitors
	}

	base.Search = mergeSearch(base.Search, override.Search)
	base.Extract = mergeExtract(base.Extract, override.Extract)

	if override.Cache.Dir != "" {
		base.Cache.Dir = override.Cache.Dir
	}
	if override.Cache.SerperTTL != 0 {
		base.Cache.SerperTTL = override.Cache.SerperTTL
	}
	if override.Cache.GeminiTTL != 0 {
		base.Cache.GeminiTTL = override.Cache.GeminiTTL
	}

	if override.Mail.Endpoint != "" {
		base.Mail.Endpoint = override.Mail.Endpoint
	}
	if override.Mail.From != "" {
		base.Mail.From = override.Mail.From
	}
	if override.Mail.DashboardURL != "" {
		base.Mail.DashboardURL = override.Mail.DashboardURL
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func mergeSearch(base, override SearchConfig) SearchConfig {
	if override.SerperEndpoint != "" {
		base.SerperEndpoint = override.SerperEndpoint
	}
	if override.GeminiEndpoint != "" {
		base.GeminiEndpoint = override.GeminiEndpoint
	}
	if override.GeminiModel != "" {
		base.GeminiModel = override.GeminiModel
	}
	if override.Concurrency > 0 {
		base.Concurrency = override.Concurrency
	}
	if override.ResultsPerQuery > 0 {
		base.ResultsPerQuery = override.ResultsPerQuery
	}
	if override.EnglishResultCap > 0 {
		base.EnglishResultCap = override.EnglishResultCap
	}
	if override.LivenessTimeout > 0 {
		base.LivenessTimeout = override.LivenessTimeout
	}
	if override.LivenessWorkers > 0 {
		base.LivenessWorkers = override.LivenessWorkers
	}
	if override.JitterMin > 0 {
		base.JitterMin = override.JitterMin
	}
	if override.JitterMax > 0 {
		base.JitterMax = override.JitterMax
	}
	if override.DeepJitterMin > 0 {
		base.DeepJitterMin = override.DeepJitterMin
	}
	if override.DeepJitterMax > 0 {
		base.DeepJitterMax = override.DeepJitterMax
	}
	return base
}

func mergeExtract(base, override ExtractConfig) ExtractConfig {
	if override.Endpoint != "" {
		base.Endpoint = override.Endpoint
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.BatchSize > 0 {
		base.BatchSize = override.BatchSize
	}
	if override.NetworkRetries > 0 {
		base.NetworkRetries = override.NetworkRetries
	}
	if override.ParseRetries > 0 {
		base.ParseRetries = override.ParseRetries
	}
	if override.RetryBackoff > 0 {
		base.RetryBackoff = override.RetryBackoff
	}
	if override.InterBatchDelay > 0 {
		base.InterBatchDelay = override.InterBatchDelay
	}
	if override.CompetitorBatch > 0 {
		base.CompetitorBatch = override.CompetitorBatch
	}
	if override.CooldownMin > 0 {
		base.CooldownMin = override.CooldownMin
	}
	if override.CooldownMax > 0 {
		base.CooldownMax = override.CooldownMax
	}
	if override.DedupWindowDays > 0 {
		base.DedupWindowDays = override.DedupWindowDays
	}
	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Server: ServerConfig{
			Addr:       ":8080",
			StatusPath: "public/refresh_status.json",
		},
		Scheduler: SchedulerConfig{
			Interval: 24 * time.Hour,
			Timezone: defaultTimezone,
			location: tz,
		},
		Org: OrgConfig{
			CompanyName: "My Company",
			Industry:    "Technology",
		},
		Search: SearchConfig{
			SerperEndpoint:   "https://google.serper.dev",
			GeminiEndpoint:   "https://generativelanguage.googleapis.com/v1beta",
			GeminiModel:      "gemini-2.0-flash",
			Concurrency:      3,
			ResultsPerQuery:  10,
			EnglishResultCap: 25,
			LivenessTimeout:  5 * time.Second,
			LivenessWorkers:  10,
			JitterMin:        1 * time.Second,
			JitterMax:        3 * time.Second,
			DeepJitterMin:    1500 * time.Millisecond,
			DeepJitterMax:    3 * time.Second,
		},
		Extract: ExtractConfig{
			Endpoint:        "https://api.anthropic.com/v1/messages",
			Model:           "claude-haiku-4-5-20251001",
			MaxTokens:       8000,
			BatchSize:       12,
			NetworkRetries:  2,
			ParseRetries:    2,
			RetryBackoff:    2 * time.Second,
			InterBatchDelay: 500 * time.Millisecond,
			CompetitorBatch: 5,
			CooldownMin:     3 * time.Second,
			CooldownMax:     6 * time.Second,
			DedupWindowDays: 5,
		},
		Cache: CacheConfig{
			Dir:       "cache",
			SerperTTL: 7 * 24 * time.Hour,
			GeminiTTL: 24 * time.Hour,
		},
		Mail: MailConfig{
			Endpoint:     "https://api.resend.com/emails",
			From:         "Market Intel <onboarding@resend.dev>",
			DashboardURL: "http://localhost:3000",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
