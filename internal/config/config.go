package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Search SearchConfig `yaml:"search" mapstructure:"search"`
	Enrich EnrichConfig `yaml:"enrich" mapstructure:"enrich"`
	Job    JobConfig    `yaml:"job" mapstructure:"job"`
	Sheet  SheetConfig  `yaml:"sheet" mapstructure:"sheet"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// FetchConfig configures raw page retrieval.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	ProxyFile   string `yaml:"proxy_file" mapstructure:"proxy_file"`
}

// Timeout returns the per-request fetch timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// SearchConfig configures the web search client.
type SearchConfig struct {
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst      int     `yaml:"burst" mapstructure:"burst"`
}

// EnrichConfig configures the per-company enrichment engine.
type EnrichConfig struct {
	MaxPeople   int `yaml:"max_people" mapstructure:"max_people"`
	FollowLinks int `yaml:"follow_links" mapstructure:"follow_links"`
}

// JobConfig configures the orchestrator.
type JobConfig struct {
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" mapstructure:"max_concurrent_jobs"`
	Workers           int `yaml:"workers" mapstructure:"workers"`
	BatchSize         int `yaml:"batch_size" mapstructure:"batch_size"` // sheet write-back cadence

	// MinSuccessFraction is the share of processed companies that must
	// enrich without error for a job to finish done; 0 disables the check.
	MinSuccessFraction float64 `yaml:"min_success_fraction" mapstructure:"min_success_fraction"`
}

// SheetConfig configures the spreadsheet collaborator.
type SheetConfig struct {
	DefaultSheetName string `yaml:"default_sheet_name" mapstructure:"default_sheet_name"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONTACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "data/contacts.db")
	v.SetDefault("fetch.timeout_secs", 4)
	v.SetDefault("fetch.proxy_file", "proxies.txt")
	v.SetDefault("search.rate_per_sec", 5.0)
	v.SetDefault("search.burst", 2)
	v.SetDefault("enrich.max_people", 5)
	v.SetDefault("enrich.follow_links", 2)
	v.SetDefault("job.max_concurrent_jobs", 2)
	v.SetDefault("job.workers", 150)
	v.SetDefault("job.batch_size", 100)
	v.SetDefault("job.min_success_fraction", 0.2)
	v.SetDefault("sheet.default_sheet_name", "Cleaned_Data")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the loaded configuration is internally coherent.
func (c *Config) Validate() error {
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url required for postgres driver")
	}
	if c.Job.Workers < 1 {
		return eris.New("config: job.workers must be >= 1")
	}
	if c.Job.BatchSize < 1 {
		return eris.New("config: job.batch_size must be >= 1")
	}
	if c.Enrich.MaxPeople < 1 {
		return eris.New("config: enrich.max_people must be >= 1")
	}
	if c.Job.MinSuccessFraction < 0 || c.Job.MinSuccessFraction > 1 {
		return eris.New("config: job.min_success_fraction must be between 0 and 1")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
