// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Arxiv    ArxivConfig    `mapstructure:"arxiv"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ArxivConfig governs the upstream search client.
type ArxivConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	Keywords       []string `mapstructure:"keywords"`
	PageSize       int      `mapstructure:"page_size"`
	DelaySeconds   int      `mapstructure:"delay_seconds"`
	MaxRetries     int      `mapstructure:"max_retries"`
	WindowLimit    int      `mapstructure:"window_result_limit"`
	UserAgent      string   `mapstructure:"user_agent"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// StorageConfig sets partition file layout and routing policy.
type StorageConfig struct {
	BaseDir         string `mapstructure:"base_dir"`
	FilePrefix      string `mapstructure:"file_prefix"`
	FileSuffix      string `mapstructure:"file_suffix"`
	MonthlyFromYear int    `mapstructure:"monthly_from_year"`
	Source          string `mapstructure:"source"`
}

// ScheduleConfig drives the incremental crawl scheduler.
type ScheduleConfig struct {
	CheckHour     int    `mapstructure:"check_hour"`
	CoverageStart string `mapstructure:"coverage_start"`
}

// MirrorConfig selects the optional secondary record store.
type MirrorConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// PubSubConfig holds metadata for merge notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("arxiv.base_url", "https://export.arxiv.org/api/query")
	v.SetDefault("arxiv.keywords", []string{"LLM", "large language model"})
	v.SetDefault("arxiv.page_size", 25)
	v.SetDefault("arxiv.delay_seconds", 30)
	v.SetDefault("arxiv.max_retries", 5)
	v.SetDefault("arxiv.window_result_limit", 800)
	v.SetDefault("arxiv.user_agent", "arxiv-harvester/0.1")
	v.SetDefault("arxiv.timeout_seconds", 60)
	v.SetDefault("storage.base_dir", "arxiv_papers")
	v.SetDefault("storage.file_prefix", "arxiv")
	v.SetDefault("storage.file_suffix", "llm_papers")
	v.SetDefault("storage.monthly_from_year", 2025)
	v.SetDefault("storage.source", "arXiv")
	v.SetDefault("schedule.check_hour", 12)
	v.SetDefault("schedule.coverage_start", "2025-01-01")
	v.SetDefault("mirror.provider", "none")
	v.SetDefault("mirror.table", "papers")
	v.SetDefault("pubsub.enabled", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Arxiv.Keywords) == 0 {
		return fmt.Errorf("arxiv.keywords must not be empty")
	}
	if c.Arxiv.PageSize <= 0 {
		return fmt.Errorf("arxiv.page_size must be > 0")
	}
	if c.Arxiv.WindowLimit <= 0 {
		return fmt.Errorf("arxiv.window_result_limit must be > 0")
	}
	if c.Schedule.CheckHour < 0 || c.Schedule.CheckHour > 23 {
		return fmt.Errorf("schedule.check_hour must be between 0 and 23")
	}
	if _, err := c.CoverageStart(); err != nil {
		return err
	}
	switch c.Mirror.Provider {
	case "none", "postgres":
	default:
		return fmt.Errorf("unknown mirror provider: %s", c.Mirror.Provider)
	}
	if c.Mirror.Provider == "postgres" && c.Mirror.DSN == "" {
		return fmt.Errorf("mirror.dsn must be set when mirror.provider is postgres")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// CoverageStart parses schedule.coverage_start as a UTC calendar date.
func (c Config) CoverageStart() (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", c.Schedule.CoverageStart, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule.coverage_start: %w", err)
	}
	return t, nil
}

// RequestDelay converts arxiv.delay_seconds into a duration.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Arxiv.DelaySeconds) * time.Second
}

// RequestTimeout converts arxiv.timeout_seconds into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Arxiv.TimeoutSeconds) * time.Second
}
