package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"market-miner/internal/fetcher"
	"market-miner/internal/logging"
)

// Skip cache backends.
const (
	SkipCacheJSON   = "json"
	SkipCacheSQLite = "sqlite"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Output   OutputConfig   `mapstructure:"output"`
	Database DatabaseConfig `mapstructure:"database"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ScraperConfig covers access to the auction house site.
type ScraperConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	JobDelay       time.Duration `mapstructure:"job_delay"`
}

// ScanConfig holds the default scan parameters; CLI flags override them.
type ScanConfig struct {
	FromID  int      `mapstructure:"from_id"`
	ToID    int      `mapstructure:"to_id"`
	Servers []string `mapstructure:"servers"`
	Workers int      `mapstructure:"workers"`
}

// OutputConfig locates the persisted tables.
type OutputConfig struct {
	Dir              string `mapstructure:"dir"`
	ItemsFile        string `mapstructure:"items_file"`
	ComparisonsFile  string `mapstructure:"comparisons_file"`
	SkippedFile      string `mapstructure:"skipped_file"`
	SkipCacheBackend string `mapstructure:"skip_cache_backend"`
}

// ItemsPath resolves the items table location.
func (o OutputConfig) ItemsPath() string { return filepath.Join(o.Dir, o.ItemsFile) }

// ComparisonsPath resolves the comparison table location.
func (o OutputConfig) ComparisonsPath() string { return filepath.Join(o.Dir, o.ComparisonsFile) }

// SkippedPath resolves the skip cache location.
func (o OutputConfig) SkippedPath() string { return filepath.Join(o.Dir, o.SkippedFile) }

// DatabaseConfig encapsulates optional PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// WatchConfig governs the repeated-scan loop.
type WatchConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignToStart bool          `mapstructure:"align_to_start"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// AlertingConfig defines spread-alert thresholds and routing.
type AlertingConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	MinSpread int64          `mapstructure:"min_spread"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	TopSpreads int `mapstructure:"top_spreads"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKETMINER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "marketminer")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("scraper.base_url", "https://www.ffxiah.com")
	v.SetDefault("scraper.request_timeout", "15s")
	v.SetDefault("scraper.job_delay", "50ms")

	v.SetDefault("scan.from_id", 1)
	v.SetDefault("scan.to_id", 100)
	v.SetDefault("scan.servers", []string{"Asura"})
	v.SetDefault("scan.workers", 5)

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.items_file", "items.csv")
	v.SetDefault("output.comparisons_file", "cross_server_items.csv")
	v.SetDefault("output.skipped_file", "skipped_items.json")
	v.SetDefault("output.skip_cache_backend", SkipCacheJSON)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("watch.interval", "6h")
	v.SetDefault("watch.align_to_start", false)
	v.SetDefault("watch.startup_delay", "0s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_spread", int64(10000))
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.top_spreads", 20)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
// Invalid input is rejected here, before any job is scheduled.
func (c *Config) Validate() error {
	if c.Scan.FromID >= c.Scan.ToID {
		return fmt.Errorf("scan.from_id must be less than scan.to_id")
	}
	if c.Scan.Workers < 1 || c.Scan.Workers > 10 {
		return fmt.Errorf("scan.workers must be between 1 and 10")
	}
	if _, err := fetcher.ResolveServers(c.Scan.Servers); err != nil {
		return fmt.Errorf("scan.servers: %w", err)
	}
	switch c.Output.SkipCacheBackend {
	case SkipCacheJSON, SkipCacheSQLite:
	default:
		return fmt.Errorf("output.skip_cache_backend must be %q or %q", SkipCacheJSON, SkipCacheSQLite)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be greater than zero")
	}
	if c.Alerting.MinSpread < 0 {
		return fmt.Errorf("alerting.min_spread cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	if c.Export.TopSpreads <= 0 {
		return fmt.Errorf("export.top_spreads must be greater than zero")
	}
	return nil
}
