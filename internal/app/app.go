package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"market-miner/internal/alerting"
	"market-miner/internal/config"
	"market-miner/internal/fetcher"
	"market-miner/internal/skipcache"
	"market-miner/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newScraper() *fetcher.Scraper {
	return fetcher.NewScraper(fetcher.ClientOptions{
		BaseURL:   a.Config.Scraper.BaseURL,
		Timeout:   a.Config.Scraper.RequestTimeout,
		UserAgent: a.Config.Scraper.UserAgent,
	}, a.Logger)
}

// openStore picks the persistence backend: PostgreSQL when a DSN is
// configured, CSV files otherwise.
func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	if a.Config.Database.DSN != "" {
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, err
		}
		return storage.NewPostgresStore(pool), nil
	}
	out := a.Config.Output
	return storage.NewCSVStore(out.ItemsPath(), out.ComparisonsPath()), nil
}

func (a *App) openSkipCache() (skipcache.Cache, error) {
	if a.Config.Output.SkipCacheBackend == config.SkipCacheSQLite {
		return skipcache.NewSQLite(a.Config.Output.SkippedPath())
	}
	return skipcache.NewJSONFile(a.Config.Output.SkippedPath()), nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// ScanOptions override the configured scan parameters; zero values fall
// back to config.
type ScanOptions struct {
	FromID  int
	ToID    int
	Servers []string
	Workers int
}

// ExportOptions hold parameters for exporting comparison data.
type ExportOptions struct {
	CSVPath string
	PNGPath string
	Top     int
	Scope   string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit       int
	Comparisons bool
}
