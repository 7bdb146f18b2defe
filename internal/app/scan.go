package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"market-miner/internal/alerting"
	"market-miner/internal/fetcher"
	"market-miner/internal/runner"
)

// Scan performs one full acquisition run: enumerate, fetch, extract,
// persist, reconcile, and optionally alert on large spreads.
func (a *App) Scan(ctx context.Context, opts ScanOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return a.scan(ctx, opts)
}

func (a *App) scan(ctx context.Context, opts ScanOptions) error {
	fromID := a.Config.Scan.FromID
	if opts.FromID > 0 {
		fromID = opts.FromID
	}
	toID := a.Config.Scan.ToID
	if opts.ToID > 0 {
		toID = opts.ToID
	}
	workers := a.Config.Scan.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	serverNames := a.Config.Scan.Servers
	if len(opts.Servers) > 0 {
		serverNames = opts.Servers
	}

	servers, err := fetcher.ResolveServers(serverNames)
	if err != nil {
		return err
	}

	cache, err := a.openSkipCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	a.Logger.Info().
		Int("from", fromID).
		Int("to", toID).
		Int("workers", workers).
		Strs("servers", fetcher.SortedServerNames(servers)).
		Msg("starting scan")

	run := runner.New(a.newScraper(), cache, &logSink{logger: a.Logger}, a.Logger)
	summary, runErr := run.Run(ctx, runner.Options{
		FromID:  fromID,
		ToID:    toID,
		Servers: servers,
		Workers: workers,
		Delay:   a.Config.Scraper.JobDelay,
	})
	if summary == nil {
		return runErr
	}
	if summary.Cancelled {
		a.Logger.Warn().Msg("scan cancelled; persisting rows collected so far")
	}

	if err := a.persist(ctx, summary); err != nil {
		a.Logger.Error().Err(err).Msg("failed to persist scan results")
	}

	a.alertOnSpreads(ctx, summary)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func (a *App) persist(ctx context.Context, summary *runner.Summary) error {
	if len(summary.Items) == 0 && len(summary.Comparisons) == 0 {
		return nil
	}

	// Persist with a fresh context so Ctrl-C during the scan does not
	// also abort the final merge.
	persistCtx := context.WithoutCancel(ctx)

	store, err := a.openStore(persistCtx)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(summary.Items) > 0 {
		if err := store.MergeItems(persistCtx, summary.Items); err != nil {
			return err
		}
		a.Logger.Info().Int("rows", len(summary.Items)).Msg("item rows merged")
	}
	if len(summary.Comparisons) > 0 {
		if err := store.MergeComparisons(persistCtx, summary.Comparisons); err != nil {
			return err
		}
		a.Logger.Info().Int("rows", len(summary.Comparisons)).Msg("comparison rows merged")
	}
	return nil
}

func (a *App) alertOnSpreads(ctx context.Context, summary *runner.Summary) {
	if !a.Config.Alerting.Enabled {
		return
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return
	}

	threshold := a.Config.Alerting.MinSpread
	for _, cmp := range summary.Comparisons {
		if cmp.PriceDifference < threshold {
			continue
		}
		note := alerting.Notification{Comparison: cmp, MinSpread: threshold}
		if err := notifier.Notify(ctx, note); err != nil {
			a.Logger.Error().Err(err).Int("itemid", cmp.ItemID).Msg("failed to dispatch spread alert")
		}
	}
}

// logSink renders the runner's event stream as log lines.
type logSink struct {
	logger zerolog.Logger
}

func (s *logSink) JobCompleted(res runner.JobResult) {
	switch res.Outcome {
	case runner.OutcomeFound:
		s.logger.Info().
			Int("itemid", res.Job.ItemID).
			Str("server", res.Job.Server).
			Str("name", res.Record.Name).
			Int64("price", res.Record.Price).
			Str("category", res.Record.Category).
			Str("rarity", res.Record.Rarity()).
			Msg("found")
	default:
		s.logger.Warn().
			Int("itemid", res.Job.ItemID).
			Str("server", res.Job.Server).
			Msgf("skipping item: %s", res.Reason)
	}
}

func (s *logSink) Progress(p runner.Progress) {
	s.logger.Debug().
		Int("processed", p.Processed).
		Int("total", p.Total).
		Int("found", p.Found).
		Float64("rate_per_min", p.RatePerMin).
		Dur("eta", p.ETA).
		Msg("progress")
}

func (s *logSink) RunFinished(summary runner.Summary) {
	s.logger.Info().
		Int("processed", summary.Processed).
		Int("found", summary.Found).
		Int("excluded", summary.Excluded).
		Int("pre_skipped", summary.PreSkipped).
		Int("comparisons", len(summary.Comparisons)).
		Dur("elapsed", summary.Elapsed).
		Bool("cancelled", summary.Cancelled).
		Msg("scan finished")
}

var _ runner.Sink = (*logSink)(nil)
