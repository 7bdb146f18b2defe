// Package runner schedules (item, server) fetch jobs onto a bounded
// worker pool and folds completed jobs into rows, exclusions, and
// cross-server comparisons.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"market-miner/internal/fetcher"
	"market-miner/internal/reconcile"
	"market-miner/internal/skipcache"
	"market-miner/internal/storage"
)

const (
	// MinWorkers and MaxWorkers bound the pool size an operator may pick.
	MinWorkers = 1
	MaxWorkers = 10

	defaultJobDelay = 50 * time.Millisecond
)

// Options parameterise one run.
type Options struct {
	FromID  int
	ToID    int
	Servers map[string]int
	Workers int
	// Delay is slept by a worker after each completed job to bound the
	// request rate against the site.
	Delay time.Duration
}

func (o Options) validate() error {
	if o.FromID >= o.ToID {
		return fmt.Errorf("from id %d must be less than to id %d", o.FromID, o.ToID)
	}
	if o.Workers < MinWorkers || o.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between %d and %d, got %d", MinWorkers, MaxWorkers, o.Workers)
	}
	if len(o.Servers) == 0 {
		return fmt.Errorf("at least one server must be selected")
	}
	return nil
}

// Runner drains a job queue with a bounded worker pool. Results are
// consumed on a single goroutine in completion order; that consumer is
// the only writer to the skip cache and the accumulation buffers, so no
// further locking is needed.
type Runner struct {
	fetch  fetcher.ItemFetcher
	cache  skipcache.Cache
	sink   Sink
	logger zerolog.Logger
}

// New constructs a runner. sink may be nil.
func New(fetch fetcher.ItemFetcher, cache skipcache.Cache, sink Sink, logger zerolog.Logger) *Runner {
	if sink == nil {
		sink = NopSink{}
	}
	return &Runner{
		fetch:  fetch,
		cache:  cache,
		sink:   sink,
		logger: logger.With().Str("component", "runner").Logger(),
	}
}

// runState accumulates one run's mutable state on the consumer side.
type runState struct {
	opts      Options
	servers   []string // lexicographic
	startedAt time.Time

	total     int
	processed int
	found     int
	excluded  int

	items   []storage.ItemRow
	buckets map[int][]reconcile.ServerRecord
	compare []storage.ComparisonRow
}

// Run executes one scan. Single-server runs enumerate one job per item.
// Multi-server runs first validate every item against the
// lexicographically first server; only items that prove fetchable and
// sellable there are expanded across the remaining servers, so excluded
// items never pay the full server-count multiplier.
//
// Cancellation is cooperative: once ctx is done, in-flight jobs finish
// but their results are discarded and nothing further is scheduled.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Delay <= 0 {
		opts.Delay = defaultJobDelay
	}

	st := &runState{
		opts:      opts,
		servers:   fetcher.SortedServerNames(opts.Servers),
		startedAt: time.Now(),
		buckets:   make(map[int][]reconcile.ServerRecord),
	}

	ids, preSkipped := r.pruneRange(ctx, opts.FromID, opts.ToID)

	multi := len(st.servers) > 1
	st.total = len(ids) * len(st.servers)

	if !multi {
		server := st.servers[0]
		jobs := make([]Job, 0, len(ids))
		for _, id := range ids {
			jobs = append(jobs, Job{ItemID: id, Server: server, ServerID: opts.Servers[server]})
		}
		r.runPhase(ctx, st, jobs, nil)
	} else {
		validation := st.servers[0]
		jobs := make([]Job, 0, len(ids))
		for _, id := range ids {
			jobs = append(jobs, Job{ItemID: id, Server: validation, ServerID: opts.Servers[validation]})
		}

		valid := make(map[int]bool, len(ids))
		r.runPhase(ctx, st, jobs, valid)

		// Expansion only for items that passed validation.
		expanded := make([]Job, 0, len(valid)*(len(st.servers)-1))
		for _, id := range ids {
			if !valid[id] {
				continue
			}
			for _, server := range st.servers[1:] {
				expanded = append(expanded, Job{ItemID: id, Server: server, ServerID: opts.Servers[server]})
			}
		}
		st.total = len(ids) + len(expanded)

		r.logger.Info().
			Int("validated", len(valid)).
			Int("expansion_jobs", len(expanded)).
			Str("validation_server", validation).
			Msg("validation pass complete")

		r.runPhase(ctx, st, expanded, nil)
	}

	summary := Summary{
		Processed:   st.processed,
		Found:       st.found,
		Excluded:    st.excluded,
		PreSkipped:  preSkipped,
		Items:       st.items,
		Comparisons: st.compare,
		Elapsed:     time.Since(st.startedAt),
		Cancelled:   ctx.Err() != nil,
	}
	r.sink.RunFinished(summary)
	return &summary, ctx.Err()
}

// pruneRange enumerates the id range minus previously excluded items.
func (r *Runner) pruneRange(ctx context.Context, fromID, toID int) ([]int, int) {
	cached := map[int]skipcache.Entry{}
	if r.cache != nil {
		loaded, err := r.cache.Load(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to load skip cache; scanning full range")
		} else {
			cached = loaded
		}
	}

	ids := make([]int, 0, toID-fromID+1)
	preSkipped := 0
	for id := fromID; id <= toID; id++ {
		if entry, ok := cached[id]; ok {
			preSkipped++
			r.logger.Debug().
				Int("itemid", id).
				Str("name", entry.Name).
				Msgf("previously skipped: %s", entry.Reason())
			continue
		}
		ids = append(ids, id)
	}
	return ids, preSkipped
}

type jobResult struct {
	job    Job
	record *fetcher.ItemRecord
}

// runPhase drains one batch of jobs through the pool. valid, when
// non-nil, marks this as a validation pass and collects passing ids.
func (r *Runner) runPhase(ctx context.Context, st *runState, jobs []Job, valid map[int]bool) {
	if len(jobs) == 0 || ctx.Err() != nil {
		return
	}

	jobCh := make(chan Job)
	resCh := make(chan jobResult)

	g, workerCtx := errgroup.WithContext(ctx)
	for i := 0; i < st.opts.Workers; i++ {
		g.Go(func() error {
			for job := range jobCh {
				record := r.fetch.GetItemData(workerCtx, job.ItemID, job.ServerID)
				select {
				case resCh <- jobResult{job: job, record: record}:
				case <-workerCtx.Done():
					return nil
				}
				// Be polite to the target site.
				select {
				case <-time.After(st.opts.Delay):
				case <-workerCtx.Done():
					return nil
				}
			}
			return nil
		})
	}

	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-workerCtx.Done():
				return
			}
		}
	}()

	go func() {
		g.Wait() //nolint:errcheck // workers only return nil
		close(resCh)
	}()

	for res := range resCh {
		if ctx.Err() != nil {
			// Drain without processing; in-flight results after a stop
			// are discarded, not persisted.
			continue
		}
		r.consume(ctx, st, res, valid)
	}
}

// consume handles one completed job on the single consumer goroutine.
// A panic while handling a result is logged and never aborts the run.
func (r *Runner) consume(ctx context.Context, st *runState, res jobResult, valid map[int]bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Int("itemid", res.job.ItemID).
				Str("server", res.job.Server).
				Msgf("error processing result: %v", rec)
		}
	}()

	st.processed++
	result := r.classify(ctx, res)
	r.sink.JobCompleted(result)

	if result.Outcome == OutcomeFound || result.Outcome == OutcomeNoPrice {
		record := res.record
		if valid != nil {
			valid[record.ItemID] = true
		}
		if result.Outcome == OutcomeFound {
			st.found++
		}

		st.items = append(st.items, storage.ItemRow{
			ItemID:          record.ItemID,
			Name:            record.Name,
			Price:           record.Price,
			StackPrice:      record.StackPrice,
			SoldPerDay:      record.SoldPerDay,
			StackSoldPerDay: record.StackSoldPerDay,
			Category:        record.Category,
			Stackable:       record.StackSize.String(),
			Server:          res.job.Server,
		})

		if len(st.servers) > 1 {
			st.buckets[record.ItemID] = append(st.buckets[record.ItemID], reconcile.ServerRecord{
				Server: res.job.Server,
				Record: record,
			})
			// Records arrive in completion order; compare only once
			// every requested server has reported for this item.
			if len(st.buckets[record.ItemID]) == len(st.servers) {
				r.reconcileItem(st, record.ItemID)
			}
		}
	} else {
		st.excluded++
	}

	r.sink.Progress(r.progress(st))
}

// classify applies the per-job failure taxonomy and records exclusions.
func (r *Runner) classify(ctx context.Context, res jobResult) JobResult {
	result := JobResult{Job: res.job, Record: res.record}

	switch {
	case res.record == nil:
		result.Outcome = OutcomeFailed
		result.Reason = "failed to fetch or parse"
		r.recordExclusion(ctx, res.job.ItemID, fetcher.UnknownName, result.Reason)
	case res.record.Excluded():
		result.Outcome = OutcomeExcluded
		result.Reason = res.record.SkipReason
		r.recordExclusion(ctx, res.job.ItemID, res.record.Name, result.Reason)
	case res.record.Name == fetcher.UnknownName:
		result.Outcome = OutcomeNoName
		result.Reason = "no item name"
		r.recordExclusion(ctx, res.job.ItemID, res.record.Name, result.Reason)
	case res.record.Price <= 0:
		result.Outcome = OutcomeNoPrice
		result.Reason = "no price found"
		r.recordExclusion(ctx, res.job.ItemID, res.record.Name, result.Reason)
	default:
		result.Outcome = OutcomeFound
	}
	return result
}

func (r *Runner) recordExclusion(ctx context.Context, itemID int, name, reason string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.RecordExclusion(ctx, itemID, name, reason); err != nil {
		r.logger.Error().Err(err).Int("itemid", itemID).Msg("failed to persist exclusion")
	}
}

func (r *Runner) reconcileItem(st *runState, itemID int) {
	records := st.buckets[itemID]
	if row := reconcile.Compare(itemID, records); row != nil {
		st.compare = append(st.compare, *row)
		r.logger.Info().
			Int("itemid", itemID).
			Str("name", row.Name).
			Str("low", fmt.Sprintf("%s (%d)", row.LowestServer, row.LowestPrice)).
			Str("high", fmt.Sprintf("%s (%d)", row.HighestServer, row.HighestPrice)).
			Int64("avg", row.AveragePrice).
			Int("servers", row.ServerCount).
			Msg("price comparison")
	}
	if row := reconcile.CompareStacks(itemID, records); row != nil {
		st.compare = append(st.compare, *row)
	}
	delete(st.buckets, itemID)
}

func (r *Runner) progress(st *runState) Progress {
	elapsed := time.Since(st.startedAt)
	progress := Progress{
		Processed: st.processed,
		Total:     st.total,
		Found:     st.found,
		Elapsed:   elapsed,
	}
	if elapsed > 0 && st.processed > 0 {
		perSecond := float64(st.processed) / elapsed.Seconds()
		progress.RatePerMin = perSecond * 60
		if remaining := st.total - st.processed; remaining > 0 {
			progress.ETA = time.Duration(float64(remaining)/perSecond) * time.Second
		}
	}
	return progress
}
