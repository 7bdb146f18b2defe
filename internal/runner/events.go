package runner

import (
	"time"

	"market-miner/internal/fetcher"
	"market-miner/internal/storage"
)

// Job is one unit of scheduled work: a single (item, server) fetch.
// Jobs are created and owned by the runner for the duration of one run.
type Job struct {
	ItemID   int
	Server   string
	ServerID int
}

// Outcome classifies a completed job.
type Outcome int

const (
	// OutcomeFound is a usable record with a positive unit price.
	OutcomeFound Outcome = iota
	// OutcomeNoPrice is a usable record whose every price probe came up
	// empty.
	OutcomeNoPrice
	// OutcomeExcluded is a terminal exclusion carried by the record.
	OutcomeExcluded
	// OutcomeNoName is a record whose name never resolved.
	OutcomeNoName
	// OutcomeFailed is a fetch or parse failure (nil record).
	OutcomeFailed
)

// JobResult is emitted once per completed job, in completion order.
type JobResult struct {
	Job     Job
	Record  *fetcher.ItemRecord
	Outcome Outcome
	Reason  string
}

// Progress carries the running counters after each completed job.
type Progress struct {
	Processed  int
	Total      int
	Found      int
	Elapsed    time.Duration
	RatePerMin float64
	ETA        time.Duration
}

// Summary describes a finished (or cancelled) run.
type Summary struct {
	Processed   int
	Found       int
	Excluded    int
	PreSkipped  int
	Items       []storage.ItemRow
	Comparisons []storage.ComparisonRow
	Elapsed     time.Duration
	Cancelled   bool
}

// Sink receives the runner's typed event stream. The runner never
// depends on what a sink does with the events; a presentation layer
// subscribes here without the core knowing about it.
type Sink interface {
	JobCompleted(result JobResult)
	Progress(progress Progress)
	RunFinished(summary Summary)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) JobCompleted(JobResult) {}
func (NopSink) Progress(Progress)      {}
func (NopSink) RunFinished(Summary)    {}

var _ Sink = NopSink{}
