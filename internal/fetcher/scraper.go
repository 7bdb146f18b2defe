package fetcher

import (
	"context"

	"github.com/rs/zerolog"
)

// ItemFetcher is what the runner schedules jobs against: one call per
// (item, server) pair, nil when the page could not be fetched or parsed.
type ItemFetcher interface {
	GetItemData(ctx context.Context, itemID, serverID int) *ItemRecord
}

// Scraper combines the client and the extractor into the job-level
// fetch-and-parse operation.
type Scraper struct {
	client    *Client
	extractor *Extractor
	logger    zerolog.Logger
}

// NewScraper wires a client and extractor together.
func NewScraper(opts ClientOptions, logger zerolog.Logger) *Scraper {
	client := NewClient(opts, logger)
	return &Scraper{
		client:    client,
		extractor: NewExtractor(client, logger),
		logger:    logger.With().Str("component", "scraper").Logger(),
	}
}

// GetItemData fetches and extracts one item on one server. Any network
// or parse failure is logged and yields nil; the caller treats nil as
// "no usable data for this job".
func (s *Scraper) GetItemData(ctx context.Context, itemID, serverID int) *ItemRecord {
	doc, finalURL, err := s.client.FetchItem(ctx, itemID, serverID)
	if err != nil {
		s.logger.Error().Err(err).Int("itemid", itemID).Int("sid", serverID).Msg("request failed")
		return nil
	}
	return s.extractor.Extract(ctx, doc, finalURL, itemID)
}

var _ ItemFetcher = (*Scraper)(nil)
