package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// ClientOptions parameterise the auction house client.
type ClientOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client performs the two-step page retrieval against the auction house
// site: resolve the canonical item URL (the site redirects /item/{id}),
// then POST the server selector against the resolved URL. No retries
// happen at this layer; a failed request is terminal for the job.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs an auction house client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.ffxiah.com"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "ah_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchItem returns the server-scoped item page and its final URL.
func (c *Client) FetchItem(ctx context.Context, itemID, serverID int) (*goquery.Document, *url.URL, error) {
	finalURL, err := c.resolveItemURL(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}

	form := url.Values{"sid": {strconv.Itoa(serverID)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, finalURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("item %d: unexpected status %d", itemID, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("item %d: parse page: %w", itemID, err)
	}

	return doc, resp.Request.URL, nil
}

// FetchStack retrieves the stack-variant page. href may be relative; it
// is resolved against the primary page's final URL.
func (c *Client) FetchStack(ctx context.Context, base *url.URL, href string) (*goquery.Document, error) {
	target, err := c.resolveHref(base, href)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stack page %s: unexpected status %d", target, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stack page %s: parse: %w", target, err)
	}
	return doc, nil
}

// resolveItemURL probes /item/{id} with a redirect-following HEAD and
// reports where the site actually landed.
func (c *Client) resolveItemURL(ctx context.Context, itemID int) (*url.URL, error) {
	probe := fmt.Sprintf("%s/item/%d", c.baseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probe, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	return resp.Request.URL, nil
}

func (c *Client) resolveHref(base *url.URL, href string) (string, error) {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href, nil
	}
	if base == nil {
		return "", fmt.Errorf("relative stack link %q without base URL", href)
	}
	rel, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse stack link %q: %w", href, err)
	}
	return base.ResolveReference(rel).String(), nil
}

func (c *Client) setHeaders(req *http.Request) {
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
}

var _ StackFetcher = (*Client)(nil)
