// Package crawler fetches web pages politely and turns them into plain text
// for extraction.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Harshitk-cp/factgraph/internal/metrics"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const maxRedirects = 3

var ErrDisallowed = errors.New("disallowed by robots.txt")

// Page is one fetched document.
type Page struct {
	URL         string
	FinalURL    string
	HTML        string
	ContentType string
	FetchedAt   time.Time
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	// RPS is the per-host request rate.
	RPS      float64
	CacheTTL time.Duration
}

// Fetcher retrieves pages honouring robots.txt and a per-host rate limit.
// Pages are cached for CacheTTL so several sources sharing a URL within one
// run fetch it once.
type Fetcher struct {
	httpClient *http.Client
	robots     *RobotsChecker
	limiter    *Limiter
	cache      *gocache.Cache
	userAgent  string
	maxBytes   int64
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewFetcher(opts Options, m *metrics.Metrics, logger *zap.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 5 << 20
	}
	if opts.RPS <= 0 {
		opts.RPS = 1
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		robots:    NewRobotsChecker(opts.UserAgent, opts.Timeout),
		limiter:   NewLimiter(opts.RPS, 1),
		cache:     gocache.New(opts.CacheTTL, 2*opts.CacheTTL),
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Fetch returns the page at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if cached, ok := f.cache.Get(rawURL); ok {
		f.metrics.Fetch("cached")
		return cached.(*Page), nil
	}

	allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
	if err != nil {
		f.metrics.Fetch("error")
		return nil, err
	}
	if !allowed {
		f.metrics.Fetch("disallowed")
		return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}
	if err := f.limiter.WaitWithDelay(ctx, rawURL, delay); err != nil {
		return nil, err
	}

	page, err := f.get(ctx, rawURL)
	if err != nil {
		f.metrics.Fetch("error")
		f.logger.Warn("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}
	f.metrics.Fetch("ok")
	f.cache.SetDefault(rawURL, page)
	f.logger.Debug("fetched page",
		zap.String("url", rawURL),
		zap.String("final_url", page.FinalURL),
		zap.Int("bytes", len(page.HTML)))
	return page, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		HTML:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
		FetchedAt:   f.now().UTC(),
	}, nil
}
