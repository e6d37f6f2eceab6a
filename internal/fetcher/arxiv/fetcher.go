// Package arxiv implements harvest.Fetcher against the arXiv search API
// using the Colly collector.
package arxiv

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/arxiv-harvester/internal/harvest"
)

// Config controls collector and pagination behavior.
type Config struct {
	BaseURL     string
	Keywords    []string
	PageSize    int
	Delay       time.Duration
	MaxRetries  int
	WindowLimit int
	UserAgent   string
	Timeout     time.Duration
}

// Fetcher pages through arXiv search results for one query window. The
// collector's limit rule enforces the inter-request delay the API asks
// for; the harvester never fetches windows concurrently on top of it.
type Fetcher struct {
	cfg    Config
	base   *colly.Collector
	logger *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://export.arxiv.org/api/query"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 25
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if len(cfg.Keywords) == 0 {
		return nil, fmt.Errorf("at least one keyword is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.Delay > 0 {
		if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: cfg.Delay}); err != nil {
			return nil, fmt.Errorf("set limit rule: %w", err)
		}
	}

	return &Fetcher{cfg: cfg, base: c, logger: logger}, nil
}

// Search fetches all papers submitted within the window, sorted by
// submitted date descending, capped at the configured window limit.
// On an unrecoverable page failure the papers fetched so far are
// returned alongside the error so the caller can still merge them.
func (f *Fetcher) Search(ctx context.Context, w harvest.Window) ([]harvest.Paper, error) {
	query := f.buildQuery(w)
	f.logger.Info("searching arxiv",
		zap.Time("window_start", w.Start),
		zap.Time("window_end", w.End),
	)

	var papers []harvest.Paper
	for start := 0; ; start += f.cfg.PageSize {
		if err := ctx.Err(); err != nil {
			return papers, err
		}
		feed, err := f.fetchPage(ctx, query, start)
		if err != nil {
			return papers, err
		}
		for _, entry := range feed.Entries {
			p, err := entry.toPaper()
			if err != nil {
				f.logger.Warn("skipping malformed feed entry", zap.String("entry_id", entry.ID), zap.Error(err))
				continue
			}
			papers = append(papers, p)
			if f.cfg.WindowLimit > 0 && len(papers) >= f.cfg.WindowLimit {
				f.logger.Warn("window result limit reached",
					zap.Int("limit", f.cfg.WindowLimit),
					zap.Time("window_start", w.Start),
				)
				return papers, nil
			}
		}
		if len(feed.Entries) < f.cfg.PageSize {
			return papers, nil
		}
		if feed.TotalResults > 0 && start+f.cfg.PageSize >= feed.TotalResults {
			return papers, nil
		}
	}
}

// fetchPage retrieves one result page, retrying transient failures up
// to the configured count with the request delay between attempts.
func (f *Fetcher) fetchPage(ctx context.Context, query string, start int) (*atomFeed, error) {
	pageURL := f.pageURL(query, start)

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.cfg.Delay):
			}
		}
		feed, err := f.visit(pageURL)
		if err == nil {
			return feed, nil
		}
		lastErr = err
		f.logger.Warn("arxiv page fetch failed",
			zap.Int("start", start),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("fetch page at offset %d: %w", start, lastErr)
}

func (f *Fetcher) visit(pageURL string) (*atomFeed, error) {
	c := f.base.Clone()

	var body []byte
	var visitErr error
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, err
	}
	if visitErr != nil {
		return nil, visitErr
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return parseFeed(body)
}

// buildQuery ORs every keyword across title and abstract and restricts
// by submitted date, matching arXiv's query syntax.
func (f *Fetcher) buildQuery(w harvest.Window) string {
	parts := make([]string, 0, 2*len(f.cfg.Keywords))
	for _, kw := range f.cfg.Keywords {
		parts = append(parts, fmt.Sprintf("ti:%q", kw))
	}
	for _, kw := range f.cfg.Keywords {
		parts = append(parts, fmt.Sprintf("abs:%q", kw))
	}
	return fmt.Sprintf("(%s) AND submittedDate:[%s TO %s]",
		strings.Join(parts, " OR "),
		w.Start.UTC().Format("20060102"),
		w.End.UTC().Format("20060102"),
	)
}

func (f *Fetcher) pageURL(query string, start int) string {
	v := url.Values{}
	v.Set("search_query", query)
	v.Set("start", strconv.Itoa(start))
	v.Set("max_results", strconv.Itoa(f.cfg.PageSize))
	v.Set("sortBy", "submittedDate")
	v.Set("sortOrder", "descending")
	return f.cfg.BaseURL + "?" + v.Encode()
}
