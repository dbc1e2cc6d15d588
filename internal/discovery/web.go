// Package discovery turns topics into candidate page URLs by scraping an
// HTML search frontend.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/harvestlab/topic-harvester/internal/harvest"
)

// Defaults for the web provider. The stock engine is DuckDuckGo's HTML-only
// frontend, which serves result anchors without JavaScript.
const (
	DefaultURLTemplate    = "https://html.duckduckgo.com/html/?q={query}"
	DefaultResultSelector = "a.result__a"
	DefaultQueryDelay     = 2 * time.Second
	DefaultTimeout        = 20 * time.Second
)

// maxResultPageBytes caps how much of a result page is read.
const maxResultPageBytes = 10 << 20

// Config controls the web provider.
type Config struct {
	// URLTemplate is the search URL with a {query} placeholder.
	URLTemplate string
	// ResultSelector matches the anchors whose href is a result link.
	ResultSelector string
	// QueryDelay is the minimum spacing between searches.
	QueryDelay time.Duration
	// Timeout bounds a single search request.
	Timeout time.Duration
	// UserAgent sent with search requests.
	UserAgent string
	// BlockedHosts lists hosts ("ads.example.com") and suffix wildcards
	// ("*.example.com") whose results are dropped.
	BlockedHosts []string
}

// WebProvider implements harvest.Searcher against an HTML search frontend.
// Searches are paced: no two queries start closer together than QueryDelay.
type WebProvider struct {
	cfg       Config
	client    *http.Client
	limiter   *rate.Limiter
	blocklist *hostBlocklist
	logger    *zap.Logger
}

var _ harvest.Searcher = (*WebProvider)(nil)

// NewWebProvider builds a WebProvider. A nil client gets a default with the
// configured timeout.
func NewWebProvider(cfg Config, client *http.Client, logger *zap.Logger) *WebProvider {
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultURLTemplate
	}
	if cfg.ResultSelector == "" {
		cfg.ResultSelector = DefaultResultSelector
	}
	if cfg.QueryDelay <= 0 {
		cfg.QueryDelay = DefaultQueryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = harvest.DefaultUserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebProvider{
		cfg:       cfg,
		client:    client,
		limiter:   rate.NewLimiter(rate.Every(cfg.QueryDelay), 1),
		blocklist: newHostBlocklist(cfg.BlockedHosts),
		logger:    logger,
	}
}

// Search runs one query and returns up to limit result URLs in page order,
// deduplicated and filtered. Fewer than limit is normal: engines return what
// they have.
func (p *WebProvider) Search(ctx context.Context, topic string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search pacing: %w", err)
	}

	searchURL := strings.ReplaceAll(p.cfg.URLTemplate, "{query}", url.QueryEscape(topic))
	base, err := url.Parse(searchURL)
	if err != nil {
		return nil, fmt.Errorf("search url: %w", err)
	}

	page, err := p.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	seen := make(map[string]struct{})
	var urls []string
	doc.Find(p.cfg.ResultSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		candidate := resolveResultURL(base, href)
		if candidate == "" || !harvest.ValidTargetURL(candidate) {
			return true
		}
		if p.blocklist.IsBlocked(harvest.Hostname(candidate)) {
			return true
		}
		if _, dup := seen[candidate]; dup {
			return true
		}
		seen[candidate] = struct{}{}
		urls = append(urls, candidate)
		return len(urls) < limit
	})

	p.logger.Debug("search completed",
		zap.String("topic", topic),
		zap.Int("limit", limit),
		zap.Int("results", len(urls)),
	)
	return urls, nil
}

func (p *WebProvider) get(ctx context.Context, searchURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	for key, values := range harvest.BrowserHeaders(p.cfg.UserAgent) {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}
	page, err := io.ReadAll(io.LimitReader(resp.Body, maxResultPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read search results: %w", err)
	}
	return page, nil
}

// resolveResultURL turns one anchor href into an absolute candidate URL.
// DuckDuckGo wraps targets in a redirect of the form
// //duckduckgo.com/l/?uddg=<escaped>; the uddg parameter carries the real
// URL. Anything unresolvable comes back empty.
func resolveResultURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if strings.HasSuffix(strings.ToLower(u.Hostname()), "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return u.String()
}
