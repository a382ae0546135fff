package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-launches/config"
	"github.com/aluiziolira/go-scrape-launches/models"
	"github.com/gocolly/colly/v2"
)

const (
	forcedEncoding = "utf-8"
	responseKey    = "response"
	startKey       = "start"
)

// Fetcher performs single GET round trips with browser-like headers.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	metrics   *Metrics
	logger    *slog.Logger
}

// NewFetcher builds a synchronous collector for the configured host.
func NewFetcher(cfg *config.Config, metrics *Metrics, logger *slog.Logger) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if logger == nil {
		logger = slog.Default()
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		metrics:   metrics,
		logger:    logger,
	}
	f.configureHandlers()
	return f, nil
}

func (f *Fetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(startKey, time.Now())
		// Decode as UTF-8 whatever charset the server declares.
		r.ResponseCharacterEncoding = forcedEncoding
		f.metrics.IncRequest("started")
		f.logger.Debug("fetching page",
			slog.String("url", r.URL.String()),
			slog.String("user_agent", r.Headers.Get("User-Agent")),
		)
	})

	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(responseKey, r)
		f.metrics.IncRequest("completed")
		if start, ok := r.Request.Ctx.GetAny(startKey).(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
		if r.StatusCode >= http.StatusBadRequest {
			f.logger.Warn("non-2xx response",
				slog.Int("status", r.StatusCode),
				slog.String("url", r.Request.URL.String()),
			)
		}
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		f.metrics.IncRequest("failed")
		url := ""
		if r != nil && r.Request != nil && r.Request.URL != nil {
			url = r.Request.URL.String()
		}
		f.logger.Debug("request error", slog.String("url", url), slog.Any("error", err))
	})
}

// Fetch issues one GET against target. Rate limits come back as
// ErrRateLimited, other non-2xx statuses as ErrHTTPStatus.
func (f *Fetcher) Fetch(ctx context.Context, target string) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cctx := colly.NewContext()
	if err := f.collector.Request(http.MethodGet, target, nil, cctx, f.headers()); err != nil {
		return nil, classifyTransportError(err)
	}

	resp, ok := cctx.GetAny(responseKey).(*colly.Response)
	if !ok || resp == nil {
		return nil, fmt.Errorf("fetch %s: no response captured", target)
	}
	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	contentType := ""
	if resp.Headers != nil {
		contentType = resp.Headers.Get("Content-Type")
	}

	return &models.Document{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Encoding:    forcedEncoding,
		Body:        strings.ToValidUTF8(string(resp.Body), "\uFFFD"),
		Raw:         resp.Body,
		FetchedAt:   time.Now(),
	}, nil
}

// headers returns the spoofed browser header set with a fresh User-Agent.
func (f *Fetcher) headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", f.userAgent())
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	// colly only inflates gzip bodies itself.
	h.Set("Accept-Encoding", "gzip")
	h.Set("DNT", "1")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Cache-Control", "max-age=0")
	if f.cfg.Referer != "" {
		h.Set("Referer", f.cfg.Referer)
		h.Set("Sec-Fetch-Site", "cross-site")
	} else {
		h.Set("Sec-Fetch-Site", "none")
	}
	return h
}

func (f *Fetcher) userAgent() string {
	pool := f.cfg.UserAgents
	if len(pool) == 0 {
		pool = config.DefaultUserAgents
	}
	return pool[rand.IntN(len(pool))]
}
