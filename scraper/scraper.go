package scraper

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/aluiziolira/go-scrape-launches/config"
	"github.com/aluiziolira/go-scrape-launches/models"
	"github.com/aluiziolira/go-scrape-launches/parser"
)

// Scraper runs the fetch-and-extract cycle under a single retry budget.
type Scraper struct {
	cfg       *config.Config
	fetcher   *Fetcher
	extractor *parser.Extractor
	Metrics   *Metrics
	logger    *slog.Logger

	sleep  func(context.Context, time.Duration) error
	jitter func() float64
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, extractor *parser.Extractor, logger *slog.Logger) (*Scraper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := NewMetrics()
	fetcher, err := NewFetcher(cfg, metrics, logger)
	if err != nil {
		return nil, err
	}
	return &Scraper{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		Metrics:   metrics,
		logger:    logger,
		sleep:     sleepContext,
		jitter:    rand.Float64,
	}, nil
}

// Scrape fetches the homepage and extracts products, retrying recoverable
// failures until MaxRetries attempts have been spent. It never returns nil.
func (s *Scraper) Scrape(ctx context.Context) *models.Result {
	if ctx == nil {
		ctx = context.Background()
	}
	stats := models.RunStats{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}

	var lastErr error
	attempt := 0
	for attempt < s.cfg.MaxRetries {
		delay := s.pacingDelay()
		s.logger.Debug("waiting before request",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		if err := s.sleep(ctx, delay); err != nil {
			s.record(&stats, err)
			return s.fail(&stats, err)
		}

		stats.Attempts++
		products, err := s.attempt(ctx, &stats)
		if err == nil {
			stats.EndTime = time.Now()
			s.logger.Info("scrape succeeded",
				slog.Int("products", len(products)),
				slog.Int("attempts", stats.Attempts),
			)
			result := models.Success(products)
			result.Stats = stats
			return result
		}

		lastErr = err
		label := s.record(&stats, err)

		if !retryable(err) {
			return s.fail(&stats, err)
		}

		var limited ErrRateLimited
		if errors.As(err, &limited) {
			stats.RateLimited++
			wait := s.backoff(attempt)
			s.logger.Warn("rate limited, backing off",
				slog.Int("status", limited.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
			)
			if err := s.sleep(ctx, wait); err != nil {
				s.record(&stats, err)
				return s.fail(&stats, err)
			}
			s.Metrics.ObserveBackoff(wait)
		} else {
			s.logger.Error("scrape attempt failed",
				slog.Int("attempt", attempt+1),
				slog.String("category", label),
				slog.Any("error", err),
			)
		}

		attempt++
		s.Metrics.IncRetries()
	}

	exhausted := ErrExhausted{Attempts: attempt, Err: lastErr}
	s.record(&stats, exhausted)
	return s.fail(&stats, exhausted)
}

func (s *Scraper) attempt(ctx context.Context, stats *models.RunStats) ([]*models.Product, error) {
	doc, err := s.fetcher.Fetch(ctx, s.cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	extraction, err := s.extractor.Extract(doc)
	if extraction != nil {
		stats.Selector = extraction.Selector
		stats.SkippedItems += extraction.Skipped
		s.Metrics.AddSkipped(extraction.Skipped)
	}
	if err != nil {
		return nil, err
	}

	s.Metrics.AddItems(len(extraction.Products))
	return extraction.Products, nil
}

// record counts err under its taxonomy label and returns the label.
func (s *Scraper) record(stats *models.RunStats, err error) string {
	label := errorTypeLabel(err)
	stats.ErrorsByType[label]++
	s.Metrics.IncError(label)
	return label
}

func (s *Scraper) fail(stats *models.RunStats, err error) *models.Result {
	stats.EndTime = time.Now()
	s.logger.Error("scrape failed",
		slog.Int("attempts", stats.Attempts),
		slog.Any("error", err),
	)
	result := models.Failure(err.Error())
	result.Stats = *stats
	return result
}

// pacingDelay is RequestDelay shifted by a uniform jitter in [JitterMin, JitterMax).
func (s *Scraper) pacingDelay() time.Duration {
	spread := float64(s.cfg.JitterMax - s.cfg.JitterMin)
	delay := s.cfg.RequestDelay + s.cfg.JitterMin + time.Duration(s.jitter()*spread)
	if delay < 0 {
		return 0
	}
	return delay
}

// backoff returns BackoffFactor^attempt seconds.
func (s *Scraper) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	seconds := math.Pow(s.cfg.BackoffFactor, float64(attempt))
	return time.Duration(seconds * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
