package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-launches/config"
	"github.com/aluiziolira/go-scrape-launches/models"
	"github.com/aluiziolira/go-scrape-launches/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after Close.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrNoValidProducts replaces a success result whose every record was dropped.
	ErrNoValidProducts = errors.New("no valid products after validation")
)

// OutputWriter renders a result envelope.
type OutputWriter interface {
	Write(result *models.Result) error
	Close() error
}

// Pipeline validates records, drops duplicate URLs, and hands the result to
// an output writer.
type Pipeline struct {
	writer OutputWriter
	seen   *lru.Cache[string, struct{}]
	logger *slog.Logger

	metrics metrics

	mu     sync.Mutex
	closed bool
}

// NewPipeline builds a pipeline whose duplicate filter remembers up to
// cfg.DedupeMaxSize URLs.
func NewPipeline(writer OutputWriter, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if writer == nil {
		return nil, fmt.Errorf("pipeline: nil writer")
	}
	if logger == nil {
		logger = slog.Default()
	}
	seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &Pipeline{
		writer:  writer,
		seen:    seen,
		logger:  logger,
		metrics: newMetrics(),
	}, nil
}

// Process filters the products of a success result and writes the envelope.
// Error results are written unchanged. The caller's result is not modified.
func (p *Pipeline) Process(result *models.Result) error {
	if result == nil {
		return fmt.Errorf("pipeline: nil result")
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPipelineClosed
	}

	out := *result
	if result.OK() {
		kept := make([]*models.Product, 0, len(result.Data))
		for _, product := range result.Data {
			if prepared := p.prepare(product); prepared != nil {
				kept = append(kept, prepared)
			}
		}
		if len(kept) == 0 {
			p.logger.Warn("every product was dropped by validation",
				slog.Int("received", len(result.Data)),
			)
			failure := models.Failure(ErrNoValidProducts.Error())
			failure.Stats = result.Stats
			out = *failure
		} else {
			out.Data = kept
		}
	}

	if err := p.writer.Write(&out); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// Close stops further processing and closes the writer.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.writer.Close()
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) prepare(product *models.Product) *models.Product {
	if product == nil {
		return nil
	}
	if err := parser.ValidateProduct(product); err != nil {
		p.metrics.addValidation("invalid_record")
		p.logger.Debug("dropping invalid product", slog.Any("error", err))
		return nil
	}

	if ok, _ := p.seen.ContainsOrAdd(product.URL, struct{}{}); ok {
		p.metrics.addValidation("duplicate_url")
		p.logger.Debug("dropping duplicate product", slog.String("url", product.URL))
		return nil
	}

	clean := *product
	clean.Name = parser.NormalizeText(clean.Name)
	clean.Description = parser.NormalizeText(clean.Description)
	clean.Votes = parser.NormalizeText(clean.Votes)

	p.metrics.incrementProcessed()
	return &clean
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_products": m.processed,
		"validation_errors":  copyValidation,
	}
}
