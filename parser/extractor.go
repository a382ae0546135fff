// Package parser turns a fetched homepage into product records.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/aluiziolira/go-scrape-launches/config"
	"github.com/aluiziolira/go-scrape-launches/models"
)

var (
	// ErrNoBlocksFound is returned when no block selector matches the page.
	ErrNoBlocksFound = errors.New("parser: no product blocks found")
	// ErrNoRecordsExtracted is returned when every matched block was skipped.
	ErrNoRecordsExtracted = errors.New("parser: no products extracted")
)

// Dumper receives the page whenever block discovery fails.
type Dumper interface {
	Dump(doc *models.Document, normalized string) error
}

type matcher struct {
	query string
	sel   cascadia.Selector
}

type fieldKind int

const (
	fieldText fieldKind = iota
	fieldHref
)

type field struct {
	name     string
	kind     fieldKind
	matchers []matcher
}

// Extractor applies the selector cascade to a fetched document.
type Extractor struct {
	origin string
	limit  int
	blocks []matcher
	fields []field

	dumper Dumper
	logger *slog.Logger
	now    func() time.Time
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithDumper installs the hook called when no block selector matches.
func WithDumper(d Dumper) Option {
	return func(e *Extractor) { e.dumper = d }
}

// WithLogger sets the logger used for skipped blocks.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLimit caps the number of blocks taken from the page.
func WithLimit(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithClock overrides the scrape timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// Extraction is the outcome of one Extract call.
type Extraction struct {
	Products []*models.Product
	Selector string
	Matched  int
	Skipped  int
}

// NewExtractor compiles every selector up front so a typo fails fast.
func NewExtractor(origin string, sel config.Selectors, opts ...Option) (*Extractor, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	e := &Extractor{
		origin: origin,
		limit:  5,
		logger: slog.Default(),
		now:    time.Now,
	}

	var err error
	if e.blocks, err = compileSelectors("blocks", sel.Blocks); err != nil {
		return nil, err
	}

	defs := []struct {
		name    string
		kind    fieldKind
		queries []string
	}{
		{"name", fieldText, sel.Name},
		{"description", fieldText, sel.Description},
		{"votes", fieldText, sel.Votes},
		{"link", fieldHref, sel.Link},
	}
	for _, def := range defs {
		matchers, err := compileSelectors(def.name, def.queries)
		if err != nil {
			return nil, err
		}
		e.fields = append(e.fields, field{name: def.name, kind: def.kind, matchers: matchers})
	}

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func compileSelectors(name string, queries []string) ([]matcher, error) {
	out := make([]matcher, 0, len(queries))
	for _, q := range queries {
		sel, err := cascadia.Compile(q)
		if err != nil {
			return nil, fmt.Errorf("compile %s selector %q: %w", name, q, err)
		}
		out = append(out, matcher{query: q, sel: sel})
	}
	return out, nil
}

// Extract returns up to limit products in document order. The returned
// Extraction is never nil, even alongside an error.
func (e *Extractor) Extract(doc *models.Document) (*Extraction, error) {
	result := &Extraction{}
	if doc == nil {
		return result, fmt.Errorf("parser: nil document")
	}

	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc.Body))
	if err != nil {
		return result, fmt.Errorf("parse html: %w", err)
	}

	blocks, query, ok := e.findBlocks(root.Selection)
	if !ok {
		e.dump(doc, root)
		return result, ErrNoBlocksFound
	}
	result.Selector = query
	result.Matched = blocks.Length()

	blocks.Each(func(i int, block *goquery.Selection) {
		values, missing := e.fieldsOf(block)
		if len(missing) > 0 {
			result.Skipped++
			e.logger.Warn("skipping product block",
				slog.Int("index", i),
				slog.String("selector", query),
				slog.Any("missing", missing),
			)
			return
		}

		product := &models.Product{
			Name:        values["name"],
			Description: values["description"],
			Votes:       values["votes"],
			URL:         AbsoluteURL(e.origin, values["link"]),
			ScrapedAt:   e.now(),
		}
		e.logger.Info("scraped product", slog.String("name", product.Name))
		result.Products = append(result.Products, product)
	})

	if len(result.Products) == 0 {
		return result, ErrNoRecordsExtracted
	}
	return result, nil
}

// findBlocks returns the matches of the first selector that matches anything.
func (e *Extractor) findBlocks(root *goquery.Selection) (*goquery.Selection, string, bool) {
	for _, m := range e.blocks {
		found := root.FindMatcher(m.sel)
		if n := found.Length(); n > 0 {
			return found.Slice(0, min(n, e.limit)), m.query, true
		}
	}
	return nil, "", false
}

func (e *Extractor) fieldsOf(block *goquery.Selection) (map[string]string, []string) {
	values := make(map[string]string, len(e.fields))
	var missing []string
	for _, f := range e.fields {
		value, ok := f.lookup(block)
		if !ok {
			missing = append(missing, f.name)
			continue
		}
		values[f.name] = value
	}
	return values, missing
}

// lookup tries each candidate in order and keeps the first non-empty value.
func (f field) lookup(block *goquery.Selection) (string, bool) {
	for _, m := range f.matchers {
		found := block.FindMatcher(m.sel).First()
		if found.Length() == 0 {
			continue
		}
		var value string
		switch f.kind {
		case fieldHref:
			value, _ = found.Attr("href")
			value = NormalizeText(value)
		default:
			value = NormalizeText(found.Text())
		}
		if value != "" {
			return value, true
		}
	}
	return "", false
}

func (e *Extractor) dump(doc *models.Document, root *goquery.Document) {
	if e.dumper == nil {
		return
	}
	normalized, err := root.Html()
	if err != nil {
		e.logger.Warn("render page for debug dump", slog.Any("error", err))
		normalized = doc.Body
	}
	if err := e.dumper.Dump(doc, normalized); err != nil {
		e.logger.Warn("write debug dump", slog.Any("error", err))
	}
}
