package parser

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/aluiziolira/go-scrape-launches/config"
	"github.com/aluiziolira/go-scrape-launches/models"
)

const testOrigin = "https://www.producthunt.com"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExtractor(t *testing.T, sel config.Selectors, opts ...Option) *Extractor {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	e, err := NewExtractor(testOrigin, sel, opts...)
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return e
}

func document(body string) *models.Document {
	return &models.Document{
		URL:        testOrigin,
		StatusCode: 200,
		Encoding:   "utf-8",
		Body:       body,
		Raw:        []byte(body),
		FetchedAt:  time.Now(),
	}
}

func productItem(id int) string {
	return fmt.Sprintf(`<div data-test="product-item">
  <a data-test="product-name-link" href="/posts/product-%d"><h3>  Product %d  </h3></a>
  <div data-test="product-description">
    Tagline %d
  </div>
  <span data-test="vote-button"> %d </span>
</div>`, id, id, id, id*100)
}

func buildHomepage(items ...string) string {
	var builder strings.Builder
	builder.WriteString("<html><head><title>Product Hunt</title></head><body><main>")
	for _, item := range items {
		builder.WriteString(item)
	}
	builder.WriteString("</main></body></html>")
	return builder.String()
}

func wellFormedItems(n int) []string {
	items := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, productItem(i))
	}
	return items
}

func TestExtractTakesFirstFiveInDocumentOrder(t *testing.T) {
	e := newTestExtractor(t, config.DefaultSelectors())

	result, err := e.Extract(document(buildHomepage(wellFormedItems(7)...)))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := len(result.Products); got != 5 {
		t.Fatalf("products = %d, want 5", got)
	}
	if result.Matched != 5 {
		t.Fatalf("matched = %d, want 5", result.Matched)
	}

	for i, p := range result.Products {
		id := i + 1
		if p.Name != fmt.Sprintf("Product %d", id) {
			t.Fatalf("product %d name = %q", i, p.Name)
		}
		if p.Description != fmt.Sprintf("Tagline %d", id) {
			t.Fatalf("product %d description = %q", i, p.Description)
		}
		if p.Votes != fmt.Sprintf("%d", id*100) {
			t.Fatalf("product %d votes = %q", i, p.Votes)
		}
		if want := fmt.Sprintf("%s/posts/product-%d", testOrigin, id); p.URL != want {
			t.Fatalf("product %d url = %q, want %q", i, p.URL, want)
		}
		if err := ValidateProduct(p); err != nil {
			t.Fatalf("product %d invalid: %v", i, err)
		}
	}
}

func TestExtractUsesFirstMatchingBlockSelector(t *testing.T) {
	sel := config.DefaultSelectors()
	sel.Blocks = []string{"div.featured", "div.promoted", "li.launch", "li.other", "li"}
	e := newTestExtractor(t, sel)

	item := func(class, name string) string {
		return fmt.Sprintf(`<li class="%s"><a data-test="product-name-link" href="/posts/%s"><h3>%s</h3></a>`+
			`<div data-test="product-description">About %s</div><span data-test="vote-button">7</span></li>`,
			class, strings.ToLower(name), name, name)
	}
	page := buildHomepage("<ul>",
		item("other", "Ignored"),
		item("launch", "Alpha"),
		item("launch", "Beta"),
		"</ul>")

	result, err := e.Extract(document(page))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Selector != "li.launch" {
		t.Fatalf("selector = %q, want li.launch", result.Selector)
	}
	var names []string
	for _, p := range result.Products {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"Alpha", "Beta"}, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractSkipsIncompleteBlocks(t *testing.T) {
	missingDescription := `<div data-test="product-item"><a data-test="product-name-link" href="/posts/two"><h3>Two</h3></a>` +
		`<span data-test="vote-button">2</span></div>`
	missingLink := `<div data-test="product-item"><h3>Four</h3><div data-test="product-description">Four tagline</div>` +
		`<span data-test="vote-button">4</span></div>`
	blankVotes := `<div data-test="product-item"><a data-test="product-name-link" href="/posts/five"><h3>Five</h3></a>` +
		`<div data-test="product-description">Five tagline</div><span data-test="vote-button">   </span></div>`

	page := buildHomepage(productItem(1), missingDescription, productItem(3), missingLink, blankVotes, productItem(6))
	e := newTestExtractor(t, config.DefaultSelectors())

	result, err := e.Extract(document(page))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Matched != 5 {
		t.Fatalf("matched = %d, want 5", result.Matched)
	}
	if result.Skipped != 3 {
		t.Fatalf("skipped = %d, want 3", result.Skipped)
	}
	if len(result.Products) != 2 {
		t.Fatalf("products = %d, want 2", len(result.Products))
	}
	if result.Products[0].Name != "Product 1" || result.Products[1].Name != "Product 3" {
		t.Fatalf("unexpected products: %q, %q", result.Products[0].Name, result.Products[1].Name)
	}
}

func TestExtractFieldFallback(t *testing.T) {
	page := buildHomepage(`<section data-test="post-item-991">
  <a data-test="post-name-991" href="https://www.producthunt.com/posts/fallback">Fallback</a>
  <div data-test="product-name">   </div>
  <div data-test="post-tagline">Second choice tagline</div>
  <button data-test="vote-button-991">57</button>
</section>`)
	e := newTestExtractor(t, config.DefaultSelectors())

	result, err := e.Extract(document(page))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Selector != `section[data-test^="post-item"]` {
		t.Fatalf("selector = %q", result.Selector)
	}
	want := &models.Product{
		Name:        "Fallback",
		Description: "Second choice tagline",
		Votes:       "57",
		URL:         "https://www.producthunt.com/posts/fallback",
	}
	if diff := cmp.Diff(want, result.Products[0], cmpopts.IgnoreFields(models.Product{}, "ScrapedAt")); diff != "" {
		t.Fatalf("product mismatch (-want +got):\n%s", diff)
	}
}

type recordingDumper struct {
	calls      int
	normalized string
}

func (d *recordingDumper) Dump(doc *models.Document, normalized string) error {
	d.calls++
	d.normalized = normalized
	return nil
}

func TestExtractNoBlocksCallsDumper(t *testing.T) {
	dumper := &recordingDumper{}
	e := newTestExtractor(t, config.DefaultSelectors(), WithDumper(dumper))

	result, err := e.Extract(document("<html><body><div class=\"skeleton\">Loading</div></body></html>"))
	if !errors.Is(err, ErrNoBlocksFound) {
		t.Fatalf("err = %v, want ErrNoBlocksFound", err)
	}
	if result == nil || len(result.Products) != 0 {
		t.Fatalf("expected empty extraction, got %+v", result)
	}
	if dumper.calls != 1 {
		t.Fatalf("dumper calls = %d, want 1", dumper.calls)
	}
	if !strings.Contains(dumper.normalized, "skeleton") {
		t.Fatalf("normalized dump missing page content: %q", dumper.normalized)
	}
}

func TestExtractNoBlocksWritesDebugFiles(t *testing.T) {
	dir := t.TempDir()
	e := newTestExtractor(t, config.DefaultSelectors(), WithDumper(FileDumper{Dir: dir}))

	body := "<html><body><p>nothing to see</p></body></html>"
	if _, err := e.Extract(document(body)); !errors.Is(err, ErrNoBlocksFound) {
		t.Fatalf("err = %v, want ErrNoBlocksFound", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, DebugRawFile))
	if err != nil {
		t.Fatalf("read raw dump: %v", err)
	}
	if string(raw) != body {
		t.Fatalf("raw dump = %q, want original body", raw)
	}
	normalized, err := os.ReadFile(filepath.Join(dir, DebugPageFile))
	if err != nil {
		t.Fatalf("read normalized dump: %v", err)
	}
	if !strings.Contains(string(normalized), "nothing to see") {
		t.Fatalf("normalized dump = %q", normalized)
	}
}

func TestExtractNoRecordsExtracted(t *testing.T) {
	incomplete := `<div data-test="product-item"><h3>Nameless link</h3></div>`
	e := newTestExtractor(t, config.DefaultSelectors())

	result, err := e.Extract(document(buildHomepage(incomplete, incomplete)))
	if !errors.Is(err, ErrNoRecordsExtracted) {
		t.Fatalf("err = %v, want ErrNoRecordsExtracted", err)
	}
	if result.Skipped != 2 || result.Matched != 2 {
		t.Fatalf("skipped/matched = %d/%d, want 2/2", result.Skipped, result.Matched)
	}
}

func TestExtractIdempotentExceptTimestamp(t *testing.T) {
	tick := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Microsecond)
		return tick
	}
	e := newTestExtractor(t, config.DefaultSelectors(), WithClock(clock))
	doc := document(buildHomepage(wellFormedItems(6)...))

	first, err := e.Extract(doc)
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	second, err := e.Extract(doc)
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}

	if diff := cmp.Diff(first.Products, second.Products, cmpopts.IgnoreFields(models.Product{}, "ScrapedAt")); diff != "" {
		t.Fatalf("extractions differ (-first +second):\n%s", diff)
	}
	if first.Products[0].ScrapedAt.Equal(second.Products[0].ScrapedAt) {
		t.Fatalf("expected distinct capture times")
	}
	if !first.Products[0].ScrapedAt.Before(first.Products[1].ScrapedAt) {
		t.Fatalf("each record should be stamped when assembled")
	}
}

func TestNewExtractorRejectsInvalidSelector(t *testing.T) {
	sel := config.DefaultSelectors()
	sel.Votes = []string{"span[data-test="}
	if _, err := NewExtractor(testOrigin, sel); err == nil || !strings.Contains(err.Error(), "votes") {
		t.Fatalf("expected votes selector error, got %v", err)
	}
}

func TestExtractNilDocument(t *testing.T) {
	e := newTestExtractor(t, config.DefaultSelectors())
	if _, err := e.Extract(nil); err == nil {
		t.Fatalf("expected error for nil document")
	}
}
