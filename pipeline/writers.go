package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-launches/models"
)

// TextWriter prints the human-readable product report.
type TextWriter struct {
	w     *bufio.Writer
	title string
	mu    sync.Mutex
}

// NewTextWriter writes the report to w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{
		w:     bufio.NewWriter(w),
		title: "Top 5 Products from Product Hunt:",
	}
}

// Write prints the numbered list, or a single error line for a failure.
func (tw *TextWriter) Write(result *models.Result) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if !result.OK() {
		fmt.Fprintf(tw.w, "Error: %s\n", result.Message)
		return tw.flush()
	}

	fmt.Fprintf(tw.w, "\n%s\n", tw.title)
	for i, product := range result.Data {
		fmt.Fprintf(tw.w, "\n%d. %s\n", i+1, product.Name)
		fmt.Fprintf(tw.w, "   Votes: %s\n", product.Votes)
		fmt.Fprintf(tw.w, "   Description: %s\n", product.Description)
		fmt.Fprintf(tw.w, "   URL: %s\n", product.URL)
	}
	return tw.flush()
}

// Close flushes pending output.
func (tw *TextWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.flush()
}

func (tw *TextWriter) flush() error {
	if err := tw.w.Flush(); err != nil {
		return fmt.Errorf("flush text writer: %w", err)
	}
	return nil
}

// JSONWriter encodes the result envelope as indented JSON.
type JSONWriter struct {
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	buffer := bufio.NewWriter(w)
	encoder := json.NewEncoder(buffer)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return &JSONWriter{
		writer:  buffer,
		encoder: encoder,
	}
}

// Write encodes one envelope.
func (jw *JSONWriter) Write(result *models.Result) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.encoder.Encode(result); err != nil {
		return fmt.Errorf("encode json result: %w", err)
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// CSVWriter writes one row per product. Failures produce only the header.
type CSVWriter struct {
	writer        *csv.Writer
	headerWritten bool
	mu            sync.Mutex
}

var csvHeader = []string{"name", "description", "votes", "url", "scraped_at"}

// NewCSVWriter initialises a CSV writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{writer: csv.NewWriter(w)}
}

// Write appends the products of result.
func (cw *CSVWriter) Write(result *models.Result) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.headerWritten {
		if err := cw.writer.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		cw.headerWritten = true
	}

	for _, product := range result.Data {
		record := []string{
			product.Name,
			product.Description,
			product.Votes,
			product.URL,
			product.ScrapedAt.Format(time.RFC3339),
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes the writer.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return nil
}

// NewWriter returns the writer for format.
func NewWriter(format string, w io.Writer) (OutputWriter, error) {
	switch format {
	case "text":
		return NewTextWriter(w), nil
	case "json":
		return NewJSONWriter(w), nil
	case "csv":
		return NewCSVWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// OpenOutput returns stdout when filename is empty, otherwise a created file
// whose parent directories exist.
func OpenOutput(filename string) (io.WriteCloser, error) {
	if filename == "" {
		return nopCloser{os.Stdout}, nil
	}
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
