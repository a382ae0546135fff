package parser

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aluiziolira/go-scrape-launches/models"
)

const (
	// DebugPageFile holds the re-serialized page.
	DebugPageFile = "debug_page.html"
	// DebugRawFile holds the body exactly as received.
	DebugRawFile = "debug_page_raw.html"
)

// FileDumper writes the debug pages into Dir, overwriting earlier dumps.
type FileDumper struct {
	Dir string
}

// Dump implements Dumper.
func (d FileDumper) Dump(doc *models.Document, normalized string) error {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create debug directory %q: %w", dir, err)
	}

	raw := doc.Raw
	if raw == nil {
		raw = []byte(doc.Body)
	}

	if err := os.WriteFile(filepath.Join(dir, DebugPageFile), []byte(normalized), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", DebugPageFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, DebugRawFile), raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", DebugRawFile, err)
	}
	return nil
}
