package scraper

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/omtx/go-extract-orders/models"
)

// Exporter writes extraction batches as timestamped JSON files.
type Exporter struct {
	dir string
}

// NewExporter returns an exporter writing under dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

// Export writes the result to pedidos_<timestamp>.json and returns the
// file path. The directory is created on demand.
func (e *Exporter) Export(result *models.ExtractionResult) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("export dir %s: %w", e.dir, err)
	}

	name := fmt.Sprintf("pedidos_%s.json", time.Now().UTC().Format("2006-01-02T15-04-05"))
	path := filepath.Join(e.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export %s: %w", path, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		f.Close()
		return "", fmt.Errorf("encode export %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export %s: %w", path, err)
	}

	slog.Info("batch exported",
		slog.String("file", path),
		slog.Int("orders", result.Total))
	return path, nil
}
