// Package export writes the published dataset as files under an output directory.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
)

// Output file names relative to the output directory.
const (
	CountryDataDir = "country_data"
	LongTableFile  = "vaccinations.csv"
	JSONFile       = "vaccinations.json"
	GrapherFile    = "COVID-19 - Vaccinations.csv"
	LocationsFile  = "locations.csv"
	ReportFile     = "report.md"
)

// Writer implements pipeline.Loader by writing every output file.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a file writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// Name implements pipeline.Loader.
func (w *Writer) Name() string { return "files" }

// Load writes the per-location raw tables, the long table, the JSON document,
// the grapher table, the locations summary and the report.
func (w *Writer) Load(ctx context.Context, ds domain.Dataset) error {
	if err := os.MkdirAll(filepath.Join(w.dir, CountryDataDir), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, m := range ds.Metadata {
		obs, ok := ds.Raw[m.Location]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Join(CountryDataDir, m.Location+".csv")
		if err := w.write(name, func(f *os.File) error { return writeRaw(f, obs) }); err != nil {
			return err
		}
	}

	records := ds.Records()
	outputs := []struct {
		name  string
		write func(*os.File) error
	}{
		{LongTableFile, func(f *os.File) error { return writeLongTable(f, records) }},
		{JSONFile, func(f *os.File) error { return writeJSON(f, records) }},
		{GrapherFile, func(f *os.File) error { return writeGrapher(f, records) }},
		{LocationsFile, func(f *os.File) error { return writeLocations(f, ds) }},
		{ReportFile, func(f *os.File) error { return writeReport(f, ds, len(records)) }},
	}
	for _, o := range outputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.write(o.name, o.write); err != nil {
			return err
		}
	}

	w.logger.Info("output files written", "dir", w.dir, "locations", len(ds.Raw), "rows", len(records))
	return nil
}

// write replaces name atomically: content goes to a temporary file in the
// same directory which is renamed over the target once complete.
func (w *Writer) write(name string, fill func(*os.File) error) error {
	target := filepath.Join(w.dir, name)
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	w.logger.Debug("wrote output file", "file", name)
	return nil
}
