package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
)

// table is a parsed CSV file addressed by column name.
type table struct {
	name    string
	columns map[string]int
	rows    [][]string
}

// readTable parses a headered CSV. Every column must be in allowed and every
// required column must be present; violations wrap domain.ErrSchema.
func readTable(r io.Reader, name string, allowed, required []string) (*table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s: missing header", domain.ErrSchema, name)
	}

	t := &table{name: name, columns: make(map[string]int, len(records[0])), rows: records[1:]}
	for i, col := range records[0] {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if !slices.Contains(allowed, col) {
			return nil, fmt.Errorf("%w: %s: unexpected column %q", domain.ErrSchema, name, col)
		}
		if _, dup := t.columns[col]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate column %q", domain.ErrSchema, name, col)
		}
		t.columns[col] = i
	}
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			return nil, fmt.Errorf("%w: %s: missing column %q", domain.ErrSchema, name, col)
		}
	}
	return t, nil
}

// get returns the trimmed cell of column col, or "" when the column is absent.
func (t *table) get(row []string, col string) string {
	i, ok := t.columns[col]
	if !ok {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// rowError reports a bad cell at a 1-based data line, counting the header.
func (t *table) rowError(line int, format string, args ...any) error {
	return fmt.Errorf("%w: %s:%d: %s", domain.ErrSchema, t.name, line+2, fmt.Sprintf(format, args...))
}

// parseCount parses an optional non-fractional counter. Some sources export
// counts as floats ("1234.0"); those are accepted when integral.
func parseCount(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("invalid count %q", s)
	}
	n := int64(f)
	return &n, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}
