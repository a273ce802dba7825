package exporters

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mrlokans/kindle-vocab/internal/entities"
)

// Anki import columns: headword, pronunciation, usage, definition.
// No header row. Fields containing the delimiter, a quote or a newline are
// wrapped in double quotes with embedded quotes doubled (RFC 4180).
const (
	DelimiterComma = ','
	DelimiterTab   = '\t'
)

// ParseDelimiter maps the configuration names "comma" and "tab" (or the
// literal characters) to a delimiter rune.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "comma", ",", "csv":
		return DelimiterComma, nil
	case "tab", "\t", "tsv":
		return DelimiterTab, nil
	default:
		return 0, fmt.Errorf("unsupported delimiter %q (use comma or tab)", s)
	}
}

// AnkiWriter serializes export rows into a delimited file Anki can import.
type AnkiWriter struct {
	mu   sync.Mutex
	csv  *csv.Writer
	rows int
}

func NewAnkiWriter(w io.Writer, delimiter rune) *AnkiWriter {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	return &AnkiWriter{csv: cw}
}

func (a *AnkiWriter) Write(record entities.ExportRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.csv.Write(record.Fields()); err != nil {
		return fmt.Errorf("write row for %q: %w", record.Headword, err)
	}
	a.rows++
	return nil
}

func (a *AnkiWriter) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.csv.Flush()
	if err := a.csv.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return nil
}

func (a *AnkiWriter) Rows() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rows
}

var _ RecordWriter = (*AnkiWriter)(nil)
