package exporters

import "github.com/mrlokans/kindle-vocab/internal/entities"

// RecordWriter receives export rows. Implementations must be safe for
// concurrent Write calls.
type RecordWriter interface {
	Write(record entities.ExportRecord) error
	Flush() error
}
