// Package kindle reads the vocabulary builder database a Kindle keeps at
// system/vocabulary/vocab.db.
package kindle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mrlokans/kindle-vocab/internal/entities"
)

// SourceError reports a vocabulary database that cannot be opened or does
// not have the expected WORDS/LOOKUPS schema.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("vocabulary database %s: %v (is this the Kindle vocab.db?)", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// LookupBatch holds the lookups newer than a watermark together with the
// latest timestamp of any lookup in the database.
type LookupBatch struct {
	Lookups      []entities.LookupRecord
	MaxTimestamp int64
}

type VocabReader struct {
	dbPath string
}

func NewVocabReader(dbPath string) (*VocabReader, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, &SourceError{Path: dbPath, Err: err}
	}
	if info.IsDir() {
		return nil, &SourceError{Path: dbPath, Err: errors.New("is a directory")}
	}
	return &VocabReader{dbPath: dbPath}, nil
}

func (r *VocabReader) Path() string {
	return r.dbPath
}

const lookupsSinceQuery = `
	SELECT
		WORDS.word,
		LOOKUPS.usage,
		LOOKUPS.timestamp
	FROM LOOKUPS
	INNER JOIN WORDS
		ON LOOKUPS.word_key = WORDS.id
	WHERE LOOKUPS.timestamp >= ?
	ORDER BY LOOKUPS.timestamp
`

// LookupsSince returns every lookup with a timestamp strictly greater than
// watermark. MaxTimestamp covers all lookups, filtered or not.
func (r *VocabReader) LookupsSince(ctx context.Context, watermark int64) (*LookupBatch, error) {
	dsn, err := readOnlyDSN(r.dbPath)
	if err != nil {
		return nil, &SourceError{Path: r.dbPath, Err: err}
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &SourceError{Path: r.dbPath, Err: err}
	}
	defer db.Close()

	// Both queries must see the same snapshot.
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, &SourceError{Path: r.dbPath, Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, lookupsSinceQuery, watermark+1)
	if err != nil {
		return nil, &SourceError{Path: r.dbPath, Err: fmt.Errorf("query lookups: %w", err)}
	}
	defer rows.Close()

	batch := &LookupBatch{}
	for rows.Next() {
		var word, usage sql.NullString
		var ts int64
		if err := rows.Scan(&word, &usage, &ts); err != nil {
			return nil, &SourceError{Path: r.dbPath, Err: fmt.Errorf("scan lookup: %w", err)}
		}
		batch.Lookups = append(batch.Lookups, entities.LookupRecord{
			Word:      word.String,
			Usage:     usage.String,
			Timestamp: ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &SourceError{Path: r.dbPath, Err: fmt.Errorf("iterate lookups: %w", err)}
	}
	rows.Close()

	var maxTS sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM LOOKUPS`).Scan(&maxTS); err != nil {
		return nil, &SourceError{Path: r.dbPath, Err: fmt.Errorf("query latest timestamp: %w", err)}
	}
	if maxTS.Valid {
		batch.MaxTimestamp = maxTS.Int64
	}

	return batch, nil
}

// readOnlyDSN builds a read-only SQLite URI for path. The path is escaped so
// that '#', '?' and '%' in a directory or file name stay part of the name.
func readOnlyDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro"}
	return u.String(), nil
}
