package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/kindle-vocab/internal/entities"
	"github.com/mrlokans/kindle-vocab/internal/exporters"
	"github.com/mrlokans/kindle-vocab/internal/kindle"
	"github.com/mrlokans/kindle-vocab/internal/logging"
	"github.com/mrlokans/kindle-vocab/internal/watermark"
)

// ExportOptions configures an ExportService.
type ExportOptions struct {
	Workers   int  // Concurrent dictionary lookups; <= 0 means runtime.NumCPU()
	Delimiter rune // exporters.DelimiterComma or exporters.DelimiterTab
}

// ExportService exports Kindle lookups newer than the stored watermark to an
// Anki import file and advances the watermark once the file is complete.
type ExportService struct {
	resolver  WordResolver
	workers   int
	delimiter rune
	recorder  RunRecorder
	log       *slog.Logger
}

// NewExportService creates a new ExportService.
func NewExportService(resolver WordResolver, opts ExportOptions, logger *slog.Logger) *ExportService {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = exporters.DelimiterComma
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &ExportService{
		resolver:  resolver,
		workers:   opts.Workers,
		delimiter: opts.Delimiter,
		log:       logger.With("component", "export"),
	}
}

// SetRunRecorder sets the optional run history recorder.
func (s *ExportService) SetRunRecorder(recorder RunRecorder) {
	s.recorder = recorder
}

// Export runs one incremental export. On any error the watermark file is
// left untouched, so the next run picks the same lookups up again.
func (s *ExportService) Export(ctx context.Context, req ExportRequest) (result ExportResult, err error) {
	result.Phase = PhaseIdle

	run := &entities.ExportRun{
		Status:     entities.ExportRunStatusRunning,
		SourcePath: req.DatabasePath,
		OutputPath: req.OutputPath,
		StartedAt:  time.Now(),
	}
	s.startRun(run)
	defer func() {
		if err != nil {
			s.log.DebugContext(ctx, "export aborted", slog.String("phase", string(result.Phase)))
			result.Phase = PhaseAborted
		}
		s.finishRun(run, result, err)
	}()

	store := watermark.NewFileStore(req.WatermarkPath)
	before, err := store.Load()
	if err != nil {
		return result, err
	}
	result.WatermarkBefore = before
	result.WatermarkAfter = before
	s.transition(ctx, &result, PhaseWatermarkLoaded)

	reader, err := kindle.NewVocabReader(req.DatabasePath)
	if err != nil {
		return result, err
	}
	batch, err := reader.LookupsSince(ctx, before)
	if err != nil {
		return result, err
	}
	result.Fetched = len(batch.Lookups)
	s.transition(ctx, &result, PhaseRecordsFetched)

	s.log.InfoContext(ctx, "exporting lookups",
		slog.String("source", reader.Path()),
		slog.String("output", req.OutputPath),
		slog.Time("since", time.UnixMilli(before)),
		slog.Int("lookups", len(batch.Lookups)),
	)

	// Rows go to a temporary sibling first so a failed run never leaves a
	// half-written import file behind.
	tmp, err := os.CreateTemp(filepath.Dir(req.OutputPath), "."+filepath.Base(req.OutputPath)+".*.tmp")
	if err != nil {
		return result, fmt.Errorf("create output file for %s: %w", req.OutputPath, err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	writer := exporters.NewAnkiWriter(tmp, s.delimiter)
	s.transition(ctx, &result, PhaseResolving)

	written, notFound, err := s.resolveAndWrite(ctx, batch.Lookups, writer)
	result.Written = written
	result.NotFound = notFound
	if err != nil {
		return result, err
	}
	if written != len(batch.Lookups) {
		return result, fmt.Errorf("wrote %d rows for %d lookups", written, len(batch.Lookups))
	}
	s.transition(ctx, &result, PhaseWriting)

	if err := writer.Flush(); err != nil {
		return result, fmt.Errorf("write output file %s: %w", req.OutputPath, err)
	}
	// CreateTemp leaves the file private; the import file is not.
	if err := tmp.Chmod(outputFileMode); err != nil {
		return result, fmt.Errorf("set mode of output file %s: %w", req.OutputPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return result, fmt.Errorf("sync output file %s: %w", req.OutputPath, err)
	}
	if err := tmp.Close(); err != nil {
		return result, fmt.Errorf("close output file %s: %w", req.OutputPath, err)
	}
	if err := os.Rename(tmp.Name(), req.OutputPath); err != nil {
		return result, fmt.Errorf("move output file into place at %s: %w", req.OutputPath, err)
	}
	committed = true

	after := max(before, batch.MaxTimestamp)
	advanced, err := store.Advance(after)
	if err != nil {
		return result, err
	}
	result.WatermarkAfter = after
	s.transition(ctx, &result, PhaseWatermarkAdvanced)

	if advanced {
		s.log.InfoContext(ctx, "recorded timestamp of the final entry",
			slog.String("file", store.Path()),
			slog.Int64("timestamp", after),
		)
	} else {
		s.log.InfoContext(ctx, "watermark unchanged", slog.Int64("timestamp", after))
	}

	return result, nil
}

const outputFileMode = 0o644

// indexedRecord carries a row with its position in the fetched batch.
type indexedRecord struct {
	index  int
	record entities.ExportRecord
}

// resolveAndWrite fans lookups out to at most s.workers resolver calls and
// funnels the rows through a single writer goroutine. Rows are written in
// lookup order regardless of which resolution finishes first.
func (s *ExportService) resolveAndWrite(ctx context.Context, lookups []entities.LookupRecord, writer exporters.RecordWriter) (int, int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan indexedRecord, s.workers)
	writeErr := make(chan error, 1)
	var written int

	go func() {
		var err error
		pending := make(map[int]entities.ExportRecord)
		next := 0
		for row := range rows {
			if err != nil {
				continue
			}
			pending[row.index] = row.record
			for {
				record, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				if err = writer.Write(record); err != nil {
					cancel()
					break
				}
				written++
			}
		}
		writeErr <- err
	}()

	var notFound atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, lookup := range lookups {
		i, lookup := i, lookup
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := s.resolver.Resolve(gctx, lookup.Word)
			if err := gctx.Err(); err != nil {
				return err
			}
			if !res.Found() {
				notFound.Add(1)
			}

			row := entities.ExportRecord{
				Headword:      res.Headword,
				Pronunciation: res.Pronunciation,
				Usage:         exporters.Emphasize(lookup.Usage, lookup.Word),
				Definition:    res.Definition,
			}
			s.log.DebugContext(gctx, "resolved lookup",
				slog.String("word", lookup.Word),
				slog.String("usage", row.Usage),
			)

			select {
			case rows <- indexedRecord{index: i, record: row}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	groupErr := g.Wait()
	close(rows)
	if err := <-writeErr; err != nil {
		return written, int(notFound.Load()), err
	}
	if groupErr != nil {
		return written, int(notFound.Load()), groupErr
	}
	if err := ctx.Err(); err != nil {
		return written, int(notFound.Load()), err
	}
	return written, int(notFound.Load()), nil
}

func (s *ExportService) transition(ctx context.Context, result *ExportResult, next Phase) {
	s.log.DebugContext(ctx, "export phase",
		slog.String("from", string(result.Phase)),
		slog.String("to", string(next)),
	)
	result.Phase = next
}

func (s *ExportService) startRun(run *entities.ExportRun) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.StartRun(run); err != nil {
		s.log.Warn("failed to record export run start", slog.String("error", err.Error()))
	}
}

func (s *ExportService) finishRun(run *entities.ExportRun, result ExportResult, err error) {
	if s.recorder == nil {
		return
	}

	now := time.Now()
	run.CompletedAt = &now
	run.WatermarkBefore = result.WatermarkBefore
	run.WatermarkAfter = result.WatermarkAfter
	run.Fetched = result.Fetched
	run.Written = result.Written
	run.NotFound = result.NotFound
	run.Status = entities.ExportRunStatusSucceeded
	if err != nil {
		run.Status = entities.ExportRunStatusFailed
		run.Error = err.Error()
	}

	if recErr := s.recorder.FinishRun(run); recErr != nil {
		s.log.Warn("failed to record export run result", slog.String("error", recErr.Error()))
	}
}
