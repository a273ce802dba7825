package services

import (
	"context"

	"github.com/mrlokans/kindle-vocab/internal/dictionary"
	"github.com/mrlokans/kindle-vocab/internal/entities"
)

// WordResolver turns a looked-up word into dictionary data.
// Resolve must not fail; misses are reported through the Resolution.
type WordResolver interface {
	Resolve(ctx context.Context, word string) dictionary.Resolution
}

// RunRecorder persists the history of export runs.
// Use this interface to make exports observable after the fact.
type RunRecorder interface {
	StartRun(run *entities.ExportRun) error
	FinishRun(run *entities.ExportRun) error
}

// ExportRequest names the three files an export touches.
type ExportRequest struct {
	DatabasePath  string
	WatermarkPath string
	OutputPath    string
}

// ExportResult contains the outcome of an export operation.
type ExportResult struct {
	WatermarkBefore int64
	WatermarkAfter  int64
	Fetched         int
	Written         int
	NotFound        int
	Phase           Phase
}

// Phase is the coordinator state an export reached.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseWatermarkLoaded   Phase = "watermark_loaded"
	PhaseRecordsFetched    Phase = "records_fetched"
	PhaseResolving         Phase = "resolving_definitions"
	PhaseWriting           Phase = "writing"
	PhaseWatermarkAdvanced Phase = "watermark_advanced"
	PhaseAborted           Phase = "aborted"
)
