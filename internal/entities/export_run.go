package entities

import (
	"time"
)

type ExportRunStatus string

const (
	ExportRunStatusRunning   ExportRunStatus = "running"
	ExportRunStatusSucceeded ExportRunStatus = "succeeded"
	ExportRunStatusFailed    ExportRunStatus = "failed"
)

// ExportRun records one invocation of the incremental export.
type ExportRun struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Status          ExportRunStatus `gorm:"size:20;index" json:"status"`
	SourcePath      string          `gorm:"size:1024" json:"source_path"`
	OutputPath      string          `gorm:"size:1024" json:"output_path"`
	WatermarkBefore int64           `json:"watermark_before"`
	WatermarkAfter  int64           `json:"watermark_after"`
	Fetched         int             `json:"fetched"`
	Written         int             `json:"written"`
	NotFound        int             `json:"not_found"`
	Error           string          `gorm:"type:text" json:"error,omitempty"`
	StartedAt       time.Time       `gorm:"index" json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

func (ExportRun) TableName() string {
	return "export_runs"
}

// Duration is zero while the run is still in progress.
func (r ExportRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
