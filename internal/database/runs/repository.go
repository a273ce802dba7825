// Package runs stores one row per export attempt.
//
// # Interface Implementation
//
//	var _ services.RunRecorder = (*Repository)(nil)
//
// # Usage
//
//	repo := runs.NewRepository(db)
//	recent, err := repo.RecentRuns(20)
package runs

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/kindle-vocab/internal/entities"
)

// StaleAfter is how long a run may stay in the running state before it is
// considered interrupted.
const StaleAfter = 30 * time.Minute

// Repository handles export run database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new run repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// StartRun inserts run and sets its ID.
// Implements RunRecorder.StartRun.
func (r *Repository) StartRun(run *entities.ExportRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = entities.ExportRunStatusRunning
	}
	return r.db.Create(run).Error
}

// FinishRun stores the final state of a run started with StartRun.
// Implements RunRecorder.FinishRun.
func (r *Repository) FinishRun(run *entities.ExportRun) error {
	if run.CompletedAt == nil {
		now := time.Now()
		run.CompletedAt = &now
	}
	if run.ID == 0 {
		return r.db.Create(run).Error
	}
	return r.db.Save(run).Error
}

// RecentRuns returns up to limit runs, newest first.
func (r *Repository) RecentRuns(limit int) ([]entities.ExportRun, error) {
	var runs []entities.ExportRun
	q := r.db.Order("started_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&runs).Error
	return runs, err
}

// LastSuccessful returns the most recent succeeded run, or nil if there is none.
func (r *Repository) LastSuccessful() (*entities.ExportRun, error) {
	var run entities.ExportRun
	err := r.db.Where("status = ?", entities.ExportRunStatusSucceeded).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// MarkInterrupted fails runs that have been running longer than StaleAfter,
// which happens when the process is killed mid-export.
func (r *Repository) MarkInterrupted() (int64, error) {
	now := time.Now()
	result := r.db.Model(&entities.ExportRun{}).
		Where("status = ? AND started_at < ?", entities.ExportRunStatusRunning, now.Add(-StaleAfter)).
		Updates(map[string]any{
			"status":       entities.ExportRunStatusFailed,
			"error":        "export was interrupted",
			"completed_at": now,
		})
	return result.RowsAffected, result.Error
}
