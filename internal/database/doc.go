// Package database keeps the local history of export runs.
//
// The Kindle vocabulary database is never written to; it is read directly by
// package kindle. This package owns a separate sqlite file managed through
// gorm:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	└── runs/            # Export run history
//
// # Usage
//
//	db, err := database.NewDatabase("./kindle-vocab-history.db")
//	repo := runs.NewRepository(db.DB)
//	svc.SetRunRecorder(repo)
package database
