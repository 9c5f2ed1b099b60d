package storage

import (
	"context"
	"time"

	"image-scraper/pkg/models"
)

// ImageStore handles per-image download history
type ImageStore interface {
	// CheckImageStatus retrieves the status and details of an image URL
	// Returns status (ImageStatusSuccess, ImageStatusRejected, ImageStatusFailure, ImageStatusNotFound, ImageStatusDBError),
	// the ImageDBEntry if found and parsed, and any error
	CheckImageStatus(imgURL string) (status models.ImageStatus, entry *models.ImageDBEntry, err error)

	// UpdateImageStatus records the latest outcome for an image URL
	UpdateImageStatus(imgURL string, entry *models.ImageDBEntry) error
}

// Bounds for RunStore.RecentRuns
const (
	DefaultRunsLimit = 20
	MaxRunsLimit     = 500
)

// RunStore handles per-run summaries
type RunStore interface {
	// RecordRun persists a finished run
	RecordRun(run *models.RunRecord) error

	// RecentRuns returns up to limit runs, newest first. limit is clamped to MaxRunsLimit
	RecentRuns(limit int) ([]models.RunRecord, error)
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// GetKeyCount returns an approximate count of all keys in the store
	GetKeyCount() (int, error)

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database connection
	Close() error
}

// HistoryStore combines all store interfaces for components that need full access
type HistoryStore interface {
	ImageStore
	RunStore
	StoreAdmin
}
