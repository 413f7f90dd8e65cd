package audit

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Recorder stores conversion records.
type Recorder interface {
	Record(ctx context.Context, rec *ConversionRecord) error
}

// Reader looks up stored records for the history endpoints.
type Reader interface {
	List(ctx context.Context, mode string, limit, offset int) ([]ConversionRecord, error)
	GetByRequestID(ctx context.Context, requestID string) (*ConversionRecord, error)
}

// ErrNotFound is returned when no record matches a request id.
var ErrNotFound = errors.New("conversion record not found")

// NopRecorder drops every record. Used when the database is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *ConversionRecord) error { return nil }

// Repository handles conversion record database operations
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new audit repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record creates a new conversion record
func (r *Repository) Record(ctx context.Context, rec *ConversionRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create conversion record: %w", err)
	}
	return nil
}

// List returns the most recent records, optionally filtered by mode.
func (r *Repository) List(ctx context.Context, mode string, limit, offset int) ([]ConversionRecord, error) {
	var records []ConversionRecord
	query := r.db.WithContext(ctx).Order("created_at DESC")

	if mode != "" {
		query = query.Where("mode = ?", mode)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get conversion records: %w", err)
	}
	return records, nil
}

// GetByRequestID returns the record of one request.
func (r *Repository) GetByRequestID(ctx context.Context, requestID string) (*ConversionRecord, error) {
	var rec ConversionRecord
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion record: %w", err)
	}
	return &rec, nil
}
