// Package audit persists one record per API conversion request in Postgres.
package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status values stored in ConversionRecord.Status.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusCached  = "cached"
)

// ConversionRecord represents one conversion request
type ConversionRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID    string    `gorm:"type:varchar(64);not null;index" json:"request_id"`
	Mode         string    `gorm:"type:varchar(20);not null;index" json:"mode"`
	InputFiles   int       `json:"input_files"`
	OutputFiles  int       `json:"output_files"`
	FailedFiles  int       `json:"failed_files"`
	Archived     bool      `json:"archived"`
	Stage        string    `gorm:"type:varchar(20)" json:"stage"`
	Status       string    `gorm:"type:varchar(20);index" json:"status"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	RemoteAddr   string    `gorm:"type:varchar(45)" json:"remote_addr"`
	Duration     int64     `json:"duration_ms"` // milliseconds
	CreatedAt    time.Time `gorm:"index" json:"timestamp"`
}

// TableName overrides the table name
func (ConversionRecord) TableName() string {
	return "conversion_records"
}

// BeforeCreate hook
func (r *ConversionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
