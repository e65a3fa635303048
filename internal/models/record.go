package models

import (
	"time"

	"gorm.io/datatypes"
)

// BillRecord is the queryable read-index row for a bill, mirroring the
// filesystem's authoritative state so the API can list/search bills
// without walking bills/ on every request.
type BillRecord struct {
	ID                  uint              `json:"id" gorm:"primaryKey"`
	CanonicalID         string            `json:"canonical_id" gorm:"uniqueIndex;size:64"`
	Chamber             string            `json:"chamber" gorm:"size:1"`
	Number              int               `json:"number"`
	Year                int               `json:"year"`
	Title               string            `json:"title"`
	LatestCheckpoint    string            `json:"latest_checkpoint"`
	ChronologyDegraded  bool              `json:"chronology_degraded"`
	Metadata            datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// JobRecord is the durable mirror of a Job's KV-store liveness state,
// written on each state transition so the job history survives orchestrator
// restarts (the KV store makes no persistence guarantee beyond one
// process's lifetime).
type JobRecord struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	BillCanonicalID string     `json:"bill_canonical_id" gorm:"uniqueIndex;size:64"`
	State           string     `json:"state"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// TableName returns the table name for BillRecord.
func (BillRecord) TableName() string { return "bill_records" }

// TableName returns the table name for JobRecord.
func (JobRecord) TableName() string { return "job_records" }
