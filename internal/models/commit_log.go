package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// CommitLog is the persisted trail of a committed wizard.
type CommitLog struct {
	ID             string         `db:"id" json:"id"`
	WizardID       string         `db:"wizard_id" json:"wizard_id"`
	TenantID       string         `db:"tenant_id" json:"tenant_id"`
	ClassIDs       types.JSONText `db:"class_ids" json:"class_ids"`
	SessionCount   int            `db:"session_count" json:"session_count"`
	AutoSelected   int            `db:"auto_selected" json:"auto_selected"`
	ManualSelected int            `db:"manual_selected" json:"manual_selected"`
	CommittedAt    time.Time      `db:"committed_at" json:"committed_at"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// CommitLogFilter narrows commit log listings.
type CommitLogFilter struct {
	TenantID string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
