package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RowStatus represents the dispatch status of a run row
type RowStatus string

const (
	RowStatusPending   RowStatus = "pending"
	RowStatusCalling   RowStatus = "calling"
	RowStatusCompleted RowStatus = "completed"
	RowStatusFailed    RowStatus = "failed"
	RowStatusSkipped   RowStatus = "skipped"
)

// String returns the string representation of the status
func (s RowStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s RowStatus) Valid() bool {
	switch s {
	case RowStatusPending, RowStatusCalling, RowStatusCompleted, RowStatusFailed, RowStatusSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the row will never be dispatched again.
func (s RowStatus) IsTerminal() bool {
	return s == RowStatusCompleted || s == RowStatusFailed || s == RowStatusSkipped
}

// Scan implements the sql.Scanner interface for RowStatus
func (s *RowStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RowStatus(v)
	case []byte:
		*s = RowStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RowStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RowStatus
func (s RowStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RowStatus: %s", s)
	}
	return string(s), nil
}

// RunRow is one patient-call unit within a run. Rows are created during file
// ingestion and only mutated by the dispatcher (pending -> calling, or ->
// failed on a dispatch error) and the webhook reconciler (calling -> terminal).
type RunRow struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_run_rows_uuid" json:"uuid"`
	RunID          uint      `gorm:"not null;index:idx_run_rows_run_id" json:"run_id"`
	OrganizationID uint      `gorm:"not null;index:idx_run_rows_organization_id" json:"organization_id"`
	CampaignID     uint      `gorm:"not null" json:"campaign_id"`
	PatientID      *string   `gorm:"type:varchar(64)" json:"patient_id,omitempty"`

	// Variables is the row's source data for templating (must contain a phone
	// or primaryPhone key to be dispatchable).
	Variables          JSONMap `gorm:"type:jsonb;not null" json:"variables"`
	ProcessedVariables JSONMap `gorm:"type:jsonb" json:"processed_variables"`

	// Analysis is the post-call structured outcome copied from the provider.
	Analysis     JSONMap `gorm:"type:jsonb" json:"analysis"`
	PostCallData JSONMap `gorm:"type:jsonb" json:"post_call_data"`

	Status RowStatus `gorm:"type:row_status;not null;default:'pending';index:idx_run_rows_status" json:"status"`
	Error  *string   `gorm:"type:text" json:"error,omitempty"`

	ProviderCallID *string `gorm:"type:varchar(128);index:idx_run_rows_provider_call_id" json:"provider_call_id,omitempty"`

	SortIndex     int  `gorm:"not null;default:0;index:idx_run_rows_sort_index" json:"sort_index"`
	Priority      int  `gorm:"not null;default:0" json:"priority"`
	RetryCount    int  `gorm:"not null;default:0" json:"retry_count"`
	CallAttempts  int  `gorm:"not null;default:0" json:"call_attempts"`
	BatchEligible bool `gorm:"not null;default:true" json:"batch_eligible"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Run *Run `gorm:"foreignKey:RunID;references:ID" json:"run,omitempty"`
}

// TableName returns the table name for the model
func (RunRow) TableName() string {
	return "run_rows"
}

// BeforeCreate is called before creating a new record
func (r *RunRow) BeforeCreate() error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RowStatusPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// PhoneNumber resolves the destination number from row variables. Ingestion
// writes either phone or primaryPhone depending on the source file.
func (r *RunRow) PhoneNumber() (string, bool) {
	if phone, ok := r.Variables.GetString("phone"); ok {
		return phone, true
	}
	return r.Variables.GetString("primaryPhone")
}

// RunRowFilter represents filter criteria for run rows
type RunRowFilter struct {
	ID             *uint      `json:"id,omitempty"`
	UUID           *uuid.UUID `json:"uuid,omitempty"`
	RunID          *uint      `json:"run_id,omitempty"`
	OrganizationID *uint      `json:"organization_id,omitempty"`
	Status         *RowStatus `json:"status,omitempty"`
	BatchEligible  *bool      `json:"batch_eligible,omitempty"`
	ProviderCallID *string    `json:"provider_call_id,omitempty"`
}
