package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CallStatus represents the status of a call
type CallStatus string

const (
	CallStatusPending    CallStatus = "pending"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusVoicemail  CallStatus = "voicemail"
	CallStatusNoAnswer   CallStatus = "no-answer"
)

// String returns the string representation of the status
func (s CallStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusPending, CallStatusInProgress, CallStatusCompleted,
		CallStatusFailed, CallStatusVoicemail, CallStatusNoAnswer:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the provider has delivered a final outcome.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusVoicemail, CallStatusNoAnswer:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CallStatus
func (s *CallStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CallStatus(v)
	case []byte:
		*s = CallStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CallStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CallStatus
func (s CallStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CallStatus: %s", s)
	}
	return string(s), nil
}

// CallDirection represents the direction of a call
type CallDirection string

const (
	CallDirectionInbound  CallDirection = "inbound"
	CallDirectionOutbound CallDirection = "outbound"
)

// Call is one attempted/placed phone call, 1:1 with a provider call identifier.
// Calls are never deleted; a call is the permanent audit record for a row attempt.
type Call struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_calls_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_calls_organization_id" json:"organization_id"`
	RunID          *uint     `gorm:"index:idx_calls_run_id" json:"run_id,omitempty"`
	RowID          *uint     `gorm:"index:idx_calls_row_id" json:"row_id,omitempty"`
	CampaignID     *uint     `json:"campaign_id,omitempty"`
	PatientID      *string   `gorm:"type:varchar(64)" json:"patient_id,omitempty"`

	AgentID   string        `gorm:"type:varchar(128)" json:"agent_id"`
	Direction CallDirection `gorm:"type:varchar(16);not null;default:'outbound'" json:"direction"`
	Status    CallStatus    `gorm:"type:call_status;not null;default:'pending';index:idx_calls_status" json:"status"`

	ProviderCallID string `gorm:"type:varchar(128);not null;uniqueIndex:uk_calls_provider_call_id" json:"provider_call_id"`

	ToNumber   string `gorm:"type:varchar(32)" json:"to_number"`
	FromNumber string `gorm:"type:varchar(32)" json:"from_number"`

	RecordingURL *string `gorm:"type:text" json:"recording_url,omitempty"`
	Transcript   *string `gorm:"type:text" json:"transcript,omitempty"`
	Analysis     JSONMap `gorm:"type:jsonb" json:"analysis"`

	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `gorm:"not null;default:0" json:"duration_seconds"`

	Error    *string `gorm:"type:text" json:"error,omitempty"`
	Metadata JSONMap `gorm:"type:jsonb" json:"metadata"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_calls_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Call) TableName() string {
	return "calls"
}

// BeforeCreate is called before creating a new record
func (c *Call) BeforeCreate() error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CallStatusPending
	}
	if c.Direction == "" {
		c.Direction = CallDirectionOutbound
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// CallFilter represents filter criteria for calls
type CallFilter struct {
	ID             *uint          `json:"id,omitempty"`
	UUID           *uuid.UUID     `json:"uuid,omitempty"`
	OrganizationID *uint          `json:"organization_id,omitempty"`
	RunID          *uint          `json:"run_id,omitempty"`
	RowID          *uint          `json:"row_id,omitempty"`
	Status         *CallStatus    `json:"status,omitempty"`
	Direction      *CallDirection `json:"direction,omitempty"`
	ProviderCallID *string        `json:"provider_call_id,omitempty"`
	CreatedAfter   *time.Time     `json:"created_after,omitempty"`
	CreatedBefore  *time.Time     `json:"created_before,omitempty"`
}
