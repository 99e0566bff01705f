package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the status of a run
type RunStatus string

const (
	RunStatusDraft      RunStatus = "draft"
	RunStatusProcessing RunStatus = "processing"
	RunStatusReady      RunStatus = "ready"
	RunStatusScheduled  RunStatus = "scheduled"
	RunStatusRunning    RunStatus = "running"
	RunStatusPaused     RunStatus = "paused"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// String returns the string representation of the status
func (s RunStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusDraft, RunStatusProcessing, RunStatusReady, RunStatusScheduled,
		RunStatusRunning, RunStatusPaused, RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the run can no longer change state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Scan implements the sql.Scanner interface for RunStatus
func (s *RunStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RunStatus(v)
	case []byte:
		*s = RunStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RunStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RunStatus
func (s RunStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RunStatus: %s", s)
	}
	return string(s), nil
}

// RunRowCounters tracks row ingestion totals.
type RunRowCounters struct {
	Total   int `json:"total"`
	Invalid int `json:"invalid"`
}

// RunCallCounters tracks per-run call outcomes. These counters are telemetry:
// row and call status columns are the source of truth, and concurrent webhook
// deliveries may transiently skew them. Decrements are floored at zero.
type RunCallCounters struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Calling   int `json:"calling"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Voicemail int `json:"voicemail"`
	Connected int `json:"connected"`
	Converted int `json:"converted"`
}

// RunTiming tracks run execution timing.
type RunTiming struct {
	StartTime       *time.Time `json:"startTime,omitempty"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	LastPausedAt    *time.Time `json:"lastPausedAt,omitempty"`
	ScheduledTime   *time.Time `json:"scheduledTime,omitempty"`
	DurationSeconds int        `json:"duration"`
	CallsPerMinute  float64    `json:"callsPerMinute,omitempty"`
	BatchSize       int        `json:"batchSize,omitempty"`
}

// RunMetadata is the run's denormalized JSONB counter/timing blob. It is read
// and written as a whole structure so the UI and webhook reconciler always see
// the full nested shape.
type RunMetadata struct {
	Rows  RunRowCounters  `json:"rows"`
	Calls RunCallCounters `json:"calls"`
	Run   RunTiming       `json:"run"`

	// LastOfficeHoursCheck records the most recent dispatch-cycle gate decision.
	LastOfficeHoursCheck *OfficeHoursCheck `json:"lastOfficeHoursCheck,omitempty"`
}

// OfficeHoursCheck is the persisted result of an office-hours gate evaluation.
type OfficeHoursCheck struct {
	WithinHours bool      `json:"withinHours"`
	Reason      string    `json:"reason"`
	CheckedAt   time.Time `json:"checkedAt"`
}

// Value implements the driver.Valuer interface for RunMetadata
func (m RunMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for RunMetadata
func (m *RunMetadata) Scan(value any) error {
	if value == nil {
		*m = RunMetadata{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RunMetadata", value)
	}

	return json.Unmarshal(bytes, m)
}

// Counter names accepted by RunMetadata.Increment.
const (
	CounterCallsTotal     = "calls.total"
	CounterCallsPending   = "calls.pending"
	CounterCallsCalling   = "calls.calling"
	CounterCallsCompleted = "calls.completed"
	CounterCallsFailed    = "calls.failed"
	CounterCallsSkipped   = "calls.skipped"
	CounterCallsVoicemail = "calls.voicemail"
	CounterCallsConnected = "calls.connected"
	CounterCallsConverted = "calls.converted"
	CounterRowsTotal      = "rows.total"
	CounterRowsInvalid    = "rows.invalid"
)

// Increment applies a named delta to one counter, flooring the result at zero
// so webhook redeliveries never drive a counter negative. Unknown names are
// ignored rather than treated as errors.
func (m *RunMetadata) Increment(name string, delta int) {
	target := m.counterRef(name)
	if target == nil {
		return
	}
	*target += delta
	if *target < 0 {
		*target = 0
	}
}

func (m *RunMetadata) counterRef(name string) *int {
	switch name {
	case CounterCallsTotal:
		return &m.Calls.Total
	case CounterCallsPending:
		return &m.Calls.Pending
	case CounterCallsCalling:
		return &m.Calls.Calling
	case CounterCallsCompleted:
		return &m.Calls.Completed
	case CounterCallsFailed:
		return &m.Calls.Failed
	case CounterCallsSkipped:
		return &m.Calls.Skipped
	case CounterCallsVoicemail:
		return &m.Calls.Voicemail
	case CounterCallsConnected:
		return &m.Calls.Connected
	case CounterCallsConverted:
		return &m.Calls.Converted
	case CounterRowsTotal:
		return &m.Rows.Total
	case CounterRowsInvalid:
		return &m.Rows.Invalid
	default:
		return nil
	}
}

// Run represents one campaign execution batch.
type Run struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_runs_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_runs_organization_id" json:"organization_id"`
	CampaignID     uint      `gorm:"not null;index:idx_runs_campaign_id" json:"campaign_id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`

	CustomPrompt           *string `gorm:"type:text" json:"custom_prompt,omitempty"`
	CustomVoicemailMessage *string `gorm:"type:text" json:"custom_voicemail_message,omitempty"`

	Status      RunStatus   `gorm:"type:run_status;not null;default:'draft';index:idx_runs_status" json:"status"`
	Metadata    RunMetadata `gorm:"type:jsonb;not null" json:"metadata"`
	ScheduledAt *time.Time  `gorm:"index:idx_runs_scheduled_at" json:"scheduled_at,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_runs_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
	Campaign     *Campaign     `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
}

// TableName returns the table name for the model
func (Run) TableName() string {
	return "runs"
}

// BeforeCreate is called before creating a new record
func (r *Run) BeforeCreate() error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RunStatusDraft
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// CanTransitionTo checks if the run can transition to the given status.
// Any non-terminal state may transition to failed.
func (r *Run) CanTransitionTo(newStatus RunStatus) bool {
	if newStatus == RunStatusFailed {
		return !r.Status.IsTerminal()
	}
	switch r.Status {
	case RunStatusDraft:
		return newStatus == RunStatusProcessing || newStatus == RunStatusReady
	case RunStatusProcessing:
		return newStatus == RunStatusReady
	case RunStatusReady:
		return newStatus == RunStatusRunning || newStatus == RunStatusScheduled
	case RunStatusScheduled:
		return newStatus == RunStatusRunning || newStatus == RunStatusReady
	case RunStatusRunning:
		return newStatus == RunStatusPaused || newStatus == RunStatusCompleted
	case RunStatusPaused:
		return newStatus == RunStatusRunning
	default:
		return false
	}
}

// RunFilter represents filter criteria for runs
type RunFilter struct {
	ID              *uint      `json:"id,omitempty"`
	UUID            *uuid.UUID `json:"uuid,omitempty"`
	OrganizationID  *uint      `json:"organization_id,omitempty"`
	CampaignID      *uint      `json:"campaign_id,omitempty"`
	Status          *RunStatus `json:"status,omitempty"`
	ScheduledBefore *time.Time `json:"scheduled_before,omitempty"`
	CreatedAfter    *time.Time `json:"created_after,omitempty"`
	CreatedBefore   *time.Time `json:"created_before,omitempty"`
}
