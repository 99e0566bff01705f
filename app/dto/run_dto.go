package dto

import (
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/models"
)

// CreateRunRequest represents a run creation request
type CreateRunRequest struct {
	CampaignUUID           string     `json:"campaign_uuid" validate:"required,uuid4"`
	Name                   string     `json:"name" validate:"required,min=1,max=255"`
	CustomPrompt           *string    `json:"custom_prompt,omitempty" validate:"omitempty,max=10000"`
	CustomVoicemailMessage *string    `json:"custom_voicemail_message,omitempty" validate:"omitempty,max=10000"`
	ScheduledAt            *time.Time `json:"scheduled_at,omitempty"`
}

// RunDTO is the API representation of a run
type RunDTO struct {
	UUID         string             `json:"uuid"`
	CampaignUUID string             `json:"campaign_uuid,omitempty"`
	Name         string             `json:"name"`
	Status       string             `json:"status"`
	Metadata     models.RunMetadata `json:"metadata"`
	ScheduledAt  *time.Time         `json:"scheduled_at,omitempty"`
	CreatedAt    string             `json:"created_at"`
	UpdatedAt    *string            `json:"updated_at,omitempty"`
}

// CreateRunResponse represents a run creation response
type CreateRunResponse struct {
	Run RunDTO `json:"run"`
}

// ListRunsRequest represents a run listing request
type ListRunsRequest struct {
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=draft processing ready scheduled running paused completed failed"`
	Page   int     `json:"page" validate:"omitempty,min=1"`
	Limit  int     `json:"limit" validate:"omitempty,min=1,max=100"`
}

// ListRunsResponse represents a run listing response
type ListRunsResponse struct {
	Runs  []RunDTO `json:"runs"`
	Total int64    `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}

// RowDispatchError reports a single row that failed to dispatch during a cycle
type RowDispatchError struct {
	RowUUID string `json:"row_uuid"`
	Error   string `json:"error"`
}

// DispatchCycleResult summarizes one dispatch cycle
type DispatchCycleResult struct {
	// Outcome is one of: dispatched, at-limit, outside-office-hours, waiting,
	// completed, not-running.
	Outcome    string             `json:"outcome"`
	Dispatched int                `json:"dispatched"`
	Failed     int                `json:"failed"`
	Errors     []RowDispatchError `json:"errors,omitempty"`
}

// Dispatch cycle outcomes
const (
	CycleOutcomeDispatched         = "dispatched"
	CycleOutcomeAtLimit            = "at-limit"
	CycleOutcomeOutsideOfficeHours = "outside-office-hours"
	CycleOutcomeWaiting            = "waiting"
	CycleOutcomeCompleted          = "completed"
	CycleOutcomeNotRunning         = "not-running"
)
