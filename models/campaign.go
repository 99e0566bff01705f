package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Campaign represents a reusable calling template: which voice agent to use and
// the base prompt/voicemail text that row variables are merged into.
type Campaign struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_campaigns_organization_id" json:"organization_id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`

	// AgentID is the voice provider's agent identity used for outbound calls.
	AgentID           string `gorm:"type:varchar(128);not null" json:"agent_id"`
	BasePrompt        string `gorm:"type:text" json:"base_prompt"`
	VoicemailMessage  string `gorm:"type:text" json:"voicemail_message"`

	// ConversionKeys are the analysis field names that mark the campaign goal as
	// met (e.g. appointment_confirmed). Checked by the webhook reconciler.
	ConversionKeys pq.StringArray `gorm:"type:text[]" json:"conversion_keys"`

	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// EffectiveConversionKeys falls back to the canonical appointment flag when the
// campaign does not configure its own goal keys.
func (c *Campaign) EffectiveConversionKeys() []string {
	if len(c.ConversionKeys) == 0 {
		return []string{"appointment_confirmed"}
	}
	return c.ConversionKeys
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID             *uint      `json:"id,omitempty"`
	UUID           *uuid.UUID `json:"uuid,omitempty"`
	OrganizationID *uint      `json:"organization_id,omitempty"`
	AgentID        *string    `json:"agent_id,omitempty"`
	IsActive       *bool      `json:"is_active,omitempty"`
}
