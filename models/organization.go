package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// OfficeHoursWindow is one weekday's calling window in 24h "HH:MM" strings.
// Sentinels: start == end == "00:00" means closed all day,
// start == "00:00" && end == "23:59" means open 24 hours.
type OfficeHoursWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// OfficeHours maps lowercase weekday names ("monday"...) to calling windows.
// A missing weekday is treated as closed.
type OfficeHours map[string]OfficeHoursWindow

// Value implements the driver.Valuer interface for OfficeHours
func (h OfficeHours) Value() (driver.Value, error) {
	if h == nil {
		return json.Marshal(OfficeHours{})
	}
	return json.Marshal(h)
}

// Scan implements the sql.Scanner interface for OfficeHours
func (h *OfficeHours) Scan(value any) error {
	if value == nil {
		*h = OfficeHours{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into OfficeHours", value)
	}

	return json.Unmarshal(bytes, h)
}

// Organization represents a tenant that owns campaigns, runs and calls.
// Identity and membership live in an external provider; this row carries the
// calling configuration the run engine needs.
type Organization struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	UUID                uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_organizations_uuid" json:"uuid"`
	Name                string         `gorm:"type:varchar(255);not null" json:"name"`
	Phone               string         `gorm:"type:varchar(32)" json:"phone"`
	Timezone            string         `gorm:"type:varchar(64)" json:"timezone"`
	OfficeHours         OfficeHours    `gorm:"type:jsonb" json:"office_hours"`
	ConcurrentCallLimit int            `gorm:"not null;default:20" json:"concurrent_call_limit"`
	AllowedAgentIDs     pq.StringArray `gorm:"type:text[]" json:"allowed_agent_ids"`
	IsActive            bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt           time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt           *time.Time     `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Organization) TableName() string {
	return "organizations"
}

// EffectiveConcurrentCallLimit applies the default limit when unset.
func (o *Organization) EffectiveConcurrentCallLimit() int {
	if o.ConcurrentCallLimit <= 0 {
		return DefaultConcurrentCallLimit
	}
	return o.ConcurrentCallLimit
}

// DefaultConcurrentCallLimit is applied when an organization has no explicit limit.
const DefaultConcurrentCallLimit = 20

// OrganizationFilter represents filter criteria for organizations
type OrganizationFilter struct {
	ID       *uint      `json:"id,omitempty"`
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}
