// Package testing provides test utilities and database setup for testing the run engine
package testing

import (
	"fmt"
	"math/rand"

	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestOrganization creates an active organization with 24h office hours
func (tf *TestFixtures) CreateTestOrganization() (*models.Organization, error) {
	org := &models.Organization{
		UUID:     uuid.New(),
		Name:     fmt.Sprintf("Test Clinic %d", rand.Intn(10000)),
		Phone:    fmt.Sprintf("+1415555%04d", rand.Intn(10000)),
		Timezone: "America/New_York",
		OfficeHours: models.OfficeHours{
			"monday":    {Start: "00:00", End: "23:59"},
			"tuesday":   {Start: "00:00", End: "23:59"},
			"wednesday": {Start: "00:00", End: "23:59"},
			"thursday":  {Start: "00:00", End: "23:59"},
			"friday":    {Start: "00:00", End: "23:59"},
			"saturday":  {Start: "00:00", End: "23:59"},
			"sunday":    {Start: "00:00", End: "23:59"},
		},
		ConcurrentCallLimit: models.DefaultConcurrentCallLimit,
		AllowedAgentIDs:     pq.StringArray{"agent_test_inbound"},
		IsActive:            true,
	}

	if err := tf.DB.DB.Create(org).Error; err != nil {
		return nil, fmt.Errorf("failed to create test organization: %w", err)
	}

	return org, nil
}

// CreateTestCampaign creates an active campaign for the organization
func (tf *TestFixtures) CreateTestCampaign(orgID uint) (*models.Campaign, error) {
	campaign := &models.Campaign{
		UUID:             uuid.New(),
		OrganizationID:   orgID,
		Name:             fmt.Sprintf("Appointment Reminders %d", rand.Intn(10000)),
		AgentID:          "agent_test_outbound",
		BasePrompt:       "Remind the patient about their upcoming appointment.",
		VoicemailMessage: "Please call us back to confirm your appointment.",
		ConversionKeys:   pq.StringArray{"appointment_confirmed"},
		IsActive:         true,
	}

	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}

	return campaign, nil
}

// CreateTestRun creates a run in the given status
func (tf *TestFixtures) CreateTestRun(orgID, campaignID uint, status models.RunStatus) (*models.Run, error) {
	run := &models.Run{
		UUID:           uuid.New(),
		OrganizationID: orgID,
		CampaignID:     campaignID,
		Name:           fmt.Sprintf("Test Run %d", rand.Intn(10000)),
		Status:         status,
	}

	if err := tf.DB.DB.Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to create test run: %w", err)
	}

	return run, nil
}

// CreateTestRows creates n pending rows with sequential sort indexes
func (tf *TestFixtures) CreateTestRows(run *models.Run, n int) ([]*models.RunRow, error) {
	rows := make([]*models.RunRow, 0, n)
	for i := 0; i < n; i++ {
		patientID := fmt.Sprintf("patient_%d", i+1)
		row := &models.RunRow{
			UUID:           uuid.New(),
			RunID:          run.ID,
			OrganizationID: run.OrganizationID,
			CampaignID:     run.CampaignID,
			PatientID:      &patientID,
			Variables: models.JSONMap{
				"phone":     fmt.Sprintf("+1415555%04d", i+1),
				"firstName": fmt.Sprintf("Patient%d", i+1),
			},
			Status:        models.RowStatusPending,
			SortIndex:     i,
			BatchEligible: true,
		}
		if err := tf.DB.DB.Create(row).Error; err != nil {
			return nil, fmt.Errorf("failed to create test row %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// CreateTestCall creates a pending outbound call linked to a row
func (tf *TestFixtures) CreateTestCall(run *models.Run, row *models.RunRow, providerCallID string) (*models.Call, error) {
	call := &models.Call{
		UUID:           uuid.New(),
		OrganizationID: run.OrganizationID,
		RunID:          &run.ID,
		RowID:          &row.ID,
		CampaignID:     &run.CampaignID,
		PatientID:      row.PatientID,
		AgentID:        "agent_test_outbound",
		Direction:      models.CallDirectionOutbound,
		Status:         models.CallStatusPending,
		ProviderCallID: providerCallID,
		ToNumber:       "+14155550001",
		FromNumber:     "+14155550000",
	}

	if err := tf.DB.DB.Create(call).Error; err != nil {
		return nil, fmt.Errorf("failed to create test call: %w", err)
	}

	return call, nil
}
