package businessflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/app/dto"
	"github.com/NathanHayman/rivvi-beta-sub007/app/services"
	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flowEnv wires the flows against in-memory repositories and mock provider
// and publisher. The inter-call delay is zero so tests run instantly.
type flowEnv struct {
	orgs      *memOrgRepo
	campaigns *memCampaignRepo
	runs      *memRunRepo
	rows      *memRowRepo
	calls     *memCallRepo
	provider  *services.MockVoiceProvider
	publisher *services.MockEventPublisher
	metrics   RunMetricsFlow
	runFlow   RunFlow
	webhooks  WebhookFlow
}

func newFlowEnv() *flowEnv {
	e := &flowEnv{
		orgs:      newMemOrgRepo(),
		campaigns: newMemCampaignRepo(),
		runs:      newMemRunRepo(),
		rows:      newMemRowRepo(),
		calls:     newMemCallRepo(),
		provider:  services.NewMockVoiceProvider(),
		publisher: services.NewMockEventPublisher(),
	}
	e.metrics = NewRunMetricsFlow(e.runs, e.publisher)
	e.runFlow = NewRunFlow(e.orgs, e.campaigns, e.runs, e.rows, e.calls, e.provider, e.publisher, e.metrics, 0)
	e.webhooks = NewWebhookFlow(e.orgs, e.campaigns, e.runs, e.rows, e.calls, e.metrics, e.publisher, e.runFlow)
	return e
}

func (e *flowEnv) seedOrg(concurrentCallLimit int) *models.Organization {
	return e.orgs.add(&models.Organization{
		UUID:                uuid.New(),
		Name:                "Lakeside Clinic",
		Phone:               "+14155550100",
		ConcurrentCallLimit: concurrentCallLimit,
		AllowedAgentIDs:     []string{"agent_inbound_default"},
		IsActive:            true,
	})
}

func (e *flowEnv) seedCampaign(org *models.Organization) *models.Campaign {
	return e.campaigns.add(&models.Campaign{
		UUID:             uuid.New(),
		OrganizationID:   org.ID,
		Name:             "Appointment Reminders",
		AgentID:          "agent_outbound",
		BasePrompt:       "Remind the patient about their appointment.",
		VoicemailMessage: "Please call us back.",
		IsActive:         true,
	})
}

func (e *flowEnv) seedRun(org *models.Organization, campaign *models.Campaign, status models.RunStatus) *models.Run {
	run := &models.Run{
		UUID:           uuid.New(),
		OrganizationID: org.ID,
		CampaignID:     campaign.ID,
		Name:           "Monday Reminders",
		Status:         status,
		CreatedAt:      utils.UTCNow(),
	}
	if status == models.RunStatusRunning {
		run.Metadata.Run.StartTime = utils.UTCNowPtr()
	}
	return e.runs.add(run)
}

func (e *flowEnv) seedRow(run *models.Run, sortIndex int, phone string) *models.RunRow {
	variables := models.JSONMap{"firstName": "Alex"}
	if phone != "" {
		variables["phone"] = phone
	}
	return e.rows.add(&models.RunRow{
		UUID:           uuid.New(),
		RunID:          run.ID,
		OrganizationID: run.OrganizationID,
		CampaignID:     run.CampaignID,
		Variables:      variables,
		Status:         models.RowStatusPending,
		SortIndex:      sortIndex,
		BatchEligible:  true,
		CreatedAt:      utils.UTCNow(),
	})
}

func closedAllWeek() models.OfficeHours {
	hours := models.OfficeHours{}
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		hours[day] = models.OfficeHoursWindow{Start: "00:00", End: "00:00"}
	}
	return hours
}

func TestAvailableSlots(t *testing.T) {
	cases := []struct {
		name     string
		limit    int
		active   int
		expected int
	}{
		{"full budget when idle", 5, 0, 5},
		{"partial budget", 5, 3, 2},
		{"exactly at limit", 5, 5, 0},
		{"over limit clamps to zero", 5, 8, 0},
		{"zero limit falls back to default", 0, 0, models.DefaultConcurrentCallLimit},
		{"negative limit falls back to default", -1, 19, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, AvailableSlots(tc.limit, tc.active))
		})
	}
}

func TestCreateRun(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(5)
	campaign := e.seedCampaign(org)
	orgCtx := OrgContext{OrganizationID: org.ID}

	t.Run("creates a ready run", func(t *testing.T) {
		resp, err := e.runFlow.CreateRun(ctx, &dto.CreateRunRequest{
			CampaignUUID: campaign.UUID.String(),
			Name:         "Morning Batch",
		}, orgCtx)
		require.NoError(t, err)
		assert.Equal(t, string(models.RunStatusReady), resp.Run.Status)
		assert.Equal(t, campaign.UUID.String(), resp.Run.CampaignUUID)

		stored, err := e.runs.ByUUID(ctx, resp.Run.UUID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, org.ID, stored.OrganizationID)
	})

	t.Run("future schedule creates a scheduled run", func(t *testing.T) {
		scheduledAt := utils.UTCNow().Add(2 * time.Hour)
		resp, err := e.runFlow.CreateRun(ctx, &dto.CreateRunRequest{
			CampaignUUID: campaign.UUID.String(),
			Name:         "Evening Batch",
			ScheduledAt:  &scheduledAt,
		}, orgCtx)
		require.NoError(t, err)
		assert.Equal(t, string(models.RunStatusScheduled), resp.Run.Status)
		require.NotNil(t, resp.Run.Metadata.Run.ScheduledTime)
		assert.Equal(t, scheduledAt, *resp.Run.Metadata.Run.ScheduledTime)
	})

	t.Run("past schedule is rejected", func(t *testing.T) {
		scheduledAt := utils.UTCNow().Add(-time.Hour)
		_, err := e.runFlow.CreateRun(ctx, &dto.CreateRunRequest{
			CampaignUUID: campaign.UUID.String(),
			Name:         "Late Batch",
			ScheduledAt:  &scheduledAt,
		}, orgCtx)
		assert.True(t, IsScheduleTimeInPast(err))
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		_, err := e.runFlow.CreateRun(ctx, &dto.CreateRunRequest{CampaignUUID: campaign.UUID.String()}, orgCtx)
		assert.True(t, IsRunNameRequired(err))
	})

	t.Run("unknown campaign", func(t *testing.T) {
		_, err := e.runFlow.CreateRun(ctx, &dto.CreateRunRequest{
			CampaignUUID: uuid.New().String(),
			Name:         "Orphan Batch",
		}, orgCtx)
		assert.True(t, IsCampaignNotFound(err))
	})

	t.Run("inactive campaign", func(t *testing.T) {
		inactive := e.seedCampaign(org)
		inactive.IsActive = false
		_, err := e.runFlow.CreateRun(ctx, &dto.CreateRunRequest{
			CampaignUUID: inactive.UUID.String(),
			Name:         "Dormant Batch",
		}, orgCtx)
		assert.True(t, IsCampaignInactive(err))
	})

	t.Run("cross-organization access is denied", func(t *testing.T) {
		_, err := e.runFlow.CreateRun(ctx, &dto.CreateRunRequest{
			CampaignUUID: campaign.UUID.String(),
			Name:         "Foreign Batch",
		}, OrgContext{OrganizationID: org.ID + 100})
		assert.True(t, IsRunAccessDenied(err))
	})

	t.Run("super admin can act across organizations", func(t *testing.T) {
		_, err := e.runFlow.CreateRun(ctx, &dto.CreateRunRequest{
			CampaignUUID: campaign.UUID.String(),
			Name:         "Admin Batch",
		}, OrgContext{OrganizationID: org.ID + 100, IsSuperAdmin: true})
		assert.NoError(t, err)
	})
}

func TestStartRun(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(5)
	campaign := e.seedCampaign(org)
	orgCtx := OrgContext{OrganizationID: org.ID}

	run := e.seedRun(org, campaign, models.RunStatusReady)

	result, err := e.runFlow.StartRun(ctx, run.UUID.String(), orgCtx)
	require.NoError(t, err)
	assert.Equal(t, string(models.RunStatusRunning), result.Status)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	require.NotNil(t, run.Metadata.Run.StartTime)

	orgEvents := e.publisher.OrgEvents()
	require.Len(t, orgEvents, 1)
	assert.Equal(t, services.EventRunUpdated, orgEvents[0].Type)
	assert.Equal(t, "running", orgEvents[0].Payload["status"])

	// Starting again is a no-op success.
	result, err = e.runFlow.StartRun(ctx, run.UUID.String(), orgCtx)
	require.NoError(t, err)
	assert.Equal(t, string(models.RunStatusRunning), result.Status)
	assert.Len(t, e.publisher.OrgEvents(), 1)

	draft := e.seedRun(org, campaign, models.RunStatusDraft)
	_, err = e.runFlow.StartRun(ctx, draft.UUID.String(), orgCtx)
	assert.True(t, IsRunNotStartable(err))

	_, err = e.runFlow.StartRun(ctx, uuid.New().String(), orgCtx)
	assert.True(t, IsRunNotFound(err))
}

func TestPauseAndResumeRun(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(5)
	campaign := e.seedCampaign(org)
	orgCtx := OrgContext{OrganizationID: org.ID}

	run := e.seedRun(org, campaign, models.RunStatusRunning)

	result, err := e.runFlow.PauseRun(ctx, run.UUID.String(), orgCtx)
	require.NoError(t, err)
	assert.Equal(t, string(models.RunStatusPaused), result.Status)
	assert.NotNil(t, run.Metadata.Run.LastPausedAt)

	// Pausing a paused run is a no-op success.
	result, err = e.runFlow.PauseRun(ctx, run.UUID.String(), orgCtx)
	require.NoError(t, err)
	assert.Equal(t, string(models.RunStatusPaused), result.Status)

	result, err = e.runFlow.ResumeRun(ctx, run.UUID.String(), orgCtx)
	require.NoError(t, err)
	assert.Equal(t, string(models.RunStatusRunning), result.Status)

	// Resuming a running run is a no-op success.
	result, err = e.runFlow.ResumeRun(ctx, run.UUID.String(), orgCtx)
	require.NoError(t, err)
	assert.Equal(t, string(models.RunStatusRunning), result.Status)

	ready := e.seedRun(org, campaign, models.RunStatusReady)
	_, err = e.runFlow.PauseRun(ctx, ready.UUID.String(), orgCtx)
	assert.True(t, IsRunNotPausable(err))
	_, err = e.runFlow.ResumeRun(ctx, ready.UUID.String(), orgCtx)
	assert.True(t, IsRunNotResumable(err))
}

func TestDispatchCycleDispatchesUpToAvailableSlots(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(3)
	campaign := e.seedCampaign(org)
	run := e.seedRun(org, campaign, models.RunStatusRunning)
	for i := 0; i < 5; i++ {
		e.seedRow(run, i, fmt.Sprintf("+1415555%04d", i+1))
	}

	result, err := e.runFlow.DispatchCycle(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.CycleOutcomeDispatched, result.Outcome)
	assert.Equal(t, 3, result.Dispatched)
	assert.Equal(t, 0, result.Failed)

	calling, err := e.rows.CountByStatuses(ctx, run.ID, models.RowStatusCalling)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calling)
	pending, err := e.rows.CountByStatuses(ctx, run.ID, models.RowStatusPending)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)

	// Lowest sort indexes are selected first.
	requests := e.provider.Requests()
	require.Len(t, requests, 3)
	for i, req := range requests {
		assert.Equal(t, fmt.Sprintf("+1415555%04d", i+1), req.ToNumber)
		assert.Equal(t, org.Phone, req.FromNumber)
		assert.Equal(t, campaign.AgentID, req.OverrideAgentID)
		assert.Equal(t, run.UUID.String(), req.Metadata["runId"])
		assert.Equal(t, org.UUID.String(), req.Metadata["orgId"])
		assert.Equal(t, campaign.UUID.String(), req.Metadata["campaignId"])
		assert.Equal(t, campaign.BasePrompt, req.DynamicVariables["prompt"])
	}

	count, err := e.calls.Count(ctx, models.CallFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	assert.Equal(t, 3, run.Metadata.Calls.Calling)
	require.NotNil(t, run.Metadata.LastOfficeHoursCheck)
	assert.True(t, run.Metadata.LastOfficeHoursCheck.WithinHours)

	started := 0
	for _, event := range e.publisher.RunEvents() {
		if event.Type == services.EventCallStarted {
			started++
			assert.Equal(t, run.UUID.String(), event.RunUUID)
		}
	}
	assert.Equal(t, 3, started)
}

func TestDispatchCycleRunOverridesWinOverCampaignText(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(1)
	campaign := e.seedCampaign(org)
	run := e.seedRun(org, campaign, models.RunStatusRunning)
	run.CustomPrompt = utils.ToPtr("Use the custom script.")
	run.CustomVoicemailMessage = utils.ToPtr("Custom voicemail.")
	e.seedRow(run, 0, "+14155550001")

	_, err := e.runFlow.DispatchCycle(ctx, run.ID)
	require.NoError(t, err)

	requests := e.provider.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "Use the custom script.", requests[0].DynamicVariables["prompt"])
	assert.Equal(t, "Custom voicemail.", requests[0].DynamicVariables["voicemail_message"])
}

func TestDispatchCycleNotRunning(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(3)
	campaign := e.seedCampaign(org)
	run := e.seedRun(org, campaign, models.RunStatusPaused)
	e.seedRow(run, 0, "+14155550001")

	result, err := e.runFlow.DispatchCycle(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.CycleOutcomeNotRunning, result.Outcome)
	assert.Empty(t, e.provider.Requests())

	_, err = e.runFlow.DispatchCycle(ctx, 9999)
	assert.True(t, IsRunNotFound(err))
}

func TestDispatchCycleOutsideOfficeHours(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(3)
	org.Timezone = "UTC"
	org.OfficeHours = closedAllWeek()
	campaign := e.seedCampaign(org)
	run := e.seedRun(org, campaign, models.RunStatusRunning)
	e.seedRow(run, 0, "+14155550001")

	result, err := e.runFlow.DispatchCycle(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.CycleOutcomeOutsideOfficeHours, result.Outcome)
	assert.Empty(t, e.provider.Requests())

	// The gate decision is persisted on the run metadata.
	require.NotNil(t, run.Metadata.LastOfficeHoursCheck)
	assert.False(t, run.Metadata.LastOfficeHoursCheck.WithinHours)
	assert.Contains(t, run.Metadata.LastOfficeHoursCheck.Reason, "closed all day")
}

func TestDispatchCycleAtLimit(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(2)
	campaign := e.seedCampaign(org)
	run := e.seedRun(org, campaign, models.RunStatusRunning)
	for i := 0; i < 2; i++ {
		row := e.seedRow(run, i, "+14155550001")
		row.Status = models.RowStatusCalling
	}
	e.seedRow(run, 2, "+14155550003")

	result, err := e.runFlow.DispatchCycle(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.CycleOutcomeAtLimit, result.Outcome)
	assert.Empty(t, e.provider.Requests())
}

func TestDispatchCycleWaitingOnInFlightCalls(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(5)
	campaign := e.seedCampaign(org)
	run := e.seedRun(org, campaign, models.RunStatusRunning)
	row := e.seedRow(run, 0, "+14155550001")
	row.Status = models.RowStatusCalling

	result, err := e.runFlow.DispatchCycle(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.CycleOutcomeWaiting, result.Outcome)
	assert.Equal(t, models.RunStatusRunning, run.Status)
}

func TestDispatchCycleFinalizesWhenNoRowsRemain(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(5)
	campaign := e.seedCampaign(org)
	run := e.seedRun(org, campaign, models.RunStatusRunning)
	row := e.seedRow(run, 0, "+14155550001")
	row.Status = models.RowStatusCompleted

	result, err := e.runFlow.DispatchCycle(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.CycleOutcomeCompleted, result.Outcome)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	require.NotNil(t, run.Metadata.Run.EndTime)
	assert.GreaterOrEqual(t, run.Metadata.Run.DurationSeconds, 0)

	var finalized bool
	for _, event := range e.publisher.OrgEvents() {
		if event.Type == services.EventRunUpdated && event.Payload["status"] == "completed" {
			finalized = true
		}
	}
	assert.True(t, finalized)
}

func TestDispatchCycleRowWithoutPhoneFails(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(5)
	campaign := e.seedCampaign(org)
	run := e.seedRun(org, campaign, models.RunStatusRunning)
	good := e.seedRow(run, 0, "+14155550001")
	bad := e.seedRow(run, 1, "")

	result, err := e.runFlow.DispatchCycle(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.CycleOutcomeDispatched, result.Outcome)
	assert.Equal(t, 1, result.Dispatched)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, bad.UUID.String(), result.Errors[0].RowUUID)

	assert.Equal(t, models.RowStatusCalling, good.Status)
	assert.Equal(t, models.RowStatusFailed, bad.Status)
	require.NotNil(t, bad.Error)
	assert.Equal(t, ErrNoPhoneNumber.Error(), *bad.Error)
	assert.Equal(t, 1, run.Metadata.Calls.Failed)
}

func TestDispatchCycleProviderFailureMarksRowFailed(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(5)
	campaign := e.seedCampaign(org)
	run := e.seedRun(org, campaign, models.RunStatusRunning)
	row := e.seedRow(run, 0, "+14155550001")
	e.provider.FailFor["+14155550001"] = errors.New("provider unavailable")

	result, err := e.runFlow.DispatchCycle(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Dispatched)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, models.RowStatusFailed, row.Status)
	require.NotNil(t, row.Error)
	assert.Equal(t, "provider unavailable", *row.Error)
	assert.Equal(t, 1, run.Metadata.Calls.Failed)

	// No call record is persisted for a failed dispatch.
	count, err := e.calls.Count(ctx, models.CallFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestDispatchRowAlreadyTakenIsBenign(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(5)
	campaign := e.seedCampaign(org)
	run := e.seedRun(org, campaign, models.RunStatusRunning)
	row := e.seedRow(run, 0, "+14155550001")
	row.Status = models.RowStatusCalling

	impl := e.runFlow.(*RunFlowImpl)
	err := impl.dispatchRow(ctx, run, org, campaign, row)
	assert.True(t, IsRowAlreadyTaken(err))
	assert.Empty(t, e.provider.Requests())
}

func TestSweepStuckRows(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(5)
	campaign := e.seedCampaign(org)
	run := e.seedRun(org, campaign, models.RunStatusRunning)
	run.Metadata.Calls.Calling = 2

	stale := utils.UTCNow().Add(-10 * time.Minute)
	stuck := e.seedRow(run, 0, "+14155550001")
	stuck.Status = models.RowStatusCalling
	stuck.UpdatedAt = &stale
	fresh := e.seedRow(run, 1, "+14155550002")
	fresh.Status = models.RowStatusCalling
	fresh.UpdatedAt = utils.UTCNowPtr()

	swept, err := e.runFlow.SweepStuckRows(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	assert.Equal(t, models.RowStatusFailed, stuck.Status)
	require.NotNil(t, stuck.Error)
	assert.Equal(t, "timed out awaiting provider callback", *stuck.Error)
	assert.Equal(t, models.RowStatusCalling, fresh.Status)

	assert.Equal(t, 1, run.Metadata.Calls.Calling)
	assert.Equal(t, 1, run.Metadata.Calls.Failed)

	// One row is still in flight, so the run stays running.
	assert.Equal(t, models.RunStatusRunning, run.Status)

	// Sweeping the last in-flight row finalizes the run.
	fresh.UpdatedAt = &stale
	swept, err = e.runFlow.SweepStuckRows(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
}

func TestFinalizeIfComplete(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(5)
	campaign := e.seedCampaign(org)

	run := e.seedRun(org, campaign, models.RunStatusRunning)
	pending := e.seedRow(run, 0, "+14155550001")

	finalized, err := e.runFlow.FinalizeIfComplete(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, finalized)
	assert.Equal(t, models.RunStatusRunning, run.Status)

	pending.Status = models.RowStatusCompleted
	finalized, err = e.runFlow.FinalizeIfComplete(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, finalized)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	// Already completed runs are never re-finalized.
	finalized, err = e.runFlow.FinalizeIfComplete(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, finalized)
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	e := newFlowEnv()
	org := e.seedOrg(5)
	campaign := e.seedCampaign(org)
	orgCtx := OrgContext{OrganizationID: org.ID}

	e.seedRun(org, campaign, models.RunStatusReady)
	e.seedRun(org, campaign, models.RunStatusRunning)
	e.seedRun(org, campaign, models.RunStatusCompleted)

	resp, err := e.runFlow.ListRuns(ctx, &dto.ListRunsRequest{}, orgCtx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.Total)
	assert.Len(t, resp.Runs, 3)
	assert.Equal(t, 1, resp.Page)

	status := "running"
	resp, err = e.runFlow.ListRuns(ctx, &dto.ListRunsRequest{Status: &status}, orgCtx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp.Total)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "running", resp.Runs[0].Status)

	_, err = e.runFlow.ListRuns(ctx, &dto.ListRunsRequest{Page: -1}, orgCtx)
	assert.True(t, IsInvalidPage(err))
	_, err = e.runFlow.ListRuns(ctx, &dto.ListRunsRequest{Limit: 500}, orgCtx)
	assert.True(t, IsInvalidPageSize(err))
}
