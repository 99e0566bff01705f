// Package businessflow contains the core business logic and use cases for run execution workflows
package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/app/dto"
	"github.com/NathanHayman/rivvi-beta-sub007/app/services"
	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/repository"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
	"github.com/google/uuid"
)

// RunFlow handles the run lifecycle business logic
type RunFlow interface {
	CreateRun(ctx context.Context, req *dto.CreateRunRequest, orgCtx OrgContext) (*dto.CreateRunResponse, error)
	GetRun(ctx context.Context, runUUID string, orgCtx OrgContext) (*dto.RunDTO, error)
	ListRuns(ctx context.Context, req *dto.ListRunsRequest, orgCtx OrgContext) (*dto.ListRunsResponse, error)
	StartRun(ctx context.Context, runUUID string, orgCtx OrgContext) (*dto.RunDTO, error)
	PauseRun(ctx context.Context, runUUID string, orgCtx OrgContext) (*dto.RunDTO, error)
	ResumeRun(ctx context.Context, runUUID string, orgCtx OrgContext) (*dto.RunDTO, error)

	// DispatchCycle executes one dispatch cycle for a run known (or believed)
	// to be running. Invoked by the scheduler and by webhook-driven re-checks;
	// concurrent invocations for the same run are tolerated.
	DispatchCycle(ctx context.Context, runID uint) (*dto.DispatchCycleResult, error)

	// FinalizeIfComplete transitions the run to completed when it is still
	// running and no rows remain pending or calling. Returns true when the
	// run was finalized by this call.
	FinalizeIfComplete(ctx context.Context, runID uint) (bool, error)

	// SweepStuckRows fails rows that have been in calling longer than the
	// timeout, releasing their concurrency slots. Returns the number swept.
	SweepStuckRows(ctx context.Context, olderThan time.Duration) (int, error)
}

// RunFlowImpl implements the run lifecycle controller
type RunFlowImpl struct {
	orgRepo      repository.OrganizationRepository
	campaignRepo repository.CampaignRepository
	runRepo      repository.RunRepository
	rowRepo      repository.RunRowRepository
	callRepo     repository.CallRepository
	provider     services.VoiceProvider
	publisher    services.EventPublisher
	metrics      RunMetricsFlow

	// interCallDelay spaces successive dispatches within one batch.
	interCallDelay time.Duration
}

// NewRunFlow creates a new run flow instance
func NewRunFlow(
	orgRepo repository.OrganizationRepository,
	campaignRepo repository.CampaignRepository,
	runRepo repository.RunRepository,
	rowRepo repository.RunRowRepository,
	callRepo repository.CallRepository,
	provider services.VoiceProvider,
	publisher services.EventPublisher,
	metrics RunMetricsFlow,
	interCallDelay time.Duration,
) RunFlow {
	return &RunFlowImpl{
		orgRepo:        orgRepo,
		campaignRepo:   campaignRepo,
		runRepo:        runRepo,
		rowRepo:        rowRepo,
		callRepo:       callRepo,
		provider:       provider,
		publisher:      publisher,
		metrics:        metrics,
		interCallDelay: interCallDelay,
	}
}

// AvailableSlots computes how many new calls may be dispatched right now.
// Never negative; zero means "do not dispatch this cycle". The limit is
// scoped per run: two running runs of the same organization each get their
// own budget.
func AvailableSlots(concurrentCallLimit, activeCallingCount int) int {
	if concurrentCallLimit <= 0 {
		concurrentCallLimit = models.DefaultConcurrentCallLimit
	}
	return max(0, concurrentCallLimit-activeCallingCount)
}

// CreateRun creates a new run for a campaign. Rows are ingested out of band;
// the run is created ready (or scheduled when a future start time is given).
func (s *RunFlowImpl) CreateRun(ctx context.Context, req *dto.CreateRunRequest, orgCtx OrgContext) (*dto.CreateRunResponse, error) {
	if req.Name == "" {
		return nil, NewBusinessError("RUN_VALIDATION_FAILED", "Run validation failed", ErrRunNameRequired)
	}

	campaign, err := s.campaignRepo.ByUUID(ctx, req.CampaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if !orgCtx.CanAccess(campaign.OrganizationID) {
		return nil, NewBusinessError("RUN_ACCESS_DENIED", "Run access denied", ErrRunAccessDenied)
	}
	if !campaign.IsActive {
		return nil, NewBusinessError("CAMPAIGN_INACTIVE", "Campaign is inactive", ErrCampaignInactive)
	}

	now := utils.UTCNow()
	status := models.RunStatusReady
	var metadata models.RunMetadata
	if req.ScheduledAt != nil {
		if req.ScheduledAt.Before(now) {
			return nil, NewBusinessError("RUN_VALIDATION_FAILED", "Run validation failed", ErrScheduleTimeInPast)
		}
		status = models.RunStatusScheduled
		metadata.Run.ScheduledTime = req.ScheduledAt
	}

	run := &models.Run{
		UUID:                   uuid.New(),
		OrganizationID:         campaign.OrganizationID,
		CampaignID:             campaign.ID,
		Name:                   req.Name,
		CustomPrompt:           req.CustomPrompt,
		CustomVoicemailMessage: req.CustomVoicemailMessage,
		Status:                 status,
		Metadata:               metadata,
		ScheduledAt:            req.ScheduledAt,
		CreatedAt:              now,
	}
	if err := run.BeforeCreate(); err != nil {
		return nil, NewBusinessError("RUN_CREATION_FAILED", "Run creation failed", err)
	}
	if err := s.runRepo.Save(ctx, run); err != nil {
		return nil, NewBusinessError("RUN_CREATION_FAILED", "Run creation failed", err)
	}

	run.Campaign = campaign
	runDTO := ToRunDTO(run)

	return &dto.CreateRunResponse{Run: runDTO}, nil
}

// GetRun returns one run scoped to the caller's organization
func (s *RunFlowImpl) GetRun(ctx context.Context, runUUID string, orgCtx OrgContext) (*dto.RunDTO, error) {
	run, err := getRun(ctx, s.runRepo, runUUID, orgCtx)
	if err != nil {
		return nil, NewBusinessError("RUN_LOOKUP_FAILED", "Failed to lookup run", err)
	}

	runDTO := ToRunDTO(run)
	return &runDTO, nil
}

// ListRuns returns the caller organization's runs, newest first
func (s *RunFlowImpl) ListRuns(ctx context.Context, req *dto.ListRunsRequest, orgCtx OrgContext) (*dto.ListRunsResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, NewBusinessError("RUN_LIST_VALIDATION_FAILED", "Run listing validation failed", ErrInvalidPage)
	}
	limit := req.Limit
	if limit == 0 {
		limit = 20
	}
	if limit < 1 || limit > 100 {
		return nil, NewBusinessError("RUN_LIST_VALIDATION_FAILED", "Run listing validation failed", ErrInvalidPageSize)
	}

	filter := models.RunFilter{OrganizationID: &orgCtx.OrganizationID}
	if req.Status != nil {
		status := models.RunStatus(*req.Status)
		filter.Status = &status
	}

	runs, err := s.runRepo.ByFilter(ctx, filter, "created_at DESC", limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("RUN_LIST_FAILED", "Failed to list runs", err)
	}
	total, err := s.runRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("RUN_LIST_FAILED", "Failed to count runs", err)
	}

	items := make([]dto.RunDTO, 0, len(runs))
	for _, run := range runs {
		items = append(items, ToRunDTO(run))
	}

	return &dto.ListRunsResponse{
		Runs:  items,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// StartRun moves a ready or scheduled run into running. Idempotent: starting
// an already-running run is a no-op success.
func (s *RunFlowImpl) StartRun(ctx context.Context, runUUID string, orgCtx OrgContext) (*dto.RunDTO, error) {
	run, err := getRun(ctx, s.runRepo, runUUID, orgCtx)
	if err != nil {
		return nil, NewBusinessError("RUN_LOOKUP_FAILED", "Failed to lookup run", err)
	}

	switch run.Status {
	case models.RunStatusRunning:
		runDTO := ToRunDTO(run)
		return &runDTO, nil
	case models.RunStatusReady, models.RunStatusScheduled:
		// fall through to the transition
	default:
		return nil, NewBusinessError("RUN_NOT_STARTABLE", fmt.Sprintf("Run cannot be started from status %s", run.Status), ErrRunNotStartable)
	}

	applied, err := s.runRepo.UpdateStatus(ctx, run.ID, run.Status, models.RunStatusRunning)
	if err != nil {
		return nil, NewBusinessError("RUN_START_FAILED", "Failed to start run", err)
	}
	if !applied {
		// Lost the race to another operator action; report current state.
		return s.GetRun(ctx, runUUID, orgCtx)
	}

	run.Status = models.RunStatusRunning
	if run.Metadata.Run.StartTime == nil {
		run.Metadata.Run.StartTime = utils.UTCNowPtr()
		if err := s.runRepo.UpdateMetadata(ctx, run.ID, run.Metadata); err != nil {
			return nil, NewBusinessError("RUN_START_FAILED", "Failed to record run start time", err)
		}
	}

	s.publishRunUpdated(ctx, run)

	runDTO := ToRunDTO(run)
	return &runDTO, nil
}

// PauseRun moves a running run into paused. Calls already in flight are not
// cancelled; pausing only stops new dispatch cycles from selecting rows.
// Idempotent: pausing a paused run is a no-op success.
func (s *RunFlowImpl) PauseRun(ctx context.Context, runUUID string, orgCtx OrgContext) (*dto.RunDTO, error) {
	run, err := getRun(ctx, s.runRepo, runUUID, orgCtx)
	if err != nil {
		return nil, NewBusinessError("RUN_LOOKUP_FAILED", "Failed to lookup run", err)
	}

	switch run.Status {
	case models.RunStatusPaused:
		runDTO := ToRunDTO(run)
		return &runDTO, nil
	case models.RunStatusRunning:
		// fall through to the transition
	default:
		return nil, NewBusinessError("RUN_NOT_PAUSABLE", fmt.Sprintf("Run cannot be paused from status %s", run.Status), ErrRunNotPausable)
	}

	applied, err := s.runRepo.UpdateStatus(ctx, run.ID, models.RunStatusRunning, models.RunStatusPaused)
	if err != nil {
		return nil, NewBusinessError("RUN_PAUSE_FAILED", "Failed to pause run", err)
	}
	if !applied {
		return s.GetRun(ctx, runUUID, orgCtx)
	}

	run.Status = models.RunStatusPaused
	run.Metadata.Run.LastPausedAt = utils.UTCNowPtr()
	if err := s.runRepo.UpdateMetadata(ctx, run.ID, run.Metadata); err != nil {
		return nil, NewBusinessError("RUN_PAUSE_FAILED", "Failed to record pause time", err)
	}

	s.publishRunUpdated(ctx, run)

	runDTO := ToRunDTO(run)
	return &runDTO, nil
}

// ResumeRun moves a paused run back into running. Idempotent: resuming a
// running run is a no-op success.
func (s *RunFlowImpl) ResumeRun(ctx context.Context, runUUID string, orgCtx OrgContext) (*dto.RunDTO, error) {
	run, err := getRun(ctx, s.runRepo, runUUID, orgCtx)
	if err != nil {
		return nil, NewBusinessError("RUN_LOOKUP_FAILED", "Failed to lookup run", err)
	}

	switch run.Status {
	case models.RunStatusRunning:
		runDTO := ToRunDTO(run)
		return &runDTO, nil
	case models.RunStatusPaused:
		// fall through to the transition
	default:
		return nil, NewBusinessError("RUN_NOT_RESUMABLE", fmt.Sprintf("Run cannot be resumed from status %s", run.Status), ErrRunNotResumable)
	}

	applied, err := s.runRepo.UpdateStatus(ctx, run.ID, models.RunStatusPaused, models.RunStatusRunning)
	if err != nil {
		return nil, NewBusinessError("RUN_RESUME_FAILED", "Failed to resume run", err)
	}
	if !applied {
		return s.GetRun(ctx, runUUID, orgCtx)
	}

	run.Status = models.RunStatusRunning
	s.publishRunUpdated(ctx, run)

	runDTO := ToRunDTO(run)
	return &runDTO, nil
}

// DispatchCycle executes one dispatch cycle for the run
func (s *RunFlowImpl) DispatchCycle(ctx context.Context, runID uint) (*dto.DispatchCycleResult, error) {
	// Re-fetch to guard against racing pause/stop requests.
	run, err := s.runRepo.ByID(ctx, runID)
	if err != nil {
		return nil, NewBusinessError("RUN_LOOKUP_FAILED", "Failed to lookup run", err)
	}
	if run == nil {
		return nil, NewBusinessError("RUN_NOT_FOUND", "Run not found", ErrRunNotFound)
	}
	if run.Status != models.RunStatusRunning {
		return &dto.DispatchCycleResult{Outcome: dto.CycleOutcomeNotRunning}, nil
	}

	// A run referencing a missing organization or campaign is a data
	// integrity failure with no safe partial-progress continuation.
	org, err := getOrganization(ctx, s.orgRepo, run.OrganizationID)
	if err != nil {
		return nil, NewBusinessError("RUN_INTEGRITY_VIOLATED", "Run references a missing organization", ErrRunIntegrityViolated)
	}
	campaign, err := getCampaign(ctx, s.campaignRepo, run.CampaignID)
	if err != nil {
		return nil, NewBusinessError("RUN_INTEGRITY_VIOLATED", "Run references a missing campaign", ErrRunIntegrityViolated)
	}

	hours := EvaluateOfficeHours(org, utils.UTCNow())
	run.Metadata.LastOfficeHoursCheck = &models.OfficeHoursCheck{
		WithinHours: hours.WithinHours,
		Reason:      hours.Reason,
		CheckedAt:   hours.CheckedAt,
	}
	// Best-effort persistence of the gate decision; a write failure must not
	// block dispatch.
	_ = s.runRepo.UpdateMetadata(ctx, run.ID, run.Metadata)

	if !hours.WithinHours {
		return &dto.DispatchCycleResult{Outcome: dto.CycleOutcomeOutsideOfficeHours}, nil
	}

	activeCalling, err := s.rowRepo.CountByStatuses(ctx, run.ID, models.RowStatusCalling)
	if err != nil {
		return nil, NewBusinessError("ROW_COUNT_FAILED", "Failed to count calling rows", err)
	}
	slots := AvailableSlots(org.EffectiveConcurrentCallLimit(), int(activeCalling))
	if slots == 0 {
		return &dto.DispatchCycleResult{Outcome: dto.CycleOutcomeAtLimit}, nil
	}

	rows, err := s.rowRepo.ListPendingForDispatch(ctx, run.ID, slots)
	if err != nil {
		return nil, NewBusinessError("ROW_SELECTION_FAILED", "Failed to select pending rows", err)
	}

	if len(rows) == 0 {
		remaining, err := s.rowRepo.CountByStatuses(ctx, run.ID, models.RowStatusPending, models.RowStatusCalling)
		if err != nil {
			return nil, NewBusinessError("ROW_COUNT_FAILED", "Failed to count remaining rows", err)
		}
		if remaining == 0 {
			if _, err := s.finalizeRun(ctx, run); err != nil {
				return nil, err
			}
			return &dto.DispatchCycleResult{Outcome: dto.CycleOutcomeCompleted}, nil
		}
		// All remaining rows are calling, awaiting webhooks.
		return &dto.DispatchCycleResult{Outcome: dto.CycleOutcomeWaiting}, nil
	}

	// Dispatch sequentially: parallel dispatch would overshoot the
	// concurrency limit under racing cycles and defeat the inter-call delay.
	result := &dto.DispatchCycleResult{Outcome: dto.CycleOutcomeDispatched}
	for i, row := range rows {
		if i > 0 && s.interCallDelay > 0 {
			time.Sleep(s.interCallDelay)
		}

		if err := s.dispatchRow(ctx, run, org, campaign, row); err != nil {
			if IsRowAlreadyTaken(err) {
				// Another cycle acquired the row first; not a failure.
				continue
			}
			result.Failed++
			result.Errors = append(result.Errors, dto.RowDispatchError{
				RowUUID: row.UUID.String(),
				Error:   err.Error(),
			})
			continue
		}
		result.Dispatched++
	}

	return result, nil
}

// SweepStuckRows fails rows stuck in calling beyond the timeout
func (s *RunFlowImpl) SweepStuckRows(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := utils.UTCNow().Add(-olderThan)

	rows, err := s.rowRepo.ListStuckCalling(ctx, cutoff, 100)
	if err != nil {
		return 0, NewBusinessError("STUCK_SWEEP_FAILED", "Failed to list stuck rows", err)
	}

	swept := 0
	affectedRuns := make(map[uint]struct{})
	for _, row := range rows {
		if err := s.rowRepo.MarkFailed(ctx, row.ID, "timed out awaiting provider callback"); err != nil {
			continue
		}
		swept++
		stuckRowsSweptTotal.Inc()
		dispatchFailuresTotal.WithLabelValues(dispatchFailureReasonTimeout).Inc()
		affectedRuns[row.RunID] = struct{}{}

		_, _ = s.metrics.ApplyDeltas(ctx, row.RunID,
			CounterDelta{Name: models.CounterCallsCalling, Delta: -1},
			CounterDelta{Name: models.CounterCallsFailed, Delta: 1},
		)
	}

	// Sweeping may have released the last in-flight row of a run.
	for runID := range affectedRuns {
		_, _ = s.FinalizeIfComplete(ctx, runID)
	}

	return swept, nil
}

// FinalizeIfComplete re-checks the run's remaining rows and finalizes it when
// nothing is left pending or in flight
func (s *RunFlowImpl) FinalizeIfComplete(ctx context.Context, runID uint) (bool, error) {
	run, err := s.runRepo.ByID(ctx, runID)
	if err != nil {
		return false, NewBusinessError("RUN_LOOKUP_FAILED", "Failed to lookup run", err)
	}
	if run == nil {
		return false, NewBusinessError("RUN_NOT_FOUND", "Run not found", ErrRunNotFound)
	}
	if run.Status != models.RunStatusRunning {
		return false, nil
	}

	remaining, err := s.rowRepo.CountByStatuses(ctx, runID, models.RowStatusPending, models.RowStatusCalling)
	if err != nil {
		return false, NewBusinessError("ROW_COUNT_FAILED", "Failed to count remaining rows", err)
	}
	if remaining > 0 {
		return false, nil
	}

	return s.finalizeRun(ctx, run)
}

// finalizeRun transitions a running run to completed, records end time and
// duration, and emits an org-scoped run-updated event. The conditional status
// update makes concurrent finalization attempts collapse into one.
func (s *RunFlowImpl) finalizeRun(ctx context.Context, run *models.Run) (bool, error) {
	applied, err := s.runRepo.UpdateStatus(ctx, run.ID, models.RunStatusRunning, models.RunStatusCompleted)
	if err != nil {
		return false, NewBusinessError("RUN_FINALIZE_FAILED", "Failed to finalize run", err)
	}
	if !applied {
		return false, nil
	}

	run.Status = models.RunStatusCompleted
	now := utils.UTCNow()
	run.Metadata.Run.EndTime = &now
	if run.Metadata.Run.StartTime != nil {
		run.Metadata.Run.DurationSeconds = int(now.Sub(*run.Metadata.Run.StartTime).Seconds())
	}
	if err := s.runRepo.UpdateMetadata(ctx, run.ID, run.Metadata); err != nil {
		return true, NewBusinessError("RUN_FINALIZE_FAILED", "Failed to persist run completion metadata", err)
	}

	runsCompletedTotal.Inc()
	s.publishRunUpdated(ctx, run)

	return true, nil
}

// publishRunUpdated emits an org-scoped run-updated event
func (s *RunFlowImpl) publishRunUpdated(ctx context.Context, run *models.Run) {
	orgUUID := ""
	if run.Organization != nil {
		orgUUID = run.Organization.UUID.String()
	} else if org, err := s.orgRepo.ByID(ctx, run.OrganizationID); err == nil && org != nil {
		orgUUID = org.UUID.String()
	}

	s.publisher.PublishOrgEvent(ctx, services.RunEvent{
		Type:    services.EventRunUpdated,
		OrgUUID: orgUUID,
		RunUUID: run.UUID.String(),
		Payload: map[string]any{
			"status": string(run.Status),
			"name":   run.Name,
		},
		Timestamp: utils.UTCNow(),
	})
}
