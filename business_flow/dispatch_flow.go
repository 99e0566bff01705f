package businessflow

import (
	"context"
	"fmt"

	"github.com/NathanHayman/rivvi-beta-sub007/app/services"
	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
	"github.com/google/uuid"
)

// dispatchRow dispatches one pending row: acquires it with a conditional
// update, invokes the voice provider, and persists the call record. A nil
// return means the row is now calling with a provider call id recorded.
// Returned errors are per-row data for the cycle summary, except
// ErrRowAlreadyTaken which signals a benign acquisition race.
func (s *RunFlowImpl) dispatchRow(ctx context.Context, run *models.Run, org *models.Organization, campaign *models.Campaign, row *models.RunRow) error {
	phone, ok := row.PhoneNumber()
	if !ok {
		dispatchFailuresTotal.WithLabelValues(dispatchFailureReasonNoPhone).Inc()
		if err := s.rowRepo.MarkFailed(ctx, row.ID, ErrNoPhoneNumber.Error()); err != nil {
			return fmt.Errorf("failed to mark row without phone as failed: %w", err)
		}
		_, _ = s.metrics.ApplyDeltas(ctx, run.ID, CounterDelta{Name: models.CounterCallsFailed, Delta: 1})
		return ErrNoPhoneNumber
	}

	// Acquire before calling the provider so a concurrent cycle can never
	// double-dispatch the same row. Zero rows affected means another cycle
	// already took it.
	acquired, err := s.rowRepo.AcquireForDispatch(ctx, row.ID)
	if err != nil {
		return fmt.Errorf("failed to acquire row for dispatch: %w", err)
	}
	if !acquired {
		return ErrRowAlreadyTaken
	}

	req := services.CreatePhoneCallRequest{
		ToNumber:         phone,
		FromNumber:       org.Phone,
		OverrideAgentID:  campaign.AgentID,
		DynamicVariables: buildDynamicVariables(run, campaign, row),
		Metadata:         correlationMetadata(run, org, campaign, row),
	}

	resp, err := s.provider.CreatePhoneCall(ctx, req)
	if err != nil {
		dispatchFailuresTotal.WithLabelValues(dispatchFailureReasonProvider).Inc()
		if markErr := s.rowRepo.MarkFailed(ctx, row.ID, err.Error()); markErr != nil {
			return fmt.Errorf("provider dispatch failed (%v) and row could not be marked failed: %w", err, markErr)
		}
		_, _ = s.metrics.ApplyDeltas(ctx, run.ID, CounterDelta{Name: models.CounterCallsFailed, Delta: 1})
		return err
	}

	if err := s.rowRepo.MarkDispatched(ctx, row.ID, resp.CallID); err != nil {
		return fmt.Errorf("failed to record provider call id on row: %w", err)
	}

	call := &models.Call{
		UUID:           uuid.New(),
		OrganizationID: org.ID,
		RunID:          utils.ToPtr(run.ID),
		RowID:          utils.ToPtr(row.ID),
		CampaignID:     utils.ToPtr(campaign.ID),
		PatientID:      row.PatientID,
		AgentID:        campaign.AgentID,
		Direction:      models.CallDirectionOutbound,
		Status:         models.CallStatusPending,
		ProviderCallID: resp.CallID,
		ToNumber:       phone,
		FromNumber:     org.Phone,
		Metadata:       models.JSONMap(correlationMetadata(run, org, campaign, row)),
		CreatedAt:      utils.UTCNow(),
	}
	if err := s.callRepo.Save(ctx, call); err != nil {
		return fmt.Errorf("failed to persist call record for provider call %s: %w", resp.CallID, err)
	}

	callsDispatchedTotal.Inc()
	_, _ = s.metrics.ApplyDeltas(ctx, run.ID, CounterDelta{Name: models.CounterCallsCalling, Delta: 1})

	s.publisher.PublishRunEvent(ctx, services.RunEvent{
		Type:    services.EventCallStarted,
		OrgUUID: org.UUID.String(),
		RunUUID: run.UUID.String(),
		Payload: map[string]any{
			"row_uuid":         row.UUID.String(),
			"provider_call_id": resp.CallID,
			"to_number":        phone,
		},
		Timestamp: utils.UTCNow(),
	})

	return nil
}

// buildDynamicVariables merges the row's templating variables with the
// effective prompt and voicemail text. Run-level overrides win over the
// campaign's base text.
func buildDynamicVariables(run *models.Run, campaign *models.Campaign, row *models.RunRow) map[string]any {
	source := row.Variables
	if len(row.ProcessedVariables) > 0 {
		source = row.ProcessedVariables
	}

	vars := make(map[string]any, len(source)+2)
	for k, v := range source {
		vars[k] = v
	}

	prompt := campaign.BasePrompt
	if run.CustomPrompt != nil && *run.CustomPrompt != "" {
		prompt = *run.CustomPrompt
	}
	if prompt != "" {
		vars["prompt"] = prompt
	}

	voicemail := campaign.VoicemailMessage
	if run.CustomVoicemailMessage != nil && *run.CustomVoicemailMessage != "" {
		voicemail = *run.CustomVoicemailMessage
	}
	if voicemail != "" {
		vars["voicemail_message"] = voicemail
	}

	return vars
}

// correlationMetadata embeds the identifiers the post-call webhook needs to
// map the provider call back to our run and row.
func correlationMetadata(run *models.Run, org *models.Organization, campaign *models.Campaign, row *models.RunRow) map[string]any {
	metadata := map[string]any{
		"runId":      run.UUID.String(),
		"rowId":      row.UUID.String(),
		"orgId":      org.UUID.String(),
		"campaignId": campaign.UUID.String(),
	}
	if row.PatientID != nil {
		metadata["patientId"] = *row.PatientID
	}
	return metadata
}
