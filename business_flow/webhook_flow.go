package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/app/dto"
	"github.com/NathanHayman/rivvi-beta-sub007/app/services"
	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/repository"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
)

// Provider webhook event and call type values we act on
const (
	webhookEventCallAnalyzed = "call_analyzed"
	webhookCallTypePhoneCall = "phone_call"
)

// analysisKeyPatientReached marks the call as having reached a live patient.
const analysisKeyPatientReached = "patient_reached"

// WebhookFlow handles asynchronous callbacks from the voice provider
type WebhookFlow interface {
	// HandlePostCall reconciles a terminal call event into call, row and run
	// state. Redelivery for an already-terminal call is a safe no-op.
	HandlePostCall(ctx context.Context, req *dto.PostCallWebhookRequest) (*dto.PostCallWebhookResponse, error)

	// HandleInboundCall returns a synchronous routing decision for a live
	// inbound call. Always returns a structured response; missing fields are
	// substituted with defaults and logged, never rejected.
	HandleInboundCall(ctx context.Context, orgUUID string, req *dto.InboundCallWebhookRequest) (*dto.InboundCallWebhookResponse, error)
}

// WebhookFlowImpl implements the webhook reconciler
type WebhookFlowImpl struct {
	orgRepo      repository.OrganizationRepository
	campaignRepo repository.CampaignRepository
	runRepo      repository.RunRepository
	rowRepo      repository.RunRowRepository
	callRepo     repository.CallRepository
	metrics      RunMetricsFlow
	publisher    services.EventPublisher
	runFlow      RunFlow
}

// NewWebhookFlow creates a new webhook flow instance
func NewWebhookFlow(
	orgRepo repository.OrganizationRepository,
	campaignRepo repository.CampaignRepository,
	runRepo repository.RunRepository,
	rowRepo repository.RunRowRepository,
	callRepo repository.CallRepository,
	metrics RunMetricsFlow,
	publisher services.EventPublisher,
	runFlow RunFlow,
) WebhookFlow {
	return &WebhookFlowImpl{
		orgRepo:      orgRepo,
		campaignRepo: campaignRepo,
		runRepo:      runRepo,
		rowRepo:      rowRepo,
		callRepo:     callRepo,
		metrics:      metrics,
		publisher:    publisher,
		runFlow:      runFlow,
	}
}

// HandlePostCall applies a terminal provider call event. Updates are ordered
// most-important-first (call, then row, then counters) so a crash partway
// through still leaves the row terminal rather than forever calling.
func (s *WebhookFlowImpl) HandlePostCall(ctx context.Context, req *dto.PostCallWebhookRequest) (*dto.PostCallWebhookResponse, error) {
	if req.Event != webhookEventCallAnalyzed || req.Call.CallType != webhookCallTypePhoneCall {
		webhooksProcessedTotal.WithLabelValues(dto.WebhookStatusIgnored).Inc()
		return &dto.PostCallWebhookResponse{Status: dto.WebhookStatusIgnored}, nil
	}

	if req.Call.CallID == "" {
		webhooksProcessedTotal.WithLabelValues(dto.WebhookStatusError).Inc()
		return nil, NewBusinessError("WEBHOOK_VALIDATION_FAILED", "Webhook payload is missing call id", ErrCallIDRequired)
	}

	call, err := s.callRepo.ByProviderCallID(ctx, req.Call.CallID)
	if err != nil {
		webhooksProcessedTotal.WithLabelValues(dto.WebhookStatusError).Inc()
		return nil, NewBusinessError("CALL_LOOKUP_FAILED", "Failed to lookup call", err)
	}
	if call == nil {
		webhooksProcessedTotal.WithLabelValues(dto.WebhookStatusError).Inc()
		return nil, NewBusinessError("CALL_NOT_FOUND", "Call not found", ErrCallNotFound)
	}

	finalStatus := mapProviderCallStatus(&req.Call)
	s.applyCallUpdate(call, &req.Call, finalStatus)
	if err := s.callRepo.Update(ctx, *call); err != nil {
		webhooksProcessedTotal.WithLabelValues(dto.WebhookStatusError).Inc()
		return nil, NewBusinessError("CALL_UPDATE_FAILED", "Failed to update call", err)
	}

	// Calls without run/row correlation are standalone (e.g. inbound or test
	// calls); only the call record is updated.
	if call.RunID == nil || call.RowID == nil {
		webhooksProcessedTotal.WithLabelValues(dto.WebhookStatusSuccess).Inc()
		return &dto.PostCallWebhookResponse{Status: dto.WebhookStatusSuccess}, nil
	}

	analysis := models.JSONMap(req.Call.Analysis)
	postCallData := models.JSONMap{
		"call_status":   string(finalStatus),
		"transcript":    req.Call.Transcript,
		"recording_url": req.Call.RecordingURL,
		"duration_ms":   req.Call.DurationMs,
	}

	applied, err := s.rowRepo.CompleteFromWebhook(ctx, *call.RowID, analysis, postCallData)
	if err != nil {
		webhooksProcessedTotal.WithLabelValues(dto.WebhookStatusError).Inc()
		return nil, NewBusinessError("ROW_UPDATE_FAILED", "Failed to update row", err)
	}
	if !applied {
		// Redelivery: the row is already terminal, counters stay untouched.
		webhooksProcessedTotal.WithLabelValues(dto.WebhookStatusIgnored).Inc()
		return &dto.PostCallWebhookResponse{Status: dto.WebhookStatusSuccess}, nil
	}

	deltas := s.counterDeltas(ctx, call, finalStatus, analysis)
	if _, err := s.metrics.ApplyDeltas(ctx, *call.RunID, deltas...); err != nil {
		log.Printf("webhook: counter update for run %d failed: %v", *call.RunID, err)
	}

	s.publishCallCompleted(ctx, call, finalStatus)

	if _, err := s.runFlow.FinalizeIfComplete(ctx, *call.RunID); err != nil {
		log.Printf("webhook: completion re-check for run %d failed: %v", *call.RunID, err)
	}

	webhooksProcessedTotal.WithLabelValues(dto.WebhookStatusSuccess).Inc()
	return &dto.PostCallWebhookResponse{Status: dto.WebhookStatusSuccess}, nil
}

// mapProviderCallStatus maps the provider's terminal call report to our call
// status. Failed wins over the detection flags; voicemail over no-answer.
func mapProviderCallStatus(call *dto.RetellCall) models.CallStatus {
	switch {
	case call.CallStatus == "failed" || call.CallStatus == "error":
		return models.CallStatusFailed
	case call.Metrics.VoicemailDetected:
		return models.CallStatusVoicemail
	case call.Metrics.NoAnswer:
		return models.CallStatusNoAnswer
	default:
		return models.CallStatusCompleted
	}
}

// applyCallUpdate copies the provider's terminal call fields onto our record
func (s *WebhookFlowImpl) applyCallUpdate(call *models.Call, provider *dto.RetellCall, finalStatus models.CallStatus) {
	call.Status = finalStatus
	if provider.Transcript != "" {
		call.Transcript = utils.ToPtr(provider.Transcript)
	}
	if provider.RecordingURL != "" {
		call.RecordingURL = utils.ToPtr(provider.RecordingURL)
	}
	if len(provider.Analysis) > 0 {
		call.Analysis = models.JSONMap(provider.Analysis)
	}
	if provider.StartTimestamp > 0 {
		call.StartedAt = utils.ToPtr(time.UnixMilli(provider.StartTimestamp).UTC())
	}
	if provider.EndTimestamp > 0 {
		call.EndedAt = utils.ToPtr(time.UnixMilli(provider.EndTimestamp).UTC())
	}
	switch {
	case provider.DurationMs > 0:
		call.DurationSeconds = int(provider.DurationMs / 1000)
	case call.StartedAt != nil && call.EndedAt != nil:
		call.DurationSeconds = int(call.EndedAt.Sub(*call.StartedAt).Seconds())
	}
	call.UpdatedAt = utils.UTCNowPtr()
}

// counterDeltas derives the run counter adjustments for one reconciled call:
// completed always, calling released, plus exactly one outcome counter, with
// converted stacked on connected when the campaign goal was met.
func (s *WebhookFlowImpl) counterDeltas(ctx context.Context, call *models.Call, finalStatus models.CallStatus, analysis models.JSONMap) []CounterDelta {
	deltas := []CounterDelta{
		{Name: models.CounterCallsCompleted, Delta: 1},
		{Name: models.CounterCallsCalling, Delta: -1},
	}

	switch finalStatus {
	case models.CallStatusVoicemail:
		deltas = append(deltas, CounterDelta{Name: models.CounterCallsVoicemail, Delta: 1})
	case models.CallStatusFailed, models.CallStatusNoAnswer:
		deltas = append(deltas, CounterDelta{Name: models.CounterCallsFailed, Delta: 1})
	default:
		if analysis.GetBool(analysisKeyPatientReached) {
			deltas = append(deltas, CounterDelta{Name: models.CounterCallsConnected, Delta: 1})
			if s.conversionGoalMet(ctx, call, analysis) {
				deltas = append(deltas, CounterDelta{Name: models.CounterCallsConverted, Delta: 1})
			}
		}
	}

	return deltas
}

// conversionGoalMet checks the campaign's conversion keys against the call
// analysis, accepting both boolean and legacy string representations.
func (s *WebhookFlowImpl) conversionGoalMet(ctx context.Context, call *models.Call, analysis models.JSONMap) bool {
	keys := []string{"appointment_confirmed"}
	if call.CampaignID != nil {
		if campaign, err := s.campaignRepo.ByID(ctx, *call.CampaignID); err == nil && campaign != nil {
			keys = campaign.EffectiveConversionKeys()
		}
	}

	for _, key := range keys {
		if analysis.GetBool(key) {
			return true
		}
	}
	return false
}

// publishCallCompleted emits a run-scoped call-completed event
func (s *WebhookFlowImpl) publishCallCompleted(ctx context.Context, call *models.Call, finalStatus models.CallStatus) {
	orgUUID := ""
	if org, err := s.orgRepo.ByID(ctx, call.OrganizationID); err == nil && org != nil {
		orgUUID = org.UUID.String()
	}

	runUUID := ""
	if call.RunID != nil {
		if run, err := s.runRepo.ByID(ctx, *call.RunID); err == nil && run != nil {
			runUUID = run.UUID.String()
		}
	}

	s.publisher.PublishRunEvent(ctx, services.RunEvent{
		Type:    services.EventCallCompleted,
		OrgUUID: orgUUID,
		RunUUID: runUUID,
		Payload: map[string]any{
			"provider_call_id": call.ProviderCallID,
			"status":           string(finalStatus),
		},
		Timestamp: utils.UTCNow(),
	})
}

// HandleInboundCall builds a routing decision for a live inbound call. The
// provider expects synchronous guidance, so partial failures are downgraded
// to warnings on a structured response.
func (s *WebhookFlowImpl) HandleInboundCall(ctx context.Context, orgUUID string, req *dto.InboundCallWebhookRequest) (*dto.InboundCallWebhookResponse, error) {
	resp := &dto.InboundCallWebhookResponse{
		DynamicVariables: map[string]any{},
		Metadata: map[string]any{
			"orgId":   orgUUID,
			"inbound": true,
		},
	}

	if req.FromNumber == "" {
		resp.Warning = "from_number missing; routing with defaults"
		log.Printf("inbound webhook: org %s: %s", orgUUID, resp.Warning)
	} else {
		resp.DynamicVariables["caller_number"] = req.FromNumber
	}

	org, err := s.orgRepo.ByUUID(ctx, orgUUID)
	if err != nil || org == nil {
		if resp.Warning == "" {
			resp.Warning = "organization not found; routing with defaults"
		}
		log.Printf("inbound webhook: organization %s not resolvable: %v", orgUUID, err)
		resp.AgentID = req.AgentID
		return resp, nil
	}

	resp.DynamicVariables["organization_name"] = org.Name

	resp.AgentID = req.AgentID
	if resp.AgentID == "" {
		if len(org.AllowedAgentIDs) > 0 {
			resp.AgentID = org.AllowedAgentIDs[0]
		}
		log.Printf("inbound webhook: org %s: agent_id missing, defaulted to %q", orgUUID, resp.AgentID)
	}

	return resp, nil
}
