package dto

// RetellCallMetrics carries the provider's detection flags for a finished call
type RetellCallMetrics struct {
	VoicemailDetected bool `json:"voicemail_detected"`
	NoAnswer          bool `json:"no_answer"`
}

// RetellCall is the call object embedded in provider webhook payloads
type RetellCall struct {
	CallID         string            `json:"call_id"`
	CallType       string            `json:"call_type"`
	CallStatus     string            `json:"call_status"`
	AgentID        string            `json:"agent_id,omitempty"`
	RecordingURL   string            `json:"recording_url,omitempty"`
	Transcript     string            `json:"transcript,omitempty"`
	Analysis       map[string]any    `json:"call_analysis,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
	StartTimestamp int64             `json:"start_timestamp,omitempty"` // unix millis
	EndTimestamp   int64             `json:"end_timestamp,omitempty"`   // unix millis
	DurationMs     int64             `json:"duration_ms,omitempty"`
	Metrics        RetellCallMetrics `json:"metrics"`
}

// PostCallWebhookRequest is the provider's post-call ("call_analyzed") payload
type PostCallWebhookRequest struct {
	Event string     `json:"event"`
	Call  RetellCall `json:"call"`
}

// PostCallWebhookResponse acknowledges a post-call webhook
type PostCallWebhookResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Post-call webhook acknowledgement statuses
const (
	WebhookStatusSuccess = "success"
	WebhookStatusIgnored = "ignored"
	WebhookStatusError   = "error"
)

// InboundCallWebhookRequest is the provider's synchronous inbound-call routing
// query. Only from_number is strictly required; missing agent identity is
// substituted with the organization default.
type InboundCallWebhookRequest struct {
	FromNumber string         `json:"from_number"`
	ToNumber   string         `json:"to_number,omitempty"`
	AgentID    string         `json:"agent_id,omitempty"`
	CallID     string         `json:"call_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// InboundCallWebhookResponse is the routing decision returned to the provider.
// The provider expects synchronous guidance, so this is always populated even
// on partial failure.
type InboundCallWebhookResponse struct {
	AgentID          string         `json:"agent_id"`
	DynamicVariables map[string]any `json:"dynamic_variables,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Warning          string         `json:"warning,omitempty"`
}
