// Package services provides external service integrations and technical concerns like voice calls and events
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/NathanHayman/rivvi-beta-sub007/config"
)

// VoiceProvider is the provider-agnostic interface for placing outbound calls.
// All provider SDK/HTTP specifics stay behind this interface.
type VoiceProvider interface {
	CreatePhoneCall(ctx context.Context, req CreatePhoneCallRequest) (*CreatePhoneCallResponse, error)
}

// CreatePhoneCallRequest is the call-creation request sent to the provider
type CreatePhoneCallRequest struct {
	ToNumber        string         `json:"to_number"`
	FromNumber      string         `json:"from_number"`
	OverrideAgentID string         `json:"override_agent_id,omitempty"`

	// DynamicVariables are the templated row variables the agent receives.
	DynamicVariables map[string]any `json:"retell_llm_dynamic_variables,omitempty"`

	// Metadata carries run/row correlation identifiers so the post-call webhook
	// can be matched back.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CreatePhoneCallResponse is the provider's call-creation response. A missing
// call id is treated as a failed dispatch by callers.
type CreatePhoneCallResponse struct {
	CallID     string `json:"call_id"`
	AgentID    string `json:"agent_id,omitempty"`
	CallStatus string `json:"call_status,omitempty"`
}

// RetellClient implements VoiceProvider against the Retell HTTP API
type RetellClient struct {
	cfg    *config.RetellConfig
	client *http.Client
}

// NewRetellClient creates a new Retell voice provider client
func NewRetellClient(cfg *config.RetellConfig) VoiceProvider {
	return &RetellClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// CreatePhoneCall places one outbound call via the Retell API
func (c *RetellClient) CreatePhoneCall(ctx context.Context, req CreatePhoneCallRequest) (*CreatePhoneCallResponse, error) {
	if req.ToNumber == "" {
		return nil, fmt.Errorf("retell: to_number is required")
	}
	if req.FromNumber == "" {
		return nil, fmt.Errorf("retell: from_number is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("retell: marshal request: %w", err)
	}

	url := c.cfg.APIDomain + "/v2/create-phone-call"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("retell: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("retell: create phone call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("retell: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("retell: create phone call http status %d: %s", resp.StatusCode, string(body))
	}

	var result CreatePhoneCallResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("retell: decode response: %w", err)
	}
	if result.CallID == "" {
		return nil, fmt.Errorf("retell: response missing call_id")
	}

	return &result, nil
}

// MockVoiceProvider records call requests for tests
type MockVoiceProvider struct {
	mu       sync.Mutex
	requests []CreatePhoneCallRequest
	nextID   int

	// FailFor makes CreatePhoneCall fail for specific destination numbers.
	FailFor map[string]error
}

// NewMockVoiceProvider creates a mock voice provider
func NewMockVoiceProvider() *MockVoiceProvider {
	return &MockVoiceProvider{FailFor: make(map[string]error)}
}

// CreatePhoneCall records the request and returns a synthetic call id
func (m *MockVoiceProvider) CreatePhoneCall(_ context.Context, req CreatePhoneCallRequest) (*CreatePhoneCallResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailFor[req.ToNumber]; ok {
		return nil, err
	}

	m.requests = append(m.requests, req)
	m.nextID++
	return &CreatePhoneCallResponse{
		CallID:     fmt.Sprintf("mock_call_%d", m.nextID),
		CallStatus: "registered",
	}, nil
}

// Requests returns a copy of the recorded call requests
func (m *MockVoiceProvider) Requests() []CreatePhoneCallRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CreatePhoneCallRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
