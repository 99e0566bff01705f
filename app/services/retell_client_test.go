package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRetellClient(serverURL string) VoiceProvider {
	return NewRetellClient(&config.RetellConfig{
		APIDomain: serverURL,
		APIKey:    "test_key",
		Timeout:   5 * time.Second,
	})
}

func TestRetellClientCreatePhoneCall(t *testing.T) {
	var captured CreatePhoneCallRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/create-phone-call", r.URL.Path)
		assert.Equal(t, "Bearer test_key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(CreatePhoneCallResponse{
			CallID:     "call_abc123",
			AgentID:    "agent_outbound",
			CallStatus: "registered",
		})
	}))
	defer server.Close()

	client := newTestRetellClient(server.URL)
	resp, err := client.CreatePhoneCall(context.Background(), CreatePhoneCallRequest{
		ToNumber:        "+14155550001",
		FromNumber:      "+14155550100",
		OverrideAgentID: "agent_outbound",
		DynamicVariables: map[string]any{
			"firstName": "Alex",
		},
		Metadata: map[string]any{
			"runId": "run-uuid",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "call_abc123", resp.CallID)

	assert.Equal(t, "+14155550001", captured.ToNumber)
	assert.Equal(t, "+14155550100", captured.FromNumber)
	assert.Equal(t, "agent_outbound", captured.OverrideAgentID)
	assert.Equal(t, "Alex", captured.DynamicVariables["firstName"])
	assert.Equal(t, "run-uuid", captured.Metadata["runId"])
}

func TestRetellClientRejectsIncompleteRequests(t *testing.T) {
	client := newTestRetellClient("http://localhost:0")

	_, err := client.CreatePhoneCall(context.Background(), CreatePhoneCallRequest{FromNumber: "+14155550100"})
	assert.ErrorContains(t, err, "to_number")

	_, err = client.CreatePhoneCall(context.Background(), CreatePhoneCallRequest{ToNumber: "+14155550001"})
	assert.ErrorContains(t, err, "from_number")
}

func TestRetellClientNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"insufficient balance"}`))
	}))
	defer server.Close()

	client := newTestRetellClient(server.URL)
	_, err := client.CreatePhoneCall(context.Background(), CreatePhoneCallRequest{
		ToNumber:   "+14155550001",
		FromNumber: "+14155550100",
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "402")
	assert.ErrorContains(t, err, "insufficient balance")
}

func TestRetellClientMissingCallID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"call_status":"registered"}`))
	}))
	defer server.Close()

	client := newTestRetellClient(server.URL)
	_, err := client.CreatePhoneCall(context.Background(), CreatePhoneCallRequest{
		ToNumber:   "+14155550001",
		FromNumber: "+14155550100",
	})
	assert.ErrorContains(t, err, "missing call_id")
}

func TestMockVoiceProvider(t *testing.T) {
	provider := NewMockVoiceProvider()

	first, err := provider.CreatePhoneCall(context.Background(), CreatePhoneCallRequest{ToNumber: "+14155550001", FromNumber: "+14155550100"})
	require.NoError(t, err)
	second, err := provider.CreatePhoneCall(context.Background(), CreatePhoneCallRequest{ToNumber: "+14155550002", FromNumber: "+14155550100"})
	require.NoError(t, err)
	assert.NotEqual(t, first.CallID, second.CallID)
	assert.Len(t, provider.Requests(), 2)

	provider.FailFor["+14155550003"] = errors.New("simulated outage")
	_, err = provider.CreatePhoneCall(context.Background(), CreatePhoneCallRequest{ToNumber: "+14155550003", FromNumber: "+14155550100"})
	assert.ErrorContains(t, err, "simulated outage")
	assert.Len(t, provider.Requests(), 2)
}
