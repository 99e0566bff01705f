package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published to run/org channels
const (
	EventCallStarted    = "call-started"
	EventCallCompleted  = "call-completed"
	EventMetricsUpdated = "metrics-updated"
	EventRunUpdated     = "run-updated"
)

// RunEvent is a real-time update delivered to dashboard subscribers
type RunEvent struct {
	Type      string         `json:"type"`
	OrgUUID   string         `json:"org_uuid"`
	RunUUID   string         `json:"run_uuid,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventPublisher delivers real-time run updates to subscribers. Publication is
// best-effort: a failed publish is logged, never surfaced to the caller,
// because event delivery must not affect dispatch or webhook handling.
type EventPublisher interface {
	PublishRunEvent(ctx context.Context, event RunEvent)
	PublishOrgEvent(ctx context.Context, event RunEvent)
}

// RedisEventPublisher publishes run events on redis pub/sub channels.
// Run-scoped events go to run:{uuid}:events, org-scoped to org:{uuid}:events.
type RedisEventPublisher struct {
	rc *redis.Client
}

// NewRedisEventPublisher creates a redis-backed event publisher
func NewRedisEventPublisher(rc *redis.Client) EventPublisher {
	return &RedisEventPublisher{rc: rc}
}

// PublishRunEvent publishes an event on the run's channel
func (p *RedisEventPublisher) PublishRunEvent(ctx context.Context, event RunEvent) {
	p.publish(ctx, fmt.Sprintf("run:%s:events", event.RunUUID), event)
}

// PublishOrgEvent publishes an event on the organization's channel
func (p *RedisEventPublisher) PublishOrgEvent(ctx context.Context, event RunEvent) {
	p.publish(ctx, fmt.Sprintf("org:%s:events", event.OrgUUID), event)
}

func (p *RedisEventPublisher) publish(ctx context.Context, channel string, event RunEvent) {
	if p.rc == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: marshal event %s failed: %v", event.Type, err)
		return
	}

	if err := p.rc.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("events: publish %s to %s failed: %v", event.Type, channel, err)
	}
}

// MockEventPublisher records published events for tests
type MockEventPublisher struct {
	mu        sync.Mutex
	runEvents []RunEvent
	orgEvents []RunEvent
}

// NewMockEventPublisher creates a mock event publisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// PublishRunEvent records a run-scoped event
func (m *MockEventPublisher) PublishRunEvent(_ context.Context, event RunEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runEvents = append(m.runEvents, event)
}

// PublishOrgEvent records an org-scoped event
func (m *MockEventPublisher) PublishOrgEvent(_ context.Context, event RunEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgEvents = append(m.orgEvents, event)
}

// RunEvents returns a copy of the recorded run-scoped events
func (m *MockEventPublisher) RunEvents() []RunEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RunEvent, len(m.runEvents))
	copy(out, m.runEvents)
	return out
}

// OrgEvents returns a copy of the recorded org-scoped events
func (m *MockEventPublisher) OrgEvents() []RunEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RunEvent, len(m.orgEvents))
	copy(out, m.orgEvents)
	return out
}
