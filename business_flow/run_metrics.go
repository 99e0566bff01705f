package businessflow

import (
	"context"
	"fmt"

	"github.com/NathanHayman/rivvi-beta-sub007/app/services"
	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/repository"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
)

// CounterDelta is one named counter adjustment applied to a run's metadata.
type CounterDelta struct {
	Name  string
	Delta int
}

// RunMetricsFlow maintains the run's denormalized counter blob. Counters are
// telemetry: row and call status columns remain the source of truth, and
// concurrent webhook deliveries may transiently skew them. Decrements are
// floored at zero so redeliveries never drive a counter negative.
type RunMetricsFlow interface {
	// ApplyDeltas re-reads the run, applies the deltas to its metadata as a
	// whole structure, persists it, and publishes a metrics-updated event.
	// Returns the updated metadata.
	ApplyDeltas(ctx context.Context, runID uint, deltas ...CounterDelta) (*models.RunMetadata, error)
}

// RunMetricsFlowImpl implements the run metrics aggregator
type RunMetricsFlowImpl struct {
	runRepo   repository.RunRepository
	publisher services.EventPublisher
}

// NewRunMetricsFlow creates a new run metrics flow instance
func NewRunMetricsFlow(runRepo repository.RunRepository, publisher services.EventPublisher) RunMetricsFlow {
	return &RunMetricsFlowImpl{
		runRepo:   runRepo,
		publisher: publisher,
	}
}

// ApplyDeltas performs a read-modify-write on the run's metadata blob
func (s *RunMetricsFlowImpl) ApplyDeltas(ctx context.Context, runID uint, deltas ...CounterDelta) (*models.RunMetadata, error) {
	if len(deltas) == 0 {
		return nil, nil
	}

	run, err := s.runRepo.ByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %d for counter update: %w", runID, err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}

	metadata := run.Metadata
	for _, d := range deltas {
		metadata.Increment(d.Name, d.Delta)
	}

	if err := s.runRepo.UpdateMetadata(ctx, run.ID, metadata); err != nil {
		return nil, fmt.Errorf("failed to persist run %d counters: %w", runID, err)
	}

	s.publisher.PublishRunEvent(ctx, services.RunEvent{
		Type:    services.EventMetricsUpdated,
		OrgUUID: orgUUIDForRun(ctx, run),
		RunUUID: run.UUID.String(),
		Payload: map[string]any{
			"calls": metadata.Calls,
			"rows":  metadata.Rows,
		},
		Timestamp: utils.UTCNow(),
	})

	return &metadata, nil
}

// orgUUIDForRun resolves the organization uuid for event scoping. The run's
// relation is used when preloaded; otherwise the event carries an empty org
// uuid, which run-channel subscribers do not need.
func orgUUIDForRun(_ context.Context, run *models.Run) string {
	if run.Organization != nil {
		return run.Organization.UUID.String()
	}
	return ""
}
