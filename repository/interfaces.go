// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// OrganizationRepository defines operations for organizations
type OrganizationRepository interface {
	Repository[models.Organization, models.OrganizationFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Organization, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
}

// RunRepository defines operations for runs
type RunRepository interface {
	Repository[models.Run, models.RunFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Run, error)
	ListByStatus(ctx context.Context, status models.RunStatus, limit, offset int) ([]*models.Run, error)
	ListDueScheduled(ctx context.Context, before time.Time, limit int) ([]*models.Run, error)
	Update(ctx context.Context, run models.Run) error
	// UpdateStatus performs a conditional status transition: the row is only
	// updated when its current status still matches from. Returns true when the
	// transition was applied.
	UpdateStatus(ctx context.Context, id uint, from, to models.RunStatus) (bool, error)
	// UpdateMetadata persists the run's full metadata blob.
	UpdateMetadata(ctx context.Context, id uint, metadata models.RunMetadata) error
}

// RunRowRepository defines operations for run rows
type RunRowRepository interface {
	Repository[models.RunRow, models.RunRowFilter]
	ByUUID(ctx context.Context, uuid string) (*models.RunRow, error)
	// ListPendingForDispatch returns up to limit batch-eligible pending rows of
	// the run in ascending sort_index order. Read-only selection.
	ListPendingForDispatch(ctx context.Context, runID uint, limit int) ([]*models.RunRow, error)
	// CountByStatuses counts the run's rows currently in any of the given statuses.
	CountByStatuses(ctx context.Context, runID uint, statuses ...models.RowStatus) (int64, error)
	// AcquireForDispatch atomically moves a pending row to calling (conditional
	// update on status). Returns false when another cycle already took the row.
	AcquireForDispatch(ctx context.Context, rowID uint) (bool, error)
	// MarkDispatched records the provider call id after a successful dispatch.
	MarkDispatched(ctx context.Context, rowID uint, providerCallID string) error
	// MarkFailed moves a row to failed with the captured error text.
	MarkFailed(ctx context.Context, rowID uint, errText string) error
	// CompleteFromWebhook moves a calling row to completed and stores the
	// post-call analysis. Safe no-op when the row is already terminal.
	CompleteFromWebhook(ctx context.Context, rowID uint, analysis, postCallData models.JSONMap) (bool, error)
	// ListStuckCalling returns rows that have been in calling longer than the
	// cutoff, for the stuck-row sweep.
	ListStuckCalling(ctx context.Context, olderThan time.Time, limit int) ([]*models.RunRow, error)
}

// CallRepository defines operations for calls
type CallRepository interface {
	Repository[models.Call, models.CallFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Call, error)
	ByProviderCallID(ctx context.Context, providerCallID string) (*models.Call, error)
	Update(ctx context.Context, call models.Call) error
}
