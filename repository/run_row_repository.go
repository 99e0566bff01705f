package repository

import (
	"context"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
	"gorm.io/gorm"
)

// RunRowRepositoryImpl implements the RunRowRepository interface
type RunRowRepositoryImpl struct {
	*BaseRepository[models.RunRow, models.RunRowFilter]
}

// NewRunRowRepository creates a new run row repository
func NewRunRowRepository(db *gorm.DB) RunRowRepository {
	return &RunRowRepositoryImpl{
		BaseRepository: NewBaseRepository[models.RunRow, models.RunRowFilter](db),
	}
}

// ByUUID retrieves a run row by UUID
func (r *RunRowRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.RunRow, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.RunRowFilter{UUID: &parsedUUID}
	rows, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return rows[0], nil
}

// ListPendingForDispatch returns up to limit batch-eligible pending rows in
// ascending sort_index order. First-ingested-first-called.
func (r *RunRowRepositoryImpl) ListPendingForDispatch(ctx context.Context, runID uint, limit int) ([]*models.RunRow, error) {
	if limit <= 0 {
		return nil, nil
	}

	db := r.getDB(ctx)

	var rows []*models.RunRow
	err := db.Where("run_id = ? AND status = ? AND batch_eligible = ?", runID, models.RowStatusPending, true).
		Order("sort_index ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// CountByStatuses counts the run's rows currently in any of the given statuses
func (r *RunRowRepositoryImpl) CountByStatuses(ctx context.Context, runID uint, statuses ...models.RowStatus) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.RunRow{}).
		Where("run_id = ? AND status IN ?", runID, statuses).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// AcquireForDispatch atomically moves a pending row to calling. The status
// condition makes row acquisition a compare-and-swap: zero rows affected means
// another dispatch cycle already took the row.
func (r *RunRowRepositoryImpl) AcquireForDispatch(ctx context.Context, rowID uint) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.RunRow{}).
		Where("id = ? AND status = ?", rowID, models.RowStatusPending).
		Updates(map[string]any{
			"status":        models.RowStatusCalling,
			"call_attempts": gorm.Expr("call_attempts + 1"),
			"updated_at":    utils.UTCNow(),
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// MarkDispatched records the provider call id after a successful dispatch
func (r *RunRowRepositoryImpl) MarkDispatched(ctx context.Context, rowID uint, providerCallID string) error {
	db := r.getDB(ctx)

	return db.Model(&models.RunRow{}).
		Where("id = ?", rowID).
		Updates(map[string]any{
			"provider_call_id": providerCallID,
			"updated_at":       utils.UTCNow(),
		}).Error
}

// MarkFailed moves a row to failed with the captured error text
func (r *RunRowRepositoryImpl) MarkFailed(ctx context.Context, rowID uint, errText string) error {
	db := r.getDB(ctx)

	return db.Model(&models.RunRow{}).
		Where("id = ?", rowID).
		Updates(map[string]any{
			"status":     models.RowStatusFailed,
			"error":      errText,
			"updated_at": utils.UTCNow(),
		}).Error
}

// CompleteFromWebhook moves a calling row to completed and stores the post-call
// analysis. The status condition makes webhook redelivery a safe no-op: an
// already-terminal row is left untouched and false is returned.
func (r *RunRowRepositoryImpl) CompleteFromWebhook(ctx context.Context, rowID uint, analysis, postCallData models.JSONMap) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.RunRow{}).
		Where("id = ? AND status = ?", rowID, models.RowStatusCalling).
		Updates(map[string]any{
			"status":         models.RowStatusCompleted,
			"analysis":       analysis,
			"post_call_data": postCallData,
			"updated_at":     utils.UTCNow(),
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// ListStuckCalling returns rows that have been in calling longer than the cutoff
func (r *RunRowRepositoryImpl) ListStuckCalling(ctx context.Context, olderThan time.Time, limit int) ([]*models.RunRow, error) {
	db := r.getDB(ctx)

	var rows []*models.RunRow
	query := db.Where("status = ? AND updated_at < ?", models.RowStatusCalling, olderThan).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// ByFilter retrieves run rows based on filter criteria
func (r *RunRowRepositoryImpl) ByFilter(ctx context.Context, filter models.RunRowFilter, orderBy string, limit, offset int) ([]*models.RunRow, error) {
	db := r.getDB(ctx)

	var rows []*models.RunRow
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// Count returns the number of run rows matching the filter
func (r *RunRowRepositoryImpl) Count(ctx context.Context, filter models.RunRowFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.RunRow{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *RunRowRepositoryImpl) applyFilter(db *gorm.DB, filter models.RunRowFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.RunID != nil {
		db = db.Where("run_id = ?", *filter.RunID)
	}
	if filter.OrganizationID != nil {
		db = db.Where("organization_id = ?", *filter.OrganizationID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.BatchEligible != nil {
		db = db.Where("batch_eligible = ?", *filter.BatchEligible)
	}
	if filter.ProviderCallID != nil {
		db = db.Where("provider_call_id = ?", *filter.ProviderCallID)
	}

	return db
}
