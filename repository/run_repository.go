package repository

import (
	"context"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
	"gorm.io/gorm"
)

// RunRepositoryImpl implements the RunRepository interface
type RunRepositoryImpl struct {
	*BaseRepository[models.Run, models.RunFilter]
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *gorm.DB) RunRepository {
	return &RunRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Run, models.RunFilter](db),
	}
}

// ByUUID retrieves a run by UUID
func (r *RunRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Run, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.RunFilter{UUID: &parsedUUID}
	runs, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(runs) == 0 {
		return nil, nil
	}

	return runs[0], nil
}

// ListByStatus retrieves runs by status with pagination
func (r *RunRepositoryImpl) ListByStatus(ctx context.Context, status models.RunStatus, limit, offset int) ([]*models.Run, error) {
	filter := models.RunFilter{Status: &status}
	return r.ByFilter(ctx, filter, "created_at ASC", limit, offset)
}

// ListDueScheduled retrieves scheduled runs whose scheduled_at has passed
func (r *RunRepositoryImpl) ListDueScheduled(ctx context.Context, before time.Time, limit int) ([]*models.Run, error) {
	status := models.RunStatusScheduled
	filter := models.RunFilter{Status: &status, ScheduledBefore: &before}
	return r.ByFilter(ctx, filter, "scheduled_at ASC", limit, 0)
}

// Update updates a run
func (r *RunRepositoryImpl) Update(ctx context.Context, run models.Run) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	now := utils.UTCNow()
	run.UpdatedAt = &now

	err = db.Save(&run).Error
	if err != nil {
		return err
	}

	return nil
}

// UpdateStatus performs a conditional status transition guarded on the current
// status, so racing pause/complete requests cannot clobber each other.
func (r *RunRepositoryImpl) UpdateStatus(ctx context.Context, id uint, from, to models.RunStatus) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.Run{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// UpdateMetadata persists the run's full metadata blob
func (r *RunRepositoryImpl) UpdateMetadata(ctx context.Context, id uint, metadata models.RunMetadata) error {
	db := r.getDB(ctx)
	return db.Model(&models.Run{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"metadata":   metadata,
			"updated_at": utils.UTCNow(),
		}).Error
}

// ByFilter retrieves runs based on filter criteria
func (r *RunRepositoryImpl) ByFilter(ctx context.Context, filter models.RunFilter, orderBy string, limit, offset int) ([]*models.Run, error) {
	db := r.getDB(ctx)

	var runs []*models.Run
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

	query = query.Preload("Campaign")

	err := query.Find(&runs).Error
	if err != nil {
		return nil, err
	}

	return runs, nil
}

// Count returns the number of runs matching the filter
func (r *RunRepositoryImpl) Count(ctx context.Context, filter models.RunFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Run{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *RunRepositoryImpl) applyFilter(db *gorm.DB, filter models.RunFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.OrganizationID != nil {
		db = db.Where("organization_id = ?", *filter.OrganizationID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.ScheduledBefore != nil {
		db = db.Where("scheduled_at <= ?", *filter.ScheduledBefore)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}

	return db
}
