package repository

import (
	"context"

	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
	"gorm.io/gorm"
)

// CallRepositoryImpl implements the CallRepository interface
type CallRepositoryImpl struct {
	*BaseRepository[models.Call, models.CallFilter]
}

// NewCallRepository creates a new call repository
func NewCallRepository(db *gorm.DB) CallRepository {
	return &CallRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Call, models.CallFilter](db),
	}
}

// ByUUID retrieves a call by UUID
func (r *CallRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Call, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.CallFilter{UUID: &parsedUUID}
	calls, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(calls) == 0 {
		return nil, nil
	}

	return calls[0], nil
}

// ByProviderCallID retrieves a call by the provider's call identifier
func (r *CallRepositoryImpl) ByProviderCallID(ctx context.Context, providerCallID string) (*models.Call, error) {
	filter := models.CallFilter{ProviderCallID: &providerCallID}
	calls, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(calls) == 0 {
		return nil, nil
	}

	return calls[0], nil
}

// Update updates a call
func (r *CallRepositoryImpl) Update(ctx context.Context, call models.Call) error {
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
	call.UpdatedAt = &now

	err = db.Save(&call).Error
	if err != nil {
		return err
	}

	return nil
}

// ByFilter retrieves calls based on filter criteria
func (r *CallRepositoryImpl) ByFilter(ctx context.Context, filter models.CallFilter, orderBy string, limit, offset int) ([]*models.Call, error) {
	db := r.getDB(ctx)

	var calls []*models.Call
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

	err := query.Find(&calls).Error
	if err != nil {
		return nil, err
	}

	return calls, nil
}

// Count returns the number of calls matching the filter
func (r *CallRepositoryImpl) Count(ctx context.Context, filter models.CallFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Call{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *CallRepositoryImpl) applyFilter(db *gorm.DB, filter models.CallFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.OrganizationID != nil {
		db = db.Where("organization_id = ?", *filter.OrganizationID)
	}
	if filter.RunID != nil {
		db = db.Where("run_id = ?", *filter.RunID)
	}
	if filter.RowID != nil {
		db = db.Where("row_id = ?", *filter.RowID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.Direction != nil {
		db = db.Where("direction = ?", *filter.Direction)
	}
	if filter.ProviderCallID != nil {
		db = db.Where("provider_call_id = ?", *filter.ProviderCallID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}

	return db
}
