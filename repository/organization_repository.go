package repository

import (
	"context"

	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
	"gorm.io/gorm"
)

// OrganizationRepositoryImpl implements the OrganizationRepository interface
type OrganizationRepositoryImpl struct {
	*BaseRepository[models.Organization, models.OrganizationFilter]
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &OrganizationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Organization, models.OrganizationFilter](db),
	}
}

// ByUUID retrieves an organization by UUID
func (r *OrganizationRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Organization, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.OrganizationFilter{UUID: &parsedUUID}
	orgs, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(orgs) == 0 {
		return nil, nil
	}

	return orgs[0], nil
}

// ByFilter retrieves organizations based on filter criteria
func (r *OrganizationRepositoryImpl) ByFilter(ctx context.Context, filter models.OrganizationFilter, orderBy string, limit, offset int) ([]*models.Organization, error) {
	db := r.getDB(ctx)

	var orgs []*models.Organization
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

	err := query.Find(&orgs).Error
	if err != nil {
		return nil, err
	}

	return orgs, nil
}

// Count returns the number of organizations matching the filter
func (r *OrganizationRepositoryImpl) Count(ctx context.Context, filter models.OrganizationFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Organization{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *OrganizationRepositoryImpl) applyFilter(db *gorm.DB, filter models.OrganizationFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}

	return db
}
