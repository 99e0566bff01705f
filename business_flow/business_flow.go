// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/app/dto"
	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/repository"
)

const RequestIDKey = "X-Request-ID"

// OrgContext identifies the authenticated organization on whose behalf an
// operation runs. It is passed explicitly into every flow operation; flows
// never resolve an ambient "current organization".
type OrgContext struct {
	OrganizationID uint   `json:"organization_id"`
	UserID         string `json:"user_id,omitempty"`
	IsSuperAdmin   bool   `json:"is_super_admin,omitempty"`
}

// CanAccess reports whether the context may act on resources of the given
// organization.
func (c OrgContext) CanAccess(organizationID uint) bool {
	return c.IsSuperAdmin || c.OrganizationID == organizationID
}

// getOrganization loads an active organization by internal id.
func getOrganization(ctx context.Context, repo repository.OrganizationRepository, id uint) (*models.Organization, error) {
	org, err := repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrganizationNotFound
	}
	if !org.IsActive {
		return nil, ErrOrganizationInactive
	}
	return org, nil
}

// getCampaign loads an active campaign by internal id.
func getCampaign(ctx context.Context, repo repository.CampaignRepository, id uint) (*models.Campaign, error) {
	campaign, err := repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	if !campaign.IsActive {
		return nil, ErrCampaignInactive
	}
	return campaign, nil
}

// getRun loads a run by public uuid and enforces organization ownership.
func getRun(ctx context.Context, repo repository.RunRepository, runUUID string, orgCtx OrgContext) (*models.Run, error) {
	run, err := repo.ByUUID(ctx, runUUID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	if !orgCtx.CanAccess(run.OrganizationID) {
		return nil, ErrRunAccessDenied
	}
	return run, nil
}

// ToRunDTO converts a run model to its API representation.
func ToRunDTO(run *models.Run) dto.RunDTO {
	d := dto.RunDTO{
		UUID:        run.UUID.String(),
		Name:        run.Name,
		Status:      string(run.Status),
		Metadata:    run.Metadata,
		ScheduledAt: run.ScheduledAt,
		CreatedAt:   run.CreatedAt.Format(time.RFC3339),
	}
	if run.Campaign != nil {
		d.CampaignUUID = run.Campaign.UUID.String()
	}
	if run.UpdatedAt != nil {
		updated := run.UpdatedAt.Format(time.RFC3339)
		d.UpdatedAt = &updated
	}
	return d
}
