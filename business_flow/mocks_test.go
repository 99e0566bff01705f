package businessflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
)

// In-memory repository fakes. They implement only the behavior the flows rely
// on: conditional updates really are conditional, and lookups miss with nil.

type memOrgRepo struct {
	mu   sync.Mutex
	orgs map[uint]*models.Organization
}

func newMemOrgRepo() *memOrgRepo {
	return &memOrgRepo{orgs: make(map[uint]*models.Organization)}
}

func (r *memOrgRepo) add(org *models.Organization) *models.Organization {
	r.mu.Lock()
	defer r.mu.Unlock()
	if org.ID == 0 {
		org.ID = uint(len(r.orgs) + 1)
	}
	r.orgs[org.ID] = org
	return org
}

func (r *memOrgRepo) ByID(_ context.Context, id uint) (*models.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orgs[id], nil
}

func (r *memOrgRepo) ByUUID(_ context.Context, uuid string) (*models.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, org := range r.orgs {
		if org.UUID.String() == uuid {
			return org, nil
		}
	}
	return nil, nil
}

func (r *memOrgRepo) ByFilter(_ context.Context, _ models.OrganizationFilter, _ string, _, _ int) ([]*models.Organization, error) {
	return nil, nil
}

func (r *memOrgRepo) Save(_ context.Context, org *models.Organization) error {
	r.add(org)
	return nil
}

func (r *memOrgRepo) SaveBatch(ctx context.Context, orgs []*models.Organization) error {
	for _, org := range orgs {
		if err := r.Save(ctx, org); err != nil {
			return err
		}
	}
	return nil
}

func (r *memOrgRepo) Count(_ context.Context, _ models.OrganizationFilter) (int64, error) {
	return int64(len(r.orgs)), nil
}

type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uint]*models.Campaign
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: make(map[uint]*models.Campaign)}
}

func (r *memCampaignRepo) add(campaign *models.Campaign) *models.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	if campaign.ID == 0 {
		campaign.ID = uint(len(r.campaigns) + 1)
	}
	r.campaigns[campaign.ID] = campaign
	return campaign
}

func (r *memCampaignRepo) ByID(_ context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaigns[id], nil
}

func (r *memCampaignRepo) ByUUID(_ context.Context, uuid string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, campaign := range r.campaigns {
		if campaign.UUID.String() == uuid {
			return campaign, nil
		}
	}
	return nil, nil
}

func (r *memCampaignRepo) ByFilter(_ context.Context, _ models.CampaignFilter, _ string, _, _ int) ([]*models.Campaign, error) {
	return nil, nil
}

func (r *memCampaignRepo) Save(_ context.Context, campaign *models.Campaign) error {
	r.add(campaign)
	return nil
}

func (r *memCampaignRepo) SaveBatch(ctx context.Context, campaigns []*models.Campaign) error {
	for _, campaign := range campaigns {
		if err := r.Save(ctx, campaign); err != nil {
			return err
		}
	}
	return nil
}

func (r *memCampaignRepo) Count(_ context.Context, _ models.CampaignFilter) (int64, error) {
	return int64(len(r.campaigns)), nil
}

type memRunRepo struct {
	mu   sync.Mutex
	runs map[uint]*models.Run
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: make(map[uint]*models.Run)}
}

func (r *memRunRepo) add(run *models.Run) *models.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == 0 {
		run.ID = uint(len(r.runs) + 1)
	}
	r.runs[run.ID] = run
	return run
}

func (r *memRunRepo) ByID(_ context.Context, id uint) (*models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id], nil
}

func (r *memRunRepo) ByUUID(_ context.Context, uuid string) (*models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.UUID.String() == uuid {
			return run, nil
		}
	}
	return nil, nil
}

func (r *memRunRepo) matches(run *models.Run, filter models.RunFilter) bool {
	if filter.OrganizationID != nil && run.OrganizationID != *filter.OrganizationID {
		return false
	}
	if filter.CampaignID != nil && run.CampaignID != *filter.CampaignID {
		return false
	}
	if filter.Status != nil && run.Status != *filter.Status {
		return false
	}
	return true
}

func (r *memRunRepo) ByFilter(_ context.Context, filter models.RunFilter, _ string, limit, offset int) ([]*models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Run
	for _, run := range r.runs {
		if r.matches(run, filter) {
			result = append(result, run)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memRunRepo) Save(_ context.Context, run *models.Run) error {
	r.add(run)
	return nil
}

func (r *memRunRepo) SaveBatch(ctx context.Context, runs []*models.Run) error {
	for _, run := range runs {
		if err := r.Save(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (r *memRunRepo) Count(_ context.Context, filter models.RunFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, run := range r.runs {
		if r.matches(run, filter) {
			count++
		}
	}
	return count, nil
}

func (r *memRunRepo) ListByStatus(_ context.Context, status models.RunStatus, limit, _ int) ([]*models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Run
	for _, run := range r.runs {
		if run.Status == status {
			result = append(result, run)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memRunRepo) ListDueScheduled(_ context.Context, before time.Time, limit int) ([]*models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Run
	for _, run := range r.runs {
		if run.Status == models.RunStatusScheduled && run.ScheduledAt != nil && !run.ScheduledAt.After(before) {
			result = append(result, run)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memRunRepo) Update(_ context.Context, run models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.runs[run.ID]
	if stored != nil {
		*stored = run
	}
	return nil
}

func (r *memRunRepo) UpdateStatus(_ context.Context, id uint, from, to models.RunStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := r.runs[id]
	if run == nil || run.Status != from {
		return false, nil
	}
	run.Status = to
	run.UpdatedAt = utils.UTCNowPtr()
	return true, nil
}

func (r *memRunRepo) UpdateMetadata(_ context.Context, id uint, metadata models.RunMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := r.runs[id]
	if run != nil {
		run.Metadata = metadata
		run.UpdatedAt = utils.UTCNowPtr()
	}
	return nil
}

type memRowRepo struct {
	mu   sync.Mutex
	rows map[uint]*models.RunRow
}

func newMemRowRepo() *memRowRepo {
	return &memRowRepo{rows: make(map[uint]*models.RunRow)}
}

func (r *memRowRepo) add(row *models.RunRow) *models.RunRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == 0 {
		row.ID = uint(len(r.rows) + 1)
	}
	r.rows[row.ID] = row
	return row
}

func (r *memRowRepo) ByID(_ context.Context, id uint) (*models.RunRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id], nil
}

func (r *memRowRepo) ByUUID(_ context.Context, uuid string) (*models.RunRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.UUID.String() == uuid {
			return row, nil
		}
	}
	return nil, nil
}

func (r *memRowRepo) ByFilter(_ context.Context, _ models.RunRowFilter, _ string, _, _ int) ([]*models.RunRow, error) {
	return nil, nil
}

func (r *memRowRepo) Save(_ context.Context, row *models.RunRow) error {
	r.add(row)
	return nil
}

func (r *memRowRepo) SaveBatch(ctx context.Context, rows []*models.RunRow) error {
	for _, row := range rows {
		if err := r.Save(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *memRowRepo) Count(_ context.Context, _ models.RunRowFilter) (int64, error) {
	return int64(len(r.rows)), nil
}

func (r *memRowRepo) ListPendingForDispatch(_ context.Context, runID uint, limit int) ([]*models.RunRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.RunRow
	for _, row := range r.rows {
		if row.RunID == runID && row.Status == models.RowStatusPending && row.BatchEligible {
			result = append(result, row)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SortIndex < result[j].SortIndex })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memRowRepo) CountByStatuses(_ context.Context, runID uint, statuses ...models.RowStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, row := range r.rows {
		if row.RunID != runID {
			continue
		}
		for _, status := range statuses {
			if row.Status == status {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *memRowRepo) AcquireForDispatch(_ context.Context, rowID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.rows[rowID]
	if row == nil || row.Status != models.RowStatusPending {
		return false, nil
	}
	row.Status = models.RowStatusCalling
	row.CallAttempts++
	row.UpdatedAt = utils.UTCNowPtr()
	return true, nil
}

func (r *memRowRepo) MarkDispatched(_ context.Context, rowID uint, providerCallID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.rows[rowID]
	if row != nil {
		row.ProviderCallID = &providerCallID
		row.UpdatedAt = utils.UTCNowPtr()
	}
	return nil
}

func (r *memRowRepo) MarkFailed(_ context.Context, rowID uint, errText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.rows[rowID]
	if row != nil {
		row.Status = models.RowStatusFailed
		row.Error = &errText
		row.UpdatedAt = utils.UTCNowPtr()
	}
	return nil
}

func (r *memRowRepo) CompleteFromWebhook(_ context.Context, rowID uint, analysis, postCallData models.JSONMap) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.rows[rowID]
	if row == nil || row.Status != models.RowStatusCalling {
		return false, nil
	}
	row.Status = models.RowStatusCompleted
	row.Analysis = analysis
	row.PostCallData = postCallData
	row.UpdatedAt = utils.UTCNowPtr()
	return true, nil
}

func (r *memRowRepo) ListStuckCalling(_ context.Context, olderThan time.Time, limit int) ([]*models.RunRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.RunRow
	for _, row := range r.rows {
		if row.Status != models.RowStatusCalling {
			continue
		}
		changedAt := row.CreatedAt
		if row.UpdatedAt != nil {
			changedAt = *row.UpdatedAt
		}
		if changedAt.Before(olderThan) {
			result = append(result, row)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type memCallRepo struct {
	mu    sync.Mutex
	calls map[uint]*models.Call
}

func newMemCallRepo() *memCallRepo {
	return &memCallRepo{calls: make(map[uint]*models.Call)}
}

func (r *memCallRepo) add(call *models.Call) *models.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	if call.ID == 0 {
		call.ID = uint(len(r.calls) + 1)
	}
	r.calls[call.ID] = call
	return call
}

func (r *memCallRepo) ByID(_ context.Context, id uint) (*models.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id], nil
}

func (r *memCallRepo) ByUUID(_ context.Context, uuid string) (*models.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, call := range r.calls {
		if call.UUID.String() == uuid {
			return call, nil
		}
	}
	return nil, nil
}

func (r *memCallRepo) ByProviderCallID(_ context.Context, providerCallID string) (*models.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, call := range r.calls {
		if call.ProviderCallID == providerCallID {
			return call, nil
		}
	}
	return nil, nil
}

func (r *memCallRepo) ByFilter(_ context.Context, _ models.CallFilter, _ string, _, _ int) ([]*models.Call, error) {
	return nil, nil
}

func (r *memCallRepo) Save(_ context.Context, call *models.Call) error {
	r.add(call)
	return nil
}

func (r *memCallRepo) SaveBatch(ctx context.Context, calls []*models.Call) error {
	for _, call := range calls {
		if err := r.Save(ctx, call); err != nil {
			return err
		}
	}
	return nil
}

func (r *memCallRepo) Count(_ context.Context, _ models.CallFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.calls)), nil
}

func (r *memCallRepo) Update(_ context.Context, call models.Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.calls[call.ID]
	if stored != nil {
		*stored = call
	}
	return nil
}
