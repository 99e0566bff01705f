package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/models"
	"github.com/NathanHayman/rivvi-beta-sub007/repository"
	apptesting "github.com/NathanHayman/rivvi-beta-sub007/testing"
	"github.com/NathanHayman/rivvi-beta-sub007/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRepoTest provisions a throwaway postgres database. Tests are skipped
// when no server is reachable (see TEST_DB_* environment variables).
func setupRepoTest(t *testing.T) (*apptesting.TestDB, *apptesting.TestFixtures) {
	t.Helper()

	db, err := apptesting.SetupTestDB()
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() {
		if err := db.TeardownTestDB(); err != nil {
			t.Logf("teardown: %v", err)
		}
	})

	return db, apptesting.NewTestFixtures(db)
}

func seedRunWithRows(t *testing.T, fixtures *apptesting.TestFixtures, status models.RunStatus, rowCount int) (*models.Run, []*models.RunRow) {
	t.Helper()

	org, err := fixtures.CreateTestOrganization()
	require.NoError(t, err)
	campaign, err := fixtures.CreateTestCampaign(org.ID)
	require.NoError(t, err)
	run, err := fixtures.CreateTestRun(org.ID, campaign.ID, status)
	require.NoError(t, err)
	rows, err := fixtures.CreateTestRows(run, rowCount)
	require.NoError(t, err)

	return run, rows
}

func TestRunRepositoryUpdateStatus(t *testing.T) {
	db, fixtures := setupRepoTest(t)
	ctx := context.Background()
	repo := repository.NewRunRepository(db.DB)

	run, _ := seedRunWithRows(t, fixtures, models.RunStatusReady, 0)

	applied, err := repo.UpdateStatus(ctx, run.ID, models.RunStatusReady, models.RunStatusRunning)
	require.NoError(t, err)
	assert.True(t, applied)

	// The guard makes a stale transition a no-op.
	applied, err = repo.UpdateStatus(ctx, run.ID, models.RunStatusReady, models.RunStatusRunning)
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repo.ByUUID(ctx, run.UUID.String())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.RunStatusRunning, stored.Status)
}

func TestRunRepositoryUpdateMetadata(t *testing.T) {
	db, fixtures := setupRepoTest(t)
	ctx := context.Background()
	repo := repository.NewRunRepository(db.DB)

	run, _ := seedRunWithRows(t, fixtures, models.RunStatusRunning, 0)

	metadata := run.Metadata
	metadata.Calls.Calling = 3
	metadata.Rows.Total = 10
	metadata.LastOfficeHoursCheck = &models.OfficeHoursCheck{
		WithinHours: true,
		Reason:      "monday is open 24 hours",
		CheckedAt:   utils.UTCNow(),
	}
	require.NoError(t, repo.UpdateMetadata(ctx, run.ID, metadata))

	stored, err := repo.ByID(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 3, stored.Metadata.Calls.Calling)
	assert.Equal(t, 10, stored.Metadata.Rows.Total)
	require.NotNil(t, stored.Metadata.LastOfficeHoursCheck)
	assert.True(t, stored.Metadata.LastOfficeHoursCheck.WithinHours)
}

func TestRunRepositoryListDueScheduled(t *testing.T) {
	db, fixtures := setupRepoTest(t)
	ctx := context.Background()
	repo := repository.NewRunRepository(db.DB)

	due, _ := seedRunWithRows(t, fixtures, models.RunStatusScheduled, 0)
	future, _ := seedRunWithRows(t, fixtures, models.RunStatusScheduled, 0)

	past := utils.UTCNow().Add(-time.Hour)
	later := utils.UTCNow().Add(time.Hour)
	require.NoError(t, db.DB.Model(&models.Run{}).Where("id = ?", due.ID).Update("scheduled_at", past).Error)
	require.NoError(t, db.DB.Model(&models.Run{}).Where("id = ?", future.ID).Update("scheduled_at", later).Error)

	runs, err := repo.ListDueScheduled(ctx, utils.UTCNow(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, due.ID, runs[0].ID)
}

func TestRunRowRepositoryAcquireForDispatch(t *testing.T) {
	db, fixtures := setupRepoTest(t)
	ctx := context.Background()
	repo := repository.NewRunRowRepository(db.DB)

	_, rows := seedRunWithRows(t, fixtures, models.RunStatusRunning, 1)
	row := rows[0]

	acquired, err := repo.AcquireForDispatch(ctx, row.ID)
	require.NoError(t, err)
	assert.True(t, acquired)

	// A second cycle loses the race.
	acquired, err = repo.AcquireForDispatch(ctx, row.ID)
	require.NoError(t, err)
	assert.False(t, acquired)

	stored, err := repo.ByUUID(ctx, row.UUID.String())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.RowStatusCalling, stored.Status)
	assert.Equal(t, 1, stored.CallAttempts)

	require.NoError(t, repo.MarkDispatched(ctx, row.ID, "call_test_1"))
	stored, err = repo.ByUUID(ctx, row.UUID.String())
	require.NoError(t, err)
	require.NotNil(t, stored.ProviderCallID)
	assert.Equal(t, "call_test_1", *stored.ProviderCallID)
}

func TestRunRowRepositoryCompleteFromWebhook(t *testing.T) {
	db, fixtures := setupRepoTest(t)
	ctx := context.Background()
	repo := repository.NewRunRowRepository(db.DB)

	run, rows := seedRunWithRows(t, fixtures, models.RunStatusRunning, 1)
	row := rows[0]

	acquired, err := repo.AcquireForDispatch(ctx, row.ID)
	require.NoError(t, err)
	require.True(t, acquired)

	analysis := models.JSONMap{"patient_reached": true}
	postCallData := models.JSONMap{"call_status": "completed"}

	applied, err := repo.CompleteFromWebhook(ctx, row.ID, analysis, postCallData)
	require.NoError(t, err)
	assert.True(t, applied)

	// Redelivery finds the row already terminal.
	applied, err = repo.CompleteFromWebhook(ctx, row.ID, analysis, postCallData)
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repo.ByUUID(ctx, row.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusCompleted, stored.Status)
	assert.True(t, stored.Analysis.GetBool("patient_reached"))

	remaining, err := repo.CountByStatuses(ctx, run.ID, models.RowStatusPending, models.RowStatusCalling)
	require.NoError(t, err)
	assert.EqualValues(t, 0, remaining)
}

func TestRunRowRepositoryListPendingForDispatch(t *testing.T) {
	db, fixtures := setupRepoTest(t)
	ctx := context.Background()
	repo := repository.NewRunRowRepository(db.DB)

	run, rows := seedRunWithRows(t, fixtures, models.RunStatusRunning, 5)

	// Ineligible rows are never selected.
	require.NoError(t, db.DB.Model(&models.RunRow{}).Where("id = ?", rows[0].ID).Update("batch_eligible", false).Error)

	selected, err := repo.ListPendingForDispatch(ctx, run.ID, 3)
	require.NoError(t, err)
	require.Len(t, selected, 3)
	assert.Equal(t, rows[1].ID, selected[0].ID)
	assert.Equal(t, rows[2].ID, selected[1].ID)
	assert.Equal(t, rows[3].ID, selected[2].ID)

	selected, err = repo.ListPendingForDispatch(ctx, run.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestRunRowRepositoryListStuckCalling(t *testing.T) {
	db, fixtures := setupRepoTest(t)
	ctx := context.Background()
	repo := repository.NewRunRowRepository(db.DB)

	_, rows := seedRunWithRows(t, fixtures, models.RunStatusRunning, 2)

	for _, row := range rows {
		acquired, err := repo.AcquireForDispatch(ctx, row.ID)
		require.NoError(t, err)
		require.True(t, acquired)
	}

	stale := utils.UTCNow().Add(-10 * time.Minute)
	require.NoError(t, db.DB.Model(&models.RunRow{}).Where("id = ?", rows[0].ID).Update("updated_at", stale).Error)

	stuck, err := repo.ListStuckCalling(ctx, utils.UTCNow().Add(-5*time.Minute), 100)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, rows[0].ID, stuck[0].ID)

	require.NoError(t, repo.MarkFailed(ctx, stuck[0].ID, "timed out awaiting provider callback"))
	stored, err := repo.ByUUID(ctx, rows[0].UUID.String())
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusFailed, stored.Status)
	require.NotNil(t, stored.Error)
}

func TestCallRepositoryByProviderCallID(t *testing.T) {
	db, fixtures := setupRepoTest(t)
	ctx := context.Background()
	repo := repository.NewCallRepository(db.DB)

	run, rows := seedRunWithRows(t, fixtures, models.RunStatusRunning, 1)
	call, err := fixtures.CreateTestCall(run, rows[0], "call_test_42")
	require.NoError(t, err)

	stored, err := repo.ByProviderCallID(ctx, "call_test_42")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, call.UUID, stored.UUID)
	require.NotNil(t, stored.RunID)
	assert.Equal(t, run.ID, *stored.RunID)

	missing, err := repo.ByProviderCallID(ctx, "call_unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
