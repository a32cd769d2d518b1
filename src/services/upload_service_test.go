package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/zynbudget/backend/src/models"
)

func newUploadFixture(t *testing.T) (UploadService, FundService, int64, *models.Fund) {
	t.Helper()
	db := newTestDB(t)
	userID := seedUser(t, db, "owner")
	fundSvc := NewFundService(db, nil)
	ftID := seedFundType(t, fundSvc, userID)
	fund := seedRSAFund(t, fundSvc, userID, ftID)
	return NewUploadService(db, fundSvc), fundSvc, userID, fund
}

func TestProcessUploadHappyPath(t *testing.T) {
	uploadSvc, fundSvc, userID, fund := newUploadFixture(t)

	csvData := `contribution_date,contribution_type,amount
2026-01-31,EMPLOYEE,500.00
2026-01-31,EMPLOYER,600.00
2026-02-28,VOLUNTARY,100.00
`
	upload, err := uploadSvc.ProcessUpload(strings.NewReader(csvData), userID, fund.ID,
		models.UploadTypeRSAContributions, "jan.csv")
	require.NoError(t, err)

	assert.Equal(t, models.UploadStatusCompleted, upload.Status)
	assert.Equal(t, 3, upload.RecordsProcessed)
	assert.Equal(t, 0, upload.RecordsFailed)
	assert.Empty(t, upload.ErrorLog)
	assert.NotEmpty(t, upload.Reference)
	require.NotNil(t, upload.ProcessedAt)

	contributions, err := fundSvc.ListRSAContributions(userID, fund.ID)
	require.NoError(t, err)
	assert.Len(t, contributions, 3)
}

func TestProcessUploadPartialFailure(t *testing.T) {
	uploadSvc, fundSvc, userID, fund := newUploadFixture(t)

	// One good row, one bad enum, one duplicate snapshot date.
	csvData := `balance_date,market_value
2026-01-31,1000.00
bad-date,1100.00
2026-01-31,2000.00
`
	upload, err := uploadSvc.ProcessUpload(strings.NewReader(csvData), userID, fund.ID,
		models.UploadTypeRSABalances, "balances.csv")
	require.NoError(t, err)

	assert.Equal(t, models.UploadStatusCompleted, upload.Status)
	assert.Equal(t, 1, upload.RecordsProcessed)
	assert.Equal(t, 2, upload.RecordsFailed)
	assert.Contains(t, upload.ErrorLog, "bad-date")
	assert.Contains(t, upload.ErrorLog, "already exists")

	balances, err := fundSvc.ListRSABalances(userID, fund.ID)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "1000", balances[0].MarketValue.String())
}

func TestProcessUploadAllRowsFail(t *testing.T) {
	uploadSvc, _, userID, fund := newUploadFixture(t)

	csvData := `contribution_date,contribution_type,amount
bad,EMPLOYEE,500.00
2026-01-31,GIFT,600.00
`
	upload, err := uploadSvc.ProcessUpload(strings.NewReader(csvData), userID, fund.ID,
		models.UploadTypeRSAContributions, "bad.csv")
	require.NoError(t, err)

	assert.Equal(t, models.UploadStatusFailed, upload.Status)
	assert.Equal(t, 0, upload.RecordsProcessed)
	assert.Equal(t, 2, upload.RecordsFailed)
}

func TestProcessUploadBadHeaderFailsJob(t *testing.T) {
	uploadSvc, _, userID, fund := newUploadFixture(t)

	upload, err := uploadSvc.ProcessUpload(strings.NewReader("wrong,columns\n1,2\n"),
		userID, fund.ID, models.UploadTypeRSAContributions, "wrong.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParsingFailed)
	require.NotNil(t, upload)
	assert.Equal(t, models.UploadStatusFailed, upload.Status)
	assert.NotEmpty(t, upload.ErrorLog)
}

func TestProcessUploadKindMismatch(t *testing.T) {
	uploadSvc, _, userID, fund := newUploadFixture(t)

	// RSA fund cannot take managed-fund transactions.
	_, err := uploadSvc.ProcessUpload(strings.NewReader("x"), userID, fund.ID,
		models.UploadTypeManagedTransactions, "tx.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParsingFailed)
}

func TestProcessUploadUnknownTypeAndFund(t *testing.T) {
	uploadSvc, _, userID, fund := newUploadFixture(t)

	_, err := uploadSvc.ProcessUpload(strings.NewReader("x"), userID, fund.ID, "BANK_STATEMENT", "f.csv")
	require.Error(t, err)

	_, err = uploadSvc.ProcessUpload(strings.NewReader("x"), userID, fund.ID+99,
		models.UploadTypeRSAContributions, "f.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetryCreatesNewJobRow(t *testing.T) {
	uploadSvc, _, userID, fund := newUploadFixture(t)

	bad := "contribution_date,contribution_type,amount\nbad,EMPLOYEE,1\n"
	first, err := uploadSvc.ProcessUpload(strings.NewReader(bad), userID, fund.ID,
		models.UploadTypeRSAContributions, "retry.csv")
	require.NoError(t, err)
	require.Equal(t, models.UploadStatusFailed, first.Status)

	good := "contribution_date,contribution_type,amount\n2026-01-31,EMPLOYEE,1\n"
	second, err := uploadSvc.ProcessUpload(strings.NewReader(good), userID, fund.ID,
		models.UploadTypeRSAContributions, "retry.csv")
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusCompleted, second.Status)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.Reference, second.Reference)

	// The failed job keeps its terminal state.
	reloaded, err := uploadSvc.GetUpload(userID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusFailed, reloaded.Status)

	uploads, err := uploadSvc.ListUploads(userID)
	require.NoError(t, err)
	assert.Len(t, uploads, 2)
}

func TestGetUploadScopedToOwner(t *testing.T) {
	uploadSvc, _, userID, fund := newUploadFixture(t)

	good := "contribution_date,contribution_type,amount\n2026-01-31,EMPLOYEE,1\n"
	upload, err := uploadSvc.ProcessUpload(strings.NewReader(good), userID, fund.ID,
		models.UploadTypeRSAContributions, "mine.csv")
	require.NoError(t, err)

	_, err = uploadSvc.GetUpload(userID+1, upload.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
