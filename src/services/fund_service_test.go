package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/zynbudget/backend/src/models"
	"github.com/username/zynbudget/backend/src/security/validation"
)

func newFundService(t *testing.T) (FundService, int64) {
	t.Helper()
	db := newTestDB(t)
	userID := seedUser(t, db, "owner")
	return NewFundService(db, nil), userID
}

func TestCreateFundRequiresMatchingDetails(t *testing.T) {
	svc, userID := newFundService(t)
	ftID := seedFundType(t, svc, userID)

	// RSA kind without rsa_details is rejected.
	err := svc.CreateFund(&models.Fund{
		UserID: userID, FundTypeID: ftID, Kind: models.FundKindRSA, Name: "bad",
	})
	require.Error(t, err)

	// Managed kind with rsa_details attached is rejected.
	err = svc.CreateFund(&models.Fund{
		UserID: userID, FundTypeID: ftID, Kind: models.FundKindManaged, Name: "bad",
		RSADetails:     &models.RSADetails{},
		ManagedDetails: &models.ManagedDetails{},
	})
	require.Error(t, err)

	err = svc.CreateFund(&models.Fund{
		UserID: userID, FundTypeID: ftID, Kind: "PENSION", Name: "bad",
	})
	require.Error(t, err)
}

func TestGetFundLoadsDetails(t *testing.T) {
	svc, userID := newFundService(t)
	ftID := seedFundType(t, svc, userID)
	created := seedRSAFund(t, svc, userID, ftID)

	fund, err := svc.GetFund(userID, created.ID)
	require.NoError(t, err)
	require.NotNil(t, fund.RSADetails)
	assert.Nil(t, fund.ManagedDetails)
	assert.Equal(t, models.FundKindRSA, fund.Kind)
	assert.Equal(t, "8", fund.RSADetails.EmployeeContributionRate.String())
	assert.Equal(t, "10", fund.RSADetails.EmployerContributionRate.String())

	// Another user cannot see the fund.
	_, err = svc.GetFund(userID+1, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFundTypesIncludesSystemTypes(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "owner")
	otherID := seedUser(t, db, "other")
	svc := NewFundService(db, nil)

	_, err := db.Exec(`
	INSERT INTO fund_types (user_id, name, category, is_system_type) VALUES (NULL, 'Equity', 'EQUITY', TRUE)`)
	require.NoError(t, err)
	require.NoError(t, svc.CreateFundType(userID, &models.FundType{Name: "Mine", Category: "PENSION"}))
	require.NoError(t, svc.CreateFundType(otherID, &models.FundType{Name: "Theirs", Category: "PENSION"}))

	types, err := svc.ListFundTypes(userID)
	require.NoError(t, err)
	require.Len(t, types, 2)

	names := []string{types[0].Name, types[1].Name}
	assert.Contains(t, names, "Equity")
	assert.Contains(t, names, "Mine")
}

func TestSystemFundTypesAreImmutable(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "owner")
	svc := NewFundService(db, nil)

	res, err := db.Exec(`
	INSERT INTO fund_types (user_id, name, category, is_system_type) VALUES (NULL, 'Equity', 'EQUITY', TRUE)`)
	require.NoError(t, err)
	sysID, _ := res.LastInsertId()

	err = svc.UpdateFundType(userID, &models.FundType{ID: sysID, Name: "Hacked", Category: "EQUITY"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.DeleteFundType(userID, sysID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRSAContributionLedger(t *testing.T) {
	svc, userID := newFundService(t)
	ftID := seedFundType(t, svc, userID)
	fund := seedRSAFund(t, svc, userID, ftID)

	for _, c := range []models.RSAContribution{
		{FundID: fund.ID, ContributionDate: "2026-01-31", ContributionType: "EMPLOYEE", Amount: models.MustAmount("500.00")},
		{FundID: fund.ID, ContributionDate: "2026-01-31", ContributionType: "EMPLOYER", Amount: models.MustAmount("600.00")},
		{FundID: fund.ID, ContributionDate: "2026-02-28", ContributionType: "VOLUNTARY", Amount: models.MustAmount("100.00")},
	} {
		c := c
		require.NoError(t, svc.AddRSAContribution(userID, &c))
	}

	list, err := svc.ListRSAContributions(userID, fund.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	// Newest first.
	assert.Equal(t, "2026-02-28", list[0].ContributionDate)

	total := models.ZeroAmount()
	for _, c := range list {
		total = models.AddAmounts(total, c.Amount)
	}
	assert.Equal(t, "1200", total.String())
}

func TestContributionsRejectedForManagedFund(t *testing.T) {
	svc, userID := newFundService(t)
	ftID := seedFundType(t, svc, userID)
	fund := seedManagedFund(t, svc, userID, ftID)

	err := svc.AddRSAContribution(userID, &models.RSAContribution{
		FundID: fund.ID, ContributionDate: "2026-01-31", ContributionType: "EMPLOYEE",
		Amount: models.MustAmount("500.00"),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContributionAmountMustBePositive(t *testing.T) {
	svc, userID := newFundService(t)
	ftID := seedFundType(t, svc, userID)
	fund := seedRSAFund(t, svc, userID, ftID)

	for _, amount := range []string{"0", "-25.00"} {
		err := svc.AddRSAContribution(userID, &models.RSAContribution{
			FundID: fund.ID, ContributionDate: "2026-01-31", ContributionType: "EMPLOYEE",
			Amount: models.MustAmount(amount),
		})
		assert.ErrorIs(t, err, validation.ErrValidationFailed)
	}
}

func TestRecordRSABalanceDuplicateDate(t *testing.T) {
	svc, userID := newFundService(t)
	ftID := seedFundType(t, svc, userID)
	fund := seedRSAFund(t, svc, userID, ftID)

	b := models.RSABalance{
		FundID: fund.ID, BalanceDate: "2026-01-31",
		MarketValue: models.MustAmount("1250.50"),
	}
	require.NoError(t, svc.RecordRSABalance(userID, &b))

	dup := models.RSABalance{
		FundID: fund.ID, BalanceDate: "2026-01-31",
		MarketValue: models.MustAmount("9999.99"),
	}
	err := svc.RecordRSABalance(userID, &dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateSnapshot)

	// A different date on the same fund is fine.
	next := models.RSABalance{FundID: fund.ID, BalanceDate: "2026-02-28"}
	assert.NoError(t, svc.RecordRSABalance(userID, &next))
}

func TestRecordManagedBalanceDuplicateDate(t *testing.T) {
	svc, userID := newFundService(t)
	ftID := seedFundType(t, svc, userID)
	fund := seedManagedFund(t, svc, userID, ftID)

	b := models.ManagedFundBalance{FundID: fund.ID, BalanceDate: "2026-01-31"}
	require.NoError(t, svc.RecordManagedBalance(userID, &b))

	dup := models.ManagedFundBalance{FundID: fund.ID, BalanceDate: "2026-01-31"}
	assert.ErrorIs(t, svc.RecordManagedBalance(userID, &dup), ErrDuplicateSnapshot)
}

func TestRecordPerformanceDuplicatePeriod(t *testing.T) {
	svc, userID := newFundService(t)
	ftID := seedFundType(t, svc, userID)
	fund := seedManagedFund(t, svc, userID, ftID)

	p := models.FundPerformance{
		FundID: fund.ID, PeriodType: "MONTHLY",
		PeriodStartDate: "2026-01-01", PeriodEndDate: "2026-01-31",
		ClosingNAV: models.MustAmount("52.10"),
	}
	require.NoError(t, svc.RecordPerformance(userID, &p))

	dup := p
	dup.ID = 0
	assert.ErrorIs(t, svc.RecordPerformance(userID, &dup), ErrDuplicateSnapshot)

	// Same dates under a different period type are a distinct snapshot.
	weekly := p
	weekly.ID = 0
	weekly.PeriodType = "WEEKLY"
	assert.NoError(t, svc.RecordPerformance(userID, &weekly))
}

func TestGetFundSummaryManaged(t *testing.T) {
	svc, userID := newFundService(t)
	ftID := seedFundType(t, svc, userID)
	fund := seedManagedFund(t, svc, userID, ftID)

	older := models.ManagedFundBalance{
		FundID: fund.ID, BalanceDate: "2026-01-31",
		MarketValue:   models.MustAmount("1000.00"),
		TotalInvested: models.MustAmount("1000.00"),
	}
	require.NoError(t, svc.RecordManagedBalance(userID, &older))

	latest := models.ManagedFundBalance{
		FundID: fund.ID, BalanceDate: "2026-02-28",
		MarketValue:            models.MustAmount("1140.00"),
		TotalInvested:          models.MustAmount("1000.00"),
		UnrealizedGainLoss:     models.MustAmount("150.00"),
		RealizedGainLoss:       models.MustAmount("-20.00"),
		TotalDividendsReceived: models.MustAmount("10.00"),
	}
	require.NoError(t, svc.RecordManagedBalance(userID, &latest))

	tx := models.ManagedFundTransaction{
		FundID: fund.ID, TransactionDate: "2026-01-05", TransactionType: "PURCHASE",
		Amount: models.MustAmount("1000.00"),
	}
	require.NoError(t, svc.AddManagedTransaction(userID, &tx))

	summary, err := svc.GetFundSummary(userID, fund.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-28", summary.LatestBalanceDate)
	assert.Equal(t, "1140", summary.MarketValue.String())
	assert.Equal(t, "140", summary.TotalReturn.String())
	assert.Equal(t, "14", summary.TotalReturnPct.String())
	assert.Equal(t, 1, summary.TransactionCount)
}

func TestDeleteFundSoftDisables(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "owner")
	svc := NewFundService(db, nil)
	ftID := seedFundType(t, svc, userID)
	fund := seedRSAFund(t, svc, userID, ftID)

	b := models.RSABalance{FundID: fund.ID, BalanceDate: "2026-01-31"}
	require.NoError(t, svc.RecordRSABalance(userID, &b))

	require.NoError(t, svc.DeleteFund(userID, fund.ID))

	// The row survives with is_active flipped off.
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM funds WHERE id = ?`, fund.ID).Scan(&count))
	assert.Equal(t, 1, count)

	got, err := svc.GetFund(userID, fund.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	// Ledger history is untouched.
	balances, err := svc.ListRSABalances(userID, fund.ID)
	require.NoError(t, err)
	assert.Len(t, balances, 1)
}

func TestUpdateFundOtherUser(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "owner")
	intruderID := seedUser(t, db, "intruder")
	svc := NewFundService(db, nil)
	ftID := seedFundType(t, svc, userID)
	fund := seedRSAFund(t, svc, userID, ftID)

	stolen := *fund
	stolen.UserID = intruderID
	stolen.Name = "Stolen"
	err := svc.UpdateFund(&stolen)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-user update: got %v, want ErrNotFound", err)
	}
}
