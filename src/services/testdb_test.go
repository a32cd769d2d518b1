package services

import (
	"database/sql"
	"os"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/username/zynbudget/backend/src/models"
)

// newTestDB opens an in-memory sqlite database with the real schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(on)")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../db/migrations/000001_init_schema.up.sql")
	if err != nil {
		t.Fatalf("reading schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return db
}

// seedUser inserts a bare user row and returns its id.
func seedUser(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()
	res, err := db.Exec(`
	INSERT INTO users (username, email, password) VALUES (?, ?, 'x')`,
		username, username+"@example.com")
	if err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

// seedFundType inserts a user-owned fund type and returns its id.
func seedFundType(t *testing.T, svc FundService, userID int64) int64 {
	t.Helper()
	ft := &models.FundType{Name: "Pension", Category: "PENSION"}
	if err := svc.CreateFundType(userID, ft); err != nil {
		t.Fatalf("seeding fund type: %v", err)
	}
	return ft.ID
}

// seedRSAFund creates an RSA fund with default details.
func seedRSAFund(t *testing.T, svc FundService, userID, fundTypeID int64) *models.Fund {
	t.Helper()
	fund := &models.Fund{
		UserID:     userID,
		FundTypeID: fundTypeID,
		Kind:       models.FundKindRSA,
		Name:       "My RSA",
		Currency:   "NGN",
		RSADetails: &models.RSADetails{
			EmployeeContributionRate: models.MustAmount("8"),
			EmployerContributionRate: models.MustAmount("10"),
			MonthlySalary:            models.MustAmount("250000"),
			RetirementAge:            60,
		},
	}
	if err := svc.CreateFund(fund); err != nil {
		t.Fatalf("seeding rsa fund: %v", err)
	}
	return fund
}

// seedManagedFund creates a managed fund with default details.
func seedManagedFund(t *testing.T, svc FundService, userID, fundTypeID int64) *models.Fund {
	t.Helper()
	fund := &models.Fund{
		UserID:     userID,
		FundTypeID: fundTypeID,
		Kind:       models.FundKindManaged,
		Name:       "Balanced Growth",
		Currency:   "USD",
		ManagedDetails: &models.ManagedDetails{
			InvestmentStrategy:     "BALANCED",
			TargetEquityPercentage: models.MustAmount("60"),
			TargetBondsPercentage:  models.MustAmount("30"),
			TargetCashPercentage:   models.MustAmount("10"),
			MinimumInvestment:      models.MustAmount("1000"),
			ReinvestDistributions:  true,
		},
	}
	if err := svc.CreateFund(fund); err != nil {
		t.Fatalf("seeding managed fund: %v", err)
	}
	return fund
}
