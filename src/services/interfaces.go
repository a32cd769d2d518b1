package services

import (
	"errors"
	"io"

	"github.com/username/zynbudget/backend/src/models"
)

// Common service errors. Handlers translate these into HTTP statuses:
// ErrNotFound -> 404, ErrDuplicateSnapshot -> 409, ErrParsingFailed -> 400.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateSnapshot = errors.New("a snapshot for this fund and period already exists")
	ErrParsingFailed     = errors.New("csv parsing failed")
	ErrProcessingFailed  = errors.New("upload processing failed")
)

// FundSummary aggregates the latest state of one fund for dashboard views.
type FundSummary struct {
	Fund              models.Fund             `json:"fund"`
	LatestBalanceDate string                  `json:"latest_balance_date,omitempty"`
	MarketValue       models.Amount           `json:"market_value"`
	TotalInvested     models.Amount           `json:"total_invested"`
	TotalReturn       models.Amount           `json:"total_return"`
	TotalReturnPct    models.Amount           `json:"total_return_percentage"`
	ContributionCount int                     `json:"contribution_count,omitempty"`
	TransactionCount  int                     `json:"transaction_count,omitempty"`
	LatestPerformance *models.FundPerformance `json:"latest_performance,omitempty"`
}

// FundService is the core ledger API: fund catalog entities, the
// per-specialization ledgers, and point-in-time snapshots.
type FundService interface {
	// Catalog
	CreateFundType(userID int64, ft *models.FundType) error
	ListFundTypes(userID int64) ([]models.FundType, error)
	UpdateFundType(userID int64, ft *models.FundType) error
	DeleteFundType(userID, fundTypeID int64) error

	CreateFundManager(userID int64, fm *models.FundManager) error
	ListFundManagers(userID int64) ([]models.FundManager, error)
	UpdateFundManager(userID int64, fm *models.FundManager) error
	DeleteFundManager(userID, fundManagerID int64) error

	// Funds and their kind-specific detail rows
	CreateFund(fund *models.Fund) error
	GetFund(userID, fundID int64) (*models.Fund, error)
	ListFunds(userID int64) ([]models.Fund, error)
	UpdateFund(fund *models.Fund) error
	DeleteFund(userID, fundID int64) error

	// RSA ledger
	AddRSAContribution(userID int64, c *models.RSAContribution) error
	ListRSAContributions(userID, fundID int64) ([]models.RSAContribution, error)
	RecordRSABalance(userID int64, b *models.RSABalance) error
	ListRSABalances(userID, fundID int64) ([]models.RSABalance, error)

	// Managed fund ledger
	AddManagedTransaction(userID int64, tx *models.ManagedFundTransaction) error
	ListManagedTransactions(userID, fundID int64) ([]models.ManagedFundTransaction, error)
	RecordManagedBalance(userID int64, b *models.ManagedFundBalance) error
	ListManagedBalances(userID, fundID int64) ([]models.ManagedFundBalance, error)

	// Performance snapshots
	RecordPerformance(userID int64, p *models.FundPerformance) error
	ListPerformance(userID, fundID int64) ([]models.FundPerformance, error)

	// Aggregation
	GetFundSummary(userID, fundID int64) (*FundSummary, error)
	InvalidateUserCache(userID int64)
}

// UploadService drives the bulk CSV import pipeline and its job rows.
type UploadService interface {
	ProcessUpload(fileReader io.Reader, userID int64, fundID int64, uploadType, filename string) (*models.FundDataUpload, error)
	GetUpload(userID, uploadID int64) (*models.FundDataUpload, error)
	ListUploads(userID int64) ([]models.FundDataUpload, error)
}

// EmailService sends transactional mail (verification, password reset).
type EmailService interface {
	SendVerificationEmail(toEmail, username, token string) error
	SendPasswordResetEmail(toEmail, username, token string) error
}
