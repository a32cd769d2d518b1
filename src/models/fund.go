package models

import "time"

// Fund kinds. A fund row carries exactly one specialization matching its kind.
const (
	FundKindRSA     = "RSA"
	FundKindManaged = "MANAGED"
)

// Fund type categories, matching the seeded system-wide definitions.
var FundCategories = []string{
	"RSA", "MANAGED", "EQUITY", "BOND", "MONEY_MARKET",
	"BALANCED", "INDEX", "ETF", "MUTUAL", "HEDGE",
}

var RiskLevels = []string{"LOW", "MEDIUM_LOW", "MEDIUM", "MEDIUM_HIGH", "HIGH"}

var ContributionTypes = []string{"EMPLOYEE", "EMPLOYER", "VOLUNTARY", "TRANSFER"}

var TransactionTypes = []string{
	"PURCHASE", "REDEMPTION", "SWITCH_IN", "SWITCH_OUT",
	"DIVIDEND", "CAPITAL_GAIN", "FEE",
}

var InvestmentStrategies = []string{
	"GROWTH", "VALUE", "INCOME", "BALANCED", "AGGRESSIVE", "CONSERVATIVE", "INDEX",
}

var PerformancePeriodTypes = []string{"DAILY", "WEEKLY", "MONTHLY", "QUARTERLY", "YEARLY"}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func IsValidFundKind(s string) bool          { return s == FundKindRSA || s == FundKindManaged }
func IsValidFundCategory(s string) bool      { return contains(FundCategories, s) }
func IsValidRiskLevel(s string) bool         { return contains(RiskLevels, s) }
func IsValidContributionType(s string) bool  { return contains(ContributionTypes, s) }
func IsValidTransactionType(s string) bool   { return contains(TransactionTypes, s) }
func IsValidStrategy(s string) bool          { return contains(InvestmentStrategies, s) }
func IsValidPerformancePeriod(s string) bool { return contains(PerformancePeriodTypes, s) }

// FundType defines a category of fund. Rows with UserID == nil are
// system-wide definitions shared by all accounts.
type FundType struct {
	ID           int64     `json:"id"`
	UserID       *int64    `json:"user_id,omitempty"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Description  string    `json:"description,omitempty"`
	IsSystemType bool      `json:"is_system_type"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FundManager is a fund management company owned by one account.
type FundManager struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	Name               string    `json:"name"`
	Code               string    `json:"code,omitempty"`
	RegistrationNumber string    `json:"registration_number,omitempty"`
	ContactPerson      string    `json:"contact_person,omitempty"`
	Email              string    `json:"email,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	Website            string    `json:"website,omitempty"`
	Address            string    `json:"address,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Fund is the base entity for both fund kinds. Exactly one of RSADetails /
// ManagedDetails is set, matching Kind. Funds are never hard-deleted through
// the API; IsActive soft-disables them.
type Fund struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"user_id"`
	FundTypeID    int64  `json:"fund_type_id"`
	FundManagerID *int64 `json:"fund_manager_id,omitempty"`
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	FundCode      string `json:"fund_code,omitempty"`
	ISIN          string `json:"isin,omitempty"`
	InceptionDate string `json:"inception_date,omitempty"`
	Currency      string `json:"currency"`
	RiskLevel     string `json:"risk_level,omitempty"`

	ManagementFeePercentage  Amount `json:"management_fee_percentage"`
	PerformanceFeePercentage Amount `json:"performance_fee_percentage"`
	EntryFeePercentage       Amount `json:"entry_fee_percentage"`
	ExitFeePercentage        Amount `json:"exit_fee_percentage"`

	Description         string    `json:"description,omitempty"`
	InvestmentObjective string    `json:"investment_objective,omitempty"`
	Benchmark           string    `json:"benchmark,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	RSADetails     *RSADetails     `json:"rsa_details,omitempty"`
	ManagedDetails *ManagedDetails `json:"managed_details,omitempty"`
}

// RSADetails holds the retirement-savings specialization of a Fund.
type RSADetails struct {
	FundID                   int64  `json:"fund_id"`
	RSAPin                   string `json:"rsa_pin,omitempty"`
	PFAName                  string `json:"pfa_name,omitempty"`
	PFACode                  string `json:"pfa_code,omitempty"`
	EmployeeContributionRate Amount `json:"employee_contribution_rate"`
	EmployerContributionRate Amount `json:"employer_contribution_rate"`
	EmployerName             string `json:"employer_name,omitempty"`
	MonthlySalary            Amount `json:"monthly_salary"`
	RetirementAge            int    `json:"retirement_age"`
	ExpectedRetirementDate   string `json:"expected_retirement_date,omitempty"`
}

// ManagedDetails holds the managed-investment specialization of a Fund.
type ManagedDetails struct {
	FundID                       int64  `json:"fund_id"`
	InvestmentStrategy           string `json:"investment_strategy,omitempty"`
	TargetEquityPercentage       Amount `json:"target_equity_percentage"`
	TargetBondsPercentage        Amount `json:"target_bonds_percentage"`
	TargetCashPercentage         Amount `json:"target_cash_percentage"`
	TargetAlternativesPercentage Amount `json:"target_alternatives_percentage"`
	MinimumInvestment            Amount `json:"minimum_investment"`
	MinimumAdditionalInvestment  Amount `json:"minimum_additional_investment"`
	DistributionFrequency        string `json:"distribution_frequency,omitempty"`
	ReinvestDistributions        bool   `json:"reinvest_distributions"`
}

// RSAContribution is one append-only contribution log row under an RSA fund.
type RSAContribution struct {
	ID               int64     `json:"id"`
	FundID           int64     `json:"fund_id"`
	ContributionDate string    `json:"contribution_date"`
	ContributionType string    `json:"contribution_type"`
	Amount           Amount    `json:"amount"`
	UnitsPurchased   Amount    `json:"units_purchased"`
	NAVPerUnit       Amount    `json:"nav_per_unit"`
	ReferenceNumber  string    `json:"reference_number,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// RSABalance is a dated snapshot of RSA fund state. At most one row exists
// per (fund, date); the rest is supplied by periodic uploads, not derived
// from the contribution log.
type RSABalance struct {
	ID                          int64     `json:"id"`
	FundID                      int64     `json:"fund_id"`
	BalanceDate                 string    `json:"balance_date"`
	TotalEmployeeContributions  Amount    `json:"total_employee_contributions"`
	TotalEmployerContributions  Amount    `json:"total_employer_contributions"`
	TotalVoluntaryContributions Amount    `json:"total_voluntary_contributions"`
	TotalUnits                  Amount    `json:"total_units"`
	NAVPerUnit                  Amount    `json:"nav_per_unit"`
	MarketValue                 Amount    `json:"market_value"`
	InvestmentReturns           Amount    `json:"investment_returns"`
	CumulativeReturns           Amount    `json:"cumulative_returns"`
	ManagementFeesPaid          Amount    `json:"management_fees_paid"`
	Notes                       string    `json:"notes,omitempty"`
	CreatedAt                   time.Time `json:"created_at"`
}

// TotalContributions sums the three contribution buckets exactly.
func (b *RSABalance) TotalContributions() Amount {
	return AddAmounts(
		b.TotalEmployeeContributions,
		b.TotalEmployerContributions,
		b.TotalVoluntaryContributions,
	)
}

// ManagedFundTransaction is one append-only transaction log row under a
// managed fund. Amount is positive for inflows and negative for outflows.
type ManagedFundTransaction struct {
	ID              int64     `json:"id"`
	FundID          int64     `json:"fund_id"`
	TransactionDate string    `json:"transaction_date"`
	TransactionType string    `json:"transaction_type"`
	Amount          Amount    `json:"amount"`
	Units           Amount    `json:"units"`
	PricePerUnit    Amount    `json:"price_per_unit"`
	FeesPaid        Amount    `json:"fees_paid"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ManagedFundBalance is a dated snapshot of managed fund state, unique per
// (fund, date).
type ManagedFundBalance struct {
	ID                     int64     `json:"id"`
	FundID                 int64     `json:"fund_id"`
	BalanceDate            string    `json:"balance_date"`
	TotalUnits             Amount    `json:"total_units"`
	NAVPerUnit             Amount    `json:"nav_per_unit"`
	MarketValue            Amount    `json:"market_value"`
	TotalInvested          Amount    `json:"total_invested"`
	TotalFeesPaid          Amount    `json:"total_fees_paid"`
	UnrealizedGainLoss     Amount    `json:"unrealized_gain_loss"`
	RealizedGainLoss       Amount    `json:"realized_gain_loss"`
	TotalDividendsReceived Amount    `json:"total_dividends_received"`

	ActualEquityPercentage       Amount `json:"actual_equity_percentage"`
	ActualBondsPercentage        Amount `json:"actual_bonds_percentage"`
	ActualCashPercentage         Amount `json:"actual_cash_percentage"`
	ActualAlternativesPercentage Amount `json:"actual_alternatives_percentage"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TotalReturn is unrealized + realized gains plus dividends, computed
// exactly on every call.
func (b *ManagedFundBalance) TotalReturn() Amount {
	return AddAmounts(b.UnrealizedGainLoss, b.RealizedGainLoss, b.TotalDividendsReceived)
}

// TotalReturnPercentage is the total return over invested capital, rounded
// to 2 decimal places. Funds with no invested capital report 0.00 rather
// than faulting on the division.
func (b *ManagedFundBalance) TotalReturnPercentage() Amount {
	if !b.TotalInvested.IsPositive() {
		return ZeroAmount()
	}
	pct := b.TotalReturn().Div(b.TotalInvested.Decimal).Mul(hundred).Round(2)
	return Amount{pct}
}

// FundPerformance is a per-period performance snapshot, unique per
// (fund, period type, period start, period end).
type FundPerformance struct {
	ID              int64  `json:"id"`
	FundID          int64  `json:"fund_id"`
	PeriodType      string `json:"period_type"`
	PeriodStartDate string `json:"period_start_date"`
	PeriodEndDate   string `json:"period_end_date"`

	OpeningNAV Amount `json:"opening_nav"`
	ClosingNAV Amount `json:"closing_nav"`
	HighNAV    Amount `json:"high_nav"`
	LowNAV     Amount `json:"low_nav"`

	PeriodReturnPercentage     Amount `json:"period_return_percentage"`
	YTDReturnPercentage        Amount `json:"ytd_return_percentage"`
	AnnualizedReturnPercentage Amount `json:"annualized_return_percentage"`
	Volatility                 Amount `json:"volatility"`
	SharpeRatio                Amount `json:"sharpe_ratio"`
	BenchmarkReturnPercentage  Amount `json:"benchmark_return_percentage"`
	Alpha                      Amount `json:"alpha"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
