package funddata

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/zynbudget/backend/src/models"
	"github.com/username/zynbudget/backend/src/security/validation"
)

// RowError records why one CSV line was rejected. Line numbers are 1-based
// and include the header row, matching what users see in a spreadsheet.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParseResult carries the typed rows parsed from one file. Only the slice
// matching the upload type is populated; rejected lines land in RowErrors.
type ParseResult struct {
	Contributions   []models.RSAContribution
	RSABalances     []models.RSABalance
	Transactions    []models.ManagedFundTransaction
	ManagedBalances []models.ManagedFundBalance
	Performance     []models.FundPerformance
	RowErrors       []RowError
}

// Parsed returns the number of rows successfully converted.
func (r *ParseResult) Parsed() int {
	return len(r.Contributions) + len(r.RSABalances) + len(r.Transactions) +
		len(r.ManagedBalances) + len(r.Performance)
}

// Parser converts bulk-upload CSV files into ledger rows. Files are
// header-addressed: column order does not matter, header names do.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// requiredColumns lists the headers that must be present per upload type.
// Optional columns are read when present and default otherwise.
var requiredColumns = map[string][]string{
	models.UploadTypeRSAContributions:    {"contribution_date", "contribution_type", "amount"},
	models.UploadTypeRSABalances:         {"balance_date", "market_value"},
	models.UploadTypeManagedTransactions: {"transaction_date", "transaction_type", "amount"},
	models.UploadTypeManagedBalances:     {"balance_date", "market_value", "total_invested"},
	models.UploadTypeFundPerformance:     {"period_type", "period_start_date", "period_end_date", "closing_nav"},
}

// Parse reads the whole file for the given upload type. A malformed header
// or unreadable file fails the parse outright; malformed data rows are
// collected as RowErrors and do not abort the rest of the file.
func (p *Parser) Parse(uploadType string, file io.Reader) (*ParseResult, error) {
	required, ok := requiredColumns[uploadType]
	if !ok {
		return nil, fmt.Errorf("unsupported upload type %q", uploadType)
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	result := &ParseResult{}
	line := 1
	for {
		record, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Line: line, Message: err.Error()})
			continue
		}
		if isBlankRecord(record) {
			continue
		}

		row := rowReader{cols: cols, record: record}
		var rowErr error
		switch uploadType {
		case models.UploadTypeRSAContributions:
			var c models.RSAContribution
			if c, rowErr = parseContribution(row); rowErr == nil {
				result.Contributions = append(result.Contributions, c)
			}
		case models.UploadTypeRSABalances:
			var b models.RSABalance
			if b, rowErr = parseRSABalance(row); rowErr == nil {
				result.RSABalances = append(result.RSABalances, b)
			}
		case models.UploadTypeManagedTransactions:
			var t models.ManagedFundTransaction
			if t, rowErr = parseTransaction(row); rowErr == nil {
				result.Transactions = append(result.Transactions, t)
			}
		case models.UploadTypeManagedBalances:
			var b models.ManagedFundBalance
			if b, rowErr = parseManagedBalance(row); rowErr == nil {
				result.ManagedBalances = append(result.ManagedBalances, b)
			}
		case models.UploadTypeFundPerformance:
			var perf models.FundPerformance
			if perf, rowErr = parsePerformance(row); rowErr == nil {
				result.Performance = append(result.Performance, perf)
			}
		}
		if rowErr != nil {
			result.RowErrors = append(result.RowErrors, RowError{Line: line, Message: rowErr.Error()})
		}
	}
	return result, nil
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// rowReader addresses one record by header name; missing optional columns
// read as empty strings.
type rowReader struct {
	cols   map[string]int
	record []string
}

func (r rowReader) get(name string) string {
	idx, ok := r.cols[name]
	if !ok || idx >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[idx])
}

func (r rowReader) date(name string) (string, error) {
	t, err := validation.ValidateDateString(r.get(name), name)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}

func (r rowReader) amount(name string, allowNegative bool) (models.Amount, error) {
	dec, err := validation.ValidateDecimalString(r.get(name), name, allowNegative)
	if err != nil {
		return models.ZeroAmount(), err
	}
	return models.Amount{Decimal: dec}, nil
}

// notes cleans free text coming out of a spreadsheet: control characters and
// HTML are stripped, and formula triggers are neutralized so the value is
// safe if it ever lands in a CSV export again.
func (r rowReader) notes() string {
	s := validation.StripUnprintable(r.get("notes"))
	return validation.SanitizeForFormulaInjection(validation.SanitizeText(s))
}

func parseContribution(r rowReader) (models.RSAContribution, error) {
	var c models.RSAContribution
	var err error

	if c.ContributionDate, err = r.date("contribution_date"); err != nil {
		return c, err
	}
	c.ContributionType = strings.ToUpper(r.get("contribution_type"))
	if !models.IsValidContributionType(c.ContributionType) {
		return c, fmt.Errorf("invalid contribution_type %q", r.get("contribution_type"))
	}
	if c.Amount, err = r.amount("amount", false); err != nil {
		return c, err
	}
	if c.UnitsPurchased, err = r.amount("units_purchased", false); err != nil {
		return c, err
	}
	if c.NAVPerUnit, err = r.amount("nav_per_unit", false); err != nil {
		return c, err
	}
	c.ReferenceNumber = r.get("reference_number")
	if err = validation.ValidateReference(c.ReferenceNumber); err != nil {
		return c, err
	}
	c.Notes = r.notes()
	return c, nil
}

func parseRSABalance(r rowReader) (models.RSABalance, error) {
	var b models.RSABalance
	var err error

	if b.BalanceDate, err = r.date("balance_date"); err != nil {
		return b, err
	}
	if b.TotalEmployeeContributions, err = r.amount("total_employee_contributions", false); err != nil {
		return b, err
	}
	if b.TotalEmployerContributions, err = r.amount("total_employer_contributions", false); err != nil {
		return b, err
	}
	if b.TotalVoluntaryContributions, err = r.amount("total_voluntary_contributions", false); err != nil {
		return b, err
	}
	if b.TotalUnits, err = r.amount("total_units", false); err != nil {
		return b, err
	}
	if b.NAVPerUnit, err = r.amount("nav_per_unit", false); err != nil {
		return b, err
	}
	if b.MarketValue, err = r.amount("market_value", false); err != nil {
		return b, err
	}
	if b.InvestmentReturns, err = r.amount("investment_returns", true); err != nil {
		return b, err
	}
	if b.CumulativeReturns, err = r.amount("cumulative_returns", true); err != nil {
		return b, err
	}
	if b.ManagementFeesPaid, err = r.amount("management_fees_paid", false); err != nil {
		return b, err
	}
	b.Notes = r.notes()
	return b, nil
}

func parseTransaction(r rowReader) (models.ManagedFundTransaction, error) {
	var t models.ManagedFundTransaction
	var err error

	if t.TransactionDate, err = r.date("transaction_date"); err != nil {
		return t, err
	}
	t.TransactionType = strings.ToUpper(r.get("transaction_type"))
	if !models.IsValidTransactionType(t.TransactionType) {
		return t, fmt.Errorf("invalid transaction_type %q", r.get("transaction_type"))
	}
	// Outflows carry negative amounts, so negatives are allowed here.
	if t.Amount, err = r.amount("amount", true); err != nil {
		return t, err
	}
	if t.Units, err = r.amount("units", true); err != nil {
		return t, err
	}
	if t.PricePerUnit, err = r.amount("price_per_unit", false); err != nil {
		return t, err
	}
	if t.FeesPaid, err = r.amount("fees_paid", false); err != nil {
		return t, err
	}
	t.ReferenceNumber = r.get("reference_number")
	if err = validation.ValidateReference(t.ReferenceNumber); err != nil {
		return t, err
	}
	t.Notes = r.notes()
	return t, nil
}

func parseManagedBalance(r rowReader) (models.ManagedFundBalance, error) {
	var b models.ManagedFundBalance
	var err error

	if b.BalanceDate, err = r.date("balance_date"); err != nil {
		return b, err
	}
	if b.TotalUnits, err = r.amount("total_units", false); err != nil {
		return b, err
	}
	if b.NAVPerUnit, err = r.amount("nav_per_unit", false); err != nil {
		return b, err
	}
	if b.MarketValue, err = r.amount("market_value", false); err != nil {
		return b, err
	}
	if b.TotalInvested, err = r.amount("total_invested", false); err != nil {
		return b, err
	}
	if b.TotalFeesPaid, err = r.amount("total_fees_paid", false); err != nil {
		return b, err
	}
	if b.UnrealizedGainLoss, err = r.amount("unrealized_gain_loss", true); err != nil {
		return b, err
	}
	if b.RealizedGainLoss, err = r.amount("realized_gain_loss", true); err != nil {
		return b, err
	}
	if b.TotalDividendsReceived, err = r.amount("total_dividends_received", false); err != nil {
		return b, err
	}
	if b.ActualEquityPercentage, err = r.amount("actual_equity_percentage", false); err != nil {
		return b, err
	}
	if b.ActualBondsPercentage, err = r.amount("actual_bonds_percentage", false); err != nil {
		return b, err
	}
	if b.ActualCashPercentage, err = r.amount("actual_cash_percentage", false); err != nil {
		return b, err
	}
	if b.ActualAlternativesPercentage, err = r.amount("actual_alternatives_percentage", false); err != nil {
		return b, err
	}
	b.Notes = r.notes()
	return b, nil
}

func parsePerformance(r rowReader) (models.FundPerformance, error) {
	var p models.FundPerformance
	var err error

	p.PeriodType = strings.ToUpper(r.get("period_type"))
	if !models.IsValidPerformancePeriod(p.PeriodType) {
		return p, fmt.Errorf("invalid period_type %q", r.get("period_type"))
	}
	if p.PeriodStartDate, err = r.date("period_start_date"); err != nil {
		return p, err
	}
	if p.PeriodEndDate, err = r.date("period_end_date"); err != nil {
		return p, err
	}
	if p.PeriodEndDate < p.PeriodStartDate {
		return p, fmt.Errorf("period_end_date %s precedes period_start_date %s", p.PeriodEndDate, p.PeriodStartDate)
	}
	if p.OpeningNAV, err = r.amount("opening_nav", false); err != nil {
		return p, err
	}
	if p.ClosingNAV, err = r.amount("closing_nav", false); err != nil {
		return p, err
	}
	if p.HighNAV, err = r.amount("high_nav", false); err != nil {
		return p, err
	}
	if p.LowNAV, err = r.amount("low_nav", false); err != nil {
		return p, err
	}
	if p.PeriodReturnPercentage, err = r.amount("period_return_percentage", true); err != nil {
		return p, err
	}
	if p.YTDReturnPercentage, err = r.amount("ytd_return_percentage", true); err != nil {
		return p, err
	}
	if p.AnnualizedReturnPercentage, err = r.amount("annualized_return_percentage", true); err != nil {
		return p, err
	}
	if p.Volatility, err = r.amount("volatility", false); err != nil {
		return p, err
	}
	if p.SharpeRatio, err = r.amount("sharpe_ratio", true); err != nil {
		return p, err
	}
	if p.BenchmarkReturnPercentage, err = r.amount("benchmark_return_percentage", true); err != nil {
		return p, err
	}
	if p.Alpha, err = r.amount("alpha", true); err != nil {
		return p, err
	}
	p.Notes = r.notes()
	return p, nil
}
