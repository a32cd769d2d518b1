package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/zynbudget/backend/src/models"
	"github.com/username/zynbudget/backend/src/security/validation"
)

// Ledger endpoints live on FundHandler as well; they all resolve the fund
// from the URL and defer ownership and kind checks to the service layer.

type contributionRequest struct {
	ContributionDate string `json:"contribution_date"`
	ContributionType string `json:"contribution_type"`
	Amount           string `json:"amount"`
	UnitsPurchased   string `json:"units_purchased"`
	NAVPerUnit       string `json:"nav_per_unit"`
	ReferenceNumber  string `json:"reference_number"`
	Notes            string `json:"notes"`
}

func (h *FundHandler) AddRSAContribution(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	fundID, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	var req contributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	date, err := validation.ValidateDateString(req.ContributionDate, "contribution_date")
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctype := strings.ToUpper(strings.TrimSpace(req.ContributionType))
	if !models.IsValidContributionType(ctype) {
		sendJSONError(w, "invalid contribution type", http.StatusBadRequest)
		return
	}
	amount, err := validation.ValidateDecimalString(req.Amount, "amount", false)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	units, err := validation.ValidateDecimalString(req.UnitsPurchased, "units_purchased", false)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	nav, err := validation.ValidateDecimalString(req.NAVPerUnit, "nav_per_unit", false)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateReference(req.ReferenceNumber); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	c := models.RSAContribution{
		FundID:           fundID,
		ContributionDate: date.Format("2006-01-02"),
		ContributionType: ctype,
		Amount:           models.Amount{Decimal: amount},
		UnitsPurchased:   models.Amount{Decimal: units},
		NAVPerUnit:       models.Amount{Decimal: nav},
		ReferenceNumber:  strings.TrimSpace(req.ReferenceNumber),
		Notes:            validation.SanitizeText(req.Notes),
	}
	if err := h.fundService.AddRSAContribution(userID, &c); err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, c, http.StatusCreated)
}

func (h *FundHandler) ListRSAContributions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	fundID, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	contributions, err := h.fundService.ListRSAContributions(userID, fundID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, contributions, http.StatusOK)
}

type rsaBalanceRequest struct {
	BalanceDate                 string `json:"balance_date"`
	TotalEmployeeContributions  string `json:"total_employee_contributions"`
	TotalEmployerContributions  string `json:"total_employer_contributions"`
	TotalVoluntaryContributions string `json:"total_voluntary_contributions"`
	TotalUnits                  string `json:"total_units"`
	NAVPerUnit                  string `json:"nav_per_unit"`
	MarketValue                 string `json:"market_value"`
	InvestmentReturns           string `json:"investment_returns"`
	CumulativeReturns           string `json:"cumulative_returns"`
	ManagementFeesPaid          string `json:"management_fees_paid"`
	Notes                       string `json:"notes"`
}

func (h *FundHandler) RecordRSABalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	fundID, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	var req rsaBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	date, err := validation.ValidateDateString(req.BalanceDate, "balance_date")
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	b := models.RSABalance{
		FundID:      fundID,
		BalanceDate: date.Format("2006-01-02"),
		Notes:       validation.SanitizeText(req.Notes),
	}
	fields := []struct {
		value         string
		name          string
		dst           *models.Amount
		allowNegative bool
	}{
		{req.TotalEmployeeContributions, "total_employee_contributions", &b.TotalEmployeeContributions, false},
		{req.TotalEmployerContributions, "total_employer_contributions", &b.TotalEmployerContributions, false},
		{req.TotalVoluntaryContributions, "total_voluntary_contributions", &b.TotalVoluntaryContributions, false},
		{req.TotalUnits, "total_units", &b.TotalUnits, false},
		{req.NAVPerUnit, "nav_per_unit", &b.NAVPerUnit, false},
		{req.MarketValue, "market_value", &b.MarketValue, false},
		{req.InvestmentReturns, "investment_returns", &b.InvestmentReturns, true},
		{req.CumulativeReturns, "cumulative_returns", &b.CumulativeReturns, true},
		{req.ManagementFeesPaid, "management_fees_paid", &b.ManagementFeesPaid, false},
	}
	for _, f := range fields {
		d, err := validation.ValidateDecimalString(f.value, f.name, f.allowNegative)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		*f.dst = models.Amount{Decimal: d}
	}

	if err := h.fundService.RecordRSABalance(userID, &b); err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, b, http.StatusCreated)
}

func (h *FundHandler) ListRSABalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	fundID, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	balances, err := h.fundService.ListRSABalances(userID, fundID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, balances, http.StatusOK)
}

type transactionRequest struct {
	TransactionDate string `json:"transaction_date"`
	TransactionType string `json:"transaction_type"`
	Amount          string `json:"amount"`
	Units           string `json:"units"`
	PricePerUnit    string `json:"price_per_unit"`
	FeesPaid        string `json:"fees_paid"`
	ReferenceNumber string `json:"reference_number"`
	Notes           string `json:"notes"`
}

func (h *FundHandler) AddManagedTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	fundID, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	date, err := validation.ValidateDateString(req.TransactionDate, "transaction_date")
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	ttype := strings.ToUpper(strings.TrimSpace(req.TransactionType))
	if !models.IsValidTransactionType(ttype) {
		sendJSONError(w, "invalid transaction type", http.StatusBadRequest)
		return
	}
	// Outflow rows carry negative amounts, so negatives are legal here.
	amount, err := validation.ValidateDecimalString(req.Amount, "amount", true)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	units, err := validation.ValidateDecimalString(req.Units, "units", true)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	price, err := validation.ValidateDecimalString(req.PricePerUnit, "price_per_unit", false)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	fees, err := validation.ValidateDecimalString(req.FeesPaid, "fees_paid", false)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateReference(req.ReferenceNumber); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx := models.ManagedFundTransaction{
		FundID:          fundID,
		TransactionDate: date.Format("2006-01-02"),
		TransactionType: ttype,
		Amount:          models.Amount{Decimal: amount},
		Units:           models.Amount{Decimal: units},
		PricePerUnit:    models.Amount{Decimal: price},
		FeesPaid:        models.Amount{Decimal: fees},
		ReferenceNumber: strings.TrimSpace(req.ReferenceNumber),
		Notes:           validation.SanitizeText(req.Notes),
	}
	if err := h.fundService.AddManagedTransaction(userID, &tx); err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, tx, http.StatusCreated)
}

func (h *FundHandler) ListManagedTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	fundID, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	transactions, err := h.fundService.ListManagedTransactions(userID, fundID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, transactions, http.StatusOK)
}

type managedBalanceRequest struct {
	BalanceDate            string `json:"balance_date"`
	TotalUnits             string `json:"total_units"`
	NAVPerUnit             string `json:"nav_per_unit"`
	MarketValue            string `json:"market_value"`
	TotalInvested          string `json:"total_invested"`
	TotalFeesPaid          string `json:"total_fees_paid"`
	UnrealizedGainLoss     string `json:"unrealized_gain_loss"`
	RealizedGainLoss       string `json:"realized_gain_loss"`
	TotalDividendsReceived string `json:"total_dividends_received"`

	ActualEquityPercentage       string `json:"actual_equity_percentage"`
	ActualBondsPercentage        string `json:"actual_bonds_percentage"`
	ActualCashPercentage         string `json:"actual_cash_percentage"`
	ActualAlternativesPercentage string `json:"actual_alternatives_percentage"`

	Notes string `json:"notes"`
}

func (h *FundHandler) RecordManagedBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	fundID, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	var req managedBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	date, err := validation.ValidateDateString(req.BalanceDate, "balance_date")
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	b := models.ManagedFundBalance{
		FundID:      fundID,
		BalanceDate: date.Format("2006-01-02"),
		Notes:       validation.SanitizeText(req.Notes),
	}
	amounts := []struct {
		value         string
		name          string
		dst           *models.Amount
		allowNegative bool
	}{
		{req.TotalUnits, "total_units", &b.TotalUnits, false},
		{req.NAVPerUnit, "nav_per_unit", &b.NAVPerUnit, false},
		{req.MarketValue, "market_value", &b.MarketValue, false},
		{req.TotalInvested, "total_invested", &b.TotalInvested, false},
		{req.TotalFeesPaid, "total_fees_paid", &b.TotalFeesPaid, false},
		{req.UnrealizedGainLoss, "unrealized_gain_loss", &b.UnrealizedGainLoss, true},
		{req.RealizedGainLoss, "realized_gain_loss", &b.RealizedGainLoss, true},
		{req.TotalDividendsReceived, "total_dividends_received", &b.TotalDividendsReceived, false},
	}
	for _, f := range amounts {
		d, err := validation.ValidateDecimalString(f.value, f.name, f.allowNegative)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		*f.dst = models.Amount{Decimal: d}
	}
	percentages := []struct {
		value string
		name  string
		dst   *models.Amount
	}{
		{req.ActualEquityPercentage, "actual_equity_percentage", &b.ActualEquityPercentage},
		{req.ActualBondsPercentage, "actual_bonds_percentage", &b.ActualBondsPercentage},
		{req.ActualCashPercentage, "actual_cash_percentage", &b.ActualCashPercentage},
		{req.ActualAlternativesPercentage, "actual_alternatives_percentage", &b.ActualAlternativesPercentage},
	}
	for _, f := range percentages {
		d, err := validation.ValidatePercentageString(f.value, f.name)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		*f.dst = models.Amount{Decimal: d}
	}

	if err := h.fundService.RecordManagedBalance(userID, &b); err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, b, http.StatusCreated)
}

func (h *FundHandler) ListManagedBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	fundID, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	balances, err := h.fundService.ListManagedBalances(userID, fundID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, balances, http.StatusOK)
}

type performanceRequest struct {
	PeriodType      string `json:"period_type"`
	PeriodStartDate string `json:"period_start_date"`
	PeriodEndDate   string `json:"period_end_date"`

	OpeningNAV string `json:"opening_nav"`
	ClosingNAV string `json:"closing_nav"`
	HighNAV    string `json:"high_nav"`
	LowNAV     string `json:"low_nav"`

	PeriodReturnPercentage     string `json:"period_return_percentage"`
	YTDReturnPercentage        string `json:"ytd_return_percentage"`
	AnnualizedReturnPercentage string `json:"annualized_return_percentage"`
	Volatility                 string `json:"volatility"`
	SharpeRatio                string `json:"sharpe_ratio"`
	BenchmarkReturnPercentage  string `json:"benchmark_return_percentage"`
	Alpha                      string `json:"alpha"`

	Notes string `json:"notes"`
}

func (h *FundHandler) RecordPerformance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	fundID, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	var req performanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	ptype := strings.ToUpper(strings.TrimSpace(req.PeriodType))
	if !models.IsValidPerformancePeriod(ptype) {
		sendJSONError(w, "invalid period type", http.StatusBadRequest)
		return
	}
	start, err := validation.ValidateDateString(req.PeriodStartDate, "period_start_date")
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	end, err := validation.ValidateDateString(req.PeriodEndDate, "period_end_date")
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if end.Before(start) {
		sendJSONError(w, "period_end_date must not precede period_start_date", http.StatusBadRequest)
		return
	}

	p := models.FundPerformance{
		FundID:          fundID,
		PeriodType:      ptype,
		PeriodStartDate: start.Format("2006-01-02"),
		PeriodEndDate:   end.Format("2006-01-02"),
		Notes:           validation.SanitizeText(req.Notes),
	}
	fields := []struct {
		value         string
		name          string
		dst           *models.Amount
		allowNegative bool
	}{
		{req.OpeningNAV, "opening_nav", &p.OpeningNAV, false},
		{req.ClosingNAV, "closing_nav", &p.ClosingNAV, false},
		{req.HighNAV, "high_nav", &p.HighNAV, false},
		{req.LowNAV, "low_nav", &p.LowNAV, false},
		{req.PeriodReturnPercentage, "period_return_percentage", &p.PeriodReturnPercentage, true},
		{req.YTDReturnPercentage, "ytd_return_percentage", &p.YTDReturnPercentage, true},
		{req.AnnualizedReturnPercentage, "annualized_return_percentage", &p.AnnualizedReturnPercentage, true},
		{req.Volatility, "volatility", &p.Volatility, false},
		{req.SharpeRatio, "sharpe_ratio", &p.SharpeRatio, true},
		{req.BenchmarkReturnPercentage, "benchmark_return_percentage", &p.BenchmarkReturnPercentage, true},
		{req.Alpha, "alpha", &p.Alpha, true},
	}
	for _, f := range fields {
		d, err := validation.ValidateDecimalString(f.value, f.name, f.allowNegative)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		*f.dst = models.Amount{Decimal: d}
	}

	if err := h.fundService.RecordPerformance(userID, &p); err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, p, http.StatusCreated)
}

func (h *FundHandler) ListPerformance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	fundID, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	performance, err := h.fundService.ListPerformance(userID, fundID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, performance, http.StatusOK)
}
