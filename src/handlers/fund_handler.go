package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/zynbudget/backend/src/logger"
	"github.com/username/zynbudget/backend/src/models"
	"github.com/username/zynbudget/backend/src/security/validation"
	"github.com/username/zynbudget/backend/src/services"
	"github.com/username/zynbudget/backend/src/utils"
)

// FundHandler serves the fund catalog: fund types, fund managers, and the
// funds themselves.
type FundHandler struct {
	fundService services.FundService
}

func NewFundHandler(fundService services.FundService) *FundHandler {
	return &FundHandler{fundService: fundService}
}

// --- Fund types ---

type fundTypeRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

func (req *fundTypeRequest) validate() (string, bool) {
	if err := validation.ValidateStringNotEmpty(req.Name, "name"); err != nil {
		return err.Error(), false
	}
	if err := validation.ValidateStringMaxLength(req.Name, validation.DefaultMaxStringLength, "name"); err != nil {
		return err.Error(), false
	}
	req.Category = strings.ToUpper(strings.TrimSpace(req.Category))
	if !models.IsValidFundCategory(req.Category) {
		return "invalid fund category", false
	}
	return "", true
}

func (h *FundHandler) CreateFundType(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	var req fundTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if msg, ok := req.validate(); !ok {
		sendJSONError(w, msg, http.StatusBadRequest)
		return
	}

	ft := models.FundType{
		Name:        validation.SanitizeText(strings.TrimSpace(req.Name)),
		Category:    req.Category,
		Description: validation.SanitizeText(req.Description),
	}
	if err := h.fundService.CreateFundType(userID, &ft); err != nil {
		logger.ErrorFromContext(r.Context(), "failed to create fund type", "error", err)
		sendServiceError(w, err)
		return
	}
	sendJSON(w, ft, http.StatusCreated)
}

func (h *FundHandler) ListFundTypes(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	types, err := h.fundService.ListFundTypes(userID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, types, http.StatusOK)
}

func (h *FundHandler) UpdateFundType(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := idParam(r, "fundTypeID")
	if err != nil {
		sendJSONError(w, "Invalid fund type ID", http.StatusBadRequest)
		return
	}
	var req fundTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if msg, ok := req.validate(); !ok {
		sendJSONError(w, msg, http.StatusBadRequest)
		return
	}

	ft := models.FundType{
		ID:          id,
		Name:        validation.SanitizeText(strings.TrimSpace(req.Name)),
		Category:    req.Category,
		Description: validation.SanitizeText(req.Description),
		IsActive:    true,
	}
	if req.IsActive != nil {
		ft.IsActive = *req.IsActive
	}
	if err := h.fundService.UpdateFundType(userID, &ft); err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, ft, http.StatusOK)
}

func (h *FundHandler) DeleteFundType(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := idParam(r, "fundTypeID")
	if err != nil {
		sendJSONError(w, "Invalid fund type ID", http.StatusBadRequest)
		return
	}
	if err := h.fundService.DeleteFundType(userID, id); err != nil {
		sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Fund managers ---

type fundManagerRequest struct {
	Name               string `json:"name"`
	Code               string `json:"code"`
	RegistrationNumber string `json:"registration_number"`
	ContactPerson      string `json:"contact_person"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	Website            string `json:"website"`
	Address            string `json:"address"`
	Notes              string `json:"notes"`
	IsActive           *bool  `json:"is_active,omitempty"`
}

func (req *fundManagerRequest) toModel() (models.FundManager, string, bool) {
	var fm models.FundManager
	if err := validation.ValidateStringNotEmpty(req.Name, "name"); err != nil {
		return fm, err.Error(), false
	}
	if req.Email != "" {
		if err := validation.ValidateEmail(req.Email); err != nil {
			return fm, err.Error(), false
		}
	}
	if err := validation.ValidatePhoneNumber(req.Phone); err != nil {
		return fm, err.Error(), false
	}

	fm = models.FundManager{
		Name:               validation.SanitizeText(strings.TrimSpace(req.Name)),
		Code:               validation.SanitizeText(strings.TrimSpace(req.Code)),
		RegistrationNumber: validation.SanitizeText(strings.TrimSpace(req.RegistrationNumber)),
		ContactPerson:      validation.SanitizeText(strings.TrimSpace(req.ContactPerson)),
		Email:              strings.TrimSpace(req.Email),
		Phone:              strings.TrimSpace(req.Phone),
		Website:            validation.SanitizeText(strings.TrimSpace(req.Website)),
		Address:            validation.SanitizeText(req.Address),
		Notes:              validation.SanitizeText(req.Notes),
		IsActive:           true,
	}
	if req.IsActive != nil {
		fm.IsActive = *req.IsActive
	}
	return fm, "", true
}

func (h *FundHandler) CreateFundManager(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	var req fundManagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	fm, msg, valid := req.toModel()
	if !valid {
		sendJSONError(w, msg, http.StatusBadRequest)
		return
	}
	if err := h.fundService.CreateFundManager(userID, &fm); err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, fm, http.StatusCreated)
}

func (h *FundHandler) ListFundManagers(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	managers, err := h.fundService.ListFundManagers(userID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, managers, http.StatusOK)
}

func (h *FundHandler) UpdateFundManager(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := idParam(r, "fundManagerID")
	if err != nil {
		sendJSONError(w, "Invalid fund manager ID", http.StatusBadRequest)
		return
	}
	var req fundManagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	fm, msg, valid := req.toModel()
	if !valid {
		sendJSONError(w, msg, http.StatusBadRequest)
		return
	}
	fm.ID = id
	if err := h.fundService.UpdateFundManager(userID, &fm); err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, fm, http.StatusOK)
}

func (h *FundHandler) DeleteFundManager(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := idParam(r, "fundManagerID")
	if err != nil {
		sendJSONError(w, "Invalid fund manager ID", http.StatusBadRequest)
		return
	}
	if err := h.fundService.DeleteFundManager(userID, id); err != nil {
		sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Funds ---

type fundRequest struct {
	FundTypeID    int64  `json:"fund_type_id"`
	FundManagerID *int64 `json:"fund_manager_id"`
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	FundCode      string `json:"fund_code"`
	ISIN          string `json:"isin"`
	InceptionDate string `json:"inception_date"`
	Currency      string `json:"currency"`
	RiskLevel     string `json:"risk_level"`

	ManagementFeePercentage  string `json:"management_fee_percentage"`
	PerformanceFeePercentage string `json:"performance_fee_percentage"`
	EntryFeePercentage       string `json:"entry_fee_percentage"`
	ExitFeePercentage        string `json:"exit_fee_percentage"`

	Description         string `json:"description"`
	InvestmentObjective string `json:"investment_objective"`
	Benchmark           string `json:"benchmark"`
	Notes               string `json:"notes"`
	IsActive            *bool  `json:"is_active,omitempty"`

	RSADetails     *rsaDetailsRequest     `json:"rsa_details,omitempty"`
	ManagedDetails *managedDetailsRequest `json:"managed_details,omitempty"`
}

type rsaDetailsRequest struct {
	RSAPin                   string `json:"rsa_pin"`
	PFAName                  string `json:"pfa_name"`
	PFACode                  string `json:"pfa_code"`
	EmployeeContributionRate string `json:"employee_contribution_rate"`
	EmployerContributionRate string `json:"employer_contribution_rate"`
	EmployerName             string `json:"employer_name"`
	MonthlySalary            string `json:"monthly_salary"`
	RetirementAge            int    `json:"retirement_age"`
	ExpectedRetirementDate   string `json:"expected_retirement_date"`
}

type managedDetailsRequest struct {
	InvestmentStrategy           string `json:"investment_strategy"`
	TargetEquityPercentage       string `json:"target_equity_percentage"`
	TargetBondsPercentage        string `json:"target_bonds_percentage"`
	TargetCashPercentage         string `json:"target_cash_percentage"`
	TargetAlternativesPercentage string `json:"target_alternatives_percentage"`
	MinimumInvestment            string `json:"minimum_investment"`
	MinimumAdditionalInvestment  string `json:"minimum_additional_investment"`
	DistributionFrequency        string `json:"distribution_frequency"`
	ReinvestDistributions        bool   `json:"reinvest_distributions"`
}

func (req *fundRequest) toModel(userID int64) (*models.Fund, error) {
	if err := validation.ValidateStringNotEmpty(req.Name, "name"); err != nil {
		return nil, err
	}
	req.Kind = strings.ToUpper(strings.TrimSpace(req.Kind))
	if !models.IsValidFundKind(req.Kind) {
		return nil, validation.ErrValidationFailed
	}
	if err := validation.ValidateISIN(req.ISIN); err != nil {
		return nil, err
	}
	if err := validation.ValidateCurrencyCode(req.Currency); err != nil {
		return nil, err
	}
	if req.RiskLevel != "" && !models.IsValidRiskLevel(strings.ToUpper(req.RiskLevel)) {
		return nil, validation.ErrValidationFailed
	}
	if req.InceptionDate != "" {
		if _, err := validation.ValidateDateString(req.InceptionDate, "inception_date"); err != nil {
			return nil, err
		}
	}

	mgmtFee, err := validation.ValidatePercentageString(req.ManagementFeePercentage, "management_fee_percentage")
	if err != nil {
		return nil, err
	}
	perfFee, err := validation.ValidatePercentageString(req.PerformanceFeePercentage, "performance_fee_percentage")
	if err != nil {
		return nil, err
	}
	entryFee, err := validation.ValidatePercentageString(req.EntryFeePercentage, "entry_fee_percentage")
	if err != nil {
		return nil, err
	}
	exitFee, err := validation.ValidatePercentageString(req.ExitFeePercentage, "exit_fee_percentage")
	if err != nil {
		return nil, err
	}

	fund := &models.Fund{
		UserID:                   userID,
		FundTypeID:               req.FundTypeID,
		FundManagerID:            req.FundManagerID,
		Kind:                     req.Kind,
		Name:                     validation.SanitizeText(strings.TrimSpace(req.Name)),
		FundCode:                 validation.SanitizeText(strings.TrimSpace(req.FundCode)),
		ISIN:                     strings.ToUpper(strings.TrimSpace(req.ISIN)),
		InceptionDate:            strings.TrimSpace(req.InceptionDate),
		Currency:                 strings.ToUpper(strings.TrimSpace(req.Currency)),
		RiskLevel:                strings.ToUpper(strings.TrimSpace(req.RiskLevel)),
		ManagementFeePercentage:  models.Amount{Decimal: mgmtFee},
		PerformanceFeePercentage: models.Amount{Decimal: perfFee},
		EntryFeePercentage:       models.Amount{Decimal: entryFee},
		ExitFeePercentage:        models.Amount{Decimal: exitFee},
		Description:              validation.SanitizeText(req.Description),
		InvestmentObjective:      validation.SanitizeText(req.InvestmentObjective),
		Benchmark:                validation.SanitizeText(strings.TrimSpace(req.Benchmark)),
		Notes:                    validation.SanitizeText(req.Notes),
		IsActive:                 true,
	}
	if req.IsActive != nil {
		fund.IsActive = *req.IsActive
	}

	if req.RSADetails != nil {
		d := req.RSADetails
		employeeRate, err := validation.ValidatePercentageString(d.EmployeeContributionRate, "employee_contribution_rate")
		if err != nil {
			return nil, err
		}
		employerRate, err := validation.ValidatePercentageString(d.EmployerContributionRate, "employer_contribution_rate")
		if err != nil {
			return nil, err
		}
		salary, err := validation.ValidateDecimalString(d.MonthlySalary, "monthly_salary", false)
		if err != nil {
			return nil, err
		}
		retirementAge := d.RetirementAge
		if retirementAge == 0 {
			retirementAge = 60
		}
		fund.RSADetails = &models.RSADetails{
			RSAPin:                   validation.SanitizeText(strings.TrimSpace(d.RSAPin)),
			PFAName:                  validation.SanitizeText(strings.TrimSpace(d.PFAName)),
			PFACode:                  validation.SanitizeText(strings.TrimSpace(d.PFACode)),
			EmployeeContributionRate: models.Amount{Decimal: employeeRate},
			EmployerContributionRate: models.Amount{Decimal: employerRate},
			EmployerName:             validation.SanitizeText(strings.TrimSpace(d.EmployerName)),
			MonthlySalary:            models.Amount{Decimal: salary},
			RetirementAge:            retirementAge,
			ExpectedRetirementDate:   strings.TrimSpace(d.ExpectedRetirementDate),
		}
	}
	if req.ManagedDetails != nil {
		d := req.ManagedDetails
		strategy := strings.ToUpper(strings.TrimSpace(d.InvestmentStrategy))
		if strategy != "" && !models.IsValidStrategy(strategy) {
			return nil, validation.ErrValidationFailed
		}
		equity, err := validation.ValidatePercentageString(d.TargetEquityPercentage, "target_equity_percentage")
		if err != nil {
			return nil, err
		}
		bonds, err := validation.ValidatePercentageString(d.TargetBondsPercentage, "target_bonds_percentage")
		if err != nil {
			return nil, err
		}
		cash, err := validation.ValidatePercentageString(d.TargetCashPercentage, "target_cash_percentage")
		if err != nil {
			return nil, err
		}
		alts, err := validation.ValidatePercentageString(d.TargetAlternativesPercentage, "target_alternatives_percentage")
		if err != nil {
			return nil, err
		}
		minInvest, err := validation.ValidateDecimalString(d.MinimumInvestment, "minimum_investment", false)
		if err != nil {
			return nil, err
		}
		minAdditional, err := validation.ValidateDecimalString(d.MinimumAdditionalInvestment, "minimum_additional_investment", false)
		if err != nil {
			return nil, err
		}
		fund.ManagedDetails = &models.ManagedDetails{
			InvestmentStrategy:           strategy,
			TargetEquityPercentage:       models.Amount{Decimal: equity},
			TargetBondsPercentage:        models.Amount{Decimal: bonds},
			TargetCashPercentage:         models.Amount{Decimal: cash},
			TargetAlternativesPercentage: models.Amount{Decimal: alts},
			MinimumInvestment:            models.Amount{Decimal: minInvest},
			MinimumAdditionalInvestment:  models.Amount{Decimal: minAdditional},
			DistributionFrequency:        validation.SanitizeText(strings.TrimSpace(d.DistributionFrequency)),
			ReinvestDistributions:        d.ReinvestDistributions,
		}
	}
	return fund, nil
}

func (h *FundHandler) CreateFund(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	var req fundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	fund, err := req.toModel(userID)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.fundService.CreateFund(fund); err != nil {
		logger.ErrorFromContext(r.Context(), "failed to create fund", "error", err)
		sendServiceError(w, err)
		return
	}
	sendJSON(w, fund, http.StatusCreated)
}

func (h *FundHandler) ListFunds(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	funds, err := h.fundService.ListFunds(userID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, funds, http.StatusOK)
}

func (h *FundHandler) GetFund(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	fund, err := h.fundService.GetFund(userID, id)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, fund, http.StatusOK)
}

func (h *FundHandler) UpdateFund(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	var req fundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	fund, err := req.toModel(userID)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	fund.ID = id
	if err := h.fundService.UpdateFund(fund); err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, fund, http.StatusOK)
}

func (h *FundHandler) DeleteFund(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	if err := h.fundService.DeleteFund(userID, id); err != nil {
		sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FundHandler) GetFundSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := idParam(r, "fundID")
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}
	summary, err := h.fundService.GetFundSummary(userID, id)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	if etag, err := utils.GenerateETag(summary); err == nil {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	sendJSON(w, summary, http.StatusOK)
}
