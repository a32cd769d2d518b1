package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/zynbudget/backend/src/logger"
	"github.com/username/zynbudget/backend/src/models"
	"github.com/username/zynbudget/backend/src/security/validation"
)

const (
	ckFundSummary          = "fund_summary_user_%d_fund_%d"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type fundServiceImpl struct {
	db           *sql.DB
	summaryCache *cache.Cache
}

func NewFundService(db *sql.DB, summaryCache *cache.Cache) FundService {
	return &fundServiceImpl{db: db, summaryCache: summaryCache}
}

// isUniqueViolation reports whether a sqlite error came from a UNIQUE
// constraint. The snapshot tables rely on this to surface duplicates.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Fund types ---

func (s *fundServiceImpl) CreateFundType(userID int64, ft *models.FundType) error {
	now := time.Now()
	ft.UserID = &userID
	ft.IsSystemType = false
	ft.IsActive = true
	ft.CreatedAt = now
	ft.UpdatedAt = now

	res, err := s.db.Exec(`
	INSERT INTO fund_types (user_id, name, category, description, is_system_type, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, ft.Name, ft.Category, ft.Description, ft.IsSystemType, ft.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("creating fund type: %w", err)
	}
	ft.ID, err = res.LastInsertId()
	return err
}

// ListFundTypes returns the system-wide types plus the caller's own.
func (s *fundServiceImpl) ListFundTypes(userID int64) ([]models.FundType, error) {
	rows, err := s.db.Query(`
	SELECT id, user_id, name, category, description, is_system_type, is_active, created_at, updated_at
	FROM fund_types
	WHERE user_id IS NULL OR user_id = ?
	ORDER BY is_system_type DESC, name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FundType
	for rows.Next() {
		var ft models.FundType
		var ownerID sql.NullInt64
		var description sql.NullString
		if err := rows.Scan(&ft.ID, &ownerID, &ft.Name, &ft.Category, &description,
			&ft.IsSystemType, &ft.IsActive, &ft.CreatedAt, &ft.UpdatedAt); err != nil {
			return nil, err
		}
		if ownerID.Valid {
			ft.UserID = &ownerID.Int64
		}
		ft.Description = description.String
		out = append(out, ft)
	}
	return out, rows.Err()
}

// UpdateFundType edits a user-owned type. System types are immutable
// through this API.
func (s *fundServiceImpl) UpdateFundType(userID int64, ft *models.FundType) error {
	ft.UpdatedAt = time.Now()
	res, err := s.db.Exec(`
	UPDATE fund_types
	SET name = ?, category = ?, description = ?, is_active = ?, updated_at = ?
	WHERE id = ? AND user_id = ? AND is_system_type = FALSE`,
		ft.Name, ft.Category, ft.Description, ft.IsActive, ft.UpdatedAt, ft.ID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *fundServiceImpl) DeleteFundType(userID, fundTypeID int64) error {
	res, err := s.db.Exec(`
	DELETE FROM fund_types WHERE id = ? AND user_id = ? AND is_system_type = FALSE`, fundTypeID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Fund managers ---

func (s *fundServiceImpl) CreateFundManager(userID int64, fm *models.FundManager) error {
	now := time.Now()
	fm.UserID = userID
	fm.IsActive = true
	fm.CreatedAt = now
	fm.UpdatedAt = now

	res, err := s.db.Exec(`
	INSERT INTO fund_managers (user_id, name, code, registration_number, contact_person,
	                           email, phone, website, address, notes, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, fm.Name, fm.Code, fm.RegistrationNumber, fm.ContactPerson,
		fm.Email, fm.Phone, fm.Website, fm.Address, fm.Notes, fm.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("creating fund manager: %w", err)
	}
	fm.ID, err = res.LastInsertId()
	return err
}

func (s *fundServiceImpl) ListFundManagers(userID int64) ([]models.FundManager, error) {
	rows, err := s.db.Query(`
	SELECT id, user_id, name, code, registration_number, contact_person,
	       email, phone, website, address, notes, is_active, created_at, updated_at
	FROM fund_managers
	WHERE user_id = ?
	ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FundManager
	for rows.Next() {
		var fm models.FundManager
		var code, regNo, contact, email, phone, website, address, notes sql.NullString
		if err := rows.Scan(&fm.ID, &fm.UserID, &fm.Name, &code, &regNo, &contact,
			&email, &phone, &website, &address, &notes, &fm.IsActive, &fm.CreatedAt, &fm.UpdatedAt); err != nil {
			return nil, err
		}
		fm.Code = code.String
		fm.RegistrationNumber = regNo.String
		fm.ContactPerson = contact.String
		fm.Email = email.String
		fm.Phone = phone.String
		fm.Website = website.String
		fm.Address = address.String
		fm.Notes = notes.String
		out = append(out, fm)
	}
	return out, rows.Err()
}

func (s *fundServiceImpl) UpdateFundManager(userID int64, fm *models.FundManager) error {
	fm.UpdatedAt = time.Now()
	res, err := s.db.Exec(`
	UPDATE fund_managers
	SET name = ?, code = ?, registration_number = ?, contact_person = ?, email = ?,
	    phone = ?, website = ?, address = ?, notes = ?, is_active = ?, updated_at = ?
	WHERE id = ? AND user_id = ?`,
		fm.Name, fm.Code, fm.RegistrationNumber, fm.ContactPerson, fm.Email,
		fm.Phone, fm.Website, fm.Address, fm.Notes, fm.IsActive, fm.UpdatedAt, fm.ID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *fundServiceImpl) DeleteFundManager(userID, fundManagerID int64) error {
	res, err := s.db.Exec(`DELETE FROM fund_managers WHERE id = ? AND user_id = ?`, fundManagerID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Funds ---

// CreateFund inserts the base row and the kind-specific detail row in one
// transaction so a fund can never exist without its specialization.
func (s *fundServiceImpl) CreateFund(fund *models.Fund) error {
	switch fund.Kind {
	case models.FundKindRSA:
		if fund.RSADetails == nil {
			return fmt.Errorf("%w: RSA fund requires rsa_details", ErrProcessingFailed)
		}
		if fund.ManagedDetails != nil {
			return fmt.Errorf("%w: RSA fund cannot carry managed_details", ErrProcessingFailed)
		}
	case models.FundKindManaged:
		if fund.ManagedDetails == nil {
			return fmt.Errorf("%w: managed fund requires managed_details", ErrProcessingFailed)
		}
		if fund.RSADetails != nil {
			return fmt.Errorf("%w: managed fund cannot carry rsa_details", ErrProcessingFailed)
		}
	default:
		return fmt.Errorf("%w: unknown fund kind %q", ErrProcessingFailed, fund.Kind)
	}

	now := time.Now()
	fund.IsActive = true
	fund.CreatedAt = now
	fund.UpdatedAt = now
	if fund.Currency == "" {
		fund.Currency = "USD"
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
	INSERT INTO funds (user_id, fund_type_id, fund_manager_id, kind, name, fund_code, isin,
	                   inception_date, currency, risk_level,
	                   management_fee_percentage, performance_fee_percentage,
	                   entry_fee_percentage, exit_fee_percentage,
	                   description, investment_objective, benchmark, notes,
	                   is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fund.UserID, fund.FundTypeID, fund.FundManagerID, fund.Kind, fund.Name, fund.FundCode, fund.ISIN,
		fund.InceptionDate, fund.Currency, fund.RiskLevel,
		fund.ManagementFeePercentage, fund.PerformanceFeePercentage,
		fund.EntryFeePercentage, fund.ExitFeePercentage,
		fund.Description, fund.InvestmentObjective, fund.Benchmark, fund.Notes,
		fund.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("creating fund: %w", err)
	}
	fund.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}

	switch fund.Kind {
	case models.FundKindRSA:
		d := fund.RSADetails
		d.FundID = fund.ID
		_, err = tx.Exec(`
		INSERT INTO rsa_details (fund_id, rsa_pin, pfa_name, pfa_code,
		                         employee_contribution_rate, employer_contribution_rate,
		                         employer_name, monthly_salary, retirement_age,
		                         expected_retirement_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fund.ID, d.RSAPin, d.PFAName, d.PFACode,
			d.EmployeeContributionRate, d.EmployerContributionRate,
			d.EmployerName, d.MonthlySalary, d.RetirementAge,
			d.ExpectedRetirementDate, now, now)
	case models.FundKindManaged:
		d := fund.ManagedDetails
		d.FundID = fund.ID
		_, err = tx.Exec(`
		INSERT INTO managed_details (fund_id, investment_strategy,
		                             target_equity_percentage, target_bonds_percentage,
		                             target_cash_percentage, target_alternatives_percentage,
		                             minimum_investment, minimum_additional_investment,
		                             distribution_frequency, reinvest_distributions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fund.ID, d.InvestmentStrategy,
			d.TargetEquityPercentage, d.TargetBondsPercentage,
			d.TargetCashPercentage, d.TargetAlternativesPercentage,
			d.MinimumInvestment, d.MinimumAdditionalInvestment,
			d.DistributionFrequency, d.ReinvestDistributions, now, now)
	}
	if err != nil {
		return fmt.Errorf("creating fund details: %w", err)
	}
	return tx.Commit()
}

const fundColumns = `
	id, user_id, fund_type_id, fund_manager_id, kind, name, fund_code, isin,
	inception_date, currency, risk_level,
	management_fee_percentage, performance_fee_percentage,
	entry_fee_percentage, exit_fee_percentage,
	description, investment_objective, benchmark, notes,
	is_active, created_at, updated_at`

type fundRowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFund(row fundRowScanner) (*models.Fund, error) {
	var f models.Fund
	var managerID sql.NullInt64
	var fundCode, isin, inceptionDate, riskLevel sql.NullString
	var description, objective, benchmark, notes sql.NullString

	err := row.Scan(
		&f.ID, &f.UserID, &f.FundTypeID, &managerID, &f.Kind, &f.Name, &fundCode, &isin,
		&inceptionDate, &f.Currency, &riskLevel,
		&f.ManagementFeePercentage, &f.PerformanceFeePercentage,
		&f.EntryFeePercentage, &f.ExitFeePercentage,
		&description, &objective, &benchmark, &notes,
		&f.IsActive, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if managerID.Valid {
		f.FundManagerID = &managerID.Int64
	}
	f.FundCode = fundCode.String
	f.ISIN = isin.String
	f.InceptionDate = inceptionDate.String
	f.RiskLevel = riskLevel.String
	f.Description = description.String
	f.InvestmentObjective = objective.String
	f.Benchmark = benchmark.String
	f.Notes = notes.String
	return &f, nil
}

func (s *fundServiceImpl) GetFund(userID, fundID int64) (*models.Fund, error) {
	row := s.db.QueryRow(`SELECT `+fundColumns+` FROM funds WHERE id = ? AND user_id = ?`, fundID, userID)
	fund, err := scanFund(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.attachDetails(fund); err != nil {
		return nil, err
	}
	return fund, nil
}

func (s *fundServiceImpl) attachDetails(fund *models.Fund) error {
	switch fund.Kind {
	case models.FundKindRSA:
		var d models.RSADetails
		var pin, pfaName, pfaCode, employer, retireDate sql.NullString
		err := s.db.QueryRow(`
		SELECT fund_id, rsa_pin, pfa_name, pfa_code, employee_contribution_rate,
		       employer_contribution_rate, employer_name, monthly_salary,
		       retirement_age, expected_retirement_date
		FROM rsa_details WHERE fund_id = ?`, fund.ID).Scan(
			&d.FundID, &pin, &pfaName, &pfaCode, &d.EmployeeContributionRate,
			&d.EmployerContributionRate, &employer, &d.MonthlySalary,
			&d.RetirementAge, &retireDate)
		if err != nil {
			return fmt.Errorf("loading rsa details for fund %d: %w", fund.ID, err)
		}
		d.RSAPin = pin.String
		d.PFAName = pfaName.String
		d.PFACode = pfaCode.String
		d.EmployerName = employer.String
		d.ExpectedRetirementDate = retireDate.String
		fund.RSADetails = &d
	case models.FundKindManaged:
		var d models.ManagedDetails
		var strategy, distFreq sql.NullString
		err := s.db.QueryRow(`
		SELECT fund_id, investment_strategy, target_equity_percentage, target_bonds_percentage,
		       target_cash_percentage, target_alternatives_percentage,
		       minimum_investment, minimum_additional_investment,
		       distribution_frequency, reinvest_distributions
		FROM managed_details WHERE fund_id = ?`, fund.ID).Scan(
			&d.FundID, &strategy, &d.TargetEquityPercentage, &d.TargetBondsPercentage,
			&d.TargetCashPercentage, &d.TargetAlternativesPercentage,
			&d.MinimumInvestment, &d.MinimumAdditionalInvestment,
			&distFreq, &d.ReinvestDistributions)
		if err != nil {
			return fmt.Errorf("loading managed details for fund %d: %w", fund.ID, err)
		}
		d.InvestmentStrategy = strategy.String
		d.DistributionFrequency = distFreq.String
		fund.ManagedDetails = &d
	}
	return nil
}

func (s *fundServiceImpl) ListFunds(userID int64) ([]models.Fund, error) {
	rows, err := s.db.Query(`SELECT `+fundColumns+` FROM funds WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Fund
	for rows.Next() {
		fund, err := scanFund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *fund)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.attachDetails(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateFund edits the base row and the detail row of the fund's kind. The
// kind itself is immutable once created.
func (s *fundServiceImpl) UpdateFund(fund *models.Fund) error {
	fund.UpdatedAt = time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
	UPDATE funds
	SET fund_type_id = ?, fund_manager_id = ?, name = ?, fund_code = ?, isin = ?,
	    inception_date = ?, currency = ?, risk_level = ?,
	    management_fee_percentage = ?, performance_fee_percentage = ?,
	    entry_fee_percentage = ?, exit_fee_percentage = ?,
	    description = ?, investment_objective = ?, benchmark = ?, notes = ?,
	    is_active = ?, updated_at = ?
	WHERE id = ? AND user_id = ? AND kind = ?`,
		fund.FundTypeID, fund.FundManagerID, fund.Name, fund.FundCode, fund.ISIN,
		fund.InceptionDate, fund.Currency, fund.RiskLevel,
		fund.ManagementFeePercentage, fund.PerformanceFeePercentage,
		fund.EntryFeePercentage, fund.ExitFeePercentage,
		fund.Description, fund.InvestmentObjective, fund.Benchmark, fund.Notes,
		fund.IsActive, fund.UpdatedAt,
		fund.ID, fund.UserID, fund.Kind)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}

	switch fund.Kind {
	case models.FundKindRSA:
		if fund.RSADetails != nil {
			d := fund.RSADetails
			_, err = tx.Exec(`
			UPDATE rsa_details
			SET rsa_pin = ?, pfa_name = ?, pfa_code = ?, employee_contribution_rate = ?,
			    employer_contribution_rate = ?, employer_name = ?, monthly_salary = ?,
			    retirement_age = ?, expected_retirement_date = ?, updated_at = ?
			WHERE fund_id = ?`,
				d.RSAPin, d.PFAName, d.PFACode, d.EmployeeContributionRate,
				d.EmployerContributionRate, d.EmployerName, d.MonthlySalary,
				d.RetirementAge, d.ExpectedRetirementDate, fund.UpdatedAt, fund.ID)
		}
	case models.FundKindManaged:
		if fund.ManagedDetails != nil {
			d := fund.ManagedDetails
			_, err = tx.Exec(`
			UPDATE managed_details
			SET investment_strategy = ?, target_equity_percentage = ?, target_bonds_percentage = ?,
			    target_cash_percentage = ?, target_alternatives_percentage = ?,
			    minimum_investment = ?, minimum_additional_investment = ?,
			    distribution_frequency = ?, reinvest_distributions = ?, updated_at = ?
			WHERE fund_id = ?`,
				d.InvestmentStrategy, d.TargetEquityPercentage, d.TargetBondsPercentage,
				d.TargetCashPercentage, d.TargetAlternativesPercentage,
				d.MinimumInvestment, d.MinimumAdditionalInvestment,
				d.DistributionFrequency, d.ReinvestDistributions, fund.UpdatedAt, fund.ID)
		}
	}
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.invalidateFundSummary(fund.UserID, fund.ID)
	return nil
}

// DeleteFund soft-disables the fund. The row and its ledger stay intact so
// historical snapshots remain queryable.
func (s *fundServiceImpl) DeleteFund(userID, fundID int64) error {
	res, err := s.db.Exec(`
	UPDATE funds SET is_active = FALSE, updated_at = ?
	WHERE id = ? AND user_id = ?`, time.Now(), fundID, userID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	s.invalidateFundSummary(userID, fundID)
	return nil
}

// ownFundKind verifies ownership and returns the fund's kind.
func (s *fundServiceImpl) ownFundKind(userID, fundID int64) (string, error) {
	var kind string
	err := s.db.QueryRow(`SELECT kind FROM funds WHERE id = ? AND user_id = ?`, fundID, userID).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return kind, err
}

func (s *fundServiceImpl) requireFundOfKind(userID, fundID int64, wantKind string) error {
	kind, err := s.ownFundKind(userID, fundID)
	if err != nil {
		return err
	}
	if kind != wantKind {
		return fmt.Errorf("%w: fund %d is not a %s fund", ErrNotFound, fundID, wantKind)
	}
	return nil
}

// --- RSA ledger ---

func (s *fundServiceImpl) AddRSAContribution(userID int64, c *models.RSAContribution) error {
	if err := s.requireFundOfKind(userID, c.FundID, models.FundKindRSA); err != nil {
		return err
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("%w: contribution amount must be positive", validation.ErrValidationFailed)
	}
	c.CreatedAt = time.Now()
	res, err := s.db.Exec(`
	INSERT INTO rsa_contributions (fund_id, contribution_date, contribution_type, amount,
	                               units_purchased, nav_per_unit, reference_number, notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.FundID, c.ContributionDate, c.ContributionType, c.Amount,
		c.UnitsPurchased, c.NAVPerUnit, c.ReferenceNumber, c.Notes, c.CreatedAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("adding rsa contribution: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err == nil {
		s.invalidateFundSummary(userID, c.FundID)
	}
	return err
}

func (s *fundServiceImpl) ListRSAContributions(userID, fundID int64) ([]models.RSAContribution, error) {
	if err := s.requireFundOfKind(userID, fundID, models.FundKindRSA); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
	SELECT id, fund_id, contribution_date, contribution_type, amount,
	       units_purchased, nav_per_unit, reference_number, notes, created_at
	FROM rsa_contributions
	WHERE fund_id = ?
	ORDER BY contribution_date DESC, id DESC`, fundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RSAContribution
	for rows.Next() {
		var c models.RSAContribution
		var ref, notes sql.NullString
		if err := rows.Scan(&c.ID, &c.FundID, &c.ContributionDate, &c.ContributionType, &c.Amount,
			&c.UnitsPurchased, &c.NAVPerUnit, &ref, &notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ReferenceNumber = ref.String
		c.Notes = notes.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordRSABalance inserts one dated snapshot. The UNIQUE(fund_id,
// balance_date) constraint is the authority on duplicates; a violation maps
// to ErrDuplicateSnapshot.
func (s *fundServiceImpl) RecordRSABalance(userID int64, b *models.RSABalance) error {
	if err := s.requireFundOfKind(userID, b.FundID, models.FundKindRSA); err != nil {
		return err
	}
	b.CreatedAt = time.Now()
	res, err := s.db.Exec(`
	INSERT INTO rsa_balances (fund_id, balance_date,
	                          total_employee_contributions, total_employer_contributions,
	                          total_voluntary_contributions, total_units, nav_per_unit,
	                          market_value, investment_returns, cumulative_returns,
	                          management_fees_paid, notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.FundID, b.BalanceDate,
		b.TotalEmployeeContributions, b.TotalEmployerContributions,
		b.TotalVoluntaryContributions, b.TotalUnits, b.NAVPerUnit,
		b.MarketValue, b.InvestmentReturns, b.CumulativeReturns,
		b.ManagementFeesPaid, b.Notes, b.CreatedAt, b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: fund %d on %s", ErrDuplicateSnapshot, b.FundID, b.BalanceDate)
		}
		return fmt.Errorf("recording rsa balance: %w", err)
	}
	b.ID, err = res.LastInsertId()
	if err == nil {
		s.invalidateFundSummary(userID, b.FundID)
	}
	return err
}

func (s *fundServiceImpl) ListRSABalances(userID, fundID int64) ([]models.RSABalance, error) {
	if err := s.requireFundOfKind(userID, fundID, models.FundKindRSA); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
	SELECT id, fund_id, balance_date, total_employee_contributions, total_employer_contributions,
	       total_voluntary_contributions, total_units, nav_per_unit, market_value,
	       investment_returns, cumulative_returns, management_fees_paid, notes, created_at
	FROM rsa_balances
	WHERE fund_id = ?
	ORDER BY balance_date DESC`, fundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RSABalance
	for rows.Next() {
		var b models.RSABalance
		var notes sql.NullString
		if err := rows.Scan(&b.ID, &b.FundID, &b.BalanceDate,
			&b.TotalEmployeeContributions, &b.TotalEmployerContributions,
			&b.TotalVoluntaryContributions, &b.TotalUnits, &b.NAVPerUnit, &b.MarketValue,
			&b.InvestmentReturns, &b.CumulativeReturns, &b.ManagementFeesPaid,
			&notes, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Notes = notes.String
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- Managed fund ledger ---

func (s *fundServiceImpl) AddManagedTransaction(userID int64, t *models.ManagedFundTransaction) error {
	if err := s.requireFundOfKind(userID, t.FundID, models.FundKindManaged); err != nil {
		return err
	}
	t.CreatedAt = time.Now()
	res, err := s.db.Exec(`
	INSERT INTO managed_fund_transactions (fund_id, transaction_date, transaction_type, amount,
	                                       units, price_per_unit, fees_paid, reference_number,
	                                       notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.FundID, t.TransactionDate, t.TransactionType, t.Amount,
		t.Units, t.PricePerUnit, t.FeesPaid, t.ReferenceNumber,
		t.Notes, t.CreatedAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("adding managed fund transaction: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err == nil {
		s.invalidateFundSummary(userID, t.FundID)
	}
	return err
}

func (s *fundServiceImpl) ListManagedTransactions(userID, fundID int64) ([]models.ManagedFundTransaction, error) {
	if err := s.requireFundOfKind(userID, fundID, models.FundKindManaged); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
	SELECT id, fund_id, transaction_date, transaction_type, amount, units,
	       price_per_unit, fees_paid, reference_number, notes, created_at
	FROM managed_fund_transactions
	WHERE fund_id = ?
	ORDER BY transaction_date DESC, id DESC`, fundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ManagedFundTransaction
	for rows.Next() {
		var t models.ManagedFundTransaction
		var ref, notes sql.NullString
		if err := rows.Scan(&t.ID, &t.FundID, &t.TransactionDate, &t.TransactionType, &t.Amount,
			&t.Units, &t.PricePerUnit, &t.FeesPaid, &ref, &notes, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.ReferenceNumber = ref.String
		t.Notes = notes.String
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *fundServiceImpl) RecordManagedBalance(userID int64, b *models.ManagedFundBalance) error {
	if err := s.requireFundOfKind(userID, b.FundID, models.FundKindManaged); err != nil {
		return err
	}
	b.CreatedAt = time.Now()
	res, err := s.db.Exec(`
	INSERT INTO managed_fund_balances (fund_id, balance_date, total_units, nav_per_unit,
	                                   market_value, total_invested, total_fees_paid,
	                                   unrealized_gain_loss, realized_gain_loss, total_dividends_received,
	                                   actual_equity_percentage, actual_bonds_percentage,
	                                   actual_cash_percentage, actual_alternatives_percentage,
	                                   notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.FundID, b.BalanceDate, b.TotalUnits, b.NAVPerUnit,
		b.MarketValue, b.TotalInvested, b.TotalFeesPaid,
		b.UnrealizedGainLoss, b.RealizedGainLoss, b.TotalDividendsReceived,
		b.ActualEquityPercentage, b.ActualBondsPercentage,
		b.ActualCashPercentage, b.ActualAlternativesPercentage,
		b.Notes, b.CreatedAt, b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: fund %d on %s", ErrDuplicateSnapshot, b.FundID, b.BalanceDate)
		}
		return fmt.Errorf("recording managed fund balance: %w", err)
	}
	b.ID, err = res.LastInsertId()
	if err == nil {
		s.invalidateFundSummary(userID, b.FundID)
	}
	return err
}

func (s *fundServiceImpl) ListManagedBalances(userID, fundID int64) ([]models.ManagedFundBalance, error) {
	if err := s.requireFundOfKind(userID, fundID, models.FundKindManaged); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
	SELECT id, fund_id, balance_date, total_units, nav_per_unit, market_value,
	       total_invested, total_fees_paid, unrealized_gain_loss, realized_gain_loss,
	       total_dividends_received, actual_equity_percentage, actual_bonds_percentage,
	       actual_cash_percentage, actual_alternatives_percentage, notes, created_at
	FROM managed_fund_balances
	WHERE fund_id = ?
	ORDER BY balance_date DESC`, fundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ManagedFundBalance
	for rows.Next() {
		var b models.ManagedFundBalance
		var notes sql.NullString
		if err := rows.Scan(&b.ID, &b.FundID, &b.BalanceDate, &b.TotalUnits, &b.NAVPerUnit,
			&b.MarketValue, &b.TotalInvested, &b.TotalFeesPaid,
			&b.UnrealizedGainLoss, &b.RealizedGainLoss, &b.TotalDividendsReceived,
			&b.ActualEquityPercentage, &b.ActualBondsPercentage,
			&b.ActualCashPercentage, &b.ActualAlternativesPercentage,
			&notes, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Notes = notes.String
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- Performance snapshots ---

func (s *fundServiceImpl) RecordPerformance(userID int64, p *models.FundPerformance) error {
	if _, err := s.ownFundKind(userID, p.FundID); err != nil {
		return err
	}
	p.CreatedAt = time.Now()
	res, err := s.db.Exec(`
	INSERT INTO fund_performance (fund_id, period_type, period_start_date, period_end_date,
	                              opening_nav, closing_nav, high_nav, low_nav,
	                              period_return_percentage, ytd_return_percentage,
	                              annualized_return_percentage, volatility, sharpe_ratio,
	                              benchmark_return_percentage, alpha, notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.FundID, p.PeriodType, p.PeriodStartDate, p.PeriodEndDate,
		p.OpeningNAV, p.ClosingNAV, p.HighNAV, p.LowNAV,
		p.PeriodReturnPercentage, p.YTDReturnPercentage,
		p.AnnualizedReturnPercentage, p.Volatility, p.SharpeRatio,
		p.BenchmarkReturnPercentage, p.Alpha, p.Notes, p.CreatedAt, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: fund %d %s %s..%s", ErrDuplicateSnapshot,
				p.FundID, p.PeriodType, p.PeriodStartDate, p.PeriodEndDate)
		}
		return fmt.Errorf("recording fund performance: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err == nil {
		s.invalidateFundSummary(userID, p.FundID)
	}
	return err
}

func (s *fundServiceImpl) ListPerformance(userID, fundID int64) ([]models.FundPerformance, error) {
	if _, err := s.ownFundKind(userID, fundID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
	SELECT id, fund_id, period_type, period_start_date, period_end_date,
	       opening_nav, closing_nav, high_nav, low_nav,
	       period_return_percentage, ytd_return_percentage, annualized_return_percentage,
	       volatility, sharpe_ratio, benchmark_return_percentage, alpha, notes, created_at
	FROM fund_performance
	WHERE fund_id = ?
	ORDER BY period_end_date DESC, period_type`, fundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FundPerformance
	for rows.Next() {
		var p models.FundPerformance
		var notes sql.NullString
		if err := rows.Scan(&p.ID, &p.FundID, &p.PeriodType, &p.PeriodStartDate, &p.PeriodEndDate,
			&p.OpeningNAV, &p.ClosingNAV, &p.HighNAV, &p.LowNAV,
			&p.PeriodReturnPercentage, &p.YTDReturnPercentage, &p.AnnualizedReturnPercentage,
			&p.Volatility, &p.SharpeRatio, &p.BenchmarkReturnPercentage, &p.Alpha,
			&notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Notes = notes.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Aggregation ---

// GetFundSummary builds the dashboard view for one fund from its latest
// snapshot. Results are cached per (user, fund) and invalidated on writes.
func (s *fundServiceImpl) GetFundSummary(userID, fundID int64) (*FundSummary, error) {
	cacheKey := fmt.Sprintf(ckFundSummary, userID, fundID)
	if s.summaryCache != nil {
		if cached, found := s.summaryCache.Get(cacheKey); found {
			return cached.(*FundSummary), nil
		}
	}

	fund, err := s.GetFund(userID, fundID)
	if err != nil {
		return nil, err
	}
	summary := &FundSummary{
		Fund:           *fund,
		MarketValue:    models.ZeroAmount(),
		TotalInvested:  models.ZeroAmount(),
		TotalReturn:    models.ZeroAmount(),
		TotalReturnPct: models.ZeroAmount(),
	}

	switch fund.Kind {
	case models.FundKindRSA:
		balances, err := s.ListRSABalances(userID, fundID)
		if err != nil {
			return nil, err
		}
		if len(balances) > 0 {
			latest := balances[0]
			summary.LatestBalanceDate = latest.BalanceDate
			summary.MarketValue = latest.MarketValue
			summary.TotalInvested = latest.TotalContributions()
			summary.TotalReturn = latest.CumulativeReturns
		}
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM rsa_contributions WHERE fund_id = ?`, fundID).
			Scan(&summary.ContributionCount); err != nil {
			return nil, err
		}
	case models.FundKindManaged:
		balances, err := s.ListManagedBalances(userID, fundID)
		if err != nil {
			return nil, err
		}
		if len(balances) > 0 {
			latest := balances[0]
			summary.LatestBalanceDate = latest.BalanceDate
			summary.MarketValue = latest.MarketValue
			summary.TotalInvested = latest.TotalInvested
			summary.TotalReturn = latest.TotalReturn()
			summary.TotalReturnPct = latest.TotalReturnPercentage()
		}
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM managed_fund_transactions WHERE fund_id = ?`, fundID).
			Scan(&summary.TransactionCount); err != nil {
			return nil, err
		}
	}

	perf, err := s.ListPerformance(userID, fundID)
	if err != nil {
		return nil, err
	}
	if len(perf) > 0 {
		summary.LatestPerformance = &perf[0]
	}

	if s.summaryCache != nil {
		s.summaryCache.Set(cacheKey, summary, cache.DefaultExpiration)
	}
	return summary, nil
}

func (s *fundServiceImpl) invalidateFundSummary(userID, fundID int64) {
	if s.summaryCache != nil {
		s.summaryCache.Delete(fmt.Sprintf(ckFundSummary, userID, fundID))
	}
}

// InvalidateUserCache drops every cached summary belonging to a user.
func (s *fundServiceImpl) InvalidateUserCache(userID int64) {
	if s.summaryCache == nil {
		return
	}
	prefix := fmt.Sprintf("fund_summary_user_%d_", userID)
	for key := range s.summaryCache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.summaryCache.Delete(key)
		}
	}
	logger.L.Debug("invalidated fund summary cache", "userID", userID)
}

// requireRow maps a zero-row UPDATE/DELETE to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
