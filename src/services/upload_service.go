package services

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/username/zynbudget/backend/src/logger"
	"github.com/username/zynbudget/backend/src/models"
	"github.com/username/zynbudget/backend/src/parsers/funddata"
)

const maxErrorLogEntries = 50

type uploadServiceImpl struct {
	db          *sql.DB
	fundService FundService
	parser      *funddata.Parser
}

func NewUploadService(db *sql.DB, fundService FundService) UploadService {
	return &uploadServiceImpl{
		db:          db,
		fundService: fundService,
		parser:      funddata.NewParser(),
	}
}

// ProcessUpload runs one bulk import end to end: it creates the job row,
// walks it PENDING -> PROCESSING -> COMPLETED/FAILED, and never reuses a
// row. A retry is a brand-new call and a brand-new job.
func (s *uploadServiceImpl) ProcessUpload(fileReader io.Reader, userID int64, fundID int64, uploadType, filename string) (*models.FundDataUpload, error) {
	if !models.IsValidUploadType(uploadType) {
		return nil, fmt.Errorf("%w: unknown upload type %q", ErrParsingFailed, uploadType)
	}
	// The target fund must exist, belong to the caller, and match the
	// ledger the upload feeds.
	kind, err := s.uploadKind(uploadType)
	if err != nil {
		return nil, err
	}
	fund, err := s.fundService.GetFund(userID, fundID)
	if err != nil {
		return nil, err
	}
	if kind != "" && fund.Kind != kind {
		return nil, fmt.Errorf("%w: upload type %s targets %s funds, fund %d is %s",
			ErrParsingFailed, uploadType, kind, fundID, fund.Kind)
	}

	upload := &models.FundDataUpload{
		UserID:     userID,
		FundID:     &fundID,
		UploadType: uploadType,
		FileName:   filename,
		Reference:  uuid.NewString(),
		Status:     models.UploadStatusPending,
		UploadedAt: time.Now(),
	}
	if err := s.insertUpload(upload); err != nil {
		return nil, err
	}

	if err := s.transition(upload, models.UploadStatusProcessing); err != nil {
		return upload, err
	}

	result, err := s.parser.Parse(uploadType, fileReader)
	if err != nil {
		logger.L.Error("upload parse failed", "uploadID", upload.ID, "type", uploadType, "error", err)
		upload.ErrorLog = err.Error()
		if terr := s.transition(upload, models.UploadStatusFailed); terr != nil {
			return upload, terr
		}
		return upload, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	processed, failed, rowErrs := s.applyRows(userID, fundID, uploadType, result)
	upload.RecordsProcessed = processed
	upload.RecordsFailed = failed
	upload.ErrorLog = formatErrorLog(rowErrs)

	final := models.UploadStatusCompleted
	if processed == 0 && failed > 0 {
		final = models.UploadStatusFailed
	}
	if err := s.transition(upload, final); err != nil {
		return upload, err
	}

	logger.L.Info("upload processed",
		"uploadID", upload.ID, "type", uploadType, "fund", fundID,
		"processed", processed, "failed", failed, "status", upload.Status)
	s.fundService.InvalidateUserCache(userID)
	return upload, nil
}

// uploadKind maps an upload type to the fund kind it requires.
func (s *uploadServiceImpl) uploadKind(uploadType string) (string, error) {
	switch uploadType {
	case models.UploadTypeRSAContributions, models.UploadTypeRSABalances:
		return models.FundKindRSA, nil
	case models.UploadTypeManagedTransactions, models.UploadTypeManagedBalances:
		return models.FundKindManaged, nil
	case models.UploadTypeFundPerformance:
		return "", nil // performance applies to both kinds
	}
	return "", fmt.Errorf("%w: unknown upload type %q", ErrParsingFailed, uploadType)
}

// applyRows writes parsed rows through the fund service one at a time so a
// bad row, including a duplicate snapshot, fails alone instead of aborting
// the file.
func (s *uploadServiceImpl) applyRows(userID, fundID int64, uploadType string, result *funddata.ParseResult) (processed, failed int, rowErrs []string) {
	for _, re := range result.RowErrors {
		failed++
		rowErrs = append(rowErrs, re.Error())
	}

	record := func(err error, desc string) {
		if err != nil {
			failed++
			rowErrs = append(rowErrs, fmt.Sprintf("%s: %v", desc, err))
			return
		}
		processed++
	}

	switch uploadType {
	case models.UploadTypeRSAContributions:
		for i := range result.Contributions {
			c := result.Contributions[i]
			c.FundID = fundID
			record(s.fundService.AddRSAContribution(userID, &c),
				fmt.Sprintf("contribution on %s", c.ContributionDate))
		}
	case models.UploadTypeRSABalances:
		for i := range result.RSABalances {
			b := result.RSABalances[i]
			b.FundID = fundID
			record(s.fundService.RecordRSABalance(userID, &b),
				fmt.Sprintf("balance on %s", b.BalanceDate))
		}
	case models.UploadTypeManagedTransactions:
		for i := range result.Transactions {
			t := result.Transactions[i]
			t.FundID = fundID
			record(s.fundService.AddManagedTransaction(userID, &t),
				fmt.Sprintf("transaction on %s", t.TransactionDate))
		}
	case models.UploadTypeManagedBalances:
		for i := range result.ManagedBalances {
			b := result.ManagedBalances[i]
			b.FundID = fundID
			record(s.fundService.RecordManagedBalance(userID, &b),
				fmt.Sprintf("balance on %s", b.BalanceDate))
		}
	case models.UploadTypeFundPerformance:
		for i := range result.Performance {
			p := result.Performance[i]
			p.FundID = fundID
			record(s.fundService.RecordPerformance(userID, &p),
				fmt.Sprintf("performance %s %s..%s", p.PeriodType, p.PeriodStartDate, p.PeriodEndDate))
		}
	}
	return processed, failed, rowErrs
}

func formatErrorLog(rowErrs []string) string {
	if len(rowErrs) == 0 {
		return ""
	}
	if len(rowErrs) > maxErrorLogEntries {
		omitted := len(rowErrs) - maxErrorLogEntries
		rowErrs = append(rowErrs[:maxErrorLogEntries], fmt.Sprintf("... and %d more", omitted))
	}
	return strings.Join(rowErrs, "\n")
}

func (s *uploadServiceImpl) insertUpload(u *models.FundDataUpload) error {
	res, err := s.db.Exec(`
	INSERT INTO fund_data_uploads (user_id, fund_id, upload_type, file_name, reference,
	                               status, records_processed, records_failed, error_log, notes, uploaded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UserID, u.FundID, u.UploadType, u.FileName, u.Reference,
		u.Status, u.RecordsProcessed, u.RecordsFailed, u.ErrorLog, u.Notes, u.UploadedAt)
	if err != nil {
		return fmt.Errorf("creating upload job: %w", err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

// transition enforces the job state machine in memory and persists the new
// state plus counters in one statement. Terminal states also stamp
// processed_at.
func (s *uploadServiceImpl) transition(u *models.FundDataUpload, to string) error {
	if err := models.ValidateStatusTransition(u.Status, to); err != nil {
		return err
	}
	u.Status = to

	var processedAt interface{}
	if to == models.UploadStatusCompleted || to == models.UploadStatusFailed {
		now := time.Now()
		u.ProcessedAt = &now
		processedAt = now
	}
	_, err := s.db.Exec(`
	UPDATE fund_data_uploads
	SET status = ?, records_processed = ?, records_failed = ?, error_log = ?, processed_at = ?
	WHERE id = ?`,
		u.Status, u.RecordsProcessed, u.RecordsFailed, u.ErrorLog, processedAt, u.ID)
	return err
}

func (s *uploadServiceImpl) GetUpload(userID, uploadID int64) (*models.FundDataUpload, error) {
	row := s.db.QueryRow(`
	SELECT id, user_id, fund_id, upload_type, file_name, reference, status,
	       records_processed, records_failed, error_log, notes, uploaded_at, processed_at
	FROM fund_data_uploads
	WHERE id = ? AND user_id = ?`, uploadID, userID)
	u, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *uploadServiceImpl) ListUploads(userID int64) ([]models.FundDataUpload, error) {
	rows, err := s.db.Query(`
	SELECT id, user_id, fund_id, upload_type, file_name, reference, status,
	       records_processed, records_failed, error_log, notes, uploaded_at, processed_at
	FROM fund_data_uploads
	WHERE user_id = ?
	ORDER BY uploaded_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FundDataUpload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

type uploadRowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUpload(row uploadRowScanner) (*models.FundDataUpload, error) {
	var u models.FundDataUpload
	var fundID sql.NullInt64
	var errorLog, notes sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(&u.ID, &u.UserID, &fundID, &u.UploadType, &u.FileName, &u.Reference, &u.Status,
		&u.RecordsProcessed, &u.RecordsFailed, &errorLog, &notes, &u.UploadedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	if fundID.Valid {
		u.FundID = &fundID.Int64
	}
	u.ErrorLog = errorLog.String
	u.Notes = notes.String
	if processedAt.Valid {
		u.ProcessedAt = &processedAt.Time
	}
	return &u, nil
}
