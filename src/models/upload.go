package models

import (
	"fmt"
	"time"
)

// Upload job statuses. Transitions are one-directional:
// PENDING -> PROCESSING -> COMPLETED or FAILED. A retried upload creates a
// new job row; there is no retry-in-place transition.
const (
	UploadStatusPending    = "PENDING"
	UploadStatusProcessing = "PROCESSING"
	UploadStatusCompleted  = "COMPLETED"
	UploadStatusFailed     = "FAILED"
)

// Upload types accepted by the bulk import pipeline.
const (
	UploadTypeRSAContributions    = "RSA_CONTRIBUTIONS"
	UploadTypeRSABalances         = "RSA_BALANCES"
	UploadTypeManagedTransactions = "MANAGED_TRANSACTIONS"
	UploadTypeManagedBalances     = "MANAGED_BALANCES"
	UploadTypeFundPerformance     = "FUND_PERFORMANCE"
)

var uploadTypes = []string{
	UploadTypeRSAContributions,
	UploadTypeRSABalances,
	UploadTypeManagedTransactions,
	UploadTypeManagedBalances,
	UploadTypeFundPerformance,
}

func IsValidUploadType(s string) bool { return contains(uploadTypes, s) }

var allowedStatusTransitions = map[string][]string{
	UploadStatusPending:    {UploadStatusProcessing},
	UploadStatusProcessing: {UploadStatusCompleted, UploadStatusFailed},
	UploadStatusCompleted:  {},
	UploadStatusFailed:     {},
}

// ValidateStatusTransition reports whether moving from one upload status to
// another is allowed by the job state machine.
func ValidateStatusTransition(from, to string) error {
	for _, allowed := range allowedStatusTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("invalid upload status transition %s -> %s", from, to)
}

// FundDataUpload tracks one bulk-import job. The row is written by the
// upload service; clients only ever read status and counters from it.
type FundDataUpload struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	FundID           *int64     `json:"fund_id,omitempty"`
	UploadType       string     `json:"upload_type"`
	FileName         string     `json:"file_name"`
	Reference        string     `json:"reference"`
	Status           string     `json:"status"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsFailed    int        `json:"records_failed"`
	ErrorLog         string     `json:"error_log,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}
