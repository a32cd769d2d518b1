package models

import "testing"

func TestValidateStatusTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{UploadStatusPending, UploadStatusProcessing},
		{UploadStatusProcessing, UploadStatusCompleted},
		{UploadStatusProcessing, UploadStatusFailed},
	}
	for _, tt := range allowed {
		if err := ValidateStatusTransition(tt.from, tt.to); err != nil {
			t.Errorf("transition %s -> %s should be allowed: %v", tt.from, tt.to, err)
		}
	}

	// Terminal states and skips are rejected; there is no retry-in-place.
	denied := []struct{ from, to string }{
		{UploadStatusPending, UploadStatusCompleted},
		{UploadStatusPending, UploadStatusFailed},
		{UploadStatusCompleted, UploadStatusProcessing},
		{UploadStatusCompleted, UploadStatusPending},
		{UploadStatusFailed, UploadStatusPending},
		{UploadStatusFailed, UploadStatusProcessing},
		{UploadStatusProcessing, UploadStatusPending},
		{UploadStatusCompleted, UploadStatusFailed},
		{"UNKNOWN", UploadStatusProcessing},
	}
	for _, tt := range denied {
		if err := ValidateStatusTransition(tt.from, tt.to); err == nil {
			t.Errorf("transition %s -> %s should be rejected", tt.from, tt.to)
		}
	}
}

func TestIsValidUploadType(t *testing.T) {
	for _, ut := range uploadTypes {
		if !IsValidUploadType(ut) {
			t.Errorf("%s should be a valid upload type", ut)
		}
	}
	if IsValidUploadType("BANK_STATEMENT") {
		t.Error("BANK_STATEMENT should not be a valid upload type")
	}
}
