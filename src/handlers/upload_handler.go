package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/username/zynbudget/backend/src/config"
	"github.com/username/zynbudget/backend/src/logger"
	"github.com/username/zynbudget/backend/src/models"
	"github.com/username/zynbudget/backend/src/security/validation"
	"github.com/username/zynbudget/backend/src/services"
)

// UploadHandler serves bulk CSV ingestion jobs for the fund ledgers.
type UploadHandler struct {
	uploadService services.UploadService
}

func NewUploadHandler(uploadService services.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// ProcessUpload accepts a multipart form with an "upload_type" field, a
// "fund_id" field and a "file" part, and runs the job synchronously. The job
// row persists either way; a failed file returns 400 alongside the row so the
// client can show the error log.
func (h *UploadHandler) ProcessUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxUploadSizeBytes)
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		sendJSONError(w, "Uploaded file is too large or the form is malformed", http.StatusBadRequest)
		return
	}

	uploadType := strings.ToUpper(strings.TrimSpace(r.FormValue("upload_type")))
	if !models.IsValidUploadType(uploadType) {
		sendJSONError(w, "invalid upload type", http.StatusBadRequest)
		return
	}
	fundID, err := parseFormID(r.FormValue("fund_id"))
	if err != nil {
		sendJSONError(w, "Invalid fund ID", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		sendJSONError(w, "Missing file in request", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := validation.ValidateClientContentType(header.Header.Get("Content-Type")); err != nil {
		sendJSONError(w, "Unsupported file type", http.StatusBadRequest)
		return
	}
	if _, err := validation.ValidateCSVContent(file); err != nil {
		sendJSONError(w, "File content does not look like CSV", http.StatusBadRequest)
		return
	}

	filename := filepath.Base(header.Filename)
	upload, err := h.uploadService.ProcessUpload(file, userID, fundID, uploadType, filename)
	if err != nil {
		if upload != nil {
			// The job row recorded the failure; return it with the error.
			logger.InfoFromContext(r.Context(), "upload failed",
				"upload_id", upload.ID, "status", upload.Status)
			sendJSON(w, upload, http.StatusBadRequest)
			return
		}
		sendServiceError(w, err)
		return
	}
	sendJSON(w, upload, http.StatusCreated)
}

func (h *UploadHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	uploads, err := h.uploadService.ListUploads(userID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, uploads, http.StatusOK)
}

func (h *UploadHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id, err := idParam(r, "uploadID")
	if err != nil {
		sendJSONError(w, "Invalid upload ID", http.StatusBadRequest)
		return
	}
	upload, err := h.uploadService.GetUpload(userID, id)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, upload, http.StatusOK)
}
