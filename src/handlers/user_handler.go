package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/zynbudget/backend/src/config"
	"github.com/username/zynbudget/backend/src/database"
	"github.com/username/zynbudget/backend/src/logger"
	"github.com/username/zynbudget/backend/src/model"
	"github.com/username/zynbudget/backend/src/security"
	"github.com/username/zynbudget/backend/src/security/validation"
	"github.com/username/zynbudget/backend/src/services"
	"github.com/username/zynbudget/backend/src/utils"
)

const (
	minPasswordLength = 8
	ckProfileStats    = "profile_stats_user_%d"
)

type UserHandler struct {
	authService  *security.AuthService
	emailService services.EmailService
	mfaService   *services.MFAService
	statsCache   *cache.Cache
}

func NewUserHandler(authService *security.AuthService, emailService services.EmailService, mfaService *services.MFAService, statsCache *cache.Cache) *UserHandler {
	return &UserHandler{
		authService:  authService,
		emailService: emailService,
		mfaService:   mfaService,
		statsCache:   statsCache,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	req.Username = validation.SanitizeText(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.ValidateStringNotEmpty(req.Username, "username"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Password) < minPasswordLength {
		sendJSONError(w, fmt.Sprintf("Password must be at least %d characters", minPasswordLength), http.StatusBadRequest)
		return
	}

	if _, err := model.GetUserByEmail(database.DB, req.Email); err == nil {
		sendJSONError(w, "Email already registered", http.StatusConflict)
		return
	}
	if _, err := model.GetUserByUsername(database.DB, req.Username); err == nil {
		sendJSONError(w, "Username already taken", http.StatusConflict)
		return
	}

	verificationToken, err := security.GenerateRandomToken()
	if err != nil {
		sendJSONError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	user := model.User{
		Username:                        req.Username,
		Email:                           req.Email,
		EmailVerificationToken:          verificationToken,
		EmailVerificationTokenExpiresAt: time.Now().Add(config.Cfg.VerificationTokenExpiry),
	}
	if err := user.HashPassword(req.Password); err != nil {
		sendJSONError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}
	if err := user.CreateUser(database.DB); err != nil {
		logger.ErrorFromContext(r.Context(), "failed to create user", "error", err)
		sendJSONError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	go func() {
		if err := h.emailService.SendVerificationEmail(user.Email, user.Username, verificationToken); err != nil {
			logger.L.Error("failed to send verification email", "userID", user.ID, "error", err)
		}
	}()

	logger.InfoFromContext(r.Context(), "user registered", "userID", user.ID)
	sendJSON(w, map[string]interface{}{
		"message": "Account created. Check your email to verify your address.",
		"user_id": user.ID,
	}, http.StatusCreated)
}

func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		sendJSONError(w, "Verification token required", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByVerificationToken(database.DB, token)
	if err != nil {
		sendJSONError(w, "Invalid or expired verification token", http.StatusBadRequest)
		return
	}
	if !user.EmailVerificationTokenExpiresAt.IsZero() && time.Now().After(user.EmailVerificationTokenExpiresAt) {
		sendJSONError(w, "Verification token has expired", http.StatusBadRequest)
		return
	}
	if err := user.UpdateUserVerificationStatus(database.DB, true); err != nil {
		sendJSONError(w, "Failed to verify email", http.StatusInternalServerError)
		return
	}
	sendJSON(w, map[string]string{"message": "Email verified. You can now sign in."}, http.StatusOK)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MfaCode  string `json:"mfa_code,omitempty"`
}

type authResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         *model.User `json:"user"`
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByEmail(database.DB, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		sendJSONError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := user.CheckPassword(req.Password); err != nil {
		logger.FromContext(r.Context()).Warn("failed login attempt", "userID", user.ID, "ip", utils.ClientIP(r))
		sendJSONError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if !user.IsEmailVerified {
		// Refresh the token so the user always has a live verification link.
		if token, terr := security.GenerateRandomToken(); terr == nil {
			if uerr := user.UpdateUserVerificationToken(database.DB, token, time.Now().Add(config.Cfg.VerificationTokenExpiry)); uerr == nil {
				go func() {
					if serr := h.emailService.SendVerificationEmail(user.Email, user.Username, token); serr != nil {
						logger.L.Error("failed to resend verification email", "userID", user.ID, "error", serr)
					}
				}()
			}
		}
		sendJSONError(w, "Email address not verified. A new verification link has been sent.", http.StatusForbidden)
		return
	}
	if user.MfaEnabled {
		if req.MfaCode == "" {
			sendJSON(w, map[string]interface{}{"mfa_required": true}, http.StatusOK)
			return
		}
		if !h.mfaService.ValidateToken(user.MfaSecret, req.MfaCode) {
			sendJSONError(w, "Invalid MFA code", http.StatusUnauthorized)
			return
		}
	}

	h.issueSession(w, r, user)
}

// issueSession creates tokens plus the DB session row and writes the auth
// response.
func (h *UserHandler) issueSession(w http.ResponseWriter, r *http.Request, user *model.User) {
	accessToken, err := h.authService.GenerateToken(fmt.Sprintf("%d", user.ID))
	if err != nil {
		sendJSONError(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		sendJSONError(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}

	session := model.Session{
		UserID:       user.ID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     utils.ClientIP(r),
		ExpiresAt:    time.Now().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := model.CreateSession(database.DB, &session); err != nil {
		logger.ErrorFromContext(r.Context(), "failed to create session", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}
	if err := user.RecordLogin(database.DB, session.ClientIP, session.UserAgent); err != nil {
		logger.FromContext(r.Context()).Warn("failed to record login", "userID", user.ID, "error", err)
	}

	logger.InfoFromContext(r.Context(), "user signed in", "userID", user.ID)
	sendJSON(w, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(config.Cfg.AccessTokenExpiry.Seconds()),
		User:         user,
	}, http.StatusOK)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		sendJSONError(w, "Refresh token required", http.StatusBadRequest)
		return
	}

	session, err := model.GetSessionByRefreshToken(database.DB, req.RefreshToken)
	if err != nil {
		sendJSONError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}
	user, err := model.GetUserByID(database.DB, session.UserID)
	if err != nil {
		sendJSONError(w, "Invalid session", http.StatusUnauthorized)
		return
	}

	// Rotate both tokens; the old session row is replaced.
	if err := model.DeleteSessionByRefreshToken(database.DB, req.RefreshToken); err != nil {
		logger.FromContext(r.Context()).Warn("failed to delete rotated session", "error", err)
	}
	h.issueSession(w, r, user)
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if authHeader != "" {
		if err := model.DeleteSessionByToken(database.DB, authHeader); err != nil {
			logger.FromContext(r.Context()).Warn("failed to delete session on logout", "error", err)
		}
	}
	sendJSON(w, map[string]string{"message": "Signed out"}, http.StatusOK)
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (h *UserHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	// Respond identically whether or not the account exists.
	response := map[string]string{"message": "If the address is registered, a reset link has been sent."}

	user, err := model.GetUserByEmail(database.DB, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		sendJSON(w, response, http.StatusOK)
		return
	}

	token, err := security.GenerateRandomToken()
	if err != nil {
		sendJSONError(w, "Failed to process request", http.StatusInternalServerError)
		return
	}
	if err := user.SetPasswordResetToken(database.DB, token, time.Now().Add(config.Cfg.PasswordResetTokenExpiry)); err != nil {
		sendJSONError(w, "Failed to process request", http.StatusInternalServerError)
		return
	}
	go func() {
		if err := h.emailService.SendPasswordResetEmail(user.Email, user.Username, token); err != nil {
			logger.L.Error("failed to send password reset email", "userID", user.ID, "error", err)
		}
	}()
	sendJSON(w, response, http.StatusOK)
}

type confirmResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *UserHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		sendJSONError(w, fmt.Sprintf("Password must be at least %d characters", minPasswordLength), http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByPasswordResetToken(database.DB, req.Token)
	if err != nil {
		sendJSONError(w, "Invalid or expired reset token", http.StatusBadRequest)
		return
	}
	var tmp model.User
	if err := tmp.HashPassword(req.NewPassword); err != nil {
		sendJSONError(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}
	if err := user.UpdatePassword(database.DB, tmp.Password); err != nil {
		sendJSONError(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}
	// All existing sessions are revoked after a reset.
	if err := model.DeleteSessionsForUser(database.DB, user.ID); err != nil {
		logger.FromContext(r.Context()).Warn("failed to revoke sessions after reset", "userID", user.ID, "error", err)
	}
	sendJSON(w, map[string]string{"message": "Password updated. Sign in with your new password."}, http.StatusOK)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		sendJSONError(w, fmt.Sprintf("Password must be at least %d characters", minPasswordLength), http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if err := user.CheckPassword(req.CurrentPassword); err != nil {
		sendJSONError(w, "Current password is incorrect", http.StatusUnauthorized)
		return
	}
	var tmp model.User
	if err := tmp.HashPassword(req.NewPassword); err != nil {
		sendJSONError(w, "Failed to change password", http.StatusInternalServerError)
		return
	}
	if err := user.UpdatePassword(database.DB, tmp.Password); err != nil {
		sendJSONError(w, "Failed to change password", http.StatusInternalServerError)
		return
	}
	sendJSON(w, map[string]string{"message": "Password changed"}, http.StatusOK)
}

// profileResponse augments the stored user with the derived, time-dependent
// fields. premium_active is evaluated per request and never cached.
type profileResponse struct {
	*model.User
	FullName          string `json:"full_name"`
	ProfileCompletion string `json:"profile_completion"`
	PremiumActive     bool   `json:"premium_active"`
}

func (h *UserHandler) buildProfile(user *model.User) profileResponse {
	return profileResponse{
		User:              user,
		FullName:          user.FullName(),
		ProfileCompletion: user.ProfileCompletion().StringFixed(2),
		PremiumActive:     user.IsPremiumActive(time.Now()),
	}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	sendJSON(w, h.buildProfile(user), http.StatusOK)
}

type updateProfileRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	DateOfBirth string `json:"date_of_birth"`
	Bio         string `json:"bio"`
	Currency    string `json:"currency"`
	Timezone    string `json:"timezone"`
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	if err := validation.ValidatePhoneNumber(req.PhoneNumber); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.DateOfBirth != "" {
		if _, err := validation.ValidateDateString(req.DateOfBirth, "date_of_birth"); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if err := validation.ValidateCurrencyCode(req.Currency); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringMaxLength(req.Bio, validation.MaxBioLength, "bio"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	user.FirstName = validation.SanitizeText(strings.TrimSpace(req.FirstName))
	user.LastName = validation.SanitizeText(strings.TrimSpace(req.LastName))
	user.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	user.DateOfBirth = strings.TrimSpace(req.DateOfBirth)
	user.Bio = validation.SanitizeText(req.Bio)
	if req.Currency != "" {
		user.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	}
	if req.Timezone != "" {
		user.Timezone = strings.TrimSpace(req.Timezone)
	}

	if err := user.UpdateProfile(database.DB); err != nil {
		logger.ErrorFromContext(r.Context(), "failed to update profile", "userID", userID, "error", err)
		sendJSONError(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}
	h.statsCache.Delete(fmt.Sprintf(ckProfileStats, userID))
	sendJSON(w, h.buildProfile(user), http.StatusOK)
}

// allowed avatar extensions by detected content type
var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxUploadSizeBytes)
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		sendJSONError(w, "File too large or malformed form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("avatar")
	if err != nil {
		sendJSONError(w, "avatar file field required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType, err := validation.ValidateImageContent(file)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(config.Cfg.AvatarStoragePath, 0o755); err != nil {
		sendJSONError(w, "Failed to store avatar", http.StatusInternalServerError)
		return
	}
	filename := fmt.Sprintf("user_%d%s", userID, avatarExtensions[contentType])
	fullPath := filepath.Join(config.Cfg.AvatarStoragePath, filename)
	dst, err := os.Create(fullPath)
	if err != nil {
		sendJSONError(w, "Failed to store avatar", http.StatusInternalServerError)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		sendJSONError(w, "Failed to store avatar", http.StatusInternalServerError)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if err := user.UpdateAvatar(database.DB, filename); err != nil {
		sendJSONError(w, "Failed to store avatar", http.StatusInternalServerError)
		return
	}
	h.statsCache.Delete(fmt.Sprintf(ckProfileStats, userID))
	sendJSON(w, h.buildProfile(user), http.StatusOK)
}

func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if user.AvatarPath != "" {
		fullPath := filepath.Join(config.Cfg.AvatarStoragePath, filepath.Base(user.AvatarPath))
		if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
			logger.FromContext(r.Context()).Warn("failed to remove avatar file", "userID", userID, "error", err)
		}
	}
	if err := user.UpdateAvatar(database.DB, ""); err != nil {
		sendJSONError(w, "Failed to remove avatar", http.StatusInternalServerError)
		return
	}
	h.statsCache.Delete(fmt.Sprintf(ckProfileStats, userID))
	sendJSON(w, h.buildProfile(user), http.StatusOK)
}

// profileStats is the cacheable part of the stats endpoint. Premium state is
// deliberately excluded and recomputed on every request.
type profileStats struct {
	ProfileCompletion string `json:"profile_completion"`
	FundCount         int    `json:"fund_count"`
	UploadCount       int    `json:"upload_count"`
	LoginCount        int    `json:"login_count"`
}

func (h *UserHandler) GetProfileStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}

	cacheKey := fmt.Sprintf(ckProfileStats, userID)
	var stats profileStats
	if cached, found := h.statsCache.Get(cacheKey); found {
		stats = cached.(profileStats)
	} else {
		stats = profileStats{
			ProfileCompletion: user.ProfileCompletion().StringFixed(2),
			LoginCount:        user.LoginCount,
		}
		if err := database.DB.QueryRow(`SELECT COUNT(*) FROM funds WHERE user_id = ?`, userID).Scan(&stats.FundCount); err != nil {
			sendJSONError(w, "Failed to load stats", http.StatusInternalServerError)
			return
		}
		if err := database.DB.QueryRow(`SELECT COUNT(*) FROM fund_data_uploads WHERE user_id = ?`, userID).Scan(&stats.UploadCount); err != nil {
			sendJSONError(w, "Failed to load stats", http.StatusInternalServerError)
			return
		}
		h.statsCache.Set(cacheKey, stats, cache.DefaultExpiration)
	}

	sendJSON(w, map[string]interface{}{
		"stats":          stats,
		"premium_active": user.IsPremiumActive(time.Now()),
	}, http.StatusOK)
}

func (h *UserHandler) GetLoginHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	entries, err := model.GetLoginHistory(database.DB, userID, 20)
	if err != nil {
		sendJSONError(w, "Failed to load login history", http.StatusInternalServerError)
		return
	}
	sendJSON(w, entries, http.StatusOK)
}

// --- MFA ---

func (h *UserHandler) SetupMFA(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if user.MfaEnabled {
		sendJSONError(w, "MFA already enabled", http.StatusConflict)
		return
	}

	secret, qrCode, err := h.mfaService.GenerateMFASecret(user.Username)
	if err != nil {
		sendJSONError(w, "Failed to generate MFA secret", http.StatusInternalServerError)
		return
	}
	// Secret is stored but not enabled until the first code is confirmed.
	if err := user.UpdateMFA(database.DB, false, secret); err != nil {
		sendJSONError(w, "Failed to store MFA secret", http.StatusInternalServerError)
		return
	}
	sendJSON(w, map[string]string{"secret": secret, "qr_code": qrCode}, http.StatusOK)
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (h *UserHandler) ConfirmMFA(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	user, err := model.GetUserByID(database.DB, userID)
	if err != nil || user.MfaSecret == "" {
		sendJSONError(w, "MFA setup not started", http.StatusBadRequest)
		return
	}
	if !h.mfaService.ValidateToken(user.MfaSecret, req.Code) {
		sendJSONError(w, "Invalid MFA code", http.StatusUnauthorized)
		return
	}
	if err := user.UpdateMFA(database.DB, true, user.MfaSecret); err != nil {
		sendJSONError(w, "Failed to enable MFA", http.StatusInternalServerError)
		return
	}
	sendJSON(w, map[string]string{"message": "MFA enabled"}, http.StatusOK)
}

func (h *UserHandler) DisableMFA(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	user, err := model.GetUserByID(database.DB, userID)
	if err != nil || !user.MfaEnabled {
		sendJSONError(w, "MFA not enabled", http.StatusBadRequest)
		return
	}
	if !h.mfaService.ValidateToken(user.MfaSecret, req.Code) {
		sendJSONError(w, "Invalid MFA code", http.StatusUnauthorized)
		return
	}
	if err := user.UpdateMFA(database.DB, false, ""); err != nil {
		sendJSONError(w, "Failed to disable MFA", http.StatusInternalServerError)
		return
	}
	sendJSON(w, map[string]string{"message": "MFA disabled"}, http.StatusOK)
}

// --- Admin ---

func (h *UserHandler) AdminUserStats(w http.ResponseWriter, r *http.Request) {
	stats := struct {
		TotalUsers    int `json:"total_users"`
		VerifiedUsers int `json:"verified_users"`
		PremiumUsers  int `json:"premium_users"`
		TotalFunds    int `json:"total_funds"`
		TotalUploads  int `json:"total_uploads"`
	}{}

	queries := []struct {
		dest  *int
		query string
	}{
		{&stats.TotalUsers, `SELECT COUNT(*) FROM users`},
		{&stats.VerifiedUsers, `SELECT COUNT(*) FROM users WHERE is_email_verified = TRUE`},
		{&stats.PremiumUsers, `SELECT COUNT(*) FROM users WHERE is_premium = TRUE`},
		{&stats.TotalFunds, `SELECT COUNT(*) FROM funds`},
		{&stats.TotalUploads, `SELECT COUNT(*) FROM fund_data_uploads`},
	}
	for _, q := range queries {
		if err := database.DB.QueryRow(q.query).Scan(q.dest); err != nil {
			sendJSONError(w, "Failed to load stats", http.StatusInternalServerError)
			return
		}
	}
	sendJSON(w, stats, http.StatusOK)
}

type setPremiumRequest struct {
	Email     string `json:"email"`
	IsPremium bool   `json:"is_premium"`
	ExpiresAt string `json:"expires_at,omitempty"` // RFC 3339; empty means no expiry
}

// AdminSetPremium grants or revokes a premium subscription.
func (h *UserHandler) AdminSetPremium(w http.ResponseWriter, r *http.Request) {
	var req setPremiumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	user, err := model.GetUserByEmail(database.DB, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		sendJSONError(w, "Failed to look up user", http.StatusInternalServerError)
		return
	}

	var expiresAt time.Time
	if req.ExpiresAt != "" {
		expiresAt, err = time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			sendJSONError(w, "expires_at must be RFC 3339", http.StatusBadRequest)
			return
		}
	}
	if err := user.UpdatePremium(database.DB, req.IsPremium, expiresAt); err != nil {
		sendJSONError(w, "Failed to update premium state", http.StatusInternalServerError)
		return
	}
	logger.InfoFromContext(r.Context(), "premium state changed",
		"targetUserID", user.ID, "isPremium", req.IsPremium, "expiresAt", req.ExpiresAt)
	sendJSON(w, h.buildProfile(user), http.StatusOK)
}
