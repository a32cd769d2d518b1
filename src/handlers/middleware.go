package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/username/zynbudget/backend/src/config"
	"github.com/username/zynbudget/backend/src/database"
	"github.com/username/zynbudget/backend/src/logger"
	"github.com/username/zynbudget/backend/src/model"
)

// ContextualLoggerMiddleware tags every request with a request ID and puts
// an enriched logger in the context.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware validates the bearer token, checks the backing session for
// locally-authenticated users, and stores the user ID in the context.
func (h *UserHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger := logger.FromContext(r.Context())

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			ctxLogger.Debug("authorization header missing", "path", r.URL.Path)
			sendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			sendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		userIDStr, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			ctxLogger.Warn("token validation failed", "path", r.URL.Path, "error", err)
			sendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		userID, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			ctxLogger.Error("invalid user ID in token subject", "subject", userIDStr)
			sendJSONError(w, "Invalid user ID in token", http.StatusInternalServerError)
			return
		}

		// Local accounts are session-backed; a revoked session kills the
		// access token immediately. OAuth accounts skip this.
		if _, err := model.GetSessionByToken(database.DB, tokenString); err != nil {
			user, userErr := model.GetUserByID(database.DB, userID)
			if userErr != nil || user.AuthProvider == "local" {
				ctxLogger.Warn("session validation failed", "path", r.URL.Path, "error", err)
				sendJSONError(w, "Invalid or expired session", http.StatusUnauthorized)
				return
			}
		}

		enrichedLogger := ctxLogger.With(slog.Int64("userID", userID))
		ctx := logger.ToContext(r.Context(), enrichedLogger)
		ctx = context.WithValue(ctx, userIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminMiddleware allows only users whose email is in the admin allowlist.
// It must run after AuthMiddleware.
func (h *UserHandler) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromContext(r)
		if !ok {
			sendJSONError(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		user, err := model.GetUserByID(database.DB, userID)
		if err != nil {
			sendJSONError(w, "User not found", http.StatusUnauthorized)
			return
		}
		if !isAdminEmail(user.Email) {
			logger.FromContext(r.Context()).Warn("admin access denied", "email", user.Email)
			sendJSONError(w, "Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAdminEmail(email string) bool {
	for _, admin := range config.Cfg.AdminEmails {
		if strings.EqualFold(admin, email) {
			return true
		}
	}
	return false
}
