package main

import (
	"crypto/tls"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/patrickmn/go-cache"
	"github.com/username/zynbudget/backend/src/config"
	"github.com/username/zynbudget/backend/src/database"
	"github.com/username/zynbudget/backend/src/handlers"
	"github.com/username/zynbudget/backend/src/logger"
	"github.com/username/zynbudget/backend/src/security"
	"github.com/username/zynbudget/backend/src/services"
	"golang.org/x/time/rate"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("ZynBudget backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	summaryCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	handlers.InitializeGoogleOAuthConfig()

	authService := security.NewAuthService(config.Cfg.JWTSecret)
	emailService := services.NewEmailService()
	mfaService := services.NewMFAService()
	fundService := services.NewFundService(database.DB, summaryCache)
	uploadService := services.NewUploadService(database.DB, fundService)

	userHandler := handlers.NewUserHandler(authService, emailService, mfaService, summaryCache)
	fundHandler := handlers.NewFundHandler(fundService)
	uploadHandler := handlers.NewUploadHandler(uploadService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", config.Cfg.FrontendBaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization", "X-Requested-With", "Cookie", "If-None-Match"},
		ExposedHeaders:   []string{"X-CSRF-Token", "ETag"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "ZynBudget Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Get("/auth/csrf", handlers.GetCSRFToken)
			r.Get("/auth/verify-email", userHandler.VerifyEmail)
			r.Get("/auth/google/login", userHandler.HandleGoogleLogin)
			r.Get("/auth/google/callback", userHandler.HandleGoogleCallback)
		})

		// Authentication routes (CSRF protected)
		r.Group(func(r chi.Router) {
			r.Use(handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey))
			r.Post("/auth/register", userHandler.RegisterUser)
			r.Post("/auth/login", userHandler.Login)
			r.Post("/auth/refresh", userHandler.RefreshToken)
			r.With(userHandler.AuthMiddleware).Post("/auth/logout", userHandler.Logout)
			r.Post("/auth/request-password-reset", userHandler.RequestPasswordReset)
			r.Post("/auth/reset-password", userHandler.ConfirmPasswordReset)
		})

		// Protected routes (require authentication and CSRF)
		r.Group(func(r chi.Router) {
			r.Use(handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey))
			r.Use(userHandler.AuthMiddleware)

			r.Get("/user/profile", userHandler.GetProfile)
			r.Put("/user/profile", userHandler.UpdateProfile)
			r.Post("/user/profile/avatar", userHandler.UploadAvatar)
			r.Delete("/user/profile/avatar", userHandler.DeleteAvatar)
			r.Get("/user/profile/stats", userHandler.GetProfileStats)
			r.Get("/user/login-history", userHandler.GetLoginHistory)
			r.Post("/user/change-password", userHandler.ChangePassword)
			r.Get("/user/mfa/setup", userHandler.SetupMFA)
			r.Post("/user/mfa/confirm", userHandler.ConfirmMFA)
			r.Post("/user/mfa/disable", userHandler.DisableMFA)

			r.Get("/fund-types", fundHandler.ListFundTypes)
			r.Post("/fund-types", fundHandler.CreateFundType)
			r.Put("/fund-types/{fundTypeID}", fundHandler.UpdateFundType)
			r.Delete("/fund-types/{fundTypeID}", fundHandler.DeleteFundType)

			r.Get("/fund-managers", fundHandler.ListFundManagers)
			r.Post("/fund-managers", fundHandler.CreateFundManager)
			r.Put("/fund-managers/{fundManagerID}", fundHandler.UpdateFundManager)
			r.Delete("/fund-managers/{fundManagerID}", fundHandler.DeleteFundManager)

			r.Get("/funds", fundHandler.ListFunds)
			r.Post("/funds", fundHandler.CreateFund)
			r.Get("/funds/{fundID}", fundHandler.GetFund)
			r.Put("/funds/{fundID}", fundHandler.UpdateFund)
			r.Delete("/funds/{fundID}", fundHandler.DeleteFund)
			r.Get("/funds/{fundID}/summary", fundHandler.GetFundSummary)

			r.Get("/funds/{fundID}/contributions", fundHandler.ListRSAContributions)
			r.Post("/funds/{fundID}/contributions", fundHandler.AddRSAContribution)
			r.Get("/funds/{fundID}/rsa-balances", fundHandler.ListRSABalances)
			r.Post("/funds/{fundID}/rsa-balances", fundHandler.RecordRSABalance)

			r.Get("/funds/{fundID}/transactions", fundHandler.ListManagedTransactions)
			r.Post("/funds/{fundID}/transactions", fundHandler.AddManagedTransaction)
			r.Get("/funds/{fundID}/balances", fundHandler.ListManagedBalances)
			r.Post("/funds/{fundID}/balances", fundHandler.RecordManagedBalance)

			r.Get("/funds/{fundID}/performance", fundHandler.ListPerformance)
			r.Post("/funds/{fundID}/performance", fundHandler.RecordPerformance)

			r.Post("/uploads", uploadHandler.ProcessUpload)
			r.Get("/uploads", uploadHandler.ListUploads)
			r.Get("/uploads/{uploadID}", uploadHandler.GetUpload)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(userHandler.AdminMiddleware)
				r.Get("/admin/stats", userHandler.AdminUserStats)
				r.Post("/admin/users/premium", userHandler.AdminSetPremium)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
