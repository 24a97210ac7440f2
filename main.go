package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/kabutax/backend/src/config"
	"github.com/username/kabutax/backend/src/database"
	"github.com/username/kabutax/backend/src/handlers"
	"github.com/username/kabutax/backend/src/logger"
	"github.com/username/kabutax/backend/src/processors"
	"github.com/username/kabutax/backend/src/security"
	"github.com/username/kabutax/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
			config.Cfg.AppBaseURL:   true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag, Content-Disposition")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Kabutax backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		stdlog.Fatal("JWT_SECRET configuration invalid")
	}

	logger.L.Info("Loading exchange rate tables...", "dir", config.Cfg.FxDataDir)
	fxStore, err := processors.LoadFxStore(config.Cfg.FxDataDir)
	if err != nil {
		logger.L.Error("Failed to load exchange rate tables", "error", err)
		stdlog.Fatalf("Failed to load exchange rate tables: %v", err)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AdminTokenExpiry)
	emailService := services.NewEmailService()
	reportService := services.NewReportService()
	adminService := services.NewAdminService(reportCache)
	fxSyncService := services.NewFxSyncService(fxStore, config.Cfg.FxSyncBaseURL)

	calculator := processors.NewMovingAverageCalculator(fxStore, config.Cfg.FxLookbackDays)
	submissionService := services.NewSubmissionService(
		calculator, reportService, emailService, adminService,
		config.Cfg.MaxYears, config.Cfg.MaxTransactions,
	)

	submissionHandler := handlers.NewSubmissionHandler(submissionService)
	checkoutHandler := handlers.NewCheckoutHandler()
	adminHandler := handlers.NewAdminHandler(authService, adminService, fxSyncService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/submission", submissionHandler.HandleSubmission)
	apiRouter.HandleFunc("POST /api/checkout", checkoutHandler.HandleCreateCheckout)
	apiRouter.HandleFunc("GET /api/checkout/verify", checkoutHandler.HandleVerifyCheckout)

	apiRouter.HandleFunc("POST /api/admin/login", adminHandler.HandleLogin)
	apiRouter.HandleFunc("GET /api/admin/stats", adminHandler.AuthMiddleware(adminHandler.HandleGetStats))
	apiRouter.HandleFunc("GET /api/admin/customers", adminHandler.AuthMiddleware(adminHandler.HandleGetCustomers))
	apiRouter.HandleFunc("GET /api/admin/customers/{email}", adminHandler.AuthMiddleware(adminHandler.HandleGetCustomerSubmissions))
	apiRouter.HandleFunc("DELETE /api/admin/customers/{email}", adminHandler.AuthMiddleware(adminHandler.HandleDeleteCustomer))
	apiRouter.HandleFunc("POST /api/admin/fx-sync/{currency}", adminHandler.AuthMiddleware(adminHandler.HandleSyncFxRates))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Kabutax backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
