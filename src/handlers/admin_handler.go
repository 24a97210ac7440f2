package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/kabutax/backend/src/config"
	"github.com/username/kabutax/backend/src/logger"
	"github.com/username/kabutax/backend/src/models"
	"github.com/username/kabutax/backend/src/security"
	"github.com/username/kabutax/backend/src/services"
	"github.com/username/kabutax/backend/src/utils"
)

type AdminHandler struct {
	authService  *security.AuthService
	adminService services.AdminService
	fxSync       services.FxSyncService
}

func NewAdminHandler(authService *security.AuthService, adminService services.AdminService, fxSync services.FxSyncService) *AdminHandler {
	return &AdminHandler{
		authService:  authService,
		adminService: adminService,
		fxSync:       fxSync,
	}
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

func (h *AdminHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if config.Cfg.AdminPasswordHash == "" {
		utils.SendJSONError(w, "Admin access is not configured", http.StatusServiceUnavailable)
		return
	}

	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	if err := h.authService.CheckAdminPassword(config.Cfg.AdminPasswordHash, req.Password); err != nil {
		logger.L.Warn("Admin login failed", "remoteAddr", r.RemoteAddr)
		utils.SendJSONError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.authService.GenerateToken("admin")
	if err != nil {
		logger.L.Error("Failed to generate admin token", "error", err)
		utils.SendJSONError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Admin login succeeded", "remoteAddr", r.RemoteAddr)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// AuthMiddleware guards the admin endpoints with a bearer token.
func (h *AdminHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.L.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		subject, err := h.authService.ValidateToken(tokenString)
		if err != nil || subject != "admin" {
			logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

func (h *AdminHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.GetStats()
	if err != nil {
		logger.L.Error("Error retrieving stats", "error", err)
		utils.SendJSONError(w, "Failed to retrieve stats", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *AdminHandler) HandleGetCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.adminService.GetCustomers()
	if err != nil {
		logger.L.Error("Error retrieving customers", "error", err)
		utils.SendJSONError(w, "Failed to retrieve customers", http.StatusInternalServerError)
		return
	}
	if customers == nil {
		customers = []models.Customer{}
	}

	etag, err := utils.GenerateETag(customers)
	if err == nil {
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(customers)
}

func (h *AdminHandler) HandleGetCustomerSubmissions(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	if email == "" {
		utils.SendJSONError(w, "email path parameter is required", http.StatusBadRequest)
		return
	}

	subs, err := h.adminService.GetCustomerSubmissions(email)
	if err != nil {
		logger.L.Error("Error retrieving customer submissions", "email", email, "error", err)
		utils.SendJSONError(w, "Failed to retrieve customer submissions", http.StatusInternalServerError)
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(subs)
}

func (h *AdminHandler) HandleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	if email == "" {
		utils.SendJSONError(w, "email path parameter is required", http.StatusBadRequest)
		return
	}

	deleted, err := h.adminService.DeleteCustomer(email)
	if err != nil {
		logger.L.Error("Error deleting customer", "email", email, "error", err)
		utils.SendJSONError(w, "Failed to delete customer", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"deleted_submissions": deleted,
	})
}

// HandleSyncFxRates refreshes the rate table for one currency from the
// upstream feed.
func (h *AdminHandler) HandleSyncFxRates(w http.ResponseWriter, r *http.Request) {
	currency := strings.ToUpper(r.PathValue("currency"))
	if currency != models.CurrencyUSD && currency != models.CurrencyEUR {
		utils.SendJSONError(w, "currency must be USD or EUR", http.StatusBadRequest)
		return
	}

	added, err := h.fxSync.SyncCurrency(currency)
	if err != nil {
		logger.L.Error("FX sync failed", "currency", currency, "error", err)
		utils.SendJSONError(w, "FX sync failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"currency": currency,
		"added":    added,
	})
}
