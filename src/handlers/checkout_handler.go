package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/username/kabutax/backend/src/config"
	"github.com/username/kabutax/backend/src/logger"
	"github.com/username/kabutax/backend/src/utils"
)

// CheckoutHandler creates and verifies Stripe Checkout sessions. Access to
// the filing form is gated on a paid session, not on a user account.
type CheckoutHandler struct{}

func NewCheckoutHandler() *CheckoutHandler {
	stripe.Key = config.Cfg.StripeSecretKey
	return &CheckoutHandler{}
}

type checkoutRequest struct {
	PriceID string `json:"priceId"`
}

func (h *CheckoutHandler) HandleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	if config.Cfg.StripeSecretKey == "" {
		utils.SendJSONError(w, "Payment is not configured", http.StatusServiceUnavailable)
		return
	}

	var req checkoutRequest
	// An empty body is fine; the configured price is the default.
	_ = json.NewDecoder(r.Body).Decode(&req)

	priceID := strings.TrimSpace(req.PriceID)
	if priceID == "" {
		priceID = strings.TrimSpace(config.Cfg.StripePriceID)
	}
	if priceID == "" {
		utils.SendJSONError(w, "No price configured for checkout", http.StatusServiceUnavailable)
		return
	}

	appURL := strings.TrimSpace(config.Cfg.AppBaseURL)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(appURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(appURL + "/payment"),
	}

	sess, err := session.New(params)
	if err != nil {
		logger.L.Error("Failed to create checkout session", "error", err)
		utils.SendJSONError(w, "Failed to create checkout session", http.StatusBadGateway)
		return
	}
	logger.L.Info("Checkout session created", "sessionID", sess.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"sessionId": sess.ID,
		"url":       sess.URL,
	})
}

// HandleVerifyCheckout reports whether a checkout session has been paid. The
// frontend's payment guard polls this before unlocking the form.
func (h *CheckoutHandler) HandleVerifyCheckout(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		utils.SendJSONError(w, "session_id query parameter is required", http.StatusBadRequest)
		return
	}

	sess, err := session.Get(sessionID, nil)
	if err != nil {
		logger.L.Warn("Failed to retrieve checkout session", "sessionID", sessionID, "error", err)
		utils.SendJSONError(w, "Unknown checkout session", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sessionId": sess.ID,
		"paid":      sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	})
}
