package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"finsight/internal/shared/middleware"
)

// billingManager is the slice of the billing service the handlers need.
type billingManager interface {
	StartCheckout(ctx context.Context, userID int64, successURL, cancelURL string) (string, error)
	OpenPortal(ctx context.Context, userID int64, returnURL string) (string, error)
	CancelSubscription(ctx context.Context, userID int64) error
}

type BillingHandler struct {
	billing billingManager
}

func NewBillingHandler(billing billingManager) *BillingHandler {
	return &BillingHandler{billing: billing}
}

type CheckoutRequest struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type PortalRequest struct {
	ReturnURL string `json:"returnUrl"`
}

type RedirectResponse struct {
	URL string `json:"url"`
}

// HandleCheckout opens a subscription checkout and returns its URL.
func (h *BillingHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		http.Error(w, "successUrl and cancelUrl are required", http.StatusBadRequest)
		return
	}

	url, err := h.billing.StartCheckout(r.Context(), userID, req.SuccessURL, req.CancelURL)
	if err != nil {
		log.Printf("Error starting checkout for user %d: %v", userID, err)
		http.Error(w, "Failed to start checkout", http.StatusInternalServerError)
		return
	}

	writeJSON(w, RedirectResponse{URL: url})
}

// HandlePortal opens the self-service billing portal.
func (h *BillingHandler) HandlePortal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req PortalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ReturnURL == "" {
		http.Error(w, "returnUrl is required", http.StatusBadRequest)
		return
	}

	url, err := h.billing.OpenPortal(r.Context(), userID, req.ReturnURL)
	if err != nil {
		log.Printf("Error opening billing portal for user %d: %v", userID, err)
		http.Error(w, "Failed to open billing portal", http.StatusInternalServerError)
		return
	}

	writeJSON(w, RedirectResponse{URL: url})
}

// HandleCancel cancels the user's subscriptions at the provider. The local
// status flips when the resulting webhook arrives.
func (h *BillingHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.billing.CancelSubscription(r.Context(), userID); err != nil {
		log.Printf("Error canceling subscription for user %d: %v", userID, err)
		http.Error(w, "Failed to cancel subscription", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
