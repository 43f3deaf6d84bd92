package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"finsight/internal/domain/transaction"
	"finsight/internal/shared/middleware"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 200
)

type TransactionHandler struct {
	transactionRepo transaction.Repository
}

func NewTransactionHandler(transactionRepo transaction.Repository) *TransactionHandler {
	return &TransactionHandler{transactionRepo: transactionRepo}
}

type TransactionResponse struct {
	ID        string   `json:"id"`
	AccountID string   `json:"accountId"`
	Amount    float64  `json:"amount"`
	Date      string   `json:"date"`
	Name      string   `json:"name"`
	Category  string   `json:"category,omitempty"`
	Pending   bool     `json:"pending"`
	Labels    []string `json:"labels,omitempty"`
}

func toTransactionResponse(tx *transaction.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:        tx.ID,
		AccountID: tx.AccountID,
		Amount:    tx.Amount,
		Date:      tx.Date.UTC().Format(time.DateOnly),
		Name:      tx.Name,
		Category:  tx.PrimaryCategory(),
		Pending:   tx.Pending,
		Labels:    tx.Categories,
	}
}

// parsePaging reads limit/offset query parameters with bounds.
func parsePaging(r *http.Request) (limit, offset int) {
	limit = defaultTransactionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxTransactionLimit {
		limit = maxTransactionLimit
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// HandleTransactions lists the user's transactions newest-first.
func (h *TransactionHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit, offset := parsePaging(r)

	transactions, err := h.transactionRepo.ListByUserID(r.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("Error listing transactions for user %d: %v", userID, err)
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	response := make([]TransactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		response = append(response, toTransactionResponse(tx))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
