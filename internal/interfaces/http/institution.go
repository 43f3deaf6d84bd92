package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"finsight/internal/domain/account"
	"finsight/internal/domain/institution"
	domainsync "finsight/internal/domain/sync"
	"finsight/internal/infrastructure/plaid"
	"finsight/internal/interfaces/scheduler"
	"finsight/internal/shared/middleware"
)

// syncRunner is the slice of the sync service the handlers need.
type syncRunner interface {
	SyncInstitution(ctx context.Context, institutionID string, forceStart *time.Time) (*domainsync.Result, error)
	SyncAllForUser(ctx context.Context, userID int64, forceStart *time.Time) (*domainsync.BulkResult, error)
	SyncByItemID(ctx context.Context, itemID string) (*domainsync.Result, error)
}

type InstitutionHandler struct {
	plaidClient     plaid.ClientInterface
	institutionRepo institution.Repository
	accountRepo     account.Repository
	syncService     syncRunner
	pool            *scheduler.WorkerPool // optional; enables the initial sync after linking
}

func NewInstitutionHandler(plaidClient plaid.ClientInterface, institutionRepo institution.Repository, accountRepo account.Repository, syncService syncRunner, pool *scheduler.WorkerPool) *InstitutionHandler {
	return &InstitutionHandler{
		plaidClient:     plaidClient,
		institutionRepo: institutionRepo,
		accountRepo:     accountRepo,
		syncService:     syncService,
		pool:            pool,
	}
}

// Request/Response DTOs

type LinkTokenResponse struct {
	LinkToken string `json:"linkToken"`
}

type ExchangeTokenRequest struct {
	PublicToken string `json:"publicToken"`
}

type AccountResponse struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Mask    *string  `json:"mask,omitempty"`
	Type    string   `json:"type"`
	Subtype *string  `json:"subtype,omitempty"`
	Balance *float64 `json:"balance,omitempty"`
}

type InstitutionResponse struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Logo     *string           `json:"logo,omitempty"`
	LastSync *time.Time        `json:"lastSync,omitempty"`
	Accounts []AccountResponse `json:"accounts,omitempty"`
}

type SyncRequest struct {
	StartDate *string `json:"startDate,omitempty"` // "2006-01-02", forces a wider window
}

type SyncResponse struct {
	InstitutionID string `json:"institutionId"`
	NewCount      int64  `json:"newCount"`
}

type BulkSyncResponse struct {
	NewCount int64    `json:"newCount"`
	Failed   []string `json:"failed,omitempty"`
}

func toAccountResponse(a *account.Account) AccountResponse {
	return AccountResponse{
		ID:      a.ID,
		Name:    a.Name,
		Mask:    a.Mask,
		Type:    a.AccountType,
		Subtype: a.Subtype,
		Balance: a.Balance,
	}
}

func toInstitutionResponse(inst *institution.Institution) InstitutionResponse {
	return InstitutionResponse{
		ID:       inst.ID,
		Name:     inst.Name,
		Logo:     inst.Logo,
		LastSync: inst.LastSync,
	}
}

// parseForceStart parses the optional sync start date override.
func parseForceStart(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// HandleLinkToken creates a short-lived token for the provider's link flow.
func (h *InstitutionHandler) HandleLinkToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	linkToken, err := h.plaidClient.CreateLinkToken(r.Context(), userID)
	if err != nil {
		log.Printf("Error creating link token for user %d: %v", userID, err)
		http.Error(w, "Failed to create link token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LinkTokenResponse{LinkToken: linkToken})
}

// HandleInstitutions routes requests based on method.
func (h *InstitutionHandler) HandleInstitutions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListInstitutions(w, r)
	case http.MethodPost:
		h.handleExchangeToken(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleExchangeToken turns a public token from the link flow into a stored
// institution with its accounts.
func (h *InstitutionHandler) handleExchangeToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ExchangeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding exchange token request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PublicToken == "" {
		http.Error(w, "Public token is required", http.StatusBadRequest)
		return
	}

	result, err := h.plaidClient.ExchangePublicToken(r.Context(), req.PublicToken)
	if err != nil {
		log.Printf("Error exchanging public token for user %d: %v", userID, err)
		http.Error(w, "Failed to link institution", http.StatusInternalServerError)
		return
	}

	inst, err := h.institutionRepo.Create(r.Context(), institution.CreateParams{
		ID:                 uuid.NewString(),
		UserID:             userID,
		AccessToken:        result.AccessToken,
		ItemID:             result.ItemID,
		PlaidInstitutionID: result.InstitutionID,
		Name:               result.InstitutionName,
		Logo:               result.Logo,
	})
	if err != nil {
		if errors.Is(err, institution.ErrDuplicateLink) {
			http.Error(w, "Institution already linked", http.StatusConflict)
			return
		}
		log.Printf("Error storing institution for user %d: %v", userID, err)
		http.Error(w, "Failed to link institution", http.StatusInternalServerError)
		return
	}

	accountParams := make([]account.CreateParams, 0, len(result.Accounts))
	for _, a := range result.Accounts {
		accountParams = append(accountParams, account.CreateParams{
			ID:             uuid.NewString(),
			InstitutionID:  inst.ID,
			PlaidAccountID: a.AccountID,
			Name:           a.Name,
			Mask:           a.Mask,
			AccountType:    a.Type,
			Subtype:        a.Subtype,
			Balance:        a.Balances.Current,
		})
	}
	if err := h.accountRepo.CreateBatch(r.Context(), accountParams); err != nil {
		log.Printf("Error storing accounts for institution %s: %v", inst.ID, err)
		http.Error(w, "Failed to link institution", http.StatusInternalServerError)
		return
	}

	// Kick off the first sync in the background so linking returns fast.
	if h.pool != nil {
		if err := h.pool.Submit(scheduler.NewInstitutionSyncJob(inst.ItemID, h.syncService)); err != nil {
			log.Printf("Failed to enqueue initial sync for institution %s: %v", inst.ID, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toInstitutionResponse(inst))
}

// handleListInstitutions returns the user's linked institutions with accounts.
func (h *InstitutionHandler) handleListInstitutions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	institutions, err := h.institutionRepo.ListByUserID(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing institutions for user %d: %v", userID, err)
		http.Error(w, "Failed to list institutions", http.StatusInternalServerError)
		return
	}

	response := make([]InstitutionResponse, 0, len(institutions))
	for _, inst := range institutions {
		resp := toInstitutionResponse(inst)

		accounts, err := h.accountRepo.ListByInstitutionID(r.Context(), inst.ID)
		if err != nil {
			log.Printf("Error listing accounts for institution %s: %v", inst.ID, err)
			http.Error(w, "Failed to list institutions", http.StatusInternalServerError)
			return
		}
		resp.Accounts = make([]AccountResponse, 0, len(accounts))
		for _, a := range accounts {
			resp.Accounts = append(resp.Accounts, toAccountResponse(a))
		}

		response = append(response, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// getOwnedInstitution loads an institution and enforces ownership. Writes the
// error response and returns nil when the caller should stop.
func (h *InstitutionHandler) getOwnedInstitution(w http.ResponseWriter, r *http.Request, userID int64) *institution.Institution {
	institutionID := r.PathValue("id")
	if institutionID == "" {
		http.Error(w, "Institution ID is required", http.StatusBadRequest)
		return nil
	}

	inst, err := h.institutionRepo.GetByID(r.Context(), institutionID)
	if err != nil {
		if errors.Is(err, institution.ErrNotFound) {
			http.Error(w, "Institution not found", http.StatusNotFound)
			return nil
		}
		log.Printf("Error getting institution %s: %v", institutionID, err)
		http.Error(w, "Failed to get institution", http.StatusInternalServerError)
		return nil
	}
	if inst.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil
	}

	return inst
}

// HandleInstitutionByID routes requests for a specific institution.
func (h *InstitutionHandler) HandleInstitutionByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodDelete:
		h.handleDeleteInstitution(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleDeleteInstitution unlinks an institution; accounts and transactions
// cascade in storage.
func (h *InstitutionHandler) handleDeleteInstitution(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	inst := h.getOwnedInstitution(w, r, userID)
	if inst == nil {
		return
	}

	if err := h.institutionRepo.Delete(r.Context(), inst.ID); err != nil {
		log.Printf("Error deleting institution %s: %v", inst.ID, err)
		http.Error(w, "Failed to delete institution", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleInstitutionSync runs a sync for one institution. Provider failure
// detail stays in the logs; clients get a generic message.
func (h *InstitutionHandler) HandleInstitutionSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	inst := h.getOwnedInstitution(w, r, userID)
	if inst == nil {
		return
	}

	forceStart, errResp := h.decodeSyncRequest(w, r)
	if errResp {
		return
	}

	result, err := h.syncService.SyncInstitution(r.Context(), inst.ID, forceStart)
	if err != nil {
		if errors.Is(err, plaid.ErrReauthRequired) {
			http.Error(w, "Institution requires reauthentication", http.StatusConflict)
			return
		}
		log.Printf("Error syncing institution %s: %v", inst.ID, err)
		http.Error(w, "Failed to sync institution", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SyncResponse{
		InstitutionID: result.InstitutionID,
		NewCount:      result.SyncedCount,
	})
}

// HandleBulkSync syncs every institution of the authenticated user.
func (h *InstitutionHandler) HandleBulkSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	forceStart, errResp := h.decodeSyncRequest(w, r)
	if errResp {
		return
	}

	result, err := h.syncService.SyncAllForUser(r.Context(), userID, forceStart)
	if err != nil {
		log.Printf("Error running bulk sync for user %d: %v", userID, err)
		http.Error(w, "Failed to sync", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BulkSyncResponse{
		NewCount: result.SyncedCount,
		Failed:   result.Failed,
	})
}

// decodeSyncRequest reads the optional sync body. An empty body is valid.
// The second return value reports whether an error response was written.
func (h *InstitutionHandler) decodeSyncRequest(w http.ResponseWriter, r *http.Request) (*time.Time, bool) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil, true
	}

	forceStart, err := parseForceStart(req.StartDate)
	if err != nil {
		http.Error(w, "Invalid start date, expected YYYY-MM-DD", http.StatusBadRequest)
		return nil, true
	}
	return forceStart, false
}
