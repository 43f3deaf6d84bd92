package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finsight/internal/domain/transaction"
)

type MockTransactionRepo struct {
	InsertBatchIgnoreDuplicatesFunc func(ctx context.Context, rows []transaction.Transaction) (int64, error)
	ListByUserIDFunc                func(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error)
	ListExpensesInRangeFunc         func(ctx context.Context, userID int64, start, end time.Time) ([]*transaction.Transaction, error)
}

func (m *MockTransactionRepo) InsertBatchIgnoreDuplicates(ctx context.Context, rows []transaction.Transaction) (int64, error) {
	return m.InsertBatchIgnoreDuplicatesFunc(ctx, rows)
}

func (m *MockTransactionRepo) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error) {
	return m.ListByUserIDFunc(ctx, userID, limit, offset)
}

func (m *MockTransactionRepo) ListExpensesInRange(ctx context.Context, userID int64, start, end time.Time) ([]*transaction.Transaction, error) {
	return m.ListExpensesInRangeFunc(ctx, userID, start, end)
}

func TestHandleTransactions(t *testing.T) {
	repo := &MockTransactionRepo{
		ListByUserIDFunc: func(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error) {
			if userID != 7 {
				t.Errorf("expected user 7, got %d", userID)
			}
			if limit != 50 || offset != 0 {
				t.Errorf("expected default paging 50/0, got %d/%d", limit, offset)
			}
			return []*transaction.Transaction{
				{
					ID:         "tx-1",
					UserID:     userID,
					AccountID:  "acc-1",
					Amount:     12.40,
					Date:       time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
					Name:       "Coffee",
					Categories: []string{"FOOD_AND_DRINK", "COFFEE"},
				},
			}, nil
		},
	}

	handler := NewTransactionHandler(repo)
	rr := httptest.NewRecorder()
	handler.HandleTransactions(rr, authedRequest(http.MethodGet, "/api/transactions", nil, 7))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp []TransactionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(resp))
	}
	if resp[0].Date != "2024-06-14" {
		t.Errorf("expected date 2024-06-14, got %q", resp[0].Date)
	}
	if resp[0].Category != "FOOD_AND_DRINK" {
		t.Errorf("expected primary category FOOD_AND_DRINK, got %q", resp[0].Category)
	}
}

func TestHandleTransactions_Paging(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedLimit  int
		expectedOffset int
	}{
		{name: "Explicit", query: "?limit=20&offset=40", expectedLimit: 20, expectedOffset: 40},
		{name: "Capped Limit", query: "?limit=9999", expectedLimit: 200, expectedOffset: 0},
		{name: "Garbage Ignored", query: "?limit=abc&offset=-3", expectedLimit: 50, expectedOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit, gotOffset int
			repo := &MockTransactionRepo{
				ListByUserIDFunc: func(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error) {
					gotLimit = limit
					gotOffset = offset
					return nil, nil
				},
			}

			handler := NewTransactionHandler(repo)
			rr := httptest.NewRecorder()
			handler.HandleTransactions(rr, authedRequest(http.MethodGet, "/api/transactions"+tt.query, nil, 7))

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}
			if gotLimit != tt.expectedLimit || gotOffset != tt.expectedOffset {
				t.Errorf("paging = %d/%d, want %d/%d", gotLimit, gotOffset, tt.expectedLimit, tt.expectedOffset)
			}
		})
	}
}

func TestHandleTransactions_Unauthorized(t *testing.T) {
	handler := NewTransactionHandler(&MockTransactionRepo{})
	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rr := httptest.NewRecorder()
	handler.HandleTransactions(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}
