package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finsight/internal/domain/report"
	"finsight/internal/domain/transaction"
)

func newReportTestHandler(repo *MockTransactionRepo) *ReportHandler {
	return NewReportHandler(report.NewService(repo), ReportCaches{})
}

func emptyExpensesRepo() *MockTransactionRepo {
	return &MockTransactionRepo{
		ListExpensesInRangeFunc: func(ctx context.Context, userID int64, start, end time.Time) ([]*transaction.Transaction, error) {
			return nil, nil
		},
	}
}

func TestHandleSummary(t *testing.T) {
	handler := newReportTestHandler(emptyExpensesRepo())
	rr := httptest.NewRecorder()
	handler.HandleSummary(rr, authedRequest(http.MethodGet, "/api/reports/summary", nil, 7))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp report.Summary
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Month.Total != 0 || resp.Month.Change != 0 {
		t.Errorf("expected zero month stats, got %+v", resp.Month)
	}
}

func TestHandleMonthlySeries(t *testing.T) {
	var gotUser int64
	repo := &MockTransactionRepo{
		ListExpensesInRangeFunc: func(ctx context.Context, userID int64, start, end time.Time) ([]*transaction.Transaction, error) {
			gotUser = userID
			return nil, nil
		},
	}

	handler := newReportTestHandler(repo)
	rr := httptest.NewRecorder()
	handler.HandleMonthlySeries(rr, authedRequest(http.MethodGet, "/api/reports/monthly?months=3", nil, 7))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotUser != 7 {
		t.Errorf("expected user 7, got %d", gotUser)
	}
	var resp []report.SeriesPoint
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 3 {
		t.Errorf("expected 3 zero-filled points, got %d", len(resp))
	}
}

func TestHandleMonthlySeries_InvalidMonths(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "Zero", query: "?months=0"},
		{name: "Negative", query: "?months=-2"},
		{name: "Garbage", query: "?months=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newReportTestHandler(emptyExpensesRepo())
			rr := httptest.NewRecorder()
			handler.HandleMonthlySeries(rr, authedRequest(http.MethodGet, "/api/reports/monthly"+tt.query, nil, 7))

			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestHandleDailySeries(t *testing.T) {
	handler := newReportTestHandler(emptyExpensesRepo())
	rr := httptest.NewRecorder()
	handler.HandleDailySeries(rr, authedRequest(http.MethodGet, "/api/reports/daily", nil, 7))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp []report.SeriesPoint
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 30 {
		t.Errorf("expected 30 zero-filled points, got %d", len(resp))
	}
}

func TestHandleCategoryBreakdown(t *testing.T) {
	repo := &MockTransactionRepo{
		ListExpensesInRangeFunc: func(ctx context.Context, userID int64, start, end time.Time) ([]*transaction.Transaction, error) {
			return []*transaction.Transaction{
				{ID: "tx-1", Amount: 40, Date: start, Categories: []string{"FOOD_AND_DRINK"}},
				{ID: "tx-2", Amount: 25, Date: start, Categories: []string{"TRAVEL"}},
				{ID: "tx-3", Amount: 10, Date: start, Categories: []string{"FOOD_AND_DRINK"}},
			}, nil
		},
	}

	handler := newReportTestHandler(repo)
	rr := httptest.NewRecorder()
	handler.HandleCategoryBreakdown(rr, authedRequest(http.MethodGet, "/api/reports/categories", nil, 7))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp []report.CategoryTotal
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(resp))
	}
	if resp[0].Category != "FOOD_AND_DRINK" || resp[0].Total != 50 {
		t.Errorf("expected FOOD_AND_DRINK 50 first, got %+v", resp[0])
	}
}

func TestHandleReports_Unauthorized(t *testing.T) {
	handler := newReportTestHandler(emptyExpensesRepo())
	req := httptest.NewRequest(http.MethodGet, "/api/reports/summary", nil)
	rr := httptest.NewRecorder()
	handler.HandleSummary(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}
