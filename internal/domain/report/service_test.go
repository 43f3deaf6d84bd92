package report

import (
	"context"
	"testing"
	"time"

	"finsight/internal/domain/transaction"
)

type MockTransactionRepo struct {
	ListExpensesInRangeFunc func(ctx context.Context, userID int64, start, end time.Time) ([]*transaction.Transaction, error)
}

func (m *MockTransactionRepo) InsertBatchIgnoreDuplicates(ctx context.Context, rows []transaction.Transaction) (int64, error) {
	return 0, nil
}
func (m *MockTransactionRepo) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error) {
	return nil, nil
}
func (m *MockTransactionRepo) ListExpensesInRange(ctx context.Context, userID int64, start, end time.Time) ([]*transaction.Transaction, error) {
	if m.ListExpensesInRangeFunc != nil {
		return m.ListExpensesInRangeFunc(ctx, userID, start, end)
	}
	return nil, nil
}

// filterRange mimics the storage filter so fixtures can be declared once.
func filterRange(rows []*transaction.Transaction, start, end time.Time) []*transaction.Transaction {
	var out []*transaction.Transaction
	for _, tx := range rows {
		if !tx.Date.Before(start) && tx.Date.Before(end) {
			out = append(out, tx)
		}
	}
	return out
}

func newTestService(fixedNow time.Time, rows []*transaction.Transaction) *Service {
	repo := &MockTransactionRepo{
		ListExpensesInRangeFunc: func(ctx context.Context, userID int64, start, end time.Time) ([]*transaction.Transaction, error) {
			return filterRange(rows, start, end), nil
		},
	}
	svc := NewService(repo)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func tx(date time.Time, amount float64, categories ...string) *transaction.Transaction {
	return &transaction.Transaction{
		ID:         date.Format("20060102T150405") + "-" + categories[0],
		UserID:     1,
		Amount:     amount,
		Date:       date,
		Categories: categories,
	}
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name     string
		previous float64
		current  float64
		want     float64
	}{
		{"zero previous with spending", 0, 50, 100},
		{"zero previous without spending", 0, 0, 0},
		{"increase", 100, 150, 50},
		{"decrease", 100, 75, -25},
		{"rounds to one decimal", 3, 4, 33.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentChange(tt.previous, tt.current); got != tt.want {
				t.Errorf("percentChange(%v, %v) = %v, want %v", tt.previous, tt.current, got, tt.want)
			}
		})
	}
}

func TestWeekStart(t *testing.T) {
	// Wednesday 2024-06-12 → Monday 2024-06-10
	got := weekStart(time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC))
	want := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("weekStart() = %v, want %v", got, want)
	}

	// A Monday maps to itself
	got = weekStart(want)
	if !got.Equal(want) {
		t.Errorf("weekStart(monday) = %v, want %v", got, want)
	}
}

func TestSpendingSummary(t *testing.T) {
	// Saturday 2024-06-15
	now := time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)

	rows := []*transaction.Transaction{
		tx(time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC), 20, "FOOD_AND_DRINK"),  // today
		tx(time.Date(2024, 6, 14, 9, 0, 0, 0, time.UTC), 10, "FOOD_AND_DRINK"),  // yesterday + this week
		tx(time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC), 70, "TRAVEL"),           // earlier this month, last week
		tx(time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC), 50, "TRAVEL"),          // last month
	}

	svc := newTestService(now, rows)

	summary, err := svc.SpendingSummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("SpendingSummary() failed: %v", err)
	}

	if summary.Today.Total != 20 {
		t.Errorf("Today.Total = %v, want 20", summary.Today.Total)
	}
	if summary.Today.Change != 100 {
		// 10 yesterday → 20 today
		t.Errorf("Today.Change = %v, want 100", summary.Today.Change)
	}

	// This week (Mon 06-10 .. Sun 06-16): 20 + 10 = 30. Last week: 70.
	if summary.Week.Total != 30 {
		t.Errorf("Week.Total = %v, want 30", summary.Week.Total)
	}
	if summary.Week.Change != -57.1 {
		t.Errorf("Week.Change = %v, want -57.1", summary.Week.Change)
	}

	// June: 100. May: 50.
	if summary.Month.Total != 100 {
		t.Errorf("Month.Total = %v, want 100", summary.Month.Total)
	}
	if summary.Month.Change != 100 {
		t.Errorf("Month.Change = %v, want 100", summary.Month.Change)
	}
}

func TestSpendingSummary_NoHistory(t *testing.T) {
	now := time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)
	svc := newTestService(now, nil)

	summary, err := svc.SpendingSummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("SpendingSummary() failed: %v", err)
	}
	if summary.Today.Total != 0 || summary.Today.Change != 0 {
		t.Errorf("empty history should report zero totals and zero change, got %+v", summary.Today)
	}
}

func TestMonthlySeries_ZeroFill(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	rows := []*transaction.Transaction{
		tx(time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), 40, "FOOD_AND_DRINK"),
		tx(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 25, "TRAVEL"),
	}

	svc := newTestService(now, rows)

	points, err := svc.MonthlySeries(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("MonthlySeries() failed: %v", err)
	}

	want := []SeriesPoint{
		{Period: "2024-04", Total: 40},
		{Period: "2024-05", Total: 0},
		{Period: "2024-06", Total: 25},
	}
	if len(points) != len(want) {
		t.Fatalf("MonthlySeries() returned %d points, want %d", len(points), len(want))
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("points[%d] = %+v, want %+v", i, points[i], want[i])
		}
	}
}

func TestDailySeries(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	rows := []*transaction.Transaction{
		tx(time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC), 12.5, "FOOD_AND_DRINK"),
		tx(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), 5, "TRAVEL"),
		// outside the 30-day window
		tx(time.Date(2024, 5, 30, 9, 0, 0, 0, time.UTC), 99, "TRAVEL"),
	}

	svc := newTestService(now, rows)

	points, err := svc.DailySeries(context.Background(), 1)
	if err != nil {
		t.Fatalf("DailySeries() failed: %v", err)
	}

	if len(points) != 30 {
		t.Fatalf("DailySeries() returned %d points, want 30", len(points))
	}
	if points[0].Period != "2024-06-01" || points[0].Total != 5 {
		t.Errorf("points[0] = %+v, want 2024-06-01 total 5", points[0])
	}
	if points[29].Period != "2024-06-30" || points[29].Total != 12.5 {
		t.Errorf("points[29] = %+v, want 2024-06-30 total 12.5", points[29])
	}
	for i := 1; i < 29; i++ {
		if points[i].Total != 0 {
			t.Errorf("points[%d] (%s) = %v, want 0", i, points[i].Period, points[i].Total)
		}
	}
}

func TestCategoryBreakdown(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	rows := []*transaction.Transaction{
		tx(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), 40, "FOOD_AND_DRINK"),
		tx(time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), 10, "FOOD_AND_DRINK", "RESTAURANTS"),
		tx(time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC), 25, "TRAVEL"),
		// last month, excluded
		tx(time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC), 500, "TRAVEL"),
	}
	// uncategorized row, excluded
	rows = append(rows, &transaction.Transaction{
		ID:     "uncategorized",
		UserID: 1,
		Amount: 33,
		Date:   time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	})

	svc := newTestService(now, rows)

	breakdown, err := svc.CategoryBreakdown(context.Background(), 1)
	if err != nil {
		t.Fatalf("CategoryBreakdown() failed: %v", err)
	}

	want := []CategoryTotal{
		{Category: "FOOD_AND_DRINK", Total: 50},
		{Category: "TRAVEL", Total: 25},
	}
	if len(breakdown) != len(want) {
		t.Fatalf("CategoryBreakdown() returned %d entries, want %d: %+v", len(breakdown), len(want), breakdown)
	}
	for i := range want {
		if breakdown[i] != want[i] {
			t.Errorf("breakdown[%d] = %+v, want %+v", i, breakdown[i], want[i])
		}
	}
}
