// Package report computes read-side spending aggregates over synced
// transactions. All period boundaries are UTC so aggregation results do not
// drift with client timezones.
package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"

	"finsight/internal/domain/transaction"
)

var reportTracer = otel.Tracer("finsight.report")

// PeriodStat is one period's total plus the percentage change against the
// immediately preceding period of the same length.
type PeriodStat struct {
	Total  float64 `json:"total"`
	Change float64 `json:"change"`
}

// Summary covers today, this week, and this month.
type Summary struct {
	Today PeriodStat `json:"today"`
	Week  PeriodStat `json:"week"`
	Month PeriodStat `json:"month"`
}

// SeriesPoint is one bucket of a monthly or daily series.
type SeriesPoint struct {
	Period string  `json:"period"` // "2006-01" or "2006-01-02"
	Total  float64 `json:"total"`
}

// CategoryTotal is the spend attributed to one primary category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// Service computes aggregates. Only settled expense rows (pending = false,
// amount > 0) are counted; the repository enforces the filter.
type Service struct {
	transactionRepo transaction.Repository
	now             func() time.Time
}

func NewService(transactionRepo transaction.Repository) *Service {
	return &Service{
		transactionRepo: transactionRepo,
		now:             time.Now,
	}
}

// UTC period boundary helpers.

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekStart returns the Monday 00:00 UTC opening the week containing t.
func weekStart(t time.Time) time.Time {
	d := dayStart(t)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	return d.AddDate(0, 0, -offset)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// percentChange implements the zero-previous policy: a previous total of zero
// reports 100 when current spending exists, 0 when it does not.
func percentChange(previous, current float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return math.Round(((current-previous)/previous)*100*10) / 10
}

func (s *Service) sumRange(ctx context.Context, userID int64, start, end time.Time) (float64, error) {
	rows, err := s.transactionRepo.ListExpensesInRange(ctx, userID, start, end)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, tx := range rows {
		total += tx.Amount
	}
	return total, nil
}

// SpendingSummary computes today/this-week/this-month totals with
// prior-period comparison.
func (s *Service) SpendingSummary(ctx context.Context, userID int64) (*Summary, error) {
	ctx, span := reportTracer.Start(ctx, "report.SpendingSummary")
	defer span.End()

	now := s.now().UTC()

	type window struct {
		start, end time.Time
	}
	today := window{dayStart(now), dayStart(now).AddDate(0, 0, 1)}
	week := window{weekStart(now), weekStart(now).AddDate(0, 0, 7)}
	month := window{monthStart(now), monthStart(now).AddDate(0, 1, 0)}

	periods := []struct {
		current  window
		previous window
		out      *PeriodStat
	}{
		{today, window{today.start.AddDate(0, 0, -1), today.start}, nil},
		{week, window{week.start.AddDate(0, 0, -7), week.start}, nil},
		{month, window{month.start.AddDate(0, -1, 0), month.start}, nil},
	}

	summary := &Summary{}
	periods[0].out = &summary.Today
	periods[1].out = &summary.Week
	periods[2].out = &summary.Month

	for _, p := range periods {
		current, err := s.sumRange(ctx, userID, p.current.start, p.current.end)
		if err != nil {
			return nil, fmt.Errorf("failed to compute spending summary: %w", err)
		}
		previous, err := s.sumRange(ctx, userID, p.previous.start, p.previous.end)
		if err != nil {
			return nil, fmt.Errorf("failed to compute spending summary: %w", err)
		}
		p.out.Total = current
		p.out.Change = percentChange(previous, current)
	}

	return summary, nil
}

// MonthlySeries produces one zero-filled bucket per calendar month for the
// last `months` months (current month included), oldest first.
func (s *Service) MonthlySeries(ctx context.Context, userID int64, months int) ([]SeriesPoint, error) {
	ctx, span := reportTracer.Start(ctx, "report.MonthlySeries")
	defer span.End()

	if months < 1 {
		months = 1
	}

	now := s.now().UTC()
	start := monthStart(now).AddDate(0, -(months - 1), 0)
	end := monthStart(now).AddDate(0, 1, 0)

	rows, err := s.transactionRepo.ListExpensesInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to compute monthly series: %w", err)
	}

	totals := make(map[string]float64)
	for _, tx := range rows {
		totals[tx.Date.UTC().Format("2006-01")] += tx.Amount
	}

	points := make([]SeriesPoint, 0, months)
	for i := 0; i < months; i++ {
		key := start.AddDate(0, i, 0).Format("2006-01")
		points = append(points, SeriesPoint{Period: key, Total: totals[key]})
	}

	return points, nil
}

// DailySeries produces one zero-filled bucket per day for the last 30 days
// (today included), oldest first.
func (s *Service) DailySeries(ctx context.Context, userID int64) ([]SeriesPoint, error) {
	ctx, span := reportTracer.Start(ctx, "report.DailySeries")
	defer span.End()

	const days = 30

	now := s.now().UTC()
	start := dayStart(now).AddDate(0, 0, -(days - 1))
	end := dayStart(now).AddDate(0, 0, 1)

	rows, err := s.transactionRepo.ListExpensesInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily series: %w", err)
	}

	totals := make(map[string]float64)
	for _, tx := range rows {
		totals[tx.Date.UTC().Format("2006-01-02")] += tx.Amount
	}

	points := make([]SeriesPoint, 0, days)
	for i := 0; i < days; i++ {
		key := start.AddDate(0, 0, i).Format("2006-01-02")
		points = append(points, SeriesPoint{Period: key, Total: totals[key]})
	}

	return points, nil
}

// CategoryBreakdown sums the current calendar month's spend by primary
// category, descending by total. Uncategorized transactions are excluded.
func (s *Service) CategoryBreakdown(ctx context.Context, userID int64) ([]CategoryTotal, error) {
	ctx, span := reportTracer.Start(ctx, "report.CategoryBreakdown")
	defer span.End()

	now := s.now().UTC()
	start := monthStart(now)
	end := start.AddDate(0, 1, 0)

	rows, err := s.transactionRepo.ListExpensesInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to compute category breakdown: %w", err)
	}

	totals := make(map[string]float64)
	for _, tx := range rows {
		category := tx.PrimaryCategory()
		if category == "" {
			continue
		}
		totals[category] += math.Abs(tx.Amount)
	}

	breakdown := make([]CategoryTotal, 0, len(totals))
	for category, total := range totals {
		breakdown = append(breakdown, CategoryTotal{Category: category, Total: total})
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Total != breakdown[j].Total {
			return breakdown[i].Total > breakdown[j].Total
		}
		return breakdown[i].Category < breakdown[j].Category
	})

	return breakdown, nil
}
