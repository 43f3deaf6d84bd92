package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"finsight/internal/domain/report"
	"finsight/internal/infrastructure/redis"
	"finsight/internal/shared/middleware"
)

const (
	defaultSeriesMonths = 6
	maxSeriesMonths     = 24
)

// ReportCaches groups the per-view read caches. Any of them may be nil, in
// which case the view is recomputed on every request.
type ReportCaches struct {
	Summary    *redis.ViewCache[*report.Summary]
	Monthly    *redis.ViewCache[[]report.SeriesPoint]
	Daily      *redis.ViewCache[[]report.SeriesPoint]
	Categories *redis.ViewCache[[]report.CategoryTotal]
}

type ReportHandler struct {
	reportService *report.Service
	caches        ReportCaches
}

func NewReportHandler(reportService *report.Service, caches ReportCaches) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		caches:        caches,
	}
}

// HandleSummary returns today/week/month spending totals with period changes.
func (h *ReportHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	key := redis.SummaryKey(userID)
	if h.caches.Summary != nil {
		if cached, hit := h.caches.Summary.Get(r.Context(), key); hit {
			writeJSON(w, cached)
			return
		}
	}

	summary, err := h.reportService.SpendingSummary(r.Context(), userID)
	if err != nil {
		log.Printf("Error computing spending summary for user %d: %v", userID, err)
		http.Error(w, "Failed to compute summary", http.StatusInternalServerError)
		return
	}

	if h.caches.Summary != nil {
		h.caches.Summary.Set(r.Context(), key, summary)
	}
	writeJSON(w, summary)
}

// HandleMonthlySeries returns per-month spending totals, zero-filled.
func (h *ReportHandler) HandleMonthlySeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	months := defaultSeriesMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid months parameter", http.StatusBadRequest)
			return
		}
		months = parsed
	}
	if months > maxSeriesMonths {
		months = maxSeriesMonths
	}

	key := redis.MonthlySeriesKey(userID, months)
	if h.caches.Monthly != nil {
		if cached, hit := h.caches.Monthly.Get(r.Context(), key); hit {
			writeJSON(w, cached)
			return
		}
	}

	series, err := h.reportService.MonthlySeries(r.Context(), userID, months)
	if err != nil {
		log.Printf("Error computing monthly series for user %d: %v", userID, err)
		http.Error(w, "Failed to compute series", http.StatusInternalServerError)
		return
	}

	if h.caches.Monthly != nil {
		h.caches.Monthly.Set(r.Context(), key, series)
	}
	writeJSON(w, series)
}

// HandleDailySeries returns per-day spending totals for the last 30 days.
func (h *ReportHandler) HandleDailySeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	key := redis.DailySeriesKey(userID)
	if h.caches.Daily != nil {
		if cached, hit := h.caches.Daily.Get(r.Context(), key); hit {
			writeJSON(w, cached)
			return
		}
	}

	series, err := h.reportService.DailySeries(r.Context(), userID)
	if err != nil {
		log.Printf("Error computing daily series for user %d: %v", userID, err)
		http.Error(w, "Failed to compute series", http.StatusInternalServerError)
		return
	}

	if h.caches.Daily != nil {
		h.caches.Daily.Set(r.Context(), key, series)
	}
	writeJSON(w, series)
}

// HandleCategoryBreakdown returns the current month's spend per category.
func (h *ReportHandler) HandleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	key := redis.CategoriesKey(userID)
	if h.caches.Categories != nil {
		if cached, hit := h.caches.Categories.Get(r.Context(), key); hit {
			writeJSON(w, cached)
			return
		}
	}

	breakdown, err := h.reportService.CategoryBreakdown(r.Context(), userID)
	if err != nil {
		log.Printf("Error computing category breakdown for user %d: %v", userID, err)
		http.Error(w, "Failed to compute breakdown", http.StatusInternalServerError)
		return
	}

	if h.caches.Categories != nil {
		h.caches.Categories.Set(r.Context(), key, breakdown)
	}
	writeJSON(w, breakdown)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
