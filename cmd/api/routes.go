package main

import (
	"log"
	"net/http"

	"finsight/internal/shared/config"
	"finsight/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", handleHealth)

	// Webhooks are authenticated by signature, not by session; they must see
	// the raw body and bypass the auth middleware.
	mux.HandleFunc("/api/webhooks/plaid", deps.PlaidWebhookHandler.HandleWebhook)
	mux.HandleFunc("/api/webhooks/stripe", deps.StripeWebhookHandler.HandleWebhook)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)

	mux.Handle("/api/link/token", authMiddleware(http.HandlerFunc(deps.InstitutionHandler.HandleLinkToken)))
	mux.Handle("/api/institutions", authMiddleware(http.HandlerFunc(deps.InstitutionHandler.HandleInstitutions)))
	mux.Handle("/api/institutions/{id}", authMiddleware(http.HandlerFunc(deps.InstitutionHandler.HandleInstitutionByID)))
	mux.Handle("/api/institutions/{id}/sync", authMiddleware(http.HandlerFunc(deps.InstitutionHandler.HandleInstitutionSync)))
	mux.Handle("/api/sync", authMiddleware(http.HandlerFunc(deps.InstitutionHandler.HandleBulkSync)))

	mux.Handle("/api/transactions", authMiddleware(http.HandlerFunc(deps.TransactionHandler.HandleTransactions)))

	mux.Handle("/api/reports/summary", authMiddleware(http.HandlerFunc(deps.ReportHandler.HandleSummary)))
	mux.Handle("/api/reports/series/monthly", authMiddleware(http.HandlerFunc(deps.ReportHandler.HandleMonthlySeries)))
	mux.Handle("/api/reports/series/daily", authMiddleware(http.HandlerFunc(deps.ReportHandler.HandleDailySeries)))
	mux.Handle("/api/reports/categories", authMiddleware(http.HandlerFunc(deps.ReportHandler.HandleCategoryBreakdown)))

	mux.Handle("/api/billing/checkout", authMiddleware(http.HandlerFunc(deps.BillingHandler.HandleCheckout)))
	mux.Handle("/api/billing/portal", authMiddleware(http.HandlerFunc(deps.BillingHandler.HandlePortal)))
	mux.Handle("/api/billing/cancel", authMiddleware(http.HandlerFunc(deps.BillingHandler.HandleCancel)))

	// Apply global middleware
	handler := middleware.Logging(middleware.Tracing(middleware.CORS(cfg.Server.AllowedHosts)(mux)))
	handler = middleware.Telemetry(handler)

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		log.Println("TLS security middleware enabled (HSTS)")
	}

	return handler
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
