package main

import (
	"net/http"

	"go.uber.org/zap"

	httphandlers "keepmore/internal/interfaces/http"
	"keepmore/internal/shared/config"
	"keepmore/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check and app links
	mux.HandleFunc("GET /health", httphandlers.HandleHealth)
	mux.HandleFunc("GET /.well-known/apple-app-site-association", httphandlers.AppleAppSiteAssociation(cfg.Apple.AppIDs))

	// RevenueCat authenticates with its own shared secret
	mux.HandleFunc("POST /api/webhooks/revenuecat", deps.WebhookHandler.HandleRevenueCat)

	// User routes: the token subject must own the body's userId
	userAuth := middleware.UserAuth(deps.Verifier)
	mux.Handle("POST /api/plaid/create-link-token", userAuth(http.HandlerFunc(deps.PlaidHandler.HandleCreateLinkToken)))
	mux.Handle("POST /api/plaid/exchange-token", userAuth(http.HandlerFunc(deps.PlaidHandler.HandleExchangeToken)))
	mux.Handle("POST /api/plaid/investments/exchange-token", userAuth(http.HandlerFunc(deps.PlaidHandler.HandleExchangeInvestmentToken)))
	mux.Handle("POST /api/plaid/remove-item", userAuth(http.HandlerFunc(deps.PlaidHandler.HandleRemoveItem)))
	mux.Handle("POST /api/account/delete", userAuth(http.HandlerFunc(deps.AccountHandler.HandleDelete)))

	// Batch triggers: cron secret or an admin session
	cronAuth := middleware.CronAuth(cfg.Admin.CronSecret, deps.Verifier, cfg.Admin.EmailAllowlist)
	mux.Handle("POST /api/plaid/sync-data", cronAuth(http.HandlerFunc(deps.PlaidHandler.HandleSync)))
	mux.Handle("POST /api/plaid/investments/sync-data", cronAuth(http.HandlerFunc(deps.PlaidHandler.HandleSyncInvestments)))
	mux.Handle("POST /api/embeddings/batch", cronAuth(http.HandlerFunc(deps.EmbeddingHandler.HandleBatch)))

	mux.HandleFunc("POST /api/waitlist", deps.WaitlistHandler.HandleJoin)

	// Admin routes
	adminAuth := middleware.AdminAuth(deps.Verifier, cfg.Admin.EmailAllowlist)
	mux.Handle("GET /api/admin/metrics", adminAuth(http.HandlerFunc(deps.AdminHandler.HandleMetrics)))

	// Apply global middleware
	handler := middleware.Logging(logger)(middleware.CORS(cfg.Server.AllowedHosts)(mux))

	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		logger.Info("TLS security middleware enabled (HSTS)")
	}

	return middleware.Telemetry(handler)
}
