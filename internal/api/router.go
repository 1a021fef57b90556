/**
 * @description
 * This file sets up the HTTP router for the finance-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes creates and returns the router for the finance service.
func Routes(h *FinanceHandlers, authCfg AuthConfig, allowedOrigin string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// The gateway signs webhook deliveries; no bearer token is involved.
		r.Post("/webhooks/stripe", h.WebhookHandler)

		// Group routes that require authentication.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(authCfg))

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", h.GetWalletHandler)
				r.Get("/transactions", h.GetWalletTransactionsHandler)
				r.Put("/bank-details", h.UpdateBankDetailsHandler)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/checkout", h.CreatePurchaseCheckoutHandler)
				r.Get("/purchases", h.ListPurchasesHandler)
				r.Get("/sales", h.ListSalesHandler)
				r.Get("/sales/stats", h.GetSellerStatsHandler)
				r.Get("/{id}", h.GetOrderHandler)
				r.Post("/{id}/ship", h.MarkShippedHandler)
				r.Post("/{id}/deliver", h.MarkDeliveredHandler)
				r.Post("/{id}/confirm-receipt", h.ConfirmReceiptHandler)
				r.Post("/{id}/cancel", h.CancelOrderHandler)
				r.Post("/{id}/dispute", h.OpenDisputeHandler)
			})

			r.Route("/withdrawals", func(r chi.Router) {
				r.Post("/", h.RequestWithdrawalHandler)
				r.Get("/", h.ListWithdrawalsHandler)
				r.Get("/{id}", h.GetWithdrawalHandler)
				r.Post("/{id}/cancel", h.CancelWithdrawalHandler)
			})

			r.Route("/entitlements", func(r chi.Router) {
				r.Get("/", h.GetEntitlementsHandler)
				r.Post("/consume", h.ConsumeListingSlotHandler)
				r.Post("/refund", h.RefundListingSlotHandler)
			})

			r.Get("/plans", h.ListPlansHandler)
			r.Get("/credit-packs", h.ListCreditPacksHandler)
			r.Post("/subscriptions/checkout", h.CreateSubscriptionCheckoutHandler)
			r.Post("/credits/checkout", h.CreateCreditCheckoutHandler)
			r.Get("/credits/transactions", h.ListCreditTransactionsHandler)
			r.Get("/payments/session/{sessionID}", h.GetCheckoutPaymentHandler)

			// Admin review queue and support tooling.
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Route("/withdrawals", func(r chi.Router) {
					r.Get("/", h.ListPendingWithdrawalsHandler)
					r.Post("/{id}/approve", h.ApproveWithdrawalHandler)
					r.Post("/{id}/reject", h.RejectWithdrawalHandler)
				})
				r.Route("/wallets/{sellerID}", func(r chi.Router) {
					r.Post("/adjust", h.AdjustWalletHandler)
					r.Post("/release-pending", h.ReleaseHeldFundsHandler)
				})
			})
		})
	})

	return r
}
