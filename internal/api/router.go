/**
 * @description
 * This file sets up the HTTP router for the transfer engine. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for the internal cron triggers.
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

// Routes creates and returns the router for the transfer engine.
func Routes(h *TransferHandlers, wh *WebhookHandlers, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", internalAPIKeyHeader},
		MaxAge:         300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Recipient registry endpoints
	r.Post("/recipients", h.CreateRecipientHandler)
	r.Get("/recipients", h.ListRecipientsHandler)
	r.Get("/recipients/{recipientID}", h.GetRecipientHandler)
	r.Put("/recipients/{recipientID}", h.UpdateRecipientHandler)
	r.Delete("/recipients/{recipientID}", h.DeleteRecipientHandler)

	// Transfer endpoints
	r.Post("/transfers", h.CreateTransferHandler)
	r.Get("/transfers", h.ListTransfersHandler)
	r.Get("/transfers/{transferID}", h.GetTransferHandler)
	r.Get("/banks", h.ListBanksHandler)

	// Provider webhook endpoint; authenticated by HMAC signature, not API key.
	r.Post("/webhooks/paystack", wh.PaystackWebhookHandler)

	// Cron trigger endpoints for external schedulers; the in-process scheduler
	// runs the same sweeps.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))
		r.Post("/cron/transfers/status", h.RunFrequentSweepHandler)
		r.Post("/cron/transfers/status/bulk", h.RunWideSweepHandler)
	})

	return r
}
