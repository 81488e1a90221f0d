/**
 * @description
 * This file contains the HTTP handlers for the transfer engine's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shonubijerry/blacktax/internal/app"
	"github.com/shonubijerry/blacktax/internal/config"
	"github.com/shonubijerry/blacktax/internal/domain"
	"github.com/shonubijerry/blacktax/internal/store"
)

// TransferHandlers holds the application service that handlers will use.
type TransferHandlers struct {
	service          *app.Service
	frequentLookback time.Duration
	wideLookback     time.Duration
}

// NewTransferHandlers creates the handler set for transfer and recipient routes.
func NewTransferHandlers(service *app.Service, cfg config.Config) *TransferHandlers {
	return &TransferHandlers{
		service:          service,
		frequentLookback: time.Duration(cfg.FrequentSweepLookbackMin) * time.Minute,
		wideLookback:     time.Duration(cfg.WideSweepLookbackDays) * 24 * time.Hour,
	}
}

// paginatedResponse wraps list results with their paging metadata.
type paginatedResponse struct {
	Data  interface{} `json:"data"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Total int         `json:"total"`
}

// CreateTransferHandler accepts a disbursement request and returns the
// persisted transfer with every recipient's initial outcome.
func (h *TransferHandlers) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transfer, err := h.service.CreateTransfer(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNoRecipients),
			errors.Is(err, app.ErrInvalidAmount),
			errors.Is(err, app.ErrInvalidMode),
			errors.Is(err, app.ErrFundingReference):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrUnknownRecipient):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, app.ErrFundingUnverified):
			h.writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, store.ErrDuplicateReference):
			h.writeError(w, http.StatusConflict, "A transfer with this reference already exists")
		default:
			log.Printf("level=error component=api msg=\"create transfer failed\" err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Failed to create transfer")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, transfer)
}

// GetTransferHandler returns one transfer with its recipient outcomes.
func (h *TransferHandlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID, err := uuid.Parse(chi.URLParam(r, "transferID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transfer ID format")
		return
	}

	transfer, err := h.service.GetTransfer(r.Context(), transferID)
	if err != nil {
		if errors.Is(err, store.ErrTransferNotFound) {
			h.writeError(w, http.StatusNotFound, "Transfer not found")
			return
		}
		log.Printf("level=error component=api msg=\"get transfer failed\" transfer_id=%s err=%v", transferID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load transfer")
		return
	}

	h.writeJSON(w, http.StatusOK, transfer)
}

// ListTransfersHandler returns paginated transfer history, optionally filtered
// by status.
func (h *TransferHandlers) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	opts := domain.TransferListOptions{
		Page:  parseIntQuery(r, "page", 1),
		Limit: parseIntQuery(r, "limit", 20),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.Status(raw)
		switch status {
		case domain.StatusPending, domain.StatusProcessing, domain.StatusSuccess, domain.StatusFailed:
			opts.Status = &status
		default:
			h.writeError(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
	}

	transfers, total, err := h.service.ListTransfers(r.Context(), opts)
	if err != nil {
		log.Printf("level=error component=api msg=\"list transfers failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to list transfers")
		return
	}
	if transfers == nil {
		transfers = []domain.TransferWithRecipients{}
	}

	h.writeJSON(w, http.StatusOK, paginatedResponse{Data: transfers, Page: opts.Page, Limit: opts.Limit, Total: total})
}

// ListBanksHandler proxies the provider's supported bank list.
func (h *TransferHandlers) ListBanksHandler(w http.ResponseWriter, r *http.Request) {
	banks, err := h.service.ListBanks(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"list banks failed\" err=%v", err)
		h.writeError(w, http.StatusBadGateway, "Failed to fetch bank list")
		return
	}
	h.writeJSON(w, http.StatusOK, banks)
}

// RunFrequentSweepHandler triggers the short-window reconciliation sweep and
// returns its report. Exposed for external cron runners.
func (h *TransferHandlers) RunFrequentSweepHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ReconcileTransfers(r.Context(), h.frequentLookback)
	if err != nil {
		log.Printf("level=error component=api msg=\"frequent sweep failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Reconciliation sweep failed")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// RunWideSweepHandler triggers the multi-day reconciliation sweep and returns
// its report.
func (h *TransferHandlers) RunWideSweepHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ReconcileTransfers(r.Context(), h.wideLookback)
	if err != nil {
		log.Printf("level=error component=api msg=\"wide sweep failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Reconciliation sweep failed")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func parseIntQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

// writeJSON is a helper for writing JSON responses.
func (h *TransferHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *TransferHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
