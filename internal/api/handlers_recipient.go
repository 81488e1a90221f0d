package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shonubijerry/blacktax/internal/app"
	"github.com/shonubijerry/blacktax/internal/domain"
	"github.com/shonubijerry/blacktax/internal/store"
)

// CreateRecipientHandler registers a new payout recipient.
func (h *TransferHandlers) CreateRecipientHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RecipientCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	recipient, err := h.service.RegisterRecipient(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMissingRecipientFields):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrDuplicateEmail):
			h.writeError(w, http.StatusConflict, "A recipient with this email already exists")
		default:
			log.Printf("level=error component=api msg=\"create recipient failed\" err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Failed to create recipient")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, recipient)
}

// GetRecipientHandler returns one active recipient.
func (h *TransferHandlers) GetRecipientHandler(w http.ResponseWriter, r *http.Request) {
	recipientID, err := uuid.Parse(chi.URLParam(r, "recipientID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid recipient ID format")
		return
	}

	recipient, err := h.service.GetRecipient(r.Context(), recipientID)
	if err != nil {
		if errors.Is(err, store.ErrRecipientNotFound) {
			h.writeError(w, http.StatusNotFound, "Recipient not found")
			return
		}
		log.Printf("level=error component=api msg=\"get recipient failed\" recipient_id=%s err=%v", recipientID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load recipient")
		return
	}

	h.writeJSON(w, http.StatusOK, recipient)
}

// ListRecipientsHandler returns paginated active recipients, optionally
// filtered by a name or email search term.
func (h *TransferHandlers) ListRecipientsHandler(w http.ResponseWriter, r *http.Request) {
	opts := domain.RecipientListOptions{
		Page:   parseIntQuery(r, "page", 1),
		Limit:  parseIntQuery(r, "limit", 20),
		Search: r.URL.Query().Get("search"),
	}

	recipients, total, err := h.service.ListRecipients(r.Context(), opts)
	if err != nil {
		log.Printf("level=error component=api msg=\"list recipients failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to list recipients")
		return
	}
	if recipients == nil {
		recipients = []domain.Recipient{}
	}

	h.writeJSON(w, http.StatusOK, paginatedResponse{Data: recipients, Page: opts.Page, Limit: opts.Limit, Total: total})
}

// UpdateRecipientHandler applies a partial update to a recipient.
func (h *TransferHandlers) UpdateRecipientHandler(w http.ResponseWriter, r *http.Request) {
	recipientID, err := uuid.Parse(chi.URLParam(r, "recipientID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid recipient ID format")
		return
	}

	var req domain.RecipientUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	recipient, err := h.service.UpdateRecipient(r.Context(), recipientID, req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRecipientNotFound):
			h.writeError(w, http.StatusNotFound, "Recipient not found")
		case errors.Is(err, app.ErrMissingRecipientFields):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrDuplicateEmail):
			h.writeError(w, http.StatusConflict, "A recipient with this email already exists")
		default:
			log.Printf("level=error component=api msg=\"update recipient failed\" recipient_id=%s err=%v", recipientID, err)
			h.writeError(w, http.StatusInternalServerError, "Failed to update recipient")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, recipient)
}

// DeleteRecipientHandler soft-deletes a recipient.
func (h *TransferHandlers) DeleteRecipientHandler(w http.ResponseWriter, r *http.Request) {
	recipientID, err := uuid.Parse(chi.URLParam(r, "recipientID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid recipient ID format")
		return
	}

	if err := h.service.DeactivateRecipient(r.Context(), recipientID); err != nil {
		if errors.Is(err, store.ErrRecipientNotFound) {
			h.writeError(w, http.StatusNotFound, "Recipient not found")
			return
		}
		log.Printf("level=error component=api msg=\"delete recipient failed\" recipient_id=%s err=%v", recipientID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete recipient")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Recipient deactivated"})
}
