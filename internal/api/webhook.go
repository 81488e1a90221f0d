/**
 * @description
 * This file contains the handler for Paystack webhook deliveries.
 * - Security: Validates the HMAC signature of incoming webhooks to ensure authenticity.
 * - Idempotency: Uses Redis to drop redelivered events inside a TTL window, so
 *   Paystack's at-least-once delivery never double-applies a status.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha512, encoding/hex: For webhook signature validation.
 * - github.com/redis/go-redis/v9: For the delivery deduplication window.
 */

package api

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shonubijerry/blacktax/internal/app"
	"github.com/shonubijerry/blacktax/internal/config"
	"github.com/shonubijerry/blacktax/internal/domain"
)

const paystackSignatureHeader = "x-paystack-signature"

// WebhookHandlers processes provider webhook deliveries.
type WebhookHandlers struct {
	service       *app.Service
	webhookSecret string
	redisClient   *redis.Client
	dedupTTL      time.Duration
}

// NewWebhookHandlers creates the webhook handler. redisClient may be nil, in
// which case deduplication is skipped; status application is idempotent anyway.
func NewWebhookHandlers(service *app.Service, cfg config.Config, redisClient *redis.Client) *WebhookHandlers {
	return &WebhookHandlers{
		service:       service,
		webhookSecret: cfg.PaystackWebhookSecret,
		redisClient:   redisClient,
		dedupTTL:      time.Duration(cfg.WebhookDedupTTLMin) * time.Minute,
	}
}

// PaystackWebhookHandler validates and applies one webhook delivery. The
// response is always 200 for verified deliveries so Paystack stops retrying;
// only signature failures are rejected.
func (h *WebhookHandlers) PaystackWebhookHandler(w http.ResponseWriter, r *http.Request) {
	// Read the request body once for signature validation and decoding.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("level=error component=webhook msg=\"failed to read body\" err=%v", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if !h.isValidSignature(r.Header.Get(paystackSignatureHeader), body) {
		log.Printf("level=warn component=webhook msg=\"invalid webhook signature\"")
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	var event domain.ProviderWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=webhook msg=\"unparsable webhook body\" err=%v", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if h.isDuplicateDelivery(r, event) {
		log.Printf("level=info component=webhook msg=\"duplicate delivery dropped\" event=%s reference=%s",
			event.Event, event.Data.Reference)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.service.HandleProviderWebhook(r.Context(), event); err != nil {
		log.Printf("level=error component=webhook msg=\"failed to process webhook\" event=%s err=%v", event.Event, err)
		http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// isValidSignature checks the hex-encoded HMAC-SHA512 of the raw body against
// the signature header, as Paystack signs with the account secret key.
func (h *WebhookHandlers) isValidSignature(signature string, body []byte) bool {
	if signature == "" || h.webhookSecret == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// isDuplicateDelivery claims a dedup key in Redis for the delivery. The first
// claim wins; redeliveries inside the TTL window are dropped.
func (h *WebhookHandlers) isDuplicateDelivery(r *http.Request, event domain.ProviderWebhookEvent) bool {
	if h.redisClient == nil {
		return false
	}
	key := fmt.Sprintf("blacktax:webhook:%s:%s:%s", event.Event, event.Data.Reference, event.Data.TransferCode)
	claimed, err := h.redisClient.SetNX(r.Context(), key, 1, h.dedupTTL).Result()
	if err != nil {
		log.Printf("level=warn component=webhook msg=\"dedup check failed; processing anyway\" err=%v", err)
		return false
	}
	return !claimed
}
