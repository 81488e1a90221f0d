package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shonubijerry/blacktax/internal/app"
	"github.com/shonubijerry/blacktax/internal/config"
	"github.com/shonubijerry/blacktax/internal/domain"
	"github.com/shonubijerry/blacktax/internal/store"
	"github.com/shonubijerry/blacktax/pkg/paystackclient"
	"github.com/shonubijerry/blacktax/pkg/rabbitmq"
)

const testWebhookSecret = "sk_test_webhook"

// webhookRepoStub backs the webhook path of the service with one line item.
type webhookRepoStub struct {
	store.Repository

	item         *domain.TransferRecipient
	transfer     *domain.Transfer
	applied      []domain.StatusUpdate
	statusWrites []domain.Status
}

func (s *webhookRepoStub) FindTransferRecipientByProviderKeys(ctx context.Context, transferCode, providerReference string) (*domain.TransferRecipient, error) {
	if s.item == nil || (s.item.ProviderReference != providerReference && transferCode == "") {
		return nil, store.ErrTransferRecipientNotFound
	}
	copied := *s.item
	return &copied, nil
}

func (s *webhookRepoStub) ApplyRecipientStatus(ctx context.Context, itemID uuid.UUID, update domain.StatusUpdate) (bool, error) {
	if s.item == nil || s.item.ID != itemID || s.item.Status.IsTerminal() {
		return false, nil
	}
	s.item.Status = update.Status
	s.applied = append(s.applied, update)
	return true, nil
}

func (s *webhookRepoStub) FindTransferRecipients(ctx context.Context, transferID uuid.UUID) ([]domain.TransferRecipient, error) {
	if s.item == nil {
		return nil, nil
	}
	return []domain.TransferRecipient{*s.item}, nil
}

func (s *webhookRepoStub) UpdateTransferStatus(ctx context.Context, transferID uuid.UUID, status domain.Status) (bool, error) {
	if s.transfer == nil || s.transfer.Status == status {
		return false, nil
	}
	s.transfer.Status = status
	s.statusWrites = append(s.statusWrites, status)
	return true, nil
}

func (s *webhookRepoStub) FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.TransferWithRecipients, error) {
	if s.transfer == nil {
		return nil, store.ErrTransferNotFound
	}
	return &domain.TransferWithRecipients{Transfer: *s.transfer}, nil
}

type noopProvider struct{}

func (noopProvider) CreateRecipient(ctx context.Context, name, email, accountNumber, bankCode string) (*paystackclient.RecipientData, error) {
	return &paystackclient.RecipientData{RecipientCode: "RCP_noop"}, nil
}
func (noopProvider) InitiateTransfer(ctx context.Context, recipientCode, reference, reason string, amount int64) (*paystackclient.TransferData, error) {
	return &paystackclient.TransferData{TransferCode: "TRF_noop", Reference: reference, Status: "success"}, nil
}
func (noopProvider) InitiateBulkTransfer(ctx context.Context, items []paystackclient.BulkTransferItem) (*paystackclient.BulkTransferData, error) {
	return &paystackclient.BulkTransferData{}, nil
}
func (noopProvider) VerifyTransaction(ctx context.Context, reference string) (*paystackclient.TransactionData, error) {
	return &paystackclient.TransactionData{Reference: reference, Status: "success"}, nil
}
func (noopProvider) FetchTransfer(ctx context.Context, transferCode string) (*paystackclient.TransferData, error) {
	return nil, nil
}
func (noopProvider) VerifyTransfer(ctx context.Context, reference string) (*paystackclient.TransferData, error) {
	return nil, nil
}
func (noopProvider) FetchBulkTransfer(ctx context.Context, batchCode string) ([]paystackclient.TransferData, error) {
	return nil, nil
}
func (noopProvider) ListBanks(ctx context.Context) ([]paystackclient.Bank, error) {
	return nil, nil
}

func newWebhookTestHandler(repo *webhookRepoStub) *WebhookHandlers {
	service := app.NewService(repo, noopProvider{}, &rabbitmq.EventProducerFallback{})
	cfg := config.Config{PaystackWebhookSecret: testWebhookSecret, WebhookDedupTTLMin: 60}
	return NewWebhookHandlers(service, cfg, nil)
}

func seededWebhookRepo() *webhookRepoStub {
	transferID := uuid.New()
	return &webhookRepoStub{
		transfer: &domain.Transfer{ID: transferID, Reference: "TXN_1", Status: domain.StatusProcessing},
		item: &domain.TransferRecipient{
			ID:                uuid.New(),
			TransferID:        transferID,
			RecipientID:       uuid.New(),
			Amount:            1000,
			Status:            domain.StatusPending,
			ProviderReference: "TXN_1_1",
		},
	}
}

func signBody(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(handler *WebhookHandlers, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(paystackSignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.PaystackWebhookHandler(rec, req)
	return rec
}

func TestPaystackWebhookHandler_RejectsMissingSignature(t *testing.T) {
	repo := seededWebhookRepo()
	handler := newWebhookTestHandler(repo)

	body := []byte(`{"event":"transfer.success","data":{"reference":"TXN_1_1","status":"success"}}`)
	rec := postWebhook(handler, body, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(repo.applied) != 0 {
		t.Fatal("expected no status mutation for unsigned delivery")
	}
}

func TestPaystackWebhookHandler_RejectsBadSignature(t *testing.T) {
	repo := seededWebhookRepo()
	handler := newWebhookTestHandler(repo)

	body := []byte(`{"event":"transfer.success","data":{"reference":"TXN_1_1","status":"success"}}`)
	tampered := append([]byte{}, body...)
	tampered[0] = ' '
	rec := postWebhook(handler, body, signBody(tampered))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(repo.applied) != 0 {
		t.Fatal("expected no status mutation for tampered delivery")
	}
}

func TestPaystackWebhookHandler_AppliesSignedSuccessEvent(t *testing.T) {
	repo := seededWebhookRepo()
	handler := newWebhookTestHandler(repo)

	body := []byte(`{"event":"transfer.success","data":{"reference":"TXN_1_1","status":"success"}}`)
	rec := postWebhook(handler, body, signBody(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.applied) != 1 || repo.applied[0].Status != domain.StatusSuccess {
		t.Fatalf("expected one SUCCESS application, got %+v", repo.applied)
	}
	if len(repo.statusWrites) != 1 || repo.statusWrites[0] != domain.StatusSuccess {
		t.Fatalf("expected aggregate SUCCESS write, got %+v", repo.statusWrites)
	}
}

func TestPaystackWebhookHandler_AcknowledgesUnrelatedEvents(t *testing.T) {
	repo := seededWebhookRepo()
	handler := newWebhookTestHandler(repo)

	body := []byte(`{"event":"charge.success","data":{"reference":"TXN_1_1","status":"success"}}`)
	rec := postWebhook(handler, body, signBody(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(repo.applied) != 0 {
		t.Fatal("expected no status mutation for unrelated event")
	}
}

func TestPaystackWebhookHandler_RejectsUnparsableBody(t *testing.T) {
	handler := newWebhookTestHandler(seededWebhookRepo())

	body := []byte(`{"event":`)
	rec := postWebhook(handler, body, signBody(body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookSignatureValidation(t *testing.T) {
	handler := newWebhookTestHandler(seededWebhookRepo())
	body := []byte(`{"event":"transfer.success"}`)

	if !handler.isValidSignature(signBody(body), body) {
		t.Fatal("expected matching signature to validate")
	}
	if handler.isValidSignature(signBody([]byte("other")), body) {
		t.Fatal("expected mismatched signature to fail")
	}

	// TTL wiring sanity: the configured minutes become a duration.
	if handler.dedupTTL != 60*time.Minute {
		t.Fatalf("expected 60m dedup TTL, got %s", handler.dedupTTL)
	}
}
