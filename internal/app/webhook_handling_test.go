package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shonubijerry/blacktax/internal/domain"
)

// seedTransfer stores a transfer with one PENDING line item and returns both.
func seedTransfer(t *testing.T, repo *transferRepoStub, recipientID uuid.UUID) (*domain.Transfer, *domain.TransferRecipient) {
	t.Helper()
	transfer := &domain.Transfer{
		ID:          uuid.New(),
		Reference:   "TXN_TEST_1",
		TotalAmount: 1000,
		Status:      domain.StatusProcessing,
		Mode:        domain.ModeSingle,
	}
	if err := repo.CreateTransfer(context.Background(), transfer); err != nil {
		t.Fatalf("failed to seed transfer: %v", err)
	}
	code := "TRF_abc"
	item := &domain.TransferRecipient{
		ID:                   uuid.New(),
		TransferID:           transfer.ID,
		RecipientID:          recipientID,
		Amount:               1000,
		Status:               domain.StatusPending,
		ProviderTransferCode: &code,
		ProviderReference:    "TXN_TEST_1_1",
	}
	if err := repo.CreateTransferRecipient(context.Background(), item); err != nil {
		t.Fatalf("failed to seed line item: %v", err)
	}
	return transfer, item
}

func TestHandleProviderWebhook_SuccessSettlesItemAndTransfer(t *testing.T) {
	repo := newTransferRepoStub()
	publisher := &publisherStub{}
	service := NewService(repo, &providerStub{}, publisher)
	transfer, _ := seedTransfer(t, repo, uuid.New())

	err := service.HandleProviderWebhook(context.Background(), domain.ProviderWebhookEvent{
		Event: "transfer.success",
		Data:  domain.ProviderWebhookData{Reference: "TXN_TEST_1_1", TransferCode: "TRF_abc", Status: "success"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := repo.itemByReference("TXN_TEST_1_1")
	if item.Status != domain.StatusSuccess {
		t.Fatalf("expected item SUCCESS, got %s", item.Status)
	}
	if item.TransferredAt == nil {
		t.Fatal("expected transferred_at to be stamped on success")
	}

	stored, _ := repo.FindTransferByID(context.Background(), transfer.ID)
	if stored.Status != domain.StatusSuccess {
		t.Fatalf("expected aggregate SUCCESS, got %s", stored.Status)
	}

	if len(publisher.recipientEvents) != 1 {
		t.Fatalf("expected one recipient event, got %d", len(publisher.recipientEvents))
	}
	if len(publisher.transferEvents) != 1 {
		t.Fatalf("expected one transfer event, got %d", len(publisher.transferEvents))
	}
}

func TestHandleProviderWebhook_FailureCarriesReason(t *testing.T) {
	repo := newTransferRepoStub()
	service := NewService(repo, &providerStub{}, &publisherStub{})
	seedTransfer(t, repo, uuid.New())

	err := service.HandleProviderWebhook(context.Background(), domain.ProviderWebhookEvent{
		Event: "transfer.failed",
		Data: domain.ProviderWebhookData{
			Reference:     "TXN_TEST_1_1",
			Status:        "failed",
			FailureReason: "Account resolution failed",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := repo.itemByReference("TXN_TEST_1_1")
	if item.Status != domain.StatusFailed {
		t.Fatalf("expected item FAILED, got %s", item.Status)
	}
	if item.FailureReason == nil || *item.FailureReason != "Account resolution failed" {
		t.Fatal("expected the failure reason to be persisted")
	}
}

func TestHandleProviderWebhook_TerminalStatusIsSticky(t *testing.T) {
	repo := newTransferRepoStub()
	publisher := &publisherStub{}
	service := NewService(repo, &providerStub{}, publisher)
	seedTransfer(t, repo, uuid.New())

	success := domain.ProviderWebhookEvent{
		Event: "transfer.success",
		Data:  domain.ProviderWebhookData{Reference: "TXN_TEST_1_1", Status: "success"},
	}
	if err := service.HandleProviderWebhook(context.Background(), success); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A late contradictory delivery must not flip the terminal state.
	failed := domain.ProviderWebhookEvent{
		Event: "transfer.failed",
		Data:  domain.ProviderWebhookData{Reference: "TXN_TEST_1_1", Status: "failed", FailureReason: "late failure"},
	}
	if err := service.HandleProviderWebhook(context.Background(), failed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := repo.itemByReference("TXN_TEST_1_1")
	if item.Status != domain.StatusSuccess {
		t.Fatalf("expected SUCCESS to stick, got %s", item.Status)
	}
	if len(publisher.recipientEvents) != 1 {
		t.Fatalf("expected no event for the losing write, got %d", len(publisher.recipientEvents))
	}
}

func TestHandleProviderWebhook_IgnoresUnrelatedEvents(t *testing.T) {
	repo := newTransferRepoStub()
	service := NewService(repo, &providerStub{}, &publisherStub{})
	seedTransfer(t, repo, uuid.New())

	err := service.HandleProviderWebhook(context.Background(), domain.ProviderWebhookEvent{
		Event: "charge.success",
		Data:  domain.ProviderWebhookData{Reference: "TXN_TEST_1_1", Status: "success"},
	})
	if err != nil {
		t.Fatalf("expected unrelated events to be acknowledged, got %v", err)
	}
	if item := repo.itemByReference("TXN_TEST_1_1"); item.Status != domain.StatusPending {
		t.Fatalf("expected item untouched, got %s", item.Status)
	}
}

func TestHandleProviderWebhook_UnknownReferenceIsAcknowledged(t *testing.T) {
	service := NewService(newTransferRepoStub(), &providerStub{}, &publisherStub{})

	err := service.HandleProviderWebhook(context.Background(), domain.ProviderWebhookEvent{
		Event: "transfer.success",
		Data:  domain.ProviderWebhookData{Reference: "TXN_UNKNOWN_1", Status: "success"},
	})
	if err != nil {
		t.Fatalf("expected unknown reference to be acknowledged, got %v", err)
	}
}
