/**
 * @description
 * This file contains the core business logic for the transfer engine. The
 * `Service` struct orchestrates disbursements, coordinating between the
 * database repository, the Paystack API client, and the message broker.
 *
 * Key features:
 * - Implements the main use cases: single-mode and bulk-mode disbursements.
 * - Derives the transfer's overall status from per-recipient outcomes.
 * - Isolates per-recipient provider failures so one rejection never aborts
 *   the rest of a batch.
 * - Publishes events to RabbitMQ when outcomes reach a terminal state.
 *
 * @dependencies
 * - context, errors, fmt, log, sync, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/paystackclient, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shonubijerry/blacktax/internal/domain"
	"github.com/shonubijerry/blacktax/internal/store"
	"github.com/shonubijerry/blacktax/pkg/paystackclient"
	"github.com/shonubijerry/blacktax/pkg/rabbitmq"
)

const transferReason = "Family transfer"

var (
	ErrNoRecipients      = errors.New("transfer requires at least one recipient")
	ErrInvalidAmount     = errors.New("recipient amounts must be greater than zero")
	ErrInvalidMode       = errors.New("transfer mode must be 'single' or 'bulk'")
	ErrUnknownRecipient  = errors.New("one or more recipients are unknown or inactive")
	ErrFundingReference  = errors.New("bulk transfers require a funding transaction reference")
	ErrFundingUnverified = errors.New("funding transaction has not succeeded")
)

// ProviderClient abstracts the Paystack operations the service depends on.
// *paystackclient.Client satisfies it.
type ProviderClient interface {
	CreateRecipient(ctx context.Context, name, email, accountNumber, bankCode string) (*paystackclient.RecipientData, error)
	InitiateTransfer(ctx context.Context, recipientCode, reference, reason string, amount int64) (*paystackclient.TransferData, error)
	InitiateBulkTransfer(ctx context.Context, items []paystackclient.BulkTransferItem) (*paystackclient.BulkTransferData, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystackclient.TransactionData, error)
	FetchTransfer(ctx context.Context, transferCode string) (*paystackclient.TransferData, error)
	VerifyTransfer(ctx context.Context, reference string) (*paystackclient.TransferData, error)
	FetchBulkTransfer(ctx context.Context, batchCode string) ([]paystackclient.TransferData, error)
	ListBanks(ctx context.Context) ([]paystackclient.Bank, error)
}

// Service provides the core business logic for transfers.
type Service struct {
	repo          store.Repository
	provider      ProviderClient
	eventProducer rabbitmq.Publisher
}

// NewService creates a new transfer service instance.
func NewService(repo store.Repository, provider ProviderClient, producer rabbitmq.Publisher) *Service {
	return &Service{
		repo:          repo,
		provider:      provider,
		eventProducer: producer,
	}
}

// generateReference builds a unique transfer reference for requests that do
// not supply one.
func generateReference() string {
	return fmt.Sprintf("TXN_%d_%s", time.Now().UnixMilli(), strings.Split(uuid.NewString(), "-")[0])
}

// CreateTransfer validates and dispatches a disbursement request, then returns
// the persisted transfer with every recipient's initial outcome.
func (s *Service) CreateTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferWithRecipients, error) {
	if len(req.Recipients) == 0 {
		return nil, ErrNoRecipients
	}

	var totalAmount int64
	for _, item := range req.Recipients {
		if item.Amount <= 0 {
			return nil, ErrInvalidAmount
		}
		totalAmount += item.Amount
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.ModeSingle
	}
	if mode != domain.ModeSingle && mode != domain.ModeBulk {
		return nil, ErrInvalidMode
	}

	// Bulk mode disburses pooled funds, so the inbound funding transaction
	// must have settled before anything goes out.
	if mode == domain.ModeBulk {
		if strings.TrimSpace(req.Reference) == "" {
			return nil, ErrFundingReference
		}
		funding, err := s.provider.VerifyTransaction(ctx, req.Reference)
		if err != nil {
			return nil, fmt.Errorf("failed to verify funding transaction: %w", err)
		}
		if domain.NormalizeStatus(funding.Status) != domain.StatusSuccess {
			return nil, ErrFundingUnverified
		}
	}

	ids := make([]uuid.UUID, 0, len(req.Recipients))
	for _, item := range req.Recipients {
		ids = append(ids, item.ID)
	}
	recipients, err := s.repo.FindActiveRecipientsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}
	byID := make(map[uuid.UUID]domain.Recipient, len(recipients))
	for _, rec := range recipients {
		byID[rec.ID] = rec
	}
	for _, item := range req.Recipients {
		if _, ok := byID[item.ID]; !ok {
			log.Printf("level=warn component=transfer_service msg=\"rejected transfer with unresolved recipient\" recipient_id=%s", item.ID)
			return nil, ErrUnknownRecipient
		}
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = generateReference()
	}

	transfer := &domain.Transfer{
		ID:          uuid.New(),
		Reference:   reference,
		TotalAmount: totalAmount,
		Status:      domain.StatusPending,
		Mode:        mode,
		CallbackURL: req.CallbackURL,
		Description: req.Description,
	}
	if err := s.repo.CreateTransfer(ctx, transfer); err != nil {
		return nil, err
	}

	var items []domain.TransferRecipient
	if mode == domain.ModeBulk {
		items = s.dispatchBulk(ctx, transfer, req.Recipients, byID)
	} else {
		items = s.dispatchSingles(ctx, transfer, req.Recipients, byID)
	}

	for i := range items {
		if err := s.repo.CreateTransferRecipient(ctx, &items[i]); err != nil {
			return nil, fmt.Errorf("failed to persist transfer recipient: %w", err)
		}
	}

	aggregate := AggregateStatus(items)
	if _, err := s.repo.UpdateTransferStatus(ctx, transfer.ID, aggregate); err != nil {
		return nil, fmt.Errorf("failed to persist transfer status: %w", err)
	}
	log.Printf("level=info component=transfer_service msg=\"transfer dispatched\" transfer_id=%s reference=%s mode=%s recipients=%d status=%s",
		transfer.ID, transfer.Reference, mode, len(items), aggregate)

	return s.repo.FindTransferByID(ctx, transfer.ID)
}

// dispatchSingles fires one provider transfer per recipient concurrently and
// collects the initial outcomes. A provider error on one recipient marks only
// that line item FAILED.
func (s *Service) dispatchSingles(ctx context.Context, transfer *domain.Transfer, requested []domain.TransferRequestItem, byID map[uuid.UUID]domain.Recipient) []domain.TransferRecipient {
	items := make([]domain.TransferRecipient, len(requested))

	var wg sync.WaitGroup
	for i, reqItem := range requested {
		recipient := byID[reqItem.ID]
		items[i] = domain.TransferRecipient{
			ID:                uuid.New(),
			TransferID:        transfer.ID,
			RecipientID:       recipient.ID,
			Amount:            reqItem.Amount,
			Status:            domain.StatusPending,
			ProviderReference: fmt.Sprintf("%s_%d", transfer.Reference, i+1),
		}

		wg.Add(1)
		go func(item *domain.TransferRecipient, recipient domain.Recipient) {
			defer wg.Done()

			code, err := s.ensureProviderHandle(ctx, &recipient)
			if err != nil {
				markFailed(item, err)
				return
			}

			resp, err := s.provider.InitiateTransfer(ctx, code, item.ProviderReference, transferReason, item.Amount)
			if err != nil {
				markFailed(item, err)
				return
			}

			item.ProviderTransferCode = &resp.TransferCode
			// Anything short of an immediate success stays PENDING; the
			// webhook or a sweep settles it later.
			if domain.NormalizeStatus(resp.Status) == domain.StatusSuccess {
				now := time.Now()
				item.Status = domain.StatusSuccess
				item.TransferredAt = &now
			}
		}(&items[i], recipient)
	}
	wg.Wait()

	return items
}

// dispatchBulk ensures every recipient has a provider handle, then queues the
// whole batch in one provider call. Recipients whose handle cannot be created
// are marked FAILED and excluded from the batch.
func (s *Service) dispatchBulk(ctx context.Context, transfer *domain.Transfer, requested []domain.TransferRequestItem, byID map[uuid.UUID]domain.Recipient) []domain.TransferRecipient {
	items := make([]domain.TransferRecipient, len(requested))
	var batch []paystackclient.BulkTransferItem

	for i, reqItem := range requested {
		recipient := byID[reqItem.ID]
		items[i] = domain.TransferRecipient{
			ID:                uuid.New(),
			TransferID:        transfer.ID,
			RecipientID:       recipient.ID,
			Amount:            reqItem.Amount,
			Status:            domain.StatusPending,
			ProviderReference: fmt.Sprintf("%s_%d", transfer.Reference, i+1),
		}

		code, err := s.ensureProviderHandle(ctx, &recipient)
		if err != nil {
			markFailed(&items[i], err)
			continue
		}
		batch = append(batch, paystackclient.BulkTransferItem{
			Amount:    reqItem.Amount,
			Recipient: code,
			Reference: items[i].ProviderReference,
			Reason:    transferReason,
		})
	}

	if len(batch) == 0 {
		return items
	}

	resp, err := s.provider.InitiateBulkTransfer(ctx, batch)
	if err != nil {
		// The whole batch was rejected; every queued item fails together.
		for i := range items {
			if !items[i].Status.IsTerminal() {
				markFailed(&items[i], err)
			}
		}
		return items
	}

	if resp.BatchCode != "" {
		transfer.ProviderBatchCode = &resp.BatchCode
		if err := s.repo.SetTransferBatchCode(ctx, transfer.ID, resp.BatchCode); err != nil {
			log.Printf("level=error component=transfer_service msg=\"failed to persist batch code\" transfer_id=%s err=%v", transfer.ID, err)
		}
	}

	// Correlate the provider's per-item acknowledgements back to our line
	// items by reference. Items the provider did not echo stay PENDING for
	// the sweeps to settle.
	acked := make(map[string]paystackclient.TransferData, len(resp.Transfers))
	for _, t := range resp.Transfers {
		acked[t.Reference] = t
	}
	for i := range items {
		if items[i].Status.IsTerminal() {
			continue
		}
		t, ok := acked[items[i].ProviderReference]
		if !ok {
			continue
		}
		if t.TransferCode != "" {
			code := t.TransferCode
			items[i].ProviderTransferCode = &code
		}
		if domain.NormalizeStatus(t.Status) == domain.StatusSuccess {
			now := time.Now()
			items[i].Status = domain.StatusSuccess
			items[i].TransferredAt = &now
		}
	}

	return items
}

func markFailed(item *domain.TransferRecipient, err error) {
	reason := err.Error()
	item.Status = domain.StatusFailed
	item.FailureReason = &reason
}

// ensureProviderHandle returns the recipient's cached Paystack recipient code,
// creating and persisting one on first use. A concurrent creator may win the
// cache write; both handles address the same bank account, so either is valid.
func (s *Service) ensureProviderHandle(ctx context.Context, recipient *domain.Recipient) (string, error) {
	if recipient.ProviderRecipientCode != nil && *recipient.ProviderRecipientCode != "" {
		return *recipient.ProviderRecipientCode, nil
	}

	created, err := s.provider.CreateRecipient(ctx, recipient.Name, recipient.Email, recipient.AccountNumber, recipient.BankCode)
	if err != nil {
		return "", fmt.Errorf("failed to create provider recipient: %w", err)
	}
	if err := s.repo.SetProviderRecipientCode(ctx, recipient.ID, created.RecipientCode); err != nil {
		log.Printf("level=warn component=transfer_service msg=\"failed to cache provider recipient code\" recipient_id=%s err=%v", recipient.ID, err)
	}
	recipient.ProviderRecipientCode = &created.RecipientCode
	return created.RecipientCode, nil
}

// GetTransfer returns one transfer with its recipient outcomes.
func (s *Service) GetTransfer(ctx context.Context, transferID uuid.UUID) (*domain.TransferWithRecipients, error) {
	return s.repo.FindTransferByID(ctx, transferID)
}

// ListTransfers returns a page of transfer history.
func (s *Service) ListTransfers(ctx context.Context, opts domain.TransferListOptions) ([]domain.TransferWithRecipients, int, error) {
	return s.repo.ListTransfers(ctx, opts)
}

// ListBanks proxies the provider's supported bank list.
func (s *Service) ListBanks(ctx context.Context) ([]paystackclient.Bank, error) {
	return s.provider.ListBanks(ctx)
}
