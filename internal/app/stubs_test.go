package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shonubijerry/blacktax/internal/domain"
	"github.com/shonubijerry/blacktax/internal/store"
	"github.com/shonubijerry/blacktax/pkg/paystackclient"
)

// transferRepoStub is an in-memory stand-in for the Postgres repository. Its
// conditional writes mirror the repository contract: terminal recipient
// statuses are sticky and unchanged aggregate statuses are not rewritten.
type transferRepoStub struct {
	store.Repository

	mu         sync.Mutex
	recipients map[uuid.UUID]domain.Recipient
	transfers  map[uuid.UUID]*domain.Transfer
	items      []*domain.TransferRecipient

	sweepCandidates []domain.TransferWithRecipients
}

func newTransferRepoStub(recipients ...domain.Recipient) *transferRepoStub {
	stub := &transferRepoStub{
		recipients: make(map[uuid.UUID]domain.Recipient),
		transfers:  make(map[uuid.UUID]*domain.Transfer),
	}
	for _, rec := range recipients {
		stub.recipients[rec.ID] = rec
	}
	return stub
}

func (s *transferRepoStub) FindActiveRecipientsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []domain.Recipient
	for _, id := range ids {
		if rec, ok := s.recipients[id]; ok && rec.IsActive {
			found = append(found, rec)
		}
	}
	return found, nil
}

func (s *transferRepoStub) SetProviderRecipientCode(ctx context.Context, recipientID uuid.UUID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recipients[recipientID]
	if !ok {
		return store.ErrRecipientNotFound
	}
	rec.ProviderRecipientCode = &code
	s.recipients[recipientID] = rec
	return nil
}

func (s *transferRepoStub) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	transfer.CreatedAt = time.Now()
	transfer.UpdatedAt = transfer.CreatedAt
	copied := *transfer
	s.transfers[transfer.ID] = &copied
	return nil
}

func (s *transferRepoStub) CreateTransferRecipient(ctx context.Context, item *domain.TransferRecipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	copied := *item
	s.items = append(s.items, &copied)
	return nil
}

func (s *transferRepoStub) SetTransferBatchCode(ctx context.Context, transferID uuid.UUID, batchCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	transfer, ok := s.transfers[transferID]
	if !ok {
		return store.ErrTransferNotFound
	}
	transfer.ProviderBatchCode = &batchCode
	return nil
}

func (s *transferRepoStub) UpdateTransferStatus(ctx context.Context, transferID uuid.UUID, status domain.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	transfer, ok := s.transfers[transferID]
	if !ok {
		return false, store.ErrTransferNotFound
	}
	if transfer.Status == status || transfer.Status.IsTerminal() {
		return false, nil
	}
	transfer.Status = status
	transfer.UpdatedAt = time.Now()
	return true, nil
}

func (s *transferRepoStub) FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.TransferWithRecipients, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	transfer, ok := s.transfers[transferID]
	if !ok {
		return nil, store.ErrTransferNotFound
	}
	result := &domain.TransferWithRecipients{Transfer: *transfer}
	for _, item := range s.items {
		if item.TransferID == transferID {
			result.Recipients = append(result.Recipients, *item)
		}
	}
	return result, nil
}

func (s *transferRepoStub) FindTransferRecipients(ctx context.Context, transferID uuid.UUID) ([]domain.TransferRecipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []domain.TransferRecipient
	for _, item := range s.items {
		if item.TransferID == transferID {
			found = append(found, *item)
		}
	}
	return found, nil
}

func (s *transferRepoStub) FindTransferRecipientByProviderKeys(ctx context.Context, transferCode, providerReference string) (*domain.TransferRecipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if transferCode != "" {
		for _, item := range s.items {
			if item.ProviderTransferCode != nil && *item.ProviderTransferCode == transferCode {
				copied := *item
				return &copied, nil
			}
		}
	}
	if providerReference != "" {
		for _, item := range s.items {
			if item.ProviderReference == providerReference {
				copied := *item
				return &copied, nil
			}
		}
	}
	return nil, store.ErrTransferRecipientNotFound
}

func (s *transferRepoStub) ApplyRecipientStatus(ctx context.Context, itemID uuid.UUID, update domain.StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID != itemID {
			continue
		}
		if item.Status.IsTerminal() || item.Status == update.Status {
			return false, nil
		}
		item.Status = update.Status
		if update.Status == domain.StatusSuccess {
			now := time.Now()
			item.TransferredAt = &now
		}
		if update.Status == domain.StatusFailed {
			item.FailureReason = update.FailureReason
		}
		item.UpdatedAt = time.Now()
		return true, nil
	}
	return false, store.ErrTransferRecipientNotFound
}

func (s *transferRepoStub) FindSweepCandidates(ctx context.Context, createdAfter time.Time) ([]domain.TransferWithRecipients, error) {
	return s.sweepCandidates, nil
}

// itemByReference finds a stored line item by its correlation reference.
func (s *transferRepoStub) itemByReference(providerReference string) *domain.TransferRecipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ProviderReference == providerReference {
			return item
		}
	}
	return nil
}

// providerStub fakes the Paystack client with overridable call hooks.
type providerStub struct {
	createRecipient  func(name, email, accountNumber, bankCode string) (*paystackclient.RecipientData, error)
	initiateTransfer func(recipientCode, reference string, amount int64) (*paystackclient.TransferData, error)
	initiateBulk     func(items []paystackclient.BulkTransferItem) (*paystackclient.BulkTransferData, error)
	verifyTx         func(reference string) (*paystackclient.TransactionData, error)
	fetchTransfer    func(transferCode string) (*paystackclient.TransferData, error)
	verifyTransfer   func(reference string) (*paystackclient.TransferData, error)
	fetchBulk        func(batchCode string) ([]paystackclient.TransferData, error)
}

func (p *providerStub) CreateRecipient(ctx context.Context, name, email, accountNumber, bankCode string) (*paystackclient.RecipientData, error) {
	if p.createRecipient != nil {
		return p.createRecipient(name, email, accountNumber, bankCode)
	}
	return &paystackclient.RecipientData{RecipientCode: "RCP_stub", Active: true}, nil
}

func (p *providerStub) InitiateTransfer(ctx context.Context, recipientCode, reference, reason string, amount int64) (*paystackclient.TransferData, error) {
	if p.initiateTransfer != nil {
		return p.initiateTransfer(recipientCode, reference, amount)
	}
	return &paystackclient.TransferData{TransferCode: "TRF_" + reference, Reference: reference, Status: "success"}, nil
}

func (p *providerStub) InitiateBulkTransfer(ctx context.Context, items []paystackclient.BulkTransferItem) (*paystackclient.BulkTransferData, error) {
	if p.initiateBulk != nil {
		return p.initiateBulk(items)
	}
	data := &paystackclient.BulkTransferData{BatchCode: "BCH_stub"}
	for _, item := range items {
		data.Transfers = append(data.Transfers, paystackclient.TransferData{
			TransferCode: "TRF_" + item.Reference,
			Reference:    item.Reference,
			Status:       "queued",
		})
	}
	return data, nil
}

func (p *providerStub) VerifyTransaction(ctx context.Context, reference string) (*paystackclient.TransactionData, error) {
	if p.verifyTx != nil {
		return p.verifyTx(reference)
	}
	return &paystackclient.TransactionData{Reference: reference, Status: "success"}, nil
}

func (p *providerStub) FetchTransfer(ctx context.Context, transferCode string) (*paystackclient.TransferData, error) {
	if p.fetchTransfer != nil {
		return p.fetchTransfer(transferCode)
	}
	return nil, nil
}

func (p *providerStub) VerifyTransfer(ctx context.Context, reference string) (*paystackclient.TransferData, error) {
	if p.verifyTransfer != nil {
		return p.verifyTransfer(reference)
	}
	return nil, nil
}

func (p *providerStub) FetchBulkTransfer(ctx context.Context, batchCode string) ([]paystackclient.TransferData, error) {
	if p.fetchBulk != nil {
		return p.fetchBulk(batchCode)
	}
	return nil, nil
}

func (p *providerStub) ListBanks(ctx context.Context) ([]paystackclient.Bank, error) {
	return []paystackclient.Bank{{Name: "Stub Bank", Code: "001"}}, nil
}

// publisherStub records the events that would have gone to RabbitMQ.
type publisherStub struct {
	mu              sync.Mutex
	recipientEvents []domain.RecipientStatusEvent
	transferEvents  []domain.TransferStatusEvent
}

func (p *publisherStub) Publish(ctx context.Context, routingKey string, body interface{}) error {
	return nil
}

func (p *publisherStub) PublishRecipientStatusEvent(ctx context.Context, event domain.RecipientStatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recipientEvents = append(p.recipientEvents, event)
	return nil
}

func (p *publisherStub) PublishTransferStatusEvent(ctx context.Context, event domain.TransferStatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transferEvents = append(p.transferEvents, event)
	return nil
}

func (p *publisherStub) Close() {}

func activeRecipient(name, email string) domain.Recipient {
	return domain.Recipient{
		ID:            uuid.New(),
		Name:          name,
		Email:         email,
		AccountNumber: "0123456789",
		BankCode:      "058",
		IsActive:      true,
	}
}
