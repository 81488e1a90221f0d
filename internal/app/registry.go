/**
 * @description
 * Recipient registry use cases: registering payout targets, partial updates
 * with provider-handle invalidation, soft deletion and lookups.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shonubijerry/blacktax/internal/domain"
)

var ErrMissingRecipientFields = errors.New("name, email, account_number and bank_code are required")

// RegisterRecipient validates and stores a new payout recipient. The provider
// handle is not created here; it is issued lazily on the first transfer.
func (s *Service) RegisterRecipient(ctx context.Context, req domain.RecipientCreateRequest) (*domain.Recipient, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	accountNumber := strings.TrimSpace(req.AccountNumber)
	bankCode := strings.TrimSpace(req.BankCode)
	if name == "" || email == "" || accountNumber == "" || bankCode == "" {
		return nil, ErrMissingRecipientFields
	}

	recipient := &domain.Recipient{
		ID:            uuid.New(),
		Name:          name,
		Email:         email,
		Phone:         strings.TrimSpace(req.Phone),
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		BankName:      req.BankName,
	}
	if err := s.repo.CreateRecipient(ctx, recipient); err != nil {
		return nil, err
	}
	log.Printf("level=info component=recipient_registry msg=\"recipient registered\" recipient_id=%s", recipient.ID)
	return recipient, nil
}

// GetRecipient returns one active recipient.
func (s *Service) GetRecipient(ctx context.Context, recipientID uuid.UUID) (*domain.Recipient, error) {
	return s.repo.FindRecipientByID(ctx, recipientID)
}

// ListRecipients returns a page of active recipients plus the total count.
func (s *Service) ListRecipients(ctx context.Context, opts domain.RecipientListOptions) ([]domain.Recipient, int, error) {
	return s.repo.ListRecipients(ctx, opts)
}

// UpdateRecipient applies a partial update. Changing the account number or
// bank code invalidates the cached provider recipient code, since that handle
// is bound to the old bank account; a fresh one is issued on the next transfer.
func (s *Service) UpdateRecipient(ctx context.Context, recipientID uuid.UUID, req domain.RecipientUpdateRequest) (*domain.Recipient, error) {
	recipient, err := s.repo.FindRecipientByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	bankDetailsChanged := false
	if req.Name != nil {
		recipient.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		recipient.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		recipient.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.AccountNumber != nil && strings.TrimSpace(*req.AccountNumber) != recipient.AccountNumber {
		recipient.AccountNumber = strings.TrimSpace(*req.AccountNumber)
		bankDetailsChanged = true
	}
	if req.BankCode != nil && strings.TrimSpace(*req.BankCode) != recipient.BankCode {
		recipient.BankCode = strings.TrimSpace(*req.BankCode)
		bankDetailsChanged = true
	}
	if req.BankName != nil {
		recipient.BankName = req.BankName
	}
	if recipient.Name == "" || recipient.Email == "" || recipient.AccountNumber == "" || recipient.BankCode == "" {
		return nil, ErrMissingRecipientFields
	}
	if bankDetailsChanged {
		recipient.ProviderRecipientCode = nil
		log.Printf("level=info component=recipient_registry msg=\"bank details changed; provider handle invalidated\" recipient_id=%s", recipient.ID)
	}

	if err := s.repo.UpdateRecipient(ctx, recipient); err != nil {
		return nil, fmt.Errorf("failed to update recipient: %w", err)
	}
	return recipient, nil
}

// DeactivateRecipient soft-deletes a recipient. Existing transfer history
// keeps referencing the row; the recipient just stops being addressable.
func (s *Service) DeactivateRecipient(ctx context.Context, recipientID uuid.UUID) error {
	return s.repo.DeactivateRecipient(ctx, recipientID)
}
