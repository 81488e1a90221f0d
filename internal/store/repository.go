/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the transfer engine. By defining an
 * interface, we decouple the application's business logic from the specific
 * database implementation (e.g., PostgreSQL), making the code more modular and
 * easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shonubijerry/blacktax/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Recipient registry methods
	CreateRecipient(ctx context.Context, recipient *domain.Recipient) error
	FindRecipientByID(ctx context.Context, recipientID uuid.UUID) (*domain.Recipient, error)
	FindActiveRecipientsByIDs(ctx context.Context, recipientIDs []uuid.UUID) ([]domain.Recipient, error)
	ListRecipients(ctx context.Context, opts domain.RecipientListOptions) ([]domain.Recipient, int, error)
	UpdateRecipient(ctx context.Context, recipient *domain.Recipient) error
	DeactivateRecipient(ctx context.Context, recipientID uuid.UUID) error
	SetProviderRecipientCode(ctx context.Context, recipientID uuid.UUID, code string) error

	// Transfer methods
	CreateTransfer(ctx context.Context, transfer *domain.Transfer) error
	CreateTransferRecipient(ctx context.Context, item *domain.TransferRecipient) error
	FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.TransferWithRecipients, error)
	ListTransfers(ctx context.Context, opts domain.TransferListOptions) ([]domain.TransferWithRecipients, int, error)
	SetTransferBatchCode(ctx context.Context, transferID uuid.UUID, batchCode string) error

	// Status reconciliation methods
	FindTransferRecipients(ctx context.Context, transferID uuid.UUID) ([]domain.TransferRecipient, error)
	FindTransferRecipientByProviderKeys(ctx context.Context, transferCode, providerReference string) (*domain.TransferRecipient, error)
	// ApplyRecipientStatus performs the sticky-terminal conditional write: the
	// update is persisted only while the row is still non-terminal. It reports
	// whether the write won.
	ApplyRecipientStatus(ctx context.Context, itemID uuid.UUID, update domain.StatusUpdate) (bool, error)
	// UpdateTransferStatus persists the aggregate status only when it differs
	// from the stored one, so re-running the aggregator never churns updated_at.
	UpdateTransferStatus(ctx context.Context, transferID uuid.UUID, status domain.Status) (bool, error)
	// FindSweepCandidates returns non-terminal transfers created after the
	// cutoff, each loaded with only its non-terminal recipient rows.
	FindSweepCandidates(ctx context.Context, createdAfter time.Time) ([]domain.TransferWithRecipients, error)
}
