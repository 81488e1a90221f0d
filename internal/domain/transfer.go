/**
 * @description
 * This file defines the core domain models for the transfer engine.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests, database models, and provider
 *   payloads ensures clear separation of concerns and type safety.
 * - Amounts are stored as `int64` in whole currency units; the Paystack client
 *   converts to the minor unit (kobo) at the provider boundary.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state shared by transfers and their recipient line items.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// IsTerminal reports whether no further automatic transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// TransferMode selects how a transfer request is dispatched to the provider.
type TransferMode string

const (
	ModeSingle TransferMode = "single"
	ModeBulk   TransferMode = "bulk"
)

// Transfer is the aggregate root for one disbursement request covering one or
// more recipients. This struct maps directly to the `transfers` table.
type Transfer struct {
	ID                uuid.UUID    `json:"id"`
	Reference         string       `json:"reference"`
	TotalAmount       int64        `json:"total_amount"`
	Status            Status       `json:"status"`
	Mode              TransferMode `json:"mode"`
	CallbackURL       *string      `json:"callback_url,omitempty"`
	Description       *string      `json:"description,omitempty"`
	ProviderBatchCode *string      `json:"provider_batch_code,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// TransferRecipient is one recipient's line item within a specific transfer,
// with its own independent lifecycle. The provider reference is the correlation
// key used by webhook and polling updates before the provider transfer code is
// known; it is globally unique.
type TransferRecipient struct {
	ID                   uuid.UUID  `json:"id"`
	TransferID           uuid.UUID  `json:"transfer_id"`
	RecipientID          uuid.UUID  `json:"recipient_id"`
	Amount               int64      `json:"amount"`
	Status               Status     `json:"status"`
	ProviderTransferCode *string    `json:"provider_transfer_code,omitempty"`
	ProviderReference    string     `json:"provider_reference"`
	TransferredAt        *time.Time `json:"transferred_at,omitempty"`
	FailureReason        *string    `json:"failure_reason,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// Recipient identity is joined in for API responses.
	Recipient *RecipientSummary `json:"recipient,omitempty"`
}

// RecipientSummary is the subset of recipient identity embedded in transfer responses.
type RecipientSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// TransferWithRecipients bundles a transfer with its full recipient outcome list.
type TransferWithRecipients struct {
	Transfer
	Recipients []TransferRecipient `json:"recipients"`
}

// TransferRequestItem pairs a registered recipient with the amount to disburse.
type TransferRequestItem struct {
	ID     uuid.UUID `json:"id"`
	Amount int64     `json:"amount"`
}

// TransferRequest is the DTO for incoming create-transfer API requests.
type TransferRequest struct {
	Recipients  []TransferRequestItem `json:"recipients"`
	Mode        TransferMode          `json:"mode,omitempty"`
	Reference   string                `json:"reference,omitempty"`
	CallbackURL *string               `json:"callback_url,omitempty"`
	Description *string               `json:"description,omitempty"`
}

// TransferListOptions controls pagination and filtering of transfer history.
type TransferListOptions struct {
	Page   int
	Limit  int
	Status *Status
}

// StatusUpdate carries one recipient status change produced by any of the
// three update channels (initial response, webhook, reconciliation sweep).
type StatusUpdate struct {
	Status        Status
	FailureReason *string
}

// SweepReport summarizes one reconciliation sweep invocation.
type SweepReport struct {
	TransfersChecked  int `json:"transfers_checked"`
	RecipientsChecked int `json:"recipients_checked"`
	Updated           int `json:"updated"`
	Errored           int `json:"errors"`
}
