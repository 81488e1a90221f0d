package domain

import (
	"time"

	"github.com/google/uuid"
)

// Recipient is a registered payout target. The provider recipient code is an
// opaque handle issued by Paystack for the recipient's bank account; it is
// created lazily on first transfer and cached for reuse. Because the handle is
// bank-account-specific it must be cleared whenever the bank details change.
type Recipient struct {
	ID                    uuid.UUID `json:"id"`
	Name                  string    `json:"name"`
	Email                 string    `json:"email"`
	Phone                 string    `json:"phone"`
	AccountNumber         string    `json:"account_number"`
	BankCode              string    `json:"bank_code"`
	BankName              *string   `json:"bank_name,omitempty"`
	ProviderRecipientCode *string   `json:"provider_recipient_code,omitempty"`
	IsActive              bool      `json:"is_active"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// RecipientCreateRequest is the DTO for registering a new recipient.
type RecipientCreateRequest struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	AccountNumber string  `json:"account_number"`
	BankCode      string  `json:"bank_code"`
	BankName      *string `json:"bank_name,omitempty"`
}

// RecipientUpdateRequest is the DTO for partial recipient updates. Nil fields
// are left untouched.
type RecipientUpdateRequest struct {
	Name          *string `json:"name,omitempty"`
	Email         *string `json:"email,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	AccountNumber *string `json:"account_number,omitempty"`
	BankCode      *string `json:"bank_code,omitempty"`
	BankName      *string `json:"bank_name,omitempty"`
}

// RecipientListOptions controls pagination and search over active recipients.
type RecipientListOptions struct {
	Page   int
	Limit  int
	Search string
}
