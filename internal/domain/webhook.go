package domain

import "time"

// ProviderWebhookEvent is the signed payload Paystack posts to the webhook
// endpoint. Only transfer.success and transfer.failed are acted upon; every
// other event kind is acknowledged and ignored.
type ProviderWebhookEvent struct {
	Event string              `json:"event"`
	Data  ProviderWebhookData `json:"data"`
}

// ProviderWebhookData carries the fields needed to locate and update the
// matching transfer recipient row.
type ProviderWebhookData struct {
	Reference     string `json:"reference"`
	TransferCode  string `json:"transfer_code"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

// RecipientStatusEvent is published to the event exchange whenever a transfer
// recipient reaches a terminal state through the webhook or a sweep.
type RecipientStatusEvent struct {
	TransferID        string    `json:"transfer_id"`
	TransferReference string    `json:"transfer_reference"`
	RecipientID       string    `json:"recipient_id"`
	ProviderReference string    `json:"provider_reference"`
	Status            Status    `json:"status"`
	FailureReason     *string   `json:"failure_reason,omitempty"`
	Amount            int64     `json:"amount"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// TransferStatusEvent is published when a transfer's aggregate status changes
// into a terminal state.
type TransferStatusEvent struct {
	TransferID  string    `json:"transfer_id"`
	Reference   string    `json:"reference"`
	Status      Status    `json:"status"`
	TotalAmount int64     `json:"total_amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}
