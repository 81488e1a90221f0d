package app

import "github.com/shonubijerry/blacktax/internal/domain"

// AggregateStatus derives a transfer's overall status from its recipient line
// items. The rules are order-independent and idempotent:
//   - no line items: PENDING (nothing has been attempted)
//   - every item SUCCESS: SUCCESS
//   - every item FAILED: FAILED
//   - any other mix: PROCESSING
func AggregateStatus(items []domain.TransferRecipient) domain.Status {
	if len(items) == 0 {
		return domain.StatusPending
	}

	allSuccess := true
	allFailed := true
	for _, item := range items {
		if item.Status != domain.StatusSuccess {
			allSuccess = false
		}
		if item.Status != domain.StatusFailed {
			allFailed = false
		}
	}

	switch {
	case allSuccess:
		return domain.StatusSuccess
	case allFailed:
		return domain.StatusFailed
	default:
		return domain.StatusProcessing
	}
}
