/**
 * @description
 * Reconciliation sweeps: periodically re-queries the provider for transfers
 * that never received a webhook and settles the stragglers. Two cadences run,
 * a frequent sweep over recent transfers and a wide hourly sweep over a
 * multi-day window; both share this implementation and differ only in lookback.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/shonubijerry/blacktax/internal/domain"
	"github.com/shonubijerry/blacktax/pkg/paystackclient"
)

// ReconcileTransfers looks up every non-terminal transfer created within the
// lookback window and applies whatever status the provider now reports. A
// provider error on one lookup is counted and skipped; the sweep always
// finishes the window.
func (s *Service) ReconcileTransfers(ctx context.Context, lookback time.Duration) (*domain.SweepReport, error) {
	cutoff := time.Now().Add(-lookback)
	candidates, err := s.repo.FindSweepCandidates(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	report := &domain.SweepReport{}
	for i := range candidates {
		transfer := &candidates[i]
		report.TransfersChecked++

		if transfer.Mode == domain.ModeBulk && transfer.ProviderBatchCode != nil {
			s.reconcileBatch(ctx, transfer, report)
			continue
		}
		for j := range transfer.Recipients {
			s.reconcileItem(ctx, &transfer.Recipients[j], report)
		}
	}

	log.Printf("level=info component=reconcile msg=\"sweep finished\" lookback=%s transfers=%d recipients=%d updated=%d errors=%d",
		lookback, report.TransfersChecked, report.RecipientsChecked, report.Updated, report.Errored)
	return report, nil
}

// reconcileBatch resolves a whole bulk transfer with one provider lookup and
// matches the results back to line items by reference.
func (s *Service) reconcileBatch(ctx context.Context, transfer *domain.TransferWithRecipients, report *domain.SweepReport) {
	results, err := s.provider.FetchBulkTransfer(ctx, *transfer.ProviderBatchCode)
	if err != nil {
		log.Printf("level=warn component=reconcile msg=\"bulk lookup failed\" transfer_id=%s batch_code=%s err=%v",
			transfer.ID, *transfer.ProviderBatchCode, err)
		report.Errored++
		return
	}

	byReference := make(map[string]paystackclient.TransferData, len(results))
	for _, result := range results {
		byReference[result.Reference] = result
	}

	for i := range transfer.Recipients {
		item := &transfer.Recipients[i]
		report.RecipientsChecked++
		result, ok := byReference[item.ProviderReference]
		if !ok {
			continue
		}
		s.applyProviderResult(ctx, item, result, report)
	}
}

// reconcileItem resolves one line item, preferring the provider transfer code
// and falling back to the correlation reference.
func (s *Service) reconcileItem(ctx context.Context, item *domain.TransferRecipient, report *domain.SweepReport) {
	report.RecipientsChecked++

	var (
		result *paystackclient.TransferData
		err    error
	)
	if item.ProviderTransferCode != nil && *item.ProviderTransferCode != "" {
		result, err = s.provider.FetchTransfer(ctx, *item.ProviderTransferCode)
	} else {
		result, err = s.provider.VerifyTransfer(ctx, item.ProviderReference)
	}
	if err != nil {
		log.Printf("level=warn component=reconcile msg=\"transfer lookup failed\" item_id=%s provider_reference=%s err=%v",
			item.ID, item.ProviderReference, err)
		report.Errored++
		return
	}
	if result == nil {
		// The provider has no record yet; leave the item for a later sweep.
		return
	}
	s.applyProviderResult(ctx, item, *result, report)
}

func (s *Service) applyProviderResult(ctx context.Context, item *domain.TransferRecipient, result paystackclient.TransferData, report *domain.SweepReport) {
	status := domain.NormalizeStatus(result.Status)
	if status == domain.StatusPending {
		return
	}

	update := domain.StatusUpdate{Status: status}
	if status == domain.StatusFailed && result.FailureReason != "" {
		reason := result.FailureReason
		update.FailureReason = &reason
	}

	changed, err := s.applyStatusUpdate(ctx, item, update)
	if err != nil {
		log.Printf("level=warn component=reconcile msg=\"failed to apply sweep result\" item_id=%s err=%v", item.ID, err)
		report.Errored++
		return
	}
	if changed {
		report.Updated++
	}
}
