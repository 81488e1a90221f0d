/**
 * @description
 * Applies provider-originated status updates (webhook deliveries and sweep
 * lookups) to transfer recipient line items, re-derives the transfer's overall
 * status and publishes terminal outcomes to the message broker.
 *
 * All three update channels funnel through applyStatusUpdate, so the sticky
 * terminal-state rule is enforced in exactly one place: the conditional write
 * in the repository.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shonubijerry/blacktax/internal/domain"
	"github.com/shonubijerry/blacktax/internal/store"
)

const (
	webhookEventTransferSuccess = "transfer.success"
	webhookEventTransferFailed  = "transfer.failed"
)

// HandleProviderWebhook processes one verified webhook delivery. Unrecognized
// event kinds and deliveries for unknown transfers are acknowledged without
// effect, since the provider also emits events this service never asked for.
func (s *Service) HandleProviderWebhook(ctx context.Context, event domain.ProviderWebhookEvent) error {
	switch event.Event {
	case webhookEventTransferSuccess, webhookEventTransferFailed:
	default:
		log.Printf("level=info component=webhook msg=\"ignoring event\" event=%s", event.Event)
		return nil
	}

	item, err := s.repo.FindTransferRecipientByProviderKeys(ctx, event.Data.TransferCode, event.Data.Reference)
	if err != nil {
		if errors.Is(err, store.ErrTransferRecipientNotFound) {
			log.Printf("level=warn component=webhook msg=\"no matching transfer recipient\" event=%s reference=%s transfer_code=%s",
				event.Event, event.Data.Reference, event.Data.TransferCode)
			return nil
		}
		return fmt.Errorf("failed to locate transfer recipient: %w", err)
	}

	update := domain.StatusUpdate{Status: domain.NormalizeStatus(event.Data.Status)}
	// The event name is authoritative when the embedded status is missing or
	// does not agree with it.
	switch event.Event {
	case webhookEventTransferSuccess:
		update.Status = domain.StatusSuccess
	case webhookEventTransferFailed:
		update.Status = domain.StatusFailed
	}
	if update.Status == domain.StatusFailed && event.Data.FailureReason != "" {
		reason := event.Data.FailureReason
		update.FailureReason = &reason
	}

	if _, err := s.applyStatusUpdate(ctx, item, update); err != nil {
		return err
	}
	return nil
}

// applyStatusUpdate performs the sticky conditional write for one line item
// and, when the write wins, publishes the outcome and re-derives the
// transfer's overall status. It reports whether the item actually changed.
func (s *Service) applyStatusUpdate(ctx context.Context, item *domain.TransferRecipient, update domain.StatusUpdate) (bool, error) {
	changed, err := s.repo.ApplyRecipientStatus(ctx, item.ID, update)
	if err != nil {
		return false, fmt.Errorf("failed to apply recipient status: %w", err)
	}
	if !changed {
		return false, nil
	}
	log.Printf("level=info component=transfer_service msg=\"recipient status applied\" item_id=%s provider_reference=%s status=%s",
		item.ID, item.ProviderReference, update.Status)

	if update.Status.IsTerminal() {
		s.publishRecipientOutcome(ctx, item, update)
	}

	if err := s.reaggregate(ctx, item.TransferID); err != nil {
		return true, err
	}
	return true, nil
}

// reaggregate recomputes and conditionally persists the overall status of a
// transfer from its stored line items.
func (s *Service) reaggregate(ctx context.Context, transferID uuid.UUID) error {
	items, err := s.repo.FindTransferRecipients(ctx, transferID)
	if err != nil {
		return fmt.Errorf("failed to load transfer recipients: %w", err)
	}

	aggregate := AggregateStatus(items)
	changed, err := s.repo.UpdateTransferStatus(ctx, transferID, aggregate)
	if err != nil {
		return fmt.Errorf("failed to persist transfer status: %w", err)
	}
	if !changed || !aggregate.IsTerminal() {
		return nil
	}

	transfer, err := s.repo.FindTransferByID(ctx, transferID)
	if err != nil {
		return fmt.Errorf("failed to load transfer: %w", err)
	}
	if pubErr := s.eventProducer.PublishTransferStatusEvent(ctx, domain.TransferStatusEvent{
		TransferID:  transfer.ID.String(),
		Reference:   transfer.Reference,
		Status:      aggregate,
		TotalAmount: transfer.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}); pubErr != nil {
		log.Printf("level=warn component=transfer_service msg=\"failed to publish transfer status event\" transfer_id=%s err=%v", transferID, pubErr)
	}
	return nil
}

func (s *Service) publishRecipientOutcome(ctx context.Context, item *domain.TransferRecipient, update domain.StatusUpdate) {
	transfer, err := s.repo.FindTransferByID(ctx, item.TransferID)
	reference := ""
	if err == nil {
		reference = transfer.Reference
	}
	if pubErr := s.eventProducer.PublishRecipientStatusEvent(ctx, domain.RecipientStatusEvent{
		TransferID:        item.TransferID.String(),
		TransferReference: reference,
		RecipientID:       item.RecipientID.String(),
		ProviderReference: item.ProviderReference,
		Status:            update.Status,
		FailureReason:     update.FailureReason,
		Amount:            item.Amount,
		OccurredAt:        time.Now().UTC(),
	}); pubErr != nil {
		log.Printf("level=warn component=transfer_service msg=\"failed to publish recipient status event\" item_id=%s err=%v", item.ID, pubErr)
	}
}
