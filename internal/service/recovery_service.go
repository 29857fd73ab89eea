package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/repository"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
)

const recoveryPageSize = 100

// ErrEventNotRecoverable reports that the underlying biz event cannot
// produce a receipt, because it is invalid or the cart is incomplete.
var ErrEventNotRecoverable = errors.New("event cannot produce a receipt")

// ErrUnexpectedStatus reports a recovery attempt on a record whose
// status is outside the recoverable set.
var ErrUnexpectedStatus = errors.New("record is not in a recoverable status")

// MassiveRecoverResult reports a batch recovery run. Receipts holds
// only the successfully recovered items, failures are counted.
type MassiveRecoverResult struct {
	Receipts   []domain.Receipt
	ErrorCount int
}

type MassiveCartRecoverResult struct {
	Carts      []domain.CartForReceipt
	ErrorCount int
}

// RecoveryService re-drives stuck receipts and carts through the
// lifecycle: failed and stale-inserted records are rebuilt, re-saved
// and re-queued, generated-but-unnotified ones are reset for the
// notifier. Batch variants page through the store with a cursor and
// report partial success instead of aborting on the first failure.
type RecoveryService interface {
	RecoverReceipt(ctx context.Context, eventID string) (*domain.Receipt, error)
	MassiveRecover(ctx context.Context, status domain.ReceiptStatus) (*MassiveRecoverResult, error)
	RecoverCart(ctx context.Context, cartID string) (*domain.CartForReceipt, error)
	MassiveRecoverCarts(ctx context.Context, status domain.CartStatus) (*MassiveCartRecoverResult, error)
	RestoreNotNotified(ctx context.Context, eventID string, statuses []domain.ReceiptStatus) (*domain.Receipt, error)
	MassiveRestoreNotNotified(ctx context.Context, status domain.ReceiptStatus) (*MassiveRecoverResult, error)
}

type recoveryService struct {
	receiptSvc      ReceiptService
	receipts        repository.ReceiptRepository
	carts           repository.CartRepository
	bizEvents       repository.BizEventRepository
	ecommerceFilter bool
	logger          *zap.Logger
	tracer          trace.Tracer
}

func NewRecoveryService(
	receiptSvc ReceiptService,
	receipts repository.ReceiptRepository,
	carts repository.CartRepository,
	bizEvents repository.BizEventRepository,
	ecommerceFilter bool,
	logger *zap.Logger,
) RecoveryService {
	return &recoveryService{
		receiptSvc:      receiptSvc,
		receipts:        receipts,
		carts:           carts,
		bizEvents:       bizEvents,
		ecommerceFilter: ecommerceFilter,
		logger:          logger,
		tracer:          otel.Tracer("service/recovery_service"),
	}
}

func (s *recoveryService) RecoverReceipt(ctx context.Context, eventID string) (*domain.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "RecoveryService.RecoverReceipt")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	receipt, err := s.recoverOne(ctx, eventID, nil, false)
	if err != nil {
		span.RecordError(err)
	}
	return receipt, err
}

// recoverOne re-drives a single receipt. A nil receipt means it must be
// looked up, and rebuilt from the biz event when missing entirely.
func (s *recoveryService) recoverOne(ctx context.Context, eventID string, receipt *domain.Receipt, isCart bool) (*domain.Receipt, error) {
	events, err := s.loadEvents(ctx, eventID, isCart)
	if err != nil {
		return nil, err
	}

	if receipt == nil {
		receipt, err = s.receipts.GetByEventID(ctx, eventID)
		if errors.Is(err, repository.ErrReceiptNotFound) {
			receipt = s.receiptSvc.BuildReceipt(ctx, &events[0], "")
			if isCart && receipt.EventData != nil {
				fillCartEventData(receipt.EventData, events)
			}
			receipt.IsCart = isCart
			receipt.Status = domain.ReceiptStatusFailed
		} else if err != nil {
			return nil, err
		}
	}

	switch receipt.Status {
	case domain.ReceiptStatusFailed, domain.ReceiptStatusInserted, domain.ReceiptStatusNotQueueSent:
	default:
		return nil, fmt.Errorf("%w: receipt with eventId %s is in status %s",
			ErrUnexpectedStatus, eventID, receipt.Status)
	}

	if receipt.EventData == nil || receipt.EventData.DebtorFiscalCode == "" {
		if err := s.receiptSvc.TokenizeReceipt(ctx, events, receipt); err != nil {
			return nil, err
		}
	}

	receipt.Status = domain.ReceiptStatusInserted
	queueErr := s.receiptSvc.HandleSendMessageToQueue(ctx, events, receipt)
	if queueErr == nil {
		receipt.InsertedAt = time.Now().UnixMilli()
		receipt.ReasonErr = nil
		receipt.ReasonErrPayer = nil
	}

	// The outcome is persisted either way so a failed enqueue leaves a
	// NOT_QUEUE_SENT record behind for the next pass.
	if err := s.receipts.Save(ctx, receipt); err != nil {
		return nil, err
	}
	if queueErr != nil {
		return receipt, fmt.Errorf("failed to enqueue receipt with eventId %s: %w", eventID, queueErr)
	}
	return receipt, nil
}

func (s *recoveryService) loadEvents(ctx context.Context, eventID string, isCart bool) ([]domain.BizEvent, error) {
	if !isCart {
		event, err := s.bizEvents.GetByID(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if err := ValidateBizEvent(event, s.ecommerceFilter); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEventNotRecoverable, err)
		}
		return []domain.BizEvent{*event}, nil
	}

	events, err := s.receiptSvc.GetCartBizEvents(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: no biz events found for cart %s", ErrEventNotRecoverable, eventID)
	}

	totalNotice, err := TotalNotice(&events[0])
	if err != nil || totalNotice != len(events) {
		return nil, fmt.Errorf("%w: not all items collected for cart %s", ErrEventNotRecoverable, eventID)
	}
	for i := range events {
		if err := ValidateBizEvent(&events[i], s.ecommerceFilter); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEventNotRecoverable, err)
		}
	}
	return events, nil
}

// MassiveRecover scans every recoverable receipt in the given status
// and re-drives each one. Failures are logged and counted, never fatal
// for the rest of the batch.
func (s *recoveryService) MassiveRecover(ctx context.Context, status domain.ReceiptStatus) (*MassiveRecoverResult, error) {
	ctx, span := s.tracer.Start(ctx, "RecoveryService.MassiveRecover")
	defer span.End()

	span.SetAttributes(attribute.String("status", string(status)))

	result := &MassiveRecoverResult{}
	cursor := ""
	for {
		page, nextCursor, err := s.receipts.GetFailedByStatus(ctx, status, cursor, recoveryPageSize)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		for i := range page {
			receipt := page[i]
			recovered, err := s.recoverOne(ctx, receipt.EventID, &receipt, receipt.IsCart)
			if err != nil {
				mylogger.Error(ctx, s.logger, "Error recovering receipt",
					zap.String("event_id", receipt.EventID), zap.Error(err))
				result.ErrorCount++
				continue
			}
			result.Receipts = append(result.Receipts, *recovered)
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	return result, nil
}

// RecoverCart rebuilds the receipt of a complete FAILED or INSERTED
// cart, re-queues it and marks the cart SENT.
func (s *recoveryService) RecoverCart(ctx context.Context, cartID string) (*domain.CartForReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "RecoveryService.RecoverCart")
	defer span.End()

	span.SetAttributes(attribute.String("cart_id", cartID))

	cart, err := s.carts.GetByID(ctx, cartID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if cart.Status != domain.CartStatusFailed && cart.Status != domain.CartStatusInserted {
		return nil, fmt.Errorf("%w: cart with id %s is in status %s", ErrUnexpectedStatus, cartID, cart.Status)
	}
	if !cart.IsComplete() {
		return nil, fmt.Errorf("%w: not all items collected for cart %s", ErrEventNotRecoverable, cartID)
	}

	if err := s.processCart(ctx, cart); err != nil {
		span.RecordError(err)
		return nil, err
	}

	cart.Status = domain.CartStatusSent
	if err := s.carts.Save(ctx, cart); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return cart, nil
}

func (s *recoveryService) processCart(ctx context.Context, cart *domain.CartForReceipt) error {
	events, err := s.receiptSvc.GetCartBizEvents(ctx, cart.ID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("%w: no biz events found for cart %s", ErrEventNotRecoverable, cart.ID)
	}

	receipt := s.receiptSvc.BuildCartReceipt(ctx, events)
	if !receipt.IsStatusValid() {
		return fmt.Errorf("failed to process cart %s: fail to tokenize fiscal codes", cart.ID)
	}

	if err := s.receiptSvc.HandleSaveReceipt(ctx, receipt, domain.ReceiptStatusInserted); err != nil {
		return fmt.Errorf("failed to process cart %s: fail to save receipt: %w", cart.ID, err)
	}

	if err := s.receiptSvc.HandleSendMessageToQueue(ctx, events, receipt); err != nil {
		return fmt.Errorf("failed to process cart %s: fail to send message to queue: %w", cart.ID, err)
	}
	return nil
}

func (s *recoveryService) MassiveRecoverCarts(ctx context.Context, status domain.CartStatus) (*MassiveCartRecoverResult, error) {
	ctx, span := s.tracer.Start(ctx, "RecoveryService.MassiveRecoverCarts")
	defer span.End()

	span.SetAttributes(attribute.String("status", string(status)))

	result := &MassiveCartRecoverResult{}
	cursor := ""
	for {
		var page []domain.CartForReceipt
		var nextCursor string
		var err error

		switch status {
		case domain.CartStatusFailed:
			page, nextCursor, err = s.carts.GetFailedCarts(ctx, cursor, recoveryPageSize)
		case domain.CartStatusInserted:
			page, nextCursor, err = s.carts.GetInsertedCarts(ctx, cursor, recoveryPageSize)
		default:
			return nil, fmt.Errorf("%w: carts in status %s cannot be recovered", ErrUnexpectedStatus, status)
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		for i := range page {
			cart := page[i]
			if err := s.processCart(ctx, &cart); err != nil {
				mylogger.Error(ctx, s.logger, "Error recovering cart",
					zap.String("cart_id", cart.ID), zap.Error(err))
				result.ErrorCount++
				continue
			}

			cart.Status = domain.CartStatusSent
			if err := s.carts.Save(ctx, &cart); err != nil {
				mylogger.Error(ctx, s.logger, "Error saving recovered cart",
					zap.String("cart_id", cart.ID), zap.Error(err))
				result.ErrorCount++
				continue
			}
			result.Carts = append(result.Carts, cart)
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	return result, nil
}

// RestoreNotNotified resets a generated receipt stuck before or during
// notification back to a clean GENERATED state.
func (s *recoveryService) RestoreNotNotified(ctx context.Context, eventID string, statuses []domain.ReceiptStatus) (*domain.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "RecoveryService.RestoreNotNotified")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	receipt, err := s.receipts.GetByEventID(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	allowed := false
	for _, status := range statuses {
		if receipt.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: receipt with eventId %s is in status %s",
			ErrUnexpectedStatus, eventID, receipt.Status)
	}

	restoreReceipt(receipt)
	if err := s.receipts.Save(ctx, receipt); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return receipt, nil
}

func (s *recoveryService) MassiveRestoreNotNotified(ctx context.Context, status domain.ReceiptStatus) (*MassiveRecoverResult, error) {
	ctx, span := s.tracer.Start(ctx, "RecoveryService.MassiveRestoreNotNotified")
	defer span.End()

	span.SetAttributes(attribute.String("status", string(status)))

	result := &MassiveRecoverResult{}
	cursor := ""
	for {
		page, nextCursor, err := s.receipts.GetNotNotifiedByStatus(ctx, status, cursor, recoveryPageSize)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		for i := range page {
			receipt := page[i]
			restoreReceipt(&receipt)
			if err := s.receipts.Save(ctx, &receipt); err != nil {
				mylogger.Error(ctx, s.logger, "Error saving restored receipt",
					zap.String("event_id", receipt.EventID), zap.Error(err))
				result.ErrorCount++
				continue
			}
			result.Receipts = append(result.Receipts, receipt)
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	return result, nil
}

// restoreReceipt resets the notification bookkeeping so the notifier
// picks the receipt up again from a clean GENERATED state.
func restoreReceipt(receipt *domain.Receipt) {
	receipt.Status = domain.ReceiptStatusGenerated
	receipt.NotificationNumRetry = 0
	receipt.NotifiedAt = 0
	receipt.ReasonErr = nil
	receipt.ReasonErrPayer = nil
}
