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

// RegenerateService re-renders the documents of a receipt on demand.
// When the receipt itself is missing it is rebuilt from the biz event
// first, then the documents are generated and the receipt reconciled.
type RegenerateService interface {
	Regenerate(ctx context.Context, eventID string, isCart bool) (*domain.Receipt, error)
}

type regenerateService struct {
	receiptSvc      ReceiptService
	generateSvc     GenerateService
	receipts        repository.ReceiptRepository
	bizEvents       repository.BizEventRepository
	ecommerceFilter bool
	logger          *zap.Logger
	tracer          trace.Tracer
}

func NewRegenerateService(
	receiptSvc ReceiptService,
	generateSvc GenerateService,
	receipts repository.ReceiptRepository,
	bizEvents repository.BizEventRepository,
	ecommerceFilter bool,
	logger *zap.Logger,
) RegenerateService {
	return &regenerateService{
		receiptSvc:      receiptSvc,
		generateSvc:     generateSvc,
		receipts:        receipts,
		bizEvents:       bizEvents,
		ecommerceFilter: ecommerceFilter,
		logger:          logger,
		tracer:          otel.Tracer("service/regenerate_service"),
	}
}

func (s *regenerateService) Regenerate(ctx context.Context, eventID string, isCart bool) (*domain.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "RegenerateService.Regenerate")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.Bool("is_cart", isCart),
	)

	var events []domain.BizEvent
	if isCart {
		cartEvents, err := s.receiptSvc.GetCartBizEvents(ctx, eventID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if len(cartEvents) == 0 {
			return nil, repository.ErrBizEventNotFound
		}
		events = cartEvents
	} else {
		event, err := s.bizEvents.GetByID(ctx, eventID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		events = []domain.BizEvent{*event}
	}

	receipt, err := s.receipts.GetByEventID(ctx, eventID)
	if errors.Is(err, repository.ErrReceiptNotFound) {
		receipt, err = s.rebuildReceipt(ctx, &events[0])
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.regeneratePdf(ctx, receipt, events); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return receipt, nil
}

// rebuildReceipt recreates a receipt that disappeared from the store.
// It is saved straight in IO_NOTIFIED because the citizen was already
// notified when the original receipt existed.
func (s *regenerateService) rebuildReceipt(ctx context.Context, event *domain.BizEvent) (*domain.Receipt, error) {
	if err := ValidateBizEvent(event, s.ecommerceFilter); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventNotRecoverable, err)
	}

	totalNotice, err := TotalNotice(event)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventNotRecoverable, err)
	}
	if totalNotice > 1 {
		return nil, fmt.Errorf("%w: cart type receipt cannot be rebuilt from a single event", ErrEventNotRecoverable)
	}

	receipt := s.receiptSvc.BuildReceipt(ctx, event, "")
	if receipt.IsStatusValid() {
		if err := s.receiptSvc.HandleSaveReceipt(ctx, receipt, domain.ReceiptStatusIONotified); err != nil {
			return nil, fmt.Errorf("failed to save rebuilt receipt with eventId %s: %w", event.ID, err)
		}
	}
	if !receipt.IsStatusValid() {
		return nil, fmt.Errorf("failed to rebuild receipt with eventId %s", event.ID)
	}
	return receipt, nil
}

func (s *regenerateService) regeneratePdf(ctx context.Context, receipt *domain.Receipt, events []domain.BizEvent) error {
	if receipt.EventData == nil {
		return fmt.Errorf("receipt with eventId %s has no event data", receipt.EventID)
	}

	mylogger.Debug(ctx, s.logger, "Regenerating pdf for receipt",
		zap.String("receipt_id", receipt.ID), zap.String("event_id", receipt.EventID))

	updateMetadata := !HasAllAttachments(receipt)
	EnsureAttachments(receipt)

	generation := s.generateSvc.GenerateReceipts(ctx, receipt, events)

	success, genErr := s.generateSvc.VerifyAndUpdateReceipt(ctx, receipt, generation)

	if err := s.refreshReceiptData(ctx, receipt, events); err != nil {
		return err
	}

	if updateMetadata {
		s.reconcileStatus(receipt, generation)
		if err := s.receipts.Save(ctx, receipt); err != nil {
			return err
		}
	}

	if genErr != nil {
		return genErr
	}
	if !success {
		return fmt.Errorf("receipt with eventId %s could not be updated with the new attachments", receipt.EventID)
	}
	return nil
}

// refreshReceiptData backfills tokenized identifiers and cart items
// that older receipts were stored without.
func (s *regenerateService) refreshReceiptData(ctx context.Context, receipt *domain.Receipt, events []domain.BizEvent) error {
	first := events[0]
	changed := false

	if receipt.EventData.DebtorFiscalCode == "" ||
		(receipt.EventData.PayerFiscalCode == "" && IsFromAuthenticatedOrigin(&first)) {
		if err := s.receiptSvc.TokenizeReceipt(ctx, events, receipt); err != nil {
			return err
		}
		changed = true
	}

	if len(receipt.EventData.Cart) == 0 || receipt.EventData.Cart[0].Subject == "" {
		receipt.EventData.Cart = []domain.CartItem{cartItem(&first)}
		changed = true
	}

	if changed {
		return s.receipts.Save(ctx, receipt)
	}
	return nil
}

func (s *regenerateService) reconcileStatus(receipt *domain.Receipt, generation *PdfGeneration) {
	debtorMetadata := generation.DebtorMetadata
	if debtorMetadata == nil {
		debtorMetadata = &PdfMetadata{}
	}
	payerMetadata := generation.PayerMetadata
	if payerMetadata == nil {
		payerMetadata = &PdfMetadata{}
	}

	if debtorMetadata.ErrorMessage == "" && payerMetadata.ErrorMessage == "" {
		receipt.ReasonErr = nil
		receipt.ReasonErrPayer = nil
		receipt.NumRetry = 0
		receipt.NotificationNumRetry = 0
		receipt.Status = domain.ReceiptStatusIONotified
		receipt.NotifiedAt = time.Now().UnixMilli()
		return
	}

	receipt.ReasonErr = nil
	if debtorMetadata.ErrorMessage != "" {
		receipt.ReasonErr = &domain.ReasonError{Code: debtorMetadata.StatusCode, Message: debtorMetadata.ErrorMessage}
	}
	receipt.ReasonErrPayer = nil
	if payerMetadata.ErrorMessage != "" {
		receipt.ReasonErrPayer = &domain.ReasonError{Code: payerMetadata.StatusCode, Message: payerMetadata.ErrorMessage}
	}
	receipt.Status = domain.ReceiptStatusFailed
}
