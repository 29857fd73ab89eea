package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/queue"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/repository"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/tokenizer"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
)

const cartEventsPageSize = 100

// ReceiptService drives a receipt through its lifecycle: building it
// from biz events, tokenizing identifiers, persisting it and handing it
// to the generation queue.
//
// Failed adapter calls are recorded on the receipt itself (status plus
// reason error) so multi-step flows can gate on Receipt.IsStatusValid
// after every step.
type ReceiptService interface {
	BuildReceipt(ctx context.Context, event *domain.BizEvent, receiptID string) *domain.Receipt
	BuildCartReceipt(ctx context.Context, events []domain.BizEvent) *domain.Receipt
	TokenizeFiscalCodes(ctx context.Context, event *domain.BizEvent, receipt *domain.Receipt, eventData *domain.EventData) error
	TokenizeReceipt(ctx context.Context, events []domain.BizEvent, receipt *domain.Receipt) error
	HandleSaveReceipt(ctx context.Context, receipt *domain.Receipt, status domain.ReceiptStatus) error
	HandleSendMessageToQueue(ctx context.Context, events []domain.BizEvent, receipt *domain.Receipt) error
	GetCartBizEvents(ctx context.Context, cartID string) ([]domain.BizEvent, error)
}

type receiptService struct {
	tokenizer       tokenizer.Tokenizer
	producer        queue.Producer
	receipts        repository.ReceiptRepository
	bizEvents       repository.BizEventRepository
	ecommerceFilter bool
	logger          *zap.Logger
	tracer          trace.Tracer
}

func NewReceiptService(
	tok tokenizer.Tokenizer,
	producer queue.Producer,
	receipts repository.ReceiptRepository,
	bizEvents repository.BizEventRepository,
	ecommerceFilter bool,
	logger *zap.Logger,
) ReceiptService {
	return &receiptService{
		tokenizer:       tok,
		producer:        producer,
		receipts:        receipts,
		bizEvents:       bizEvents,
		ecommerceFilter: ecommerceFilter,
		logger:          logger,
		tracer:          otel.Tracer("service/receipt_service"),
	}
}

// BuildReceipt assembles a receipt from a single biz event. A failed
// tokenization leaves the receipt in FAILED with the reason recorded,
// never a partially tokenized one.
func (s *receiptService) BuildReceipt(ctx context.Context, event *domain.BizEvent, receiptID string) *domain.Receipt {
	ctx, span := s.tracer.Start(ctx, "ReceiptService.BuildReceipt")
	defer span.End()

	if receiptID == "" {
		receiptID = event.ID + uuid.NewString()
	}

	receipt := &domain.Receipt{
		ID:      receiptID,
		EventID: event.ID,
	}

	eventData := &domain.EventData{}
	if err := s.TokenizeFiscalCodes(ctx, event, receipt, eventData); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error tokenizing receipt",
			zap.String("event_id", event.ID), zap.Error(err))
		receipt.Status = domain.ReceiptStatusFailed
		return receipt
	}

	eventData.TransactionCreationDate = TransactionCreationDate(event)
	if cents := AmountCents(event); cents != 0 {
		eventData.Amount = FormatAmount(cents)
	}
	eventData.Cart = []domain.CartItem{cartItem(event)}

	receipt.EventData = eventData
	return receipt
}

// BuildCartReceipt assembles a receipt covering every event of a cart.
// The receipt id and event id derive from the shared transaction id and
// the amount is the sum over all items.
func (s *receiptService) BuildCartReceipt(ctx context.Context, events []domain.BizEvent) *domain.Receipt {
	ctx, span := s.tracer.Start(ctx, "ReceiptService.BuildCartReceipt")
	defer span.End()

	first := events[0]
	cartID := first.TransactionDetails.Transaction.TransactionID

	receipt := &domain.Receipt{
		ID:      fmt.Sprintf("%s-%s", cartID, uuid.NewString()),
		EventID: cartID,
		IsCart:  true,
	}

	eventData := &domain.EventData{}
	if err := s.TokenizeFiscalCodes(ctx, &first, receipt, eventData); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error tokenizing cart receipt",
			zap.String("cart_id", cartID), zap.Error(err))
		receipt.Status = domain.ReceiptStatusFailed
		return receipt
	}

	eventData.TransactionCreationDate = TransactionCreationDate(&first)
	fillCartEventData(eventData, events)

	receipt.EventData = eventData
	return receipt
}

// TokenizeFiscalCodes swaps the clear identifiers for PDV tokens. The
// debtor falls back to the anonymous sentinel, the payer is tokenized
// only for authenticated origins.
func (s *receiptService) TokenizeFiscalCodes(ctx context.Context, event *domain.BizEvent, receipt *domain.Receipt, eventData *domain.EventData) error {
	ctx, span := s.tracer.Start(ctx, "ReceiptService.TokenizeFiscalCodes")
	defer span.End()

	eventData.DebtorFiscalCode = AnonymousFiscalCode
	if event.Debtor != nil && IsValidFiscalCode(event.Debtor.EntityUniqueIdentifierValue) {
		token, err := s.tokenizer.Tokenize(ctx, event.Debtor.EntityUniqueIdentifierValue)
		if err != nil {
			span.RecordError(err)
			s.handleTokenizerError(receipt, err)
			return err
		}
		eventData.DebtorFiscalCode = token
	}

	if !IsFromAuthenticatedOrigin(event) {
		return nil
	}

	payerFiscalCode := ""
	if td := event.TransactionDetails; td != nil && td.User != nil && IsValidFiscalCode(td.User.FiscalCode) {
		payerFiscalCode = td.User.FiscalCode
	} else if event.Payer != nil && IsValidFiscalCode(event.Payer.EntityUniqueIdentifierValue) {
		payerFiscalCode = event.Payer.EntityUniqueIdentifierValue
	}
	if payerFiscalCode == "" {
		return nil
	}

	token, err := s.tokenizer.Tokenize(ctx, payerFiscalCode)
	if err != nil {
		span.RecordError(err)
		s.handleTokenizerError(receipt, err)
		return err
	}
	eventData.PayerFiscalCode = token

	return nil
}

// TokenizeReceipt fills in event data on a receipt that was stored
// without it, then tokenizes the identifiers of the first event.
func (s *receiptService) TokenizeReceipt(ctx context.Context, events []domain.BizEvent, receipt *domain.Receipt) error {
	first := events[0]

	if receipt.EventData == nil {
		eventData := &domain.EventData{
			TransactionCreationDate: TransactionCreationDate(&first),
		}
		fillCartEventData(eventData, events)
		receipt.EventData = eventData
	}

	return s.TokenizeFiscalCodes(ctx, &first, receipt, receipt.EventData)
}

// HandleSaveReceipt stamps the timestamps implied by the target status
// and persists the receipt. A store failure flips the receipt to FAILED
// with the store reason code.
func (s *receiptService) HandleSaveReceipt(ctx context.Context, receipt *domain.Receipt, status domain.ReceiptStatus) error {
	ctx, span := s.tracer.Start(ctx, "ReceiptService.HandleSaveReceipt")
	defer span.End()

	now := time.Now().UnixMilli()
	switch status {
	case domain.ReceiptStatusGenerated:
		receipt.Status = domain.ReceiptStatusGenerated
		receipt.GeneratedAt = now
		receipt.InsertedAt = now
	case domain.ReceiptStatusIONotified:
		receipt.Status = domain.ReceiptStatusIONotified
		receipt.NotifiedAt = now
		receipt.InsertedAt = now
	default:
		receipt.Status = domain.ReceiptStatusInserted
		receipt.InsertedAt = now
	}

	if err := s.receipts.Save(ctx, receipt); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error saving receipt",
			zap.String("event_id", receipt.EventID), zap.Error(err))

		receipt.Status = domain.ReceiptStatusFailed
		receipt.ReasonErr = &domain.ReasonError{
			Code:    domain.ReasonErrorStore,
			Message: fmt.Sprintf("error saving receipt with eventId %s", receipt.EventID),
		}
		return err
	}

	return nil
}

// HandleSendMessageToQueue publishes the biz events for the generation
// worker. The payload is the base64 encoding of the JSON event list. A
// publish failure flips the receipt to NOT_QUEUE_SENT with the queue
// reason code.
func (s *receiptService) HandleSendMessageToQueue(ctx context.Context, events []domain.BizEvent, receipt *domain.Receipt) error {
	ctx, span := s.tracer.Start(ctx, "ReceiptService.HandleSendMessageToQueue")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", receipt.EventID),
		attribute.Int("events", len(events)),
	)

	raw, err := json.Marshal(events)
	if err == nil {
		err = s.producer.Publish(ctx, base64.StdEncoding.EncodeToString(raw))
	}
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error sending biz events to queue",
			zap.String("event_id", receipt.EventID), zap.Error(err))

		receipt.Status = domain.ReceiptStatusNotQueueSent
		receipt.ReasonErr = &domain.ReasonError{
			Code:    domain.ReasonErrorQueue,
			Message: fmt.Sprintf("error sending message to queue for receipt with eventId %s", receipt.EventID),
		}
		return err
	}

	return nil
}

// GetCartBizEvents pages through every biz event sharing the cart's
// transaction id.
func (s *receiptService) GetCartBizEvents(ctx context.Context, cartID string) ([]domain.BizEvent, error) {
	ctx, span := s.tracer.Start(ctx, "ReceiptService.GetCartBizEvents")
	defer span.End()

	span.SetAttributes(attribute.String("cart_id", cartID))

	var events []domain.BizEvent
	cursor := ""
	for {
		page, nextCursor, err := s.bizEvents.GetByTransactionID(ctx, cartID, cursor, cartEventsPageSize)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("error getting cart biz events: %w", err)
		}
		events = append(events, page...)
		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	return events, nil
}

func (s *receiptService) handleTokenizerError(receipt *domain.Receipt, err error) {
	code := domain.ReasonErrorTokenizer
	var tokErr *tokenizer.Error
	if errors.As(err, &tokErr) {
		code = tokErr.StatusCode
	}

	receipt.Status = domain.ReceiptStatusFailed
	receipt.ReasonErr = &domain.ReasonError{Code: code, Message: err.Error()}
}

func cartItem(event *domain.BizEvent) domain.CartItem {
	item := domain.CartItem{Subject: ItemSubject(event)}
	if event.Creditor != nil {
		item.PayeeName = event.Creditor.CompanyName
	}
	return item
}

func fillCartEventData(eventData *domain.EventData, events []domain.BizEvent) {
	var total int64
	items := make([]domain.CartItem, 0, len(events))
	for _, event := range events {
		total += AmountCents(&event)
		items = append(items, cartItem(&event))
	}
	if total != 0 {
		eventData.Amount = FormatAmount(total)
	}
	eventData.Cart = items
}
