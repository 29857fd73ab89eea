package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/repository"
)

// QueryService serves the read-only helpdesk lookups.
type QueryService interface {
	GetReceipt(ctx context.Context, eventID string) (*domain.Receipt, error)
	GetCart(ctx context.Context, cartID string) (*domain.CartForReceipt, error)
	GetReceiptByOrgFiscalCodeAndIUV(ctx context.Context, orgFiscalCode, iuv string) (*domain.Receipt, error)
	GetReceiptError(ctx context.Context, bizEventID string) (*domain.ReceiptError, error)
}

type queryService struct {
	receipts      repository.ReceiptRepository
	carts         repository.CartRepository
	bizEvents     repository.BizEventRepository
	receiptErrors repository.ReceiptErrorRepository
	logger        *zap.Logger
	tracer        trace.Tracer
}

func NewQueryService(
	receipts repository.ReceiptRepository,
	carts repository.CartRepository,
	bizEvents repository.BizEventRepository,
	receiptErrors repository.ReceiptErrorRepository,
	logger *zap.Logger,
) QueryService {
	return &queryService{
		receipts:      receipts,
		carts:         carts,
		bizEvents:     bizEvents,
		receiptErrors: receiptErrors,
		logger:        logger,
		tracer:        otel.Tracer("service/query_service"),
	}
}

func (s *queryService) GetReceipt(ctx context.Context, eventID string) (*domain.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.GetReceipt")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	return s.receipts.GetByEventID(ctx, eventID)
}

func (s *queryService) GetCart(ctx context.Context, cartID string) (*domain.CartForReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.GetCart")
	defer span.End()

	span.SetAttributes(attribute.String("cart_id", cartID))

	return s.carts.GetByID(ctx, cartID)
}

// GetReceiptByOrgFiscalCodeAndIUV resolves the biz event behind the
// organization fiscal code and IUV pair, then looks up its receipt.
func (s *queryService) GetReceiptByOrgFiscalCodeAndIUV(ctx context.Context, orgFiscalCode, iuv string) (*domain.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.GetReceiptByOrgFiscalCodeAndIUV")
	defer span.End()

	span.SetAttributes(
		attribute.String("org_fiscal_code", orgFiscalCode),
		attribute.String("iuv", iuv),
	)

	event, err := s.bizEvents.GetByOrgFiscalCodeAndIUV(ctx, orgFiscalCode, iuv)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return s.receipts.GetByEventID(ctx, event.ID)
}

func (s *queryService) GetReceiptError(ctx context.Context, bizEventID string) (*domain.ReceiptError, error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.GetReceiptError")
	defer span.End()

	span.SetAttributes(attribute.String("biz_event_id", bizEventID))

	return s.receiptErrors.GetByBizEventID(ctx, bizEventID)
}
