package service

import (
	"context"
	"fmt"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/repository"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const reviewPageSize = 100

// ReviewService drives the one-way TO_REVIEW to REVIEWED transition on
// parked receipt errors, either for a single biz event or for the whole
// backlog.
type ReviewService interface {
	ReviewError(ctx context.Context, bizEventID string) (*domain.ReceiptError, error)
	ReviewAll(ctx context.Context) (int, error)
}

type reviewService struct {
	receiptErrors repository.ReceiptErrorRepository
	logger        *zap.Logger
	tracer        trace.Tracer
}

func NewReviewService(receiptErrors repository.ReceiptErrorRepository, logger *zap.Logger) ReviewService {
	return &reviewService{
		receiptErrors: receiptErrors,
		logger:        logger,
		tracer:        otel.Tracer("service/review_service"),
	}
}

func (s *reviewService) ReviewError(ctx context.Context, bizEventID string) (*domain.ReceiptError, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewService.ReviewError")
	defer span.End()

	span.SetAttributes(attribute.String("biz_event_id", bizEventID))

	receiptError, err := s.receiptErrors.GetByBizEventID(ctx, bizEventID)
	if err != nil {
		return nil, err
	}

	if receiptError.Status != domain.ReceiptErrorStatusToReview {
		return nil, fmt.Errorf("%w: found receipt error with status %s", ErrUnexpectedStatus, receiptError.Status)
	}

	if err := s.receiptErrors.MarkReviewed(ctx, receiptError.ID); err != nil {
		return nil, err
	}

	receiptError.Status = domain.ReceiptErrorStatusReviewed
	return receiptError, nil
}

func (s *reviewService) ReviewAll(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewService.ReviewAll")
	defer span.End()

	reviewed := 0
	cursor := ""
	for {
		page, nextCursor, err := s.receiptErrors.GetToReview(ctx, cursor, reviewPageSize)
		if err != nil {
			return reviewed, fmt.Errorf("error scanning receipt errors to review: %w", err)
		}

		for i := range page {
			if err := s.receiptErrors.MarkReviewed(ctx, page[i].ID); err != nil {
				// a concurrent reviewer got there first, nothing lost
				mylogger.Warn(
					ctx,
					s.logger,
					"Skipping receipt error already transitioned",
					zap.String("id", page[i].ID),
					zap.Error(err),
				)
				continue
			}
			reviewed++
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	mylogger.Info(ctx, s.logger, "Receipt error review sweep finished", zap.Int("reviewed", reviewed))
	return reviewed, nil
}
