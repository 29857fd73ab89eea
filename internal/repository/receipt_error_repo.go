package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrNotToReview is returned by MarkReviewed when the record is no
// longer in TO_REVIEW; the transition is one-way and race-protected by
// the status predicate in the update itself.
var ErrNotToReview = errors.New("receipt error is not in TO_REVIEW status")

type ReceiptErrorRepository interface {
	GetByBizEventID(ctx context.Context, bizEventID string) (*domain.ReceiptError, error)
	MarkReviewed(ctx context.Context, id string) error
	GetToReview(ctx context.Context, cursor string, pageSize int) ([]domain.ReceiptError, string, error)
}

type receiptErrorRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewReceiptErrorRepository(pool *pgxpool.Pool, logger *zap.Logger) ReceiptErrorRepository {
	return &receiptErrorRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/receipt_error_repo"),
	}
}

func (r *receiptErrorRepo) GetByBizEventID(ctx context.Context, bizEventID string) (*domain.ReceiptError, error) {
	ctx, span := r.tracer.Start(ctx, "ReceiptErrorRepository.GetByBizEventID")
	defer span.End()

	span.SetAttributes(attribute.String("biz_event_id", bizEventID))

	query := `
		SELECT data
		FROM receipt_errors
		WHERE biz_event_id = $1
	`

	var raw []byte
	if err := r.pool.QueryRow(ctx, query, bizEventID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReceiptErrorNotFound
		}

		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Error getting receipt error",
			zap.String("biz_event_id", bizEventID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting receipt error: %w", err)
	}

	var receiptError domain.ReceiptError
	if err := json.Unmarshal(raw, &receiptError); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error decoding receipt error document: %w", err)
	}

	return &receiptError, nil
}

func (r *receiptErrorRepo) MarkReviewed(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "ReceiptErrorRepository.MarkReviewed")
	defer span.End()

	span.SetAttributes(attribute.String("id", id))

	query := `
		UPDATE receipt_errors
		SET status = $1,
			data = jsonb_set(data, '{status}', to_jsonb($1::text))
		WHERE id = $2 AND status = $3
	`

	commandTag, err := r.pool.Exec(ctx, query,
		string(domain.ReceiptErrorStatusReviewed), id, string(domain.ReceiptErrorStatusToReview))
	if err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Error marking receipt error reviewed",
			zap.String("id", id),
			zap.Error(err),
		)

		return fmt.Errorf("error marking receipt error reviewed: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrNotToReview
	}

	return nil
}

func (r *receiptErrorRepo) GetToReview(ctx context.Context, cursor string, pageSize int) ([]domain.ReceiptError, string, error) {
	ctx, span := r.tracer.Start(ctx, "ReceiptErrorRepository.GetToReview")
	defer span.End()

	span.SetAttributes(attribute.String("cursor", cursor))

	query := `
		SELECT data
		FROM receipt_errors
		WHERE status = $1
			AND id > $2
		ORDER BY id
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, string(domain.ReceiptErrorStatusToReview), cursor, pageSize)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Error querying receipt errors page",
			zap.Error(err),
		)

		return nil, "", fmt.Errorf("error querying receipt errors: %w", err)
	}
	defer rows.Close()

	var receiptErrors []domain.ReceiptError
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			span.RecordError(err)
			return nil, "", fmt.Errorf("error scanning rows: %w", err)
		}

		var receiptError domain.ReceiptError
		if err := json.Unmarshal(raw, &receiptError); err != nil {
			span.RecordError(err)
			return nil, "", fmt.Errorf("error decoding receipt error document: %w", err)
		}
		receiptErrors = append(receiptErrors, receiptError)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("rows iteration error: %w", err)
	}

	nextCursor := ""
	if len(receiptErrors) == pageSize {
		nextCursor = receiptErrors[len(receiptErrors)-1].ID
	}

	return receiptErrors, nextCursor, nil
}
