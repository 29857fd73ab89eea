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

type BizEventRepository interface {
	GetByID(ctx context.Context, eventID string) (*domain.BizEvent, error)
	GetByTransactionID(ctx context.Context, transactionID string, cursor string, pageSize int) ([]domain.BizEvent, string, error)
	GetByOrgFiscalCodeAndIUV(ctx context.Context, orgFiscalCode, iuv string) (*domain.BizEvent, error)
}

type bizEventRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewBizEventRepository(pool *pgxpool.Pool, logger *zap.Logger) BizEventRepository {
	return &bizEventRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/bizevent_repo"),
	}
}

func (r *bizEventRepo) GetByID(ctx context.Context, eventID string) (*domain.BizEvent, error) {
	ctx, span := r.tracer.Start(ctx, "BizEventRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		SELECT data
		FROM biz_events
		WHERE id = $1
	`

	return r.queryOne(ctx, span, query, eventID)
}

// GetByTransactionID pages through the biz events of a multi-notice
// payment, all sharing the cart transaction id.
func (r *bizEventRepo) GetByTransactionID(ctx context.Context, transactionID string, cursor string, pageSize int) ([]domain.BizEvent, string, error) {
	ctx, span := r.tracer.Start(ctx, "BizEventRepository.GetByTransactionID")
	defer span.End()

	span.SetAttributes(
		attribute.String("transaction_id", transactionID),
		attribute.String("cursor", cursor),
	)

	query := `
		SELECT data
		FROM biz_events
		WHERE data->'transactionDetails'->'transaction'->>'transactionId' = $1
			AND id > $2
		ORDER BY id
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, transactionID, cursor, pageSize)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Error querying biz events by transaction id",
			zap.String("transaction_id", transactionID),
			zap.Error(err),
		)

		return nil, "", fmt.Errorf("error querying biz events: %w", err)
	}
	defer rows.Close()

	var events []domain.BizEvent
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			span.RecordError(err)
			return nil, "", fmt.Errorf("error scanning rows: %w", err)
		}

		var event domain.BizEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			span.RecordError(err)
			return nil, "", fmt.Errorf("error decoding biz event document: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("rows iteration error: %w", err)
	}

	nextCursor := ""
	if len(events) == pageSize {
		nextCursor = events[len(events)-1].ID
	}

	return events, nextCursor, nil
}

func (r *bizEventRepo) GetByOrgFiscalCodeAndIUV(ctx context.Context, orgFiscalCode, iuv string) (*domain.BizEvent, error) {
	ctx, span := r.tracer.Start(ctx, "BizEventRepository.GetByOrgFiscalCodeAndIUV")
	defer span.End()

	span.SetAttributes(
		attribute.String("org_fiscal_code", orgFiscalCode),
		attribute.String("iuv", iuv),
	)

	query := `
		SELECT data
		FROM biz_events
		WHERE data->'creditor'->>'idPA' = $1
			AND data->'paymentInfo'->>'IUV' = $2
	`

	return r.queryOne(ctx, span, query, orgFiscalCode, iuv)
}

func (r *bizEventRepo) queryOne(ctx context.Context, span trace.Span, query string, args ...interface{}) (*domain.BizEvent, error) {
	var raw []byte
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBizEventNotFound
		}

		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Error getting biz event",
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting biz event: %w", err)
	}

	var event domain.BizEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error decoding biz event document: %w", err)
	}

	return &event, nil
}
