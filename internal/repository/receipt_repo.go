package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// StalenessWindows tunes the age filters applied by the batch-recovery
// queries. The filters live in SQL so a scan never loads records that
// are still considered in-flight.
type StalenessWindows struct {
	MaxDateDiff     time.Duration
	MaxDateDiffCart time.Duration
	MaxDays         int
	MaxDaysCart     int
}

type ReceiptRepository interface {
	GetByEventID(ctx context.Context, eventID string) (*domain.Receipt, error)
	Save(ctx context.Context, receipt *domain.Receipt) error
	GetFailedByStatus(ctx context.Context, status domain.ReceiptStatus, cursor string, pageSize int) ([]domain.Receipt, string, error)
	GetNotNotifiedByStatus(ctx context.Context, status domain.ReceiptStatus, cursor string, pageSize int) ([]domain.Receipt, string, error)
}

type receiptRepo struct {
	pool    *pgxpool.Pool
	windows StalenessWindows
	tracer  trace.Tracer
	logger  *zap.Logger
}

func NewReceiptRepository(pool *pgxpool.Pool, windows StalenessWindows, logger *zap.Logger) ReceiptRepository {
	return &receiptRepo{
		pool:    pool,
		windows: windows,
		logger:  logger,
		tracer:  otel.Tracer("repository/receipt_repo"),
	}
}

func (r *receiptRepo) GetByEventID(ctx context.Context, eventID string) (*domain.Receipt, error) {
	ctx, span := r.tracer.Start(ctx, "ReceiptRepository.GetByEventID")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		SELECT data
		FROM receipts
		WHERE event_id = $1
	`

	var raw []byte
	if err := r.pool.QueryRow(ctx, query, eventID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReceiptNotFound
		}

		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Error getting receipt by event id",
			zap.String("event_id", eventID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting receipt: %w", err)
	}

	var receipt domain.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error decoding receipt document: %w", err)
	}

	return &receipt, nil
}

func (r *receiptRepo) Save(ctx context.Context, receipt *domain.Receipt) error {
	ctx, span := r.tracer.Start(ctx, "ReceiptRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", receipt.ID),
		attribute.String("status", string(receipt.Status)),
	)

	raw, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("error encoding receipt document: %w", err)
	}

	query := `
		INSERT INTO receipts (id, event_id, status, inserted_at, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET event_id = EXCLUDED.event_id,
			status = EXCLUDED.status,
			inserted_at = EXCLUDED.inserted_at,
			data = EXCLUDED.data
	`

	_, err = r.pool.Exec(ctx, query, receipt.ID, receipt.EventID, string(receipt.Status), receipt.InsertedAt, raw)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Error saving receipt",
			zap.String("id", receipt.ID),
			zap.Error(err),
		)

		return fmt.Errorf("error saving receipt: %w", err)
	}

	return nil
}

// GetFailedByStatus pages through receipts eligible for failed-receipt
// recovery. INSERTED receipts are filtered by the in-flight age window,
// FAILED and NOT_QUEUE_SENT ones by the day threshold.
func (r *receiptRepo) GetFailedByStatus(ctx context.Context, status domain.ReceiptStatus, cursor string, pageSize int) ([]domain.Receipt, string, error) {
	ctx, span := r.tracer.Start(ctx, "ReceiptRepository.GetFailedByStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("status", string(status)),
		attribute.String("cursor", cursor),
	)

	now := time.Now().UnixMilli()
	oldestAllowed := time.Now().AddDate(0, 0, -r.windows.MaxDays).UnixMilli()

	var query string
	var args []interface{}

	switch status {
	case domain.ReceiptStatusInserted:
		query = `
			SELECT data
			FROM receipts
			WHERE status = $1
				AND id > $2
				AND ($3 - inserted_at) >= $4
				AND inserted_at >= $5
			ORDER BY id
			LIMIT $6
		`
		args = []interface{}{string(status), cursor, now, r.windows.MaxDateDiff.Milliseconds(), oldestAllowed, pageSize}
	case domain.ReceiptStatusFailed, domain.ReceiptStatusNotQueueSent:
		query = `
			SELECT data
			FROM receipts
			WHERE status = $1
				AND id > $2
				AND inserted_at >= $3
			ORDER BY id
			LIMIT $4
		`
		args = []interface{}{string(status), cursor, oldestAllowed, pageSize}
	default:
		return nil, "", fmt.Errorf("unexpected status for retrieving failed receipts: %s", status)
	}

	return r.queryPage(ctx, span, query, args, pageSize)
}

// GetNotNotifiedByStatus pages through receipts eligible for
// notification recovery (GENERATED or IO_ERROR_TO_NOTIFY).
func (r *receiptRepo) GetNotNotifiedByStatus(ctx context.Context, status domain.ReceiptStatus, cursor string, pageSize int) ([]domain.Receipt, string, error) {
	ctx, span := r.tracer.Start(ctx, "ReceiptRepository.GetNotNotifiedByStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("status", string(status)),
		attribute.String("cursor", cursor),
	)

	if status != domain.ReceiptStatusGenerated && status != domain.ReceiptStatusIOErrorToNotify {
		return nil, "", fmt.Errorf("unexpected status for retrieving not notified receipts: %s", status)
	}

	query := `
		SELECT data
		FROM receipts
		WHERE status = $1
			AND id > $2
		ORDER BY id
		LIMIT $3
	`
	args := []interface{}{string(status), cursor, pageSize}

	return r.queryPage(ctx, span, query, args, pageSize)
}

func (r *receiptRepo) queryPage(ctx context.Context, span trace.Span, query string, args []interface{}, pageSize int) ([]domain.Receipt, string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Error querying receipts page",
			zap.Error(err),
		)

		return nil, "", fmt.Errorf("error querying receipts: %w", err)
	}
	defer rows.Close()

	var receipts []domain.Receipt
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			span.RecordError(err)
			return nil, "", fmt.Errorf("error scanning rows: %w", err)
		}

		var receipt domain.Receipt
		if err := json.Unmarshal(raw, &receipt); err != nil {
			span.RecordError(err)
			return nil, "", fmt.Errorf("error decoding receipt document: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("rows iteration error: %w", err)
	}

	// A short page means the scan is exhausted; otherwise the last id
	// becomes the continuation cursor.
	nextCursor := ""
	if len(receipts) == pageSize {
		nextCursor = receipts[len(receipts)-1].ID
	}

	return receipts, nextCursor, nil
}
