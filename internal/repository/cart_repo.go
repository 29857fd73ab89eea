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

type CartRepository interface {
	GetByID(ctx context.Context, cartID string) (*domain.CartForReceipt, error)
	Save(ctx context.Context, cart *domain.CartForReceipt) error
	GetFailedCarts(ctx context.Context, cursor string, pageSize int) ([]domain.CartForReceipt, string, error)
	GetInsertedCarts(ctx context.Context, cursor string, pageSize int) ([]domain.CartForReceipt, string, error)
}

type cartRepo struct {
	pool    *pgxpool.Pool
	windows StalenessWindows
	tracer  trace.Tracer
	logger  *zap.Logger
}

func NewCartRepository(pool *pgxpool.Pool, windows StalenessWindows, logger *zap.Logger) CartRepository {
	return &cartRepo{
		pool:    pool,
		windows: windows,
		logger:  logger,
		tracer:  otel.Tracer("repository/cart_repo"),
	}
}

func (r *cartRepo) GetByID(ctx context.Context, cartID string) (*domain.CartForReceipt, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.String("cart_id", cartID))

	query := `
		SELECT data
		FROM carts
		WHERE id = $1
	`

	var raw []byte
	if err := r.pool.QueryRow(ctx, query, cartID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}

		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Error getting cart by id",
			zap.String("cart_id", cartID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting cart: %w", err)
	}

	var cart domain.CartForReceipt
	if err := json.Unmarshal(raw, &cart); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error decoding cart document: %w", err)
	}

	return &cart, nil
}

func (r *cartRepo) Save(ctx context.Context, cart *domain.CartForReceipt) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", cart.ID),
		attribute.String("status", string(cart.Status)),
	)

	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("error encoding cart document: %w", err)
	}

	query := `
		INSERT INTO carts (id, status, inserted_at, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
			inserted_at = EXCLUDED.inserted_at,
			data = EXCLUDED.data
	`

	_, err = r.pool.Exec(ctx, query, cart.ID, string(cart.Status), cart.InsertedAt, raw)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Error saving cart",
			zap.String("id", cart.ID),
			zap.Error(err),
		)

		return fmt.Errorf("error saving cart: %w", err)
	}

	return nil
}

func (r *cartRepo) GetFailedCarts(ctx context.Context, cursor string, pageSize int) ([]domain.CartForReceipt, string, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetFailedCarts")
	defer span.End()

	span.SetAttributes(attribute.String("cursor", cursor))

	oldestAllowed := time.Now().AddDate(0, 0, -r.windows.MaxDaysCart).UnixMilli()

	query := `
		SELECT data
		FROM carts
		WHERE status = $1
			AND id > $2
			AND inserted_at >= $3
		ORDER BY id
		LIMIT $4
	`

	return r.queryPage(ctx, span, query,
		[]interface{}{string(domain.CartStatusFailed), cursor, oldestAllowed, pageSize}, pageSize)
}

// GetInsertedCarts returns inserted carts old enough to not race an
// in-flight first attempt.
func (r *cartRepo) GetInsertedCarts(ctx context.Context, cursor string, pageSize int) ([]domain.CartForReceipt, string, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetInsertedCarts")
	defer span.End()

	span.SetAttributes(attribute.String("cursor", cursor))

	now := time.Now().UnixMilli()
	oldestAllowed := time.Now().AddDate(0, 0, -r.windows.MaxDaysCart).UnixMilli()

	query := `
		SELECT data
		FROM carts
		WHERE status = $1
			AND id > $2
			AND ($3 - inserted_at) >= $4
			AND inserted_at >= $5
		ORDER BY id
		LIMIT $6
	`

	return r.queryPage(ctx, span, query,
		[]interface{}{string(domain.CartStatusInserted), cursor, now,
			r.windows.MaxDateDiffCart.Milliseconds(), oldestAllowed, pageSize}, pageSize)
}

func (r *cartRepo) queryPage(ctx context.Context, span trace.Span, query string, args []interface{}, pageSize int) ([]domain.CartForReceipt, string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(
			ctx,
			r.logger,
			"Error querying carts page",
			zap.Error(err),
		)

		return nil, "", fmt.Errorf("error querying carts: %w", err)
	}
	defer rows.Close()

	var carts []domain.CartForReceipt
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			span.RecordError(err)
			return nil, "", fmt.Errorf("error scanning rows: %w", err)
		}

		var cart domain.CartForReceipt
		if err := json.Unmarshal(raw, &cart); err != nil {
			span.RecordError(err)
			return nil, "", fmt.Errorf("error decoding cart document: %w", err)
		}
		carts = append(carts, cart)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("rows iteration error: %w", err)
	}

	nextCursor := ""
	if len(carts) == pageSize {
		nextCursor = carts[len(carts)-1].ID
	}

	return carts, nextCursor, nil
}
