package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
)

type cachedQueryService struct {
	next        QueryService
	redisClient *redis.Client
	cacheTTL    time.Duration
}

// NewCachedQueryService decorates the helpdesk lookups with a
// short-lived redis cache. Recovery operations bypass it, so stale
// entries only survive for the TTL.
func NewCachedQueryService(next QueryService, redisClient *redis.Client, cacheTTL time.Duration) QueryService {
	return &cachedQueryService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

func (s *cachedQueryService) GetReceipt(ctx context.Context, eventID string) (*domain.Receipt, error) {
	key := fmt.Sprintf("receipt:%s", eventID)

	val, err := s.redisClient.Get(ctx, key).Result()
	if err == nil {
		var receipt domain.Receipt
		if err := json.Unmarshal([]byte(val), &receipt); err == nil {
			return &receipt, nil
		}
	}

	receipt, err := s.next.GetReceipt(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(receipt); err == nil {
		s.redisClient.Set(ctx, key, data, s.cacheTTL)
	}

	return receipt, nil
}

func (s *cachedQueryService) GetCart(ctx context.Context, cartID string) (*domain.CartForReceipt, error) {
	key := fmt.Sprintf("cart:%s", cartID)

	val, err := s.redisClient.Get(ctx, key).Result()
	if err == nil {
		var cart domain.CartForReceipt
		if err := json.Unmarshal([]byte(val), &cart); err == nil {
			return &cart, nil
		}
	}

	cart, err := s.next.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cart); err == nil {
		s.redisClient.Set(ctx, key, data, s.cacheTTL)
	}

	return cart, nil
}

func (s *cachedQueryService) GetReceiptByOrgFiscalCodeAndIUV(ctx context.Context, orgFiscalCode, iuv string) (*domain.Receipt, error) {
	return s.next.GetReceiptByOrgFiscalCodeAndIUV(ctx, orgFiscalCode, iuv)
}

func (s *cachedQueryService) GetReceiptError(ctx context.Context, bizEventID string) (*domain.ReceiptError, error) {
	return s.next.GetReceiptError(ctx, bizEventID)
}
