package tokenizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Error is the typed failure surfaced by the gateway. The status code
// travels with it so callers can record it as the receipt reason code.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tokenizer error (status %d): %s", e.StatusCode, e.Message)
}

// Tokenizer converts a fiscal identifier into an opaque PII token.
type Tokenizer interface {
	Tokenize(ctx context.Context, fiscalCode string) (string, error)
}

type Config struct {
	BaseURL     string
	APIKey      string
	MaxRetry    uint64
	InitialWait time.Duration
	Timeout     time.Duration
}

type client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	tracer     trace.Tracer
}

func NewClient(cfg Config, logger *zap.Logger) Tokenizer {
	return &client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		tracer:     otel.Tracer("tokenizer/client"),
	}
}

type piiResource struct {
	PII string `json:"pii"`
}

type tokenResource struct {
	Token string `json:"token"`
}

// Tokenize calls the tokenization service with a bounded exponential
// backoff. Client errors (4xx other than 429) are not retried since the
// same input will fail the same way.
func (c *client) Tokenize(ctx context.Context, fiscalCode string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "Tokenizer.Tokenize")
	defer span.End()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(c.cfg.InitialWait),
		), c.cfg.MaxRetry),
		ctx,
	)

	var token string
	operation := func() error {
		result, err := c.tokenizeOnce(ctx, fiscalCode)
		if err != nil {
			var tokErr *Error
			if errors.As(err, &tokErr) && !isRetryable(tokErr.StatusCode) {
				return backoff.Permanent(err)
			}

			mylogger.Warn(
				ctx,
				c.logger,
				"Tokenizer call failed, retrying",
				zap.Error(err),
			)

			return err
		}

		token = result
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		span.RecordError(err)
		return "", err
	}

	return token, nil
}

func (c *client) tokenizeOnce(ctx context.Context, fiscalCode string) (string, error) {
	body, err := json.Marshal(piiResource{PII: fiscalCode})
	if err != nil {
		return "", &Error{StatusCode: http.StatusInternalServerError, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.cfg.BaseURL+"/tokens", bytes.NewReader(body))
	if err != nil {
		return "", &Error{StatusCode: http.StatusInternalServerError, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{StatusCode: http.StatusServiceUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{StatusCode: http.StatusServiceUnavailable, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Error{StatusCode: resp.StatusCode, Message: string(raw)}
	}

	var tr tokenResource
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", &Error{StatusCode: http.StatusInternalServerError, Message: err.Error()}
	}

	return tr.Token, nil
}

func isRetryable(statusCode int) bool {
	return statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests
}
