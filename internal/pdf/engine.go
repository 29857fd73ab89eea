package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/utils"
)

// EngineError carries the upstream status so callers can decide whether
// the generation attempt is worth retrying.
type EngineError struct {
	StatusCode int
	Message    string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("pdf engine returned %d: %s", e.StatusCode, e.Message)
}

type Engine interface {
	GeneratePDF(ctx context.Context, template *Template) ([]byte, error)
}

type engineClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewEngine(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) Engine {
	return &engineClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "pdf-engine",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		logger: logger,
		tracer: otel.Tracer("pdf/engine"),
	}
}

func (c *engineClient) GeneratePDF(ctx context.Context, template *Template) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "engine.GeneratePDF")
	defer span.End()

	span.SetAttributes(attribute.String("receipt.event_id", template.ServiceCustomerID))

	pdf, err := utils.ExecuteWithBreaker(c.breaker, func() ([]byte, error) {
		return c.generate(ctx, template)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return pdf, nil
}

func (c *engineClient) generate(ctx context.Context, template *Template) ([]byte, error) {
	body, err := json.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("marshal template: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-pdf", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call pdf engine: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read engine response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		mylogger.Warn(ctx, c.logger, "pdf engine request failed",
			zap.Int("status", resp.StatusCode))
		return nil, &EngineError{StatusCode: resp.StatusCode, Message: string(payload)}
	}
	return payload, nil
}
