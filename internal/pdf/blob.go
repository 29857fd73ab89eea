package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
)

// BlobError signals a failed upload to the document store.
type BlobError struct {
	StatusCode int
	Message    string
}

func (e *BlobError) Error() string {
	return fmt.Sprintf("blob storage returned %d: %s", e.StatusCode, e.Message)
}

type BlobStorage interface {
	Save(ctx context.Context, name string, pdf []byte) (*domain.ReceiptMetadata, error)
}

type blobClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	tracer  trace.Tracer
}

func NewBlobStorage(baseURL, apiKey string, timeout time.Duration) BlobStorage {
	return &blobClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("pdf/blob"),
	}
}

func (c *blobClient) Save(ctx context.Context, name string, pdf []byte) (*domain.ReceiptMetadata, error) {
	ctx, span := c.tracer.Start(ctx, "blob.Save")
	defer span.End()

	span.SetAttributes(attribute.String("blob.name", name))

	documentURL := fmt.Sprintf("%s/%s.pdf", c.baseURL, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, documentURL, bytes.NewReader(pdf))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("build blob request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("upload pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		blobErr := &BlobError{StatusCode: resp.StatusCode, Message: string(body)}
		span.RecordError(blobErr)
		return nil, blobErr
	}

	return &domain.ReceiptMetadata{Name: name, URL: documentURL}, nil
}
