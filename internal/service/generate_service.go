package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/pdf"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
)

const (
	blobNamePrefix       = "pagopa-ricevuta"
	blobNameDateFormat   = "060102"
	payerBlobNameSuffix  = "p"
	debtorBlobNameSuffix = "d"
)

// PdfMetadata is the outcome of a single document generation attempt.
type PdfMetadata struct {
	StatusCode   int
	DocumentName string
	DocumentURL  string
	ErrorMessage string
}

func (m *PdfMetadata) succeeded() bool {
	return m != nil && m.StatusCode == http.StatusOK
}

// PdfGeneration collects the outcomes for both document variants. When
// GenerateOnlyDebtor is set no payer document was attempted.
type PdfGeneration struct {
	GenerateOnlyDebtor bool
	DebtorMetadata     *PdfMetadata
	PayerMetadata      *PdfMetadata
}

// GenerateService renders receipt documents and reconciles the
// outcomes onto the receipt.
//
// The decision algorithm produces at most two documents. When payer and
// debtor are the same person a single complete document is generated.
// When they differ the payer gets the complete document and the debtor
// a partial one without the payer identity. Anonymous debtors get no
// document at all.
type GenerateService interface {
	GenerateReceipts(ctx context.Context, receipt *domain.Receipt, events []domain.BizEvent) *PdfGeneration
	VerifyAndUpdateReceipt(ctx context.Context, receipt *domain.Receipt, generation *PdfGeneration) (bool, error)
}

type generateService struct {
	engine pdf.Engine
	blob   pdf.BlobStorage
	logger *zap.Logger
	tracer trace.Tracer
}

func NewGenerateService(engine pdf.Engine, blob pdf.BlobStorage, logger *zap.Logger) GenerateService {
	return &generateService{
		engine: engine,
		blob:   blob,
		logger: logger,
		tracer: otel.Tracer("service/generate_service"),
	}
}

func (s *generateService) GenerateReceipts(ctx context.Context, receipt *domain.Receipt, events []domain.BizEvent) *PdfGeneration {
	ctx, span := s.tracer.Start(ctx, "GenerateService.GenerateReceipts")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", receipt.EventID))

	debtorCF := receipt.EventData.DebtorFiscalCode
	payerCF := receipt.EventData.PayerFiscalCode

	generation := &PdfGeneration{}

	if payerCF != "" {
		if payerCF == debtorCF {
			generation.GenerateOnlyDebtor = true
			generation.DebtorMetadata = s.generateAndSave(ctx, events, receipt, receipt.MdAttach.Name, false)
			return generation
		}
		generation.PayerMetadata = s.generateAndSave(ctx, events, receipt, receipt.MdAttachPayer.Name, false)
	} else {
		generation.GenerateOnlyDebtor = true
	}

	if debtorCF != AnonymousFiscalCode {
		generation.DebtorMetadata = s.generateAndSave(ctx, events, receipt, receipt.MdAttach.Name, true)
	}

	return generation
}

// VerifyAndUpdateReceipt records successful document metadata on the
// receipt, without overwriting metadata that is already set, and
// reports whether generation fully succeeded. Definitive failures come
// back wrapped in ErrGenerationNotRetryable.
func (s *generateService) VerifyAndUpdateReceipt(ctx context.Context, receipt *domain.Receipt, generation *PdfGeneration) (bool, error) {
	debtorRequired := receipt.EventData != nil && receipt.EventData.DebtorFiscalCode != AnonymousFiscalCode
	debtorMetadata := generation.DebtorMetadata

	if !debtorRequired && generation.GenerateOnlyDebtor {
		// anonymous debtor with no payer leaves nothing to generate,
		// retrying the same inputs cannot succeed
		return false, fmt.Errorf("%w: debtor is anonymous and no payer document is required for receipt %s",
			ErrGenerationNotRetryable, receipt.ID)
	}

	if debtorRequired {
		if debtorMetadata == nil {
			mylogger.Error(ctx, s.logger, "Unexpected missing result for debtor pdf generation",
				zap.String("receipt_id", receipt.ID))
			return false, nil
		}

		if debtorMetadata.succeeded() && !receipt.MdAttach.IsSet() {
			receipt.MdAttach = &domain.ReceiptMetadata{
				Name: debtorMetadata.DocumentName,
				URL:  debtorMetadata.DocumentURL,
			}
		}

		if generation.GenerateOnlyDebtor {
			if !debtorMetadata.succeeded() {
				return false, fmt.Errorf("%w: debtor receipt generation failed with status %d",
					ErrGenerationNotRetryable, debtorMetadata.StatusCode)
			}
			return true, nil
		}
	}

	payerMetadata := generation.PayerMetadata
	if payerMetadata == nil {
		mylogger.Error(ctx, s.logger, "Unexpected missing result for payer pdf generation",
			zap.String("receipt_id", receipt.ID))
		return false, nil
	}

	if payerMetadata.succeeded() && !receipt.MdAttachPayer.IsSet() {
		receipt.MdAttachPayer = &domain.ReceiptMetadata{
			Name: payerMetadata.DocumentName,
			URL:  payerMetadata.DocumentURL,
		}
	}

	if debtorRequired && !debtorMetadata.succeeded() {
		return false, fmt.Errorf("%w: debtor receipt generation failed with status %d",
			ErrGenerationNotRetryable, debtorMetadata.StatusCode)
	}
	if !payerMetadata.succeeded() {
		return false, fmt.Errorf("%w: payer receipt generation failed with status %d",
			ErrGenerationNotRetryable, payerMetadata.StatusCode)
	}
	return true, nil
}

func (s *generateService) generateAndSave(ctx context.Context, events []domain.BizEvent, receipt *domain.Receipt, blobName string, generatingDebtor bool) *PdfMetadata {
	template, err := pdf.BuildTemplate(events, generatingDebtor, receipt)
	if err != nil {
		return s.failureMetadata(ctx, receipt, err)
	}

	document, err := s.engine.GeneratePDF(ctx, template)
	if err != nil {
		return s.failureMetadata(ctx, receipt, err)
	}

	metadata, err := s.blob.Save(ctx, blobName, document)
	if err != nil {
		return s.failureMetadata(ctx, receipt, err)
	}

	return &PdfMetadata{
		StatusCode:   http.StatusOK,
		DocumentName: metadata.Name,
		DocumentURL:  metadata.URL,
	}
}

func (s *generateService) failureMetadata(ctx context.Context, receipt *domain.Receipt, err error) *PdfMetadata {
	mylogger.Error(ctx, s.logger, "Error generating or saving pdf receipt",
		zap.String("event_id", receipt.EventID), zap.Error(err))

	return &PdfMetadata{
		StatusCode:   generationErrorCode(err),
		ErrorMessage: err.Error(),
	}
}

func generationErrorCode(err error) int {
	var templateErr *pdf.TemplateError
	if errors.As(err, &templateErr) {
		return domain.ReasonErrorTemplate
	}

	var engineErr *pdf.EngineError
	if errors.As(err, &engineErr) {
		return engineErr.StatusCode
	}

	var blobErr *pdf.BlobError
	if errors.As(err, &blobErr) {
		return domain.ReasonErrorBlobStorage
	}

	return domain.ReasonErrorPDFEngine
}

// EnsureAttachments allocates blob names for the documents the receipt
// is entitled to, leaving already populated metadata untouched.
func EnsureAttachments(receipt *domain.Receipt) {
	debtorCF := receipt.EventData.DebtorFiscalCode
	payerCF := receipt.EventData.PayerFiscalCode
	date := time.Now().Format(blobNameDateFormat)

	if payerCF == "" {
		if debtorCF != AnonymousFiscalCode && !receipt.MdAttach.IsSet() {
			receipt.MdAttach = &domain.ReceiptMetadata{
				Name: blobName(date, receipt.EventID, debtorBlobNameSuffix),
			}
		}
		return
	}

	if payerCF == debtorCF {
		if !receipt.MdAttach.IsSet() {
			receipt.MdAttach = &domain.ReceiptMetadata{
				Name: blobName(date, receipt.EventID, payerBlobNameSuffix),
			}
		}
		return
	}

	if !receipt.MdAttachPayer.IsSet() {
		receipt.MdAttachPayer = &domain.ReceiptMetadata{
			Name: blobName(date, receipt.EventID, payerBlobNameSuffix),
		}
	}
	if debtorCF != AnonymousFiscalCode && !receipt.MdAttach.IsSet() {
		receipt.MdAttach = &domain.ReceiptMetadata{
			Name: blobName(date, receipt.EventID, debtorBlobNameSuffix),
		}
	}
}

// HasAllAttachments reports whether every document the receipt is
// entitled to has already been rendered and stored.
func HasAllAttachments(receipt *domain.Receipt) bool {
	debtorCF := receipt.EventData.DebtorFiscalCode
	payerCF := receipt.EventData.PayerFiscalCode

	if payerCF == "" || payerCF == debtorCF {
		return receipt.MdAttach.IsSet()
	}
	return receipt.MdAttach.IsSet() && receipt.MdAttachPayer.IsSet()
}

func blobName(date, eventID, suffix string) string {
	return fmt.Sprintf("%s-%s-%s-%s", blobNamePrefix, date, eventID, suffix)
}
