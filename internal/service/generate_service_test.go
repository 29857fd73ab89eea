package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/pdf"
)

func generationReceipt(debtorCF, payerCF string) *domain.Receipt {
	receipt := &domain.Receipt{
		ID:      "r1",
		EventID: "biz-1",
		EventData: &domain.EventData{
			DebtorFiscalCode: debtorCF,
			PayerFiscalCode:  payerCF,
			Amount:           "100,00",
			Cart:             []domain.CartItem{{Subject: "TARI 2024"}},
		},
	}
	EnsureAttachments(receipt)
	return receipt
}

func generationEvents() []domain.BizEvent {
	event := authenticatedEvent()
	event.PaymentInfo.NoticeNumber = "302001234567890123"
	return []domain.BizEvent{*event}
}

func TestGenerateReceipts_SamePayerAndDebtor(t *testing.T) {
	engine := &fakeEngine{}
	blob := &fakeBlobStorage{}
	svc := NewGenerateService(engine, blob, zap.NewNop())

	receipt := generationReceipt("tok-same", "tok-same")
	generation := svc.GenerateReceipts(context.Background(), receipt, generationEvents())

	assert.True(t, generation.GenerateOnlyDebtor)
	require.NotNil(t, generation.DebtorMetadata)
	assert.Nil(t, generation.PayerMetadata)
	assert.Equal(t, http.StatusOK, generation.DebtorMetadata.StatusCode)

	// one complete document only
	require.Len(t, engine.requests, 1)
	assert.False(t, engine.requests[0].Transaction.RequestedByDebtor)
	assert.NotNil(t, engine.requests[0].User)
}

func TestGenerateReceipts_DistinctPayerAndDebtor(t *testing.T) {
	engine := &fakeEngine{}
	blob := &fakeBlobStorage{}
	svc := NewGenerateService(engine, blob, zap.NewNop())

	receipt := generationReceipt("tok-debtor", "tok-payer")
	generation := svc.GenerateReceipts(context.Background(), receipt, generationEvents())

	assert.False(t, generation.GenerateOnlyDebtor)
	require.NotNil(t, generation.PayerMetadata)
	require.NotNil(t, generation.DebtorMetadata)

	// complete payer document plus partial debtor document
	require.Len(t, engine.requests, 2)
	assert.False(t, engine.requests[0].Transaction.RequestedByDebtor)
	assert.True(t, engine.requests[1].Transaction.RequestedByDebtor)
	assert.Nil(t, engine.requests[1].User)
}

func TestGenerateReceipts_AnonymousDebtor(t *testing.T) {
	engine := &fakeEngine{}
	blob := &fakeBlobStorage{}
	svc := NewGenerateService(engine, blob, zap.NewNop())

	receipt := generationReceipt(AnonymousFiscalCode, "tok-payer")
	generation := svc.GenerateReceipts(context.Background(), receipt, generationEvents())

	require.NotNil(t, generation.PayerMetadata)
	assert.Nil(t, generation.DebtorMetadata)
	require.Len(t, engine.requests, 1)
}

func TestGenerateReceipts_NoPayer(t *testing.T) {
	engine := &fakeEngine{}
	blob := &fakeBlobStorage{}
	svc := NewGenerateService(engine, blob, zap.NewNop())

	receipt := generationReceipt("tok-debtor", "")
	generation := svc.GenerateReceipts(context.Background(), receipt, generationEvents())

	assert.True(t, generation.GenerateOnlyDebtor)
	require.NotNil(t, generation.DebtorMetadata)
	assert.Nil(t, generation.PayerMetadata)
	require.Len(t, engine.requests, 1)
	assert.True(t, engine.requests[0].Transaction.RequestedByDebtor)
}

func TestGenerateReceipts_EngineFailure(t *testing.T) {
	engine := &fakeEngine{err: &pdf.EngineError{StatusCode: http.StatusBadGateway, Message: "engine down"}}
	svc := NewGenerateService(engine, &fakeBlobStorage{}, zap.NewNop())

	receipt := generationReceipt("tok-debtor", "")
	generation := svc.GenerateReceipts(context.Background(), receipt, generationEvents())

	require.NotNil(t, generation.DebtorMetadata)
	assert.Equal(t, http.StatusBadGateway, generation.DebtorMetadata.StatusCode)
	assert.NotEmpty(t, generation.DebtorMetadata.ErrorMessage)
}

func TestGenerateReceipts_BlobFailure(t *testing.T) {
	blob := &fakeBlobStorage{err: &pdf.BlobError{StatusCode: http.StatusForbidden, Message: "denied"}}
	svc := NewGenerateService(&fakeEngine{}, blob, zap.NewNop())

	receipt := generationReceipt("tok-debtor", "")
	generation := svc.GenerateReceipts(context.Background(), receipt, generationEvents())

	require.NotNil(t, generation.DebtorMetadata)
	assert.Equal(t, domain.ReasonErrorBlobStorage, generation.DebtorMetadata.StatusCode)
}

func TestVerifyAndUpdateReceipt_Success(t *testing.T) {
	svc := NewGenerateService(&fakeEngine{}, &fakeBlobStorage{}, zap.NewNop())

	receipt := generationReceipt("tok-debtor", "tok-payer")
	generation := svc.GenerateReceipts(context.Background(), receipt, generationEvents())

	success, err := svc.VerifyAndUpdateReceipt(context.Background(), receipt, generation)

	require.NoError(t, err)
	assert.True(t, success)
	assert.True(t, receipt.MdAttach.IsSet())
	assert.True(t, receipt.MdAttachPayer.IsSet())
}

func TestVerifyAndUpdateReceipt_DoesNotOverwriteMetadata(t *testing.T) {
	svc := NewGenerateService(&fakeEngine{}, &fakeBlobStorage{}, zap.NewNop())

	receipt := generationReceipt("tok-debtor", "")
	receipt.MdAttach = &domain.ReceiptMetadata{Name: "existing", URL: "https://blob.local/existing"}

	generation := &PdfGeneration{
		GenerateOnlyDebtor: true,
		DebtorMetadata: &PdfMetadata{
			StatusCode:   http.StatusOK,
			DocumentName: "fresh",
			DocumentURL:  "https://blob.local/fresh",
		},
	}

	success, err := svc.VerifyAndUpdateReceipt(context.Background(), receipt, generation)

	require.NoError(t, err)
	assert.True(t, success)
	assert.Equal(t, "existing", receipt.MdAttach.Name)
}

func TestVerifyAndUpdateReceipt_DebtorFailureNotRetryable(t *testing.T) {
	svc := NewGenerateService(&fakeEngine{}, &fakeBlobStorage{}, zap.NewNop())

	receipt := generationReceipt("tok-debtor", "")
	generation := &PdfGeneration{
		GenerateOnlyDebtor: true,
		DebtorMetadata:     &PdfMetadata{StatusCode: http.StatusBadGateway, ErrorMessage: "engine down"},
	}

	success, err := svc.VerifyAndUpdateReceipt(context.Background(), receipt, generation)

	assert.False(t, success)
	require.ErrorIs(t, err, ErrGenerationNotRetryable)
	assert.False(t, receipt.MdAttach.IsSet())
}

func TestVerifyAndUpdateReceipt_AnonymousDebtorWithPayer(t *testing.T) {
	blob := &fakeBlobStorage{}
	svc := NewGenerateService(&fakeEngine{}, blob, zap.NewNop())

	receipt := generationReceipt(AnonymousFiscalCode, "tok-payer")
	generation := svc.GenerateReceipts(context.Background(), receipt, generationEvents())

	success, err := svc.VerifyAndUpdateReceipt(context.Background(), receipt, generation)

	require.NoError(t, err)
	assert.True(t, success)
	assert.True(t, receipt.MdAttachPayer.IsSet())
	assert.False(t, receipt.MdAttach.IsSet())
	assert.Len(t, blob.saved, 1)
}

func TestVerifyAndUpdateReceipt_AnonymousDebtorNoPayerNotRetryable(t *testing.T) {
	blob := &fakeBlobStorage{}
	svc := NewGenerateService(&fakeEngine{}, blob, zap.NewNop())

	receipt := generationReceipt(AnonymousFiscalCode, "")
	generation := svc.GenerateReceipts(context.Background(), receipt, generationEvents())
	assert.Empty(t, blob.saved)

	success, err := svc.VerifyAndUpdateReceipt(context.Background(), receipt, generation)

	assert.False(t, success)
	assert.ErrorIs(t, err, ErrGenerationNotRetryable)
}

func TestVerifyAndUpdateReceipt_MissingResult(t *testing.T) {
	svc := NewGenerateService(&fakeEngine{}, &fakeBlobStorage{}, zap.NewNop())

	receipt := generationReceipt("tok-debtor", "")
	success, err := svc.VerifyAndUpdateReceipt(context.Background(), receipt, &PdfGeneration{GenerateOnlyDebtor: true})

	require.NoError(t, err)
	assert.False(t, success)
}

func TestEnsureAttachments(t *testing.T) {
	receipt := generationReceipt("tok-debtor", "tok-payer")
	require.NotNil(t, receipt.MdAttach)
	require.NotNil(t, receipt.MdAttachPayer)
	assert.Contains(t, receipt.MdAttach.Name, "-d")
	assert.Contains(t, receipt.MdAttachPayer.Name, "-p")

	receipt = generationReceipt("tok-same", "tok-same")
	require.NotNil(t, receipt.MdAttach)
	assert.Nil(t, receipt.MdAttachPayer)
	assert.Contains(t, receipt.MdAttach.Name, "-p")

	receipt = generationReceipt(AnonymousFiscalCode, "")
	assert.Nil(t, receipt.MdAttach)
	assert.Nil(t, receipt.MdAttachPayer)
}

func TestHasAllAttachments(t *testing.T) {
	receipt := generationReceipt("tok-debtor", "tok-payer")
	assert.False(t, HasAllAttachments(receipt))

	receipt.MdAttach.URL = "https://blob.local/d"
	assert.False(t, HasAllAttachments(receipt))

	receipt.MdAttachPayer.URL = "https://blob.local/p"
	assert.True(t, HasAllAttachments(receipt))

	same := generationReceipt("tok-same", "tok-same")
	same.MdAttach.URL = "https://blob.local/s"
	assert.True(t, HasAllAttachments(same))
}
