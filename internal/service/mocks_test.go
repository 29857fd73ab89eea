package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/pdf"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/repository"
)

type fakeTokenizer struct {
	err   error
	calls []string
}

func (f *fakeTokenizer) Tokenize(_ context.Context, fiscalCode string) (string, error) {
	f.calls = append(f.calls, fiscalCode)
	if f.err != nil {
		return "", f.err
	}
	return "tok-" + fiscalCode, nil
}

type fakeProducer struct {
	err       error
	published []string
}

func (f *fakeProducer) Publish(_ context.Context, payload string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

// pageCursor encodes sequential page indexes the way the repositories
// hand out keyset cursors: empty input means the first page, an empty
// output means the scan is done.
func pageCursor(cursor string, pageCount int) (int, string) {
	index := 0
	if cursor != "" {
		index, _ = strconv.Atoi(strings.TrimPrefix(cursor, "page-"))
	}
	next := ""
	if index+1 < pageCount {
		next = fmt.Sprintf("page-%d", index+1)
	}
	return index, next
}

type fakeReceiptRepo struct {
	byEventID        map[string]*domain.Receipt
	saved            []domain.Receipt
	saveErr          error
	failedPages      [][]domain.Receipt
	notNotifiedPages [][]domain.Receipt
}

func (f *fakeReceiptRepo) GetByEventID(_ context.Context, eventID string) (*domain.Receipt, error) {
	if receipt, ok := f.byEventID[eventID]; ok {
		copied := *receipt
		return &copied, nil
	}
	return nil, repository.ErrReceiptNotFound
}

func (f *fakeReceiptRepo) Save(_ context.Context, receipt *domain.Receipt) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *receipt)
	return nil
}

func (f *fakeReceiptRepo) GetFailedByStatus(_ context.Context, _ domain.ReceiptStatus, cursor string, _ int) ([]domain.Receipt, string, error) {
	if len(f.failedPages) == 0 {
		return nil, "", nil
	}
	index, next := pageCursor(cursor, len(f.failedPages))
	return f.failedPages[index], next, nil
}

func (f *fakeReceiptRepo) GetNotNotifiedByStatus(_ context.Context, _ domain.ReceiptStatus, cursor string, _ int) ([]domain.Receipt, string, error) {
	if len(f.notNotifiedPages) == 0 {
		return nil, "", nil
	}
	index, next := pageCursor(cursor, len(f.notNotifiedPages))
	return f.notNotifiedPages[index], next, nil
}

type fakeBizEventRepo struct {
	byID     map[string]*domain.BizEvent
	byTxID   map[string][]domain.BizEvent
	byOrgIUV map[string]*domain.BizEvent
}

func (f *fakeBizEventRepo) GetByID(_ context.Context, eventID string) (*domain.BizEvent, error) {
	if event, ok := f.byID[eventID]; ok {
		return event, nil
	}
	return nil, repository.ErrBizEventNotFound
}

func (f *fakeBizEventRepo) GetByTransactionID(_ context.Context, transactionID, cursor string, _ int) ([]domain.BizEvent, string, error) {
	events := f.byTxID[transactionID]
	if cursor != "" {
		return nil, "", nil
	}
	return events, "", nil
}

func (f *fakeBizEventRepo) GetByOrgFiscalCodeAndIUV(_ context.Context, orgFiscalCode, iuv string) (*domain.BizEvent, error) {
	if event, ok := f.byOrgIUV[orgFiscalCode+"/"+iuv]; ok {
		return event, nil
	}
	return nil, repository.ErrBizEventNotFound
}

type fakeCartRepo struct {
	byID          map[string]*domain.CartForReceipt
	saved         []domain.CartForReceipt
	saveErr       error
	failedPages   [][]domain.CartForReceipt
	insertedPages [][]domain.CartForReceipt
}

func (f *fakeCartRepo) GetByID(_ context.Context, cartID string) (*domain.CartForReceipt, error) {
	if cart, ok := f.byID[cartID]; ok {
		copied := *cart
		return &copied, nil
	}
	return nil, repository.ErrCartNotFound
}

func (f *fakeCartRepo) Save(_ context.Context, cart *domain.CartForReceipt) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *cart)
	return nil
}

func (f *fakeCartRepo) GetFailedCarts(_ context.Context, cursor string, _ int) ([]domain.CartForReceipt, string, error) {
	if len(f.failedPages) == 0 {
		return nil, "", nil
	}
	index, next := pageCursor(cursor, len(f.failedPages))
	return f.failedPages[index], next, nil
}

func (f *fakeCartRepo) GetInsertedCarts(_ context.Context, cursor string, _ int) ([]domain.CartForReceipt, string, error) {
	if len(f.insertedPages) == 0 {
		return nil, "", nil
	}
	index, next := pageCursor(cursor, len(f.insertedPages))
	return f.insertedPages[index], next, nil
}

type fakeReceiptErrorRepo struct {
	byBizEventID  map[string]*domain.ReceiptError
	toReviewPages [][]domain.ReceiptError
	reviewed      []string
	markErr       error
}

func (f *fakeReceiptErrorRepo) GetByBizEventID(_ context.Context, bizEventID string) (*domain.ReceiptError, error) {
	if receiptError, ok := f.byBizEventID[bizEventID]; ok {
		copied := *receiptError
		return &copied, nil
	}
	return nil, repository.ErrReceiptErrorNotFound
}

func (f *fakeReceiptErrorRepo) MarkReviewed(_ context.Context, id string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.reviewed = append(f.reviewed, id)
	return nil
}

func (f *fakeReceiptErrorRepo) GetToReview(_ context.Context, cursor string, _ int) ([]domain.ReceiptError, string, error) {
	if len(f.toReviewPages) == 0 {
		return nil, "", nil
	}
	index, next := pageCursor(cursor, len(f.toReviewPages))
	return f.toReviewPages[index], next, nil
}

type fakeEngine struct {
	err      error
	requests []*pdf.Template
}

func (f *fakeEngine) GeneratePDF(_ context.Context, template *pdf.Template) ([]byte, error) {
	f.requests = append(f.requests, template)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7"), nil
}

type fakeBlobStorage struct {
	err   error
	saved []string
}

func (f *fakeBlobStorage) Save(_ context.Context, name string, _ []byte) (*domain.ReceiptMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.saved = append(f.saved, name)
	return &domain.ReceiptMetadata{Name: name, URL: "https://blob.local/" + name}, nil
}
