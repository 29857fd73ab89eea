package handler

import (
	"context"

	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/service"
)

type fakeQueryService struct {
	receipt      *domain.Receipt
	cart         *domain.CartForReceipt
	receiptError *domain.ReceiptError
	err          error
}

func (f *fakeQueryService) GetReceipt(_ context.Context, _ string) (*domain.Receipt, error) {
	return f.receipt, f.err
}

func (f *fakeQueryService) GetCart(_ context.Context, _ string) (*domain.CartForReceipt, error) {
	return f.cart, f.err
}

func (f *fakeQueryService) GetReceiptByOrgFiscalCodeAndIUV(_ context.Context, _, _ string) (*domain.Receipt, error) {
	return f.receipt, f.err
}

func (f *fakeQueryService) GetReceiptError(_ context.Context, _ string) (*domain.ReceiptError, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.receiptError
	return &copied, nil
}

type fakeReviewService struct {
	receiptError *domain.ReceiptError
	reviewed     int
	err          error
	sweepCalled  bool
}

func (f *fakeReviewService) ReviewError(_ context.Context, _ string) (*domain.ReceiptError, error) {
	return f.receiptError, f.err
}

func (f *fakeReviewService) ReviewAll(_ context.Context) (int, error) {
	f.sweepCalled = true
	return f.reviewed, f.err
}

type fakeRecoveryService struct {
	receipt    *domain.Receipt
	cart       *domain.CartForReceipt
	result     *service.MassiveRecoverResult
	cartResult *service.MassiveCartRecoverResult
	err        error

	massiveStatuses []domain.ReceiptStatus
	restoreStatuses []domain.ReceiptStatus
	cartStatuses    []domain.CartStatus
}

func (f *fakeRecoveryService) RecoverReceipt(_ context.Context, _ string) (*domain.Receipt, error) {
	return f.receipt, f.err
}

func (f *fakeRecoveryService) MassiveRecover(_ context.Context, status domain.ReceiptStatus) (*service.MassiveRecoverResult, error) {
	f.massiveStatuses = append(f.massiveStatuses, status)
	return f.result, f.err
}

func (f *fakeRecoveryService) RecoverCart(_ context.Context, _ string) (*domain.CartForReceipt, error) {
	return f.cart, f.err
}

func (f *fakeRecoveryService) MassiveRecoverCarts(_ context.Context, status domain.CartStatus) (*service.MassiveCartRecoverResult, error) {
	f.cartStatuses = append(f.cartStatuses, status)
	return f.cartResult, f.err
}

func (f *fakeRecoveryService) RestoreNotNotified(_ context.Context, _ string, statuses []domain.ReceiptStatus) (*domain.Receipt, error) {
	f.restoreStatuses = statuses
	return f.receipt, f.err
}

func (f *fakeRecoveryService) MassiveRestoreNotNotified(_ context.Context, status domain.ReceiptStatus) (*service.MassiveRecoverResult, error) {
	f.massiveStatuses = append(f.massiveStatuses, status)
	return f.result, f.err
}

type fakeRegenerateService struct {
	receipt *domain.Receipt
	err     error

	gotEventID string
	gotIsCart  bool
}

func (f *fakeRegenerateService) Regenerate(_ context.Context, eventID string, isCart bool) (*domain.Receipt, error) {
	f.gotEventID = eventID
	f.gotIsCart = isCart
	return f.receipt, f.err
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(_ context.Context) error { return f.err }
