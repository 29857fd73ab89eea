package handler

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/repository"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRecoveryApp(recovery *fakeRecoveryService) *fiber.App {
	h := NewRecoveryHandler(recovery, zap.NewNop())

	app := fiber.New()
	app.Put("/receipts/recover-failed", h.RecoverFailedReceiptMassive)
	app.Put("/receipts/recover-not-notified", h.RecoverNotNotified)
	app.Put("/receipts/:eventid/recover-failed", h.RecoverFailedReceipt)
	app.Post("/carts/recover-failed", h.RecoverFailedCartMassive)
	app.Post("/carts/:cartid/recover-failed", h.RecoverFailedCart)
	return app
}

func TestRecoverFailedReceipt(t *testing.T) {
	recovery := &fakeRecoveryService{
		receipt: &domain.Receipt{ID: "rcpt-1", EventID: "event-1", Status: domain.ReceiptStatusInserted},
	}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPut, "/receipts/event-1/recover-failed", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	receipt := decodeBody[domain.Receipt](t, resp)
	assert.Equal(t, domain.ReceiptStatusInserted, receipt.Status)
}

func TestRecoverFailedReceipt_EventNotFound(t *testing.T) {
	recovery := &fakeRecoveryService{err: repository.ErrBizEventNotFound}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPut, "/receipts/missing/recover-failed", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRecoverFailedReceipt_UnexpectedStatus(t *testing.T) {
	recovery := &fakeRecoveryService{
		err: fmt.Errorf("%w: receipt is in status GENERATED", service.ErrUnexpectedStatus),
	}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPut, "/receipts/event-1/recover-failed", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRecoverFailedReceiptMassive(t *testing.T) {
	recovery := &fakeRecoveryService{
		result: &service.MassiveRecoverResult{
			Receipts: []domain.Receipt{{EventID: "event-1"}, {EventID: "event-2"}},
		},
	}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPut, "/receipts/recover-failed?status=FAILED", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]int](t, resp)
	assert.Equal(t, 2, body["recovered"])
	assert.Equal(t, []domain.ReceiptStatus{domain.ReceiptStatusFailed}, recovery.massiveStatuses)
}

func TestRecoverFailedReceiptMassive_MissingStatus(t *testing.T) {
	recovery := &fakeRecoveryService{}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPut, "/receipts/recover-failed", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, recovery.massiveStatuses)
}

func TestRecoverFailedReceiptMassive_InvalidStatus(t *testing.T) {
	recovery := &fakeRecoveryService{}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPut, "/receipts/recover-failed?status=BOGUS", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, recovery.massiveStatuses)
}

func TestRecoverFailedReceiptMassive_NonRecoverableStatus(t *testing.T) {
	recovery := &fakeRecoveryService{}
	app := newRecoveryApp(recovery)

	for _, status := range []string{"GENERATED", "IO_NOTIFIED", "IO_ERROR_TO_NOTIFY"} {
		resp := performRequest(t, app, fiber.MethodPut, "/receipts/recover-failed?status="+status, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	}
	assert.Empty(t, recovery.massiveStatuses)
}

func TestRecoverFailedReceiptMassive_PartialFailure(t *testing.T) {
	recovery := &fakeRecoveryService{
		result: &service.MassiveRecoverResult{
			Receipts:   []domain.Receipt{{EventID: "event-1"}},
			ErrorCount: 2,
		},
	}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPut, "/receipts/recover-failed?status=NOT_QUEUE_SENT", nil)
	require.Equal(t, fiber.StatusMultiStatus, resp.StatusCode)

	problem := decodeBody[ProblemJson](t, resp)
	assert.Equal(t, "Partial OK", problem.Title)
	assert.Equal(t, fiber.StatusMultiStatus, problem.Status)
}

func TestRecoverFailedCart(t *testing.T) {
	recovery := &fakeRecoveryService{
		cart: &domain.CartForReceipt{ID: "tx-1", TotalNotice: 2, Status: domain.CartStatusSent},
	}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPost, "/carts/tx-1/recover-failed", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	cart := decodeBody[domain.CartForReceipt](t, resp)
	assert.Equal(t, domain.CartStatusSent, cart.Status)
}

func TestRecoverFailedCart_Incomplete(t *testing.T) {
	recovery := &fakeRecoveryService{
		err: fmt.Errorf("%w: not all items collected for cart tx-1", service.ErrEventNotRecoverable),
	}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPost, "/carts/tx-1/recover-failed", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRecoverFailedCart_NotFound(t *testing.T) {
	recovery := &fakeRecoveryService{err: repository.ErrCartNotFound}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPost, "/carts/missing/recover-failed", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRecoverFailedCartMassive(t *testing.T) {
	recovery := &fakeRecoveryService{
		cartResult: &service.MassiveCartRecoverResult{
			Carts: []domain.CartForReceipt{{ID: "tx-1"}},
		},
	}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPost, "/carts/recover-failed?status=INSERTED", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]int](t, resp)
	assert.Equal(t, 1, body["recovered"])
	assert.Equal(t, []domain.CartStatus{domain.CartStatusInserted}, recovery.cartStatuses)
}

func TestRecoverFailedCartMassive_SentRejected(t *testing.T) {
	recovery := &fakeRecoveryService{}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPost, "/carts/recover-failed?status=SENT", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, recovery.cartStatuses)
}

func TestRecoverNotNotified_Single(t *testing.T) {
	recovery := &fakeRecoveryService{
		receipt: &domain.Receipt{ID: "rcpt-1", EventID: "event-1", Status: domain.ReceiptStatusGenerated},
	}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPut, "/receipts/recover-not-notified",
		fiber.Map{"eventId": "event-1", "ioErrorToNotifyStatus": true})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	receipt := decodeBody[domain.Receipt](t, resp)
	assert.Equal(t, domain.ReceiptStatusGenerated, receipt.Status)
	assert.Equal(t, []domain.ReceiptStatus{domain.ReceiptStatusIOErrorToNotify}, recovery.restoreStatuses)
}

func TestRecoverNotNotified_NoStatusSelected(t *testing.T) {
	recovery := &fakeRecoveryService{}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPut, "/receipts/recover-not-notified",
		fiber.Map{"eventId": "event-1"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRecoverNotNotified_MassiveMergesStatuses(t *testing.T) {
	recovery := &fakeRecoveryService{
		result: &service.MassiveRecoverResult{
			Receipts: []domain.Receipt{{EventID: "event-1"}},
		},
	}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPut, "/receipts/recover-not-notified",
		fiber.Map{"generatedStatus": true, "ioErrorToNotifyStatus": true})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]int](t, resp)
	assert.Equal(t, 2, body["restored"])
	assert.Equal(t, []domain.ReceiptStatus{
		domain.ReceiptStatusGenerated,
		domain.ReceiptStatusIOErrorToNotify,
	}, recovery.massiveStatuses)
}

func TestRecoverNotNotified_MassivePartialFailure(t *testing.T) {
	recovery := &fakeRecoveryService{
		result: &service.MassiveRecoverResult{ErrorCount: 1},
	}
	app := newRecoveryApp(recovery)

	resp := performRequest(t, app, fiber.MethodPut, "/receipts/recover-not-notified",
		fiber.Map{"generatedStatus": true})
	assert.Equal(t, fiber.StatusMultiStatus, resp.StatusCode)
}

func TestRegenerateReceiptPdf(t *testing.T) {
	regenerate := &fakeRegenerateService{
		receipt: &domain.Receipt{ID: "rcpt-1", EventID: "event-1", Status: domain.ReceiptStatusIONotified},
	}
	h := NewRegenerateHandler(regenerate, zap.NewNop())

	app := fiber.New()
	app.Post("/receipts/:bizeventid/regenerate-receipt-pdf", h.RegenerateReceiptPdf)

	resp := performRequest(t, app, fiber.MethodPost, "/receipts/event-1/regenerate-receipt-pdf?isCart=true", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "event-1", regenerate.gotEventID)
	assert.True(t, regenerate.gotIsCart)

	receipt := decodeBody[domain.Receipt](t, resp)
	assert.Equal(t, domain.ReceiptStatusIONotified, receipt.Status)
}

func TestRegenerateReceiptPdf_EventNotFound(t *testing.T) {
	regenerate := &fakeRegenerateService{err: repository.ErrBizEventNotFound}
	h := NewRegenerateHandler(regenerate, zap.NewNop())

	app := fiber.New()
	app.Post("/receipts/:bizeventid/regenerate-receipt-pdf", h.RegenerateReceiptPdf)

	resp := performRequest(t, app, fiber.MethodPost, "/receipts/missing/regenerate-receipt-pdf", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
