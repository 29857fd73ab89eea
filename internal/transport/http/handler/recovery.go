package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/domain"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/repository"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/service"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/utils"
	"go.uber.org/zap"
)

// RecoveryHandler exposes the on-demand recovery operations: re-driving
// failed receipts and carts, one at a time or as a full status sweep,
// and resetting generated-but-unnotified receipts for the notifier.
type RecoveryHandler struct {
	recovery service.RecoveryService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewRecoveryHandler(recovery service.RecoveryService, logger *zap.Logger) *RecoveryHandler {
	return &RecoveryHandler{
		recovery: recovery,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *RecoveryHandler) RecoverFailedReceipt(c *fiber.Ctx) error {
	ctx := c.UserContext()

	eventID := c.Params("eventid")
	if eventID == "" {
		return problemResponse(c, fiber.StatusBadRequest, "Please pass a valid biz-event id")
	}

	receipt, err := h.recovery.RecoverReceipt(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrBizEventNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"Unable to retrieve the biz-event with id "+eventID)
		}
		if errors.Is(err, service.ErrEventNotRecoverable) || errors.Is(err, service.ErrUnexpectedStatus) {
			return problemResponse(c, fiber.StatusBadRequest, err.Error())
		}

		mylogger.Error(
			ctx,
			h.logger,
			"recover failed receipt failed",
			zap.String("event_id", eventID),
			zap.Error(err),
		)

		return problemResponse(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(receipt)
}

func (h *RecoveryHandler) RecoverFailedReceiptMassive(c *fiber.Ctx) error {
	ctx := c.UserContext()

	statusParam := c.Query("status")
	if statusParam == "" {
		return problemResponse(c, fiber.StatusBadRequest, "Please pass a status to recover")
	}

	status, ok := domain.ParseReceiptStatus(statusParam)
	if !ok {
		return problemResponse(c, fiber.StatusBadRequest, "Please pass a valid status to recover")
	}

	// Only statuses the recovery engine can re-drive are accepted.
	switch status {
	case domain.ReceiptStatusFailed, domain.ReceiptStatusInserted, domain.ReceiptStatusNotQueueSent:
	default:
		return problemResponse(c, fiber.StatusBadRequest, "Please pass a recoverable status")
	}

	result, err := h.recovery.MassiveRecover(ctx, status)
	if err != nil {
		mylogger.Error(
			ctx,
			h.logger,
			"massive receipt recovery failed",
			zap.String("status", statusParam),
			zap.Error(err),
		)

		return problemResponse(c, fiber.StatusInternalServerError, err.Error())
	}

	if result.ErrorCount > 0 {
		return partialResponse(c, fmt.Sprintf("Recovered %d receipts but %d encountered an error",
			len(result.Receipts), result.ErrorCount))
	}

	return c.JSON(fiber.Map{"recovered": len(result.Receipts)})
}

func (h *RecoveryHandler) RecoverFailedCart(c *fiber.Ctx) error {
	ctx := c.UserContext()

	cartID := c.Params("cartid")
	if cartID == "" {
		return problemResponse(c, fiber.StatusBadRequest, "Please pass a valid transaction id")
	}

	cart, err := h.recovery.RecoverCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"Unable to retrieve the cart with id "+cartID)
		}
		if errors.Is(err, service.ErrEventNotRecoverable) || errors.Is(err, service.ErrUnexpectedStatus) {
			return problemResponse(c, fiber.StatusBadRequest, err.Error())
		}

		mylogger.Error(
			ctx,
			h.logger,
			"recover failed cart failed",
			zap.String("cart_id", cartID),
			zap.Error(err),
		)

		return problemResponse(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(cart)
}

func (h *RecoveryHandler) RecoverFailedCartMassive(c *fiber.Ctx) error {
	ctx := c.UserContext()

	statusParam := c.Query("status")
	if statusParam == "" {
		return problemResponse(c, fiber.StatusBadRequest, "Please pass a status to recover")
	}

	status, ok := domain.ParseCartStatus(statusParam)
	if !ok || status == domain.CartStatusSent {
		return problemResponse(c, fiber.StatusBadRequest, "Please pass a valid status to recover")
	}

	result, err := h.recovery.MassiveRecoverCarts(ctx, status)
	if err != nil {
		mylogger.Error(
			ctx,
			h.logger,
			"massive cart recovery failed",
			zap.String("status", statusParam),
			zap.Error(err),
		)

		return problemResponse(c, fiber.StatusInternalServerError, err.Error())
	}

	if result.ErrorCount > 0 {
		return partialResponse(c, fmt.Sprintf("Recovered %d carts but %d encountered an error",
			len(result.Carts), result.ErrorCount))
	}

	return c.JSON(fiber.Map{"recovered": len(result.Carts)})
}

type notNotifiedRecoveryRequest struct {
	EventID               string `json:"eventId" validate:"omitempty,min=1,max=100"`
	GeneratedStatus       bool   `json:"generatedStatus"`
	IOErrorToNotifyStatus bool   `json:"ioErrorToNotifyStatus"`
}

func (r notNotifiedRecoveryRequest) statusesToRestore() []domain.ReceiptStatus {
	var statuses []domain.ReceiptStatus
	if r.GeneratedStatus {
		statuses = append(statuses, domain.ReceiptStatusGenerated)
	}
	if r.IOErrorToNotifyStatus {
		statuses = append(statuses, domain.ReceiptStatusIOErrorToNotify)
	}
	return statuses
}

func (h *RecoveryHandler) RecoverNotNotified(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var input notNotifiedRecoveryRequest
	if err := c.BodyParser(&input); err != nil {
		h.logger.Warn(
			"failed to parse body in recoverNotNotified",
			zap.Error(err),
		)

		return problemResponse(c, fiber.StatusBadRequest, "Please pass a valid body")
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": utils.FormatValidationError(err),
		})
	}

	statuses := input.statusesToRestore()
	if len(statuses) == 0 {
		return problemResponse(c, fiber.StatusBadRequest, "Please select at least one status to recover")
	}

	if input.EventID != "" {
		receipt, err := h.recovery.RestoreNotNotified(ctx, input.EventID, statuses)
		if err != nil {
			if errors.Is(err, repository.ErrReceiptNotFound) {
				return problemResponse(c, fiber.StatusNotFound,
					"Unable to retrieve the receipt with eventId "+input.EventID)
			}
			if errors.Is(err, service.ErrUnexpectedStatus) {
				return problemResponse(c, fiber.StatusBadRequest, err.Error())
			}

			mylogger.Error(
				ctx,
				h.logger,
				"restore not-notified receipt failed",
				zap.String("event_id", input.EventID),
				zap.Error(err),
			)

			return problemResponse(c, fiber.StatusInternalServerError, err.Error())
		}

		return c.JSON(receipt)
	}

	restored := 0
	errorCount := 0
	for _, status := range statuses {
		result, err := h.recovery.MassiveRestoreNotNotified(ctx, status)
		if err != nil {
			mylogger.Error(
				ctx,
				h.logger,
				"massive not-notified restore failed",
				zap.String("status", string(status)),
				zap.Error(err),
			)

			return problemResponse(c, fiber.StatusInternalServerError, err.Error())
		}
		restored += len(result.Receipts)
		errorCount += result.ErrorCount
	}

	if errorCount > 0 {
		return partialResponse(c, fmt.Sprintf("Restored %d receipts but %d encountered an error",
			restored, errorCount))
	}

	return c.JSON(fiber.Map{"restored": restored})
}
