package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/repository"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/service"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
	"go.uber.org/zap"
)

type RegenerateHandler struct {
	regenerate service.RegenerateService
	logger     *zap.Logger
}

func NewRegenerateHandler(regenerate service.RegenerateService, logger *zap.Logger) *RegenerateHandler {
	return &RegenerateHandler{
		regenerate: regenerate,
		logger:     logger,
	}
}

func (h *RegenerateHandler) RegenerateReceiptPdf(c *fiber.Ctx) error {
	ctx := c.UserContext()

	eventID := c.Params("bizeventid")
	if eventID == "" {
		return problemResponse(c, fiber.StatusBadRequest, "Please pass a valid biz-event id")
	}
	isCart := c.QueryBool("isCart")

	receipt, err := h.regenerate.Regenerate(ctx, eventID, isCart)
	if err != nil {
		if errors.Is(err, repository.ErrBizEventNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"Unable to retrieve the biz-event with id "+eventID)
		}
		if errors.Is(err, service.ErrEventNotRecoverable) || errors.Is(err, service.ErrGenerationNotRetryable) {
			return problemResponse(c, fiber.StatusBadRequest, err.Error())
		}

		mylogger.Error(
			ctx,
			h.logger,
			"regenerate receipt pdf failed",
			zap.String("event_id", eventID),
			zap.Bool("is_cart", isCart),
			zap.Error(err),
		)

		return problemResponse(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(receipt)
}
