package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/repository"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/service"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
	"go.uber.org/zap"
)

// ReceiptHandler serves the read-only receipt and cart lookups.
type ReceiptHandler struct {
	query  service.QueryService
	logger *zap.Logger
}

func NewReceiptHandler(query service.QueryService, logger *zap.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		query:  query,
		logger: logger,
	}
}

func (h *ReceiptHandler) GetReceipt(c *fiber.Ctx) error {
	ctx := c.UserContext()

	eventID := c.Params("eventid")
	if eventID == "" {
		return problemResponse(c, fiber.StatusBadRequest, "Please pass a valid biz-event id")
	}

	receipt, err := h.query.GetReceipt(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrReceiptNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"The receipt for the requested biz-event id does not exist")
		}

		mylogger.Error(
			ctx,
			h.logger,
			"get receipt failed",
			zap.String("event_id", eventID),
			zap.Error(err),
		)

		return problemResponse(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(receipt)
}

func (h *ReceiptHandler) GetReceiptByOrganizationFiscalCodeAndIUV(c *fiber.Ctx) error {
	ctx := c.UserContext()

	orgFiscalCode := c.Params("orgfiscalcode")
	iuv := c.Params("iuv")
	if orgFiscalCode == "" || iuv == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"Please pass a valid organization fiscal code and iuv")
	}

	receipt, err := h.query.GetReceiptByOrgFiscalCodeAndIUV(ctx, orgFiscalCode, iuv)
	if err != nil {
		if errors.Is(err, repository.ErrBizEventNotFound) || errors.Is(err, repository.ErrReceiptNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"No receipt found for the requested organization fiscal code and iuv")
		}

		mylogger.Error(
			ctx,
			h.logger,
			"get receipt by organization fiscal code and iuv failed",
			zap.String("iuv", iuv),
			zap.Error(err),
		)

		return problemResponse(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(receipt)
}

func (h *ReceiptHandler) GetCart(c *fiber.Ctx) error {
	ctx := c.UserContext()

	cartID := c.Params("cartid")
	if cartID == "" {
		return problemResponse(c, fiber.StatusBadRequest, "Please pass a valid cart id")
	}

	cart, err := h.query.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"The cart for the requested id does not exist")
		}

		mylogger.Error(
			ctx,
			h.logger,
			"get cart failed",
			zap.String("cart_id", cartID),
			zap.Error(err),
		)

		return problemResponse(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(cart)
}
