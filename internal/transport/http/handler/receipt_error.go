package handler

import (
	"encoding/base64"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/repository"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/service"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/pkg/mylogger"
	"go.uber.org/zap"
)

// ReceiptErrorHandler serves the parked-error endpoints: lookup with
// the payload decoded for display, and the TO_REVIEW -> REVIEWED
// transition for one record or the whole backlog.
type ReceiptErrorHandler struct {
	query  service.QueryService
	review service.ReviewService
	logger *zap.Logger
}

func NewReceiptErrorHandler(query service.QueryService, review service.ReviewService, logger *zap.Logger) *ReceiptErrorHandler {
	return &ReceiptErrorHandler{
		query:  query,
		review: review,
		logger: logger,
	}
}

func (h *ReceiptErrorHandler) GetReceiptError(c *fiber.Ctx) error {
	ctx := c.UserContext()

	bizEventID := c.Params("bizeventid")
	if bizEventID == "" {
		return problemResponse(c, fiber.StatusBadRequest, "Missing valid search parameter")
	}

	receiptError, err := h.query.GetReceiptError(ctx, bizEventID)
	if err != nil {
		if errors.Is(err, repository.ErrReceiptErrorNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"No receipt error to process on biz-event with id "+bizEventID)
		}

		mylogger.Error(
			ctx,
			h.logger,
			"get receipt error failed",
			zap.String("biz_event_id", bizEventID),
			zap.Error(err),
		)

		return problemResponse(c, fiber.StatusInternalServerError, err.Error())
	}

	// The payload is parked base64-encoded, decode it for the operator.
	// Anything that does not decode is shown as stored.
	if decoded, decodeErr := base64.StdEncoding.DecodeString(receiptError.MessagePayload); decodeErr == nil {
		receiptError.MessagePayload = string(decoded)
	}

	return c.JSON(receiptError)
}

type toReviewedRequest struct {
	EventID string `json:"eventId"`
}

func (h *ReceiptErrorHandler) ToReviewed(c *fiber.Ctx) error {
	ctx := c.UserContext()

	// An empty body means the whole TO_REVIEW backlog.
	var input toReviewedRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			h.logger.Warn(
				"failed to parse body in toReviewed",
				zap.Error(err),
			)

			return problemResponse(c, fiber.StatusBadRequest, "error parsing body")
		}
	}

	if input.EventID != "" {
		receiptError, err := h.review.ReviewError(ctx, input.EventID)
		if err != nil {
			if errors.Is(err, repository.ErrReceiptErrorNotFound) {
				return problemResponse(c, fiber.StatusNotFound, "No receipt error has been found")
			}
			if errors.Is(err, service.ErrUnexpectedStatus) || errors.Is(err, repository.ErrNotToReview) {
				return problemResponse(c, fiber.StatusBadRequest, err.Error())
			}

			mylogger.Error(
				ctx,
				h.logger,
				"review receipt error failed",
				zap.String("event_id", input.EventID),
				zap.Error(err),
			)

			return problemResponse(c, fiber.StatusInternalServerError, err.Error())
		}

		return c.JSON(receiptError)
	}

	reviewed, err := h.review.ReviewAll(ctx)
	if err != nil {
		mylogger.Error(
			ctx,
			h.logger,
			"receipt error review sweep failed",
			zap.Error(err),
		)

		return problemResponse(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{"reviewed": reviewed})
}
