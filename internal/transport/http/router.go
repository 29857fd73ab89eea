package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pagopa/pagopa-receipt-pdf-helpdesk-sub000/internal/transport/http/handler"
)

type Handlers struct {
	Receipt      *handler.ReceiptHandler
	ReceiptError *handler.ReceiptErrorHandler
	Recovery     *handler.RecoveryHandler
	Regenerate   *handler.RegenerateHandler
	Health       *handler.HealthHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers) {
	app.Get("/health", h.Health.Check)

	receipts := app.Group("/receipts")
	receipts.Put("/recover-failed", h.Recovery.RecoverFailedReceiptMassive)
	receipts.Put("/recover-not-notified", h.Recovery.RecoverNotNotified)
	receipts.Get("/organizations/:orgfiscalcode/iuvs/:iuv", h.Receipt.GetReceiptByOrganizationFiscalCodeAndIUV)
	receipts.Put("/:eventid/recover-failed", h.Recovery.RecoverFailedReceipt)
	receipts.Post("/:bizeventid/regenerate-receipt-pdf", h.Regenerate.RegenerateReceiptPdf)
	receipts.Get("/:eventid", h.Receipt.GetReceipt)

	carts := app.Group("/carts")
	carts.Post("/recover-failed", h.Recovery.RecoverFailedCartMassive)
	carts.Post("/:cartid/recover-failed", h.Recovery.RecoverFailedCart)
	carts.Get("/:cartid", h.Receipt.GetCart)

	errorsGroup := app.Group("/errors-toreview")
	errorsGroup.Put("", h.ReceiptError.ToReviewed)
	errorsGroup.Get("/:bizeventid", h.ReceiptError.GetReceiptError)
}
