package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// ProblemJson is the error body every helpdesk endpoint returns on
// failure, a minimal RFC 7807 shape.
type ProblemJson struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

func problemResponse(c *fiber.Ctx, status int, detail string) error {
	return c.Status(status).JSON(ProblemJson{
		Title:  http.StatusText(status),
		Detail: detail,
		Status: status,
	})
}

func partialResponse(c *fiber.Ctx, detail string) error {
	return c.Status(fiber.StatusMultiStatus).JSON(ProblemJson{
		Title:  "Partial OK",
		Detail: detail,
		Status: fiber.StatusMultiStatus,
	})
}
