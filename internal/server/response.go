package server

import (
	"github.com/gofiber/fiber/v2"
)

// APIResponse is the envelope for successful responses.
type APIResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse is the envelope for error responses.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SendSuccess writes a success envelope with the given status code.
func SendSuccess(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(APIResponse{
		Status: "success",
		Data:   data,
	})
}

// SendError writes an error envelope with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Status:  "error",
		Message: message,
	})
}
