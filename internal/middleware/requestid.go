package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures each request carries a request identifier for tracing
// and audit logging. Inbound ids are kept only when they are well-formed
// UUIDs, so upstream clients cannot inject arbitrary strings into logs.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if uuid.Validate(reqID) != nil {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)

		c.Locals(requestIDHeader, reqID)

		return c.Next()
	}
}
