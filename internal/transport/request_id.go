package transport

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"mailroom/internal/observability"
)

const RequestIDHeader = "X-Request-Id"

// RequestID attaches a correlation id to every request, honoring one
// supplied by the caller, and carries it on the user context so
// downstream logs can be tied back to the request.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(RequestIDHeader, requestID)
		c.SetUserContext(observability.WithRequestID(c.UserContext(), requestID))

		return c.Next()
	}
}
