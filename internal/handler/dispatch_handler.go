package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"mailroom/internal/service"
)

// Dispatcher runs one dispatch invocation.
type Dispatcher interface {
	Run(ctx context.Context) (*service.DispatchResult, error)
}

type DispatchHandler struct {
	dispatcher Dispatcher
	secret     string
}

func NewDispatchHandler(dispatcher Dispatcher, serviceSecret string) (*DispatchHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if strings.TrimSpace(serviceSecret) == "" {
		return nil, fmt.Errorf("service secret is required")
	}
	return &DispatchHandler{dispatcher: dispatcher, secret: serviceSecret}, nil
}

func RegisterDispatchRoutes(router fiber.Router, dispatcher Dispatcher, serviceSecret string) error {
	h, err := NewDispatchHandler(dispatcher, serviceSecret)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/dispatch", h.Dispatch)

	return nil
}

// Dispatch triggers one queue-draining invocation. The caller is the
// external scheduler; the bearer credential keeps it the only caller.
func (h *DispatchHandler) Dispatch(c *fiber.Ctx) error {
	if !h.authorized(c.Get(fiber.HeaderAuthorization)) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	result, err := h.dispatcher.Run(c.UserContext())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *DispatchHandler) authorized(header string) bool {
	token, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}
