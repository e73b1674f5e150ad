package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type ArmedCounter interface {
	ArmedCount() int
}

type HealthHandler struct {
	db    Pinger
	sched ArmedCounter
}

func NewHealthHandler(db Pinger, sched ArmedCounter) *HealthHandler {
	return &HealthHandler{db: db, sched: sched}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"error":  "database unreachable",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "ok",
		"armed":  h.sched.ArmedCount(),
	})
}
