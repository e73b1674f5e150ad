package handlers

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/instaflow/internal/service"
)

func GetOperator(c *fiber.Ctx) string {
	operator, _ := c.Locals("operator").(string)
	return operator
}

func paramID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// formBool reads a checkbox-style form field. Browsers send "on" for a checked
// box; API clients send anything strconv.ParseBool accepts.
func formBool(c *fiber.Ctx, key string) bool {
	v := strings.TrimSpace(c.FormValue(key))
	if strings.EqualFold(v, "on") {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// errorResponse maps service errors onto HTTP statuses.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = fiber.StatusBadRequest
	case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrContentNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, service.ErrNotEditable), errors.Is(err, service.ErrAccountExists):
		status = fiber.StatusConflict
	}

	if status == fiber.StatusInternalServerError {
		slog.Error(err.Error())
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
