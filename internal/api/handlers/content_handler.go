package handlers

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/instaflow/internal/service"
	"github.com/maheshrc27/instaflow/internal/transfer"
)

type ContentHandler struct {
	s service.ContentService
}

func NewContentHandler(service service.ContentService) *ContentHandler {
	return &ContentHandler{s: service}
}

func (h *ContentHandler) CreateContent(c *fiber.Ctx) error {
	file, err := c.FormFile("media")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No media file uploaded",
		})
	}

	accountID, err := strconv.ParseInt(c.FormValue("account_id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid account_id",
		})
	}

	item, err := h.s.CreateContent(c.Context(), &transfer.ContentCreation{
		AccountID:     accountID,
		Type:          c.FormValue("type"),
		Caption:       c.FormValue("caption"),
		ScheduledDate: c.FormValue("scheduled_date"),
		FirstComment:  c.FormValue("first_comment"),
		Location:      c.FormValue("location"),
		HideLikeCount: formBool(c, "hide_like_count"),
		TaggedUsers:   c.FormValue("tagged_users"),
	}, file)
	if err != nil {
		return errorResponse(c, err)
	}

	slog.Info("content scheduled", "content_id", item.ID, "operator", GetOperator(c))
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *ContentHandler) ListContent(c *fiber.Ctx) error {
	items, err := h.s.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list scheduled content",
		})
	}
	if items == nil {
		return c.Status(fiber.StatusOK).JSON([]any{})
	}
	return c.Status(fiber.StatusOK).JSON(items)
}

func (h *ContentHandler) GetContent(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	item, err := h.s.Get(c.Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(item)
}

func (h *ContentHandler) EditContent(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var edit transfer.ContentEdit
	if err := c.BodyParser(&edit); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	item, err := h.s.Edit(c.Context(), id, &edit)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(item)
}

func (h *ContentHandler) RemoveContent(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.s.Remove(c.Context(), id); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
