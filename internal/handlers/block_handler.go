package handlers

import (
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type BlockHandler struct {
	moderationService *services.ModerationService
}

func NewBlockHandler(moderationService *services.ModerationService) *BlockHandler {
	return &BlockHandler{moderationService: moderationService}
}

func (h *BlockHandler) BlockUser(c *fiber.Ctx) error {
	blockerID, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.BlockUserRequest
	if err := bindBody(c, &req); err != nil {
		return respondError(c, err)
	}

	block, err := h.moderationService.BlockUser(c.UserContext(), blockerID, req.BlockedID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(block)
}

func (h *BlockHandler) UnblockUser(c *fiber.Ctx) error {
	blockerID, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	blockedID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.moderationService.UnblockUser(c.UserContext(), blockerID, blockedID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User unblocked successfully"})
}
