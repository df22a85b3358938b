package handlers

import (
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type MessageHandler struct {
	messageService *services.MessageService
	gate           *services.MessageGate
}

func NewMessageHandler(messageService *services.MessageService, gate *services.MessageGate) *MessageHandler {
	return &MessageHandler{messageService: messageService, gate: gate}
}

// Conversation returns the thread with :userId and marks it read.
func (h *MessageHandler) Conversation(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	otherID, err := parseUUIDParam(c, "userId")
	if err != nil {
		return respondError(c, err)
	}

	msgs, err := h.messageService.Conversation(c.UserContext(), userID, otherID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func (h *MessageHandler) Send(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	receiverID, err := parseUUIDParam(c, "userId")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.SendMessageRequest
	if err := bindBody(c, &req); err != nil {
		return respondError(c, err)
	}

	res, err := h.messageService.Send(c.UserContext(), userID, receiverID, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SendMessageResponse{
		Message:  res.Message,
		Filtered: len(res.BlockedItems) > 0,
	})
}

func (h *MessageHandler) Permission(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	otherID, err := parseUUIDParam(c, "userId")
	if err != nil {
		return respondError(c, err)
	}

	d, err := h.gate.CanMessage(c.UserContext(), userID, otherID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.PermissionResponse{
		UserID:  otherID,
		Allowed: d.Allowed,
		Reason:  string(d.Reason),
	})
}
