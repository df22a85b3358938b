package handlers

import (
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type VerificationHandler struct {
	verificationService *services.VerificationService
}

func NewVerificationHandler(verificationService *services.VerificationService) *VerificationHandler {
	return &VerificationHandler{verificationService: verificationService}
}

func (h *VerificationHandler) Send(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.SendVerificationRequest
	if err := bindBody(c, &req); err != nil {
		return respondError(c, err)
	}

	if err := h.verificationService.Issue(c.UserContext(), userID, services.Purpose(req.Purpose), req.Identifier); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "Verification code sent"})
}

func (h *VerificationHandler) Confirm(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.ConfirmVerificationRequest
	if err := bindBody(c, &req); err != nil {
		return respondError(c, err)
	}

	err = h.verificationService.Verify(c.UserContext(), userID, services.Purpose(req.Purpose), req.Identifier, req.Code)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Verified", "verified": true})
}
