package handlers

import (
	"strconv"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/repository"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ConnectionHandler struct {
	connectionService *services.ConnectionService
}

func NewConnectionHandler(connectionService *services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connectionService: connectionService}
}

func (h *ConnectionHandler) Create(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateConnectionRequest
	if err := bindBody(c, &req); err != nil {
		return respondError(c, err)
	}

	created, err := h.connectionService.CreateRequest(c.UserContext(), userID, req.ReceiverID, req.InitialMessage)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewConnectionResponse(created))
}

func (h *ConnectionHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	page, err := h.connectionService.ListRequests(c.UserContext(), userID, repository.Box(c.Query("box", "all")), limit, offset)
	if err != nil {
		return respondError(c, err)
	}

	out := make([]dto.ConnectionResponse, len(page.Requests))
	for i := range page.Requests {
		out[i] = dto.NewConnectionResponse(&page.Requests[i])
	}
	return c.JSON(dto.ConnectionListResponse{
		Requests: out,
		Total:    page.Total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
}

func (h *ConnectionHandler) Get(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	req, err := h.connectionService.Get(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewConnectionResponse(req))
}

func (h *ConnectionHandler) Transition(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var body dto.TransitionConnectionRequest
	if err := bindBody(c, &body); err != nil {
		return respondError(c, err)
	}

	in := services.TransitionInput{RejectionReason: body.RejectionReason}
	if body.Status != nil {
		s := models.RequestStatus(*body.Status)
		in.Status = &s
	}
	if body.ConnectionStatus != nil {
		cs := models.ConnectionStatus(*body.ConnectionStatus)
		in.ConnectionStatus = &cs
	}

	updated, err := h.connectionService.Transition(c.UserContext(), userID, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewConnectionResponse(updated))
}
