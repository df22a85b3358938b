package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/services"
	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bindBody parses the JSON body into out and runs its validate tags.
func bindBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: invalid request body", services.ErrInvalidArgument)
	}
	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s validation", services.ErrInvalidArgument, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", services.ErrInvalidArgument, err)
	}
	return nil
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", services.ErrInvalidArgument, name)
	}
	return id, nil
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}

// respondError maps service errors to HTTP statuses. Server errors are
// logged, sent to Sentry and hidden from the client.
func respondError(c *fiber.Ctx, err error) error {
	var deny *services.DenyError
	if errors.As(err, &deny) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Messaging is not available for this member", Code: string(deny.Reason),
		})
	}

	status, code := fiber.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		status, code = fiber.StatusBadRequest, "invalid_argument"
	case errors.Is(err, services.ErrNotEligible):
		status, code = fiber.StatusUnprocessableEntity, "not_eligible"
	case errors.Is(err, services.ErrForbidden):
		status, code = fiber.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrNotFound):
		status, code = fiber.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrConflict):
		status, code = fiber.StatusConflict, "conflict"
	case errors.Is(err, services.ErrRateLimited):
		status, code = fiber.StatusTooManyRequests, "rate_limited"
	}

	message := err.Error()
	if status >= fiber.StatusInternalServerError {
		userID, _ := middleware.CurrentUserID(c)
		slog.Error("request failed",
			"request_id", requestID(c),
			"user_id", userID.String(),
			"method", c.Method(),
			"path", c.Path(),
			"error", err.Error(),
		)
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
		message = "Internal server error"
	}

	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message, Code: code})
}
