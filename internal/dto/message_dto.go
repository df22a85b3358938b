package dto

import (
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/models"
	"github.com/google/uuid"
)

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// SendMessageResponse tells the sender whether anything was redacted, but
// not what; the raw items only go to the audit log.
type SendMessageResponse struct {
	Message  *models.Message `json:"message"`
	Filtered bool            `json:"filtered"`
}

type PermissionResponse struct {
	UserID  uuid.UUID `json:"user_id"`
	Allowed bool      `json:"allowed"`
	Reason  string    `json:"reason,omitempty"`
}

type BlockUserRequest struct {
	BlockedID uuid.UUID `json:"blocked_id" validate:"required"`
}

type SendVerificationRequest struct {
	Purpose    string `json:"purpose" validate:"required,oneof=phone email"`
	Identifier string `json:"identifier" validate:"required,max=255"`
}

type ConfirmVerificationRequest struct {
	Purpose    string `json:"purpose" validate:"required,oneof=phone email"`
	Identifier string `json:"identifier" validate:"required,max=255"`
	Code       string `json:"code" validate:"required,len=6,numeric"`
}
