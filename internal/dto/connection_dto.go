package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/models"
	"github.com/google/uuid"
)

type CreateConnectionRequest struct {
	ReceiverID     uuid.UUID `json:"receiver_id" validate:"required"`
	InitialMessage string    `json:"initial_message" validate:"max=1000"`
}

// TransitionConnectionRequest is a PATCH body; absent fields stay nil.
type TransitionConnectionRequest struct {
	Status           *string `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	ConnectionStatus *string `json:"connection_status" validate:"omitempty,oneof=pending accepted questionnaire_sent questionnaire_completed connected rejected"`
	RejectionReason  *string `json:"rejection_reason" validate:"omitempty,max=500"`
}

type ConnectionResponse struct {
	ID               uuid.UUID `json:"id"`
	SenderID         uuid.UUID `json:"sender_id"`
	ReceiverID       uuid.UUID `json:"receiver_id"`
	Status           string    `json:"status"`
	ConnectionStatus string    `json:"connection_status"`
	InitialMessage   string    `json:"initial_message,omitempty"`
	RejectionReason  string    `json:"rejection_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func NewConnectionResponse(r *models.ConnectionRequest) ConnectionResponse {
	return ConnectionResponse{
		ID:               r.ID,
		SenderID:         r.SenderID,
		ReceiverID:       r.ReceiverID,
		Status:           string(r.Status),
		ConnectionStatus: string(r.ConnectionStatus),
		InitialMessage:   r.InitialMessage,
		RejectionReason:  r.RejectionReason,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type ConnectionListResponse struct {
	Requests []ConnectionResponse `json:"requests"`
	Total    int64                `json:"total"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
}
