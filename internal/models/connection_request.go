package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus is the receiver's answer to a connection request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	}
	return false
}

// ConnectionStatus tracks how far an approved request has progressed
// towards private messaging.
type ConnectionStatus string

const (
	ConnectionPending                ConnectionStatus = "pending"
	ConnectionAccepted               ConnectionStatus = "accepted"
	ConnectionQuestionnaireSent      ConnectionStatus = "questionnaire_sent"
	ConnectionQuestionnaireCompleted ConnectionStatus = "questionnaire_completed"
	ConnectionConnected              ConnectionStatus = "connected"
	ConnectionRejected               ConnectionStatus = "rejected"
)

func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionPending, ConnectionAccepted, ConnectionQuestionnaireSent,
		ConnectionQuestionnaireCompleted, ConnectionConnected, ConnectionRejected:
		return true
	}
	return false
}

// Terminal states accept no further transitions.
func (s ConnectionStatus) Terminal() bool {
	return s == ConnectionRejected || s == ConnectionConnected
}

// ConnectionRequest is one member's proposal to connect with another.
//
// ActivePairKey holds the canonical pair key while the request is active and
// is NULL otherwise; its unique index is what keeps a pair down to a single
// active request, whichever side sent it.
type ConnectionRequest struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"receiver_id"`
	Status           RequestStatus    `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ConnectionStatus ConnectionStatus `gorm:"size:30;not null;default:'pending'" json:"connection_status"`
	InitialMessage   string           `gorm:"type:text" json:"initial_message,omitempty"`
	RejectionReason  string           `gorm:"size:500" json:"rejection_reason,omitempty"`
	ActivePairKey    *string          `gorm:"size:80;uniqueIndex:idx_connection_requests_active_pair" json:"-"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (ConnectionRequest) TableName() string {
	return "connection_requests"
}

func (r *ConnectionRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsParticipant reports whether userID is the sender or the receiver.
func (r *ConnectionRequest) IsParticipant(userID uuid.UUID) bool {
	return r.SenderID == userID || r.ReceiverID == userID
}

// Counterpart returns the other side of the request for userID.
func (r *ConnectionRequest) Counterpart(userID uuid.UUID) uuid.UUID {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}

// IsActive reports whether the request still occupies its pair.
func (r *ConnectionRequest) IsActive() bool {
	return IsActiveState(r.Status, r.ConnectionStatus)
}

func IsActiveState(status RequestStatus, conn ConnectionStatus) bool {
	return status != RequestRejected && conn != ConnectionRejected
}

// PairKey builds the order-independent key for two members.
func PairKey(a, b uuid.UUID) string {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return a.String() + ":" + b.String()
}
