package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Box selects which side of a member's connection requests to list.
type Box string

const (
	BoxSent     Box = "sent"
	BoxReceived Box = "received"
	BoxAll      Box = "all"
)

func (b Box) Valid() bool {
	return b == BoxSent || b == BoxReceived || b == BoxAll
}

// StateChange is the target of a conditional update. RejectionReason is
// only written when non-nil.
type StateChange struct {
	Status           models.RequestStatus
	ConnectionStatus models.ConnectionStatus
	RejectionReason  *string
}

type ConnectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Create inserts req. The unique index on the active pair key rejects a
// second active request for the same two members, in either direction,
// and that rejection comes back as ErrDuplicate.
func (r *ConnectionRepository) Create(ctx context.Context, req *models.ConnectionRequest) error {
	req.ActivePairKey = nil
	if req.IsActive() {
		key := models.PairKey(req.SenderID, req.ReceiverID)
		req.ActivePairKey = &key
	}

	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create connection request: %w", err)
	}
	return nil
}

func (r *ConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// FindActiveBetween returns the active request between a and b regardless
// of who sent it.
func (r *ConnectionRepository) FindActiveBetween(ctx context.Context, a, b uuid.UUID) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := r.db.WithContext(ctx).
		Where("active_pair_key = ?", models.PairKey(a, b)).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// UpdateState moves a request to a new state only if it is still in the
// state the caller read. Zero affected rows means someone else got there
// first and is reported as ErrStaleState. Leaving the active set clears the
// pair key in the same statement, which frees the pair for a new request.
func (r *ConnectionRepository) UpdateState(
	ctx context.Context,
	id uuid.UUID,
	fromStatus models.RequestStatus,
	fromConn models.ConnectionStatus,
	to StateChange,
) (*models.ConnectionRequest, error) {
	updates := map[string]interface{}{
		"status":            to.Status,
		"connection_status": to.ConnectionStatus,
		"updated_at":        time.Now(),
	}
	if to.RejectionReason != nil {
		updates["rejection_reason"] = *to.RejectionReason
	}
	if !models.IsActiveState(to.Status, to.ConnectionStatus) {
		updates["active_pair_key"] = nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.ConnectionRequest{}).
		Where("id = ? AND status = ? AND connection_status = ?", id, fromStatus, fromConn).
		Updates(updates)
	if result.Error != nil {
		if IsDuplicate(result.Error) {
			return nil, ErrStaleState
		}
		return nil, fmt.Errorf("failed to update connection request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrStaleState
	}
	return r.FindByID(ctx, id)
}

// List returns userID's requests from the chosen box, newest first.
func (r *ConnectionRepository) List(ctx context.Context, userID uuid.UUID, box Box, limit, offset int) ([]models.ConnectionRequest, int64, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.ConnectionRequest{})
		switch box {
		case BoxSent:
			return q.Where("sender_id = ?", userID)
		case BoxReceived:
			return q.Where("receiver_id = ?", userID)
		default:
			return q.Where("sender_id = ? OR receiver_id = ?", userID, userID)
		}
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reqs []models.ConnectionRequest
	if err := scoped().Order("created_at DESC").Limit(limit).Offset(offset).Find(&reqs).Error; err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}
