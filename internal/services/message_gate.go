package services

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/repository"
	"github.com/google/uuid"
)

// Decision is the gate's answer for a pair of members.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
}

// Err returns a *DenyError for a denial and nil for a permit.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DenyError{Reason: d.Reason}
}

// MessageGate decides whether two members may exchange private messages.
// It reads the store on every call; nothing is cached.
type MessageGate struct {
	repo   *repository.ConnectionRepository
	blocks BlockChecker
}

func NewMessageGate(repo *repository.ConnectionRepository, blocks BlockChecker) *MessageGate {
	return &MessageGate{repo: repo, blocks: blocks}
}

func (g *MessageGate) CanMessage(ctx context.Context, a, b uuid.UUID) (Decision, error) {
	d, err := g.decide(ctx, a, b)
	if err != nil {
		return Decision{}, err
	}
	if !d.Allowed {
		metrics.GateDenials.WithLabelValues(string(d.Reason)).Inc()
	}
	return d, nil
}

func (g *MessageGate) decide(ctx context.Context, a, b uuid.UUID) (Decision, error) {
	if a == b {
		return deny(DenyNoConnection), nil
	}

	if g.blocks != nil {
		blocked, err := g.blocks.IsBlockedEitherWay(ctx, a, b)
		if err != nil {
			return Decision{}, err
		}
		if blocked {
			return deny(DenyBlocked), nil
		}
	}

	req, err := g.repo.FindActiveBetween(ctx, a, b)
	if errors.Is(err, repository.ErrNotFound) {
		return deny(DenyNoConnection), nil
	}
	if err != nil {
		return Decision{}, err
	}

	switch {
	case req.Status == models.RequestPending:
		return deny(DenyNotApprovedYet), nil
	case req.Status != models.RequestApproved:
		return deny(DenyNoConnection), nil
	case req.ConnectionStatus == models.ConnectionQuestionnaireCompleted,
		req.ConnectionStatus == models.ConnectionConnected:
		return Decision{Allowed: true}, nil
	default:
		return deny(DenyQuestionnairePending), nil
	}
}

func deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}
