package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/contentfilter"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/notify"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/repository"
	"github.com/google/uuid"
)

// ProfileDirectory is the slice of the profile service messaging needs.
type ProfileDirectory interface {
	IsEligibleReceiver(ctx context.Context, userID uuid.UUID) (bool, error)
	DisplayName(ctx context.Context, userID uuid.UUID) string
	DisplayNames(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]string
}

// BlockChecker answers whether two members have blocked each other.
type BlockChecker interface {
	IsBlockedEitherWay(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// TransitionInput carries the optional fields of a transition call. At
// least one of Status and ConnectionStatus must be set.
type TransitionInput struct {
	Status           *models.RequestStatus
	ConnectionStatus *models.ConnectionStatus
	RejectionReason  *string
}

// ConnectionService runs the connection request state machine.
type ConnectionService struct {
	repo     *repository.ConnectionRepository
	profiles ProfileDirectory
	blocks   BlockChecker
	filter   *contentfilter.Filter
	notifier notify.Dispatcher
}

func NewConnectionService(
	repo *repository.ConnectionRepository,
	profiles ProfileDirectory,
	blocks BlockChecker,
	filter *contentfilter.Filter,
	notifier notify.Dispatcher,
) *ConnectionService {
	return &ConnectionService{
		repo:     repo,
		profiles: profiles,
		blocks:   blocks,
		filter:   filter,
		notifier: notifier,
	}
}

// CreateRequest opens a pending request from sender to receiver. The pair
// check and the insert are one statement: the store's unique index decides
// between concurrent creators.
func (s *ConnectionService) CreateRequest(ctx context.Context, senderID, receiverID uuid.UUID, initialMessage string) (*models.ConnectionRequest, error) {
	if receiverID == uuid.Nil {
		return nil, fmt.Errorf("%w: receiver_id is required", ErrInvalidArgument)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot send a request to yourself", ErrInvalidArgument)
	}

	eligible, err := s.profiles.IsEligibleReceiver(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to check receiver: %w", err)
	}
	if !eligible {
		return nil, ErrNotEligible
	}

	blocked, err := s.blocks.IsBlockedEitherWay(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to check blocks: %w", err)
	}
	if blocked {
		return nil, ErrNotEligible
	}

	req := &models.ConnectionRequest{
		SenderID:         senderID,
		ReceiverID:       receiverID,
		Status:           models.RequestPending,
		ConnectionStatus: models.ConnectionPending,
	}
	if msg := strings.TrimSpace(initialMessage); msg != "" {
		req.InitialMessage = filterText(s.filter, senderID, "initial_message", msg).Filtered
	}

	if err := s.repo.Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			metrics.ConnectionConflicts.WithLabelValues("create").Inc()
			return nil, fmt.Errorf("%w: an active request already exists between these members", ErrConflict)
		}
		return nil, err
	}
	metrics.ConnectionRequestsCreated.Inc()

	dispatch(ctx, s.notifier, receiverID, notify.KindRequestReceived, map[string]any{
		"request_id":  req.ID.String(),
		"sender_id":   senderID.String(),
		"sender_name": s.profiles.DisplayName(ctx, senderID),
	})
	return req, nil
}

// Get returns a request to one of its participants. Anyone else gets
// ErrNotFound, same as for a missing id.
func (s *ConnectionService) Get(ctx context.Context, actorID, requestID uuid.UUID) (*models.ConnectionRequest, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !req.IsParticipant(actorID) {
		return nil, ErrNotFound
	}
	return req, nil
}

// RequestPage is one page of a member's requests with the bounds actually
// applied.
type RequestPage struct {
	Requests []models.ConnectionRequest
	Total    int64
	Limit    int
	Offset   int
}

func (s *ConnectionService) ListRequests(ctx context.Context, userID uuid.UUID, box repository.Box, limit, offset int) (*RequestPage, error) {
	if box == "" {
		box = repository.BoxAll
	}
	if !box.Valid() {
		return nil, fmt.Errorf("%w: box must be sent, received or all", ErrInvalidArgument)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	reqs, total, err := s.repo.List(ctx, userID, box, limit, offset)
	if err != nil {
		return nil, err
	}
	return &RequestPage{Requests: reqs, Total: total, Limit: limit, Offset: offset}, nil
}

// Transition applies a status or connection status change on behalf of
// actorID. The update only lands if the row still holds the state read
// here; otherwise the caller gets ErrConflict and should re-read.
func (s *ConnectionService) Transition(ctx context.Context, actorID, requestID uuid.UUID, in TransitionInput) (*models.ConnectionRequest, error) {
	if in.Status == nil && in.ConnectionStatus == nil {
		return nil, fmt.Errorf("%w: status or connection_status is required", ErrInvalidArgument)
	}
	if in.ConnectionStatus != nil && !in.ConnectionStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown connection_status %q", ErrInvalidArgument, *in.ConnectionStatus)
	}

	req, err := s.Get(ctx, actorID, requestID)
	if err != nil {
		return nil, err
	}

	var change repository.StateChange
	if in.Status != nil {
		change, err = s.planStatusChange(actorID, req, in)
	} else {
		change, err = s.planConnectionChange(actorID, req, in)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateState(ctx, req.ID, req.Status, req.ConnectionStatus, change)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			metrics.ConnectionConflicts.WithLabelValues("transition").Inc()
			return nil, fmt.Errorf("%w: request was updated by someone else", ErrConflict)
		}
		return nil, err
	}
	metrics.ConnectionTransitions.WithLabelValues(string(updated.Status), string(updated.ConnectionStatus)).Inc()

	s.notifyTransition(ctx, actorID, req, updated)
	return updated, nil
}

func (s *ConnectionService) planStatusChange(actorID uuid.UUID, req *models.ConnectionRequest, in TransitionInput) (repository.StateChange, error) {
	target := *in.Status
	if target != models.RequestApproved && target != models.RequestRejected {
		return repository.StateChange{}, fmt.Errorf("%w: status must be approved or rejected", ErrInvalidArgument)
	}
	if actorID != req.ReceiverID {
		return repository.StateChange{}, fmt.Errorf("%w: only the receiver can answer a request", ErrForbidden)
	}
	if req.Status != models.RequestPending {
		return repository.StateChange{}, fmt.Errorf("%w: request already %s", ErrConflict, req.Status)
	}
	if req.ConnectionStatus == models.ConnectionRejected {
		return repository.StateChange{}, fmt.Errorf("%w: request was withdrawn", ErrConflict)
	}

	if target == models.RequestRejected && in.ConnectionStatus != nil && *in.ConnectionStatus != models.ConnectionRejected {
		return repository.StateChange{}, fmt.Errorf("%w: a rejected request can only have connection status rejected", ErrInvalidArgument)
	}

	change := repository.StateChange{Status: target}
	switch {
	case in.ConnectionStatus != nil:
		change.ConnectionStatus = *in.ConnectionStatus
	case target == models.RequestApproved:
		change.ConnectionStatus = models.ConnectionAccepted
	default:
		change.ConnectionStatus = models.ConnectionRejected
	}
	if target == models.RequestRejected || change.ConnectionStatus == models.ConnectionRejected {
		change.RejectionReason = s.rejectionReason(actorID, in.RejectionReason)
	}
	return change, nil
}

func (s *ConnectionService) planConnectionChange(actorID uuid.UUID, req *models.ConnectionRequest, in TransitionInput) (repository.StateChange, error) {
	target := *in.ConnectionStatus
	if req.ConnectionStatus.Terminal() || req.Status == models.RequestRejected {
		return repository.StateChange{}, fmt.Errorf("%w: request is closed", ErrConflict)
	}
	// Before the receiver answers, either side may only withdraw.
	if req.Status == models.RequestPending && target != models.ConnectionRejected {
		return repository.StateChange{}, fmt.Errorf("%w: request has not been approved", ErrConflict)
	}

	change := repository.StateChange{
		Status:           req.Status,
		ConnectionStatus: target,
	}
	if target == models.ConnectionRejected {
		change.RejectionReason = s.rejectionReason(actorID, in.RejectionReason)
	}
	return change, nil
}

func (s *ConnectionService) rejectionReason(actorID uuid.UUID, raw *string) *string {
	if raw == nil {
		return nil
	}
	reason := strings.TrimSpace(*raw)
	if reason == "" {
		return nil
	}
	reason = filterText(s.filter, actorID, "rejection_reason", reason).Filtered
	return &reason
}

func (s *ConnectionService) notifyTransition(ctx context.Context, actorID uuid.UUID, before, after *models.ConnectionRequest) {
	counterpart := after.Counterpart(actorID)
	payload := map[string]any{
		"request_id":        after.ID.String(),
		"actor_id":          actorID.String(),
		"actor_name":        s.profiles.DisplayName(ctx, actorID),
		"status":            string(after.Status),
		"connection_status": string(after.ConnectionStatus),
	}

	switch {
	case before.IsActive() && !after.IsActive():
		dispatch(ctx, s.notifier, counterpart, notify.KindRequestRejected, payload)
	case before.Status == models.RequestPending && after.Status == models.RequestApproved:
		dispatch(ctx, s.notifier, counterpart, notify.KindRequestApproved, payload)
	}
}
