// Package notify delivers in-app and push-side notifications for
// connection and verification events.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Kind string

const (
	KindRequestReceived  Kind = "connection_request_received"
	KindRequestApproved  Kind = "connection_request_approved"
	KindRequestRejected  Kind = "connection_request_rejected"
	KindVerificationCode Kind = "verification_code"
)

// Dispatcher hands an event to a delivery channel. Callers treat errors as
// advisory: a failed notification never undoes the change that caused it.
type Dispatcher interface {
	Notify(ctx context.Context, userID uuid.UUID, kind Kind, payload map[string]any) error
}

// Envelope is the wire shape published to subscribers.
type Envelope struct {
	UserID  uuid.UUID      `json:"user_id"`
	Kind    Kind           `json:"kind"`
	Payload map[string]any `json:"payload"`
	SentAt  time.Time      `json:"sent_at"`
}

type Nop struct{}

func (Nop) Notify(context.Context, uuid.UUID, Kind, map[string]any) error { return nil }

// Multi sends to every dispatcher and joins their errors.
type Multi []Dispatcher

func (m Multi) Notify(ctx context.Context, userID uuid.UUID, kind Kind, payload map[string]any) error {
	var errs []error
	for _, d := range m {
		if err := d.Notify(ctx, userID, kind, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DBDispatcher stores notifications for the in-app inbox.
type DBDispatcher struct {
	db *gorm.DB
}

func NewDBDispatcher(db *gorm.DB) *DBDispatcher {
	return &DBDispatcher{db: db}
}

func (d *DBDispatcher) Notify(ctx context.Context, userID uuid.UUID, kind Kind, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	n := models.Notification{
		UserID:  userID,
		Kind:    string(kind),
		Payload: datatypes.JSON(raw),
	}
	if err := d.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("notify: store notification: %w", err)
	}
	return nil
}

// RedisDispatcher publishes on notifications:<userID> for push and SMS
// workers and connected websocket gateways.
type RedisDispatcher struct {
	rdb *redis.Client
}

func NewRedisDispatcher(rdb *redis.Client) *RedisDispatcher {
	return &RedisDispatcher{rdb: rdb}
}

func Channel(userID uuid.UUID) string {
	return "notifications:" + userID.String()
}

func (d *RedisDispatcher) Notify(ctx context.Context, userID uuid.UUID, kind Kind, payload map[string]any) error {
	raw, err := json.Marshal(Envelope{
		UserID:  userID,
		Kind:    kind,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notify: encode envelope: %w", err)
	}
	if err := d.rdb.Publish(ctx, Channel(userID), raw).Err(); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	return nil
}
