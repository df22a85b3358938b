package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type failing struct{ err error }

func (f failing) Notify(context.Context, uuid.UUID, Kind, map[string]any) error { return f.err }

func TestDBDispatcherStoresPayload(t *testing.T) {
	db := testutil.NewDB(t)
	d := NewDBDispatcher(db)
	userID := uuid.New()

	err := d.Notify(context.Background(), userID, KindRequestReceived, map[string]any{
		"request_id":  "abc",
		"sender_name": "Asha",
	})
	if err != nil {
		t.Fatal(err)
	}

	var n models.Notification
	if err := db.Where("user_id = ?", userID).First(&n).Error; err != nil {
		t.Fatal(err)
	}
	if n.Kind != string(KindRequestReceived) {
		t.Fatalf("kind = %s", n.Kind)
	}
	var payload map[string]string
	if err := json.Unmarshal(n.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["sender_name"] != "Asha" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	errB := errors.New("b down")
	m := Multi{Nop{}, failing{errA}, failing{errB}}

	err := m.Notify(context.Background(), uuid.New(), KindRequestApproved, nil)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("err = %v, want both failures", err)
	}
	if err := (Multi{Nop{}}).Notify(context.Background(), uuid.New(), KindRequestApproved, nil); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRedisDispatcherPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	userID := uuid.New()
	sub := rdb.Subscribe(ctx, Channel(userID))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatal(err)
	}

	if err := NewRedisDispatcher(rdb).Notify(ctx, userID, KindRequestRejected, map[string]any{"request_id": "r1"}); err != nil {
		t.Fatal(err)
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var env Envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		t.Fatal(err)
	}
	if env.Kind != KindRequestRejected || env.UserID != userID {
		t.Fatalf("envelope = %+v", env)
	}
}
