package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/contentfilter"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/notify"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/repository"
	"github.com/ahmetcoskunkizilkaya/matrimony-backend/internal/testutil"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sentEvent struct {
	userID  uuid.UUID
	kind    notify.Kind
	payload map[string]any
}

type recorder struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

func (r *recorder) Notify(_ context.Context, userID uuid.UUID, kind notify.Kind, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{userID: userID, kind: kind, payload: payload})
	return r.err
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.kind
	}
	return out
}

type fixture struct {
	db         *gorm.DB
	ctx        context.Context
	notes      *recorder
	profiles   *ProfileService
	moderation *ModerationService
	conns      *ConnectionService
	gate       *MessageGate
	messages   *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	filter := contentfilter.New("shaadibandhan.com", "localhost")
	notes := &recorder{}
	profiles := NewProfileService(db)
	moderation := NewModerationService(db)
	connRepo := repository.NewConnectionRepository(db)
	gate := NewMessageGate(connRepo, moderation)

	return &fixture{
		db:         db,
		ctx:        context.Background(),
		notes:      notes,
		profiles:   profiles,
		moderation: moderation,
		conns:      NewConnectionService(connRepo, profiles, moderation, filter, notes),
		gate:       gate,
		messages:   NewMessageService(repository.NewMessageRepository(db), gate, filter, profiles, 200),
	}
}

func (f *fixture) user(t *testing.T, name string) uuid.UUID {
	return testutil.CreateUser(t, f.db, name).ID
}

// forceState puts a request straight into a state, bypassing the rules.
func (f *fixture) forceState(t *testing.T, id uuid.UUID, status models.RequestStatus, conn models.ConnectionStatus) {
	t.Helper()
	err := f.db.Model(&models.ConnectionRequest{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "connection_status": conn}).Error
	if err != nil {
		t.Fatal(err)
	}
}

func statusPtr(s models.RequestStatus) *models.RequestStatus { return &s }

func connPtr(s models.ConnectionStatus) *models.ConnectionStatus { return &s }

func strPtr(s string) *string { return &s }

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "asha")
	b := f.user(t, "bilal")

	inactive := testutil.CreateUser(t, f.db, "inactive")
	f.db.Model(&models.User{}).Where("id = ?", inactive.ID).Update("is_active", false)
	unverified := testutil.CreateUser(t, f.db, "unverified")
	f.db.Model(&models.User{}).Where("id = ?", unverified.ID).Update("is_verified", false)

	blocked := f.user(t, "blocked")
	if _, err := f.moderation.BlockUser(f.ctx, blocked, a); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		receiver uuid.UUID
		want     error
	}{
		{"self", a, ErrInvalidArgument},
		{"nil receiver", uuid.Nil, ErrInvalidArgument},
		{"unknown receiver", uuid.New(), ErrNotEligible},
		{"inactive receiver", inactive.ID, ErrNotEligible},
		{"unverified receiver", unverified.ID, ErrNotEligible},
		{"receiver blocked sender", blocked, ErrNotEligible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.conns.CreateRequest(f.ctx, a, tt.receiver, ""); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := f.conns.CreateRequest(f.ctx, a, b, ""); err != nil {
		t.Fatalf("valid request: %v", err)
	}
}

func TestCreateRequestFiltersInitialMessageAndNotifies(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "asha")
	b := f.user(t, "bilal")

	req, err := f.conns.CreateRequest(f.ctx, a, b, "hi, email me at a@b.com")
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != models.RequestPending || req.ConnectionStatus != models.ConnectionPending {
		t.Fatalf("initial state %s/%s", req.Status, req.ConnectionStatus)
	}

	var stored models.ConnectionRequest
	if err := f.db.First(&stored, "id = ?", req.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.InitialMessage != "hi, email me at "+contentfilter.ContactPlaceholder {
		t.Fatalf("stored initial message %q", stored.InitialMessage)
	}

	events := f.notes.events
	if len(events) != 1 || events[0].userID != b || events[0].kind != notify.KindRequestReceived {
		t.Fatalf("unexpected notifications %+v", events)
	}
	if events[0].payload["sender_name"] != "asha" {
		t.Fatalf("sender_name = %v", events[0].payload["sender_name"])
	}
}

func TestCreateRequestConflictAndReopen(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "asha")
	b := f.user(t, "bilal")

	first, err := f.conns.CreateRequest(f.ctx, a, b, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.conns.CreateRequest(f.ctx, b, a, ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("reverse request: got %v, want ErrConflict", err)
	}

	if _, err := f.conns.Transition(f.ctx, b, first.ID, TransitionInput{Status: statusPtr(models.RequestRejected)}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.conns.CreateRequest(f.ctx, b, a, ""); err != nil {
		t.Fatalf("request after rejection: %v", err)
	}
}

func TestNotificationFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture(t)
	f.notes.err = errors.New("push gateway down")
	a := f.user(t, "asha")
	b := f.user(t, "bilal")

	req, err := f.conns.CreateRequest(f.ctx, a, b, "")
	if err != nil {
		t.Fatalf("create failed because of notifier: %v", err)
	}
	if _, err := f.conns.Transition(f.ctx, b, req.ID, TransitionInput{Status: statusPtr(models.RequestApproved)}); err != nil {
		t.Fatalf("transition failed because of notifier: %v", err)
	}
}

func TestConcurrentCreateKeepsOneActivePerPair(t *testing.T) {
	f := newFixture(t)
	users := []uuid.UUID{f.user(t, "a"), f.user(t, "b"), f.user(t, "c"), f.user(t, "d")}

	type pair struct{ from, to uuid.UUID }
	var attempts []pair
	for i := range users {
		for j := range users {
			if i != j {
				for k := 0; k < 3; k++ {
					attempts = append(attempts, pair{users[i], users[j]})
				}
			}
		}
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created = map[string]int{}
	)
	for _, p := range attempts {
		wg.Add(1)
		go func(p pair) {
			defer wg.Done()
			_, err := f.conns.CreateRequest(f.ctx, p.from, p.to, "")
			switch {
			case err == nil:
				mu.Lock()
				created[models.PairKey(p.from, p.to)]++
				mu.Unlock()
			case !errors.Is(err, ErrConflict):
				t.Errorf("unexpected error: %v", err)
			}
		}(p)
	}
	wg.Wait()

	if len(created) != 6 {
		t.Fatalf("pairs with a request = %d, want 6", len(created))
	}
	for key, n := range created {
		if n != 1 {
			t.Errorf("pair %s has %d successful creates", key, n)
		}
	}
}

func TestTransitionPermissions(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "asha")
	b := f.user(t, "bilal")
	stranger := f.user(t, "stranger")

	req, err := f.conns.CreateRequest(f.ctx, a, b, "")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		actor uuid.UUID
		in    TransitionInput
		want  error
	}{
		{"sender cannot approve", a, TransitionInput{Status: statusPtr(models.RequestApproved)}, ErrForbidden},
		{"stranger sees nothing", stranger, TransitionInput{Status: statusPtr(models.RequestApproved)}, ErrNotFound},
		{"stranger cannot withdraw", stranger, TransitionInput{ConnectionStatus: connPtr(models.ConnectionRejected)}, ErrNotFound},
		{"empty input", b, TransitionInput{}, ErrInvalidArgument},
		{"bad status", b, TransitionInput{Status: statusPtr("maybe")}, ErrInvalidArgument},
		{"pending is not a target", b, TransitionInput{Status: statusPtr(models.RequestPending)}, ErrInvalidArgument},
		{"bad connection status", a, TransitionInput{ConnectionStatus: connPtr("engaged")}, ErrInvalidArgument},
		{"progress before approval", a, TransitionInput{ConnectionStatus: connPtr(models.ConnectionAccepted)}, ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.conns.Transition(f.ctx, tt.actor, req.ID, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := f.conns.Get(f.ctx, stranger, req.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger Get: %v", err)
	}
	if _, err := f.conns.Get(f.ctx, a, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing Get: %v", err)
	}
	if got, err := f.conns.Get(f.ctx, b, req.ID); err != nil || got.ID != req.ID {
		t.Fatalf("receiver Get: %v", err)
	}
}

func TestTransitionDefaults(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "asha")
	b := f.user(t, "bilal")
	c := f.user(t, "chitra")
	d := f.user(t, "dev")

	req, _ := f.conns.CreateRequest(f.ctx, a, b, "")
	approved, err := f.conns.Transition(f.ctx, b, req.ID, TransitionInput{Status: statusPtr(models.RequestApproved)})
	if err != nil {
		t.Fatal(err)
	}
	if approved.ConnectionStatus != models.ConnectionAccepted {
		t.Fatalf("default after approve = %s", approved.ConnectionStatus)
	}
	if approved.RejectionReason != "" {
		t.Fatalf("rejection reason set on approve: %q", approved.RejectionReason)
	}

	req2, _ := f.conns.CreateRequest(f.ctx, c, b, "")
	explicit, err := f.conns.Transition(f.ctx, b, req2.ID, TransitionInput{
		Status:           statusPtr(models.RequestApproved),
		ConnectionStatus: connPtr(models.ConnectionQuestionnaireSent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if explicit.ConnectionStatus != models.ConnectionQuestionnaireSent {
		t.Fatalf("explicit connection status = %s", explicit.ConnectionStatus)
	}

	req3, _ := f.conns.CreateRequest(f.ctx, d, b, "")
	rejected, err := f.conns.Transition(f.ctx, b, req3.ID, TransitionInput{
		Status:          statusPtr(models.RequestRejected),
		RejectionReason: strPtr("not now, reach me at 9876543210"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if rejected.ConnectionStatus != models.ConnectionRejected {
		t.Fatalf("default after reject = %s", rejected.ConnectionStatus)
	}
	if rejected.RejectionReason != "not now, reach me at "+contentfilter.ContactPlaceholder {
		t.Fatalf("rejection reason %q", rejected.RejectionReason)
	}

	if _, err := f.conns.Transition(f.ctx, b, req.ID, TransitionInput{Status: statusPtr(models.RequestRejected)}); !errors.Is(err, ErrConflict) {
		t.Fatalf("second status transition: got %v, want ErrConflict", err)
	}

	kinds := f.notes.kinds()
	want := []notify.Kind{
		notify.KindRequestReceived, notify.KindRequestApproved,
		notify.KindRequestReceived, notify.KindRequestApproved,
		notify.KindRequestReceived, notify.KindRequestRejected,
	}
	if len(kinds) != len(want) {
		t.Fatalf("notifications %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("notifications %v, want %v", kinds, want)
		}
	}
}

func TestRejectWithIncoherentConnectionStatus(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "asha")
	b := f.user(t, "bilal")
	req, _ := f.conns.CreateRequest(f.ctx, a, b, "")

	for _, conn := range []models.ConnectionStatus{
		models.ConnectionConnected,
		models.ConnectionAccepted,
		models.ConnectionQuestionnaireSent,
	} {
		_, err := f.conns.Transition(f.ctx, b, req.ID, TransitionInput{
			Status:           statusPtr(models.RequestRejected),
			ConnectionStatus: connPtr(conn),
		})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("reject with %s: got %v, want ErrInvalidArgument", conn, err)
		}
	}

	stored, err := f.conns.Get(f.ctx, a, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.RequestPending || stored.ConnectionStatus != models.ConnectionPending {
		t.Fatalf("request changed to %s/%s", stored.Status, stored.ConnectionStatus)
	}

	rejected, err := f.conns.Transition(f.ctx, b, req.ID, TransitionInput{
		Status:           statusPtr(models.RequestRejected),
		ConnectionStatus: connPtr(models.ConnectionRejected),
	})
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != models.RequestRejected || rejected.ConnectionStatus != models.ConnectionRejected {
		t.Fatalf("rejected = %s/%s", rejected.Status, rejected.ConnectionStatus)
	}
}

func TestConnectionStatusProgression(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "asha")
	b := f.user(t, "bilal")

	req, _ := f.conns.CreateRequest(f.ctx, a, b, "")
	if _, err := f.conns.Transition(f.ctx, b, req.ID, TransitionInput{Status: statusPtr(models.RequestApproved)}); err != nil {
		t.Fatal(err)
	}

	for _, step := range []struct {
		actor uuid.UUID
		to    models.ConnectionStatus
	}{
		{a, models.ConnectionQuestionnaireSent},
		{b, models.ConnectionQuestionnaireCompleted},
		{a, models.ConnectionConnected},
	} {
		got, err := f.conns.Transition(f.ctx, step.actor, req.ID, TransitionInput{ConnectionStatus: connPtr(step.to)})
		if err != nil {
			t.Fatalf("-> %s: %v", step.to, err)
		}
		if got.ConnectionStatus != step.to || got.Status != models.RequestApproved {
			t.Fatalf("state %s/%s after -> %s", got.Status, got.ConnectionStatus, step.to)
		}
	}

	_, err := f.conns.Transition(f.ctx, a, req.ID, TransitionInput{ConnectionStatus: connPtr(models.ConnectionRejected)})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("leaving connected: got %v, want ErrConflict", err)
	}
}

func TestWithdrawAndTerminalRejected(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "asha")
	b := f.user(t, "bilal")

	req, _ := f.conns.CreateRequest(f.ctx, a, b, "")
	withdrawn, err := f.conns.Transition(f.ctx, a, req.ID, TransitionInput{
		ConnectionStatus: connPtr(models.ConnectionRejected),
		RejectionReason:  strPtr("changed my mind"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if withdrawn.Status != models.RequestPending || withdrawn.ConnectionStatus != models.ConnectionRejected {
		t.Fatalf("withdrawn state %s/%s", withdrawn.Status, withdrawn.ConnectionStatus)
	}
	if withdrawn.RejectionReason != "changed my mind" {
		t.Fatalf("reason %q", withdrawn.RejectionReason)
	}

	if _, err := f.conns.Transition(f.ctx, b, req.ID, TransitionInput{ConnectionStatus: connPtr(models.ConnectionAccepted)}); !errors.Is(err, ErrConflict) {
		t.Fatalf("leaving rejected: got %v, want ErrConflict", err)
	}
	if _, err := f.conns.Transition(f.ctx, b, req.ID, TransitionInput{Status: statusPtr(models.RequestApproved)}); !errors.Is(err, ErrConflict) {
		t.Fatalf("approve after withdraw: got %v, want ErrConflict", err)
	}

	// The withdrawn request no longer holds the pair.
	if _, err := f.conns.CreateRequest(f.ctx, b, a, ""); err != nil {
		t.Fatalf("new request after withdraw: %v", err)
	}
}

func TestConcurrentTransitionOneWinner(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "asha")

	for i := 0; i < 10; i++ {
		b := f.user(t, "bilal")
		req, err := f.conns.CreateRequest(f.ctx, a, b, "")
		if err != nil {
			t.Fatal(err)
		}

		targets := []models.RequestStatus{models.RequestApproved, models.RequestRejected}
		errs := make([]error, len(targets))
		var wg sync.WaitGroup
		for j, target := range targets {
			wg.Add(1)
			go func(j int, target models.RequestStatus) {
				defer wg.Done()
				_, errs[j] = f.conns.Transition(f.ctx, b, req.ID, TransitionInput{Status: statusPtr(target)})
			}(j, target)
		}
		wg.Wait()

		successes, conflicts := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if successes != 1 || conflicts != 1 {
			t.Fatalf("round %d: successes=%d conflicts=%d", i, successes, conflicts)
		}
	}
}

func TestListRequests(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "asha")
	b := f.user(t, "bilal")
	c := f.user(t, "chitra")

	f.conns.CreateRequest(f.ctx, a, b, "")
	f.conns.CreateRequest(f.ctx, c, a, "")

	sent, err := f.conns.ListRequests(f.ctx, a, repository.BoxSent, 0, -5)
	if err != nil {
		t.Fatal(err)
	}
	if sent.Total != 1 || len(sent.Requests) != 1 || sent.Requests[0].ReceiverID != b {
		t.Fatalf("sent box = %+v", sent)
	}
	if sent.Limit != 20 || sent.Offset != 0 {
		t.Fatalf("page bounds = %d/%d, want 20/0", sent.Limit, sent.Offset)
	}
	all, err := f.conns.ListRequests(f.ctx, a, "", 500, 0)
	if err != nil {
		t.Fatal(err)
	}
	if all.Total != 2 || all.Limit != 20 {
		t.Fatalf("all box = %+v", all)
	}
	if _, err := f.conns.ListRequests(f.ctx, a, "archived", 10, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("bad box: %v", err)
	}
}
