package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestBlockUser(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "asha")
	b := f.user(t, "bilal")

	if _, err := f.moderation.BlockUser(f.ctx, a, a); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("self block: %v", err)
	}
	if _, err := f.moderation.BlockUser(f.ctx, a, b); err != nil {
		t.Fatal(err)
	}
	if _, err := f.moderation.BlockUser(f.ctx, a, b); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate block: %v", err)
	}

	for _, pair := range [][2]uuid.UUID{{a, b}, {b, a}} {
		blocked, err := f.moderation.IsBlockedEitherWay(f.ctx, pair[0], pair[1])
		if err != nil || !blocked {
			t.Fatalf("IsBlockedEitherWay = %v, %v", blocked, err)
		}
	}

	ids, err := f.moderation.GetBlockedIDs(f.ctx, a)
	if err != nil || len(ids) != 1 || ids[0] != b {
		t.Fatalf("GetBlockedIDs = %v, %v", ids, err)
	}

	if err := f.moderation.UnblockUser(f.ctx, a, b); err != nil {
		t.Fatal(err)
	}
	if err := f.moderation.UnblockUser(f.ctx, a, b); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second unblock: %v", err)
	}
	if blocked, _ := f.moderation.IsBlockedEitherWay(f.ctx, a, b); blocked {
		t.Fatal("still blocked after unblock")
	}
}

func TestProfileDirectory(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "asha")
	blank := f.user(t, "  ")
	unknown := uuid.New()

	names := f.profiles.DisplayNames(f.ctx, []uuid.UUID{a, blank, unknown})
	if names[a] != "asha" || names[blank] != "Member" || names[unknown] != "Member" {
		t.Fatalf("names = %v", names)
	}
	if ok, err := f.profiles.IsEligibleReceiver(f.ctx, unknown); ok || err != nil {
		t.Fatalf("unknown eligible = %v, %v", ok, err)
	}
	if ok, _ := f.profiles.IsEligibleReceiver(f.ctx, a); !ok {
		t.Fatal("active verified member not eligible")
	}
}
