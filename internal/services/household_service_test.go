package services

import (
	"context"
	"errors"
	"testing"

	"casa/internal/core"
)

func TestHouseholdService_CreateAndJoin(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")

	svc := NewHouseholdService(s)
	h, err := svc.Create(ctx, ana.ID, "Via Roma 12")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(h.Code) != joinCodeLength {
		t.Fatalf("code %q has wrong length", h.Code)
	}

	joined, err := svc.Join(ctx, bob.ID, h.Code)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.ID != h.ID {
		t.Fatalf("joined wrong household: %s", joined.ID)
	}

	got, members, err := svc.Current(ctx, bob.ID)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got.ID != h.ID {
		t.Fatalf("current household = %s, want %s", got.ID, h.ID)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	// The creator joined first
	if members[0].ID != ana.ID {
		t.Fatalf("expected creator first, got %s", members[0].Username)
	}
}

func TestHouseholdService_JoinUnknownCode(t *testing.T) {
	s := testStore(t)
	bob := seedUser(t, s, "bob")

	svc := NewHouseholdService(s)
	if _, err := svc.Join(context.Background(), bob.ID, "ZZZZZZ"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHouseholdService_JoinTwice(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")

	svc := NewHouseholdService(s)
	h, err := svc.Create(ctx, ana.ID, "Via Roma 12")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Join(ctx, bob.ID, h.Code); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.Join(ctx, bob.ID, h.Code); !errors.Is(err, core.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestHouseholdService_Leave(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")

	svc := NewHouseholdService(s)
	h, err := svc.Create(ctx, ana.ID, "Via Roma 12")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Join(ctx, bob.ID, h.Code); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := svc.Leave(ctx, ana.ID); !errors.Is(err, core.ErrCreatorCannotLeave) {
		t.Fatalf("expected ErrCreatorCannotLeave, got %v", err)
	}
	if err := svc.Leave(ctx, bob.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, _, err := svc.Current(ctx, bob.ID); !errors.Is(err, core.ErrNoHousehold) {
		t.Fatalf("expected ErrNoHousehold after leave, got %v", err)
	}
}

func TestHouseholdService_Delete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ana := seedUser(t, s, "ana")
	bob := seedUser(t, s, "bob")

	svc := NewHouseholdService(s)
	h, err := svc.Create(ctx, ana.ID, "Via Roma 12")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Join(ctx, bob.ID, h.Code); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := svc.Delete(ctx, bob.ID); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-creator, got %v", err)
	}
	if err := svc.Delete(ctx, ana.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Every member loses their current household
	for _, u := range []*core.User{ana, bob} {
		if _, _, err := svc.Current(ctx, u.ID); !errors.Is(err, core.ErrNoHousehold) {
			t.Fatalf("expected ErrNoHousehold for %s, got %v", u.Username, err)
		}
	}
}

func TestGenerateJoinCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateJoinCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != joinCodeLength {
			t.Fatalf("code %q has wrong length", code)
		}
		for _, c := range code {
			switch c {
			case 'I', 'O', '0', '1':
				t.Fatalf("code %q contains ambiguous character %q", code, c)
			}
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Fatalf("suspiciously many collisions: %d unique of 50", len(seen))
	}
}
