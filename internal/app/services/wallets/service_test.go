package wallets

import (
	"context"
	"testing"

	"github.com/Quorum-Labs/treasury_layer/internal/app/storage/memory"
	apperr "github.com/Quorum-Labs/treasury_layer/internal/errors"
)

func TestCreateAndGet(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	w, err := svc.Create(ctx, "treasury", []string{"alice", "bob", "carol"}, 2, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.ID == "" {
		t.Fatalf("expected id to be generated")
	}
	if w.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}

	got, err := svc.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Threshold != 2 || len(got.Members) != 3 {
		t.Fatalf("unexpected wallet: %+v", got)
	}
}

func TestCreateRejectsInvalidThreshold(t *testing.T) {
	svc := New(memory.New(), nil)

	_, err := svc.Create(context.Background(), "T", []string{"a", "b"}, 3, "")
	if !apperr.HasCode(err, apperr.CodeInvalidThreshold) {
		t.Fatalf("expected INVALID_THRESHOLD, got %v", err)
	}
}

func TestCreateRejectsInvalidMembers(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "T", []string{"a"}, 1, ""); !apperr.HasCode(err, apperr.CodeInvalidMembers) {
		t.Fatalf("expected INVALID_MEMBERS for single member, got %v", err)
	}
	if _, err := svc.Create(ctx, "T", []string{"a", "a"}, 1, ""); !apperr.HasCode(err, apperr.CodeInvalidMembers) {
		t.Fatalf("expected INVALID_MEMBERS for duplicates, got %v", err)
	}
}

func TestListFiltersByMember(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "first", []string{"alice", "bob"}, 1, ""); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := svc.Create(ctx, "second", []string{"bob", "carol"}, 2, ""); err != nil {
		t.Fatalf("create second: %v", err)
	}

	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 || all[0].Name != "first" {
		t.Fatalf("expected both wallets oldest first, got %+v", all)
	}

	forCarol, err := svc.List(ctx, "carol")
	if err != nil {
		t.Fatalf("list carol: %v", err)
	}
	if len(forCarol) != 1 || forCarol[0].Name != "second" {
		t.Fatalf("expected only second wallet for carol, got %+v", forCarol)
	}
}
