package notifications

import (
	"context"
	"testing"

	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/proposal"
	"github.com/Quorum-Labs/treasury_layer/internal/app/services/execution"
	"github.com/Quorum-Labs/treasury_layer/internal/app/services/proposals"
	"github.com/Quorum-Labs/treasury_layer/internal/app/services/wallets"
	"github.com/Quorum-Labs/treasury_layer/internal/app/storage/memory"
	apperr "github.com/Quorum-Labs/treasury_layer/internal/errors"
)

type fixture struct {
	store    *memory.Store
	props    *proposals.Service
	notifier *Service
	walletID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	registry := wallets.New(store, nil)
	w, err := registry.Create(context.Background(), "treasury", []string{"alice", "bob", "carol"}, 2, "")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return &fixture{
		store:    store,
		props:    proposals.New(store, store, nil, nil),
		notifier: New(store, store, nil),
		walletID: w.ID,
	}
}

func TestPendingCountTracksDerivedStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	count, err := f.notifier.PendingCount(ctx, f.walletID)
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if count != 0 {
		t.Fatalf("empty wallet pending = %d, want 0", count)
	}

	first, _ := f.props.Create(ctx, f.walletID, "alice", "tx-1", "")
	second, _ := f.props.Create(ctx, f.walletID, "alice", "tx-2", "")

	count, _ = f.notifier.PendingCount(ctx, f.walletID)
	if count != 2 {
		t.Fatalf("pending = %d, want 2", count)
	}

	// Approving one removes it from the pending count without any cache
	// invalidation step.
	_, _ = f.props.Sign(ctx, first.ID, "alice", "s1")
	_, _ = f.props.Sign(ctx, first.ID, "bob", "s2")
	count, _ = f.notifier.PendingCount(ctx, f.walletID)
	if count != 1 {
		t.Fatalf("pending after approval = %d, want 1", count)
	}

	_, _ = f.props.Cancel(ctx, second.ID, "alice")
	count, _ = f.notifier.PendingCount(ctx, f.walletID)
	if count != 0 {
		t.Fatalf("pending after cancel = %d, want 0", count)
	}
}

func TestPendingCountUnknownWallet(t *testing.T) {
	f := newFixture(t)
	if _, err := f.notifier.PendingCount(context.Background(), "missing"); !apperr.HasCode(err, apperr.CodeWalletNotFound) {
		t.Fatalf("expected WALLET_NOT_FOUND, got %v", err)
	}
}

func TestRecentActivityOrderingAndLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, _ := f.props.Create(ctx, f.walletID, "alice", "tx", "")
	_, _ = f.props.Sign(ctx, p.ID, "alice", "s1")
	_, _ = f.props.Sign(ctx, p.ID, "bob", "s2")
	coord := execution.New(f.store, f.store, execution.NoopExecutor{}, nil)
	if _, err := coord.Execute(ctx, p.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}

	feed, err := f.notifier.RecentActivity(ctx, f.walletID, 10)
	if err != nil {
		t.Fatalf("recent activity: %v", err)
	}
	// creation + two signatures + terminal event
	if len(feed) != 4 {
		t.Fatalf("feed length = %d, want 4", len(feed))
	}
	if feed[0].ChangedField != "terminal_event" || feed[0].Status != proposal.StatusExecuted {
		t.Fatalf("newest entry should be the execution, got %+v", feed[0])
	}
	if feed[len(feed)-1].ChangedField != "proposal" {
		t.Fatalf("oldest entry should be the creation, got %+v", feed[len(feed)-1])
	}
	for i := 1; i < len(feed); i++ {
		if feed[i].At.After(feed[i-1].At) {
			t.Fatalf("feed not newest-first at %d", i)
		}
	}

	limited, err := f.notifier.RecentActivity(ctx, f.walletID, 2)
	if err != nil {
		t.Fatalf("limited activity: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit not applied, got %d entries", len(limited))
	}

	// Restartable: a second call yields the same answer.
	again, _ := f.notifier.RecentActivity(ctx, f.walletID, 10)
	if len(again) != len(feed) {
		t.Fatalf("repeated call changed the feed: %d vs %d", len(again), len(feed))
	}
}

func TestRecentActivityStatusReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, _ := f.props.Create(ctx, f.walletID, "alice", "tx", "")
	_, _ = f.props.Sign(ctx, p.ID, "alice", "s1")
	_, _ = f.props.Sign(ctx, p.ID, "bob", "s2")

	feed, err := f.notifier.RecentActivity(ctx, f.walletID, 0)
	if err != nil {
		t.Fatalf("recent activity: %v", err)
	}
	if len(feed) != 3 {
		t.Fatalf("feed length = %d, want 3", len(feed))
	}
	// Second signature crossed the threshold.
	if feed[0].Status != proposal.StatusApproved {
		t.Fatalf("quorum signature status = %s, want approved", feed[0].Status)
	}
	if feed[1].Status != proposal.StatusPending {
		t.Fatalf("first signature status = %s, want pending", feed[1].Status)
	}
}
