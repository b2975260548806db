package proposals

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/proposal"
	"github.com/Quorum-Labs/treasury_layer/internal/app/services/wallets"
	"github.com/Quorum-Labs/treasury_layer/internal/app/storage/memory"
	apperr "github.com/Quorum-Labs/treasury_layer/internal/errors"
)

func newFixture(t *testing.T, threshold int, members ...string) (*Service, string) {
	t.Helper()
	store := memory.New()
	registry := wallets.New(store, nil)
	w, err := registry.Create(context.Background(), "treasury", members, threshold, "")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return New(store, store, nil, nil), w.ID
}

func TestCreateRequiresMembership(t *testing.T) {
	svc, walletID := newFixture(t, 2, "alice", "bob", "carol")
	ctx := context.Background()

	p, err := svc.Create(ctx, walletID, "alice", "transfer 10", "ops payout")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Status != proposal.StatusPending {
		t.Fatalf("new proposal status = %s, want pending", p.Status)
	}
	if p.SignatureCount() != 0 {
		t.Fatalf("creator signature must not be auto-applied")
	}

	if _, err := svc.Create(ctx, walletID, "mallory", "drain", ""); !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for non-member, got %v", err)
	}
	if _, err := svc.Create(ctx, "missing", "alice", "x", ""); !apperr.HasCode(err, apperr.CodeWalletNotFound) {
		t.Fatalf("expected WALLET_NOT_FOUND, got %v", err)
	}
}

// Scenario: {A,B,C} threshold 2. A creates, A signs, B signs, quorum.
func TestSignReachesQuorum(t *testing.T) {
	svc, walletID := newFixture(t, 2, "alice", "bob", "carol")
	ctx := context.Background()

	p, err := svc.Create(ctx, walletID, "alice", "transfer 10", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	afterA, err := svc.Sign(ctx, p.ID, "alice", "sig-a")
	if err != nil {
		t.Fatalf("sign alice: %v", err)
	}
	if afterA.Status != proposal.StatusPending || afterA.SignatureCount() != 1 {
		t.Fatalf("after alice: status=%s count=%d", afterA.Status, afterA.SignatureCount())
	}

	afterB, err := svc.Sign(ctx, p.ID, "bob", "sig-b")
	if err != nil {
		t.Fatalf("sign bob: %v", err)
	}
	if afterB.Status != proposal.StatusApproved || afterB.SignatureCount() != 2 {
		t.Fatalf("after bob: status=%s count=%d", afterB.Status, afterB.SignatureCount())
	}
}

func TestSignRejectsDuplicates(t *testing.T) {
	svc, walletID := newFixture(t, 2, "alice", "bob")
	ctx := context.Background()

	p, _ := svc.Create(ctx, walletID, "alice", "tx", "")
	if _, err := svc.Sign(ctx, p.ID, "alice", "sig-1"); err != nil {
		t.Fatalf("first sign: %v", err)
	}

	_, err := svc.Sign(ctx, p.ID, "alice", "sig-2")
	if !apperr.HasCode(err, apperr.CodeDuplicateSignature) {
		t.Fatalf("expected DUPLICATE_SIGNATURE, got %v", err)
	}

	got, _ := svc.Get(ctx, p.ID)
	if got.SignatureCount() != 1 {
		t.Fatalf("failed duplicate must not change signatures, got %d", got.SignatureCount())
	}
}

func TestSignRejectsNonMembers(t *testing.T) {
	svc, walletID := newFixture(t, 2, "alice", "bob")
	ctx := context.Background()

	p, _ := svc.Create(ctx, walletID, "alice", "tx", "")
	if _, err := svc.Sign(ctx, p.ID, "mallory", "sig"); !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
	if _, err := svc.Sign(ctx, "missing", "alice", "sig"); !apperr.HasCode(err, apperr.CodeProposalNotFound) {
		t.Fatalf("expected PROPOSAL_NOT_FOUND, got %v", err)
	}
}

func TestConcurrentSameSignerRace(t *testing.T) {
	svc, walletID := newFixture(t, 3, "alice", "bob", "carol")
	ctx := context.Background()

	p, _ := svc.Create(ctx, walletID, "alice", "tx", "")

	const n = 16
	errs := make(chan error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := svc.Sign(ctx, p.ID, "bob", fmt.Sprintf("sig-%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.HasCode(err, apperr.CodeDuplicateSignature):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != n-1 {
		t.Fatalf("same-signer race: ok=%d dup=%d", ok, dup)
	}
}

// Scenario: C cannot cancel A's proposal; A can; closed proposals refuse
// signatures.
func TestCancelAuthorization(t *testing.T) {
	svc, walletID := newFixture(t, 2, "alice", "bob", "carol")
	ctx := context.Background()

	p, _ := svc.Create(ctx, walletID, "alice", "tx", "")

	if _, err := svc.Cancel(ctx, p.ID, "carol"); !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for non-creator, got %v", err)
	}

	cancelled, err := svc.Cancel(ctx, p.ID, "alice")
	if err != nil {
		t.Fatalf("creator cancel: %v", err)
	}
	if cancelled.Status != proposal.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	if _, err := svc.Sign(ctx, p.ID, "bob", "sig"); !apperr.HasCode(err, apperr.CodeProposalClosed) {
		t.Fatalf("expected PROPOSAL_CLOSED after cancel, got %v", err)
	}
	if _, err := svc.Cancel(ctx, p.ID, "alice"); !apperr.HasCode(err, apperr.CodeProposalClosed) {
		t.Fatalf("expected PROPOSAL_CLOSED on double cancel, got %v", err)
	}
}

func TestCancelForbiddenOnceApproved(t *testing.T) {
	svc, walletID := newFixture(t, 2, "alice", "bob")
	ctx := context.Background()

	p, _ := svc.Create(ctx, walletID, "alice", "tx", "")
	_, _ = svc.Sign(ctx, p.ID, "alice", "sig-a")
	_, _ = svc.Sign(ctx, p.ID, "bob", "sig-b")

	if _, err := svc.Cancel(ctx, p.ID, "alice"); !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("approved proposal must not be cancellable unilaterally, got %v", err)
	}

	// The rejection path still closes it.
	rejected, err := svc.Reject(ctx, p.ID, "bob", "payee flagged")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != proposal.StatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}
	if rejected.Terminal.Reason != "payee flagged" {
		t.Fatalf("rejection reason not recorded: %+v", rejected.Terminal)
	}
}

func TestRejectRequiresMembership(t *testing.T) {
	svc, walletID := newFixture(t, 2, "alice", "bob")
	ctx := context.Background()

	p, _ := svc.Create(ctx, walletID, "alice", "tx", "")
	if _, err := svc.Reject(ctx, p.ID, "mallory", "nope"); !apperr.HasCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestListWithStatusFilter(t *testing.T) {
	svc, walletID := newFixture(t, 2, "alice", "bob")
	ctx := context.Background()

	first, _ := svc.Create(ctx, walletID, "alice", "tx-1", "")
	second, _ := svc.Create(ctx, walletID, "alice", "tx-2", "")
	_, _ = svc.Sign(ctx, second.ID, "alice", "s1")
	_, _ = svc.Sign(ctx, second.ID, "bob", "s2")

	all, err := svc.List(ctx, walletID, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}

	pending, err := svc.List(ctx, walletID, proposal.StatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != first.ID {
		t.Fatalf("pending filter mismatch: %+v", pending)
	}

	approved, err := svc.List(ctx, walletID, proposal.StatusApproved)
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	if len(approved) != 1 || approved[0].ID != second.ID {
		t.Fatalf("approved filter mismatch: %+v", approved)
	}
}

func TestSignaturesAndProgress(t *testing.T) {
	svc, walletID := newFixture(t, 2, "alice", "bob", "carol")
	ctx := context.Background()

	p, _ := svc.Create(ctx, walletID, "alice", "tx", "")
	_, _ = svc.Sign(ctx, p.ID, "carol", "sig-c")

	sigs, err := svc.Signatures(ctx, p.ID)
	if err != nil {
		t.Fatalf("signatures: %v", err)
	}
	if len(sigs) != 1 || sigs[0].Signer != "carol" || sigs[0].ID == "" {
		t.Fatalf("unexpected signatures: %+v", sigs)
	}

	progress, err := svc.GetProgress(ctx, p.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Status != proposal.StatusPending || progress.Signatures != 1 || progress.Threshold != 2 {
		t.Fatalf("unexpected progress: %+v", progress)
	}
}

type fixedVerifier struct {
	valid map[string]bool
}

func (v fixedVerifier) Verify(_ context.Context, signer, _, _ string) (bool, error) {
	return v.valid[signer], nil
}

func TestSignWithVerifier(t *testing.T) {
	store := memory.New()
	registry := wallets.New(store, nil)
	w, err := registry.Create(context.Background(), "t", []string{"alice", "bob"}, 2, "")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	svc := New(store, store, fixedVerifier{valid: map[string]bool{"alice": true}}, nil)
	ctx := context.Background()

	p, _ := svc.Create(ctx, w.ID, "alice", "tx", "")
	if _, err := svc.Sign(ctx, p.ID, "alice", "good"); err != nil {
		t.Fatalf("verified sign: %v", err)
	}
	if _, err := svc.Sign(ctx, p.ID, "bob", "bad"); !apperr.HasCode(err, apperr.CodeInvalidSignature) {
		t.Fatalf("expected INVALID_SIGNATURE, got %v", err)
	}
}
