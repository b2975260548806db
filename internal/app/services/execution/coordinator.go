// Package execution serializes the transition from "quorum reached" to
// "executed exactly once". The coordinator claims a proposal by
// compare-and-setting its terminal event from none to the executing sentinel,
// performs the side effect through the external executor, then either commits
// the executed event or rolls the claim back so the proposal stays
// executable.
package execution

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/proposal"
	"github.com/Quorum-Labs/treasury_layer/internal/app/metrics"
	"github.com/Quorum-Labs/treasury_layer/internal/app/storage"
	apperr "github.com/Quorum-Labs/treasury_layer/internal/errors"
	"github.com/Quorum-Labs/treasury_layer/pkg/logger"
)

// Result is the opaque outcome of a successful execution.
type Result struct {
	Reference  string    `json:"reference"`
	ExecutedAt time.Time `json:"executed_at"`
}

// TransactionExecutor performs the proposal's underlying action. The payload
// and the returned reference are opaque to this engine.
type TransactionExecutor interface {
	Execute(ctx context.Context, payload string) (string, error)
}

// NoopExecutor acknowledges execution without touching any ledger. It stands
// in for the real executor in tests and local development.
type NoopExecutor struct{}

func (NoopExecutor) Execute(context.Context, string) (string, error) {
	return "noop-" + uuid.NewString(), nil
}

// Coordinator drives the claim-then-act protocol.
type Coordinator struct {
	wallets  storage.WalletStore
	store    storage.ProposalStore
	executor TransactionExecutor
	log      *logger.Logger
}

// New constructs an execution coordinator bound to a default executor. Pass
// executor nil to require one per call.
func New(wallets storage.WalletStore, store storage.ProposalStore, executor TransactionExecutor, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewDefault("execution")
	}
	return &Coordinator{wallets: wallets, store: store, executor: executor, log: log}
}

// Execute attempts to execute an approved proposal exactly once. Concurrent
// callers race on the claim: one wins, the rest fail with AlreadyExecuted.
// Executor failures roll the claim back, so a later retry is at the caller's
// discretion.
func (c *Coordinator) Execute(ctx context.Context, proposalID string) (Result, error) {
	return c.ExecuteWith(ctx, proposalID, c.executor)
}

// ExecuteWith is Execute with an explicit executor collaborator.
func (c *Coordinator) ExecuteWith(ctx context.Context, proposalID string, executor TransactionExecutor) (Result, error) {
	if executor == nil {
		return Result{}, apperr.New(apperr.CodeExecutionFailed, "no transaction executor configured")
	}

	p, err := c.store.GetProposal(ctx, proposalID)
	if err != nil {
		return Result{}, err
	}
	w, err := c.wallets.GetWallet(ctx, p.WalletID)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()

	// Phase one: claim. The mutator runs under the proposal's lock, so the
	// terminal check and the sentinel write are a single atomic step.
	claimed, err := c.store.MutateProposal(ctx, proposalID, func(p *proposal.Proposal) error {
		switch p.Terminal.Kind {
		case proposal.TerminalExecuting, proposal.TerminalExecuted:
			return apperr.AlreadyExecuted(p.ID)
		case proposal.TerminalCancelled, proposal.TerminalRejected:
			return apperr.ProposalClosed(p.ID, string(p.Terminal.Kind))
		}
		if p.SignatureCount() < w.Threshold {
			return apperr.ThresholdNotMet(p.ID, p.SignatureCount(), w.Threshold)
		}
		p.Terminal = proposal.TerminalEvent{Kind: proposal.TerminalExecuting, At: time.Now().UTC()}
		return nil
	})
	if err != nil {
		if apperr.HasCode(err, apperr.CodeAlreadyExecuted) {
			metrics.RecordExecution("lost_race", time.Since(start))
		}
		return Result{}, err
	}

	// Phase two: act. Only the claim winner reaches this point.
	reference, execErr := executor.Execute(ctx, claimed.Payload)
	if execErr != nil {
		// Roll the claim back so the proposal remains approved and
		// executable again.
		if _, rbErr := c.store.MutateProposal(ctx, proposalID, func(p *proposal.Proposal) error {
			if p.Terminal.Kind == proposal.TerminalExecuting {
				p.Terminal = proposal.TerminalEvent{}
			}
			return nil
		}); rbErr != nil {
			c.log.WithError(rbErr).WithField("proposal_id", proposalID).Error("failed to release execution claim")
		}
		metrics.RecordExecution("failed", time.Since(start))
		c.log.WithError(execErr).WithField("proposal_id", proposalID).Warn("execution failed; claim released")
		return Result{}, apperr.ExecutionFailed(proposalID, execErr)
	}

	executedAt := time.Now().UTC()
	if _, err := c.store.MutateProposal(ctx, proposalID, func(p *proposal.Proposal) error {
		p.Terminal = proposal.TerminalEvent{
			Kind:   proposal.TerminalExecuted,
			At:     executedAt,
			Result: reference,
		}
		return nil
	}); err != nil {
		// The side effect happened; surface the storage fault but keep the
		// invariant honest in logs.
		c.log.WithError(err).WithField("proposal_id", proposalID).Error("executed but failed to record terminal event")
		return Result{}, err
	}

	metrics.RecordExecution("executed", time.Since(start))
	c.log.WithField("proposal_id", proposalID).
		WithField("wallet_id", p.WalletID).
		WithField("reference", reference).
		Info("proposal executed")
	return Result{Reference: reference, ExecutedAt: executedAt}, nil
}
