// Package notifications derives per-wallet pending counts and recent-activity
// feeds. It is purely read-side: every answer is recomputed from committed
// proposal state, so there is no cached counter that can drift from the
// source of truth.
package notifications

import (
	"context"
	"sort"
	"time"

	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/proposal"
	"github.com/Quorum-Labs/treasury_layer/internal/app/storage"
	"github.com/Quorum-Labs/treasury_layer/pkg/logger"
)

// Activity describes one change to a proposal, reconstructed from its record.
type Activity struct {
	ProposalID   string          `json:"proposal_id"`
	Status       proposal.Status `json:"status"`
	ChangedField string          `json:"changed_field"`
	At           time.Time       `json:"at"`
}

// Service answers notification queries for wallets.
type Service struct {
	wallets   storage.WalletStore
	proposals storage.ProposalStore
	log       *logger.Logger
}

// New constructs a notification service.
func New(wallets storage.WalletStore, proposals storage.ProposalStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Service{wallets: wallets, proposals: proposals, log: log}
}

// PendingCount returns the number of the wallet's proposals whose derived
// status is pending.
func (s *Service) PendingCount(ctx context.Context, walletID string) (int, error) {
	w, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return 0, err
	}
	list, err := s.proposals.ListProposals(ctx, walletID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, p := range list {
		if proposal.DeriveStatus(p, w.Threshold) == proposal.StatusPending {
			count++
		}
	}
	return count, nil
}

// RecentActivity returns the wallet's most recent proposal changes, newest
// first, at most limit entries. The feed is rebuilt from proposal records on
// every call, so repeated calls are side-effect free.
func (s *Service) RecentActivity(ctx context.Context, walletID string, limit int) ([]Activity, error) {
	w, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	list, err := s.proposals.ListProposals(ctx, walletID)
	if err != nil {
		return nil, err
	}

	feed := make([]Activity, 0, len(list))
	for _, p := range list {
		feed = append(feed, replay(p, w.Threshold)...)
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].At.After(feed[j].At)
	})
	if limit > 0 && len(feed) > limit {
		feed = feed[:limit]
	}
	return feed, nil
}

// replay reconstructs a proposal's change history: creation, each signature
// and the terminal event, with the status the proposal had after each step.
func replay(p proposal.Proposal, threshold int) []Activity {
	events := make([]Activity, 0, len(p.Signatures)+2)

	events = append(events, Activity{
		ProposalID:   p.ID,
		Status:       proposal.StatusPending,
		ChangedField: "proposal",
		At:           p.CreatedAt,
	})

	for i, sig := range p.Signatures {
		status := proposal.StatusPending
		if i+1 >= threshold {
			status = proposal.StatusApproved
		}
		events = append(events, Activity{
			ProposalID:   p.ID,
			Status:       status,
			ChangedField: "signatures",
			At:           sig.SignedAt,
		})
	}

	switch p.Terminal.Kind {
	case proposal.TerminalExecuted, proposal.TerminalCancelled, proposal.TerminalRejected:
		events = append(events, Activity{
			ProposalID:   p.ID,
			Status:       proposal.DeriveStatus(p, threshold),
			ChangedField: "terminal_event",
			At:           p.Terminal.At,
		})
	}
	return events
}
