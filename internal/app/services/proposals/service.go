// Package proposals implements the proposal workflow: creation, signing,
// cancellation and rejection, with status always derived from committed
// state.
package proposals

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/proposal"
	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/wallet"
	"github.com/Quorum-Labs/treasury_layer/internal/app/metrics"
	"github.com/Quorum-Labs/treasury_layer/internal/app/storage"
	apperr "github.com/Quorum-Labs/treasury_layer/internal/errors"
	"github.com/Quorum-Labs/treasury_layer/pkg/logger"
)

// SignatureVerifier checks a signature blob against the signer and payload.
// The engine never validates cryptographic material itself; when no verifier
// is configured, blobs are treated as pre-verified opaque tokens.
type SignatureVerifier interface {
	Verify(ctx context.Context, signer, payload, blob string) (bool, error)
}

// View is a proposal together with its derived status.
type View struct {
	proposal.Proposal
	Status proposal.Status `json:"status"`
}

// Progress summarizes how close a proposal is to quorum.
type Progress struct {
	Status     proposal.Status `json:"status"`
	Signatures int             `json:"signatures"`
	Threshold  int             `json:"threshold"`
}

// Service manages proposal records and their signature sets.
type Service struct {
	wallets  storage.WalletStore
	store    storage.ProposalStore
	verifier SignatureVerifier
	log      *logger.Logger
}

// New constructs a proposal service. verifier may be nil.
func New(wallets storage.WalletStore, store storage.ProposalStore, verifier SignatureVerifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("proposals")
	}
	return &Service{wallets: wallets, store: store, verifier: verifier, log: log}
}

// Create records a new proposal. The creator must be a wallet member; their
// own signature is not applied implicitly.
func (s *Service) Create(ctx context.Context, walletID, creator, payload, description string) (View, error) {
	w, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return View{}, err
	}
	if !w.HasMember(creator) {
		return View{}, apperr.Unauthorized(creator, "only wallet members may create proposals")
	}

	created, err := s.store.CreateProposal(ctx, proposal.Proposal{
		WalletID:    walletID,
		Payload:     payload,
		CreatedBy:   creator,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		return View{}, err
	}
	metrics.RecordProposalCreated()
	s.log.WithField("proposal_id", created.ID).
		WithField("wallet_id", walletID).
		WithField("created_by", creator).
		Info("proposal created")
	return View{Proposal: created, Status: proposal.DeriveStatus(created, w.Threshold)}, nil
}

// Sign appends one signature from a member that has never signed. Signing
// twice fails with DuplicateSignature so callers can distinguish "already
// signed" from "new signature accepted".
func (s *Service) Sign(ctx context.Context, proposalID, signer, blob string) (View, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return View{}, err
	}
	w, err := s.wallets.GetWallet(ctx, p.WalletID)
	if err != nil {
		return View{}, err
	}
	if !w.HasMember(signer) {
		return View{}, apperr.Unauthorized(signer, "signer is not a member of this wallet")
	}

	if s.verifier != nil {
		ok, err := s.verifier.Verify(ctx, signer, p.Payload, blob)
		if err != nil {
			return View{}, apperr.Wrap(apperr.CodeInvalidSignature, "signature verification failed", err)
		}
		if !ok {
			return View{}, apperr.InvalidSignature(proposalID, signer)
		}
	}

	updated, err := s.store.MutateProposal(ctx, proposalID, func(p *proposal.Proposal) error {
		if p.Closed() {
			return apperr.ProposalClosed(p.ID, string(p.Terminal.Kind))
		}
		if p.HasSigned(signer) {
			return apperr.DuplicateSignature(p.ID, signer)
		}
		p.Signatures = append(p.Signatures, proposal.Signature{
			ID:         uuid.NewString(),
			ProposalID: p.ID,
			Signer:     signer,
			Blob:       blob,
			SignedAt:   time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		return View{}, err
	}

	status := proposal.DeriveStatus(updated, w.Threshold)
	metrics.RecordSignature()
	s.log.WithField("proposal_id", proposalID).
		WithField("signer", signer).
		WithField("status", string(status)).
		Info("signature recorded")
	return View{Proposal: updated, Status: status}, nil
}

// Cancel withdraws a proposal. Only the creator may cancel, and only while
// the proposal is still pending; once quorum is reached a single member can
// no longer withdraw it and the rejection path must be used instead.
func (s *Service) Cancel(ctx context.Context, proposalID, requester string) (View, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return View{}, err
	}
	w, err := s.wallets.GetWallet(ctx, p.WalletID)
	if err != nil {
		return View{}, err
	}

	updated, err := s.store.MutateProposal(ctx, proposalID, func(p *proposal.Proposal) error {
		if p.Closed() {
			return apperr.ProposalClosed(p.ID, string(p.Terminal.Kind))
		}
		if p.CreatedBy != requester {
			return apperr.Unauthorized(requester, "only the proposal creator may cancel")
		}
		if proposal.DeriveStatus(*p, w.Threshold) != proposal.StatusPending {
			return apperr.Unauthorized(requester, "an approved proposal cannot be cancelled unilaterally; use rejection")
		}
		p.Terminal = proposal.TerminalEvent{
			Kind:  proposal.TerminalCancelled,
			At:    time.Now().UTC(),
			Actor: requester,
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}

	s.log.WithField("proposal_id", proposalID).WithField("cancelled_by", requester).Info("proposal cancelled")
	return View{Proposal: updated, Status: proposal.StatusCancelled}, nil
}

// Reject closes a proposal through the policy-driven rejection path. Any
// wallet member may reject with a reason, including after quorum.
func (s *Service) Reject(ctx context.Context, proposalID, requester, reason string) (View, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return View{}, err
	}
	w, err := s.wallets.GetWallet(ctx, p.WalletID)
	if err != nil {
		return View{}, err
	}
	if !w.HasMember(requester) {
		return View{}, apperr.Unauthorized(requester, "only wallet members may reject proposals")
	}

	updated, err := s.store.MutateProposal(ctx, proposalID, func(p *proposal.Proposal) error {
		if p.Closed() {
			return apperr.ProposalClosed(p.ID, string(p.Terminal.Kind))
		}
		p.Terminal = proposal.TerminalEvent{
			Kind:   proposal.TerminalRejected,
			At:     time.Now().UTC(),
			Actor:  requester,
			Reason: strings.TrimSpace(reason),
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}

	s.log.WithField("proposal_id", proposalID).
		WithField("rejected_by", requester).
		Info("proposal rejected")
	return View{Proposal: updated, Status: proposal.StatusRejected}, nil
}

// Get returns a proposal with its derived status.
func (s *Service) Get(ctx context.Context, proposalID string) (View, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return View{}, err
	}
	w, err := s.wallets.GetWallet(ctx, p.WalletID)
	if err != nil {
		return View{}, err
	}
	return View{Proposal: p, Status: proposal.DeriveStatus(p, w.Threshold)}, nil
}

// List returns a wallet's proposals newest first. statusFilter matches the
// derived status, not a stored field; empty means no filtering.
func (s *Service) List(ctx context.Context, walletID string, statusFilter proposal.Status) ([]View, error) {
	w, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListProposals(ctx, walletID)
	if err != nil {
		return nil, err
	}

	result := make([]View, 0, len(list))
	for _, p := range list {
		status := proposal.DeriveStatus(p, w.Threshold)
		if statusFilter != "" && status != statusFilter {
			continue
		}
		result = append(result, View{Proposal: p, Status: status})
	}
	return result, nil
}

// Signatures returns a proposal's recorded signatures, oldest first.
func (s *Service) Signatures(ctx context.Context, proposalID string) ([]proposal.Signature, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return p.Signatures, nil
}

// GetProgress returns the derived status alongside the signature count and
// the wallet threshold.
func (s *Service) GetProgress(ctx context.Context, proposalID string) (Progress, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return Progress{}, err
	}
	w, err := s.wallets.GetWallet(ctx, p.WalletID)
	if err != nil {
		return Progress{}, err
	}
	return Progress{
		Status:     proposal.DeriveStatus(p, w.Threshold),
		Signatures: p.SignatureCount(),
		Threshold:  w.Threshold,
	}, nil
}

// Wallet exposes the wallet backing a proposal for collaborating services.
func (s *Service) Wallet(ctx context.Context, walletID string) (wallet.Wallet, error) {
	return s.wallets.GetWallet(ctx, walletID)
}
