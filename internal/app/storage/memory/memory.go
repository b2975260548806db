// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/proposal"
	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/wallet"
	"github.com/Quorum-Labs/treasury_layer/internal/app/storage"
	apperr "github.com/Quorum-Labs/treasury_layer/internal/errors"
)

// Store is an in-memory implementation of the storage interfaces. Mutations
// are serialized per proposal: each proposal record owns a lock, so two
// concurrent signatures on different proposals never contend while two on the
// same proposal are applied one after the other.
type Store struct {
	mu            sync.RWMutex
	wallets       map[string]wallet.Wallet
	walletOrder   []string
	proposals     map[string]*proposalRecord
	proposalOrder map[string][]string // walletID -> proposal ids in creation order
}

type proposalRecord struct {
	mu sync.Mutex
	p  proposal.Proposal
}

var _ storage.WalletStore = (*Store)(nil)
var _ storage.ProposalStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		wallets:       make(map[string]wallet.Wallet),
		proposals:     make(map[string]*proposalRecord),
		proposalOrder: make(map[string][]string),
	}
}

// WalletStore implementation -------------------------------------------------

func (s *Store) CreateWallet(_ context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = uuid.NewString()
	} else if _, exists := s.wallets[w.ID]; exists {
		return wallet.Wallet{}, apperr.StorageUnavailable("create wallet",
			apperr.New(apperr.CodeUnknown, "wallet id already exists"))
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	w.Members = append([]string(nil), w.Members...)

	s.wallets[w.ID] = w
	s.walletOrder = append(s.walletOrder, w.ID)
	return cloneWallet(w), nil
}

func (s *Store) GetWallet(_ context.Context, id string) (wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[id]
	if !ok {
		return wallet.Wallet{}, apperr.WalletNotFound(id)
	}
	return cloneWallet(w), nil
}

func (s *Store) ListWallets(_ context.Context, member string) ([]wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]wallet.Wallet, 0, len(s.walletOrder))
	for _, id := range s.walletOrder {
		w := s.wallets[id]
		if member == "" || w.HasMember(member) {
			result = append(result, cloneWallet(w))
		}
	}
	return result, nil
}

// ProposalStore implementation -----------------------------------------------

func (s *Store) CreateProposal(_ context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if _, exists := s.proposals[p.ID]; exists {
		return proposal.Proposal{}, apperr.StorageUnavailable("create proposal",
			apperr.New(apperr.CodeUnknown, "proposal id already exists"))
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Signatures = append([]proposal.Signature(nil), p.Signatures...)

	s.proposals[p.ID] = &proposalRecord{p: p}
	s.proposalOrder[p.WalletID] = append(s.proposalOrder[p.WalletID], p.ID)
	return cloneProposal(p), nil
}

func (s *Store) GetProposal(_ context.Context, id string) (proposal.Proposal, error) {
	rec, err := s.record(id)
	if err != nil {
		return proposal.Proposal{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return cloneProposal(rec.p), nil
}

func (s *Store) ListProposals(_ context.Context, walletID string) ([]proposal.Proposal, error) {
	s.mu.RLock()
	ids := append([]string(nil), s.proposalOrder[walletID]...)
	s.mu.RUnlock()

	// Newest first.
	result := make([]proposal.Proposal, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		rec, err := s.record(ids[i])
		if err != nil {
			continue
		}
		rec.mu.Lock()
		result = append(result, cloneProposal(rec.p))
		rec.mu.Unlock()
	}
	return result, nil
}

func (s *Store) MutateProposal(_ context.Context, id string, mutate func(p *proposal.Proposal) error) (proposal.Proposal, error) {
	rec, err := s.record(id)
	if err != nil {
		return proposal.Proposal{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	working := cloneProposal(rec.p)
	if err := mutate(&working); err != nil {
		return proposal.Proposal{}, err
	}
	rec.p = working
	return cloneProposal(working), nil
}

func (s *Store) record(id string) (*proposalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.proposals[id]
	if !ok {
		return nil, apperr.ProposalNotFound(id)
	}
	return rec, nil
}

// Helpers ---------------------------------------------------------------------

func cloneWallet(w wallet.Wallet) wallet.Wallet {
	w.Members = append([]string(nil), w.Members...)
	return w
}

func cloneProposal(p proposal.Proposal) proposal.Proposal {
	p.Signatures = append([]proposal.Signature(nil), p.Signatures...)
	return p
}
