package storage

import (
	"context"

	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/proposal"
	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/wallet"
)

// WalletStore persists multisig wallet records. Wallets are immutable after
// creation and are never deleted.
type WalletStore interface {
	CreateWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error)
	GetWallet(ctx context.Context, id string) (wallet.Wallet, error)
	// ListWallets returns wallets ordered by created_at ascending. When
	// member is non-empty only wallets containing that member are returned.
	ListWallets(ctx context.Context, member string) ([]wallet.Wallet, error)
}

// ProposalStore persists proposal records and their signature sets, indexed
// by wallet for listing.
//
// MutateProposal is the single mutation path. Implementations load the
// proposal, run the mutator while holding that proposal's lock (or row lock),
// and persist the result atomically. Serialization is per proposal id:
// mutations to different proposals never block each other. Mutators may only
// append to Signatures and set the Terminal event; everything else on the
// record is immutable.
type ProposalStore interface {
	CreateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error)
	GetProposal(ctx context.Context, id string) (proposal.Proposal, error)
	// ListProposals returns the wallet's proposals ordered by created_at
	// descending.
	ListProposals(ctx context.Context, walletID string) ([]proposal.Proposal, error)
	MutateProposal(ctx context.Context, id string, mutate func(p *proposal.Proposal) error) (proposal.Proposal, error)
}
