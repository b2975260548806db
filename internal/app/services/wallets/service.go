// Package wallets implements the wallet registry: creation and lookup of
// multisig wallets with validated membership and threshold.
package wallets

import (
	"context"

	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/wallet"
	"github.com/Quorum-Labs/treasury_layer/internal/app/storage"
	"github.com/Quorum-Labs/treasury_layer/pkg/logger"
)

// Service manages wallet records.
type Service struct {
	store storage.WalletStore
	log   *logger.Logger
}

// New constructs a wallet registry service.
func New(store storage.WalletStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("wallets")
	}
	return &Service{store: store, log: log}
}

// Create validates and persists a new wallet. Membership and threshold are
// immutable afterwards.
func (s *Service) Create(ctx context.Context, name string, members []string, threshold int, address string) (wallet.Wallet, error) {
	w, err := wallet.New(name, members, threshold, address)
	if err != nil {
		return wallet.Wallet{}, err
	}

	created, err := s.store.CreateWallet(ctx, w)
	if err != nil {
		return wallet.Wallet{}, err
	}
	s.log.WithField("wallet_id", created.ID).
		WithField("members", len(created.Members)).
		WithField("threshold", created.Threshold).
		Info("wallet created")
	return created, nil
}

// Get returns a wallet by id.
func (s *Service) Get(ctx context.Context, id string) (wallet.Wallet, error) {
	return s.store.GetWallet(ctx, id)
}

// List returns wallets ordered by creation time ascending. When member is
// non-empty only wallets containing that member are returned.
func (s *Service) List(ctx context.Context, member string) ([]wallet.Wallet, error) {
	return s.store.ListWallets(ctx, member)
}
