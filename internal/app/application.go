package app

import (
	"context"
	"fmt"

	"github.com/Quorum-Labs/treasury_layer/internal/app/services/execution"
	"github.com/Quorum-Labs/treasury_layer/internal/app/services/notifications"
	"github.com/Quorum-Labs/treasury_layer/internal/app/services/proposals"
	"github.com/Quorum-Labs/treasury_layer/internal/app/services/wallets"
	"github.com/Quorum-Labs/treasury_layer/internal/app/storage"
	"github.com/Quorum-Labs/treasury_layer/internal/app/storage/memory"
	"github.com/Quorum-Labs/treasury_layer/internal/app/system"
	"github.com/Quorum-Labs/treasury_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Wallets   storage.WalletStore
	Proposals storage.ProposalStore
}

// Options configures optional collaborators. A nil Executor leaves execution
// requests failing until one is attached, a nil Verifier disables signature
// blob verification.
type Options struct {
	Verifier proposals.SignatureVerifier
	Executor execution.TransactionExecutor
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Wallets       *wallets.Service
	Proposals     *proposals.Service
	Execution     *execution.Coordinator
	Notifications *notifications.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Wallets == nil {
		stores.Wallets = mem
	}
	if stores.Proposals == nil {
		stores.Proposals = mem
	}

	manager := system.NewManager()

	walletService := wallets.New(stores.Wallets, log)
	proposalService := proposals.New(stores.Wallets, stores.Proposals, opts.Verifier, log)
	coordinator := execution.New(stores.Wallets, stores.Proposals, opts.Executor, log)
	notifier := notifications.New(stores.Wallets, stores.Proposals, log)

	for _, name := range []string{"wallets", "proposals", "execution"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	refresher := notifications.NewRefresher(notifier, stores.Wallets, log)
	if err := manager.Register(refresher); err != nil {
		return nil, fmt.Errorf("register %s: %w", refresher.Name(), err)
	}

	return &Application{
		manager:       manager,
		log:           log,
		Wallets:       walletService,
		Proposals:     proposalService,
		Execution:     coordinator,
		Notifications: notifier,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
