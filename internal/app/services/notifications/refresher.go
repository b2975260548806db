package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/Quorum-Labs/treasury_layer/internal/app/metrics"
	"github.com/Quorum-Labs/treasury_layer/internal/app/storage"
	"github.com/Quorum-Labs/treasury_layer/internal/app/system"
	"github.com/Quorum-Labs/treasury_layer/pkg/logger"
)

// Refresher periodically republishes the pending-proposal gauge for every
// wallet. The gauge is observability only; queries always recompute from the
// store directly.
type Refresher struct {
	service  *Service
	wallets  storage.WalletStore
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*Refresher)(nil)

// NewRefresher creates a gauge refresher with a 30 second interval.
func NewRefresher(service *Service, wallets storage.WalletStore, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("notifications-refresher")
	}
	return &Refresher{service: service, wallets: wallets, interval: 30 * time.Second, log: log}
}

func (r *Refresher) Name() string { return "notifications-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := r.tick(runCtx); err != nil {
					r.log.WithError(err).Warn("pending gauge refresh failed")
				}
			}
		}
	}()
	return nil
}

func (r *Refresher) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}
	r.cancel()
	r.wg.Wait()
	r.running = false
	return nil
}

func (r *Refresher) tick(ctx context.Context) error {
	list, err := r.wallets.ListWallets(ctx, "")
	if err != nil {
		return err
	}
	for _, w := range list {
		count, err := r.service.PendingCount(ctx, w.ID)
		if err != nil {
			r.log.WithError(err).WithField("wallet_id", w.ID).Warn("pending count failed")
			continue
		}
		metrics.SetPendingProposals(w.ID, count)
	}
	return nil
}
