package location

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/storage"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/observability/metrics"
)

// Pruner periodically removes expired location rows. Expiry is absolute
// per row; there is no sliding TTL, a later report never refreshes older
// rows.
type Pruner struct {
	store    storage.Store
	interval time.Duration
	logger   *zap.Logger
}

func NewPruner(store storage.Store, interval time.Duration, logger *zap.Logger) *Pruner {
	return &Pruner{store: store, interval: interval, logger: logger}
}

// PruneNow runs one pruning pass.
func (p *Pruner) PruneNow(ctx context.Context) (int64, error) {
	n, err := p.store.PruneExpired(ctx)
	if err != nil {
		p.logger.Error("Pruning expired locations failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		p.logger.Info("Pruned expired locations", zap.Int64("count", n))
	}
	if m := metrics.Get(); m != nil {
		m.LocationsPrunedTotal.Add(ctx, n)
	}
	return n, nil
}

// Run prunes on the configured interval until the context is cancelled.
// Failures are logged and the loop keeps going; a transiently unreachable
// store must not kill retention.
func (p *Pruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Location pruner started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Location pruner stopped")
			return
		case <-ticker.C:
			if _, err := p.PruneNow(ctx); err != nil {
				continue
			}
		}
	}
}
