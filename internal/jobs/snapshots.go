package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/queue"
	"github.com/litefi/litevault-backend/internal/repository"
	"github.com/litefi/litevault-backend/internal/store"
	"github.com/litefi/litevault-backend/internal/vault"
)

// VaultState is the cached view of the vault's accounting state, refreshed
// on every snapshot tick and pushed to subscribers.
type VaultState struct {
	At                   time.Time `json:"at"`
	LocalAssets          string    `json:"local_assets"`
	TotalInvestedAssets  string    `json:"total_invested_assets"`
	TotalAssets          string    `json:"total_assets"`
	TotalShares          string    `json:"total_shares"`
	CollectedFees        string    `json:"collected_fees"`
	MainnetExchangePrice string    `json:"mainnet_exchange_price"`
	MinimumThreshold     string    `json:"minimum_threshold"`
}

// QueueState is the cached view of the withdrawal queue.
type QueueState struct {
	At                time.Time `json:"at"`
	TotalQueuedAmount string    `json:"total_queued_amount"`
	BufferBalance     string    `json:"buffer_balance"`
	EscrowedShares    string    `json:"escrowed_shares"`
	PenaltyFeePct     int64     `json:"penalty_fee_pct"`
}

// SnapshotWorker periodically journals the vault and queue state to Postgres
// and refreshes the cached views the API and websocket hub serve from.
type SnapshotWorker struct {
	vault  *vault.Service
	queue  *queue.Service
	repo   *repository.Repository
	cache  *store.Cache
	logger *zap.SugaredLogger

	interval time.Duration
	ttl      time.Duration
}

func NewSnapshotWorker(
	v *vault.Service,
	q *queue.Service,
	repo *repository.Repository,
	cache *store.Cache,
	logger *zap.SugaredLogger,
	interval time.Duration,
) *SnapshotWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return &SnapshotWorker{
		vault:    v,
		queue:    q,
		repo:     repo,
		cache:    cache,
		logger:   logger,
		interval: interval,
		ttl:      3 * interval,
	}
}

func (w *SnapshotWorker) Run(ctx context.Context) {
	w.logger.Infow("Starting snapshot worker", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Snapshot worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SnapshotWorker) tick(ctx context.Context) {
	now := time.Now().UTC().Truncate(time.Second)

	vaultSnap := repository.VaultSnapshot{
		At:                   now,
		LocalAssets:          w.vault.LocalAssets(),
		TotalInvestedAssets:  w.vault.TotalInvestedAssets(),
		TotalAssets:          w.vault.TotalAssets(),
		TotalShares:          w.vault.TotalShares(),
		CollectedFees:        w.vault.CollectedFees(),
		MainnetExchangePrice: w.vault.MainnetExchangePrice(),
	}
	queueSnap := repository.QueueSnapshot{
		At:                now,
		TotalQueuedAmount: w.queue.TotalQueuedAmount(),
		BufferBalance:     w.queue.BufferBalance(),
		EscrowedShares:    w.queue.EscrowedShares(),
	}

	if w.repo != nil {
		if err := w.repo.StoreVaultSnapshot(ctx, vaultSnap); err != nil {
			w.logger.Errorw("Failed to store vault snapshot", "error", err)
		}
		if err := w.repo.StoreQueueSnapshot(ctx, queueSnap); err != nil {
			w.logger.Errorw("Failed to store queue snapshot", "error", err)
		}
	}

	vaultState := VaultState{
		At:                   now,
		LocalAssets:          vaultSnap.LocalAssets.String(),
		TotalInvestedAssets:  vaultSnap.TotalInvestedAssets.String(),
		TotalAssets:          vaultSnap.TotalAssets.String(),
		TotalShares:          vaultSnap.TotalShares.String(),
		CollectedFees:        vaultSnap.CollectedFees.String(),
		MainnetExchangePrice: vaultSnap.MainnetExchangePrice.String(),
		MinimumThreshold:     w.vault.MinimumThresholdAmount().String(),
	}
	queueState := QueueState{
		At:                now,
		TotalQueuedAmount: queueSnap.TotalQueuedAmount.String(),
		BufferBalance:     queueSnap.BufferBalance.String(),
		EscrowedShares:    queueSnap.EscrowedShares.String(),
		PenaltyFeePct:     w.queue.PenaltyFeePercentage(),
	}

	if err := w.cache.SetVaultState(ctx, vaultState, w.ttl); err != nil {
		w.logger.Warnw("Failed to cache vault state", "error", err)
	}
	if err := w.cache.SetQueueState(ctx, queueState, w.ttl); err != nil {
		w.logger.Warnw("Failed to cache queue state", "error", err)
	}

	if err := w.cache.Publish(ctx, store.KeyVaultState, vaultState); err != nil {
		w.logger.Debugw("Failed to publish vault state", "error", err)
	}
	if err := w.cache.Publish(ctx, store.KeyQueueState, queueState); err != nil {
		w.logger.Debugw("Failed to publish queue state", "error", err)
	}
}
