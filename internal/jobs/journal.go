package jobs

import (
	"context"

	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/events"
	"github.com/litefi/litevault-backend/internal/metrics"
	"github.com/litefi/litevault-backend/internal/repository"
	"github.com/litefi/litevault-backend/internal/store"
)

// JournalWorker drains the event bus into the Postgres journal and fans each
// envelope out on the events channel for websocket and SSE clients.
type JournalWorker struct {
	bus     *events.Bus
	repo    *repository.Repository
	cache   *store.Cache
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
}

func NewJournalWorker(
	bus *events.Bus,
	repo *repository.Repository,
	cache *store.Cache,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
) *JournalWorker {
	return &JournalWorker{
		bus:     bus,
		repo:    repo,
		cache:   cache,
		metrics: m,
		logger:  logger,
	}
}

func (w *JournalWorker) Run(ctx context.Context) {
	w.logger.Info("Starting journal worker")

	ch, cancel := w.bus.Subscribe(256)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Journal worker stopped")
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			w.handle(ctx, env)
		}
	}
}

func (w *JournalWorker) handle(ctx context.Context, env events.Envelope) {
	if w.repo != nil {
		if err := w.repo.StoreEvent(ctx, env); err != nil {
			w.logger.Errorw("Failed to journal event",
				"type", env.Type,
				"id", env.ID,
				"error", err,
			)
		}
	}

	if err := w.cache.Publish(ctx, store.ChannelEvents, env); err != nil {
		w.logger.Debugw("Failed to publish event", "type", env.Type, "error", err)
	}

	if w.metrics != nil {
		w.metrics.RecordVaultEvent(ctx, env.Type)
	}
}
