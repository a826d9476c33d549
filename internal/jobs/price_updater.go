package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/prices"
	"github.com/litefi/litevault-backend/internal/prices/mainnet"
	"github.com/litefi/litevault-backend/internal/prices/mock"
	"github.com/litefi/litevault-backend/internal/store"
	"github.com/litefi/litevault-backend/internal/vault"
)

// PriceUpdater polls the mainnet venue for the current exchange price and
// reports it into the vault under the bridge account. It is the only writer
// of the vault's mainnet exchange price.
type PriceUpdater struct {
	provider     prices.Provider
	mockProvider *mock.Generator
	vault        *vault.Service
	bridgeAddr   string
	cache        *store.Cache
	logger       *zap.SugaredLogger
	config       PriceUpdaterConfig

	mu        sync.RWMutex
	usingMock bool
}

type PriceUpdaterConfig struct {
	ProviderType  string          // "mainnet" or "mock"
	EndpointURL   string          // venue endpoint for the mainnet provider
	PollInterval  time.Duration   // how often to fetch and report
	RetryInterval time.Duration   // how often to re-check an unhealthy provider
	TTL           time.Duration   // cache TTL for the latest quote
	MockBasePrice decimal.Decimal // starting price for the mock walk
	MockDrift     float64         // per-tick drift for the mock walk
}

func NewPriceUpdater(v *vault.Service, bridgeAddr string, cache *store.Cache, logger *zap.SugaredLogger, config PriceUpdaterConfig) *PriceUpdater {
	if config.PollInterval <= 0 {
		config.PollInterval = 15 * time.Second
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 5 * time.Second
	}

	var provider prices.Provider
	switch config.ProviderType {
	case "mainnet":
		provider = mainnet.NewProvider(config.EndpointURL, logger)
	case "mock":
		provider = mock.NewGenerator(config.MockBasePrice, config.MockDrift, logger)
	default:
		provider = mock.NewGenerator(config.MockBasePrice, config.MockDrift, logger)
	}

	return &PriceUpdater{
		provider:     provider,
		mockProvider: mock.NewGenerator(config.MockBasePrice, config.MockDrift, logger),
		vault:        v,
		bridgeAddr:   bridgeAddr,
		cache:        cache,
		logger:       logger,
		config:       config,
	}
}

func (p *PriceUpdater) Run(ctx context.Context) error {
	p.logger.Infow("Starting price updater",
		"provider", p.provider.Name(),
		"poll_interval", p.config.PollInterval,
	)

	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()

	health := time.NewTicker(p.config.RetryInterval)
	defer health.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Infow("Price updater stopping")
			return ctx.Err()
		case <-poll.C:
			p.tick(ctx)
		case <-health.C:
			p.checkProviderHealth(ctx)
		}
	}
}

func (p *PriceUpdater) tick(ctx context.Context) {
	provider := p.currentProvider()

	quote, err := provider.FetchPrice(ctx)
	if err != nil {
		p.logger.Warnw("Price fetch failed", "provider", provider.Name(), "error", err)
		if !p.isUsingMock() && provider.Name() != "mock" {
			p.switchToMock("price fetch failed")
		}
		return
	}

	if err := p.vault.UpdateMainnetExchangePrice(ctx, p.bridgeAddr, quote.Price); err != nil {
		p.logger.Errorw("Failed to report exchange price", "price", quote.Price, "error", err)
		return
	}

	if err := p.cache.SetPrice(ctx, quote, p.config.TTL); err != nil {
		p.logger.Warnw("Failed to cache quote", "error", err)
	}
	if err := p.cache.Publish(ctx, store.KeyPrice, quote); err != nil {
		p.logger.Warnw("Failed to publish quote", "error", err)
	}

	p.logger.Debugw("Reported exchange price", "price", quote.Price, "provider", provider.Name())
}

func (p *PriceUpdater) currentProvider() prices.Provider {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.usingMock {
		return p.mockProvider
	}
	return p.provider
}

func (p *PriceUpdater) isUsingMock() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.usingMock
}

func (p *PriceUpdater) switchToMock(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.usingMock {
		return
	}
	p.usingMock = true
	p.logger.Warnw("Switching to mock price provider",
		"reason", reason,
		"provider", p.provider.Name(),
	)

	// Re-anchor the mock walk at the last real quote for continuity
	var lastQuote prices.Quote
	if err := p.cache.GetPrice(context.Background(), &lastQuote); err == nil {
		p.mockProvider.SetBasePrice(lastQuote.Price)
	}
}

// checkProviderHealth probes the primary while running on the mock and
// switches back once it answers again.
func (p *PriceUpdater) checkProviderHealth(ctx context.Context) {
	if !p.isUsingMock() {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := p.provider.FetchPrice(probeCtx); err != nil {
		return
	}

	p.logger.Infow("Primary price provider recovered, switching back",
		"provider", p.provider.Name(),
	)
	p.mu.Lock()
	p.usingMock = false
	p.mu.Unlock()
}
