package mainnet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/prices"
)

// Provider polls an HTTP endpoint exposed by the mainnet venue for the
// current exchange price.
type Provider struct {
	logger      *zap.SugaredLogger
	client      *http.Client
	endpointURL string

	mu     sync.RWMutex
	health prices.ProviderHealth
}

// priceResponse is the endpoint's JSON shape; price is an integer string
// in base units.
type priceResponse struct {
	Price string `json:"price"`
	TsMs  int64  `json:"ts"`
}

func NewProvider(endpointURL string, logger *zap.SugaredLogger) *Provider {
	return &Provider{
		logger:      logger,
		endpointURL: endpointURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		health: prices.ProviderHealth{
			Healthy:     true,
			LastSuccess: time.Now(),
		},
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "mainnet"
}

// Health returns current provider health status
func (p *Provider) Health() prices.ProviderHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

func (p *Provider) updateHealth(healthy bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.health.Healthy = healthy
	if healthy {
		p.health.LastSuccess = time.Now()
		p.health.LastError = ""
	} else if err != nil {
		p.health.LastError = err.Error()
	}
}

// FetchPrice retrieves the current exchange price from the venue.
func (p *Provider) FetchPrice(ctx context.Context) (prices.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.endpointURL, nil)
	if err != nil {
		p.updateHealth(false, err)
		return prices.Quote{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.updateHealth(false, err)
		return prices.Quote{}, fmt.Errorf("failed to fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("price endpoint error: %d", resp.StatusCode)
		p.updateHealth(false, err)
		return prices.Quote{}, err
	}

	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		p.updateHealth(false, err)
		return prices.Quote{}, fmt.Errorf("failed to decode response: %w", err)
	}

	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		p.updateHealth(false, err)
		return prices.Quote{}, fmt.Errorf("invalid price %q: %w", body.Price, err)
	}
	if !price.IsPositive() {
		err := fmt.Errorf("non-positive price %s", price)
		p.updateHealth(false, err)
		return prices.Quote{}, err
	}

	at := time.Now()
	if body.TsMs > 0 {
		at = time.UnixMilli(body.TsMs)
	}

	p.updateHealth(true, nil)
	p.logger.Debugw("Fetched mainnet price", "price", price, "at", at)

	return prices.Quote{Price: price, At: at}, nil
}
