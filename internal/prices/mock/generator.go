package mock

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/prices"
)

// Generator produces a random-walk exchange price around a base value for
// local development and tests.
type Generator struct {
	logger *zap.SugaredLogger
	drift  float64

	mu    sync.Mutex
	price decimal.Decimal
	rng   *rand.Rand
}

func NewGenerator(basePrice decimal.Decimal, drift float64, logger *zap.SugaredLogger) *Generator {
	if !basePrice.IsPositive() {
		basePrice = decimal.NewFromInt(2_000_000)
	}
	if drift <= 0 {
		drift = 0.0002
	}
	return &Generator{
		logger: logger,
		drift:  drift,
		price:  basePrice,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name returns the provider identifier
func (g *Generator) Name() string {
	return "mock"
}

// Health always reports healthy; the generator cannot fail.
func (g *Generator) Health() prices.ProviderHealth {
	return prices.ProviderHealth{
		Healthy:     true,
		LastSuccess: time.Now(),
	}
}

// SetBasePrice re-anchors the walk, e.g. to the last real price seen.
func (g *Generator) SetBasePrice(price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}
	g.mu.Lock()
	g.price = price
	g.mu.Unlock()
}

// FetchPrice advances the walk one step and returns the new price.
func (g *Generator) FetchPrice(_ context.Context) (prices.Quote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// symmetric step in (-drift, +drift), floored at one base unit
	step := (g.rng.Float64()*2 - 1) * g.drift
	next := g.price.Mul(decimal.NewFromFloat(1 + step)).Round(0)
	if !next.IsPositive() {
		next = decimal.NewFromInt(1)
	}
	g.price = next

	return prices.Quote{Price: g.price, At: time.Now()}, nil
}
