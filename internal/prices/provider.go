package prices

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one observation of the mainnet exchange price, in the same
// integer base units the vault was initialized with.
type Quote struct {
	Price decimal.Decimal `json:"price"`
	At    time.Time       `json:"at"`
}

// Provider defines the interface for mainnet price sources.
type Provider interface {
	// FetchPrice retrieves the current exchange price.
	FetchPrice(ctx context.Context) (Quote, error)

	// Name returns the provider identifier
	Name() string

	// Health returns current provider health status
	Health() ProviderHealth
}

// ProviderHealth represents the current status of a provider
type ProviderHealth struct {
	Healthy     bool      `json:"healthy"`
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success"`
	Reconnects  int       `json:"reconnects"`
}
