package vault

import (
	"github.com/shopspring/decimal"

	"github.com/litefi/litevault-backend/internal/calc"
	"github.com/litefi/litevault-backend/internal/token"
)

// Pure read-side projections. All conversions share the floor-division rules
// in internal/calc.

func (s *Service) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Service) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Address is the vault's own account on the asset ledger.
func (s *Service) Address() string {
	return s.address
}

// Asset is the settlement-asset ledger the vault custodies.
func (s *Service) Asset() *token.Ledger {
	return s.asset
}

func (s *Service) BridgeAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridgeAddress
}

func (s *Service) IsRebalancer(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowedRebalancers[addr]
}

func (s *Service) MinimumThresholdPercentage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minimumThresholdPercentage
}

func (s *Service) WithdrawFeePercentage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withdrawFeePercentage
}

func (s *Service) WithdrawFeeAbsoluteMin() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withdrawFeeAbsoluteMin
}

func (s *Service) CollectedFees() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectedFees
}

func (s *Service) TotalInvestedAssets() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalInvestedAssets
}

func (s *Service) InitialExchangePrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialExchangePrice
}

func (s *Service) MainnetExchangePrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mainnetExchangePrice
}

// LocalAssets is the vault's asset balance net of collected fees; fees back
// nothing and belong to the owner.
func (s *Service) LocalAssets() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localAssetsLocked()
}

// TotalAssets is local balance plus the price-adjusted value of invested
// principal.
func (s *Service) TotalAssets() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalAssetsLocked()
}

// MinimumThresholdAmount is the local-liquidity floor for rebalancing.
func (s *Service) MinimumThresholdAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calc.PercentageOf(s.totalAssetsLocked(), s.minimumThresholdPercentage)
}

// PreviewDeposit returns the shares a deposit of assets would mint.
func (s *Service) PreviewDeposit(assets decimal.Decimal) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calc.SharesForAssets(assets, s.totalShares, s.totalAssetsLocked())
}

// PreviewMint returns the assets required to mint shares.
func (s *Service) PreviewMint(shares decimal.Decimal) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calc.AssetsForShares(shares, s.totalShares, s.totalAssetsLocked())
}

// PreviewWithdraw returns the shares a withdrawal of assets would burn.
func (s *Service) PreviewWithdraw(assets decimal.Decimal) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calc.SharesForAssetsUp(assets, s.totalShares, s.totalAssetsLocked())
}

// PreviewRedeem returns the assets a redemption of shares would pay before
// fees.
func (s *Service) PreviewRedeem(shares decimal.Decimal) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calc.AssetsForShares(shares, s.totalShares, s.totalAssetsLocked())
}

// GetWithdrawFee projects the fee for withdrawing assets.
func (s *Service) GetWithdrawFee(assets decimal.Decimal) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calc.WithdrawFee(assets, s.withdrawFeePercentage, s.withdrawFeeAbsoluteMin)
}

// GetRedeemFee projects the fee for redeeming shares, converting to assets
// first.
func (s *Service) GetRedeemFee(shares decimal.Decimal) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	assets := calc.AssetsForShares(shares, s.totalShares, s.totalAssetsLocked())
	return calc.WithdrawFee(assets, s.withdrawFeePercentage, s.withdrawFeeAbsoluteMin)
}
