package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/calc"
	"github.com/litefi/litevault-backend/internal/events"
	"github.com/litefi/litevault-backend/internal/token"
)

var (
	ErrUnauthorized           = errors.New("vault: unauthorized")
	ErrInvalidParams          = errors.New("vault: invalid params")
	ErrAlreadyInitialized     = errors.New("vault: already initialized")
	ErrNotInitialized         = errors.New("vault: not initialized")
	ErrExceedMinimumThreshold = errors.New("vault: exceed minimum threshold")
	ErrInsufficientLiquidity  = errors.New("vault: insufficient liquidity")
	ErrInsufficientBalance    = errors.New("vault: insufficient balance")
	ErrInsufficientAllowance  = errors.New("vault: insufficient allowance")
)

// Service is the share/asset accounting engine. It owns the share ledger,
// the fee policy and the split between local balance and invested principal.
// A single mutex makes every exported operation atomic; internal accounting
// always settles before the external asset transfer it funds.
type Service struct {
	mu sync.Mutex

	asset    *token.Ledger
	address  string // the vault's own account on the asset ledger
	recorder events.Recorder
	logger   *zap.SugaredLogger

	initialized bool
	owner       string

	allowedRebalancers map[string]bool
	bridgeAddress      string

	minimumThresholdPercentage int64
	withdrawFeePercentage      int64
	withdrawFeeAbsoluteMin     decimal.Decimal

	collectedFees       decimal.Decimal
	totalInvestedAssets decimal.Decimal

	initialExchangePrice decimal.Decimal
	mainnetExchangePrice decimal.Decimal

	shares          map[string]decimal.Decimal
	totalShares     decimal.Decimal
	shareAllowances map[string]map[string]decimal.Decimal
}

// InitParams are the one-time setup parameters. The settlement asset itself
// is bound at construction; everything else arrives here.
type InitParams struct {
	Owner                      string
	MinimumThresholdPercentage int64
	WithdrawFeePercentage      int64
	WithdrawFeeAbsoluteMin     decimal.Decimal
	BridgeAddress              string
	InitialExchangePrice       decimal.Decimal
}

func NewService(asset *token.Ledger, address string, recorder events.Recorder, logger *zap.SugaredLogger) *Service {
	if recorder == nil {
		recorder = events.Discard
	}
	return &Service{
		asset:              asset,
		address:            address,
		recorder:           recorder,
		logger:             logger,
		allowedRebalancers: make(map[string]bool),
		shares:             make(map[string]decimal.Decimal),
		shareAllowances:    make(map[string]map[string]decimal.Decimal),
	}
}

// Initialize runs exactly once. The vault storage outlives logic upgrades,
// so the guard is an explicit flag rather than constructor-time state.
func (s *Service) Initialize(_ context.Context, params InitParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return ErrAlreadyInitialized
	}
	if token.IsZeroAddress(params.Owner) || token.IsZeroAddress(params.BridgeAddress) {
		return fmt.Errorf("%w: zero owner or bridge address", ErrInvalidParams)
	}
	if !calc.ValidPercentage(params.MinimumThresholdPercentage) || !calc.ValidPercentage(params.WithdrawFeePercentage) {
		return fmt.Errorf("%w: percentage outside [0, %d]", ErrInvalidParams, calc.Scale)
	}
	if params.WithdrawFeeAbsoluteMin.IsNegative() {
		return fmt.Errorf("%w: negative withdraw fee minimum", ErrInvalidParams)
	}
	if !params.InitialExchangePrice.IsPositive() {
		return fmt.Errorf("%w: exchange price must be positive", ErrInvalidParams)
	}

	s.owner = params.Owner
	s.minimumThresholdPercentage = params.MinimumThresholdPercentage
	s.withdrawFeePercentage = params.WithdrawFeePercentage
	s.withdrawFeeAbsoluteMin = params.WithdrawFeeAbsoluteMin
	s.bridgeAddress = params.BridgeAddress
	s.initialExchangePrice = params.InitialExchangePrice
	s.mainnetExchangePrice = params.InitialExchangePrice
	s.initialized = true

	if s.logger != nil {
		s.logger.Infow("Vault initialized",
			"owner", s.owner,
			"bridge", s.bridgeAddress,
			"min_threshold_pct", s.minimumThresholdPercentage,
			"withdraw_fee_pct", s.withdrawFeePercentage,
			"withdraw_fee_abs_min", s.withdrawFeeAbsoluteMin,
			"initial_exchange_price", s.initialExchangePrice,
		)
	}
	return nil
}

// Deposit pulls assets from the caller (via prior approval on the asset
// ledger) and mints proportional shares to receiver.
func (s *Service) Deposit(_ context.Context, caller string, assets decimal.Decimal, receiver string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return decimal.Zero, ErrNotInitialized
	}
	if !assets.IsPositive() || token.IsZeroAddress(receiver) {
		return decimal.Zero, fmt.Errorf("%w: deposit needs positive assets and a receiver", ErrInvalidParams)
	}

	shares := calc.SharesForAssets(assets, s.totalShares, s.totalAssetsLocked())
	if !shares.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: deposit too small to mint shares", ErrInvalidParams)
	}

	if err := s.asset.TransferFrom(s.address, caller, s.address, assets); err != nil {
		return decimal.Zero, err
	}
	s.mintLocked(receiver, shares)
	return shares, nil
}

// Mint issues exactly sharesWanted to receiver against the equivalent asset
// amount pulled from the caller.
func (s *Service) Mint(_ context.Context, caller string, sharesWanted decimal.Decimal, receiver string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return decimal.Zero, ErrNotInitialized
	}
	if !sharesWanted.IsPositive() || token.IsZeroAddress(receiver) {
		return decimal.Zero, fmt.Errorf("%w: mint needs positive shares and a receiver", ErrInvalidParams)
	}

	assets := calc.AssetsForShares(sharesWanted, s.totalShares, s.totalAssetsLocked())
	if !assets.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: mint too small to charge assets", ErrInvalidParams)
	}

	if err := s.asset.TransferFrom(s.address, caller, s.address, assets); err != nil {
		return decimal.Zero, err
	}
	s.mintLocked(receiver, sharesWanted)
	return assets, nil
}

// Withdraw burns owner's shares worth assets and pays assets minus the
// withdraw fee to receiver. The caller must be the share owner.
func (s *Service) Withdraw(_ context.Context, caller string, assets decimal.Decimal, receiver, owner string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return decimal.Zero, ErrNotInitialized
	}
	if !assets.IsPositive() || token.IsZeroAddress(receiver) || token.IsZeroAddress(owner) {
		return decimal.Zero, fmt.Errorf("%w: withdraw needs positive assets, receiver and owner", ErrInvalidParams)
	}
	if caller != owner {
		return decimal.Zero, fmt.Errorf("%w: caller %s is not share owner %s", ErrUnauthorized, caller, owner)
	}

	shares := calc.SharesForAssetsUp(assets, s.totalShares, s.totalAssetsLocked())
	if err := s.payoutLocked(owner, receiver, assets, shares); err != nil {
		return decimal.Zero, err
	}
	return shares, nil
}

// Redeem burns exactly shares from owner and pays the proportional assets
// minus the withdraw fee to receiver.
func (s *Service) Redeem(_ context.Context, caller string, shares decimal.Decimal, receiver, owner string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return decimal.Zero, ErrNotInitialized
	}
	if !shares.IsPositive() || token.IsZeroAddress(receiver) || token.IsZeroAddress(owner) {
		return decimal.Zero, fmt.Errorf("%w: redeem needs positive shares, receiver and owner", ErrInvalidParams)
	}
	if caller != owner {
		return decimal.Zero, fmt.Errorf("%w: caller %s is not share owner %s", ErrUnauthorized, caller, owner)
	}

	assets := calc.AssetsForShares(shares, s.totalShares, s.totalAssetsLocked())
	if err := s.payoutLocked(owner, receiver, assets, shares); err != nil {
		return decimal.Zero, err
	}
	return assets, nil
}

// RedeemExcess burns exactly sharesToBurn from the caller and pays out
// assets minus the withdraw fee, regardless of the proportional rate. The
// caller accepts whatever rate that implies in exchange for a payout amount
// fixed ahead of time; the withdrawal queue settles penalty-priced requests
// through this path.
func (s *Service) RedeemExcess(_ context.Context, caller string, assets, sharesToBurn decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if !assets.IsPositive() || !sharesToBurn.IsPositive() {
		return fmt.Errorf("%w: redeemExcess needs positive assets and shares", ErrInvalidParams)
	}
	return s.payoutLocked(caller, caller, assets, sharesToBurn)
}

// payoutLocked is the single settlement path for withdraw/redeem/redeemExcess:
// burn shares, collect the fee, then transfer the remainder. Counters settle
// before the transfer so reentrant observers never see stale state.
func (s *Service) payoutLocked(owner, receiver string, assets, shares decimal.Decimal) error {
	if s.localAssetsLocked().LessThan(assets) {
		return fmt.Errorf("%w: local balance %s cannot cover %s", ErrInsufficientLiquidity, s.localAssetsLocked(), assets)
	}

	fee := calc.WithdrawFee(assets, s.withdrawFeePercentage, s.withdrawFeeAbsoluteMin)
	if fee.GreaterThan(assets) {
		return fmt.Errorf("%w: %s does not cover the withdraw fee %s", ErrInvalidParams, assets, fee)
	}

	if err := s.burnLocked(owner, shares); err != nil {
		return err
	}
	s.collectedFees = s.collectedFees.Add(fee)
	s.recorder.Record(events.WithdrawFeeCollected{Payer: owner, Fee: fee})

	return s.asset.Transfer(s.address, receiver, assets.Sub(fee))
}

// ToMainnet moves amount of local liquidity to the bridge counterparty,
// leaving at least the minimum threshold locally. Rebalancer only.
func (s *Service) ToMainnet(_ context.Context, caller string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if !s.allowedRebalancers[caller] {
		return fmt.Errorf("%w: %s is not a rebalancer", ErrUnauthorized, caller)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidParams)
	}

	minimum := calc.PercentageOf(s.totalAssetsLocked(), s.minimumThresholdPercentage)
	if s.localAssetsLocked().Sub(amount).LessThan(minimum) {
		return fmt.Errorf("%w: moving %s would leave less than %s locally", ErrExceedMinimumThreshold, amount, minimum)
	}

	s.totalInvestedAssets = s.totalInvestedAssets.Add(amount)
	if err := s.asset.Transfer(s.address, s.bridgeAddress, amount); err != nil {
		s.totalInvestedAssets = s.totalInvestedAssets.Sub(amount)
		return err
	}

	s.recorder.Record(events.ToMainnet{AmountMoved: amount, BridgeAddress: s.bridgeAddress})
	return nil
}

// FromMainnet pulls amount back from the bridge counterparty via its
// pre-approved allowance and reduces invested principal by the raw amount,
// clamped at zero. Rebalancer only.
func (s *Service) FromMainnet(_ context.Context, caller string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if !s.allowedRebalancers[caller] {
		return fmt.Errorf("%w: %s is not a rebalancer", ErrUnauthorized, caller)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidParams)
	}

	if err := s.asset.TransferFrom(s.address, s.bridgeAddress, s.address, amount); err != nil {
		return err
	}

	s.totalInvestedAssets = s.totalInvestedAssets.Sub(amount)
	if s.totalInvestedAssets.IsNegative() {
		s.totalInvestedAssets = decimal.Zero
	}

	s.recorder.Record(events.FromMainnet{AmountMoved: amount, BridgeAddress: s.bridgeAddress})
	return nil
}

// UpdateMainnetExchangePrice overwrites the reported price. Bridge only;
// invested principal itself never changes on a price update.
func (s *Service) UpdateMainnetExchangePrice(_ context.Context, caller string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if caller != s.bridgeAddress {
		return fmt.Errorf("%w: %s is not the bridge", ErrUnauthorized, caller)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%w: exchange price must be positive", ErrInvalidParams)
	}

	s.mainnetExchangePrice = price
	return nil
}

func (s *Service) localAssetsLocked() decimal.Decimal {
	return s.asset.BalanceOf(s.address).Sub(s.collectedFees)
}

func (s *Service) totalAssetsLocked() decimal.Decimal {
	invested := calc.InvestedValue(s.totalInvestedAssets, s.mainnetExchangePrice, s.initialExchangePrice)
	return s.localAssetsLocked().Add(invested)
}
