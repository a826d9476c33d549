package queue

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
	"github.com/litefi/litevault-backend/internal/vault"
)

var (
	ErrUnauthorized          = errors.New("queue: unauthorized")
	ErrInvalidParams         = errors.New("queue: invalid params")
	ErrInsufficientLiquidity = errors.New("queue: insufficient liquidity")
)

// Service is the excess-withdraw handler: it escrows vault shares for users
// requesting withdrawals beyond the vault's comfortable local liquidity,
// prices the request with a penalty discount fixed at queue time, and pays
// out either instantly from its own asset buffer or later once the buffer
// has been replenished from the vault.
//
// Escrowed shares are held as an undifferentiated pool under the queue's own
// account; totalQueuedAmount tracks what still has to be sourced from the
// vault and may legitimately run below the sum of per-receiver entries after
// a replenishment that has not yet been paid out.
type Service struct {
	mu sync.Mutex

	vault    *vault.Service
	asset    *token.Ledger
	address  string // the queue's own account on asset and share ledgers
	recorder events.Recorder
	logger   *zap.SugaredLogger

	owner             string
	allowedFeeSetters map[string]bool
	allowedFulfillers map[string]bool

	penaltyFeePercentage  int64
	queuedWithdrawAmounts map[string]decimal.Decimal
	totalQueuedAmount     decimal.Decimal
}

// NewService wires the handler against an existing vault. The deployer
// becomes the owner and the penalty fee is fixed until a fee setter changes
// it.
func NewService(v *vault.Service, address, owner string, penaltyFeePercentage int64, recorder events.Recorder, logger *zap.SugaredLogger) (*Service, error) {
	if v == nil || token.IsZeroAddress(address) || token.IsZeroAddress(owner) {
		return nil, fmt.Errorf("%w: vault, address and owner are required", ErrInvalidParams)
	}
	if !calc.ValidPercentage(penaltyFeePercentage) {
		return nil, fmt.Errorf("%w: penalty fee outside [0, %d]", ErrInvalidParams, calc.Scale)
	}
	if recorder == nil {
		recorder = events.Discard
	}
	return &Service{
		vault:                 v,
		asset:                 v.Asset(),
		address:               address,
		recorder:              recorder,
		logger:                logger,
		owner:                 owner,
		allowedFeeSetters:     make(map[string]bool),
		allowedFulfillers:     make(map[string]bool),
		penaltyFeePercentage:  penaltyFeePercentage,
		queuedWithdrawAmounts: make(map[string]decimal.Decimal),
	}, nil
}

// QueueExcessWithdraw escrows the share equivalent of assets from the caller
// and queues the penalty-discounted amount for receiver, settling instantly
// when the buffer already covers it. maxPenaltyFeePercentage is the caller's
// ceiling against a fee increase racing the request.
func (s *Service) QueueExcessWithdraw(ctx context.Context, caller string, assets decimal.Decimal, receiver string, maxPenaltyFeePercentage int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !assets.IsPositive() {
		return fmt.Errorf("%w: assets must be positive", ErrInvalidParams)
	}
	shares := s.vault.PreviewWithdraw(assets)
	return s.queueLocked(ctx, caller, assets, shares, receiver, maxPenaltyFeePercentage)
}

// QueueExcessRedeem is QueueExcessWithdraw with share-denominated input;
// the share amount converts to assets before the common path.
func (s *Service) QueueExcessRedeem(ctx context.Context, caller string, shares decimal.Decimal, receiver string, maxPenaltyFeePercentage int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !shares.IsPositive() {
		return fmt.Errorf("%w: shares must be positive", ErrInvalidParams)
	}
	assets := s.vault.PreviewRedeem(shares)
	if !assets.IsPositive() {
		return fmt.Errorf("%w: shares convert to zero assets", ErrInvalidParams)
	}
	return s.queueLocked(ctx, caller, assets, shares, receiver, maxPenaltyFeePercentage)
}

func (s *Service) queueLocked(_ context.Context, caller string, assets, shares decimal.Decimal, receiver string, maxPenaltyFeePercentage int64) error {
	if token.IsZeroAddress(receiver) {
		return fmt.Errorf("%w: zero receiver", ErrInvalidParams)
	}
	if s.penaltyFeePercentage > maxPenaltyFeePercentage {
		return fmt.Errorf("%w: penalty fee %d exceeds caller ceiling %d", ErrInvalidParams, s.penaltyFeePercentage, maxPenaltyFeePercentage)
	}

	// Pull the shares into escrow; fails without the caller's prior approval.
	if err := s.vault.TransferSharesFrom(s.address, caller, s.address, shares); err != nil {
		return err
	}

	queuedAmount := calc.PenaltyAmount(assets, s.penaltyFeePercentage)
	s.queuedWithdrawAmounts[receiver] = s.queuedWithdrawAmounts[receiver].Add(queuedAmount)
	s.totalQueuedAmount = s.totalQueuedAmount.Add(queuedAmount)

	// Instant path: the buffer already covers everything owed to receiver.
	owed := s.queuedWithdrawAmounts[receiver]
	if s.asset.BalanceOf(s.address).GreaterThanOrEqual(owed) {
		s.queuedWithdrawAmounts[receiver] = decimal.Zero
		s.totalQueuedAmount = s.totalQueuedAmount.Sub(owed)
		if s.totalQueuedAmount.IsNegative() {
			s.totalQueuedAmount = decimal.Zero
		}
		if err := s.asset.Transfer(s.address, receiver, owed); err != nil {
			return err
		}
		s.recorder.Record(events.ExcessWithdrawExecuted{Receiver: receiver, Assets: owed})
		return nil
	}

	s.recorder.Record(events.ExcessWithdrawRequested{Owner: caller, Receiver: receiver, Assets: assets})
	return nil
}

// FromVault burns sharesToBurn of the escrow pool through the vault's
// redeemExcess path, paying amount (minus the vault's own withdraw fee) into
// the queue's buffer, and retires amount from the outstanding total. It
// replenishes the buffer only; no receiver is picked. Fulfiller only.
func (s *Service) FromVault(ctx context.Context, caller string, amount, sharesToBurn decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.allowedFulfillers[caller] {
		return fmt.Errorf("%w: %s is not a fulfiller", ErrUnauthorized, caller)
	}
	if !amount.IsPositive() || !sharesToBurn.IsPositive() {
		return fmt.Errorf("%w: amount and shares must be positive", ErrInvalidParams)
	}

	if err := s.vault.RedeemExcess(ctx, s.address, amount, sharesToBurn); err != nil {
		return err
	}

	s.totalQueuedAmount = s.totalQueuedAmount.Sub(amount)
	if s.totalQueuedAmount.IsNegative() {
		s.totalQueuedAmount = decimal.Zero
	}

	s.recorder.Record(events.FromVault{AmountMoved: amount, SharesBurned: sharesToBurn})
	return nil
}

// ExecuteExcessWithdraw pays receiver everything owed from the buffer. A
// receiver with nothing owed is a silent no-op; callable by anyone.
func (s *Service) ExecuteExcessWithdraw(_ context.Context, receiver string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owed := s.queuedWithdrawAmounts[receiver]
	if !owed.IsPositive() {
		return nil
	}
	if s.asset.BalanceOf(s.address).LessThan(owed) {
		return fmt.Errorf("%w: buffer %s cannot cover %s", ErrInsufficientLiquidity, s.asset.BalanceOf(s.address), owed)
	}

	s.queuedWithdrawAmounts[receiver] = decimal.Zero
	if err := s.asset.Transfer(s.address, receiver, owed); err != nil {
		return err
	}

	s.recorder.Record(events.ExcessWithdrawExecuted{Receiver: receiver, Assets: owed})
	return nil
}
