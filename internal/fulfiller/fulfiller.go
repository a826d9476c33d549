package fulfiller

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/events"
	"github.com/litefi/litevault-backend/internal/queue"
	"github.com/litefi/litevault-backend/internal/token"
	"github.com/litefi/litevault-backend/internal/vault"
)

var (
	ErrUnauthorized  = errors.New("fulfiller: unauthorized")
	ErrInvalidParams = errors.New("fulfiller: invalid params")
)

// Service composes vault.FromMainnet and queue.FromVault into one
// replenish-and-settle step, closing the race window in which capital pulled
// back from mainnet could be claimed by unrelated instant-path withdrawals
// before the queue is funded.
//
// The service's own account must hold the vault rebalancer role and the
// queue fulfiller role; the caller must hold both as well.
type Service struct {
	vault    *vault.Service
	queue    *queue.Service
	address  string
	recorder events.Recorder
	logger   *zap.SugaredLogger
}

func NewService(v *vault.Service, q *queue.Service, address string, recorder events.Recorder, logger *zap.SugaredLogger) (*Service, error) {
	if v == nil || q == nil || token.IsZeroAddress(address) {
		return nil, fmt.Errorf("%w: vault, queue and address are required", ErrInvalidParams)
	}
	if recorder == nil {
		recorder = events.Discard
	}
	return &Service{
		vault:    v,
		queue:    q,
		address:  address,
		recorder: recorder,
		logger:   logger,
	}, nil
}

// Address is the fulfiller's own account, which needs both roles wired.
func (s *Service) Address() string {
	return s.address
}

// FulfillExcessWithdraw pulls amount back from mainnet into the vault and
// immediately burns sharesToBurn of the queue's escrow against it, funding
// the queue's buffer in the same step. The caller needs the vault rebalancer
// role and the queue fulfiller role; either one missing yields the same
// error.
func (s *Service) FulfillExcessWithdraw(ctx context.Context, caller string, amount, sharesToBurn decimal.Decimal) error {
	if !s.vault.IsRebalancer(caller) || !s.queue.IsFulfiller(caller) {
		return fmt.Errorf("%w: %s must hold both rebalancer and fulfiller roles", ErrUnauthorized, caller)
	}
	if !amount.IsPositive() || !sharesToBurn.IsPositive() {
		return fmt.Errorf("%w: amount and shares must be positive", ErrInvalidParams)
	}

	// Both legs must be able to succeed before the first one runs; the
	// engine executes whole operations in sequence, so checking up front
	// keeps the pair all-or-nothing.
	if !s.queue.IsFulfiller(s.address) {
		return fmt.Errorf("%w: %s lacks the queue fulfiller role", ErrUnauthorized, s.address)
	}
	if fee := s.vault.GetWithdrawFee(amount); fee.GreaterThan(amount) {
		return fmt.Errorf("%w: %s does not cover the vault withdraw fee %s", ErrInvalidParams, amount, fee)
	}
	if s.queue.EscrowedShares().LessThan(sharesToBurn) {
		return fmt.Errorf("%w: escrow holds %s shares, needs %s", ErrInvalidParams, s.queue.EscrowedShares(), sharesToBurn)
	}

	if err := s.vault.FromMainnet(ctx, s.address, amount); err != nil {
		return err
	}
	if err := s.queue.FromVault(ctx, s.address, amount, sharesToBurn); err != nil {
		return err
	}

	s.recorder.Record(events.ExcessWithdrawFulfilled{AmountMoved: amount, SharesBurned: sharesToBurn})
	if s.logger != nil {
		s.logger.Infow("Excess withdraw fulfilled",
			"caller", caller,
			"amount_moved", amount,
			"shares_burned", sharesToBurn,
		)
	}
	return nil
}
