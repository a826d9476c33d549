package queue

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/litefi/litevault-backend/internal/calc"
	"github.com/litefi/litevault-backend/internal/token"
	"github.com/litefi/litevault-backend/internal/vault"
)

func (s *Service) requireOwnerLocked(caller string) error {
	if caller != s.owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller)
	}
	return nil
}

// TransferOwnership hands the single owner role to newOwner.
func (s *Service) TransferOwnership(_ context.Context, caller, newOwner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if token.IsZeroAddress(newOwner) {
		return fmt.Errorf("%w: zero address", ErrInvalidParams)
	}
	s.owner = newOwner
	return nil
}

// SetFeeSetter grants or revokes the penalty-fee role. Owner only.
func (s *Service) SetFeeSetter(_ context.Context, caller, addr string, allowed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if token.IsZeroAddress(addr) {
		return fmt.Errorf("%w: zero address", ErrInvalidParams)
	}
	s.allowedFeeSetters[addr] = allowed
	return nil
}

// SetFulfiller grants or revokes the buffer-replenishment role. Owner only.
func (s *Service) SetFulfiller(_ context.Context, caller, addr string, allowed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if token.IsZeroAddress(addr) {
		return fmt.Errorf("%w: zero address", ErrInvalidParams)
	}
	s.allowedFulfillers[addr] = allowed
	return nil
}

// SetPenaltyFee updates the penalty percentage. Fee setter only.
func (s *Service) SetPenaltyFee(_ context.Context, caller string, pct int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.allowedFeeSetters[caller] {
		return fmt.Errorf("%w: %s is not a fee setter", ErrUnauthorized, caller)
	}
	if !calc.ValidPercentage(pct) {
		return fmt.Errorf("%w: percentage outside [0, %d]", ErrInvalidParams, calc.Scale)
	}
	s.penaltyFeePercentage = pct
	return nil
}

// Read-side accessors.

func (s *Service) Vault() *vault.Service {
	return s.vault
}

// Address is the queue's own account on the asset and share ledgers.
func (s *Service) Address() string {
	return s.address
}

func (s *Service) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

func (s *Service) IsFeeSetter(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowedFeeSetters[addr]
}

func (s *Service) IsFulfiller(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowedFulfillers[addr]
}

func (s *Service) PenaltyFeePercentage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.penaltyFeePercentage
}

// QueuedWithdrawAmount is what receiver is still owed.
func (s *Service) QueuedWithdrawAmount(receiver string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queuedWithdrawAmounts[receiver]
}

// TotalQueuedAmount is the aggregate still to be sourced from the vault.
func (s *Service) TotalQueuedAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalQueuedAmount
}

// BufferBalance is the queue's own settlement-asset balance.
func (s *Service) BufferBalance() decimal.Decimal {
	return s.asset.BalanceOf(s.address)
}

// EscrowedShares is the share balance held by the queue.
func (s *Service) EscrowedShares() decimal.Decimal {
	return s.vault.BalanceOf(s.address)
}
