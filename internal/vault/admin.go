package vault

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/litefi/litevault-backend/internal/calc"
	"github.com/litefi/litevault-backend/internal/token"
)

// Owner-gated administration. Every setter validates before mutating; a
// failed validation leaves state untouched.

func (s *Service) requireOwnerLocked(caller string) error {
	if !s.initialized {
		return ErrNotInitialized
	}
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

func (s *Service) SetMinimumThresholdPercentage(_ context.Context, caller string, pct int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if !calc.ValidPercentage(pct) {
		return fmt.Errorf("%w: percentage outside [0, %d]", ErrInvalidParams, calc.Scale)
	}
	s.minimumThresholdPercentage = pct
	return nil
}

func (s *Service) SetWithdrawFeePercentage(_ context.Context, caller string, pct int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if !calc.ValidPercentage(pct) {
		return fmt.Errorf("%w: percentage outside [0, %d]", ErrInvalidParams, calc.Scale)
	}
	s.withdrawFeePercentage = pct
	return nil
}

func (s *Service) SetWithdrawFeeAbsoluteMin(_ context.Context, caller string, min decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if min.IsNegative() {
		return fmt.Errorf("%w: negative fee minimum", ErrInvalidParams)
	}
	s.withdrawFeeAbsoluteMin = min
	return nil
}

func (s *Service) SetBridgeAddress(_ context.Context, caller, bridge string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if token.IsZeroAddress(bridge) {
		return fmt.Errorf("%w: zero address", ErrInvalidParams)
	}
	s.bridgeAddress = bridge
	return nil
}

func (s *Service) SetRebalancer(_ context.Context, caller, addr string, allowed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if token.IsZeroAddress(addr) {
		return fmt.Errorf("%w: zero address", ErrInvalidParams)
	}
	s.allowedRebalancers[addr] = allowed
	return nil
}

// WithdrawFees drains the collected fee balance to receiver.
func (s *Service) WithdrawFees(_ context.Context, caller, receiver string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return decimal.Zero, err
	}
	if token.IsZeroAddress(receiver) {
		return decimal.Zero, fmt.Errorf("%w: zero address", ErrInvalidParams)
	}

	fees := s.collectedFees
	s.collectedFees = decimal.Zero
	if fees.IsPositive() {
		if err := s.asset.Transfer(s.address, receiver, fees); err != nil {
			s.collectedFees = fees
			return decimal.Zero, err
		}
	}
	return fees, nil
}
