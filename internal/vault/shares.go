package vault

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/litefi/litevault-backend/internal/token"
)

// Fungible-share ledger. Mint/burn happen only inside deposit and payout
// paths; transfers and allowances follow the standard fungible-asset
// surface so the withdrawal queue can escrow shares via an approval.

func (s *Service) mintLocked(receiver string, shares decimal.Decimal) {
	s.shares[receiver] = s.shares[receiver].Add(shares)
	s.totalShares = s.totalShares.Add(shares)
}

func (s *Service) burnLocked(owner string, shares decimal.Decimal) error {
	bal := s.shares[owner]
	if bal.LessThan(shares) {
		return fmt.Errorf("%w: %s holds %s shares, needs %s", ErrInsufficientBalance, owner, bal, shares)
	}
	s.shares[owner] = bal.Sub(shares)
	s.totalShares = s.totalShares.Sub(shares)
	return nil
}

// BalanceOf returns owner's share balance.
func (s *Service) BalanceOf(owner string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shares[owner]
}

// TotalShares returns the outstanding share supply.
func (s *Service) TotalShares() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalShares
}

// TransferShares moves shares between holders.
func (s *Service) TransferShares(caller, to string, shares decimal.Decimal) error {
	if token.IsZeroAddress(caller) || token.IsZeroAddress(to) || shares.IsNegative() {
		return fmt.Errorf("%w: bad share transfer", ErrInvalidParams)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bal := s.shares[caller]
	if bal.LessThan(shares) {
		return fmt.Errorf("%w: %s holds %s shares, needs %s", ErrInsufficientBalance, caller, bal, shares)
	}
	s.shares[caller] = bal.Sub(shares)
	s.shares[to] = s.shares[to].Add(shares)
	return nil
}

// ApproveShares sets spender's allowance over owner's shares.
func (s *Service) ApproveShares(owner, spender string, shares decimal.Decimal) error {
	if token.IsZeroAddress(owner) || token.IsZeroAddress(spender) || shares.IsNegative() {
		return fmt.Errorf("%w: bad share approval", ErrInvalidParams)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.shareAllowances[owner]
	if !ok {
		m = make(map[string]decimal.Decimal)
		s.shareAllowances[owner] = m
	}
	m[spender] = shares
	return nil
}

// ShareAllowance returns spender's remaining allowance over owner's shares.
func (s *Service) ShareAllowance(owner, spender string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.shareAllowances[owner]; ok {
		return m[spender]
	}
	return decimal.Zero
}

// TransferSharesFrom moves shares from owner to `to`, spending the caller's
// allowance. The withdrawal queue uses this to pull shares into escrow.
func (s *Service) TransferSharesFrom(caller, owner, to string, shares decimal.Decimal) error {
	if token.IsZeroAddress(caller) || token.IsZeroAddress(owner) || token.IsZeroAddress(to) || shares.IsNegative() {
		return fmt.Errorf("%w: bad share transfer", ErrInvalidParams)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := decimal.Zero
	if m, ok := s.shareAllowances[owner]; ok {
		allowed = m[caller]
	}
	if allowed.LessThan(shares) {
		return fmt.Errorf("%w: %s allowed %s shares of %s, needs %s", ErrInsufficientAllowance, caller, allowed, owner, shares)
	}

	bal := s.shares[owner]
	if bal.LessThan(shares) {
		return fmt.Errorf("%w: %s holds %s shares, needs %s", ErrInsufficientBalance, owner, bal, shares)
	}

	s.shares[owner] = bal.Sub(shares)
	s.shares[to] = s.shares[to].Add(shares)
	s.shareAllowances[owner][caller] = allowed.Sub(shares)
	return nil
}
