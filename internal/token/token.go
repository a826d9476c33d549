package token

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidRequest        = errors.New("invalid request")
)

// ZeroAddress is the canonical null account. Transfers to or from it are
// rejected; mint/burn adjust supply directly instead.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// IsZeroAddress reports whether addr is empty or the canonical null account.
func IsZeroAddress(addr string) bool {
	return addr == "" || strings.EqualFold(addr, ZeroAddress)
}

// Ledger is an in-memory fungible-token ledger with standard
// balance/allowance/transfer semantics. It models the settlement asset the
// vault custodies; amounts are integer base units.
type Ledger struct {
	mu sync.RWMutex

	symbol      string
	balances    map[string]decimal.Decimal
	allowances  map[string]map[string]decimal.Decimal // owner -> spender -> amount
	totalSupply decimal.Decimal
}

func NewLedger(symbol string) *Ledger {
	return &Ledger{
		symbol:     symbol,
		balances:   make(map[string]decimal.Decimal),
		allowances: make(map[string]map[string]decimal.Decimal),
	}
}

func (l *Ledger) Symbol() string {
	return l.symbol
}

func (l *Ledger) BalanceOf(addr string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[addr]
}

func (l *Ledger) TotalSupply() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalSupply
}

func (l *Ledger) Allowance(owner, spender string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.allowances[owner]; ok {
		return m[spender]
	}
	return decimal.Zero
}

// Mint credits newly issued units to addr. Used to seed genesis balances and
// by tests; the service never mints inside a vault operation.
func (l *Ledger) Mint(addr string, amount decimal.Decimal) error {
	if IsZeroAddress(addr) || amount.IsNegative() {
		return ErrInvalidRequest
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[addr] = l.balances[addr].Add(amount)
	l.totalSupply = l.totalSupply.Add(amount)
	return nil
}

// Transfer moves amount from `from` to `to`.
func (l *Ledger) Transfer(from, to string, amount decimal.Decimal) error {
	if IsZeroAddress(from) || IsZeroAddress(to) || amount.IsNegative() {
		return ErrInvalidRequest
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLocked(from, to, amount)
}

// Approve sets spender's allowance over owner's balance to amount,
// overwriting any previous value.
func (l *Ledger) Approve(owner, spender string, amount decimal.Decimal) error {
	if IsZeroAddress(owner) || IsZeroAddress(spender) || amount.IsNegative() {
		return ErrInvalidRequest
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[string]decimal.Decimal)
		l.allowances[owner] = m
	}
	m[spender] = amount
	return nil
}

// TransferFrom moves amount from `owner` to `to`, spending `spender`'s
// allowance.
func (l *Ledger) TransferFrom(spender, owner, to string, amount decimal.Decimal) error {
	if IsZeroAddress(spender) || IsZeroAddress(owner) || IsZeroAddress(to) || amount.IsNegative() {
		return ErrInvalidRequest
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := decimal.Zero
	if m, ok := l.allowances[owner]; ok {
		allowed = m[spender]
	}
	if allowed.LessThan(amount) {
		return fmt.Errorf("%w: spender %s allowed %s, needs %s", ErrInsufficientAllowance, spender, allowed, amount)
	}

	if err := l.transferLocked(owner, to, amount); err != nil {
		return err
	}
	l.allowances[owner][spender] = allowed.Sub(amount)
	return nil
}

func (l *Ledger) transferLocked(from, to string, amount decimal.Decimal) error {
	bal := l.balances[from]
	if bal.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, bal, amount)
	}

	l.balances[from] = bal.Sub(amount)
	l.balances[to] = l.balances[to].Add(amount)
	return nil
}
