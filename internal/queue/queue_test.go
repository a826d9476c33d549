package queue

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/calc"
	"github.com/litefi/litevault-backend/internal/events"
	"github.com/litefi/litevault-backend/internal/token"
	"github.com/litefi/litevault-backend/internal/vault"
)

const (
	vaultAddr     = "0xvault"
	queueAddr     = "0xqueue"
	ownerAddr     = "0xowner"
	bridgeAddr    = "0xbridge"
	rebalancer    = "0xrebalancer"
	feeSetterAddr = "0xfeesetter"
	fulfillerAddr = "0xfulfiller"
	alice         = "0xalice"
	bob           = "0xbob"
)

const testPenaltyPct = 2_000_000 // 2%

func usdc(n int64) decimal.Decimal {
	return decimal.NewFromInt(n * 1_000_000)
}

type fixture struct {
	vault *vault.Service
	queue *Service
	asset *token.Ledger
	rec   *events.Capture
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	asset := token.NewLedger("USDC")
	rec := events.NewCapture()
	logger := zap.NewNop().Sugar()

	v := vault.NewService(asset, vaultAddr, rec, logger)
	require.NoError(t, v.Initialize(ctx, vault.InitParams{
		Owner:                      ownerAddr,
		MinimumThresholdPercentage: 10_000_000, // 10%
		WithdrawFeePercentage:      10_000,     // 0.01%
		WithdrawFeeAbsoluteMin:     usdc(20),
		BridgeAddress:              bridgeAddr,
		InitialExchangePrice:       decimal.NewFromInt(2_000_000),
	}))
	require.NoError(t, v.SetRebalancer(ctx, ownerAddr, rebalancer, true))

	q, err := NewService(v, queueAddr, ownerAddr, testPenaltyPct, rec, logger)
	require.NoError(t, err)
	require.NoError(t, q.SetFeeSetter(ctx, ownerAddr, feeSetterAddr, true))
	require.NoError(t, q.SetFulfiller(ctx, ownerAddr, fulfillerAddr, true))

	return &fixture{vault: v, queue: q, asset: asset, rec: rec}
}

func (f *fixture) deposit(t *testing.T, addr string, amount decimal.Decimal) {
	t.Helper()
	require.NoError(t, f.asset.Mint(addr, amount))
	require.NoError(t, f.asset.Approve(addr, vaultAddr, amount))
	_, err := f.vault.Deposit(context.Background(), addr, amount, addr)
	require.NoError(t, err)
}

// queueWithdraw approves the share escrow and files the request.
func (f *fixture) queueWithdraw(t *testing.T, caller string, assets decimal.Decimal, receiver string) {
	t.Helper()
	shares := f.vault.PreviewWithdraw(assets)
	require.NoError(t, f.vault.ApproveShares(caller, queueAddr, shares))
	require.NoError(t, f.queue.QueueExcessWithdraw(context.Background(), caller, assets, receiver, testPenaltyPct))
}

func TestNewServiceValidation(t *testing.T) {
	logger := zap.NewNop().Sugar()
	v := newFixture(t).vault

	_, err := NewService(nil, queueAddr, ownerAddr, testPenaltyPct, nil, logger)
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = NewService(v, token.ZeroAddress, ownerAddr, testPenaltyPct, nil, logger)
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = NewService(v, queueAddr, ownerAddr, calc.Scale+1, nil, logger)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestQueueExcessWithdrawDeferred(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, usdc(5000))
	require.NoError(t, f.vault.ToMainnet(context.Background(), rebalancer, usdc(4000)))

	f.queueWithdraw(t, alice, usdc(1000), alice)

	// shares escrowed under the queue's account, 2% penalty applied
	assert.True(t, usdc(1000).Equal(f.queue.EscrowedShares()))
	assert.True(t, usdc(4000).Equal(f.vault.BalanceOf(alice)))
	assert.True(t, usdc(980).Equal(f.queue.QueuedWithdrawAmount(alice)))
	assert.True(t, usdc(980).Equal(f.queue.TotalQueuedAmount()))
	assert.True(t, f.queue.BufferBalance().IsZero())

	reqs := f.rec.OfType(events.TypeExcessWithdrawRequested)
	require.Len(t, reqs, 1)
	ev := reqs[0].(events.ExcessWithdrawRequested)
	assert.Equal(t, alice, ev.Owner)
	assert.Equal(t, alice, ev.Receiver)
	assert.True(t, usdc(1000).Equal(ev.Assets))
	assert.Empty(t, f.rec.OfType(events.TypeExcessWithdrawExecuted))
}

func TestQueueRespectsPenaltyCeiling(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, usdc(5000))
	shares := f.vault.PreviewWithdraw(usdc(1000))
	require.NoError(t, f.vault.ApproveShares(alice, queueAddr, shares))

	// caller tolerates at most 1%, current fee is 2%
	err := f.queue.QueueExcessWithdraw(context.Background(), alice, usdc(1000), alice, 1_000_000)
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.True(t, f.queue.EscrowedShares().IsZero())
	assert.True(t, f.queue.TotalQueuedAmount().IsZero())
}

func TestQueueRequiresShareApproval(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, usdc(5000))

	err := f.queue.QueueExcessWithdraw(context.Background(), alice, usdc(1000), alice, testPenaltyPct)
	assert.ErrorIs(t, err, vault.ErrInsufficientAllowance)
	assert.True(t, f.queue.TotalQueuedAmount().IsZero())
}

func TestQueueRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.queue.QueueExcessWithdraw(ctx, alice, decimal.Zero, alice, testPenaltyPct)
	assert.ErrorIs(t, err, ErrInvalidParams)
	err = f.queue.QueueExcessWithdraw(ctx, alice, usdc(100), token.ZeroAddress, testPenaltyPct)
	assert.ErrorIs(t, err, ErrInvalidParams)
	err = f.queue.QueueExcessRedeem(ctx, alice, decimal.Zero, alice, testPenaltyPct)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestQueueSettlesInstantlyFromBuffer(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, usdc(5000))
	require.NoError(t, f.asset.Mint(queueAddr, usdc(2000)))

	f.queueWithdraw(t, alice, usdc(1000), bob)

	// buffer covered the 980 owed: paid out, nothing left queued
	assert.True(t, usdc(980).Equal(f.asset.BalanceOf(bob)))
	assert.True(t, f.queue.QueuedWithdrawAmount(bob).IsZero())
	assert.True(t, f.queue.TotalQueuedAmount().IsZero())
	assert.True(t, usdc(1020).Equal(f.queue.BufferBalance()))

	execs := f.rec.OfType(events.TypeExcessWithdrawExecuted)
	require.Len(t, execs, 1)
	ev := execs[0].(events.ExcessWithdrawExecuted)
	assert.Equal(t, bob, ev.Receiver)
	assert.True(t, usdc(980).Equal(ev.Assets))
	assert.Empty(t, f.rec.OfType(events.TypeExcessWithdrawRequested))
}

func TestInstantPathPaysWholeEntry(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, usdc(5000))

	// first request defers: buffer empty
	f.queueWithdraw(t, alice, usdc(1000), bob)
	require.True(t, usdc(980).Equal(f.queue.QueuedWithdrawAmount(bob)))

	// buffer arrives, second request settles the stacked entry in one payout
	require.NoError(t, f.asset.Mint(queueAddr, usdc(2000)))
	f.queueWithdraw(t, alice, usdc(1000), bob)

	assert.True(t, usdc(1960).Equal(f.asset.BalanceOf(bob)))
	assert.True(t, f.queue.QueuedWithdrawAmount(bob).IsZero())
	assert.True(t, f.queue.TotalQueuedAmount().IsZero())
}

func TestQueueExcessRedeem(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, usdc(5000))

	require.NoError(t, f.vault.ApproveShares(alice, queueAddr, usdc(1000)))
	require.NoError(t, f.queue.QueueExcessRedeem(context.Background(), alice, usdc(1000), alice, testPenaltyPct))

	// 1:1 rate, so 1000 shares queue 980 after the 2% penalty
	assert.True(t, usdc(1000).Equal(f.queue.EscrowedShares()))
	assert.True(t, usdc(980).Equal(f.queue.QueuedWithdrawAmount(alice)))
}

func TestExecuteExcessWithdrawNoopForUnknownReceiver(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.queue.ExecuteExcessWithdraw(context.Background(), bob))
	assert.Empty(t, f.rec.OfType(events.TypeExcessWithdrawExecuted))
}

func TestExecuteExcessWithdrawInsufficientBuffer(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, usdc(5000))
	f.queueWithdraw(t, alice, usdc(1000), alice)

	err := f.queue.ExecuteExcessWithdraw(context.Background(), alice)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	assert.True(t, usdc(980).Equal(f.queue.QueuedWithdrawAmount(alice)))
}

func TestExecuteExcessWithdrawPaysFromBuffer(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, usdc(5000))
	f.queueWithdraw(t, alice, usdc(1000), bob)

	require.NoError(t, f.asset.Mint(queueAddr, usdc(980)))
	require.NoError(t, f.queue.ExecuteExcessWithdraw(context.Background(), bob))

	assert.True(t, usdc(980).Equal(f.asset.BalanceOf(bob)))
	assert.True(t, f.queue.QueuedWithdrawAmount(bob).IsZero())
	assert.True(t, f.queue.BufferBalance().IsZero())
	require.Len(t, f.rec.OfType(events.TypeExcessWithdrawExecuted), 1)
}

func TestFromVaultReplenishesBuffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, alice, usdc(5000))
	f.queueWithdraw(t, alice, usdc(1000), alice)
	require.True(t, usdc(980).Equal(f.queue.TotalQueuedAmount()))

	err := f.queue.FromVault(ctx, fulfillerAddr, usdc(980), usdc(1000))
	require.NoError(t, err)

	// 980 redeemed from the vault, minus its 20 minimum withdraw fee
	assert.True(t, usdc(960).Equal(f.queue.BufferBalance()))
	assert.True(t, f.queue.EscrowedShares().IsZero())
	assert.True(t, f.queue.TotalQueuedAmount().IsZero())

	fv := f.rec.OfType(events.TypeFromVault)
	require.Len(t, fv, 1)
	ev := fv[0].(events.FromVault)
	assert.True(t, usdc(980).Equal(ev.AmountMoved))
	assert.True(t, usdc(1000).Equal(ev.SharesBurned))
}

func TestFromVaultFulfillerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.queue.FromVault(ctx, alice, usdc(100), usdc(100))
	assert.ErrorIs(t, err, ErrUnauthorized)
	err = f.queue.FromVault(ctx, fulfillerAddr, decimal.Zero, usdc(100))
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestFromVaultFailsWithoutEscrow(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, usdc(5000))

	// no shares escrowed: the vault rejects the burn
	err := f.queue.FromVault(context.Background(), fulfillerAddr, usdc(980), usdc(1000))
	assert.ErrorIs(t, err, vault.ErrInsufficientBalance)
	assert.True(t, f.queue.BufferBalance().IsZero())
}

func TestSetPenaltyFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.queue.SetPenaltyFee(ctx, alice, 1_000_000), ErrUnauthorized)
	assert.ErrorIs(t, f.queue.SetPenaltyFee(ctx, ownerAddr, 1_000_000), ErrUnauthorized)
	assert.ErrorIs(t, f.queue.SetPenaltyFee(ctx, feeSetterAddr, calc.Scale+1), ErrInvalidParams)

	require.NoError(t, f.queue.SetPenaltyFee(ctx, feeSetterAddr, 1_000_000))
	assert.Equal(t, int64(1_000_000), f.queue.PenaltyFeePercentage())
}

func TestRoleAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.queue.SetFulfiller(ctx, alice, bob, true), ErrUnauthorized)
	assert.ErrorIs(t, f.queue.SetFeeSetter(ctx, ownerAddr, token.ZeroAddress, true), ErrInvalidParams)

	require.NoError(t, f.queue.SetFulfiller(ctx, ownerAddr, fulfillerAddr, false))
	assert.False(t, f.queue.IsFulfiller(fulfillerAddr))

	require.NoError(t, f.queue.TransferOwnership(ctx, ownerAddr, bob))
	assert.Equal(t, bob, f.queue.Owner())
	assert.ErrorIs(t, f.queue.SetFulfiller(ctx, ownerAddr, alice, true), ErrUnauthorized)
}
