package token

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0xa11ce00000000000000000000000000000000001"
	bob   = "0xb0b0000000000000000000000000000000000002"
	carol = "0xca201000000000000000000000000000000003"
)

func amt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestMintAndTransfer(t *testing.T) {
	l := NewLedger("USDC")

	require.NoError(t, l.Mint(alice, amt(1000)))
	assert.True(t, amt(1000).Equal(l.BalanceOf(alice)))
	assert.True(t, amt(1000).Equal(l.TotalSupply()))

	require.NoError(t, l.Transfer(alice, bob, amt(400)))
	assert.True(t, amt(600).Equal(l.BalanceOf(alice)))
	assert.True(t, amt(400).Equal(l.BalanceOf(bob)))
	assert.True(t, amt(1000).Equal(l.TotalSupply()))
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := NewLedger("USDC")
	require.NoError(t, l.Mint(alice, amt(10)))

	err := l.Transfer(alice, bob, amt(11))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, amt(10).Equal(l.BalanceOf(alice)))
	assert.True(t, l.BalanceOf(bob).IsZero())
}

func TestApproveAndTransferFrom(t *testing.T) {
	l := NewLedger("USDC")
	require.NoError(t, l.Mint(alice, amt(1000)))
	require.NoError(t, l.Approve(alice, bob, amt(300)))

	assert.True(t, amt(300).Equal(l.Allowance(alice, bob)))

	require.NoError(t, l.TransferFrom(bob, alice, carol, amt(200)))
	assert.True(t, amt(200).Equal(l.BalanceOf(carol)))
	assert.True(t, amt(100).Equal(l.Allowance(alice, bob)))

	err := l.TransferFrom(bob, alice, carol, amt(101))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestTransferFromWithoutApproval(t *testing.T) {
	l := NewLedger("USDC")
	require.NoError(t, l.Mint(alice, amt(1000)))

	err := l.TransferFrom(bob, alice, bob, amt(1))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestZeroAddressRejected(t *testing.T) {
	l := NewLedger("USDC")
	require.NoError(t, l.Mint(alice, amt(10)))

	assert.ErrorIs(t, l.Transfer(alice, ZeroAddress, amt(1)), ErrInvalidRequest)
	assert.ErrorIs(t, l.Transfer("", alice, amt(1)), ErrInvalidRequest)
	assert.ErrorIs(t, l.Mint(ZeroAddress, amt(1)), ErrInvalidRequest)
	assert.ErrorIs(t, l.Approve(alice, "", amt(1)), ErrInvalidRequest)
}

func TestIsZeroAddress(t *testing.T) {
	assert.True(t, IsZeroAddress(""))
	assert.True(t, IsZeroAddress(ZeroAddress))
	assert.True(t, IsZeroAddress("0x0000000000000000000000000000000000000000"))
	assert.False(t, IsZeroAddress(alice))
}
