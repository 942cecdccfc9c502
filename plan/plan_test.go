package plan

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/stablepay/types"
)

const (
	merchant = "0x384Aa214be0B279cbf211e9b2C992d8633F77848"
	exchange = "0xdec0000000000000000000000000000000000000"
)

var (
	alpha = types.Token{Address: "0x20c0000000000000000000000000000000000001", Symbol: "AlphaUSD", Decimals: 6}
	beta  = types.Token{Address: "0x20c0000000000000000000000000000000000002", Symbol: "BetaUSD", Decimals: 6}
)

func conversion() *types.QuoteContext {
	return &types.QuoteContext{
		SourceToken:     beta,
		TargetToken:     alpha,
		TargetAmount:    big.NewInt(100_000_000),
		NeedsConversion: true,
		QuotedAmountIn:  big.NewInt(99_000_000),
		MaxAmountIn:     big.NewInt(99_990_000),
	}
}

func kinds(calls []types.Call) []types.CallKind {
	out := make([]types.CallKind, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Kind())
	}
	return out
}

func TestBuildSameToken(t *testing.T) {
	calls, err := Build(Intent{
		Quote:    &types.QuoteContext{SourceToken: alpha, TargetToken: alpha, TargetAmount: big.NewInt(5)},
		Merchant: merchant,
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)

	transfer, ok := calls[0].(types.Transfer)
	require.True(t, ok)
	assert.Equal(t, alpha.Address, transfer.Token)
	assert.Equal(t, merchant, transfer.To)
	assert.Equal(t, "5", transfer.Amount.String())
}

func TestBuildConversionOrdering(t *testing.T) {
	cases := []struct {
		name      string
		allowance *big.Int
		want      []types.CallKind
	}{
		{"no allowance", nil, []types.CallKind{types.CallApprove, types.CallSwap, types.CallTransfer}},
		{"short allowance", big.NewInt(99_989_999), []types.CallKind{types.CallApprove, types.CallSwap, types.CallTransfer}},
		{"exact allowance", big.NewInt(99_990_000), []types.CallKind{types.CallSwap, types.CallTransfer}},
		{"ample allowance", big.NewInt(1_000_000_000), []types.CallKind{types.CallSwap, types.CallTransfer}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls, err := Build(Intent{Quote: conversion(), Merchant: merchant, Exchange: exchange, Allowance: tc.allowance})
			require.NoError(t, err)
			assert.Equal(t, tc.want, kinds(calls))
		})
	}
}

func TestBuildConversionAmounts(t *testing.T) {
	calls, err := Build(Intent{Quote: conversion(), Merchant: merchant, Exchange: exchange})
	require.NoError(t, err)
	require.Len(t, calls, 3)

	approve := calls[0].(types.Approve)
	assert.Equal(t, beta.Address, approve.Token)
	assert.Equal(t, exchange, approve.Spender)
	assert.Equal(t, "99990000", approve.Amount.String())

	swap := calls[1].(types.Swap)
	assert.Equal(t, beta.Address, swap.TokenIn)
	assert.Equal(t, alpha.Address, swap.TokenOut)
	assert.Equal(t, "100000000", swap.AmountOut.String())
	assert.Equal(t, "99990000", swap.MaxAmountIn.String())

	transfer := calls[2].(types.Transfer)
	assert.Equal(t, alpha.Address, transfer.Token)
	assert.Equal(t, "100000000", transfer.Amount.String())
}

func TestBuildDoesNotAliasQuote(t *testing.T) {
	q := conversion()
	calls, err := Build(Intent{Quote: q, Merchant: merchant, Exchange: exchange})
	require.NoError(t, err)

	calls[1].(types.Swap).MaxAmountIn.SetInt64(0)
	assert.Equal(t, "99990000", q.MaxAmountIn.String())
}

func TestBuildRejectsIncompleteIntent(t *testing.T) {
	noMax := conversion()
	noMax.MaxAmountIn = nil

	cases := map[string]Intent{
		"nil quote":     {Merchant: merchant, Exchange: exchange},
		"no amount":     {Quote: &types.QuoteContext{TargetToken: alpha}, Merchant: merchant},
		"no merchant":   {Quote: conversion(), Exchange: exchange},
		"no exchange":   {Quote: conversion(), Merchant: merchant},
		"no max amount": {Quote: noMax, Merchant: merchant, Exchange: exchange},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			calls, err := Build(in)
			assert.Nil(t, calls)
			assert.True(t, errors.Is(err, ErrCannotBuildPlan))
		})
	}
}
