package verification

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/stablepay/types"
)

var beta = types.Token{Address: "0x20c0000000000000000000000000000000000002", Symbol: "BetaUSD", Decimals: 6}

func TestVerifySameToken(t *testing.T) {
	qc := &types.QuoteContext{SourceToken: beta, TargetToken: beta, TargetAmount: big.NewInt(100_000_000)}

	require.NoError(t, Verify(qc, big.NewInt(100_000_000)))

	err := Verify(qc, big.NewInt(99_999_999))
	require.Error(t, err)
	assert.Equal(t, types.ErrInsufficientFunds, types.KindOf(err))
	assert.Contains(t, err.Error(), "need 100 BetaUSD, have 99.999999")
}

func TestVerifyConversionUsesMaxAmountIn(t *testing.T) {
	qc := &types.QuoteContext{
		SourceToken:     beta,
		TargetAmount:    big.NewInt(100_000_000),
		NeedsConversion: true,
		QuotedAmountIn:  big.NewInt(99_000_000),
		MaxAmountIn:     big.NewInt(99_990_000),
	}

	// enough for the quote but not for the slippage bound
	err := Verify(qc, big.NewInt(99_500_000))
	assert.Equal(t, types.ErrInsufficientFunds, types.KindOf(err))

	require.NoError(t, Verify(qc, big.NewInt(99_990_000)))
}

func TestCheckShortfall(t *testing.T) {
	qc := &types.QuoteContext{SourceToken: beta, TargetAmount: big.NewInt(10)}

	res := Check(qc, nil)
	assert.False(t, res.Valid)
	assert.Equal(t, "10", res.Shortfall.String())

	res = Check(qc, big.NewInt(12))
	assert.True(t, res.Valid)
	assert.Nil(t, res.Shortfall)
}

func TestVerifyWithoutQuote(t *testing.T) {
	assert.Equal(t, types.ErrInvalidRequest, types.KindOf(Verify(nil, big.NewInt(1))))
}
