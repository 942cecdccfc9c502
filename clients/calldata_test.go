package clients

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/stablepay/types"
)

const (
	alphaUSD = "0x20c0000000000000000000000000000000000001"
	betaUSD  = "0x20c0000000000000000000000000000000000002"
	merchant = "0x384Aa214be0B279cbf211e9b2C992d8633F77848"
	payer    = "0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1"
)

func TestEncodeSelectors(t *testing.T) {
	enc, err := NewEncoder(DefaultExchangeAddress)
	require.NoError(t, err)

	approve, err := enc.Encode(types.Approve{Token: betaUSD, Spender: DefaultExchangeAddress, Amount: big.NewInt(5)})
	require.NoError(t, err)
	assert.Equal(t, "095ea7b3", hex.EncodeToString(approve.Data[:4]))
	assert.Equal(t, common.HexToAddress(betaUSD), approve.To)

	transfer, err := enc.Encode(types.Transfer{Token: alphaUSD, To: merchant, Amount: big.NewInt(7)})
	require.NoError(t, err)
	assert.Equal(t, "a9059cbb", hex.EncodeToString(transfer.Data[:4]))
	assert.Equal(t, common.HexToAddress(alphaUSD), transfer.To)
}

func TestEncodeSwapTargetsExchange(t *testing.T) {
	enc, err := NewEncoder(DefaultExchangeAddress)
	require.NoError(t, err)

	swap := types.Swap{
		TokenIn:     betaUSD,
		TokenOut:    alphaUSD,
		AmountOut:   big.NewInt(100_000_000),
		MaxAmountIn: big.NewInt(101_000_000),
	}
	out, err := enc.Encode(swap)
	require.NoError(t, err)
	assert.Equal(t, enc.Exchange(), out.To)

	method, err := exchangeABI.MethodById(out.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, FunctionSwapOut, method.Name)

	args, err := method.Inputs.Unpack(out.Data[4:])
	require.NoError(t, err)
	require.Len(t, args, 4)
	assert.Equal(t, common.HexToAddress(betaUSD), args[0])
	assert.Equal(t, common.HexToAddress(alphaUSD), args[1])
	assert.Equal(t, 0, big.NewInt(100_000_000).Cmp(args[2].(*big.Int)))
	assert.Equal(t, 0, big.NewInt(101_000_000).Cmp(args[3].(*big.Int)))
}

func TestEncodeAllKeepsOrder(t *testing.T) {
	enc, err := NewEncoder(DefaultExchangeAddress)
	require.NoError(t, err)

	calls := []types.Call{
		types.Approve{Token: betaUSD, Spender: DefaultExchangeAddress, Amount: big.NewInt(1)},
		types.Swap{TokenIn: betaUSD, TokenOut: alphaUSD, AmountOut: big.NewInt(1), MaxAmountIn: big.NewInt(1)},
		types.Transfer{Token: alphaUSD, To: merchant, Amount: big.NewInt(1)},
	}
	out, err := enc.EncodeAll(calls)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, common.HexToAddress(betaUSD), out[0].To)
	assert.Equal(t, enc.Exchange(), out[1].To)
	assert.Equal(t, common.HexToAddress(alphaUSD), out[2].To)
}

func TestEncodeRejectsBadAddress(t *testing.T) {
	enc, err := NewEncoder(DefaultExchangeAddress)
	require.NoError(t, err)

	_, err = enc.Encode(types.Transfer{Token: "nope", To: merchant, Amount: big.NewInt(1)})
	require.Error(t, err)

	_, err = NewEncoder("0x123")
	require.Error(t, err)
}
