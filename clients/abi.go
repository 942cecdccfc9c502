package clients

import (
	"bytes"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract function names
const (
	FunctionBalanceOf = "balanceOf"
	FunctionAllowance = "allowance"
	FunctionApprove   = "approve"
	FunctionTransfer  = "transfer"
	FunctionQuoteOut  = "quoteSwapExactAmountOut"
	FunctionSwapOut   = "swapExactAmountOut"
)

// Tempo testnet defaults
const (
	DefaultExchangeAddress = "0xdec0000000000000000000000000000000000000"
	DefaultFeeToken        = "0x20c0000000000000000000000000000000000001"
	TempoTestnetChainID    = 42429
)

// TokenABI covers the TIP-20 / ERC-20 surface used for settlement.
var TokenABI = []byte(`[
	{
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)

// ExchangeABI covers the stablecoin exchange quote and exact-output swap.
var ExchangeABI = []byte(`[
	{
		"inputs": [
			{"name": "tokenIn", "type": "address"},
			{"name": "tokenOut", "type": "address"},
			{"name": "amountOut", "type": "uint128"}
		],
		"name": "quoteSwapExactAmountOut",
		"outputs": [{"name": "amountIn", "type": "uint128"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "tokenIn", "type": "address"},
			{"name": "tokenOut", "type": "address"},
			{"name": "amountOut", "type": "uint128"},
			{"name": "maxAmountIn", "type": "uint128"}
		],
		"name": "swapExactAmountOut",
		"outputs": [{"name": "amountIn", "type": "uint128"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)

var (
	tokenABI    = mustParseABI(TokenABI)
	exchangeABI = mustParseABI(ExchangeABI)
)

func mustParseABI(raw []byte) abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
