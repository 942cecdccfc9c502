package clients

import (
	"context"
	"math/big"

	"github.com/vitwit/stablepay/types"
)

// ChainReader answers read-only token queries.
type ChainReader interface {
	BalanceOf(ctx context.Context, token, account string) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error)
}

// Quoter prices an exact-output conversion between two tokens.
type Quoter interface {
	QuoteAmountIn(ctx context.Context, tokenIn, tokenOut string, amountOut *big.Int) (*big.Int, error)
}

// Wallet submits calls on behalf of the connected account.
type Wallet interface {
	// SendAtomicBatch submits every call as one all-or-nothing unit and
	// waits for the wallet to report a final status. Errors raised after
	// the wallet accepted the batch must match ErrBatchSubmitted.
	SendAtomicBatch(ctx context.Context, from string, calls []types.Call) (*types.BatchResult, error)
	// SendSingle submits one call and waits for its receipt.
	SendSingle(ctx context.Context, from string, call types.Call) (string, error)
}

// Faucet funds testnet addresses with faucet-eligible tokens.
type Faucet interface {
	FundAddress(ctx context.Context, address string) ([]string, error)
}
