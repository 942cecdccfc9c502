package stablepay

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/vitwit/stablepay/types"
)

type fakeChain struct {
	mu       sync.Mutex
	balances map[string]*big.Int
	funded   []string
}

func newFakeChain() *fakeChain {
	return &fakeChain{balances: map[string]*big.Int{}}
}

func (f *fakeChain) set(token, account string, v int64) {
	f.balances[strings.ToLower(token+account)] = big.NewInt(v)
}

func (f *fakeChain) BalanceOf(ctx context.Context, token, account string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.balances[strings.ToLower(token+account)]; ok {
		return v, nil
	}
	return new(big.Int), nil
}

func (f *fakeChain) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	return new(big.Int), nil
}

func (f *fakeChain) QuoteAmountIn(ctx context.Context, tokenIn, tokenOut string, amountOut *big.Int) (*big.Int, error) {
	return new(big.Int).Set(amountOut), nil
}

func (f *fakeChain) FundAddress(ctx context.Context, address string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funded = append(f.funded, address)
	return []string{fmt.Sprintf("0x%064x", 1)}, nil
}

type fakeWallet struct {
	mu      sync.Mutex
	batches [][]types.Call
}

func (w *fakeWallet) SendAtomicBatch(ctx context.Context, from string, calls []types.Call) (*types.BatchResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, calls)
	return &types.BatchResult{
		ID:       fmt.Sprintf("batch-%d", len(w.batches)),
		Status:   types.BatchConfirmed,
		Receipts: []string{fmt.Sprintf("0x%064x", 0xbeef)},
	}, nil
}

func (w *fakeWallet) SendSingle(ctx context.Context, from string, call types.Call) (string, error) {
	return "", fmt.Errorf("not used")
}
