package settlement

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/vitwit/stablepay/clients"
	"github.com/vitwit/stablepay/types"
)

type fakeChain struct {
	mu         sync.Mutex
	balances   map[string]*big.Int
	allowances map[string]*big.Int
	reads      int
}

func newFakeChain() *fakeChain {
	return &fakeChain{balances: map[string]*big.Int{}, allowances: map[string]*big.Int{}}
}

func (f *fakeChain) setBalance(token, account string, v int64) {
	f.balances[strings.ToLower(token+account)] = big.NewInt(v)
}

func (f *fakeChain) BalanceOf(ctx context.Context, token, account string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if v, ok := f.balances[strings.ToLower(token+account)]; ok {
		return v, nil
	}
	return new(big.Int), nil
}

func (f *fakeChain) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if v, ok := f.allowances[strings.ToLower(token+owner+spender)]; ok {
		return v, nil
	}
	return new(big.Int), nil
}

type fakeQuoter struct {
	amount  *big.Int
	err     error
	calls   int
	onQuote func()
}

func (f *fakeQuoter) QuoteAmountIn(ctx context.Context, tokenIn, tokenOut string, amountOut *big.Int) (*big.Int, error) {
	f.calls++
	if f.onQuote != nil {
		f.onQuote()
	}
	return f.amount, f.err
}

type codedError struct {
	code int
	msg  string
}

func (e *codedError) Error() string  { return e.msg }
func (e *codedError) ErrorCode() int { return e.code }

// fakeWallet confirms every batch and every single call unless told otherwise.
type fakeWallet struct {
	mu       sync.Mutex
	batchErr error
	failAt   int
	batches  [][]types.Call
	singles  []types.Call

	// entered and release, when set, hold the batch until released or the
	// context ends, like a wallet still polling for status.
	entered chan struct{}
	release chan struct{}
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{failAt: -1}
}

func txHash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

func (w *fakeWallet) SendAtomicBatch(ctx context.Context, from string, calls []types.Call) (*types.BatchResult, error) {
	if w.release != nil {
		close(w.entered)
		select {
		case <-w.release:
		case <-ctx.Done():
			return nil, &clients.BatchSubmittedError{ID: "batch-1", Err: ctx.Err()}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.batches = append(w.batches, calls)
	if w.batchErr != nil {
		return nil, w.batchErr
	}
	return &types.BatchResult{
		ID:       "batch-1",
		Status:   types.BatchConfirmed,
		Atomic:   true,
		Receipts: []string{txHash(100)},
	}, nil
}

func (w *fakeWallet) SendSingle(ctx context.Context, from string, call types.Call) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := len(w.singles)
	w.singles = append(w.singles, call)
	if i == w.failAt {
		return "", fmt.Errorf("transaction reverted")
	}
	return txHash(i + 1), nil
}
