// Package balances reads token balances and allowances for one settlement
// attempt, caching results until a mutating call is submitted.
package balances

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/vitwit/stablepay/clients"
	"github.com/vitwit/stablepay/types"
	"golang.org/x/sync/errgroup"
)

// Query asks for a balance and, when Spender is set, the allowance granted to it.
type Query struct {
	Account string
	Token   string
	Spender string
}

// Snapshot is the result of a Query. Allowance is nil when no spender was asked for.
type Snapshot struct {
	Balance   *big.Int
	Allowance *big.Int
}

// Reader caches chain reads for the lifetime of one attempt.
type Reader struct {
	chain clients.ChainReader

	mu    sync.Mutex
	cache map[string]*big.Int
}

// NewReader returns an empty reader over chain.
func NewReader(chain clients.ChainReader) *Reader {
	return &Reader{
		chain: chain,
		cache: make(map[string]*big.Int),
	}
}

// Balance returns account's balance of token.
func (r *Reader) Balance(ctx context.Context, account, token string) (*big.Int, error) {
	key := cacheKey("balance", account, token)
	if v, ok := r.lookup(key); ok {
		return v, nil
	}

	if r.chain == nil {
		return nil, types.NewError(types.ErrBalanceUnavailable, nil, "chain reader not configured")
	}

	v, err := r.chain.BalanceOf(ctx, token, account)
	if err != nil {
		return nil, types.NewError(types.ErrBalanceUnavailable, err, "balance of %s: %v", token, err)
	}
	if v == nil {
		return nil, types.NewError(types.ErrBalanceUnavailable, nil, "balance of %s: empty response", token)
	}

	r.put(key, v)
	return new(big.Int).Set(v), nil
}

// Allowance returns how much of token spender may move from account.
func (r *Reader) Allowance(ctx context.Context, account, spender, token string) (*big.Int, error) {
	key := cacheKey("allowance", account, spender, token)
	if v, ok := r.lookup(key); ok {
		return v, nil
	}

	if r.chain == nil {
		return nil, types.NewError(types.ErrBalanceUnavailable, nil, "chain reader not configured")
	}

	v, err := r.chain.Allowance(ctx, token, account, spender)
	if err != nil {
		return nil, types.NewError(types.ErrBalanceUnavailable, err, "allowance of %s: %v", token, err)
	}
	if v == nil {
		v = new(big.Int)
	}

	r.put(key, v)
	return new(big.Int).Set(v), nil
}

// Read runs the balance and allowance reads concurrently and returns once
// both have completed.
func (r *Reader) Read(ctx context.Context, q Query) (*Snapshot, error) {
	var snap Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := r.Balance(gctx, q.Account, q.Token)
		snap.Balance = v
		return err
	})
	if q.Spender != "" {
		g.Go(func() error {
			v, err := r.Allowance(gctx, q.Account, q.Spender, q.Token)
			snap.Allowance = v
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Invalidate drops every cached value.
func (r *Reader) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*big.Int)
}

func (r *Reader) lookup(key string) (*big.Int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.cache[key]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

func (r *Reader) put(key string, v *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = new(big.Int).Set(v)
}

func cacheKey(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "/")
}
