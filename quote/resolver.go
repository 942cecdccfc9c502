// Package quote decides whether a settlement needs a conversion and prices it.
package quote

import (
	"context"
	"math/big"

	"github.com/vitwit/stablepay/clients"
	"github.com/vitwit/stablepay/types"
	"github.com/vitwit/stablepay/utils"
)

// DefaultSlippageBps is the buffer added on top of a quote, in basis points.
const DefaultSlippageBps int64 = 100

const bpsDenominator = 10_000

// Request describes what the merchant wants and what the payer pays with.
type Request struct {
	SourceToken types.Token
	TargetToken types.Token
	Amount      string
}

// Resolver computes a QuoteContext for one attempt. A nil quoter disables
// conversions.
type Resolver struct {
	quoter      clients.Quoter
	slippageBps int64
}

// NewResolver returns a resolver. A non-positive slippage falls back to the default.
func NewResolver(quoter clients.Quoter, slippageBps int64) *Resolver {
	if slippageBps <= 0 {
		slippageBps = DefaultSlippageBps
	}
	return &Resolver{quoter: quoter, slippageBps: slippageBps}
}

// SlippageBps returns the configured buffer.
func (r *Resolver) SlippageBps() int64 {
	return r.slippageBps
}

// Resolve scales the invoice amount and, when the payer pays in another token,
// fetches the exact-output quote.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*types.QuoteContext, error) {
	target, err := utils.ParseUnits(req.Amount, req.TargetToken.Decimals)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err, "invoice amount %q: %v", req.Amount, err)
	}

	qc := &types.QuoteContext{
		SourceToken:     req.SourceToken,
		TargetToken:     req.TargetToken,
		TargetAmount:    target,
		NeedsConversion: !types.SameAddress(req.SourceToken.Address, req.TargetToken.Address),
	}
	if !qc.NeedsConversion {
		return qc, nil
	}

	if r.quoter == nil {
		return nil, types.NewError(types.ErrQuoteUnavailable, nil, "token conversion is not available")
	}

	quoted, err := r.quoter.QuoteAmountIn(ctx, req.SourceToken.Address, req.TargetToken.Address, target)
	if err != nil {
		return nil, types.NewError(types.ErrQuoteUnavailable, err, "quote %s -> %s: %v",
			req.SourceToken.Symbol, req.TargetToken.Symbol, err)
	}
	if quoted == nil || quoted.Sign() <= 0 {
		return nil, types.NewError(types.ErrQuoteUnavailable, nil, "quote %s -> %s returned no amount",
			req.SourceToken.Symbol, req.TargetToken.Symbol)
	}

	qc.QuotedAmountIn = new(big.Int).Set(quoted)
	qc.MaxAmountIn = ApplySlippage(quoted, r.slippageBps)
	return qc, nil
}

// ApplySlippage returns quoted + ceil(quoted * bps / 10000).
func ApplySlippage(quoted *big.Int, bps int64) *big.Int {
	if quoted == nil {
		return nil
	}

	num := new(big.Int).Mul(quoted, big.NewInt(bps))
	den := big.NewInt(bpsDenominator)
	buffer, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() > 0 {
		buffer.Add(buffer, big.NewInt(1))
	}
	return buffer.Add(buffer, quoted)
}
