// Package plan builds the ordered list of on-chain calls that settle an invoice.
package plan

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/vitwit/stablepay/types"
)

var ErrCannotBuildPlan = errors.New("cannot build call plan")

// ErrMissingExchange is the ErrCannotBuildPlan raised when a conversion has
// no exchange to approve and swap against.
var ErrMissingExchange = fmt.Errorf("%w: missing exchange address", ErrCannotBuildPlan)

// Intent is everything the builder needs. Allowance may be nil, which counts as zero.
type Intent struct {
	Quote     *types.QuoteContext
	Merchant  string
	Exchange  string
	Allowance *big.Int
}

// Build returns [Transfer] when no conversion is needed, otherwise
// [Approve?, Swap, Transfer]. The approval is included only when the current
// allowance does not cover MaxAmountIn.
func Build(in Intent) ([]types.Call, error) {
	q := in.Quote
	if q == nil || q.TargetAmount == nil || q.TargetAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: missing target amount", ErrCannotBuildPlan)
	}
	if in.Merchant == "" {
		return nil, fmt.Errorf("%w: missing merchant address", ErrCannotBuildPlan)
	}

	transfer := types.Transfer{
		Token:  q.TargetToken.Address,
		To:     in.Merchant,
		Amount: new(big.Int).Set(q.TargetAmount),
	}
	if !q.NeedsConversion {
		return []types.Call{transfer}, nil
	}

	if in.Exchange == "" {
		return nil, ErrMissingExchange
	}
	if q.MaxAmountIn == nil || q.MaxAmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: missing max amount in", ErrCannotBuildPlan)
	}

	calls := make([]types.Call, 0, 3)
	if NeedsApproval(in.Allowance, q.MaxAmountIn) {
		calls = append(calls, types.Approve{
			Token:   q.SourceToken.Address,
			Spender: in.Exchange,
			Amount:  new(big.Int).Set(q.MaxAmountIn),
		})
	}

	calls = append(calls,
		types.Swap{
			TokenIn:     q.SourceToken.Address,
			TokenOut:    q.TargetToken.Address,
			AmountOut:   new(big.Int).Set(q.TargetAmount),
			MaxAmountIn: new(big.Int).Set(q.MaxAmountIn),
		},
		transfer,
	)
	return calls, nil
}

// NeedsApproval reports whether allowance is below required.
func NeedsApproval(allowance, required *big.Int) bool {
	if allowance == nil {
		return required.Sign() > 0
	}
	return allowance.Cmp(required) < 0
}
