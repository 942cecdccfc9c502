package verification

import (
	"math/big"

	"github.com/vitwit/stablepay/types"
	"github.com/vitwit/stablepay/utils"
)

// Result describes whether the payer can cover a settlement.
type Result struct {
	Valid     bool     `json:"valid"`
	Required  *big.Int `json:"required"`
	Available *big.Int `json:"available"`
	Shortfall *big.Int `json:"shortfall,omitempty"`
}

// RequiredAmount is what the payer must hold of the source token: the
// slippage-bounded input for a conversion, the invoice amount otherwise.
func RequiredAmount(qc *types.QuoteContext) *big.Int {
	if qc == nil {
		return nil
	}
	if qc.NeedsConversion {
		return qc.MaxAmountIn
	}
	return qc.TargetAmount
}

// Check compares balance against the amount the quote requires.
func Check(qc *types.QuoteContext, balance *big.Int) *Result {
	required := RequiredAmount(qc)
	if required == nil {
		required = new(big.Int)
	}
	available := balance
	if available == nil {
		available = new(big.Int)
	}

	res := &Result{
		Valid:     available.Cmp(required) >= 0,
		Required:  new(big.Int).Set(required),
		Available: new(big.Int).Set(available),
	}
	if !res.Valid {
		res.Shortfall = new(big.Int).Sub(required, available)
	}
	return res
}

// Verify returns INSUFFICIENT_BALANCE when balance does not cover the quote.
func Verify(qc *types.QuoteContext, balance *big.Int) error {
	if qc == nil || RequiredAmount(qc) == nil {
		return types.NewError(types.ErrInvalidRequest, nil, "nothing to verify")
	}

	res := Check(qc, balance)
	if res.Valid {
		return nil
	}

	decimals := qc.SourceToken.Decimals
	return types.NewError(types.ErrInsufficientFunds, nil,
		"need %s %s, have %s",
		utils.FormatUnits(res.Required, decimals),
		qc.SourceToken.Symbol,
		utils.FormatUnits(res.Available, decimals),
	)
}
