package httpapi

import (
	"math/big"

	"github.com/vitwit/stablepay/settlement"
	"github.com/vitwit/stablepay/types"
	"github.com/vitwit/stablepay/utils"
)

// amount carries base units as a string alongside the formatted decimal.
type amount struct {
	Units   string `json:"units"`
	Decimal string `json:"decimal"`
}

func newAmount(v *big.Int, decimals int) *amount {
	if v == nil {
		return nil
	}
	return &amount{Units: v.String(), Decimal: utils.FormatUnits(v, decimals)}
}

type callResponse struct {
	Kind        types.CallKind `json:"kind"`
	Token       string         `json:"token,omitempty"`
	Spender     string         `json:"spender,omitempty"`
	To          string         `json:"to,omitempty"`
	TokenIn     string         `json:"tokenIn,omitempty"`
	TokenOut    string         `json:"tokenOut,omitempty"`
	Amount      string         `json:"amount,omitempty"`
	AmountOut   string         `json:"amountOut,omitempty"`
	MaxAmountIn string         `json:"maxAmountIn,omitempty"`
}

type previewResponse struct {
	Invoice         types.Invoice  `json:"invoice"`
	SourceToken     types.Token    `json:"sourceToken"`
	NeedsConversion bool           `json:"needsConversion"`
	TargetAmount    *amount        `json:"targetAmount"`
	QuotedAmountIn  *amount        `json:"quotedAmountIn,omitempty"`
	MaxAmountIn     *amount        `json:"maxAmountIn,omitempty"`
	Balance         *amount        `json:"balance"`
	Allowance       *amount        `json:"allowance,omitempty"`
	Sufficient      bool           `json:"sufficient"`
	Shortfall       *amount        `json:"shortfall,omitempty"`
	Calls           []callResponse `json:"calls"`
}

func newPreviewResponse(p *settlement.Preview) previewResponse {
	src := p.Quote.SourceToken.Decimals
	res := previewResponse{
		Invoice:         p.Invoice,
		SourceToken:     p.Quote.SourceToken,
		NeedsConversion: p.Quote.NeedsConversion,
		TargetAmount:    newAmount(p.Quote.TargetAmount, p.Quote.TargetToken.Decimals),
		QuotedAmountIn:  newAmount(p.Quote.QuotedAmountIn, src),
		MaxAmountIn:     newAmount(p.Quote.MaxAmountIn, src),
		Balance:         newAmount(p.Balance, src),
		Allowance:       newAmount(p.Allowance, src),
		Calls:           make([]callResponse, 0, len(p.Calls)),
	}
	if p.Funds != nil {
		res.Sufficient = p.Funds.Valid
		res.Shortfall = newAmount(p.Funds.Shortfall, src)
	}

	for _, c := range p.Calls {
		res.Calls = append(res.Calls, newCallResponse(c))
	}
	return res
}

func newCallResponse(c types.Call) callResponse {
	out := callResponse{Kind: c.Kind()}
	switch v := c.(type) {
	case types.Approve:
		out.Token, out.Spender, out.Amount = v.Token, v.Spender, str(v.Amount)
	case types.Swap:
		out.TokenIn, out.TokenOut = v.TokenIn, v.TokenOut
		out.AmountOut, out.MaxAmountIn = str(v.AmountOut), str(v.MaxAmountIn)
	case types.Transfer:
		out.Token, out.To, out.Amount = v.Token, v.To, str(v.Amount)
	}
	return out
}

func str(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
