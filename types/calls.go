package types

import "math/big"

// CallKind names the variant of a Call.
type CallKind string

const (
	CallApprove  CallKind = "approve"
	CallSwap     CallKind = "swap"
	CallTransfer CallKind = "transfer"
)

// Call is one on-chain operation in a settlement plan. The set of
// implementations is closed: Approve, Swap and Transfer.
type Call interface {
	Kind() CallKind
	call()
}

// Approve lets Spender move up to Amount of Token on the payer's behalf.
type Approve struct {
	Token   string   `json:"token"`
	Spender string   `json:"spender"`
	Amount  *big.Int `json:"amount"`
}

// Swap buys exactly AmountOut of TokenOut, spending at most MaxAmountIn of TokenIn.
type Swap struct {
	TokenIn     string   `json:"tokenIn"`
	TokenOut    string   `json:"tokenOut"`
	AmountOut   *big.Int `json:"amountOut"`
	MaxAmountIn *big.Int `json:"maxAmountIn"`
}

// Transfer sends Amount of Token to To.
type Transfer struct {
	Token  string   `json:"token"`
	To     string   `json:"to"`
	Amount *big.Int `json:"amount"`
}

func (Approve) Kind() CallKind  { return CallApprove }
func (Swap) Kind() CallKind     { return CallSwap }
func (Transfer) Kind() CallKind { return CallTransfer }

func (Approve) call()  {}
func (Swap) call()     {}
func (Transfer) call() {}

// BatchResult is the wallet's answer to an atomic batch submission.
type BatchResult struct {
	ID       string   `json:"id"`
	Status   int      `json:"status"`
	Atomic   bool     `json:"atomic"`
	Receipts []string `json:"receipts"`
}

// Batch status codes as reported by wallet_getCallsStatus.
const (
	BatchPending         = 100
	BatchConfirmed       = 200
	BatchOffchainFailure = 400
	BatchReverted        = 500
	BatchPartialRevert   = 600
)

// Succeeded reports whether every call in the batch landed.
func (b *BatchResult) Succeeded() bool {
	return b != nil && b.Status == BatchConfirmed
}

// FirstHash returns the first non-empty receipt hash.
func (b *BatchResult) FirstHash() string {
	if b == nil {
		return ""
	}
	for _, h := range b.Receipts {
		if h != "" {
			return h
		}
	}
	return ""
}
