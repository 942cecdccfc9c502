package clients

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/stablepay/types"
)

// EncodedCall is a call ready to be sent as a transaction.
type EncodedCall struct {
	To   common.Address
	Data []byte
}

// Encoder turns plan calls into contract calldata.
type Encoder struct {
	exchange common.Address
}

// NewEncoder returns an encoder whose swaps target the given exchange contract.
func NewEncoder(exchange string) (*Encoder, error) {
	if !common.IsHexAddress(exchange) {
		return nil, fmt.Errorf("invalid exchange address %q", exchange)
	}
	return &Encoder{exchange: common.HexToAddress(exchange)}, nil
}

// Exchange returns the exchange contract address.
func (e *Encoder) Exchange() common.Address {
	return e.exchange
}

// Encode packs a single call.
func (e *Encoder) Encode(call types.Call) (*EncodedCall, error) {
	var (
		to   common.Address
		data []byte
		err  error
	)

	switch c := call.(type) {
	case types.Approve:
		if err := requireAddresses(c.Token, c.Spender); err != nil {
			return nil, err
		}
		to = common.HexToAddress(c.Token)
		data, err = tokenABI.Pack(FunctionApprove, common.HexToAddress(c.Spender), amountOrZero(c.Amount))
	case types.Swap:
		if err := requireAddresses(c.TokenIn, c.TokenOut); err != nil {
			return nil, err
		}
		to = e.exchange
		data, err = exchangeABI.Pack(FunctionSwapOut,
			common.HexToAddress(c.TokenIn),
			common.HexToAddress(c.TokenOut),
			amountOrZero(c.AmountOut),
			amountOrZero(c.MaxAmountIn),
		)
	case types.Transfer:
		if err := requireAddresses(c.Token, c.To); err != nil {
			return nil, err
		}
		to = common.HexToAddress(c.Token)
		data, err = tokenABI.Pack(FunctionTransfer, common.HexToAddress(c.To), amountOrZero(c.Amount))
	default:
		return nil, fmt.Errorf("unsupported call type %T", call)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", call.Kind(), err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyCallData
	}

	return &EncodedCall{To: to, Data: data}, nil
}

// EncodeAll packs calls preserving their order.
func (e *Encoder) EncodeAll(calls []types.Call) ([]*EncodedCall, error) {
	out := make([]*EncodedCall, 0, len(calls))
	for i, c := range calls {
		enc, err := e.Encode(c)
		if err != nil {
			return nil, fmt.Errorf("call %d: %w", i, err)
		}
		out = append(out, enc)
	}
	return out, nil
}

func requireAddresses(addrs ...string) error {
	for _, a := range addrs {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("invalid address %q", a)
		}
	}
	return nil
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
