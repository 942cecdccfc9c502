package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

// rpcError is returned by the fake services so the client sees a coded error.
type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

type callArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data"`
	Input hexutil.Bytes   `json:"input"`
}

func (a callArgs) payload() []byte {
	if len(a.Input) > 0 {
		return a.Input
	}
	return a.Data
}

// fakeChain answers eth_call for token and exchange contracts and records
// submitted transactions.
type fakeChain struct {
	mu         sync.Mutex
	balances   map[string]*big.Int
	allowances map[string]*big.Int
	quote      func(amountOut *big.Int) *big.Int
	sent       []callArgs
	revert     bool
	sendErr    error
	funded     []common.Address
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances:   map[string]*big.Int{},
		allowances: map[string]*big.Int{},
	}
}

func balanceKey(token, account common.Address) string {
	return strings.ToLower(token.Hex() + "/" + account.Hex())
}

func allowanceKey(token, owner, spender common.Address) string {
	return strings.ToLower(token.Hex() + "/" + owner.Hex() + "/" + spender.Hex())
}

type ethService struct{ chain *fakeChain }

func (s *ethService) Call(args callArgs, block string) (hexutil.Bytes, error) {
	data := args.payload()
	if len(data) < 4 || args.To == nil {
		return nil, errors.New("bad call")
	}

	s.chain.mu.Lock()
	defer s.chain.mu.Unlock()

	if method, err := tokenABI.MethodById(data[:4]); err == nil {
		in, err := method.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		var v *big.Int
		switch method.Name {
		case FunctionBalanceOf:
			v = s.chain.balances[balanceKey(*args.To, in[0].(common.Address))]
		case FunctionAllowance:
			v = s.chain.allowances[allowanceKey(*args.To, in[0].(common.Address), in[1].(common.Address))]
		default:
			return nil, fmt.Errorf("unexpected view %s", method.Name)
		}
		if v == nil {
			v = new(big.Int)
		}
		return method.Outputs.Pack(v)
	}

	method, err := exchangeABI.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	in, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	if s.chain.quote == nil {
		return nil, &rpcError{code: 3, msg: "execution reverted: no liquidity"}
	}
	return method.Outputs.Pack(s.chain.quote(in[2].(*big.Int)))
}

func (s *ethService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(TempoTestnetChainID))
}

func (s *ethService) SendTransaction(args callArgs) (common.Hash, error) {
	s.chain.mu.Lock()
	defer s.chain.mu.Unlock()

	if s.chain.sendErr != nil {
		return common.Hash{}, s.chain.sendErr
	}
	s.chain.sent = append(s.chain.sent, args)
	return common.BigToHash(big.NewInt(int64(len(s.chain.sent)))), nil
}

func (s *ethService) GetTransactionReceipt(hash common.Hash) (map[string]string, error) {
	s.chain.mu.Lock()
	defer s.chain.mu.Unlock()

	status := "0x1"
	if s.chain.revert {
		status = "0x0"
	}
	return map[string]string{"transactionHash": hash.Hex(), "status": status}, nil
}

type tempoService struct{ chain *fakeChain }

func (s *tempoService) FundAddress(addr common.Address) ([]string, error) {
	s.chain.mu.Lock()
	defer s.chain.mu.Unlock()

	s.chain.funded = append(s.chain.funded, addr)
	return []string{common.BigToHash(big.NewInt(42)).Hex()}, nil
}

// fakeWallet implements the EIP-5792 wallet namespace.
type fakeWallet struct {
	mu       sync.Mutex
	batches  []sendCallsParams
	err      error
	status   int
	pending  int
	polls    int
	bareID   bool
	receipts []string
	// statusErr fails every wallet_getCallsStatus poll.
	statusErr error
}

func (w *fakeWallet) SendCalls(ctx context.Context, params sendCallsParams) (interface{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return nil, w.err
	}
	w.batches = append(w.batches, params)
	if w.bareID {
		return "0xbatch", nil
	}
	return map[string]string{"id": "0xbatch"}, nil
}

func (w *fakeWallet) GetCallsStatus(id string) (map[string]interface{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.polls++
	if w.statusErr != nil {
		return nil, w.statusErr
	}
	if w.polls <= w.pending {
		return map[string]interface{}{"id": id, "status": 100}, nil
	}

	receipts := make([]map[string]string, 0, len(w.receipts))
	for _, h := range w.receipts {
		receipts = append(receipts, map[string]string{"transactionHash": h})
	}
	return map[string]interface{}{
		"id":       id,
		"status":   w.status,
		"atomic":   true,
		"receipts": receipts,
	}, nil
}

func newTestServer(t *testing.T, chain *fakeChain, wallet *fakeWallet) *rpc.Client {
	t.Helper()

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", &ethService{chain: chain}))
	require.NoError(t, srv.RegisterName("tempo", &tempoService{chain: chain}))
	if wallet != nil {
		require.NoError(t, srv.RegisterName("wallet", wallet))
	}

	c := rpc.DialInProc(srv)
	t.Cleanup(func() {
		c.Close()
		srv.Stop()
	})
	return c
}
