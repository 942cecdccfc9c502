package clients

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/vitwit/stablepay/types"
)

var (
	_ ChainReader = (*EVMClient)(nil)
	_ Quoter      = (*EVMClient)(nil)
	_ Faucet      = (*EVMClient)(nil)
)

// EVMClient reads token state and exchange quotes over JSON-RPC.
type EVMClient struct {
	network  types.Network
	rpc      *rpc.Client
	eth      *ethclient.Client
	exchange common.Address
}

// NewEVMClient dials the chain RPC described by config.
func NewEVMClient(ctx context.Context, config types.ClientConfig) (*EVMClient, error) {
	c, err := rpc.DialOptions(ctx, config.RPCUrl, rpcOptions(config.Headers)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain RPC: %w", err)
	}

	client, err := NewEVMClientFromRPC(config.Network, c, config.ExchangeAddress)
	if err != nil {
		c.Close()
		return nil, err
	}
	return client, nil
}

// NewEVMClientFromRPC wraps an existing RPC connection.
func NewEVMClientFromRPC(network types.Network, c *rpc.Client, exchange string) (*EVMClient, error) {
	if !common.IsHexAddress(exchange) {
		return nil, fmt.Errorf("invalid exchange address %q", exchange)
	}

	return &EVMClient{
		network:  network,
		rpc:      c,
		eth:      ethclient.NewClient(c),
		exchange: common.HexToAddress(exchange),
	}, nil
}

// GetNetwork returns the network the client is bound to.
func (e *EVMClient) GetNetwork() types.Network {
	return e.network
}

// ChainID queries the chain id of the connected node.
func (e *EVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	return e.eth.ChainID(ctx)
}

// BalanceOf implements ChainReader.
func (e *EVMClient) BalanceOf(ctx context.Context, token, account string) (*big.Int, error) {
	if err := requireAddresses(token, account); err != nil {
		return nil, err
	}
	return e.callUint(ctx, tokenABI, common.HexToAddress(token), FunctionBalanceOf,
		common.HexToAddress(account))
}

// Allowance implements ChainReader.
func (e *EVMClient) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	if err := requireAddresses(token, owner, spender); err != nil {
		return nil, err
	}
	return e.callUint(ctx, tokenABI, common.HexToAddress(token), FunctionAllowance,
		common.HexToAddress(owner), common.HexToAddress(spender))
}

// QuoteAmountIn implements Quoter using the exchange's exact-output quote.
func (e *EVMClient) QuoteAmountIn(ctx context.Context, tokenIn, tokenOut string, amountOut *big.Int) (*big.Int, error) {
	if err := requireAddresses(tokenIn, tokenOut); err != nil {
		return nil, err
	}
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("amountOut must be positive")
	}
	return e.callUint(ctx, exchangeABI, e.exchange, FunctionQuoteOut,
		common.HexToAddress(tokenIn), common.HexToAddress(tokenOut), amountOut)
}

// FundAddress implements Faucet via the node's tempo_fundAddress method.
func (e *EVMClient) FundAddress(ctx context.Context, address string) ([]string, error) {
	if err := requireAddresses(address); err != nil {
		return nil, err
	}

	var hashes []string
	if err := e.rpc.CallContext(ctx, &hashes, "tempo_fundAddress", common.HexToAddress(address)); err != nil {
		return nil, fmt.Errorf("faucet request failed: %w", err)
	}
	return hashes, nil
}

// Close releases the RPC connection.
func (e *EVMClient) Close() {
	e.rpc.Close()
}

func (e *EVMClient) callUint(
	ctx context.Context,
	contractABI abi.ABI,
	contract common.Address,
	method string,
	args ...interface{},
) (*big.Int, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	out, err := e.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}

	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s: %w", method, ErrUnexpectedResp)
	}

	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T: %w", method, values[0], ErrUnexpectedResp)
	}
	return v, nil
}

func rpcOptions(headers map[string]string) []rpc.ClientOption {
	var opts []rpc.ClientOption
	for k, v := range headers {
		opts = append(opts, rpc.WithHeader(k, v))
	}
	return opts
}
