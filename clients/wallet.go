package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/vitwit/stablepay/types"
)

var _ Wallet = (*RPCWallet)(nil)

const (
	sendCallsVersion    = "2.0.0"
	defaultPollInterval = 500 * time.Millisecond
)

// RPCWallet drives a wallet that exposes EIP-5792 wallet_sendCalls and
// eth_sendTransaction over JSON-RPC.
type RPCWallet struct {
	rpc          *rpc.Client
	chainID      *big.Int
	encoder      *Encoder
	pollInterval time.Duration
}

// NewRPCWallet dials the wallet endpoint described by config.
func NewRPCWallet(ctx context.Context, config types.ClientConfig) (*RPCWallet, error) {
	url := config.WalletRPCUrl
	if url == "" {
		return nil, ErrMissingWallet
	}

	c, err := rpc.DialOptions(ctx, url, rpcOptions(config.Headers)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to wallet RPC: %w", err)
	}

	w, err := NewRPCWalletFromRPC(c, big.NewInt(config.ChainID), config.ExchangeAddress, config.PollInterval)
	if err != nil {
		c.Close()
		return nil, err
	}
	return w, nil
}

// NewRPCWalletFromRPC wraps an existing RPC connection.
func NewRPCWalletFromRPC(c *rpc.Client, chainID *big.Int, exchange string, poll time.Duration) (*RPCWallet, error) {
	enc, err := NewEncoder(exchange)
	if err != nil {
		return nil, err
	}
	if poll <= 0 {
		poll = defaultPollInterval
	}

	return &RPCWallet{
		rpc:          c,
		chainID:      chainID,
		encoder:      enc,
		pollInterval: poll,
	}, nil
}

type walletCall struct {
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value"`
}

type sendCallsParams struct {
	Version        string       `json:"version"`
	ChainID        *hexutil.Big `json:"chainId"`
	From           string       `json:"from"`
	AtomicRequired bool         `json:"atomicRequired"`
	Calls          []walletCall `json:"calls"`
}

type callsStatus struct {
	ID       string `json:"id"`
	Status   int    `json:"status"`
	Atomic   bool   `json:"atomic"`
	Receipts []struct {
		TransactionHash common.Hash `json:"transactionHash"`
	} `json:"receipts"`
}

type txArgs struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

type txReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	Status          hexutil.Uint64 `json:"status"`
}

// SendAtomicBatch implements Wallet. Errors returned after wallet_sendCalls
// succeeded are *BatchSubmittedError.
func (w *RPCWallet) SendAtomicBatch(ctx context.Context, from string, calls []types.Call) (*types.BatchResult, error) {
	if err := requireAddresses(from); err != nil {
		return nil, err
	}

	encoded, err := w.encoder.EncodeAll(calls)
	if err != nil {
		return nil, err
	}

	params := sendCallsParams{
		Version:        sendCallsVersion,
		ChainID:        (*hexutil.Big)(w.chainID),
		From:           common.HexToAddress(from).Hex(),
		AtomicRequired: true,
		Calls:          make([]walletCall, 0, len(encoded)),
	}
	for _, c := range encoded {
		params.Calls = append(params.Calls, walletCall{To: c.To, Data: c.Data, Value: (*hexutil.Big)(new(big.Int))})
	}

	var raw json.RawMessage
	if err := w.rpc.CallContext(ctx, &raw, "wallet_sendCalls", params); err != nil {
		return nil, err
	}

	// the wallet holds the batch from here on
	id, err := parseBatchID(raw)
	if err != nil {
		return nil, &BatchSubmittedError{Err: err}
	}

	status, err := w.waitForCalls(ctx, id)
	if err != nil {
		return nil, &BatchSubmittedError{ID: id, Err: err}
	}

	result := &types.BatchResult{
		ID:       id,
		Status:   status.Status,
		Atomic:   status.Atomic,
		Receipts: make([]string, 0, len(status.Receipts)),
	}
	for _, r := range status.Receipts {
		if r.TransactionHash != (common.Hash{}) {
			result.Receipts = append(result.Receipts, r.TransactionHash.Hex())
		}
	}
	return result, nil
}

// SendSingle implements Wallet.
func (w *RPCWallet) SendSingle(ctx context.Context, from string, call types.Call) (string, error) {
	if err := requireAddresses(from); err != nil {
		return "", err
	}

	enc, err := w.encoder.Encode(call)
	if err != nil {
		return "", err
	}

	var hash common.Hash
	args := txArgs{From: common.HexToAddress(from), To: enc.To, Data: enc.Data}
	if err := w.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return "", err
	}

	receipt, err := w.waitForReceipt(ctx, hash)
	if err != nil {
		return "", err
	}
	if receipt.Status != 1 {
		return hash.Hex(), fmt.Errorf("%s %s: %w", call.Kind(), hash.Hex(), ErrReverted)
	}
	return hash.Hex(), nil
}

// Close releases the RPC connection.
func (w *RPCWallet) Close() {
	w.rpc.Close()
}

func (w *RPCWallet) waitForCalls(ctx context.Context, id string) (*callsStatus, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		var status callsStatus
		if err := w.rpc.CallContext(ctx, &status, "wallet_getCallsStatus", id); err != nil {
			return nil, err
		}
		if status.Status != types.BatchPending {
			return &status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *RPCWallet) waitForReceipt(ctx context.Context, hash common.Hash) (*txReceipt, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		var receipt *txReceipt
		if err := w.rpc.CallContext(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// parseBatchID accepts both the bare-string id of early EIP-5792 drafts and
// the {"id": ...} object of the final version.
func parseBatchID(raw json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil && id != "" {
		return id, nil
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.ID != "" {
		return obj.ID, nil
	}

	return "", fmt.Errorf("wallet_sendCalls: %w: %s", ErrUnexpectedResp, strings.TrimSpace(string(raw)))
}
