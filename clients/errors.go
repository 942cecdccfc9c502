package clients

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

const (
	// -----------------------------
	// JSON-RPC 2.0
	// -----------------------------
	CodeMethodNotFound     = -32601
	CodeMethodNotSupported = -32004

	// -----------------------------
	// EIP-1193 PROVIDER
	// -----------------------------
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200

	// -----------------------------
	// EIP-5792 WALLET CALLS
	// -----------------------------
	CodeUnsupportedCapability = 5700
	CodeUnsupportedChain      = 5710
	CodeDuplicateBatchID      = 5720
	CodeUnknownBatchID        = 5730
	CodeBatchTooLarge         = 5740
	CodeUpgradeRejected       = 5750
	CodeAtomicityUnsupported  = 5760
)

var (
	ErrReverted       = errors.New("transaction reverted")
	ErrMissingWallet  = errors.New("wallet rpc not configured")
	ErrEmptyCallData  = errors.New("call encoded to empty data")
	ErrUnexpectedResp = errors.New("unexpected rpc response")

	// ErrBatchSubmitted means wallet_sendCalls accepted the batch and a later
	// step failed. The calls may still land on chain.
	ErrBatchSubmitted = errors.New("batch submitted")
)

// BatchSubmittedError reports a failure after the wallet accepted a batch.
// It matches ErrBatchSubmitted and unwraps to the cause.
type BatchSubmittedError struct {
	ID  string
	Err error
}

func (e *BatchSubmittedError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("batch submitted: %v", e.Err)
	}
	return fmt.Sprintf("batch %s submitted: %v", e.ID, e.Err)
}

func (e *BatchSubmittedError) Unwrap() error {
	return e.Err
}

func (e *BatchSubmittedError) Is(target error) bool {
	return target == ErrBatchSubmitted
}

// RPCErrorCode extracts the JSON-RPC error code carried by err, if any.
func RPCErrorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}
