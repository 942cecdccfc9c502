package execution

import (
	"errors"
	"strings"

	"github.com/vitwit/stablepay/clients"
)

// unsupportedBatchCodes are the wallet error codes that mean atomic batches
// cannot be used at all, as opposed to the batch itself failing.
var unsupportedBatchCodes = map[int]string{
	clients.CodeMethodNotFound:        "method not found",
	clients.CodeMethodNotSupported:    "method not supported",
	clients.CodeUnsupportedMethod:     "unsupported method",
	clients.CodeUnsupportedCapability: "unsupported capability",
	clients.CodeUnsupportedChain:      "unsupported chain",
	clients.CodeUpgradeRejected:       "upgrade rejected",
	clients.CodeAtomicityUnsupported:  "atomicity not supported",
}

// A message counts only when it names the batching capability and says it is
// missing, so a revert such as "token not supported" does not qualify.
var (
	unsupportedSubjects = []string{"method", "wallet_sendcalls", "sendcalls", "atomic"}
	unsupportedPhrases  = []string{"not found", "not supported", "unsupported", "does not support"}
)

// IsUnsupportedBatching reports whether err means the wallet cannot run an
// atomic batch and the calls should be sent one by one instead. Errors raised
// after the wallet accepted the batch never qualify.
func IsUnsupportedBatching(err error) bool {
	if err == nil || errors.Is(err, clients.ErrBatchSubmitted) {
		return false
	}

	if code, ok := clients.RPCErrorCode(err); ok {
		if _, hit := unsupportedBatchCodes[code]; hit {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return containsAny(msg, unsupportedSubjects) && containsAny(msg, unsupportedPhrases)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
