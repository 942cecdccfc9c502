package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/vitwit/stablepay/types"
)

type codedError struct {
	code int
	msg  string
}

func (e *codedError) Error() string  { return e.msg }
func (e *codedError) ErrorCode() int { return e.code }

// fakeWallet records every submission. Sequential hashes are 0x01, 0x02, ...
type fakeWallet struct {
	mu sync.Mutex

	batchResult *types.BatchResult
	batchErr    error
	failAt      int
	failErr     error
	emptyHash   bool

	batches [][]types.Call
	singles []types.Call
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{failAt: -1}
}

func (w *fakeWallet) SendAtomicBatch(ctx context.Context, from string, calls []types.Call) (*types.BatchResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.batches = append(w.batches, calls)
	if w.batchErr != nil {
		return nil, w.batchErr
	}
	return w.batchResult, nil
}

func (w *fakeWallet) SendSingle(ctx context.Context, from string, call types.Call) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := len(w.singles)
	w.singles = append(w.singles, call)
	if i == w.failAt {
		return "", w.failErr
	}
	if w.emptyHash {
		return "", nil
	}
	return fmt.Sprintf("0x%02x", i+1), nil
}
