// Package execution submits a call plan to the wallet, atomically when the
// wallet supports it and one call at a time otherwise.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vitwit/stablepay/clients"
	"github.com/vitwit/stablepay/logger"
	"github.com/vitwit/stablepay/metrics"
	"github.com/vitwit/stablepay/types"
)

// State of the engine for a single run.
type State string

const (
	StateIdle               State = "idle"
	StateSubmittingAtomic   State = "submitting_atomic"
	StateFallbackRequired   State = "fallback_required"
	StateSubmittingSequence State = "submitting_sequential"
	StateSettled            State = "settled"
	StateFailed             State = "failed"
)

// Outcome is the result of one Execute call.
type Outcome struct {
	Mode   types.ExecutionMode
	TxHash string
	// Hashes holds the per-call hashes of a sequential run.
	Hashes []string
	Trace  []State
	// Submitted is true once the wallet accepted at least one call.
	Submitted bool
}

// Engine runs call plans against a wallet. It is stateless between runs.
type Engine struct {
	wallet  clients.Wallet
	logger  logger.Logger
	metrics metrics.Recorder
	network string
}

type Option func(*Engine)

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithNetwork(network types.Network) Option {
	return func(e *Engine) {
		e.network = network.String()
	}
}

func NewEngine(wallet clients.Wallet, opts ...Option) *Engine {
	e := &Engine{
		wallet:  wallet,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type run struct {
	outcome Outcome
}

func (r *run) enter(s State) {
	r.outcome.Trace = append(r.outcome.Trace, s)
}

// Execute submits calls on behalf of from. The returned outcome is non-nil
// even on error so callers can inspect the trace.
func (e *Engine) Execute(ctx context.Context, from string, calls []types.Call) (*Outcome, error) {
	r := &run{}
	r.enter(StateIdle)

	if len(calls) == 0 {
		r.enter(StateFailed)
		return &r.outcome, types.NewError(types.ErrExecutionFailed, nil, "empty call plan")
	}
	if e.wallet == nil {
		r.enter(StateFailed)
		return &r.outcome, types.NewError(types.ErrConfiguration, clients.ErrMissingWallet, "wallet not configured")
	}

	start := time.Now()
	defer func() {
		e.metrics.ObserveLatency(metrics.LatencyExec, time.Since(start), map[string]string{"network": e.network})
	}()

	err := e.atomic(ctx, r, from, calls)
	if err == nil {
		return &r.outcome, nil
	}
	if !errors.Is(err, errFallback) {
		return &r.outcome, err
	}

	e.metrics.IncCounter(metrics.BatchFallback, map[string]string{"network": e.network})
	return &r.outcome, e.sequential(ctx, r, from, calls)
}

var errFallback = &types.SettlementError{Kind: types.ErrUnsupportedBatch}

func (e *Engine) atomic(ctx context.Context, r *run, from string, calls []types.Call) error {
	r.enter(StateSubmittingAtomic)
	r.outcome.Mode = types.ModeAtomic

	res, err := e.wallet.SendAtomicBatch(ctx, from, calls)
	if err != nil {
		if errors.Is(err, clients.ErrBatchSubmitted) {
			r.outcome.Submitted = true
			r.enter(StateFailed)
			e.logger.Error("batch accepted by wallet but its outcome is unknown", map[string]any{
				"calls": len(calls),
				"error": err,
			})
			return &types.SettlementError{
				Kind:    types.ErrExecutionFailed,
				Message: fmt.Sprintf("batch was submitted but its status could not be confirmed: %v", err),
				Step:    types.StepBatch,
				Err:     err,
			}
		}
		if IsUnsupportedBatching(err) {
			e.logger.Info("atomic batching unsupported, falling back to sequential", map[string]any{
				"calls": len(calls),
				"error": err,
			})
			r.enter(StateFallbackRequired)
			return types.NewError(types.ErrUnsupportedBatch, err, "%v", err)
		}

		r.enter(StateFailed)
		return &types.SettlementError{
			Kind:    types.ErrExecutionFailed,
			Message: err.Error(),
			Step:    types.StepBatch,
			Err:     err,
		}
	}

	if res == nil {
		r.enter(StateFailed)
		return &types.SettlementError{
			Kind:    types.ErrExecutionFailed,
			Message: "wallet returned no batch result",
			Step:    types.StepBatch,
		}
	}

	r.outcome.Submitted = true
	if !res.Succeeded() {
		r.enter(StateFailed)
		return &types.SettlementError{
			Kind:    types.ErrExecutionFailed,
			Message: fmt.Sprintf("batch %s finished with status %d", res.ID, res.Status),
			Step:    types.StepBatch,
		}
	}

	hash := res.FirstHash()
	if hash == "" {
		r.enter(StateFailed)
		return types.NewError(types.ErrHashMissing, nil, "batch %s confirmed without a transaction hash", res.ID)
	}

	r.outcome.TxHash = hash
	r.enter(StateSettled)
	return nil
}

func (e *Engine) sequential(ctx context.Context, r *run, from string, calls []types.Call) error {
	r.enter(StateSubmittingSequence)
	r.outcome.Mode = types.ModeSequential
	r.outcome.Hashes = make([]string, 0, len(calls))

	for i, call := range calls {
		hash, err := e.wallet.SendSingle(ctx, from, call)
		if hash != "" || err == nil {
			r.outcome.Submitted = true
		}
		if err != nil {
			r.enter(StateFailed)
			e.logger.Warn("sequential step failed", map[string]any{
				"step":  i,
				"call":  string(call.Kind()),
				"error": err,
			})
			return &types.SettlementError{
				Kind:    types.ErrExecutionFailed,
				Message: fmt.Sprintf("%s call failed: %v", call.Kind(), err),
				Step:    i,
				Err:     err,
			}
		}

		r.outcome.Hashes = append(r.outcome.Hashes, hash)
		e.logger.Debug("sequential step confirmed", map[string]any{
			"step": i,
			"call": string(call.Kind()),
			"hash": hash,
		})
	}

	final := r.outcome.Hashes[len(r.outcome.Hashes)-1]
	if final == "" {
		r.enter(StateFailed)
		return types.NewError(types.ErrHashMissing, nil, "final %s call returned no transaction hash", calls[len(calls)-1].Kind())
	}

	r.outcome.TxHash = final
	r.enter(StateSettled)
	return nil
}
