// Package recorder writes the outcome of a settlement: an immutable payment
// record followed by a guarded open->paid invoice update.
package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vitwit/stablepay/logger"
	"github.com/vitwit/stablepay/metrics"
	"github.com/vitwit/stablepay/storage"
	"github.com/vitwit/stablepay/types"
	"github.com/vitwit/stablepay/utils"
)

type Recorder struct {
	store   storage.Store
	logger  logger.Logger
	metrics metrics.Recorder
	now     func() time.Time
	newID   func() string
}

type Option func(*Recorder)

func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Recorder) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithClock overrides the time source used for CreatedAt and PaidAt.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

func New(store storage.Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:   store,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists a confirmed settlement of invoice by payer in txHash.
//
// A second Record for an invoice that is no longer open returns
// ALREADY_SETTLED. When the payment is stored but the invoice update fails
// for any other reason the result carries Reconciled=false instead of an error.
func (r *Recorder) Record(ctx context.Context, invoice *types.Invoice, payer, txHash string) (*types.SettledInvoice, error) {
	if r.store == nil {
		return nil, types.NewError(types.ErrConfiguration, nil, "persistence is not configured")
	}
	if invoice == nil || invoice.ID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, nil, "invoice is required")
	}
	if err := utils.ValidateAddress(payer); err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err, "payer: %v", err)
	}
	if err := utils.ValidateTransactionHash(txHash); err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err, "tx hash: %v", err)
	}

	start := time.Now()
	defer func() {
		r.metrics.ObserveLatency(metrics.LatencyRecord, time.Since(start), nil)
	}()

	fields := map[string]any{
		"invoice": invoice.ID,
		"payer":   payer,
		"tx_hash": txHash,
	}

	now := r.now()
	payment := types.Payment{
		ID:           r.newID(),
		InvoiceID:    invoice.ID,
		Status:       types.PaymentConfirmed,
		PayerAddress: payer,
		Amount:       invoice.Amount,
		TokenAddress: invoice.TokenAddress,
		TxHash:       txHash,
		CreatedAt:    now,
	}

	err := r.store.InsertPayment(ctx, &payment)
	switch {
	case errors.Is(err, storage.ErrDuplicatePayment):
		r.logger.Info("payment already recorded", fields)
	case err != nil:
		r.logger.Error("failed to insert payment", logger.With(fields, map[string]any{"error": err}))
		rerr := types.NewError(types.ErrRecordFailed, err, "settled on chain in %s but the payment could not be recorded: %v", txHash, err)
		rerr.TxHash = txHash
		return nil, rerr
	}

	updated, err := r.store.MarkInvoicePaid(ctx, invoice.ID, types.PaidUpdate{
		PayerAddress: payer,
		TxHash:       txHash,
		PaidAt:       now,
	})
	switch {
	case err == nil:
		r.logger.Info("invoice settled", fields)
		return &types.SettledInvoice{
			Invoice:    *updated,
			Payment:    payment,
			TxHash:     txHash,
			Reconciled: true,
		}, nil

	case errors.Is(err, storage.ErrInvoiceNotOpen):
		r.logger.Warn("invoice was settled by another attempt", fields)
		return nil, types.NewError(types.ErrAlreadySettled, err, "invoice %s is already settled", invoice.ID)

	default:
		r.logger.Error("payment recorded but invoice update failed", logger.With(fields, map[string]any{"error": err}))
		r.metrics.IncCounter(metrics.RecordUnresolved, nil)

		pending := *invoice
		return &types.SettledInvoice{
			Invoice:    pending,
			Payment:    payment,
			TxHash:     txHash,
			Reconciled: false,
		}, nil
	}
}
