package settlement

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/vitwit/stablepay/balances"
	"github.com/vitwit/stablepay/clients"
	"github.com/vitwit/stablepay/execution"
	"github.com/vitwit/stablepay/logger"
	"github.com/vitwit/stablepay/metrics"
	"github.com/vitwit/stablepay/plan"
	"github.com/vitwit/stablepay/quote"
	"github.com/vitwit/stablepay/recorder"
	"github.com/vitwit/stablepay/storage"
	"github.com/vitwit/stablepay/tokens"
	"github.com/vitwit/stablepay/types"
	"github.com/vitwit/stablepay/utils"
	"github.com/vitwit/stablepay/verification"
)

// Settler interface defines the contract for invoice settlement
type Settler interface {
	Settle(ctx context.Context, req SettleRequest) (*types.SettledInvoice, error)
	Preview(ctx context.Context, req SettleRequest) (*Preview, error)
}

// SettleRequest names the invoice, the paying wallet and the token it pays with.
type SettleRequest struct {
	InvoiceID   string `json:"invoiceId" validate:"required"`
	Payer       string `json:"payer" validate:"required,eth_addr"`
	SourceToken string `json:"sourceToken" validate:"required,eth_addr"`
}

// Preview is everything needed to render a pending payment without sending it.
type Preview struct {
	Invoice   types.Invoice        `json:"invoice"`
	Quote     *types.QuoteContext  `json:"quote"`
	Balance   *big.Int             `json:"balance"`
	Allowance *big.Int             `json:"allowance,omitempty"`
	Funds     *verification.Result `json:"funds"`
	Calls     []types.Call         `json:"calls"`
}

// Dependencies are the collaborators a SettlementService is built from.
type Dependencies struct {
	Catalog  *tokens.Catalog
	Chain    clients.ChainReader
	Quoter   clients.Quoter
	Wallet   clients.Wallet
	Store    storage.Store
	Exchange string
	Network  types.Network
}

// SettlementService settles invoices end to end.
type SettlementService struct {
	catalog  *tokens.Catalog
	chain    clients.ChainReader
	store    storage.Store
	exchange string
	network  types.Network

	resolver *quote.Resolver
	engine   *execution.Engine
	recorder *recorder.Recorder
	attempts *Attempts

	slippageBps int64
	timeout     time.Duration
	logger      logger.Logger
	metrics     metrics.Recorder
}

type Option func(*SettlementService)

func WithLogger(l logger.Logger) Option {
	return func(s *SettlementService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *SettlementService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *SettlementService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithSlippageBps(bps int64) Option {
	return func(s *SettlementService) {
		s.slippageBps = bps
	}
}

// NewSettlementService creates a new settlement service
func NewSettlementService(deps Dependencies, opts ...Option) *SettlementService {
	s := &SettlementService{
		catalog:     deps.Catalog,
		chain:       deps.Chain,
		store:       deps.Store,
		exchange:    deps.Exchange,
		network:     deps.Network,
		attempts:    NewAttempts(),
		slippageBps: quote.DefaultSlippageBps,
		timeout:     2 * time.Minute,
		logger:      logger.NoopLogger{},
		metrics:     metrics.NoopRecorder{},
	}
	if s.catalog == nil {
		s.catalog = tokens.Default()
	}
	for _, opt := range opts {
		opt(s)
	}

	s.resolver = quote.NewResolver(deps.Quoter, s.slippageBps)
	s.engine = execution.NewEngine(deps.Wallet,
		execution.WithLogger(s.logger),
		execution.WithMetrics(s.metrics),
		execution.WithNetwork(s.network),
	)
	s.recorder = recorder.New(deps.Store,
		recorder.WithLogger(s.logger),
		recorder.WithMetrics(s.metrics),
	)
	return s
}

// Attempts exposes the attempt registry so callers can abandon a payment.
func (s *SettlementService) Attempts() *Attempts {
	return s.attempts
}

// prepared is the state shared by Settle and Preview.
type prepared struct {
	invoice  *types.Invoice
	quote    *types.QuoteContext
	snapshot *balances.Snapshot
	calls    []types.Call
}

// Settle pays an invoice. Before anything is submitted the attempt is checked
// after every external call and stops with ABORTED when superseded. Once the
// wallet accepted calls the outcome is recorded regardless.
func (s *SettlementService) Settle(ctx context.Context, req SettleRequest) (result *types.SettledInvoice, err error) {
	labels := map[string]string{"network": s.network.String()}
	fields := map[string]any{
		"invoice": req.InvoiceID,
		"payer":   req.Payer,
		"source":  req.SourceToken,
	}

	start := time.Now()
	s.metrics.IncCounter(metrics.SettleAttempts, labels)
	defer func() {
		s.metrics.ObserveLatency(metrics.LatencySettle, time.Since(start), labels)
		if err != nil {
			kind := string(types.KindOf(err))
			s.metrics.IncCounter(metrics.SettleFailed, map[string]string{"network": s.network.String(), "kind": kind})
			s.logger.Warn("settlement failed", logger.With(fields, map[string]any{"kind": kind, "error": err}))
			return
		}
		s.metrics.IncCounter(metrics.SettleSucceeded, labels)
	}()

	attempt := s.attempts.Begin(req.InvoiceID)
	defer s.attempts.End(attempt)

	settleCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reader := balances.NewReader(s.chain)
	p, err := s.prepare(settleCtx, req, reader, attempt)
	if err != nil {
		return nil, err
	}

	if err := s.verifyFunds(p); err != nil {
		return nil, err
	}
	if !attempt.Active() {
		return nil, aborted(req.InvoiceID)
	}

	s.logger.Info("submitting settlement", logger.With(fields, map[string]any{
		"calls":      len(p.calls),
		"conversion": p.quote.NeedsConversion,
	}))

	// wallet calls run to completion even if the caller goes away; only the
	// pre-submission steps follow the caller's context
	execCtx, execCancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer execCancel()

	outcome, err := s.engine.Execute(execCtx, req.Payer, p.calls)
	if outcome != nil && outcome.Submitted {
		reader.Invalidate()
	}
	if err != nil {
		return nil, err
	}

	// the transfer is on chain; record it even if the caller went away
	settled, err := s.recorder.Record(context.WithoutCancel(ctx), p.invoice, req.Payer, outcome.TxHash)
	if err != nil {
		return nil, err
	}
	settled.Mode = outcome.Mode

	s.logger.Info("settlement complete", logger.With(fields, map[string]any{
		"tx_hash":    settled.TxHash,
		"mode":       string(settled.Mode),
		"reconciled": settled.Reconciled,
	}))
	return settled, nil
}

// Preview resolves the quote, balances and call plan without executing.
func (s *SettlementService) Preview(ctx context.Context, req SettleRequest) (*Preview, error) {
	previewCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.prepare(previewCtx, req, balances.NewReader(s.chain), nil)
	if err != nil {
		return nil, err
	}

	return &Preview{
		Invoice:   *p.invoice,
		Quote:     p.quote,
		Balance:   p.snapshot.Balance,
		Allowance: p.snapshot.Allowance,
		Funds:     verification.Check(p.quote, p.snapshot.Balance),
		Calls:     p.calls,
	}, nil
}

func (s *SettlementService) prepare(ctx context.Context, req SettleRequest, reader *balances.Reader, attempt *Attempt) (*prepared, error) {
	if s.store == nil {
		return nil, types.NewError(types.ErrConfiguration, nil, "persistence is not configured")
	}
	if err := utils.ValidateAddress(req.Payer); err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err, "payer: %v", err)
	}

	source, err := s.catalog.Lookup(req.SourceToken)
	if err != nil {
		return nil, types.NewError(types.ErrUnknownToken, err, "%v", err)
	}

	invoice, err := s.store.GetInvoice(ctx, req.InvoiceID)
	if err != nil {
		if errors.Is(err, storage.ErrInvoiceNotFound) {
			return nil, types.NewError(types.ErrInvoiceNotFound, err, "invoice %s not found", req.InvoiceID)
		}
		return nil, types.NewError(types.ErrConfiguration, err, "load invoice: %v", err)
	}
	if err := payable(invoice); err != nil {
		return nil, err
	}
	if err := checkActive(attempt, req.InvoiceID); err != nil {
		return nil, err
	}

	started := time.Now()
	qc, err := s.resolver.Resolve(ctx, quote.Request{
		SourceToken: source,
		TargetToken: invoice.TargetToken(),
		Amount:      invoice.Amount,
	})
	s.metrics.ObserveLatency(metrics.LatencyQuote, time.Since(started), map[string]string{"network": s.network.String()})
	if err != nil {
		return nil, err
	}
	if err := checkActive(attempt, req.InvoiceID); err != nil {
		return nil, err
	}

	query := balances.Query{Account: req.Payer, Token: source.Address}
	if qc.NeedsConversion {
		query.Spender = s.exchange
	}

	started = time.Now()
	snapshot, err := reader.Read(ctx, query)
	s.metrics.ObserveLatency(metrics.LatencyRead, time.Since(started), map[string]string{"network": s.network.String()})
	if err != nil {
		return nil, err
	}
	if err := checkActive(attempt, req.InvoiceID); err != nil {
		return nil, err
	}

	calls, err := plan.Build(plan.Intent{
		Quote:     qc,
		Merchant:  invoice.MerchantAddr,
		Exchange:  s.exchange,
		Allowance: snapshot.Allowance,
	})
	if err != nil {
		if errors.Is(err, plan.ErrMissingExchange) {
			return nil, types.NewError(types.ErrConfiguration, err, "%v", err)
		}
		return nil, types.NewError(types.ErrInvalidRequest, err, "%v", err)
	}

	return &prepared{
		invoice:  invoice,
		quote:    qc,
		snapshot: snapshot,
		calls:    calls,
	}, nil
}

func (s *SettlementService) verifyFunds(p *prepared) error {
	return verification.Verify(p.quote, p.snapshot.Balance)
}

func payable(inv *types.Invoice) error {
	switch inv.Status {
	case types.InvoiceOpen:
		return nil
	case types.InvoicePaid:
		return types.NewError(types.ErrAlreadySettled, nil, "invoice %s is already settled", inv.ID)
	default:
		return types.NewError(types.ErrInvoiceNotPayable, nil, "invoice %s is %s", inv.ID, inv.Status)
	}
}

func checkActive(a *Attempt, invoiceID string) error {
	if a == nil || a.Active() {
		return nil
	}
	return aborted(invoiceID)
}

func aborted(invoiceID string) error {
	return types.NewError(types.ErrAborted, nil, "payment attempt for invoice %s was abandoned", invoiceID)
}
