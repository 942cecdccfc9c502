// Package stablepay settles stablecoin invoices on Tempo, converting between
// accepted stablecoins through the on-chain exchange when the payer holds a
// different token than the merchant asked for.
package stablepay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitwit/stablepay/clients"
	"github.com/vitwit/stablepay/logger"
	"github.com/vitwit/stablepay/metrics"
	"github.com/vitwit/stablepay/settlement"
	"github.com/vitwit/stablepay/storage"
	"github.com/vitwit/stablepay/tokens"
	"github.com/vitwit/stablepay/types"
	"github.com/vitwit/stablepay/utils"
)

// StablePay is the main struct that provides all settlement functionality
type StablePay struct {
	settlementService *settlement.SettlementService
	config            *types.Config

	catalog *tokens.Catalog
	store   storage.Store
	chain   clients.ChainReader
	quoter  clients.Quoter
	wallet  clients.Wallet
	faucet  clients.Faucet

	closers []func()

	logger      logger.Logger
	metrics     metrics.Recorder
	timeout     time.Duration
	slippageBps int64
}

// New creates a StablePay instance. Collaborators not supplied through
// options are built from config: chain and wallet RPC clients, and a
// Postgres store when a database URL is configured.
func New(ctx context.Context, config *types.Config, opts ...Option) (*StablePay, error) {
	if err := utils.ValidateConfig(config); err != nil {
		return nil, err
	}

	s := &StablePay{
		config:      config,
		logger:      logger.NoopLogger{},
		metrics:     metrics.NoopRecorder{},
		timeout:     config.DefaultTimeout,
		slippageBps: config.SlippageBps,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.NoopLogger{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NoopRecorder{}
	}

	if err := s.init(ctx); err != nil {
		s.Close()
		return nil, err
	}

	s.settlementService = settlement.NewSettlementService(settlement.Dependencies{
		Catalog:  s.catalog,
		Chain:    s.chain,
		Quoter:   s.quoter,
		Wallet:   s.wallet,
		Store:    s.store,
		Exchange: config.Client.ExchangeAddress,
		Network:  config.Client.Network,
	},
		settlement.WithLogger(s.logger),
		settlement.WithMetrics(s.metrics),
		settlement.WithTimeout(s.timeout),
		settlement.WithSlippageBps(s.slippageBps),
	)

	s.logger.Info("stablepay ready", map[string]any{
		"network":  config.Client.Network.String(),
		"exchange": config.Client.ExchangeAddress,
		"tokens":   len(s.catalog.All()),
	})
	return s, nil
}

func (s *StablePay) init(ctx context.Context) error {
	if s.catalog == nil {
		if len(s.config.Tokens) > 0 {
			c, err := tokens.NewCatalog(s.config.Tokens)
			if err != nil {
				return types.NewError(types.ErrConfiguration, err, "token catalog: %v", err)
			}
			s.catalog = c
		} else {
			s.catalog = tokens.Default()
		}
	}

	if s.chain == nil || s.quoter == nil {
		evm, err := clients.NewEVMClient(ctx, s.config.Client)
		if err != nil {
			return types.NewError(types.ErrConfiguration, err, "chain client: %v", err)
		}
		s.closers = append(s.closers, evm.Close)
		if s.chain == nil {
			s.chain = evm
		}
		if s.quoter == nil {
			s.quoter = evm
		}
		if s.faucet == nil {
			s.faucet = evm
		}
	}

	if s.wallet == nil && s.config.Client.WalletRPCUrl != "" {
		w, err := clients.NewRPCWallet(ctx, s.config.Client)
		if err != nil {
			return types.NewError(types.ErrConfiguration, err, "wallet client: %v", err)
		}
		s.closers = append(s.closers, w.Close)
		s.wallet = w
	}

	if s.store == nil {
		if s.config.Database.URL == "" {
			return types.NewError(types.ErrConfiguration, nil, "persistence is not configured")
		}
		store, err := storage.NewPostgresStore(ctx, s.config.Database)
		if err != nil {
			return types.NewError(types.ErrConfiguration, err, "database: %v", err)
		}
		s.store = store
		s.closers = append(s.closers, func() { store.Close() })
	}

	return nil
}

// Settle pays invoiceID from payer's wallet using sourceToken.
func (s *StablePay) Settle(ctx context.Context, invoiceID, payer, sourceToken string) (*types.SettledInvoice, error) {
	return s.settlementService.Settle(ctx, settlement.SettleRequest{
		InvoiceID:   invoiceID,
		Payer:       payer,
		SourceToken: sourceToken,
	})
}

// Preview returns the quote, balances and call plan for a pending payment.
func (s *StablePay) Preview(ctx context.Context, invoiceID, payer, sourceToken string) (*settlement.Preview, error) {
	return s.settlementService.Preview(ctx, settlement.SettleRequest{
		InvoiceID:   invoiceID,
		Payer:       payer,
		SourceToken: sourceToken,
	})
}

// Abandon discards the in-flight attempt for invoiceID. Calls already sent
// to the chain still complete and are recorded.
func (s *StablePay) Abandon(invoiceID string) bool {
	return s.settlementService.Attempts().Abandon(invoiceID)
}

// Invoice loads an invoice. An open invoice that already has a confirmed
// payment, left behind by an interrupted recording, is repaired to paid.
func (s *StablePay) Invoice(ctx context.Context, id string) (*types.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrInvoiceNotFound) {
			return nil, types.NewError(types.ErrInvoiceNotFound, err, "invoice %s not found", id)
		}
		return nil, err
	}
	if inv.Status != types.InvoiceOpen {
		return inv, nil
	}

	payments, err := s.store.ListPayments(ctx, id)
	if err != nil {
		s.logger.Warn("invoice read-repair could not list payments", map[string]any{"invoice": id, "error": err})
		return inv, nil
	}
	if len(payments) == 0 {
		return inv, nil
	}

	// oldest payment wins, matching the first guarded update that would have run
	p := payments[len(payments)-1]
	repaired, err := s.store.MarkInvoicePaid(ctx, id, types.PaidUpdate{
		PayerAddress: p.PayerAddress,
		TxHash:       p.TxHash,
		PaidAt:       p.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("invoice read-repair failed", map[string]any{"invoice": id, "error": err})
		return inv, nil
	}

	s.logger.Info("invoice repaired from payment record", map[string]any{"invoice": id, "tx_hash": p.TxHash})
	return repaired, nil
}

// CreateInvoice stores a new open invoice for amount of token, snapshotting
// the token's symbol and decimals from the catalog.
func (s *StablePay) CreateInvoice(ctx context.Context, inv types.Invoice, token string) (*types.Invoice, error) {
	t, err := s.catalog.Lookup(token)
	if err != nil {
		return nil, types.NewError(types.ErrUnknownToken, err, "%v", err)
	}
	if err := utils.ValidateAddress(inv.MerchantAddr); err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err, "merchant: %v", err)
	}
	units, err := utils.ParseUnits(inv.Amount, t.Decimals)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err, "amount: %v", err)
	}
	if units.Sign() <= 0 {
		return nil, types.NewError(types.ErrInvalidRequest, nil, "amount must be greater than zero")
	}

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.Status = types.InvoiceOpen
	inv.TokenAddress = t.Address
	inv.TokenSymbol = t.Symbol
	inv.TokenDecimals = t.Decimals
	inv.PayerAddress, inv.TxHash, inv.PaidAt = nil, nil, nil
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	if err := s.store.CreateInvoice(ctx, &inv); err != nil {
		if errors.Is(err, storage.ErrDuplicateInvoice) {
			return nil, types.NewError(types.ErrInvalidRequest, err, "invoice %s already exists", inv.ID)
		}
		return nil, err
	}
	return &inv, nil
}

// Tokens lists the accepted stablecoins.
func (s *StablePay) Tokens() []types.Token {
	return s.catalog.All()
}

// Fund asks the testnet faucet to send faucet-eligible tokens to address.
func (s *StablePay) Fund(ctx context.Context, address string) ([]string, error) {
	if !s.config.Client.Network.IsTestnet() {
		return nil, types.NewError(types.ErrInvalidRequest, nil, "faucet is only available on testnet")
	}
	if s.faucet == nil {
		return nil, types.NewError(types.ErrConfiguration, nil, "faucet is not configured")
	}
	if len(s.catalog.FaucetEligible()) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, nil, "no faucet-eligible tokens")
	}
	if err := utils.ValidateAddress(address); err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err, "address: %v", err)
	}

	hashes, err := s.faucet.FundAddress(ctx, address)
	if err != nil {
		return nil, types.NewError(types.ErrExecutionFailed, err, "%v", err)
	}
	s.logger.Info("faucet funded address", map[string]any{"address": address, "tx_count": len(hashes)})
	return hashes, nil
}

// Balance returns address's balance of token as a decimal string.
func (s *StablePay) Balance(ctx context.Context, address, token string) (string, error) {
	t, err := s.catalog.Lookup(token)
	if err != nil {
		return "", types.NewError(types.ErrUnknownToken, err, "%v", err)
	}

	v, err := s.chain.BalanceOf(ctx, t.Address, address)
	if err != nil {
		return "", types.NewError(types.ErrBalanceUnavailable, err, "%v", err)
	}
	return utils.FormatUnits(v, t.Decimals), nil
}

// Ping checks the persistence backend.
func (s *StablePay) Ping(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("store not configured")
	}
	return s.store.Ping(ctx)
}

// Close closes all client connections
func (s *StablePay) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Version information
const Version = "1.0.0"

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version":    Version,
		"supported_networks": []string{string(types.NetworkTempoTestnet), string(types.NetworkTempoLocal)},
		"execution_modes":    []string{string(types.ModeAtomic), string(types.ModeSequential)},
	}
}
