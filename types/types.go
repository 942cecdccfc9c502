package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Network represents supported settlement networks
type Network string

const (
	NetworkTempoTestnet Network = "tempo-testnet"
	NetworkTempoLocal   Network = "tempo-local"
)

func (n Network) IsTestnet() bool {
	return n == NetworkTempoTestnet || n == NetworkTempoLocal
}

func (n Network) String() string {
	return string(n)
}

// Token describes an accepted stablecoin.
type Token struct {
	Address  string `json:"address" yaml:"address" validate:"required,eth_addr"`
	Symbol   string `json:"symbol" yaml:"symbol" validate:"required"`
	Name     string `json:"name" yaml:"name"`
	Decimals int    `json:"decimals" yaml:"decimals" validate:"gte=0,lte=36"`
	Faucet   bool   `json:"faucet" yaml:"faucet"`
}

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceOpen    InvoiceStatus = "open"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceVoid    InvoiceStatus = "void"
	InvoiceExpired InvoiceStatus = "expired"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceOpen: {InvoicePaid, InvoiceVoid, InvoiceExpired},
}

// CanTransition reports whether an invoice may move from one status to another.
// Terminal statuses have no outgoing transitions.
func (s InvoiceStatus) CanTransition(to InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s InvoiceStatus) IsTerminal() bool {
	return len(invoiceTransitions[s]) == 0
}

// Invoice is a merchant request for a token amount. TokenAddress, TokenSymbol
// and TokenDecimals are a snapshot taken at creation and never change.
type Invoice struct {
	ID            string        `json:"id"`
	MerchantID    string        `json:"merchantId"`
	MerchantAddr  string        `json:"merchantAddress"`
	Status        InvoiceStatus `json:"status"`
	Amount        string        `json:"amount"`
	TokenAddress  string        `json:"tokenAddress"`
	TokenSymbol   string        `json:"tokenSymbol"`
	TokenDecimals int           `json:"tokenDecimals"`
	Title         string        `json:"title"`
	Description   *string       `json:"description,omitempty"`
	ImageURL      *string       `json:"imageUrl,omitempty"`
	DisplayLabel  *string       `json:"displayLabel,omitempty"`
	PayerAddress  *string       `json:"payerAddress,omitempty"`
	TxHash        *string       `json:"txHash,omitempty"`
	PaidAt        *time.Time    `json:"paidAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// TargetToken returns the invoice's token snapshot.
func (i *Invoice) TargetToken() Token {
	return Token{
		Address:  i.TokenAddress,
		Symbol:   i.TokenSymbol,
		Decimals: i.TokenDecimals,
	}
}

// PaymentStatus of an audit record.
type PaymentStatus string

const (
	PaymentConfirmed PaymentStatus = "confirmed"
)

// Payment is an append-only audit record of one settlement.
type Payment struct {
	ID           string        `json:"id"`
	InvoiceID    string        `json:"invoiceId"`
	Status       PaymentStatus `json:"status"`
	PayerAddress string        `json:"payerAddress"`
	Amount       string        `json:"amount"`
	TokenAddress string        `json:"tokenAddress"`
	TxHash       string        `json:"txHash"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// PaidUpdate carries the fields written when an invoice is settled.
type PaidUpdate struct {
	PayerAddress string
	TxHash       string
	PaidAt       time.Time
}

// QuoteContext is recomputed for every attempt and never persisted.
type QuoteContext struct {
	SourceToken     Token    `json:"sourceToken"`
	TargetToken     Token    `json:"targetToken"`
	TargetAmount    *big.Int `json:"targetAmount"`
	NeedsConversion bool     `json:"needsConversion"`
	QuotedAmountIn  *big.Int `json:"quotedAmountIn,omitempty"`
	MaxAmountIn     *big.Int `json:"maxAmountIn,omitempty"`
}

// ExecutionMode tells how a call plan reached the chain.
type ExecutionMode string

const (
	ModeAtomic     ExecutionMode = "atomic"
	ModeSequential ExecutionMode = "sequential"
)

// SettledInvoice is the view returned to the caller after a settlement.
// Reconciled is false when the payment was recorded but the invoice update
// did not go through and awaits read-repair.
type SettledInvoice struct {
	Invoice    Invoice       `json:"invoice"`
	Payment    Payment       `json:"payment"`
	TxHash     string        `json:"txHash"`
	Mode       ExecutionMode `json:"mode"`
	Reconciled bool          `json:"reconciled"`
}

// ClientConfig contains configuration for chain and wallet clients
type ClientConfig struct {
	Network         Network           `json:"network" yaml:"network" validate:"required"`
	RPCUrl          string            `json:"rpcUrl" yaml:"rpc_url" validate:"required,url"`
	WalletRPCUrl    string            `json:"walletRpcUrl,omitempty" yaml:"wallet_rpc_url" validate:"omitempty,url"`
	ChainID         int64             `json:"chainId,omitempty" yaml:"chain_id" validate:"gte=0"`
	ExchangeAddress string            `json:"exchangeAddress" yaml:"exchange_address" validate:"required,eth_addr"`
	FeeToken        string            `json:"feeToken,omitempty" yaml:"fee_token" validate:"omitempty,eth_addr"`
	PollInterval    time.Duration     `json:"pollInterval,omitempty" yaml:"poll_interval"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	URL           string `json:"url,omitempty" yaml:"url"`
	Migrate       bool   `json:"migrate,omitempty" yaml:"migrate"`
	MigrationsTab string `json:"migrationsTable,omitempty" yaml:"migrations_table"`
}

// Config contains global configuration for the settlement service
type Config struct {
	Address        string         `json:"address,omitempty" yaml:"address"`
	DefaultTimeout time.Duration  `json:"defaultTimeout,omitempty" yaml:"default_timeout"`
	SlippageBps    int64          `json:"slippageBps,omitempty" yaml:"slippage_bps" validate:"gte=0,lte=10000"`
	Client         ClientConfig   `json:"client" yaml:"client"`
	Database       DatabaseConfig `json:"database" yaml:"database"`
	Tokens         []Token        `json:"tokens,omitempty" yaml:"tokens" validate:"dive"`
	LogLevel       string         `json:"logLevel,omitempty" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics  bool           `json:"enableMetrics,omitempty" yaml:"enable_metrics"`
	CORSOrigins    []string       `json:"corsOrigins,omitempty" yaml:"cors_origins"`
}

// SameAddress compares two hex addresses ignoring case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ErrorKind classifies a settlement failure.
type ErrorKind string

const (
	ErrConfiguration      ErrorKind = "CONFIGURATION_ERROR"
	ErrQuoteUnavailable   ErrorKind = "QUOTE_UNAVAILABLE"
	ErrBalanceUnavailable ErrorKind = "BALANCE_UNAVAILABLE"
	ErrInsufficientFunds  ErrorKind = "INSUFFICIENT_BALANCE"
	ErrUnsupportedBatch   ErrorKind = "UNSUPPORTED_BATCHING"
	ErrExecutionFailed    ErrorKind = "EXECUTION_FAILED"
	ErrHashMissing        ErrorKind = "HASH_MISSING"
	ErrAlreadySettled     ErrorKind = "ALREADY_SETTLED"
	ErrUnknownToken       ErrorKind = "UNKNOWN_TOKEN"
	ErrInvalidRequest     ErrorKind = "INVALID_REQUEST"
	ErrInvoiceNotPayable  ErrorKind = "INVOICE_NOT_PAYABLE"
	ErrInvoiceNotFound    ErrorKind = "INVOICE_NOT_FOUND"
	ErrRecordFailed       ErrorKind = "RECORD_FAILED"
	ErrAborted            ErrorKind = "ABORTED"
)

// StepBatch marks a failure of the atomic batch as a whole, or an error that
// is not tied to a call in the plan.
const StepBatch = -1

// SettlementError is the error surfaced to callers of Settle.
type SettlementError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	// Step is the index of the failed call for EXECUTION_FAILED.
	Step int `json:"step"`
	// TxHash is set when the calls reached the chain before the failure.
	TxHash string `json:"txHash,omitempty"`
	Err    error  `json:"-"`
}

func (e *SettlementError) Error() string {
	if e.Kind == ErrExecutionFailed && e.Step >= 0 {
		return fmt.Sprintf("%s at step %d: %s", e.Kind, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// Is matches any SettlementError of the same kind.
func (e *SettlementError) Is(target error) bool {
	t, ok := target.(*SettlementError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// NewError builds a SettlementError wrapping cause.
func NewError(kind ErrorKind, cause error, format string, args ...any) *SettlementError {
	return &SettlementError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Step:    StepBatch,
		Err:     cause,
	}
}

// KindOf extracts the ErrorKind of err, or "" when err is not a SettlementError.
func KindOf(err error) ErrorKind {
	var se *SettlementError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
