// Package storage persists invoices and their payment audit records.
package storage

import (
	"context"
	"errors"

	"github.com/vitwit/stablepay/types"
)

var (
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrInvoiceNotOpen   = errors.New("invoice is not open")
	ErrDuplicateInvoice = errors.New("invoice already exists")
	ErrDuplicatePayment = errors.New("payment already recorded for this transaction")
)

// Store is the persistence boundary used by the settlement flow.
type Store interface {
	GetInvoice(ctx context.Context, id string) (*types.Invoice, error)
	CreateInvoice(ctx context.Context, invoice *types.Invoice) error
	InsertPayment(ctx context.Context, payment *types.Payment) error
	// MarkInvoicePaid moves an open invoice to paid. It returns
	// ErrInvoiceNotOpen when the invoice exists in any other status.
	MarkInvoicePaid(ctx context.Context, id string, update types.PaidUpdate) (*types.Invoice, error)
	ListPayments(ctx context.Context, invoiceID string) ([]types.Payment, error)
	Ping(ctx context.Context) error
	Close() error
}
