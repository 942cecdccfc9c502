package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vitwit/stablepay/types"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in process. Used for local runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	invoices map[string]types.Invoice
	payments []types.Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{invoices: make(map[string]types.Invoice)}
}

func (m *MemoryStore) GetInvoice(ctx context.Context, id string) (*types.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	return &inv, nil
}

func (m *MemoryStore) CreateInvoice(ctx context.Context, invoice *types.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.invoices[invoice.ID]; ok {
		return ErrDuplicateInvoice
	}
	m.invoices[invoice.ID] = *invoice
	return nil
}

func (m *MemoryStore) InsertPayment(ctx context.Context, payment *types.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.payments {
		if strings.EqualFold(p.TxHash, payment.TxHash) && p.InvoiceID == payment.InvoiceID {
			return ErrDuplicatePayment
		}
	}
	m.payments = append(m.payments, *payment)
	return nil
}

func (m *MemoryStore) MarkInvoicePaid(ctx context.Context, id string, update types.PaidUpdate) (*types.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	if !inv.Status.CanTransition(types.InvoicePaid) {
		return nil, ErrInvoiceNotOpen
	}

	payer, hash, paidAt := update.PayerAddress, update.TxHash, update.PaidAt
	inv.Status = types.InvoicePaid
	inv.PayerAddress = &payer
	inv.TxHash = &hash
	inv.PaidAt = &paidAt
	m.invoices[id] = inv

	return &inv, nil
}

func (m *MemoryStore) ListPayments(ctx context.Context, invoiceID string) ([]types.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
