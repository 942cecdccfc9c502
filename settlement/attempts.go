package settlement

import (
	"sync"

	"github.com/google/uuid"
)

// Attempt is one Settle call for an invoice. It stays active until a newer
// attempt for the same invoice begins or the invoice is abandoned.
type Attempt struct {
	ID        string
	InvoiceID string
	registry  *Attempts
}

// Active reports whether this attempt is still the current one.
func (a *Attempt) Active() bool {
	return a.registry.current(a.InvoiceID) == a.ID
}

// Attempts tracks the current attempt per invoice.
type Attempts struct {
	mu     sync.Mutex
	active map[string]string
}

func NewAttempts() *Attempts {
	return &Attempts{active: make(map[string]string)}
}

// Begin starts an attempt, superseding any previous one for the invoice.
func (r *Attempts) Begin(invoiceID string) *Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := &Attempt{ID: uuid.NewString(), InvoiceID: invoiceID, registry: r}
	r.active[invoiceID] = a.ID
	return a
}

// Abandon invalidates the current attempt for invoiceID, if any.
func (r *Attempts) Abandon(invoiceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.active[invoiceID]
	delete(r.active, invoiceID)
	return ok
}

// End releases a finished attempt. A superseded attempt leaves the newer one alone.
func (r *Attempts) End(a *Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active[a.InvoiceID] == a.ID {
		delete(r.active, a.InvoiceID)
	}
}

// InFlight reports whether an attempt for invoiceID is running.
func (r *Attempts) InFlight(invoiceID string) bool {
	return r.current(invoiceID) != ""
}

func (r *Attempts) current(invoiceID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[invoiceID]
}
