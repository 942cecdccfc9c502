package httpapi

import (
	"context"

	"github.com/vitwit/stablepay/settlement"
	"github.com/vitwit/stablepay/types"
)

type fakeService struct {
	settled   *types.SettledInvoice
	preview   *settlement.Preview
	invoice   *types.Invoice
	err       error
	pingErr   error
	abandoned bool

	gotInvoice string
	gotPayer   string
	gotSource  string
}

func (f *fakeService) Settle(ctx context.Context, invoiceID, payer, sourceToken string) (*types.SettledInvoice, error) {
	f.gotInvoice, f.gotPayer, f.gotSource = invoiceID, payer, sourceToken
	return f.settled, f.err
}

func (f *fakeService) Preview(ctx context.Context, invoiceID, payer, sourceToken string) (*settlement.Preview, error) {
	f.gotInvoice, f.gotPayer, f.gotSource = invoiceID, payer, sourceToken
	return f.preview, f.err
}

func (f *fakeService) Abandon(invoiceID string) bool {
	f.gotInvoice = invoiceID
	return f.abandoned
}

func (f *fakeService) Invoice(ctx context.Context, id string) (*types.Invoice, error) {
	f.gotInvoice = id
	return f.invoice, f.err
}

func (f *fakeService) Tokens() []types.Token {
	return []types.Token{{Address: "0x20c0000000000000000000000000000000000001", Symbol: "AlphaUSD", Decimals: 6}}
}

func (f *fakeService) Fund(ctx context.Context, address string) ([]string, error) {
	return []string{"0x01"}, f.err
}

func (f *fakeService) Ping(ctx context.Context) error {
	return f.pingErr
}
