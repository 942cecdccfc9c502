package stablepay

import (
	"time"

	"github.com/vitwit/stablepay/clients"
	"github.com/vitwit/stablepay/logger"
	"github.com/vitwit/stablepay/metrics"
	"github.com/vitwit/stablepay/storage"
	"github.com/vitwit/stablepay/tokens"
)

type Option func(*StablePay)

func WithLogger(l logger.Logger) Option {
	return func(s *StablePay) {
		s.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *StablePay) {
		s.metrics = r
	}
}

func WithTimeout(t time.Duration) Option {
	return func(s *StablePay) {
		s.timeout = t
	}
}

func WithSlippageBps(bps int64) Option {
	return func(s *StablePay) {
		s.slippageBps = bps
	}
}

func WithCatalog(c *tokens.Catalog) Option {
	return func(s *StablePay) {
		s.catalog = c
	}
}

func WithStore(store storage.Store) Option {
	return func(s *StablePay) {
		s.store = store
	}
}

// WithChain supplies the chain reader, quoter and faucet instead of dialing
// the configured RPC.
func WithChain(chain clients.ChainReader, quoter clients.Quoter, faucet clients.Faucet) Option {
	return func(s *StablePay) {
		s.chain = chain
		s.quoter = quoter
		s.faucet = faucet
	}
}

func WithWallet(w clients.Wallet) Option {
	return func(s *StablePay) {
		s.wallet = w
	}
}
