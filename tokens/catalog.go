// Package tokens holds the static registry of accepted stablecoins.
package tokens

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vitwit/stablepay/types"
)

// ErrTokenNotFound is returned for identifiers missing from the catalog.
var ErrTokenNotFound = errors.New("token not found in catalog")

// Tempo testnet stablecoins accepted for payment.
var DefaultTokens = []types.Token{
	{Address: "0x20c0000000000000000000000000000000000000", Symbol: "pathUSD", Name: "pathUSD", Decimals: 6, Faucet: false},
	{Address: "0x20c0000000000000000000000000000000000001", Symbol: "AlphaUSD", Name: "AlphaUSD", Decimals: 6, Faucet: true},
	{Address: "0x20c0000000000000000000000000000000000002", Symbol: "BetaUSD", Name: "BetaUSD", Decimals: 6, Faucet: true},
	{Address: "0x20c0000000000000000000000000000000000003", Symbol: "ThetaUSD", Name: "ThetaUSD", Decimals: 6, Faucet: true},
}

// Catalog maps a token contract address to its metadata. It is immutable
// after construction and safe for concurrent use.
type Catalog struct {
	byAddress map[string]types.Token
	ordered   []types.Token
}

// NewCatalog builds a catalog, rejecting duplicate addresses.
func NewCatalog(list []types.Token) (*Catalog, error) {
	c := &Catalog{
		byAddress: make(map[string]types.Token, len(list)),
		ordered:   make([]types.Token, 0, len(list)),
	}

	for _, t := range list {
		if t.Decimals < 0 {
			return nil, fmt.Errorf("token %s: negative decimals", t.Symbol)
		}
		key := normalize(t.Address)
		if _, dup := c.byAddress[key]; dup {
			return nil, fmt.Errorf("token %s: duplicate address %s", t.Symbol, t.Address)
		}
		c.byAddress[key] = t
		c.ordered = append(c.ordered, t)
	}

	sort.SliceStable(c.ordered, func(i, j int) bool {
		return normalize(c.ordered[i].Address) < normalize(c.ordered[j].Address)
	})

	return c, nil
}

// Default returns the catalog of DefaultTokens.
func Default() *Catalog {
	c, err := NewCatalog(DefaultTokens)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the token registered under identifier.
func (c *Catalog) Lookup(identifier string) (types.Token, error) {
	t, ok := c.byAddress[normalize(identifier)]
	if !ok {
		return types.Token{}, fmt.Errorf("%w: %s", ErrTokenNotFound, identifier)
	}
	return t, nil
}

// All returns every token ordered by address.
func (c *Catalog) All() []types.Token {
	out := make([]types.Token, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// FaucetEligible returns the tokens that can be requested from the testnet faucet.
func (c *Catalog) FaucetEligible() []types.Token {
	var out []types.Token
	for _, t := range c.ordered {
		if t.Faucet {
			out = append(out, t)
		}
	}
	return out
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
