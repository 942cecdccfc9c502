package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/stablepay/types"
)

func TestLookup(t *testing.T) {
	c := Default()

	tok, err := c.Lookup("0x20C0000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "AlphaUSD", tok.Symbol)
	assert.Equal(t, 6, tok.Decimals)
	assert.True(t, tok.Faucet)
}

func TestLookup_Miss(t *testing.T) {
	_, err := Default().Lookup("0x20c0000000000000000000000000000000000009")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestAllAndFaucet(t *testing.T) {
	c := Default()

	all := c.All()
	require.Len(t, all, 4)
	assert.Equal(t, "pathUSD", all[0].Symbol)

	all[0].Symbol = "mutated"
	assert.Equal(t, "pathUSD", c.All()[0].Symbol)

	faucet := c.FaucetEligible()
	require.Len(t, faucet, 3)
	for _, tok := range faucet {
		assert.NotEqual(t, "pathUSD", tok.Symbol)
	}
}

func TestNewCatalog_RejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]types.Token{
		{Address: "0x20c0000000000000000000000000000000000001", Symbol: "A", Decimals: 6},
		{Address: "0x20C0000000000000000000000000000000000001", Symbol: "B", Decimals: 6},
	})
	assert.Error(t, err)

	_, err = NewCatalog([]types.Token{{Address: "0x01", Symbol: "neg", Decimals: -1}})
	assert.Error(t, err)
}
