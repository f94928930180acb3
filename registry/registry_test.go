package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenDeployment_Eligible(t *testing.T) {
	assert.True(t, TokenDeployment{Name: "USD Coin", Version: "2"}.Eligible())
	assert.False(t, TokenDeployment{Name: "USD Coin"}.Eligible())
	assert.False(t, TokenDeployment{Version: "2"}.Eligible())
	assert.False(t, TokenDeployment{}.Eligible())
}

func TestNetwork_LookupByTag(t *testing.T) {
	r := Default()
	n, ok := r.Network("base")
	require.True(t, ok)
	assert.Equal(t, FamilyEVM, n.Family)
	assert.Equal(t, int64(8453), n.ChainID)

	_, ok = r.Network("no-such-network")
	assert.False(t, ok)
}

func TestDeploymentFor_EVMCaseInsensitive(t *testing.T) {
	r := Default()
	d, ok := r.DeploymentFor("base", "0x833589FCD6Edb6E08f4c7C32D4f71b54bdA02913")
	require.True(t, ok)
	assert.Equal(t, "USDC", d.Kind)
}

func TestDeploymentFor_SolanaExactMatch(t *testing.T) {
	r := Default()
	_, ok := r.DeploymentFor("solana", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	require.True(t, ok)

	_, ok = r.DeploymentFor("solana", "epjfwdd5aufqssqem2qn1xzybapc8g4wegGkZwyTDt1v")
	assert.False(t, ok, "solana mint matching must be case sensitive base58")
}

func TestDeploymentFor_UnknownNetwork(t *testing.T) {
	r := Default()
	_, ok := r.DeploymentFor("no-such-network", "0x0")
	assert.False(t, ok)
}

func TestSupported_ExcludesIneligibleDeployments(t *testing.T) {
	r := New(
		[]Network{{Tag: "solana", Family: FamilySolana}},
		[]TokenDeployment{{Network: "solana", Address: "mint", Kind: "USDC"}},
	)
	out := r.Supported("exact")
	assert.Empty(t, out, "deployment without name/version must not appear in supported")
}

func TestSupported_IncludesEligibleCrossProduct(t *testing.T) {
	r := Default()
	out := r.Supported("exact")

	eligibleCount := 0
	for _, d := range DefaultDeployments {
		if d.Eligible() {
			eligibleCount++
		}
	}
	assert.Len(t, out, eligibleCount)
	for _, s := range out {
		assert.Equal(t, "exact", s.Scheme)
		assert.NotEmpty(t, s.Name)
		assert.NotEmpty(t, s.Version)
	}
}

func TestDefault_CatalogHasExpectedNetworks(t *testing.T) {
	r := Default()
	tags := make(map[string]bool)
	for _, n := range r.Networks() {
		tags[n.Tag] = true
	}
	for _, want := range []string{"base", "base-sepolia", "avalanche", "solana"} {
		assert.True(t, tags[want], "expected network %s in default catalog", want)
	}
}
