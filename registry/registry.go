// Package registry is the Chain Registry: a static, compile-time catalog of
// supported networks and the token deployments on each of them. It is
// read-only after init and safe for any number of concurrent readers,
// matching the teacher's treatment of network/asset metadata in
// mechanisms/evm/constants.go, generalized to the plain network tags this
// facilitator uses instead of CAIP-2 identifiers.
package registry

import "strings"

// Family identifies a chain's execution environment. Address, signature,
// and authorization encodings are structurally disjoint per family, so the
// facilitator models them as tagged variants rather than a shared
// interface (see MixedAddress in the codec package).
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilySolana Family = "solana"
	FamilyNEAR   Family = "near"
)

// Network describes one supported chain: its wire tag, execution family,
// and (for EVM) numeric chain id used in EIP-712 domains and RPC dialing.
type Network struct {
	Tag     string
	Family  Family
	ChainID int64 // 0 for non-EVM families
}

// TokenDeployment is one asset's deployment on one network. Name/Version
// are the EIP-712 domain fields exactly as the token contract reports them
// (e.g. "USD Coin"/"2"); a deployment with an empty Name is not eligible
// for signed-authorization transfers on that network, per the registry's
// authoritative-domain design note.
type TokenDeployment struct {
	Network  string
	Address  string // lowercase hex on EVM, base58 mint on Solana
	Decimals int
	Name     string
	Version  string
	Kind     string // e.g. "USDC", "USDT0"
}

// Eligible reports whether this deployment carries the EIP-712 domain
// fields required for EIP-3009 signed-authorization transfers.
func (d TokenDeployment) Eligible() bool {
	return d.Name != "" && d.Version != ""
}

// Registry is the total, static catalog. Zero value is usable (empty).
type Registry struct {
	networks map[string]Network
	tokens   map[string][]TokenDeployment // keyed by network tag
}

// New builds a Registry from explicit network and deployment lists. This is
// the only constructor: the catalog is meant to be a compile-time literal
// assembled once at process start, not mutated afterward.
func New(networks []Network, deployments []TokenDeployment) *Registry {
	r := &Registry{
		networks: make(map[string]Network, len(networks)),
		tokens:   make(map[string][]TokenDeployment),
	}
	for _, n := range networks {
		r.networks[n.Tag] = n
	}
	for _, d := range deployments {
		r.tokens[d.Network] = append(r.tokens[d.Network], d)
	}
	return r
}

// Network looks up a configured network by tag.
func (r *Registry) Network(tag string) (Network, bool) {
	n, ok := r.networks[tag]
	return n, ok
}

// Networks returns every configured network, in no particular order.
func (r *Registry) Networks() []Network {
	out := make([]Network, 0, len(r.networks))
	for _, n := range r.networks {
		out = append(out, n)
	}
	return out
}

// TokensOn returns all known token deployments on a network.
func (r *Registry) TokensOn(network string) []TokenDeployment {
	return r.tokens[network]
}

// DeploymentFor looks up a specific token deployment by network and asset
// address. EVM addresses are matched case-insensitively; Solana mints are
// matched as exact base58 strings.
func (r *Registry) DeploymentFor(network, asset string) (TokenDeployment, bool) {
	n, ok := r.networks[network]
	if !ok {
		return TokenDeployment{}, false
	}
	for _, d := range r.tokens[network] {
		if n.Family == FamilyEVM {
			if strings.EqualFold(d.Address, asset) {
				return d, true
			}
		} else if d.Address == asset {
			return d, true
		}
	}
	return TokenDeployment{}, false
}

// SupportedKind is one entry of the cross-product {network x scheme x
// eligible-token} returned by the facilitator's supported operation.
type SupportedKind struct {
	Scheme  string
	Network string
	Asset   string
	Name    string
	Version string
}

// Supported returns the cross-product of every eligible token deployment
// across every configured network, for the given scheme. Tokens missing
// {name, version} are excluded: they cannot be validated under EIP-3009.
func (r *Registry) Supported(scheme string) []SupportedKind {
	var out []SupportedKind
	for network, deployments := range r.tokens {
		for _, d := range deployments {
			if !d.Eligible() {
				continue
			}
			out = append(out, SupportedKind{
				Scheme:  scheme,
				Network: network,
				Asset:   d.Address,
				Name:    d.Name,
				Version: d.Version,
			})
		}
	}
	return out
}

// Mainnet and testnet networks, carried forward from the example pack's
// hardcoded NetworkConfigs so the default registry is immediately useful
// without external configuration.
var (
	Base = Network{Tag: "base", Family: FamilyEVM, ChainID: 8453}

	BaseSepolia = Network{Tag: "base-sepolia", Family: FamilyEVM, ChainID: 84532}

	Avalanche = Network{Tag: "avalanche", Family: FamilyEVM, ChainID: 43114}

	Solana = Network{Tag: "solana", Family: FamilySolana}
)

// DefaultNetworks is the built-in network list used when the embedding
// process does not supply its own catalog.
var DefaultNetworks = []Network{Base, BaseSepolia, Avalanche, Solana}

// DefaultDeployments is the built-in token catalog: the well-known USDC
// deployments across the default network set, matching the addresses and
// EIP-712 domain fields the issuing contracts report on-chain.
var DefaultDeployments = []TokenDeployment{
	{
		Network:  Base.Tag,
		Address:  "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
		Decimals: 6,
		Name:     "USD Coin",
		Version:  "2",
		Kind:     "USDC",
	},
	{
		Network:  BaseSepolia.Tag,
		Address:  "0x036cbd53842c5426634e7929541ec2318f3dcf7e",
		Decimals: 6,
		Name:     "USDC",
		Version:  "2",
		Kind:     "USDC",
	},
	{
		Network:  Avalanche.Tag,
		Address:  "0xb97ef9ef8734c71904d8002f8b6bc66dd9c48a6e",
		Decimals: 6,
		Name:     "USD Coin",
		Version:  "2",
		Kind:     "USDC",
	},
	{
		Network:  Solana.Tag,
		Address:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Decimals: 6,
		Kind:     "USDC",
	},
}

// Default constructs the built-in registry.
func Default() *Registry {
	return New(DefaultNetworks, DefaultDeployments)
}
