// Package chainmeta holds the static per-chain lookup tables the API
// decorates responses with.
package chainmeta

// Network describes one supported chain.
type Network struct {
	ChainID     uint64
	Name        string
	Slug        string
	ExplorerURL string
	NativeWrap  string
}

var networks = map[uint64]Network{
	1: {
		ChainID:     1,
		Name:        "Ethereum",
		Slug:        "ethereum",
		ExplorerURL: "https://etherscan.io",
		NativeWrap:  "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
	},
	10: {
		ChainID:     10,
		Name:        "Optimism",
		Slug:        "optimism",
		ExplorerURL: "https://optimistic.etherscan.io",
		NativeWrap:  "0x4200000000000000000000000000000000000006",
	},
	130: {
		ChainID:     130,
		Name:        "Unichain",
		Slug:        "unichain",
		ExplorerURL: "https://uniscan.xyz",
		NativeWrap:  "0x4200000000000000000000000000000000000006",
	},
	137: {
		ChainID:     137,
		Name:        "Polygon",
		Slug:        "polygon",
		ExplorerURL: "https://polygonscan.com",
		NativeWrap:  "0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270",
	},
	8453: {
		ChainID:     8453,
		Name:        "Base",
		Slug:        "base",
		ExplorerURL: "https://basescan.org",
		NativeWrap:  "0x4200000000000000000000000000000000000006",
	},
	42161: {
		ChainID:     42161,
		Name:        "Arbitrum One",
		Slug:        "arbitrum",
		ExplorerURL: "https://arbiscan.io",
		NativeWrap:  "0x82af49447d8a07e3bd95bd0d56f35241523fbab1",
	},
}

var slugs = func() map[string]uint64 {
	out := make(map[string]uint64, len(networks))
	for id, n := range networks {
		out[n.Slug] = id
	}
	return out
}()

// ByChainID looks up a network by numeric chain id.
func ByChainID(chainID uint64) (Network, bool) {
	n, ok := networks[chainID]
	return n, ok
}

// BySlug looks up a network by URL slug.
func BySlug(slug string) (Network, bool) {
	id, ok := slugs[slug]
	if !ok {
		return Network{}, false
	}
	return networks[id], true
}

// TxURL builds an explorer link for a transaction hash; empty when
// the chain is unknown.
func TxURL(chainID uint64, txHash string) string {
	n, ok := networks[chainID]
	if !ok || txHash == "" {
		return ""
	}
	return n.ExplorerURL + "/tx/" + txHash
}

// AddressURL builds an explorer link for an address.
func AddressURL(chainID uint64, address string) string {
	n, ok := networks[chainID]
	if !ok || address == "" {
		return ""
	}
	return n.ExplorerURL + "/address/" + address
}
