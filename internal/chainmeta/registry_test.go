package chainmeta

import "testing"

func TestByChainID(t *testing.T) {
	n, ok := ByChainID(130)
	if !ok {
		t.Fatal("unichain missing")
	}
	if n.Slug != "unichain" || n.Name != "Unichain" {
		t.Fatalf("unexpected network: %+v", n)
	}

	if _, ok := ByChainID(999999); ok {
		t.Fatal("unknown chain id resolved")
	}
}

func TestBySlugRoundTrip(t *testing.T) {
	for id := range map[uint64]struct{}{1: {}, 10: {}, 130: {}, 137: {}, 8453: {}, 42161: {}} {
		n, ok := ByChainID(id)
		if !ok {
			t.Fatalf("chain %d missing", id)
		}
		back, ok := BySlug(n.Slug)
		if !ok || back.ChainID != id {
			t.Fatalf("slug %q does not round-trip", n.Slug)
		}
	}

	if _, ok := BySlug("nosuchchain"); ok {
		t.Fatal("unknown slug resolved")
	}
}

func TestExplorerURLs(t *testing.T) {
	if got := TxURL(1, "0xdead"); got != "https://etherscan.io/tx/0xdead" {
		t.Fatalf("tx url: %s", got)
	}
	if got := AddressURL(8453, "0xbeef"); got != "https://basescan.org/address/0xbeef" {
		t.Fatalf("address url: %s", got)
	}
	if TxURL(999999, "0x1") != "" || AddressURL(1, "") != "" {
		t.Fatal("missing inputs should yield empty urls")
	}
}
