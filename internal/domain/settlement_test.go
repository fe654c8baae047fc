package domain

import (
	"math/big"
	"testing"
)

func TestPremiumFor(t *testing.T) {
	tests := []struct {
		name      string
		principal int64
		bps       int64
		want      int64
	}{
		{"exact division", 10_000, 5, 5},
		{"half rounds up", 1_000, 5, 1},
		{"below half rounds down", 999, 5, 0},
		{"zero rate", 10_000, 0, 0},
		{"nine bps", 1_000_000, 9, 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PremiumFor(big.NewInt(tt.principal), tt.bps)
			if got.Int64() != tt.want {
				t.Errorf("PremiumFor(%d, %d) = %s, want %d", tt.principal, tt.bps, got, tt.want)
			}
		})
	}
}

func TestLoanTermsOwed(t *testing.T) {
	terms := LoanTerms{Principal: big.NewInt(10_000), Premium: big.NewInt(5)}
	if got := terms.Owed(); got.Int64() != 10_005 {
		t.Errorf("Owed() = %s, want 10005", got)
	}
	// Owed must not alias the principal.
	if terms.Principal.Int64() != 10_000 {
		t.Errorf("Principal mutated to %s", terms.Principal)
	}
}

func TestVenueKindValid(t *testing.T) {
	for _, k := range []VenueKind{VenueConstantProduct, VenueConcentratedLiquidity, VenueStableSwap} {
		if !k.Valid() {
			t.Errorf("VenueKind(%d).Valid() = false, want true", k)
		}
	}
	if VenueKind(3).Valid() || VenueKind(255).Valid() {
		t.Error("out-of-range venue kind reported valid")
	}
}

func TestTokenPairID(t *testing.T) {
	pair := TokenPair{Base: Token{Symbol: "WETH"}, Quote: Token{Symbol: "USDC"}}
	if got := pair.ID(); got != "WETH/USDC" {
		t.Errorf("ID() = %q, want WETH/USDC", got)
	}
}
