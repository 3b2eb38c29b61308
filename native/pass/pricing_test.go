package pass

import (
	"errors"
	"math/big"
	"testing"
)

func testPrices(t *testing.T) *PriceTable {
	t.Helper()
	table, err := NewPriceTable(
		big.NewInt(200),
		big.NewInt(150),
		big.NewInt(2000),
	)
	if err != nil {
		t.Fatalf("new price table: %v", err)
	}
	return table
}

func TestPriceTableLookup(t *testing.T) {
	table := testPrices(t)
	cases := map[Tier]int64{
		TierStandard:   200,
		TierDiscounted: 150,
		TierPremium:    2000,
	}
	for tier, want := range cases {
		price, err := table.PriceOf(tier)
		if err != nil {
			t.Fatalf("priceOf(%s): %v", tier, err)
		}
		if price.Cmp(big.NewInt(want)) != 0 {
			t.Fatalf("priceOf(%s) = %s, want %d", tier, price, want)
		}
	}
}

func TestPriceTableUnknownTier(t *testing.T) {
	table := testPrices(t)
	if _, err := table.PriceOf(Tier(9)); !errors.Is(err, ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
}

func TestPriceTableReturnsCopies(t *testing.T) {
	table := testPrices(t)
	price, err := table.PriceOf(TierStandard)
	if err != nil {
		t.Fatalf("priceOf: %v", err)
	}
	price.SetInt64(1)
	again, err := table.PriceOf(TierStandard)
	if err != nil {
		t.Fatalf("priceOf: %v", err)
	}
	if again.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("table mutated through returned price: %s", again)
	}
}

func TestPriceTableValidation(t *testing.T) {
	if _, err := NewPriceTable(nil, big.NewInt(1), big.NewInt(1)); err == nil {
		t.Fatal("expected error for nil price")
	}
	if _, err := NewPriceTable(big.NewInt(0), big.NewInt(1), big.NewInt(1)); err == nil {
		t.Fatal("expected error for zero price")
	}
	if _, err := NewPriceTable(big.NewInt(1), big.NewInt(-5), big.NewInt(1)); err == nil {
		t.Fatal("expected error for negative price")
	}
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("  Standard ")
	if err != nil || tier != TierStandard {
		t.Fatalf("parse standard: %v %v", tier, err)
	}
	tier, err = ParseTier("discounted")
	if err != nil || tier != TierDiscounted {
		t.Fatalf("parse discounted: %v %v", tier, err)
	}
	tier, err = ParseTier("PREMIUM")
	if err != nil || tier != TierPremium {
		t.Fatalf("parse premium: %v %v", tier, err)
	}
	if _, err := ParseTier("vip"); !errors.Is(err, ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
}
