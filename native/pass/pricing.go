package pass

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Tier enumerates the fixed-price access levels.
type Tier uint8

const (
	TierStandard Tier = iota
	TierDiscounted
	TierPremium
)

// Valid reports whether the tier is one of the recognised access levels.
func (t Tier) Valid() bool {
	switch t {
	case TierStandard, TierDiscounted, TierPremium:
		return true
	default:
		return false
	}
}

func (t Tier) String() string {
	switch t {
	case TierStandard:
		return "standard"
	case TierDiscounted:
		return "discounted"
	case TierPremium:
		return "premium"
	default:
		return "unknown"
	}
}

var (
	// ErrUnknownTier indicates the requested tier is not part of the table.
	ErrUnknownTier = errors.New("pass: unknown tier")
	// ErrPriceMismatch indicates the payment did not exactly match the tier price.
	ErrPriceMismatch = errors.New("pass: payment does not match tier price")
)

// ParseTier canonicalises a tier label received over the wire.
func ParseTier(label string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "standard":
		return TierStandard, nil
	case "discounted":
		return TierDiscounted, nil
	case "premium":
		return TierPremium, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, label)
	}
}

// PriceTable maps each tier to its exact price in the smallest currency unit.
// Prices are fixed at construction; comparison is exact integer equality,
// never approximate.
type PriceTable struct {
	standard   *big.Int
	discounted *big.Int
	premium    *big.Int
}

// NewPriceTable validates and seals the three tier prices.
func NewPriceTable(standard, discounted, premium *big.Int) (*PriceTable, error) {
	prices := map[Tier]*big.Int{
		TierStandard:   standard,
		TierDiscounted: discounted,
		TierPremium:    premium,
	}
	for tier, price := range prices {
		if price == nil || price.Sign() <= 0 {
			return nil, fmt.Errorf("pass: %s price must be positive", tier)
		}
	}
	return &PriceTable{
		standard:   new(big.Int).Set(standard),
		discounted: new(big.Int).Set(discounted),
		premium:    new(big.Int).Set(premium),
	}, nil
}

// PriceOf returns a copy of the exact price for the tier.
func (p *PriceTable) PriceOf(tier Tier) (*big.Int, error) {
	if p == nil {
		return nil, fmt.Errorf("pass: price table not configured")
	}
	switch tier {
	case TierStandard:
		return new(big.Int).Set(p.standard), nil
	case TierDiscounted:
		return new(big.Int).Set(p.discounted), nil
	case TierPremium:
		return new(big.Int).Set(p.premium), nil
	default:
		return nil, ErrUnknownTier
	}
}
