package econ

import (
	"fmt"
	"math"
)

// Scarcity pricing. The factor is a power of the smoothed demand/supply
// ratio: unbounded above, finite and strictly positive for any supply >= 0,
// and exactly 1.0 at parity (including the no-activity 0/0 case).
const (
	scarcitySmoothing = 0.1
	scarcityExponent  = 0.65
)

type PriceQuote struct {
	Price          float64 `json:"price"`
	ScarcityFactor float64 `json:"scarcity_factor"`
}

func scarcityFactor(supply, demand float64) float64 {
	if supply < 0 {
		supply = 0
	}
	if demand < 0 {
		demand = 0
	}
	return math.Pow((demand+scarcitySmoothing)/(supply+scarcitySmoothing), scarcityExponent)
}

// CalculateCommodityPrice prices one resource at current supply/demand.
// A name with no base-price entry is a configuration error, never a
// fabricated price.
func CalculateCommodityPrice(cfg *SectorConfig, name string, supply, demand float64) (PriceQuote, error) {
	base, err := BaseResourcePrice(cfg, name)
	if err != nil {
		return PriceQuote{}, err
	}
	factor := scarcityFactor(supply, demand)
	return PriceQuote{Price: base * factor, ScarcityFactor: factor}, nil
}

// CalculateProductPrice prices one product at current supply/demand.
func CalculateProductPrice(cfg *SectorConfig, name string, supply, demand float64) (PriceQuote, error) {
	base, err := BaseProductPrice(cfg, name)
	if err != nil {
		return PriceQuote{}, err
	}
	factor := scarcityFactor(supply, demand)
	return PriceQuote{Price: base * factor, ScarcityFactor: factor}, nil
}

func BaseResourcePrice(cfg *SectorConfig, name string) (float64, error) {
	price, ok := cfg.ResourcePrices[name]
	if !ok {
		return 0, fmt.Errorf("%w: no base price for resource %q", ErrConfigMissing, name)
	}
	return price, nil
}

func BaseProductPrice(cfg *SectorConfig, name string) (float64, error) {
	price, ok := cfg.ProductPrices[name]
	if !ok {
		return 0, fmt.Errorf("%w: no base price for product %q", ErrConfigMissing, name)
	}
	return price, nil
}
