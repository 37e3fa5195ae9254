package econ

import (
	"context"
	"fmt"
)

// Profit-driven revaluation multipliers. The share price starts from a
// book value of capital per outstanding share, then gets nudged by the
// sign of the turn's profit and clamped at the floor.
const (
	valuationGainFactor = 1.05
	valuationLossFactor = 0.97
)

// UpdateStockPrice recomputes and persists one corporation's share price
// after a settled turn. profitMicros is the profit just applied; its sign
// drives the momentum nudge. The returned value is the price written.
func (s *Scheduler) UpdateStockPrice(ctx context.Context, corporationID int64, profitMicros int64) (int64, error) {
	corp, err := s.store.FindCorporationByID(ctx, corporationID)
	if err != nil {
		return 0, err
	}
	if corp.OutstandingShares <= 0 {
		return 0, fmt.Errorf("%w: corporation %d has no outstanding shares", ErrInvalidInput, corporationID)
	}
	price := corp.CapitalMicros / corp.OutstandingShares
	switch {
	case profitMicros > 0:
		price = int64(float64(price) * valuationGainFactor)
	case profitMicros < 0:
		price = int64(float64(price) * valuationLossFactor)
	}
	if floor := s.params.sharePriceFloor(); price < floor {
		price = floor
	}
	if err := s.store.UpdateSharePrice(ctx, corporationID, price); err != nil {
		return 0, err
	}
	return price, nil
}
