package econ

// Supply/demand aggregation. Pure: inputs in, maps out, no store access.
//
// Commodities are supplied by extraction units and demanded by everything
// that consumes raw inputs (production, retail, service). Products are
// supplied by production units and demanded by retail and service units.
// Subtypes absent from the config contribute nothing, so new subtypes can
// be introduced in configuration without breaking existing callers.

type SupplyDemand struct {
	Supply map[string]float64 `json:"supply"`
	Demand map[string]float64 `json:"demand"`
}

// ComputeCommoditySupplyDemand aggregates per-resource supply and demand.
// Every name in resourceNames is present in both maps, zero when no unit
// contributes.
func ComputeCommoditySupplyDemand(cfg *SectorConfig, units UnitCounts, resourceNames []string) SupplyDemand {
	return aggregate(cfg, units, resourceNames,
		[]SectorCategory{SectorExtraction},
		[]SectorCategory{SectorProduction, SectorRetail, SectorService})
}

// ComputeProductSupplyDemand aggregates per-product supply and demand.
// Same zero-default contract as the commodity variant.
func ComputeProductSupplyDemand(cfg *SectorConfig, units UnitCounts, productNames []string) SupplyDemand {
	return aggregate(cfg, units, productNames,
		[]SectorCategory{SectorProduction},
		[]SectorCategory{SectorRetail, SectorService})
}

func aggregate(cfg *SectorConfig, units UnitCounts, names []string, supplyCats, demandCats []SectorCategory) SupplyDemand {
	out := SupplyDemand{
		Supply: make(map[string]float64, len(names)),
		Demand: make(map[string]float64, len(names)),
	}
	for _, name := range names {
		out.Supply[name] = 0
		out.Demand[name] = 0
	}
	for _, cat := range supplyCats {
		for subtype, count := range units[cat] {
			sc, ok := cfg.Subtypes[subtype]
			if !ok || sc.Category != cat {
				continue
			}
			for _, name := range names {
				if rate, ok := sc.Output[name]; ok {
					out.Supply[name] += float64(count) * rate
				}
			}
		}
	}
	for _, cat := range demandCats {
		for subtype, count := range units[cat] {
			sc, ok := cfg.Subtypes[subtype]
			if !ok || sc.Category != cat {
				continue
			}
			for _, name := range names {
				if rate, ok := sc.Consumption[name]; ok {
					out.Demand[name] += float64(count) * rate
				}
			}
		}
	}
	return out
}
