package econ

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// SubtypeConfig describes one unit subtype: the category it belongs to,
// what each unit of it consumes and outputs per turn, and any flat per-unit
// revenue independent of priced outputs (how Retail/Service units earn).
type SubtypeConfig struct {
	Category    SectorCategory     `yaml:"category"`
	Consumption map[string]float64 `yaml:"consumption,omitempty"`
	Output      map[string]float64 `yaml:"output,omitempty"`
	BaseRevenue float64            `yaml:"base_revenue,omitempty"`
}

// SectorConfig is the versioned coefficient and base-price registry. It is
// admin-editable; the store caches it by version and invalidates on edit.
// Prices and rates are in creds, not micros.
type SectorConfig struct {
	Version        int64                    `yaml:"version"`
	Subtypes       map[string]SubtypeConfig `yaml:"subtypes"`
	ResourcePrices map[string]float64       `yaml:"resource_prices"`
	ProductPrices  map[string]float64       `yaml:"product_prices"`
}

// ParseSectorConfig decodes and validates a YAML config document.
func ParseSectorConfig(raw []byte) (*SectorConfig, error) {
	var cfg SectorConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse sector config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configs that would poison calculations downstream:
// unknown categories, negative rates or prices, coefficients naming a
// resource/product with no base price, and names that appear in both
// price tables.
func (c *SectorConfig) Validate() error {
	for name, price := range c.ResourcePrices {
		if price <= 0 {
			return fmt.Errorf("%w: resource %q base price must be > 0", ErrInvalidInput, name)
		}
		if _, dup := c.ProductPrices[name]; dup {
			return fmt.Errorf("%w: %q is both a resource and a product", ErrInvalidInput, name)
		}
	}
	for name, price := range c.ProductPrices {
		if price <= 0 {
			return fmt.Errorf("%w: product %q base price must be > 0", ErrInvalidInput, name)
		}
	}
	for subtype, sc := range c.Subtypes {
		if _, err := ParseSectorCategory(string(sc.Category)); err != nil {
			return fmt.Errorf("subtype %q: %w", subtype, err)
		}
		if sc.BaseRevenue < 0 {
			return fmt.Errorf("%w: subtype %q base revenue must be >= 0", ErrInvalidInput, subtype)
		}
		for name, rate := range sc.Consumption {
			if rate < 0 {
				return fmt.Errorf("%w: subtype %q consumes %q at negative rate", ErrInvalidInput, subtype, name)
			}
			if !c.knownName(name) {
				return fmt.Errorf("%w: subtype %q consumes unknown name %q", ErrConfigMissing, subtype, name)
			}
		}
		for name, rate := range sc.Output {
			if rate < 0 {
				return fmt.Errorf("%w: subtype %q outputs %q at negative rate", ErrInvalidInput, subtype, name)
			}
			if !c.knownName(name) {
				return fmt.Errorf("%w: subtype %q outputs unknown name %q", ErrConfigMissing, subtype, name)
			}
		}
	}
	return nil
}

func (c *SectorConfig) knownName(name string) bool {
	if _, ok := c.ResourcePrices[name]; ok {
		return true
	}
	_, ok := c.ProductPrices[name]
	return ok
}

func (c *SectorConfig) ResourceNames() []string {
	return sortedKeys(c.ResourcePrices)
}

func (c *SectorConfig) ProductNames() []string {
	return sortedKeys(c.ProductPrices)
}

func sortedKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultSectorConfig is the compiled-in reference table used for seeding
// and as the fallback when no admin edit has ever happened.
func DefaultSectorConfig() *SectorConfig {
	return &SectorConfig{
		Version: 1,
		ResourcePrices: map[string]float64{
			"Oil":        120,
			"Steel":      450,
			"Rare Earth": 9000,
			"Grain":      60,
		},
		ProductPrices: map[string]float64{
			"Consumer Goods":      90,
			"Technology Products": 1500,
			"Energy":              75,
		},
		Subtypes: map[string]SubtypeConfig{
			"Mining": {
				Category: SectorExtraction,
				Output:   map[string]float64{"Steel": 2.4, "Rare Earth": 0.05},
			},
			"Drilling": {
				Category: SectorExtraction,
				Output:   map[string]float64{"Oil": 3.2},
			},
			"Agriculture": {
				Category: SectorExtraction,
				Output:   map[string]float64{"Grain": 5.0},
			},
			"Manufacturing": {
				Category:    SectorProduction,
				Consumption: map[string]float64{"Steel": 1.6, "Oil": 0.7, "Rare Earth": 0.01},
				Output:      map[string]float64{"Consumer Goods": 3.5, "Technology Products": 0.4},
			},
			"Energy": {
				Category:    SectorProduction,
				Consumption: map[string]float64{"Oil": 2.2},
				Output:      map[string]float64{"Energy": 4.0},
			},
			"Retail": {
				Category:    SectorRetail,
				Consumption: map[string]float64{"Consumer Goods": 2.4, "Energy": 0.6, "Oil": 0.15},
				BaseRevenue: 310,
			},
			"Finance": {
				Category:    SectorService,
				Consumption: map[string]float64{"Technology Products": 0.5, "Energy": 0.4},
				BaseRevenue: 830,
			},
			"Logistics": {
				Category:    SectorService,
				Consumption: map[string]float64{"Oil": 1.1, "Energy": 0.3},
				BaseRevenue: 180,
			},
		},
	}
}
