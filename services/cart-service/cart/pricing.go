package cart

import "github.com/shopspring/decimal"

// PricingMode selects how variant option prices combine with the base price.
type PricingMode string

const (
	// PricingAdditive: base plus every selected option's delta.
	PricingAdditive PricingMode = "additive"
	// PricingOverride: the sum of the selected option prices replaces the
	// base price; the base price is used only when that sum is zero.
	PricingOverride PricingMode = "override"
)

// ParsePricingMode defaults unknown or empty values to additive, so a line
// price is the base plus every selected delta ({size:L +2, color:blue +1} on
// base B gives B+3). Products opt into override through their catalog
// variantPricing attribute.
func ParsePricingMode(s string) PricingMode {
	if PricingMode(s) == PricingOverride {
		return PricingOverride
	}
	return PricingAdditive
}

func sumOptionPrices(selected map[string]VariantOption) decimal.Decimal {
	sum := decimal.Zero
	for _, opt := range selected {
		if opt.Price != nil {
			sum = sum.Add(*opt.Price)
		}
	}
	return sum
}

// UnitPrice returns base + Σ deltas of the selected options.
func UnitPrice(base decimal.Decimal, selected map[string]VariantOption) decimal.Decimal {
	return base.Add(sumOptionPrices(selected))
}

// OverrideUnitPrice returns Σ option prices, or base when that sum is zero.
func OverrideUnitPrice(base decimal.Decimal, selected map[string]VariantOption) decimal.Decimal {
	sum := sumOptionPrices(selected)
	if sum.IsZero() {
		return base
	}
	return sum
}

func ResolveUnitPrice(mode PricingMode, base decimal.Decimal, selected map[string]VariantOption) decimal.Decimal {
	if mode == PricingOverride {
		return OverrideUnitPrice(base, selected)
	}
	return UnitPrice(base, selected)
}

// ClampQuantity bounds q to [0, stock]. A nil stock means untracked.
func ClampQuantity(q int, stock *int) int {
	if q < 0 {
		q = 0
	}
	if stock != nil && q > *stock {
		q = max(*stock, 0)
	}
	return q
}
