package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/storefront-platform/backend/services/cart-service/cart"
)

var ErrUnknownVariant = errors.New("unknown variant")

type VariantOptionDef struct {
	Label string           `json:"label"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

type Variant struct {
	Name    string             `json:"name"`
	Options []VariantOptionDef `json:"options"`
}

// Product is the catalog view the cart needs. TotalStocks is nil when the
// store does not track stock for the product.
type Product struct {
	ID             string           `json:"id"`
	StoreID        string           `json:"storeId"`
	Name           string           `json:"name"`
	Price          decimal.Decimal  `json:"price"`
	Images         []string         `json:"images"`
	Variants       []Variant        `json:"variants"`
	TotalStocks    *int             `json:"totalStocks,omitempty"`
	VariantPricing cart.PricingMode `json:"variantPricing"`
}

// ResolveVariants maps a {type: label} selection onto the product's
// options, carrying each option's price.
func (p *Product) ResolveVariants(selection map[string]string) (map[string]cart.VariantOption, error) {
	if len(selection) == 0 {
		return nil, nil
	}
	out := make(map[string]cart.VariantOption, len(selection))
	for typ, label := range selection {
		opt, ok := p.findOption(typ, label)
		if !ok {
			return nil, fmt.Errorf("%w: %s=%s", ErrUnknownVariant, typ, label)
		}
		out[typ] = cart.VariantOption{Label: opt.Label, Price: opt.Price}
	}
	return out, nil
}

// UnitPrice resolves the line price for the given options under the
// product's pricing mode.
func (p *Product) UnitPrice(selected map[string]cart.VariantOption) decimal.Decimal {
	return cart.ResolveUnitPrice(p.VariantPricing, p.Price, selected)
}

func (p *Product) findOption(typ, label string) (VariantOptionDef, bool) {
	for _, v := range p.Variants {
		if v.Name != typ {
			continue
		}
		for _, o := range v.Options {
			if o.Label == label {
				return o, true
			}
		}
	}
	return VariantOptionDef{}, false
}
