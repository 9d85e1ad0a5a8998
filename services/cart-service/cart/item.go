package cart

import "github.com/shopspring/decimal"

// VariantOption is the option chosen for one variant type. Price is the
// option's delta and may be absent.
type VariantOption struct {
	Label string           `json:"label"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// Item is one cart line. ID is unique per line so the same product can be
// added several times with different variant selections.
type Item struct {
	ID        string                   `json:"id"`
	ProductID string                   `json:"productId"`
	Quantity  int                      `json:"quantity"`
	Price     decimal.Decimal          `json:"price"`
	Variants  map[string]VariantOption `json:"variants,omitempty"`
}

// LineTotal is price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i Item) clone() Item {
	if i.Variants != nil {
		v := make(map[string]VariantOption, len(i.Variants))
		for k, opt := range i.Variants {
			v[k] = opt
		}
		i.Variants = v
	}
	return i
}

// ItemUpdate replaces the non-nil fields of an item.
type ItemUpdate struct {
	Quantity *int
	Price    *decimal.Decimal
	Variants map[string]VariantOption
}
