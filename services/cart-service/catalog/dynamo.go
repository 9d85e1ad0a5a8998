package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/shopspring/decimal"

	"github.com/storefront-platform/backend/services/cart-service/cart"
	"github.com/storefront-platform/backend/services/cart-service/models"
)

var ErrProductNotFound = errors.New("product not found")

// Catalog looks up products of a store.
type Catalog interface {
	Product(ctx context.Context, storeID, productID string) (*models.Product, error)
}

type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoCatalog reads products from a table keyed by (store_id, product_id).
// Prices are stored as decimal strings.
type DynamoCatalog struct {
	client dynamoAPI
	table  string
}

func NewDynamoCatalog(client *dynamodb.Client, table string) *DynamoCatalog {
	return &DynamoCatalog{client: client, table: table}
}

type ddbOption struct {
	Label string  `dynamodbav:"label"`
	Price *string `dynamodbav:"price,omitempty"`
}

type ddbVariant struct {
	Name    string      `dynamodbav:"name"`
	Options []ddbOption `dynamodbav:"options"`
}

type ddbProduct struct {
	StoreID        string       `dynamodbav:"store_id"`
	ProductID      string       `dynamodbav:"product_id"`
	Name           string       `dynamodbav:"name"`
	Price          string       `dynamodbav:"price"`
	Images         []string     `dynamodbav:"images,omitempty"`
	Variants       []ddbVariant `dynamodbav:"variants,omitempty"`
	TotalStocks    *int         `dynamodbav:"total_stocks,omitempty"`
	VariantPricing string       `dynamodbav:"variant_pricing,omitempty"`
	DeletedAt      *string      `dynamodbav:"deleted_at,omitempty"`
}

func (d *DynamoCatalog) Product(ctx context.Context, storeID, productID string) (*models.Product, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"store_id": storeID, "product_id": productID})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: &d.table, Key: key})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrProductNotFound
	}

	var dp ddbProduct
	if err := attributevalue.UnmarshalMap(out.Item, &dp); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	if dp.DeletedAt != nil {
		return nil, ErrProductNotFound
	}
	return toModel(dp)
}

func toModel(dp ddbProduct) (*models.Product, error) {
	price, err := decimal.NewFromString(dp.Price)
	if err != nil {
		return nil, fmt.Errorf("product %s price %q: %w", dp.ProductID, dp.Price, err)
	}
	p := &models.Product{
		ID:             dp.ProductID,
		StoreID:        dp.StoreID,
		Name:           dp.Name,
		Price:          price,
		Images:         dp.Images,
		TotalStocks:    dp.TotalStocks,
		VariantPricing: cart.ParsePricingMode(dp.VariantPricing),
	}
	for _, v := range dp.Variants {
		variant := models.Variant{Name: v.Name}
		for _, o := range v.Options {
			opt := models.VariantOptionDef{Label: o.Label}
			if o.Price != nil {
				delta, err := decimal.NewFromString(*o.Price)
				if err != nil {
					return nil, fmt.Errorf("product %s option %s/%s price: %w", dp.ProductID, v.Name, o.Label, err)
				}
				opt.Price = &delta
			}
			variant.Options = append(variant.Options, opt)
		}
		p.Variants = append(p.Variants, variant)
	}
	return p, nil
}
