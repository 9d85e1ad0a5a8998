package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCanceled  = "canceled"
	StatusFulfilled = "fulfilled"
)

// transitions lists the statuses an order may move to from each status.
var transitions = map[string][]string{
	StatusPending: {StatusPaid, StatusCanceled, StatusFulfilled},
	StatusPaid:    {StatusCanceled, StatusFulfilled},
}

// CanTransition reports whether an order in status from may move to status to.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Store is a tenant. OwnerAddress is the lowercased wallet address allowed to
// run dashboard mutations for it.
type Store struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerAddress string    `gorm:"type:varchar(42);not null;index" json:"ownerAddress"`
	Name         string    `gorm:"type:varchar(120);not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	Currency     string    `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	// SettingsSignedAt is the timestamp of the last applied signed Store
	// message. Messages not newer than it are refused.
	SettingsSignedAt int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type User struct {
	Address     string       `gorm:"type:varchar(42);primaryKey" json:"address"`
	Name        string       `gorm:"type:varchar(120)" json:"name"`
	Email       string       `gorm:"type:varchar(255)" json:"email"`
	SigningKeys []SigningKey `gorm:"foreignKey:Address;references:Address;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
}

// HasKey reports whether thumbprint is among the user's registered keys.
func (u *User) HasKey(thumbprint string) bool {
	for _, k := range u.SigningKeys {
		if k.Thumbprint == thumbprint {
			return true
		}
	}
	return false
}

// SigningKey is a dashboard public key registered to a wallet address. JWK
// holds the key as submitted; Thumbprint is its RFC 7638 thumbprint.
type SigningKey struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Address    string    `gorm:"type:varchar(42);not null;uniqueIndex:idx_signing_keys_address_thumbprint" json:"address"`
	Thumbprint string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_signing_keys_address_thumbprint" json:"thumbprint"`
	JWK        string    `gorm:"type:text;not null" json:"jwk"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

type Order struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CheckoutID   uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"checkoutId"`
	StoreID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"storeId"`
	BuyerAddress string          `gorm:"type:varchar(42);not null;index" json:"buyerAddress"`
	Subtotal     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	CartDigest   string          `gorm:"type:varchar(64)" json:"cartDigest"`
	Status       string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CanceledAt   *time.Time      `json:"canceledAt,omitempty"`
	FulfilledAt  *time.Time      `json:"fulfilledAt,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
	OrderItems   []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"orderId"`
	ProductID string          `gorm:"type:varchar(64);not null" json:"productId"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Variants  Variants        `gorm:"type:text" json:"variants,omitempty"`
}

type VariantOption struct {
	Label string           `json:"label"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// Variants is the variant selection of an order line, stored as JSON text.
type Variants map[string]VariantOption

func (v Variants) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *Variants) Scan(src any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		return fmt.Errorf("variants: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*v = nil
		return nil
	}
	return json.Unmarshal(raw, v)
}
