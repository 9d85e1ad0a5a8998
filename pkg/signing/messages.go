package signing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/go-playground/validator/v10"
)

// Kind names a signed message type. It doubles as the EIP-712 primary type
// in the wallet flow.
type Kind string

const (
	KindOrderCancel        Kind = "OrderCancel"
	KindOrderFulfill       Kind = "OrderFulfill"
	KindAccountDetails     Kind = "AccountDetails"
	KindStore              Kind = "Store"
	KindGenerateSigningKey Kind = "GenerateSigningKey"
	KindOrder              Kind = "Order"
)

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrInvalidMessage = errors.New("invalid message")
)

var validate = validator.New()

// Message is implemented by every signed message struct in this package.
type Message interface {
	Kind() Kind
}

// Timestamp is a unix-seconds value. Typed-data wallets serialize integers
// as strings, so both forms are accepted.
type Timestamp int64

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = unquoted
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = Timestamp(v)
	return nil
}

type OrderCancel struct {
	StoreID   string    `json:"storeId" validate:"required,uuid"`
	OrderID   string    `json:"orderId" validate:"required,uuid"`
	Timestamp Timestamp `json:"timestamp" validate:"required,gt=0"`
}

type OrderFulfill struct {
	StoreID   string    `json:"storeId" validate:"required,uuid"`
	OrderID   string    `json:"orderId" validate:"required,uuid"`
	Timestamp Timestamp `json:"timestamp" validate:"required,gt=0"`
}

type AccountDetails struct {
	Address   string    `json:"address" validate:"required"`
	Name      string    `json:"name" validate:"max=120"`
	Email     string    `json:"email" validate:"omitempty,email"`
	Timestamp Timestamp `json:"timestamp" validate:"required,gt=0"`
}

type Store struct {
	StoreID     string    `json:"storeId" validate:"required,uuid"`
	Name        string    `json:"name" validate:"required,max=120"`
	Description string    `json:"description" validate:"max=2000"`
	Currency    string    `json:"currency" validate:"omitempty,len=3,alpha"`
	Timestamp   Timestamp `json:"timestamp" validate:"required,gt=0"`
}

// GenerateSigningKey registers Key, a JSON-stringified JWK, for Address.
type GenerateSigningKey struct {
	Address   string    `json:"address" validate:"required"`
	Key       string    `json:"key" validate:"required"`
	Timestamp Timestamp `json:"timestamp" validate:"required,gt=0"`
}

// Order is what a buyer signs at checkout. CartDigest commits to the exact
// cart contents the buyer saw.
type Order struct {
	StoreID    string    `json:"storeId" validate:"required,uuid"`
	CartDigest string    `json:"cartDigest" validate:"required"`
	Subtotal   string    `json:"subtotal" validate:"required,numeric"`
	Timestamp  Timestamp `json:"timestamp" validate:"required,gt=0"`
}

func (OrderCancel) Kind() Kind        { return KindOrderCancel }
func (OrderFulfill) Kind() Kind       { return KindOrderFulfill }
func (AccountDetails) Kind() Kind     { return KindAccountDetails }
func (Store) Kind() Kind              { return KindStore }
func (GenerateSigningKey) Kind() Kind { return KindGenerateSigningKey }
func (Order) Kind() Kind              { return KindOrder }

type envelope struct {
	Type    Kind            `json:"type"`
	Message json.RawMessage `json:"message"`
}

// EncodePayload renders m in the envelope DecodeMessage reads.
func EncodePayload(m Message) (string, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(envelope{Type: m.Kind(), Message: body})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DecodeMessage parses the signed payload string of the digest flow.
func DecodeMessage(payload string) (Message, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return decode(env.Type, env.Message)
}

// DecodeTypedMessage reads the message of a wallet typed-data payload,
// using the primary type as the kind.
func DecodeTypedMessage(data apitypes.TypedData) (Message, error) {
	td, err := NormalizeTypedData(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	raw, err := json.Marshal(td.Message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return decode(Kind(td.PrimaryType), raw)
}

func decode(kind Kind, raw json.RawMessage) (Message, error) {
	switch kind {
	case KindOrderCancel:
		return decodeAs[OrderCancel](raw)
	case KindOrderFulfill:
		return decodeAs[OrderFulfill](raw)
	case KindAccountDetails:
		return decodeAs[AccountDetails](raw)
	case KindStore:
		return decodeAs[Store](raw)
	case KindGenerateSigningKey:
		return decodeAs[GenerateSigningKey](raw)
	case KindOrder:
		return decodeAs[Order](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, kind)
	}
}

func decodeAs[T Message](raw json.RawMessage) (Message, error) {
	var m T
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidMessage)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := validate.Struct(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return m, nil
}
