// Package signingtest provides key material for tests that exercise the
// signing package from the outside.
package signingtest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/storefront-platform/backend/pkg/signing"
)

// DashboardKey is a P-256 key pair as a browser would generate with
// WebCrypto and register through GenerateSigningKey.
type DashboardKey struct {
	Private *ecdsa.PrivateKey
}

func NewDashboardKey(t testing.TB) *DashboardKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate P-256 key: %v", err)
	}
	return &DashboardKey{Private: priv}
}

func (k *DashboardKey) JWK() signing.JWK {
	size := (k.Private.Curve.Params().BitSize + 7) / 8
	return signing.JWK{
		Kty: "EC",
		Crv: k.Private.Curve.Params().Name,
		X:   base64.RawURLEncoding.EncodeToString(k.Private.X.FillBytes(make([]byte, size))),
		Y:   base64.RawURLEncoding.EncodeToString(k.Private.Y.FillBytes(make([]byte, size))),
	}
}

// JWKString is the JSON-stringified JWK carried in request bodies.
func (k *DashboardKey) JWKString() string {
	b, _ := json.Marshal(k.JWK())
	return string(b)
}

// Sign returns the base64url compact r||s signature over SHA-256(digest).
func (k *DashboardKey) Sign(t testing.TB, digest string) string {
	t.Helper()
	hash := sha256.Sum256([]byte(digest))
	r, s, err := ecdsa.Sign(rand.Reader, k.Private, hash[:])
	if err != nil {
		t.Fatalf("sign digest: %v", err)
	}
	size := (k.Private.Curve.Params().BitSize + 7) / 8
	sig := make([]byte, 2*size)
	r.FillBytes(sig[:size])
	s.FillBytes(sig[size:])
	return base64.RawURLEncoding.EncodeToString(sig)
}

// Wallet is a secp256k1 account that signs EIP-712 typed data.
type Wallet struct {
	Private *ecdsa.PrivateKey
	Address string
}

func NewWallet(t testing.TB) *Wallet {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate wallet key: %v", err)
	}
	return &Wallet{Private: priv, Address: crypto.PubkeyToAddress(priv.PublicKey).Hex()}
}

// SignTypedData signs data the way a browser wallet does, with v in 27/28.
func (w *Wallet) SignTypedData(t testing.TB, data apitypes.TypedData) string {
	t.Helper()
	td, err := signing.NormalizeTypedData(data)
	if err != nil {
		t.Fatalf("normalize typed data: %v", err)
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		t.Fatalf("hash typed data: %v", err)
	}
	sig, err := crypto.Sign(hash, w.Private)
	if err != nil {
		t.Fatalf("sign typed data: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

// Domain is the EIP-712 domain used by the storefront dashboard.
func Domain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:    "Storefront",
		Version: "1",
		ChainId: math.NewHexOrDecimal256(1),
	}
}

// TypedData builds a single-struct typed-data document without the
// EIP712Domain entry or primary type, as wallets usually return it.
func TypedData(kind signing.Kind, fields []apitypes.Type, message apitypes.TypedDataMessage) apitypes.TypedData {
	return apitypes.TypedData{
		Types:   apitypes.Types{string(kind): fields},
		Domain:  Domain(),
		Message: message,
	}
}

func GenerateSigningKeyData(address, jwk string, ts int64) apitypes.TypedData {
	return TypedData(signing.KindGenerateSigningKey, []apitypes.Type{
		{Name: "address", Type: "address"},
		{Name: "key", Type: "string"},
		{Name: "timestamp", Type: "uint256"},
	}, apitypes.TypedDataMessage{
		"address":   address,
		"key":       jwk,
		"timestamp": itoa(ts),
	})
}

func OrderData(storeID, cartDigest, subtotal string, ts int64) apitypes.TypedData {
	return TypedData(signing.KindOrder, []apitypes.Type{
		{Name: "storeId", Type: "string"},
		{Name: "cartDigest", Type: "string"},
		{Name: "subtotal", Type: "string"},
		{Name: "timestamp", Type: "uint256"},
	}, apitypes.TypedDataMessage{
		"storeId":    storeID,
		"cartDigest": cartDigest,
		"subtotal":   subtotal,
		"timestamp":  itoa(ts),
	})
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
