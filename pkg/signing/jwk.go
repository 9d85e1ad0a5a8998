package signing

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInvalidKey       = errors.New("invalid public key")
	ErrInvalidSignature = errors.New("invalid signature")
)

// JWK is the subset of an RFC 7517 elliptic-curve public key the storefront
// dashboard registers for its signing keys.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// ParseJWK decodes a JSON-stringified JWK and checks that it describes a
// point on a supported curve.
func ParseJWK(raw string) (*JWK, error) {
	var k JWK
	if err := json.Unmarshal([]byte(raw), &k); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if _, err := k.PublicKey(); err != nil {
		return nil, err
	}
	return &k, nil
}

func curveFor(crv string) (elliptic.Curve, ecdh.Curve, error) {
	switch crv {
	case "P-256":
		return elliptic.P256(), ecdh.P256(), nil
	case "P-384":
		return elliptic.P384(), ecdh.P384(), nil
	case "P-521":
		return elliptic.P521(), ecdh.P521(), nil
	default:
		return nil, nil, fmt.Errorf("%w: unsupported curve %q", ErrInvalidKey, crv)
	}
}

func coordinateSize(curve elliptic.Curve) int {
	return (curve.Params().BitSize + 7) / 8
}

// Curve returns the elliptic curve named by the key.
func (k *JWK) Curve() (elliptic.Curve, error) {
	curve, _, err := curveFor(k.Crv)
	return curve, err
}

// PublicKey converts the JWK into an ECDSA public key.
func (k *JWK) PublicKey() (*ecdsa.PublicKey, error) {
	if k.Kty != "EC" {
		return nil, fmt.Errorf("%w: unsupported key type %q", ErrInvalidKey, k.Kty)
	}
	curve, ecdhCurve, err := curveFor(k.Crv)
	if err != nil {
		return nil, err
	}

	x, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("%w: x coordinate: %v", ErrInvalidKey, err)
	}
	y, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, fmt.Errorf("%w: y coordinate: %v", ErrInvalidKey, err)
	}
	size := coordinateSize(curve)
	if len(x) != size || len(y) != size {
		return nil, fmt.Errorf("%w: coordinate length", ErrInvalidKey)
	}

	// ecdh rejects points that are not on the curve
	point := make([]byte, 0, 1+2*size)
	point = append(point, 0x04)
	point = append(point, x...)
	point = append(point, y...)
	if _, err := ecdhCurve.NewPublicKey(point); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}, nil
}

// Thumbprint computes the RFC 7638 thumbprint of the key. Two JWKs with the
// same thumbprint describe the same public key regardless of member order or
// extra members.
func (k *JWK) Thumbprint() string {
	// members in lexicographic order
	canonical, _ := json.Marshal(struct {
		Crv string `json:"crv"`
		Kty string `json:"kty"`
		X   string `json:"x"`
		Y   string `json:"y"`
	}{k.Crv, k.Kty, k.X, k.Y})
	sum := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// JWKToPEM encodes the key as a PKIX "PUBLIC KEY" PEM block.
func JWKToPEM(k *JWK) ([]byte, error) {
	pub, err := k.PublicKey()
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
