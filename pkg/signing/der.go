package signing

import (
	"crypto/elliptic"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// DecodeCompact decodes a base64url r||s signature. Padding is tolerated.
func DecodeCompact(signature string) ([]byte, error) {
	sig, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(signature, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return sig, nil
}

// CompactToDER converts a fixed-width r||s signature into the ASN.1
// SEQUENCE { r INTEGER, s INTEGER } form expected by ecdsa.VerifyASN1.
func CompactToDER(sig []byte, curve elliptic.Curve) ([]byte, error) {
	size := coordinateSize(curve)
	if len(sig) != 2*size {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, 2*size, len(sig))
	}
	r := new(big.Int).SetBytes(sig[:size])
	s := new(big.Int).SetBytes(sig[size:])

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return der, nil
}
