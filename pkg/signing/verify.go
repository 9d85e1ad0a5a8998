package signing

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// VerifyDigestSignature checks a DER signature over SHA-256(digest) against a
// PEM-encoded public key.
func VerifyDigestSignature(pemKey []byte, digest string, der []byte) error {
	block, _ := pem.Decode(pemKey)
	if block == nil || block.Type != "PUBLIC KEY" {
		return fmt.Errorf("%w: malformed PEM", ErrInvalidKey)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: not an ECDSA key", ErrInvalidKey)
	}

	hash := sha256.Sum256([]byte(digest))
	if !ecdsa.VerifyASN1(pub, hash[:], der) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyCompact runs the full conversion chain: JWK to PEM, base64url compact
// signature to DER, then verification of the digest.
func VerifyCompact(key *JWK, digest, signature string) error {
	curve, err := key.Curve()
	if err != nil {
		return err
	}
	pemKey, err := JWKToPEM(key)
	if err != nil {
		return err
	}
	raw, err := DecodeCompact(signature)
	if err != nil {
		return err
	}
	der, err := CompactToDER(raw, curve)
	if err != nil {
		return err
	}
	return VerifyDigestSignature(pemKey, digest, der)
}
