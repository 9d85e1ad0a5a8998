package signing_test

import (
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-platform/backend/pkg/signing"
	"github.com/storefront-platform/backend/pkg/signing/signingtest"
)

func TestDigest(t *testing.T) {
	// SHA-256("abc"), base64url without padding
	assert.Equal(t, "ungWv48Bz-pBQUDeXa4iI7ADYaOWF3qctBD_YfIAFa0", signing.Digest("abc"))
	assert.True(t, signing.DigestMatches("abc", "ungWv48Bz-pBQUDeXa4iI7ADYaOWF3qctBD_YfIAFa0"))
	assert.False(t, signing.DigestMatches("abd", "ungWv48Bz-pBQUDeXa4iI7ADYaOWF3qctBD_YfIAFa0"))
	assert.False(t, signing.DigestMatches("abc", "ungWv48Bz-pBQUDeXa4iI7ADYaOWF3qctBD_YfIAFa0="))
}

func TestParseJWK(t *testing.T) {
	key := signingtest.NewDashboardKey(t)

	parsed, err := signing.ParseJWK(key.JWKString())
	require.NoError(t, err)
	assert.Equal(t, key.JWK(), *parsed)

	pub, err := parsed.PublicKey()
	require.NoError(t, err)
	assert.True(t, pub.Equal(&key.Private.PublicKey))
}

func TestParseJWK_Rejects(t *testing.T) {
	good := signingtest.NewDashboardKey(t).JWK()

	offCurve := good
	y, _ := base64.RawURLEncoding.DecodeString(good.Y)
	y[len(y)-1] ^= 0x01
	offCurve.Y = base64.RawURLEncoding.EncodeToString(y)

	wrongKty := good
	wrongKty.Kty = "RSA"

	wrongCrv := good
	wrongCrv.Crv = "secp256k1"

	short := good
	short.X = good.X[:10]

	cases := map[string]string{
		"not json":  "{",
		"off curve": mustJSON(t, offCurve),
		"kty":       mustJSON(t, wrongKty),
		"crv":       mustJSON(t, wrongCrv),
		"short x":   mustJSON(t, short),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := signing.ParseJWK(raw)
			assert.ErrorIs(t, err, signing.ErrInvalidKey)
		})
	}
}

func TestThumbprint_IgnoresMemberOrder(t *testing.T) {
	key := signingtest.NewDashboardKey(t).JWK()
	reordered := `{"y":"` + key.Y + `","x":"` + key.X + `","kty":"EC","crv":"P-256","use":"sig"}`

	parsed, err := signing.ParseJWK(reordered)
	require.NoError(t, err)
	assert.Equal(t, key.Thumbprint(), parsed.Thumbprint())

	other := signingtest.NewDashboardKey(t).JWK()
	assert.NotEqual(t, key.Thumbprint(), other.Thumbprint())
}

func TestCompactToDER(t *testing.T) {
	sig := make([]byte, 64)
	sig[0] = 0x80 // high bit forces a leading zero on r
	sig[63] = 0x01

	der, err := signing.CompactToDER(sig, elliptic.P256())
	require.NoError(t, err)
	assert.Equal(t, byte(0x30), der[0])
	// r: INTEGER 33 bytes with leading 0x00
	assert.Equal(t, []byte{0x02, 0x21, 0x00, 0x80}, der[2:6])
	// s: INTEGER 1 byte
	assert.Equal(t, []byte{0x02, 0x01, 0x01}, der[len(der)-3:])

	_, err = signing.CompactToDER(sig[:63], elliptic.P256())
	assert.ErrorIs(t, err, signing.ErrInvalidSignature)
}

func TestVerifyCompact(t *testing.T) {
	key := signingtest.NewDashboardKey(t)
	jwk := key.JWK()
	digest := signing.Digest(`{"type":"OrderCancel"}`)
	sig := key.Sign(t, digest)

	require.NoError(t, signing.VerifyCompact(&jwk, digest, sig))

	t.Run("different digest", func(t *testing.T) {
		err := signing.VerifyCompact(&jwk, signing.Digest("other"), sig)
		assert.ErrorIs(t, err, signing.ErrInvalidSignature)
	})

	t.Run("flipped bit", func(t *testing.T) {
		raw, err := signing.DecodeCompact(sig)
		require.NoError(t, err)
		raw[10] ^= 0x01
		err = signing.VerifyCompact(&jwk, digest, base64.RawURLEncoding.EncodeToString(raw))
		assert.ErrorIs(t, err, signing.ErrInvalidSignature)
	})

	t.Run("other key", func(t *testing.T) {
		other := signingtest.NewDashboardKey(t).JWK()
		err := signing.VerifyCompact(&other, digest, sig)
		assert.ErrorIs(t, err, signing.ErrInvalidSignature)
	})

	t.Run("garbage encoding", func(t *testing.T) {
		err := signing.VerifyCompact(&jwk, digest, "!!!")
		assert.ErrorIs(t, err, signing.ErrInvalidSignature)
	})
}

func TestVerifyDigestSignature_MalformedPEM(t *testing.T) {
	err := signing.VerifyDigestSignature([]byte("not pem"), "d", []byte{0x30, 0x00})
	assert.ErrorIs(t, err, signing.ErrInvalidKey)
}

func TestIsValidAddress(t *testing.T) {
	cases := []struct {
		addr  string
		valid bool
	}{
		{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},
		{"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", true},
		{"0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED", true},
		{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD", false}, // bad checksum
		{"5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", false},
		{"0x5aaeb6053f3e94c9b9a09f33669435e7ef1bea", false},
		{"0xzaaeb6053f3e94c9b9a09f33669435e7ef1beaed", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.valid, signing.IsValidAddress(tc.addr), tc.addr)
	}
}

func TestSameAddress(t *testing.T) {
	assert.True(t, signing.SameAddress(
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
	))
	assert.False(t, signing.SameAddress(
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	))
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		signing.NormalizeAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
