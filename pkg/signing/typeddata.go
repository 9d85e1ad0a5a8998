package signing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrSignerMismatch = errors.New("signer does not match address")
)

// WalletPayload is the body a browser wallet produces when it signs EIP-712
// typed data on behalf of an account.
type WalletPayload struct {
	Address string             `json:"address" binding:"required"`
	Data    apitypes.TypedData `json:"data"`
	Sig     string             `json:"sig" binding:"required"`
}

const domainTypeName = "EIP712Domain"

// NormalizeTypedData fills in what wallet libraries usually omit from the
// JSON they hand back: the EIP712Domain type list and the primary type.
func NormalizeTypedData(data apitypes.TypedData) (apitypes.TypedData, error) {
	td := data
	types := make(apitypes.Types, len(data.Types)+1)
	for name, fields := range data.Types {
		types[name] = fields
	}
	if _, ok := types[domainTypeName]; !ok {
		types[domainTypeName] = domainFields(data.Domain)
	}
	td.Types = types

	if td.PrimaryType == "" {
		primary, err := inferPrimaryType(types)
		if err != nil {
			return td, err
		}
		td.PrimaryType = primary
	}
	if _, ok := types[td.PrimaryType]; !ok {
		return td, fmt.Errorf("unknown primary type %q", td.PrimaryType)
	}
	return td, nil
}

func domainFields(d apitypes.TypedDataDomain) []apitypes.Type {
	var fields []apitypes.Type
	if d.Name != "" {
		fields = append(fields, apitypes.Type{Name: "name", Type: "string"})
	}
	if d.Version != "" {
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	if d.ChainId != nil {
		fields = append(fields, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if d.VerifyingContract != "" {
		fields = append(fields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	if d.Salt != "" {
		fields = append(fields, apitypes.Type{Name: "salt", Type: "bytes32"})
	}
	return fields
}

// inferPrimaryType picks the only struct type that no other type references.
func inferPrimaryType(types apitypes.Types) (string, error) {
	referenced := make(map[string]bool)
	for name, fields := range types {
		if name == domainTypeName {
			continue
		}
		for _, f := range fields {
			base := f.Type
			if i := strings.Index(base, "["); i >= 0 {
				base = base[:i]
			}
			referenced[base] = true
		}
	}

	var roots []string
	for name := range types {
		if name == domainTypeName || referenced[name] {
			continue
		}
		roots = append(roots, name)
	}
	sort.Strings(roots)
	switch len(roots) {
	case 1:
		return roots[0], nil
	case 0:
		return "", errors.New("no primary type candidate")
	default:
		return "", fmt.Errorf("ambiguous primary type: %s", strings.Join(roots, ", "))
	}
}

// RecoverTypedDataSigner hashes the typed data per EIP-712 and recovers the
// address that produced the 65-byte secp256k1 signature.
func RecoverTypedDataSigner(data apitypes.TypedData, sig string) (string, error) {
	td, err := NormalizeTypedData(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	raw, err := hexutil.Decode(sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(raw) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(raw))
	}
	// wallets emit v as 27/28
	if raw[crypto.RecoveryIDOffset] >= 27 {
		raw[crypto.RecoveryIDOffset] -= 27
	}

	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	pub, err := crypto.SigToPub(hash, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// VerifyTypedData checks that address is well formed and signed data.
func VerifyTypedData(address string, data apitypes.TypedData, sig string) error {
	if !IsValidAddress(address) {
		return ErrInvalidAddress
	}
	signer, err := RecoverTypedDataSigner(data, sig)
	if err != nil {
		return err
	}
	if !SameAddress(signer, address) {
		return ErrSignerMismatch
	}
	return nil
}
