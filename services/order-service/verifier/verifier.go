// Package verifier authorizes dashboard mutations signed with a registered
// P-256 key. Every request passes five gates in a fixed order and the first
// failing gate decides the rejection reason.
package verifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront-platform/backend/pkg/signing"
	"github.com/storefront-platform/backend/services/order-service/models"
	"github.com/storefront-platform/backend/services/order-service/repository"
)

type Stage string

const (
	StageReceived           Stage = "RECEIVED"
	StageAddressValidated   Stage = "ADDRESS_VALIDATED"
	StageOwnershipValidated Stage = "OWNERSHIP_VALIDATED"
	StageKeyValidated       Stage = "KEY_VALIDATED"
	StageDigestValidated    Stage = "DIGEST_VALIDATED"
	StageSignatureValidated Stage = "SIGNATURE_VALIDATED"
	StageAuthorized         Stage = "AUTHORIZED"
	StageRejected           Stage = "REJECTED"
)

type Reason string

const (
	ReasonInvalidAddress   Reason = "invalid address"
	ReasonInvalidOwner     Reason = "invalid owner address"
	ReasonInvalidKey       Reason = "invalid public key"
	ReasonDigestMismatch   Reason = "digest mismatch"
	ReasonInvalidSignature Reason = "invalid signature"
)

// Request is the signed wire payload. Key is a JSON-stringified JWK and
// Payload the JSON-stringified message the digest was computed over.
type Request struct {
	Address   string            `json:"address"`
	Digest    string            `json:"digest"`
	Key       string            `json:"key"`
	Payload   string            `json:"payload"`
	Signature string            `json:"signature"`
	Timestamp signing.Timestamp `json:"timestamp"`
}

type TargetKind int

const (
	// StoreOwner targets a store; its registered owner must sign.
	StoreOwner TargetKind = iota
	// AccountOwner targets an account; the account address itself must sign.
	AccountOwner
)

// Target names the resource whose owner must have signed the request.
type Target struct {
	Kind TargetKind
	ID   string
}

func Store(storeID string) Target { return Target{Kind: StoreOwner, ID: storeID} }

func Account(address string) Target { return Target{Kind: AccountOwner, ID: address} }

func (t Target) String() string {
	if t.Kind == AccountOwner {
		return "account:" + t.ID
	}
	return "store:" + t.ID
}

// Result is the terminal state of one verification. Passed is the last gate
// that succeeded before the request was authorized or rejected.
type Result struct {
	Stage  Stage
	Passed Stage
	Reason Reason
	Key    *signing.JWK
}

func (r *Result) Authorized() bool { return r.Stage == StageAuthorized }

type StoreLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

type UserLookup interface {
	FindByAddress(ctx context.Context, address string) (*models.User, error)
}

// SignatureFunc checks signature over digest with key.
type SignatureFunc func(key *signing.JWK, digest, signature string) error

type Verifier struct {
	stores          StoreLookup
	users           UserLookup
	verifySignature SignatureFunc
	logger          *zap.Logger
}

type Option func(*Verifier)

func WithSignatureFunc(fn SignatureFunc) Option {
	return func(v *Verifier) { v.verifySignature = fn }
}

func New(stores StoreLookup, users UserLookup, logger *zap.Logger, opts ...Option) *Verifier {
	v := &Verifier{
		stores:          stores,
		users:           users,
		verifySignature: signing.VerifyCompact,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs the gates against req. A non-nil error means a lookup failed
// and no decision was reached; rejections are reported through Result.
func (v *Verifier) Verify(ctx context.Context, target Target, req Request) (*Result, error) {
	res := &Result{Stage: StageReceived, Passed: StageReceived}
	reject := func(reason Reason) (*Result, error) {
		res.Stage = StageRejected
		res.Reason = reason
		v.logger.Info("signed request rejected",
			zap.String("target", target.String()),
			zap.String("passed", string(res.Passed)),
			zap.String("reason", string(reason)),
		)
		return res, nil
	}

	if !signing.IsValidAddress(req.Address) {
		return reject(ReasonInvalidAddress)
	}
	res.Passed = StageAddressValidated

	owner, err := v.owner(ctx, target)
	if err != nil {
		return nil, err
	}
	if owner == "" || !signing.SameAddress(owner, req.Address) {
		return reject(ReasonInvalidOwner)
	}
	res.Passed = StageOwnershipValidated

	key, err := signing.ParseJWK(req.Key)
	if err != nil {
		return reject(ReasonInvalidKey)
	}
	user, err := v.users.FindByAddress(ctx, signing.NormalizeAddress(req.Address))
	if errors.Is(err, repository.ErrNotFound) {
		return reject(ReasonInvalidKey)
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	if !user.HasKey(key.Thumbprint()) {
		return reject(ReasonInvalidKey)
	}
	res.Passed = StageKeyValidated
	res.Key = key

	if !signing.DigestMatches(req.Payload, req.Digest) {
		return reject(ReasonDigestMismatch)
	}
	res.Passed = StageDigestValidated

	if err := v.verifySignature(key, req.Digest, req.Signature); err != nil {
		return reject(ReasonInvalidSignature)
	}
	res.Passed = StageSignatureValidated

	res.Stage = StageAuthorized
	return res, nil
}

// owner returns the registered owner address of target, or "" when the
// target does not exist.
func (v *Verifier) owner(ctx context.Context, target Target) (string, error) {
	switch target.Kind {
	case AccountOwner:
		return target.ID, nil
	case StoreOwner:
		id, err := uuid.Parse(target.ID)
		if err != nil {
			return "", nil
		}
		store, err := v.stores.FindByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("store lookup: %w", err)
		}
		return store.OwnerAddress, nil
	default:
		return "", fmt.Errorf("unknown target kind %d", target.Kind)
	}
}
