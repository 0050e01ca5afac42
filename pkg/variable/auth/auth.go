// Package auth implements the UEFI authenticated-variable update engine:
// EFI_VARIABLE_AUTHENTICATION_2 header parsing, timestamp validation,
// digest computation, secure-boot key-chain verification, and
// private-authenticated-variable fingerprint pinning. The engine owns the
// authentication logic only; the signature check and fingerprint
// derivation themselves are delegated to the crypto collaborator.
package auth

import (
	"context"

	"github.com/arm-trusted-services/ts-core/pkg/variable/crypto"
	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

// KeyReader fetches the raw payload of a secure-boot key-store variable
// (PK, KEK, db, dbx, dbt, dbr) by namespace and name, the collaborator the
// engine needs from the variable store to walk the PK→KEK→db trust chain.
// ErrNotFound means the variable has never been set.
type KeyReader interface {
	ReadKeyVariable(ctx context.Context, guid meta.Guid, name meta.Name) ([]byte, efistatus.Status)
}

// Engine authenticates time-based authenticated variable updates.
type Engine struct {
	Crypto crypto.Backend
}

// NewEngine constructs an Engine over the given crypto collaborator.
func NewEngine(c crypto.Backend) *Engine {
	return &Engine{Crypto: c}
}

// Request is the input to Authenticate: everything the engine needs about
// the incoming update and the variable's current state, independent of
// how the caller (the variable store) represents either.
type Request struct {
	Guid              meta.Guid
	Name              meta.Name
	Attributes        uint32
	Data              []byte
	VariableExists    bool
	StoredTimestamp   meta.Time
	StoredFingerprint [32]byte
}

// Result is the authenticated update's outcome: the timestamp and
// fingerprint to persist in the variable's metadata, and the payload with
// its authentication header stripped, ready for the variable store to
// persist.
type Result struct {
	Timestamp   meta.Time
	Fingerprint [32]byte
	Payload     []byte
}

// Authenticate validates req's EFI_VARIABLE_AUTHENTICATION_2 header,
// timestamp, and signature, matching authenticate_variable's top-level
// flow. On success it returns the Result to persist; on failure it
// returns the zero Result and a non-Success status (ErrInvalidParameter
// for a malformed header, ErrSecurityViolation for every authentication
// failure: bad timestamp, bad signature, fingerprint mismatch,
// unsupported cert type).
func (e *Engine) Authenticate(ctx context.Context, keys KeyReader, req Request) (Result, efistatus.Status) {
	timestamp, signedData, payload, status := ParseHeader(req.Data)
	if status != efistatus.Success {
		return Result{}, status
	}

	if timestamp.HasNonZeroPad() {
		return Result{}, efistatus.ErrSecurityViolation
	}

	appendWrite := req.Attributes&meta.AttrAppendWrite != 0
	if !appendWrite {
		if !timestamp.After(req.StoredTimestamp) {
			return Result{}, efistatus.ErrSecurityViolation
		}
	}

	digest := Digest(req.Name, req.Guid, req.Attributes, timestamp, payload)

	var fingerprint [32]byte
	switch Classify(req.Guid, req.Name) {
	case ClassSecureBoot:
		status = e.authenticateSecureBoot(ctx, keys, req.Guid, req.Name, digest, signedData)
	default:
		fingerprint, status = e.authenticatePrivate(ctx, signedData, digest, req.VariableExists, req.StoredFingerprint)
	}
	if status != efistatus.Success {
		return Result{}, status
	}

	resultTimestamp := timestamp
	if appendWrite {
		// Append writes authenticate against a fresh timestamp but never
		// advance the variable's stored timestamp.
		resultTimestamp = req.StoredTimestamp
	}

	return Result{Timestamp: resultTimestamp, Fingerprint: fingerprint, Payload: payload}, efistatus.Success
}

// authenticateSecureBoot verifies a write to PK/KEK/db/dbx/dbt/dbr against
// the current secure-boot key hierarchy, matching
// authenticate_secure_boot_variable.
func (e *Engine) authenticateSecureBoot(ctx context.Context, keys KeyReader, guid meta.Guid, name meta.Name, digest [32]byte, signedData []byte) efistatus.Status {
	pkData, pkStatus := keys.ReadKeyVariable(ctx, pkName.Guid, pkName.Name)
	if pkStatus == efistatus.ErrNotFound || len(pkData) == 0 {
		// No platform key installed: secure boot is disabled and every
		// write to the key hierarchy is accepted unauthenticated.
		return efistatus.Success
	}
	if pkStatus != efistatus.Success {
		return pkStatus
	}

	eligible, status := VerificationKeys(guid, name)
	if status != efistatus.Success {
		return status
	}

	for _, kv := range eligible {
		keyData := pkData
		if kv.Guid != pkName.Guid || !kv.Name.Equal(pkName.Name) {
			data, kvStatus := keys.ReadKeyVariable(ctx, kv.Guid, kv.Name)
			if kvStatus != efistatus.Success {
				return efistatus.ErrSecurityViolation
			}
			keyData = data
		}

		if e.verifyAgainstKeyVariable(ctx, keyData, digest, signedData) {
			return efistatus.Success
		}
	}

	return efistatus.ErrSecurityViolation
}

// verifyAgainstKeyVariable parses keyData as an EFI_SIGNATURE_LIST chain
// and tries every embedded certificate against signedData, succeeding as
// soon as one verifies, matching verify_var_by_key_var.
func (e *Engine) verifyAgainstKeyVariable(ctx context.Context, keyData []byte, digest [32]byte, signedData []byte) bool {
	certs, status := certsFromSignatureList(keyData)
	if status != efistatus.Success {
		return false
	}

	for _, certDER := range certs {
		cert, err := parseCertificate(certDER)
		if err != nil {
			continue
		}
		if e.Crypto.VerifySignature(ctx, cert, digest, signedData) == crypto.VerifySuccess {
			return true
		}
	}

	return false
}

// authenticatePrivate verifies a write to a non-key-hierarchy variable
// against its own embedded certificate chain and enforces fingerprint
// pinning, matching authenticate_private_variable.
func (e *Engine) authenticatePrivate(ctx context.Context, signedData []byte, digest [32]byte, variableExists bool, storedFingerprint [32]byte) ([32]byte, efistatus.Status) {
	if e.Crypto.VerifySignature(ctx, nil, digest, signedData) != crypto.VerifySuccess {
		return [32]byte{}, efistatus.ErrSecurityViolation
	}

	fingerprint, err := e.Crypto.Fingerprint(ctx, signedData)
	if err != nil {
		return [32]byte{}, efistatus.ErrSecurityViolation
	}

	if !variableExists {
		return fingerprint, efistatus.Success
	}
	if fingerprint != storedFingerprint {
		return [32]byte{}, efistatus.ErrSecurityViolation
	}
	return fingerprint, efistatus.Success
}
