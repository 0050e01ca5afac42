// Package uuid defines the 16-byte service identity type used to address
// service interfaces within an endpoint, plus the canonical UUIDs named by
// the external interface contract.
package uuid

import (
	"encoding/hex"
	"fmt"

	googleuuid "github.com/google/uuid"
)

// Size is the fixed byte length of a service UUID.
const Size = 16

// UUID is a 16-byte service identity. Equality is a plain byte compare;
// there is no canonicalization beyond the fixed-size array representation.
type UUID [Size]byte

// Equal reports whether a and b identify the same service.
func Equal(a, b UUID) bool {
	return a == b
}

// IsZero reports whether u is the all-zero UUID, used as a "no service"
// sentinel in places that need an absent-value marker.
func (u UUID) IsZero() bool {
	return u == UUID{}
}

// String renders the UUID in canonical 8-4-4-4-12 hyphenated hex form.
func (u UUID) String() string {
	return googleuuid.UUID(u).String()
}

// Bytes returns the UUID's 16 raw bytes as a slice.
func (u UUID) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, u[:])
	return b
}

// Parse parses a canonical hyphenated UUID string into a UUID.
func Parse(s string) (UUID, error) {
	gu, err := googleuuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("rpc/uuid: invalid uuid %q: %w", s, err)
	}
	return UUID(gu), nil
}

// MustParse is like Parse but panics on error; intended for package-level
// UUID constants built from known-good literals.
func MustParse(s string) UUID {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// FromBytes builds a UUID from a 16-byte slice, error if the length is wrong.
func FromBytes(b []byte) (UUID, error) {
	if len(b) != Size {
		return UUID{}, fmt.Errorf("rpc/uuid: expected %d bytes, got %d", Size, len(b))
	}
	var u UUID
	copy(u[:], b)
	return u, nil
}

// Hex renders the UUID as a plain 32-character hex string, no hyphens;
// used by the shared-memory/fingerprint debug-log helpers.
func (u UUID) Hex() string {
	return hex.EncodeToString(u[:])
}

// Canonical service UUIDs named by the external interface contract.
var (
	// Attestation is the PSA attestation service UUID.
	Attestation = MustParse("a1baf155-8876-4695-8f7c-54955e8db974")

	// BlockStorage is the block storage service UUID.
	BlockStorage = MustParse("63646e80-eb52-462f-ac4f-8cdf3987519c")

	// TestRunner is the test-runner service UUID.
	TestRunner = MustParse("33c75baf-ac6a-4fe4-8ac7-e9909bee2d17")

	// Lua is the Lua interpreter service UUID.
	Lua = MustParse("cf0cfcf8-8376-46ad-903f-777eceb8af2a")

	// SMMVariable is the UEFI SMM variable service UUID. In firmware
	// deployments the variable store is reached via a fixed partition id
	// rather than a UUID-addressed interface lookup; this value gives the
	// HTTP REST transport and tsctl a stable address for the variable
	// service interface.
	SMMVariable = MustParse("ba5311ca-3f86-46a8-90ba-a0ce3cc49fc6")
)

// ManagementInterfaceID is the reserved interface id for the management
// interface (version negotiation, memory retrieve/relinquish, interface-id
// query), distinct from the UUID-addressed service interfaces.
const ManagementInterfaceID uint8 = 0xFF
