// Package storage defines the storage-backend collaborator contract the
// UEFI variable store delegates object bytes to, with PSA secure-storage
// call semantics, plus reference implementations that exercise the
// contract end to end. The collaborator's business logic (wear-leveling,
// replay-counter enforcement) lives in the real secure-storage partition;
// these implementations satisfy only the contract's observable behavior.
package storage

import (
	"context"
	"fmt"

	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
)

// Flags are the per-object storage hints a caller may request on Create,
// matching PSA_STORAGE_FLAG_*.
type Flags uint32

const (
	FlagNone               Flags = 0
	FlagWriteOnce          Flags = 1 << 0
	FlagNoConfidentiality  Flags = 1 << 1
	FlagNoReplayProtection Flags = 1 << 2
)

// ObjectInfo is the shape a backend reports from GetInfo: the size and
// flags of a stored object.
type ObjectInfo struct {
	UID     uint64
	OwnerID uint32
	Size    int
	Flags   Flags
}

// Backend is the narrow collaborator interface the UEFI variable store
// consumes to persist and retrieve variable object bytes. OwnerID
// corresponds to the PSA client id; UID identifies the object within
// that owner's namespace. Every method returns a PSAStatus, mapped to an
// EFI status by the caller via efistatus.FromPSA.
type Backend interface {
	// Set writes data as the entirety of object uid, creating it if it
	// does not already exist.
	Set(ctx context.Context, ownerID uint32, uid uint64, data []byte, flags Flags) efistatus.PSAStatus

	// Get reads up to len(dst) bytes starting at offset from object uid
	// into dst, returning the number of bytes actually copied.
	Get(ctx context.Context, ownerID uint32, uid uint64, offset int, dst []byte) (int, efistatus.PSAStatus)

	// GetInfo reports the size and flags of object uid.
	GetInfo(ctx context.Context, ownerID uint32, uid uint64) (ObjectInfo, efistatus.PSAStatus)

	// Remove deletes object uid. Removing a non-existent object returns
	// PSAErrorDoesNotExist.
	Remove(ctx context.Context, ownerID uint32, uid uint64) efistatus.PSAStatus

	// Create reserves an empty object of the given size and flags,
	// without writing any data into it, used by the two-slot index
	// commit to pre-size the inactive slot before streaming into it.
	Create(ctx context.Context, ownerID uint32, uid uint64, size int, flags Flags) efistatus.PSAStatus

	// SetExtended writes data at offset within an already-created
	// object, used to stream large payloads (the variable index dump)
	// across multiple calls without holding the whole buffer at once.
	SetExtended(ctx context.Context, ownerID uint32, uid uint64, offset int, data []byte) efistatus.PSAStatus

	// GetSupport reports the flags this backend can honor for a given
	// owner/uid pair, used by callers that want to know whether
	// WRITE_ONCE or replay protection is actually enforced.
	GetSupport(ctx context.Context, ownerID uint32, uid uint64) (Flags, efistatus.PSAStatus)
}

// objectKey identifies one stored object across all owners, mirroring the
// (owner_id, uid) composite key every Backend method addresses by.
type objectKey struct {
	OwnerID uint32
	UID     uint64
}

func (k objectKey) String() string {
	return fmt.Sprintf("%d:%d", k.OwnerID, k.UID)
}
