package store

import (
	"context"

	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
	"github.com/arm-trusted-services/ts-core/pkg/variable/storage"
)

// counterSize is the width of the leading counter field every index dump
// begins with (see pkg/variable/index's dump format); read in isolation by
// getActiveVariableUID to break a tie between the two slots without
// loading either slot's full contents.
const counterSize = 4

// getActiveVariableUID decides which of the two index-commit slots holds
// the current index, matching get_active_variable_uid. ErrNotFound means
// neither slot holds anything (a fresh store); any other non-Success
// status means the slots disagree by more than one commit and the load
// fails rather than guessing which slot is newer.
func (s *Store) getActiveVariableUID(ctx context.Context) (uint64, efistatus.Status) {
	infoA, statusA := s.persistent.Backend.GetInfo(ctx, s.ownerID, IndexSlotAUID)
	infoB, statusB := s.persistent.Backend.GetInfo(ctx, s.ownerID, IndexSlotBUID)

	aPresent := statusA == efistatus.PSASuccess && infoA.Size > 0
	bPresent := statusB == efistatus.PSASuccess && infoB.Size > 0

	switch {
	case !aPresent && !bPresent:
		return 0, efistatus.ErrNotFound
	case aPresent && !bPresent:
		return IndexSlotAUID, efistatus.Success
	case !aPresent && bPresent:
		return IndexSlotBUID, efistatus.Success
	}

	counterA, okA := s.readSlotCounter(ctx, IndexSlotAUID)
	counterB, okB := s.readSlotCounter(ctx, IndexSlotBUID)
	if !okA || !okB {
		return 0, efistatus.ErrDeviceError
	}

	switch {
	case counterA+1 == counterB:
		return IndexSlotBUID, efistatus.Success
	case counterB+1 == counterA:
		return IndexSlotAUID, efistatus.Success
	default:
		return 0, efistatus.ErrDeviceError
	}
}

func (s *Store) readSlotCounter(ctx context.Context, uid uint64) (uint32, bool) {
	buf := make([]byte, counterSize)
	n, status := s.persistent.Backend.Get(ctx, s.ownerID, uid, 0, buf)
	if status != efistatus.PSASuccess || n < counterSize {
		return 0, false
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, true
}

// loadVariableIndex loads the active slot's index into s.index, matching
// load_variable_index. A fresh (never-committed) store is not an error.
func (s *Store) loadVariableIndex(ctx context.Context) efistatus.Status {
	uid, status := s.getActiveVariableUID(ctx)
	if status == efistatus.ErrNotFound {
		s.activeVariableIndexUID = 0
		return efistatus.Success
	}
	if status != efistatus.Success {
		return status
	}

	data, status := loadVariableData(ctx, s.persistent.Backend, s.ownerID, uid)
	if status != efistatus.Success {
		return status
	}

	s.index.Restore(data)
	s.activeVariableIndexUID = uid
	return efistatus.Success
}

// syncVariableIndex dumps the index and, if anything was dirty, commits it
// to the inactive slot and flips the active slot, matching
// sync_variable_index. A dump with nothing dirty is a no-op: the
// previously committed slot is still current.
func (s *Store) syncVariableIndex(ctx context.Context) efistatus.Status {
	data, anyDirty, status := s.index.Dump(s.index.MaxDumpSize())
	if status != efistatus.Success {
		return status
	}
	if !anyDirty {
		return efistatus.Success
	}

	nextUID := IndexSlotBUID
	if s.activeVariableIndexUID == IndexSlotBUID {
		nextUID = IndexSlotAUID
	}

	_ = s.persistent.Backend.Remove(ctx, s.ownerID, nextUID)

	if createStatus := s.persistent.Backend.Create(ctx, s.ownerID, nextUID, len(data), storage.FlagNone); createStatus != efistatus.PSASuccess {
		return efistatus.FromPSA(createStatus)
	}
	if setStatus := s.persistent.Backend.SetExtended(ctx, s.ownerID, nextUID, 0, data); setStatus != efistatus.PSASuccess {
		return efistatus.FromPSA(setStatus)
	}

	s.index.ConfirmWrite()
	s.activeVariableIndexUID = nextUID
	return efistatus.Success
}

// purgeOrphanIndexEntries clears any index entry referring to
// non-volatile object data that can no longer be found in the persistent
// store (the aftermath of a failed non-volatile write), then re-syncs the
// index if anything was cleared, matching purge_orphan_index_entries.
func (s *Store) purgeOrphanIndexEntries(ctx context.Context) {
	entries := s.index.Entries()
	anyOrphan := false

	for i := range entries {
		e := &entries[i]
		if !e.InUse || !e.Info.IsVariableSet {
			continue
		}
		if e.Info.Metadata.Attributes&meta.AttrNonVolatile == 0 {
			continue
		}

		if _, status := s.persistent.Backend.GetInfo(ctx, s.ownerID, e.Info.Metadata.UID); status != efistatus.PSASuccess {
			s.index.ClearVariable(&e.Info)
			anyOrphan = true
		}
	}

	if anyOrphan {
		s.syncVariableIndex(ctx)
	}
}
