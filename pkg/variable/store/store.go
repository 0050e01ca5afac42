// Package store implements the UEFI variable store: the top-level
// operations (SetVariable, GetVariable, GetNextVariableName,
// QueryVariableInfo, ExitBootService, Set/GetVarCheckProperty) that a
// service provider exposes over RPC, backed by a variable index, two
// storage-backend delegates (persistent/volatile), the variable checker,
// and the authentication engine.
package store

import (
	"context"

	"github.com/arm-trusted-services/ts-core/pkg/variable/auth"
	"github.com/arm-trusted-services/ts-core/pkg/variable/checker"
	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/index"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
	"github.com/arm-trusted-services/ts-core/pkg/variable/storage"
)

// Reserved object uids for the two-slot variable-index commit, matching
// SMM_VARIABLE_INDEX_STORAGE_A_UID / _B_UID.
const (
	IndexSlotAUID uint64 = 0x8000000000000001
	IndexSlotBUID uint64 = 0x8000000000000002
)

// DefaultMaxVariableSize matches DEFAULT_MAX_VARIABLE_SIZE.
const DefaultMaxVariableSize = 4096

// Delegate describes one of the store's two backing stores (persistent,
// non-volatile; volatile, in-memory-for-the-partition-lifetime), matching
// struct delegate_variable_store.
type Delegate struct {
	IsNV            bool
	TotalCapacity   int
	MaxVariableSize int
	Backend         storage.Backend
}

// Store is the UEFI variable store, matching struct uefi_variable_store.
type Store struct {
	ownerID       uint32
	isBootService bool

	index      *index.Index
	persistent Delegate
	volatile   Delegate

	auth *auth.Engine

	activeVariableIndexUID uint64
}

// New constructs a Store with boot-service access still enabled and an
// empty variable index; call Init to load any persisted index before
// serving requests.
func New(ownerID uint32, maxVariables int, persistent, volatile Delegate, authEngine *auth.Engine) *Store {
	if persistent.MaxVariableSize == 0 {
		persistent.MaxVariableSize = DefaultMaxVariableSize
	}
	if volatile.MaxVariableSize == 0 {
		volatile.MaxVariableSize = DefaultMaxVariableSize
	}
	persistent.IsNV = true
	volatile.IsNV = false

	return &Store{
		ownerID:       ownerID,
		isBootService: true,
		index:         index.New(maxVariables),
		persistent:    persistent,
		volatile:      volatile,
		auth:          authEngine,
	}
}

// Init loads the persisted variable index from the active storage slot,
// matching uefi_variable_store_init's call into load_variable_index. An
// empty persistent store (first boot) is not an error: the index starts
// empty and activeVariableIndexUID stays zero until the first sync.
func (s *Store) Init(ctx context.Context) efistatus.Status {
	return s.loadVariableIndex(ctx)
}

func (s *Store) selectDelegate(attributes uint32) *Delegate {
	if attributes&meta.AttrNonVolatile != 0 {
		return &s.persistent
	}
	return &s.volatile
}

// ReadKeyVariable implements auth.KeyReader: it reads a key-store
// variable's raw payload bypassing the normal boot/runtime access-control
// gate, since the authentication engine must be able to verify against PK
// and KEK regardless of phase.
func (s *Store) ReadKeyVariable(ctx context.Context, guid meta.Guid, name meta.Name) ([]byte, efistatus.Status) {
	info := s.index.Find(guid, name)
	if info == nil {
		return nil, efistatus.ErrNotFound
	}
	delegate := s.selectDelegate(info.Metadata.Attributes)
	return loadVariableData(ctx, delegate.Backend, s.ownerID, info.Metadata.UID)
}

// SetVariable installs, updates, or deletes a variable, matching
// uefi_variable_store_set_variable.
func (s *Store) SetVariable(ctx context.Context, guid meta.Guid, name meta.Name, attributes uint32, data []byte) efistatus.Status {
	if !name.HasNULTerminator() {
		return efistatus.ErrInvalidParameter
	}
	if status := checkCapabilities(attributes); status != efistatus.Success {
		return status
	}

	info := s.index.Find(guid, name)
	isNewVariable := info == nil
	if isNewVariable {
		var status efistatus.Status
		info, status = s.index.AddEntry(guid, name)
		if status != efistatus.Success {
			return status
		}
	}

	wasSet := info.IsVariableSet
	oldTimestamp := info.Metadata.Timestamp
	oldFingerprint := info.Metadata.Fingerprint

	// The gate consults the variable's stored attributes, not the incoming
	// ones: a fresh entry's zero attributes make the gate a no-op on
	// create, and an existing boot-service-only variable stays untouchable
	// from runtime phase no matter what attributes the request claims.
	if status := checkAccessPermittedOnSet(s.isBootService, info.Metadata.Attributes, len(data), info); status != efistatus.Success {
		if isNewVariable {
			s.index.RemoveUnusedEntry(info)
		}
		return status
	}

	payload := data
	if attributes&meta.AttrTimeBasedAuthenticatedWriteAccess != 0 {
		result, status := s.auth.Authenticate(ctx, s, auth.Request{
			Guid:              guid,
			Name:              name,
			Attributes:        attributes,
			Data:              data,
			VariableExists:    wasSet,
			StoredTimestamp:   oldTimestamp,
			StoredFingerprint: oldFingerprint,
		})
		if status != efistatus.Success {
			if isNewVariable {
				s.index.RemoveUnusedEntry(info)
			}
			return status
		}
		payload = result.Payload
		info.Metadata.Timestamp = result.Timestamp
		info.Metadata.Fingerprint = result.Fingerprint
	}

	// A set is a delete either when the caller drops both access bits
	// (regardless of payload length) or when the payload is empty and
	// neither APPEND_WRITE nor ENHANCED_AUTH is set.
	noAccessBits := attributes&(meta.AttrBootserviceAccess|meta.AttrRuntimeAccess) == 0
	emptyPayloadDelete := len(payload) == 0 && attributes&(meta.AttrAppendWrite|meta.AttrEnhancedAuthenticatedAccess) == 0
	isDelete := noAccessBits || emptyPayloadDelete

	if wasSet && !isDelete {
		// An existing variable's attributes are immutable across an
		// update, ignoring APPEND_WRITE (a plain write may toggle that
		// bit freely). The delete branch is never subject to this check: per
		// the UEFI rule, setting a variable with no access attributes
		// deletes it outright, independent of whatever attributes it
		// previously held.
		if (info.Metadata.Attributes | meta.AttrAppendWrite) != (attributes | meta.AttrAppendWrite) {
			return efistatus.ErrInvalidParameter
		}
	}

	// A delete must address the store the variable actually lives in, not
	// the one the incoming attributes would select: a delete request may
	// legally carry no attributes at all.
	targetAttrs := attributes
	if isDelete && wasSet {
		targetAttrs = info.Metadata.Attributes
	}

	var status efistatus.Status
	if isDelete {
		// A delete removes the storage object first and only then clears
		// and syncs the index: a crash in between leaves an index entry
		// whose object is gone, which the orphan purge reconciles, never
		// a storage object no index entry accounts for.
		status = removeVariableData(ctx, s.selectDelegate(targetAttrs).Backend, s.ownerID, info.Metadata.UID)
		if status == efistatus.Success || !wasSet {
			s.index.ClearVariable(info)
			if targetAttrs&meta.AttrNonVolatile != 0 {
				if syncStatus := s.syncVariableIndex(ctx); syncStatus != efistatus.Success {
					status = syncStatus
				}
			}
		}
	} else {
		s.index.SetVariable(info, attributes)

		// A create or overwrite syncs the index before the variable's own
		// data. For a new variable a failure between the two leaves an
		// index entry with no data behind it; a failed data write purges
		// such orphaned entries below.
		if targetAttrs&meta.AttrNonVolatile != 0 {
			if syncStatus := s.syncVariableIndex(ctx); syncStatus != efistatus.Success {
				return syncStatus
			}
		}

		status = storeVariableData(ctx, s.selectDelegate(targetAttrs), s.ownerID, info.Metadata.UID, payload, attributes)
		if status != efistatus.Success && targetAttrs&meta.AttrNonVolatile != 0 {
			s.purgeOrphanIndexEntries(ctx)
		}
	}

	s.index.RemoveUnusedEntry(info)

	return status
}

// GetVariable reads a variable's current value, matching
// uefi_variable_store_get_variable.
func (s *Store) GetVariable(ctx context.Context, guid meta.Guid, name meta.Name) ([]byte, uint32, efistatus.Status) {
	if !name.HasNULTerminator() {
		return nil, 0, efistatus.ErrInvalidParameter
	}

	info := s.index.Find(guid, name)
	if info == nil {
		return nil, 0, efistatus.ErrNotFound
	}

	if status := checkAccessPermitted(s.isBootService, info.Metadata.Attributes); status != efistatus.Success {
		return nil, 0, status
	}

	delegate := s.selectDelegate(info.Metadata.Attributes)
	data, status := loadVariableData(ctx, delegate.Backend, s.ownerID, info.Metadata.UID)
	if status != efistatus.Success {
		return nil, 0, status
	}

	return data, info.Metadata.Attributes, efistatus.Success
}

// GetNextVariableName enumerates variable names in index order, skipping
// any the caller's current phase cannot access, matching
// uefi_variable_store_get_next_variable_name.
func (s *Store) GetNextVariableName(ctx context.Context, guid meta.Guid, name meta.Name) (meta.Guid, meta.Name, efistatus.Status) {
	_ = ctx
	if len(name) != 0 && !name.HasNULTerminator() {
		return meta.Guid{}, nil, efistatus.ErrInvalidParameter
	}

	currentGuid, currentName := guid, name
	for {
		info, status := s.index.FindNext(currentGuid, currentName)
		if status != efistatus.Success {
			return meta.Guid{}, nil, status
		}

		if accessStatus := checkAccessPermitted(s.isBootService, info.Metadata.Attributes); accessStatus == efistatus.Success {
			return info.Metadata.Guid, info.Metadata.Name.Clone(), efistatus.Success
		}

		currentGuid, currentName = info.Metadata.Guid, info.Metadata.Name
	}
}

// QueryVariableInfo reports capacity and usage for the delegate store
// selected by attributes, matching uefi_variable_store_query_variable_info.
func (s *Store) QueryVariableInfo(ctx context.Context, attributes uint32) (maxStorage, remainingStorage, maxVariableSize uint64, status efistatus.Status) {
	delegate := s.selectDelegate(attributes)

	used := s.spaceUsed(ctx, delegate.IsNV)
	remaining := delegate.TotalCapacity - used
	if remaining < 0 {
		remaining = 0
	}

	return uint64(delegate.TotalCapacity), uint64(remaining), uint64(delegate.MaxVariableSize), efistatus.Success
}

func (s *Store) spaceUsed(ctx context.Context, nv bool) int {
	used := 0
	entries := s.index.Entries()
	for i := range entries {
		e := &entries[i]
		if !e.InUse || !e.Info.IsVariableSet {
			continue
		}
		isNV := e.Info.Metadata.Attributes&meta.AttrNonVolatile != 0
		if isNV != nv {
			continue
		}

		delegate := s.persistent
		if !nv {
			delegate = s.volatile
		}
		objInfo, status := delegate.Backend.GetInfo(ctx, s.ownerID, e.Info.Metadata.UID)
		if status == efistatus.PSASuccess {
			used += objInfo.Size
		}
	}
	return used
}

// ExitBootService transitions the store out of the boot-service phase.
// This is a one-way transition for the lifetime of the endpoint, matching
// uefi_variable_store_exit_boot_service.
func (s *Store) ExitBootService() {
	s.isBootService = false
}

// SetVarCheckProperty installs or updates size/attribute constraints on a
// variable, creating its index entry if necessary, matching
// uefi_variable_store_set_var_check_property.
func (s *Store) SetVarCheckProperty(ctx context.Context, guid meta.Guid, name meta.Name, constraints meta.VariableConstraints) efistatus.Status {
	info := s.index.Find(guid, name)
	isNewVariable := info == nil
	if isNewVariable {
		var status efistatus.Status
		info, status = s.index.AddEntry(guid, name)
		if status != efistatus.Success {
			return status
		}
	}

	existing := info.CheckConstraints
	if status := checker.SetConstraints(&existing, info.IsConstraintsSet, constraints); status != efistatus.Success {
		if isNewVariable {
			s.index.RemoveUnusedEntry(info)
		}
		return status
	}

	s.index.SetConstraints(info, existing)

	if info.Metadata.Attributes&meta.AttrNonVolatile != 0 {
		if status := s.syncVariableIndex(ctx); status != efistatus.Success {
			return status
		}
	}

	s.index.RemoveUnusedEntry(info)
	return efistatus.Success
}

// GetVarCheckProperty reports a variable's installed constraints, matching
// uefi_variable_store_get_var_check_property.
func (s *Store) GetVarCheckProperty(guid meta.Guid, name meta.Name) (meta.VariableConstraints, efistatus.Status) {
	info := s.index.Find(guid, name)
	if info == nil || !info.IsConstraintsSet {
		return meta.VariableConstraints{}, efistatus.ErrNotFound
	}
	return info.CheckConstraints, efistatus.Success
}
