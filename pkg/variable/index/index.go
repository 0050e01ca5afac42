// Package index implements the variable index: the fixed-capacity table of
// VariableEntry slots the UEFI variable store consults to locate, create,
// enumerate, and reclaim variables. An *meta.VariableInfo returned from
// this package always aliases a live slice element, so mutating it through
// the returned pointer is equivalent to mutating the entry in place.
package index

import (
	"encoding/binary"

	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

// Index is a fixed-size table of variable entries plus the monotonic
// counter incremented on every successful commit (ConfirmWrite), matching
// struct variable_index.
type Index struct {
	maxVariables int
	counter      uint32
	entries      []meta.VariableEntry
}

// New constructs an empty index with room for maxVariables entries,
// matching variable_index_init.
func New(maxVariables int) *Index {
	return &Index{
		maxVariables: maxVariables,
		entries:      make([]meta.VariableEntry, maxVariables),
	}
}

// MaxVariables returns the index's fixed capacity.
func (idx *Index) MaxVariables() int {
	return idx.maxVariables
}

// MaxDumpSize returns an upper bound on the number of bytes a Dump of this
// index could produce, used to size the sync buffer before the first
// commit, matching variable_index_max_dump_size.
func (idx *Index) MaxDumpSize() int {
	return 4 + idx.maxVariables*(metadataRecordSize+constraintsFlagSize+constraintsBodySize)
}

// entryMatches reports whether e is an in-use, set entry for (guid, name),
// matching is_matching_entry.
func entryMatches(e *meta.VariableEntry, guid meta.Guid, name meta.Name) bool {
	if !e.InUse || !e.Info.IsVariableSet {
		return false
	}
	return e.Info.Metadata.Guid == guid && e.Info.Metadata.Name.Equal(name)
}

// Find locates the in-use entry for (guid, name), matching find_variable,
// including an entry that carries only constraints (IsVariableSet false).
// The returned *meta.VariableInfo aliases the entry's storage; mutating it
// through SetVariable/ClearVariable/etc. takes effect immediately.
func (idx *Index) Find(guid meta.Guid, name meta.Name) *meta.VariableInfo {
	for i := range idx.entries {
		e := &idx.entries[i]
		if e.InUse && e.Info.Metadata.Guid == guid && e.Info.Metadata.Name.Equal(name) {
			return &e.Info
		}
	}
	return nil
}

// findFree locates the first unused slot, matching find_free.
func (idx *Index) findFree() *meta.VariableEntry {
	for i := range idx.entries {
		if !idx.entries[i].InUse {
			return &idx.entries[i]
		}
	}
	return nil
}

// generateUID returns the smallest uid in [1, maxVariables] not already
// held by an in-use entry, matching generate_uid.
func (idx *Index) generateUID() uint64 {
	for candidate := uint64(1); candidate <= uint64(idx.maxVariables); candidate++ {
		taken := false
		for i := range idx.entries {
			e := &idx.entries[i]
			if e.InUse && e.Info.Metadata.UID == candidate {
				taken = true
				break
			}
		}
		if !taken {
			return candidate
		}
	}
	return 0
}

// AddEntry reserves a free slot for (guid, name) with zeroed metadata,
// matching add_entry. It fails with ErrInvalidParameter if name exceeds
// MaxNameCodeUnits, or ErrOutOfResources if the index is full.
func (idx *Index) AddEntry(guid meta.Guid, name meta.Name) (*meta.VariableInfo, efistatus.Status) {
	if name.ByteSize() > meta.MaxNameCodeUnits*2 {
		return nil, efistatus.ErrInvalidParameter
	}

	e := idx.findFree()
	if e == nil {
		return nil, efistatus.ErrOutOfResources
	}

	*e = meta.VariableEntry{
		InUse: true,
		Info: meta.VariableInfo{
			Metadata: meta.VariableMetadata{
				Guid: guid,
				Name: name.Clone(),
				UID:  idx.generateUID(),
			},
		},
	}

	return &e.Info, efistatus.Success
}

// containingEntry finds the VariableEntry owning a VariableInfo returned
// earlier by Find/FindNext/AddEntry, by pointer identity.
func (idx *Index) containingEntry(info *meta.VariableInfo) *meta.VariableEntry {
	for i := range idx.entries {
		if &idx.entries[i].Info == info {
			return &idx.entries[i]
		}
	}
	return nil
}

// markDirty flags the owning entry dirty, but only for non-volatile
// variables: volatile entries never need to survive a sync, matching
// mark_dirty.
func (idx *Index) markDirty(info *meta.VariableInfo) {
	e := idx.containingEntry(info)
	if e == nil {
		return
	}
	if info.Metadata.Attributes&meta.AttrNonVolatile != 0 {
		e.Dirty = true
	}
}

// RemoveUnusedEntry reclaims info's slot if it carries neither a set
// variable nor set constraints, matching remove_unused_entry.
func (idx *Index) RemoveUnusedEntry(info *meta.VariableInfo) {
	e := idx.containingEntry(info)
	if e == nil {
		return
	}
	if !e.Info.IsVariableSet && !e.Info.IsConstraintsSet {
		*e = meta.VariableEntry{}
	}
}

// SetVariable marks info's variable as set with the given attributes and
// marks the owning entry dirty, matching variable_index_set_variable. The
// caller is responsible for having already populated Timestamp/Fingerprint
// on info.Metadata before calling this.
func (idx *Index) SetVariable(info *meta.VariableInfo, attributes uint32) {
	info.Metadata.Attributes = attributes
	info.IsVariableSet = true
	idx.markDirty(info)
}

// ClearVariable marks info's variable as unset, matching
// variable_index_clear_variable.
func (idx *Index) ClearVariable(info *meta.VariableInfo) {
	info.IsVariableSet = false
	idx.markDirty(info)
}

// SetConstraints installs constraints on info and marks the owning entry
// dirty, matching variable_index_set_constraints.
func (idx *Index) SetConstraints(info *meta.VariableInfo, constraints meta.VariableConstraints) {
	info.CheckConstraints = constraints
	info.IsConstraintsSet = true
	idx.markDirty(info)
}

// ClearConstraints removes any installed constraints from info.
func (idx *Index) ClearConstraints(info *meta.VariableInfo) {
	info.CheckConstraints = meta.VariableConstraints{}
	info.IsConstraintsSet = false
	idx.markDirty(info)
}

// FindNext implements the UEFI GetNextVariableName enumeration contract,
// matching find_next: an empty (zero-length) name starts enumeration at
// the first in-use, set entry; otherwise the entry matching (guid, name)
// is located and the next in-use, set entry after it (in index order) is
// returned. ErrNotFound is returned once enumeration is exhausted or the
// supplied (guid, name) does not identify a current entry.
func (idx *Index) FindNext(guid meta.Guid, name meta.Name) (*meta.VariableInfo, efistatus.Status) {
	start := 0

	if len(name) != 0 {
		current := -1
		for i := range idx.entries {
			if entryMatches(&idx.entries[i], guid, name) {
				current = i
				break
			}
		}
		if current < 0 {
			return nil, efistatus.ErrNotFound
		}
		start = current + 1
	}

	for i := start; i < len(idx.entries); i++ {
		e := &idx.entries[i]
		if e.InUse && e.Info.IsVariableSet {
			return &e.Info, efistatus.Success
		}
	}

	return nil, efistatus.ErrNotFound
}

// Entries exposes the index's underlying slots for iteration (e.g. by the
// store's space-accounting and orphan-purge passes). Callers must not
// retain the returned slice across a call that reallocates the index,
// which this package never does.
func (idx *Index) Entries() []meta.VariableEntry {
	return idx.entries
}

// EntryAt returns a pointer to the VariableInfo at position i, used by
// callers that need to walk entries by slot rather than by Find/FindNext.
func (idx *Index) EntryAt(i int) *meta.VariableEntry {
	return &idx.entries[i]
}

// Dump serializes every in-use, set, non-volatile entry into data (one
// fixed-size metadata record, a constraints-set flag, and an optional
// constraints record each), matching variable_index_dump. The leading
// counter field written into the buffer is idx.counter+1, but idx.counter
// itself is left untouched: the bumped counter is committed only by
// ConfirmWrite, once the caller has actually persisted the dumped bytes. anyDirty reports
// whether any entry had its dirty bit set; dirty bits are only cleared by
// ConfirmWrite, not by Dump, so a failed persist leaves them set for the
// next retry's Dump to report again.
func (idx *Index) Dump(bufferSize int) (data []byte, anyDirty bool, status efistatus.Status) {
	buf := make([]byte, bufferSize)
	pos := 4 // counter written last, once its pending value is known

	for i := range idx.entries {
		e := &idx.entries[i]
		if !e.InUse || !e.Info.IsVariableSet {
			continue
		}
		if e.Info.Metadata.Attributes&meta.AttrNonVolatile == 0 {
			continue
		}

		recordSize := metadataRecordSize + constraintsFlagSize
		if e.Info.IsConstraintsSet {
			recordSize += constraintsBodySize
		}
		if pos+recordSize > len(buf) {
			return nil, false, efistatus.ErrBufferTooSmall
		}

		encodeMetadata(buf[pos:pos+metadataRecordSize], e.Info.Metadata)
		pos += metadataRecordSize

		if e.Info.IsConstraintsSet {
			buf[pos] = 1
			pos++
			encodeConstraints(buf[pos:pos+constraintsBodySize], e.Info.CheckConstraints)
			pos += constraintsBodySize
		} else {
			buf[pos] = 0
			pos++
		}

		if e.Dirty {
			anyDirty = true
		}
	}

	binary.LittleEndian.PutUint32(buf[0:4], idx.counter+1)

	return buf[:pos], anyDirty, efistatus.Success
}

// ConfirmWrite advances the commit counter and clears every dirty bit,
// matching variable_index_confirm_write. It must be called only after the
// bytes Dump produced have actually been persisted: a Dump whose backing
// write fails leaves idx.counter and every dirty bit exactly as Dump found
// them, so the next retry's Dump recomputes and reports the same pending
// counter and dirty set instead of silently advancing past a write that
// never landed.
func (idx *Index) ConfirmWrite() {
	idx.counter++
	for i := range idx.entries {
		idx.entries[i].Dirty = false
	}
}

// Restore reconstructs the index from a previously Dump'd byte sequence,
// matching variable_index_restore. Entries are loaded into successive
// index positions starting at 0; the caller is responsible for ensuring
// the stored entry count does not exceed MaxVariables (it cannot, since
// Dump never produces more than MaxVariables entries from an index of
// this same capacity).
func (idx *Index) Restore(data []byte) int {
	if len(data) < 4 {
		return 0
	}

	idx.counter = binary.LittleEndian.Uint32(data[0:4])
	pos := 4
	slot := 0

	for pos+metadataRecordSize+constraintsFlagSize <= len(data) && slot < len(idx.entries) {
		metadata := decodeMetadata(data[pos : pos+metadataRecordSize])
		pos += metadataRecordSize

		isConstraintsSet := data[pos] != 0
		pos++

		var constraints meta.VariableConstraints
		if isConstraintsSet {
			if pos+constraintsBodySize > len(data) {
				break
			}
			constraints = decodeConstraints(data[pos : pos+constraintsBodySize])
			pos += constraintsBodySize
		}

		idx.entries[slot] = meta.VariableEntry{
			InUse: true,
			Info: meta.VariableInfo{
				Metadata:         metadata,
				CheckConstraints: constraints,
				IsVariableSet:    true,
				IsConstraintsSet: isConstraintsSet,
			},
		}
		slot++
	}

	return slot
}
