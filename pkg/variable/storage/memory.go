package storage

import (
	"context"
	"sync"

	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
)

type memoryObject struct {
	data  []byte
	flags Flags
}

// Memory is an in-memory Backend guarded by a mutex, the default backend
// for unit tests and for the volatile (non-NV) store.
type Memory struct {
	mu      sync.Mutex
	objects map[objectKey]*memoryObject
}

// NewMemory constructs an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{objects: make(map[objectKey]*memoryObject)}
}

func (m *Memory) Set(_ context.Context, ownerID uint32, uid uint64, data []byte, flags Flags) efistatus.PSAStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := objectKey{ownerID, uid}
	if existing, ok := m.objects[key]; ok && existing.flags&FlagWriteOnce != 0 {
		return efistatus.PSAErrorNotPermitted
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[key] = &memoryObject{data: buf, flags: flags}
	return efistatus.PSASuccess
}

func (m *Memory) Get(_ context.Context, ownerID uint32, uid uint64, offset int, dst []byte) (int, efistatus.PSAStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[objectKey{ownerID, uid}]
	if !ok {
		return 0, efistatus.PSAErrorDoesNotExist
	}
	if offset > len(obj.data) {
		return 0, efistatus.PSAErrorInvalidArgument
	}

	n := copy(dst, obj.data[offset:])
	return n, efistatus.PSASuccess
}

func (m *Memory) GetInfo(_ context.Context, ownerID uint32, uid uint64) (ObjectInfo, efistatus.PSAStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[objectKey{ownerID, uid}]
	if !ok {
		return ObjectInfo{}, efistatus.PSAErrorDoesNotExist
	}
	return ObjectInfo{UID: uid, OwnerID: ownerID, Size: len(obj.data), Flags: obj.flags}, efistatus.PSASuccess
}

func (m *Memory) Remove(_ context.Context, ownerID uint32, uid uint64) efistatus.PSAStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := objectKey{ownerID, uid}
	if _, ok := m.objects[key]; !ok {
		return efistatus.PSAErrorDoesNotExist
	}
	delete(m.objects, key)
	return efistatus.PSASuccess
}

func (m *Memory) Create(_ context.Context, ownerID uint32, uid uint64, size int, flags Flags) efistatus.PSAStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[objectKey{ownerID, uid}] = &memoryObject{data: make([]byte, size), flags: flags}
	return efistatus.PSASuccess
}

func (m *Memory) SetExtended(_ context.Context, ownerID uint32, uid uint64, offset int, data []byte) efistatus.PSAStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[objectKey{ownerID, uid}]
	if !ok {
		return efistatus.PSAErrorDoesNotExist
	}
	if offset+len(data) > len(obj.data) {
		grown := make([]byte, offset+len(data))
		copy(grown, obj.data)
		obj.data = grown
	}
	copy(obj.data[offset:], data)
	return efistatus.PSASuccess
}

func (m *Memory) GetSupport(_ context.Context, ownerID uint32, uid uint64) (Flags, efistatus.PSAStatus) {
	return FlagWriteOnce | FlagNoConfidentiality | FlagNoReplayProtection, efistatus.PSASuccess
}
