// Package shmem defines the shared-memory descriptor exchanged between an
// RPC caller and the partition manager (or, for in-process and HTTP
// transports, a plain byte buffer standing in for mapped memory).
package shmem

// SharedMemory is the handle + backing buffer + capacity triple exchanged
// with a partition manager. ID is opaque to the caller: it may be a
// memory-management handle issued by the partition manager, the zero
// sentinel (no memory), or a synthetic value for in-process callers.
type SharedMemory struct {
	ID     uint64
	Buffer []byte
	Size   int
}

// IsEmpty reports whether the descriptor carries no backing memory.
func (m SharedMemory) IsEmpty() bool {
	return m.Size == 0 && m.Buffer == nil
}

// New allocates a SharedMemory descriptor with a zero-filled buffer of the
// given size and the supplied id.
func New(id uint64, size int) SharedMemory {
	return SharedMemory{
		ID:     id,
		Buffer: make([]byte, size),
		Size:   size,
	}
}
