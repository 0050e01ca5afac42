// Package session builds the three-phase begin/invoke/end call protocol on
// top of a caller.Caller, managing shared-memory allocation according to a
// configurable policy. A session
// either allocates one shared-memory buffer up front and reuses it for
// every call (allocForSession), or allocates a fresh buffer per call and
// releases it once the call completes (allocForEachCall, the default when
// no session-wide buffer size is requested).
package session

import (
	"context"
	"sync"

	"github.com/arm-trusted-services/ts-core/pkg/rpc/caller"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/shmem"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
)

// MemoryPolicy controls when a session's shared-memory buffer is allocated
// and released.
type MemoryPolicy int

const (
	// AllocForEachCall allocates a fresh shared-memory buffer for every
	// Begin/End pair, sized to that call's requirements, and releases it
	// in End.
	AllocForEachCall MemoryPolicy = iota

	// AllocForSession allocates one shared-memory buffer when the session
	// is opened, reused by every call until the session is closed.
	AllocForSession
)

// Session wraps a caller.Caller with the begin/invoke/end transaction
// protocol and a shared-memory allocation policy. It is not safe for
// concurrent use by multiple goroutines at once: only one call transaction
// may be in progress at a time, matching the single RPC endpoint a session
// addresses.
type Session struct {
	mu sync.Mutex

	caller        caller.Caller
	sharedMemory  shmem.SharedMemory
	memoryPolicy  MemoryPolicy
	inTransaction bool
	requestLength int
}

func initializeSharedMemory(ctx context.Context, s *Session, sharedMemorySize int) status.RPCStatus {
	if sharedMemorySize > 0 {
		rpcStatus := s.caller.CreateSharedMemory(ctx, sharedMemorySize, &s.sharedMemory)
		if rpcStatus != status.Success {
			s.caller.CloseSession(ctx)
			return rpcStatus
		}
		s.memoryPolicy = AllocForSession
		return status.Success
	}

	s.sharedMemory = shmem.SharedMemory{}
	s.memoryPolicy = AllocForEachCall
	return status.Success
}

// Open opens a session against a specific endpoint implementing svcUUID.
// sharedMemorySize, if non-zero, pre-allocates a session-wide buffer
// (AllocForSession); zero selects per-call allocation (AllocForEachCall).
func Open(ctx context.Context, c caller.Caller, svcUUID uuid.UUID, endpointID uint16, sharedMemorySize int) (*Session, status.RPCStatus) {
	rpcStatus, _ := c.OpenSession(ctx, svcUUID, endpointID)
	if rpcStatus != status.Success {
		return nil, rpcStatus
	}

	s := &Session{caller: c}
	if rpcStatus := initializeSharedMemory(ctx, s, sharedMemorySize); rpcStatus != status.Success {
		return nil, rpcStatus
	}

	return s, status.Success
}

// FindAndOpen discovers an endpoint implementing svcUUID and opens a
// session with it, with the same shared-memory semantics as Open.
func FindAndOpen(ctx context.Context, c caller.Caller, svcUUID uuid.UUID, sharedMemorySize int) (*Session, status.RPCStatus) {
	rpcStatus, _ := c.FindAndOpenSession(ctx, svcUUID)
	if rpcStatus != status.Success {
		return nil, rpcStatus
	}

	s := &Session{caller: c}
	if rpcStatus := initializeSharedMemory(ctx, s, sharedMemorySize); rpcStatus != status.Success {
		return nil, rpcStatus
	}

	return s, status.Success
}

// Close closes the session. It fails with ErrorInvalidState if a call
// transaction is still in progress (Begin was called without a matching
// End).
func (s *Session) Close(ctx context.Context) status.RPCStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inTransaction {
		return status.ErrorInvalidState
	}

	if s.memoryPolicy == AllocForSession {
		if rpcStatus := s.caller.ReleaseSharedMemory(ctx, &s.sharedMemory); rpcStatus != status.Success {
			return rpcStatus
		}
	}

	return s.caller.CloseSession(ctx)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Begin starts a call transaction, returning the buffer the caller should
// build the request into. requestLength is the size of the request that
// will be written; responseMaxLength is the largest response expected.
// Begin fails (ok=false) if a transaction is already in progress, if the
// session's policy can't satisfy the requested size, or if per-call
// allocation fails.
func (s *Session) Begin(ctx context.Context, requestLength, responseMaxLength int) (requestBuffer []byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inTransaction {
		return nil, false
	}

	requiredLength := maxInt(requestLength, responseMaxLength)

	switch s.memoryPolicy {
	case AllocForEachCall:
		if s.sharedMemory.Buffer != nil || s.sharedMemory.Size != 0 {
			return nil, false
		}

		rpcStatus := s.caller.CreateSharedMemory(ctx, requiredLength, &s.sharedMemory)
		if rpcStatus != status.Success {
			return nil, false
		}

	case AllocForSession:
		if s.sharedMemory.Buffer == nil || s.sharedMemory.Size == 0 {
			return nil, false
		}
		if s.sharedMemory.Size < requiredLength {
			return nil, false
		}

	default:
		return nil, false
	}

	s.inTransaction = true
	s.requestLength = requestLength

	return s.sharedMemory.Buffer, true
}

// Invoke performs the remote call started by Begin, returning the response
// buffer (a view into the session's shared memory) and the service-defined
// status. The caller must not retain responseBuffer past the matching End.
func (s *Session) Invoke(ctx context.Context, opcode uint16) (responseBuffer []byte, serviceStatus status.ServiceStatus, rpcStatus status.RPCStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inTransaction {
		return nil, 0, status.ErrorInvalidState
	}

	if s.requestLength > 0 && (s.sharedMemory.Buffer == nil || s.sharedMemory.Size == 0) {
		return nil, 0, status.ErrorInvalidState
	}

	responseLength, serviceStatus, rpcStatus := s.caller.Call(ctx, opcode, &s.sharedMemory, s.requestLength)
	if rpcStatus != status.Success || responseLength > s.sharedMemory.Size {
		return nil, serviceStatus, rpcStatus
	}

	return s.sharedMemory.Buffer[:responseLength], serviceStatus, rpcStatus
}

// End completes the call transaction started by Begin, releasing the
// per-call shared-memory buffer under AllocForEachCall. The response
// buffer returned by Invoke must not be used after End returns.
func (s *Session) End(ctx context.Context) status.RPCStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inTransaction {
		return status.ErrorInvalidState
	}

	if s.requestLength > 0 && (s.sharedMemory.Buffer == nil || s.sharedMemory.Size == 0) {
		return status.ErrorInvalidState
	}

	switch s.memoryPolicy {
	case AllocForEachCall:
		rpcStatus := s.caller.ReleaseSharedMemory(ctx, &s.sharedMemory)
		if rpcStatus != status.Success {
			return rpcStatus
		}
		s.sharedMemory = shmem.SharedMemory{}

	case AllocForSession:
		// Nothing to do: the buffer outlives the transaction.

	default:
		return status.ErrorInvalidState
	}

	s.inTransaction = false
	s.requestLength = 0

	return status.Success
}
