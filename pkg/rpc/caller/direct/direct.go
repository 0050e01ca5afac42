// Package direct implements an in-process Caller that invokes a
// endpoint.ServiceInterface directly, with no wire encoding and no copy
// across an address-space boundary. A
// test or single-process deployment can exercise the same Caller contract
// a real FF-A transport would, without standing up shared memory.
package direct

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arm-trusted-services/ts-core/pkg/rpc/endpoint"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/shmem"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
)

// endpointIDSeq hands out distinct per-Caller source ids. Endpoint ids
// below 0x1000 are reserved for non-secure world callers.
var endpointIDSeq uint64 = 0x1000

// Caller is a Caller implementation wrapping a single service interface
// in the same process. There is no real session or memory management:
// OpenSession/FindAndOpenSession merely check the requested UUID matches
// the wrapped service, and CreateSharedMemory/ReleaseSharedMemory allocate
// and discard a plain Go slice.
type Caller struct {
	mu         sync.Mutex
	service    endpoint.ServiceInterface
	endpointID uint16
	sessionID  uint32
	open       bool
}

// New wraps svc as a Caller. Each Caller instance is assigned a unique
// endpoint (source) id used to populate rpc requests it issues.
func New(svc endpoint.ServiceInterface) *Caller {
	id := atomic.AddUint64(&endpointIDSeq, 1)
	return &Caller{
		service:    svc,
		endpointID: uint16(id),
	}
}

// OpenSession ignores endpointID, since a direct caller always talks to
// the single wrapped service, and behaves exactly like FindAndOpenSession.
func (c *Caller) OpenSession(ctx context.Context, svc uuid.UUID, endpointID uint16) (status.RPCStatus, error) {
	return c.FindAndOpenSession(ctx, svc)
}

// FindAndOpenSession succeeds only if svc matches the wrapped service's UUID.
func (c *Caller) FindAndOpenSession(ctx context.Context, svc uuid.UUID) (status.RPCStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !uuid.Equal(svc, c.service.UUID()) {
		return status.ErrorNotFound, nil
	}

	c.open = true
	c.sessionID++
	return status.Success, nil
}

// CloseSession is always a no-op success: a direct caller has no session
// state to tear down beyond the local open flag.
func (c *Caller) CloseSession(ctx context.Context) status.RPCStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.open = false
	return status.Success
}

// CreateSharedMemory allocates a plain buffer; since there is no real
// memory-management transaction in-process, the descriptor id is always 0.
func (c *Caller) CreateSharedMemory(ctx context.Context, size int, mem *shmem.SharedMemory) status.RPCStatus {
	*mem = shmem.New(0, size)
	return status.Success
}

// ReleaseSharedMemory drops the reference to the buffer. Go's garbage
// collector reclaims it; there is nothing to explicitly free.
func (c *Caller) ReleaseSharedMemory(ctx context.Context, mem *shmem.SharedMemory) status.RPCStatus {
	mem.Buffer = nil
	mem.Size = 0
	return status.Success
}

// Call builds an endpoint.Request around mem.Buffer and invokes the
// wrapped service's Receive method directly, with no wire-format
// round-trip, mirroring direct_caller_call.
func (c *Caller) Call(ctx context.Context, opcode uint16, mem *shmem.SharedMemory, requestLength int) (responseLength int, serviceStatus status.ServiceStatus, rpcStatus status.RPCStatus) {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()

	if !open {
		return 0, 0, status.ErrorInvalidState
	}

	req := &endpoint.Request{
		SourceID: c.endpointID,
		Opcode:   opcode,
		Request: endpoint.Buffer{
			Data:       mem.Buffer,
			DataLength: requestLength,
			Size:       mem.Size,
		},
		Response: endpoint.Buffer{
			Data:       mem.Buffer,
			DataLength: 0,
			Size:       mem.Size,
		},
	}

	rpcStatus = endpoint.Receive(ctx, c.service, req)
	if rpcStatus != status.Success {
		return 0, 0, rpcStatus
	}

	return req.Response.DataLength, req.ServiceStatus, status.Success
}
