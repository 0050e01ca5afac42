// Package caller defines the abstract caller operations every RPC
// transport implements: session open/close, shared-memory allocation, and
// the blocking call primitive. Concrete transports (direct in-process,
// HTTP REST, a null/dummy caller used in tests) satisfy this interface;
// pkg/rpc/session builds the stateful begin/invoke/end protocol on top of it.
package caller

import (
	"context"

	"github.com/arm-trusted-services/ts-core/pkg/rpc/shmem"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
)

// Caller is the vtable abstraction over a single RPC transport. It is the
// direct Go analog of the C rpc_caller_interface: a context implementation
// is expected to hold whatever transport-specific state it needs (a socket,
// an in-process endpoint reference, an HTTP client) behind this interface.
type Caller interface {
	// OpenSession opens a session with a specific endpoint implementing
	// the service identified by svc.
	OpenSession(ctx context.Context, svc uuid.UUID, endpointID uint16) (status.RPCStatus, error)

	// FindAndOpenSession discovers an endpoint implementing svc and opens
	// a session with it.
	FindAndOpenSession(ctx context.Context, svc uuid.UUID) (status.RPCStatus, error)

	// CloseSession closes the currently open session.
	CloseSession(ctx context.Context) status.RPCStatus

	// CreateSharedMemory allocates a shared-memory buffer of the given
	// size, populating mem with its descriptor.
	CreateSharedMemory(ctx context.Context, size int, mem *shmem.SharedMemory) status.RPCStatus

	// ReleaseSharedMemory releases a previously created shared-memory buffer.
	ReleaseSharedMemory(ctx context.Context, mem *shmem.SharedMemory) status.RPCStatus

	// Call invokes opcode against the currently open session, sending
	// requestLength bytes from mem.Buffer and returning the response
	// length and service status. responseLength is set to zero if the
	// call fails at the RPC layer or the response overflows mem.
	Call(ctx context.Context, opcode uint16, mem *shmem.SharedMemory, requestLength int) (responseLength int, serviceStatus status.ServiceStatus, rpcStatus status.RPCStatus)
}
