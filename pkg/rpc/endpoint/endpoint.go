// Package endpoint defines the service-interface contract every concrete
// service (variable store, attestation, crypto, ...) implements, and the
// Endpoint type that multiplexes one or more such interfaces by interface
// id behind a reserved management interface, mirroring the role an FF-A
// secure partition plays as the receiving end of a direct message.
package endpoint

import (
	"context"
	"sync"

	"github.com/arm-trusted-services/ts-core/internal/telemetry"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/wire"
)

// Buffer is a length-checked view over a byte slice: Data is the backing
// storage, DataLength is how much of it is populated, and Size is its
// total capacity. The request buffer is read-only during Receive; the
// response buffer is write-only and DataLength is advanced by the handler.
type Buffer struct {
	Data       []byte
	DataLength int
	Size       int
}

// Request is the server-side view of one RPC call, built by the endpoint
// from a decoded wire message and handed down through the provider chain.
type Request struct {
	SourceID      uint16
	InterfaceID   uint8
	Opcode        uint16
	ClientID      uint32
	ServiceStatus status.ServiceStatus
	Request       Buffer
	Response      Buffer
}

// ServiceInterface is the single entry point a concrete service exposes: a
// UUID identifying it and a Receive method that handles one request. An
// endpoint multiplexes multiple ServiceInterfaces by UUID; a Provider (see
// pkg/rpc/provider) further dispatches within one interface by opcode.
type ServiceInterface interface {
	UUID() uuid.UUID
	Receive(ctx context.Context, req *Request) status.RPCStatus
}

// Receive is a nil-safe convenience wrapper calling svc.Receive.
func Receive(ctx context.Context, svc ServiceInterface, req *Request) status.RPCStatus {
	if svc == nil {
		return status.ErrorInvalidValue
	}
	return svc.Receive(ctx, req)
}

// Endpoint is a UUID-addressable server: it owns the reserved management
// interface (version negotiation, memory retrieve/relinquish, interface-id
// query) and routes data-path requests to the ServiceInterface registered
// for the dispatched interface id. Exactly one request is processed to
// completion at a time, matching the single-threaded cooperative scheduling
// model of a secure partition.
type Endpoint struct {
	mu sync.Mutex

	services          map[uint8]ServiceInterface
	uuidToInterfaceID map[uuid.UUID]uint8
	nextInterfaceID   uint8

	sharedMemories   map[uint64][]byte
	nextMemoryHandle uint64
}

// NewEndpoint constructs an empty Endpoint with no registered services.
func NewEndpoint() *Endpoint {
	return &Endpoint{
		services:          make(map[uint8]ServiceInterface),
		uuidToInterfaceID: make(map[uuid.UUID]uint8),
		sharedMemories:    make(map[uint64][]byte),
		nextMemoryHandle:  1,
	}
}

// Register adds svc to the endpoint and assigns it the next free interface
// id (0xFF, the management sentinel, is never assigned). It panics if more
// than 255 services are registered, which cannot happen in any real
// deployment and would indicate a programming error in endpoint wiring.
func (e *Endpoint) Register(svc ServiceInterface) uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextInterfaceID
	if id == uuid.ManagementInterfaceID {
		panic("endpoint: too many registered service interfaces")
	}
	e.nextInterfaceID++

	e.services[id] = svc
	e.uuidToInterfaceID[svc.UUID()] = id
	return id
}

// InterfaceIDFor returns the interface id assigned to svcUUID, if registered.
func (e *Endpoint) InterfaceIDFor(svcUUID uuid.UUID) (uint8, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.uuidToInterfaceID[svcUUID]
	return id, ok
}

// Dispatch decodes one FF-A-style direct message, routes it to the
// management interface or to a registered ServiceInterface, and returns the
// reply registers plus however much of payload constitutes the response.
// payload stands in for the shared-memory buffer backing the call: on
// entry its first wire.RequestLength(req) bytes are the request body; on
// return its first len(response) bytes are the response body.
func (e *Endpoint) Dispatch(ctx context.Context, sourceID uint16, req *wire.Regs, payload []byte) (reply wire.Regs, response []byte) {
	wire.CopyControlReg(&reply, req)

	if wire.IsManagementInterface(req) {
		e.dispatchManagement(req, &reply, payload)
		return reply, nil
	}

	interfaceID := wire.InterfaceID(req)

	e.mu.Lock()
	svc, ok := e.services[interfaceID]
	e.mu.Unlock()

	if !ok {
		notFound := status.ErrorNotFound
		wire.SetRPCStatus(&reply, uint32(notFound))
		return reply, nil
	}

	reqLen := int(wire.RequestLength(req))
	if reqLen > len(payload) {
		invalidRequest := status.ErrorInvalidRequest
		wire.SetRPCStatus(&reply, uint32(invalidRequest))
		return reply, nil
	}

	request := &Request{
		SourceID:    sourceID,
		InterfaceID: interfaceID,
		Opcode:      wire.Opcode(req),
		ClientID:    wire.ClientID(req),
		Request: Buffer{
			Data:       payload,
			DataLength: reqLen,
			Size:       len(payload),
		},
		Response: Buffer{
			Data:       payload,
			DataLength: 0,
			Size:       len(payload),
		},
	}

	spanCtx, span := telemetry.StartRPCSpan(ctx, interfaceID, request.Opcode, telemetry.ClientID(request.ClientID))
	rpcStatus := Receive(spanCtx, svc, request)
	wire.SetRPCStatus(&reply, uint32(rpcStatus))
	telemetry.RecordDispatchStatus(spanCtx, int32(rpcStatus), int64(request.ServiceStatus))
	span.End()

	if rpcStatus != status.Success {
		return reply, nil
	}

	wire.SetServiceStatus(&reply, uint32(request.ServiceStatus))
	wire.SetResponseLength(&reply, uint32(request.Response.DataLength))
	return reply, payload[:request.Response.DataLength]
}

func (e *Endpoint) dispatchManagement(req *wire.Regs, reply *wire.Regs, payload []byte) {
	switch wire.Opcode(req) {
	case wire.ManagementOpcodeVersion:
		wire.SetVersion(reply, wire.ProtocolVersion)

	case wire.ManagementOpcodeInterfaceIDQuery:
		svcUUID := wire.UUID(req)
		id, ok := e.InterfaceIDFor(svcUUID)
		if !ok {
			notFound := status.ErrorNotFound
			wire.SetRPCStatus(reply, uint32(notFound))
			return
		}
		wire.SetQueriedInterfaceID(reply, id)
		wire.SetRPCStatus(reply, uint32(status.Success))

	case wire.ManagementOpcodeMemoryRetrieve:
		handle := wire.MemoryHandle(req)
		e.mu.Lock()
		e.sharedMemories[handle] = payload
		e.mu.Unlock()
		wire.SetRPCStatus(reply, uint32(status.Success))

	case wire.ManagementOpcodeMemoryRelinquish:
		handle := wire.MemoryHandle(req)
		e.mu.Lock()
		delete(e.sharedMemories, handle)
		e.mu.Unlock()
		wire.SetRPCStatus(reply, uint32(status.Success))

	default:
		notFound := status.ErrorNotFound
		wire.SetRPCStatus(reply, uint32(notFound))
	}
}
