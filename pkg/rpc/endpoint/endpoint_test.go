package endpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/wire"
)

type echoService struct {
	svcUUID uuid.UUID
}

func (s *echoService) UUID() uuid.UUID { return s.svcUUID }

func (s *echoService) Receive(ctx context.Context, req *Request) status.RPCStatus {
	n := copy(req.Response.Data, req.Request.Data[:req.Request.DataLength])
	req.Response.DataLength = n
	req.ServiceStatus = 7
	return status.Success
}

func TestRegisterAssignsSequentialInterfaceIDs(t *testing.T) {
	t.Parallel()

	e := NewEndpoint()
	id1 := e.Register(&echoService{svcUUID: uuid.Attestation})
	id2 := e.Register(&echoService{svcUUID: uuid.BlockStorage})

	assert.Equal(t, uint8(0), id1)
	assert.Equal(t, uint8(1), id2)

	got, ok := e.InterfaceIDFor(uuid.BlockStorage)
	require.True(t, ok)
	assert.Equal(t, id2, got)
}

func TestDispatchManagementVersion(t *testing.T) {
	t.Parallel()

	e := NewEndpoint()
	var req wire.Regs
	wire.SetManagementInterface(&req)
	wire.SetOpcode(&req, wire.ManagementOpcodeVersion)

	reply, resp := e.Dispatch(context.Background(), 0x1000, &req, nil)
	assert.Equal(t, wire.ManagementOpcodeVersion, wire.Opcode(&reply))
	assert.Equal(t, wire.ProtocolVersion, wire.Version(&reply))
	assert.Nil(t, resp)
}

func TestDispatchManagementInterfaceIDQuery(t *testing.T) {
	t.Parallel()

	e := NewEndpoint()
	id := e.Register(&echoService{svcUUID: uuid.Attestation})

	var req wire.Regs
	wire.SetManagementInterface(&req)
	wire.SetOpcode(&req, wire.ManagementOpcodeInterfaceIDQuery)
	wire.SetUUID(&req, uuid.Attestation)

	reply, _ := e.Dispatch(context.Background(), 0x1000, &req, nil)
	assert.Equal(t, uint32(status.Success), wire.RPCStatus(&reply))
	assert.Equal(t, id, wire.QueriedInterfaceID(&reply))
}

func TestDispatchManagementInterfaceIDQueryNotFound(t *testing.T) {
	t.Parallel()

	e := NewEndpoint()
	var req wire.Regs
	wire.SetManagementInterface(&req)
	wire.SetOpcode(&req, wire.ManagementOpcodeInterfaceIDQuery)
	wire.SetUUID(&req, uuid.TestRunner)

	reply, _ := e.Dispatch(context.Background(), 0x1000, &req, nil)
	errorNotFound := status.ErrorNotFound
	assert.Equal(t, uint32(errorNotFound), wire.RPCStatus(&reply))
}

func TestDispatchManagementMemoryRetrieveAndRelinquish(t *testing.T) {
	t.Parallel()

	e := NewEndpoint()
	payload := make([]byte, 16)

	var retrieve wire.Regs
	wire.SetManagementInterface(&retrieve)
	wire.SetOpcode(&retrieve, wire.ManagementOpcodeMemoryRetrieve)
	wire.SetMemoryHandle(&retrieve, 0xAB)

	reply, _ := e.Dispatch(context.Background(), 0x1000, &retrieve, payload)
	assert.Equal(t, uint32(status.Success), wire.RPCStatus(&reply))
	assert.Contains(t, e.sharedMemories, uint64(0xAB))

	var relinquish wire.Regs
	wire.SetManagementInterface(&relinquish)
	wire.SetOpcode(&relinquish, wire.ManagementOpcodeMemoryRelinquish)
	wire.SetMemoryHandle(&relinquish, 0xAB)

	reply2, _ := e.Dispatch(context.Background(), 0x1000, &relinquish, payload)
	assert.Equal(t, uint32(status.Success), wire.RPCStatus(&reply2))
	assert.NotContains(t, e.sharedMemories, uint64(0xAB))
}

func TestDispatchDataPathRoutesToService(t *testing.T) {
	t.Parallel()

	e := NewEndpoint()
	id := e.Register(&echoService{svcUUID: uuid.Attestation})

	payload := make([]byte, 32)
	copy(payload, []byte("hello"))

	var req wire.Regs
	wire.SetInterfaceID(&req, id)
	wire.SetOpcode(&req, 42)
	wire.SetClientID(&req, 99)
	wire.SetRequestLength(&req, 5)

	reply, resp := e.Dispatch(context.Background(), 0x1000, &req, payload)
	require.NotNil(t, resp)
	assert.Equal(t, uint32(status.Success), wire.RPCStatus(&reply))
	assert.Equal(t, uint32(7), wire.ServiceStatus(&reply))
	assert.Equal(t, uint32(5), wire.ResponseLength(&reply))
	assert.Equal(t, "hello", string(resp))
}

func TestDispatchDataPathUnknownInterface(t *testing.T) {
	t.Parallel()

	e := NewEndpoint()
	var req wire.Regs
	wire.SetInterfaceID(&req, 3)

	reply, resp := e.Dispatch(context.Background(), 0x1000, &req, make([]byte, 8))
	errorNotFound := status.ErrorNotFound
	assert.Equal(t, uint32(errorNotFound), wire.RPCStatus(&reply))
	assert.Nil(t, resp)
}

func TestDispatchDataPathRequestLengthOverflow(t *testing.T) {
	t.Parallel()

	e := NewEndpoint()
	id := e.Register(&echoService{svcUUID: uuid.Attestation})

	var req wire.Regs
	wire.SetInterfaceID(&req, id)
	wire.SetRequestLength(&req, 100)

	reply, resp := e.Dispatch(context.Background(), 0x1000, &req, make([]byte, 8))
	errorInvalidRequest := status.ErrorInvalidRequest
	assert.Equal(t, uint32(errorInvalidRequest), wire.RPCStatus(&reply))
	assert.Nil(t, resp)
}

func TestReceiveNilService(t *testing.T) {
	t.Parallel()

	got := Receive(context.Background(), nil, &Request{})
	assert.Equal(t, status.ErrorInvalidValue, got)
}
