package wire

import (
	"testing"

	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
	"github.com/stretchr/testify/assert"
)

func TestControlRegRoundTrip(t *testing.T) {
	t.Parallel()

	var regs Regs
	SetFlags(&regs, FastCallFlag)
	SetInterfaceID(&regs, 7)
	SetOpcode(&regs, 0x1234)

	assert.Equal(t, FastCallFlag, Flags(&regs))
	assert.Equal(t, uint8(7), InterfaceID(&regs))
	assert.Equal(t, uint16(0x1234), Opcode(&regs))
	assert.False(t, IsManagementInterface(&regs))
}

func TestControlRegFieldsDoNotClobberEachOther(t *testing.T) {
	t.Parallel()

	var regs Regs
	SetOpcode(&regs, 0xffff)
	SetInterfaceID(&regs, 0xaa)
	SetFlags(&regs, 0x3f)

	assert.Equal(t, uint16(0xffff), Opcode(&regs))
	assert.Equal(t, uint8(0xaa), InterfaceID(&regs))
	assert.Equal(t, uint8(0x3f), Flags(&regs))
}

func TestManagementInterfaceSentinel(t *testing.T) {
	t.Parallel()

	var regs Regs
	SetManagementInterface(&regs)
	assert.True(t, IsManagementInterface(&regs))
	assert.Equal(t, uuid.ManagementInterfaceID, InterfaceID(&regs))
}

func TestCopyControlReg(t *testing.T) {
	t.Parallel()

	var req Regs
	SetInterfaceID(&req, 3)
	SetOpcode(&req, 9)
	req[1] = 0xdeadbeef // non-control reg must not be copied

	var reply Regs
	CopyControlReg(&reply, &req)

	assert.Equal(t, uint8(3), InterfaceID(&reply))
	assert.Equal(t, uint16(9), Opcode(&reply))
	assert.Equal(t, uint32(0), reply[1])
}

func TestVersionField(t *testing.T) {
	t.Parallel()

	var regs Regs
	SetVersion(&regs, ProtocolVersion)
	assert.Equal(t, ProtocolVersion, Version(&regs))
}

func TestMemoryHandleRoundTrip(t *testing.T) {
	t.Parallel()

	var regs Regs
	const handle uint64 = 0x0102030405060708
	SetMemoryHandle(&regs, handle)
	assert.Equal(t, handle, MemoryHandle(&regs))
	assert.Equal(t, uint32(0x05060708), regs[1])
	assert.Equal(t, uint32(0x01020304), regs[2])
}

func TestMemoryTagRoundTrip(t *testing.T) {
	t.Parallel()

	var regs Regs
	const tag uint64 = 0xaabbccdd11223344
	SetMemoryTag(&regs, tag)
	assert.Equal(t, tag, MemoryTag(&regs))
}

func TestStatusFields(t *testing.T) {
	t.Parallel()

	var regs Regs
	SetRPCStatus(&regs, 0xfffffffe) // -2 as uint32
	SetServiceStatus(&regs, 5)

	assert.Equal(t, uint32(0xfffffffe), RPCStatus(&regs))
	assert.Equal(t, uint32(5), ServiceStatus(&regs))
}

func TestUUIDRoundTrip(t *testing.T) {
	t.Parallel()

	var regs Regs
	SetUUID(&regs, uuid.Attestation)
	assert.Equal(t, uuid.Attestation, UUID(&regs))
}

func TestQueriedInterfaceIDField(t *testing.T) {
	t.Parallel()

	var regs Regs
	SetQueriedInterfaceID(&regs, 0x42)
	assert.Equal(t, uint8(0x42), QueriedInterfaceID(&regs))
}

func TestDataPathFields(t *testing.T) {
	t.Parallel()

	var req Regs
	SetRequestLength(&req, 4096)
	SetClientID(&req, 1000)
	assert.Equal(t, uint32(4096), RequestLength(&req))
	assert.Equal(t, uint32(1000), ClientID(&req))

	var reply Regs
	SetResponseLength(&reply, 128)
	assert.Equal(t, uint32(128), ResponseLength(&reply))
}
