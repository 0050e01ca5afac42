// Package wire packs and unpacks the five-register FF-A direct-message ABI
// used to carry RPC requests and replies between a caller and an endpoint.
// It exposes only field accessors and a control-register copy helper; it
// has no notion of sessions, providers, or storage.
package wire

import (
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
)

// RegCount is the fixed number of 32-bit argument registers in one FF-A
// direct message.
const RegCount = 5

// Regs is the raw register array exchanged with a partition manager.
type Regs [RegCount]uint32

// FastCallFlag is the flags-field bit indicating a fast (non-blocking) call.
const FastCallFlag uint8 = 0x01

// ProtocolVersion is the wire ABI version reported by the management
// interface's VERSION opcode.
const ProtocolVersion uint32 = 1

// Management interface opcodes, valid only when InterfaceID() == uuid.ManagementInterfaceID.
const (
	ManagementOpcodeVersion          uint16 = 0
	ManagementOpcodeMemoryRetrieve   uint16 = 1
	ManagementOpcodeMemoryRelinquish uint16 = 2
	ManagementOpcodeInterfaceIDQuery uint16 = 3
)

const (
	controlReg = 0

	flagsShift = 24
	flagsMask  = 0x3f

	interfaceIDShift = 16
	interfaceIDMask  = 0xff

	opcodeShift = 0
	opcodeMask  = 0xffff

	versionReg           = 1
	memoryHandleLSWReg   = 1
	memoryHandleMSWReg   = 2
	memoryTagLSWReg      = 3
	memoryTagMSWReg      = 4
	rpcStatusReg         = 1
	serviceStatusReg     = 2
	uuidStartReg         = 1
	queriedInterfaceReg  = 2
	queriedInterfaceMask = 0xff
	requestLengthReg     = 3
	clientIDReg          = 4
	responseLengthReg    = 3
)

func getField(regs *Regs, reg int, shift, mask uint32) uint32 {
	return (regs[reg] >> shift) & mask
}

func setField(regs *Regs, reg int, shift, mask, value uint32) {
	regs[reg] &^= mask << shift
	regs[reg] |= (value & mask) << shift
}

// Flags returns the 6-bit flags field from regs[0].
func Flags(regs *Regs) uint8 {
	return uint8(getField(regs, controlReg, flagsShift, flagsMask))
}

// SetFlags sets the 6-bit flags field in regs[0].
func SetFlags(regs *Regs, flags uint8) {
	setField(regs, controlReg, flagsShift, flagsMask, uint32(flags))
}

// InterfaceID returns the 8-bit interface id field from regs[0].
// uuid.ManagementInterfaceID (0xFF) identifies the management interface.
func InterfaceID(regs *Regs) uint8 {
	return uint8(getField(regs, controlReg, interfaceIDShift, interfaceIDMask))
}

// SetInterfaceID sets the 8-bit interface id field in regs[0].
func SetInterfaceID(regs *Regs, interfaceID uint8) {
	setField(regs, controlReg, interfaceIDShift, interfaceIDMask, uint32(interfaceID))
}

// IsManagementInterface reports whether regs addresses the management interface.
func IsManagementInterface(regs *Regs) bool {
	return InterfaceID(regs) == uuid.ManagementInterfaceID
}

// SetManagementInterface sets the interface id field to the management sentinel.
func SetManagementInterface(regs *Regs) {
	SetInterfaceID(regs, uuid.ManagementInterfaceID)
}

// Opcode returns the 16-bit opcode field from regs[0].
func Opcode(regs *Regs) uint16 {
	return uint16(getField(regs, controlReg, opcodeShift, opcodeMask))
}

// SetOpcode sets the 16-bit opcode field in regs[0].
func SetOpcode(regs *Regs, opcode uint16) {
	setField(regs, controlReg, opcodeShift, opcodeMask, uint32(opcode))
}

// CopyControlReg echoes regs[0] (flags/interface-id/opcode) from a request
// into a reply, so a client can correlate a response with its request.
func CopyControlReg(reply, request *Regs) {
	reply[controlReg] = request[controlReg]
}

// Version returns the protocol version carried in a VERSION response.
func Version(regs *Regs) uint32 {
	return regs[versionReg]
}

// SetVersion sets the protocol version in a VERSION response.
func SetVersion(regs *Regs, version uint32) {
	regs[versionReg] = version
}

// MemoryHandle returns the 64-bit memory handle packed little-endian-halves
// across two registers, used by MEMORY_RETRIEVE/MEMORY_RELINQUISH.
func MemoryHandle(regs *Regs) uint64 {
	return uint64(regs[memoryHandleMSWReg])<<32 | uint64(regs[memoryHandleLSWReg])
}

// SetMemoryHandle packs a 64-bit memory handle across two registers.
func SetMemoryHandle(regs *Regs, handle uint64) {
	regs[memoryHandleLSWReg] = uint32(handle)
	regs[memoryHandleMSWReg] = uint32(handle >> 32)
}

// MemoryTag returns the 64-bit memory tag packed across two registers.
func MemoryTag(regs *Regs) uint64 {
	return uint64(regs[memoryTagMSWReg])<<32 | uint64(regs[memoryTagLSWReg])
}

// SetMemoryTag packs a 64-bit memory tag across two registers.
func SetMemoryTag(regs *Regs, tag uint64) {
	regs[memoryTagLSWReg] = uint32(tag)
	regs[memoryTagMSWReg] = uint32(tag >> 32)
}

// RPCStatus returns the rpc_status field from a data-path or query reply.
func RPCStatus(regs *Regs) uint32 {
	return regs[rpcStatusReg]
}

// SetRPCStatus sets the rpc_status field in a reply.
func SetRPCStatus(regs *Regs, status uint32) {
	regs[rpcStatusReg] = status
}

// ServiceStatus returns the low 32 bits of the service_status field from a
// data-path reply.
func ServiceStatus(regs *Regs) uint32 {
	return regs[serviceStatusReg]
}

// SetServiceStatus sets the low 32 bits of the service_status field.
func SetServiceStatus(regs *Regs, status uint32) {
	regs[serviceStatusReg] = status
}

// UUID decodes the 16 service-UUID bytes packed across four registers,
// used by the INTERFACE_ID_QUERY request.
func UUID(regs *Regs) uuid.UUID {
	var u uuid.UUID
	for i := 0; i < 4; i++ {
		reg := regs[uuidStartReg+i]
		u[i*4+0] = byte(reg)
		u[i*4+1] = byte(reg >> 8)
		u[i*4+2] = byte(reg >> 16)
		u[i*4+3] = byte(reg >> 24)
	}
	return u
}

// SetUUID packs a 16-byte service UUID across four registers.
func SetUUID(regs *Regs, u uuid.UUID) {
	for i := 0; i < 4; i++ {
		regs[uuidStartReg+i] = uint32(u[i*4+0]) |
			uint32(u[i*4+1])<<8 |
			uint32(u[i*4+2])<<16 |
			uint32(u[i*4+3])<<24
	}
}

// QueriedInterfaceID returns the resolved interface id from an
// INTERFACE_ID_QUERY response.
func QueriedInterfaceID(regs *Regs) uint8 {
	return uint8(getField(regs, queriedInterfaceReg, 0, queriedInterfaceMask))
}

// SetQueriedInterfaceID sets the resolved interface id in an
// INTERFACE_ID_QUERY response.
func SetQueriedInterfaceID(regs *Regs, interfaceID uint8) {
	setField(regs, queriedInterfaceReg, 0, queriedInterfaceMask, uint32(interfaceID))
}

// RequestLength returns the request_length field of a data-path request.
func RequestLength(regs *Regs) uint32 {
	return regs[requestLengthReg]
}

// SetRequestLength sets the request_length field of a data-path request.
func SetRequestLength(regs *Regs, length uint32) {
	regs[requestLengthReg] = length
}

// ClientID returns the client_id field of a data-path request.
func ClientID(regs *Regs) uint32 {
	return regs[clientIDReg]
}

// SetClientID sets the client_id field of a data-path request.
func SetClientID(regs *Regs, clientID uint32) {
	regs[clientIDReg] = clientID
}

// ResponseLength returns the response_length field of a data-path reply.
func ResponseLength(regs *Regs) uint32 {
	return regs[responseLengthReg]
}

// SetResponseLength sets the response_length field of a data-path reply.
func SetResponseLength(regs *Regs, length uint32) {
	regs[responseLengthReg] = length
}
