// Package uefismm is the SMM_VARIABLE service provider: it exposes a
// pkg/variable/store.Store over the RPC substrate in pkg/rpc, decoding the
// packed little-endian request bodies described by
// SMM_VARIABLE_COMMUNICATE_* in EDK2's variable-service
// protocol and re-encoding the responses the same way. It is a direct port
// of smm_variable_provider.c's handler table onto pkg/rpc/provider.
package uefismm

import (
	"encoding/binary"

	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

// accessVariableHeaderSize is sizeof(SMM_VARIABLE_COMMUNICATE_ACCESS_VARIABLE)
// up to (not including) the variable-length Name field: a GUID followed by
// three little-endian fields (NameSize, DataSize, Attributes).
const accessVariableHeaderSize = 16 + 8 + 8 + 4

type accessVariableHeader struct {
	Guid       meta.Guid
	NameSize   uint64
	DataSize   uint64
	Attributes uint32
}

func decodeAccessVariableHeader(data []byte) (accessVariableHeader, bool) {
	if len(data) < accessVariableHeaderSize {
		return accessVariableHeader{}, false
	}
	var h accessVariableHeader
	copy(h.Guid[:], data[0:16])
	h.NameSize = binary.LittleEndian.Uint64(data[16:24])
	h.DataSize = binary.LittleEndian.Uint64(data[24:32])
	h.Attributes = binary.LittleEndian.Uint32(data[32:36])
	return h, true
}

func encodeAccessVariableHeader(dst []byte, h accessVariableHeader) {
	copy(dst[0:16], h.Guid[:])
	binary.LittleEndian.PutUint64(dst[16:24], h.NameSize)
	binary.LittleEndian.PutUint64(dst[24:32], h.DataSize)
	binary.LittleEndian.PutUint32(dst[32:36], h.Attributes)
}

// splitAccessVariable decodes the fixed header plus the NUL-terminated
// UTF-16 Name that immediately follows it, matching
// sanitize_access_variable_param's NameSize bounds check.
func splitAccessVariable(data []byte) (h accessVariableHeader, name meta.Name, rest []byte, status efistatus.Status) {
	h, ok := decodeAccessVariableHeader(data)
	if !ok {
		return accessVariableHeader{}, nil, nil, efistatus.ErrInvalidParameter
	}

	nameEnd := accessVariableHeaderSize + int(h.NameSize)
	if h.NameSize == 0 || nameEnd > len(data) || h.NameSize%2 != 0 {
		return accessVariableHeader{}, nil, nil, efistatus.ErrInvalidParameter
	}

	name = meta.NameFromUTF16Bytes(data[accessVariableHeaderSize:nameEnd])
	return h, name, data[nameEnd:], efistatus.Success
}

// getNextVariableNameHeaderSize mirrors accessVariableHeaderSize's layout
// without the DataSize/Attributes fields: a GUID then NameSize, with Name
// immediately following.
const getNextVariableNameHeaderSize = 16 + 8

func decodeGetNextVariableName(data []byte) (guid meta.Guid, name meta.Name, status efistatus.Status) {
	if len(data) < getNextVariableNameHeaderSize {
		return meta.Guid{}, nil, efistatus.ErrInvalidParameter
	}
	copy(guid[:], data[0:16])
	nameSize := binary.LittleEndian.Uint64(data[16:24])

	nameEnd := getNextVariableNameHeaderSize + int(nameSize)
	if nameEnd > len(data) {
		return meta.Guid{}, nil, efistatus.ErrInvalidParameter
	}
	if nameSize == 0 {
		return guid, nil, efistatus.Success
	}
	return guid, meta.NameFromUTF16Bytes(data[getNextVariableNameHeaderSize:nameEnd]), efistatus.Success
}

func encodeGetNextVariableName(dst []byte, guid meta.Guid, name meta.Name) int {
	copy(dst[0:16], guid[:])
	nameBytes := name.ToUTF16Bytes()
	binary.LittleEndian.PutUint64(dst[16:24], uint64(len(nameBytes)))
	copy(dst[getNextVariableNameHeaderSize:], nameBytes)
	return getNextVariableNameHeaderSize + len(nameBytes)
}

// queryVariableInfoSize is sizeof(SMM_VARIABLE_COMMUNICATE_QUERY_VARIABLE_INFO):
// an Attributes field in, three uint64 fields out.
const queryVariableInfoSize = 4 + 8 + 8 + 8

func decodeQueryVariableInfoRequest(data []byte) (attributes uint32, status efistatus.Status) {
	if len(data) < queryVariableInfoSize {
		return 0, efistatus.ErrInvalidParameter
	}
	return binary.LittleEndian.Uint32(data[0:4]), efistatus.Success
}

func encodeQueryVariableInfoResponse(dst []byte, maxStorage, remainingStorage, maxVariableSize uint64) {
	binary.LittleEndian.PutUint32(dst[0:4], 0)
	binary.LittleEndian.PutUint64(dst[4:12], maxStorage)
	binary.LittleEndian.PutUint64(dst[12:20], remainingStorage)
	binary.LittleEndian.PutUint64(dst[20:28], maxVariableSize)
}

// varCheckPropertyHeaderSize is sizeof(SMM_VARIABLE_COMMUNICATE_VAR_CHECK_VARIABLE_PROPERTY)
// up to the variable-length Name field: a Revision+Property+Attributes+
// MinSize+MaxSize constraints record, a GUID, then NameSize.
const varCheckPropertyHeaderSize = 2 + 2 + 4 + 8 + 8 + 16 + 8

func decodeVarCheckProperty(data []byte) (guid meta.Guid, name meta.Name, constraints meta.VariableConstraints, status efistatus.Status) {
	if len(data) < varCheckPropertyHeaderSize {
		return meta.Guid{}, nil, meta.VariableConstraints{}, efistatus.ErrInvalidParameter
	}

	constraints.Revision = binary.LittleEndian.Uint16(data[0:2])
	constraints.Property = binary.LittleEndian.Uint16(data[2:4])
	constraints.Attributes = binary.LittleEndian.Uint32(data[4:8])
	constraints.MinSize = int(binary.LittleEndian.Uint64(data[8:16]))
	constraints.MaxSize = int(binary.LittleEndian.Uint64(data[16:24]))
	copy(guid[:], data[24:40])
	nameSize := binary.LittleEndian.Uint64(data[40:48])

	nameEnd := varCheckPropertyHeaderSize + int(nameSize)
	if nameSize == 0 || nameEnd > len(data) {
		return meta.Guid{}, nil, meta.VariableConstraints{}, efistatus.ErrInvalidParameter
	}

	name = meta.NameFromUTF16Bytes(data[varCheckPropertyHeaderSize:nameEnd])
	return guid, name, constraints, efistatus.Success
}

func encodeVarCheckProperty(dst []byte, guid meta.Guid, name meta.Name, constraints meta.VariableConstraints) int {
	binary.LittleEndian.PutUint16(dst[0:2], constraints.Revision)
	binary.LittleEndian.PutUint16(dst[2:4], constraints.Property)
	binary.LittleEndian.PutUint32(dst[4:8], constraints.Attributes)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(constraints.MinSize))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(constraints.MaxSize))
	copy(dst[24:40], guid[:])

	nameBytes := name.ToUTF16Bytes()
	binary.LittleEndian.PutUint64(dst[40:48], uint64(len(nameBytes)))
	copy(dst[varCheckPropertyHeaderSize:], nameBytes)
	return varCheckPropertyHeaderSize + len(nameBytes)
}

// getPayloadSizeRespSize is sizeof(SMM_VARIABLE_COMMUNICATE_GET_PAYLOAD_SIZE).
const getPayloadSizeRespSize = 8

func encodeGetPayloadSizeResponse(dst []byte, payloadSize uint64) {
	binary.LittleEndian.PutUint64(dst[0:8], payloadSize)
}
