package uefismm

import (
	"encoding/binary"

	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

// Client-side counterparts to message.go's decoders: tsctl builds request
// bodies and parses response bodies using the same wire layout the
// provider speaks, without going through a caller.Caller opcode constant
// of its own (it reuses Opcode* directly).

// EncodeGetVariableRequest builds the request body for OpcodeGetVariable:
// an access-variable header (DataSize left at zero, it is an input-only
// field for Get) followed by the variable's UTF-16 name.
func EncodeGetVariableRequest(guid meta.Guid, name meta.Name) []byte {
	nameBytes := name.ToUTF16Bytes()
	buf := make([]byte, accessVariableHeaderSize+len(nameBytes))
	encodeAccessVariableHeader(buf, accessVariableHeader{Guid: guid, NameSize: uint64(len(nameBytes))})
	copy(buf[accessVariableHeaderSize:], nameBytes)
	return buf
}

// DecodeGetVariableResponse parses the response body from OpcodeGetVariable:
// the same access-variable header layout with the variable's data appended
// where Get's request carried only the name.
func DecodeGetVariableResponse(data []byte) (attributes uint32, payload []byte, status efistatus.Status) {
	h, ok := decodeAccessVariableHeader(data)
	if !ok {
		return 0, nil, efistatus.ErrInvalidParameter
	}
	nameEnd := accessVariableHeaderSize + int(h.NameSize)
	dataEnd := nameEnd + int(h.DataSize)
	if dataEnd > len(data) {
		return 0, nil, efistatus.ErrInvalidParameter
	}
	return h.Attributes, data[nameEnd:dataEnd], efistatus.Success
}

// EncodeSetVariableRequest builds the request body for OpcodeSetVariable:
// an access-variable header followed by name then payload.
func EncodeSetVariableRequest(guid meta.Guid, name meta.Name, attributes uint32, payload []byte) []byte {
	nameBytes := name.ToUTF16Bytes()
	buf := make([]byte, accessVariableHeaderSize+len(nameBytes)+len(payload))
	encodeAccessVariableHeader(buf, accessVariableHeader{
		Guid: guid, NameSize: uint64(len(nameBytes)), DataSize: uint64(len(payload)), Attributes: attributes,
	})
	copy(buf[accessVariableHeaderSize:], nameBytes)
	copy(buf[accessVariableHeaderSize+len(nameBytes):], payload)
	return buf
}

// EncodeGetNextVariableNameRequest builds the request body for
// OpcodeGetNextVariableName: the enumeration cursor (guid, name) to
// resume after, with a zero-length name requesting the first entry.
func EncodeGetNextVariableNameRequest(guid meta.Guid, name meta.Name) []byte {
	nameBytes := name.ToUTF16Bytes()
	buf := make([]byte, getNextVariableNameHeaderSize+len(nameBytes))
	return buf[:encodeGetNextVariableName(buf, guid, name)]
}

// DecodeGetNextVariableNameResponse parses the response body from
// OpcodeGetNextVariableName.
func DecodeGetNextVariableNameResponse(data []byte) (guid meta.Guid, name meta.Name, status efistatus.Status) {
	return decodeGetNextVariableName(data)
}

// EncodeQueryVariableInfoRequest builds the request body for
// OpcodeQueryVariableInfo.
func EncodeQueryVariableInfoRequest(attributes uint32) []byte {
	buf := make([]byte, queryVariableInfoSize)
	binary.LittleEndian.PutUint32(buf[0:4], attributes)
	return buf
}

// DecodeQueryVariableInfoResponse parses the response body from
// OpcodeQueryVariableInfo.
func DecodeQueryVariableInfoResponse(data []byte) (maxStorage, remainingStorage, maxVariableSize uint64, status efistatus.Status) {
	if len(data) < queryVariableInfoSize {
		return 0, 0, 0, efistatus.ErrInvalidParameter
	}
	return binary.LittleEndian.Uint64(data[4:12]),
		binary.LittleEndian.Uint64(data[12:20]),
		binary.LittleEndian.Uint64(data[20:28]),
		efistatus.Success
}
