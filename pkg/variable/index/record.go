package index

import (
	"encoding/binary"

	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

// Fixed-size little-endian record layout for one variable_metadata plus
// its is_constraints_set flag and optional constraints record, as a flat
// little-endian struct dump. The name field is padded to a fixed width
// (meta.MaxNameCodeUnits code units): dump always writes the fixed width,
// restore always reads it.
const (
	metadataRecordSize = 16 /* guid */ + 16 /* timestamp */ + meta.FingerprintSize +
		4 /* name size */ + meta.MaxNameCodeUnits*2 /* name */ + 4 /* attributes */ + 8 /* uid */
	constraintsFlagSize = 1
	constraintsBodySize = 2 + 2 + 4 + 8 + 8
)

func encodeMetadata(buf []byte, m meta.VariableMetadata) {
	pos := 0
	copy(buf[pos:], m.Guid[:])
	pos += 16

	binary.LittleEndian.PutUint16(buf[pos:], m.Timestamp.Year)
	pos += 2
	buf[pos] = m.Timestamp.Month
	pos++
	buf[pos] = m.Timestamp.Day
	pos++
	buf[pos] = m.Timestamp.Hour
	pos++
	buf[pos] = m.Timestamp.Minute
	pos++
	buf[pos] = m.Timestamp.Second
	pos++
	buf[pos] = m.Timestamp.Pad1
	pos++
	binary.LittleEndian.PutUint32(buf[pos:], m.Timestamp.Nanosecond)
	pos += 4
	binary.LittleEndian.PutUint16(buf[pos:], uint16(m.Timestamp.TimeZone))
	pos += 2
	buf[pos] = m.Timestamp.Daylight
	pos++
	buf[pos] = m.Timestamp.Pad2
	pos++

	copy(buf[pos:], m.Fingerprint[:])
	pos += meta.FingerprintSize

	binary.LittleEndian.PutUint32(buf[pos:], uint32(m.Name.ByteSize()))
	pos += 4

	nameBuf := buf[pos : pos+meta.MaxNameCodeUnits*2]
	for i := 0; i < len(nameBuf)/2; i++ {
		var unit uint16
		if i < len(m.Name) {
			unit = m.Name[i]
		}
		binary.LittleEndian.PutUint16(nameBuf[i*2:], unit)
	}
	pos += meta.MaxNameCodeUnits * 2

	binary.LittleEndian.PutUint32(buf[pos:], m.Attributes)
	pos += 4

	binary.LittleEndian.PutUint64(buf[pos:], m.UID)
}

func decodeMetadata(buf []byte) meta.VariableMetadata {
	var m meta.VariableMetadata
	pos := 0

	copy(m.Guid[:], buf[pos:pos+16])
	pos += 16

	m.Timestamp.Year = binary.LittleEndian.Uint16(buf[pos:])
	pos += 2
	m.Timestamp.Month = buf[pos]
	pos++
	m.Timestamp.Day = buf[pos]
	pos++
	m.Timestamp.Hour = buf[pos]
	pos++
	m.Timestamp.Minute = buf[pos]
	pos++
	m.Timestamp.Second = buf[pos]
	pos++
	m.Timestamp.Pad1 = buf[pos]
	pos++
	m.Timestamp.Nanosecond = binary.LittleEndian.Uint32(buf[pos:])
	pos += 4
	m.Timestamp.TimeZone = int16(binary.LittleEndian.Uint16(buf[pos:]))
	pos += 2
	m.Timestamp.Daylight = buf[pos]
	pos++
	m.Timestamp.Pad2 = buf[pos]
	pos++

	copy(m.Fingerprint[:], buf[pos:pos+meta.FingerprintSize])
	pos += meta.FingerprintSize

	nameSize := binary.LittleEndian.Uint32(buf[pos:])
	pos += 4

	nameBuf := buf[pos : pos+meta.MaxNameCodeUnits*2]
	nameUnits := int(nameSize) / 2
	if nameUnits > meta.MaxNameCodeUnits {
		nameUnits = meta.MaxNameCodeUnits
	}
	name := make(meta.Name, nameUnits)
	for i := range name {
		name[i] = binary.LittleEndian.Uint16(nameBuf[i*2:])
	}
	m.Name = name
	pos += meta.MaxNameCodeUnits * 2

	m.Attributes = binary.LittleEndian.Uint32(buf[pos:])
	pos += 4

	m.UID = binary.LittleEndian.Uint64(buf[pos:])

	return m
}

func encodeConstraints(buf []byte, c meta.VariableConstraints) {
	binary.LittleEndian.PutUint16(buf[0:], c.Revision)
	binary.LittleEndian.PutUint16(buf[2:], c.Property)
	binary.LittleEndian.PutUint32(buf[4:], c.Attributes)
	binary.LittleEndian.PutUint64(buf[8:], uint64(c.MinSize))
	binary.LittleEndian.PutUint64(buf[16:], uint64(c.MaxSize))
}

func decodeConstraints(buf []byte) meta.VariableConstraints {
	return meta.VariableConstraints{
		Revision:   binary.LittleEndian.Uint16(buf[0:]),
		Property:   binary.LittleEndian.Uint16(buf[2:]),
		Attributes: binary.LittleEndian.Uint32(buf[4:]),
		MinSize:    int(binary.LittleEndian.Uint64(buf[8:])),
		MaxSize:    int(binary.LittleEndian.Uint64(buf[16:])),
	}
}
