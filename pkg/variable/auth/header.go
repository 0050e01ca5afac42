package auth

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

// WIN_CERTIFICATE_UEFI_GUID / EFI_VARIABLE_AUTHENTICATION_2 constants.
const (
	winCertCurrentVersion uint16 = 0x0200
	winCertTypeEFIGuid    uint16 = 0x0EF1

	efiTimeSize         = 16
	winCertHeaderSize   = 8 // dwLength(4) + wRevision(2) + wCertificateType(2)
	certTypeGuidSize    = 16
	descriptorFixedSize = efiTimeSize + winCertHeaderSize + certTypeGuidSize
)

func encodeTime(t meta.Time) []byte {
	buf := make([]byte, efiTimeSize)
	binary.LittleEndian.PutUint16(buf[0:], t.Year)
	buf[2] = t.Month
	buf[3] = t.Day
	buf[4] = t.Hour
	buf[5] = t.Minute
	buf[6] = t.Second
	buf[7] = t.Pad1
	binary.LittleEndian.PutUint32(buf[8:], t.Nanosecond)
	binary.LittleEndian.PutUint16(buf[12:], uint16(t.TimeZone))
	buf[14] = t.Daylight
	buf[15] = t.Pad2
	return buf
}

func decodeTime(buf []byte) meta.Time {
	return meta.Time{
		Year:       binary.LittleEndian.Uint16(buf[0:]),
		Month:      buf[2],
		Day:        buf[3],
		Hour:       buf[4],
		Minute:     buf[5],
		Second:     buf[6],
		Pad1:       buf[7],
		Nanosecond: binary.LittleEndian.Uint32(buf[8:]),
		TimeZone:   int16(binary.LittleEndian.Uint16(buf[12:])),
		Daylight:   buf[14],
		Pad2:       buf[15],
	}
}

// ParseHeader parses the EFI_VARIABLE_AUTHENTICATION_2 descriptor at the
// front of data, matching init_efi_data_map. It returns the embedded
// timestamp, the raw signed-data blob (the WIN_CERTIFICATE_UEFI_GUID's
// CertData, handed on to the crypto collaborator as-is), and the remaining
// bytes (the new variable payload). Size fields are validated so that
// certDataLen and the descriptor's total size cannot overflow or exceed
// len(data); a mismatch is a malformed header, ErrInvalidParameter,
// while a wrong cert type or revision is ErrSecurityViolation (the header
// does not belong to an authentication scheme this engine understands,
// an authentication failure rather than a parse error).
func ParseHeader(data []byte) (timestamp meta.Time, signedData []byte, payload []byte, status efistatus.Status) {
	if len(data) < descriptorFixedSize {
		return meta.Time{}, nil, nil, efistatus.ErrInvalidParameter
	}

	timestamp = decodeTime(data[0:efiTimeSize])

	dwLength := binary.LittleEndian.Uint32(data[efiTimeSize:])
	wRevision := binary.LittleEndian.Uint16(data[efiTimeSize+4:])
	wCertificateType := binary.LittleEndian.Uint16(data[efiTimeSize+6:])

	certTypeOffset := efiTimeSize + winCertHeaderSize
	var certType meta.Guid
	copy(certType[:], data[certTypeOffset:certTypeOffset+certTypeGuidSize])

	if wRevision != winCertCurrentVersion || wCertificateType != winCertTypeEFIGuid {
		return meta.Time{}, nil, nil, efistatus.ErrSecurityViolation
	}
	if certType != PKCS7Guid {
		return meta.Time{}, nil, nil, efistatus.ErrSecurityViolation
	}

	if dwLength < uint32(winCertHeaderSize+certTypeGuidSize) {
		return meta.Time{}, nil, nil, efistatus.ErrInvalidParameter
	}
	certDataLen := dwLength - uint32(winCertHeaderSize+certTypeGuidSize)
	descriptorTotal := uint64(descriptorFixedSize) + uint64(certDataLen)
	if descriptorTotal > uint64(len(data)) {
		return meta.Time{}, nil, nil, efistatus.ErrInvalidParameter
	}

	signedData = data[descriptorFixedSize : uint64(descriptorFixedSize)+uint64(certDataLen)]
	payload = data[descriptorTotal:]

	return timestamp, signedData, payload, efistatus.Success
}

// Digest computes the SHA-256 digest an authenticated update's signature
// covers: name (without its trailing NUL) + guid + attributes + timestamp
// + payload, matching calc_variable_hash.
func Digest(name meta.Name, guid meta.Guid, attributes uint32, timestamp meta.Time, payload []byte) [32]byte {
	h := sha256.New()

	nameUnits := name
	if nameUnits.HasNULTerminator() {
		nameUnits = nameUnits[:len(nameUnits)-1]
	}
	for _, u := range nameUnits {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], u)
		h.Write(b[:])
	}

	h.Write(guid[:])

	var attrBuf [4]byte
	binary.LittleEndian.PutUint32(attrBuf[:], attributes)
	h.Write(attrBuf[:])

	h.Write(encodeTime(timestamp))
	h.Write(payload)

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
