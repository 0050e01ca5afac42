// Package authoring builds the client-side counterpart of the wire
// formats pkg/variable/auth only parses: EFI_SIGNATURE_LIST payloads and
// EFI_VARIABLE_AUTHENTICATION_2-framed update requests. It exists for
// tools that submit authenticated updates (tsctl's key-install flow)
// rather than for the service side, producing the same byte layouts
// auth/header.go and auth/siglist.go decode.
package authoring

import (
	"encoding/binary"
	"time"

	"github.com/arm-trusted-services/ts-core/pkg/variable/auth"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

const (
	winCertCurrentVersion uint16 = 0x0200
	winCertTypeEFIGuid    uint16 = 0x0EF1

	efiTimeSize         = 16
	winCertHeaderSize   = 8
	certTypeGuidSize    = 16
	descriptorFixedSize = efiTimeSize + winCertHeaderSize + certTypeGuidSize

	signatureListHeaderSize = 16 + 4 + 4 + 4
	signatureOwnerGuidSize  = 16
)

// Now renders the current wall-clock time as a meta.Time with every pad
// field zeroed, matching the only form the authentication engine accepts
// (HasNonZeroPad rejects anything else).
func Now() meta.Time {
	t := time.Now().UTC()
	return meta.Time{
		Year:   uint16(t.Year()),
		Month:  uint8(t.Month()),
		Day:    uint8(t.Day()),
		Hour:   uint8(t.Hour()),
		Minute: uint8(t.Minute()),
		Second: uint8(t.Second()),
	}
}

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

// SignatureList wraps a single DER certificate in a one-entry
// EFI_SIGNATURE_LIST of SignatureType EFI_CERT_X509_GUID, the layout
// auth.certsFromSignatureList walks. ownerGuid is the signature owner
// recorded alongside the certificate; it plays no role in verification.
func SignatureList(ownerGuid meta.Guid, certDER []byte) []byte {
	sigSize := signatureOwnerGuidSize + len(certDER)
	listSize := signatureListHeaderSize + sigSize

	buf := make([]byte, listSize)
	copy(buf[0:16], auth.CertX509Guid[:])
	binary.LittleEndian.PutUint32(buf[16:20], uint32(listSize))
	binary.LittleEndian.PutUint32(buf[20:24], 0)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sigSize))
	copy(buf[signatureListHeaderSize:signatureListHeaderSize+signatureOwnerGuidSize], ownerGuid[:])
	copy(buf[signatureListHeaderSize+signatureOwnerGuidSize:], certDER)
	return buf
}

// Digest re-exposes auth.Digest so callers constructing an authenticated
// update do not need to import the auth package directly for this one
// helper.
func Digest(name meta.Name, guid meta.Guid, attributes uint32, timestamp meta.Time, payload []byte) [32]byte {
	return auth.Digest(name, guid, attributes, timestamp, payload)
}

// EncodeAuthenticatedPayload frames payload behind an
// EFI_VARIABLE_AUTHENTICATION_2 descriptor carrying timestamp and
// signedData as the WIN_CERTIFICATE_UEFI_GUID's CertData, matching the
// layout auth.ParseHeader decodes. signedData is the raw signature bytes
// a secure-boot update authenticates against an existing key variable's
// certificate (no embedded cert of its own, per auth.Engine's
// "external cert" case) -- pass an arbitrary placeholder here only when
// bootstrapping the very first PK, which auth.Engine accepts
// unauthenticated.
func EncodeAuthenticatedPayload(timestamp meta.Time, signedData []byte, payload []byte) []byte {
	dwLength := uint32(winCertHeaderSize + certTypeGuidSize + len(signedData))
	buf := make([]byte, descriptorFixedSize+len(signedData)+len(payload))

	copy(buf[0:efiTimeSize], encodeTime(timestamp))
	binary.LittleEndian.PutUint32(buf[efiTimeSize:], dwLength)
	binary.LittleEndian.PutUint16(buf[efiTimeSize+4:], winCertCurrentVersion)
	binary.LittleEndian.PutUint16(buf[efiTimeSize+6:], winCertTypeEFIGuid)
	copy(buf[efiTimeSize+winCertHeaderSize:descriptorFixedSize], auth.PKCS7Guid[:])
	copy(buf[descriptorFixedSize:], signedData)
	copy(buf[descriptorFixedSize+len(signedData):], payload)

	return buf
}
