package auth

import (
	"encoding/binary"

	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

const signatureListHeaderSize = 16 /* SignatureType guid */ + 4 + 4 + 4
const signatureOwnerGuidSize = 16

// certsFromSignatureList walks a chain of EFI_SIGNATURE_LIST structures
// and returns every embedded X.509 certificate (DER-encoded) in order,
// matching verify_var_by_key_var's walk. Only the X.509-GUID signature
// type is understood; any other SignatureType anywhere in the chain makes
// the whole key variable unusable: a single unsupported list invalidates
// the key variable rather than being skipped.
func certsFromSignatureList(data []byte) ([][]byte, efistatus.Status) {
	var certs [][]byte
	pos := 0

	for pos < len(data) {
		if pos+signatureListHeaderSize > len(data) {
			return nil, efistatus.ErrInvalidParameter
		}

		var sigType meta.Guid
		copy(sigType[:], data[pos:pos+16])
		listSize := binary.LittleEndian.Uint32(data[pos+16:])
		headerSize := binary.LittleEndian.Uint32(data[pos+20:])
		sigSize := binary.LittleEndian.Uint32(data[pos+24:])

		if sigType != CertX509Guid {
			return nil, efistatus.ErrInvalidParameter
		}
		if listSize < uint32(signatureListHeaderSize) || pos+int(listSize) > len(data) {
			return nil, efistatus.ErrInvalidParameter
		}
		if sigSize < signatureOwnerGuidSize {
			return nil, efistatus.ErrInvalidParameter
		}

		entriesStart := pos + signatureListHeaderSize + int(headerSize)
		entriesEnd := pos + int(listSize)
		if entriesStart > entriesEnd {
			return nil, efistatus.ErrInvalidParameter
		}

		for e := entriesStart; e+int(sigSize) <= entriesEnd; e += int(sigSize) {
			certs = append(certs, data[e+signatureOwnerGuidSize:e+int(sigSize)])
		}

		pos += int(listSize)
	}

	return certs, efistatus.Success
}
