package auth

import (
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

// GlobalVariableGuid is EFI_GLOBAL_VARIABLE, the namespace PK and KEK live
// in.
var GlobalVariableGuid meta.Guid = uuid.MustParse("8be4df61-93ca-11d2-aa0d-00e098032b8c")

// SecurityDatabaseGuid is EFI_IMAGE_SECURITY_DATABASE_GUID, the namespace
// db/dbx/dbt/dbr live in.
var SecurityDatabaseGuid meta.Guid = uuid.MustParse("d719b2cb-3d3a-4596-a3bc-dad00e67656f")

// PKCS7Guid is EFI_CERT_TYPE_PKCS7_GUID, the only WIN_CERTIFICATE_UEFI_GUID
// CertType this engine accepts.
var PKCS7Guid meta.Guid = uuid.MustParse("4aafd29d-68df-49ee-8aa9-347d375665a7")

// CertX509Guid is EFI_CERT_X509_GUID, the only EFI_SIGNATURE_LIST
// SignatureType this engine walks; any other signature-list type makes the
// whole key variable unusable for verification.
var CertX509Guid meta.Guid = uuid.MustParse("a5c059a1-94e4-4aa4-87b5-ab155c2bf072")

// keyVariableName pairs a well-known key-store variable's name with its
// namespace GUID.
type keyVariableName struct {
	Name meta.Name
	Guid meta.Guid
}

var (
	pkName  = keyVariableName{meta.NameFromString("PK"), GlobalVariableGuid}
	kekName = keyVariableName{meta.NameFromString("KEK"), GlobalVariableGuid}
	dbName  = keyVariableName{meta.NameFromString("db"), SecurityDatabaseGuid}
	dbxName = keyVariableName{meta.NameFromString("dbx"), SecurityDatabaseGuid}
	dbtName = keyVariableName{meta.NameFromString("dbt"), SecurityDatabaseGuid}
	dbrName = keyVariableName{meta.NameFromString("dbr"), SecurityDatabaseGuid}
)

// VariableClass distinguishes the secure-boot key hierarchy variables from
// every other time-based-authenticated variable, matching
// is_private_auth_var's (inverted) classification.
type VariableClass int

const (
	ClassSecureBoot VariableClass = iota
	ClassPrivate
)

// Classify reports whether (guid, name) names one of PK/KEK/db/dbx/dbt/dbr,
// matching is_private_auth_var.
func Classify(guid meta.Guid, name meta.Name) VariableClass {
	for _, kv := range []keyVariableName{pkName, kekName, dbName, dbxName, dbtName, dbrName} {
		if kv.Guid == guid && kv.Name.Equal(name) {
			return ClassSecureBoot
		}
	}
	return ClassPrivate
}

// VerificationKeys returns the key-store variables eligible to verify a
// write to (guid, name), matching select_verification_keys. A nil slice
// with ErrSecurityViolation means (guid, name) is not a recognized
// secure-boot variable at all, which callers should treat as a rejection.
func VerificationKeys(guid meta.Guid, name meta.Name) ([]keyVariableName, efistatus.Status) {
	switch {
	case pkName.Guid == guid && pkName.Name.Equal(name):
		return []keyVariableName{pkName}, efistatus.Success
	case kekName.Guid == guid && kekName.Name.Equal(name):
		return []keyVariableName{pkName}, efistatus.Success
	case guid == SecurityDatabaseGuid &&
		(name.Equal(dbName.Name) || name.Equal(dbxName.Name) || name.Equal(dbtName.Name) || name.Equal(dbrName.Name)):
		return []keyVariableName{pkName, kekName}, efistatus.Success
	default:
		return nil, efistatus.ErrSecurityViolation
	}
}
