// Package meta defines the data types carried in a variable index entry:
// the UEFI variable attribute bits, the EFI_TIME timestamp used by
// authenticated updates, and the variable name codec.
package meta

import (
	"fmt"
	"unicode/utf16"

	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
)

// Guid identifies the namespace a variable belongs to. EFI_GUID has the
// same 16-byte shape as an RPC service UUID, so this is a direct alias
// rather than a parallel redefinition.
type Guid = uuid.UUID

// UEFI variable attribute bits (UEFI Specification §8.2, "Variable
// Services"). Values match the published EFI_VARIABLE_* constants.
const (
	AttrNonVolatile                       uint32 = 0x00000001
	AttrBootserviceAccess                 uint32 = 0x00000002
	AttrRuntimeAccess                     uint32 = 0x00000004
	AttrHardwareErrorRecord               uint32 = 0x00000008
	AttrAuthenticatedWriteAccess          uint32 = 0x00000010
	AttrTimeBasedAuthenticatedWriteAccess uint32 = 0x00000020
	AttrAppendWrite                       uint32 = 0x00000040
	AttrEnhancedAuthenticatedAccess       uint32 = 0x00000080
)

// AttrMask is the full set of attribute bits this store recognizes; any
// other bit set on a SetVariable request is rejected as unsupported.
const AttrMask = AttrNonVolatile | AttrBootserviceAccess | AttrRuntimeAccess |
	AttrHardwareErrorRecord | AttrAuthenticatedWriteAccess |
	AttrTimeBasedAuthenticatedWriteAccess | AttrAppendWrite |
	AttrEnhancedAuthenticatedAccess

// FingerprintSize is the fixed length of a private-authenticated-variable
// fingerprint, produced by the crypto collaborator (always exactly this
// many bytes, a SHA-256 digest; a shorter result would be zero-padded).
const FingerprintSize = 32

// MaxNameCodeUnits bounds a variable name's length in UTF-16 code units,
// matching VARIABLE_INDEX_MAX_NAME_SIZE in variable_index.h.
const MaxNameCodeUnits = 64

// Time mirrors EFI_TIME's fields relevant to authenticated-variable
// timestamp handling. Ordering for the authentication engine's "strictly
// greater than" check is lexicographic comparison of
// (Year, Month, Day, Hour, Minute, Second, Nanosecond); Pad1, TimeZone,
// Daylight and Pad2 take no part in the ordering.
type Time struct {
	Year       uint16
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	Pad1       uint8
	Nanosecond uint32
	TimeZone   int16
	Daylight   uint8
	Pad2       uint8
}

// IsZero reports whether t is the zero timestamp, used as the initial
// "stored timestamp" for a variable that has never been authenticated.
func (t Time) IsZero() bool {
	return t == Time{}
}

// After reports whether t is strictly later than o, comparing field by
// field in EFI_TIME declaration order. TimeZone/Daylight/pad fields are
// required to be zero by the caller before this is invoked.
func (t Time) After(o Time) bool {
	switch {
	case t.Year != o.Year:
		return t.Year > o.Year
	case t.Month != o.Month:
		return t.Month > o.Month
	case t.Day != o.Day:
		return t.Day > o.Day
	case t.Hour != o.Hour:
		return t.Hour > o.Hour
	case t.Minute != o.Minute:
		return t.Minute > o.Minute
	case t.Second != o.Second:
		return t.Second > o.Second
	case t.Nanosecond != o.Nanosecond:
		return t.Nanosecond > o.Nanosecond
	default:
		return false
	}
}

// HasNonZeroPad reports whether any of the fields the authentication
// engine requires to be zero (Pad1, Nanosecond, TimeZone, Daylight, Pad2)
// is non-zero.
func (t Time) HasNonZeroPad() bool {
	return t.Pad1 != 0 || t.Nanosecond != 0 || t.TimeZone != 0 || t.Daylight != 0 || t.Pad2 != 0
}

// Name is a UEFI variable name: a NUL-terminated sequence of UTF-16LE
// code units, matching the wire representation (an inline name field with
// an explicit name_size in bytes).
type Name []uint16

// NameFromString encodes s as a NUL-terminated Name, the form every
// variable-store operation expects on its Name field.
func NameFromString(s string) Name {
	units := utf16.Encode([]rune(s))
	n := make(Name, len(units)+1)
	copy(n, units)
	return n
}

// String decodes n back to a Go string, dropping the trailing NUL (and
// any data after the first NUL, matching UEFI name semantics).
func (n Name) String() string {
	units := []uint16(n)
	for i, u := range units {
		if u == 0 {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units))
}

// ByteSize returns the name's length in bytes, the unit the wire protocol
// and the 128-byte name limit are expressed in.
func (n Name) ByteSize() int {
	return len(n) * 2
}

// Equal reports whether n and o are the same code-unit sequence.
func (n Name) Equal(o Name) bool {
	if len(n) != len(o) {
		return false
	}
	for i := range n {
		if n[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of n.
func (n Name) Clone() Name {
	c := make(Name, len(n))
	copy(c, n)
	return c
}

// HasNULTerminator reports whether n's last code unit is NUL, validated
// before any other processing of an incoming name.
func (n Name) HasNULTerminator() bool {
	return len(n) > 0 && n[len(n)-1] == 0
}

func (n Name) GoString() string {
	return fmt.Sprintf("Name(%q)", n.String())
}

// NameFromUTF16Bytes decodes a little-endian UTF-16 byte run (as carried
// inline in an SMM_VARIABLE_COMMUNICATE_* message body) into a Name. b's
// length must be even; a trailing odd byte is ignored.
func NameFromUTF16Bytes(b []byte) Name {
	n := make(Name, len(b)/2)
	for i := range n {
		n[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return n
}

// ToUTF16Bytes encodes n as a little-endian UTF-16 byte run, the inverse
// of NameFromUTF16Bytes.
func (n Name) ToUTF16Bytes() []byte {
	b := make([]byte, len(n)*2)
	for i, u := range n {
		b[2*i] = byte(u)
		b[2*i+1] = byte(u >> 8)
	}
	return b
}

// VariableConstraints holds policy-driven limits installed via
// SetVarCheckProperty, consulted by the checker on every SetVariable.
// Grounded on variable_checker.h's struct variable_constraints.
type VariableConstraints struct {
	Revision   uint16
	Property   uint16
	Attributes uint32
	MinSize    int
	MaxSize    int
}

// PropertyReadOnly is the VAR_CHECK_VARIABLE_PROPERTY_READ_ONLY bit of
// VariableConstraints.Property.
const PropertyReadOnly uint16 = 0x01

// ConstraintsRevision is the only revision of VAR_CHECK_VARIABLE_PROPERTY
// this store accepts, matching VAR_CHECK_VARIABLE_PROPERTY_REVISION.
const ConstraintsRevision uint16 = 0x0001

// VariableMetadata is the persisted identity and bookkeeping for one
// variable: its namespace, authentication timestamp/fingerprint, name,
// attributes, and dense index-local uid. Grounded on variable_index.h's
// struct variable_metadata.
type VariableMetadata struct {
	Guid        Guid
	Timestamp   Time
	Fingerprint [FingerprintSize]byte
	Name        Name
	Attributes  uint32
	UID         uint64
}

// VariableInfo pairs a variable's metadata with its installed check
// constraints and the two independent "is set" flags that together
// decide whether the owning index entry may be reclaimed. Grounded on
// variable_index.h's struct variable_info.
type VariableInfo struct {
	Metadata         VariableMetadata
	CheckConstraints VariableConstraints
	IsVariableSet    bool
	IsConstraintsSet bool
}

// VariableEntry is one slot in the variable index: a VariableInfo plus
// the in_use/dirty bookkeeping bits the index itself manages. Grounded on
// variable_index.h's struct variable_entry.
type VariableEntry struct {
	Info  VariableInfo
	InUse bool
	Dirty bool
}
