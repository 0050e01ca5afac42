// Package checker enforces the policy-driven size/attribute/read-only
// constraints a variable may have installed via SetVarCheckProperty,
// consulted by the variable store on every SetVariable.
package checker

import (
	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

// SetConstraints validates and installs new check constraints over
// existing ones. isUpdate is accepted so future revisions can validate
// updates differently from installs, but today it does not change the
// validation: a revision mismatch or an inverted
// min/max range is rejected regardless of whether constraints already
// exist.
func SetConstraints(existing *meta.VariableConstraints, isUpdate bool, next meta.VariableConstraints) efistatus.Status {
	_ = isUpdate

	if next.Revision != meta.ConstraintsRevision {
		return efistatus.ErrInvalidParameter
	}
	if next.MinSize > next.MaxSize {
		return efistatus.ErrInvalidParameter
	}

	*existing = next
	return efistatus.Success
}

// CheckOnSet enforces constraints against an incoming SetVariable: a
// read-only variable rejects any write, and data_size must fall within
// [MinSize, MaxSize].
func CheckOnSet(constraints meta.VariableConstraints, attributes uint32, dataSize int) efistatus.Status {
	_ = attributes

	if constraints.Property&meta.PropertyReadOnly != 0 {
		return efistatus.ErrWriteProtected
	}
	if dataSize < constraints.MinSize || dataSize > constraints.MaxSize {
		return efistatus.ErrInvalidParameter
	}

	return efistatus.Success
}
