package store

import (
	"github.com/arm-trusted-services/ts-core/pkg/variable/checker"
	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
)

// checkCapabilities validates an incoming SetVariable's attribute bits in
// isolation (independent of any existing variable), matching
// check_capabilities.
func checkCapabilities(attributes uint32) efistatus.Status {
	if attributes&meta.AttrRuntimeAccess != 0 && attributes&meta.AttrBootserviceAccess == 0 {
		return efistatus.ErrInvalidParameter
	}
	if attributes&meta.AttrAuthenticatedWriteAccess != 0 {
		// Deprecated by the UEFI specification in favor of time-based
		// authenticated writes.
		return efistatus.ErrUnsupported
	}
	if attributes&meta.AttrTimeBasedAuthenticatedWriteAccess != 0 && attributes&meta.AttrEnhancedAuthenticatedAccess != 0 {
		return efistatus.ErrInvalidParameter
	}
	if attributes&meta.AttrEnhancedAuthenticatedAccess != 0 {
		return efistatus.ErrUnsupported
	}
	if attributes&meta.AttrHardwareErrorRecord != 0 {
		return efistatus.ErrUnsupported
	}
	if attributes&^meta.AttrMask != 0 {
		return efistatus.ErrUnsupported
	}
	return efistatus.Success
}

// checkAccessPermitted enforces the boot/runtime access-control gate,
// matching check_access_permitted. A variable with neither
// BOOTSERVICE_ACCESS nor RUNTIME_ACCESS set is ungated (treated as always
// accessible): the gate applies only when either access bit is set.
func checkAccessPermitted(isBootService bool, attributes uint32) efistatus.Status {
	if attributes&(meta.AttrBootserviceAccess|meta.AttrRuntimeAccess) == 0 {
		return efistatus.Success
	}
	if isBootService {
		if attributes&meta.AttrBootserviceAccess == 0 {
			return efistatus.ErrNotFound
		}
		return efistatus.Success
	}
	if attributes&meta.AttrRuntimeAccess == 0 {
		return efistatus.ErrNotFound
	}
	return efistatus.Success
}

// checkAccessPermittedOnSet layers the variable checker's constraint
// enforcement on top of the access-control gate, matching
// check_access_permitted_on_set. attributes is the variable's stored
// attribute set (zero for an entry being created), never the incoming
// request's.
func checkAccessPermittedOnSet(isBootService bool, attributes uint32, dataSize int, info *meta.VariableInfo) efistatus.Status {
	if status := checkAccessPermitted(isBootService, attributes); status != efistatus.Success {
		return status
	}
	if info.IsConstraintsSet {
		return checker.CheckOnSet(info.CheckConstraints, attributes, dataSize)
	}
	return efistatus.Success
}
