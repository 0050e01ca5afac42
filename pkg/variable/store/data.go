package store

import (
	"context"

	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
	"github.com/arm-trusted-services/ts-core/pkg/variable/storage"
)

// loadVariableData reads the full object uid from backend, matching
// load_variable_data.
func loadVariableData(ctx context.Context, backend storage.Backend, ownerID uint32, uid uint64) ([]byte, efistatus.Status) {
	info, status := backend.GetInfo(ctx, ownerID, uid)
	if status != efistatus.PSASuccess {
		return nil, efistatus.FromPSA(status)
	}

	buf := make([]byte, info.Size)
	n, getStatus := backend.Get(ctx, ownerID, uid, 0, buf)
	if getStatus != efistatus.PSASuccess {
		return nil, efistatus.FromPSA(getStatus)
	}

	return buf[:n], efistatus.Success
}

// removeVariableData deletes object uid from backend, matching
// remove_variable_data.
func removeVariableData(ctx context.Context, backend storage.Backend, ownerID uint32, uid uint64) efistatus.Status {
	return efistatus.FromPSA(backend.Remove(ctx, ownerID, uid))
}

// storeVariableData writes payload as object uid, choosing overwrite or
// append-write semantics per attributes, matching store_variable_data.
func storeVariableData(ctx context.Context, delegate *Delegate, ownerID uint32, uid uint64, payload []byte, attributes uint32) efistatus.Status {
	if attributes&meta.AttrAppendWrite != 0 {
		return storeAppendWrite(ctx, delegate.Backend, ownerID, uid, delegate.MaxVariableSize, payload)
	}
	return storeOverwrite(ctx, delegate.Backend, ownerID, uid, delegate.MaxVariableSize, payload)
}

// storeOverwrite replaces object uid's entire contents, matching
// store_overwrite.
func storeOverwrite(ctx context.Context, backend storage.Backend, ownerID uint32, uid uint64, maxVariableSize int, payload []byte) efistatus.Status {
	if len(payload) > maxVariableSize {
		return efistatus.ErrOutOfResources
	}
	return efistatus.FromPSA(backend.Set(ctx, ownerID, uid, payload, storage.FlagNone))
}

// storeAppendWrite appends payload to object uid's existing contents,
// creating it first if it does not yet exist, matching
// store_append_write.
func storeAppendWrite(ctx context.Context, backend storage.Backend, ownerID uint32, uid uint64, maxVariableSize int, payload []byte) efistatus.Status {
	info, status := backend.GetInfo(ctx, ownerID, uid)

	oldSize := 0
	switch status {
	case efistatus.PSASuccess:
		oldSize = info.Size
	case efistatus.PSAErrorDoesNotExist:
		if createStatus := backend.Create(ctx, ownerID, uid, 0, storage.FlagNone); createStatus != efistatus.PSASuccess {
			return efistatus.FromPSA(createStatus)
		}
	default:
		return efistatus.FromPSA(status)
	}

	newSize := oldSize + len(payload)
	if newSize < oldSize {
		return efistatus.ErrOutOfResources
	}
	if newSize > maxVariableSize {
		return efistatus.ErrOutOfResources
	}

	return efistatus.FromPSA(backend.SetExtended(ctx, ownerID, uid, oldSize, payload))
}
