package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for RPC and variable-store operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Caller / client attributes
	// ========================================================================
	AttrClientID    = "rpc.client_id"
	AttrSessionID   = "rpc.session_id"
	AttrSharedMemID = "rpc.shared_memory_id"

	// ========================================================================
	// RPC dispatch attributes
	// ========================================================================
	AttrServiceUUID   = "rpc.service_uuid"
	AttrInterfaceID   = "rpc.interface_id"
	AttrOpcode        = "rpc.opcode"
	AttrEndpoint      = "rpc.endpoint"
	AttrRPCStatus     = "rpc.status"
	AttrServiceStatus = "rpc.service_status"
	AttrStatusMsg     = "rpc.status_msg"

	// ========================================================================
	// UEFI variable store attributes
	// ========================================================================
	AttrVariableName = "uefi.variable_name"
	AttrVariableGUID = "uefi.variable_guid"
	AttrVariableUID  = "uefi.variable_uid"
	AttrAttributes   = "uefi.attributes"
	AttrDataSize     = "uefi.data_size"
	AttrOwnerID      = "uefi.owner_id"
	AttrIndexSlot    = "uefi.index_slot"

	// ========================================================================
	// Authentication engine attributes
	// ========================================================================
	AttrAuthVerdict = "auth.verdict"
	AttrAuthReason  = "auth.reason"
	AttrAuthKind    = "auth.kind"

	// ========================================================================
	// Storage backend attributes
	// ========================================================================
	AttrStoreName = "store.name"
	AttrStoreType = "store.type"
	AttrBucket    = "storage.bucket"
	AttrKey       = "storage.key"
	AttrRegion    = "storage.region"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	// ========================================================================
	// RPC dispatch spans
	// ========================================================================
	SpanRPCDispatch = "rpc.dispatch"
	SpanRPCCall     = "rpc.call"
	SpanRPCSession  = "rpc.session"

	// ========================================================================
	// Management interface spans
	// ========================================================================
	SpanMgmtVersion        = "management.VERSION"
	SpanMgmtInterfaceQuery = "management.INTERFACE_ID_QUERY"
	SpanMgmtMemRetrieve    = "management.MEMORY_RETRIEVE"
	SpanMgmtMemRelinquish  = "management.MEMORY_RELINQUISH"

	// ========================================================================
	// UEFI variable store spans
	// ========================================================================
	SpanVarSetVariable       = "uefi.SetVariable"
	SpanVarGetVariable       = "uefi.GetVariable"
	SpanVarGetNextVariable   = "uefi.GetNextVariableName"
	SpanVarQueryVariableInfo = "uefi.QueryVariableInfo"
	SpanVarExitBootService   = "uefi.ExitBootService"
	SpanVarSetCheckProperty  = "uefi.SetVarCheckProperty"
	SpanVarGetCheckProperty  = "uefi.GetVarCheckProperty"
	SpanVarSyncIndex         = "uefi.sync_variable_index"
	SpanVarPurgeOrphans      = "uefi.purge_orphan_index_entries"

	// ========================================================================
	// Authentication engine spans
	// ========================================================================
	SpanAuthVariable    = "auth.authenticate_variable"
	SpanAuthSecureBoot  = "auth.authenticate_secure_boot_variable"
	SpanAuthPrivate     = "auth.authenticate_private_variable"
	SpanAuthVerifyPKCS7 = "auth.verify_pkcs7_signature"
	SpanAuthFingerprint = "auth.fingerprint"

	// ========================================================================
	// Storage backend spans
	// ========================================================================
	SpanStoreSet     = "store.set"
	SpanStoreGet     = "store.get"
	SpanStoreGetInfo = "store.get_info"
	SpanStoreRemove  = "store.remove"
	SpanStoreCreate  = "store.create"
)

// ClientID returns an attribute for the RPC client ID
func ClientID(id uint32) attribute.KeyValue {
	return attribute.Int64(AttrClientID, int64(id))
}

// SessionID returns an attribute for the caller session ID
func SessionID(id uint64) attribute.KeyValue {
	return attribute.Int64(AttrSessionID, int64(id))
}

// SharedMemID returns an attribute for a shared memory descriptor ID
func SharedMemID(id uint64) attribute.KeyValue {
	return attribute.Int64(AttrSharedMemID, int64(id))
}

// ServiceUUID returns an attribute for a formatted service UUID
func ServiceUUID(uuid string) attribute.KeyValue {
	return attribute.String(AttrServiceUUID, uuid)
}

// InterfaceID returns an attribute for the dispatched service interface ID
func InterfaceID(id uint8) attribute.KeyValue {
	return attribute.Int(AttrInterfaceID, int(id))
}

// Opcode returns an attribute for the dispatched opcode
func Opcode(op uint16) attribute.KeyValue {
	return attribute.Int(AttrOpcode, int(op))
}

// Endpoint returns an attribute for the service endpoint name
func Endpoint(name string) attribute.KeyValue {
	return attribute.String(AttrEndpoint, name)
}

// RPCStatus returns an attribute for an RPC layer status code
func RPCStatus(status int32) attribute.KeyValue {
	return attribute.Int(AttrRPCStatus, int(status))
}

// ServiceStatus returns an attribute for a service-specific status code
func ServiceStatus(status int64) attribute.KeyValue {
	return attribute.Int64(AttrServiceStatus, status)
}

// StatusMsg returns an attribute for a human-readable status message
func StatusMsg(msg string) attribute.KeyValue {
	return attribute.String(AttrStatusMsg, msg)
}

// VariableName returns an attribute for a UEFI variable name
func VariableName(name string) attribute.KeyValue {
	return attribute.String(AttrVariableName, name)
}

// VariableGUID returns an attribute for a UEFI variable vendor GUID
func VariableGUID(guid string) attribute.KeyValue {
	return attribute.String(AttrVariableGUID, guid)
}

// VariableUID returns an attribute for the internal dense variable UID
func VariableUID(uid uint64) attribute.KeyValue {
	return attribute.Int64(AttrVariableUID, int64(uid))
}

// Attributes returns an attribute for an EFI_VARIABLE_* attribute bitmask
func Attributes(attrs uint32) attribute.KeyValue {
	return attribute.Int64(AttrAttributes, int64(attrs))
}

// DataSize returns an attribute for a variable payload size
func DataSize(size int) attribute.KeyValue {
	return attribute.Int(AttrDataSize, size)
}

// OwnerID returns an attribute for the owning security domain ID
func OwnerID(id uint32) attribute.KeyValue {
	return attribute.Int64(AttrOwnerID, int64(id))
}

// IndexSlot returns an attribute for the active variable index storage UID
func IndexSlot(uid uint64) attribute.KeyValue {
	return attribute.Int64(AttrIndexSlot, int64(uid))
}

// AuthVerdict returns an attribute for an authentication verdict
func AuthVerdict(verdict string) attribute.KeyValue {
	return attribute.String(AttrAuthVerdict, verdict)
}

// AuthReason returns an attribute for the reason behind an authentication verdict
func AuthReason(reason string) attribute.KeyValue {
	return attribute.String(AttrAuthReason, reason)
}

// AuthKind returns an attribute for the kind of authenticated variable
func AuthKind(kind string) attribute.KeyValue {
	return attribute.String(AttrAuthKind, kind)
}

// FingerprintHex returns an attribute for a fingerprint rendered as hex
func FingerprintHex(fingerprint []byte) attribute.KeyValue {
	return attribute.String("auth.fingerprint", fmt.Sprintf("%x", fingerprint))
}

// StoreName returns an attribute for a named store identifier
func StoreName(name string) attribute.KeyValue {
	return attribute.String(AttrStoreName, name)
}

// StoreType returns an attribute for store type (memory, badger, s3)
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// Bucket returns an attribute for an S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for an S3 object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Region returns an attribute for a cloud region
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// StartRPCSpan starts a span for a dispatched RPC interface/opcode call.
func StartRPCSpan(ctx context.Context, interfaceID uint8, opcode uint16, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		InterfaceID(interfaceID),
		Opcode(opcode),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanRPCDispatch, trace.WithAttributes(allAttrs...))
}

// StartVariableSpan starts a span for a UEFI variable store operation.
func StartVariableSpan(ctx context.Context, spanName string, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		VariableName(name),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartAuthSpan starts a span for an authentication engine operation.
func StartAuthSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, spanName, trace.WithAttributes(attrs...))
}

// StartStoreSpan starts a span for a storage backend operation.
func StartStoreSpan(ctx context.Context, operation string, storeType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		StoreType(storeType),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "store."+operation, trace.WithAttributes(allAttrs...))
}
