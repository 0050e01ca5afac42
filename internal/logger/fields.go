package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// RPC dispatch
	// ========================================================================
	KeyInterfaceID = "interface_id"   // Service interface ID being dispatched
	KeyOpcode      = "opcode"         // Opcode of the function being invoked
	KeyEndpoint    = "endpoint"       // Service endpoint (partition) name
	KeyServiceUUID = "service_uuid"   // Service UUID, formatted
	KeyRPCStatus   = "rpc_status"     // RPC layer status code
	KeyServiceStat = "service_status" // Service-specific status code
	KeyStatusMsg   = "status_msg"     // Human-readable status message

	// ========================================================================
	// Caller / session
	// ========================================================================
	KeyClientID    = "client_id"     // RPC client ID
	KeySessionID   = "session_id"    // Caller session ID
	KeySharedMemID = "shared_mem_id" // Shared memory descriptor ID
	KeySharedMemSz = "shared_mem_size"

	// ========================================================================
	// UEFI variable store
	// ========================================================================
	KeyVariableName = "variable_name" // UEFI variable name (UTF-16 rendered as string)
	KeyVariableGUID = "variable_guid" // UEFI variable vendor GUID
	KeyVariableUID  = "variable_uid"  // Internal dense variable UID
	KeyAttributes   = "attributes"    // EFI_VARIABLE_* attribute bitmask
	KeyDataSize     = "data_size"     // Variable payload size in bytes
	KeyOwnerID      = "owner_id"      // Owning security domain / partition ID
	KeyIndexSlot    = "index_slot"    // Active variable index persistent storage UID

	// ========================================================================
	// Authentication engine
	// ========================================================================
	KeyAuthVerdict = "auth_verdict" // accepted / rejected
	KeyAuthReason  = "auth_reason"  // Reason for an authentication verdict
	KeyAuthKind    = "auth_kind"    // secure-boot / private

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code
	KeySource     = "source"      // Data source: cache, persistent_store, volatile_store
	KeyOperation  = "operation"   // Sub-operation type for complex operations

	// ========================================================================
	// Storage backend
	// ========================================================================
	KeyStoreName  = "store_name"  // Named store identifier from registry
	KeyStoreType  = "store_type"  // Store type: memory, badger, s3
	KeyBucket     = "bucket"      // Cloud bucket name (S3)
	KeyKey        = "key"         // Object key in cloud storage
	KeyRegion     = "region"      // Cloud region
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
)

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// InterfaceID returns a slog.Attr for the dispatched service interface ID
func InterfaceID(id uint8) slog.Attr {
	return slog.Any(KeyInterfaceID, id)
}

// Opcode returns a slog.Attr for the dispatched opcode
func Opcode(op uint16) slog.Attr {
	return slog.Any(KeyOpcode, op)
}

// Endpoint returns a slog.Attr for the service endpoint name
func Endpoint(name string) slog.Attr {
	return slog.String(KeyEndpoint, name)
}

// ServiceUUID returns a slog.Attr for a formatted service UUID
func ServiceUUID(uuid string) slog.Attr {
	return slog.String(KeyServiceUUID, uuid)
}

// RPCStatus returns a slog.Attr for an RPC layer status code
func RPCStatus(status int32) slog.Attr {
	return slog.Int(KeyRPCStatus, int(status))
}

// ServiceStatus returns a slog.Attr for a service-specific status code
func ServiceStatus(status int64) slog.Attr {
	return slog.Int64(KeyServiceStat, status)
}

// StatusMsg returns a slog.Attr for human-readable status message
func StatusMsg(msg string) slog.Attr {
	return slog.String(KeyStatusMsg, msg)
}

// ClientID returns a slog.Attr for the RPC client ID
func ClientID(id uint32) slog.Attr {
	return slog.Any(KeyClientID, id)
}

// SessionID returns a slog.Attr for the caller session ID
func SessionID(id uint64) slog.Attr {
	return slog.Uint64(KeySessionID, id)
}

// SharedMemID returns a slog.Attr for a shared memory descriptor ID
func SharedMemID(id uint64) slog.Attr {
	return slog.Uint64(KeySharedMemID, id)
}

// SharedMemSize returns a slog.Attr for a shared memory descriptor size
func SharedMemSize(size int) slog.Attr {
	return slog.Int(KeySharedMemSz, size)
}

// VariableName returns a slog.Attr for a UEFI variable name
func VariableName(name string) slog.Attr {
	return slog.String(KeyVariableName, name)
}

// VariableGUID returns a slog.Attr for a UEFI variable vendor GUID
func VariableGUID(guid string) slog.Attr {
	return slog.String(KeyVariableGUID, guid)
}

// VariableUID returns a slog.Attr for the internal dense variable UID
func VariableUID(uid uint64) slog.Attr {
	return slog.Uint64(KeyVariableUID, uid)
}

// Attributes returns a slog.Attr for an EFI_VARIABLE_* attribute bitmask
func Attributes(attrs uint32) slog.Attr {
	return slog.Any(KeyAttributes, attrs)
}

// DataSize returns a slog.Attr for a variable payload size
func DataSize(size int) slog.Attr {
	return slog.Int(KeyDataSize, size)
}

// OwnerID returns a slog.Attr for the owning security domain ID
func OwnerID(id uint32) slog.Attr {
	return slog.Any(KeyOwnerID, id)
}

// IndexSlot returns a slog.Attr for the active variable index storage UID
func IndexSlot(uid uint64) slog.Attr {
	return slog.Uint64(KeyIndexSlot, uid)
}

// AuthVerdict returns a slog.Attr for an authentication verdict
func AuthVerdict(verdict string) slog.Attr {
	return slog.String(KeyAuthVerdict, verdict)
}

// AuthReason returns a slog.Attr for the reason behind an authentication verdict
func AuthReason(reason string) slog.Attr {
	return slog.String(KeyAuthReason, reason)
}

// AuthKind returns a slog.Attr for the kind of authenticated variable
func AuthKind(kind string) slog.Attr {
	return slog.String(KeyAuthKind, kind)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for numeric error code
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Source returns a slog.Attr for data source
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}

// Operation returns a slog.Attr for sub-operation type
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// StoreName returns a slog.Attr for named store identifier
func StoreName(name string) slog.Attr {
	return slog.String(KeyStoreName, name)
}

// StoreType returns a slog.Attr for store type
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// Bucket returns a slog.Attr for cloud bucket name
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Key returns a slog.Attr for object key in cloud storage
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Region returns a slog.Attr for cloud region
func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

// Attempt returns a slog.Attr for retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// HandleHex formats an arbitrary byte blob as a hex string attribute, kept
// around for dumping opaque shared-memory or fingerprint bytes in debug logs.
func HandleHex(key string, b []byte) slog.Attr {
	return slog.String(key, fmt.Sprintf("%x", b))
}
