// Package status defines the two status channels carried by every RPC
// reply: the transport/dispatch-level RPC status and the wider
// service-specific status (PSA status for attestation/crypto/storage
// services, EFI status for the UEFI variable store).
package status

import "fmt"

// RPCStatus is the transport/dispatch layer status code. Zero is success;
// all failure codes are negative, mirroring the signed int32_t taxonomy of
// the underlying FF-A direct-message ABI.
type RPCStatus int32

const (
	Success              RPCStatus = 0
	ErrorInternal        RPCStatus = -1
	ErrorInvalidValue    RPCStatus = -2
	ErrorNotFound        RPCStatus = -3
	ErrorInvalidState    RPCStatus = -4
	ErrorTransportLayer  RPCStatus = -5
	ErrorInvalidRequest  RPCStatus = -6
	ErrorInvalidResponse RPCStatus = -7
	ErrorResourceFailure RPCStatus = -8
)

func (s RPCStatus) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case ErrorInternal:
		return "ERROR_INTERNAL"
	case ErrorInvalidValue:
		return "ERROR_INVALID_VALUE"
	case ErrorNotFound:
		return "ERROR_NOT_FOUND"
	case ErrorInvalidState:
		return "ERROR_INVALID_STATE"
	case ErrorTransportLayer:
		return "ERROR_TRANSPORT_LAYER"
	case ErrorInvalidRequest:
		return "ERROR_INVALID_REQUEST_BODY"
	case ErrorInvalidResponse:
		return "ERROR_INVALID_RESPONSE_BODY"
	case ErrorResourceFailure:
		return "ERROR_RESOURCE_FAILURE"
	default:
		return fmt.Sprintf("RPC_STATUS(%d)", int32(s))
	}
}

// IsSuccess reports whether s is the success status.
func (s RPCStatus) IsSuccess() bool {
	return s == Success
}

// ServiceStatus is the service-specific status channel. It is wider (64-bit)
// than RPCStatus so it can carry PSA status codes and EFI status codes
// without aliasing either namespace.
type ServiceStatus int64

// RPCError is the error type returned by every caller/session/provider
// operation that fails at the RPC layer (as opposed to failing inside a
// service with a service-specific status).
type RPCError struct {
	Code    RPCStatus
	Message string
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code.String()
}

// Status returns the RPCStatus carried by the error, for callers that want
// to propagate the status code rather than the error value itself.
func (e *RPCError) Status() RPCStatus {
	return e.Code
}

// NewInternalError creates an RPCError for an unexpected internal failure.
func NewInternalError(message string) *RPCError {
	return &RPCError{Code: ErrorInternal, Message: message}
}

// NewInvalidValueError creates an RPCError for a malformed argument to a
// framework call.
func NewInvalidValueError(message string) *RPCError {
	return &RPCError{Code: ErrorInvalidValue, Message: message}
}

// NewNotFoundError creates an RPCError for a missing handler or endpoint.
func NewNotFoundError(message string) *RPCError {
	return &RPCError{Code: ErrorNotFound, Message: message}
}

// NewInvalidStateError creates an RPCError for an illegal state transition,
// e.g. a session transaction already in progress or a session not open.
func NewInvalidStateError(message string) *RPCError {
	return &RPCError{Code: ErrorInvalidState, Message: message}
}

// NewTransportLayerError creates an RPCError for a failure in the
// underlying transport (timeout, disconnected peer, truncated message).
func NewTransportLayerError(message string) *RPCError {
	return &RPCError{Code: ErrorTransportLayer, Message: message}
}

// NewInvalidRequestError creates an RPCError for a request body that does
// not fit the allocated shared memory.
func NewInvalidRequestError(message string) *RPCError {
	return &RPCError{Code: ErrorInvalidRequest, Message: message}
}

// NewInvalidResponseError creates an RPCError for a response body that
// exceeds the allocated shared memory.
func NewInvalidResponseError(message string) *RPCError {
	return &RPCError{Code: ErrorInvalidResponse, Message: message}
}

// NewResourceFailureError creates an RPCError for exhaustion of a bounded
// resource (session table, shared-memory pool).
func NewResourceFailureError(message string) *RPCError {
	return &RPCError{Code: ErrorResourceFailure, Message: message}
}

// IsNotFound reports whether err is an RPCError with code ErrorNotFound.
func IsNotFound(err error) bool {
	var rpcErr *RPCError
	if e, ok := err.(*RPCError); ok {
		rpcErr = e
	}
	return rpcErr != nil && rpcErr.Code == ErrorNotFound
}

// IsInvalidState reports whether err is an RPCError with code ErrorInvalidState.
func IsInvalidState(err error) bool {
	var rpcErr *RPCError
	if e, ok := err.(*RPCError); ok {
		rpcErr = e
	}
	return rpcErr != nil && rpcErr.Code == ErrorInvalidState
}
