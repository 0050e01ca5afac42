package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRPCStatusString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status RPCStatus
		want   string
	}{
		{Success, "SUCCESS"},
		{ErrorInternal, "ERROR_INTERNAL"},
		{ErrorInvalidValue, "ERROR_INVALID_VALUE"},
		{ErrorNotFound, "ERROR_NOT_FOUND"},
		{ErrorInvalidState, "ERROR_INVALID_STATE"},
		{ErrorTransportLayer, "ERROR_TRANSPORT_LAYER"},
		{ErrorInvalidRequest, "ERROR_INVALID_REQUEST_BODY"},
		{ErrorInvalidResponse, "ERROR_INVALID_RESPONSE_BODY"},
		{ErrorResourceFailure, "ERROR_RESOURCE_FAILURE"},
		{RPCStatus(-99), "RPC_STATUS(-99)"},
	}

	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.status.String())
		})
	}
}

func TestIsSuccess(t *testing.T) {
	t.Parallel()

	assert.True(t, Success.IsSuccess())
	assert.False(t, ErrorInternal.IsSuccess())
}

func TestRPCErrorFactories(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  *RPCError
		code RPCStatus
	}{
		{"internal", NewInternalError("boom"), ErrorInternal},
		{"invalid-value", NewInvalidValueError("bad arg"), ErrorInvalidValue},
		{"not-found", NewNotFoundError("no such session"), ErrorNotFound},
		{"invalid-state", NewInvalidStateError("transaction in progress"), ErrorInvalidState},
		{"transport", NewTransportLayerError("timeout"), ErrorTransportLayer},
		{"invalid-request", NewInvalidRequestError("too large"), ErrorInvalidRequest},
		{"invalid-response", NewInvalidResponseError("overflow"), ErrorInvalidResponse},
		{"resource", NewResourceFailureError("exhausted"), ErrorResourceFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.code, tc.err.Status())
			assert.Contains(t, tc.err.Error(), tc.code.String())
		})
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(NewNotFoundError("x")))
	assert.False(t, IsNotFound(NewInternalError("x")))
	assert.False(t, IsNotFound(nil))
}

func TestIsInvalidState(t *testing.T) {
	t.Parallel()

	assert.True(t, IsInvalidState(NewInvalidStateError("x")))
	assert.False(t, IsInvalidState(NewNotFoundError("x")))
}
