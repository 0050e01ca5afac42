package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "ts-core", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, ClientID(1000))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("ClientID", func(t *testing.T) {
		attr := ClientID(1000)
		assert.Equal(t, AttrClientID, string(attr.Key))
		assert.Equal(t, int64(1000), attr.Value.AsInt64())
	})

	t.Run("SessionID", func(t *testing.T) {
		attr := SessionID(42)
		assert.Equal(t, AttrSessionID, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("ServiceUUID", func(t *testing.T) {
		attr := ServiceUUID("ba5311ca-3f86-46a8-90ba-a0ce3cc49fc6")
		assert.Equal(t, AttrServiceUUID, string(attr.Key))
		assert.Equal(t, "ba5311ca-3f86-46a8-90ba-a0ce3cc49fc6", attr.Value.AsString())
	})

	t.Run("InterfaceID", func(t *testing.T) {
		attr := InterfaceID(2)
		assert.Equal(t, AttrInterfaceID, string(attr.Key))
		assert.Equal(t, int64(2), attr.Value.AsInt64())
	})

	t.Run("Opcode", func(t *testing.T) {
		attr := Opcode(5)
		assert.Equal(t, AttrOpcode, string(attr.Key))
		assert.Equal(t, int64(5), attr.Value.AsInt64())
	})

	t.Run("Endpoint", func(t *testing.T) {
		attr := Endpoint("smm-variable")
		assert.Equal(t, AttrEndpoint, string(attr.Key))
		assert.Equal(t, "smm-variable", attr.Value.AsString())
	})

	t.Run("RPCStatus", func(t *testing.T) {
		attr := RPCStatus(0)
		assert.Equal(t, AttrRPCStatus, string(attr.Key))
		assert.Equal(t, int64(0), attr.Value.AsInt64())
	})

	t.Run("ServiceStatus", func(t *testing.T) {
		attr := ServiceStatus(0)
		assert.Equal(t, AttrServiceStatus, string(attr.Key))
		assert.Equal(t, int64(0), attr.Value.AsInt64())
	})

	t.Run("VariableName", func(t *testing.T) {
		attr := VariableName("PK")
		assert.Equal(t, AttrVariableName, string(attr.Key))
		assert.Equal(t, "PK", attr.Value.AsString())
	})

	t.Run("VariableGUID", func(t *testing.T) {
		attr := VariableGUID("8be4df61-93ca-11d2-aa0d-00e098032b8c")
		assert.Equal(t, AttrVariableGUID, string(attr.Key))
		assert.Equal(t, "8be4df61-93ca-11d2-aa0d-00e098032b8c", attr.Value.AsString())
	})

	t.Run("VariableUID", func(t *testing.T) {
		attr := VariableUID(7)
		assert.Equal(t, AttrVariableUID, string(attr.Key))
		assert.Equal(t, int64(7), attr.Value.AsInt64())
	})

	t.Run("Attributes", func(t *testing.T) {
		attr := Attributes(0x23)
		assert.Equal(t, AttrAttributes, string(attr.Key))
		assert.Equal(t, int64(0x23), attr.Value.AsInt64())
	})

	t.Run("DataSize", func(t *testing.T) {
		attr := DataSize(1024)
		assert.Equal(t, AttrDataSize, string(attr.Key))
		assert.Equal(t, int64(1024), attr.Value.AsInt64())
	})

	t.Run("OwnerID", func(t *testing.T) {
		attr := OwnerID(1)
		assert.Equal(t, AttrOwnerID, string(attr.Key))
		assert.Equal(t, int64(1), attr.Value.AsInt64())
	})

	t.Run("IndexSlot", func(t *testing.T) {
		attr := IndexSlot(1)
		assert.Equal(t, AttrIndexSlot, string(attr.Key))
		assert.Equal(t, int64(1), attr.Value.AsInt64())
	})

	t.Run("AuthVerdict", func(t *testing.T) {
		attr := AuthVerdict("accepted")
		assert.Equal(t, AttrAuthVerdict, string(attr.Key))
		assert.Equal(t, "accepted", attr.Value.AsString())
	})

	t.Run("AuthReason", func(t *testing.T) {
		attr := AuthReason("timestamp not greater than stored value")
		assert.Equal(t, AttrAuthReason, string(attr.Key))
		assert.Equal(t, "timestamp not greater than stored value", attr.Value.AsString())
	})

	t.Run("AuthKind", func(t *testing.T) {
		attr := AuthKind("secure-boot")
		assert.Equal(t, AttrAuthKind, string(attr.Key))
		assert.Equal(t, "secure-boot", attr.Value.AsString())
	})

	t.Run("FingerprintHex", func(t *testing.T) {
		attr := FingerprintHex([]byte{0x01, 0x02, 0x03, 0x04})
		assert.Equal(t, "auth.fingerprint", string(attr.Key))
		assert.Equal(t, "01020304", attr.Value.AsString())
	})

	t.Run("StoreName", func(t *testing.T) {
		attr := StoreName("primary")
		assert.Equal(t, AttrStoreName, string(attr.Key))
		assert.Equal(t, "primary", attr.Value.AsString())
	})

	t.Run("StoreType", func(t *testing.T) {
		attr := StoreType("badger")
		assert.Equal(t, AttrStoreType, string(attr.Key))
		assert.Equal(t, "badger", attr.Value.AsString())
	})

	t.Run("Bucket", func(t *testing.T) {
		attr := Bucket("my-bucket")
		assert.Equal(t, AttrBucket, string(attr.Key))
		assert.Equal(t, "my-bucket", attr.Value.AsString())
	})

	t.Run("StorageKey", func(t *testing.T) {
		attr := StorageKey("path/to/object")
		assert.Equal(t, AttrKey, string(attr.Key))
		assert.Equal(t, "path/to/object", attr.Value.AsString())
	})

	t.Run("Region", func(t *testing.T) {
		attr := Region("eu-west-1")
		assert.Equal(t, AttrRegion, string(attr.Key))
		assert.Equal(t, "eu-west-1", attr.Value.AsString())
	})
}

func TestStartRPCSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartRPCSpan(ctx, 2, 5)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartRPCSpan(ctx, 2, 1, ClientID(1000), SessionID(42))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartVariableSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartVariableSpan(ctx, SpanVarSetVariable, "PK")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartVariableSpan(ctx, SpanVarGetVariable, "db", Attributes(0x23), DataSize(64))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartAuthSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartAuthSpan(ctx, SpanAuthVariable)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartAuthSpan(ctx, SpanAuthSecureBoot, AuthKind("secure-boot"))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartStoreSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartStoreSpan(ctx, "set", "badger")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartStoreSpan(ctx, "get", "s3", Bucket("my-bucket"), StorageKey("path/to/object"))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}
