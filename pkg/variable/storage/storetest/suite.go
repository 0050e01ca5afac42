package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/storage"
)

// BackendFactory creates a fresh, empty storage.Backend for each test.
type BackendFactory func(t *testing.T) storage.Backend

// RunConformanceSuite runs the full conformance suite against the given
// backend factory. Each test gets its own backend instance.
func RunConformanceSuite(t *testing.T, factory BackendFactory) {
	t.Helper()

	t.Run("SetGetRoundTrip", func(t *testing.T) { testSetGetRoundTrip(t, factory) })
	t.Run("GetInfoMissing", func(t *testing.T) { testGetInfoMissing(t, factory) })
	t.Run("RemoveMissing", func(t *testing.T) { testRemoveMissing(t, factory) })
	t.Run("CreateThenSetExtended", func(t *testing.T) { testCreateThenSetExtended(t, factory) })
	t.Run("WriteOnceRejectsOverwrite", func(t *testing.T) { testWriteOnceRejectsOverwrite(t, factory) })
	t.Run("GetOffsetBeyondSize", func(t *testing.T) { testGetOffsetBeyondSize(t, factory) })
}

func testSetGetRoundTrip(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	ctx := context.Background()

	require.Equal(t, efistatus.PSASuccess, backend.Set(ctx, 1, 100, []byte("hello"), storage.FlagNone))

	info, status := backend.GetInfo(ctx, 1, 100)
	require.Equal(t, efistatus.PSASuccess, status)
	require.Equal(t, 5, info.Size)

	buf := make([]byte, 5)
	n, status := backend.Get(ctx, 1, 100, 0, buf)
	require.Equal(t, efistatus.PSASuccess, status)
	require.Equal(t, "hello", string(buf[:n]))

	require.Equal(t, efistatus.PSASuccess, backend.Remove(ctx, 1, 100))
	_, status = backend.GetInfo(ctx, 1, 100)
	require.Equal(t, efistatus.PSAErrorDoesNotExist, status)
}

func testGetInfoMissing(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	_, status := backend.GetInfo(context.Background(), 1, 999)
	require.Equal(t, efistatus.PSAErrorDoesNotExist, status)
}

func testRemoveMissing(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	status := backend.Remove(context.Background(), 1, 999)
	require.Equal(t, efistatus.PSAErrorDoesNotExist, status)
}

func testCreateThenSetExtended(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	ctx := context.Background()

	require.Equal(t, efistatus.PSASuccess, backend.Create(ctx, 1, 200, 0, storage.FlagNone))
	require.Equal(t, efistatus.PSASuccess, backend.SetExtended(ctx, 1, 200, 0, []byte("abc")))
	require.Equal(t, efistatus.PSASuccess, backend.SetExtended(ctx, 1, 200, 3, []byte("def")))

	buf := make([]byte, 6)
	n, status := backend.Get(ctx, 1, 200, 0, buf)
	require.Equal(t, efistatus.PSASuccess, status)
	require.Equal(t, "abcdef", string(buf[:n]))
}

func testWriteOnceRejectsOverwrite(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	ctx := context.Background()

	require.Equal(t, efistatus.PSASuccess, backend.Set(ctx, 1, 300, []byte("v1"), storage.FlagWriteOnce))
	status := backend.Set(ctx, 1, 300, []byte("v2"), storage.FlagWriteOnce)
	require.Equal(t, efistatus.PSAErrorNotPermitted, status)
}

func testGetOffsetBeyondSize(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	ctx := context.Background()

	require.Equal(t, efistatus.PSASuccess, backend.Set(ctx, 1, 400, []byte("ab"), storage.FlagNone))
	_, status := backend.Get(ctx, 1, 400, 10, make([]byte, 4))
	require.Equal(t, efistatus.PSAErrorInvalidArgument, status)
}
