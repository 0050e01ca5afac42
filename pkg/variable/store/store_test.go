package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arm-trusted-services/ts-core/pkg/variable/auth"
	tscrypto "github.com/arm-trusted-services/ts-core/pkg/variable/crypto"
	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
	"github.com/arm-trusted-services/ts-core/pkg/variable/storage"
)

func newTestStore(t *testing.T) (*Store, storage.Backend) {
	t.Helper()
	persistentBackend := storage.NewMemory()
	persistent := Delegate{TotalCapacity: 1 << 20, Backend: persistentBackend}
	volatile := Delegate{TotalCapacity: 1 << 20, Backend: storage.NewMemory()}
	engine := auth.NewEngine(tscrypto.NewX509Verifier())

	s := New(1, 16, persistent, volatile, engine)
	require.Equal(t, efistatus.Success, s.Init(context.Background()))
	return s, persistentBackend
}

func TestSetGetVariableRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	guid := meta.Guid{0x01}
	name := meta.NameFromString("BootOrder")
	attrs := meta.AttrBootserviceAccess | meta.AttrNonVolatile
	data := []byte{0x00, 0x01}

	require.Equal(t, efistatus.Success, s.SetVariable(ctx, guid, name, attrs, data))

	got, gotAttrs, status := s.GetVariable(ctx, guid, name)
	require.Equal(t, efistatus.Success, status)
	require.Equal(t, data, got)
	require.Equal(t, attrs, gotAttrs)
}

func TestSetVariableEmptyPayloadDeletes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	guid := meta.Guid{0x02}
	name := meta.NameFromString("Temp")
	attrs := meta.AttrBootserviceAccess | meta.AttrNonVolatile

	require.Equal(t, efistatus.Success, s.SetVariable(ctx, guid, name, attrs, []byte("x")))
	require.Equal(t, efistatus.Success, s.SetVariable(ctx, guid, name, attrs, nil))

	_, _, status := s.GetVariable(ctx, guid, name)
	require.Equal(t, efistatus.ErrNotFound, status)
}

// TestSetVariableZeroAttributesDeletesRegardlessOfStoredAttributes covers
// the canonical client's remove_variable pattern: SetVariable(guid, name,
// "", 0) against a variable whose stored attributes are non-zero (e.g.
// BS|RT|NV). Attributes=0 carries neither BOOTSERVICE_ACCESS nor
// RUNTIME_ACCESS, so this must be treated as a delete outright and must
// never be run through the attribute-immutability check a non-delete
// update is subject to.
func TestSetVariableZeroAttributesDeletesRegardlessOfStoredAttributes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	guid := meta.Guid{0x09}
	name := meta.NameFromString("SecureBootEnable")
	attrs := meta.AttrBootserviceAccess | meta.AttrRuntimeAccess | meta.AttrNonVolatile

	require.Equal(t, efistatus.Success, s.SetVariable(ctx, guid, name, attrs, []byte{0x01}))

	status := s.SetVariable(ctx, guid, name, 0, nil)
	require.Equal(t, efistatus.Success, status)

	_, _, status = s.GetVariable(ctx, guid, name)
	require.Equal(t, efistatus.ErrNotFound, status)
}

func TestSetVariableRejectsAttributeChangeOnUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	guid := meta.Guid{0x03}
	name := meta.NameFromString("Flag")

	require.Equal(t, efistatus.Success,
		s.SetVariable(ctx, guid, name, meta.AttrBootserviceAccess|meta.AttrNonVolatile, []byte("a")))

	status := s.SetVariable(ctx, guid, name, meta.AttrBootserviceAccess, []byte("b"))
	require.Equal(t, efistatus.ErrInvalidParameter, status)
}

func TestRuntimeAccessRequiresBootserviceAccess(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	status := s.SetVariable(ctx, meta.Guid{0x04}, meta.NameFromString("X"), meta.AttrRuntimeAccess, []byte("a"))
	require.Equal(t, efistatus.ErrInvalidParameter, status)
}

func TestBootServiceOnlyVariableHiddenAtRuntime(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	guid := meta.Guid{0x05}
	name := meta.NameFromString("BootOnly")
	attrs := meta.AttrBootserviceAccess | meta.AttrNonVolatile

	require.Equal(t, efistatus.Success, s.SetVariable(ctx, guid, name, attrs, []byte("a")))

	s.ExitBootService()

	_, _, status := s.GetVariable(ctx, guid, name)
	require.Equal(t, efistatus.ErrNotFound, status)
}

// TestBootServiceOnlyVariableUntouchableAtRuntime covers the write side of
// the access gate: once boot services have exited, an existing variable
// without RUNTIME_ACCESS can be neither updated nor deleted, because the
// gate consults the variable's stored attributes rather than whatever the
// request carries.
func TestBootServiceOnlyVariableUntouchableAtRuntime(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	guid := meta.Guid{0x07}
	name := meta.NameFromString("BootSetting")
	attrs := meta.AttrBootserviceAccess | meta.AttrNonVolatile

	require.Equal(t, efistatus.Success, s.SetVariable(ctx, guid, name, attrs, []byte("a")))

	s.ExitBootService()

	status := s.SetVariable(ctx, guid, name, attrs, []byte("b"))
	require.Equal(t, efistatus.ErrNotFound, status)

	status = s.SetVariable(ctx, guid, name, 0, nil)
	require.Equal(t, efistatus.ErrNotFound, status)
}

// TestCreateBootServiceOnlyVariableAtRuntime pins the other half of the
// same rule: a brand-new entry has zero stored attributes, so the gate is
// a no-op on create and the write lands even though the resulting
// variable is immediately invisible to runtime reads.
func TestCreateBootServiceOnlyVariableAtRuntime(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.ExitBootService()

	guid := meta.Guid{0x08}
	name := meta.NameFromString("LateBootSetting")
	attrs := meta.AttrBootserviceAccess | meta.AttrNonVolatile

	require.Equal(t, efistatus.Success, s.SetVariable(ctx, guid, name, attrs, []byte("a")))

	_, _, status := s.GetVariable(ctx, guid, name)
	require.Equal(t, efistatus.ErrNotFound, status)
}

func TestAppendWriteAccumulatesPayload(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	guid := meta.Guid{0x06}
	name := meta.NameFromString("Log")
	baseAttrs := meta.AttrBootserviceAccess | meta.AttrNonVolatile

	require.Equal(t, efistatus.Success, s.SetVariable(ctx, guid, name, baseAttrs, []byte("a")))
	require.Equal(t, efistatus.Success,
		s.SetVariable(ctx, guid, name, baseAttrs|meta.AttrAppendWrite, []byte("b")))

	got, _, status := s.GetVariable(ctx, guid, name)
	require.Equal(t, efistatus.Success, status)
	require.Equal(t, []byte("ab"), got)
}

func TestGetNextVariableNameEnumeratesAndSkipsInaccessible(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	nvBoot := meta.AttrBootserviceAccess | meta.AttrNonVolatile
	require.Equal(t, efistatus.Success,
		s.SetVariable(ctx, meta.Guid{0x10}, meta.NameFromString("Alpha"), nvBoot, []byte("a")))
	require.Equal(t, efistatus.Success,
		s.SetVariable(ctx, meta.Guid{0x11}, meta.NameFromString("Beta"), nvBoot, []byte("b")))

	_, n1, status := s.GetNextVariableName(ctx, meta.Guid{}, nil)
	require.Equal(t, efistatus.Success, status)
	require.Equal(t, "Alpha", n1.String())

	_, n2, status := s.GetNextVariableName(ctx, meta.Guid{0x10}, meta.NameFromString("Alpha"))
	require.Equal(t, efistatus.Success, status)
	require.Equal(t, "Beta", n2.String())

	_, _, status = s.GetNextVariableName(ctx, meta.Guid{0x11}, meta.NameFromString("Beta"))
	require.Equal(t, efistatus.ErrNotFound, status)
}

func TestQueryVariableInfoReflectsUsage(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	attrs := meta.AttrBootserviceAccess | meta.AttrNonVolatile
	require.Equal(t, efistatus.Success,
		s.SetVariable(ctx, meta.Guid{0x20}, meta.NameFromString("Sized"), attrs, []byte("0123456789")))

	maxStorage, remaining, maxVarSize, status := s.QueryVariableInfo(ctx, attrs)
	require.Equal(t, efistatus.Success, status)
	require.Equal(t, uint64(1<<20), maxStorage)
	require.Less(t, remaining, maxStorage)
	require.Equal(t, uint64(DefaultMaxVariableSize), maxVarSize)
}

func TestIndexSurvivesReloadAcrossTwoSlotCommit(t *testing.T) {
	ctx := context.Background()
	persistentBackend := storage.NewMemory()
	persistent := Delegate{TotalCapacity: 1 << 20, Backend: persistentBackend}
	engine := auth.NewEngine(tscrypto.NewX509Verifier())

	attrs := meta.AttrBootserviceAccess | meta.AttrNonVolatile
	guid := meta.Guid{0x30}
	name := meta.NameFromString("Sticky")

	s1 := New(1, 16, persistent, Delegate{TotalCapacity: 1 << 20, Backend: storage.NewMemory()}, engine)
	require.Equal(t, efistatus.Success, s1.Init(ctx))
	require.Equal(t, efistatus.Success, s1.SetVariable(ctx, guid, name, attrs, []byte("v1")))

	require.Equal(t, efistatus.Success, s1.SetVariable(ctx, guid, name, attrs, []byte("v2")))

	s2 := New(1, 16, persistent, Delegate{TotalCapacity: 1 << 20, Backend: storage.NewMemory()}, engine)
	require.Equal(t, efistatus.Success, s2.Init(ctx))

	got, _, status := s2.GetVariable(ctx, guid, name)
	require.Equal(t, efistatus.Success, status)
	require.Equal(t, []byte("v2"), got)
}

// TestZeroAttributeDeleteDoesNotResurrectOnReload pins down the delegate
// and sync selection for a delete that carries no attributes: the stored
// attributes (NV here) must drive both, or the object survives in the
// persistent backend and the stale index slot resurrects the variable on
// the next load.
func TestZeroAttributeDeleteDoesNotResurrectOnReload(t *testing.T) {
	ctx := context.Background()
	persistentBackend := storage.NewMemory()
	persistent := Delegate{TotalCapacity: 1 << 20, Backend: persistentBackend}
	engine := auth.NewEngine(tscrypto.NewX509Verifier())

	guid := meta.Guid{0x31}
	name := meta.NameFromString("Ephemeral")
	attrs := meta.AttrBootserviceAccess | meta.AttrRuntimeAccess | meta.AttrNonVolatile

	s1 := New(1, 16, persistent, Delegate{TotalCapacity: 1 << 20, Backend: storage.NewMemory()}, engine)
	require.Equal(t, efistatus.Success, s1.Init(ctx))
	require.Equal(t, efistatus.Success, s1.SetVariable(ctx, guid, name, attrs, []byte("v1")))
	require.Equal(t, efistatus.Success, s1.SetVariable(ctx, guid, name, 0, nil))

	s2 := New(1, 16, persistent, Delegate{TotalCapacity: 1 << 20, Backend: storage.NewMemory()}, engine)
	require.Equal(t, efistatus.Success, s2.Init(ctx))

	_, _, status := s2.GetVariable(ctx, guid, name)
	require.Equal(t, efistatus.ErrNotFound, status)
}

func TestSetVarCheckPropertyEnforcesSizeConstraint(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	guid := meta.Guid{0x40}
	name := meta.NameFromString("Bounded")
	attrs := meta.AttrBootserviceAccess | meta.AttrNonVolatile

	constraints := meta.VariableConstraints{Revision: meta.ConstraintsRevision, MinSize: 1, MaxSize: 4, Attributes: attrs}
	require.Equal(t, efistatus.Success, s.SetVarCheckProperty(ctx, guid, name, constraints))

	require.Equal(t, efistatus.Success, s.SetVariable(ctx, guid, name, attrs, []byte("ok")))

	status := s.SetVariable(ctx, guid, name, attrs, []byte("too-long"))
	require.Equal(t, efistatus.ErrInvalidParameter, status)

	got, status := s.GetVarCheckProperty(guid, name)
	require.Equal(t, efistatus.Success, status)
	require.Equal(t, constraints, got)
}
