package uefismm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arm-trusted-services/ts-core/pkg/audit"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/caller/direct"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/shmem"
	rpcstatus "github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
	"github.com/arm-trusted-services/ts-core/pkg/service/uefismm"
	"github.com/arm-trusted-services/ts-core/pkg/variable/auth"
	"github.com/arm-trusted-services/ts-core/pkg/variable/authoring"
	tscrypto "github.com/arm-trusted-services/ts-core/pkg/variable/crypto"
	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
	"github.com/arm-trusted-services/ts-core/pkg/variable/storage"
	"github.com/arm-trusted-services/ts-core/pkg/variable/store"
)

// newTestClient stands up the full server-side stack (store behind the
// SMM_VARIABLE provider) and returns a direct caller with an open session
// and a shared-memory buffer, the way a real client talks to the service.
func newTestClient(t *testing.T) (*direct.Caller, *shmem.SharedMemory) {
	t.Helper()

	s := store.New(1, 16,
		store.Delegate{TotalCapacity: 1 << 20, Backend: storage.NewMemory()},
		store.Delegate{TotalCapacity: 1 << 20, Backend: storage.NewMemory()},
		auth.NewEngine(tscrypto.NewX509Verifier()))
	require.Equal(t, efistatus.Success, s.Init(context.Background()))

	p := uefismm.New(uuid.SMMVariable, s, nil)
	c := direct.New(p)

	rpcStatus, err := c.FindAndOpenSession(context.Background(), uuid.SMMVariable)
	require.NoError(t, err)
	require.Equal(t, rpcstatus.Success, rpcStatus)

	var mem shmem.SharedMemory
	require.Equal(t, rpcstatus.Success, c.CreateSharedMemory(context.Background(), 4096, &mem))

	t.Cleanup(func() {
		c.ReleaseSharedMemory(context.Background(), &mem)
		c.CloseSession(context.Background())
	})

	return c, &mem
}

func invoke(t *testing.T, c *direct.Caller, mem *shmem.SharedMemory, opcode uint32, body []byte) (efistatus.Status, []byte) {
	t.Helper()
	n := copy(mem.Buffer, body)
	require.Equal(t, len(body), n)

	respLen, svcStatus, rpcStatus := c.Call(context.Background(), uint16(opcode), mem, len(body))
	require.Equal(t, rpcstatus.Success, rpcStatus)

	return efistatus.Status(svcStatus), mem.Buffer[:respLen]
}

func TestSetGetRoundTripOverWire(t *testing.T) {
	c, mem := newTestClient(t)

	guid := meta.Guid{0xA0}
	name := meta.NameFromString("BootOrder")
	attrs := meta.AttrNonVolatile | meta.AttrBootserviceAccess
	data := []byte{0x03, 0x00, 0x01, 0x00}

	status, _ := invoke(t, c, mem, uefismm.OpcodeSetVariable,
		uefismm.EncodeSetVariableRequest(guid, name, attrs, data))
	require.Equal(t, efistatus.Success, status)

	status, resp := invoke(t, c, mem, uefismm.OpcodeGetVariable,
		uefismm.EncodeGetVariableRequest(guid, name))
	require.Equal(t, efistatus.Success, status)

	gotAttrs, payload, decodeStatus := uefismm.DecodeGetVariableResponse(resp)
	require.Equal(t, efistatus.Success, decodeStatus)
	require.Equal(t, attrs, gotAttrs)
	require.Equal(t, data, payload)
}

func TestGetMissingVariableOverWire(t *testing.T) {
	c, mem := newTestClient(t)

	status, _ := invoke(t, c, mem, uefismm.OpcodeGetVariable,
		uefismm.EncodeGetVariableRequest(meta.Guid{0xA1}, meta.NameFromString("Missing")))
	require.Equal(t, efistatus.ErrNotFound, status)
}

func TestEnumerationOverWire(t *testing.T) {
	c, mem := newTestClient(t)

	guid := meta.Guid{0xA2}
	attrs := meta.AttrBootserviceAccess
	for _, n := range []string{"First", "Second"} {
		status, _ := invoke(t, c, mem, uefismm.OpcodeSetVariable,
			uefismm.EncodeSetVariableRequest(guid, meta.NameFromString(n), attrs, []byte(n)))
		require.Equal(t, efistatus.Success, status)
	}

	var seen []string
	cursorGuid, cursorName := meta.Guid{}, meta.Name(nil)
	for {
		status, resp := invoke(t, c, mem, uefismm.OpcodeGetNextVariableName,
			uefismm.EncodeGetNextVariableNameRequest(cursorGuid, cursorName))
		if status == efistatus.ErrNotFound {
			break
		}
		require.Equal(t, efistatus.Success, status)

		nextGuid, nextName, decodeStatus := uefismm.DecodeGetNextVariableNameResponse(resp)
		require.Equal(t, efistatus.Success, decodeStatus)
		seen = append(seen, nextName.String())
		cursorGuid, cursorName = nextGuid, nextName
	}

	require.ElementsMatch(t, []string{"First", "Second"}, seen)
}

func TestQueryVariableInfoOverWire(t *testing.T) {
	c, mem := newTestClient(t)

	status, resp := invoke(t, c, mem, uefismm.OpcodeQueryVariableInfo,
		uefismm.EncodeQueryVariableInfoRequest(meta.AttrNonVolatile|meta.AttrBootserviceAccess))
	require.Equal(t, efistatus.Success, status)

	maxStorage, remaining, maxVarSize, decodeStatus := uefismm.DecodeQueryVariableInfoResponse(resp)
	require.Equal(t, efistatus.Success, decodeStatus)
	require.Equal(t, uint64(1<<20), maxStorage)
	require.Equal(t, maxStorage, remaining)
	require.Equal(t, uint64(store.DefaultMaxVariableSize), maxVarSize)
}

func TestExitBootServiceGatesOverWire(t *testing.T) {
	c, mem := newTestClient(t)

	guid := meta.Guid{0xA3}
	name := meta.NameFromString("BootOnly")
	status, _ := invoke(t, c, mem, uefismm.OpcodeSetVariable,
		uefismm.EncodeSetVariableRequest(guid, name, meta.AttrBootserviceAccess, []byte("x")))
	require.Equal(t, efistatus.Success, status)

	status, _ = invoke(t, c, mem, uefismm.OpcodeExitBootService, nil)
	require.Equal(t, efistatus.Success, status)

	status, _ = invoke(t, c, mem, uefismm.OpcodeGetVariable,
		uefismm.EncodeGetVariableRequest(guid, name))
	require.Equal(t, efistatus.ErrNotFound, status)
}

func TestTruncatedRequestBodyOverWire(t *testing.T) {
	c, mem := newTestClient(t)

	status, _ := invoke(t, c, mem, uefismm.OpcodeSetVariable, []byte{1, 2, 3})
	require.Equal(t, efistatus.ErrInvalidParameter, status)
}

func TestAuthenticatedSetWritesAuditLedger(t *testing.T) {
	s := store.New(7, 16,
		store.Delegate{TotalCapacity: 1 << 20, Backend: storage.NewMemory()},
		store.Delegate{TotalCapacity: 1 << 20, Backend: storage.NewMemory()},
		auth.NewEngine(tscrypto.NewX509Verifier()))
	require.Equal(t, efistatus.Success, s.Init(context.Background()))

	ledger := audit.NewMemory()
	p := uefismm.New(uuid.SMMVariable, s, nil)
	p.AttachAudit(ledger, 7)

	c := direct.New(p)
	rpcStatus, err := c.FindAndOpenSession(context.Background(), uuid.SMMVariable)
	require.NoError(t, err)
	require.Equal(t, rpcstatus.Success, rpcStatus)

	var mem shmem.SharedMemory
	require.Equal(t, rpcstatus.Success, c.CreateSharedMemory(context.Background(), 4096, &mem))

	authAttrs := meta.AttrNonVolatile | meta.AttrBootserviceAccess | meta.AttrRuntimeAccess |
		meta.AttrTimeBasedAuthenticatedWriteAccess

	// With no PK installed this well-formed update is accepted.
	kekName := meta.NameFromString("KEK")
	accepted := authoring.EncodeAuthenticatedPayload(
		meta.Time{Year: 2024, Month: 1, Day: 1}, []byte("sig"), []byte("payload"))
	status, _ := invoke(t, c, &mem, uefismm.OpcodeSetVariable,
		uefismm.EncodeSetVariableRequest(auth.GlobalVariableGuid, kekName, authAttrs, accepted))
	require.Equal(t, efistatus.Success, status)

	// A truncated auth descriptor is rejected before it reaches storage.
	status, _ = invoke(t, c, &mem, uefismm.OpcodeSetVariable,
		uefismm.EncodeSetVariableRequest(meta.Guid{0xA9}, meta.NameFromString("Private"), authAttrs, []byte{1, 2}))
	require.Equal(t, efistatus.ErrInvalidParameter, status)

	records, err := ledger.Recent(context.Background(), 7, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Most recent first.
	require.Equal(t, audit.VerdictRejected, records[0].Verdict)
	require.Equal(t, audit.KindPrivate, records[0].Kind)
	require.Equal(t, audit.VerdictAccepted, records[1].Verdict)
	require.Equal(t, audit.KindSecureBoot, records[1].Kind)
	require.Equal(t, "KEK", records[1].VariableName)
}

func TestUnsupportedOpcodesOverWire(t *testing.T) {
	c, mem := newTestClient(t)

	status, _ := invoke(t, c, mem, uefismm.OpcodeGetStatistics, nil)
	require.Equal(t, efistatus.ErrUnsupported, status)

	status, _ = invoke(t, c, mem, uefismm.OpcodeLockVariable, nil)
	require.Equal(t, efistatus.ErrUnsupported, status)

	status, _ = invoke(t, c, mem, uefismm.OpcodeReadyToBoot, nil)
	require.Equal(t, efistatus.Success, status)
}
