package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arm-trusted-services/ts-core/pkg/rpc/endpoint"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
)

func okHandler(tag status.ServiceStatus) func(context.Context, *endpoint.Request) status.RPCStatus {
	return func(ctx context.Context, req *endpoint.Request) status.RPCStatus {
		req.ServiceStatus = tag
		return status.Success
	}
}

func TestFindHandlerRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	p := New(uuid.Attestation, []Handler{
		{Opcode: 5, Invoke: okHandler(1)},
		{Opcode: 10, Invoke: okHandler(2)},
	})

	assert.Nil(t, p.findHandler(4))
	assert.Nil(t, p.findHandler(11))
	assert.Nil(t, p.findHandler(7))
	assert.NotNil(t, p.findHandler(5))
	assert.NotNil(t, p.findHandler(10))
}

func TestReceiveDispatchesMatchingHandler(t *testing.T) {
	t.Parallel()

	p := New(uuid.Attestation, []Handler{
		{Opcode: 1, Invoke: okHandler(42)},
	})

	req := &endpoint.Request{Opcode: 1}
	got := p.Receive(context.Background(), req)

	assert.Equal(t, status.Success, got)
	assert.Equal(t, status.ServiceStatus(42), req.ServiceStatus)
}

func TestReceiveForwardsToSuccessorWhenUnmatched(t *testing.T) {
	t.Parallel()

	base := New(uuid.Attestation, []Handler{{Opcode: 1, Invoke: okHandler(1)}})
	ext := New(uuid.Attestation, []Handler{{Opcode: 2, Invoke: okHandler(2)}})
	base.LinkSuccessor(ext)

	req := &endpoint.Request{Opcode: 2}
	got := base.Receive(context.Background(), req)

	assert.Equal(t, status.Success, got)
	assert.Equal(t, status.ServiceStatus(2), req.ServiceStatus)
}

func TestReceiveReturnsInvalidValueWithNoSuccessor(t *testing.T) {
	t.Parallel()

	p := New(uuid.Attestation, []Handler{{Opcode: 1, Invoke: okHandler(1)}})

	got := p.Receive(context.Background(), &endpoint.Request{Opcode: 99})
	assert.Equal(t, status.ErrorInvalidValue, got)
}

func TestExtendSplicesInFrontOfExistingSuccessor(t *testing.T) {
	t.Parallel()

	base := New(uuid.Attestation, []Handler{{Opcode: 1, Invoke: okHandler(1)}})
	tail := New(uuid.Attestation, []Handler{{Opcode: 3, Invoke: okHandler(3)}})
	base.LinkSuccessor(tail)

	mid := New(uuid.Attestation, []Handler{{Opcode: 2, Invoke: okHandler(2)}})
	base.Extend(mid)

	// base -> mid -> tail: opcode 2 only resolves through mid.
	got := base.Receive(context.Background(), &endpoint.Request{Opcode: 2})
	assert.Equal(t, status.Success, got)

	// tail is still reachable past mid.
	got = base.Receive(context.Background(), &endpoint.Request{Opcode: 3})
	assert.Equal(t, status.Success, got)

	assert.Equal(t, tail, mid.successor)
	assert.Equal(t, mid, base.successor)
}

func TestNewPanicsWithNoHandlers(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		New(uuid.Attestation, nil)
	})
}
