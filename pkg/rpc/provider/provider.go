// Package provider implements opcode-range dispatch within a single
// service interface, plus chain-of-responsibility forwarding to a
// successor interface when no handler matches. It is the Go analog of
// service_provider.c: a provider owns a fixed table of (opcode, handler)
// pairs, rejects requests outside its opcode range in O(1), and otherwise
// scans linearly for the exact match.
package provider

import (
	"context"

	"github.com/arm-trusted-services/ts-core/pkg/rpc/endpoint"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
)

// HandlerFunc is the shape of one opcode's implementation.
type HandlerFunc func(ctx context.Context, req *endpoint.Request) status.RPCStatus

// Handler binds one opcode to the function that implements it.
type Handler struct {
	Opcode uint32
	Invoke HandlerFunc
}

// Provider dispatches requests for a single service UUID across a fixed
// table of handlers, forwarding anything unmatched to Successor.
type Provider struct {
	svcUUID   uuid.UUID
	handlers  []Handler
	opcodeLo  uint32
	opcodeHi  uint32
	successor endpoint.ServiceInterface
}

// New builds a Provider for svcUUID from handlers. The opcode range used
// for the fast-reject check is computed once from the handler table, so
// handlers must be supplied up front; New panics if handlers is empty,
// since a provider with no handlers can never match a request.
func New(svcUUID uuid.UUID, handlers []Handler) *Provider {
	if len(handlers) == 0 {
		panic("provider: at least one handler is required")
	}

	p := &Provider{
		svcUUID:  svcUUID,
		handlers: handlers,
	}

	lo, hi := handlers[0].Opcode, handlers[0].Opcode
	for _, h := range handlers[1:] {
		if h.Opcode < lo {
			lo = h.Opcode
		}
		if h.Opcode > hi {
			hi = h.Opcode
		}
	}
	p.opcodeLo, p.opcodeHi = lo, hi

	return p
}

// UUID implements endpoint.ServiceInterface.
func (p *Provider) UUID() uuid.UUID {
	return p.svcUUID
}

// LinkSuccessor sets the interface requests are forwarded to when none of
// p's handlers match. It is typically another Provider's interface.
func (p *Provider) LinkSuccessor(successor endpoint.ServiceInterface) {
	p.successor = successor
}

// Extend splices sub in front of p's current successor, so sub is searched
// immediately after p itself but before whatever p previously forwarded
// to. This mirrors service_provider_extend, which lets optional
// sub-services (e.g. a diagnostic extension) be layered onto a base
// provider without the base needing to know about them in advance.
func (p *Provider) Extend(sub *Provider) {
	sub.successor = p.successor
	p.successor = sub
}

// Receive implements endpoint.ServiceInterface: it looks for a handler
// matching req.Opcode, invokes it if found, and otherwise forwards to the
// successor interface if one is linked.
func (p *Provider) Receive(ctx context.Context, req *endpoint.Request) status.RPCStatus {
	if h := p.findHandler(uint32(req.Opcode)); h != nil {
		return h.Invoke(ctx, req)
	}

	if p.successor != nil {
		return endpoint.Receive(ctx, p.successor, req)
	}

	return status.ErrorInvalidValue
}

func (p *Provider) findHandler(opcode uint32) *Handler {
	if opcode < p.opcodeLo || opcode > p.opcodeHi {
		return nil
	}

	for i := range p.handlers {
		if p.handlers[i].Opcode == opcode {
			return &p.handlers[i]
		}
	}

	return nil
}
