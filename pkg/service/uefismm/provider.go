package uefismm

import (
	"context"
	"strconv"
	"time"

	"github.com/arm-trusted-services/ts-core/internal/logger"
	"github.com/arm-trusted-services/ts-core/internal/telemetry"
	"github.com/arm-trusted-services/ts-core/pkg/audit"
	"github.com/arm-trusted-services/ts-core/pkg/metrics"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/endpoint"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/provider"
	rpcstatus "github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
	"github.com/arm-trusted-services/ts-core/pkg/variable/auth"
	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
	"github.com/arm-trusted-services/ts-core/pkg/variable/store"
)

// Opcodes, matching the published EDK2 SMM_VARIABLE_FUNCTION_* constants.
// The full eleven-opcode list is exposed even though three of them
// (READY_TO_BOOT, GET_STATISTICS, LOCK_VARIABLE) carry no behavior here;
// see the handlers at the bottom of this file.
const (
	OpcodeGetVariable                 uint32 = 1
	OpcodeGetNextVariableName         uint32 = 2
	OpcodeSetVariable                 uint32 = 3
	OpcodeQueryVariableInfo           uint32 = 4
	OpcodeReadyToBoot                 uint32 = 5
	OpcodeExitBootService             uint32 = 6
	OpcodeGetStatistics               uint32 = 7
	OpcodeLockVariable                uint32 = 8
	OpcodeVarCheckVariablePropertySet uint32 = 9
	OpcodeVarCheckVariablePropertyGet uint32 = 10
	OpcodeGetPayloadSize              uint32 = 11
)

// Provider is the SMM_VARIABLE service provider: it binds a
// pkg/variable/store.Store to the opcode table above, presenting it as a
// single endpoint.ServiceInterface, matching smm_variable_provider_init.
type Provider struct {
	*provider.Provider
	store   *store.Store
	metrics *metrics.Metrics

	audit        audit.Store
	auditOwnerID uint32
}

// opcodeNames labels metrics/log output with the opcode's symbolic name
// rather than its bare numeric value.
var opcodeNames = map[uint32]string{
	OpcodeGetVariable:                 "get_variable",
	OpcodeGetNextVariableName:         "get_next_variable_name",
	OpcodeSetVariable:                 "set_variable",
	OpcodeQueryVariableInfo:           "query_variable_info",
	OpcodeReadyToBoot:                 "ready_to_boot",
	OpcodeExitBootService:             "exit_boot_service",
	OpcodeGetStatistics:               "get_statistics",
	OpcodeLockVariable:                "lock_variable",
	OpcodeVarCheckVariablePropertySet: "var_check_property_set",
	OpcodeVarCheckVariablePropertyGet: "var_check_property_get",
	OpcodeGetPayloadSize:              "get_payload_size",
}

// New wires store behind svcUUID's opcode table. m may be nil
// (metrics.NullMetrics), in which case instrumentation is a no-op.
func New(svcUUID uuid.UUID, s *store.Store, m *metrics.Metrics) *Provider {
	p := &Provider{store: s, metrics: m}

	handlers := []provider.Handler{
		{Opcode: OpcodeGetVariable, Invoke: p.getVariable},
		{Opcode: OpcodeGetNextVariableName, Invoke: p.getNextVariableName},
		{Opcode: OpcodeSetVariable, Invoke: p.setVariable},
		{Opcode: OpcodeQueryVariableInfo, Invoke: p.queryVariableInfo},
		{Opcode: OpcodeReadyToBoot, Invoke: p.readyToBoot},
		{Opcode: OpcodeExitBootService, Invoke: p.exitBootService},
		{Opcode: OpcodeGetStatistics, Invoke: p.getStatistics},
		{Opcode: OpcodeLockVariable, Invoke: p.lockVariable},
		{Opcode: OpcodeVarCheckVariablePropertySet, Invoke: p.setVarCheckProperty},
		{Opcode: OpcodeVarCheckVariablePropertyGet, Invoke: p.getVarCheckProperty},
		{Opcode: OpcodeGetPayloadSize, Invoke: p.getPayloadSize},
	}
	for i, h := range handlers {
		handlers[i].Invoke = p.instrument(h.Opcode, h.Invoke)
	}

	p.Provider = provider.New(svcUUID, handlers)

	return p
}

// AttachAudit directs every authenticated-update verdict into ledger,
// recorded under ownerID. The ledger is an observability sink only: an
// Append failure is logged and swallowed, never surfaced to the client.
func (p *Provider) AttachAudit(ledger audit.Store, ownerID uint32) {
	p.audit = ledger
	p.auditOwnerID = ownerID
}

// recordAuthAttempt writes one audit record and bumps the verdict counter
// after a SetVariable that carried the time-based-auth attribute.
func (p *Provider) recordAuthAttempt(ctx context.Context, guid meta.Guid, name meta.Name, status efistatus.Status) {
	kind := audit.KindPrivate
	if auth.Classify(guid, name) == auth.ClassSecureBoot {
		kind = audit.KindSecureBoot
	}
	verdict := audit.VerdictAccepted
	reason := ""
	if !status.IsSuccess() {
		verdict = audit.VerdictRejected
		reason = status.String()
	}

	p.metrics.RecordAuthVerdict(string(kind), string(verdict))

	if p.audit == nil {
		return
	}
	rec := audit.Record{
		OwnerID:      p.auditOwnerID,
		VariableName: name.String(),
		GUID:         guid.String(),
		Kind:         kind,
		Verdict:      verdict,
		Reason:       reason,
		Timestamp:    time.Now().UTC(),
	}
	if err := p.audit.Append(ctx, rec); err != nil {
		logger.WarnCtx(ctx, "audit ledger append failed",
			logger.Operation("set_variable"), "error", err)
	}
}

// instrument wraps a handler with duration/outcome metrics, structured
// logging, and a Pyroscope operation tag. The telemetry.TagOperation wrapper lets a continuous profile collected in
// production be broken down by opcode, the same way the metrics and log
// lines below are broken down by opcode.
func (p *Provider) instrument(opcode uint32, fn provider.HandlerFunc) provider.HandlerFunc {
	name := opcodeNames[opcode]
	if name == "" {
		name = strconv.FormatUint(uint64(opcode), 10)
	}

	return func(ctx context.Context, req *endpoint.Request) rpcstatus.RPCStatus {
		start := time.Now()
		var status rpcstatus.RPCStatus
		telemetry.TagOperation(ctx, name, func() {
			status = fn(ctx, req)
		})
		elapsed := time.Since(start).Seconds()

		p.metrics.RecordVariableOp(name, strconv.FormatInt(int64(req.ServiceStatus), 10), elapsed)
		logger.DispatchCtx(ctx, "smm_variable dispatch", int32(status), int64(req.ServiceStatus),
			logger.Operation(name),
			logger.RPCStatus(int32(status)),
			logger.ServiceStatus(int64(req.ServiceStatus)),
			logger.DurationMs(elapsed*1000),
		)
		return status
	}
}

// getVariable matches get_variable_handler: the request is the fixed
// access-variable header plus Name; the response reuses the same header
// layout followed by the full Name and then Data.
func (p *Provider) getVariable(ctx context.Context, req *endpoint.Request) rpcstatus.RPCStatus {
	h, name, _, status := splitAccessVariable(req.Request.Data[:req.Request.DataLength])
	if status != efistatus.Success {
		req.ServiceStatus = serviceStatus(status)
		return rpcstatus.Success
	}

	data, attributes, status := p.store.GetVariable(ctx, h.Guid, name)
	if status != efistatus.Success {
		req.ServiceStatus = serviceStatus(status)
		return rpcstatus.Success
	}

	nameBytes := name.ToUTF16Bytes()
	needed := accessVariableHeaderSize + len(nameBytes) + len(data)
	if needed > req.Response.Size {
		req.ServiceStatus = serviceStatus(efistatus.ErrBufferTooSmall)
		return rpcstatus.Success
	}

	resp := req.Response.Data
	encodeAccessVariableHeader(resp, accessVariableHeader{
		Guid: h.Guid, NameSize: uint64(len(nameBytes)), DataSize: uint64(len(data)), Attributes: attributes,
	})
	copy(resp[accessVariableHeaderSize:], nameBytes)
	copy(resp[accessVariableHeaderSize+len(nameBytes):], data)

	req.Response.DataLength = needed
	req.ServiceStatus = serviceStatus(efistatus.Success)
	return rpcstatus.Success
}

// setVariable matches set_variable_handler.
func (p *Provider) setVariable(ctx context.Context, req *endpoint.Request) rpcstatus.RPCStatus {
	h, name, data, status := splitAccessVariable(req.Request.Data[:req.Request.DataLength])
	if status != efistatus.Success {
		req.ServiceStatus = serviceStatus(status)
		return rpcstatus.Success
	}
	if uint64(len(data)) < h.DataSize {
		req.ServiceStatus = serviceStatus(efistatus.ErrInvalidParameter)
		return rpcstatus.Success
	}

	status = p.store.SetVariable(ctx, h.Guid, name, h.Attributes, data[:h.DataSize])
	if h.Attributes&meta.AttrTimeBasedAuthenticatedWriteAccess != 0 {
		p.recordAuthAttempt(ctx, h.Guid, name, status)
	}
	req.ServiceStatus = serviceStatus(status)
	return rpcstatus.Success
}

// getNextVariableName matches get_next_variable_name_handler.
func (p *Provider) getNextVariableName(ctx context.Context, req *endpoint.Request) rpcstatus.RPCStatus {
	guid, name, status := decodeGetNextVariableName(req.Request.Data[:req.Request.DataLength])
	if status != efistatus.Success {
		req.ServiceStatus = serviceStatus(status)
		return rpcstatus.Success
	}

	nextGuid, nextName, status := p.store.GetNextVariableName(ctx, guid, name)
	if status != efistatus.Success {
		req.ServiceStatus = serviceStatus(status)
		return rpcstatus.Success
	}

	needed := getNextVariableNameHeaderSize + nextName.ByteSize()
	if needed > req.Response.Size {
		req.ServiceStatus = serviceStatus(efistatus.ErrBufferTooSmall)
		return rpcstatus.Success
	}

	req.Response.DataLength = encodeGetNextVariableName(req.Response.Data, nextGuid, nextName)
	req.ServiceStatus = serviceStatus(efistatus.Success)
	return rpcstatus.Success
}

// queryVariableInfo matches query_variable_info_handler.
func (p *Provider) queryVariableInfo(ctx context.Context, req *endpoint.Request) rpcstatus.RPCStatus {
	attributes, status := decodeQueryVariableInfoRequest(req.Request.Data[:req.Request.DataLength])
	if status != efistatus.Success {
		req.ServiceStatus = serviceStatus(status)
		return rpcstatus.Success
	}
	if req.Response.Size < queryVariableInfoSize {
		req.ServiceStatus = serviceStatus(efistatus.ErrBufferTooSmall)
		return rpcstatus.Success
	}

	maxStorage, remaining, maxVarSize, status := p.store.QueryVariableInfo(ctx, attributes)
	if status != efistatus.Success {
		req.ServiceStatus = serviceStatus(status)
		return rpcstatus.Success
	}

	encodeQueryVariableInfoResponse(req.Response.Data, maxStorage, remaining, maxVarSize)
	req.Response.DataLength = queryVariableInfoSize
	req.ServiceStatus = serviceStatus(efistatus.Success)
	return rpcstatus.Success
}

// exitBootService matches exit_boot_service_handler.
func (p *Provider) exitBootService(_ context.Context, req *endpoint.Request) rpcstatus.RPCStatus {
	p.store.ExitBootService()
	req.ServiceStatus = serviceStatus(efistatus.Success)
	return rpcstatus.Success
}

// setVarCheckProperty matches set_var_check_property_handler.
func (p *Provider) setVarCheckProperty(ctx context.Context, req *endpoint.Request) rpcstatus.RPCStatus {
	guid, name, constraints, status := decodeVarCheckProperty(req.Request.Data[:req.Request.DataLength])
	if status != efistatus.Success {
		req.ServiceStatus = serviceStatus(status)
		return rpcstatus.Success
	}

	status = p.store.SetVarCheckProperty(ctx, guid, name, constraints)
	req.ServiceStatus = serviceStatus(status)
	return rpcstatus.Success
}

// getVarCheckProperty matches get_var_check_property_handler.
func (p *Provider) getVarCheckProperty(_ context.Context, req *endpoint.Request) rpcstatus.RPCStatus {
	guid, name, _, status := decodeVarCheckProperty(req.Request.Data[:req.Request.DataLength])
	if status != efistatus.Success {
		req.ServiceStatus = serviceStatus(status)
		return rpcstatus.Success
	}

	constraints, status := p.store.GetVarCheckProperty(guid, name)
	if status != efistatus.Success {
		req.ServiceStatus = serviceStatus(status)
		return rpcstatus.Success
	}

	needed := varCheckPropertyHeaderSize + name.ByteSize()
	if needed > req.Response.Size {
		req.ServiceStatus = serviceStatus(efistatus.ErrBufferTooSmall)
		return rpcstatus.Success
	}

	req.Response.DataLength = encodeVarCheckProperty(req.Response.Data, guid, name, constraints)
	req.ServiceStatus = serviceStatus(efistatus.Success)
	return rpcstatus.Success
}

// getPayloadSize matches get_payload_size_handler: the maximum combined
// name+data payload a single call can carry is bounded by the response
// buffer's capacity, less the fixed access-variable header.
func (p *Provider) getPayloadSize(_ context.Context, req *endpoint.Request) rpcstatus.RPCStatus {
	if req.Response.Size < getPayloadSizeRespSize {
		req.ServiceStatus = serviceStatus(efistatus.ErrBufferTooSmall)
		return rpcstatus.Success
	}

	payloadSize := req.Request.Size - accessVariableHeaderSize
	if payloadSize < 0 {
		payloadSize = 0
	}

	encodeGetPayloadSizeResponse(req.Response.Data, uint64(payloadSize))
	req.Response.DataLength = getPayloadSizeRespSize
	req.ServiceStatus = serviceStatus(efistatus.Success)
	return rpcstatus.Success
}

// readyToBoot and getStatistics and lockVariable are part of the
// published SMM_VARIABLE_FUNCTION_* opcode list but have no effect in
// this store (no boot-flow signalling, no usage statistics, no
// policy-engine integration): EDK2 leaves the first unused and delegates
// locking to a separate variable-policy engine, so readyToBoot succeeds
// without side effects and the other two report unsupported.
func (p *Provider) readyToBoot(_ context.Context, req *endpoint.Request) rpcstatus.RPCStatus {
	req.ServiceStatus = serviceStatus(efistatus.Success)
	return rpcstatus.Success
}

func (p *Provider) getStatistics(_ context.Context, req *endpoint.Request) rpcstatus.RPCStatus {
	req.ServiceStatus = serviceStatus(efistatus.ErrUnsupported)
	return rpcstatus.Success
}

func (p *Provider) lockVariable(_ context.Context, req *endpoint.Request) rpcstatus.RPCStatus {
	req.ServiceStatus = serviceStatus(efistatus.ErrUnsupported)
	return rpcstatus.Success
}

func serviceStatus(s efistatus.Status) rpcstatus.ServiceStatus {
	return rpcstatus.ServiceStatus(s)
}
