package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for an RPC dispatch
type LogContext struct {
	TraceID     string    // OpenTelemetry trace ID
	SpanID      string    // OpenTelemetry span ID
	InterfaceID uint8     // Service interface ID being dispatched
	Opcode      uint16    // Opcode of the function being invoked
	Endpoint    string    // Name of the service endpoint (partition) handling the call
	ClientID    uint32    // RPC caller client ID
	SessionID   uint64    // Caller session ID, once opened
	StartTime   time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a client
func NewLogContext(clientID uint32) *LogContext {
	return &LogContext{
		ClientID:  clientID,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:     lc.TraceID,
		SpanID:      lc.SpanID,
		InterfaceID: lc.InterfaceID,
		Opcode:      lc.Opcode,
		Endpoint:    lc.Endpoint,
		ClientID:    lc.ClientID,
		SessionID:   lc.SessionID,
		StartTime:   lc.StartTime,
	}
}

// WithOpcode returns a copy with the interface/opcode pair set
func (lc *LogContext) WithOpcode(interfaceID uint8, opcode uint16) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.InterfaceID = interfaceID
		clone.Opcode = opcode
	}
	return clone
}

// WithEndpoint returns a copy with the endpoint name set
func (lc *LogContext) WithEndpoint(endpoint string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Endpoint = endpoint
	}
	return clone
}

// WithSession returns a copy with session identification set
func (lc *LogContext) WithSession(clientID uint32, sessionID uint64) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ClientID = clientID
		clone.SessionID = sessionID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
