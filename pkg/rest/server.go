package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/invopop/jsonschema"

	"github.com/arm-trusted-services/ts-core/internal/logger"
	"github.com/arm-trusted-services/ts-core/pkg/metrics"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/endpoint"
	rpcstatus "github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/wire"
)

// serverSession is the front door's bookkeeping for one opened session: the
// resolved interface id (or uuid.ManagementInterfaceID for a session
// opened purely to query the management interface) and a synthetic
// shared-memory buffer standing in for a caller's mapped pages.
type serverSession struct {
	mu          sync.Mutex
	interfaceID uint8
	buffer      []byte
}

// Server is the HTTP REST front door for an *endpoint.Endpoint. Each
// inbound call maps 1:1 to one Endpoint.Dispatch invocation; dispatch
// itself is additionally serialized behind mu, preserving the
// single-threaded-partition dispatch model on a transport that has no
// natural request ordering guarantee of its own.
type Server struct {
	mu       sync.Mutex
	ep       *endpoint.Endpoint
	metrics  *metrics.Metrics
	validate *validator.Validate

	sessions   map[string]*serverSession
	sessionSeq uint64

	requireAuth bool
	jwtSecret   []byte
}

// Config configures the REST front door.
type Config struct {
	// RequireAuth, when true, gates every /v1/sessions* route behind a
	// bearer JWT validated with JWTSecret. This is a transport-level gate
	// in front of the RPC substrate.
	RequireAuth bool
	JWTSecret   []byte
	Metrics     *metrics.Metrics
}

// NewServer builds the REST front door for ep.
func NewServer(ep *endpoint.Endpoint, cfg Config) *Server {
	return &Server{
		ep:          ep,
		metrics:     cfg.Metrics,
		validate:    validator.New(),
		sessions:    make(map[string]*serverSession),
		requireAuth: cfg.RequireAuth,
		jwtSecret:   cfg.JWTSecret,
	}
}

// Router builds the chi router with the usual middleware stack (request
// id, real ip, request logging, recoverer, timeout).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/schema", s.handleSchema)

		r.Group(func(r chi.Router) {
			if s.requireAuth {
				r.Use(s.bearerAuth)
			}
			r.Post("/sessions", s.handleOpenSession)
			r.Delete("/sessions/{id}", s.handleCloseSession)
			r.Post("/sessions/{id}/call", s.handleCall)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("rest request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}

// bearerAuth validates a golang-jwt/jwt/v5 bearer token, a transport-level
// gate in front of the RPC substrate — never a substitute for the variable
// store's own boot/runtime access-control gate.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(authz) <= len(prefix) || authz[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenStr := authz[len(prefix):]

		_, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return s.jwtSecret, nil
		})
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	reflector := &jsonschema.Reflector{}
	schema := reflector.Reflect(&Envelope{})
	writeJSON(w, http.StatusOK, schema)
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	svcUUID, err := uuid.Parse(req.ServiceUUID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid service_uuid")
		return
	}

	interfaceID, ok := s.ep.InterfaceIDFor(svcUUID)
	if !ok {
		writeError(w, http.StatusNotFound, "no registered service for that uuid")
		return
	}

	sessionID := strconv.FormatUint(atomic.AddUint64(&s.sessionSeq, 1), 10)
	sess := &serverSession{interfaceID: interfaceID}
	if req.SharedMemorySize > 0 {
		sess.buffer = make([]byte, req.SharedMemorySize)
	}

	s.mu.Lock()
	s.sessions[sessionID] = sess
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, OpenSessionResponse{SessionID: sessionID})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.validate.Struct(env); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	bufSize := len(env.Request)
	if env.ResponseMax > bufSize {
		bufSize = env.ResponseMax
	}
	if sess.buffer == nil || len(sess.buffer) < bufSize {
		sess.buffer = make([]byte, bufSize)
	}
	copy(sess.buffer, env.Request)

	var regs wire.Regs
	wire.SetInterfaceID(&regs, sess.interfaceID)
	wire.SetOpcode(&regs, env.Opcode)
	wire.SetRequestLength(&regs, uint32(len(env.Request)))
	wire.SetClientID(&regs, env.ClientID)

	sourceID := uint16(env.ClientID)

	start := time.Now()
	reply, response := s.ep.Dispatch(r.Context(), sourceID, &regs, sess.buffer)
	elapsed := time.Since(start).Seconds()

	rpcStatus := rpcstatus.RPCStatus(int32(wire.RPCStatus(&reply)))
	s.metrics.RecordRPC(strconv.Itoa(int(sess.interfaceID)), strconv.Itoa(int(env.Opcode)), rpcStatus.String(), elapsed)

	out := Reply{
		RPCStatus: int32(rpcStatus),
		Response:  response,
	}
	if rpcStatus == rpcstatus.Success {
		out.ServiceStatus = int64(int32(wire.ServiceStatus(&reply)))
	}

	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
