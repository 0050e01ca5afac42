package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arm-trusted-services/ts-core/pkg/rest"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/endpoint"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/shmem"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
)

// reverseService echoes the request body reversed, enough surface to prove
// a request round-trips through the transport and into a registered
// service interface.
type reverseService struct{}

func (reverseService) UUID() uuid.UUID { return uuid.TestRunner }

func (reverseService) Receive(_ context.Context, req *endpoint.Request) status.RPCStatus {
	n := req.Request.DataLength
	body := append([]byte(nil), req.Request.Data[:n]...)
	for i := 0; i < n; i++ {
		req.Response.Data[i] = body[n-1-i]
	}
	req.Response.DataLength = n
	req.ServiceStatus = 0
	return status.Success
}

func newTestServer(t *testing.T, cfg rest.Config) *httptest.Server {
	t.Helper()
	ep := endpoint.NewEndpoint()
	ep.Register(reverseService{})

	ts := httptest.NewServer(rest.NewServer(ep, cfg).Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientServerRoundTrip(t *testing.T) {
	ts := newTestServer(t, rest.Config{})
	c := rest.NewClient(ts.URL+"/v1", ts.Client(), "")
	ctx := context.Background()

	rpcStatus, err := c.FindAndOpenSession(ctx, uuid.TestRunner)
	require.NoError(t, err)
	require.Equal(t, status.Success, rpcStatus)

	var mem shmem.SharedMemory
	require.Equal(t, status.Success, c.CreateSharedMemory(ctx, 16, &mem))
	copy(mem.Buffer, []byte("hello"))

	respLen, svcStatus, rpcStatus := c.Call(ctx, 0, &mem, 5)
	assert.Equal(t, status.Success, rpcStatus)
	assert.Equal(t, status.ServiceStatus(0), svcStatus)
	assert.Equal(t, 5, respLen)
	assert.Equal(t, "olleh", string(mem.Buffer[:respLen]))

	assert.Equal(t, status.Success, c.ReleaseSharedMemory(ctx, &mem))
	assert.Equal(t, status.Success, c.CloseSession(ctx))
}

func TestOpenSessionUnknownUUID(t *testing.T) {
	ts := newTestServer(t, rest.Config{})
	c := rest.NewClient(ts.URL+"/v1", ts.Client(), "")

	rpcStatus, err := c.FindAndOpenSession(context.Background(), uuid.Attestation)
	require.NoError(t, err)
	assert.Equal(t, status.ErrorNotFound, rpcStatus)
}

func TestCallWithoutSessionFails(t *testing.T) {
	ts := newTestServer(t, rest.Config{})
	c := rest.NewClient(ts.URL+"/v1", ts.Client(), "")

	var mem shmem.SharedMemory
	require.Equal(t, status.Success, c.CreateSharedMemory(context.Background(), 8, &mem))

	_, _, rpcStatus := c.Call(context.Background(), 0, &mem, 0)
	assert.Equal(t, status.ErrorInvalidState, rpcStatus)
}

func TestBearerAuthGate(t *testing.T) {
	secret := []byte("test-signing-secret")
	ts := newTestServer(t, rest.Config{RequireAuth: true, JWTSecret: secret})

	// No token: the session route is refused before it reaches the RPC
	// substrate.
	unauth := rest.NewClient(ts.URL+"/v1", ts.Client(), "")
	rpcStatus, err := unauth.FindAndOpenSession(context.Background(), uuid.TestRunner)
	require.Error(t, err)
	assert.Equal(t, status.ErrorTransportLayer, rpcStatus)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "conformance-client",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	authed := rest.NewClient(ts.URL+"/v1", ts.Client(), token)
	rpcStatus, err = authed.FindAndOpenSession(context.Background(), uuid.TestRunner)
	require.NoError(t, err)
	assert.Equal(t, status.Success, rpcStatus)
}

func TestSchemaEndpoint(t *testing.T) {
	ts := newTestServer(t, rest.Config{})

	resp, err := ts.Client().Get(ts.URL + "/v1/schema")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
