package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/arm-trusted-services/ts-core/pkg/rpc/shmem"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
)

// Client is a caller.Caller implementation over the REST transport:
// open/find-and-open/close map to one POST/DELETE each, and Call is a
// single POST per invocation carrying the request body and returning the
// reply envelope.
type Client struct {
	baseURL    string
	httpClient *http.Client
	bearer     string

	sessionID string
}

// NewClient builds a Client against a running Server's baseURL (e.g.
// "http://localhost:8080/v1"). httpClient may be nil to use
// http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client, bearer string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, bearer: bearer}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) openSession(ctx context.Context, svc uuid.UUID, endpointID uint16, findAndOpen bool, sharedMemorySize int) (status.RPCStatus, error) {
	var resp OpenSessionResponse
	code, err := c.do(ctx, http.MethodPost, "/sessions", OpenSessionRequest{
		ServiceUUID:      svc.String(),
		EndpointID:       endpointID,
		FindAndOpen:      findAndOpen,
		SharedMemorySize: sharedMemorySize,
	}, &resp)
	if err != nil {
		return status.ErrorTransportLayer, err
	}
	switch {
	case code == http.StatusCreated:
		c.sessionID = resp.SessionID
		return status.Success, nil
	case code == http.StatusNotFound:
		return status.ErrorNotFound, nil
	default:
		return status.ErrorTransportLayer, fmt.Errorf("rest: open session failed, status %d", code)
	}
}

// OpenSession opens a session with a specific endpoint id.
func (c *Client) OpenSession(ctx context.Context, svc uuid.UUID, endpointID uint16) (status.RPCStatus, error) {
	return c.openSession(ctx, svc, endpointID, false, 0)
}

// FindAndOpenSession discovers an endpoint implementing svc.
func (c *Client) FindAndOpenSession(ctx context.Context, svc uuid.UUID) (status.RPCStatus, error) {
	return c.openSession(ctx, svc, 0, true, 0)
}

// CloseSession closes the currently open session.
func (c *Client) CloseSession(ctx context.Context) status.RPCStatus {
	if c.sessionID == "" {
		return status.ErrorInvalidState
	}
	code, err := c.do(ctx, http.MethodDelete, "/sessions/"+c.sessionID, nil, nil)
	c.sessionID = ""
	if err != nil {
		return status.ErrorTransportLayer
	}
	if code != http.StatusNoContent {
		return status.ErrorNotFound
	}
	return status.Success
}

// CreateSharedMemory has no real shared memory to offer over HTTP: it
// allocates a plain local buffer, mirroring the direct caller's
// in-process stand-in, since the REST envelope carries the request body
// inline rather than by reference.
func (c *Client) CreateSharedMemory(ctx context.Context, size int, mem *shmem.SharedMemory) status.RPCStatus {
	*mem = shmem.New(0, size)
	return status.Success
}

// ReleaseSharedMemory drops the local buffer reference.
func (c *Client) ReleaseSharedMemory(ctx context.Context, mem *shmem.SharedMemory) status.RPCStatus {
	mem.Buffer = nil
	mem.Size = 0
	return status.Success
}

// Call POSTs one request envelope and decodes the reply.
func (c *Client) Call(ctx context.Context, opcode uint16, mem *shmem.SharedMemory, requestLength int) (responseLength int, serviceStatus status.ServiceStatus, rpcStatus status.RPCStatus) {
	if c.sessionID == "" {
		return 0, 0, status.ErrorInvalidState
	}

	var reply Reply
	code, err := c.do(ctx, http.MethodPost, "/sessions/"+c.sessionID+"/call", Envelope{
		Opcode:      opcode,
		Request:     mem.Buffer[:requestLength],
		ResponseMax: mem.Size,
	}, &reply)
	if err != nil || code != http.StatusOK {
		return 0, 0, status.ErrorTransportLayer
	}

	if status.RPCStatus(reply.RPCStatus) != status.Success {
		return 0, 0, status.RPCStatus(reply.RPCStatus)
	}

	if len(reply.Response) > mem.Size {
		return 0, status.ServiceStatus(reply.ServiceStatus), status.ErrorTransportLayer
	}
	copy(mem.Buffer, reply.Response)

	return len(reply.Response), status.ServiceStatus(reply.ServiceStatus), status.Success
}
